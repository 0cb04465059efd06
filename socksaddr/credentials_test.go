package socksaddr

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

func TestCredentialsEncodeDecodeRoundTrip(t *testing.T) {
	c := Credentials{Username: []byte("alice"), Password: []byte("hunter2")}
	encoded, err := c.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	decoded, err := ReadCredentials(context.Background(), bytes.NewReader(encoded))
	if err != nil {
		t.Fatalf("ReadCredentials: %v", err)
	}
	if !c.Equal(decoded) {
		t.Fatalf("got %+v, want %+v", decoded, c)
	}
}

func TestCredentialsEncodeRejectsOversizedField(t *testing.T) {
	c := Credentials{Username: []byte(strings.Repeat("a", 256)), Password: []byte("x")}
	if _, err := c.Encode(); err == nil {
		t.Fatal("expected error for a 256-byte username")
	}
}

func TestCredentialsEqual(t *testing.T) {
	a := Credentials{Username: []byte("u"), Password: []byte("p")}
	b := Credentials{Username: []byte("u"), Password: []byte("p")}
	c := Credentials{Username: []byte("u"), Password: []byte("wrong")}
	if !a.Equal(b) {
		t.Fatal("expected equal credential pairs to compare equal")
	}
	if a.Equal(c) {
		t.Fatal("expected mismatched passwords to compare unequal")
	}
}
