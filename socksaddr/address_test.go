package socksaddr

import (
	"bytes"
	"context"
	"testing"
)

func TestAddressEncodeDecodeRoundTripIPv4(t *testing.T) {
	a := New("192.0.2.1", 8080)
	encoded := a.Encode()

	decoded, err := ReadAddress(context.Background(), bytes.NewReader(encoded))
	if err != nil {
		t.Fatalf("ReadAddress: %v", err)
	}
	if decoded.String() != a.String() {
		t.Fatalf("got %q, want %q", decoded.String(), a.String())
	}
}

func TestAddressEncodeDecodeRoundTripIPv6(t *testing.T) {
	a := New("2001:db8::1", 443)
	decoded, err := ReadAddress(context.Background(), bytes.NewReader(a.Encode()))
	if err != nil {
		t.Fatalf("ReadAddress: %v", err)
	}
	if decoded.Kind != KindIP || decoded.Port != 443 {
		t.Fatalf("got %+v", decoded)
	}
}

func TestAddressEncodeDecodeRoundTripDomain(t *testing.T) {
	a := New("example.com", 80)
	decoded, err := ReadAddress(context.Background(), bytes.NewReader(a.Encode()))
	if err != nil {
		t.Fatalf("ReadAddress: %v", err)
	}
	if decoded.Kind != KindDomain || decoded.Host != "example.com" || decoded.Port != 80 {
		t.Fatalf("got %+v", decoded)
	}
}

func TestReadAddressDecodesInvalidUTF8Lossily(t *testing.T) {
	raw := []byte{ATypDomain, 2, 0xff, 0xfe, 0x00, 80}
	decoded, err := ReadAddress(context.Background(), bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("ReadAddress: %v", err)
	}
	if decoded.Host == "" {
		t.Fatal("expected a lossily-decoded non-empty host")
	}
}

func TestReadAddressRejectsUnknownType(t *testing.T) {
	raw := []byte{0x7f, 0, 80}
	_, err := ReadAddress(context.Background(), bytes.NewReader(raw))
	if err == nil {
		t.Fatal("expected error for unknown address type")
	}
}

func TestFromHostPort(t *testing.T) {
	a, err := FromHostPort("10.0.0.1:53")
	if err != nil {
		t.Fatalf("FromHostPort: %v", err)
	}
	if a.Kind != KindIP || a.Port != 53 {
		t.Fatalf("got %+v", a)
	}
}
