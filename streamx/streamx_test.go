package streamx

import (
	"bytes"
	"net"
	"testing"
)

func TestCipherConnRoundTrip(t *testing.T) {
	key := bytes.Repeat([]byte{0x42}, KeySize)

	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	clientConn, err := NewCipherConn(client, key)
	if err != nil {
		t.Fatalf("NewCipherConn(client): %v", err)
	}
	serverConn, err := NewCipherConn(server, key)
	if err != nil {
		t.Fatalf("NewCipherConn(server): %v", err)
	}

	want := []byte("hello through the cipher conn")
	done := make(chan error, 1)
	go func() {
		_, err := clientConn.Write(want)
		done <- err
	}()

	got := make([]byte, len(want))
	if _, err := readFull(serverConn, got); err != nil {
		t.Fatalf("Read: %v", err)
	}
	if err := <-done; err != nil {
		t.Fatalf("Write: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestIsSupported(t *testing.T) {
	if !IsSupported("chacha20-poly1305") {
		t.Fatal("chacha20-poly1305 should be supported")
	}
	if IsSupported("aes-256-gcm") {
		t.Fatal("aes-256-gcm should not be supported")
	}
}

func readFull(c *CipherConn, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := c.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}
