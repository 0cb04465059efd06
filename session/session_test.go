package session

import (
	"bytes"
	"context"
	"io"
	"net"
	"testing"
	"time"
)

func TestLimiterNilIsUnlimited(t *testing.T) {
	var l *Limiter
	for i := 0; i < 1000; i++ {
		if !l.TryAcquire() {
			t.Fatal("nil Limiter must always grant a permit")
		}
	}
	l.Release() // must not panic
}

func TestLimiterBoundsConcurrency(t *testing.T) {
	l := NewLimiter(2)
	if !l.TryAcquire() || !l.TryAcquire() {
		t.Fatal("expected first two acquires to succeed")
	}
	if l.TryAcquire() {
		t.Fatal("expected third acquire to fail at capacity 2")
	}
	l.Release()
	if !l.TryAcquire() {
		t.Fatal("expected acquire to succeed after a release")
	}
}

type pipeHandler struct {
	reply []byte
}

func (h *pipeHandler) Setup(ctx context.Context, client net.Conn) (net.Conn, error) {
	destServer, destClient := net.Pipe()
	go func() {
		io.Copy(io.Discard, destServer)
	}()
	go destServer.Write(h.reply)
	return destClient, nil
}

func (h *pipeHandler) RefuseRequest(client net.Conn) {
	client.Write([]byte("refused"))
}

func TestAcceptRequestRefusesWhenAdmissionFails(t *testing.T) {
	limiter := NewLimiter(1)
	limiter.TryAcquire() // exhaust the only permit

	client, remote := net.Pipe()
	defer remote.Close()

	done := make(chan struct{})
	go func() {
		AcceptRequest(context.Background(), &pipeHandler{}, limiter, client)
		close(done)
	}()

	buf := make([]byte, 32)
	remote.SetReadDeadline(time.Now().Add(2 * time.Second))
	n, err := remote.Read(buf)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(buf[:n]) != "refused" {
		t.Fatalf("got %q, want refused", buf[:n])
	}
	<-done
}

func TestCopyBidirectionalRelaysBothDirections(t *testing.T) {
	aServer, aClient := net.Pipe()
	bServer, bClient := net.Pipe()

	done := make(chan struct{})
	go func() {
		CopyBidirectional(aServer, bServer)
		close(done)
	}()

	go func() {
		aClient.Write([]byte("hello"))
	}()

	buf := make([]byte, 5)
	if _, err := io.ReadFull(bClient, buf); err != nil {
		t.Fatalf("ReadFull: %v", err)
	}
	if !bytes.Equal(buf, []byte("hello")) {
		t.Fatalf("got %q", buf)
	}

	go func() {
		bClient.Write([]byte("world"))
	}()

	back := make([]byte, 5)
	if _, err := io.ReadFull(aClient, back); err != nil {
		t.Fatalf("ReadFull (b->a): %v", err)
	}
	if !bytes.Equal(back, []byte("world")) {
		t.Fatalf("got %q in the b->a direction", back)
	}
	aClient.Close()
	bClient.Close()
	<-done
}
