package socks5

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/rostam-dev/socksx/socksaddr"
)

func TestHandlerHappyPathNoAuth(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()

	destListener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer destListener.Close()

	go func() {
		conn, err := destListener.Accept()
		if err == nil {
			conn.Close()
		}
	}()

	h := &Handler{}
	done := make(chan struct{})
	var setupErr error
	go func() {
		_, setupErr = h.Setup(context.Background(), server)
		close(done)
	}()

	addr := destListener.Addr().(*net.TCPAddr)

	// Drive the handshake directly over the pipe, mirroring what Client does.
	client.SetDeadline(time.Now().Add(5 * time.Second))
	client.Write([]byte{5, 1, 0}) // version 5, 1 method, no-auth

	sel := make([]byte, 2)
	if _, err := client.Read(sel); err != nil {
		t.Fatalf("read method selection: %v", err)
	}
	if sel[0] != 5 || sel[1] != 0 {
		t.Fatalf("got selection %v, want [5 0]", sel)
	}

	dest := socksaddr.New("127.0.0.1", uint16(addr.Port))
	req := append([]byte{5, 1, 0}, dest.Encode()...)
	client.Write(req)

	reply := make([]byte, 10)
	if _, err := client.Read(reply); err != nil {
		t.Fatalf("read reply: %v", err)
	}
	if reply[0] != 5 || reply[1] != ReplySuccess {
		t.Fatalf("got reply %v, want success", reply)
	}

	<-done
	if setupErr != nil {
		t.Fatalf("Setup: %v", setupErr)
	}
}

func TestHandlerRejectsUnsupportedMethod(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()

	h := &Handler{}
	done := make(chan struct{})
	go func() {
		h.Setup(context.Background(), server)
		close(done)
	}()

	client.SetDeadline(time.Now().Add(5 * time.Second))
	client.Write([]byte{5, 1, 2}) // client only offers username/password; handler has no creds

	sel := make([]byte, 2)
	if _, err := client.Read(sel); err != nil {
		t.Fatalf("read method selection: %v", err)
	}
	if sel[1] != methodNoAcceptable {
		t.Fatalf("got method %d, want methodNoAcceptable", sel[1])
	}
	<-done
}

func TestCredentialCheckRequiresExactMatch(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()

	h := &Handler{Creds: []Credentials{{Username: "u", Password: "p"}}}
	done := make(chan struct{})
	go func() {
		h.Setup(context.Background(), server)
		close(done)
	}()

	client.SetDeadline(time.Now().Add(5 * time.Second))
	client.Write([]byte{5, 1, 2}) // offer username/password

	sel := make([]byte, 2)
	client.Read(sel)
	if sel[1] != methodUserPass {
		t.Fatalf("got method %d, want methodUserPass", sel[1])
	}

	// Wrong password must fail, not succeed (guards against the inverted
	// check this correction targets).
	authReq := []byte{1, 1, 'u', 1, 'x'}
	client.Write(authReq)

	res := make([]byte, 2)
	if _, err := client.Read(res); err != nil {
		t.Fatalf("read auth result: %v", err)
	}
	if res[1] != authFailed {
		t.Fatalf("got auth status %d, want authFailed for a wrong password", res[1])
	}
	<-done
}
