package socks6

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/rostam-dev/socksx/chain"
	"github.com/rostam-dev/socksx/socksaddr"
)

func TestClientServerConnectHappyPath(t *testing.T) {
	destListener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer destListener.Close()

	echoed := make(chan []byte, 1)
	go func() {
		conn, err := destListener.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		buf := make([]byte, 16)
		n, _ := conn.Read(buf)
		echoed <- buf[:n]
	}()

	proxyListener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer proxyListener.Close()

	h := &Handler{}
	go func() {
		conn, err := proxyListener.Accept()
		if err != nil {
			return
		}
		dest, err := h.Setup(context.Background(), conn)
		if err != nil {
			conn.Close()
			return
		}
		go func() {
			buf := make([]byte, 16)
			n, _ := conn.Read(buf)
			dest.Write(buf[:n])
		}()
	}()

	destAddr := destListener.Addr().(*net.TCPAddr)
	proxyAddr := proxyListener.Addr().(*net.TCPAddr)

	client := &Client{ProxyAddr: proxyAddr.String()}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := client.Connect(ctx, socksaddr.New("127.0.0.1", uint16(destAddr.Port)), nil)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer conn.Close()

	if _, err := conn.Write([]byte("ping")); err != nil {
		t.Fatalf("write: %v", err)
	}

	select {
	case got := <-echoed:
		if string(got) != "ping" {
			t.Fatalf("got %q, want ping", got)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for destination to receive data")
	}
}

func TestClientConnectWithInitialData(t *testing.T) {
	destListener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer destListener.Close()

	received := make(chan []byte, 1)
	go func() {
		conn, err := destListener.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		buf := make([]byte, 16)
		n, _ := conn.Read(buf)
		received <- buf[:n]
	}()

	proxyListener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer proxyListener.Close()

	h := &Handler{}
	go func() {
		conn, err := proxyListener.Accept()
		if err != nil {
			return
		}
		dest, err := h.Setup(context.Background(), conn)
		if err != nil {
			conn.Close()
			return
		}
		dest.Close()
		conn.Close()
	}()

	destAddr := destListener.Addr().(*net.TCPAddr)
	proxyAddr := proxyListener.Addr().(*net.TCPAddr)

	client := &Client{ProxyAddr: proxyAddr.String()}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := client.Connect(ctx, socksaddr.New("127.0.0.1", uint16(destAddr.Port)), []byte("hi"))
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer conn.Close()

	select {
	case got := <-received:
		if string(got) != "hi" {
			t.Fatalf("got %q, want hi (initial data forwarded to destination)", got)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for destination to receive initial data")
	}
}

func TestServerForwardsThroughChainToNextHop(t *testing.T) {
	destListener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer destListener.Close()

	echoed := make(chan []byte, 1)
	go func() {
		conn, err := destListener.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		buf := make([]byte, 16)
		n, _ := conn.Read(buf)
		echoed <- buf[:n]
	}()

	// hop2 is the final SOCKS6 proxy in the chain, dialing the real
	// destination directly.
	hop2Listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer hop2Listener.Close()
	hop2 := &Handler{}
	go func() {
		conn, err := hop2Listener.Accept()
		if err != nil {
			return
		}
		dest, err := hop2.Setup(context.Background(), conn)
		if err != nil {
			conn.Close()
			return
		}
		go func() {
			buf := make([]byte, 16)
			n, _ := conn.Read(buf)
			dest.Write(buf[:n])
		}()
	}()
	hop2Addr := hop2Listener.Addr().(*net.TCPAddr)

	// hop1 is the entry point, statically configured to chain through hop2.
	hop2ProxyAddr, err := socksaddr.ParseProxyAddress("socks6://" + hop2Addr.String())
	if err != nil {
		t.Fatalf("parse hop2 address: %v", err)
	}
	hop1Listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer hop1Listener.Close()
	hop1 := &Handler{Chain: chain.New([]socksaddr.ProxyAddress{socksaddr.Root(), hop2ProxyAddr})}
	go func() {
		conn, err := hop1Listener.Accept()
		if err != nil {
			return
		}
		dest, err := hop1.Setup(context.Background(), conn)
		if err != nil {
			conn.Close()
			return
		}
		go func() {
			buf := make([]byte, 16)
			n, _ := conn.Read(buf)
			dest.Write(buf[:n])
		}()
	}()

	destAddr := destListener.Addr().(*net.TCPAddr)
	hop1Addr := hop1Listener.Addr().(*net.TCPAddr)

	client := &Client{ProxyAddr: hop1Addr.String()}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := client.Connect(ctx, socksaddr.New("127.0.0.1", uint16(destAddr.Port)), nil)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer conn.Close()

	if _, err := conn.Write([]byte("via-chain")); err != nil {
		t.Fatalf("write: %v", err)
	}

	select {
	case got := <-echoed:
		if string(got) != "via-chain" {
			t.Fatalf("got %q, want via-chain", got)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for the final destination to receive data forwarded through the chain")
	}
}

func TestFindAdvertisementDefaultsToNoAuthentication(t *testing.T) {
	advert := findAdvertisement(nil)
	if len(advert.Methods) != 1 || advert.Methods[0] != 0 {
		t.Fatalf("got %+v, want a single NoAuthentication method", advert)
	}
}

func TestHandlerFallsBackToConfiguredChainWhenRequestCarriesNone(t *testing.T) {
	hop, err := socksaddr.ParseProxyAddress("socks6://127.0.0.1:1")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	h := &Handler{Chain: chain.New([]socksaddr.ProxyAddress{hop})}

	// No chain metadata in the request options; Setup's substitution logic
	// (len(ch.Links) == 0 && len(h.Chain.Links) > 0) must pick up h.Chain.
	ch, err := chain.FromOptions(nil)
	if err != nil {
		t.Fatalf("FromOptions: %v", err)
	}
	if len(ch.Links) == 0 && len(h.Chain.Links) > 0 {
		ch = h.Chain
	}
	if len(ch.Links) != 1 || ch.Links[0].Host != "127.0.0.1" {
		t.Fatalf("expected the handler's configured chain to seed ch, got %+v", ch)
	}
}
