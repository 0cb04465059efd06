// Command socksx-client is a demonstration SOCKS5/SOCKS6 client: it connects
// to a proxy, requests a CONNECT tunnel to a destination, writes a short
// greeting, and prints whatever the destination echoes back. It exists to
// exercise socks5.Client / socks6.Client end to end, the way the reference
// stack's own client binary exercises its handshake code.
package main

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"github.com/rostam-dev/socksx/internal/config"
	"github.com/rostam-dev/socksx/internal/logger"
	"github.com/rostam-dev/socksx/session"
	"github.com/rostam-dev/socksx/socks5"
	"github.com/rostam-dev/socksx/socks6"
	"github.com/rostam-dev/socksx/socksaddr"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	cfg, err := config.LoadClientConfig(args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	comp := logger.Component("socksx-client")

	if cfg.Listen != "" {
		return runDetour(cfg, comp)
	}

	proxyAddr := net.JoinHostPort(cfg.Host, fmt.Sprintf("%d", cfg.Port))
	dest := socksaddr.New(cfg.DestHost, uint16(cfg.DestPort))

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	var conn net.Conn
	var bound socksaddr.Address

	switch cfg.SocksVersion {
	case 5:
		client := &socks5.Client{ProxyAddr: proxyAddr}
		conn, bound, err = client.Connect(ctx, dest)
	case 6:
		client := &socks6.Client{ProxyAddr: proxyAddr}
		conn, bound, err = client.Connect(ctx, dest, nil)
	default:
		fmt.Fprintf(os.Stderr, "unsupported --socks version %d\n", cfg.SocksVersion)
		return 1
	}
	if err != nil {
		comp.Error("connect via ", proxyAddr, " to ", dest, ": ", err)
		return 1
	}
	defer conn.Close()

	comp.Info("tunnel established, bound address ", bound)

	if _, err := conn.Write([]byte("GET / HTTP/1.0\r\n\r\n")); err != nil {
		comp.Error("write: ", err)
		return 1
	}

	buf := make([]byte, 4096)
	n, err := conn.Read(buf)
	if err != nil && err != io.EOF {
		comp.Error("read: ", err)
		return 1
	}
	os.Stdout.Write(buf[:n])
	return 0
}

// runDetour implements --listen: a local redirector that accepts raw
// connections, reads whatever the caller already wrote before the SOCKS6
// tunnel exists, and forwards those bytes on as the tunnel's initial
// application data instead of making the caller wait for a round trip.
func runDetour(cfg *config.ClientConfig, comp logger.Tagged) int {
	ln, err := net.Listen("tcp", cfg.Listen)
	if err != nil {
		comp.Error("listen on ", cfg.Listen, ": ", err)
		return 1
	}
	defer ln.Close()

	proxyAddr := net.JoinHostPort(cfg.Host, fmt.Sprintf("%d", cfg.Port))
	dest := socksaddr.New(cfg.DestHost, uint16(cfg.DestPort))
	comp.Info("detour listening on ", cfg.Listen, ", forwarding through ", proxyAddr, " to ", dest)

	for {
		inbound, err := ln.Accept()
		if err != nil {
			comp.Error("accept: ", err)
			return 1
		}
		go handleDetourConn(inbound, proxyAddr, dest, comp)
	}
}

func handleDetourConn(inbound net.Conn, proxyAddr string, dest socksaddr.Address, comp logger.Tagged) {
	defer inbound.Close()

	initialData, err := session.TryReadInitialData(inbound, 16*1024, 200*time.Millisecond)
	if err != nil {
		comp.Error("peek initial data from ", inbound.RemoteAddr(), ": ", err)
		return
	}

	client := &socks6.Client{ProxyAddr: proxyAddr}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	tunnel, bound, err := client.Connect(ctx, dest, initialData)
	if err != nil {
		comp.Error("connect via ", proxyAddr, " to ", dest, ": ", err)
		return
	}
	defer tunnel.Close()

	comp.Info("detour tunnel established for ", inbound.RemoteAddr(), ", bound address ", bound)
	session.CopyBidirectional(inbound, tunnel)
}
