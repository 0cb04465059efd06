// Command socksxd is the SOCKS5/SOCKS6 proxy server. It speaks exactly one
// protocol version per process (selected by --socks), optionally chains
// outbound connections through a fixed sequence of further SOCKS6 hops
// (--chain, repeatable), and bounds the number of concurrently in-flight
// sessions (--limit).
package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rostam-dev/socksx/chain"
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
	cfg, err := config.LoadServerConfig(args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	logger.SetLevel(logger.LevelFromDebugFlag(cfg.Debug))
	comp := logger.Component("socksxd")

	hops, err := parseChain(cfg.Chain)
	if err != nil {
		comp.Error("invalid --chain: ", err)
		return 1
	}
	links := chain.New(hops)

	dialer := net.Dialer{Timeout: time.Duration(cfg.DialTimeoutSeconds) * time.Second}
	dialFn := dialer.DialContext

	var handler session.Handler
	switch cfg.SocksVersion {
	case 5:
		handler = &socks5.Handler{
			Creds:       accountsToSocks5(cfg.Credentials),
			DialTimeout: dialFn,
		}
	case 6:
		handler = &socks6.Handler{
			Creds:       accountsToSocks6(cfg.Credentials),
			DialTimeout: dialFn,
			Chain:       links,
		}
	default:
		comp.Error("unsupported --socks version ", cfg.SocksVersion)
		return 1
	}

	limiter := session.NewLimiter(cfg.Limit)

	addr := net.JoinHostPort(cfg.Host, fmt.Sprintf("%d", cfg.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		comp.Error("listen ", addr, ": ", err)
		return 1
	}
	comp.Info("listening on ", addr, " (socks", cfg.SocksVersion, ", limit=", cfg.Limit, ")")

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		client, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				comp.Info("shutting down")
				return 0
			}
			comp.Warn("accept: ", err)
			continue
		}
		go session.AcceptRequest(ctx, handler, limiter, client)
	}
}

func parseChain(raw []string) ([]socksaddr.ProxyAddress, error) {
	hops := make([]socksaddr.ProxyAddress, 0, len(raw))
	for _, s := range raw {
		pa, err := socksaddr.ParseProxyAddress(s)
		if err != nil {
			return nil, err
		}
		hops = append(hops, pa)
	}
	return hops, nil
}

func accountsToSocks5(accts []config.Account) []socks5.Credentials {
	out := make([]socks5.Credentials, 0, len(accts))
	for _, a := range accts {
		out = append(out, socks5.Credentials{Username: a.Username, Password: a.Password})
	}
	return out
}

func accountsToSocks6(accts []config.Account) []socks6.Credentials {
	out := make([]socks6.Credentials, 0, len(accts))
	for _, a := range accts {
		out = append(out, socks6.Credentials{Username: a.Username, Password: a.Password})
	}
	return out
}
