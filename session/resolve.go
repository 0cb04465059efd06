package session

import (
	"context"
	"errors"
	"net"
	"net/netip"

	"github.com/rostam-dev/socksx/internal/protoerr"
)

// ResolveAddr turns host (a "host:port" pair, where host may already be a
// literal IP or a domain name) into a concrete netip.AddrPort. A literal
// address is parsed directly; otherwise host is resolved via the default
// DNS resolver and the first returned address is used. Adapted from
// resolve_addr in the system this protocol was distilled from, which tries
// a literal parse first and falls back to a host lookup, taking the first
// result.
func ResolveAddr(ctx context.Context, host string) (netip.AddrPort, error) {
	if ap, err := netip.ParseAddrPort(host); err == nil {
		return ap, nil
	}

	h, portStr, err := net.SplitHostPort(host)
	if err != nil {
		return netip.AddrPort{}, errors.Join(protoerr.ErrAddressInvalid, err)
	}
	port, err := net.LookupPort("tcp", portStr)
	if err != nil {
		return netip.AddrPort{}, errors.Join(protoerr.ErrAddressInvalid, err)
	}

	if ip, err := netip.ParseAddr(h); err == nil {
		return netip.AddrPortFrom(ip, uint16(port)), nil
	}

	ips, err := net.DefaultResolver.LookupHost(ctx, h)
	if err != nil {
		return netip.AddrPort{}, errors.Join(protoerr.ErrDestinationUnreachable, err)
	}
	if len(ips) == 0 {
		return netip.AddrPort{}, errors.Join(protoerr.ErrDestinationUnreachable, errors.New("domain name didn't resolve to an address"))
	}
	ip, err := netip.ParseAddr(ips[0])
	if err != nil {
		return netip.AddrPort{}, errors.Join(protoerr.ErrDestinationUnreachable, err)
	}
	return netip.AddrPortFrom(ip, uint16(port)), nil
}
