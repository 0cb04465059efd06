//go:build windows

package osdst

import (
	"fmt"
	"net"
	"net/netip"
	"runtime"
)

// GetOriginalDst is unimplemented on Windows: there is no stable, documented
// getsockopt analogue to Linux's SO_ORIGINAL_DST for WFP/NAT redirection
// reachable from golang.org/x/sys/windows, so callers on this platform get
// an explicit failure rather than a guessed implementation.
func GetOriginalDst(conn *net.TCPConn) (netip.AddrPort, error) {
	return netip.AddrPort{}, fmt.Errorf("osdst: GetOriginalDst is not implemented on %s", runtime.GOOS)
}
