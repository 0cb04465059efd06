//go:build !linux && !windows

package osdst

import (
	"fmt"
	"net"
	"net/netip"
	"runtime"
)

// GetOriginalDst is unimplemented on platforms other than Linux and Windows;
// callers receive an explicit failure rather than a silent no-op.
func GetOriginalDst(conn *net.TCPConn) (netip.AddrPort, error) {
	return netip.AddrPort{}, fmt.Errorf("osdst: GetOriginalDst is not implemented on %s", runtime.GOOS)
}
