//go:build linux

// Package osdst recovers the pre-NAT destination of a transparently
// redirected TCP connection, for callers building an iptables-style
// transparent redirector in front of the core proxy. Out of scope for the
// core protocol; specified only by its signature.
package osdst

import (
	"net"
	"net/netip"
	"unsafe"

	"golang.org/x/sys/unix"
)

// GetOriginalDst recovers the original destination of conn before it was
// redirected by an iptables REDIRECT/TPROXY rule, via the Linux
// SO_ORIGINAL_DST socket option.
func GetOriginalDst(conn *net.TCPConn) (netip.AddrPort, error) {
	rawConn, err := conn.SyscallConn()
	if err != nil {
		return netip.AddrPort{}, err
	}

	var addr netip.AddrPort
	var sockErr error
	ctrlErr := rawConn.Control(func(fd uintptr) {
		var sa unix.RawSockaddrInet4
		size := uint32(unix.SizeofSockaddrInet4)
		_, _, errno := unix.Syscall6(
			unix.SYS_GETSOCKOPT,
			fd,
			uintptr(unix.IPPROTO_IP),
			uintptr(unix.SO_ORIGINAL_DST),
			uintptr(unsafe.Pointer(&sa)),
			uintptr(unsafe.Pointer(&size)),
			0,
		)
		if errno != 0 {
			sockErr = errno
			return
		}
		port := uint16(sa.Port>>8) | uint16(sa.Port<<8)
		ip := netip.AddrFrom4([4]byte{sa.Addr[0], sa.Addr[1], sa.Addr[2], sa.Addr[3]})
		addr = netip.AddrPortFrom(ip, port)
	})
	if ctrlErr != nil {
		return netip.AddrPort{}, ctrlErr
	}
	return addr, sockErr
}
