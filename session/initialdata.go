package session

import (
	"net"
	"time"
)

// TryReadInitialData attempts a single non-blocking read of whatever bytes a
// freshly accepted connection has already sent, up to maxLen bytes, within a
// short deadline. It returns a nil slice (not an error) when nothing arrives
// before the deadline, since "no initial data yet" is the expected common
// case for a connection that hasn't sent anything, not a failure. Adapted
// from try_read_initial_data in the system this protocol was distilled from:
// a single read attempt, not a buffering peek, so the bytes it returns are
// consumed from the stream rather than replayed.
func TryReadInitialData(conn net.Conn, maxLen int, within time.Duration) ([]byte, error) {
	if err := conn.SetReadDeadline(time.Now().Add(within)); err != nil {
		return nil, err
	}
	defer conn.SetReadDeadline(time.Time{})

	buf := make([]byte, maxLen)
	n, err := conn.Read(buf)
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return nil, nil
		}
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	return buf[:n], nil
}
