package session

import (
	"context"
	"net"
)

// ReadWithContext reads from c, honoring ctx cancellation/timeout. Adapted
// from the teacher's utils.ReadWithContext: a blocking net.Conn.Read doesn't
// observe context directly, so the read runs on a goroutine and the caller
// races it against ctx.Done().
func ReadWithContext(ctx context.Context, c net.Conn, buf []byte) (int, error) {
	type result struct {
		n   int
		err error
	}
	readCh := make(chan result, 1)

	go func() {
		n, err := c.Read(buf)
		readCh <- result{n, err}
	}()

	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	case r := <-readCh:
		return r.n, r.err
	}
}
