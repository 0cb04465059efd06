// Package session implements the per-connection lifecycle shared by both
// protocol versions: admission control, handshake dispatch, and the
// bidirectional byte pump that runs until either side closes.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/rostam-dev/socksx/internal/logger"
	"github.com/rostam-dev/socksx/internal/protoerr"
)

var log = logger.Component("session")

// Handler is the capability interface a per-version protocol handler
// implements. A server selects the v5 or v6 variant at construction time and
// shares the interface downstream, never branching on version again.
type Handler interface {
	// Setup runs the handshake against client and returns the connection to
	// the destination, ready to relay.
	Setup(ctx context.Context, client net.Conn) (dest net.Conn, err error)
	// RefuseRequest writes a protocol-appropriate failure reply to client
	// and is called when admission control rejects a connection outright,
	// without running Setup.
	RefuseRequest(client net.Conn)
}

// Limiter is a non-blocking admission-control permit counter. A zero value
// (nil *Limiter, or capacity 0) means unlimited.
type Limiter struct {
	permits chan struct{}
}

// NewLimiter builds a Limiter bounding in-flight sessions to capacity.
// capacity <= 0 means unlimited (TryAcquire always succeeds).
func NewLimiter(capacity int) *Limiter {
	if capacity <= 0 {
		return nil
	}
	l := &Limiter{permits: make(chan struct{}, capacity)}
	for i := 0; i < capacity; i++ {
		l.permits <- struct{}{}
	}
	return l
}

// TryAcquire takes one permit without blocking. It always succeeds on a nil
// Limiter.
func (l *Limiter) TryAcquire() bool {
	if l == nil {
		return true
	}
	select {
	case <-l.permits:
		return true
	default:
		return false
	}
}

// Release returns a permit. A no-op on a nil Limiter.
func (l *Limiter) Release() {
	if l == nil {
		return
	}
	l.permits <- struct{}{}
}

// AcceptRequest runs the full per-connection lifecycle: try admission,
// refuse on failure, otherwise hand off to the handler's Setup and then pump
// bytes bidirectionally until both directions drain. The client connection is
// always closed on return; the destination connection (if Setup succeeded)
// is closed too.
func AcceptRequest(ctx context.Context, h Handler, limiter *Limiter, client net.Conn) {
	start := time.Now()
	defer client.Close()

	if !limiter.TryAcquire() {
		log.Warn(fmt.Errorf("%w: remote=%s", protoerr.ErrAdmissionRejected, client.RemoteAddr()))
		h.RefuseRequest(client)
		return
	}
	defer limiter.Release()

	dest, err := h.Setup(ctx, client)
	if err != nil {
		log.Warn("setup failed for", client.RemoteAddr(), ":", err)
		return
	}
	defer dest.Close()

	log.Debug("proxying", client.RemoteAddr(), "<->", dest.RemoteAddr())
	CopyBidirectional(client, dest)
	log.Info("session", client.RemoteAddr(), "<->", dest.RemoteAddr(), "completed in", time.Since(start))
}

// halfCloser is implemented by net.TCPConn and similar connections that can
// shut down one direction without tearing down the whole socket.
type halfCloser interface {
	CloseWrite() error
}

// CopyBidirectional concurrently shuttles bytes a->b and b->a. When either
// direction observes EOF it half-closes the opposite direction's write side
// (if supported) so the peer sees a clean end-of-stream; it returns once both
// directions have drained.
func CopyBidirectional(a, b net.Conn) {
	var wg sync.WaitGroup
	wg.Add(2)

	pump := func(dst, src net.Conn) {
		defer wg.Done()
		_, err := io.Copy(dst, src)
		if hc, ok := dst.(halfCloser); ok {
			hc.CloseWrite()
		} else {
			dst.Close()
		}
		if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
			log.Debug("relay error:", err)
		}
	}

	go pump(b, a)
	go pump(a, b)
	wg.Wait()
}
