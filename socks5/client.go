package socks5

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/rostam-dev/socksx/internal/protoerr"
	"github.com/rostam-dev/socksx/socksaddr"
)

// Client connects to a SOCKS5 proxy and negotiates a CONNECT tunnel to a
// destination, mirroring the server-side state machine from the client's
// perspective.
type Client struct {
	ProxyAddr string // host:port of the SOCKS5 proxy
	Creds     *Credentials
}

// Connect dials the proxy, runs the handshake for dest, and returns the
// established stream plus the server-reported binding address.
func (c *Client) Connect(ctx context.Context, dest socksaddr.Address) (net.Conn, socksaddr.Address, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", c.ProxyAddr)
	if err != nil {
		return nil, socksaddr.Address{}, errors.Join(protoerr.ErrDialFailed, err)
	}

	if err := c.handshake(ctx, conn, dest); err != nil {
		conn.Close()
		return nil, socksaddr.Address{}, err
	}

	binding, err := readReplyAddress(ctx, conn)
	if err != nil {
		conn.Close()
		return nil, socksaddr.Address{}, err
	}
	return conn, binding, nil
}

func (c *Client) handshake(ctx context.Context, conn net.Conn, dest socksaddr.Address) error {
	methods := []byte{methodNoAuth}
	if c.Creds != nil {
		methods = []byte{methodUserPass}
	}
	greeting := append([]byte{version, byte(len(methods))}, methods...)
	if _, err := conn.Write(greeting); err != nil {
		return errors.Join(protoerr.ErrIO, err)
	}

	sel := make([]byte, 2)
	if _, err := conn.Read(sel); err != nil {
		return errors.Join(protoerr.ErrIO, err)
	}
	if sel[0] != version {
		return errors.Join(protoerr.ErrSocks5UnsupportedVersion, fmt.Errorf("got version %d", sel[0]))
	}
	switch sel[1] {
	case methodNoAcceptable:
		return protoerr.ErrNoAcceptableAuthMethod
	case methodUserPass:
		if c.Creds == nil {
			return errors.Join(protoerr.ErrProtocolViolation, errors.New("server selected username/password but client has no credentials"))
		}
		if err := c.authenticate(conn); err != nil {
			return err
		}
	}

	req := make([]byte, 0, 6+len(dest.Encode()))
	req = append(req, version, cmdConnect, 0)
	req = append(req, dest.Encode()...)
	if _, err := conn.Write(req); err != nil {
		return errors.Join(protoerr.ErrIO, err)
	}
	return nil
}

func (c *Client) authenticate(conn net.Conn) error {
	buf := make([]byte, 0, 3+len(c.Creds.Username)+len(c.Creds.Password))
	buf = append(buf, authVersion, byte(len(c.Creds.Username)))
	buf = append(buf, c.Creds.Username...)
	buf = append(buf, byte(len(c.Creds.Password)))
	buf = append(buf, c.Creds.Password...)
	if _, err := conn.Write(buf); err != nil {
		return errors.Join(protoerr.ErrIO, err)
	}
	res := make([]byte, 2)
	if _, err := conn.Read(res); err != nil {
		return errors.Join(protoerr.ErrIO, err)
	}
	if res[1] != authSuccess {
		return protoerr.ErrAuthenticationFailed
	}
	return nil
}

func readReplyAddress(ctx context.Context, conn net.Conn) (socksaddr.Address, error) {
	hdr := make([]byte, 4)
	if _, err := conn.Read(hdr); err != nil {
		return socksaddr.Address{}, errors.Join(protoerr.ErrIO, err)
	}
	if hdr[0] != version {
		return socksaddr.Address{}, errors.Join(protoerr.ErrSocks5UnsupportedVersion, fmt.Errorf("got version %d", hdr[0]))
	}
	if hdr[1] != ReplySuccess {
		return socksaddr.Address{}, fmt.Errorf("%w: reply code %d", protoerr.ErrRefused, hdr[1])
	}
	// atyp is hdr[3]; re-dispatch through ReadAddress by pushing it back via
	// a tiny prefix reader since ReadAddress expects to read the atyp byte
	// itself.
	return socksaddr.ReadAddress(ctx, &prefixedReader{prefix: hdr[3:4], r: conn})
}

// prefixedReader serves a single already-read prefix byte before falling
// through to the underlying reader, so readReplyAddress can reuse
// socksaddr.ReadAddress without re-reading the atyp byte from the wire.
type prefixedReader struct {
	prefix []byte
	r      interface{ Read([]byte) (int, error) }
}

func (p *prefixedReader) Read(b []byte) (int, error) {
	if len(p.prefix) > 0 {
		n := copy(b, p.prefix)
		p.prefix = p.prefix[n:]
		return n, nil
	}
	return p.r.Read(b)
}
