package socks6

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"net"

	"github.com/rostam-dev/socksx/internal/protoerr"
	"github.com/rostam-dev/socksx/session"
	"github.com/rostam-dev/socksx/socksaddr"
	"github.com/rostam-dev/socksx/socksopt"
)

// Client connects to a SOCKS6 proxy and negotiates a CONNECT tunnel,
// optionally carrying initial application data and extra options (such as a
// forwarded SocksChain's metadata) in the request.
type Client struct {
	ProxyAddr string
	Creds     *Credentials
}

// Connect dials the proxy, sends dest plus any extraOptions and initialData,
// and returns the established stream plus the server-reported binding
// address. initialData is transmitted immediately after the request, per
// §4.4's "client side mirrors these steps".
func (c *Client) Connect(ctx context.Context, dest socksaddr.Address, initialData []byte, extraOptions ...socksopt.Option) (net.Conn, socksaddr.Address, error) {
	resolved, err := session.ResolveAddr(ctx, c.ProxyAddr)
	if err != nil {
		return nil, socksaddr.Address{}, errors.Join(protoerr.ErrDialFailed, err)
	}
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", resolved.String())
	if err != nil {
		return nil, socksaddr.Address{}, errors.Join(protoerr.ErrDialFailed, err)
	}

	methods := []socksopt.AuthMethod{socksopt.AuthNoAuthentication}
	if c.Creds != nil {
		methods = []socksopt.AuthMethod{socksopt.AuthUsernamePassword}
	}
	opts := append([]socksopt.Option{
		socksopt.AuthMethodAdvertisement{InitialDataLength: uint16(len(initialData)), Methods: methods},
	}, extraOptions...)

	if err := c.writeRequest(conn, dest, opts); err != nil {
		conn.Close()
		return nil, socksaddr.Address{}, err
	}
	if len(initialData) > 0 {
		if _, err := conn.Write(initialData); err != nil {
			conn.Close()
			return nil, socksaddr.Address{}, errors.Join(protoerr.ErrIO, err)
		}
	}

	method, err := readAuthReply(conn)
	if err != nil {
		conn.Close()
		return nil, socksaddr.Address{}, err
	}
	if method == socksopt.AuthNoAcceptableMethod {
		conn.Close()
		return nil, socksaddr.Address{}, protoerr.ErrNoAcceptableAuthMethod
	}
	if method == socksopt.AuthUsernamePassword {
		if c.Creds == nil {
			conn.Close()
			return nil, socksaddr.Address{}, errors.Join(protoerr.ErrProtocolViolation, errors.New("server requires credentials but client has none"))
		}
		if err := c.authenticate(conn); err != nil {
			conn.Close()
			return nil, socksaddr.Address{}, err
		}
	}

	code, binding, err := readOperationReply(ctx, conn)
	if err != nil {
		conn.Close()
		return nil, socksaddr.Address{}, err
	}
	if code != ReplySuccess {
		conn.Close()
		return nil, socksaddr.Address{}, fmt.Errorf("%w: reply code %d", protoerr.ErrRefused, code)
	}
	return conn, binding, nil
}

func (c *Client) writeRequest(conn net.Conn, dest socksaddr.Address, opts []socksopt.Option) error {
	encodedOpts := socksopt.EncodeAll(opts)
	buf := make([]byte, 0, 4+len(dest.Encode())+len(encodedOpts))
	buf = append(buf, version, cmdConnect)
	buf = append(buf, dest.Encode()...)
	buf = append(buf, 0) // padding
	buf = binary.BigEndian.AppendUint16(buf, uint16(len(encodedOpts)))
	buf = append(buf, encodedOpts...)
	if _, err := conn.Write(buf); err != nil {
		return errors.Join(protoerr.ErrIO, err)
	}
	return nil
}

func (c *Client) authenticate(conn net.Conn) error {
	creds := socksaddr.Credentials{Username: []byte(c.Creds.Username), Password: []byte(c.Creds.Password)}
	buf, err := creds.Encode()
	if err != nil {
		return err
	}
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

func readAuthReply(conn net.Conn) (socksopt.AuthMethod, error) {
	hdr := make([]byte, 4)
	if _, err := conn.Read(hdr); err != nil {
		return 0, errors.Join(protoerr.ErrSocks6UnableToReadReply, err)
	}
	totalLength := binary.BigEndian.Uint16(hdr[2:4])
	if totalLength < 4 {
		return 0, errors.Join(protoerr.ErrSocks6UnableToReadReply, errors.New("malformed auth reply option"))
	}
	rest := make([]byte, totalLength-4)
	if len(rest) > 0 {
		if _, err := conn.Read(rest); err != nil {
			return 0, errors.Join(protoerr.ErrSocks6UnableToReadReply, err)
		}
	}
	frame := append(hdr, rest...)
	opts, err := socksopt.Decode(frame)
	if err != nil {
		return 0, errors.Join(protoerr.ErrSocks6UnableToReadReply, err)
	}
	for _, o := range opts {
		if sel, ok := o.(socksopt.AuthMethodSelection); ok {
			return sel.Method, nil
		}
	}
	return 0, errors.Join(protoerr.ErrProtocolViolation, errors.New("auth reply carried no AuthMethodSelection"))
}

func readOperationReply(ctx context.Context, conn net.Conn) (byte, socksaddr.Address, error) {
	hdr := make([]byte, 2)
	if _, err := conn.Read(hdr); err != nil {
		return 0, socksaddr.Address{}, errors.Join(protoerr.ErrSocks6UnableToReadReply, err)
	}
	if hdr[0] != version {
		return 0, socksaddr.Address{}, errors.Join(protoerr.ErrSocks6UnsupportedVersion, fmt.Errorf("got version %d", hdr[0]))
	}
	code := hdr[1]

	binding, err := socksaddr.ReadAddress(ctx, conn)
	if err != nil {
		return 0, socksaddr.Address{}, errors.Join(protoerr.ErrSocks6UnableToReadReply, err)
	}

	tail := make([]byte, 3)
	if _, err := conn.Read(tail); err != nil {
		return 0, socksaddr.Address{}, errors.Join(protoerr.ErrSocks6UnableToReadReply, err)
	}
	optLen := binary.BigEndian.Uint16(tail[1:3])
	if optLen > 0 {
		discard := make([]byte, optLen)
		if _, err := conn.Read(discard); err != nil {
			return 0, socksaddr.Address{}, errors.Join(protoerr.ErrSocks6UnableToReadReply, err)
		}
	}
	return code, binding, nil
}
