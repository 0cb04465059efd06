// Package socks6 implements the version-6 SOCKS protocol: the compact
// request/reply frame, option exchange, auth selection, and SocksChain
// forwarding.
package socks6

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"net"

	"github.com/rostam-dev/socksx/chain"
	"github.com/rostam-dev/socksx/internal/logger"
	"github.com/rostam-dev/socksx/internal/protoerr"
	"github.com/rostam-dev/socksx/session"
	"github.com/rostam-dev/socksx/socksaddr"
	"github.com/rostam-dev/socksx/socksopt"
)

var log = logger.Component("socks6")

const version byte = 6
const cmdConnect byte = 0x01

// Reply codes share the version-5 taxonomy (§4.4).
const (
	ReplySuccess                 byte = 0
	ReplyGeneralFailure          byte = 1
	ReplyConnectionNotAllowed    byte = 2
	ReplyNetworkUnreachable      byte = 3
	ReplyHostUnreachable         byte = 4
	ReplyConnectionRefused       byte = 5
	ReplyTTLExpired              byte = 6
	ReplyCommandNotSupported     byte = 7
	ReplyAddressTypeNotSupported byte = 8
	ReplyConnectionAttemptTimeOut byte = 9
)

// Credentials is the optional username/password a Handler checks during
// sub-negotiation.
type Credentials struct {
	Username string
	Password string
}

// Handler is the server-side SOCKS6 session.Handler.
type Handler struct {
	Creds       []Credentials
	DialTimeout func(ctx context.Context, network, addr string) (net.Conn, error)

	// Chain is this server's own configured proxy chain (--chain), used as
	// the walk to continue when an incoming request carries no chain
	// metadata of its own — i.e. when this server is the entry point of a
	// statically configured chain rather than an intermediate hop relaying
	// a chain a client already started.
	Chain chain.SocksChain
}

var _ session.Handler = (*Handler)(nil)

type request struct {
	dst     socksaddr.Address
	options []socksopt.Option
}

func dial(ctx context.Context, network, addr string) (net.Conn, error) {
	var d net.Dialer
	return d.DialContext(ctx, network, addr)
}

func dialFn(h *Handler) func(ctx context.Context, network, addr string) (net.Conn, error) {
	if h.DialTimeout != nil {
		return h.DialTimeout
	}
	return dial
}

// Setup runs the full server-side handshake (§4.4).
func (h *Handler) Setup(ctx context.Context, client net.Conn) (net.Conn, error) {
	req, err := readRequest(ctx, client)
	if err != nil {
		writeAuthReply(client, socksopt.AuthNoAcceptableMethod)
		return nil, err
	}

	advert := findAdvertisement(req.options)
	method := h.selectMethod(advert.Methods)

	if err := writeAuthReply(client, method); err != nil {
		return nil, err
	}
	if method == socksopt.AuthNoAcceptableMethod {
		return nil, protoerr.ErrNoAcceptableAuthMethod
	}
	if method == socksopt.AuthUsernamePassword {
		if err := h.authenticate(ctx, client); err != nil {
			h.writeOperationReply(client, ReplyConnectionNotAllowed, socksaddr.Address{})
			return nil, err
		}
	}

	var initialData []byte
	if advert.InitialDataLength > 0 {
		initialData = make([]byte, advert.InitialDataLength)
		if _, err := session.ReadWithContext(ctx, client, initialData); err != nil {
			return nil, errors.Join(protoerr.ErrProtocolViolation, err)
		}
	}

	ch, err := chain.FromOptions(req.options)
	if err != nil {
		h.writeOperationReply(client, ReplyGeneralFailure, socksaddr.Address{})
		return nil, err
	}
	if len(ch.Links) == 0 && len(h.Chain.Links) > 0 {
		ch = h.Chain
	}

	var dest net.Conn
	if len(ch.Links) > 0 && ch.HasNext() {
		// Forward through the next hop: the original final destination
		// (req.dst) is preserved, and the advanced chain is re-encoded into
		// metadata so the next hop can continue the walk (§4.4 step 5).
		next := ch.NextLink()
		nextLink := next.Current()
		nextClient := &Client{ProxyAddr: net.JoinHostPort(nextLink.Host, portString(nextLink.Port))}
		if nextLink.Credentials != nil {
			nextClient.Creds = &Credentials{Username: string(nextLink.Credentials.Username), Password: string(nextLink.Credentials.Password)}
		}
		d, _, err := nextClient.Connect(ctx, req.dst, initialData, next.AsOptions()...)
		if err != nil {
			h.writeOperationReply(client, classifyDialError(err), socksaddr.Address{})
			return nil, errors.Join(protoerr.ErrDestinationUnreachable, err)
		}
		dest = d
		initialData = nil // already forwarded by nextClient.Connect
	} else {
		d, err := dialFn(h)(ctx, "tcp", req.dst.String())
		if err != nil {
			h.writeOperationReply(client, classifyDialError(err), socksaddr.Address{})
			return nil, errors.Join(protoerr.ErrDestinationUnreachable, err)
		}
		dest = d
	}

	if len(initialData) > 0 {
		if _, err := dest.Write(initialData); err != nil {
			dest.Close()
			return nil, errors.Join(protoerr.ErrIO, err)
		}
	}

	if err := h.writeOperationReply(client, ReplySuccess, socksaddr.Address{}); err != nil {
		dest.Close()
		return nil, err
	}
	return dest, nil
}

func portString(p uint16) string {
	return fmt.Sprintf("%d", p)
}

// RefuseRequest writes a ConnectionRefused operation reply.
func (h *Handler) RefuseRequest(client net.Conn) {
	h.writeOperationReply(client, ReplyConnectionRefused, socksaddr.Address{})
}

func readRequest(ctx context.Context, c net.Conn) (request, error) {
	hdr := make([]byte, 2)
	if _, err := session.ReadWithContext(ctx, c, hdr); err != nil {
		return request{}, errors.Join(protoerr.ErrSocks6UnableToReadVersion, err)
	}
	if hdr[0] != version {
		return request{}, errors.Join(protoerr.ErrSocks6UnsupportedVersion, fmt.Errorf("got version %d", hdr[0]))
	}
	if hdr[1] != cmdConnect {
		return request{}, errors.Join(protoerr.ErrProtocolViolation, fmt.Errorf("unsupported command %d", hdr[1]))
	}

	dst, err := socksaddr.ReadAddress(ctx, c)
	if err != nil {
		return request{}, errors.Join(protoerr.ErrSocks6UnableToReadRequest, err)
	}

	pad := make([]byte, 1)
	if _, err := session.ReadWithContext(ctx, c, pad); err != nil {
		return request{}, errors.Join(protoerr.ErrSocks6UnableToReadRequest, err)
	}

	optLenBuf := make([]byte, 2)
	if _, err := session.ReadWithContext(ctx, c, optLenBuf); err != nil {
		return request{}, errors.Join(protoerr.ErrSocks6UnableToReadRequest, err)
	}
	optLen := binary.BigEndian.Uint16(optLenBuf)

	var opts []socksopt.Option
	if optLen > 0 {
		raw := make([]byte, optLen)
		if _, err := session.ReadWithContext(ctx, c, raw); err != nil {
			return request{}, errors.Join(protoerr.ErrSocks6UnableToReadOptions, err)
		}
		opts, err = socksopt.Decode(raw)
		if err != nil {
			return request{}, errors.Join(protoerr.ErrSocks6UnableToReadOptions, err)
		}
	}

	return request{dst: dst, options: opts}, nil
}

func findAdvertisement(opts []socksopt.Option) socksopt.AuthMethodAdvertisement {
	for _, o := range opts {
		if a, ok := o.(socksopt.AuthMethodAdvertisement); ok {
			return a
		}
	}
	return socksopt.AuthMethodAdvertisement{Methods: []socksopt.AuthMethod{socksopt.AuthNoAuthentication}}
}

func (h *Handler) selectMethod(offered []socksopt.AuthMethod) socksopt.AuthMethod {
	hasUserPass, hasNoAuth := false, false
	for _, m := range offered {
		switch m {
		case socksopt.AuthUsernamePassword:
			hasUserPass = true
		case socksopt.AuthNoAuthentication:
			hasNoAuth = true
		}
	}
	// An advertisement with an empty Methods slice (the common "no
	// authentication" shorthand per §4.3) is treated as implicitly offering
	// NoAuthentication.
	if len(offered) == 0 {
		hasNoAuth = true
	}
	if len(h.Creds) > 0 && hasUserPass {
		return socksopt.AuthUsernamePassword
	}
	if hasNoAuth {
		return socksopt.AuthNoAuthentication
	}
	return socksopt.AuthNoAcceptableMethod
}

func writeAuthReply(c net.Conn, method socksopt.AuthMethod) error {
	opts := []socksopt.Option{socksopt.AuthMethodSelection{Method: method}}
	buf := socksopt.EncodeAll(opts)
	if _, err := c.Write(buf); err != nil {
		return errors.Join(protoerr.ErrSocks6UnableToSendReply, err)
	}
	return nil
}

const (
	authVersion byte = 0x01
	authSuccess byte = 0x00
	authFailed  byte = 0x01
)

func (h *Handler) authenticate(ctx context.Context, c net.Conn) error {
	creds, err := socksaddr.ReadCredentials(ctx, c)
	if err != nil {
		return err
	}
	ok := false
	for _, cred := range h.Creds {
		if string(creds.Username) == cred.Username && string(creds.Password) == cred.Password {
			ok = true
			break
		}
	}
	status := authFailed
	if ok {
		status = authSuccess
	}
	if _, err := c.Write([]byte{authVersion, status}); err != nil {
		return errors.Join(protoerr.ErrIO, err)
	}
	if !ok {
		return protoerr.ErrAuthenticationFailed
	}
	return nil
}

// writeOperationReply emits: ver=6 || reply_code || binding_addr || pad=0 ||
// options_length=0 || options, per §4.4 step 7. The binding address layout
// pins the field order specified by the reference draft this protocol was
// distilled from: reply_code then binding address then padding then
// options_length.
func (h *Handler) writeOperationReply(c net.Conn, code byte, binding socksaddr.Address) error {
	if binding.Kind == 0 && binding.IP == nil && binding.Host == "" {
		binding = socksaddr.New("0.0.0.0", 0)
	}
	buf := make([]byte, 0, 8+len(binding.Encode()))
	buf = append(buf, version, code)
	buf = append(buf, binding.Encode()...)
	buf = append(buf, 0) // padding
	buf = binary.BigEndian.AppendUint16(buf, 0) // options_length
	if _, err := c.Write(buf); err != nil {
		return errors.Join(protoerr.ErrSocks6UnableToSendReply, err)
	}
	return nil
}

func classifyDialError(err error) byte {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ReplyConnectionAttemptTimeOut
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ReplyConnectionAttemptTimeOut
	}
	log.Debug("unclassified dial error:", err)
	return ReplyNetworkUnreachable
}
