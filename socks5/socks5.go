// Package socks5 implements the version-5 SOCKS protocol (RFC 1928/1929):
// the server-side handshake state machine and the client-side mirror.
package socks5

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/rostam-dev/socksx/internal/logger"
	"github.com/rostam-dev/socksx/internal/protoerr"
	"github.com/rostam-dev/socksx/session"
	"github.com/rostam-dev/socksx/socksaddr"
)

var log = logger.Component("socks5")

const version byte = 5

// Method bytes, per RFC 1928.
const (
	methodNoAuth       byte = 0x00
	methodUserPass     byte = 0x02
	methodNoAcceptable byte = 0xFF
)

// Command bytes. Only CONNECT is supported; BIND/UDP ASSOCIATE are Non-goals.
const cmdConnect byte = 0x01

// Reply codes, per §4.2.
const (
	ReplySuccess                  byte = 0
	ReplyGeneralFailure            byte = 1
	ReplyConnectionNotAllowed      byte = 2
	ReplyNetworkUnreachable        byte = 3
	ReplyHostUnreachable           byte = 4
	ReplyConnectionRefused         byte = 5
	ReplyTTLExpired                byte = 6
	ReplyCommandNotSupported       byte = 7
	ReplyAddressTypeNotSupported   byte = 8
	ReplyConnectionAttemptTimeOut  byte = 9
)

// Credentials is the optional username/password a Handler checks during
// sub-negotiation.
type Credentials struct {
	Username string
	Password string
}

// Handler is the server-side SOCKS5 session.Handler. It implements CONNECT
// only and, when Creds is set, selects UsernamePassword authentication
// whenever the client offers it.
type Handler struct {
	// Creds, if non-empty, are the accepted username/password pairs during
	// sub-negotiation. NoAuthentication is used whenever the client offers
	// it and UsernamePassword is not selected.
	Creds []Credentials
	// DialTimeout bounds the destination TCP connect.
	DialTimeout func(ctx context.Context, network, addr string) (net.Conn, error)
}

var _ session.Handler = (*Handler)(nil)

func dial(ctx context.Context, network, addr string) (net.Conn, error) {
	var d net.Dialer
	return d.DialContext(ctx, network, addr)
}

// Setup runs the full server-side handshake (§4.2) and returns the dialed
// destination connection.
func (h *Handler) Setup(ctx context.Context, client net.Conn) (net.Conn, error) {
	dialFn := h.DialTimeout
	if dialFn == nil {
		dialFn = dial
	}

	methods, err := readGreeting(ctx, client)
	if err != nil {
		return nil, err
	}

	method := h.selectMethod(methods)
	if _, werr := client.Write([]byte{version, method}); werr != nil {
		return nil, errors.Join(protoerr.ErrSocks5UnableToSendMethod, werr)
	}
	if method == methodNoAcceptable {
		return nil, protoerr.ErrNoAcceptableAuthMethod
	}

	if method == methodUserPass {
		if err := h.authenticate(ctx, client); err != nil {
			return nil, err
		}
	}

	dst, err := readRequest(ctx, client)
	if err != nil {
		h.writeReply(client, classifyRequestError(err))
		return nil, err
	}

	dest, err := dialFn(ctx, "tcp", dst.String())
	if err != nil {
		h.writeReply(client, classifyDialError(err))
		return nil, errors.Join(protoerr.ErrDestinationUnreachable, err)
	}

	if err := h.writeReply(client, ReplySuccess); err != nil {
		dest.Close()
		return nil, err
	}
	return dest, nil
}

// RefuseRequest writes a ConnectionRefused reply, used when admission
// control rejects the connection before any handshake byte is read.
func (h *Handler) RefuseRequest(client net.Conn) {
	h.writeReply(client, ReplyConnectionRefused)
}

func readGreeting(ctx context.Context, c net.Conn) ([]byte, error) {
	hdr := make([]byte, 2)
	if _, err := session.ReadWithContext(ctx, c, hdr); err != nil {
		return nil, errors.Join(protoerr.ErrSocks5UnableToReadVersion, err)
	}
	if hdr[0] != version {
		return nil, errors.Join(protoerr.ErrSocks5UnsupportedVersion, fmt.Errorf("got version %d", hdr[0]))
	}
	nMethods := hdr[1]
	if nMethods == 0 {
		return nil, errors.Join(protoerr.ErrSocks5InvalidNMethods, errors.New("nmethods is zero"))
	}
	methods := make([]byte, nMethods)
	if _, err := session.ReadWithContext(ctx, c, methods); err != nil {
		return nil, errors.Join(protoerr.ErrSocks5UnableToReadMethods, err)
	}
	return methods, nil
}

// selectMethod applies the priority rule from §4.2: UsernamePassword wins
// when the handler has credentials configured and the client offered it;
// otherwise NoAuthentication if offered; otherwise no acceptable method.
func (h *Handler) selectMethod(offered []byte) byte {
	hasUserPass := false
	hasNoAuth := false
	for _, m := range offered {
		switch m {
		case methodUserPass:
			hasUserPass = true
		case methodNoAuth:
			hasNoAuth = true
		}
	}
	if len(h.Creds) > 0 && hasUserPass {
		return methodUserPass
	}
	if hasNoAuth {
		return methodNoAuth
	}
	return methodNoAcceptable
}

const (
	authVersion byte = 0x01
	authSuccess byte = 0x00
	authFailed  byte = 0x01
)

func (h *Handler) authenticate(ctx context.Context, c net.Conn) error {
	hdr := make([]byte, 1)
	if _, err := session.ReadWithContext(ctx, c, hdr); err != nil {
		return errors.Join(protoerr.ErrSocks5UnableToReadAuthReq, err)
	}
	if hdr[0] != authVersion {
		return errors.Join(protoerr.ErrProtocolViolation, fmt.Errorf("unsupported auth sub-negotiation version %d", hdr[0]))
	}

	ulenBuf := make([]byte, 1)
	if _, err := session.ReadWithContext(ctx, c, ulenBuf); err != nil {
		return errors.Join(protoerr.ErrSocks5UnableToReadAuthReq, err)
	}
	uname := make([]byte, ulenBuf[0])
	if _, err := session.ReadWithContext(ctx, c, uname); err != nil {
		return errors.Join(protoerr.ErrSocks5UnableToReadAuthReq, err)
	}
	plenBuf := make([]byte, 1)
	if _, err := session.ReadWithContext(ctx, c, plenBuf); err != nil {
		return errors.Join(protoerr.ErrSocks5UnableToReadAuthReq, err)
	}
	passwd := make([]byte, plenBuf[0])
	if _, err := session.ReadWithContext(ctx, c, passwd); err != nil {
		return errors.Join(protoerr.ErrSocks5UnableToReadAuthReq, err)
	}

	// Correct credential check: success iff the supplied pair exactly
	// equals one of the configured pairs. (The reference implementation
	// this protocol was distilled from has the inverted check; this is a
	// deliberate correction, not a port of that behavior.)
	ok := false
	for _, cred := range h.Creds {
		if string(uname) == cred.Username && string(passwd) == cred.Password {
			ok = true
			break
		}
	}

	status := authFailed
	if ok {
		status = authSuccess
	}
	if _, err := c.Write([]byte{authVersion, status}); err != nil {
		return errors.Join(protoerr.ErrSocks5UnableToSendAuthRes, err)
	}
	if !ok {
		return protoerr.ErrAuthenticationFailed
	}
	return nil
}

func readRequest(ctx context.Context, c net.Conn) (socksaddr.Address, error) {
	hdr := make([]byte, 3)
	if _, err := session.ReadWithContext(ctx, c, hdr); err != nil {
		return socksaddr.Address{}, errors.Join(protoerr.ErrSocks5UnableToReadRequest, err)
	}
	if hdr[0] != version {
		return socksaddr.Address{}, errors.Join(protoerr.ErrSocks5UnsupportedVersion, fmt.Errorf("got version %d", hdr[0]))
	}
	if hdr[1] != cmdConnect {
		return socksaddr.Address{}, errors.Join(protoerr.ErrSocks5UnsupportedCommand, fmt.Errorf("got command %d", hdr[1]))
	}
	addr, err := socksaddr.ReadAddress(ctx, c)
	if err != nil {
		return socksaddr.Address{}, errors.Join(protoerr.ErrSocks5UnableToReadAddress, err)
	}
	return addr, nil
}

// writeReply emits the fixed reply frame from §4.2: ver, reply_code, rsv=0,
// atyp=1, 0.0.0.0, port=0 — always 10 bytes, matching Invariant 6 exactly.
func (h *Handler) writeReply(c net.Conn, code byte) error {
	reply := []byte{version, code, 0, 1, 0, 0, 0, 0, 0, 0}
	if _, err := c.Write(reply); err != nil {
		return errors.Join(protoerr.ErrSocks5UnableToSendReply, err)
	}
	return nil
}

// classifyRequestError maps a readRequest failure to the reply code that
// best describes it (§4.2): an unsupported command or an invalid address
// (which also covers an unrecognized atyp) get their own specific codes;
// anything else (a read/version failure) falls back to GeneralFailure.
func classifyRequestError(err error) byte {
	if errors.Is(err, protoerr.ErrSocks5UnsupportedCommand) {
		return ReplyCommandNotSupported
	}
	if errors.Is(err, protoerr.ErrAddressInvalid) {
		return ReplyAddressTypeNotSupported
	}
	return ReplyGeneralFailure
}

func classifyDialError(err error) byte {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ReplyConnectionAttemptTimeOut
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ReplyConnectionAttemptTimeOut
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		if opErr.Timeout() {
			return ReplyConnectionAttemptTimeOut
		}
	}
	if errors.Is(err, net.ErrClosed) {
		return ReplyGeneralFailure
	}
	// Best-effort: most dial failures reaching here are refused connections
	// or unreachable hosts; without a syscall.Errno inspection layer (absent
	// from this module's dependency set) a generic network-unreachable code
	// is the closest honest classification.
	log.Debug("unclassified dial error:", err)
	return ReplyNetworkUnreachable
}
