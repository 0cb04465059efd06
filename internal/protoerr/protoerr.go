// Package protoerr defines the sentinel error taxonomy shared by every
// socksx protocol package. Every returned error wraps one of these via
// errors.Join or fmt.Errorf("...: %w", ...), so callers can classify a
// failure with errors.Is regardless of which package produced it.
package protoerr

import "errors"

// Cause families, matching the classification a SOCKS implementation needs
// to pick a wire-level reply code or CLI exit behavior.
var (
	// ErrProtocolViolation marks a malformed or out-of-sequence wire message.
	ErrProtocolViolation = errors.New("protocol violation")
	// ErrAuthenticationFailed marks a rejected credential exchange.
	ErrAuthenticationFailed = errors.New("authentication failed")
	// ErrNoAcceptableAuthMethod marks a handshake where client and server
	// advertise no common authentication method.
	ErrNoAcceptableAuthMethod = errors.New("no acceptable authentication method")
	// ErrDestinationUnreachable marks a failure to dial the requested target.
	ErrDestinationUnreachable = errors.New("destination unreachable")
	// ErrRefused marks a request the server understood but declines to serve
	// (e.g. an unsupported command, a chain that exceeds capacity).
	ErrRefused = errors.New("request refused")
	// ErrIO marks a failure in the underlying transport.
	ErrIO = errors.New("i/o error")
	// ErrConfig marks a misconfiguration discovered at startup.
	ErrConfig = errors.New("configuration error")
)

// Socks5 wire-stage errors.
var (
	ErrSocks5UnableToReadVersion  = errors.New("unable to read SOCKS5 version")
	ErrSocks5UnsupportedVersion   = errors.New("unsupported SOCKS5 version")
	ErrSocks5InvalidNMethods      = errors.New("invalid SOCKS5 nmethods value")
	ErrSocks5UnableToReadMethods  = errors.New("unable to read SOCKS5 methods")
	ErrSocks5UnableToSendMethod   = errors.New("unable to send SOCKS5 method selection")
	ErrSocks5UnableToReadAuthReq  = errors.New("unable to read SOCKS5 username/password request")
	ErrSocks5UnableToSendAuthRes  = errors.New("unable to send SOCKS5 username/password response")
	ErrSocks5UnableToReadRequest  = errors.New("unable to read SOCKS5 request")
	ErrSocks5UnsupportedCommand   = errors.New("unsupported SOCKS5 command")
	ErrSocks5UnableToReadAddress  = errors.New("unable to read SOCKS5 address")
	ErrSocks5UnsupportedAddrType  = errors.New("unsupported SOCKS5 address type")
	ErrSocks5UnableToSendReply    = errors.New("unable to send SOCKS5 reply")
	ErrSocks5HandshakeTimeout     = errors.New("SOCKS5 handshake timed out")
)

// Socks6 wire-stage errors.
var (
	ErrSocks6UnableToReadVersion = errors.New("unable to read SOCKS6 version")
	ErrSocks6UnsupportedVersion  = errors.New("unsupported SOCKS6 version")
	ErrSocks6UnableToReadRequest = errors.New("unable to read SOCKS6 request")
	ErrSocks6UnableToReadOptions = errors.New("unable to read SOCKS6 options")
	ErrSocks6UnableToSendReply   = errors.New("unable to send SOCKS6 reply")
	ErrSocks6UnableToReadReply   = errors.New("unable to read SOCKS6 reply")
	ErrSocks6HandshakeTimeout    = errors.New("SOCKS6 handshake timed out")
)

// Option codec errors.
var (
	ErrOptionTooShort       = errors.New("option frame too short")
	ErrOptionLengthMismatch = errors.New("option length field does not match frame")
	ErrOptionUnknownKind    = errors.New("unrecognized option kind")
)

// Address/chain errors.
var (
	ErrAddressInvalid      = errors.New("invalid address")
	ErrProxyAddressInvalid = errors.New("invalid proxy address")
	ErrChainEmpty          = errors.New("chain has no further hops")
)

// Session/admission errors.
var (
	ErrListenFailed      = errors.New("failed to start listening")
	ErrAcceptFailed      = errors.New("failed to accept incoming connection")
	ErrDialFailed        = errors.New("failed to dial destination")
	ErrAdmissionRejected = errors.New("session rejected: at capacity")
	ErrTransferFailed    = errors.New("data transfer failed")
)
