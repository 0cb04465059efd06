// Package socksopt implements the SOCKS6 option TLV codec: 4-byte-aligned
// kind/length/payload/padding frames carrying auth-method negotiation and
// chain metadata.
package socksopt

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sort"

	"github.com/rostam-dev/socksx/internal/protoerr"
)

// Kind values, per §4.3/§3.
const (
	KindAuthMethodAdvertisement uint16 = 0x0002
	KindAuthMethodSelection     uint16 = 0x0003
	KindMetadata                uint16 = 0xFDE8 // decimal 65000
)

// Well-known Metadata keys used to advertise a SocksChain.
const (
	MetaKeyChainIndex  uint16 = 998
	MetaKeyChainLength uint16 = 999
	MetaKeyChainLinkBase uint16 = 1000
)

// AuthMethod enumerates the SOCKS authentication methods.
type AuthMethod byte

const (
	AuthNoAuthentication   AuthMethod = 0x00
	AuthGssapi             AuthMethod = 0x01
	AuthUsernamePassword   AuthMethod = 0x02
	AuthNoAcceptableMethod AuthMethod = 0xFF
)

// Option is the tagged-union interface every SOCKS6 option implements.
type Option interface {
	// Kind returns the wire kind value for this option.
	Kind() uint16
	// Encode renders the full kind||total_length||payload||padding frame.
	Encode() []byte
}

// frame applies the reference padding formula: the pad length is always
// 4 - (headerAndPayloadLen % 4), which yields a full 4-byte pad word rather
// than zero when the pre-pad length is already 4-byte aligned. This exact
// behavior (verified against the option codec this spec was distilled from)
// is required for Invariant 2: total_length always equals the emitted byte
// count and is always a multiple of 4.
func frame(kind uint16, payload []byte) []byte {
	headerAndPayload := 4 + len(payload)
	pad := 4 - (headerAndPayload % 4)
	totalLength := headerAndPayload + pad

	buf := make([]byte, 0, totalLength)
	buf = binary.BigEndian.AppendUint16(buf, kind)
	buf = binary.BigEndian.AppendUint16(buf, uint16(totalLength))
	buf = append(buf, payload...)
	buf = append(buf, make([]byte, pad)...)
	return buf
}

// AuthMethodAdvertisement is kind 0x0002: the client's advertised auth
// methods plus how much initial data it intends to send.
type AuthMethodAdvertisement struct {
	InitialDataLength uint16
	Methods           []AuthMethod
}

func (a AuthMethodAdvertisement) Kind() uint16 { return KindAuthMethodAdvertisement }

func (a AuthMethodAdvertisement) Encode() []byte {
	methods := append([]AuthMethod(nil), a.Methods...)
	sort.Slice(methods, func(i, j int) bool { return methods[i] < methods[j] })
	payload := make([]byte, 0, 2+len(methods))
	payload = binary.BigEndian.AppendUint16(payload, a.InitialDataLength)
	for _, m := range methods {
		payload = append(payload, byte(m))
	}
	return frame(a.Kind(), payload)
}

// AuthMethodSelection is kind 0x0003: the server's chosen auth method.
type AuthMethodSelection struct {
	Method AuthMethod
}

func (a AuthMethodSelection) Kind() uint16 { return KindAuthMethodSelection }

func (a AuthMethodSelection) Encode() []byte {
	return frame(a.Kind(), []byte{byte(a.Method)})
}

// Metadata is kind 0xFDE8: an application-level key/value pair, used here to
// carry SocksChain state across hops.
type Metadata struct {
	Key   uint16
	Value string
}

func (m Metadata) Kind() uint16 { return KindMetadata }

func (m Metadata) Encode() []byte {
	payload := make([]byte, 0, 4+len(m.Value))
	payload = binary.BigEndian.AppendUint16(payload, m.Key)
	payload = binary.BigEndian.AppendUint16(payload, uint16(len(m.Value)))
	payload = append(payload, m.Value...)
	return frame(m.Kind(), payload)
}

// Unrecognized preserves any option whose kind this implementation does not
// understand, verbatim, so a chain participant forwards it unchanged instead
// of dropping it. RawTotalLength is stored (rather than recomputed) so
// re-encoding reproduces the exact original frame, including whatever
// padding the original encoder chose.
type Unrecognized struct {
	KindValue      uint16
	Payload        []byte // payload + padding, as received
	RawTotalLength uint16
}

func (u Unrecognized) Kind() uint16 { return u.KindValue }

func (u Unrecognized) Encode() []byte {
	buf := make([]byte, 0, u.RawTotalLength)
	buf = binary.BigEndian.AppendUint16(buf, u.KindValue)
	buf = binary.BigEndian.AppendUint16(buf, u.RawTotalLength)
	buf = append(buf, u.Payload...)
	return buf
}

// Decode parses every option in data, which must consist of zero or more
// back-to-back TLV frames and nothing else.
func Decode(data []byte) ([]Option, error) {
	var opts []Option
	for len(data) > 0 {
		opt, rest, err := decodeOne(data)
		if err != nil {
			return nil, err
		}
		opts = append(opts, opt)
		data = rest
	}
	return opts, nil
}

func decodeOne(data []byte) (Option, []byte, error) {
	if len(data) < 4 {
		return nil, nil, errors.Join(protoerr.ErrOptionTooShort, fmt.Errorf("need 4 bytes, have %d", len(data)))
	}
	kind := binary.BigEndian.Uint16(data[0:2])
	totalLength := binary.BigEndian.Uint16(data[2:4])
	if totalLength < 4 || int(totalLength)%4 != 0 {
		return nil, nil, errors.Join(protoerr.ErrOptionLengthMismatch, fmt.Errorf("total_length %d is not a positive multiple of 4", totalLength))
	}
	if len(data) < int(totalLength) {
		return nil, nil, errors.Join(protoerr.ErrOptionLengthMismatch, fmt.Errorf("declared total_length %d exceeds remaining %d bytes", totalLength, len(data)))
	}
	body := data[4:totalLength]
	rest := data[totalLength:]

	switch kind {
	case KindAuthMethodAdvertisement:
		if len(body) < 2 {
			return nil, nil, errors.Join(protoerr.ErrOptionTooShort, errors.New("AuthMethodAdvertisement payload too short"))
		}
		initialDataLength := binary.BigEndian.Uint16(body[0:2])
		var methods []AuthMethod
		for _, b := range body[2:] {
			if b == byte(AuthGssapi) || b == byte(AuthUsernamePassword) {
				methods = append(methods, AuthMethod(b))
			}
		}
		return AuthMethodAdvertisement{InitialDataLength: initialDataLength, Methods: methods}, rest, nil

	case KindAuthMethodSelection:
		if len(body) < 1 {
			return nil, nil, errors.Join(protoerr.ErrOptionTooShort, errors.New("AuthMethodSelection payload too short"))
		}
		return AuthMethodSelection{Method: AuthMethod(body[0])}, rest, nil

	case KindMetadata:
		if len(body) < 4 {
			return nil, nil, errors.Join(protoerr.ErrOptionTooShort, errors.New("Metadata payload too short"))
		}
		key := binary.BigEndian.Uint16(body[0:2])
		valueLen := binary.BigEndian.Uint16(body[2:4])
		if len(body) < 4+int(valueLen) {
			return nil, nil, errors.Join(protoerr.ErrOptionLengthMismatch, errors.New("Metadata value_length exceeds frame"))
		}
		value := string(body[4 : 4+int(valueLen)])
		return Metadata{Key: key, Value: value}, rest, nil

	default:
		return Unrecognized{KindValue: kind, Payload: append([]byte(nil), body...), RawTotalLength: totalLength}, rest, nil
	}
}

// EncodeAll concatenates the wire frames of every option in order.
func EncodeAll(opts []Option) []byte {
	var buf []byte
	for _, o := range opts {
		buf = append(buf, o.Encode()...)
	}
	return buf
}
