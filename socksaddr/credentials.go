package socksaddr

import (
	"context"
	"errors"
	"fmt"

	"github.com/rostam-dev/socksx/internal/protoerr"
)

// maxCredentialLen is the largest username/password the 8-bit length-prefixed
// wire form can carry.
const maxCredentialLen = 255

// Credentials is a username/password pair exchanged during SOCKS6
// sub-negotiation and carried in a ProxyAddress's userinfo.
type Credentials struct {
	Username []byte
	Password []byte
}

// Encode renders the wire form: ulen || uname || plen || passwd. It returns
// an error if either field exceeds the 8-bit length budget.
func (c Credentials) Encode() ([]byte, error) {
	if len(c.Username) > maxCredentialLen || len(c.Password) > maxCredentialLen {
		return nil, errors.Join(protoerr.ErrProtocolViolation, fmt.Errorf("credential field exceeds %d bytes", maxCredentialLen))
	}
	buf := make([]byte, 0, 2+len(c.Username)+len(c.Password))
	buf = append(buf, byte(len(c.Username)))
	buf = append(buf, c.Username...)
	buf = append(buf, byte(len(c.Password)))
	buf = append(buf, c.Password...)
	return buf, nil
}

// ReadCredentials decodes the length-prefixed username/password pair.
func ReadCredentials(ctx context.Context, r reader) (Credentials, error) {
	ulenBuf, err := readN(ctx, r, 1)
	if err != nil {
		return Credentials{}, errors.Join(protoerr.ErrProtocolViolation, err)
	}
	uname, err := readN(ctx, r, int(ulenBuf[0]))
	if err != nil {
		return Credentials{}, errors.Join(protoerr.ErrProtocolViolation, err)
	}
	plenBuf, err := readN(ctx, r, 1)
	if err != nil {
		return Credentials{}, errors.Join(protoerr.ErrProtocolViolation, err)
	}
	passwd, err := readN(ctx, r, int(plenBuf[0]))
	if err != nil {
		return Credentials{}, errors.Join(protoerr.ErrProtocolViolation, err)
	}
	return Credentials{Username: uname, Password: passwd}, nil
}

// Equal reports whether two credential pairs match byte-for-byte: true iff
// both the usernames and the passwords are identical.
func (c Credentials) Equal(other Credentials) bool {
	return string(c.Username) == string(other.Username) && string(c.Password) == string(other.Password)
}
