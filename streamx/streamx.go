// Package streamx is a demonstration stream transformer: it wraps a net.Conn
// in a ChaCha20-Poly1305 AEAD codec so callers can see what plugging a
// user-supplied transformer into the core session pump looks like. The core
// protocol has no opinion on stream transformers (spec Open Question); this
// exists purely as the ambient example the reference stack itself ships.
//
// The nonce here is fixed, which is cryptographically insecure (nonce reuse
// under a fixed key breaks AEAD confidentiality and integrity) — this is a
// known, deliberate property of the demonstration and is never suitable for
// production traffic.
package streamx

import (
	"encoding/binary"
	"io"
	"net"

	"golang.org/x/crypto/chacha20poly1305"
)

const lengthPrefixSize = 2

// insecureFixedNonce is reused for every message, by design of this
// demonstration transformer. Do not copy this pattern into anything that
// carries real traffic.
var insecureFixedNonce = make([]byte, chacha20poly1305.NonceSize)

// CipherConn wraps a net.Conn, encrypting writes and decrypting reads with a
// ChaCha20-Poly1305 AEAD under a fixed nonce.
type CipherConn struct {
	net.Conn
	aead   *chacha20Poly1305AEAD
	buffer []byte
}

// chacha20Poly1305AEAD is a thin alias kept local so this package's public
// surface doesn't leak cipher.AEAD directly; NewCipherConn is the only
// supported construction path.
type chacha20Poly1305AEAD = interface {
	NonceSize() int
	Overhead() int
	Seal(dst, nonce, plaintext, additionalData []byte) []byte
	Open(dst, nonce, ciphertext, additionalData []byte) ([]byte, error)
}

// IsSupported reports whether algoName names a supported AEAD for
// NewCipherConn. Only "chacha20-poly1305" is offered; this demonstration
// package makes no attempt to be a general crypto-agility layer.
func IsSupported(algoName string) bool {
	return algoName == "chacha20-poly1305"
}

// KeySize is the required key length for "chacha20-poly1305".
const KeySize = chacha20poly1305.KeySize

// NewCipherConn wraps conn with a ChaCha20-Poly1305 AEAD built from key.
func NewCipherConn(conn net.Conn, key []byte) (*CipherConn, error) {
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, err
	}
	return &CipherConn{Conn: conn, aead: aead}, nil
}

// Read decrypts one length-prefixed AEAD frame per underlying read,
// buffering any plaintext the caller didn't fully consume.
func (c *CipherConn) Read(b []byte) (int, error) {
	if len(c.buffer) > 0 {
		n := copy(b, c.buffer)
		c.buffer = c.buffer[n:]
		return n, nil
	}

	lenBuf := make([]byte, lengthPrefixSize)
	if _, err := io.ReadFull(c.Conn, lenBuf); err != nil {
		return 0, err
	}
	ciphertext := make([]byte, binary.BigEndian.Uint16(lenBuf))
	if _, err := io.ReadFull(c.Conn, ciphertext); err != nil {
		return 0, err
	}

	plaintext, err := c.aead.Open(nil, insecureFixedNonce, ciphertext, nil)
	if err != nil {
		return 0, err
	}
	c.buffer = plaintext
	n := copy(b, c.buffer)
	c.buffer = c.buffer[n:]
	return n, nil
}

// Write encrypts b as one AEAD frame and writes it length-prefixed.
func (c *CipherConn) Write(b []byte) (int, error) {
	ciphertext := c.aead.Seal(nil, insecureFixedNonce, b, nil)

	lenBuf := make([]byte, lengthPrefixSize)
	binary.BigEndian.PutUint16(lenBuf, uint16(len(ciphertext)))
	if _, err := c.Conn.Write(lenBuf); err != nil {
		return 0, err
	}
	if _, err := c.Conn.Write(ciphertext); err != nil {
		return 0, err
	}
	return len(b), nil
}
