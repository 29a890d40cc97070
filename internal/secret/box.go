// Package secret seals short credentials, such as campaign SMTP passwords, before they are stored.
package secret

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/nacl/secretbox"
)

const (
	keySize   = 32
	nonceSize = 24
	prefix    = "sb1:"
)

var (
	// ErrNoKey is returned when sealing is attempted without a configured key
	ErrNoKey = errors.New("secret key not configured")
	// ErrMalformed is returned for sealed values that cannot be opened
	ErrMalformed = errors.New("malformed sealed value")
)

// Box seals and opens values with a symmetric key
type Box struct {
	key *[keySize]byte
}

// NewBox builds a Box from a configured key. A 64 character hex string is used as-is;
// any other non-empty string is stretched with SHA-256. An empty key yields a Box that
// refuses to seal.
func NewBox(key string) (*Box, error) {
	if key == "" {
		return &Box{}, nil
	}
	var k [keySize]byte
	if len(key) == hex.EncodedLen(keySize) {
		if raw, err := hex.DecodeString(key); err == nil {
			copy(k[:], raw)
			return &Box{key: &k}, nil
		}
	}
	k = sha256.Sum256([]byte(key))
	return &Box{key: &k}, nil
}

// Enabled reports whether a key is configured
func (b *Box) Enabled() bool {
	return b.key != nil
}

// Seal encrypts plaintext. The empty string seals to the empty string.
func (b *Box) Seal(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}
	if b.key == nil {
		return "", ErrNoKey
	}

	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	out := secretbox.Seal(nonce[:], []byte(plaintext), &nonce, b.key)
	return prefix + base64.RawStdEncoding.EncodeToString(out), nil
}

// Open decrypts a value produced by Seal
func (b *Box) Open(sealed string) (string, error) {
	if sealed == "" {
		return "", nil
	}
	if b.key == nil {
		return "", ErrNoKey
	}
	if !strings.HasPrefix(sealed, prefix) {
		return "", ErrMalformed
	}

	raw, err := base64.RawStdEncoding.DecodeString(strings.TrimPrefix(sealed, prefix))
	if err != nil || len(raw) < nonceSize+secretbox.Overhead {
		return "", ErrMalformed
	}

	var nonce [nonceSize]byte
	copy(nonce[:], raw[:nonceSize])

	plain, ok := secretbox.Open(nil, raw[nonceSize:], &nonce, b.key)
	if !ok {
		return "", ErrMalformed
	}
	return string(plain), nil
}
