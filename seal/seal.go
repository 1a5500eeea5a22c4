// Package seal protects 2FA secret material at rest.
//
// Three sealers ship with the package:
//
//   - [Plaintext] stores the bytes unchanged. It is the default when no key
//     is configured.
//   - [AESGCM] encrypts with a local AES-256 key.
//   - [KMSEnvelope] asks AWS KMS for a fresh data key per seal and stores the
//     wrapped key next to the AES-GCM payload.
//
// Sealed values carry a leading version byte so an Open on the wrong sealer
// fails instead of returning garbage.
package seal

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
)

const (
	versionAESGCM      byte = 0x01
	versionKMSEnvelope byte = 0x02
)

var (
	ErrSealFailed = errors.New("seal failed")
	ErrOpenFailed = errors.New("open failed")
	ErrInvalidKey = errors.New("seal key must be 32 bytes")
)

// Sealer encrypts and decrypts small secrets.
type Sealer interface {
	Seal(ctx context.Context, plaintext []byte) ([]byte, error)
	Open(ctx context.Context, sealed []byte) ([]byte, error)
}

// Plaintext is the identity sealer.
type Plaintext struct{}

func (Plaintext) Seal(_ context.Context, plaintext []byte) ([]byte, error) {
	return append([]byte(nil), plaintext...), nil
}

func (Plaintext) Open(_ context.Context, sealed []byte) ([]byte, error) {
	return append([]byte(nil), sealed...), nil
}

// AESGCM seals with a fixed AES-256 key. Output is version || nonce || ciphertext.
type AESGCM struct {
	aead cipher.AEAD
}

func NewAESGCM(key []byte) (*AESGCM, error) {
	aead, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	return &AESGCM{aead: aead}, nil
}

func (s *AESGCM) Seal(_ context.Context, plaintext []byte) ([]byte, error) {
	out, err := sealWith(s.aead, []byte{versionAESGCM}, plaintext)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSealFailed, err)
	}
	return out, nil
}

func (s *AESGCM) Open(_ context.Context, sealed []byte) ([]byte, error) {
	if len(sealed) == 0 || sealed[0] != versionAESGCM {
		return nil, fmt.Errorf("%w: unexpected format", ErrOpenFailed)
	}
	return openWith(s.aead, sealed[1:])
}

func newGCM(key []byte) (cipher.AEAD, error) {
	if len(key) != 32 {
		return nil, ErrInvalidKey
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// sealWith appends nonce and ciphertext to prefix.
func sealWith(aead cipher.AEAD, prefix, plaintext []byte) ([]byte, error) {
	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(prefix)+len(nonce)+len(plaintext)+aead.Overhead())
	out = append(out, prefix...)
	out = append(out, nonce...)
	return aead.Seal(out, nonce, plaintext, nil), nil
}

func openWith(aead cipher.AEAD, payload []byte) ([]byte, error) {
	nonceSize := aead.NonceSize()
	if len(payload) < nonceSize+aead.Overhead() {
		return nil, fmt.Errorf("%w: ciphertext too short", ErrOpenFailed)
	}
	plaintext, err := aead.Open(nil, payload[:nonceSize], payload[nonceSize:], nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOpenFailed, err)
	}
	return plaintext, nil
}
