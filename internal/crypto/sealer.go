package crypto

import (
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

const sealerInfo = "oauth-front sealed cookie v1"

// ErrUnsealable is returned when a sealed value was not produced by this
// Sealer's key or has been altered.
var ErrUnsealable = errors.New("sealed value cannot be opened")

// Sealer encrypts short values with XChaCha20-Poly1305. The 256-bit key is
// derived from an arbitrary-length secret with HKDF-SHA256, so any secret
// length is accepted.
type Sealer struct {
	aead cipher.AEAD
}

// NewSealer derives the key from secret. An empty secret is rejected.
func NewSealer(secret string) (*Sealer, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, errors.New("sealer secret is empty")
	}

	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(secret), nil, []byte(sealerInfo)), key); err != nil {
		return nil, fmt.Errorf("failed to derive sealer key: %w", err)
	}

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	return &Sealer{aead: aead}, nil
}

// Seal encrypts plaintext and returns nonce||ciphertext, base64url encoded.
func (s *Sealer) Seal(plaintext string) (string, error) {
	nonce := make([]byte, s.aead.NonceSize(), s.aead.NonceSize()+len(plaintext)+s.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	sealed := s.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Open reverses Seal. Any decoding or authentication failure yields
// ErrUnsealable.
func (s *Sealer) Open(sealed string) (string, error) {
	data, err := base64.RawURLEncoding.Strict().DecodeString(sealed)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnsealable, err)
	}
	if len(data) < s.aead.NonceSize()+s.aead.Overhead() {
		return "", fmt.Errorf("%w: too short", ErrUnsealable)
	}
	nonce, ciphertext := data[:s.aead.NonceSize()], data[s.aead.NonceSize():]
	plaintext, err := s.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", ErrUnsealable
	}
	return string(plaintext), nil
}
