// Package secret seals credentials before they are written to disk.
package secret

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"
)

// KeyEnvKey names the environment variable holding the base64 sealing key.
const KeyEnvKey = "TASKBRIDGE_SECRET_KEY"

// Values sealed with "v1:" carried no associated data and are no longer accepted.
const sealedPrefix = "v2:"

var (
	// ErrInvalidCiphertext is returned when a sealed value cannot be opened.
	ErrInvalidCiphertext = errors.New("invalid sealed value")
	// ErrKeyMissing is returned by LoadSealer when no key is configured.
	ErrKeyMissing = errors.New("no secret key configured")
)

// Sealer encrypts and decrypts short secrets with XChaCha20-Poly1305.
type Sealer struct {
	key []byte
}

// NewSealer builds a sealer from a raw 32-byte key.
func NewSealer(key []byte) (*Sealer, error) {
	if len(key) != chacha20poly1305.KeySize {
		return nil, fmt.Errorf("secret key must be %d bytes, got %d", chacha20poly1305.KeySize, len(key))
	}
	cp := make([]byte, len(key))
	copy(cp, key)
	return &Sealer{key: cp}, nil
}

// ParseKey decodes a base64 (std or url, padded or raw) sealing key.
func ParseKey(encoded string) ([]byte, error) {
	encoded = strings.TrimSpace(encoded)
	if encoded == "" {
		return nil, fmt.Errorf("secret key is empty")
	}
	for _, enc := range []*base64.Encoding{
		base64.StdEncoding,
		base64.RawStdEncoding,
		base64.URLEncoding,
		base64.RawURLEncoding,
	} {
		if key, err := enc.DecodeString(encoded); err == nil {
			return key, nil
		}
	}
	return nil, fmt.Errorf("secret key is not valid base64")
}

// GenerateKey returns a fresh base64-encoded key suitable for KeyEnvKey.
func GenerateKey() (string, error) {
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := rand.Read(key); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(key), nil
}

// LoadSealer resolves the key from the environment first, then from keyFile.
func LoadSealer(keyFile string) (*Sealer, error) {
	raw := strings.TrimSpace(os.Getenv(KeyEnvKey))
	if raw == "" && strings.TrimSpace(keyFile) != "" {
		data, err := os.ReadFile(keyFile)
		if err != nil {
			return nil, fmt.Errorf("read secret key file: %w", err)
		}
		raw = strings.TrimSpace(string(data))
	}
	if raw == "" {
		return nil, fmt.Errorf("%w: set %s or secret_key_file", ErrKeyMissing, KeyEnvKey)
	}
	key, err := ParseKey(raw)
	if err != nil {
		return nil, err
	}
	return NewSealer(key)
}

// Seal encrypts plaintext and binds it to binding, which must be passed to
// Open unchanged. The result is printable and safe to store in a TEXT column.
func (s *Sealer) Seal(plaintext, binding string) (string, error) {
	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plaintext)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	sealed := aead.Seal(nonce, nonce, []byte(plaintext), []byte(binding))
	return sealedPrefix + base64.RawStdEncoding.EncodeToString(sealed), nil
}

// Open decrypts a value produced by Seal with the same binding.
func (s *Sealer) Open(sealed, binding string) (string, error) {
	if !strings.HasPrefix(sealed, sealedPrefix) {
		return "", ErrInvalidCiphertext
	}
	data, err := base64.RawStdEncoding.DecodeString(strings.TrimPrefix(sealed, sealedPrefix))
	if err != nil {
		return "", ErrInvalidCiphertext
	}
	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return "", err
	}
	if len(data) < aead.NonceSize()+aead.Overhead() {
		return "", ErrInvalidCiphertext
	}
	nonce, ciphertext := data[:aead.NonceSize()], data[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, ciphertext, []byte(binding))
	if err != nil {
		return "", ErrInvalidCiphertext
	}
	return string(plaintext), nil
}
