package secret

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
)

// ErrInvalidCiphertext is returned when a value cannot be decrypted with the configured key.
var ErrInvalidCiphertext = errors.New("invalid ciphertext")

// Cipher encrypts short secrets at rest with AES-256-GCM.
type Cipher struct {
	aead cipher.AEAD
}

// NewCipher accepts a 32-byte key as raw text, hex or base64.
func NewCipher(key string) (*Cipher, error) {
	k, err := decodeKey(key)
	if err != nil {
		return nil, err
	}
	if len(k) != 32 {
		return nil, fmt.Errorf("encryption key must be 32 bytes, got %d", len(k))
	}
	block, err := aes.NewCipher(k)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &Cipher{aead: aead}, nil
}

// GenerateKey returns a random base64 encoded 32-byte key.
func GenerateKey() (string, error) {
	k := make([]byte, 32)
	if _, err := rand.Read(k); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(k), nil
}

func decodeKey(k string) ([]byte, error) {
	if len(k) == 32 {
		return []byte(k), nil
	}
	if len(k) == 64 {
		if b, err := hex.DecodeString(k); err == nil {
			return b, nil
		}
	}
	if b, err := base64.StdEncoding.DecodeString(k); err == nil {
		return b, nil
	}
	if b, err := base64.RawStdEncoding.DecodeString(k); err == nil {
		return b, nil
	}
	return nil, errors.New("invalid encryption key format")
}

// EncryptString returns base64(nonce || ciphertext).
func (c *Cipher) EncryptString(plaintext string) (string, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	sealed := c.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

func (c *Cipher) DecryptString(encoded string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidCiphertext, err)
	}
	ns := c.aead.NonceSize()
	if len(data) < ns {
		return "", fmt.Errorf("%w: too short", ErrInvalidCiphertext)
	}
	plain, err := c.aead.Open(nil, data[:ns], data[ns:], nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidCiphertext, err)
	}
	return string(plain), nil
}
