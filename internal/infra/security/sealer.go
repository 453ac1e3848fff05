package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
)

var ErrMalformed = errors.New("sealed value is malformed")

// Sealer encrypts small secrets with AES-256-GCM. Output is base64(nonce || ciphertext).
type Sealer struct {
	gcm cipher.AEAD
}

// NewSealer derives the AES key from secret and purpose, so one configured secret
// can back several sealers without their ciphertexts being interchangeable.
func NewSealer(secret, purpose string) (*Sealer, error) {
	if secret == "" {
		return nil, errors.New("sealer secret is empty")
	}
	key := sha256.Sum256([]byte(purpose + ":" + secret))
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("aes.NewCipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("cipher.NewGCM: %w", err)
	}
	return &Sealer{gcm: gcm}, nil
}

func (s *Sealer) Seal(plain []byte) (string, error) {
	nonce := make([]byte, s.gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("rand nonce: %w", err)
	}
	return base64.StdEncoding.EncodeToString(s.gcm.Seal(nonce, nonce, plain, nil)), nil
}

func (s *Sealer) Open(sealed string) ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		return nil, ErrMalformed
	}
	ns := s.gcm.NonceSize()
	if len(data) < ns {
		return nil, ErrMalformed
	}
	plain, err := s.gcm.Open(nil, data[:ns], data[ns:], nil)
	if err != nil {
		return nil, fmt.Errorf("gcm open: %w", err)
	}
	return plain, nil
}
