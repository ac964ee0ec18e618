// Package secret encrypts published results for early-access releases.
//
// The envelope matches the one produced by the cryptr JavaScript library so
// that existing consumer tooling can decrypt it: hex(salt | iv | tag | ciphertext)
// with AES-256-GCM and a PBKDF2-SHA512 derived key.
package secret

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"fmt"

	"golang.org/x/crypto/pbkdf2"

	"github.com/meigma/shipper/core"
)

// Compile-time interface implementation check.
var _ core.SecretTransform = (*Cryptr)(nil)

const (
	saltLength = 64
	ivLength   = 16
	tagLength  = 16
	keyLength  = 32

	defaultIterations = 100000
)

// ErrMalformed indicates a ciphertext that is not a valid envelope.
var ErrMalformed = errors.New("secret: malformed ciphertext")

// Cryptr encrypts with a key derived from a shared secret.
type Cryptr struct {
	secret     []byte
	iterations int
}

// Option configures a Cryptr.
type Option func(*Cryptr)

// WithIterations overrides the PBKDF2 iteration count.
// It must match the count used by whoever decrypts.
func WithIterations(n int) Option {
	return func(c *Cryptr) {
		if n > 0 {
			c.iterations = n
		}
	}
}

// New creates a Cryptr. It returns core.ErrNoSecret if secret is empty.
func New(secret string, opts ...Option) (*Cryptr, error) {
	if secret == "" {
		return nil, core.ErrNoSecret
	}
	c := &Cryptr{secret: []byte(secret), iterations: defaultIterations}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Encrypt seals plaintext under a fresh salt and IV.
func (c *Cryptr) Encrypt(plaintext []byte) (string, error) {
	buf := make([]byte, saltLength+ivLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random: %w", err)
	}
	salt, iv := buf[:saltLength], buf[saltLength:]

	gcm, err := c.aead(salt)
	if err != nil {
		return "", err
	}

	// Seal appends the tag after the ciphertext; the envelope puts it first.
	sealed := gcm.Seal(nil, iv, plaintext, nil)
	ct, tag := sealed[:len(sealed)-tagLength], sealed[len(sealed)-tagLength:]

	out := make([]byte, 0, saltLength+ivLength+tagLength+len(ct))
	out = append(out, salt...)
	out = append(out, iv...)
	out = append(out, tag...)
	out = append(out, ct...)
	return hex.EncodeToString(out), nil
}

// Decrypt opens a value produced by Encrypt.
func (c *Cryptr) Decrypt(value string) ([]byte, error) {
	raw, err := hex.DecodeString(value)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if len(raw) < saltLength+ivLength+tagLength {
		return nil, ErrMalformed
	}

	salt := raw[:saltLength]
	iv := raw[saltLength : saltLength+ivLength]
	tag := raw[saltLength+ivLength : saltLength+ivLength+tagLength]
	ct := raw[saltLength+ivLength+tagLength:]

	gcm, err := c.aead(salt)
	if err != nil {
		return nil, err
	}

	sealed := make([]byte, 0, len(ct)+tagLength)
	sealed = append(sealed, ct...)
	sealed = append(sealed, tag...)
	plaintext, err := gcm.Open(nil, iv, sealed, nil)
	if err != nil {
		return nil, fmt.Errorf("decrypt: %w", err)
	}
	return plaintext, nil
}

func (c *Cryptr) aead(salt []byte) (cipher.AEAD, error) {
	key := pbkdf2.Key(c.secret, salt, c.iterations, keyLength, sha512.New)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	gcm, err := cipher.NewGCMWithNonceSize(block, ivLength)
	if err != nil {
		return nil, fmt.Errorf("create gcm: %w", err)
	}
	return gcm, nil
}
