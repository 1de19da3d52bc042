// Package cryptox seals bucket credentials before they are written to the
// registry. A sealed value is "v1:" followed by base64(salt | nonce | ciphertext).
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	sealPrefix = "v1:"
	saltSize   = 16
)

var (
	ErrNotSealed     = errors.New("value is not sealed")
	ErrWrongPassword = errors.New("cannot open sealed value")
)

// randRead is a seam for tests.
var randRead = rand.Read

func DeriveKey(password []byte, salt []byte) []byte {
	return argon2.IDKey(password, salt, 1, 64*1024, 4, 32)
}

// SealSecret encrypts plaintext with AES-GCM under a key derived from
// passphrase and a fresh random salt.
func SealSecret(plaintext, passphrase string) (string, error) {
	salt := make([]byte, saltSize)
	if _, err := randRead(salt); err != nil {
		return "", err
	}

	key := DeriveKey([]byte(passphrase), salt)
	defer Wipe(key)
	aesgcm, err := newGCM(key)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, aesgcm.NonceSize())
	if _, err := randRead(nonce); err != nil {
		return "", err
	}

	out := append(salt, nonce...)
	out = aesgcm.Seal(out, nonce, []byte(plaintext), nil)
	return sealPrefix + base64.StdEncoding.EncodeToString(out), nil
}

// OpenSecret reverses SealSecret.
func OpenSecret(sealed, passphrase string) (string, error) {
	if !IsSealed(sealed) {
		return "", ErrNotSealed
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(sealed, sealPrefix))
	if err != nil {
		return "", ErrNotSealed
	}
	if len(raw) < saltSize {
		return "", ErrNotSealed
	}

	key := DeriveKey([]byte(passphrase), raw[:saltSize])
	defer Wipe(key)
	aesgcm, err := newGCM(key)
	if err != nil {
		return "", err
	}
	rest := raw[saltSize:]
	if len(rest) < aesgcm.NonceSize() {
		return "", ErrNotSealed
	}

	nonce, ciphertext := rest[:aesgcm.NonceSize()], rest[aesgcm.NonceSize():]
	plaintext, err := aesgcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", ErrWrongPassword
	}
	return string(plaintext), nil
}

// IsSealed reports whether v carries the sealed-value prefix.
func IsSealed(v string) bool {
	return strings.HasPrefix(v, sealPrefix)
}

// Wipe overwrites b with zeros. Use it on key material and secrets read from
// a terminal once they are no longer needed.
func Wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
