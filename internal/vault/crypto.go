// Package vault seals secret preference values (Wi-Fi passphrase,
// backend token, pin) before they reach the on-disk store.
package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// KeySize is the AES-256 key length produced by DeriveKey.
const KeySize = 32

var (
	ErrShortCiphertext = errors.New("ciphertext too short")
	ErrOpenFailed      = errors.New("decryption failed (wrong key or tampered data)")
)

// DeriveKey stretches a device secret into an AES-256 key. salt scopes
// the key to one unit, normally the device id.
func DeriveKey(secret, salt []byte) ([]byte, error) {
	h := hkdf.New(sha256.New, secret, salt, []byte("celerix-lock/preferences"))
	key := make([]byte, KeySize)
	if _, err := io.ReadFull(h, key); err != nil {
		return nil, err
	}
	return key, nil
}

// Box seals and opens strings with AES-GCM. The sealed form is hex of
// nonce followed by ciphertext.
type Box struct {
	aead cipher.AEAD
}

// NewBox builds a Box from a 16, 24 or 32 byte key.
func NewBox(key []byte) (*Box, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &Box{aead: aead}, nil
}

// Seal encrypts plaintext under a fresh nonce.
func (b *Box) Seal(plaintext string) (string, error) {
	nonce := make([]byte, b.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}
	return hex.EncodeToString(b.aead.Seal(nonce, nonce, []byte(plaintext), nil)), nil
}

// Open reverses Seal.
func (b *Box) Open(sealed string) (string, error) {
	raw, err := hex.DecodeString(sealed)
	if err != nil {
		return "", fmt.Errorf("decode sealed value: %w", err)
	}

	n := b.aead.NonceSize()
	if len(raw) < n {
		return "", ErrShortCiphertext
	}

	plaintext, err := b.aead.Open(nil, raw[:n], raw[n:], nil)
	if err != nil {
		return "", ErrOpenFailed
	}
	return string(plaintext), nil
}
