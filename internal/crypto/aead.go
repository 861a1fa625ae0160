package crypto

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

// ErrAuthentication is returned by Decrypt when the ciphertext, tag, nonce,
// and key do not verify together. Callers cannot distinguish a wrong
// passphrase from a tampered payload; both surface as this error.
var ErrAuthentication = errors.New("crypto: message authentication failed")

// Encrypt seals plaintext under key and nonce with XChaCha20-Poly1305 and
// returns the ciphertext and the 16-byte authentication tag separately, the
// way the payload container stores them. The ciphertext is exactly as long
// as the plaintext.
func Encrypt(key, nonce, plaintext []byte) (ciphertext, tag []byte, err error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, nil, fmt.Errorf("aead: %w", err)
	}
	if len(nonce) != NonceSize {
		return nil, nil, fmt.Errorf("aead: nonce must be %d bytes, got %d", NonceSize, len(nonce))
	}
	sealed := aead.Seal(nil, nonce, plaintext, nil)
	split := len(sealed) - TagSize
	return sealed[:split:split], sealed[split:], nil
}

// Decrypt opens ciphertext||tag under key and nonce and returns the
// plaintext. Any verification failure is reported as ErrAuthentication.
func Decrypt(key, nonce, ciphertext, tag []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("aead: %w", err)
	}
	if len(nonce) != NonceSize {
		return nil, fmt.Errorf("aead: nonce must be %d bytes, got %d", NonceSize, len(nonce))
	}
	if len(tag) != TagSize {
		return nil, fmt.Errorf("aead: tag must be %d bytes, got %d", TagSize, len(tag))
	}
	sealed := make([]byte, 0, len(ciphertext)+len(tag))
	sealed = append(sealed, ciphertext...)
	sealed = append(sealed, tag...)
	plaintext, err := aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, ErrAuthentication
	}
	return plaintext, nil
}
