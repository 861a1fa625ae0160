// Package crypto implements the key derivation and authenticated encryption
// primitives for the payload format: Argon2id for passphrase stretching and
// XChaCha20-Poly1305 for sealing the secret. The package never touches the
// wire layout; serialization lives in internal/payload.
package crypto

import (
	"fmt"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

const (
	// KeySize is the derived key length in bytes.
	KeySize = chacha20poly1305.KeySize
	// SaltSize is the KDF salt length in bytes.
	SaltSize = 16
	// NonceSize is the AEAD nonce length in bytes.
	NonceSize = chacha20poly1305.NonceSizeX
	// TagSize is the AEAD authentication tag length in bytes.
	TagSize = chacha20poly1305.Overhead
)

// KDFParams holds the Argon2id cost parameters. The active payload format
// version pins one parameter set; callers must not vary them per payload
// because the container does not record them.
type KDFParams struct {
	Time      uint32
	MemoryKiB uint32
	Threads   uint8
	KeyLen    uint32
}

// ParamsV1 returns the cost parameters pinned by payload format version 1.
func ParamsV1() KDFParams {
	return KDFParams{
		Time:      3,
		MemoryKiB: 64 * 1024,
		Threads:   4,
		KeyLen:    KeySize,
	}
}

// Validate rejects parameter sets the KDF cannot run with.
func (p KDFParams) Validate() error {
	if p.Time < 1 {
		return fmt.Errorf("kdf: time cost must be at least 1, got %d", p.Time)
	}
	if p.Threads < 1 {
		return fmt.Errorf("kdf: parallelism must be at least 1, got %d", p.Threads)
	}
	if p.MemoryKiB < 8*uint32(p.Threads) {
		return fmt.Errorf("kdf: memory must be at least %d KiB for %d threads, got %d", 8*uint32(p.Threads), p.Threads, p.MemoryKiB)
	}
	if p.KeyLen != KeySize {
		return fmt.Errorf("kdf: key length must be %d bytes, got %d", KeySize, p.KeyLen)
	}
	return nil
}

// DeriveKey stretches a passphrase into a cipher key with Argon2id. The same
// passphrase, salt, and parameters always produce the same key.
func DeriveKey(passphrase, salt []byte, params KDFParams) ([]byte, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if len(passphrase) == 0 {
		return nil, fmt.Errorf("kdf: passphrase must not be empty")
	}
	if len(salt) != SaltSize {
		return nil, fmt.Errorf("kdf: salt must be %d bytes, got %d", SaltSize, len(salt))
	}
	return argon2.IDKey(passphrase, salt, params.Time, params.MemoryKiB, params.Threads, params.KeyLen), nil
}
