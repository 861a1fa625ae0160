package crypto

import (
	"errors"
	"fmt"
	"io"
)

// ReadRandom fills buf from the entropy source r. Short reads are errors,
// and an all-zero fill is treated as a broken source rather than bad luck.
func ReadRandom(r io.Reader, buf []byte) error {
	if _, err := io.ReadFull(r, buf); err != nil {
		return fmt.Errorf("entropy: %w", err)
	}
	if len(buf) > 0 && allZero(buf) {
		return errors.New("entropy: source returned all zeroes")
	}
	return nil
}

// NewSalt draws a fresh KDF salt from r.
func NewSalt(r io.Reader) ([]byte, error) {
	salt := make([]byte, SaltSize)
	if err := ReadRandom(r, salt); err != nil {
		return nil, err
	}
	return salt, nil
}

// NewNonce draws a fresh AEAD nonce from r.
func NewNonce(r io.Reader) ([]byte, error) {
	nonce := make([]byte, NonceSize)
	if err := ReadRandom(r, nonce); err != nil {
		return nil, err
	}
	return nonce, nil
}

// Zeroize overwrites b with zeroes. Best effort only; the runtime may have
// copied the data elsewhere.
func Zeroize(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

func allZero(b []byte) bool {
	for _, v := range b {
		if v != 0 {
			return false
		}
	}
	return true
}
