package vault

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/kalashnikxvxiii-collab/StegVault/internal/constants"
)

const (
	poolLower   = "abcdefghijklmnopqrstuvwxyz"
	poolUpper   = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	poolDigits  = "0123456789"
	poolSymbols = "!@#$%^&*()-_=+[]{}:,.?"
)

// GeneratorOptions selects the length and character classes for a
// generated password.
type GeneratorOptions struct {
	Length  int
	Lower   bool
	Upper   bool
	Digits  bool
	Symbols bool
}

// DefaultGeneratorOptions enables every character class at the default
// length.
func DefaultGeneratorOptions() GeneratorOptions {
	return GeneratorOptions{
		Length:  constants.DefaultGeneratedPasswordLength,
		Lower:   true,
		Upper:   true,
		Digits:  true,
		Symbols: true,
	}
}

// GeneratePassword draws a password from crypto/rand. Each selected
// character class contributes at least one character when the length
// allows; positions are shuffled so the guaranteed characters do not
// cluster at the front.
func GeneratePassword(opts GeneratorOptions) (string, error) {
	if opts.Length < constants.MinGeneratedPasswordLength || opts.Length > constants.MaxGeneratedPasswordLength {
		return "", fmt.Errorf("password length must be between %d and %d, got %d",
			constants.MinGeneratedPasswordLength, constants.MaxGeneratedPasswordLength, opts.Length)
	}
	var classes []string
	for _, c := range []struct {
		enabled bool
		pool    string
	}{
		{opts.Lower, poolLower},
		{opts.Upper, poolUpper},
		{opts.Digits, poolDigits},
		{opts.Symbols, poolSymbols},
	} {
		if c.enabled {
			classes = append(classes, c.pool)
		}
	}
	if len(classes) == 0 {
		return "", errors.New("at least one character class must be enabled")
	}
	pool := strings.Join(classes, "")

	out := make([]byte, 0, opts.Length)
	for _, class := range classes {
		if len(out) == opts.Length {
			break
		}
		ch, err := randomChar(class)
		if err != nil {
			return "", err
		}
		out = append(out, ch)
	}
	for len(out) < opts.Length {
		ch, err := randomChar(pool)
		if err != nil {
			return "", err
		}
		out = append(out, ch)
	}
	if err := shuffle(out); err != nil {
		return "", err
	}
	return string(out), nil
}

func randomChar(pool string) (byte, error) {
	idx, err := rand.Int(rand.Reader, big.NewInt(int64(len(pool))))
	if err != nil {
		return 0, fmt.Errorf("failed to draw random index: %w", err)
	}
	return pool[idx.Int64()], nil
}

func shuffle(b []byte) error {
	for i := len(b) - 1; i > 0; i-- {
		j, err := rand.Int(rand.Reader, big.NewInt(int64(i+1)))
		if err != nil {
			return fmt.Errorf("failed to draw random index: %w", err)
		}
		b[i], b[j.Int64()] = b[j.Int64()], b[i]
	}
	return nil
}
