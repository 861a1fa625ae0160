package vault

import (
	"strings"
	"testing"

	"github.com/kalashnikxvxiii-collab/StegVault/internal/constants"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeneratePassword_Defaults(t *testing.T) {
	pw, err := GeneratePassword(DefaultGeneratorOptions())
	require.NoError(t, err)
	assert.Len(t, pw, constants.DefaultGeneratedPasswordLength)

	assert.True(t, strings.ContainsAny(pw, poolLower), "missing lowercase in %q", pw)
	assert.True(t, strings.ContainsAny(pw, poolUpper), "missing uppercase in %q", pw)
	assert.True(t, strings.ContainsAny(pw, poolDigits), "missing digit in %q", pw)
	assert.True(t, strings.ContainsAny(pw, poolSymbols), "missing symbol in %q", pw)
}

func TestGeneratePassword_RestrictedClasses(t *testing.T) {
	pw, err := GeneratePassword(GeneratorOptions{Length: 16, Digits: true})
	require.NoError(t, err)
	assert.Len(t, pw, 16)
	for _, r := range pw {
		assert.Contains(t, poolDigits, string(r))
	}
}

func TestGeneratePassword_Validation(t *testing.T) {
	testCases := []struct {
		name string
		opts GeneratorOptions
	}{
		{name: "too short", opts: GeneratorOptions{Length: constants.MinGeneratedPasswordLength - 1, Lower: true}},
		{name: "too long", opts: GeneratorOptions{Length: constants.MaxGeneratedPasswordLength + 1, Lower: true}},
		{name: "no classes", opts: GeneratorOptions{Length: 20}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := GeneratePassword(tc.opts)
			assert.Error(t, err)
		})
	}
}

func TestGeneratePassword_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 8; i++ {
		pw, err := GeneratePassword(DefaultGeneratorOptions())
		require.NoError(t, err)
		assert.False(t, seen[pw], "generator repeated %q", pw)
		seen[pw] = true
	}
}
