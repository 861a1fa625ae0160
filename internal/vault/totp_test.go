package vault

import (
	"encoding/base32"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// rfcSecret is the RFC 6238 SHA-1 test secret, ASCII "12345678901234567890".
const rfcSecret = "GEZDGNBVGY3TQOJQGEZDGNBVGY3TQOJQ"

func TestNewTOTPSecret(t *testing.T) {
	secret, err := NewTOTPSecret()
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(secret), 16)

	_, err = base32.StdEncoding.WithPadding(base32.NoPadding).DecodeString(secret)
	assert.NoError(t, err, "secret must be base32: %q", secret)
}

func TestTOTPCode_KnownVectors(t *testing.T) {
	// RFC 6238 Appendix B vectors, truncated from 8 to 6 digits.
	testCases := []struct {
		unix int64
		want string
	}{
		{unix: 59, want: "287082"},
		{unix: 1111111109, want: "081804"},
		{unix: 1234567890, want: "005924"},
		{unix: 2000000000, want: "279037"},
	}

	for _, tc := range testCases {
		code, err := TOTPCode(rfcSecret, time.Unix(tc.unix, 0).UTC())
		require.NoError(t, err)
		assert.Equal(t, tc.want, code, "at unix %d", tc.unix)
	}
}

func TestTOTPCode_NormalizesSecret(t *testing.T) {
	reference, err := TOTPCode(rfcSecret, time.Unix(59, 0).UTC())
	require.NoError(t, err)

	spaced, err := TOTPCode("gezd gnbv gy3t qojq gezd gnbv gy3t qojq", time.Unix(59, 0).UTC())
	require.NoError(t, err)
	assert.Equal(t, reference, spaced)
}

func TestTOTPCode_BadSecret(t *testing.T) {
	_, err := TOTPCode("not base32 !!!", time.Now())
	assert.Error(t, err)
}

func TestValidateTOTP(t *testing.T) {
	at := time.Unix(1111111109, 0).UTC()
	code, err := TOTPCode(rfcSecret, at)
	require.NoError(t, err)

	assert.True(t, ValidateTOTP(rfcSecret, code, at))
	assert.True(t, ValidateTOTP(rfcSecret, " "+code+" ", at), "surrounding whitespace is tolerated")
	assert.True(t, ValidateTOTP(rfcSecret, code, at.Add(30*time.Second)), "one step of skew is accepted")
	assert.False(t, ValidateTOTP(rfcSecret, code, at.Add(120*time.Second)), "stale codes are rejected")
	assert.False(t, ValidateTOTP(rfcSecret, "12345", at), "wrong digit count")
	assert.False(t, ValidateTOTP(rfcSecret, "abcdef", at))
}

func TestProvisioningURI(t *testing.T) {
	uri, err := ProvisioningURI(rfcSecret, "StegVault", "jo@example.com")
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^otpauth://totp/`), uri)
	assert.Contains(t, uri, "issuer=StegVault")
	assert.Contains(t, uri, "jo@example.com")
	assert.Contains(t, uri, "secret="+rfcSecret)

	_, err = ProvisioningURI("!!!", "StegVault", "jo@example.com")
	assert.Error(t, err)
}

func TestTOTPSecondsRemaining(t *testing.T) {
	assert.Equal(t, 30, TOTPSecondsRemaining(time.Unix(0, 0)))
	assert.Equal(t, 1, TOTPSecondsRemaining(time.Unix(29, 0)))
	assert.Equal(t, 30, TOTPSecondsRemaining(time.Unix(30, 0)))
	assert.Equal(t, 15, TOTPSecondsRemaining(time.Unix(45, 0)))
}
