package vault

import (
	"encoding/base32"
	"fmt"
	"strings"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"

	"github.com/kalashnikxvxiii-collab/StegVault/internal/constants"
)

// NewTOTPSecret generates a fresh shared secret in the base32 form
// authenticator apps accept.
func NewTOTPSecret() (string, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      constants.DefaultTOTPIssuer,
		AccountName: "vault",
		Period:      constants.TOTPPeriodSec,
		Digits:      otp.DigitsSix,
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate totp secret: %w", err)
	}
	return key.Secret(), nil
}

// TOTPCode returns the 6-digit code for the secret at the given time.
func TOTPCode(secret string, at time.Time) (string, error) {
	code, err := totp.GenerateCode(normalizeTOTPSecret(secret), at)
	if err != nil {
		return "", fmt.Errorf("failed to compute totp code: %w", err)
	}
	return code, nil
}

// ValidateTOTP checks a submitted code against the secret at the given
// time, accepting one time step of clock skew in either direction.
func ValidateTOTP(secret, code string, at time.Time) bool {
	ok, err := totp.ValidateCustom(strings.TrimSpace(code), normalizeTOTPSecret(secret), at, totp.ValidateOpts{
		Period:    constants.TOTPPeriodSec,
		Skew:      1,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	return err == nil && ok
}

// ProvisioningURI builds the otpauth:// URL that enrolls an existing
// secret in an authenticator app.
func ProvisioningURI(secret, issuer, account string) (string, error) {
	raw, err := base32.StdEncoding.WithPadding(base32.NoPadding).DecodeString(normalizeTOTPSecret(secret))
	if err != nil {
		return "", fmt.Errorf("totp secret is not valid base32: %w", err)
	}
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      issuer,
		AccountName: account,
		Period:      constants.TOTPPeriodSec,
		Digits:      otp.DigitsSix,
		Secret:      raw,
	})
	if err != nil {
		return "", fmt.Errorf("failed to build provisioning uri: %w", err)
	}
	return key.URL(), nil
}

// TOTPSecondsRemaining reports how long the code valid at t keeps working.
func TOTPSecondsRemaining(at time.Time) int {
	return constants.TOTPPeriodSec - int(at.Unix()%constants.TOTPPeriodSec)
}

// Authenticator apps display secrets grouped with spaces, sometimes in
// lowercase and sometimes padded; strip all of that before handing the
// secret to the otp library.
func normalizeTOTPSecret(secret string) string {
	s := strings.ToUpper(strings.TrimSpace(secret))
	s = strings.ReplaceAll(s, " ", "")
	return strings.TrimRight(s, "=")
}
