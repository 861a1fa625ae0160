package vault

import (
	"fmt"

	zxcvbn "github.com/nbutton23/zxcvbn-go"

	"github.com/kalashnikxvxiii-collab/StegVault/internal/models"
)

// EstimateStrength scores a candidate password with zxcvbn. userInputs are
// strings an attacker could know (username, site name) and score as weak.
func EstimateStrength(password string, userInputs ...string) models.PasswordStrength {
	res := zxcvbn.PasswordStrength(password, userInputs)
	return models.PasswordStrength{
		Score:            res.Score,
		Entropy:          res.Entropy,
		CrackTimeSeconds: res.CrackTime,
		CrackTimeDisplay: res.CrackTimeDisplay,
	}
}

// CheckPassphrase enforces the configured policy on a newly chosen
// passphrase. Opening an existing vault never goes through this check;
// rejecting the correct passphrase of an old vault would lock the user out.
func CheckPassphrase(passphrase string, policy models.PassphrasePolicy) error {
	if len(passphrase) < policy.MinLength {
		return fmt.Errorf("passphrase must be at least %d characters", policy.MinLength)
	}
	if s := EstimateStrength(passphrase); s.Score < policy.MinScore {
		return fmt.Errorf("passphrase too weak (score %d of 4, need at least %d)", s.Score, policy.MinScore)
	}
	return nil
}
