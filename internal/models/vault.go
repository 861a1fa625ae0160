package models

import "time"

// Vault is the serialized form of a password vault. The JSON encoding of
// this struct, compressed, is the secret the core seals into a carrier.
type Vault struct {
	Version   int          `json:"version"`
	CreatedAt time.Time    `json:"createdAt"`
	UpdatedAt time.Time    `json:"updatedAt"`
	Entries   []VaultEntry `json:"entries"`
}

// VaultEntry is one credential record.
type VaultEntry struct {
	Name       string            `json:"name"`
	Username   string            `json:"username,omitempty"`
	Password   string            `json:"password,omitempty"`
	URL        string            `json:"url,omitempty"`
	Notes      string            `json:"notes,omitempty"`
	Tags       []string          `json:"tags,omitempty"`
	TOTPSecret string            `json:"totpSecret,omitempty"`
	History    []PasswordVersion `json:"history,omitempty"`
	CreatedAt  time.Time         `json:"createdAt"`
	UpdatedAt  time.Time         `json:"updatedAt"`
}

// PasswordVersion records a password that was rotated out of an entry.
type PasswordVersion struct {
	Password   string    `json:"password"`
	ReplacedAt time.Time `json:"replacedAt"`
}

// PasswordStrength is a zxcvbn estimate for a candidate password or
// passphrase. Score runs 0 (trivially guessable) to 4 (very strong).
type PasswordStrength struct {
	Score            int     `json:"score"`
	Entropy          float64 `json:"entropy"`
	CrackTimeSeconds float64 `json:"crackTimeSeconds"`
	CrackTimeDisplay string  `json:"crackTimeDisplay"`
}
