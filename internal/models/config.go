package models

// Config holds the application configuration
type Config struct {
	LogLevel      string           `json:"log_level"`
	GalleryDBPath string           `json:"gallery_db_path"`
	OutputDir     string           `json:"output_dir"`
	Passphrase    PassphrasePolicy `json:"passphrase"`
	TOTPIssuer    string           `json:"totp_issuer"`
}

// PassphrasePolicy is enforced when a passphrase is first chosen, never
// when an existing vault is opened.
type PassphrasePolicy struct {
	MinLength int `json:"min_length"`
	MinScore  int `json:"min_score"`
}

type ConfigError struct {
	Message string
}

func (e ConfigError) Error() string {
	return e.Message
}
