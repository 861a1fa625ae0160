package constants

// Default locations, resolved relative to the user home directory
const (
	DefaultConfigDir   = ".stegvault"
	DefaultConfigFile  = "config.json"
	DefaultGalleryFile = "gallery.db"
)

// Passphrase policy defaults enforced by the CLI (never by the core)
const (
	DefaultMinPassphraseLength = 8
	DefaultMinPassphraseScore  = 2
	MaxPassphraseAttempts      = 3
)

// Password generator defaults
const (
	DefaultGeneratedPasswordLength = 20
	MinGeneratedPasswordLength     = 8
	MaxGeneratedPasswordLength     = 128
)

// TOTP defaults
const (
	DefaultTOTPIssuer = "StegVault"
	TOTPPeriodSec     = 30
	TOTPDigits        = 6
)

// File permission constants
const (
	DefaultFilePermissions      = 0600
	DefaultDirectoryPermissions = 0700
)

// Vault format
const (
	VaultFormatVersion = 1
	MaxEntryNameLength = 256
	MaxHistoryDepth    = 10
)

// Gallery database
const (
	GallerySchemaVersion = 1
	MaxLabelLength       = 128
)
