package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kalashnikxvxiii-collab/StegVault/internal/constants"
	"github.com/kalashnikxvxiii-collab/StegVault/internal/models"
	"github.com/kalashnikxvxiii-collab/StegVault/internal/security"

	"github.com/sirupsen/logrus"
)

// Default returns the configuration used when no config file exists. Loading
// unmarshals on top of it, so fields absent from the file keep these values
// while explicit zeroes stick.
func Default() *models.Config {
	return &models.Config{
		LogLevel:   "info",
		TOTPIssuer: constants.DefaultTOTPIssuer,
		Passphrase: models.PassphrasePolicy{
			MinLength: constants.DefaultMinPassphraseLength,
			MinScore:  constants.DefaultMinPassphraseScore,
		},
	}
}

// DefaultDir returns the per-user configuration directory.
func DefaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	return filepath.Join(home, constants.DefaultConfigDir), nil
}

// LoadConfig reads and validates a config file. A relative gallery database
// path resolves under the config file's directory and must not escape it;
// other locations need an absolute path.
func LoadConfig(path string) (*models.Config, error) {
	if err := security.ValidateFilePath(path); err != nil {
		return nil, fmt.Errorf("invalid config path: %w", err)
	}

	file, err := os.ReadFile(path) // #nosec G304 - Path validated by security.ValidateFilePath above
	if err != nil {
		return nil, err
	}

	config := Default()
	if err := json.Unmarshal(file, config); err != nil {
		return nil, err
	}

	applyEnvironmentOverrides(config)

	if err := resolveGalleryPath(config, filepath.Dir(path)); err != nil {
		return nil, err
	}

	if err := validate(config); err != nil {
		return nil, err
	}

	return config, nil
}

// LoadConfigOrDefault behaves like LoadConfig but falls back to defaults
// when the file does not exist, so the tool works before `init` has run.
func LoadConfigOrDefault(path string) (*models.Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		config := Default()
		applyEnvironmentOverrides(config)
		if err := resolveGalleryPath(config, filepath.Dir(path)); err != nil {
			return nil, err
		}
		if err := validate(config); err != nil {
			return nil, err
		}
		return config, nil
	}
	return LoadConfig(path)
}

// SaveConfig writes the config as indented JSON, creating the directory with
// owner-only permissions.
func SaveConfig(path string, config *models.Config) error {
	if err := security.ValidateFilePath(path); err != nil {
		return fmt.Errorf("invalid config path: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), constants.DefaultDirectoryPermissions); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	data = append(data, '\n')

	if err := os.WriteFile(path, data, constants.DefaultFilePermissions); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

func validate(c *models.Config) error {
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return models.ConfigError{Message: fmt.Sprintf("invalid log level: %s", c.LogLevel)}
	}

	if c.Passphrase.MinLength < 1 {
		return models.ConfigError{Message: "passphrase minimum length must be at least 1"}
	}
	if c.Passphrase.MinScore < 0 || c.Passphrase.MinScore > 4 {
		return models.ConfigError{Message: "passphrase minimum score must be between 0 and 4"}
	}

	if c.GalleryDBPath == "" {
		return models.ConfigError{Message: "missing gallery database path"}
	}
	if err := security.ValidateFilePath(c.GalleryDBPath); err != nil {
		return models.ConfigError{Message: fmt.Sprintf("invalid gallery database path: %v", err)}
	}

	if c.OutputDir != "" {
		if err := security.ValidateFilePath(c.OutputDir); err != nil {
			return models.ConfigError{Message: fmt.Sprintf("invalid output directory: %v", err)}
		}
	}

	if strings.TrimSpace(c.TOTPIssuer) == "" {
		return models.ConfigError{Message: "missing TOTP issuer"}
	}

	return nil
}

func applyEnvironmentOverrides(c *models.Config) {
	if level := os.Getenv("STEGVAULT_LOG_LEVEL"); level != "" {
		c.LogLevel = level
	}
	if path := os.Getenv("STEGVAULT_GALLERY_DB"); path != "" {
		c.GalleryDBPath = path
	}
	if dir := os.Getenv("STEGVAULT_OUTPUT_DIR"); dir != "" {
		c.OutputDir = dir
	}
	if issuer := os.Getenv("STEGVAULT_TOTP_ISSUER"); issuer != "" {
		c.TOTPIssuer = issuer
	}
}

// resolveGalleryPath fills in the default gallery location and anchors
// relative paths to the config directory.
func resolveGalleryPath(c *models.Config, baseDir string) error {
	if c.GalleryDBPath == "" {
		c.GalleryDBPath = filepath.Join(baseDir, constants.DefaultGalleryFile)
		return nil
	}
	if !filepath.IsAbs(c.GalleryDBPath) {
		if err := security.ValidateFilePathWithBase(c.GalleryDBPath, baseDir); err != nil {
			return models.ConfigError{Message: fmt.Sprintf("gallery database path: %v", err)}
		}
		c.GalleryDBPath = filepath.Join(baseDir, c.GalleryDBPath)
	}
	return nil
}
