package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/kalashnikxvxiii-collab/StegVault/internal/constants"
	"github.com/kalashnikxvxiii-collab/StegVault/internal/crypto"
)

// cmdBackup seals an arbitrary secret file into a carrier image.
func (a *app) cmdBackup(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("backup", flag.ExitOnError)
	carrier := fs.String("in", "", "Carrier image (path or gallery reference)")
	secretPath := fs.String("secret", "", "File holding the secret to hide")
	out := fs.String("out", "", "Where to write the vault image")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *secretPath == "" || *out == "" {
		return fmt.Errorf("backup requires -in, -secret, and -out")
	}

	carrierPath, err := a.resolveImagePath(ctx, *carrier)
	if err != nil {
		return err
	}
	carrierData, err := os.ReadFile(carrierPath) // #nosec G304 - Path validated by security.ValidateFilePath above
	if err != nil {
		return fmt.Errorf("failed to read carrier image: %w", err)
	}
	secret, err := os.ReadFile(*secretPath) // #nosec G304 - Path comes from the operator's command line
	if err != nil {
		return fmt.Errorf("failed to read secret file: %w", err)
	}

	passphrase, err := a.promptNewPassphrase()
	if err != nil {
		return err
	}

	sealed, err := a.service.Backup(secret, passphrase, carrierData)
	if err != nil {
		return err
	}
	outPath := a.outputPath(*out)
	if err := writeFileAtomic(outPath, sealed); err != nil {
		return err
	}

	a.logger.WithField("path", outPath).Info("Backup written")
	fmt.Fprintf(a.stdout, "Sealed %d bytes into %s\n", len(secret), outPath)
	return nil
}

// cmdRestore recovers the secret hidden in a vault image.
func (a *app) cmdRestore(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("restore", flag.ExitOnError)
	image := fs.String("in", "", "Vault image (path or gallery reference)")
	out := fs.String("out", "", "Where to write the secret (default stdout)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	imagePath, err := a.resolveImagePath(ctx, *image)
	if err != nil {
		return err
	}
	carrierData, err := os.ReadFile(imagePath) // #nosec G304 - Path validated by security.ValidateFilePath above
	if err != nil {
		return fmt.Errorf("failed to read vault image: %w", err)
	}

	secret, _, err := a.restoreWithRetry(carrierData)
	if err != nil {
		return err
	}

	if *out == "" {
		if _, err := a.stdout.Write(secret); err != nil {
			return fmt.Errorf("failed to write secret: %w", err)
		}
		return nil
	}
	outPath := a.outputPath(*out)
	if err := writeFileAtomic(outPath, secret); err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "Recovered %d bytes into %s\n", len(secret), outPath)
	return nil
}

// restoreWithRetry prompts for the passphrase and retries on an
// authentication failure, up to the attempt limit. Any other failure is
// returned immediately. The accepted passphrase is returned alongside the
// secret so callers can re-seal with it.
func (a *app) restoreWithRetry(carrierData []byte) ([]byte, string, error) {
	for attempt := 1; attempt <= constants.MaxPassphraseAttempts; attempt++ {
		passphrase, err := a.readPassphrase("Enter passphrase: ")
		if err != nil {
			return nil, "", err
		}
		secret, err := a.service.Restore(carrierData, passphrase)
		if err == nil {
			return secret, passphrase, nil
		}
		if !errors.Is(err, crypto.ErrAuthentication) {
			return nil, "", err
		}
		if attempt < constants.MaxPassphraseAttempts {
			fmt.Fprintln(a.stderr, "Wrong passphrase, try again.")
		}
	}
	return nil, "", fmt.Errorf("authentication failed after %d attempts", constants.MaxPassphraseAttempts)
}

// cmdCapacity reports how much secret data an image can hold.
func (a *app) cmdCapacity(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("capacity", flag.ExitOnError)
	image := fs.String("in", "", "Image to measure (path or gallery reference)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	imagePath, err := a.resolveImagePath(ctx, *image)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(imagePath) // #nosec G304 - Path validated by security.ValidateFilePath above
	if err != nil {
		return fmt.Errorf("failed to read image: %w", err)
	}

	info, err := a.service.Capacity(data)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "Format:   %s\n", info.Format)
	fmt.Fprintf(a.stdout, "Size:     %dx%d\n", info.Width, info.Height)
	fmt.Fprintf(a.stdout, "Capacity: %d bytes (%d usable for a secret)\n", info.TotalBytes, info.SecretBytes)
	return nil
}

// cmdInspect checks whether an image carries an embedded payload.
func (a *app) cmdInspect(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("inspect", flag.ExitOnError)
	image := fs.String("in", "", "Image to inspect (path or gallery reference)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	imagePath, err := a.resolveImagePath(ctx, *image)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(imagePath) // #nosec G304 - Path validated by security.ValidateFilePath above
	if err != nil {
		return fmt.Errorf("failed to read image: %w", err)
	}

	info, err := a.service.Inspect(data)
	if err != nil {
		return err
	}
	if !info.Present {
		fmt.Fprintln(a.stdout, "No payload detected")
		return nil
	}
	if !info.Complete {
		fmt.Fprintf(a.stdout, "Payload header found but the body is truncated (%d bytes declared)\n", info.TotalBytes)
		return nil
	}
	fmt.Fprintf(a.stdout, "Payload present: %d bytes (%d bytes ciphertext)\n", info.TotalBytes, info.CiphertextLen)
	return nil
}

// outputPath places a bare file name into the configured output directory.
// Paths with a directory component are taken as given.
func (a *app) outputPath(name string) string {
	if name == "" || a.cfg.OutputDir == "" {
		return name
	}
	if filepath.Dir(name) != "." || filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(a.cfg.OutputDir, name)
}

// writeFileAtomic writes data to a temporary file in the target directory
// and renames it into place, so a crash never leaves a half-written image.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".stegvault-*")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to write file: %w", err)
	}
	if err := tmp.Chmod(constants.DefaultFilePermissions); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to set file permissions: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to close file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}
