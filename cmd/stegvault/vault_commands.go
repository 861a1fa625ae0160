package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/kalashnikxvxiii-collab/StegVault/internal/config"
	"github.com/kalashnikxvxiii-collab/StegVault/internal/gallery"
	"github.com/kalashnikxvxiii-collab/StegVault/internal/models"
	"github.com/kalashnikxvxiii-collab/StegVault/internal/privacy"
	"github.com/kalashnikxvxiii-collab/StegVault/internal/vault"

	"github.com/sirupsen/logrus"
)

// vaultSession holds an opened vault together with what saveVault needs to
// seal it back into an image: the accepted passphrase and the carrier bytes.
type vaultSession struct {
	vault      *vault.Vault
	imagePath  string
	passphrase string
	carrier    []byte
}

// openVault resolves the image reference, reads the image, and decrypts the
// vault inside it, prompting for the passphrase.
func (a *app) openVault(ctx context.Context, ref string) (*vaultSession, error) {
	imagePath, err := a.resolveImagePath(ctx, ref)
	if err != nil {
		return nil, err
	}
	carrier, err := os.ReadFile(imagePath) // #nosec G304 - Path validated by security.ValidateFilePath above
	if err != nil {
		return nil, fmt.Errorf("failed to read vault image: %w", err)
	}

	secret, passphrase, err := a.restoreWithRetry(carrier)
	if err != nil {
		return nil, err
	}
	v, err := vault.Open(secret)
	if err != nil {
		return nil, err
	}
	return &vaultSession{vault: v, imagePath: imagePath, passphrase: passphrase, carrier: carrier}, nil
}

// saveVault seals the session's vault back into its carrier and writes the
// result. An empty outPath rewrites the source image in place, refreshing
// its gallery hash if the image is registered.
func (a *app) saveVault(ctx context.Context, s *vaultSession, outPath string) error {
	inPlace := outPath == ""
	if inPlace {
		outPath = s.imagePath
	} else {
		outPath = a.outputPath(outPath)
	}

	data, err := s.vault.Bytes()
	if err != nil {
		return err
	}
	sealed, err := a.service.Backup(data, s.passphrase, s.carrier)
	if err != nil {
		return err
	}
	if err := writeFileAtomic(outPath, sealed); err != nil {
		return err
	}

	if inPlace {
		a.refreshGalleryHash(ctx, outPath)
	}
	a.logger.WithFields(logrus.Fields{
		"path":    outPath,
		"entries": s.vault.Len(),
	}).Debug("Vault saved")
	return nil
}

// refreshGalleryHash updates the stored hash after an in-place rewrite so
// verify keeps passing. Unregistered images are fine to skip.
func (a *app) refreshGalleryHash(ctx context.Context, path string) {
	g, err := a.openGallery()
	if err != nil {
		a.logger.WithField("error", err).Warn("Failed to open gallery for hash refresh")
		return
	}
	defer g.Close()

	if err := g.RefreshHash(ctx, path); err != nil && !errors.Is(err, gallery.ErrImageNotFound) {
		a.logger.WithField("error", err).Warn("Failed to refresh gallery hash")
	}
}

// cmdInit creates a new empty vault inside a carrier image and registers
// the result in the gallery.
func (a *app) cmdInit(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	carrier := fs.String("carrier", "", "Carrier image to hide the new vault in")
	out := fs.String("out", "", "Where to write the vault image")
	label := fs.String("label", "", "Gallery label for the new vault image")
	noRegister := fs.Bool("no-register", false, "Skip gallery registration")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *carrier == "" || *out == "" {
		return fmt.Errorf("init requires -carrier and -out")
	}

	if err := a.ensureConfigFile(); err != nil {
		return err
	}

	carrierPath, err := a.resolveImagePath(ctx, *carrier)
	if err != nil {
		return err
	}
	carrierData, err := os.ReadFile(carrierPath) // #nosec G304 - Path validated by security.ValidateFilePath above
	if err != nil {
		return fmt.Errorf("failed to read carrier image: %w", err)
	}

	passphrase, err := a.promptNewPassphrase()
	if err != nil {
		return err
	}

	data, err := vault.New().Bytes()
	if err != nil {
		return err
	}
	sealed, err := a.service.Backup(data, passphrase, carrierData)
	if err != nil {
		return err
	}
	outPath := a.outputPath(*out)
	if err := writeFileAtomic(outPath, sealed); err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "Created empty vault in %s\n", outPath)

	if *noRegister {
		return nil
	}
	g, err := a.openGallery()
	if err != nil {
		return err
	}
	defer g.Close()

	img, err := g.Add(ctx, outPath, *label, nil)
	if errors.Is(err, gallery.ErrImageExists) {
		return g.RefreshHash(ctx, outPath)
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "Registered in gallery as %s\n", img.ID)
	return nil
}

// ensureConfigFile writes the active configuration to disk on first use so
// later runs pick up the same gallery database.
func (a *app) ensureConfigFile() error {
	if _, err := os.Stat(a.cfgPath); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("failed to check config file: %w", err)
	}
	if err := config.SaveConfig(a.cfgPath, a.cfg); err != nil {
		return err
	}
	a.logger.WithField("path", a.cfgPath).Info("Wrote default configuration")
	return nil
}

// cmdAdd adds a credential entry to a vault image.
func (a *app) cmdAdd(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("add", flag.ExitOnError)
	image := fs.String("image", "", "Vault image (path or gallery reference)")
	out := fs.String("out", "", "Write the updated vault here instead of in place")
	name := fs.String("name", "", "Entry name")
	username := fs.String("username", "", "Username for the entry")
	urlFlag := fs.String("url", "", "Website URL for the entry")
	notes := fs.String("notes", "", "Free-form notes")
	tags := fs.String("tags", "", "Comma-separated tags")
	totpSecret := fs.String("totp-secret", "", "Base32 TOTP secret")
	genTOTP := fs.Bool("gen-totp", false, "Generate a fresh TOTP secret")
	password := fs.String("password", "", "Entry password (prompted when omitted)")
	genpass := fs.Bool("genpass", false, "Generate the entry password")
	genLength := fs.Int("gen-length", 0, "Length of the generated password")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *name == "" {
		return fmt.Errorf("add requires -name")
	}

	s, err := a.openVault(ctx, *image)
	if err != nil {
		return err
	}

	entryPassword := *password
	switch {
	case *genpass:
		entryPassword, err = a.generatePassword(*genLength)
		if err != nil {
			return err
		}
		fmt.Fprintf(a.stdout, "Generated password: %s\n", entryPassword)
	case entryPassword == "" && !flagWasSet(fs, "password"):
		entryPassword, err = a.readEntryPassword()
		if err != nil {
			return err
		}
	}

	entrySecret := *totpSecret
	if *genTOTP {
		entrySecret, err = vault.NewTOTPSecret()
		if err != nil {
			return err
		}
		fmt.Fprintf(a.stdout, "Generated TOTP secret: %s\n", entrySecret)
	}

	entry := models.VaultEntry{
		Name:       *name,
		Username:   *username,
		Password:   entryPassword,
		URL:        *urlFlag,
		Notes:      *notes,
		Tags:       splitTags(*tags),
		TOTPSecret: entrySecret,
	}
	if err := s.vault.Add(entry); err != nil {
		return err
	}
	a.logger.WithFields(privacy.MaskSensitiveFields(logrus.Fields{
		"name":     entry.Name,
		"username": entry.Username,
		"url":      entry.URL,
	})).Debug("Entry added")
	if err := a.saveVault(ctx, s, *out); err != nil {
		return err
	}

	fmt.Fprintf(a.stdout, "Added entry %q\n", *name)
	if entryPassword != "" {
		strength := vault.EstimateStrength(entryPassword, *name, *username)
		fmt.Fprintf(a.stdout, "Password strength: %d/4 (crack time %s)\n", strength.Score, strength.CrackTimeDisplay)
	}
	return nil
}

// cmdUpdate changes fields of an existing entry. Only flags that were set
// on the command line are applied, so an empty value clears a field.
func (a *app) cmdUpdate(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("update", flag.ExitOnError)
	image := fs.String("image", "", "Vault image (path or gallery reference)")
	out := fs.String("out", "", "Write the updated vault here instead of in place")
	name := fs.String("name", "", "Entry name")
	username := fs.String("username", "", "New username")
	password := fs.String("password", "", "New password")
	genpass := fs.Bool("genpass", false, "Rotate to a generated password")
	genLength := fs.Int("gen-length", 0, "Length of the generated password")
	urlFlag := fs.String("url", "", "New website URL")
	notes := fs.String("notes", "", "New notes")
	tags := fs.String("tags", "", "New comma-separated tags")
	totpSecret := fs.String("totp-secret", "", "New base32 TOTP secret")
	genTOTP := fs.Bool("gen-totp", false, "Rotate to a fresh TOTP secret")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *name == "" {
		return fmt.Errorf("update requires -name")
	}

	var u vault.EntryUpdate
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "username":
			u.Username = username
		case "password":
			u.Password = password
		case "url":
			u.URL = urlFlag
		case "notes":
			u.Notes = notes
		case "tags":
			t := splitTags(*tags)
			u.Tags = &t
		case "totp-secret":
			u.TOTPSecret = totpSecret
		}
	})
	if *genpass {
		generated, err := a.generatePassword(*genLength)
		if err != nil {
			return err
		}
		u.Password = &generated
	}
	if *genTOTP {
		generated, err := vault.NewTOTPSecret()
		if err != nil {
			return err
		}
		u.TOTPSecret = &generated
	}
	if u == (vault.EntryUpdate{}) {
		return fmt.Errorf("update requires at least one field flag")
	}

	s, err := a.openVault(ctx, *image)
	if err != nil {
		return err
	}
	if err := s.vault.Update(*name, u); err != nil {
		return err
	}
	if err := a.saveVault(ctx, s, *out); err != nil {
		return err
	}

	fmt.Fprintf(a.stdout, "Updated entry %q\n", *name)
	if u.Password != nil && *genpass {
		fmt.Fprintf(a.stdout, "New password: %s\n", *u.Password)
	}
	if u.TOTPSecret != nil && *genTOTP {
		fmt.Fprintf(a.stdout, "New TOTP secret: %s\n", *u.TOTPSecret)
	}
	return nil
}

// cmdGet shows one entry. The password stays masked unless asked for.
func (a *app) cmdGet(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("get", flag.ExitOnError)
	image := fs.String("image", "", "Vault image (path or gallery reference)")
	name := fs.String("name", "", "Entry name")
	showPassword := fs.Bool("show-password", false, "Print the password in the clear")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *name == "" {
		return fmt.Errorf("get requires -name")
	}

	s, err := a.openVault(ctx, *image)
	if err != nil {
		return err
	}
	entry, err := s.vault.Get(*name)
	if err != nil {
		return err
	}

	displayed := privacy.MaskSecret(entry.Password)
	if *showPassword {
		displayed = entry.Password
	}
	fmt.Fprintf(a.stdout, "Name:     %s\n", entry.Name)
	fmt.Fprintf(a.stdout, "Username: %s\n", entry.Username)
	fmt.Fprintf(a.stdout, "Password: %s\n", displayed)
	fmt.Fprintf(a.stdout, "URL:      %s\n", entry.URL)
	if entry.Notes != "" {
		fmt.Fprintf(a.stdout, "Notes:    %s\n", entry.Notes)
	}
	if len(entry.Tags) > 0 {
		fmt.Fprintf(a.stdout, "Tags:     %s\n", strings.Join(entry.Tags, ", "))
	}
	if entry.TOTPSecret != "" {
		fmt.Fprintln(a.stdout, "TOTP:     configured")
	}
	if len(entry.History) > 0 {
		fmt.Fprintf(a.stdout, "History:  %d previous password(s)\n", len(entry.History))
	}
	fmt.Fprintf(a.stdout, "Updated:  %s\n", entry.UpdatedAt.Local().Format(time.RFC3339))
	return nil
}

// cmdList lists entries, masking usernames and URLs unless -full is given.
func (a *app) cmdList(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	image := fs.String("image", "", "Vault image (path or gallery reference)")
	query := fs.String("q", "", "Filter entries by name, username, URL, or tag")
	full := fs.Bool("full", false, "Show usernames and URLs in the clear")
	if err := fs.Parse(args); err != nil {
		return err
	}

	s, err := a.openVault(ctx, *image)
	if err != nil {
		return err
	}

	var entries []models.VaultEntry
	if *query == "" {
		entries = s.vault.List()
	} else {
		entries = s.vault.Search(*query)
	}
	if len(entries) == 0 {
		fmt.Fprintln(a.stdout, "No entries")
		return nil
	}

	w := tabwriter.NewWriter(a.stdout, 0, 8, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tUSERNAME\tURL\tTAGS\tUPDATED")
	for _, e := range entries {
		username, entryURL := e.Username, e.URL
		if !*full {
			username = privacy.MaskUsername(username)
			entryURL = privacy.MaskURL(entryURL)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			e.Name, username, entryURL, strings.Join(e.Tags, ","), e.UpdatedAt.Local().Format("2006-01-02 15:04"))
	}
	return w.Flush()
}

// cmdRemove deletes an entry.
func (a *app) cmdRemove(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("remove", flag.ExitOnError)
	image := fs.String("image", "", "Vault image (path or gallery reference)")
	out := fs.String("out", "", "Write the updated vault here instead of in place")
	name := fs.String("name", "", "Entry name")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *name == "" {
		return fmt.Errorf("remove requires -name")
	}

	s, err := a.openVault(ctx, *image)
	if err != nil {
		return err
	}
	if err := s.vault.Remove(*name); err != nil {
		return err
	}
	if err := a.saveVault(ctx, s, *out); err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "Removed entry %q\n", *name)
	return nil
}

// cmdRename renames an entry, keeping its history.
func (a *app) cmdRename(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("rename", flag.ExitOnError)
	image := fs.String("image", "", "Vault image (path or gallery reference)")
	out := fs.String("out", "", "Write the updated vault here instead of in place")
	name := fs.String("name", "", "Current entry name")
	to := fs.String("to", "", "New entry name")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *name == "" || *to == "" {
		return fmt.Errorf("rename requires -name and -to")
	}

	s, err := a.openVault(ctx, *image)
	if err != nil {
		return err
	}
	if err := s.vault.Rename(*name, *to); err != nil {
		return err
	}
	if err := a.saveVault(ctx, s, *out); err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "Renamed entry %q to %q\n", *name, *to)
	return nil
}

// cmdHistory shows an entry's rotated-out passwords, newest first.
func (a *app) cmdHistory(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("history", flag.ExitOnError)
	image := fs.String("image", "", "Vault image (path or gallery reference)")
	name := fs.String("name", "", "Entry name")
	showPasswords := fs.Bool("show-passwords", false, "Print old passwords in the clear")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *name == "" {
		return fmt.Errorf("history requires -name")
	}

	s, err := a.openVault(ctx, *image)
	if err != nil {
		return err
	}
	history, err := s.vault.History(*name)
	if err != nil {
		return err
	}
	if len(history) == 0 {
		fmt.Fprintln(a.stdout, "No history")
		return nil
	}

	w := tabwriter.NewWriter(a.stdout, 0, 8, 2, ' ', 0)
	fmt.Fprintln(w, "#\tPASSWORD\tREPLACED")
	for i, pv := range history {
		displayed := privacy.MaskSecret(pv.Password)
		if *showPasswords {
			displayed = pv.Password
		}
		fmt.Fprintf(w, "%d\t%s\t%s\n", i+1, displayed, pv.ReplacedAt.Local().Format(time.RFC3339))
	}
	return w.Flush()
}

// cmdHistoryClear drops an entry's password history.
func (a *app) cmdHistoryClear(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("history-clear", flag.ExitOnError)
	image := fs.String("image", "", "Vault image (path or gallery reference)")
	out := fs.String("out", "", "Write the updated vault here instead of in place")
	name := fs.String("name", "", "Entry name")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *name == "" {
		return fmt.Errorf("history-clear requires -name")
	}

	s, err := a.openVault(ctx, *image)
	if err != nil {
		return err
	}
	if err := s.vault.ClearHistory(*name); err != nil {
		return err
	}
	if err := a.saveVault(ctx, s, *out); err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "Cleared history for %q\n", *name)
	return nil
}

// cmdTOTP prints the current code for an entry, or its provisioning URI.
func (a *app) cmdTOTP(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("totp", flag.ExitOnError)
	image := fs.String("image", "", "Vault image (path or gallery reference)")
	name := fs.String("name", "", "Entry name")
	uri := fs.Bool("uri", false, "Print the otpauth provisioning URI instead of a code")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *name == "" {
		return fmt.Errorf("totp requires -name")
	}

	s, err := a.openVault(ctx, *image)
	if err != nil {
		return err
	}
	entry, err := s.vault.Get(*name)
	if err != nil {
		return err
	}
	if entry.TOTPSecret == "" {
		return fmt.Errorf("entry %q has no TOTP secret", *name)
	}

	if *uri {
		account := entry.Username
		if account == "" {
			account = entry.Name
		}
		provisioning, err := vault.ProvisioningURI(entry.TOTPSecret, a.cfg.TOTPIssuer, account)
		if err != nil {
			return err
		}
		fmt.Fprintln(a.stdout, provisioning)
		return nil
	}

	now := time.Now()
	code, err := vault.TOTPCode(entry.TOTPSecret, now)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "%s (expires in %ds)\n", code, vault.TOTPSecondsRemaining(now))
	return nil
}

// readEntryPassword prompts twice for an entry password. Empty is allowed,
// for entries that only hold a TOTP secret or notes.
func (a *app) readEntryPassword() (string, error) {
	pass, err := a.readPassphrase("Enter entry password (empty for none): ")
	if err != nil {
		return "", err
	}
	if pass == "" {
		return "", nil
	}
	confirm, err := a.readPassphrase("Confirm entry password: ")
	if err != nil {
		return "", err
	}
	if pass != confirm {
		return "", fmt.Errorf("passwords do not match")
	}
	return pass, nil
}

func (a *app) generatePassword(length int) (string, error) {
	opts := vault.DefaultGeneratorOptions()
	if length > 0 {
		opts.Length = length
	}
	return vault.GeneratePassword(opts)
}

func splitTags(raw string) []string {
	if raw == "" {
		return nil
	}
	var tags []string
	for _, t := range strings.Split(raw, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

func flagWasSet(fs *flag.FlagSet, name string) bool {
	set := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})
	return set
}
