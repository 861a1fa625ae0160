package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/kalashnikxvxiii-collab/StegVault/internal/config"
	"github.com/kalashnikxvxiii-collab/StegVault/internal/constants"
	"github.com/kalashnikxvxiii-collab/StegVault/internal/gallery"
	"github.com/kalashnikxvxiii-collab/StegVault/internal/models"
	"github.com/kalashnikxvxiii-collab/StegVault/internal/security"
	"github.com/kalashnikxvxiii-collab/StegVault/internal/service"

	"github.com/sirupsen/logrus"
	"golang.org/x/term"
)

var (
	// Version information (set at build time)
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"

	// CLI flags
	verbose    = flag.Bool("verbose", false, "Enable verbose logging")
	configPath = flag.String("config", "", "Path to configuration file (default ~/.stegvault/config.json)")
	version    = flag.Bool("version", false, "Show version information")
)

func main() {
	flag.Usage = func() { usage(os.Stderr) }
	flag.Parse()

	if *version {
		printVersion(os.Stdout)
		os.Exit(0)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, flag.Args()); err != nil {
		fmt.Fprintf(os.Stderr, "stegvault: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		usage(os.Stderr)
		return fmt.Errorf("no command given")
	}
	cmd, rest := args[0], args[1:]

	switch cmd {
	case "version":
		printVersion(os.Stdout)
		return nil
	case "help":
		usage(os.Stdout)
		return nil
	}

	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stderr)

	cfgPath := *configPath
	if cfgPath == "" {
		dir, err := config.DefaultDir()
		if err != nil {
			return err
		}
		cfgPath = filepath.Join(dir, constants.DefaultConfigFile)
	}

	cfg, err := config.LoadConfigOrDefault(cfgPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if *verbose {
		logger.SetLevel(logrus.DebugLevel)
	} else {
		level, err := logrus.ParseLevel(cfg.LogLevel)
		if err != nil {
			logger.Warnf("Invalid log level %q, defaulting to info", cfg.LogLevel)
			level = logrus.InfoLevel
		}
		if level > logrus.InfoLevel {
			level = logrus.InfoLevel
		}
		logger.SetLevel(level)
	}

	a := newApp(cfg, cfgPath, logger, service.NewDefaultVaultService(), os.Stdin, os.Stdout, os.Stderr)
	return a.dispatch(ctx, cmd, rest)
}

// app carries the wiring every command needs. Streams are injected so tests
// can drive prompts and capture output.
type app struct {
	cfg     *models.Config
	cfgPath string
	logger  *logrus.Logger
	service service.VaultService

	in     *bufio.Reader
	stdout io.Writer
	stderr io.Writer

	hasTTY bool
	ttyFd  int
}

func newApp(cfg *models.Config, cfgPath string, logger *logrus.Logger, svc service.VaultService, stdin io.Reader, stdout, stderr io.Writer) *app {
	a := &app{
		cfg:     cfg,
		cfgPath: cfgPath,
		logger:  logger,
		service: svc,
		in:      bufio.NewReader(stdin),
		stdout:  stdout,
		stderr:  stderr,
	}
	if f, ok := stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		a.hasTTY = true
		a.ttyFd = int(f.Fd())
	}
	return a
}

func (a *app) dispatch(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "backup":
		return a.cmdBackup(ctx, args)
	case "restore":
		return a.cmdRestore(ctx, args)
	case "capacity":
		return a.cmdCapacity(ctx, args)
	case "inspect":
		return a.cmdInspect(ctx, args)
	case "init":
		return a.cmdInit(ctx, args)
	case "add":
		return a.cmdAdd(ctx, args)
	case "update":
		return a.cmdUpdate(ctx, args)
	case "get":
		return a.cmdGet(ctx, args)
	case "list":
		return a.cmdList(ctx, args)
	case "remove":
		return a.cmdRemove(ctx, args)
	case "rename":
		return a.cmdRename(ctx, args)
	case "history":
		return a.cmdHistory(ctx, args)
	case "history-clear":
		return a.cmdHistoryClear(ctx, args)
	case "totp":
		return a.cmdTOTP(ctx, args)
	case "gallery":
		return a.cmdGallery(ctx, args)
	case "genpass":
		return a.cmdGenpass(ctx, args)
	case "check":
		return a.cmdCheck(ctx, args)
	default:
		usage(a.stderr)
		return fmt.Errorf("unknown command: %s", cmd)
	}
}

// openGallery opens the configured gallery database, creating it on first
// use.
func (a *app) openGallery() (*gallery.Gallery, error) {
	if err := os.MkdirAll(filepath.Dir(a.cfg.GalleryDBPath), constants.DefaultDirectoryPermissions); err != nil {
		return nil, fmt.Errorf("failed to create gallery directory: %w", err)
	}
	return gallery.New(a.cfg.GalleryDBPath, a.logger)
}

// resolveImagePath turns a CLI image reference into a file path. An existing
// file wins; otherwise the gallery is consulted by id, path, or label.
func (a *app) resolveImagePath(ctx context.Context, ref string) (string, error) {
	if ref == "" {
		return "", fmt.Errorf("image reference is required")
	}
	if err := security.ValidateFilePath(ref); err != nil {
		return "", fmt.Errorf("invalid image reference: %w", err)
	}
	if _, err := os.Stat(ref); err == nil {
		return ref, nil
	}

	g, err := a.openGallery()
	if err != nil {
		return "", err
	}
	defer g.Close()

	img, err := g.Resolve(ctx, ref)
	if err != nil {
		return "", err
	}

	status, err := g.Verify(ctx, img.ID)
	if err != nil {
		return "", err
	}
	switch status {
	case gallery.VerifyMissing:
		return "", fmt.Errorf("image file is missing: %s", img.Path)
	case gallery.VerifyModified:
		a.logger.WithField("path", img.Path).Warn("Image changed since registration, the vault may be unrecoverable")
	}

	return img.Path, nil
}

func printVersion(w io.Writer) {
	fmt.Fprintf(w, "StegVault %s\nBuild Time: %s\nGit Commit: %s\n", Version, BuildTime, GitCommit)
}

func usage(w io.Writer) {
	fmt.Fprintf(w, `StegVault hides an encrypted password vault inside ordinary images.

Usage:
  stegvault [-config path] [-verbose] <command> [flags]

Core commands:
  backup      Seal a secret file into a carrier image
  restore     Recover the secret from a vault image
  capacity    Show how much data an image can hold
  inspect     Check an image for an embedded payload

Vault commands:
  init        Create a new empty vault inside a carrier image
  add         Add a credential entry to a vault image
  update      Change fields of an existing entry
  get         Show one entry
  list        List entries, optionally filtered
  remove      Delete an entry
  rename      Rename an entry
  history     Show an entry's password history
  history-clear  Drop an entry's password history
  totp        Generate the current TOTP code for an entry

Other commands:
  gallery     Manage the index of vault images (init|add|list|search|remove|relabel|verify)
  genpass     Generate a random password
  check       Rate a passphrase against the configured policy
  version     Show version information

Vault commands accept -image as a file path or a gallery id/label.
`)
}
