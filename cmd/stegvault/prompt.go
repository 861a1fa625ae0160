package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/kalashnikxvxiii-collab/StegVault/internal/vault"

	"golang.org/x/term"
)

// readPassphrase prompts for a passphrase without echoing. Without a
// terminal it falls back to reading a line from stdin, which keeps the
// command usable in pipes and tests.
func (a *app) readPassphrase(prompt string) (string, error) {
	if a.hasTTY {
		fmt.Fprint(a.stderr, prompt)
		raw, err := term.ReadPassword(a.ttyFd)
		fmt.Fprintln(a.stderr)
		if err != nil {
			return "", fmt.Errorf("failed to read passphrase: %w", err)
		}
		return string(raw), nil
	}

	line, err := a.in.ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("failed to read passphrase: %w", err)
	}
	if line == "" && err == io.EOF {
		return "", fmt.Errorf("failed to read passphrase: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// promptNewPassphrase asks for a passphrase twice and enforces the
// configured policy before the caller encrypts anything with it.
func (a *app) promptNewPassphrase() (string, error) {
	pass, err := a.readPassphrase("Enter new passphrase: ")
	if err != nil {
		return "", err
	}
	if err := vault.CheckPassphrase(pass, a.cfg.Passphrase); err != nil {
		return "", err
	}
	confirm, err := a.readPassphrase("Confirm passphrase: ")
	if err != nil {
		return "", err
	}
	if pass != confirm {
		return "", fmt.Errorf("passphrases do not match")
	}
	return pass, nil
}
