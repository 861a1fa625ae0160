// Package vault implements the password vault StegVault seals into carrier
// images: a collection of credential entries with per-entry password
// history, serialized as DEFLATE-compressed JSON. Compression runs before
// encryption because carrier capacity is the scarce resource; ciphertext is
// incompressible afterwards.
package vault

import (
	"bytes"
	"compress/flate"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/kalashnikxvxiii-collab/StegVault/internal/constants"
	"github.com/kalashnikxvxiii-collab/StegVault/internal/models"
)

var (
	ErrEntryExists   = errors.New("vault: entry already exists")
	ErrEntryNotFound = errors.New("vault: entry not found")
)

// Vault wraps the serialized document with mutation operations. The zero
// value is not usable; construct with New or Open.
type Vault struct {
	doc models.Vault
	now func() time.Time
}

// New creates an empty vault at the current format version.
func New() *Vault {
	v := &Vault{now: time.Now}
	t := v.now().UTC()
	v.doc = models.Vault{
		Version:   constants.VaultFormatVersion,
		CreatedAt: t,
		UpdatedAt: t,
	}
	return v
}

// Open inflates and decodes vault bytes produced by Bytes. Vaults written
// by a newer format version are rejected rather than partially read.
func Open(data []byte) (*Vault, error) {
	r := flate.NewReader(bytes.NewReader(data))
	defer r.Close()
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("vault: failed to decompress: %w", err)
	}
	var doc models.Vault
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("vault: failed to decode: %w", err)
	}
	if doc.Version < 1 || doc.Version > constants.VaultFormatVersion {
		return nil, fmt.Errorf("vault: unsupported format version %d", doc.Version)
	}
	return &Vault{doc: doc, now: time.Now}, nil
}

// Bytes serializes the vault to compressed JSON, the byte form handed to
// the backup service as the secret.
func (v *Vault) Bytes() ([]byte, error) {
	raw, err := json.Marshal(v.doc)
	if err != nil {
		return nil, fmt.Errorf("vault: failed to encode: %w", err)
	}
	var buf bytes.Buffer
	w, err := flate.NewWriter(&buf, flate.BestCompression)
	if err != nil {
		return nil, fmt.Errorf("vault: failed to compress: %w", err)
	}
	if _, err := w.Write(raw); err != nil {
		return nil, fmt.Errorf("vault: failed to compress: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("vault: failed to compress: %w", err)
	}
	return buf.Bytes(), nil
}

// Version returns the vault's format version.
func (v *Vault) Version() int {
	return v.doc.Version
}

// Len returns the number of entries.
func (v *Vault) Len() int {
	return len(v.doc.Entries)
}

// Add inserts a new entry. Name, timestamps, and history are normalized;
// any history on the incoming entry is discarded.
func (v *Vault) Add(e models.VaultEntry) error {
	name, err := normalizeName(e.Name)
	if err != nil {
		return err
	}
	if v.find(name) >= 0 {
		return fmt.Errorf("%w: %q", ErrEntryExists, name)
	}
	t := v.now().UTC()
	e.Name = name
	e.History = nil
	e.CreatedAt = t
	e.UpdatedAt = t
	v.doc.Entries = append(v.doc.Entries, e)
	v.doc.UpdatedAt = t
	return nil
}

// Get returns a copy of the named entry.
func (v *Vault) Get(name string) (models.VaultEntry, error) {
	i := v.find(name)
	if i < 0 {
		return models.VaultEntry{}, fmt.Errorf("%w: %q", ErrEntryNotFound, name)
	}
	return v.doc.Entries[i], nil
}

// EntryUpdate carries field changes for Update. A nil pointer leaves the
// field as it is; a pointer to the zero value clears it.
type EntryUpdate struct {
	Username   *string
	Password   *string
	URL        *string
	Notes      *string
	Tags       *[]string
	TOTPSecret *string
}

// Update applies the non-nil fields of u to the named entry. Replacing a
// non-empty password pushes the old one onto the entry's history, newest
// first, trimmed to the history depth limit.
func (v *Vault) Update(name string, u EntryUpdate) error {
	i := v.find(name)
	if i < 0 {
		return fmt.Errorf("%w: %q", ErrEntryNotFound, name)
	}
	e := &v.doc.Entries[i]
	t := v.now().UTC()

	if u.Password != nil && *u.Password != e.Password {
		if e.Password != "" {
			e.History = append([]models.PasswordVersion{{Password: e.Password, ReplacedAt: t}}, e.History...)
			if len(e.History) > constants.MaxHistoryDepth {
				e.History = e.History[:constants.MaxHistoryDepth]
			}
		}
		e.Password = *u.Password
	}
	if u.Username != nil {
		e.Username = *u.Username
	}
	if u.URL != nil {
		e.URL = *u.URL
	}
	if u.Notes != nil {
		e.Notes = *u.Notes
	}
	if u.Tags != nil {
		e.Tags = *u.Tags
	}
	if u.TOTPSecret != nil {
		e.TOTPSecret = *u.TOTPSecret
	}

	e.UpdatedAt = t
	v.doc.UpdatedAt = t
	return nil
}

// Remove deletes the named entry.
func (v *Vault) Remove(name string) error {
	i := v.find(name)
	if i < 0 {
		return fmt.Errorf("%w: %q", ErrEntryNotFound, name)
	}
	v.doc.Entries = append(v.doc.Entries[:i], v.doc.Entries[i+1:]...)
	v.doc.UpdatedAt = v.now().UTC()
	return nil
}

// Rename changes an entry's name, keeping everything else including its
// creation time and history.
func (v *Vault) Rename(oldName, newName string) error {
	name, err := normalizeName(newName)
	if err != nil {
		return err
	}
	i := v.find(oldName)
	if i < 0 {
		return fmt.Errorf("%w: %q", ErrEntryNotFound, oldName)
	}
	if j := v.find(name); j >= 0 && j != i {
		return fmt.Errorf("%w: %q", ErrEntryExists, name)
	}
	t := v.now().UTC()
	v.doc.Entries[i].Name = name
	v.doc.Entries[i].UpdatedAt = t
	v.doc.UpdatedAt = t
	return nil
}

// List returns all entries sorted by name.
func (v *Vault) List() []models.VaultEntry {
	out := make([]models.VaultEntry, len(v.doc.Entries))
	copy(out, v.doc.Entries)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Search returns entries whose name, username, URL, notes, or tags contain
// the query, case-insensitively, sorted by name.
func (v *Vault) Search(query string) []models.VaultEntry {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return v.List()
	}
	var out []models.VaultEntry
	for _, e := range v.doc.Entries {
		if matchesQuery(e, q) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// History returns the named entry's password history, newest first.
func (v *Vault) History(name string) ([]models.PasswordVersion, error) {
	i := v.find(name)
	if i < 0 {
		return nil, fmt.Errorf("%w: %q", ErrEntryNotFound, name)
	}
	out := make([]models.PasswordVersion, len(v.doc.Entries[i].History))
	copy(out, v.doc.Entries[i].History)
	return out, nil
}

// ClearHistory discards the named entry's password history.
func (v *Vault) ClearHistory(name string) error {
	i := v.find(name)
	if i < 0 {
		return fmt.Errorf("%w: %q", ErrEntryNotFound, name)
	}
	v.doc.Entries[i].History = nil
	v.doc.UpdatedAt = v.now().UTC()
	return nil
}

func (v *Vault) find(name string) int {
	for i := range v.doc.Entries {
		if v.doc.Entries[i].Name == name {
			return i
		}
	}
	return -1
}

func matchesQuery(e models.VaultEntry, q string) bool {
	for _, field := range []string{e.Name, e.Username, e.URL, e.Notes} {
		if strings.Contains(strings.ToLower(field), q) {
			return true
		}
	}
	for _, tag := range e.Tags {
		if strings.Contains(strings.ToLower(tag), q) {
			return true
		}
	}
	return false
}

func normalizeName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", errors.New("vault: entry name must not be empty")
	}
	if len(name) > constants.MaxEntryNameLength {
		return "", fmt.Errorf("vault: entry name exceeds %d characters", constants.MaxEntryNameLength)
	}
	return name, nil
}
