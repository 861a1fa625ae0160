package gallery

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/kalashnikxvxiii-collab/StegVault/internal/constants"
	"github.com/kalashnikxvxiii-collab/StegVault/internal/models"
	"github.com/kalashnikxvxiii-collab/StegVault/internal/security"
	"github.com/kalashnikxvxiii-collab/StegVault/pkg/steg"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	_ "github.com/mattn/go-sqlite3"
)

var (
	ErrImageExists   = errors.New("gallery: image already registered")
	ErrImageNotFound = errors.New("gallery: image not found")
)

// VerifyStatus reports the state of a registered image on disk.
type VerifyStatus string

const (
	VerifyOK       VerifyStatus = "ok"
	VerifyMissing  VerifyStatus = "missing"
	VerifyModified VerifyStatus = "modified"
)

// Gallery is a SQLite-backed index of carrier images that hold vaults. It
// records where each image lives and what it looked like at registration
// time; it never opens a payload.
type Gallery struct {
	db     *sql.DB
	logger *logrus.Logger
	now    func() time.Time
}

func New(dbPath string, logger *logrus.Logger) (*Gallery, error) {
	if err := security.ValidateFilePath(dbPath); err != nil {
		return nil, fmt.Errorf("invalid database path: %w", err)
	}

	file, err := os.OpenFile(dbPath, os.O_RDWR|os.O_CREATE, constants.DefaultFilePermissions)
	if err != nil {
		return nil, fmt.Errorf("failed to create database file: %w", err)
	}
	if err := file.Close(); err != nil {
		return nil, fmt.Errorf("failed to close database file: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("failed to ping database: %w (close error: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := initSchema(db); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("failed to initialize schema: %w (close error: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &Gallery{db: db, logger: logger, now: time.Now}, nil
}

// initSchema creates the tables on a fresh database and refuses databases
// written by a newer release.
func initSchema(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	if version > constants.GallerySchemaVersion {
		return fmt.Errorf("database schema version %d is newer than supported version %d", version, constants.GallerySchemaVersion)
	}
	if version == constants.GallerySchemaVersion {
		return nil
	}

	if _, err := db.Exec(SchemaQuery); err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}
	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", constants.GallerySchemaVersion)); err != nil {
		return fmt.Errorf("failed to set schema version: %w", err)
	}

	return nil
}

func (g *Gallery) Close() error {
	return g.db.Close()
}

// Add registers a carrier image. The file is decoded to prove it is a usable
// carrier, and its hash is recorded so Verify can detect later changes.
func (g *Gallery) Add(ctx context.Context, path, label string, tags []string) (*models.VaultImage, error) {
	if err := security.ValidateFilePath(path); err != nil {
		return nil, fmt.Errorf("invalid image path: %w", err)
	}
	if err := validateLabel(label); err != nil {
		return nil, err
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve image path: %w", err)
	}

	existing, err := g.lookupOne(ctx, SelectVaultByPathQuery, absPath)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: %s", ErrImageExists, absPath)
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}

	c, err := steg.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	sum := sha256.Sum256(data)
	now := g.now().UTC()

	img := &models.VaultImage{
		ID:        uuid.NewString(),
		Path:      absPath,
		Label:     label,
		SHA256:    hex.EncodeToString(sum[:]),
		Format:    c.Format.String(),
		Capacity:  steg.Capacity(c),
		Tags:      normalizeTags(tags),
		CreatedAt: now,
		UpdatedAt: now,
	}
	switch c.Format {
	case steg.FormatJPEG:
		img.Width = c.JPEG.Width()
		img.Height = c.JPEG.Height()
	default:
		img.Width = c.Raster.Width
		img.Height = c.Raster.Height
	}

	tx, err := g.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, InsertVaultQuery,
		img.ID, img.Path, img.Label, img.SHA256, img.Format,
		img.Width, img.Height, img.Capacity, img.CreatedAt, img.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert vault image: %w", err)
	}
	for _, tag := range img.Tags {
		if _, err := tx.ExecContext(ctx, InsertVaultTagQuery, img.ID, tag); err != nil {
			return nil, fmt.Errorf("failed to insert tag: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	g.logger.WithFields(logrus.Fields{
		"id":       img.ID,
		"path":     img.Path,
		"format":   img.Format,
		"capacity": img.Capacity,
	}).Info("Registered vault image")

	return img, nil
}

// List returns all registered images sorted by label then path.
func (g *Gallery) List(ctx context.Context) ([]models.VaultImage, error) {
	return g.queryImages(ctx, SelectAllVaultsQuery)
}

// Search matches the query against labels, paths, and tags. An empty query
// lists everything.
func (g *Gallery) Search(ctx context.Context, query string) ([]models.VaultImage, error) {
	q := strings.TrimSpace(query)
	if q == "" {
		return g.List(ctx)
	}
	pattern := "%" + strings.ToLower(q) + "%"
	return g.queryImages(ctx, SearchVaultsQuery, pattern, pattern, pattern)
}

// Resolve finds an image by id, path, or label, in that order. A label that
// matches more than one image is an error rather than a silent pick.
func (g *Gallery) Resolve(ctx context.Context, ref string) (*models.VaultImage, error) {
	if strings.TrimSpace(ref) == "" {
		return nil, fmt.Errorf("image reference cannot be empty")
	}

	img, err := g.lookupOne(ctx, SelectVaultByIDQuery, ref)
	if err != nil {
		return nil, err
	}

	if img == nil {
		if absPath, absErr := filepath.Abs(ref); absErr == nil {
			img, err = g.lookupOne(ctx, SelectVaultByPathQuery, absPath)
			if err != nil {
				return nil, err
			}
		}
	}

	if img == nil {
		img, err = g.lookupByLabel(ctx, ref)
		if err != nil {
			return nil, err
		}
	}

	if img == nil {
		return nil, fmt.Errorf("%w: %s", ErrImageNotFound, ref)
	}

	img.Tags, err = g.loadTags(ctx, img.ID)
	if err != nil {
		return nil, err
	}
	return img, nil
}

// Remove deletes an image record and its tags. The image file itself is
// untouched.
func (g *Gallery) Remove(ctx context.Context, ref string) error {
	img, err := g.Resolve(ctx, ref)
	if err != nil {
		return err
	}

	tx, err := g.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, DeleteVaultTagsQuery, img.ID); err != nil {
		return fmt.Errorf("failed to delete tags: %w", err)
	}
	if _, err := tx.ExecContext(ctx, DeleteVaultQuery, img.ID); err != nil {
		return fmt.Errorf("failed to delete vault image: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	g.logger.WithFields(logrus.Fields{
		"id":   img.ID,
		"path": img.Path,
	}).Info("Removed vault image")

	return nil
}

// Relabel changes an image's label. An empty label clears it.
func (g *Gallery) Relabel(ctx context.Context, ref, label string) error {
	if err := validateLabel(label); err != nil {
		return err
	}

	img, err := g.Resolve(ctx, ref)
	if err != nil {
		return err
	}

	if _, err := g.db.ExecContext(ctx, UpdateVaultLabelQuery, label, g.now().UTC(), img.ID); err != nil {
		return fmt.Errorf("failed to update label: %w", err)
	}

	g.logger.WithFields(logrus.Fields{
		"id":    img.ID,
		"label": label,
	}).Info("Relabeled vault image")

	return nil
}

// RefreshHash re-reads the image file and records its current hash. Callers
// use this after deliberately rewriting a registered image so Verify keeps
// flagging outside changes only.
func (g *Gallery) RefreshHash(ctx context.Context, ref string) error {
	img, err := g.Resolve(ctx, ref)
	if err != nil {
		return err
	}

	if err := security.ValidateStoredPath(img.Path); err != nil {
		return fmt.Errorf("invalid stored path: %w", err)
	}

	data, err := os.ReadFile(img.Path)
	if err != nil {
		return fmt.Errorf("failed to read image: %w", err)
	}

	sum := sha256.Sum256(data)
	if _, err := g.db.ExecContext(ctx, UpdateVaultHashQuery, hex.EncodeToString(sum[:]), g.now().UTC(), img.ID); err != nil {
		return fmt.Errorf("failed to update hash: %w", err)
	}

	g.logger.WithFields(logrus.Fields{
		"id":   img.ID,
		"path": img.Path,
	}).Debug("Refreshed vault image hash")

	return nil
}

// Verify re-hashes the image file and compares it with the hash recorded at
// registration. A modified carrier almost certainly no longer holds a
// recoverable payload.
func (g *Gallery) Verify(ctx context.Context, ref string) (VerifyStatus, error) {
	img, err := g.Resolve(ctx, ref)
	if err != nil {
		return "", err
	}

	if err := security.ValidateStoredPath(img.Path); err != nil {
		return "", fmt.Errorf("invalid stored path: %w", err)
	}

	data, err := os.ReadFile(img.Path)
	if os.IsNotExist(err) {
		return VerifyMissing, nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read image: %w", err)
	}

	sum := sha256.Sum256(data)
	if hex.EncodeToString(sum[:]) != img.SHA256 {
		return VerifyModified, nil
	}
	return VerifyOK, nil
}

func (g *Gallery) queryImages(ctx context.Context, query string, args ...interface{}) ([]models.VaultImage, error) {
	rows, err := g.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query vault images: %w", err)
	}
	defer rows.Close()

	var images []models.VaultImage
	for rows.Next() {
		img, err := scanImage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan vault image: %w", err)
		}
		images = append(images, *img)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate vault images: %w", err)
	}

	for i := range images {
		tags, err := g.loadTags(ctx, images[i].ID)
		if err != nil {
			return nil, err
		}
		images[i].Tags = tags
	}
	return images, nil
}

func (g *Gallery) lookupOne(ctx context.Context, query, key string) (*models.VaultImage, error) {
	img, err := scanImage(g.db.QueryRowContext(ctx, query, key))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query vault image: %w", err)
	}
	return img, nil
}

func (g *Gallery) lookupByLabel(ctx context.Context, label string) (*models.VaultImage, error) {
	rows, err := g.db.QueryContext(ctx, SelectVaultByLabelQuery, label)
	if err != nil {
		return nil, fmt.Errorf("failed to query vault images: %w", err)
	}
	defer rows.Close()

	var match *models.VaultImage
	for rows.Next() {
		img, err := scanImage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan vault image: %w", err)
		}
		if match != nil {
			return nil, fmt.Errorf("label %q matches more than one image, use the id", label)
		}
		match = img
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate vault images: %w", err)
	}
	return match, nil
}

func (g *Gallery) loadTags(ctx context.Context, id string) ([]string, error) {
	rows, err := g.db.QueryContext(ctx, SelectVaultTagsQuery, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query tags: %w", err)
	}
	defer rows.Close()

	var tags []string
	for rows.Next() {
		var tag string
		if err := rows.Scan(&tag); err != nil {
			return nil, fmt.Errorf("failed to scan tag: %w", err)
		}
		tags = append(tags, tag)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tags: %w", err)
	}
	return tags, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanImage(row rowScanner) (*models.VaultImage, error) {
	img := &models.VaultImage{}
	err := row.Scan(
		&img.ID,
		&img.Path,
		&img.Label,
		&img.SHA256,
		&img.Format,
		&img.Width,
		&img.Height,
		&img.Capacity,
		&img.CreatedAt,
		&img.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return img, nil
}

func validateLabel(label string) error {
	if len(label) > constants.MaxLabelLength {
		return fmt.Errorf("label exceeds %d characters", constants.MaxLabelLength)
	}
	return nil
}

func normalizeTags(tags []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		out = append(out, tag)
	}
	sort.Strings(out)
	return out
}
