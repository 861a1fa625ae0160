package gallery

import (
	"bytes"
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/kalashnikxvxiii-collab/StegVault/internal/constants"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func setupTestGallery(t *testing.T) (*Gallery, string) {
	t.Helper()
	tmpDir := t.TempDir()
	g, err := New(filepath.Join(tmpDir, "gallery.db"), testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = g.Close() })

	base := time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC)
	step := 0
	g.now = func() time.Time {
		step++
		return base.Add(time.Duration(step) * time.Minute)
	}
	return g, tmpDir
}

func writeTestPNG(t *testing.T, dir, name string, w, h int) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := img.PixOffset(x, y)
			img.Pix[i] = uint8(x*7 + y*3)
			img.Pix[i+1] = uint8(x*11 + y*5)
			img.Pix[i+2] = uint8(x*13 + y*17)
			img.Pix[i+3] = 0xFF
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))

	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0600))
	return path
}

func TestNew(t *testing.T) {
	t.Run("creates database with restricted permissions", func(t *testing.T) {
		tmpDir := t.TempDir()
		dbPath := filepath.Join(tmpDir, "gallery.db")

		g, err := New(dbPath, testLogger())
		require.NoError(t, err)
		defer g.Close()

		info, err := os.Stat(dbPath)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
	})

	t.Run("reopening an existing database succeeds", func(t *testing.T) {
		tmpDir := t.TempDir()
		dbPath := filepath.Join(tmpDir, "gallery.db")

		g, err := New(dbPath, testLogger())
		require.NoError(t, err)
		require.NoError(t, g.Close())

		g, err = New(dbPath, testLogger())
		require.NoError(t, err)
		defer g.Close()

		var version int
		require.NoError(t, g.db.QueryRow("PRAGMA user_version").Scan(&version))
		assert.Equal(t, constants.GallerySchemaVersion, version)
	})

	t.Run("rejects invalid paths", func(t *testing.T) {
		_, err := New("", testLogger())
		assert.Error(t, err)

		_, err = New("gal\x00lery.db", testLogger())
		assert.Error(t, err)
	})

	t.Run("rejects database from a newer release", func(t *testing.T) {
		tmpDir := t.TempDir()
		dbPath := filepath.Join(tmpDir, "gallery.db")

		raw, err := sql.Open("sqlite3", dbPath)
		require.NoError(t, err)
		_, err = raw.Exec("PRAGMA user_version = 99")
		require.NoError(t, err)
		require.NoError(t, raw.Close())

		_, err = New(dbPath, testLogger())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "newer than supported")
	})
}

func TestGallery_Add(t *testing.T) {
	g, tmpDir := setupTestGallery(t)
	ctx := context.Background()

	path := writeTestPNG(t, tmpDir, "beach.png", 100, 100)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	sum := sha256.Sum256(data)

	img, err := g.Add(ctx, path, "vacation", []string{"travel", " family ", "travel", ""})
	require.NoError(t, err)

	assert.NotEmpty(t, img.ID)
	assert.Equal(t, path, img.Path)
	assert.True(t, filepath.IsAbs(img.Path))
	assert.Equal(t, "vacation", img.Label)
	assert.Equal(t, hex.EncodeToString(sum[:]), img.SHA256)
	assert.Equal(t, "png", img.Format)
	assert.Equal(t, 100, img.Width)
	assert.Equal(t, 100, img.Height)
	assert.Equal(t, 3750, img.Capacity)
	assert.Equal(t, []string{"family", "travel"}, img.Tags)
	assert.False(t, img.CreatedAt.IsZero())

	// Stored record round-trips with tags intact
	got, err := g.Resolve(ctx, img.ID)
	require.NoError(t, err)
	assert.Equal(t, img.SHA256, got.SHA256)
	assert.Equal(t, []string{"family", "travel"}, got.Tags)

	// Same file cannot be registered twice
	_, err = g.Add(ctx, path, "again", nil)
	assert.ErrorIs(t, err, ErrImageExists)
}

func TestGallery_AddValidation(t *testing.T) {
	g, tmpDir := setupTestGallery(t)
	ctx := context.Background()

	t.Run("missing file", func(t *testing.T) {
		_, err := g.Add(ctx, filepath.Join(tmpDir, "nope.png"), "", nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to read image")
	})

	t.Run("not an image", func(t *testing.T) {
		path := filepath.Join(tmpDir, "notes.txt")
		require.NoError(t, os.WriteFile(path, []byte("plain text"), 0600))
		_, err := g.Add(ctx, path, "", nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to decode image")
	})

	t.Run("empty path", func(t *testing.T) {
		_, err := g.Add(ctx, "", "", nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid image path")
	})

	t.Run("label too long", func(t *testing.T) {
		path := writeTestPNG(t, tmpDir, "ok.png", 10, 10)
		long := make([]byte, constants.MaxLabelLength+1)
		for i := range long {
			long[i] = 'a'
		}
		_, err := g.Add(ctx, path, string(long), nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "label exceeds")
	})
}

func TestGallery_List(t *testing.T) {
	g, tmpDir := setupTestGallery(t)
	ctx := context.Background()

	images, err := g.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, images)

	for i, label := range []string{"banking", "archive", "cloud"} {
		path := writeTestPNG(t, tmpDir, fmt.Sprintf("img%d.png", i), 20, 20)
		_, err := g.Add(ctx, path, label, []string{label + "-tag"})
		require.NoError(t, err)
	}

	images, err = g.List(ctx)
	require.NoError(t, err)
	require.Len(t, images, 3)
	assert.Equal(t, "archive", images[0].Label)
	assert.Equal(t, "banking", images[1].Label)
	assert.Equal(t, "cloud", images[2].Label)
	assert.Equal(t, []string{"archive-tag"}, images[0].Tags)
}

func TestGallery_Search(t *testing.T) {
	g, tmpDir := setupTestGallery(t)
	ctx := context.Background()

	bankPath := writeTestPNG(t, tmpDir, "bank-card.png", 20, 20)
	_, err := g.Add(ctx, bankPath, "banking", []string{"finance"})
	require.NoError(t, err)

	holidayPath := writeTestPNG(t, tmpDir, "holiday.png", 20, 20)
	_, err = g.Add(ctx, holidayPath, "vacation", []string{"travel", "family"})
	require.NoError(t, err)

	tests := []struct {
		name   string
		query  string
		labels []string
	}{
		{"by label substring", "bank", []string{"banking"}},
		{"case insensitive", "BANK", []string{"banking"}},
		{"by tag", "family", []string{"vacation"}},
		{"by path", "holiday", []string{"vacation"}},
		{"no match", "nothing-here", nil},
		{"empty query lists all", "", []string{"banking", "vacation"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			images, err := g.Search(ctx, tc.query)
			require.NoError(t, err)
			var labels []string
			for _, img := range images {
				labels = append(labels, img.Label)
			}
			assert.Equal(t, tc.labels, labels)
		})
	}
}

func TestGallery_Resolve(t *testing.T) {
	g, tmpDir := setupTestGallery(t)
	ctx := context.Background()

	path := writeTestPNG(t, tmpDir, "beach.png", 20, 20)
	img, err := g.Add(ctx, path, "vacation", nil)
	require.NoError(t, err)

	t.Run("by id", func(t *testing.T) {
		got, err := g.Resolve(ctx, img.ID)
		require.NoError(t, err)
		assert.Equal(t, img.ID, got.ID)
	})

	t.Run("by path", func(t *testing.T) {
		got, err := g.Resolve(ctx, path)
		require.NoError(t, err)
		assert.Equal(t, img.ID, got.ID)
	})

	t.Run("by label", func(t *testing.T) {
		got, err := g.Resolve(ctx, "vacation")
		require.NoError(t, err)
		assert.Equal(t, img.ID, got.ID)
	})

	t.Run("unknown reference", func(t *testing.T) {
		_, err := g.Resolve(ctx, "no-such-image")
		assert.ErrorIs(t, err, ErrImageNotFound)
	})

	t.Run("empty reference", func(t *testing.T) {
		_, err := g.Resolve(ctx, "  ")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "cannot be empty")
	})

	t.Run("ambiguous label", func(t *testing.T) {
		otherPath := writeTestPNG(t, tmpDir, "beach2.png", 20, 20)
		_, err := g.Add(ctx, otherPath, "vacation", nil)
		require.NoError(t, err)

		_, err = g.Resolve(ctx, "vacation")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "more than one image")
	})
}

func TestGallery_Remove(t *testing.T) {
	g, tmpDir := setupTestGallery(t)
	ctx := context.Background()

	path := writeTestPNG(t, tmpDir, "beach.png", 20, 20)
	img, err := g.Add(ctx, path, "vacation", []string{"travel"})
	require.NoError(t, err)

	require.NoError(t, g.Remove(ctx, img.ID))

	_, err = g.Resolve(ctx, img.ID)
	assert.ErrorIs(t, err, ErrImageNotFound)

	tags, err := g.loadTags(ctx, img.ID)
	require.NoError(t, err)
	assert.Empty(t, tags)

	// The file itself stays on disk
	_, err = os.Stat(path)
	assert.NoError(t, err)

	// And can be registered again
	_, err = g.Add(ctx, path, "fresh", nil)
	assert.NoError(t, err)

	assert.ErrorIs(t, g.Remove(ctx, "no-such-image"), ErrImageNotFound)
}

func TestGallery_Relabel(t *testing.T) {
	g, tmpDir := setupTestGallery(t)
	ctx := context.Background()

	path := writeTestPNG(t, tmpDir, "beach.png", 20, 20)
	img, err := g.Add(ctx, path, "old-label", nil)
	require.NoError(t, err)

	require.NoError(t, g.Relabel(ctx, img.ID, "new-label"))

	got, err := g.Resolve(ctx, "new-label")
	require.NoError(t, err)
	assert.Equal(t, img.ID, got.ID)
	assert.True(t, got.UpdatedAt.After(img.UpdatedAt))

	_, err = g.Resolve(ctx, "old-label")
	assert.ErrorIs(t, err, ErrImageNotFound)

	// Empty label clears it
	require.NoError(t, g.Relabel(ctx, img.ID, ""))
	got, err = g.Resolve(ctx, img.ID)
	require.NoError(t, err)
	assert.Equal(t, "", got.Label)
}

func TestGallery_RefreshHash(t *testing.T) {
	g, tmpDir := setupTestGallery(t)
	ctx := context.Background()

	path := writeTestPNG(t, tmpDir, "beach.png", 20, 20)
	img, err := g.Add(ctx, path, "vacation", nil)
	require.NoError(t, err)

	// Rewrite the file, as a vault operation would
	writeTestPNG(t, tmpDir, "beach.png", 21, 20)

	status, err := g.Verify(ctx, img.ID)
	require.NoError(t, err)
	require.Equal(t, VerifyModified, status)

	require.NoError(t, g.RefreshHash(ctx, img.ID))

	status, err = g.Verify(ctx, img.ID)
	require.NoError(t, err)
	assert.Equal(t, VerifyOK, status)

	got, err := g.Resolve(ctx, img.ID)
	require.NoError(t, err)
	assert.NotEqual(t, img.SHA256, got.SHA256)
	assert.True(t, got.UpdatedAt.After(img.UpdatedAt))

	assert.ErrorIs(t, g.RefreshHash(ctx, "no-such-image"), ErrImageNotFound)
}

func TestGallery_Verify(t *testing.T) {
	g, tmpDir := setupTestGallery(t)
	ctx := context.Background()

	path := writeTestPNG(t, tmpDir, "beach.png", 20, 20)
	img, err := g.Add(ctx, path, "vacation", nil)
	require.NoError(t, err)

	status, err := g.Verify(ctx, img.ID)
	require.NoError(t, err)
	assert.Equal(t, VerifyOK, status)

	// Re-encoding or editing the file changes its hash
	writeTestPNG(t, tmpDir, "beach.png", 21, 20)
	status, err = g.Verify(ctx, img.ID)
	require.NoError(t, err)
	assert.Equal(t, VerifyModified, status)

	require.NoError(t, os.Remove(path))
	status, err = g.Verify(ctx, img.ID)
	require.NoError(t, err)
	assert.Equal(t, VerifyMissing, status)

	_, err = g.Verify(ctx, "no-such-image")
	assert.ErrorIs(t, err, ErrImageNotFound)
}
