package security

import (
	"fmt"
	"path/filepath"
	"strings"
)

// ValidateFilePath validates a user-supplied file path before any file I/O
// touches it. Both absolute and relative paths are legitimate command-line
// input, so only structurally broken paths are rejected.
func ValidateFilePath(path string) error {
	if path == "" {
		return fmt.Errorf("file path cannot be empty")
	}

	if strings.ContainsRune(path, '\x00') {
		return fmt.Errorf("file path contains NUL byte")
	}

	return nil
}

// ValidateStoredPath validates a path read back from the gallery database.
// Entries are stored as cleaned absolute paths, so anything relative or
// containing traversal components indicates tampering or corruption.
func ValidateStoredPath(path string) error {
	if err := ValidateFilePath(path); err != nil {
		return err
	}

	cleanPath := filepath.Clean(path)

	if !filepath.IsAbs(cleanPath) {
		return fmt.Errorf("stored path must be absolute: %s", path)
	}

	for _, part := range strings.Split(cleanPath, string(filepath.Separator)) {
		if part == ".." {
			return fmt.Errorf("path contains directory traversal: %s", path)
		}
	}

	return nil
}

// ValidateFilePathWithBase validates a file path against a base directory.
// Relative paths are resolved against the base first; the result must not
// escape it.
func ValidateFilePathWithBase(path, baseDir string) error {
	if err := ValidateFilePath(path); err != nil {
		return err
	}

	fullPath := path
	if !filepath.IsAbs(fullPath) {
		fullPath = filepath.Join(baseDir, fullPath)
	}
	cleanPath := filepath.Clean(fullPath)
	cleanBase := filepath.Clean(baseDir)

	// Ensure the resolved path is still within the base directory
	rel, err := filepath.Rel(cleanBase, cleanPath)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return fmt.Errorf("path escapes base directory: %s", path)
	}

	return nil
}
