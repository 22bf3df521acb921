package vault

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"invsnap/internal/inv"
)

// FileSystemVault stores artifacts as files under a single directory:
//
//	<root>/
//	  artifacts/
//	    <collection>-backup-YYYYMMDD-HHMMSS.json[.age]
type FileSystemVault struct {
	name         string
	root         string
	artifactsDir string
}

// NewFileSystemVault creates a new filesystem vault rooted at the given path.
func NewFileSystemVault(name, root string) (*FileSystemVault, error) {
	artifactsDir := filepath.Join(root, "artifacts")
	if err := os.MkdirAll(artifactsDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create artifacts directory: %w", err)
	}

	return &FileSystemVault{
		name:         name,
		root:         root,
		artifactsDir: artifactsDir,
	}, nil
}

// PutArtifact writes the artifact atomically. A reader that yields a
// different byte count than size leaves any previous artifact in place.
func (v *FileSystemVault) PutArtifact(name string, r io.Reader, size int64) error {
	if err := checkName(name); err != nil {
		return err
	}
	return v.writeFile(filepath.Join(v.artifactsDir, name), r, size)
}

// GetArtifact writes the named artifact to w.
func (v *FileSystemVault) GetArtifact(name string, w io.Writer) error {
	if err := checkName(name); err != nil {
		return err
	}
	f, err := os.Open(filepath.Join(v.artifactsDir, name))
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return fmt.Errorf("failed to open artifact: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("failed to read artifact: %w", err)
	}
	return nil
}

// ListArtifacts returns the stored artifact names in lexical order. Temp
// files from interrupted writes are skipped.
func (v *FileSystemVault) ListArtifacts() ([]string, error) {
	entries, err := os.ReadDir(v.artifactsDir)
	if err != nil {
		return nil, fmt.Errorf("listing artifacts: %w", err)
	}

	names := []string{}
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".tmp-") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

// ValidateSetup verifies that the vault directories are accessible.
func (v *FileSystemVault) ValidateSetup() error {
	for _, dir := range []string{v.root, v.artifactsDir} {
		info, err := os.Stat(dir)
		if err != nil {
			return fmt.Errorf("vault directory not accessible: %w", err)
		}
		if !info.IsDir() {
			return fmt.Errorf("vault path is not a directory: %s", dir)
		}
	}
	return nil
}

// writeFile writes data from r to destPath using a temp file and rename.
func (v *FileSystemVault) writeFile(destPath string, r io.Reader, expectedSize int64) error {
	tmpFile, err := os.CreateTemp(filepath.Dir(destPath), ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	written, err := io.Copy(tmpFile, r)
	if err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to write data: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if written != expectedSize {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", expectedSize, written)
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	success = true
	return nil
}

// Compile-time check that FileSystemVault implements inv.Vault interface
var _ inv.Vault = (*FileSystemVault)(nil)
