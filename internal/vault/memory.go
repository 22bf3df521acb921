package vault

import (
	"bytes"
	"fmt"
	"io"
	"sort"
	"sync"

	"invsnap/internal/inv"
)

// MemoryVault is an in-memory implementation of the Vault interface.
// It keeps every artifact in memory, making it useful for testing.
// This implementation is safe for concurrent use.
type MemoryVault struct {
	name      string
	artifacts map[string][]byte
	mu        sync.RWMutex
}

// NewMemoryVault creates a new in-memory vault with the given name.
func NewMemoryVault(name string) *MemoryVault {
	return &MemoryVault{
		name:      name,
		artifacts: make(map[string][]byte),
	}
}

// PutArtifact stores an artifact, replacing any previous one of the same name.
func (m *MemoryVault) PutArtifact(name string, r io.Reader, size int64) error {
	if err := checkName(name); err != nil {
		return err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("failed to read artifact: %w", err)
	}

	if int64(len(data)) != size {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", size, len(data))
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.artifacts[name] = data
	return nil
}

// GetArtifact writes the named artifact to w.
func (m *MemoryVault) GetArtifact(name string, w io.Writer) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.artifacts[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}

	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write artifact: %w", err)
	}
	return nil
}

// ListArtifacts returns the stored artifact names in lexical order.
func (m *MemoryVault) ListArtifacts() ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.artifacts))
	for name := range m.artifacts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// ValidateSetup always succeeds for in-memory vault.
func (m *MemoryVault) ValidateSetup() error {
	return nil
}

// Compile-time check that MemoryVault implements inv.Vault interface
var _ inv.Vault = (*MemoryVault)(nil)
