package testutil

import (
	"invsnap/internal/encryption"
	"invsnap/internal/inv"
	"invsnap/internal/vault"
)

// NewTestVault creates a new in-memory vault for testing.
func NewTestVault() *vault.MemoryVault {
	return vault.NewMemoryVault("test-vault")
}

// NewTestEncryptor creates the deterministic header-prefix encryptor.
func NewTestEncryptor() inv.Encryptor {
	return encryption.NewTestEncryptor()
}
