package inv

import (
	"bytes"
	"fmt"
	"strings"
	"sync"
)

// EncryptedSuffix marks artifacts sealed by an Encryptor.
const EncryptedSuffix = ".age"

// Settings carries the collection-specific knobs of a Service.
type Settings struct {
	Fields FieldMapping
	Policy ArchivePolicy
}

// Service coordinates the record store, the artifact vault and the pure
// snapshot and archive algorithms. The only mutable state is the
// export-in-progress flag.
type Service struct {
	store     RecordStore
	vault     Vault
	encryptor Encryptor
	logger    Logger
	clock     Clock
	idgen     IDGenerator
	settings  Settings

	mu        sync.Mutex
	exporting bool
}

// NewService creates a Service. encryptor may be nil, in which case artifacts
// are written in plaintext.
func NewService(store RecordStore, vault Vault, encryptor Encryptor, logger Logger, clock Clock, idgen IDGenerator, settings Settings) *Service {
	return &Service{
		store:     store,
		vault:     vault,
		encryptor: encryptor,
		logger:    logger,
		clock:     clock,
		idgen:     idgen,
		settings:  settings,
	}
}

// Settings returns the settings the service was created with.
func (s *Service) Settings() Settings {
	return s.settings
}

// ListArtifacts returns the names of the stored snapshot artifacts.
func (s *Service) ListArtifacts() ([]string, error) {
	names, err := s.vault.ListArtifacts()
	if err != nil {
		return nil, fmt.Errorf("listing artifacts: %w", err)
	}
	return names, nil
}

// LoadSnapshot reads and decodes an artifact from the vault. opener is
// required for sealed artifacts and ignored otherwise. The snapshot is not
// verified; call Verify on the result.
func (s *Service) LoadSnapshot(name string, opener Opener) (*Snapshot, error) {
	var buf bytes.Buffer
	if err := s.vault.GetArtifact(name, &buf); err != nil {
		return nil, fmt.Errorf("reading artifact %s: %w", name, err)
	}

	data := buf.Bytes()
	if strings.HasSuffix(name, EncryptedSuffix) {
		if opener == nil {
			return nil, fmt.Errorf("artifact %s is encrypted and no key was unlocked", name)
		}
		var plain bytes.Buffer
		if err := opener.Open(bytes.NewReader(data), &plain); err != nil {
			return nil, fmt.Errorf("decrypting artifact %s: %w", name, err)
		}
		data = plain.Bytes()
	}

	snapshot, err := DecodeSnapshot(data)
	if err != nil {
		return nil, fmt.Errorf("decoding artifact %s: %w", name, err)
	}
	return snapshot, nil
}
