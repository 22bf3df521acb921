// Package encryption seals snapshot artifacts with age. Artifacts are
// encrypted to an X25519 recipient whose identity is kept on disk under a
// passphrase, so exports run unattended and only restores ask for a secret.
package encryption

import (
	"errors"
	"fmt"
	"io"
	"os"

	"filippo.io/age"

	"invsnap/internal/config"
	"invsnap/internal/inv"
)

// ErrKeysExist is returned by Setup when key material is already present.
// Replacing it would make every sealed artifact unreadable.
var ErrKeysExist = errors.New("encryption keys already exist")

// ErrWrongPassphrase is returned by Unlock when the passphrase does not
// decrypt the stored identity.
var ErrWrongPassphrase = errors.New("incorrect passphrase")

// AgeEncryptor implements inv.Encryptor with filippo.io/age.
type AgeEncryptor struct {
	keys keyPair
}

var _ inv.Encryptor = (*AgeEncryptor)(nil)

// NewAgeEncryptor creates an AgeEncryptor reading keys from the configured paths.
func NewAgeEncryptor(cfg config.EncryptionConfig) *AgeEncryptor {
	return &AgeEncryptor{keys: keyPair{
		publicPath:  cfg.PublicKeyPath,
		privatePath: cfg.PrivateKeyPath,
	}}
}

// Setup generates the key pair. It refuses to replace existing keys.
func (e *AgeEncryptor) Setup(passphrase string) error {
	if passphrase == "" {
		return fmt.Errorf("passphrase must not be empty")
	}
	if e.keys.exists() {
		return ErrKeysExist
	}
	identity, err := age.GenerateX25519Identity()
	if err != nil {
		return fmt.Errorf("generating key pair: %w", err)
	}
	return e.keys.write(identity, passphrase)
}

// Seal encrypts r to the stored public key.
func (e *AgeEncryptor) Seal(r io.Reader, w io.Writer) error {
	recipient, err := e.keys.recipient()
	if err != nil {
		return fmt.Errorf("loading public key: %w", err)
	}

	sealed, err := age.Encrypt(w, recipient)
	if err != nil {
		return fmt.Errorf("creating encrypted writer: %w", err)
	}
	if _, err := io.Copy(sealed, r); err != nil {
		return fmt.Errorf("encrypting artifact: %w", err)
	}
	if err := sealed.Close(); err != nil {
		return fmt.Errorf("finalizing encryption: %w", err)
	}
	return nil
}

// Unlock decrypts the stored identity with passphrase.
func (e *AgeEncryptor) Unlock(passphrase string) (inv.Opener, error) {
	identity, err := e.keys.identity(passphrase)
	if err != nil {
		return nil, err
	}
	return &ageOpener{identity: identity}, nil
}

// IsConfigured returns true if both key files exist.
func (e *AgeEncryptor) IsConfigured() bool {
	return e.keys.exists()
}

// ageOpener holds an unlocked identity for the lifetime of one command.
type ageOpener struct {
	identity age.Identity
}

func (o *ageOpener) Open(r io.Reader, w io.Writer) error {
	plain, err := age.Decrypt(r, o.identity)
	if err != nil {
		return fmt.Errorf("opening artifact: %w", err)
	}
	if _, err := io.Copy(w, plain); err != nil {
		return fmt.Errorf("decrypting artifact: %w", err)
	}
	return nil
}

// NewEncryptorFromConfig returns the configured Encryptor, or nil when
// artifacts are stored in plaintext.
func NewEncryptorFromConfig(cfg config.EncryptionConfig) (inv.Encryptor, error) {
	switch cfg.Type {
	case "none", "":
		return nil, nil
	case "age":
		if cfg.PublicKeyPath == "" || cfg.PrivateKeyPath == "" {
			return nil, fmt.Errorf("age encryption requires public_key_path and private_key_path")
		}
		return NewAgeEncryptor(cfg), nil
	case "test":
		return NewTestEncryptor(), nil
	default:
		return nil, fmt.Errorf("unknown encryption type: %q", cfg.Type)
	}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
