package inv

import "io"

// Encryptor seals snapshot artifacts at rest. Sealing needs only the public
// half of the key; opening requires a passphrase to unlock the private key.
type Encryptor interface {
	// Setup performs one-time key generation, protecting the private key
	// with passphrase.
	Setup(passphrase string) error

	// Seal encrypts data read from r and writes ciphertext to w.
	Seal(r io.Reader, w io.Writer) error

	// Unlock decrypts the private key and returns an Opener for the session.
	// Returns an error if the passphrase is incorrect.
	Unlock(passphrase string) (Opener, error)

	// IsConfigured returns true if the key material exists.
	IsConfigured() bool
}

// Opener decrypts artifacts sealed by an Encryptor. The unlocked key is held
// in memory only.
type Opener interface {
	Open(r io.Reader, w io.Writer) error
}
