package encryption

import (
	"bytes"
	"fmt"
	"io"

	"invsnap/internal/inv"
)

// fakeHeader marks artifacts sealed by TestEncryptor.
var fakeHeader = []byte("INVSEAL\x00")

// TestEncryptor is a deterministic stand-in for tests and dry runs. It
// prepends a fixed header on Seal and strips it on Open. Any passphrase
// except "wrong" unlocks it.
type TestEncryptor struct {
	configured bool
}

var _ inv.Encryptor = (*TestEncryptor)(nil)

// NewTestEncryptor creates a configured TestEncryptor.
func NewTestEncryptor() *TestEncryptor {
	return &TestEncryptor{configured: true}
}

func (e *TestEncryptor) Setup(passphrase string) error {
	e.configured = true
	return nil
}

func (e *TestEncryptor) Seal(r io.Reader, w io.Writer) error {
	if _, err := w.Write(fakeHeader); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	if _, err := io.Copy(w, r); err != nil {
		return fmt.Errorf("copying data: %w", err)
	}
	return nil
}

func (e *TestEncryptor) Unlock(passphrase string) (inv.Opener, error) {
	if passphrase == "wrong" {
		return nil, ErrWrongPassphrase
	}
	return testOpener{}, nil
}

func (e *TestEncryptor) IsConfigured() bool {
	return e.configured
}

type testOpener struct{}

func (testOpener) Open(r io.Reader, w io.Writer) error {
	header := make([]byte, len(fakeHeader))
	if _, err := io.ReadFull(r, header); err != nil {
		return fmt.Errorf("reading header: %w", err)
	}
	if !bytes.Equal(header, fakeHeader) {
		return fmt.Errorf("artifact was not sealed by the test encryptor")
	}
	if _, err := io.Copy(w, r); err != nil {
		return fmt.Errorf("copying data: %w", err)
	}
	return nil
}
