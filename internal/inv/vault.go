package inv

import "io"

// Vault stores exported snapshot artifacts. Artifacts are addressed by name
// and streamed through io.Reader/io.Writer.
type Vault interface {
	// PutArtifact stores an artifact under name, replacing any previous one.
	// size is the number of bytes that will be read from r.
	PutArtifact(name string, r io.Reader, size int64) error

	// GetArtifact retrieves an artifact by name and writes it to w.
	GetArtifact(name string, w io.Writer) error

	// ListArtifacts returns the names of all stored artifacts, sorted.
	ListArtifacts() ([]string, error)

	// ValidateSetup verifies that the vault is accessible and properly configured.
	ValidateSetup() error
}
