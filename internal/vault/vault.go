// Package vault implements inv.Vault backends: an in-memory vault for tests,
// a local directory, and an S3 bucket.
package vault

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned by GetArtifact when no artifact has the given name.
var ErrNotFound = errors.New("artifact not found")

// checkName rejects names that would escape the vault's namespace.
func checkName(name string) error {
	if name == "" || name == "." || name == ".." {
		return fmt.Errorf("invalid artifact name %q", name)
	}
	if strings.ContainsAny(name, `/\`) || strings.HasPrefix(name, ".tmp-") {
		return fmt.Errorf("invalid artifact name %q", name)
	}
	return nil
}
