package store

import (
	"fmt"

	"invsnap/internal/inv"
)

// SupplierDirectory resolves supplier ids to display names. It loads the
// supplier collection once, at construction.
type SupplierDirectory struct {
	names map[string]string
}

// NewSupplierDirectory fetches collection from rs and indexes each document's
// nameField by document id. Documents without a string name are skipped.
func NewSupplierDirectory(rs inv.RecordStore, collection, nameField string) (*SupplierDirectory, error) {
	raw, err := rs.FetchAll(collection)
	if err != nil {
		return nil, fmt.Errorf("loading suppliers from %s: %w", collection, err)
	}

	names := make(map[string]string, len(raw))
	for _, r := range raw {
		if name, ok := r.Fields[nameField].(string); ok && name != "" {
			names[r.ID] = name
		}
	}
	return &SupplierDirectory{names: names}, nil
}

// Resolve returns the display name for a supplier id.
func (d *SupplierDirectory) Resolve(id string) (string, bool) {
	name, ok := d.names[id]
	return name, ok
}

// Len returns the number of suppliers indexed.
func (d *SupplierDirectory) Len() int {
	return len(d.names)
}

var _ inv.NameLookup = (*SupplierDirectory)(nil)
