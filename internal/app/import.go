package app

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"invsnap/internal/inv"
)

// importDocument is one entry of a records import file. Collection defaults
// to the configured inventory collection.
type importDocument struct {
	ID         string         `json:"id"`
	Collection string         `json:"collection,omitempty"`
	Fields     map[string]any `json:"fields"`
}

// ImportRecords reads a JSON array of documents from path and writes each one
// to the store. Timestamps in artifact form ({"__type":"timestamp",...}) are
// stored as native timestamps. Returns the number of documents written.
func (a *InvApp) ImportRecords(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("opening import file: %w", err)
	}
	defer f.Close()

	docs, err := decodeImport(f)
	if err != nil {
		return 0, fmt.Errorf("reading %s: %w", path, err)
	}

	if err := a.persistOperation(path); err != nil {
		return 0, err
	}

	for i, doc := range docs {
		collection := doc.Collection
		if collection == "" {
			collection = a.cfg.Inventory.Collection
		}
		fields := inv.Normalize(doc.Fields).ToMap()
		if err := a.store.Put(collection, doc.ID, fields); err != nil {
			return i, a.fail(err)
		}
	}
	a.logger.Info("records imported", "path", path, "count", len(docs))
	return len(docs), nil
}

// decodeImport parses and checks the whole file before anything is written.
func decodeImport(r io.Reader) ([]importDocument, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	var docs []importDocument
	if err := dec.Decode(&docs); err != nil {
		return nil, fmt.Errorf("decoding documents: %w", err)
	}
	for i, doc := range docs {
		if doc.ID == "" {
			return nil, fmt.Errorf("document %d has no id", i)
		}
		if docs[i].Fields == nil {
			docs[i].Fields = map[string]any{}
		}
	}
	return docs, nil
}
