package inv

// RecordStore is the keyed document store holding the live collections.
// FetchAll must return an entire collection in one call; implementations
// paginate internally if they need to.
type RecordStore interface {
	// FetchAll returns every document in the collection.
	FetchAll(collection string) ([]RawRecord, error)

	// Put creates or replaces a document.
	Put(collection string, id string, fields map[string]any) error

	// Delete removes a document. Deleting a missing document is not an error.
	Delete(collection string, id string) error
}
