package inv

// NameLookup resolves opaque identifiers (supplier references) to display
// names for reports. The renderer never fetches names itself.
type NameLookup interface {
	Resolve(id string) (string, bool)
}

// MapLookup is a NameLookup backed by a fixed map.
type MapLookup map[string]string

func (m MapLookup) Resolve(id string) (string, bool) {
	name, ok := m[id]
	return name, ok
}
