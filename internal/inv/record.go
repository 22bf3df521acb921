package inv

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
)

// Fields is an ordered mapping of field name to Value. Keys keep insertion
// order; normalized records insert keys in sorted order. A nil *Fields is an
// empty mapping.
type Fields struct {
	keys   []string
	values map[string]Value
}

// NewFields returns an empty Fields.
func NewFields() *Fields {
	return &Fields{values: make(map[string]Value)}
}

// Set stores v under name, appending name to the key order if it is new.
func (f *Fields) Set(name string, v Value) {
	if _, ok := f.values[name]; !ok {
		f.keys = append(f.keys, name)
	}
	f.values[name] = v
}

// Get returns the value stored under name.
func (f *Fields) Get(name string) (Value, bool) {
	if f == nil {
		return Value{}, false
	}
	v, ok := f.values[name]
	return v, ok
}

// Keys returns the field names in order.
func (f *Fields) Keys() []string {
	if f == nil {
		return nil
	}
	return slices.Clone(f.keys)
}

// Len returns the number of fields.
func (f *Fields) Len() int {
	if f == nil {
		return 0
	}
	return len(f.keys)
}

// Clone returns a shallow copy that can be modified without affecting f.
func (f *Fields) Clone() *Fields {
	out := NewFields()
	for _, k := range f.Keys() {
		v, _ := f.Get(k)
		out.Set(k, v)
	}
	return out
}

func (f *Fields) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := f.encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (f *Fields) encode(buf *bytes.Buffer) error {
	buf.WriteByte('{')
	for i, k := range f.Keys() {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(k)
		if err != nil {
			return err
		}
		buf.Write(key)
		buf.WriteByte(':')
		v, _ := f.Get(k)
		if err := v.encode(buf); err != nil {
			return fmt.Errorf("encoding field %q: %w", k, err)
		}
	}
	buf.WriteByte('}')
	return nil
}

func (f *Fields) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("fields must be a JSON object, got %v", tok)
	}
	decoded, err := decodeObject(dec)
	if err != nil {
		return err
	}
	*f = *decoded
	return nil
}

// Record is one document of a collection: an opaque ID unique within the
// collection plus its normalized fields.
type Record struct {
	ID     string  `json:"id"`
	Fields *Fields `json:"fields"`
}

// RawRecord is a document as the record store returns it, before
// normalization.
type RawRecord struct {
	ID     string
	Fields map[string]any
}

// StringField returns the named field when it holds a string.
func (r Record) StringField(name string) (string, bool) {
	v, ok := r.Fields.Get(name)
	if !ok {
		return "", false
	}
	return v.Str()
}

// ToMap converts the fields back into store-native Go values. Temporals
// become time.Time where their ISO form parses.
func (f *Fields) ToMap() map[string]any {
	out := make(map[string]any, f.Len())
	for _, k := range f.Keys() {
		v, _ := f.Get(k)
		out[k] = v.Interface()
	}
	return out
}

// Interface returns the store-native Go value for v.
func (v Value) Interface() any {
	switch v.kind {
	case KindString:
		return v.str
	case KindNumber:
		return v.num
	case KindBool:
		return v.b
	case KindTemporal:
		if t, ok := v.temporal.Time(); ok {
			return t
		}
		return v.temporal.ISO
	case KindList:
		items := make([]any, len(v.list))
		for i, item := range v.list {
			items[i] = item.Interface()
		}
		return items
	case KindRecord:
		return v.fields.ToMap()
	default:
		return nil
	}
}
