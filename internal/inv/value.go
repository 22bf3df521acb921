package inv

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"
)

// Kind identifies which variant a Value holds.
type Kind int

const (
	KindNull Kind = iota
	KindString
	KindNumber
	KindBool
	KindTemporal
	KindList
	KindRecord
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	case KindTemporal:
		return "temporal"
	case KindList:
		return "list"
	case KindRecord:
		return "record"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ISOLayout is the canonical representation of a Temporal: UTC with
// millisecond precision.
const ISOLayout = "2006-01-02T15:04:05.000Z"

// Bookkeeping keys of the Temporal wire form. They belong to the parent field
// and are never diffed on their own.
const (
	temporalTypeKey  = "__type"
	temporalTypeName = "timestamp"
	temporalISOKey   = "iso"
	temporalSecsKey  = "_seconds"
	temporalNanosKey = "_nanoseconds"
)

// Temporal is a point in time. Two Temporals are equal iff their ISO strings
// are equal; the epoch fields are carried for round-tripping only.
type Temporal struct {
	ISO      string
	Seconds  int64
	Nanos    int32
	HasEpoch bool
}

// NewTemporal builds the canonical Temporal for t.
func NewTemporal(t time.Time) Temporal {
	u := t.UTC()
	return Temporal{
		ISO:      u.Format(ISOLayout),
		Seconds:  u.Unix(),
		Nanos:    int32(u.Nanosecond()),
		HasEpoch: true,
	}
}

// Time parses the ISO representation back into a time.Time.
func (t Temporal) Time() (time.Time, bool) {
	if t.HasEpoch {
		return time.Unix(t.Seconds, int64(t.Nanos)).UTC(), true
	}
	parsed, err := time.Parse(time.RFC3339Nano, t.ISO)
	if err != nil {
		return time.Time{}, false
	}
	return parsed.UTC(), true
}

// Value is a tagged union over the field value types a record may carry.
// The zero Value is null.
type Value struct {
	kind     Kind
	str      string
	num      float64
	b        bool
	temporal Temporal
	list     []Value
	fields   *Fields
}

func NullValue() Value                 { return Value{} }
func StringValue(s string) Value       { return Value{kind: KindString, str: s} }
func NumberValue(n float64) Value      { return Value{kind: KindNumber, num: n} }
func BoolValue(b bool) Value           { return Value{kind: KindBool, b: b} }
func TemporalValue(t Temporal) Value   { return Value{kind: KindTemporal, temporal: t} }
func TimeValue(t time.Time) Value      { return TemporalValue(NewTemporal(t)) }
func ListValue(items ...Value) Value   { return Value{kind: KindList, list: items} }
func RecordValue(fields *Fields) Value { return Value{kind: KindRecord, fields: fields} }

func (v Value) Kind() Kind { return v.kind }

func (v Value) IsNull() bool { return v.kind == KindNull }

func (v Value) Str() (string, bool) { return v.str, v.kind == KindString }

func (v Value) Num() (float64, bool) { return v.num, v.kind == KindNumber }

func (v Value) Bool() (bool, bool) { return v.b, v.kind == KindBool }

func (v Value) Temporal() (Temporal, bool) { return v.temporal, v.kind == KindTemporal }

func (v Value) List() ([]Value, bool) { return v.list, v.kind == KindList }

func (v Value) Record() (*Fields, bool) { return v.fields, v.kind == KindRecord }

// Equal reports whether a and b are structurally equal. Temporals compare by
// ISO string, lists are order-sensitive, nested records ignore key order.
func Equal(a, b Value) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case KindNull:
		return true
	case KindString:
		return a.str == b.str
	case KindNumber:
		return a.num == b.num || (math.IsNaN(a.num) && math.IsNaN(b.num))
	case KindBool:
		return a.b == b.b
	case KindTemporal:
		return a.temporal.ISO == b.temporal.ISO
	case KindList:
		if len(a.list) != len(b.list) {
			return false
		}
		for i := range a.list {
			if !Equal(a.list[i], b.list[i]) {
				return false
			}
		}
		return true
	case KindRecord:
		return fieldsEqual(a.fields, b.fields)
	}
	return false
}

func fieldsEqual(a, b *Fields) bool {
	if a.Len() != b.Len() {
		return false
	}
	for _, k := range a.Keys() {
		av, _ := a.Get(k)
		bv, ok := b.Get(k)
		if !ok || !Equal(av, bv) {
			return false
		}
	}
	return true
}

// MarshalJSON encodes the value in the artifact wire form.
func (v Value) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := v.encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (v Value) encode(buf *bytes.Buffer) error {
	switch v.kind {
	case KindNull:
		buf.WriteString("null")
	case KindString:
		b, err := json.Marshal(v.str)
		if err != nil {
			return err
		}
		buf.Write(b)
	case KindNumber:
		if math.IsNaN(v.num) || math.IsInf(v.num, 0) {
			buf.WriteString("null")
			return nil
		}
		buf.WriteString(strconv.FormatFloat(v.num, 'f', -1, 64))
	case KindBool:
		buf.WriteString(strconv.FormatBool(v.b))
	case KindTemporal:
		iso, err := json.Marshal(v.temporal.ISO)
		if err != nil {
			return err
		}
		buf.WriteString(`{"` + temporalTypeKey + `":"` + temporalTypeName + `","` + temporalISOKey + `":`)
		buf.Write(iso)
		if v.temporal.HasEpoch {
			fmt.Fprintf(buf, `,"%s":%d,"%s":%d`, temporalSecsKey, v.temporal.Seconds, temporalNanosKey, v.temporal.Nanos)
		}
		buf.WriteByte('}')
	case KindList:
		buf.WriteByte('[')
		for i, item := range v.list {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := item.encode(buf); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case KindRecord:
		return v.fields.encode(buf)
	default:
		return fmt.Errorf("cannot encode value of %s", v.kind)
	}
	return nil
}

// UnmarshalJSON decodes the artifact wire form. Objects tagged as timestamps
// become Temporals; every other object becomes a nested record.
func (v *Value) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	decoded, err := decodeValue(dec)
	if err != nil {
		return err
	}
	*v = decoded
	return nil
}

func decodeValue(dec *json.Decoder) (Value, error) {
	tok, err := dec.Token()
	if err != nil {
		return Value{}, err
	}
	switch t := tok.(type) {
	case nil:
		return NullValue(), nil
	case string:
		return StringValue(t), nil
	case bool:
		return BoolValue(t), nil
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return Value{}, fmt.Errorf("decoding number %q: %w", t.String(), err)
		}
		return NumberValue(f), nil
	case json.Delim:
		switch t {
		case '[':
			items := []Value{}
			for dec.More() {
				item, err := decodeValue(dec)
				if err != nil {
					return Value{}, err
				}
				items = append(items, item)
			}
			if _, err := dec.Token(); err != nil {
				return Value{}, err
			}
			return ListValue(items...), nil
		case '{':
			fields, err := decodeObject(dec)
			if err != nil {
				return Value{}, err
			}
			if tv, ok := temporalFromFields(fields); ok {
				return TemporalValue(tv), nil
			}
			return RecordValue(fields), nil
		}
	}
	return Value{}, fmt.Errorf("unexpected JSON token %v", tok)
}

// decodeObject reads object members after the opening brace has been consumed.
func decodeObject(dec *json.Decoder) (*Fields, error) {
	fields := NewFields()
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, fmt.Errorf("expected object key, got %v", keyTok)
		}
		val, err := decodeValue(dec)
		if err != nil {
			return nil, fmt.Errorf("decoding field %q: %w", key, err)
		}
		fields.Set(key, val)
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return fields, nil
}

func temporalFromFields(f *Fields) (Temporal, bool) {
	typ, _ := f.Get(temporalTypeKey)
	if s, ok := typ.Str(); !ok || s != temporalTypeName {
		return Temporal{}, false
	}
	isoVal, _ := f.Get(temporalISOKey)
	iso, ok := isoVal.Str()
	if !ok {
		return Temporal{}, false
	}
	t := Temporal{ISO: iso}
	secsVal, _ := f.Get(temporalSecsKey)
	nanosVal, _ := f.Get(temporalNanosKey)
	if secs, ok := secsVal.Num(); ok {
		nanos, _ := nanosVal.Num()
		t.Seconds = int64(secs)
		t.Nanos = int32(nanos)
		t.HasEpoch = true
	}
	return t, true
}
