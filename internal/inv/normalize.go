package inv

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"
)

// Timestamp is the store-native timestamp representation: seconds and
// nanoseconds since the Unix epoch.
type Timestamp struct {
	Seconds int64
	Nanos   int32
}

// Time converts the timestamp to a time.Time in UTC.
func (ts Timestamp) Time() time.Time {
	return time.Unix(ts.Seconds, int64(ts.Nanos)).UTC()
}

// NormalizeRecords normalizes every raw record, preserving order.
func NormalizeRecords(raw []RawRecord) []Record {
	out := make([]Record, len(raw))
	for i, r := range raw {
		out[i] = Record{ID: validUTF8(r.ID), Fields: Normalize(r.Fields)}
	}
	return out
}

// Normalize converts a raw field map into Fields with keys in sorted order,
// replacing every store-native date/time value with a Temporal. It never
// fails: malformed timestamp shapes stay nested records, and Go types outside
// the Value union are carried as their fmt string form.
func Normalize(raw map[string]any) *Fields {
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	fields := NewFields()
	for _, k := range keys {
		fields.Set(validUTF8(k), NormalizeValue(raw[k]))
	}
	return fields
}

// validUTF8 replaces invalid byte sequences with U+FFFD. The artifact JSON
// cannot carry invalid UTF-8, so a string must already be valid for a
// decoded snapshot to checksum like the records it was exported from.
func validUTF8(s string) string {
	return strings.ToValidUTF8(s, "\uFFFD")
}

// NormalizeValue converts a single raw value.
func NormalizeValue(raw any) Value {
	switch v := raw.(type) {
	case nil:
		return NullValue()
	case Value:
		return v
	case string:
		return StringValue(validUTF8(v))
	case bool:
		return BoolValue(v)
	case float64:
		return NumberValue(v)
	case float32:
		return NumberValue(float64(v))
	case int:
		return NumberValue(float64(v))
	case int32:
		return NumberValue(float64(v))
	case int64:
		return NumberValue(float64(v))
	case uint:
		return NumberValue(float64(v))
	case uint32:
		return NumberValue(float64(v))
	case uint64:
		return NumberValue(float64(v))
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return StringValue(v.String())
		}
		return NumberValue(f)
	case time.Time:
		return TimeValue(v)
	case *time.Time:
		if v == nil {
			return NullValue()
		}
		return TimeValue(*v)
	case Timestamp:
		return TimeValue(v.Time())
	case *Timestamp:
		if v == nil {
			return NullValue()
		}
		return TimeValue(v.Time())
	case []any:
		items := make([]Value, len(v))
		for i, item := range v {
			items[i] = NormalizeValue(item)
		}
		return ListValue(items...)
	case []string:
		items := make([]Value, len(v))
		for i, item := range v {
			items[i] = StringValue(validUTF8(item))
		}
		return ListValue(items...)
	case map[string]any:
		if tv, ok := temporalFromMap(v); ok {
			return TemporalValue(tv)
		}
		return RecordValue(Normalize(v))
	default:
		return StringValue(validUTF8(fmt.Sprint(v)))
	}
}

// epochKeyPairs are the seconds/nanoseconds key pairs a document store uses
// for timestamps once they have been through a generic decoder.
var epochKeyPairs = [][2]string{
	{temporalSecsKey, temporalNanosKey},
	{"seconds", "nanoseconds"},
}

// temporalFromMap recognises timestamp-shaped maps: an epoch pair (optionally
// tagged with "__type"), or the tagged artifact form carrying an "iso" string.
func temporalFromMap(m map[string]any) (Temporal, bool) {
	if typ, ok := m[temporalTypeKey].(string); ok && typ == temporalTypeName {
		if iso, ok := m[temporalISOKey].(string); ok {
			if t, err := time.Parse(time.RFC3339Nano, iso); err == nil {
				return NewTemporal(t), true
			}
			return Temporal{ISO: validUTF8(iso)}, true
		}
	}

	extra := len(m) - 2
	if _, tagged := m[temporalTypeKey]; tagged {
		extra--
	}
	if extra != 0 {
		return Temporal{}, false
	}
	for _, pair := range epochKeyPairs {
		secs, ok := toInt64(m[pair[0]])
		if !ok {
			continue
		}
		nanos, ok := toInt64(m[pair[1]])
		if !ok {
			continue
		}
		return NewTemporal(Timestamp{Seconds: secs, Nanos: int32(nanos)}.Time()), true
	}
	return Temporal{}, false
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case float64:
		return int64(n), true
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			f, ferr := n.Float64()
			if ferr != nil {
				return 0, false
			}
			return int64(f), true
		}
		return i, true
	default:
		return 0, false
	}
}
