package store

import (
	"encoding/json"
	"time"

	"invsnap/internal/inv"
)

// encodeFields serializes a document for storage. Timestamps are stored in
// the store's native epoch form, {"__type":"timestamp","_seconds":n,"_nanoseconds":n},
// the same shape a document database hands back through a generic decoder.
func encodeFields(fields map[string]any) ([]byte, error) {
	return json.Marshal(toStored(fields))
}

func toStored(v any) any {
	switch x := v.(type) {
	case time.Time:
		return storedTimestamp(x)
	case *time.Time:
		if x == nil {
			return nil
		}
		return storedTimestamp(*x)
	case inv.Timestamp:
		return storedTimestamp(x.Time())
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, item := range x {
			out[k] = toStored(item)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, item := range x {
			out[i] = toStored(item)
		}
		return out
	default:
		return v
	}
}

func storedTimestamp(t time.Time) map[string]any {
	u := t.UTC()
	return map[string]any{
		"__type":       "timestamp",
		"_seconds":     u.Unix(),
		"_nanoseconds": u.Nanosecond(),
	}
}
