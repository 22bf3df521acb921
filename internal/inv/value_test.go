package inv

import (
	"encoding/json"
	"math"
	"testing"
	"time"
)

func TestValue_TemporalWireForm(t *testing.T) {
	ts := time.Date(2024, 3, 1, 12, 30, 45, 123456789, time.UTC)

	got, err := json.Marshal(TimeValue(ts))
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	want := `{"__type":"timestamp","iso":"2024-03-01T12:30:45.123Z","_seconds":1709296245,"_nanoseconds":123456789}`
	if string(got) != want {
		t.Errorf("Marshal() = %s, want %s", got, want)
	}

	var back Value
	if err := json.Unmarshal(got, &back); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	tv, ok := back.Temporal()
	if !ok {
		t.Fatalf("decoded kind = %s, want temporal", back.Kind())
	}
	if tv != NewTemporal(ts) {
		t.Errorf("decoded = %+v, want %+v", tv, NewTemporal(ts))
	}
}

func TestFields_JSONRoundTrip(t *testing.T) {
	nested := NewFields()
	nested.Set("city", StringValue("Leeds"))
	nested.Set("zip", NullValue())

	f := NewFields()
	f.Set("status", StringValue("Sold"))
	f.Set("retailPrice", NumberValue(1299.5))
	f.Set("featured", BoolValue(true))
	f.Set("notes", NullValue())
	f.Set("lastUpdated", TimeValue(time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)))
	f.Set("tags", ListValue(StringValue("a"), NumberValue(2)))
	f.Set("location", RecordValue(nested))

	data, err := json.Marshal(f)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	var back Fields
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}

	if !Equal(RecordValue(f), RecordValue(&back)) {
		t.Errorf("round trip changed fields:\n got %s\nwant %s", mustJSON(t, &back), data)
	}
	wantKeys := []string{"status", "retailPrice", "featured", "notes", "lastUpdated", "tags", "location"}
	gotKeys := back.Keys()
	for i := range wantKeys {
		if i >= len(gotKeys) || gotKeys[i] != wantKeys[i] {
			t.Fatalf("Keys() = %v, want %v", gotKeys, wantKeys)
		}
	}
}

func TestFields_UnmarshalRejectsNonObject(t *testing.T) {
	var f Fields
	if err := json.Unmarshal([]byte(`[1,2]`), &f); err == nil {
		t.Error("Unmarshal() of array expected error")
	}
}

func TestEqual(t *testing.T) {
	ab := NewFields()
	ab.Set("a", NumberValue(1))
	ab.Set("b", StringValue("x"))
	ba := NewFields()
	ba.Set("b", StringValue("x"))
	ba.Set("a", NumberValue(1))
	ac := NewFields()
	ac.Set("a", NumberValue(1))
	ac.Set("c", StringValue("x"))

	t1 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		a, b Value
		want bool
	}{
		{"null", NullValue(), NullValue(), true},
		{"null vs empty string", NullValue(), StringValue(""), false},
		{"number vs numeric string", NumberValue(5), StringValue("5"), false},
		{"NaN", NumberValue(math.NaN()), NumberValue(math.NaN()), true},
		{"same instant", TimeValue(t1), TimeValue(t1.In(time.FixedZone("X", 3600))), true},
		{"sub-millisecond difference", TimeValue(t1), TimeValue(t1.Add(time.Microsecond)), true},
		{"millisecond difference", TimeValue(t1), TimeValue(t1.Add(time.Millisecond)), false},
		{"epoch vs iso-only temporal", TimeValue(t1), TemporalValue(Temporal{ISO: "2024-01-01T00:00:00.000Z"}), true},
		{"list order matters", ListValue(NumberValue(1), NumberValue(2)), ListValue(NumberValue(2), NumberValue(1)), false},
		{"record key order ignored", RecordValue(ab), RecordValue(ba), true},
		{"record keys differ", RecordValue(ab), RecordValue(ac), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Equal(tt.a, tt.b); got != tt.want {
				t.Errorf("Equal() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNormalizeValue(t *testing.T) {
	ts := time.Date(2024, 3, 1, 12, 30, 45, 123000000, time.UTC)
	wantISO := "2024-03-01T12:30:45.123Z"

	tests := []struct {
		name    string
		raw     any
		kind    Kind
		wantISO string
	}{
		{name: "nil", raw: nil, kind: KindNull},
		{name: "int", raw: 42, kind: KindNumber},
		{name: "json number", raw: json.Number("19.99"), kind: KindNumber},
		{name: "time", raw: ts, kind: KindTemporal, wantISO: wantISO},
		{name: "time pointer", raw: &ts, kind: KindTemporal, wantISO: wantISO},
		{name: "nil time pointer", raw: (*time.Time)(nil), kind: KindNull},
		{name: "store timestamp", raw: Timestamp{Seconds: 1709296245, Nanos: 123000000}, kind: KindTemporal, wantISO: wantISO},
		{
			name:    "tagged epoch map",
			raw:     map[string]any{"__type": "timestamp", "_seconds": json.Number("1709296245"), "_nanoseconds": json.Number("123000000")},
			kind:    KindTemporal,
			wantISO: wantISO,
		},
		{
			name:    "untagged epoch map",
			raw:     map[string]any{"seconds": int64(1709296245), "nanoseconds": 123000000},
			kind:    KindTemporal,
			wantISO: wantISO,
		},
		{
			name:    "tagged iso map",
			raw:     map[string]any{"__type": "timestamp", "iso": wantISO},
			kind:    KindTemporal,
			wantISO: wantISO,
		},
		{
			name: "epoch map with extra key stays a record",
			raw:  map[string]any{"seconds": 1, "nanoseconds": 0, "label": "x"},
			kind: KindRecord,
		},
		{name: "string slice", raw: []string{"a", "b"}, kind: KindList},
		{name: "unsupported type", raw: struct{ A int }{1}, kind: KindString},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeValue(tt.raw)
			if got.Kind() != tt.kind {
				t.Fatalf("Kind() = %s, want %s", got.Kind(), tt.kind)
			}
			if tt.wantISO != "" {
				tv, _ := got.Temporal()
				if tv.ISO != tt.wantISO {
					t.Errorf("ISO = %q, want %q", tv.ISO, tt.wantISO)
				}
			}
		})
	}
}

func TestNormalize_ReplacesInvalidUTF8(t *testing.T) {
	recs := NormalizeRecords([]RawRecord{{
		ID: "w\xff1",
		Fields: map[string]any{
			"caf\xe9": "ok",
			"notes":   "bad\xff\xfe tail",
			"tags":    []string{"a\xe9"},
		},
	}})

	r := recs[0]
	if r.ID != "w\uFFFD1" {
		t.Errorf("ID = %q, want %q", r.ID, "w\uFFFD1")
	}
	if _, ok := r.Fields.Get("caf\uFFFD"); !ok {
		t.Errorf("Keys() = %q, want sanitized key", r.Fields.Keys())
	}
	notes, _ := r.Fields.Get("notes")
	if !Equal(notes, StringValue("bad\uFFFD tail")) {
		t.Errorf("notes = %+v", notes)
	}
	tags, _ := r.Fields.Get("tags")
	if !Equal(tags, ListValue(StringValue("a\uFFFD"))) {
		t.Errorf("tags = %+v", tags)
	}
}

func TestNormalize_SortsKeysAndNests(t *testing.T) {
	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	f := Normalize(map[string]any{
		"zeta":  1,
		"alpha": map[string]any{"when": ts},
		"mid":   []any{ts, "x"},
	})

	keys := f.Keys()
	if len(keys) != 3 || keys[0] != "alpha" || keys[1] != "mid" || keys[2] != "zeta" {
		t.Fatalf("Keys() = %v, want [alpha mid zeta]", keys)
	}

	alpha, _ := f.Get("alpha")
	inner, ok := alpha.Record()
	if !ok {
		t.Fatalf("alpha kind = %s, want record", alpha.Kind())
	}
	when, _ := inner.Get("when")
	if when.Kind() != KindTemporal {
		t.Errorf("nested timestamp kind = %s, want temporal", when.Kind())
	}

	mid, _ := f.Get("mid")
	items, _ := mid.List()
	if len(items) != 2 || items[0].Kind() != KindTemporal {
		t.Errorf("list items = %v, want temporal first", items)
	}
}

func TestFields_ToMap(t *testing.T) {
	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	f := Normalize(map[string]any{"at": ts, "qty": 3, "tags": []any{"a"}})

	m := f.ToMap()
	if got, ok := m["at"].(time.Time); !ok || !got.Equal(ts) {
		t.Errorf("at = %#v, want %v", m["at"], ts)
	}
	if m["qty"] != float64(3) {
		t.Errorf("qty = %#v, want 3", m["qty"])
	}

	back := Normalize(m)
	if !Equal(RecordValue(f), RecordValue(back)) {
		t.Error("Normalize(ToMap()) changed the fields")
	}
}

func mustJSON(t *testing.T, v any) string {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}
