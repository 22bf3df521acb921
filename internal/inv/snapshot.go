package inv

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// SnapshotVersion is the artifact schema version written by Export.
const SnapshotVersion = "1.0"

// Snapshot is a point-in-time copy of a full collection with integrity
// metadata. It is the wire contract between export and verification.
type Snapshot struct {
	Metadata Metadata `json:"metadata"`
	Data     []Record `json:"data"`
}

// Metadata describes a snapshot. DocumentCount must equal len(Data) and
// Checksum must equal Checksum(Data).
type Metadata struct {
	Version        string     `json:"version"`
	CreatedAt      time.Time  `json:"createdAt"`
	Collection     string     `json:"collection"`
	DocumentCount  int        `json:"documentCount"`
	ExportDuration int64      `json:"exportDuration"` // milliseconds
	Checksum       string     `json:"checksum"`
	Statistics     Statistics `json:"statistics"`
}

// Statistics aggregates a collection at export time.
type Statistics struct {
	ByStatus         map[string]int `json:"byStatus"`
	ByManufacturer   map[string]int `json:"byManufacturer"`
	TotalRetailValue float64        `json:"totalRetailValue"`
	DateRange        DateRange      `json:"dateRange"`
}

// DateRange holds the earliest and latest date-added values as ISO strings.
// Both are empty when no record carries a usable date.
type DateRange struct {
	Earliest string `json:"earliest,omitempty"`
	Latest   string `json:"latest,omitempty"`
}

// FieldMapping names the inventory fields the statistics and archive rules
// read. Collections differ in naming, so these come from configuration.
type FieldMapping struct {
	Status       string
	Manufacturer string
	RetailPrice  string
	DateAdded    string
	LastUpdated  string
}

// DefaultFieldMapping returns the field names used by the inventory screens.
func DefaultFieldMapping() FieldMapping {
	return FieldMapping{
		Status:       "status",
		Manufacturer: "manufacturer",
		RetailPrice:  "retailPrice",
		DateAdded:    "dateAdded",
		LastUpdated:  "lastUpdated",
	}
}

const unknownCategory = "Unknown"

// ComputeStatistics aggregates normalized records. Missing categories count
// as "Unknown"; missing or non-numeric prices count as zero.
func ComputeStatistics(records []Record, m FieldMapping) Statistics {
	stats := Statistics{
		ByStatus:       make(map[string]int),
		ByManufacturer: make(map[string]int),
	}
	for _, r := range records {
		stats.ByStatus[categoryOf(r, m.Status)]++
		stats.ByManufacturer[categoryOf(r, m.Manufacturer)]++
		stats.TotalRetailValue += numberOf(r, m.RetailPrice)

		iso, ok := isoOf(r, m.DateAdded)
		if !ok {
			continue
		}
		if stats.DateRange.Earliest == "" || iso < stats.DateRange.Earliest {
			stats.DateRange.Earliest = iso
		}
		if stats.DateRange.Latest == "" || iso > stats.DateRange.Latest {
			stats.DateRange.Latest = iso
		}
	}
	return stats
}

func categoryOf(r Record, field string) string {
	s, ok := r.StringField(field)
	if !ok || strings.TrimSpace(s) == "" {
		return unknownCategory
	}
	return s
}

func numberOf(r Record, field string) float64 {
	v, ok := r.Fields.Get(field)
	if !ok {
		return 0
	}
	if n, ok := v.Num(); ok {
		return n
	}
	if s, ok := v.Str(); ok {
		n, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err == nil {
			return n
		}
	}
	return 0
}

// timeOf reads a date field that is either a Temporal or a date string.
func timeOf(r Record, field string) (time.Time, bool) {
	v, ok := r.Fields.Get(field)
	if !ok {
		return time.Time{}, false
	}
	if tv, ok := v.Temporal(); ok {
		return tv.Time()
	}
	if s, ok := v.Str(); ok {
		return parseDateString(s)
	}
	return time.Time{}, false
}

func isoOf(r Record, field string) (string, bool) {
	t, ok := timeOf(r, field)
	if !ok {
		return "", false
	}
	return NewTemporal(t).ISO, true
}

var dateLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"}

func parseDateString(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// EncodeSnapshot serializes a snapshot as an indented JSON artifact.
func EncodeSnapshot(s *Snapshot) ([]byte, error) {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding snapshot: %w", err)
	}
	return data, nil
}

// DecodeSnapshot parses an artifact. An artifact that is not a JSON object
// with both a metadata and a data section fails with ErrMalformedSnapshot.
func DecodeSnapshot(data []byte) (*Snapshot, error) {
	var sections map[string]json.RawMessage
	if err := json.Unmarshal(data, &sections); err != nil {
		return nil, malformed(fmt.Sprintf("not a JSON object: %v", err))
	}
	for _, name := range []string{"metadata", "data"} {
		raw, ok := sections[name]
		if !ok || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
			return nil, malformed("missing " + name + " section")
		}
	}

	var s Snapshot
	if err := json.Unmarshal(sections["metadata"], &s.Metadata); err != nil {
		return nil, malformed(fmt.Sprintf("decoding metadata: %v", err))
	}
	if err := json.Unmarshal(sections["data"], &s.Data); err != nil {
		return nil, malformed(fmt.Sprintf("decoding data: %v", err))
	}
	return &s, nil
}

func malformed(detail string) error {
	return &VerificationError{Problems: []SnapshotProblem{{Err: ErrMalformedSnapshot, Detail: detail}}}
}

// ArtifactName returns the vault name for an export of collection at t,
// unique per second.
func ArtifactName(collection string, t time.Time) string {
	return fmt.Sprintf("%s-backup-%s.json", collection, t.UTC().Format("20060102-150405"))
}
