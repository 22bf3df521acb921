package inv

import (
	"errors"
	"testing"
	"time"
)

func TestComputeStatistics(t *testing.T) {
	records := NormalizeRecords([]RawRecord{
		{ID: "1", Fields: map[string]any{
			"status": "Sold", "manufacturer": "Omega", "retailPrice": 100.5,
			"dateAdded": time.Date(2023, 5, 1, 0, 0, 0, 0, time.UTC),
		}},
		{ID: "2", Fields: map[string]any{
			"status": "Sold", "manufacturer": "Rolex", "retailPrice": "200",
			"dateAdded": "2022-01-15",
		}},
		{ID: "3", Fields: map[string]any{
			"status": "Available", "retailPrice": "n/a", "manufacturer": "  ",
		}},
		{ID: "4", Fields: map[string]any{}},
	})

	stats := ComputeStatistics(records, DefaultFieldMapping())

	if stats.ByStatus["Sold"] != 2 || stats.ByStatus["Available"] != 1 || stats.ByStatus["Unknown"] != 1 {
		t.Errorf("ByStatus = %v", stats.ByStatus)
	}
	if stats.ByManufacturer["Unknown"] != 2 {
		t.Errorf("ByManufacturer[Unknown] = %d, want 2 (blank and missing)", stats.ByManufacturer["Unknown"])
	}
	if stats.TotalRetailValue != 300.5 {
		t.Errorf("TotalRetailValue = %v, want 300.5", stats.TotalRetailValue)
	}
	if stats.DateRange.Earliest != "2022-01-15T00:00:00.000Z" {
		t.Errorf("DateRange.Earliest = %q", stats.DateRange.Earliest)
	}
	if stats.DateRange.Latest != "2023-05-01T00:00:00.000Z" {
		t.Errorf("DateRange.Latest = %q", stats.DateRange.Latest)
	}
}

func TestComputeStatistics_Empty(t *testing.T) {
	stats := ComputeStatistics(nil, DefaultFieldMapping())
	if len(stats.ByStatus) != 0 || stats.TotalRetailValue != 0 {
		t.Errorf("stats = %+v, want zero", stats)
	}
	if stats.DateRange.Earliest != "" || stats.DateRange.Latest != "" {
		t.Errorf("DateRange = %+v, want empty", stats.DateRange)
	}
}

func TestDecodeSnapshot_Malformed(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"not json", `not json`},
		{"array", `[]`},
		{"missing data", `{"metadata":{"checksum":"00000b62"}}`},
		{"missing metadata", `{"data":[]}`},
		{"null data", `{"metadata":{},"data":null}`},
		{"data not a list", `{"metadata":{},"data":{"id":"x"}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeSnapshot([]byte(tt.data))
			if !errors.Is(err, ErrMalformedSnapshot) {
				t.Errorf("DecodeSnapshot() error = %v, want ErrMalformedSnapshot", err)
			}
			if !errors.Is(err, ErrSnapshotInvalid) {
				t.Errorf("DecodeSnapshot() error = %v, want ErrSnapshotInvalid", err)
			}
		})
	}
}

func TestArtifactName(t *testing.T) {
	at := time.Date(2024, 3, 1, 9, 5, 7, 0, time.FixedZone("CET", 3600))
	if got := ArtifactName("inventory", at); got != "inventory-backup-20240301-080507.json" {
		t.Errorf("ArtifactName() = %q", got)
	}
}
