package inv

import (
	"errors"
	"strings"
	"testing"
	"time"
)

var archiveNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func daysAgo(n int) time.Time {
	return archiveNow.Add(-time.Duration(n) * 24 * time.Hour)
}

func TestDaysSince(t *testing.T) {
	tests := []struct {
		name string
		t    time.Time
		want int
	}{
		{"30 minutes", archiveNow.Add(-30 * time.Minute), 1},
		{"exactly one day", daysAgo(1), 1},
		{"one day and a second", daysAgo(1).Add(-time.Second), 2},
		{"same instant", archiveNow, 0},
		{"future", archiveNow.Add(time.Hour), 0},
		{"61 days", daysAgo(61), 61},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DaysSince(tt.t, archiveNow); got != tt.want {
				t.Errorf("DaysSince() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestClassify(t *testing.T) {
	records := NormalizeRecords([]RawRecord{
		{ID: "old-sold", Fields: map[string]any{"status": "Sold", "lastUpdated": daysAgo(61)}},
		{ID: "young-sold", Fields: map[string]any{"status": "Sold", "lastUpdated": daysAgo(59)}},
		{ID: "boundary", Fields: map[string]any{"status": "Sold", "lastUpdated": daysAgo(60)}},
		{ID: "undated", Fields: map[string]any{"status": "Sold"}},
		{ID: "string-date", Fields: map[string]any{"status": "Sold", "lastUpdated": "2024-01-01"}},
		{ID: "available", Fields: map[string]any{"status": "Available", "lastUpdated": daysAgo(400)}},
	})

	c := Classify(records, archiveNow, DefaultArchivePolicy(), DefaultFieldMapping())

	eligible := map[string]*ArchiveCandidate{}
	for _, cand := range c.Eligible {
		eligible[cand.Record.ID] = cand
	}
	reasons := map[string]string{}
	for _, cand := range c.Ineligible {
		reasons[cand.Record.ID] = cand.Reason
	}

	if len(eligible) != 2 || eligible["old-sold"] == nil || eligible["string-date"] == nil {
		t.Errorf("Eligible = %v, want old-sold and string-date", eligible)
	}
	if eligible["old-sold"] != nil && eligible["old-sold"].DaysSinceLastUpdate != 61 {
		t.Errorf("old-sold days = %d, want 61", eligible["old-sold"].DaysSinceLastUpdate)
	}
	if got := reasons["young-sold"]; got != "Only 59 days old (needs 60+ days)" {
		t.Errorf("young-sold reason = %q", got)
	}
	if got := reasons["boundary"]; got != "Only 60 days old (needs 60+ days)" {
		t.Errorf("boundary reason = %q", got)
	}
	if got := reasons["undated"]; got != "No last-updated date" {
		t.Errorf("undated reason = %q", got)
	}
	if _, ok := reasons["available"]; ok {
		t.Error("record with another status should not be classified")
	}
	if _, ok := eligible["available"]; ok {
		t.Error("record with another status should not be eligible")
	}
}

func TestEstimateSize_Monotonic(t *testing.T) {
	small := NormalizeRecords([]RawRecord{{ID: "a", Fields: map[string]any{"notes": "x"}}})[0]
	large := NormalizeRecords([]RawRecord{{ID: "a", Fields: map[string]any{"notes": strings.Repeat("x", 1000)}}})[0]

	if EstimateSize(small) >= EstimateSize(large) {
		t.Errorf("EstimateSize(small)=%d >= EstimateSize(large)=%d", EstimateSize(small), EstimateSize(large))
	}
}

func candidates(sizes ...int64) []*ArchiveCandidate {
	out := make([]*ArchiveCandidate, len(sizes))
	for i, s := range sizes {
		out[i] = &ArchiveCandidate{
			Record:             Record{ID: string(rune('a' + i)), Fields: NewFields()},
			EstimatedSizeBytes: s,
		}
	}
	return out
}

func TestPack(t *testing.T) {
	const kb = 1024

	tests := []struct {
		name      string
		sizes     []int64
		max       int64
		wantSizes [][]int64
	}{
		{
			name:      "three 400KB records into 700KB batches",
			sizes:     []int64{400 * kb, 400 * kb, 400 * kb},
			max:       700 * kb,
			wantSizes: [][]int64{{400 * kb}, {400 * kb}, {400 * kb}},
		},
		{
			name:      "fills greedily in order",
			sizes:     []int64{300, 300, 300, 100, 500},
			max:       700,
			wantSizes: [][]int64{{300, 300}, {300, 100}, {500}},
		},
		{
			name:      "exact fit",
			sizes:     []int64{350, 350},
			max:       700,
			wantSizes: [][]int64{{350, 350}},
		},
		{
			name:      "oversized record travels alone",
			sizes:     []int64{100, 900, 100},
			max:       700,
			wantSizes: [][]int64{{100}, {900}, {100}},
		},
		{
			name:      "empty selection",
			sizes:     nil,
			max:       700,
			wantSizes: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := candidates(tt.sizes...)
			batches := Pack(in, tt.max)

			if len(batches) != len(tt.wantSizes) {
				t.Fatalf("len(batches) = %d, want %d", len(batches), len(tt.wantSizes))
			}

			var order []string
			for i, b := range batches {
				if want := []string{"batch-001", "batch-002", "batch-003"}[i]; b.ID != want {
					t.Errorf("batch %d ID = %s, want %s", i, b.ID, want)
				}
				if len(b.Items) != len(tt.wantSizes[i]) {
					t.Fatalf("batch %d has %d items, want %d", i, len(b.Items), len(tt.wantSizes[i]))
				}
				var sum int64
				for j, item := range b.Items {
					if item.EstimatedSizeBytes != tt.wantSizes[i][j] {
						t.Errorf("batch %d item %d size = %d, want %d", i, j, item.EstimatedSizeBytes, tt.wantSizes[i][j])
					}
					sum += item.EstimatedSizeBytes
					order = append(order, item.Record.ID)
				}
				if b.SizeBytes != sum {
					t.Errorf("batch %d SizeBytes = %d, want %d", i, b.SizeBytes, sum)
				}
				if len(b.Items) > 1 && b.SizeBytes > tt.max {
					t.Errorf("batch %d exceeds capacity: %d > %d", i, b.SizeBytes, tt.max)
				}
			}

			for i, c := range in {
				if order[i] != c.Record.ID {
					t.Errorf("packing reordered records: %v", order)
					break
				}
			}
		})
	}
}

func TestPreviewArchive_Violations(t *testing.T) {
	selected := NormalizeRecords([]RawRecord{
		{ID: "ok", Fields: map[string]any{"status": "Sold", "lastUpdated": daysAgo(90)}},
		{ID: "available", Fields: map[string]any{"status": "Available", "lastUpdated": daysAgo(90)}},
		{ID: "recent", Fields: map[string]any{"status": "Sold", "lastUpdated": daysAgo(10)}},
		{ID: "undated", Fields: map[string]any{"status": "Sold"}},
	})

	res, err := PreviewArchive(selected, archiveNow, DefaultArchivePolicy(), DefaultFieldMapping())
	if !errors.Is(err, ErrValidationFailed) {
		t.Fatalf("PreviewArchive() error = %v, want ErrValidationFailed", err)
	}

	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("error %T is not *ValidationError", err)
	}
	want := []Violation{
		{ID: "available", Reason: `Status is "Available" (must be "Sold")`},
		{ID: "recent", Reason: "Only 10 days old (needs 60+ days)"},
		{ID: "undated", Reason: "No last-updated date"},
	}
	if len(verr.Violations) != len(want) {
		t.Fatalf("Violations = %v, want %v", verr.Violations, want)
	}
	for i := range want {
		if verr.Violations[i] != want[i] {
			t.Errorf("Violations[%d] = %+v, want %+v", i, verr.Violations[i], want[i])
		}
	}
	if len(res.Batches) != 0 {
		t.Errorf("Batches = %v, want none when validation fails", res.Batches)
	}
}

func TestPreviewArchive_Summary(t *testing.T) {
	policy := DefaultArchivePolicy()
	policy.MaxBatchBytes = 1024

	var raw []RawRecord
	for i := 0; i < 4; i++ {
		raw = append(raw, RawRecord{
			ID: string(rune('a' + i)),
			Fields: map[string]any{
				"status":      "Sold",
				"lastUpdated": daysAgo(100),
				"notes":       strings.Repeat("n", 300),
			},
		})
	}

	res, err := PreviewArchive(NormalizeRecords(raw), archiveNow, policy, DefaultFieldMapping())
	if err != nil {
		t.Fatalf("PreviewArchive() error = %v", err)
	}
	if res.RecordCount != 4 {
		t.Errorf("RecordCount = %d, want 4", res.RecordCount)
	}
	if res.BatchCount != len(res.Batches) || res.BatchCount != 2 {
		t.Errorf("BatchCount = %d, batches = %d, want 2", res.BatchCount, len(res.Batches))
	}
	if res.MaxBatchKB != 1 {
		t.Errorf("MaxBatchKB = %v, want 1", res.MaxBatchKB)
	}
	if res.TotalSizeKB != float64(res.TotalSizeBytes)/1024 {
		t.Errorf("TotalSizeKB = %v inconsistent with %d bytes", res.TotalSizeKB, res.TotalSizeBytes)
	}
	// Two batches of two ~440 byte records fill over 80% of 2 KB.
	if !res.Warning {
		t.Errorf("Warning = false for %d bytes in %d batches", res.TotalSizeBytes, res.BatchCount)
	}
}

func TestPreviewArchive_NoWarningForSmallSelection(t *testing.T) {
	selected := NormalizeRecords([]RawRecord{
		{ID: "a", Fields: map[string]any{"status": "Sold", "lastUpdated": daysAgo(100)}},
	})
	res, err := PreviewArchive(selected, archiveNow, DefaultArchivePolicy(), DefaultFieldMapping())
	if err != nil {
		t.Fatalf("PreviewArchive() error = %v", err)
	}
	if res.Warning {
		t.Error("Warning = true for a tiny selection")
	}
}

func TestPlanToken(t *testing.T) {
	cands := candidates(100, 200, 300)
	a := PlanToken("inventory", Pack(cands, 300))
	b := PlanToken("inventory", Pack(cands, 300))
	if a != b {
		t.Errorf("PlanToken() not deterministic: %s vs %s", a, b)
	}
	if c := PlanToken("inventory", Pack(cands, 1000)); c == a {
		t.Error("PlanToken() ignores batch layout")
	}
	if d := PlanToken("other", Pack(cands, 300)); d == a {
		t.Error("PlanToken() ignores collection")
	}
}
