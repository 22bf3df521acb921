package report

import (
	"strings"
	"testing"
	"time"

	"invsnap/internal/inv"
)

func previewFixture(t *testing.T, notes int) *inv.PreviewResult {
	t.Helper()
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	records := inv.NormalizeRecords([]inv.RawRecord{
		{ID: "watch-1", Fields: map[string]any{"status": "Sold", "lastUpdated": now.AddDate(0, 0, -90), "notes": strings.Repeat("n", notes)}},
		{ID: "watch-4", Fields: map[string]any{"status": "Sold", "lastUpdated": now.AddDate(0, 0, -120), "notes": strings.Repeat("n", notes)}},
	})
	policy := inv.DefaultArchivePolicy()
	policy.MaxBatchBytes = 1024

	res, err := inv.PreviewArchive(records, now, policy, inv.DefaultFieldMapping())
	if err != nil {
		t.Fatalf("PreviewArchive() error = %v", err)
	}
	return res
}

func TestRenderPreview(t *testing.T) {
	res := previewFixture(t, 10)

	out := RenderPreview(res, "0badc0de")
	for _, want := range []string{
		"Archive Preview",
		"Records:        2",
		"Batches:        1",
		"Max batch size: 1.0 KB",
		"batch-001",
		"invsnap archive commit --confirm 0badc0de watch-1 watch-4",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("preview missing %q\n%s", want, out)
		}
	}
	if strings.Contains(out, "Warning") {
		t.Errorf("unexpected warning\n%s", out)
	}
}

func TestRenderPreview_Warning(t *testing.T) {
	res := previewFixture(t, 800)
	if !res.Warning {
		t.Fatalf("fixture should trigger the capacity warning: %+v", res)
	}
	if out := RenderPreview(res, ""); !strings.Contains(out, "Warning: batches are over 80% full") {
		t.Errorf("preview missing warning\n%s", out)
	}
}

func TestRenderPreview_Empty(t *testing.T) {
	out := RenderPreview(&inv.PreviewResult{}, "")
	if !strings.Contains(out, "No records selected") {
		t.Errorf("RenderPreview() = %q", out)
	}
}

func TestRenderViolations(t *testing.T) {
	out := RenderViolations([]inv.Violation{
		{ID: "watch-2", Reason: "Only 10 days old (needs 60+ days)"},
		{ID: "ghost", Reason: "Record not found"},
	})
	if !strings.HasPrefix(out, "2 record(s) cannot be archived:") {
		t.Errorf("RenderViolations() header = %q", out)
	}
	for _, want := range []string{"watch-2", "Only 10 days old (needs 60+ days)", "ghost", "Record not found"} {
		if !strings.Contains(out, want) {
			t.Errorf("RenderViolations() missing %q\n%s", want, out)
		}
	}
}

func TestRenderClassification(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	records := inv.NormalizeRecords([]inv.RawRecord{
		{ID: "old", Fields: map[string]any{"status": "Sold", "lastUpdated": now.AddDate(0, 0, -61)}},
		{ID: "young", Fields: map[string]any{"status": "Sold", "lastUpdated": now.AddDate(0, 0, -59)}},
	})
	c := inv.Classify(records, now, inv.DefaultArchivePolicy(), inv.DefaultFieldMapping())

	out := RenderClassification(c)
	for _, want := range []string{"Eligible:   1", "Ineligible: 1", "61 days", "Only 59 days old (needs 60+ days)"} {
		if !strings.Contains(out, want) {
			t.Errorf("RenderClassification() missing %q\n%s", want, out)
		}
	}
}
