package report

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"

	"invsnap/internal/inv"
)

// RenderPreview formats an archive preview: one line per batch, totals, and
// the near-capacity warning. token, when non-empty, is printed with the
// command that commits the plan.
func RenderPreview(res *inv.PreviewResult, token string) string {
	var b strings.Builder

	heading(&b, "Archive Preview", '=')
	if res.RecordCount == 0 {
		b.WriteString("No records selected for archiving.\n")
		return b.String()
	}

	fmt.Fprintf(&b, "Records:        %s\n", humanize.Comma(int64(res.RecordCount)))
	fmt.Fprintf(&b, "Batches:        %d\n", res.BatchCount)
	fmt.Fprintf(&b, "Total size:     %s (%.1f KB)\n", humanize.IBytes(uint64(res.TotalSizeBytes)), res.TotalSizeKB)
	fmt.Fprintf(&b, "Max batch size: %.1f KB\n", res.MaxBatchKB)

	b.WriteString("\n")
	tw := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
	for _, batch := range res.Batches {
		fmt.Fprintf(tw, "  %s\t%d record(s)\t%s\n", batch.ID, len(batch.Items), humanize.IBytes(uint64(batch.SizeBytes)))
	}
	tw.Flush()

	if res.Warning {
		b.WriteString("\nWarning: batches are over 80% full; consider archiving a smaller selection.\n")
	}
	if token != "" {
		fmt.Fprintf(&b, "\nTo archive these records run:\n  invsnap archive commit --confirm %s", token)
		if ids := selectedIDs(res); len(ids) > 0 {
			b.WriteString(" " + strings.Join(ids, " "))
		}
		b.WriteString("\n")
	}
	return b.String()
}

// RenderViolations lists every record that blocked an archive selection.
func RenderViolations(violations []inv.Violation) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d record(s) cannot be archived:\n", len(violations))
	tw := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
	for _, v := range violations {
		fmt.Fprintf(tw, "  %s\t%s\n", v.ID, v.Reason)
	}
	tw.Flush()
	return b.String()
}

// RenderClassification summarises which sold records are past the archive
// threshold and why the rest are not.
func RenderClassification(c *inv.Classification) string {
	var b strings.Builder
	heading(&b, "Archive Eligibility", '=')
	fmt.Fprintf(&b, "Eligible:   %d\n", len(c.Eligible))
	fmt.Fprintf(&b, "Ineligible: %d\n", len(c.Ineligible))

	if len(c.Eligible) > 0 {
		b.WriteString("\n")
		tw := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
		for _, cand := range limit(c.Eligible) {
			fmt.Fprintf(tw, "  %s\t%d days\t%s\n", cand.Record.ID, cand.DaysSinceLastUpdate, humanize.IBytes(uint64(cand.EstimatedSizeBytes)))
		}
		tw.Flush()
		more(&b, len(c.Eligible))
	}
	if len(c.Ineligible) > 0 {
		b.WriteString("\n")
		tw := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
		for _, cand := range limit(c.Ineligible) {
			fmt.Fprintf(tw, "  %s\t%s\n", cand.Record.ID, cand.Reason)
		}
		tw.Flush()
		more(&b, len(c.Ineligible))
	}
	return b.String()
}

func selectedIDs(res *inv.PreviewResult) []string {
	var ids []string
	for _, batch := range res.Batches {
		for _, c := range batch.Items {
			ids = append(ids, c.Record.ID)
		}
	}
	return ids
}
