package report

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"

	"invsnap/internal/inv"
)

// RenderSnapshot formats a snapshot's metadata and statistics. Category
// counts are listed largest first.
func RenderSnapshot(m inv.Metadata) string {
	var b strings.Builder

	heading(&b, "Snapshot", '=')
	fmt.Fprintf(&b, "Collection:   %s\n", m.Collection)
	fmt.Fprintf(&b, "Created:      %s\n", m.CreatedAt.UTC().Format(inv.ISOLayout))
	fmt.Fprintf(&b, "Records:      %s\n", humanize.Comma(int64(m.DocumentCount)))
	fmt.Fprintf(&b, "Checksum:     %s\n", m.Checksum)
	fmt.Fprintf(&b, "Retail value: %s\n", humanize.CommafWithDigits(m.Statistics.TotalRetailValue, 2))
	if dr := m.Statistics.DateRange; dr.Earliest != "" {
		fmt.Fprintf(&b, "Date added:   %s to %s\n", dr.Earliest, dr.Latest)
	}

	countSection(&b, "By status", m.Statistics.ByStatus)
	countSection(&b, "By manufacturer", m.Statistics.ByManufacturer)
	return b.String()
}

func countSection(b *strings.Builder, title string, counts map[string]int) {
	if len(counts) == 0 {
		return
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(x, y string) int {
		if c := cmp.Compare(counts[y], counts[x]); c != 0 {
			return c
		}
		return cmp.Compare(x, y)
	})

	b.WriteString("\n")
	heading(b, title, '-')
	tw := tabwriter.NewWriter(b, 0, 0, 2, ' ', 0)
	for _, k := range limit(keys) {
		fmt.Fprintf(tw, "  %s\t%s\n", k, humanize.Comma(int64(counts[k])))
	}
	tw.Flush()
	more(b, len(keys))
}
