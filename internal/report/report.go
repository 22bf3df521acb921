// Package report renders reconciliation results and archive previews as
// plain text for terminals and report files.
package report

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"

	"invsnap/internal/inv"
)

// MaxListedEntries caps how many records of each category are listed.
const MaxListedEntries = 10

const notSet = "(not set)"

// minOpaqueIDLen is the shortest value treated as an opaque document ID.
const minOpaqueIDLen = 20

// Renderer formats a ComparisonResult. Lookup resolves supplier IDs to
// display names and may be nil. SummaryFields are printed next to added and
// deleted record IDs when present.
type Renderer struct {
	Lookup        inv.NameLookup
	SummaryFields []string
}

// Render formats result with the default layout.
func Render(result *inv.ComparisonResult, lookup inv.NameLookup) string {
	r := &Renderer{Lookup: lookup}
	return r.Render(result)
}

// Render formats result as a multi-section text report.
func (r *Renderer) Render(result *inv.ComparisonResult) string {
	var b strings.Builder

	heading(&b, "Inventory Reconciliation Report", '=')
	fmt.Fprintf(&b, "Generated:    %s\n", result.ComparedAt.UTC().Format(inv.ISOLayout))
	fmt.Fprintf(&b, "Backup date:  %s (%s)\n",
		result.BackupCreatedAt.UTC().Format(inv.ISOLayout),
		humanize.RelTime(result.BackupCreatedAt, result.ComparedAt, "before comparison", "after comparison"))
	fmt.Fprintf(&b, "Collection:   %s\n", result.Collection)
	fmt.Fprintf(&b, "Status:       %s\n", result.Status)
	fmt.Fprintf(&b, "Integrity:    %.1f%%\n", result.IntegrityScore)

	b.WriteString("\n")
	heading(&b, "Summary", '-')
	c := result.Counts
	tw := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
	for _, row := range []struct {
		label string
		n     int
	}{
		{"Backup records:", c.Backup},
		{"Current records:", c.Current},
		{"Matching:", c.Matching},
		{"Modified:", c.Modified},
		{"Added:", c.Added},
		{"Deleted:", c.Deleted},
	} {
		fmt.Fprintf(tw, "%s\t%s\n", row.label, humanize.Comma(int64(row.n)))
	}
	tw.Flush()

	if len(result.Modified) > 0 {
		b.WriteString("\n")
		heading(&b, fmt.Sprintf("Modified records (%d)", len(result.Modified)), '-')
		for _, m := range limit(result.Modified) {
			fmt.Fprintf(&b, "%s\n", m.ID)
			for _, d := range m.Differences {
				fmt.Fprintf(&b, "  %s: %s -> %s\n", d.Field, r.formatValue(d.Field, d.Backup), r.formatValue(d.Field, d.Current))
			}
		}
		more(&b, len(result.Modified))
	}

	r.recordSection(&b, "Added records", result.Added)
	r.recordSection(&b, "Deleted records", result.Deleted)

	if len(result.FieldChanges) > 0 {
		b.WriteString("\n")
		heading(&b, "Field changes", '-')
		tw := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
		for _, fc := range result.FieldChanges {
			fmt.Fprintf(tw, "  %s\t%d\n", fc.Field, fc.Count)
		}
		tw.Flush()
	}

	return b.String()
}

func (r *Renderer) recordSection(b *strings.Builder, title string, records []inv.Record) {
	if len(records) == 0 {
		return
	}
	b.WriteString("\n")
	heading(b, fmt.Sprintf("%s (%d)", title, len(records)), '-')
	for _, rec := range limit(records) {
		fmt.Fprintf(b, "- %s%s\n", rec.ID, r.summary(rec))
	}
	more(b, len(records))
}

func (r *Renderer) summary(rec inv.Record) string {
	var parts []string
	for _, name := range r.SummaryFields {
		v, ok := rec.Fields.Get(name)
		if !ok || isEmpty(v) {
			continue
		}
		parts = append(parts, r.formatValue(name, v))
	}
	if len(parts) == 0 {
		return ""
	}
	return " (" + strings.Join(parts, ", ") + ")"
}

// formatValue renders a single diffed value. Supplier references holding an
// opaque ID are replaced by the supplier's name when the lookup knows it.
func (r *Renderer) formatValue(field string, v inv.Value) string {
	if isEmpty(v) {
		return notSet
	}
	if s, ok := v.Str(); ok {
		if isSupplierField(field) && isOpaqueID(s) {
			return r.supplierName(s)
		}
		return s
	}
	if n, ok := v.Num(); ok {
		return strconv.FormatFloat(n, 'f', -1, 64)
	}
	if bv, ok := v.Bool(); ok {
		return strconv.FormatBool(bv)
	}
	if t, ok := v.Temporal(); ok {
		return t.ISO
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("<%s>", v.Kind())
	}
	return string(data)
}

func (r *Renderer) supplierName(id string) string {
	if r.Lookup != nil {
		if name, ok := r.Lookup.Resolve(id); ok {
			return name
		}
	}
	return fmt.Sprintf("Unknown Supplier (%s...)", id[:8])
}

func isEmpty(v inv.Value) bool {
	if v.IsNull() {
		return true
	}
	s, ok := v.Str()
	return ok && s == ""
}

func isSupplierField(name string) bool {
	return strings.Contains(strings.ToLower(name), "supplier")
}

func isOpaqueID(s string) bool {
	if len(s) < minOpaqueIDLen {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !('a' <= c && c <= 'z' || 'A' <= c && c <= 'Z' || '0' <= c && c <= '9') {
			return false
		}
	}
	return true
}

func limit[T any](items []T) []T {
	if len(items) > MaxListedEntries {
		return items[:MaxListedEntries]
	}
	return items
}

func more(b *strings.Builder, total int) {
	if total > MaxListedEntries {
		fmt.Fprintf(b, "... and %d more\n", total-MaxListedEntries)
	}
}

func heading(b *strings.Builder, title string, underline rune) {
	b.WriteString(title)
	b.WriteString("\n")
	b.WriteString(strings.Repeat(string(underline), len(title)))
	b.WriteString("\n")
}
