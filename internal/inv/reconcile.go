package inv

import (
	"cmp"
	"fmt"
	"math"
	"slices"
	"time"
)

// Status classifies a comparison as a whole.
type Status string

const (
	StatusPerfectMatch      Status = "PERFECT_MATCH"
	StatusStructuralChanges Status = "STRUCTURAL_CHANGES"
	StatusDataChanges       Status = "DATA_CHANGES"
	StatusUnknown           Status = "UNKNOWN"
)

// Counts summarises a comparison.
type Counts struct {
	Backup   int `json:"backup"`
	Current  int `json:"current"`
	Matching int `json:"matching"`
	Modified int `json:"modified"`
	Added    int `json:"added"`
	Deleted  int `json:"deleted"`
}

// FieldDifference is one differing field between the backup and live copy
// of a record.
type FieldDifference struct {
	Field   string `json:"field"`
	Backup  Value  `json:"backupValue"`
	Current Value  `json:"currentValue"`
}

// ModifiedRecord is a record present on both sides with at least one
// differing field.
type ModifiedRecord struct {
	ID          string            `json:"id"`
	Backup      Record            `json:"backup"`
	Current     Record            `json:"current"`
	Differences []FieldDifference `json:"differences"`
}

// FieldCount is one row of the field-change frequency table.
type FieldCount struct {
	Field string `json:"field"`
	Count int    `json:"count"`
}

// ComparisonResult is the outcome of reconciling a snapshot against the live
// collection. Matching, Modified and Deleted partition the snapshot IDs;
// Added holds exactly the live IDs absent from the snapshot.
type ComparisonResult struct {
	ComparedAt      time.Time        `json:"comparedAt"`
	BackupCreatedAt time.Time        `json:"backupCreatedAt"`
	Collection      string           `json:"collection"`
	Status          Status           `json:"status"`
	Counts          Counts           `json:"counts"`
	Matching        []string         `json:"matching"`
	Modified        []ModifiedRecord `json:"modified"`
	Added           []Record         `json:"added"`
	Deleted         []Record         `json:"deleted"`
	FieldChanges    []FieldCount     `json:"fieldChanges"`
	IntegrityScore  float64          `json:"integrityScore"`
}

// Compare reconciles a snapshot against normalized live records. It is a pure
// function of its inputs.
func Compare(backup *Snapshot, live []Record, now time.Time) *ComparisonResult {
	liveByID := make(map[string]Record, len(live))
	for _, r := range live {
		liveByID[r.ID] = r
	}
	backupIDs := make(map[string]struct{}, len(backup.Data))

	result := &ComparisonResult{
		ComparedAt:      now,
		BackupCreatedAt: backup.Metadata.CreatedAt,
		Collection:      backup.Metadata.Collection,
		Matching:        []string{},
		Modified:        []ModifiedRecord{},
		Added:           []Record{},
		Deleted:         []Record{},
	}
	fieldCounts := make(map[string]int)

	for _, b := range backup.Data {
		if _, dup := backupIDs[b.ID]; dup {
			continue
		}
		backupIDs[b.ID] = struct{}{}

		current, ok := liveByID[b.ID]
		if !ok {
			result.Deleted = append(result.Deleted, b)
			continue
		}
		diffs := FieldDiff(b.Fields, current.Fields)
		if len(diffs) == 0 {
			result.Matching = append(result.Matching, b.ID)
			continue
		}
		result.Modified = append(result.Modified, ModifiedRecord{
			ID:          b.ID,
			Backup:      b,
			Current:     current,
			Differences: diffs,
		})
		for _, d := range diffs {
			fieldCounts[d.Field]++
		}
	}

	seenLive := make(map[string]struct{}, len(live))
	for _, r := range live {
		if _, dup := seenLive[r.ID]; dup {
			continue
		}
		seenLive[r.ID] = struct{}{}
		if _, ok := backupIDs[r.ID]; !ok {
			result.Added = append(result.Added, r)
		}
	}

	result.Counts = Counts{
		Backup:   len(backupIDs),
		Current:  len(liveByID),
		Matching: len(result.Matching),
		Modified: len(result.Modified),
		Added:    len(result.Added),
		Deleted:  len(result.Deleted),
	}
	result.FieldChanges = rankFieldChanges(fieldCounts)
	result.Status = deriveStatus(result.Counts)
	result.IntegrityScore = integrityScore(result.Counts)
	return result
}

// FieldDiff compares two records field by field over the union of their field
// names. Temporal bookkeeping names are never diffed on their own. A field
// missing on one side reads as null, so it only differs from a non-null value.
// The result is ordered by field name.
func FieldDiff(backup, current *Fields) []FieldDifference {
	names := make(map[string]struct{}, backup.Len()+current.Len())
	for _, k := range backup.Keys() {
		names[k] = struct{}{}
	}
	for _, k := range current.Keys() {
		names[k] = struct{}{}
	}

	sorted := make([]string, 0, len(names))
	for k := range names {
		if isBookkeepingField(k) {
			continue
		}
		sorted = append(sorted, k)
	}
	slices.Sort(sorted)

	var diffs []FieldDifference
	for _, name := range sorted {
		bv, _ := backup.Get(name)
		cv, _ := current.Get(name)
		if valuesEqual(bv, cv) {
			continue
		}
		diffs = append(diffs, FieldDifference{Field: name, Backup: bv, Current: cv})
	}
	return diffs
}

func valuesEqual(a, b Value) bool {
	at, aok := a.Temporal()
	bt, bok := b.Temporal()
	if aok && bok {
		return at.ISO == bt.ISO
	}
	return Equal(a, b)
}

func isBookkeepingField(name string) bool {
	switch name {
	case temporalTypeKey, temporalISOKey, temporalSecsKey, temporalNanosKey:
		return true
	}
	return false
}

func rankFieldChanges(counts map[string]int) []FieldCount {
	ranked := make([]FieldCount, 0, len(counts))
	for field, n := range counts {
		ranked = append(ranked, FieldCount{Field: field, Count: n})
	}
	slices.SortFunc(ranked, func(a, b FieldCount) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return cmp.Compare(a.Field, b.Field)
	})
	return ranked
}

func deriveStatus(c Counts) Status {
	switch {
	case c.Matching == c.Backup && c.Backup == c.Current && c.Modified == 0:
		return StatusPerfectMatch
	case c.Deleted > 0 || c.Added > 0:
		return StatusStructuralChanges
	case c.Modified > 0:
		return StatusDataChanges
	default:
		return StatusUnknown
	}
}

// integrityScore is the share of IDs present and identical on both sides,
// relative to the larger collection, rounded to one decimal. Two empty
// collections score 0.
func integrityScore(c Counts) float64 {
	denom := max(c.Backup, c.Current)
	if denom == 0 {
		return 0
	}
	return math.Round(float64(c.Matching)/float64(denom)*1000) / 10
}

// Reconcile verifies the snapshot, fetches and normalizes the live
// collection, and compares the two. A fetch failure aborts with
// ErrSourceUnavailable and no partial result.
func (s *Service) Reconcile(snapshot *Snapshot) (*ComparisonResult, error) {
	if _, err := Verify(snapshot); err != nil {
		return nil, err
	}

	collection := snapshot.Metadata.Collection
	s.logger.Debug("fetching live collection", "collection", collection)
	raw, err := s.store.FetchAll(collection)
	if err != nil {
		return nil, fmt.Errorf("%w: fetching %s: %w", ErrSourceUnavailable, collection, err)
	}

	result := Compare(snapshot, NormalizeRecords(raw), s.clock.Now())
	if result.Status == StatusUnknown {
		s.logger.Warn("comparison produced UNKNOWN status", "collection", collection,
			"matching", result.Counts.Matching, "backup", result.Counts.Backup, "current", result.Counts.Current)
	}

	s.logger.Info("reconciliation complete",
		"collection", collection,
		"status", string(result.Status),
		"score", result.IntegrityScore,
		"modified", result.Counts.Modified,
		"added", result.Counts.Added,
		"deleted", result.Counts.Deleted,
	)
	return result, nil
}
