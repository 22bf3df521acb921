package inv

import (
	"fmt"
	"time"
)

const day = 24 * time.Hour

// ArchivePolicy is the retention rule deciding which records may move to the
// archive collection, and how the move is batched.
type ArchivePolicy struct {
	Status            string // only records with this status are considered
	ThresholdDays     int    // eligible iff days since last update > ThresholdDays
	MaxBatchBytes     int64
	ArchiveCollection string
}

// DefaultArchivePolicy returns the policy used when configuration leaves it
// unset: sold items untouched for more than 60 days, packed into 1 MiB
// batches.
func DefaultArchivePolicy() ArchivePolicy {
	return ArchivePolicy{
		Status:            "Sold",
		ThresholdDays:     60,
		MaxBatchBytes:     1024 * 1024,
		ArchiveCollection: "archived_inventory",
	}
}

// ArchiveCandidate is a record annotated for archiving. It is recomputed on
// every classification pass and never persisted.
type ArchiveCandidate struct {
	Record              Record
	DaysSinceLastUpdate int
	EstimatedSizeBytes  int64
	Reason              string // why the record is not eligible; empty if eligible
}

// Classification splits candidates by the age rule. Records whose status
// does not match the policy appear in neither list.
type Classification struct {
	Eligible   []*ArchiveCandidate
	Ineligible []*ArchiveCandidate
}

// Classify applies the policy's status filter and age threshold. Age is the
// ceiling of elapsed days, so a record updated 30 minutes ago is 1 day old.
func Classify(records []Record, now time.Time, policy ArchivePolicy, fields FieldMapping) *Classification {
	c := &Classification{
		Eligible:   []*ArchiveCandidate{},
		Ineligible: []*ArchiveCandidate{},
	}
	for _, r := range records {
		if status, _ := r.StringField(fields.Status); status != policy.Status {
			continue
		}
		cand := newCandidate(r, now, policy, fields)
		if cand.Reason == "" {
			c.Eligible = append(c.Eligible, cand)
		} else {
			c.Ineligible = append(c.Ineligible, cand)
		}
	}
	return c
}

func newCandidate(r Record, now time.Time, policy ArchivePolicy, fields FieldMapping) *ArchiveCandidate {
	cand := &ArchiveCandidate{
		Record:             r,
		EstimatedSizeBytes: EstimateSize(r),
	}
	last, ok := timeOf(r, fields.LastUpdated)
	if !ok {
		cand.Reason = "No last-updated date"
		return cand
	}
	cand.DaysSinceLastUpdate = DaysSince(last, now)
	if cand.DaysSinceLastUpdate <= policy.ThresholdDays {
		cand.Reason = fmt.Sprintf("Only %d days old (needs %d+ days)", cand.DaysSinceLastUpdate, policy.ThresholdDays)
	}
	return cand
}

// DaysSince returns the elapsed time from t to now in days, rounded up.
// Times in the future count as 0 days.
func DaysSince(t, now time.Time) int {
	elapsed := now.Sub(t)
	if elapsed <= 0 {
		return 0
	}
	days := elapsed / day
	if elapsed%day > 0 {
		days++
	}
	return int(days)
}

// EstimateSize approximates the storage cost of a record as the byte length
// of its serialized fields. It is monotonic with content size, not exact.
func EstimateSize(r Record) int64 {
	data, err := r.Fields.MarshalJSON()
	if err != nil {
		return 0
	}
	return int64(len(data))
}

// ClassifyCollection fetches the live collection and classifies it against
// the service's archive policy.
func (s *Service) ClassifyCollection(collection string) (*Classification, error) {
	raw, err := s.store.FetchAll(collection)
	if err != nil {
		return nil, fmt.Errorf("%w: fetching %s: %w", ErrSourceUnavailable, collection, err)
	}
	c := Classify(NormalizeRecords(raw), s.clock.Now(), s.settings.Policy, s.settings.Fields)
	s.logger.Debug("classified collection", "collection", collection,
		"eligible", len(c.Eligible), "ineligible", len(c.Ineligible))
	return c, nil
}
