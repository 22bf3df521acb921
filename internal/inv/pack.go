package inv

import (
	"fmt"
	"time"
)

// nearCapacityRatio is the share of total batch capacity above which a
// preview warns that batches are near saturation.
const nearCapacityRatio = 0.8

// Batch is an order-preserving group of candidates whose combined size stays
// within the batch limit. Batches exist only in memory.
type Batch struct {
	ID        string
	Items     []*ArchiveCandidate
	SizeBytes int64
}

// Pack groups candidates into batches greedily in arrival order: a record
// that would push a non-empty batch past maxBatchBytes closes that batch and
// opens the next. Records are never reordered or split, so a record larger
// than the limit travels alone in its own batch.
func Pack(candidates []*ArchiveCandidate, maxBatchBytes int64) []*Batch {
	var (
		batches []*Batch
		current = &Batch{}
	)
	for _, c := range candidates {
		if current.SizeBytes+c.EstimatedSizeBytes > maxBatchBytes && len(current.Items) > 0 {
			batches = append(batches, current)
			current = &Batch{}
		}
		current.Items = append(current.Items, c)
		current.SizeBytes += c.EstimatedSizeBytes
	}
	if len(current.Items) > 0 {
		batches = append(batches, current)
	}
	for i, b := range batches {
		b.ID = fmt.Sprintf("batch-%03d", i+1)
	}
	return batches
}

// PreviewResult is the dry-run outcome of an archive selection.
type PreviewResult struct {
	Violations     []Violation
	Batches        []*Batch
	BatchCount     int
	RecordCount    int
	TotalSizeBytes int64
	TotalSizeKB    float64
	MaxBatchKB     float64
	// Warning is set when the selection fills more than 80% of the capacity
	// of its batches; a smaller selection is advisable.
	Warning bool
}

// PreviewArchive validates that every selected record has the policy status
// and is past the age threshold, then packs the selection. Any violation
// fails the whole preview with a *ValidationError listing every offending
// record; nothing is packed in that case. It never writes.
func PreviewArchive(selected []Record, now time.Time, policy ArchivePolicy, fields FieldMapping) (*PreviewResult, error) {
	var (
		violations []Violation
		candidates []*ArchiveCandidate
	)
	for _, r := range selected {
		if status, _ := r.StringField(fields.Status); status != policy.Status {
			violations = append(violations, Violation{
				ID:     r.ID,
				Reason: fmt.Sprintf("Status is %q (must be %q)", status, policy.Status),
			})
			continue
		}
		cand := newCandidate(r, now, policy, fields)
		if cand.Reason != "" {
			violations = append(violations, Violation{ID: r.ID, Reason: cand.Reason})
			continue
		}
		candidates = append(candidates, cand)
	}
	if len(violations) > 0 {
		return &PreviewResult{Violations: violations}, &ValidationError{Violations: violations}
	}

	batches := Pack(candidates, policy.MaxBatchBytes)
	result := &PreviewResult{
		Batches:     batches,
		BatchCount:  len(batches),
		RecordCount: len(candidates),
		MaxBatchKB:  float64(policy.MaxBatchBytes) / 1024,
	}
	for _, b := range batches {
		result.TotalSizeBytes += b.SizeBytes
	}
	result.TotalSizeKB = float64(result.TotalSizeBytes) / 1024
	result.Warning = result.TotalSizeKB > result.MaxBatchKB*float64(result.BatchCount)*nearCapacityRatio
	return result, nil
}

// PreviewArchive resolves ids against the live collection and previews
// archiving them. With no ids, every currently eligible record is selected.
// IDs missing from the collection are reported as violations.
func (s *Service) PreviewArchive(collection string, ids []string) (*PreviewResult, error) {
	raw, err := s.store.FetchAll(collection)
	if err != nil {
		return nil, fmt.Errorf("%w: fetching %s: %w", ErrSourceUnavailable, collection, err)
	}
	records := NormalizeRecords(raw)
	now := s.clock.Now()

	var selected []Record
	if len(ids) == 0 {
		for _, c := range Classify(records, now, s.settings.Policy, s.settings.Fields).Eligible {
			selected = append(selected, c.Record)
		}
	} else {
		byID := make(map[string]Record, len(records))
		for _, r := range records {
			byID[r.ID] = r
		}
		var missing []Violation
		for _, id := range ids {
			r, ok := byID[id]
			if !ok {
				missing = append(missing, Violation{ID: id, Reason: "Record not found"})
				continue
			}
			selected = append(selected, r)
		}
		if len(missing) > 0 {
			// Report missing IDs together with every other violation.
			res, verr := PreviewArchive(selected, now, s.settings.Policy, s.settings.Fields)
			if verr != nil {
				missing = append(missing, res.Violations...)
			}
			return &PreviewResult{Violations: missing}, &ValidationError{Violations: missing}
		}
	}

	result, err := PreviewArchive(selected, now, s.settings.Policy, s.settings.Fields)
	if err != nil {
		s.logger.Info("archive preview rejected", "collection", collection, "violations", len(result.Violations))
		return result, err
	}
	s.logger.Info("archive preview",
		"collection", collection,
		"records", result.RecordCount,
		"batches", result.BatchCount,
		"bytes", result.TotalSizeBytes,
		"warning", result.Warning,
	)
	return result, nil
}
