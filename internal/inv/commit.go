package inv

import (
	"fmt"
	"strings"
	"time"
)

// ArchivePlan is the first phase of an archive move. Producing it has no side
// effects; its Token must be handed back to CommitArchive to perform writes.
type ArchivePlan struct {
	ID                string
	CreatedAt         time.Time
	SourceCollection  string
	ArchiveCollection string
	Preview           *PreviewResult
	Token             string
}

// PlanToken derives the confirmation token for a set of batches. It depends
// only on the records and their batch layout, so re-planning against an
// unchanged collection yields the same token.
func PlanToken(collection string, batches []*Batch) string {
	var records []Record
	var layout strings.Builder
	layout.WriteString(collection)
	for _, b := range batches {
		fmt.Fprintf(&layout, "|%s:%d", b.ID, len(b.Items))
		for _, c := range b.Items {
			records = append(records, c.Record)
		}
	}
	records = append(records, Record{ID: layout.String()})
	return Checksum(records)
}

// PlanArchive previews archiving ids (or every eligible record when ids is
// empty) and wraps the result in a plan that can later be committed.
func (s *Service) PlanArchive(collection string, ids []string) (*ArchivePlan, error) {
	preview, err := s.PreviewArchive(collection, ids)
	if err != nil {
		return nil, err
	}
	return &ArchivePlan{
		ID:                s.idgen.New(),
		CreatedAt:         s.clock.Now(),
		SourceCollection:  collection,
		ArchiveCollection: s.settings.Policy.ArchiveCollection,
		Preview:           preview,
		Token:             PlanToken(collection, preview.Batches),
	}, nil
}

// CommitArchive performs the writes of a plan: each record is copied into the
// archive collection, annotated with its plan and batch, then deleted from the
// source collection. It refuses to write unless token equals plan.Token.
// It stops at the first store error; records already moved stay moved.
func (s *Service) CommitArchive(plan *ArchivePlan, token string) (int, error) {
	if plan == nil || token == "" || token != plan.Token {
		return 0, ErrConfirmationMismatch
	}

	archivedAt := s.clock.Now().UTC()
	moved := 0
	for _, b := range plan.Preview.Batches {
		for _, c := range b.Items {
			fields := c.Record.Fields.ToMap()
			fields["archivedAt"] = archivedAt
			fields["archivePlan"] = plan.ID
			fields["archiveBatch"] = b.ID

			if err := s.store.Put(plan.ArchiveCollection, c.Record.ID, fields); err != nil {
				return moved, fmt.Errorf("archiving %s: %w", c.Record.ID, err)
			}
			if err := s.store.Delete(plan.SourceCollection, c.Record.ID); err != nil {
				return moved, fmt.Errorf("removing %s from %s: %w", c.Record.ID, plan.SourceCollection, err)
			}
			moved++
		}
		s.logger.Info("archive batch committed", "plan", plan.ID, "batch", b.ID, "records", len(b.Items))
	}

	s.logger.Info("archive committed", "plan", plan.ID, "records", moved)
	return moved, nil
}
