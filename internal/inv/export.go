package inv

import (
	"bytes"
	"fmt"
	"time"
)

// ExportOptions controls a single export.
type ExportOptions struct {
	// StatisticsOnly computes the snapshot without writing an artifact.
	StatisticsOnly bool
}

// ExportResult is the outcome of an export. ArtifactName is empty when the
// export ran in statistics-only mode.
type ExportResult struct {
	Snapshot     *Snapshot
	ArtifactName string
	Size         int64
}

// Export captures the whole collection as a snapshot and stores it in the
// vault. Only one export may run per Service at a time; a second concurrent
// call fails with ErrExportInProgress.
func (s *Service) Export(collection string, opts ExportOptions) (*ExportResult, error) {
	if !s.beginExport() {
		return nil, ErrExportInProgress
	}
	defer s.endExport()

	start := s.clock.Now()
	s.logger.Info("export started", "collection", collection)

	raw, err := s.store.FetchAll(collection)
	if err != nil {
		return nil, fmt.Errorf("%w: fetching %s: %w", ErrSourceUnavailable, collection, err)
	}

	records := NormalizeRecords(raw)
	snapshot := &Snapshot{
		Metadata: Metadata{
			Version:       SnapshotVersion,
			CreatedAt:     start.UTC(),
			Collection:    collection,
			DocumentCount: len(records),
			Checksum:      Checksum(records),
			Statistics:    ComputeStatistics(records, s.settings.Fields),
		},
		Data: records,
	}
	snapshot.Metadata.ExportDuration = s.clock.Now().Sub(start).Milliseconds()

	result := &ExportResult{Snapshot: snapshot}
	if opts.StatisticsOnly {
		s.logger.Info("export statistics computed", "collection", collection, "count", len(records))
		return result, nil
	}

	name, size, err := s.writeArtifact(snapshot, start)
	if err != nil {
		return nil, err
	}
	result.ArtifactName = name
	result.Size = size

	s.logger.Info("export complete",
		"collection", collection,
		"artifact", name,
		"count", len(records),
		"checksum", snapshot.Metadata.Checksum,
		"duration_ms", snapshot.Metadata.ExportDuration,
	)
	return result, nil
}

func (s *Service) writeArtifact(snapshot *Snapshot, at time.Time) (string, int64, error) {
	data, err := EncodeSnapshot(snapshot)
	if err != nil {
		return "", 0, err
	}

	name := ArtifactName(snapshot.Metadata.Collection, at.UTC())
	if s.encryptor != nil {
		var sealed bytes.Buffer
		if err := s.encryptor.Seal(bytes.NewReader(data), &sealed); err != nil {
			return "", 0, fmt.Errorf("encrypting artifact: %w", err)
		}
		data = sealed.Bytes()
		name += EncryptedSuffix
	}

	if err := s.vault.PutArtifact(name, bytes.NewReader(data), int64(len(data))); err != nil {
		return "", 0, fmt.Errorf("storing artifact %s: %w", name, err)
	}
	return name, int64(len(data)), nil
}

func (s *Service) beginExport() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.exporting {
		return false
	}
	s.exporting = true
	return true
}

func (s *Service) endExport() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.exporting = false
}
