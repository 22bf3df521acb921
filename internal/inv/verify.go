package inv

import "fmt"

// Verification is the outcome of a successful integrity check.
type Verification struct {
	Valid              bool
	RecomputedChecksum string
	DocumentCount      int
}

// Verify checks a snapshot's integrity: both sections present, checksum
// recomputed over Data equals the recorded checksum, and the record count
// matches. A missing section short-circuits; checksum and count problems are
// reported together in a *VerificationError.
func Verify(s *Snapshot) (*Verification, error) {
	if s == nil || s.Data == nil || s.Metadata.Checksum == "" {
		return nil, malformed("snapshot has no metadata checksum or no data section")
	}

	recomputed := Checksum(s.Data)
	var problems []SnapshotProblem
	if recomputed != s.Metadata.Checksum {
		problems = append(problems, SnapshotProblem{
			Err:    ErrChecksumMismatch,
			Detail: fmt.Sprintf("recorded %s, recomputed %s", s.Metadata.Checksum, recomputed),
		})
	}
	if len(s.Data) != s.Metadata.DocumentCount {
		problems = append(problems, SnapshotProblem{
			Err:    ErrCountMismatch,
			Detail: fmt.Sprintf("recorded %d, found %d", s.Metadata.DocumentCount, len(s.Data)),
		})
	}
	if len(problems) > 0 {
		return nil, &VerificationError{Problems: problems}
	}

	return &Verification{
		Valid:              true,
		RecomputedChecksum: recomputed,
		DocumentCount:      len(s.Data),
	}, nil
}

// VerifyArtifact decodes raw artifact bytes and verifies the result.
func VerifyArtifact(data []byte) (*Snapshot, *Verification, error) {
	s, err := DecodeSnapshot(data)
	if err != nil {
		return nil, nil, err
	}
	v, err := Verify(s)
	if err != nil {
		return s, nil, err
	}
	return s, v, nil
}
