package inv

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrExportInProgress is returned when an export is started while another
	// export on the same Service has not completed.
	ErrExportInProgress = errors.New("export already in progress")

	// ErrSnapshotInvalid is the parent of every verification failure. It is
	// not retryable: the snapshot must be re-exported.
	ErrSnapshotInvalid = errors.New("snapshot invalid")

	ErrMalformedSnapshot = fmt.Errorf("%w: missing metadata or data section", ErrSnapshotInvalid)
	ErrChecksumMismatch  = fmt.Errorf("%w: checksum mismatch", ErrSnapshotInvalid)
	ErrCountMismatch     = fmt.Errorf("%w: document count mismatch", ErrSnapshotInvalid)

	// ErrSourceUnavailable wraps record store fetch failures. Callers may retry.
	ErrSourceUnavailable = errors.New("source unavailable")

	// ErrValidationFailed is matched by *ValidationError.
	ErrValidationFailed = errors.New("validation failed")

	// ErrConfirmationMismatch is returned by CommitArchive when the supplied
	// token does not match the plan.
	ErrConfirmationMismatch = errors.New("confirmation token does not match archive plan")
)

// SnapshotProblem is one failed verification check.
type SnapshotProblem struct {
	Err    error // one of ErrMalformedSnapshot, ErrChecksumMismatch, ErrCountMismatch
	Detail string
}

// VerificationError lists every failed verification check so callers can
// report them together.
type VerificationError struct {
	Problems []SnapshotProblem
}

func (e *VerificationError) Error() string {
	parts := make([]string, len(e.Problems))
	for i, p := range e.Problems {
		parts[i] = p.Err.Error()
		if p.Detail != "" {
			parts[i] += " (" + p.Detail + ")"
		}
	}
	return strings.Join(parts, "; ")
}

func (e *VerificationError) Unwrap() []error {
	errs := make([]error, len(e.Problems))
	for i, p := range e.Problems {
		errs[i] = p.Err
	}
	return errs
}

// Violation names a selected record that may not be archived and why.
type Violation struct {
	ID     string
	Reason string
}

// ValidationError lists every offending record of an archive selection.
type ValidationError struct {
	Violations []Violation
}

func (e *ValidationError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %d record(s) cannot be archived", ErrValidationFailed, len(e.Violations))
	for _, v := range e.Violations {
		fmt.Fprintf(&b, "\n  %s: %s", v.ID, v.Reason)
	}
	return b.String()
}

func (e *ValidationError) Unwrap() error { return ErrValidationFailed }
