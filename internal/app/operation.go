package app

// Operation statuses recorded in the history table.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Operation tracks a CLI command that may mutate the store or the vault.
// It lives in memory with ID=0 until a mutating command persists it.
type Operation struct {
	ID         int64
	Name       string
	Parameters string
	Status     string
}

// NewOperation creates an in-memory operation that succeeds unless failed.
func NewOperation(name string) *Operation {
	return &Operation{Name: name, Status: StatusSuccess}
}

// Persisted returns true if this operation has been saved to the store.
func (op *Operation) Persisted() bool {
	return op.ID != 0
}

// Fail marks the operation as failed.
func (op *Operation) Fail() {
	op.Status = StatusError
}
