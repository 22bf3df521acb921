package store

import (
	"context"
	"database/sql"
	"fmt"
)

// Operation is one recorded run of a mutating command.
type Operation struct {
	ID         int64
	Operation  string
	Parameters string
	Status     string
	StartedAt  sql.NullTime
	FinishedAt sql.NullTime
}

// CreateOperation records the start of an operation and returns it with its
// auto-increment ID.
func (s *SQLiteStore) CreateOperation(operation string, parameters string) (*Operation, error) {
	startedAt := s.now().UTC()
	res, err := s.db.ExecContext(context.Background(),
		"INSERT INTO operations (operation, parameters, status, started_at) VALUES (?, ?, 'running', ?)",
		operation, parameters, startedAt)
	if err != nil {
		return nil, fmt.Errorf("creating operation: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("reading operation id: %w", err)
	}
	return &Operation{
		ID:         id,
		Operation:  operation,
		Parameters: parameters,
		Status:     "running",
		StartedAt:  sql.NullTime{Time: startedAt, Valid: true},
	}, nil
}

// FinishOperation marks an operation finished with the given status.
func (s *SQLiteStore) FinishOperation(id int64, status string) error {
	_, err := s.db.ExecContext(context.Background(),
		"UPDATE operations SET status = ?, finished_at = ? WHERE id = ?",
		status, s.now().UTC(), id)
	if err != nil {
		return fmt.Errorf("finishing operation: %w", err)
	}
	return nil
}

// ListOperations returns the most recent operations, newest first.
func (s *SQLiteStore) ListOperations(limit int) ([]*Operation, error) {
	rows, err := s.db.QueryContext(context.Background(), `
		SELECT id, operation, parameters, status, started_at, finished_at
		FROM operations ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing operations: %w", err)
	}
	defer rows.Close()

	var ops []*Operation
	for rows.Next() {
		op := &Operation{}
		if err := rows.Scan(&op.ID, &op.Operation, &op.Parameters, &op.Status, &op.StartedAt, &op.FinishedAt); err != nil {
			return nil, fmt.Errorf("scanning operation: %w", err)
		}
		ops = append(ops, op)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing operations: %w", err)
	}
	return ops, nil
}
