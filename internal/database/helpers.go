package database

import (
	"database/sql"
	"errors"
)

// Sentinel errors shared by the repositories. Callers check with
// errors.Is().
var (
	// ErrNotFound is returned when a lookup matches no row.
	ErrNotFound = errors.New("record not found")
	// ErrConflict is returned when a guarded update lost a concurrent
	// write race. The caller re-reads and retries the reconciliation once.
	ErrConflict = errors.New("concurrent update conflict")
)

// execRequireRows validates that an ExecContext result affected at least
// one row. Returns err if non-nil, or notFoundErr if rowsAffected is 0.
func execRequireRows(result sql.Result, err, notFoundErr error) error {
	if err != nil {
		return err
	}
	n, affectedErr := result.RowsAffected()
	if affectedErr != nil {
		return affectedErr
	}
	if n == 0 {
		return notFoundErr
	}
	return nil
}
