package repository

import (
	"context"
	"fmt"

	"github.com/iliyamo/farm-marketplace/internal/model"
)

// SequenceRepo hands out per-kind id suffixes from the account_sequences
// table.  Next must run inside the transaction that inserts the row: the
// UPDATE holds the sequence row lock until commit, so two registrations of
// the same kind never observe the same value, and a rolled-back insert
// releases its suffix.
type SequenceRepo struct{ db DBTX }

// Next increments and returns the sequence for kind.  The first value is 1.
func (r *SequenceRepo) Next(ctx context.Context, kind model.Kind) (uint64, error) {
	res, err := r.db.ExecContext(ctx,
		"UPDATE account_sequences SET last_value = last_value + 1 WHERE kind = ?", kind.String())
	if err != nil {
		return 0, fmt.Errorf("advance %s sequence: %w", kind, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return 0, fmt.Errorf("advance %s sequence: not seeded", kind)
	}
	var v uint64
	if err := r.db.QueryRowContext(ctx,
		"SELECT last_value FROM account_sequences WHERE kind = ?", kind.String()).Scan(&v); err != nil {
		return 0, fmt.Errorf("read %s sequence: %w", kind, err)
	}
	return v, nil
}
