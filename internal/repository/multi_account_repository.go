package repository

import (
	"context"
	"fmt"

	"github.com/iliyamo/farm-marketplace/internal/model"
)

// MultiAccountRepo provides access to the multi_accounts table.  Each row
// links one farmer and one customer row that share an email; the
// UNIQUE(farmer_id) and UNIQUE(customer_id) constraints keep a member from
// belonging to two multi accounts.
type MultiAccountRepo struct {
	db   DBTX
	lock string // locking-read suffix, empty where the driver has none
}

const multiSelect = `SELECT id, email, password_hash, farmer_id, customer_id, created_at FROM multi_accounts`

func scanMulti(row interface{ Scan(...any) error }) (model.MultiAccount, error) {
	var (
		m                        model.MultiAccount
		rawID, rawFarm, rawCusto string
	)
	if err := row.Scan(&rawID, &m.Email, &m.PasswordHash, &rawFarm, &rawCusto, dbTime{&m.CreatedAt}); err != nil {
		return model.MultiAccount{}, notFound(err)
	}
	var err error
	if m.ID, err = scanAccountID(rawID, model.KindMulti); err != nil {
		return model.MultiAccount{}, err
	}
	if m.FarmerID, err = scanAccountID(rawFarm, model.KindFarmer); err != nil {
		return model.MultiAccount{}, err
	}
	if m.CustomerID, err = scanAccountID(rawCusto, model.KindCustomer); err != nil {
		return model.MultiAccount{}, err
	}
	return m, nil
}

// Insert stores m under the id it already carries.  A second multi account
// for the email is ErrEmailExists; reuse of a member is ErrAlreadyLinked.
func (r *MultiAccountRepo) Insert(ctx context.Context, m *model.MultiAccount) error {
	if m.ID.Kind != model.KindMulti || m.ID.IsZero() {
		return fmt.Errorf("insert multi account: id %q has wrong kind", m.ID)
	}
	m.Email = NormalizeEmail(m.Email)
	if m.CreatedAt.IsZero() {
		m.CreatedAt = nowUTC()
	}
	_, err := r.db.ExecContext(ctx, `INSERT INTO multi_accounts
		(id, email, password_hash, farmer_id, customer_id, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		m.ID.String(), m.Email, m.PasswordHash, m.FarmerID.String(), m.CustomerID.String(), m.CreatedAt)
	if err != nil {
		switch {
		case duplicateOn(err, "email"):
			return ErrEmailExists
		case isDuplicate(err):
			return ErrAlreadyLinked
		}
		return fmt.Errorf("insert multi account: %w", err)
	}
	return nil
}

// GetByID fetches a multi account by its M id.  Ids of other kinds are
// ErrNotFound without touching the database.
func (r *MultiAccountRepo) GetByID(ctx context.Context, id model.AccountID) (model.MultiAccount, error) {
	if id.Kind != model.KindMulti || id.IsZero() {
		return model.MultiAccount{}, ErrNotFound
	}
	return scanMulti(r.db.QueryRowContext(ctx, multiSelect+" WHERE id = ? LIMIT 1", id.String()))
}

// GetByEmail fetches the multi account for a normalised email.
func (r *MultiAccountRepo) GetByEmail(ctx context.Context, email string) (model.MultiAccount, error) {
	return scanMulti(r.db.QueryRowContext(ctx, multiSelect+" WHERE email = ? LIMIT 1", NormalizeEmail(email)))
}

// GetByEmailForUpdate is GetByEmail as a locking read.  Inside a MySQL
// REPEATABLE READ transaction it returns the latest committed row rather
// than the transaction snapshot, so a row inserted by a concurrent linker
// after the snapshot was taken is visible.
func (r *MultiAccountRepo) GetByEmailForUpdate(ctx context.Context, email string) (model.MultiAccount, error) {
	return scanMulti(r.db.QueryRowContext(ctx, multiSelect+" WHERE email = ? LIMIT 1"+r.lock, NormalizeEmail(email)))
}

// GetByMember fetches the multi account that links the given farmer or
// customer id.
func (r *MultiAccountRepo) GetByMember(ctx context.Context, id model.AccountID) (model.MultiAccount, error) {
	var col string
	switch id.Kind {
	case model.KindFarmer:
		col = "farmer_id"
	case model.KindCustomer:
		col = "customer_id"
	default:
		return model.MultiAccount{}, ErrNotFound
	}
	return scanMulti(r.db.QueryRowContext(ctx, multiSelect+" WHERE "+col+" = ? LIMIT 1", id.String()))
}

// ExistsByEmail reports whether a multi account exists for the email.
func (r *MultiAccountRepo) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM multi_accounts WHERE email = ?", NormalizeEmail(email)).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("count multi accounts by email: %w", err)
	}
	return n > 0, nil
}

// UnlinkedEmails lists emails that have both a farmer and a customer row
// but no multi account, oldest farmer first.  limit <= 0 means no limit.
func (r *MultiAccountRepo) UnlinkedEmails(ctx context.Context, limit int) ([]string, error) {
	q := `SELECT f.email FROM farmers f
		JOIN customers c ON c.email = f.email
		LEFT JOIN multi_accounts m ON m.email = f.email
		WHERE m.id IS NULL
		ORDER BY f.created_at, f.email`
	args := []any{}
	if limit > 0 {
		q += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list unlinked emails: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var e string
		if err := rows.Scan(&e); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
