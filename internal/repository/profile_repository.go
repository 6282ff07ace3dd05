package repository

import (
	"context"
	"fmt"

	"github.com/iliyamo/farm-marketplace/internal/model"
)

// ProfileRepo reads and writes one of the two single-role tables
// (farmers or customers).  Both share a column layout, so a single repo
// type serves either depending on kind.
type ProfileRepo struct {
	db    DBTX
	kind  model.Kind
	table string
}

// Kind reports which table the repo is bound to.
func (r *ProfileRepo) Kind() model.Kind { return r.kind }

const profileSelect = `SELECT id, email, name, password_hash, phone,
	street_address, city, district, state, country, pincode, created_at FROM `

func scanProfile(row interface{ Scan(...any) error }, kind model.Kind) (model.Profile, error) {
	var (
		p   model.Profile
		raw string
	)
	err := row.Scan(&raw, &p.Email, &p.Name, &p.PasswordHash, &p.Phone,
		&p.Address.StreetAddress, &p.Address.City, &p.Address.District,
		&p.Address.State, &p.Address.Country, &p.Address.Pincode,
		dbTime{&p.CreatedAt})
	if err != nil {
		return model.Profile{}, notFound(err)
	}
	if p.ID, err = scanAccountID(raw, kind); err != nil {
		return model.Profile{}, err
	}
	return p, nil
}

// Insert stores p under the id it already carries.  Use Store.CreateProfile
// to allocate the id in the same transaction.  The email is normalised and
// an empty country defaults to model.DefaultCountry.
func (r *ProfileRepo) Insert(ctx context.Context, p *model.Profile) error {
	if p.ID.Kind != r.kind || p.ID.IsZero() {
		return fmt.Errorf("insert into %s: id %q has wrong kind", r.table, p.ID)
	}
	p.Email = NormalizeEmail(p.Email)
	if p.Address.Country == "" {
		p.Address.Country = model.DefaultCountry
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = nowUTC()
	}
	_, err := r.db.ExecContext(ctx, "INSERT INTO "+r.table+` (id, email, name, password_hash, phone,
		street_address, city, district, state, country, pincode, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID.String(), p.Email, p.Name, p.PasswordHash, p.Phone,
		p.Address.StreetAddress, p.Address.City, p.Address.District,
		p.Address.State, p.Address.Country, p.Address.Pincode, p.CreatedAt)
	if err != nil {
		if duplicateOn(err, "email") {
			return ErrEmailExists
		}
		return fmt.Errorf("insert into %s: %w", r.table, err)
	}
	return nil
}

// GetByID fetches a row by id.  An id of another kind is ErrNotFound.
func (r *ProfileRepo) GetByID(ctx context.Context, id model.AccountID) (model.Profile, error) {
	if id.Kind != r.kind || id.IsZero() {
		return model.Profile{}, ErrNotFound
	}
	row := r.db.QueryRowContext(ctx, profileSelect+r.table+" WHERE id = ? LIMIT 1", id.String())
	return scanProfile(row, r.kind)
}

// GetByEmail fetches a row by normalised email.
func (r *ProfileRepo) GetByEmail(ctx context.Context, email string) (model.Profile, error) {
	row := r.db.QueryRowContext(ctx, profileSelect+r.table+" WHERE email = ? LIMIT 1", NormalizeEmail(email))
	return scanProfile(row, r.kind)
}

// ExistsByEmail reports whether a row with the email exists.
func (r *ProfileRepo) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM "+r.table+" WHERE email = ?", NormalizeEmail(email)).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("count %s by email: %w", r.table, err)
	}
	return n > 0, nil
}

// UpdateAddress overwrites the postal address of a row.  An empty country
// defaults to model.DefaultCountry.
func (r *ProfileRepo) UpdateAddress(ctx context.Context, id model.AccountID, a model.Address) error {
	if id.Kind != r.kind || id.IsZero() {
		return ErrNotFound
	}
	if a.Country == "" {
		a.Country = model.DefaultCountry
	}
	res, err := r.db.ExecContext(ctx, "UPDATE "+r.table+` SET street_address = ?, city = ?,
		district = ?, state = ?, country = ?, pincode = ? WHERE id = ?`,
		a.StreetAddress, a.City, a.District, a.State, a.Country, a.Pincode, id.String())
	if err != nil {
		return fmt.Errorf("update %s address: %w", r.table, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// Districts lists the distinct non-empty districts stored in the table.
func (r *ProfileRepo) Districts(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT DISTINCT district FROM "+r.table+" WHERE district <> '' ORDER BY district")
	if err != nil {
		return nil, fmt.Errorf("list %s districts: %w", r.table, err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
