package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/iliyamo/farm-marketplace/internal/model"
)

// DBTX is the subset of *sql.DB and *sql.Tx the repositories need, so the
// same repo works inside and outside a transaction.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store groups the identity repositories over one connection pool or one
// transaction.  A Store returned by InTx is bound to that transaction and
// must not be used after the callback returns.
type Store struct {
	root *sql.DB
	inTx bool

	Farmers   *ProfileRepo
	Customers *ProfileRepo
	Multi     *MultiAccountRepo
	Sequences *SequenceRepo
}

// NewStore returns a Store bound to the given database.
func NewStore(db *sql.DB) *Store { return newStore(db, db, false) }

func newStore(root *sql.DB, q DBTX, inTx bool) *Store {
	// SQLite serialises writers per database, so only MySQL needs an
	// explicit locking read to see rows committed after its snapshot.
	lock := ""
	if _, ok := root.Driver().(*mysql.MySQLDriver); ok {
		lock = " FOR UPDATE"
	}
	return &Store{
		root:      root,
		inTx:      inTx,
		Farmers:   &ProfileRepo{db: q, kind: model.KindFarmer, table: "farmers"},
		Customers: &ProfileRepo{db: q, kind: model.KindCustomer, table: "customers"},
		Multi:     &MultiAccountRepo{db: q, lock: lock},
		Sequences: &SequenceRepo{db: q},
	}
}

// Profiles returns the repo for a single-role kind, or nil for Multi.
func (s *Store) Profiles(kind model.Kind) *ProfileRepo {
	switch kind {
	case model.KindFarmer:
		return s.Farmers
	case model.KindCustomer:
		return s.Customers
	}
	return nil
}

// InTx runs fn inside a transaction and commits when fn returns nil.  Any
// error rolls the whole unit back.  Calls on a Store that is already
// transaction-bound join the outer transaction.
func (s *Store) InTx(ctx context.Context, fn func(tx *Store) error) error {
	if s.inTx {
		return fn(s)
	}
	tx, err := s.root.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(newStore(s.root, tx, true)); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// CreateProfile allocates the next id for kind and inserts p under it in
// one transaction.  p.ID and p.CreatedAt are populated on success.
func (s *Store) CreateProfile(ctx context.Context, kind model.Kind, p *model.Profile) error {
	repo := s.Profiles(kind)
	if repo == nil {
		return fmt.Errorf("create profile: kind %s has no profile table", kind)
	}
	return s.InTx(ctx, func(tx *Store) error {
		n, err := tx.Sequences.Next(ctx, kind)
		if err != nil {
			return err
		}
		p.ID = model.NewAccountID(kind, n)
		return tx.Profiles(kind).Insert(ctx, p)
	})
}

// CreateMultiAccount allocates an M id and inserts m in one transaction.
func (s *Store) CreateMultiAccount(ctx context.Context, m *model.MultiAccount) error {
	return s.InTx(ctx, func(tx *Store) error {
		n, err := tx.Sequences.Next(ctx, model.KindMulti)
		if err != nil {
			return err
		}
		m.ID = model.NewAccountID(model.KindMulti, n)
		return tx.Multi.Insert(ctx, m)
	})
}

// NormalizeEmail lower-cases and trims an email for storage and lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func nowUTC() time.Time { return time.Now().UTC().Truncate(time.Second) }

// dbTime scans DATETIME columns from either driver: MySQL (parseTime=true)
// yields time.Time, SQLite may yield text depending on how it was written.
type dbTime struct{ t *time.Time }

var timeLayouts = []string{
	"2006-01-02 15:04:05.999999999-07:00",
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
}

func (d dbTime) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*d.t = time.Time{}
		return nil
	case time.Time:
		*d.t = v.UTC()
		return nil
	case []byte:
		return d.parse(string(v))
	case string:
		return d.parse(v)
	}
	return fmt.Errorf("dbTime: unsupported type %T", src)
}

func (d dbTime) parse(s string) error {
	// time.Time.String() output carries a monotonic suffix and zone name.
	if i := strings.Index(s, " m="); i >= 0 {
		s = s[:i]
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			*d.t = t.UTC()
			return nil
		}
	}
	if t, err := time.Parse("2006-01-02 15:04:05.999999999 -0700 MST", s); err == nil {
		*d.t = t.UTC()
		return nil
	}
	return fmt.Errorf("dbTime: cannot parse %q", s)
}

// scanAccountID parses a stored id column.
func scanAccountID(raw string, want model.Kind) (model.AccountID, error) {
	id, err := model.ParseAccountID(raw)
	if err != nil {
		return model.AccountID{}, fmt.Errorf("stored id %q: %w", raw, err)
	}
	if id.Kind != want {
		return model.AccountID{}, fmt.Errorf("stored id %q: expected kind %s", raw, want)
	}
	return id, nil
}

// notFound maps sql.ErrNoRows to ErrNotFound.
func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
