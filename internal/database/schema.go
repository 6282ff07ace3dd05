package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// profileColumns is shared by the farmers and customers tables.  Ids are
// stored in their prefixed form ("F7") so every foreign key and log line
// carries the namespace.
const profileColumns = `
	id             VARCHAR(24)  NOT NULL PRIMARY KEY,
	email          VARCHAR(254) NOT NULL UNIQUE,
	name           VARCHAR(255) NOT NULL,
	password_hash  VARCHAR(255) NOT NULL,
	phone          VARCHAR(32)  NOT NULL DEFAULT '',
	street_address VARCHAR(255) NOT NULL DEFAULT '',
	city           VARCHAR(100) NOT NULL DEFAULT '',
	district       VARCHAR(100) NOT NULL DEFAULT '',
	state          VARCHAR(100) NOT NULL DEFAULT '',
	country        VARCHAR(100) NOT NULL DEFAULT 'India',
	pincode        VARCHAR(16)  NOT NULL DEFAULT '',
	created_at     DATETIME     NOT NULL`

const multiColumns = `
	id            VARCHAR(24)  NOT NULL PRIMARY KEY,
	email         VARCHAR(254) NOT NULL UNIQUE,
	password_hash VARCHAR(255) NOT NULL,
	farmer_id     VARCHAR(24)  NOT NULL UNIQUE,
	customer_id   VARCHAR(24)  NOT NULL UNIQUE,
	created_at    DATETIME     NOT NULL,
	FOREIGN KEY (farmer_id) REFERENCES farmers(id),
	FOREIGN KEY (customer_id) REFERENCES customers(id)`

// statements returns the idempotent DDL for the dialect.
func statements(d Dialect) []string {
	suffix := ""
	seed := "INSERT OR IGNORE INTO account_sequences (kind, last_value) VALUES ('F', 0), ('C', 0), ('M', 0)"
	if d == DialectMySQL {
		suffix = " ENGINE=InnoDB DEFAULT CHARSET=utf8mb4"
		seed = strings.Replace(seed, "INSERT OR IGNORE", "INSERT IGNORE", 1)
	}
	return []string{
		"CREATE TABLE IF NOT EXISTS account_sequences (\n\tkind CHAR(1) NOT NULL PRIMARY KEY,\n\tlast_value BIGINT NOT NULL DEFAULT 0\n)" + suffix,
		seed,
		"CREATE TABLE IF NOT EXISTS farmers (" + profileColumns + "\n)" + suffix,
		"CREATE TABLE IF NOT EXISTS customers (" + profileColumns + "\n)" + suffix,
		"CREATE TABLE IF NOT EXISTS multi_accounts (" + multiColumns + "\n)" + suffix,
	}
}

// Migrate creates the identity tables and seeds the id sequences.  It is
// safe to run repeatedly.
func Migrate(ctx context.Context, db *sql.DB, d Dialect) error {
	for i, stmt := range statements(d) {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate step %d: %w", i+1, err)
		}
	}
	return nil
}
