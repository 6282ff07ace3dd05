// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as
// services to distinguish between different failure scenarios without
// inspecting driver errors. They are never shown to clients directly;
// the service layer translates them into coded errors.
package repository

import (
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
)

// ErrNotFound is returned when no row matches the lookup, including
// lookups with an id whose kind does not belong to the queried table.
var ErrNotFound = errors.New("not found")

// ErrEmailExists is returned when an insert violates the per-table
// UNIQUE(email) constraint.
var ErrEmailExists = errors.New("email already exists")

// ErrAlreadyLinked is returned when a farmer or customer row is already a
// member of another multi account.
var ErrAlreadyLinked = errors.New("account already linked")

// mysqlDuplicateEntry is ER_DUP_ENTRY.
const mysqlDuplicateEntry = 1062

// isDuplicate reports whether err is a unique-constraint violation from
// either supported driver.
func isDuplicate(err error) bool {
	if err == nil {
		return false
	}
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number == mysqlDuplicateEntry
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// duplicateOn reports whether a duplicate-key error names the given column.
// MySQL reports the key ("multi_accounts.email"), SQLite the column list.
func duplicateOn(err error, column string) bool {
	return isDuplicate(err) && strings.Contains(err.Error(), column)
}
