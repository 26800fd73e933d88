// Package repository holds the MySQL data access for the tenancy core.
// Repositories run raw SQL through database/sql and translate driver
// failures into the sentinel errors below, which handlers map onto HTTP
// status codes.
package repository

import (
	"errors"

	"github.com/go-sql-driver/mysql"
)

// ErrNotFound is returned when a row does not exist or is not visible
// to the caller.  Handlers translate it into a 404 response.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when a write cannot proceed because of
// existing state, such as deleting a role that users still hold.
// Handlers translate it into a 409 response.
var ErrConflict = errors.New("conflict")

const (
	errDupEntry        = 1062
	errRowIsReferenced = 1451
	errNoReferencedRow = 1452
)

func mysqlCode(err error) uint16 {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number
	}
	return 0
}

// isDuplicate reports whether err is a MySQL duplicate key error.
func isDuplicate(err error) bool {
	return mysqlCode(err) == errDupEntry
}

// isForeignKey reports whether err is a MySQL foreign key violation, on
// delete or on insert.
func isForeignKey(err error) bool {
	c := mysqlCode(err)
	return c == errRowIsReferenced || c == errNoReferencedRow
}
