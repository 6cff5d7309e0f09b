package repository

import (
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
)

var (
	ErrUserNotFound      = errors.New("user not found")
	ErrDuplicateEmail    = errors.New("email already exists")
	ErrDuplicateUsername = errors.New("username already exists")
	ErrTodoNotFound      = errors.New("todo not found")
)

const (
	mysqlDuplicateEntry = 1062
	pqUniqueViolation   = "23505"
)

// isDuplicateEntryError checks for a unique index violation (MySQL 1062, PostgreSQL 23505).
func isDuplicateEntryError(err error) bool {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == mysqlDuplicateEntry
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == pqUniqueViolation
	}
	return false
}

// duplicateUserError names which unique column a violation hit. Index names
// carry the column, see schema.go.
func duplicateUserError(err error) error {
	var detail string
	var myErr *mysql.MySQLError
	var pqErr *pq.Error
	switch {
	case errors.As(err, &myErr):
		detail = myErr.Message
	case errors.As(err, &pqErr):
		detail = pqErr.Constraint
	}
	if strings.Contains(detail, "username") {
		return ErrDuplicateUsername
	}
	return ErrDuplicateEmail
}
