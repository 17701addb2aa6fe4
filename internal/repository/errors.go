// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as
// services and handlers to distinguish between failure scenarios.
package repository

import (
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
)

// ErrForbidden is returned when the caller attempts an operation
// on a resource they do not own. Handlers should translate this
// into an HTTP 403 response.
var ErrForbidden = errors.New("forbidden")

// ErrConflict is returned when an update cannot be performed because of
// conflicting state. Handlers should translate this into an HTTP 409.
var ErrConflict = errors.New("conflict")

var (
	ErrEmailExists    = errors.New("email already exists")
	ErrUsernameExists = errors.New("username already exists")
)

// ErrInsufficientFunds is returned by wallet debits that would take the
// balance below zero.
var ErrInsufficientFunds = errors.New("insufficient funds")

// duplicateKey reports whether err is a MySQL 1062 duplicate entry error
// and, if so, which unique key was violated.
func duplicateKey(err error) (string, bool) {
	var me *mysql.MySQLError
	if !errors.As(err, &me) || me.Number != 1062 {
		return "", false
	}
	// Message format: Duplicate entry 'x' for key 'accounts.uq_accounts_email'
	msg := me.Message
	if i := strings.LastIndex(msg, "for key '"); i >= 0 {
		return strings.TrimSuffix(msg[i+len("for key '"):], "'"), true
	}
	return "", true
}
