package db

import (
	"errors"
	"strings"

	"github.com/mattn/go-sqlite3"
)

// Sentinel errors returned by the stores.
var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
)

// isUniqueConstraintErr returns true when the error indicates a unique/constraint violation.
func isUniqueConstraintErr(err error) bool {
	if err == nil {
		return false
	}
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.ExtendedCode == sqlite3.ErrConstraintUnique || se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "unique constraint")
}
