package pgutil

import (
	"errors"

	"github.com/uptrace/bun/driver/pgdriver"
)

// SQLSTATE codes that indicate lock contention rather than bad data.
const (
	SQLStateDeadlock         = "40P01"
	SQLStateLockNotAvailable = "55P03"
)

// sqlStateError matches pgdriver.Error and anything else exposing protocol error fields.
type sqlStateError interface {
	error
	Field(k byte) string
}

var _ sqlStateError = pgdriver.Error{}

// SQLState returns the SQLSTATE code of the first server error in err's chain,
// or "" when there is none.
func SQLState(err error) string {
	var pgErr sqlStateError
	if !errors.As(err, &pgErr) {
		return ""
	}
	return pgErr.Field('C')
}

// IsLockContention reports whether err is a deadlock or lock timeout that a
// fresh transaction may not hit again.
func IsLockContention(err error) bool {
	switch SQLState(err) {
	case SQLStateDeadlock, SQLStateLockNotAvailable:
		return true
	}
	return false
}
