package repository

import (
	"errors"

	"github.com/lib/pq"
)

// ErrDuplicate is returned when a storage-level uniqueness guarantee rejects
// an insert. Callers treat it as an idempotent-skip signal, not a failure.
var ErrDuplicate = errors.New("duplicate row")

const uniqueViolationCode = "23505"

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolationCode
}
