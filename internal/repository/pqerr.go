package repository

import (
	"errors"

	"github.com/lib/pq"
)

const (
	codeUniqueViolation      = "23505"
	codeExclusionViolation   = "23P01"
	codeCheckViolation       = "23514"
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
)

func pqCode(err error) (code, constraint string) {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code), pqErr.Constraint
	}
	return "", ""
}

// IsRetryable reports whether the transaction that produced err can simply be
// run again.
func IsRetryable(err error) bool {
	code, _ := pqCode(err)
	return code == codeSerializationFailure || code == codeDeadlockDetected
}

func isConflict(err error) bool {
	code, _ := pqCode(err)
	return code == codeUniqueViolation || code == codeExclusionViolation
}
