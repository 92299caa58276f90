package postgres

import (
	"errors"

	"github.com/lib/pq"

	"github.com/rupeewave/bankcore/internal/domain/model"
)

// isBusy reports whether err is a serialization, deadlock, or lock-timeout
// failure the caller may safely retry.
func isBusy(err error) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	switch pqErr.Code {
	case "40001", // serialization_failure
		"40P01", // deadlock_detected
		"55P03": // lock_not_available
		return true
	}
	return false
}

// isUniqueViolation reports whether err is a unique constraint failure.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	return pqErr.Code == "23505"
}

// mapBusy converts retryable contention failures to model.ErrBusy and
// leaves other errors untouched.
func mapBusy(err error) error {
	if isBusy(err) {
		return model.ErrBusy
	}
	return err
}
