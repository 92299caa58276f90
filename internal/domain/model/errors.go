package model

import (
	"errors"
	"fmt"
)

// Business error kinds returned by the engine. Validation errors are
// detected before any store access; Busy is retryable and surfaced to the
// caller for external retry policy.
var (
	ErrAccountNotFound   = errors.New("account not found")
	ErrInvalidAmount     = errors.New("amount must be greater than zero")
	ErrInsufficientFunds = errors.New("insufficient balance")
	ErrAccountLocked     = errors.New("account locked, contact bank")
	ErrSameAccount       = errors.New("sender and receiver must differ")
	ErrBusy              = errors.New("storage busy, retry the operation")
)

// WrongPINError reports a failed PIN verification together with the number
// of attempts remaining before lockout.
type WrongPINError struct {
	Remaining int
}

func (e *WrongPINError) Error() string {
	return fmt.Sprintf("wrong PIN, %d tries left", e.Remaining)
}

// IsWrongPIN reports whether err is a WrongPINError and returns it if so.
func IsWrongPIN(err error) (*WrongPINError, bool) {
	var wp *WrongPINError
	if errors.As(err, &wp) {
		return wp, true
	}
	return nil, false
}
