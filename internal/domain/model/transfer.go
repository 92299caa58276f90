package model

import "time"

// TransferStatus is the terminal status of a resolved transfer.
type TransferStatus string

const (
	TransferSuccess TransferStatus = "success"
	TransferFailed  TransferStatus = "failed"
)

// FailureCode identifies why a transfer resolved as failed. It is persisted
// with the record so that repeated calls for the same idempotency key
// reconstruct the identical outcome.
type FailureCode string

const (
	FailureNone              FailureCode = ""
	FailureInvalidAmount     FailureCode = "invalid_amount"
	FailureSameAccount       FailureCode = "same_account"
	FailureAccountNotFound   FailureCode = "account_not_found"
	FailureInsufficientFunds FailureCode = "insufficient_funds"
)

// TransferRecord is the durable, immutable outcome of a transfer, keyed by
// the caller-supplied idempotency key. It is created exactly once per key,
// at the moment the transfer is first resolved, and is the single source of
// truth for "has this transfer already happened". SenderBalance holds the
// sender's balance at resolution time for successful transfers.
type TransferRecord struct {
	IdempotencyKey string
	SenderNo       string
	ReceiverNo     string
	Amount         int64
	Status         TransferStatus
	FailureCode    FailureCode
	SenderBalance  int64
	CreatedAt      time.Time
}

// FailureError maps the record's failure code back to the business error it
// was resolved with. Returns nil for successful records.
func (r TransferRecord) FailureError() error {
	switch r.FailureCode {
	case FailureInvalidAmount:
		return ErrInvalidAmount
	case FailureSameAccount:
		return ErrSameAccount
	case FailureAccountNotFound:
		return ErrAccountNotFound
	case FailureInsufficientFunds:
		return ErrInsufficientFunds
	default:
		return nil
	}
}

// FailureCodeFor returns the persistable failure code for a terminal
// business error, or FailureNone for errors that must not be recorded
// (retryable or authentication outcomes).
func FailureCodeFor(err error) FailureCode {
	switch err {
	case ErrInvalidAmount:
		return FailureInvalidAmount
	case ErrSameAccount:
		return FailureSameAccount
	case ErrAccountNotFound:
		return FailureAccountNotFound
	case ErrInsufficientFunds:
		return FailureInsufficientFunds
	default:
		return FailureNone
	}
}
