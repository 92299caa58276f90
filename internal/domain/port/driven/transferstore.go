package driven

import (
	"context"
	"errors"

	"github.com/rupeewave/bankcore/internal/domain/model"
)

// ErrTransferExists is returned by Execute when a record for the
// idempotency key was committed by a concurrent call first. The engine
// treats it as "already resolved" and re-reads the stored outcome rather
// than surfacing an error to the caller.
var ErrTransferExists = errors.New("transfer already recorded for idempotency key")

// TransferStore defines the driven port for the idempotency journal and
// the atomic transfer commit.
type TransferStore interface {
	// Get retrieves the terminal record for an idempotency key.
	// Returns nil, nil if no record exists.
	Get(ctx context.Context, key string) (*model.TransferRecord, error)

	// InsertIfAbsent inserts a terminal record unless one already exists
	// for the key. Returns false when the key was already resolved; the
	// existing record is left untouched.
	InsertIfAbsent(ctx context.Context, rec model.TransferRecord) (inserted bool, err error)

	// Execute commits a successful transfer as one atomic unit: debit the
	// sender conditionally on sufficient balance, credit the receiver, and
	// persist the success record for the key. All three effects commit
	// together or not at all. It returns the sender's post-debit balance.
	//
	// Errors: model.ErrInsufficientFunds when the sender's balance does not
	// cover the amount, model.ErrAccountNotFound when either account row is
	// missing, ErrTransferExists when the key was resolved concurrently,
	// model.ErrBusy on storage contention.
	Execute(ctx context.Context, rec model.TransferRecord) (senderBalance int64, err error)

	// ListByAccount returns up to limit records where the account is sender
	// or receiver, most recent first.
	ListByAccount(ctx context.Context, accountNo string, limit int) ([]model.TransferRecord, error)
}
