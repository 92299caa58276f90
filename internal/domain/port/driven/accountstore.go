package driven

import (
	"context"

	"github.com/rupeewave/bankcore/internal/domain/model"
)

// AccountStore defines the driven port for account persistence. All
// balance- and lockout-affecting methods are single atomic conditional
// updates against the backing store: the read of the current state and the
// write of the new state are indivisible with respect to concurrent calls
// on the same account.
type AccountStore interface {
	// Create inserts a new account record.
	Create(ctx context.Context, acct model.Account) error

	// Get retrieves an account by number. Returns nil, nil if the account
	// does not exist.
	Get(ctx context.Context, accountNo string) (*model.Account, error)

	// AddBalance atomically increments the balance and returns the new
	// balance. Returns model.ErrAccountNotFound if the account does not exist.
	AddBalance(ctx context.Context, accountNo string, amount int64) (int64, error)

	// DebitBalance atomically decrements the balance only if the current
	// balance covers amount, and returns the new balance. Returns
	// model.ErrInsufficientFunds when the condition does not hold and
	// model.ErrAccountNotFound when the account does not exist.
	DebitBalance(ctx context.Context, accountNo string, amount int64) (int64, error)

	// RecordFailedAttempt atomically increments the failed-attempt counter
	// of an unlocked account, setting the lock flag when the counter reaches
	// model.MaxPINAttempts. It returns the post-update counter and lock
	// state. If the account is already locked (including by a concurrent
	// call), it changes nothing and reports locked = true.
	RecordFailedAttempt(ctx context.Context, accountNo string) (attempts int, locked bool, err error)

	// ResetAttempts atomically zeroes the failed-attempt counter of an
	// unlocked account. Returns false when the account was locked (or
	// removed) in the meantime and the reset did not apply.
	ResetAttempts(ctx context.Context, accountNo string) (bool, error)

	// UpdatePINHash replaces the stored PIN credential hash.
	UpdatePINHash(ctx context.Context, accountNo, pinHash string) error

	// UpdateMobile replaces the account's mobile number.
	UpdateMobile(ctx context.Context, accountNo, mobile string) error

	// UpdateEmail replaces the account's email address.
	UpdateEmail(ctx context.Context, accountNo, email string) error
}
