package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rupeewave/bankcore/internal/domain/model"
	"github.com/rupeewave/bankcore/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.AccountStore = (*AccountRepo)(nil)

// AccountRepo is the PostgreSQL implementation of the AccountStore port.
type AccountRepo struct {
	db *DB
}

// NewAccountRepo creates a new AccountRepo backed by the given DB.
func NewAccountRepo(db *DB) *AccountRepo {
	return &AccountRepo{db: db}
}

// Create inserts a new account record.
func (r *AccountRepo) Create(ctx context.Context, acct model.Account) error {
	const query = `
		INSERT INTO accounts (account_no, holder_name, pin_hash, balance, mobile, email, failed_attempts, is_locked)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.db.Pool.ExecContext(ctx, query,
		acct.AccountNo, acct.HolderName, acct.PINHash, acct.Balance,
		acct.Mobile, acct.Email, acct.FailedAttempts, acct.Locked,
	)
	if err != nil {
		return fmt.Errorf("create account %s: %w", acct.AccountNo, mapBusy(err))
	}
	return nil
}

// Get retrieves a single account by number. Returns nil, nil if the
// account does not exist.
func (r *AccountRepo) Get(ctx context.Context, accountNo string) (*model.Account, error) {
	const query = `
		SELECT account_no, holder_name, pin_hash, balance, mobile, email, failed_attempts, is_locked, created_at
		FROM accounts
		WHERE account_no = $1
	`

	var acct model.Account
	err := r.db.Pool.QueryRowContext(ctx, query, accountNo).Scan(
		&acct.AccountNo, &acct.HolderName, &acct.PINHash, &acct.Balance,
		&acct.Mobile, &acct.Email, &acct.FailedAttempts, &acct.Locked, &acct.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get account %s: %w", accountNo, mapBusy(err))
	}
	return &acct, nil
}

// AddBalance atomically credits the account and returns the new balance.
func (r *AccountRepo) AddBalance(ctx context.Context, accountNo string, amount int64) (int64, error) {
	const query = `
		UPDATE accounts
		SET balance = balance + $1
		WHERE account_no = $2
		RETURNING balance
	`

	var balance int64
	err := r.db.Pool.QueryRowContext(ctx, query, amount, accountNo).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, model.ErrAccountNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("credit account %s: %w", accountNo, mapBusy(err))
	}
	return balance, nil
}

// DebitBalance decrements the balance only if the current balance covers
// the amount, as one indivisible UPDATE.
func (r *AccountRepo) DebitBalance(ctx context.Context, accountNo string, amount int64) (int64, error) {
	const query = `
		UPDATE accounts
		SET balance = balance - $1
		WHERE account_no = $2 AND balance >= $1
		RETURNING balance
	`

	var balance int64
	err := r.db.Pool.QueryRowContext(ctx, query, amount, accountNo).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, r.debitFailure(ctx, accountNo)
	}
	if err != nil {
		return 0, fmt.Errorf("debit account %s: %w", accountNo, mapBusy(err))
	}
	return balance, nil
}

func (r *AccountRepo) debitFailure(ctx context.Context, accountNo string) error {
	acct, err := r.Get(ctx, accountNo)
	if err != nil {
		return err
	}
	if acct == nil {
		return model.ErrAccountNotFound
	}
	return model.ErrInsufficientFunds
}

// RecordFailedAttempt increments the counter and sets the lock flag at the
// threshold in one conditional UPDATE guarded by NOT is_locked.
func (r *AccountRepo) RecordFailedAttempt(ctx context.Context, accountNo string) (int, bool, error) {
	const query = `
		UPDATE accounts
		SET failed_attempts = failed_attempts + 1,
		    is_locked = (failed_attempts + 1 >= $1)
		WHERE account_no = $2 AND NOT is_locked
		RETURNING failed_attempts, is_locked
	`

	var (
		attempts int
		locked   bool
	)
	err := r.db.Pool.QueryRowContext(ctx, query, model.MaxPINAttempts, accountNo).Scan(&attempts, &locked)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, true, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("record failed attempt for %s: %w", accountNo, mapBusy(err))
	}
	return attempts, locked, nil
}

// ResetAttempts zeroes the counter while the account is unlocked.
func (r *AccountRepo) ResetAttempts(ctx context.Context, accountNo string) (bool, error) {
	const query = `
		UPDATE accounts
		SET failed_attempts = 0
		WHERE account_no = $1 AND NOT is_locked
	`

	res, err := r.db.Pool.ExecContext(ctx, query, accountNo)
	if err != nil {
		return false, fmt.Errorf("reset attempts for %s: %w", accountNo, mapBusy(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("reset attempts for %s: %w", accountNo, err)
	}
	return n == 1, nil
}

// UpdatePINHash replaces the stored credential hash.
func (r *AccountRepo) UpdatePINHash(ctx context.Context, accountNo, pinHash string) error {
	return r.updateColumn(ctx, accountNo, "pin_hash", pinHash)
}

// UpdateMobile replaces the account's mobile number.
func (r *AccountRepo) UpdateMobile(ctx context.Context, accountNo, mobile string) error {
	return r.updateColumn(ctx, accountNo, "mobile", mobile)
}

// UpdateEmail replaces the account's email address.
func (r *AccountRepo) UpdateEmail(ctx context.Context, accountNo, email string) error {
	return r.updateColumn(ctx, accountNo, "email", email)
}

func (r *AccountRepo) updateColumn(ctx context.Context, accountNo, column, value string) error {
	// column is one of a fixed set of callers above, never user input.
	query := fmt.Sprintf(`UPDATE accounts SET %s = $1 WHERE account_no = $2`, column)

	res, err := r.db.Pool.ExecContext(ctx, query, value, accountNo)
	if err != nil {
		return fmt.Errorf("update %s for account %s: %w", column, accountNo, mapBusy(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update %s for account %s: %w", column, accountNo, err)
	}
	if n == 0 {
		return model.ErrAccountNotFound
	}
	return nil
}
