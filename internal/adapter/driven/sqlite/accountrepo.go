package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rupeewave/bankcore/internal/domain/model"
	"github.com/rupeewave/bankcore/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.AccountStore = (*AccountRepo)(nil)

// AccountRepo is the SQLite implementation of the AccountStore port
// interface. Balance and lockout mutations are single conditional UPDATE
// statements so concurrent calls on the same account cannot violate the
// non-negative balance or bounded-attempts invariants.
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
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	locked := 0
	if acct.Locked {
		locked = 1
	}

	_, err := r.db.Writer.ExecContext(ctx, query,
		acct.AccountNo, acct.HolderName, acct.PINHash, acct.Balance,
		acct.Mobile, acct.Email, acct.FailedAttempts, locked,
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
		WHERE account_no = ?
	`

	var (
		acct      model.Account
		locked    int
		createdAt string
	)
	err := r.db.Reader.QueryRowContext(ctx, query, accountNo).Scan(
		&acct.AccountNo, &acct.HolderName, &acct.PINHash, &acct.Balance,
		&acct.Mobile, &acct.Email, &acct.FailedAttempts, &locked, &createdAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get account %s: %w", accountNo, mapBusy(err))
	}

	acct.Locked = locked != 0
	acct.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, fmt.Errorf("parse created_at for account %s: %w", accountNo, err)
	}
	return &acct, nil
}

// AddBalance atomically credits the account and returns the new balance.
func (r *AccountRepo) AddBalance(ctx context.Context, accountNo string, amount int64) (int64, error) {
	const query = `
		UPDATE accounts
		SET balance = balance + ?
		WHERE account_no = ?
		RETURNING balance
	`

	var balance int64
	err := r.db.Writer.QueryRowContext(ctx, query, amount, accountNo).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, model.ErrAccountNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("credit account %s: %w", accountNo, mapBusy(err))
	}
	return balance, nil
}

// DebitBalance decrements the balance only if the current balance covers
// the amount. The read and the write are one indivisible UPDATE, so two
// concurrent withdrawals can never both pass the balance check.
func (r *AccountRepo) DebitBalance(ctx context.Context, accountNo string, amount int64) (int64, error) {
	const query = `
		UPDATE accounts
		SET balance = balance - ?
		WHERE account_no = ? AND balance >= ?
		RETURNING balance
	`

	var balance int64
	err := r.db.Writer.QueryRowContext(ctx, query, amount, accountNo, amount).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, r.debitFailure(ctx, accountNo)
	}
	if err != nil {
		return 0, fmt.Errorf("debit account %s: %w", accountNo, mapBusy(err))
	}
	return balance, nil
}

// debitFailure distinguishes a missing account from an insufficient
// balance after a conditional debit affected no rows.
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

// RecordFailedAttempt increments the failed-attempt counter and sets the
// lock flag at the threshold, all in one conditional UPDATE guarded by
// is_locked = 0. When the update affects no rows the account was already
// locked (or removed) and locked = true is reported without mutation.
func (r *AccountRepo) RecordFailedAttempt(ctx context.Context, accountNo string) (int, bool, error) {
	const query = `
		UPDATE accounts
		SET failed_attempts = failed_attempts + 1,
		    is_locked = CASE WHEN failed_attempts + 1 >= ? THEN 1 ELSE 0 END
		WHERE account_no = ? AND is_locked = 0
		RETURNING failed_attempts, is_locked
	`

	var (
		attempts int
		locked   int
	)
	err := r.db.Writer.QueryRowContext(ctx, query, model.MaxPINAttempts, accountNo).Scan(&attempts, &locked)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, true, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("record failed attempt for %s: %w", accountNo, mapBusy(err))
	}
	return attempts, locked != 0, nil
}

// ResetAttempts zeroes the failed-attempt counter while the account is
// unlocked. Returns false when the account was locked in the meantime.
func (r *AccountRepo) ResetAttempts(ctx context.Context, accountNo string) (bool, error) {
	const query = `
		UPDATE accounts
		SET failed_attempts = 0
		WHERE account_no = ? AND is_locked = 0
	`

	res, err := r.db.Writer.ExecContext(ctx, query, accountNo)
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
	query := fmt.Sprintf(`UPDATE accounts SET %s = ? WHERE account_no = ?`, column)

	res, err := r.db.Writer.ExecContext(ctx, query, value, accountNo)
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

// parseTime parses SQLite timestamp strings across the formats the driver
// and CURRENT_TIMESTAMP produce.
func parseTime(s string) (time.Time, error) {
	formats := []string{
		"2006-01-02T15:04:05Z",
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05.000",
		time.RFC3339,
		time.RFC3339Nano,
	}

	for _, format := range formats {
		if t, err := time.Parse(format, s); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("unrecognized time format %q", s)
}
