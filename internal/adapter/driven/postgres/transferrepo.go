package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/rupeewave/bankcore/internal/domain/model"
	"github.com/rupeewave/bankcore/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.TransferStore = (*TransferRepo)(nil)

// TransferRepo is the PostgreSQL implementation of the TransferStore port.
type TransferRepo struct {
	db *DB
}

// NewTransferRepo creates a new TransferRepo backed by the given DB.
func NewTransferRepo(db *DB) *TransferRepo {
	return &TransferRepo{db: db}
}

// Get retrieves the terminal record for an idempotency key.
// Returns nil, nil if the key has not been resolved.
func (r *TransferRepo) Get(ctx context.Context, key string) (*model.TransferRecord, error) {
	const query = `
		SELECT idempotency_key, sender_no, receiver_no, amount, status, failure_code, sender_balance, created_at
		FROM transfers
		WHERE idempotency_key = $1
	`

	var (
		rec    model.TransferRecord
		status string
		code   string
	)
	err := r.db.Pool.QueryRowContext(ctx, query, key).Scan(
		&rec.IdempotencyKey, &rec.SenderNo, &rec.ReceiverNo, &rec.Amount,
		&status, &code, &rec.SenderBalance, &rec.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get transfer %s: %w", key, mapBusy(err))
	}

	rec.Status = model.TransferStatus(status)
	rec.FailureCode = model.FailureCode(code)
	return &rec, nil
}

// InsertIfAbsent inserts a terminal record unless the key is already
// resolved.
func (r *TransferRepo) InsertIfAbsent(ctx context.Context, rec model.TransferRecord) (bool, error) {
	const query = `
		INSERT INTO transfers (idempotency_key, sender_no, receiver_no, amount, status, failure_code, sender_balance)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (idempotency_key) DO NOTHING
	`

	res, err := r.db.Pool.ExecContext(ctx, query,
		rec.IdempotencyKey, rec.SenderNo, rec.ReceiverNo, rec.Amount,
		string(rec.Status), string(rec.FailureCode), rec.SenderBalance,
	)
	if err != nil {
		return false, fmt.Errorf("insert transfer %s: %w", rec.IdempotencyKey, mapBusy(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert transfer %s: %w", rec.IdempotencyKey, err)
	}
	return n == 1, nil
}

// Execute commits the debit, the credit, and the success record in one
// transaction. Accounts are updated in lexical order so two transfers
// moving funds between the same pair in opposite directions cannot
// deadlock on row locks.
func (r *TransferRepo) Execute(ctx context.Context, rec model.TransferRecord) (int64, error) {
	tx, err := r.db.Pool.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transfer %s: %w", rec.IdempotencyKey, mapBusy(err))
	}
	defer tx.Rollback()

	// Lock both rows up front in deterministic order.
	const lock = `
		SELECT account_no FROM accounts
		WHERE account_no = ANY($1)
		ORDER BY account_no
		FOR UPDATE
	`
	rows, err := tx.QueryContext(ctx, lock, pq.Array([]string{rec.SenderNo, rec.ReceiverNo}))
	if err != nil {
		return 0, fmt.Errorf("lock accounts for transfer %s: %w", rec.IdempotencyKey, mapBusy(err))
	}
	var lockedRows int
	for rows.Next() {
		var no string
		if err := rows.Scan(&no); err != nil {
			rows.Close()
			return 0, fmt.Errorf("lock accounts for transfer %s: %w", rec.IdempotencyKey, err)
		}
		lockedRows++
	}
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("lock accounts for transfer %s: %w", rec.IdempotencyKey, mapBusy(err))
	}
	rows.Close()
	if lockedRows != 2 {
		return 0, model.ErrAccountNotFound
	}

	const debit = `
		UPDATE accounts
		SET balance = balance - $1
		WHERE account_no = $2 AND balance >= $1
		RETURNING balance
	`
	var senderBalance int64
	err = tx.QueryRowContext(ctx, debit, rec.Amount, rec.SenderNo).Scan(&senderBalance)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, model.ErrInsufficientFunds
	}
	if err != nil {
		return 0, fmt.Errorf("debit sender %s: %w", rec.SenderNo, mapBusy(err))
	}

	const credit = `UPDATE accounts SET balance = balance + $1 WHERE account_no = $2`
	if _, err := tx.ExecContext(ctx, credit, rec.Amount, rec.ReceiverNo); err != nil {
		return 0, fmt.Errorf("credit receiver %s: %w", rec.ReceiverNo, mapBusy(err))
	}

	const insert = `
		INSERT INTO transfers (idempotency_key, sender_no, receiver_no, amount, status, failure_code, sender_balance)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err = tx.ExecContext(ctx, insert,
		rec.IdempotencyKey, rec.SenderNo, rec.ReceiverNo, rec.Amount,
		string(model.TransferSuccess), string(model.FailureNone), senderBalance,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, driven.ErrTransferExists
		}
		return 0, fmt.Errorf("record transfer %s: %w", rec.IdempotencyKey, mapBusy(err))
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit transfer %s: %w", rec.IdempotencyKey, mapBusy(err))
	}
	return senderBalance, nil
}

// ListByAccount returns up to limit records where the account is sender or
// receiver, most recent first.
func (r *TransferRepo) ListByAccount(ctx context.Context, accountNo string, limit int) ([]model.TransferRecord, error) {
	const query = `
		SELECT idempotency_key, sender_no, receiver_no, amount, status, failure_code, sender_balance, created_at
		FROM transfers
		WHERE sender_no = $1 OR receiver_no = $1
		ORDER BY created_at DESC, idempotency_key
		LIMIT $2
	`

	rows, err := r.db.Pool.QueryContext(ctx, query, accountNo, limit)
	if err != nil {
		return nil, fmt.Errorf("list transfers for %s: %w", accountNo, mapBusy(err))
	}
	defer rows.Close()

	var recs []model.TransferRecord
	for rows.Next() {
		var (
			rec    model.TransferRecord
			status string
			code   string
		)
		if err := rows.Scan(
			&rec.IdempotencyKey, &rec.SenderNo, &rec.ReceiverNo, &rec.Amount,
			&status, &code, &rec.SenderBalance, &rec.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan transfer: %w", err)
		}
		rec.Status = model.TransferStatus(status)
		rec.FailureCode = model.FailureCode(code)
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transfers for %s: %w", accountNo, err)
	}
	return recs, nil
}
