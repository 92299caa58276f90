package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rupeewave/bankcore/internal/domain/model"
	"github.com/rupeewave/bankcore/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.TransferStore = (*TransferRepo)(nil)

// TransferRepo is the SQLite implementation of the TransferStore port: the
// idempotency journal plus the atomic transfer commit. The transfers
// primary key on idempotency_key is what makes resolution exactly-once.
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
		WHERE idempotency_key = ?
	`

	rec, err := scanTransfer(r.db.Reader.QueryRowContext(ctx, query, key))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get transfer %s: %w", key, mapBusy(err))
	}
	return rec, nil
}

// InsertIfAbsent inserts a terminal record unless the key is already
// resolved. The existing record is never modified.
func (r *TransferRepo) InsertIfAbsent(ctx context.Context, rec model.TransferRecord) (bool, error) {
	const query = `
		INSERT OR IGNORE INTO transfers (idempotency_key, sender_no, receiver_no, amount, status, failure_code, sender_balance)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	res, err := r.db.Writer.ExecContext(ctx, query,
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
// transaction on the single-connection writer. Either all three effects
// become visible together or none do.
func (r *TransferRepo) Execute(ctx context.Context, rec model.TransferRecord) (int64, error) {
	tx, err := r.db.Writer.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transfer %s: %w", rec.IdempotencyKey, mapBusy(err))
	}
	defer tx.Rollback()

	const debit = `
		UPDATE accounts
		SET balance = balance - ?
		WHERE account_no = ? AND balance >= ?
		RETURNING balance
	`
	var senderBalance int64
	err = tx.QueryRowContext(ctx, debit, rec.Amount, rec.SenderNo, rec.Amount).Scan(&senderBalance)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, model.ErrInsufficientFunds
	}
	if err != nil {
		return 0, fmt.Errorf("debit sender %s: %w", rec.SenderNo, mapBusy(err))
	}

	const credit = `UPDATE accounts SET balance = balance + ? WHERE account_no = ?`
	res, err := tx.ExecContext(ctx, credit, rec.Amount, rec.ReceiverNo)
	if err != nil {
		return 0, fmt.Errorf("credit receiver %s: %w", rec.ReceiverNo, mapBusy(err))
	}
	if n, err := res.RowsAffected(); err != nil {
		return 0, fmt.Errorf("credit receiver %s: %w", rec.ReceiverNo, err)
	} else if n == 0 {
		return 0, model.ErrAccountNotFound
	}

	const insert = `
		INSERT INTO transfers (idempotency_key, sender_no, receiver_no, amount, status, failure_code, sender_balance)
		VALUES (?, ?, ?, ?, ?, ?, ?)
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
		WHERE sender_no = ? OR receiver_no = ?
		ORDER BY created_at DESC, idempotency_key
		LIMIT ?
	`

	rows, err := r.db.Reader.QueryContext(ctx, query, accountNo, accountNo, limit)
	if err != nil {
		return nil, fmt.Errorf("list transfers for %s: %w", accountNo, mapBusy(err))
	}
	defer rows.Close()

	var recs []model.TransferRecord
	for rows.Next() {
		rec, err := scanTransfer(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transfer: %w", err)
		}
		recs = append(recs, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transfers for %s: %w", accountNo, err)
	}
	return recs, nil
}

// rowScanner abstracts *sql.Row and *sql.Rows for shared scanning.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransfer(row rowScanner) (*model.TransferRecord, error) {
	var (
		rec       model.TransferRecord
		status    string
		code      string
		createdAt string
	)
	err := row.Scan(
		&rec.IdempotencyKey, &rec.SenderNo, &rec.ReceiverNo, &rec.Amount,
		&status, &code, &rec.SenderBalance, &createdAt,
	)
	if err != nil {
		return nil, err
	}

	rec.Status = model.TransferStatus(status)
	rec.FailureCode = model.FailureCode(code)
	rec.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, fmt.Errorf("parse created_at for transfer %s: %w", rec.IdempotencyKey, err)
	}
	return &rec, nil
}
