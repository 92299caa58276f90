package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/rupeewave/bankcore/internal/domain/model"
	"github.com/rupeewave/bankcore/internal/domain/port/driven"
)

// errMissingKey rejects transfer calls without an idempotency key before
// any store access.
var errMissingKey = errors.New("idempotency key must not be empty")

// LedgerService performs deposit, withdraw, and transfer as atomic
// operations against the account store. Every operation verifies the
// caller's PIN first; any non-authenticated outcome short-circuits with no
// balance mutation. Transfers are idempotent: the outcome of each
// idempotency key is resolved at most once and repeats return the stored
// outcome unchanged.
type LedgerService struct {
	accounts  driven.AccountStore
	transfers driven.TransferStore
	auth      *AuthService
	audit     driven.AuditSink
	logger    *slog.Logger
}

// NewLedgerService creates a LedgerService with the required dependencies.
func NewLedgerService(
	accounts driven.AccountStore,
	transfers driven.TransferStore,
	auth *AuthService,
	audit driven.AuditSink,
	logger *slog.Logger,
) *LedgerService {
	return &LedgerService{
		accounts:  accounts,
		transfers: transfers,
		auth:      auth,
		audit:     audit,
		logger:    logger,
	}
}

// Deposit verifies the PIN and atomically credits the account.
// Returns the new balance.
func (s *LedgerService) Deposit(ctx context.Context, accountNo, pin string, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, model.ErrInvalidAmount
	}
	if err := s.auth.VerifyPIN(ctx, accountNo, pin); err != nil {
		return 0, err
	}

	balance, err := s.accounts.AddBalance(ctx, accountNo, amount)
	if err != nil {
		recordAudit(ctx, s.audit, s.logger, accountNo, "deposit_failed", err.Error())
		return 0, err
	}

	recordAudit(ctx, s.audit, s.logger, accountNo, "deposit_success", fmt.Sprintf("deposited %d", amount))
	return balance, nil
}

// Withdraw verifies the PIN and debits the account through a single
// conditional update: the balance is decremented only if it covers the
// amount, so two concurrent withdrawals can never overdraw. Returns the
// new balance.
func (s *LedgerService) Withdraw(ctx context.Context, accountNo, pin string, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, model.ErrInvalidAmount
	}
	if err := s.auth.VerifyPIN(ctx, accountNo, pin); err != nil {
		return 0, err
	}

	balance, err := s.accounts.DebitBalance(ctx, accountNo, amount)
	if err != nil {
		recordAudit(ctx, s.audit, s.logger, accountNo, "withdraw_failed", err.Error())
		return 0, err
	}

	recordAudit(ctx, s.audit, s.logger, accountNo, "withdraw_success", fmt.Sprintf("withdrew %d", amount))
	return balance, nil
}

// Transfer moves amount from sender to receiver exactly once per
// idempotency key. A key that already has a terminal record makes the call
// a pure read of the stored outcome. Otherwise the sender's PIN is
// verified, the request is validated (validation failures are recorded as
// terminal failed records so repeats stay idempotent), and the debit,
// credit, and success record are committed as one storage transaction.
// Returns the sender's post-debit balance.
//
// model.ErrBusy is never recorded as a terminal outcome: retrying the same
// key is always safe.
func (s *LedgerService) Transfer(ctx context.Context, sender, receiver, pin string, amount int64, key string) (int64, error) {
	if key == "" {
		return 0, errMissingKey
	}

	rec, err := s.transfers.Get(ctx, key)
	if err != nil {
		return 0, fmt.Errorf("look up transfer %s: %w", key, err)
	}
	if rec != nil {
		return s.resolved(*rec)
	}

	if err := s.auth.VerifyPIN(ctx, sender, pin); err != nil {
		return 0, err
	}

	if amount <= 0 {
		return s.resolveFailed(ctx, key, sender, receiver, amount, model.ErrInvalidAmount)
	}
	if sender == receiver {
		return s.resolveFailed(ctx, key, sender, receiver, amount, model.ErrSameAccount)
	}
	recv, err := s.accounts.Get(ctx, receiver)
	if err != nil {
		return 0, fmt.Errorf("load receiver %s: %w", receiver, err)
	}
	if recv == nil {
		return s.resolveFailed(ctx, key, sender, receiver, amount, model.ErrAccountNotFound)
	}

	balance, err := s.transfers.Execute(ctx, model.TransferRecord{
		IdempotencyKey: key,
		SenderNo:       sender,
		ReceiverNo:     receiver,
		Amount:         amount,
		Status:         model.TransferSuccess,
	})
	switch {
	case err == nil:
		recordAudit(ctx, s.audit, s.logger, sender, "transfer_success", fmt.Sprintf("sent %d to %s", amount, receiver))
		return balance, nil
	case errors.Is(err, driven.ErrTransferExists):
		// A concurrent call resolved this key first; return its outcome.
		existing, getErr := s.transfers.Get(ctx, key)
		if getErr != nil {
			return 0, fmt.Errorf("re-read transfer %s: %w", key, getErr)
		}
		if existing == nil {
			return 0, fmt.Errorf("transfer %s reported resolved but has no record", key)
		}
		return s.resolved(*existing)
	case errors.Is(err, model.ErrInsufficientFunds), errors.Is(err, model.ErrAccountNotFound):
		return s.resolveFailed(ctx, key, sender, receiver, amount, err)
	default:
		// Busy and unexpected storage failures stay non-terminal.
		return 0, fmt.Errorf("execute transfer %s: %w", key, err)
	}
}

// resolved returns the stored outcome of an already-resolved transfer
// without touching balances.
func (s *LedgerService) resolved(rec model.TransferRecord) (int64, error) {
	if rec.Status == model.TransferSuccess {
		return rec.SenderBalance, nil
	}
	return 0, rec.FailureError()
}

// resolveFailed records a terminal failed outcome for the key and returns
// the business error. If a record already exists for the key, the stored
// outcome wins and is returned instead.
func (s *LedgerService) resolveFailed(ctx context.Context, key, sender, receiver string, amount int64, cause error) (int64, error) {
	inserted, err := s.transfers.InsertIfAbsent(ctx, model.TransferRecord{
		IdempotencyKey: key,
		SenderNo:       sender,
		ReceiverNo:     receiver,
		Amount:         amount,
		Status:         model.TransferFailed,
		FailureCode:    model.FailureCodeFor(cause),
	})
	if err != nil {
		return 0, fmt.Errorf("record failed transfer %s: %w", key, err)
	}
	if !inserted {
		existing, getErr := s.transfers.Get(ctx, key)
		if getErr != nil {
			return 0, fmt.Errorf("re-read transfer %s: %w", key, getErr)
		}
		if existing != nil {
			return s.resolved(*existing)
		}
	}

	recordAudit(ctx, s.audit, s.logger, sender, "transfer_failed", cause.Error())
	return 0, cause
}
