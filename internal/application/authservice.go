package application

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/crypto/bcrypt"

	"github.com/rupeewave/bankcore/internal/domain/model"
	"github.com/rupeewave/bankcore/internal/domain/port/driven"
)

// AuthService verifies account PINs and tracks failed-attempt lockout.
// Per account the state machine is Unlocked(attempts 0..2) -> Locked, with
// Locked terminal: no verification can succeed once the flag is set, and
// this service provides no unlock path.
type AuthService struct {
	accounts driven.AccountStore
	audit    driven.AuditSink
	logger   *slog.Logger
}

// NewAuthService creates an AuthService with the required dependencies.
func NewAuthService(accounts driven.AccountStore, audit driven.AuditSink, logger *slog.Logger) *AuthService {
	return &AuthService{
		accounts: accounts,
		audit:    audit,
		logger:   logger,
	}
}

// VerifyPIN checks the presented PIN against the account's stored bcrypt
// hash. A nil return means authenticated; otherwise one of
// model.ErrAccountNotFound, model.ErrAccountLocked, or
// *model.WrongPINError is returned.
//
// The attempt counter and lock flag are mutated through conditional store
// updates guarded by the lock flag, so two concurrent wrong attempts can
// never both increment past the lock threshold: whichever update lands
// second either observes the lock or produces it.
func (s *AuthService) VerifyPIN(ctx context.Context, accountNo, pin string) error {
	acct, err := s.accounts.Get(ctx, accountNo)
	if err != nil {
		return fmt.Errorf("load account %s: %w", accountNo, err)
	}
	if acct == nil {
		recordAudit(ctx, s.audit, s.logger, "unknown", "pin_failed", fmt.Sprintf("account %s not found", accountNo))
		return model.ErrAccountNotFound
	}
	if acct.Locked {
		recordAudit(ctx, s.audit, s.logger, accountNo, "pin_failed", "account locked")
		return model.ErrAccountLocked
	}

	if bcrypt.CompareHashAndPassword([]byte(acct.PINHash), []byte(pin)) == nil {
		reset, err := s.accounts.ResetAttempts(ctx, accountNo)
		if err != nil {
			return fmt.Errorf("reset attempts for %s: %w", accountNo, err)
		}
		if !reset {
			// Locked by a concurrent verify between our read and the reset.
			recordAudit(ctx, s.audit, s.logger, accountNo, "pin_failed", "account locked")
			return model.ErrAccountLocked
		}
		recordAudit(ctx, s.audit, s.logger, accountNo, "pin_success", "PIN verified")
		return nil
	}

	attempts, locked, err := s.accounts.RecordFailedAttempt(ctx, accountNo)
	if err != nil {
		return fmt.Errorf("record failed attempt for %s: %w", accountNo, err)
	}
	if locked {
		recordAudit(ctx, s.audit, s.logger, accountNo, "account_locked", fmt.Sprintf("%d wrong attempts", model.MaxPINAttempts))
		return model.ErrAccountLocked
	}

	remaining := model.MaxPINAttempts - attempts
	recordAudit(ctx, s.audit, s.logger, accountNo, "pin_failed", fmt.Sprintf("wrong PIN, %d tries left", remaining))
	return &model.WrongPINError{Remaining: remaining}
}
