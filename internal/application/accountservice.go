package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/rupeewave/bankcore/internal/domain/model"
	"github.com/rupeewave/bankcore/internal/domain/port/driven"
)

// Provisioning and profile validation errors.
var (
	ErrInvalidPIN     = errors.New("PIN must be 4 digits")
	ErrPINMismatch    = errors.New("PINs do not match")
	ErrInvalidMobile  = errors.New("mobile number must be 10 digits")
	ErrInvalidEmail   = errors.New("invalid email address")
	ErrMobileMismatch = errors.New("current mobile number does not match")
	ErrEmailMismatch  = errors.New("current email does not match")
)

// AccountService handles account provisioning and PIN-verified profile
// operations: change PIN, update contact details, balance enquiry, and
// transfer history. Balance-moving operations live in LedgerService.
type AccountService struct {
	accounts  driven.AccountStore
	transfers driven.TransferStore
	auth      *AuthService
	audit     driven.AuditSink
	logger    *slog.Logger
}

// NewAccountService creates an AccountService with the required dependencies.
func NewAccountService(
	accounts driven.AccountStore,
	transfers driven.TransferStore,
	auth *AuthService,
	audit driven.AuditSink,
	logger *slog.Logger,
) *AccountService {
	return &AccountService{
		accounts:  accounts,
		transfers: transfers,
		auth:      auth,
		audit:     audit,
		logger:    logger,
	}
}

// Create provisions a new account with a zero balance, an unlocked PIN
// state, and a generated account number. The PIN is stored as a bcrypt
// hash; the plaintext never leaves this call.
func (s *AccountService) Create(ctx context.Context, holder, pin, confirmPIN, mobile, email string) (string, error) {
	if !isNumeric(pin) || len(pin) != 4 {
		return "", ErrInvalidPIN
	}
	if pin != confirmPIN {
		return "", ErrPINMismatch
	}
	if !isNumeric(mobile) || len(mobile) != 10 {
		return "", ErrInvalidMobile
	}
	if !strings.Contains(email, "@") {
		return "", ErrInvalidEmail
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(pin), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash PIN: %w", err)
	}

	accountNo := newAccountNo()
	if err := s.accounts.Create(ctx, model.Account{
		AccountNo:  accountNo,
		HolderName: holder,
		PINHash:    string(hash),
		Mobile:     mobile,
		Email:      email,
	}); err != nil {
		return "", fmt.Errorf("create account: %w", err)
	}

	recordAudit(ctx, s.audit, s.logger, accountNo, "create_account", "account created")
	return accountNo, nil
}

// ChangePIN verifies the current PIN and replaces the stored credential
// hash with one for the new PIN.
func (s *AccountService) ChangePIN(ctx context.Context, accountNo, pin, newPIN, confirmNewPIN string) error {
	if !isNumeric(newPIN) || len(newPIN) != 4 {
		return ErrInvalidPIN
	}
	if newPIN != confirmNewPIN {
		return ErrPINMismatch
	}
	if err := s.auth.VerifyPIN(ctx, accountNo, pin); err != nil {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPIN), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash PIN: %w", err)
	}
	if err := s.accounts.UpdatePINHash(ctx, accountNo, string(hash)); err != nil {
		return fmt.Errorf("update PIN hash: %w", err)
	}

	recordAudit(ctx, s.audit, s.logger, accountNo, "change_pin_success", "PIN changed")
	return nil
}

// UpdateMobile verifies the PIN, checks the presented current mobile number
// against the stored one, and replaces it.
func (s *AccountService) UpdateMobile(ctx context.Context, accountNo, pin, oldMobile, newMobile string) error {
	if !isNumeric(newMobile) || len(newMobile) != 10 {
		return ErrInvalidMobile
	}
	if err := s.auth.VerifyPIN(ctx, accountNo, pin); err != nil {
		return err
	}

	acct, err := s.accounts.Get(ctx, accountNo)
	if err != nil {
		return fmt.Errorf("load account %s: %w", accountNo, err)
	}
	if acct == nil {
		return model.ErrAccountNotFound
	}
	if acct.Mobile != oldMobile {
		return ErrMobileMismatch
	}

	if err := s.accounts.UpdateMobile(ctx, accountNo, newMobile); err != nil {
		return fmt.Errorf("update mobile: %w", err)
	}
	recordAudit(ctx, s.audit, s.logger, accountNo, "update_mobile_success", "mobile number updated")
	return nil
}

// UpdateEmail verifies the PIN, checks the presented current email against
// the stored one, and replaces it.
func (s *AccountService) UpdateEmail(ctx context.Context, accountNo, pin, oldEmail, newEmail string) error {
	if !strings.Contains(newEmail, "@") {
		return ErrInvalidEmail
	}
	if err := s.auth.VerifyPIN(ctx, accountNo, pin); err != nil {
		return err
	}

	acct, err := s.accounts.Get(ctx, accountNo)
	if err != nil {
		return fmt.Errorf("load account %s: %w", accountNo, err)
	}
	if acct == nil {
		return model.ErrAccountNotFound
	}
	if acct.Email != oldEmail {
		return ErrEmailMismatch
	}

	if err := s.accounts.UpdateEmail(ctx, accountNo, newEmail); err != nil {
		return fmt.Errorf("update email: %w", err)
	}
	recordAudit(ctx, s.audit, s.logger, accountNo, "update_email_success", "email updated")
	return nil
}

// Balance verifies the PIN and returns the current balance.
func (s *AccountService) Balance(ctx context.Context, accountNo, pin string) (int64, error) {
	if err := s.auth.VerifyPIN(ctx, accountNo, pin); err != nil {
		return 0, err
	}
	acct, err := s.accounts.Get(ctx, accountNo)
	if err != nil {
		return 0, fmt.Errorf("load account %s: %w", accountNo, err)
	}
	if acct == nil {
		return 0, model.ErrAccountNotFound
	}

	recordAudit(ctx, s.audit, s.logger, accountNo, "enquiry_success", "balance enquiry")
	return acct.Balance, nil
}

// History verifies the PIN and returns the account's transfer records,
// most recent first, capped at limit (default 50).
func (s *AccountService) History(ctx context.Context, accountNo, pin string, limit int) ([]model.TransferRecord, error) {
	if err := s.auth.VerifyPIN(ctx, accountNo, pin); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	recs, err := s.transfers.ListByAccount(ctx, accountNo, limit)
	if err != nil {
		return nil, fmt.Errorf("list transfers for %s: %w", accountNo, err)
	}
	return recs, nil
}

// newAccountNo generates an opaque account number: "AC" plus the first ten
// hex characters of a random UUID.
func newAccountNo() string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "AC" + raw[:10]
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
