package application

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/crypto/bcrypt"

	"github.com/rupeewave/bankcore/internal/domain/model"
	"github.com/rupeewave/bankcore/internal/domain/port/driven"
)

// memAccountStore is an in-memory AccountStore. Its mutex makes every
// method an atomic unit, mirroring the conditional-update guarantees the
// real adapters get from their databases. The paired memTransferStore
// shares the same mutex so transfer execution is atomic with respect to
// account mutations.
type memAccountStore struct {
	mu       sync.Mutex
	accounts map[string]*model.Account
}

var _ driven.AccountStore = (*memAccountStore)(nil)

func newMemAccountStore() *memAccountStore {
	return &memAccountStore{accounts: make(map[string]*model.Account)}
}

// addAccount seeds an account with a bcrypt hash of pin at MinCost.
func (m *memAccountStore) addAccount(accountNo, pin string, balance int64) {
	hash, err := bcrypt.GenerateFromPassword([]byte(pin), bcrypt.MinCost)
	if err != nil {
		panic(err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts[accountNo] = &model.Account{
		AccountNo: accountNo,
		PINHash:   string(hash),
		Balance:   balance,
		Mobile:    "9876543210",
		Email:     "holder@example.com",
	}
}

func (m *memAccountStore) balance(accountNo string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.accounts[accountNo].Balance
}

func (m *memAccountStore) Create(_ context.Context, acct model.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.accounts[acct.AccountNo]; ok {
		return errors.New("account exists")
	}
	cp := acct
	m.accounts[acct.AccountNo] = &cp
	return nil
}

func (m *memAccountStore) Get(_ context.Context, accountNo string) (*model.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	acct, ok := m.accounts[accountNo]
	if !ok {
		return nil, nil
	}
	cp := *acct
	return &cp, nil
}

func (m *memAccountStore) AddBalance(_ context.Context, accountNo string, amount int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	acct, ok := m.accounts[accountNo]
	if !ok {
		return 0, model.ErrAccountNotFound
	}
	acct.Balance += amount
	return acct.Balance, nil
}

func (m *memAccountStore) DebitBalance(_ context.Context, accountNo string, amount int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	acct, ok := m.accounts[accountNo]
	if !ok {
		return 0, model.ErrAccountNotFound
	}
	if acct.Balance < amount {
		return 0, model.ErrInsufficientFunds
	}
	acct.Balance -= amount
	return acct.Balance, nil
}

func (m *memAccountStore) RecordFailedAttempt(_ context.Context, accountNo string) (int, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	acct, ok := m.accounts[accountNo]
	if !ok || acct.Locked {
		return 0, true, nil
	}
	acct.FailedAttempts++
	if acct.FailedAttempts >= model.MaxPINAttempts {
		acct.Locked = true
	}
	return acct.FailedAttempts, acct.Locked, nil
}

func (m *memAccountStore) ResetAttempts(_ context.Context, accountNo string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	acct, ok := m.accounts[accountNo]
	if !ok || acct.Locked {
		return false, nil
	}
	acct.FailedAttempts = 0
	return true, nil
}

func (m *memAccountStore) UpdatePINHash(_ context.Context, accountNo, pinHash string) error {
	return m.update(accountNo, func(a *model.Account) { a.PINHash = pinHash })
}

func (m *memAccountStore) UpdateMobile(_ context.Context, accountNo, mobile string) error {
	return m.update(accountNo, func(a *model.Account) { a.Mobile = mobile })
}

func (m *memAccountStore) UpdateEmail(_ context.Context, accountNo, email string) error {
	return m.update(accountNo, func(a *model.Account) { a.Email = email })
}

func (m *memAccountStore) update(accountNo string, fn func(*model.Account)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	acct, ok := m.accounts[accountNo]
	if !ok {
		return model.ErrAccountNotFound
	}
	fn(acct)
	return nil
}

// memTransferStore is an in-memory TransferStore bound to a
// memAccountStore; Execute mutates balances under the account store's
// mutex so the three transfer effects commit as one unit.
type memTransferStore struct {
	accounts  *memAccountStore
	transfers map[string]model.TransferRecord
}

var _ driven.TransferStore = (*memTransferStore)(nil)

func newMemTransferStore(accounts *memAccountStore) *memTransferStore {
	return &memTransferStore{
		accounts:  accounts,
		transfers: make(map[string]model.TransferRecord),
	}
}

func (m *memTransferStore) Get(_ context.Context, key string) (*model.TransferRecord, error) {
	m.accounts.mu.Lock()
	defer m.accounts.mu.Unlock()
	rec, ok := m.transfers[key]
	if !ok {
		return nil, nil
	}
	cp := rec
	return &cp, nil
}

func (m *memTransferStore) InsertIfAbsent(_ context.Context, rec model.TransferRecord) (bool, error) {
	m.accounts.mu.Lock()
	defer m.accounts.mu.Unlock()
	if _, ok := m.transfers[rec.IdempotencyKey]; ok {
		return false, nil
	}
	m.transfers[rec.IdempotencyKey] = rec
	return true, nil
}

func (m *memTransferStore) Execute(_ context.Context, rec model.TransferRecord) (int64, error) {
	m.accounts.mu.Lock()
	defer m.accounts.mu.Unlock()
	if _, ok := m.transfers[rec.IdempotencyKey]; ok {
		return 0, driven.ErrTransferExists
	}
	sender, ok := m.accounts.accounts[rec.SenderNo]
	if !ok {
		return 0, model.ErrAccountNotFound
	}
	receiver, ok := m.accounts.accounts[rec.ReceiverNo]
	if !ok {
		return 0, model.ErrAccountNotFound
	}
	if sender.Balance < rec.Amount {
		return 0, model.ErrInsufficientFunds
	}
	sender.Balance -= rec.Amount
	receiver.Balance += rec.Amount
	rec.Status = model.TransferSuccess
	rec.SenderBalance = sender.Balance
	m.transfers[rec.IdempotencyKey] = rec
	return sender.Balance, nil
}

func (m *memTransferStore) ListByAccount(_ context.Context, accountNo string, limit int) ([]model.TransferRecord, error) {
	m.accounts.mu.Lock()
	defer m.accounts.mu.Unlock()
	var recs []model.TransferRecord
	for _, rec := range m.transfers {
		if rec.SenderNo == accountNo || rec.ReceiverNo == accountNo {
			recs = append(recs, rec)
		}
		if len(recs) == limit {
			break
		}
	}
	return recs, nil
}

// recordingSink captures audit events for assertions.
type recordingSink struct {
	mu     sync.Mutex
	events []model.AuditEvent
}

func (s *recordingSink) Record(_ context.Context, actor, action, details string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, model.AuditEvent{Actor: actor, Action: action, Details: details})
	return nil
}

func (s *recordingSink) actions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, e.Action)
	}
	return out
}

// failingSink always errors, for verifying that audit failures never fail
// an operation.
type failingSink struct{}

func (failingSink) Record(context.Context, string, string, string) error {
	return errors.New("sink unavailable")
}
