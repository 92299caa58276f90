package application

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rupeewave/bankcore/internal/domain/model"
)

func newAuthFixture(t *testing.T) (*AuthService, *memAccountStore, *recordingSink) {
	t.Helper()
	accounts := newMemAccountStore()
	sink := &recordingSink{}
	svc := NewAuthService(accounts, sink, slog.Default())
	return svc, accounts, sink
}

func TestAuthService_VerifyPIN(t *testing.T) {
	svc, accounts, _ := newAuthFixture(t)
	accounts.addAccount("AC1111111111", "4321", 0)

	err := svc.VerifyPIN(context.Background(), "AC1111111111", "4321")
	assert.NoError(t, err)
}

func TestAuthService_VerifyPIN_NotFound(t *testing.T) {
	svc, _, _ := newAuthFixture(t)

	err := svc.VerifyPIN(context.Background(), "AC0000000000", "4321")
	assert.ErrorIs(t, err, model.ErrAccountNotFound)
}

// Three consecutive wrong attempts return WrongPin(2), WrongPin(1), Locked
// in that order, and a correct PIN afterward still returns Locked.
func TestAuthService_LockoutDeterminism(t *testing.T) {
	svc, accounts, sink := newAuthFixture(t)
	accounts.addAccount("AC1111111111", "4321", 0)
	ctx := context.Background()

	err := svc.VerifyPIN(ctx, "AC1111111111", "0000")
	wp, ok := model.IsWrongPIN(err)
	require.True(t, ok)
	assert.Equal(t, 2, wp.Remaining)

	err = svc.VerifyPIN(ctx, "AC1111111111", "0000")
	wp, ok = model.IsWrongPIN(err)
	require.True(t, ok)
	assert.Equal(t, 1, wp.Remaining)

	err = svc.VerifyPIN(ctx, "AC1111111111", "0000")
	assert.ErrorIs(t, err, model.ErrAccountLocked)

	// Lock is terminal: the correct PIN no longer authenticates.
	err = svc.VerifyPIN(ctx, "AC1111111111", "4321")
	assert.ErrorIs(t, err, model.ErrAccountLocked)

	assert.Equal(t,
		[]string{"pin_failed", "pin_failed", "account_locked", "pin_failed"},
		sink.actions(),
	)
}

// A successful verification resets the attempt counter, so the lockout
// threshold only counts consecutive failures.
func TestAuthService_SuccessResetsAttempts(t *testing.T) {
	svc, accounts, _ := newAuthFixture(t)
	accounts.addAccount("AC1111111111", "4321", 0)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		err := svc.VerifyPIN(ctx, "AC1111111111", "0000")
		_, ok := model.IsWrongPIN(err)
		require.True(t, ok)
	}

	require.NoError(t, svc.VerifyPIN(ctx, "AC1111111111", "4321"))

	// The counter starts over: two more failures still leave one try.
	err := svc.VerifyPIN(ctx, "AC1111111111", "0000")
	wp, ok := model.IsWrongPIN(err)
	require.True(t, ok)
	assert.Equal(t, 2, wp.Remaining)
}

func TestAuthService_AuditFailureDoesNotBlockVerify(t *testing.T) {
	accounts := newMemAccountStore()
	svc := NewAuthService(accounts, failingSink{}, slog.Default())
	accounts.addAccount("AC1111111111", "4321", 0)

	err := svc.VerifyPIN(context.Background(), "AC1111111111", "4321")
	assert.NoError(t, err)
}
