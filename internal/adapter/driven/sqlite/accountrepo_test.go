package sqlite

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rupeewave/bankcore/internal/domain/model"
)

func seedAccount(t *testing.T, repo *AccountRepo, accountNo string, balance int64) {
	t.Helper()
	err := repo.Create(context.Background(), model.Account{
		AccountNo:  accountNo,
		HolderName: "Test Holder",
		PINHash:    "$2a$10$abcdefghijklmnopqrstuv",
		Balance:    balance,
		Mobile:     "9876543210",
		Email:      "holder@example.com",
	})
	require.NoError(t, err)
}

func TestAccountRepo_CreateAndGet(t *testing.T) {
	db := setupTestDB(t)
	repo := NewAccountRepo(db)
	ctx := context.Background()

	seedAccount(t, repo, "AC1111111111", 500)

	acct, err := repo.Get(ctx, "AC1111111111")
	require.NoError(t, err)
	require.NotNil(t, acct)
	assert.Equal(t, "Test Holder", acct.HolderName)
	assert.Equal(t, int64(500), acct.Balance)
	assert.Equal(t, 0, acct.FailedAttempts)
	assert.False(t, acct.Locked)
	assert.False(t, acct.CreatedAt.IsZero())
}

func TestAccountRepo_GetMissing(t *testing.T) {
	db := setupTestDB(t)
	repo := NewAccountRepo(db)

	acct, err := repo.Get(context.Background(), "AC0000000000")
	require.NoError(t, err)
	assert.Nil(t, acct)
}

func TestAccountRepo_AddBalance(t *testing.T) {
	db := setupTestDB(t)
	repo := NewAccountRepo(db)
	ctx := context.Background()

	seedAccount(t, repo, "AC1111111111", 100)

	balance, err := repo.AddBalance(ctx, "AC1111111111", 50)
	require.NoError(t, err)
	assert.Equal(t, int64(150), balance)
}

func TestAccountRepo_AddBalanceMissing(t *testing.T) {
	db := setupTestDB(t)
	repo := NewAccountRepo(db)

	_, err := repo.AddBalance(context.Background(), "AC0000000000", 50)
	assert.ErrorIs(t, err, model.ErrAccountNotFound)
}

func TestAccountRepo_DebitBalance(t *testing.T) {
	db := setupTestDB(t)
	repo := NewAccountRepo(db)
	ctx := context.Background()

	seedAccount(t, repo, "AC1111111111", 100)

	balance, err := repo.DebitBalance(ctx, "AC1111111111", 60)
	require.NoError(t, err)
	assert.Equal(t, int64(40), balance)
}

func TestAccountRepo_DebitBalanceInsufficient(t *testing.T) {
	db := setupTestDB(t)
	repo := NewAccountRepo(db)
	ctx := context.Background()

	seedAccount(t, repo, "AC1111111111", 100)

	_, err := repo.DebitBalance(ctx, "AC1111111111", 150)
	assert.ErrorIs(t, err, model.ErrInsufficientFunds)

	acct, err := repo.Get(ctx, "AC1111111111")
	require.NoError(t, err)
	assert.Equal(t, int64(100), acct.Balance, "failed debit must not change the balance")
}

func TestAccountRepo_DebitBalanceMissing(t *testing.T) {
	db := setupTestDB(t)
	repo := NewAccountRepo(db)

	_, err := repo.DebitBalance(context.Background(), "AC0000000000", 10)
	assert.ErrorIs(t, err, model.ErrAccountNotFound)
}

// Concurrent conditional debits must never observe a negative balance:
// with balance 100 and twenty 10-unit withdrawals racing, exactly ten
// succeed and the final balance is zero.
func TestAccountRepo_ConcurrentDebits(t *testing.T) {
	db := setupTestDB(t)
	repo := NewAccountRepo(db)
	ctx := context.Background()

	seedAccount(t, repo, "AC1111111111", 100)

	const workers = 20
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			balance, err := repo.DebitBalance(ctx, "AC1111111111", 10)
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
				assert.GreaterOrEqual(t, balance, int64(0))
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, succeeded)

	acct, err := repo.Get(ctx, "AC1111111111")
	require.NoError(t, err)
	assert.Equal(t, int64(0), acct.Balance)
}

func TestAccountRepo_RecordFailedAttemptLocksAtThreshold(t *testing.T) {
	db := setupTestDB(t)
	repo := NewAccountRepo(db)
	ctx := context.Background()

	seedAccount(t, repo, "AC1111111111", 0)

	attempts, locked, err := repo.RecordFailedAttempt(ctx, "AC1111111111")
	require.NoError(t, err)
	assert.Equal(t, 1, attempts)
	assert.False(t, locked)

	attempts, locked, err = repo.RecordFailedAttempt(ctx, "AC1111111111")
	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
	assert.False(t, locked)

	attempts, locked, err = repo.RecordFailedAttempt(ctx, "AC1111111111")
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
	assert.True(t, locked)

	// A further attempt on the locked account changes nothing.
	_, locked, err = repo.RecordFailedAttempt(ctx, "AC1111111111")
	require.NoError(t, err)
	assert.True(t, locked)

	acct, err := repo.Get(ctx, "AC1111111111")
	require.NoError(t, err)
	assert.Equal(t, 3, acct.FailedAttempts)
	assert.True(t, acct.Locked)
}

// Concurrent wrong attempts must lock exactly at the threshold: no
// interleaving produces an unlocked account with attempts >= 3.
func TestAccountRepo_ConcurrentFailedAttempts(t *testing.T) {
	db := setupTestDB(t)
	repo := NewAccountRepo(db)
	ctx := context.Background()

	seedAccount(t, repo, "AC1111111111", 0)

	const workers = 10
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := repo.RecordFailedAttempt(ctx, "AC1111111111")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	acct, err := repo.Get(ctx, "AC1111111111")
	require.NoError(t, err)
	assert.True(t, acct.Locked)
	assert.Equal(t, model.MaxPINAttempts, acct.FailedAttempts)
}

func TestAccountRepo_ResetAttempts(t *testing.T) {
	db := setupTestDB(t)
	repo := NewAccountRepo(db)
	ctx := context.Background()

	seedAccount(t, repo, "AC1111111111", 0)

	_, _, err := repo.RecordFailedAttempt(ctx, "AC1111111111")
	require.NoError(t, err)

	reset, err := repo.ResetAttempts(ctx, "AC1111111111")
	require.NoError(t, err)
	assert.True(t, reset)

	acct, err := repo.Get(ctx, "AC1111111111")
	require.NoError(t, err)
	assert.Equal(t, 0, acct.FailedAttempts)
}

func TestAccountRepo_ResetAttemptsLocked(t *testing.T) {
	db := setupTestDB(t)
	repo := NewAccountRepo(db)
	ctx := context.Background()

	seedAccount(t, repo, "AC1111111111", 0)
	for i := 0; i < model.MaxPINAttempts; i++ {
		_, _, err := repo.RecordFailedAttempt(ctx, "AC1111111111")
		require.NoError(t, err)
	}

	reset, err := repo.ResetAttempts(ctx, "AC1111111111")
	require.NoError(t, err)
	assert.False(t, reset, "reset must not apply to a locked account")
}

func TestAccountRepo_UpdateColumns(t *testing.T) {
	db := setupTestDB(t)
	repo := NewAccountRepo(db)
	ctx := context.Background()

	seedAccount(t, repo, "AC1111111111", 0)

	require.NoError(t, repo.UpdatePINHash(ctx, "AC1111111111", "$2a$10$newhash"))
	require.NoError(t, repo.UpdateMobile(ctx, "AC1111111111", "9123456789"))
	require.NoError(t, repo.UpdateEmail(ctx, "AC1111111111", "new@example.com"))

	acct, err := repo.Get(ctx, "AC1111111111")
	require.NoError(t, err)
	assert.Equal(t, "$2a$10$newhash", acct.PINHash)
	assert.Equal(t, "9123456789", acct.Mobile)
	assert.Equal(t, "new@example.com", acct.Email)

	err = repo.UpdateMobile(ctx, "AC0000000000", "9123456789")
	assert.ErrorIs(t, err, model.ErrAccountNotFound)
}
