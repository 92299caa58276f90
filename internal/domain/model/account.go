package model

import "time"

// MaxPINAttempts is the number of consecutive failed PIN verifications
// allowed before an account is locked.
const MaxPINAttempts = 3

// Account is a customer account record. Balance is held in minor currency
// units (paise) as a non-negative integer; PINHash is a bcrypt hash of the
// 4-digit PIN. FailedAttempts and Locked belong to the lockout state
// machine and are mutated only through the account store's conditional
// updates.
type Account struct {
	AccountNo      string
	HolderName     string
	PINHash        string
	Balance        int64
	Mobile         string
	Email          string
	FailedAttempts int
	Locked         bool
	CreatedAt      time.Time
}
