package model

import "time"

// AuditEvent records the outcome of an operation for the audit trail.
// Events are write-only from the engine's perspective; recording is
// best-effort and never rolls back a committed ledger mutation.
type AuditEvent struct {
	ID        int64
	Actor     string
	Action    string
	Details   string
	CreatedAt time.Time
}
