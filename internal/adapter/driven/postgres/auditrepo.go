package postgres

import (
	"context"
	"fmt"

	"github.com/rupeewave/bankcore/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.AuditSink = (*AuditRepo)(nil)

// AuditRepo is the PostgreSQL implementation of the AuditSink port.
type AuditRepo struct {
	db *DB
}

// NewAuditRepo creates a new AuditRepo backed by the given DB.
func NewAuditRepo(db *DB) *AuditRepo {
	return &AuditRepo{db: db}
}

// Record appends an audit event.
func (r *AuditRepo) Record(ctx context.Context, actor, action, details string) error {
	const query = `INSERT INTO audit_events (actor, action, details) VALUES ($1, $2, $3)`

	_, err := r.db.Pool.ExecContext(ctx, query, actor, action, details)
	if err != nil {
		return fmt.Errorf("record audit event %s/%s: %w", actor, action, mapBusy(err))
	}
	return nil
}
