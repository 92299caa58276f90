package application

import (
	"context"
	"log/slog"

	"github.com/rupeewave/bankcore/internal/domain/port/driven"
)

// recordAudit writes an audit event best-effort. Sink failures are logged
// and discarded; a committed ledger mutation is never reported as failed
// because its audit record could not be written.
func recordAudit(ctx context.Context, sink driven.AuditSink, logger *slog.Logger, actor, action, details string) {
	if sink == nil {
		return
	}
	if err := sink.Record(ctx, actor, action, details); err != nil {
		logger.Warn("audit record failed",
			"actor", actor,
			"action", action,
			"error", err,
		)
	}
}
