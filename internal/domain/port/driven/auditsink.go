package driven

import "context"

// AuditSink defines the driven port for the audit trail. Recording is
// fire-and-forget from the engine's point of view: callers log failures
// locally and never propagate them as operation failures.
type AuditSink interface {
	Record(ctx context.Context, actor, action, details string) error
}
