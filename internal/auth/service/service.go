// Package service implements the identity core: credentials, tokens, MFA,
// OAuth linking, password reset and request admission.
package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/aussiebroadwan/budg/internal/auth/domain"
	"github.com/aussiebroadwan/budg/internal/auth/metrics"
	"github.com/aussiebroadwan/budg/internal/auth/store"
	"github.com/aussiebroadwan/budg/pkg/idx"
	"github.com/aussiebroadwan/budg/pkg/slogx"
)

// Clock supplies the current time. The zero value uses time.Now.
type Clock func() time.Time

// Now returns the current UTC time at the precision the stores keep.
func (c Clock) Now() time.Time {
	t := time.Now()
	if c != nil {
		t = c()
	}
	return t.UTC().Truncate(time.Microsecond)
}

// outcome is the result label recorded for an operation.
func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	if k := domain.KindOf(err); k != "" {
		return string(k)
	}
	return "error"
}

func observe(event string, err error) {
	metrics.ObserveEvent(event, outcome(err))
}

// appendAudit writes an audit event through s, which is usually the
// transaction carrying the mutation being recorded.
func appendAudit(ctx context.Context, s store.Store, principalID string, action domain.AuditAction, detail string, at time.Time) error {
	return s.Audit().AppendAuditEvent(ctx, domain.AuditEvent{
		ID:          idx.NewAt(at).String(),
		PrincipalID: principalID,
		Action:      action,
		Detail:      detail,
		CreatedAt:   at,
	})
}

// auditBestEffort records events that are not tied to a mutation. A failure
// is logged and otherwise ignored.
func auditBestEffort(ctx context.Context, s store.Store, principalID string, action domain.AuditAction, detail string, at time.Time) {
	if err := appendAudit(ctx, s, principalID, action, detail, at); err != nil {
		slogx.FromContext(ctx).Warn("audit append failed",
			slog.String("action", string(action)),
			slog.String("principal_id", principalID),
			slog.Any("error", err))
	}
}
