package sqlrepo

import (
	"context"
	"fmt"
	"time"

	"github.com/aussiebroadwan/budg/internal/auth/domain"
	"github.com/jmoiron/sqlx"
)

type auditRow struct {
	ID          string    `db:"id"`
	PrincipalID string    `db:"principal_id"`
	Action      string    `db:"action"`
	Detail      string    `db:"detail"`
	CreatedAt   time.Time `db:"created_at"`
}

type auditRepo struct {
	db sqlx.ExtContext
}

func (r *auditRepo) AppendAuditEvent(ctx context.Context, e domain.AuditEvent) error {
	q := r.db.Rebind(`INSERT INTO audit_events (id, principal_id, action, detail, created_at)
		VALUES (?, ?, ?, ?, ?)`)
	if _, err := r.db.ExecContext(ctx, q, e.ID, e.PrincipalID, string(e.Action), e.Detail, e.CreatedAt.UTC()); err != nil {
		return fmt.Errorf("sqlrepo: insert audit event: %w", err)
	}
	return nil
}

func (r *auditRepo) ListAuditEvents(ctx context.Context, principalID string, limit int) ([]domain.AuditEvent, error) {
	if limit <= 0 {
		limit = 50
	}

	var rows []auditRow
	q := r.db.Rebind(`SELECT id, principal_id, action, detail, created_at FROM audit_events
		WHERE principal_id = ? ORDER BY created_at DESC, id DESC LIMIT ?`)
	if err := sqlx.SelectContext(ctx, r.db, &rows, q, principalID, limit); err != nil {
		return nil, err
	}

	events := make([]domain.AuditEvent, 0, len(rows))
	for _, row := range rows {
		events = append(events, domain.AuditEvent{
			ID:          row.ID,
			PrincipalID: row.PrincipalID,
			Action:      domain.AuditAction(row.Action),
			Detail:      row.Detail,
			CreatedAt:   row.CreatedAt.UTC(),
		})
	}
	return events, nil
}

func (r *auditRepo) PruneAuditEvents(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM audit_events WHERE created_at < ?`), cutoff.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
