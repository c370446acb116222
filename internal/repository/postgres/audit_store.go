package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"realmsteward.io/steward/internal/domain"
	"realmsteward.io/steward/internal/repository"
)

var _ repository.AuditStore = (*AuditStore)(nil)

// AuditStore appends to the audit_events table. The table rejects updates
// and deletes at the database level.
type AuditStore struct {
	pool *pgxpool.Pool
}

// NewAuditStore creates an AuditStore on pool.
func NewAuditStore(pool *pgxpool.Pool) *AuditStore {
	return &AuditStore{pool: pool}
}

// Append inserts ev and sets its ID.
func (s *AuditStore) Append(ctx context.Context, ev *domain.AuditEvent) error {
	changes := ev.Changes
	if changes == nil {
		changes = []domain.FieldChange{}
	}
	payload, err := json.Marshal(changes)
	if err != nil {
		return fmt.Errorf("encode audit changes: %w", err)
	}

	err = s.pool.QueryRow(ctx,
		`INSERT INTO audit_events (realm_id, event_code, actor_id, changes, created_at)
		 VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		ev.RealmID, string(ev.Code), ev.ActorID, payload, ev.CreatedAt,
	).Scan(&ev.ID)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

// ListByRealm returns the realm's events oldest first.
func (s *AuditStore) ListByRealm(ctx context.Context, realmID int64) ([]domain.AuditEvent, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, realm_id, event_code, actor_id, changes, created_at
		 FROM audit_events WHERE realm_id = $1 ORDER BY id`,
		realmID,
	)
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.AuditEvent, error) {
		var (
			ev      domain.AuditEvent
			code    string
			payload []byte
		)
		if err := row.Scan(&ev.ID, &ev.RealmID, &code, &ev.ActorID, &payload, &ev.CreatedAt); err != nil {
			return ev, err
		}
		ev.Code = domain.EventCode(code)
		if err := json.Unmarshal(payload, &ev.Changes); err != nil {
			return ev, fmt.Errorf("decode audit changes: %w", err)
		}
		return ev, nil
	})
}
