// Package audit records lifecycle transition attempts.
//
// Audit events are append-only compliance records. They are never updated or deleted.
package audit

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"realmsteward.io/steward/internal/domain"
	"realmsteward.io/steward/internal/pkg/logger"
	"realmsteward.io/steward/internal/repository"
)

// Event describes one transition attempt.
type Event struct {
	Code domain.EventCode
	// RealmID is nil when no record exists yet.
	RealmID *int64
	// ActorID is empty for pipeline-triggered events.
	ActorID string
	// Before and After produce the diff. Before is the start-of-operation
	// snapshot; After is the state written or attempted.
	Before *domain.RealmRequest
	After  *domain.RealmRequest
}

// Logger writes audit events to an AuditStore.
type Logger struct {
	store repository.AuditStore
	now   func() time.Time
}

// NewLogger creates a new audit Logger.
func NewLogger(store repository.AuditStore) *Logger {
	return &Logger{store: store, now: time.Now}
}

// Record appends ev. A failure is logged here and returned so success paths
// can decide whether to surface it.
func (l *Logger) Record(ctx context.Context, ev Event) error {
	rec := &domain.AuditEvent{
		RealmID:   ev.RealmID,
		Code:      ev.Code,
		Changes:   domain.Diff(ev.Before, ev.After),
		CreatedAt: l.now().UTC(),
	}
	if ev.ActorID != "" {
		actor := ev.ActorID
		rec.ActorID = &actor
	}

	if err := l.store.Append(ctx, rec); err != nil {
		logger.Error("Failed to write audit event",
			zap.String("event_code", string(ev.Code)),
			zap.Any("realm_id", ev.RealmID),
			zap.String("actor", ev.ActorID),
			zap.Error(err),
		)
		return fmt.Errorf("write audit event: %w", err)
	}
	return nil
}

// RecordBestEffort appends ev on a failure path. Its own failure is logged
// and never masks the original error.
func (l *Logger) RecordBestEffort(ctx context.Context, ev Event) {
	_ = l.Record(ctx, ev)
}

// Trail returns every event recorded for a realm, oldest first.
func (l *Logger) Trail(ctx context.Context, realmID int64) ([]domain.AuditEvent, error) {
	events, err := l.store.ListByRealm(ctx, realmID)
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	return events, nil
}

// RealmID returns a pointer to id for Event.RealmID.
func RealmID(id int64) *int64 {
	return &id
}
