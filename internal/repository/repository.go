// Package repository defines the storage contracts for realm requests and
// audit events. Implementations live in the postgres and memory subpackages.
package repository

import (
	"context"
	"errors"

	"realmsteward.io/steward/internal/domain"
)

var (
	// ErrNotFound is returned when no record has the requested id.
	ErrNotFound = errors.New("record not found")
	// ErrPreconditionFailed is returned when a conditional update loses to a
	// concurrent writer or the expected status no longer holds.
	ErrPreconditionFailed = errors.New("update precondition failed")
	// ErrDuplicateRealm is returned when an active record already uses the realm name.
	ErrDuplicateRealm = errors.New("realm name already in use")
)

// RealmFilter selects realm requests. The zero value selects every active record.
type RealmFilter struct {
	IncludeArchived bool
	// ContactIdirUserID restricts to records where the id is the product
	// owner or a technical contact (case-insensitive).
	ContactIdirUserID string
	Statuses          []domain.Status
}

// Precondition guards a conditional update.
type Precondition struct {
	// Version must equal the stored version.
	Version int64
	// Status, when set, must equal the stored status.
	Status *domain.Status
}

// Expect builds the precondition for a record read at the start of an operation.
func Expect(r *domain.RealmRequest) Precondition {
	return Precondition{Version: r.Version}
}

// WithStatus adds an expected-status predicate.
func (p Precondition) WithStatus(s domain.Status) Precondition {
	p.Status = &s
	return p
}

// RealmStore persists realm requests.
type RealmStore interface {
	FindByID(ctx context.Context, id int64) (*domain.RealmRequest, error)
	FindMany(ctx context.Context, filter RealmFilter) ([]*domain.RealmRequest, error)
	// Create assigns ID, Version and timestamps.
	Create(ctx context.Context, r *domain.RealmRequest) (*domain.RealmRequest, error)
	// Update writes every mutable column when the precondition holds and
	// returns the stored record with its version incremented.
	Update(ctx context.Context, r *domain.RealmRequest, pre Precondition) (*domain.RealmRequest, error)
	// RealmNameInUse reports whether an active record uses name.
	RealmNameInUse(ctx context.Context, name string) (bool, error)
}

// AuditStore is the append-only audit event log.
type AuditStore interface {
	Append(ctx context.Context, ev *domain.AuditEvent) error
	ListByRealm(ctx context.Context, realmID int64) ([]domain.AuditEvent, error)
}
