// Package memory provides in-memory realm and audit stores for tests and
// ephemeral environments. Semantics match the postgres implementation,
// including conditional updates and active-name uniqueness.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"realmsteward.io/steward/internal/domain"
	"realmsteward.io/steward/internal/repository"
)

var (
	_ repository.RealmStore = (*RealmStore)(nil)
	_ repository.AuditStore = (*AuditStore)(nil)
)

// RealmStore keeps realm requests in a map guarded by a mutex.
type RealmStore struct {
	mu     sync.RWMutex
	nextID int64
	rows   map[int64]*domain.RealmRequest
	now    func() time.Time
}

// NewRealmStore creates an empty store.
func NewRealmStore() *RealmStore {
	return &RealmStore{rows: make(map[int64]*domain.RealmRequest), now: time.Now}
}

// FindByID returns a copy of the record.
func (s *RealmStore) FindByID(_ context.Context, id int64) (*domain.RealmRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rows[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return r.Clone(), nil
}

// FindMany returns matching records ordered by id.
func (s *RealmStore) FindMany(_ context.Context, f repository.RealmFilter) ([]*domain.RealmRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.RealmRequest, 0, len(s.rows))
	for _, r := range s.rows {
		if r.Archived && !f.IncludeArchived {
			continue
		}
		if f.ContactIdirUserID != "" && !r.IsContact(f.ContactIdirUserID) {
			continue
		}
		if len(f.Statuses) > 0 && !containsStatus(f.Statuses, r.Status) {
			continue
		}
		out = append(out, r.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Create stores a new record.
func (s *RealmStore) Create(_ context.Context, r *domain.RealmRequest) (*domain.RealmRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.nameInUseLocked(r.Realm, 0) {
		return nil, repository.ErrDuplicateRealm
	}
	s.nextID++
	row := r.Clone()
	row.ID = s.nextID
	row.Version = 1
	row.CreatedAt = s.now().UTC()
	row.UpdatedAt = row.CreatedAt
	s.rows[row.ID] = row
	return row.Clone(), nil
}

// Update replaces the record when the precondition holds.
func (s *RealmStore) Update(_ context.Context, r *domain.RealmRequest, pre repository.Precondition) (*domain.RealmRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.rows[r.ID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if cur.Version != pre.Version {
		return nil, repository.ErrPreconditionFailed
	}
	if pre.Status != nil && cur.Status != *pre.Status {
		return nil, repository.ErrPreconditionFailed
	}
	if !r.Archived && s.nameInUseLocked(cur.Realm, r.ID) {
		return nil, repository.ErrDuplicateRealm
	}

	row := r.Clone()
	row.Realm = cur.Realm
	row.CreatedAt = cur.CreatedAt
	row.Version = cur.Version + 1
	row.UpdatedAt = s.now().UTC()
	s.rows[row.ID] = row
	return row.Clone(), nil
}

// RealmNameInUse reports whether an active record uses name.
func (s *RealmStore) RealmNameInUse(_ context.Context, name string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nameInUseLocked(name, 0), nil
}

func (s *RealmStore) nameInUseLocked(name string, exceptID int64) bool {
	for id, r := range s.rows {
		if id != exceptID && !r.Archived && strings.EqualFold(r.Realm, name) {
			return true
		}
	}
	return false
}

func containsStatus(list []domain.Status, s domain.Status) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// AuditStore is an append-only slice of events.
type AuditStore struct {
	mu     sync.RWMutex
	events []domain.AuditEvent
}

// NewAuditStore creates an empty audit store.
func NewAuditStore() *AuditStore {
	return &AuditStore{}
}

// Append assigns the next id and stores ev.
func (s *AuditStore) Append(_ context.Context, ev *domain.AuditEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ev.ID = int64(len(s.events) + 1)
	s.events = append(s.events, *ev)
	return nil
}

// ListByRealm returns the realm's events in insertion order.
func (s *AuditStore) ListByRealm(_ context.Context, realmID int64) ([]domain.AuditEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.AuditEvent
	for _, ev := range s.events {
		if ev.RealmID != nil && *ev.RealmID == realmID {
			out = append(out, ev)
		}
	}
	return out, nil
}

// All returns every stored event, including those without a realm id.
func (s *AuditStore) All() []domain.AuditEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.AuditEvent(nil), s.events...)
}
