package audit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"realmsteward.io/steward/internal/domain"
	"realmsteward.io/steward/internal/repository/memory"
)

type failingStore struct{}

func (failingStore) Append(context.Context, *domain.AuditEvent) error {
	return errors.New("disk full")
}

func (failingStore) ListByRealm(context.Context, int64) ([]domain.AuditEvent, error) {
	return nil, errors.New("disk full")
}

func TestLogger_Record(t *testing.T) {
	store := memory.NewAuditStore()
	l := NewLogger(store)
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return fixed }

	before := &domain.RealmRequest{ID: 7, Status: domain.StatusPending}
	after := before.Clone()
	after.Status = domain.StatusPRSuccess

	err := l.Record(context.Background(), Event{
		Code:    domain.EventUpdateSuccess,
		RealmID: RealmID(7),
		ActorID: "admin-1",
		Before:  before,
		After:   after,
	})
	require.NoError(t, err)

	events, err := l.Trail(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, events, 1)

	ev := events[0]
	assert.Equal(t, domain.EventUpdateSuccess, ev.Code)
	require.NotNil(t, ev.ActorID)
	assert.Equal(t, "admin-1", *ev.ActorID)
	assert.Equal(t, fixed, ev.CreatedAt)
	require.Len(t, ev.Changes, 1)
	assert.Equal(t, domain.FieldStatus, ev.Changes[0].Field)
}

func TestLogger_Record_SystemActorAndNoRealm(t *testing.T) {
	store := memory.NewAuditStore()
	l := NewLogger(store)

	require.NoError(t, l.Record(context.Background(), Event{Code: domain.EventRestoreFailed}))

	all := store.All()
	require.Len(t, all, 1)
	assert.Nil(t, all[0].RealmID)
	assert.Nil(t, all[0].ActorID)
}

func TestLogger_Record_StoreFailure(t *testing.T) {
	l := NewLogger(failingStore{})

	err := l.Record(context.Background(), Event{Code: domain.EventApproveSuccess})
	assert.Error(t, err)

	assert.NotPanics(t, func() {
		l.RecordBestEffort(context.Background(), Event{Code: domain.EventUpdateFailed})
	})

	_, err = l.Trail(context.Background(), 1)
	assert.Error(t, err)
}
