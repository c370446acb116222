package notification

import (
	"context"

	"go.uber.org/zap"

	"realmsteward.io/steward/internal/domain"
	"realmsteward.io/steward/internal/metrics"
	"realmsteward.io/steward/internal/pkg/logger"
)

// Triggers maps lifecycle events to emails. Every method is fire-and-forget:
// failures are logged and counted, never returned. A nil *Triggers sends
// nothing.
type Triggers struct {
	renderer   *Renderer
	dispatcher Dispatcher
	metrics    *metrics.Metrics
}

// NewTriggers creates a notification trigger service.
func NewTriggers(renderer *Renderer, dispatcher Dispatcher, m *metrics.Metrics) *Triggers {
	return &Triggers{renderer: renderer, dispatcher: dispatcher, metrics: m}
}

// OnCreated fires after a realm request is stored.
func (t *Triggers) OnCreated(ctx context.Context, r *domain.RealmRequest) {
	t.notify(ctx, KindCreate, r, Extra{})
}

// OnUpdated fires after a successful update.
func (t *Triggers) OnUpdated(ctx context.Context, r *domain.RealmRequest) {
	t.notify(ctx, KindUpdate, r, Extra{})
}

// OnDecided fires after an approve or decline, with the decision taken from r.
func (t *Triggers) OnDecided(ctx context.Context, r *domain.RealmRequest) {
	kind := KindDecline
	if r.Approved == domain.ApprovalGranted {
		kind = KindApprove
	}
	t.notify(ctx, kind, r, Extra{})
}

// OnRestored fires after a fully successful restore.
func (t *Triggers) OnRestored(ctx context.Context, r *domain.RealmRequest) {
	t.notify(ctx, KindRestore, r, Extra{})
}

// OnDeleted fires after a realm is archived.
func (t *Triggers) OnDeleted(ctx context.Context, r *domain.RealmRequest) {
	t.notify(ctx, KindDelete, r, Extra{})
}

// OnReadyToUse fires after the first successful apply.
func (t *Triggers) OnReadyToUse(ctx context.Context, r *domain.RealmRequest) {
	t.notify(ctx, KindReadyToUse, r, Extra{})
}

// OnDeletionComplete fires after the apply that tears down an archived realm.
func (t *Triggers) OnDeletionComplete(ctx context.Context, r *domain.RealmRequest) {
	t.notify(ctx, KindDeletionComplete, r, Extra{})
}

// OnAdminOnboarded tells a new contact they were granted realm-admin.
func (t *Triggers) OnAdminOnboarded(ctx context.Context, r *domain.RealmRequest, email string) {
	if email == "" {
		return
	}
	t.notify(ctx, KindAdminOnboard, r, Extra{Contact: email})
}

// OnAdminOffboarded tells a removed contact their realm-admin was revoked.
func (t *Triggers) OnAdminOffboarded(ctx context.Context, r *domain.RealmRequest, email string) {
	if email == "" {
		return
	}
	t.notify(ctx, KindAdminOffboard, r, Extra{Contact: email})
}

func (t *Triggers) notify(ctx context.Context, kind Kind, r *domain.RealmRequest, extra Extra) {
	if t == nil || t.dispatcher == nil || r == nil {
		return
	}

	e, err := t.renderer.Render(kind, r, extra)
	if err != nil {
		t.metrics.IncNotification(string(kind), metrics.OutcomeFailure)
		logger.Error("failed to render notification",
			zap.String("kind", string(kind)),
			zap.Int64("realm_id", r.ID),
			zap.Error(err),
		)
		return
	}
	if len(e.To) == 0 && len(e.Cc) == 0 {
		logger.Warn("notification has no recipients",
			zap.String("kind", string(kind)),
			zap.Int64("realm_id", r.ID),
		)
		return
	}

	if err := t.dispatcher.Dispatch(ctx, kind, e); err != nil {
		t.metrics.IncNotification(string(kind), metrics.OutcomeFailure)
		logger.Error("failed to dispatch notification",
			zap.String("kind", string(kind)),
			zap.Int64("realm_id", r.ID),
			zap.Error(err),
		)
	}
}
