package lifecycle

import (
	"context"

	"go.uber.org/zap"

	"realmsteward.io/steward/internal/domain"
	"realmsteward.io/steward/internal/governance/audit"
	"realmsteward.io/steward/internal/governance/authz"
	apperrors "realmsteward.io/steward/internal/pkg/errors"
	"realmsteward.io/steward/internal/pkg/logger"
	"realmsteward.io/steward/internal/repository"
)

// Update applies the fields of patch the actor's role may change. Fields
// outside the role's permission are dropped silently. An approval decision
// in the patch is carried out through Approve or Decline after the other
// fields are saved.
func (c *Controller) Update(ctx context.Context, actor authz.Actor, id int64, patch authz.RealmPatch) (out *domain.RealmRequest, err error) {
	ctx, span := c.begin(ctx, IntentUpdate, id)
	defer func() { c.end(span, IntentUpdate, err) }()

	if err := requireActor(actor); err != nil {
		return nil, err
	}
	record, err := c.load(ctx, id)
	if err != nil {
		return nil, err
	}
	role := c.role(actor, record)
	if role != authz.RoleAdmin && !record.IsContact(actor.IdirUserID) {
		return nil, apperrors.ErrForbiddenf(string(IntentUpdate))
	}
	if err := Check(IntentUpdate, StateOf(record), role); err != nil {
		return nil, err
	}

	filtered := authz.Filter(role, patch)
	decision := filtered.Approved
	filtered.Approved = nil
	if decision != nil && !undecided(StateOf(record), role) {
		return nil, apperrors.ErrIllegalTransition(string(IntentUpdate), "approval has already been decided")
	}
	if err := validateStruct(filtered); err != nil {
		return nil, err
	}
	if decision != nil && filtered.IsEmpty() {
		return c.decide(ctx, actor, id, *decision)
	}

	next := record.Clone()
	filtered.ApplyTo(next)
	next.LastUpdatedBy = actor.DisplayName

	updated, err := c.persist(ctx, next, repository.Expect(record).WithStatus(record.Status))
	if err != nil {
		c.audit.RecordBestEffort(ctx, audit.Event{
			Code:    domain.EventUpdateFailed,
			RealmID: audit.RealmID(id),
			ActorID: actor.UserID,
			Before:  record,
			After:   next,
		})
		return nil, err
	}

	_ = c.audit.Record(ctx, audit.Event{
		Code:    domain.EventUpdateSuccess,
		RealmID: audit.RealmID(id),
		ActorID: actor.UserID,
		Before:  record,
		After:   updated,
	})
	c.notifier.OnUpdated(ctx, updated)
	c.reconcileContacts(ctx, record, updated, actor.UserID)

	logger.Info("Realm request updated",
		zap.Int64("realm_id", id),
		zap.String("role", role.String()),
		zap.String("actor", actor.UserID),
	)
	if decision != nil {
		return c.decide(ctx, actor, id, *decision)
	}
	return updated, nil
}

func (c *Controller) decide(ctx context.Context, actor authz.Actor, id int64, approve bool) (*domain.RealmRequest, error) {
	if approve {
		return c.Approve(ctx, actor, id)
	}
	return c.Decline(ctx, actor, id)
}
