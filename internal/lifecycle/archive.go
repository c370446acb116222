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

// Delete archives a realm. The realm is disabled in each target environment
// first; a failing environment is logged and does not stop the archive.
// Realm admins are revoked later, when the pipeline applies the removal.
func (c *Controller) Delete(ctx context.Context, actor authz.Actor, id int64) (out *domain.RealmRequest, err error) {
	ctx, span := c.begin(ctx, IntentDelete, id)
	defer func() { c.end(span, IntentDelete, err) }()

	if err := requireActor(actor); err != nil {
		return nil, err
	}
	record, err := c.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := Check(IntentDelete, StateOf(record), c.role(actor, record)); err != nil {
		return nil, err
	}

	if failed := c.setRealmEnabled(ctx, record, false); len(failed) > 0 {
		logger.Warn("Realm not disabled in every environment",
			zap.Int64("realm_id", id),
			zap.Strings("failed_environments", envNames(failed)),
		)
	}

	next := record.Clone()
	next.Archived = true
	next.Status = domain.StatusApplied
	next.LastUpdatedBy = actor.DisplayName

	updated, err := c.persist(ctx, next, repository.Expect(record).WithStatus(record.Status))
	if err != nil {
		c.audit.RecordBestEffort(ctx, audit.Event{
			Code:    domain.EventDeleteFailed,
			RealmID: audit.RealmID(id),
			ActorID: actor.UserID,
			Before:  record,
			After:   next,
		})
		return nil, err
	}

	_ = c.audit.Record(ctx, audit.Event{
		Code:    domain.EventDeleteSuccess,
		RealmID: audit.RealmID(id),
		ActorID: actor.UserID,
		Before:  record,
		After:   updated,
	})
	c.notifier.OnDeleted(ctx, updated)

	logger.Info("Realm archived",
		zap.Int64("realm_id", id),
		zap.String("actor", actor.UserID),
	)
	return updated, nil
}

// Restore re-enables an archived, applied realm.
func (c *Controller) Restore(ctx context.Context, actor authz.Actor, id int64) (*domain.RealmRequest, error) {
	return c.restore(ctx, actor, id, IntentRestore)
}

// AdminRestore re-enables an archived realm that was applied or merged. Every
// rejection is audited, including an unknown id.
func (c *Controller) AdminRestore(ctx context.Context, actor authz.Actor, id int64) (*domain.RealmRequest, error) {
	return c.restore(ctx, actor, id, IntentAdminRestore)
}

func (c *Controller) restore(ctx context.Context, actor authz.Actor, id int64, intent Intent) (out *domain.RealmRequest, err error) {
	ctx, span := c.begin(ctx, intent, id)
	defer func() { c.end(span, intent, err) }()

	if err := requireActor(actor); err != nil {
		return nil, err
	}
	record, err := c.load(ctx, id)
	if err != nil {
		if intent == IntentAdminRestore && apperrors.CodeOf(err) == apperrors.CodeInvalidRequest {
			c.audit.RecordBestEffort(ctx, audit.Event{
				Code:    domain.EventRestoreFailed,
				ActorID: actor.UserID,
			})
		}
		return nil, err
	}
	if err := Check(intent, StateOf(record), c.role(actor, record)); err != nil {
		if intent == IntentAdminRestore && apperrors.CodeOf(err) == apperrors.CodeInvalidRequest {
			c.audit.RecordBestEffort(ctx, audit.Event{
				Code:    domain.EventRestoreFailed,
				RealmID: audit.RealmID(id),
				ActorID: actor.UserID,
				Before:  record,
			})
		}
		return nil, err
	}

	failed := c.setRealmEnabled(ctx, record, true)

	next := record.Clone()
	next.Archived = false
	next.Status = domain.StatusApplied
	if len(failed) > 0 {
		next.Status = domain.StatusApplyFailed
	}
	next.LastUpdatedBy = actor.DisplayName

	updated, err := c.persist(ctx, next, repository.Expect(record).WithStatus(record.Status))
	if err != nil {
		c.audit.RecordBestEffort(ctx, audit.Event{
			Code:    domain.EventRestoreFailed,
			RealmID: audit.RealmID(id),
			ActorID: actor.UserID,
			Before:  record,
			After:   next,
		})
		return nil, err
	}

	if len(failed) > 0 {
		c.audit.RecordBestEffort(ctx, audit.Event{
			Code:    domain.EventRestoreFailed,
			RealmID: audit.RealmID(id),
			ActorID: actor.UserID,
			Before:  record,
			After:   updated,
		})
		logger.Warn("Realm restore incomplete",
			zap.Int64("realm_id", id),
			zap.Strings("failed_environments", envNames(failed)),
		)
		return updated, nil
	}

	_ = c.audit.Record(ctx, audit.Event{
		Code:    domain.EventRestoreSuccess,
		RealmID: audit.RealmID(id),
		ActorID: actor.UserID,
		Before:  record,
		After:   updated,
	})
	c.notifier.OnRestored(ctx, updated)

	logger.Info("Realm restored",
		zap.Int64("realm_id", id),
		zap.String("intent", string(intent)),
		zap.String("actor", actor.UserID),
	)
	return updated, nil
}

// setRealmEnabled calls the identity provider for each target environment in
// rollout order and returns the environments that failed.
func (c *Controller) setRealmEnabled(ctx context.Context, r *domain.RealmRequest, enabled bool) []domain.Environment {
	op := "disable_realm"
	call := c.identity.DisableRealm
	if enabled {
		op = "enable_realm"
		call = c.identity.EnableRealm
	}

	var failed []domain.Environment
	for _, env := range r.Environments {
		done := c.observe("identity", op)
		err := call(ctx, env, r.Realm)
		done()
		if err != nil {
			failed = append(failed, env)
			logger.Error("Identity provider call failed",
				zap.String("operation", op),
				zap.Int64("realm_id", r.ID),
				zap.String("environment", string(env)),
				zap.Error(err),
			)
		}
	}
	return failed
}

func envNames(envs []domain.Environment) []string {
	out := make([]string, len(envs))
	for i, e := range envs {
		out[i] = string(e)
	}
	return out
}
