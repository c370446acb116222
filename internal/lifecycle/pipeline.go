package lifecycle

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"realmsteward.io/steward/internal/domain"
	"realmsteward.io/steward/internal/governance/audit"
	"realmsteward.io/steward/internal/governance/authz"
	apperrors "realmsteward.io/steward/internal/pkg/errors"
	"realmsteward.io/steward/internal/pkg/logger"
	"realmsteward.io/steward/internal/repository"
)

// PipelineAction is the CI phase a callback reports on.
type PipelineAction string

const (
	ActionPlan  PipelineAction = "plan"
	ActionApply PipelineAction = "apply"
)

// pipelineMaxAttempts bounds the re-read loop when a concurrent writer
// changes the record between load and persist.
const pipelineMaxAttempts = 3

// PipelineResult is one CI callback covering a batch of realm ids.
type PipelineResult struct {
	IDs     []int64        `json:"ids" validate:"required,min=1"`
	Action  PipelineAction `json:"action" validate:"required,oneof=plan apply"`
	Success bool           `json:"success"`
}

// ItemResult is the outcome for one id of a batch.
type ItemResult struct {
	ID     int64         `json:"id"`
	Status domain.Status `json:"status,omitempty"`
	Error  string        `json:"error,omitempty"`
}

// HandlePipelineResult transitions every id of the batch independently and
// in parallel. A failing id never aborts the others.
func (c *Controller) HandlePipelineResult(ctx context.Context, res PipelineResult) ([]ItemResult, error) {
	if err := validateStruct(res); err != nil {
		return nil, err
	}
	intent := IntentPlan
	if res.Action == ActionApply {
		intent = IntentApply
	}

	results := make([]ItemResult, len(res.IDs))
	run := func(ctx context.Context, i int) {
		results[i] = c.pipelineItem(ctx, intent, res.IDs[i], res.Success)
	}
	if c.pools != nil {
		c.pools.General.ForEach(ctx, len(res.IDs), run)
	} else {
		for i := range res.IDs {
			run(ctx, i)
		}
	}

	logger.Info("Pipeline result processed",
		zap.String("action", string(res.Action)),
		zap.Bool("success", res.Success),
		zap.Int("items", len(res.IDs)),
	)
	return results, nil
}

func (c *Controller) pipelineItem(ctx context.Context, intent Intent, id int64, success bool) (item ItemResult) {
	item.ID = id
	var err error
	ctx, span := c.begin(ctx, intent, id)
	defer func() { c.end(span, intent, err) }()

	var record, updated *domain.RealmRequest
	for attempt := 1; attempt <= pipelineMaxAttempts; attempt++ {
		record, err = c.load(ctx, id)
		if err != nil {
			break
		}
		// Pipeline callbacks are authenticated by a shared secret, not a role.
		if err = Check(intent, StateOf(record), authz.RoleAdmin); err != nil {
			break
		}
		next := record.Clone()
		next.Status = pipelineStatus(intent, success)
		updated, err = c.persist(ctx, next, repository.Expect(record))
		if err == nil || apperrors.CodeOf(err) != apperrors.CodeConflict {
			break
		}
		logger.Debug("Retrying pipeline transition",
			zap.Int64("realm_id", id),
			zap.Int("attempt", attempt),
		)
	}
	if err != nil {
		var realmID *int64
		if record != nil {
			realmID = audit.RealmID(id)
		}
		c.audit.RecordBestEffort(ctx, audit.Event{
			Code:    domain.EventPipelineUpdateFailed,
			RealmID: realmID,
			Before:  record,
		})
		item.Error = pipelineItemError(err)
		return item
	}

	_ = c.audit.Record(ctx, audit.Event{
		Code:    pipelineEvent(intent, success),
		RealmID: audit.RealmID(id),
		Before:  record,
		After:   updated,
	})
	item.Status = updated.Status

	if intent == IntentApply && success {
		c.completeApply(ctx, updated)
	}
	return item
}

// completeApply finishes the work a successful apply stands for: removal of
// an archived realm, or hand-over of a live one to its contacts.
func (c *Controller) completeApply(ctx context.Context, r *domain.RealmRequest) {
	contacts := adminContacts(r)
	if r.Archived {
		c.revokeAdmins(ctx, r, contacts, "", false)
		c.notifier.OnDeletionComplete(ctx, r)
		logger.Info("Realm deletion completed", zap.Int64("realm_id", r.ID))
		return
	}
	c.grantAdmins(ctx, r, contacts, "")
	c.notifier.OnReadyToUse(ctx, r)
	logger.Info("Realm ready to use", zap.Int64("realm_id", r.ID))
}

func pipelineStatus(intent Intent, success bool) domain.Status {
	switch {
	case intent == IntentPlan && success:
		return domain.StatusPlanned
	case intent == IntentPlan:
		return domain.StatusPlanFailed
	case success:
		return domain.StatusApplied
	default:
		return domain.StatusApplyFailed
	}
}

func pipelineEvent(intent Intent, success bool) domain.EventCode {
	switch {
	case intent == IntentPlan && success:
		return domain.EventPlanSuccess
	case intent == IntentPlan:
		return domain.EventPlanFailed
	case success:
		return domain.EventApplySuccess
	default:
		return domain.EventApplyFailed
	}
}

func pipelineItemError(err error) string {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return err.Error()
}
