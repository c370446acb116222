package lifecycle

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"realmsteward.io/steward/internal/domain"
	"realmsteward.io/steward/internal/governance/audit"
	"realmsteward.io/steward/internal/governance/authz"
	"realmsteward.io/steward/internal/pkg/logger"
	"realmsteward.io/steward/internal/repository"
)

// Approve records the admin decision and provisions the realm through a
// pull request. The decision is claimed with a conditional write before any
// external call so that only one concurrent approval reaches the VCS host.
func (c *Controller) Approve(ctx context.Context, actor authz.Actor, id int64) (out *domain.RealmRequest, err error) {
	ctx, span := c.begin(ctx, IntentApprove, id)
	defer func() { c.end(span, IntentApprove, err) }()

	if err := requireActor(actor); err != nil {
		return nil, err
	}
	record, err := c.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := Check(IntentApprove, StateOf(record), c.role(actor, record)); err != nil {
		return nil, err
	}

	// Step 1: claim the decision. Status stays pending until provisioning ends.
	claim := record.Clone()
	claim.Approved = domain.ApprovalGranted
	claim.LastUpdatedBy = actor.DisplayName
	claimed, err := c.persist(ctx, claim, repository.Expect(record).WithStatus(domain.StatusPending))
	if err != nil {
		return nil, err
	}
	_ = c.audit.Record(ctx, audit.Event{
		Code:    domain.EventApproveSuccess,
		RealmID: audit.RealmID(id),
		ActorID: actor.UserID,
		Before:  record,
		After:   claimed,
	})

	// Step 2: provision.
	next := claimed.Clone()
	provErr := c.provision(ctx, next)
	if provErr != nil {
		next.Status = domain.StatusPRFailed
	} else {
		next.Status = domain.StatusPRSuccess
	}

	// Step 3: persist the outcome.
	updated, err := c.persist(ctx, next, repository.Expect(claimed).WithStatus(domain.StatusPending))
	if err != nil {
		c.audit.RecordBestEffort(ctx, audit.Event{
			Code:    domain.EventUpdateFailed,
			RealmID: audit.RealmID(id),
			ActorID: actor.UserID,
			Before:  claimed,
			After:   next,
		})
		return nil, err
	}

	if provErr != nil {
		c.audit.RecordBestEffort(ctx, audit.Event{
			Code:    domain.EventUpdateFailed,
			RealmID: audit.RealmID(id),
			ActorID: actor.UserID,
			Before:  claimed,
			After:   updated,
		})
		return nil, c.processing("provision realm", provErr,
			zap.Int64("realm_id", id),
			zap.String("realm", record.Realm),
		)
	}

	_ = c.audit.Record(ctx, audit.Event{
		Code:    domain.EventUpdateSuccess,
		RealmID: audit.RealmID(id),
		ActorID: actor.UserID,
		Before:  claimed,
		After:   updated,
	})
	c.notifier.OnDecided(ctx, updated)

	logger.Info("Realm request approved",
		zap.Int64("realm_id", id),
		zap.Int("pr_number", *updated.PRNumber),
		zap.String("actor", actor.UserID),
	)
	return updated, nil
}

// provision opens and merges the realm pull request, recording the PR
// number on r as soon as it exists.
func (c *Controller) provision(ctx context.Context, r *domain.RealmRequest) error {
	done := c.observe("vcs", "open_pull_request")
	pr, err := c.provisioner.OpenRealmPullRequest(ctx, r.Realm, r.Environments)
	done()
	if err != nil {
		return err
	}
	r.PRNumber = &pr

	done = c.observe("vcs", "merge_pull_request")
	merged, err := c.provisioner.MergePullRequest(ctx, pr)
	done()
	if err != nil {
		return err
	}
	if !merged {
		return fmt.Errorf("pull request #%d was not merged", pr)
	}

	done = c.observe("vcs", "delete_branch")
	if err := c.provisioner.DeleteBranch(ctx, r.Realm); err != nil {
		logger.Warn("Failed to delete realm branch",
			zap.String("realm", r.Realm),
			zap.Error(err),
		)
	}
	done()
	return nil
}

// Decline records a negative admin decision. Nothing is provisioned.
func (c *Controller) Decline(ctx context.Context, actor authz.Actor, id int64) (out *domain.RealmRequest, err error) {
	ctx, span := c.begin(ctx, IntentDecline, id)
	defer func() { c.end(span, IntentDecline, err) }()

	if err := requireActor(actor); err != nil {
		return nil, err
	}
	record, err := c.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := Check(IntentDecline, StateOf(record), c.role(actor, record)); err != nil {
		return nil, err
	}

	next := record.Clone()
	next.Approved = domain.ApprovalDeclined
	next.LastUpdatedBy = actor.DisplayName

	updated, err := c.persist(ctx, next, repository.Expect(record).WithStatus(domain.StatusPending))
	if err != nil {
		c.audit.RecordBestEffort(ctx, audit.Event{
			Code:    domain.EventRejectFailed,
			RealmID: audit.RealmID(id),
			ActorID: actor.UserID,
			Before:  record,
			After:   next,
		})
		return nil, err
	}

	_ = c.audit.Record(ctx, audit.Event{
		Code:    domain.EventRejectSuccess,
		RealmID: audit.RealmID(id),
		ActorID: actor.UserID,
		Before:  record,
		After:   updated,
	})
	c.notifier.OnDecided(ctx, updated)

	logger.Info("Realm request declined",
		zap.Int64("realm_id", id),
		zap.String("actor", actor.UserID),
	)
	return updated, nil
}
