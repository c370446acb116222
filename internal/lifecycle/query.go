package lifecycle

import (
	"context"

	"go.uber.org/zap"

	"realmsteward.io/steward/internal/domain"
	"realmsteward.io/steward/internal/governance/authz"
	apperrors "realmsteward.io/steward/internal/pkg/errors"
	"realmsteward.io/steward/internal/provider/identity"
	"realmsteward.io/steward/internal/repository"
)

// ListFilter narrows List. IncludeArchived is honoured for admins only.
type ListFilter struct {
	IncludeArchived bool
	Statuses        []domain.Status
}

// Get returns one realm request to an admin or one of its contacts.
func (c *Controller) Get(ctx context.Context, actor authz.Actor, id int64) (*domain.RealmRequest, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	record, err := c.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !c.canView(actor, record) {
		return nil, apperrors.ErrForbiddenf("view")
	}
	return record, nil
}

// List returns active realm requests. Admins see every record; other actors
// see the records they are a contact of.
func (c *Controller) List(ctx context.Context, actor authz.Actor, f ListFilter) ([]*domain.RealmRequest, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	filter := repository.RealmFilter{Statuses: f.Statuses}
	if c.isAdmin(actor) {
		filter.IncludeArchived = f.IncludeArchived
	} else {
		if actor.IdirUserID == "" {
			return []*domain.RealmRequest{}, nil
		}
		filter.ContactIdirUserID = actor.IdirUserID
	}
	records, err := c.store.FindMany(ctx, filter)
	if err != nil {
		return nil, c.processing("list realm requests", err, zap.String("actor", actor.UserID))
	}
	return records, nil
}

// AuditTrail returns the recorded events of a realm, oldest first. Admin only.
func (c *Controller) AuditTrail(ctx context.Context, actor authz.Actor, id int64) ([]domain.AuditEvent, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if !c.isAdmin(actor) {
		return nil, apperrors.ErrForbiddenf("view the audit trail of")
	}
	if _, err := c.load(ctx, id); err != nil {
		return nil, err
	}
	events, err := c.audit.Trail(ctx, id)
	if err != nil {
		return nil, c.processing("list audit events", err, zap.Int64("realm_id", id))
	}
	return events, nil
}

// RealmInfo reports the realm's state in each target environment. An
// environment that cannot be queried is marked unavailable.
func (c *Controller) RealmInfo(ctx context.Context, actor authz.Actor, id int64) ([]identity.EnvironmentInfo, error) {
	record, err := c.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	done := c.observe("identity", "realm_info")
	info, err := c.identity.RealmInfo(ctx, record.Realm, record.Environments)
	done()
	if err != nil {
		return nil, c.processing("read realm info", err, zap.Int64("realm_id", id))
	}
	return info, nil
}

func (c *Controller) canView(actor authz.Actor, r *domain.RealmRequest) bool {
	return c.isAdmin(actor) || r.IsContact(actor.IdirUserID)
}
