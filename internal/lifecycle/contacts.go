package lifecycle

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"realmsteward.io/steward/internal/domain"
	"realmsteward.io/steward/internal/governance/audit"
	"realmsteward.io/steward/internal/pkg/logger"
)

func normalizeID(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}

// contactDiff returns the contacts present only in before and only in after.
func contactDiff(before, after []Contact) (removed, added []Contact) {
	inBefore := map[string]bool{}
	for _, c := range before {
		inBefore[normalizeID(c.IdirUserID)] = true
	}
	inAfter := map[string]bool{}
	for _, c := range after {
		inAfter[normalizeID(c.IdirUserID)] = true
	}
	for _, c := range before {
		if !inAfter[normalizeID(c.IdirUserID)] {
			removed = append(removed, c)
		}
	}
	for _, c := range after {
		if !inBefore[normalizeID(c.IdirUserID)] {
			added = append(added, c)
		}
	}
	return removed, added
}

// grantAdmins gives each contact realm-admin in every environment of r and
// notifies the contacts that succeeded everywhere. Failures are audited and
// logged, never returned.
func (c *Controller) grantAdmins(ctx context.Context, r *domain.RealmRequest, contacts []Contact, actorID string) {
	for _, ct := range contacts {
		ok := true
		for _, env := range r.Environments {
			done := c.observe("identity", "grant_realm_admin")
			err := c.identity.GrantRealmAdmin(ctx, env, r.Realm, ct.IdirUserID)
			done()
			if err != nil {
				ok = false
				logger.Error("Failed to grant realm admin",
					zap.Int64("realm_id", r.ID),
					zap.String("environment", string(env)),
					zap.String("idir_user_id", ct.IdirUserID),
					zap.Error(err),
				)
			}
		}
		if !ok {
			c.audit.RecordBestEffort(ctx, audit.Event{
				Code:    domain.EventRealmAdminGrantFailed,
				RealmID: audit.RealmID(r.ID),
				ActorID: actorID,
			})
			continue
		}
		c.notifier.OnAdminOnboarded(ctx, r, ct.Email)
	}
}

// revokeAdmins removes realm-admin from each contact in every environment of r.
func (c *Controller) revokeAdmins(ctx context.Context, r *domain.RealmRequest, contacts []Contact, actorID string, notify bool) {
	for _, ct := range contacts {
		ok := true
		for _, env := range r.Environments {
			done := c.observe("identity", "revoke_realm_admin")
			err := c.identity.RevokeRealmAdmin(ctx, env, r.Realm, ct.IdirUserID)
			done()
			if err != nil {
				ok = false
				logger.Error("Failed to revoke realm admin",
					zap.Int64("realm_id", r.ID),
					zap.String("environment", string(env)),
					zap.String("idir_user_id", ct.IdirUserID),
					zap.Error(err),
				)
			}
		}
		if !ok {
			c.audit.RecordBestEffort(ctx, audit.Event{
				Code:    domain.EventRealmAdminRevokeFailed,
				RealmID: audit.RealmID(r.ID),
				ActorID: actorID,
			})
			continue
		}
		if notify {
			c.notifier.OnAdminOffboarded(ctx, r, ct.Email)
		}
	}
}

// reconcileContacts moves realm-admin from removed contacts to added ones
// after an edit of a live realm.
func (c *Controller) reconcileContacts(ctx context.Context, before, after *domain.RealmRequest, actorID string) {
	if after.Archived || after.Status != domain.StatusApplied {
		return
	}
	removed, added := contactDiff(adminContacts(before), adminContacts(after))
	if len(removed) == 0 && len(added) == 0 {
		return
	}
	logger.Info("Reconciling realm admins",
		zap.Int64("realm_id", after.ID),
		zap.Int("removed", len(removed)),
		zap.Int("added", len(added)),
	)
	c.revokeAdmins(ctx, after, removed, actorID, true)
	c.grantAdmins(ctx, after, added, actorID)
}
