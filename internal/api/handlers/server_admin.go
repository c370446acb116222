package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"realmsteward.io/steward/internal/domain"
	"realmsteward.io/steward/internal/governance/authz"
)

// AuditEventList is the audit trail response body.
type AuditEventList struct {
	Items []domain.AuditEvent `json:"items"`
}

type realmAction func(ctx context.Context, actor authz.Actor, id int64) (*domain.RealmRequest, error)

// runAction resolves :id, runs op and renders the resulting record.
func (s *Server) runAction(c *gin.Context, op realmAction) {
	id, ok := realmID(c)
	if !ok {
		return
	}
	r, err := op(c.Request.Context(), actorOf(c), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

// ApproveRealm handles POST /admin/realms/:id/approve.
func (s *Server) ApproveRealm(c *gin.Context) {
	s.runAction(c, s.lifecycle.Approve)
}

// DeclineRealm handles POST /admin/realms/:id/decline.
func (s *Server) DeclineRealm(c *gin.Context) {
	s.runAction(c, s.lifecycle.Decline)
}

// RestoreRealm handles POST /admin/realms/:id/restore.
func (s *Server) RestoreRealm(c *gin.Context) {
	s.runAction(c, s.lifecycle.Restore)
}

// RestoreArchivedRealm handles POST /admin/realms/:id/restore-archived.
func (s *Server) RestoreArchivedRealm(c *gin.Context) {
	s.runAction(c, s.lifecycle.AdminRestore)
}

// DeleteRealm handles DELETE /admin/realms/:id. The record is archived, not removed.
func (s *Server) DeleteRealm(c *gin.Context) {
	s.runAction(c, s.lifecycle.Delete)
}

// ListRealmEvents handles GET /admin/realms/:id/events.
func (s *Server) ListRealmEvents(c *gin.Context) {
	id, ok := realmID(c)
	if !ok {
		return
	}
	events, err := s.lifecycle.AuditTrail(c.Request.Context(), actorOf(c), id)
	if err != nil {
		fail(c, err)
		return
	}
	if events == nil {
		events = []domain.AuditEvent{}
	}
	c.JSON(http.StatusOK, AuditEventList{Items: events})
}
