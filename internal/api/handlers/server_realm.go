package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"realmsteward.io/steward/internal/domain"
	"realmsteward.io/steward/internal/governance/authz"
	"realmsteward.io/steward/internal/lifecycle"
)

// RealmList is the list response body.
type RealmList struct {
	Items []*domain.RealmRequest `json:"items"`
}

// CreateRealm handles POST /realms.
func (s *Server) CreateRealm(c *gin.Context) {
	var in lifecycle.CreateInput
	if !bindJSON(c, &in) {
		return
	}
	r, err := s.lifecycle.Create(c.Request.Context(), actorOf(c), in)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, r)
}

// ListRealms handles GET /realms. Archived realms are included only for
// admins that ask for them; status can be repeated to filter.
func (s *Server) ListRealms(c *gin.Context) {
	includeArchived, _ := strconv.ParseBool(c.Query("include_archived"))
	f := lifecycle.ListFilter{IncludeArchived: includeArchived}
	for _, st := range c.QueryArray("status") {
		f.Statuses = append(f.Statuses, domain.Status(st))
	}

	items, err := s.lifecycle.List(c.Request.Context(), actorOf(c), f)
	if err != nil {
		fail(c, err)
		return
	}
	if items == nil {
		items = []*domain.RealmRequest{}
	}
	c.JSON(http.StatusOK, RealmList{Items: items})
}

// GetRealm handles GET /realms/:id.
func (s *Server) GetRealm(c *gin.Context) {
	id, ok := realmID(c)
	if !ok {
		return
	}
	r, err := s.lifecycle.Get(c.Request.Context(), actorOf(c), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

// UpdateRealm handles PUT /realms/:id. Only the fields present in the body
// are considered, and only those the caller's role may change are applied.
func (s *Server) UpdateRealm(c *gin.Context) {
	id, ok := realmID(c)
	if !ok {
		return
	}
	var patch authz.RealmPatch
	if !bindJSON(c, &patch) {
		return
	}
	r, err := s.lifecycle.Update(c.Request.Context(), actorOf(c), id, patch)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

// GetRealmInfo handles GET /realms/:id/info.
func (s *Server) GetRealmInfo(c *gin.Context) {
	id, ok := realmID(c)
	if !ok {
		return
	}
	info, err := s.lifecycle.RealmInfo(c.Request.Context(), actorOf(c), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"environments": info})
}
