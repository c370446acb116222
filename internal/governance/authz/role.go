// Package authz decides who may change which realm request fields.
//
// Roles are derived per request from the actor and the current record, never
// stored. Field permissions are typed masks so that adding a mutable field to
// the model without deciding its permission fails the package tests.
package authz

import (
	"strings"

	"realmsteward.io/steward/internal/domain"
)

// Role is the closed set of roles an actor can hold against one record.
type Role int

const (
	RoleTechnicalContact Role = iota
	RoleProductOwner
	RoleAdmin
)

func (r Role) String() string {
	switch r {
	case RoleAdmin:
		return "admin"
	case RoleProductOwner:
		return "product-owner"
	default:
		return "technical-contact"
	}
}

// Actor is the authenticated caller.
type Actor struct {
	// UserID is the token subject. Recorded on audit events.
	UserID string
	// IdirUserID is the directory user id compared with record contacts.
	IdirUserID  string
	DisplayName string
	Email       string
	Roles       []string
}

// HasRole reports whether the actor's role claims include role.
func (a Actor) HasRole(role string) bool {
	for _, r := range a.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// IsAdmin reports whether the actor carries the admin marker.
func (a Actor) IsAdmin(adminMarker string) bool {
	return adminMarker != "" && a.HasRole(adminMarker)
}

// Authenticated reports whether an identity is present.
func (a Actor) Authenticated() bool {
	return strings.TrimSpace(a.UserID) != ""
}

// ClassifyRole returns admin when the actor carries the admin marker, product
// owner when the actor matches the record's product owner id
// (case-insensitive), and technical contact otherwise.
func ClassifyRole(actor Actor, record *domain.RealmRequest, adminMarker string) Role {
	if actor.IsAdmin(adminMarker) {
		return RoleAdmin
	}
	if record != nil && record.IsProductOwner(actor.IdirUserID) {
		return RoleProductOwner
	}
	return RoleTechnicalContact
}
