// Package identity administers realms and realm-admin memberships in the
// per-environment identity provider.
package identity

import (
	"context"
	"errors"
)

var (
	// ErrEnvironmentNotConfigured is returned for an environment with no admin endpoint.
	ErrEnvironmentNotConfigured = errors.New("identity environment not configured")
	// ErrRoleNotFound is returned when a realm-admin role is missing in the master realm.
	ErrRoleNotFound = errors.New("realm admin role not found")
	// ErrLookup is returned when a contact cannot be resolved to an identity-provider user.
	ErrLookup = errors.New("directory lookup failed")
)

// User is an identity-provider user.
type User struct {
	ID       string
	Username string
}

// Role is a client role of the "<realm>-realm" client in the master realm.
type Role struct {
	ID   string
	Name string
	// ClientID is the internal id of the owning client.
	ClientID string
}

// IdentityProvider is one identity provider configured on a realm.
type IdentityProvider struct {
	Alias       string
	DisplayName string
	ProviderID  string
}

// Realm is the subset of realm data the service reads.
type Realm struct {
	Name              string
	Enabled           bool
	IdentityProviders []IdentityProvider
}

// Client is one environment's admin API.
type Client interface {
	FindUsersByUsername(ctx context.Context, realm, username string) ([]User, error)
	CreateUser(ctx context.Context, realm, username string) (string, error)
	// LinkFederatedIdentity links userID in realm to a user of the identity provider idpAlias.
	LinkFederatedIdentity(ctx context.Context, realm, userID, idpAlias, idpUserID, idpUsername string) error
	// FindRoleByName finds a client role of "<realm>-realm" in the master realm.
	FindRoleByName(ctx context.Context, realm, name string) (*Role, error)
	// AssignRealmRole assigns roles on the master realm user userID.
	AssignRealmRole(ctx context.Context, userID string, roles []Role) error
	UnassignRealmRole(ctx context.Context, userID string, roles []Role) error
	GetRealm(ctx context.Context, realm string) (*Realm, error)
	SetRealmEnabled(ctx context.Context, realm string, enabled bool) error
	RealmExists(ctx context.Context, realm string) (bool, error)
	DeleteUser(ctx context.Context, realm, userID string) error
	// UserHasRoles reports whether the master realm user holds any client role.
	UserHasRoles(ctx context.Context, userID string) (bool, error)
}
