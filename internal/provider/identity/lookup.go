package identity

import (
	"context"
	"fmt"
	"strings"

	"realmsteward.io/steward/internal/domain"
)

// DirectoryLookup resolves a contact's IDIR user id to the identity
// provider's native username.
type DirectoryLookup interface {
	LookupUsername(ctx context.Context, env domain.Environment, idirUserID string) (string, error)
}

// HomeRealmDirectory resolves contacts by searching the home realm for the
// federated username "<idir user id>@<home idp alias>". A contact who has
// never signed in resolves to the same name so the grant can create them.
type HomeRealmDirectory struct {
	registry *Registry
}

// NewHomeRealmDirectory creates a lookup backed by registry's clients.
func NewHomeRealmDirectory(registry *Registry) *HomeRealmDirectory {
	return &HomeRealmDirectory{registry: registry}
}

func (d *HomeRealmDirectory) LookupUsername(ctx context.Context, env domain.Environment, idirUserID string) (string, error) {
	id := strings.ToLower(strings.TrimSpace(idirUserID))
	if id == "" {
		return "", fmt.Errorf("%w: empty idir user id", ErrLookup)
	}
	c, s, err := d.registry.client(env)
	if err != nil {
		return "", err
	}

	candidate := id + "@" + s.homeIdPAlias
	users, err := c.FindUsersByUsername(ctx, s.homeRealm, candidate)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrLookup, err)
	}
	for _, u := range users {
		if strings.EqualFold(u.Username, candidate) {
			return u.Username, nil
		}
	}
	return candidate, nil
}
