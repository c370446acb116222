package identity

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/Nerzal/gocloak/v13"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"realmsteward.io/steward/internal/config"
)

var _ Client = (*KeycloakClient)(nil)

// KeycloakClient implements Client on the Keycloak admin REST API.
// The admin token is obtained lazily with the client-credentials grant
// against the master realm and reused until it expires.
type KeycloakClient struct {
	kc          *gocloak.GoCloak
	masterRealm string
	timeout     time.Duration
	tokenConfig clientcredentials.Config

	mu     sync.Mutex
	tokens oauth2.TokenSource
}

// NewKeycloakClient builds a client for one environment. No network call is
// made until the first operation.
func NewKeycloakClient(cfg config.IdentityEnvConfig, timeout time.Duration) *KeycloakClient {
	base := strings.TrimRight(cfg.BaseURL, "/")
	master := cfg.MasterRealm
	if master == "" {
		master = "master"
	}
	kc := gocloak.NewClient(base)
	if timeout > 0 {
		kc.RestyClient().SetTimeout(timeout)
	}
	return &KeycloakClient{
		kc:          kc,
		masterRealm: master,
		timeout:     timeout,
		tokenConfig: clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     base + "/realms/" + master + "/protocol/openid-connect/token",
		},
	}
}

func (c *KeycloakClient) token() (string, error) {
	c.mu.Lock()
	if c.tokens == nil {
		ctx := context.WithValue(context.Background(), oauth2.HTTPClient, &http.Client{Timeout: c.timeout})
		c.tokens = oauth2.ReuseTokenSource(nil, c.tokenConfig.TokenSource(ctx))
	}
	ts := c.tokens
	c.mu.Unlock()

	tok, err := ts.Token()
	if err != nil {
		return "", fmt.Errorf("identity admin token: %w", err)
	}
	return tok.AccessToken, nil
}

// FindUsersByUsername returns users of realm whose username matches exactly.
func (c *KeycloakClient) FindUsersByUsername(ctx context.Context, realm, username string) ([]User, error) {
	token, err := c.token()
	if err != nil {
		return nil, err
	}
	found, err := c.kc.GetUsers(ctx, token, realm, gocloak.GetUsersParams{
		Username: gocloak.StringP(username),
		Exact:    gocloak.BoolP(true),
	})
	if err != nil {
		return nil, fmt.Errorf("find users in %s: %w", realm, err)
	}
	users := make([]User, 0, len(found))
	for _, u := range found {
		users = append(users, User{ID: gocloak.PString(u.ID), Username: gocloak.PString(u.Username)})
	}
	return users, nil
}

// CreateUser creates an enabled user in realm and returns its id.
func (c *KeycloakClient) CreateUser(ctx context.Context, realm, username string) (string, error) {
	token, err := c.token()
	if err != nil {
		return "", err
	}
	id, err := c.kc.CreateUser(ctx, token, realm, gocloak.User{
		Username: gocloak.StringP(username),
		Enabled:  gocloak.BoolP(true),
	})
	if err != nil {
		return "", fmt.Errorf("create user in %s: %w", realm, err)
	}
	return id, nil
}

// LinkFederatedIdentity links userID to its account at the idpAlias provider.
// An existing link is left as is.
func (c *KeycloakClient) LinkFederatedIdentity(ctx context.Context, realm, userID, idpAlias, idpUserID, idpUsername string) error {
	token, err := c.token()
	if err != nil {
		return err
	}
	err = c.kc.CreateUserFederatedIdentity(ctx, token, realm, userID, idpAlias, gocloak.FederatedIdentityRepresentation{
		IdentityProvider: gocloak.StringP(idpAlias),
		UserID:           gocloak.StringP(idpUserID),
		UserName:         gocloak.StringP(idpUsername),
	})
	if err != nil && !isStatus(err, http.StatusConflict) {
		return fmt.Errorf("link federated identity in %s: %w", realm, err)
	}
	return nil
}

func (c *KeycloakClient) realmClientID(ctx context.Context, token, realm string) (string, error) {
	clients, err := c.kc.GetClients(ctx, token, c.masterRealm, gocloak.GetClientsParams{
		ClientID: gocloak.StringP(realm + "-realm"),
	})
	if err != nil {
		return "", fmt.Errorf("find %s-realm client: %w", realm, err)
	}
	if len(clients) == 0 {
		return "", fmt.Errorf("%w: no %s-realm client", ErrRoleNotFound, realm)
	}
	return gocloak.PString(clients[0].ID), nil
}

// FindRoleByName looks up a client role of the "<realm>-realm" client in the master realm.
func (c *KeycloakClient) FindRoleByName(ctx context.Context, realm, name string) (*Role, error) {
	token, err := c.token()
	if err != nil {
		return nil, err
	}
	clientID, err := c.realmClientID(ctx, token, realm)
	if err != nil {
		return nil, err
	}
	role, err := c.kc.GetClientRole(ctx, token, c.masterRealm, clientID, name)
	if err != nil {
		if isStatus(err, http.StatusNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrRoleNotFound, name)
		}
		return nil, fmt.Errorf("get role %s: %w", name, err)
	}
	return &Role{ID: gocloak.PString(role.ID), Name: gocloak.PString(role.Name), ClientID: clientID}, nil
}

// byClient groups roles by their owning client for the role-mapping API.
func byClient(roles []Role) map[string][]gocloak.Role {
	grouped := make(map[string][]gocloak.Role)
	for _, r := range roles {
		grouped[r.ClientID] = append(grouped[r.ClientID], gocloak.Role{
			ID:   gocloak.StringP(r.ID),
			Name: gocloak.StringP(r.Name),
		})
	}
	return grouped
}

// AssignRealmRole adds the client roles to a master-realm user.
func (c *KeycloakClient) AssignRealmRole(ctx context.Context, userID string, roles []Role) error {
	token, err := c.token()
	if err != nil {
		return err
	}
	for clientID, group := range byClient(roles) {
		if err := c.kc.AddClientRolesToUser(ctx, token, c.masterRealm, clientID, userID, group); err != nil {
			return fmt.Errorf("assign realm roles: %w", err)
		}
	}
	return nil
}

// UnassignRealmRole removes the client roles from a master-realm user.
func (c *KeycloakClient) UnassignRealmRole(ctx context.Context, userID string, roles []Role) error {
	token, err := c.token()
	if err != nil {
		return err
	}
	for clientID, group := range byClient(roles) {
		if err := c.kc.DeleteClientRolesFromUser(ctx, token, c.masterRealm, clientID, userID, group); err != nil {
			return fmt.Errorf("unassign realm roles: %w", err)
		}
	}
	return nil
}

// GetRealm returns realm with its identity providers.
func (c *KeycloakClient) GetRealm(ctx context.Context, realm string) (*Realm, error) {
	token, err := c.token()
	if err != nil {
		return nil, err
	}
	rep, err := c.kc.GetRealm(ctx, token, realm)
	if err != nil {
		return nil, fmt.Errorf("get realm %s: %w", realm, err)
	}
	idps, err := c.kc.GetIdentityProviders(ctx, token, realm)
	if err != nil {
		return nil, fmt.Errorf("list identity providers of %s: %w", realm, err)
	}
	out := &Realm{Name: gocloak.PString(rep.Realm), Enabled: gocloak.PBool(rep.Enabled)}
	for _, idp := range idps {
		out.IdentityProviders = append(out.IdentityProviders, IdentityProvider{
			Alias:       gocloak.PString(idp.Alias),
			DisplayName: gocloak.PString(idp.DisplayName),
			ProviderID:  gocloak.PString(idp.ProviderID),
		})
	}
	return out, nil
}

// SetRealmEnabled toggles the enabled flag of realm.
func (c *KeycloakClient) SetRealmEnabled(ctx context.Context, realm string, enabled bool) error {
	token, err := c.token()
	if err != nil {
		return err
	}
	err = c.kc.UpdateRealm(ctx, token, gocloak.RealmRepresentation{
		Realm:   gocloak.StringP(realm),
		Enabled: gocloak.BoolP(enabled),
	})
	if err != nil {
		return fmt.Errorf("set realm %s enabled=%t: %w", realm, enabled, err)
	}
	return nil
}

// RealmExists reports whether realm exists. A 404 is not an error.
func (c *KeycloakClient) RealmExists(ctx context.Context, realm string) (bool, error) {
	token, err := c.token()
	if err != nil {
		return false, err
	}
	if _, err := c.kc.GetRealm(ctx, token, realm); err != nil {
		if isStatus(err, http.StatusNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("get realm %s: %w", realm, err)
	}
	return true, nil
}

// DeleteUser removes userID from realm. A missing user is not an error.
func (c *KeycloakClient) DeleteUser(ctx context.Context, realm, userID string) error {
	token, err := c.token()
	if err != nil {
		return err
	}
	if err := c.kc.DeleteUser(ctx, token, realm, userID); err != nil && !isStatus(err, http.StatusNotFound) {
		return fmt.Errorf("delete user in %s: %w", realm, err)
	}
	return nil
}

// UserHasRoles reports whether the master-realm user still holds any client role.
func (c *KeycloakClient) UserHasRoles(ctx context.Context, userID string) (bool, error) {
	token, err := c.token()
	if err != nil {
		return false, err
	}
	mappings, err := c.kc.GetRoleMappingByUserID(ctx, token, c.masterRealm, userID)
	if err != nil {
		return false, fmt.Errorf("get role mappings: %w", err)
	}
	for _, m := range mappings.ClientMappings {
		if m != nil && m.Mappings != nil && len(*m.Mappings) > 0 {
			return true, nil
		}
	}
	return false, nil
}

func isStatus(err error, code int) bool {
	var apiErr *gocloak.APIError
	return errors.As(err, &apiErr) && apiErr.Code == code
}
