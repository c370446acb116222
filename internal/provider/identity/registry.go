package identity

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"

	"realmsteward.io/steward/internal/config"
	"realmsteward.io/steward/internal/domain"
	"realmsteward.io/steward/internal/pkg/logger"
)

// Admin is the identity-provider surface the lifecycle controller uses.
type Admin interface {
	GrantRealmAdmin(ctx context.Context, env domain.Environment, realm, idirUserID string) error
	RevokeRealmAdmin(ctx context.Context, env domain.Environment, realm, idirUserID string) error
	EnableRealm(ctx context.Context, env domain.Environment, realm string) error
	DisableRealm(ctx context.Context, env domain.Environment, realm string) error
	RealmNameTaken(ctx context.Context, realm string) (bool, error)
	RealmInfo(ctx context.Context, realm string, envs []domain.Environment) ([]EnvironmentInfo, error)
}

var _ Admin = (*Registry)(nil)

// EnvironmentInfo is the read-only view of a realm in one environment.
type EnvironmentInfo struct {
	Environment       domain.Environment `json:"environment"`
	Enabled           bool               `json:"enabled"`
	IdentityProviders []string           `json:"identityProviders"`
	Protocols         []string           `json:"protocols"`
	// Unavailable is set when the environment could not be queried.
	Unavailable bool `json:"unavailable,omitempty"`
}

// envSettings are the realm names an environment uses for federation.
type envSettings struct {
	masterRealm  string
	homeRealm    string
	homeIdPAlias string
}

// Registry holds one Client per configured environment. A failing
// environment never blocks calls against the others.
type Registry struct {
	mu       sync.RWMutex
	clients  map[domain.Environment]Client
	settings map[domain.Environment]envSettings

	adminRoles []string
	lookup     DirectoryLookup
	cache      *expirable.LRU[string, []EnvironmentInfo]
}

// NewRegistry builds Keycloak clients for every environment with a base URL.
func NewRegistry(cfg config.IdentityConfig) *Registry {
	r := newRegistry(cfg)
	for name, envCfg := range cfg.Environments {
		if envCfg.BaseURL == "" {
			continue
		}
		r.Register(domain.Environment(name), NewKeycloakClient(envCfg, cfg.Timeout))
	}
	return r
}

// NewRegistryWithClients wires pre-built clients. Tests use it with fakes.
func NewRegistryWithClients(cfg config.IdentityConfig, clients map[domain.Environment]Client) *Registry {
	r := newRegistry(cfg)
	for env, c := range clients {
		r.Register(env, c)
	}
	return r
}

func newRegistry(cfg config.IdentityConfig) *Registry {
	size := cfg.CacheSize
	if size <= 0 {
		size = 256
	}
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	r := &Registry{
		clients:    map[domain.Environment]Client{},
		settings:   map[domain.Environment]envSettings{},
		adminRoles: append([]string(nil), cfg.AdminRoles...),
		cache:      expirable.NewLRU[string, []EnvironmentInfo](size, nil, ttl),
	}
	for name, envCfg := range cfg.Environments {
		r.settings[domain.Environment(name)] = envSettings{
			masterRealm:  orDefault(envCfg.MasterRealm, "master"),
			homeRealm:    orDefault(envCfg.HomeRealm, "standard"),
			homeIdPAlias: orDefault(envCfg.HomeIdPAlias, "idir"),
		}
	}
	r.lookup = NewHomeRealmDirectory(r)
	return r
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// Register adds or replaces the client for env.
func (r *Registry) Register(env domain.Environment, c Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[env] = c
	if _, ok := r.settings[env]; !ok {
		r.settings[env] = envSettings{masterRealm: "master", homeRealm: "standard", homeIdPAlias: "idir"}
	}
}

// SetDirectoryLookup replaces the contact resolver.
func (r *Registry) SetDirectoryLookup(l DirectoryLookup) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lookup = l
}

// Environments returns the configured environments in rollout order.
func (r *Registry) Environments() []domain.Environment {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Environment, 0, len(r.clients))
	for _, env := range domain.AllEnvironments {
		if _, ok := r.clients[env]; ok {
			out = append(out, env)
		}
	}
	return out
}

func (r *Registry) client(env domain.Environment) (Client, envSettings, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.clients[env]
	if !ok {
		return nil, envSettings{}, fmt.Errorf("%w: %s", ErrEnvironmentNotConfigured, env)
	}
	return c, r.settings[env], nil
}

func (r *Registry) directory() DirectoryLookup {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lookup
}

// GrantRealmAdmin makes the contact a realm-admin of realm in env. The user
// is ensured in the home realm and the master realm, linked to the home
// identity provider, then given the realm's admin roles in master.
func (r *Registry) GrantRealmAdmin(ctx context.Context, env domain.Environment, realm, idirUserID string) error {
	c, s, err := r.client(env)
	if err != nil {
		return err
	}
	username, err := r.directory().LookupUsername(ctx, env, idirUserID)
	if err != nil {
		return err
	}

	homeUserID, err := ensureUser(ctx, c, s.homeRealm, username)
	if err != nil {
		return err
	}
	masterUserID, err := ensureUser(ctx, c, s.masterRealm, username)
	if err != nil {
		return err
	}
	if err := c.LinkFederatedIdentity(ctx, s.masterRealm, masterUserID, s.homeIdPAlias, homeUserID, username); err != nil {
		return err
	}

	roles, err := r.adminRoleSet(ctx, c, realm)
	if err != nil {
		return err
	}
	if err := c.AssignRealmRole(ctx, masterUserID, roles); err != nil {
		return err
	}

	logger.Info("Realm admin granted",
		zap.String("environment", string(env)),
		zap.String("realm", realm),
		zap.String("username", username),
	)
	return nil
}

// RevokeRealmAdmin removes the realm's admin roles from the contact in env.
// The master realm user is deleted once it holds no other roles.
func (r *Registry) RevokeRealmAdmin(ctx context.Context, env domain.Environment, realm, idirUserID string) error {
	c, s, err := r.client(env)
	if err != nil {
		return err
	}
	username, err := r.directory().LookupUsername(ctx, env, idirUserID)
	if err != nil {
		return err
	}

	users, err := c.FindUsersByUsername(ctx, s.masterRealm, username)
	if err != nil {
		return err
	}
	if len(users) == 0 {
		return nil
	}
	masterUserID := users[0].ID

	roles, err := r.adminRoleSet(ctx, c, realm)
	if err != nil {
		return err
	}
	if err := c.UnassignRealmRole(ctx, masterUserID, roles); err != nil {
		return err
	}

	hasRoles, err := c.UserHasRoles(ctx, masterUserID)
	if err != nil {
		return err
	}
	if !hasRoles {
		if err := c.DeleteUser(ctx, s.masterRealm, masterUserID); err != nil {
			return err
		}
	}

	logger.Info("Realm admin revoked",
		zap.String("environment", string(env)),
		zap.String("realm", realm),
		zap.String("username", username),
	)
	return nil
}

func (r *Registry) adminRoleSet(ctx context.Context, c Client, realm string) ([]Role, error) {
	roles := make([]Role, 0, len(r.adminRoles))
	for _, name := range r.adminRoles {
		role, err := c.FindRoleByName(ctx, realm, name)
		if err != nil {
			return nil, err
		}
		roles = append(roles, *role)
	}
	if len(roles) == 0 {
		return nil, fmt.Errorf("%w: no admin roles configured", ErrRoleNotFound)
	}
	return roles, nil
}

func ensureUser(ctx context.Context, c Client, realm, username string) (string, error) {
	users, err := c.FindUsersByUsername(ctx, realm, username)
	if err != nil {
		return "", err
	}
	if len(users) > 0 {
		return users[0].ID, nil
	}
	return c.CreateUser(ctx, realm, username)
}

// EnableRealm enables realm in env.
func (r *Registry) EnableRealm(ctx context.Context, env domain.Environment, realm string) error {
	return r.setEnabled(ctx, env, realm, true)
}

// DisableRealm disables realm in env.
func (r *Registry) DisableRealm(ctx context.Context, env domain.Environment, realm string) error {
	return r.setEnabled(ctx, env, realm, false)
}

func (r *Registry) setEnabled(ctx context.Context, env domain.Environment, realm string, enabled bool) error {
	c, _, err := r.client(env)
	if err != nil {
		return err
	}
	if err := c.SetRealmEnabled(ctx, realm, enabled); err != nil {
		return err
	}
	r.invalidate(realm)
	return nil
}

// RealmNameTaken reports whether realm exists in any configured environment.
// Environments that fail to answer are skipped; an error is returned only
// when none of them answered.
func (r *Registry) RealmNameTaken(ctx context.Context, realm string) (bool, error) {
	envs := r.Environments()
	var lastErr error
	answered := 0
	for _, env := range envs {
		c, _, err := r.client(env)
		if err == nil {
			var exists bool
			exists, err = c.RealmExists(ctx, realm)
			if err == nil {
				answered++
				if exists {
					return true, nil
				}
				continue
			}
		}
		lastErr = fmt.Errorf("%s: %w", env, err)
		logger.Warn("Realm name check skipped environment",
			zap.String("environment", string(env)),
			zap.String("realm", realm),
			zap.Error(err),
		)
	}
	if answered == 0 && lastErr != nil {
		return false, lastErr
	}
	return false, nil
}

// RealmInfo returns the identity providers and distinct protocols of realm
// per environment. Fully answered results are cached.
func (r *Registry) RealmInfo(ctx context.Context, realm string, envs []domain.Environment) ([]EnvironmentInfo, error) {
	key := cacheKey(realm, envs)
	if cached, ok := r.cache.Get(key); ok {
		return cached, nil
	}

	infos := make([]EnvironmentInfo, 0, len(envs))
	complete := true
	for _, env := range envs {
		info := EnvironmentInfo{Environment: env}
		c, _, err := r.client(env)
		if err == nil {
			var rl *Realm
			rl, err = c.GetRealm(ctx, realm)
			if err == nil {
				info.Enabled = rl.Enabled
				info.IdentityProviders, info.Protocols = summarize(rl.IdentityProviders)
			}
		}
		if err != nil {
			logger.Warn("Realm info unavailable",
				zap.String("environment", string(env)),
				zap.String("realm", realm),
				zap.Error(err),
			)
			info.Unavailable = true
			complete = false
		}
		infos = append(infos, info)
	}

	if complete {
		r.cache.Add(key, infos)
	}
	return infos, nil
}

func (r *Registry) invalidate(realm string) {
	prefix := realm + "|"
	for _, k := range r.cache.Keys() {
		if strings.HasPrefix(k, prefix) {
			r.cache.Remove(k)
		}
	}
}

func cacheKey(realm string, envs []domain.Environment) string {
	parts := make([]string, len(envs))
	for i, e := range envs {
		parts[i] = string(e)
	}
	return realm + "|" + strings.Join(parts, ",")
}

// summarize returns provider names and the distinct protocols they use.
func summarize(idps []IdentityProvider) ([]string, []string) {
	names := make([]string, 0, len(idps))
	seen := map[string]bool{}
	protocols := []string{}
	for _, idp := range idps {
		name := idp.DisplayName
		if name == "" {
			name = idp.Alias
		}
		names = append(names, name)

		p := protocolOf(idp.ProviderID)
		if !seen[p] {
			seen[p] = true
			protocols = append(protocols, p)
		}
	}
	sort.Strings(protocols)
	return names, protocols
}

func protocolOf(providerID string) string {
	if strings.Contains(strings.ToLower(providerID), "saml") {
		return "saml"
	}
	return "oidc"
}
