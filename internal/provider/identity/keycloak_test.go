package identity

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"realmsteward.io/steward/internal/config"
	"realmsteward.io/steward/internal/domain"
)

// newKeycloakServer serves the token endpoint and GET /admin/realms/{realm}
// for the single realm "existing".
func newKeycloakServer(t *testing.T, tokenHits *atomic.Int32, tokenStatus int) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/realms/master/protocol/openid-connect/token", func(w http.ResponseWriter, r *http.Request) {
		tokenHits.Add(1)
		if tokenStatus != http.StatusOK {
			w.WriteHeader(tokenStatus)
			_, _ = w.Write([]byte(`{"error":"unauthorized_client"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"admin-token","token_type":"bearer","expires_in":300}`))
	})
	mux.HandleFunc("/admin/realms/", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer admin-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/admin/realms/existing":
			_, _ = w.Write([]byte(`{"realm":"existing","enabled":true}`))
			return
		case "/admin/realms/existing/identity-provider/instances":
			_, _ = w.Write([]byte(`[{"alias":"idir","providerId":"oidc"}]`))
			return
		}
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"Realm not found."}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestKeycloakClient_RealmExistsReusesToken(t *testing.T) {
	var hits atomic.Int32
	srv := newKeycloakServer(t, &hits, http.StatusOK)
	c := NewKeycloakClient(config.IdentityEnvConfig{BaseURL: srv.URL, ClientID: "steward", ClientSecret: "s"}, 5*time.Second)
	ctx := context.Background()

	assert.Equal(t, int32(0), hits.Load(), "no token fetched before first call")

	exists, err := c.RealmExists(ctx, "existing")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = c.RealmExists(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, exists)

	assert.Equal(t, int32(1), hits.Load())
}

func TestKeycloakClient_AuthFailureIsIsolated(t *testing.T) {
	var badHits, goodHits atomic.Int32
	bad := newKeycloakServer(t, &badHits, http.StatusUnauthorized)
	good := newKeycloakServer(t, &goodHits, http.StatusOK)

	r := NewRegistry(config.IdentityConfig{
		Timeout: 5 * time.Second,
		Environments: map[string]config.IdentityEnvConfig{
			"dev":  {BaseURL: bad.URL, ClientID: "steward", ClientSecret: "wrong"},
			"prod": {BaseURL: good.URL, ClientID: "steward", ClientSecret: "s"},
		},
	})
	ctx := context.Background()

	assert.Equal(t, []domain.Environment{domain.EnvDev, domain.EnvProd}, r.Environments())

	infos, err := r.RealmInfo(ctx, "existing", []domain.Environment{domain.EnvDev, domain.EnvProd})
	require.NoError(t, err)
	assert.True(t, infos[0].Unavailable)
	assert.False(t, infos[1].Unavailable)
	assert.True(t, infos[1].Enabled)
	assert.Equal(t, []string{"oidc"}, infos[1].Protocols)
}
