package lifecycle

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"realmsteward.io/steward/internal/domain"
	"realmsteward.io/steward/internal/governance/audit"
	"realmsteward.io/steward/internal/governance/authz"
	"realmsteward.io/steward/internal/metrics"
	"realmsteward.io/steward/internal/notification"
	"realmsteward.io/steward/internal/pkg/logger"
	"realmsteward.io/steward/internal/provider/identity"
	"realmsteward.io/steward/internal/repository/memory"
)

func init() {
	_ = logger.Init("error", "json")
}

const adminMarker = "sso-admin"

var (
	adminActor = authz.Actor{UserID: "admin-sub", IdirUserID: "ADMIN1", DisplayName: "Ada Admin", Email: "ada@example.com", Roles: []string{adminMarker}}
	poActor    = authz.Actor{UserID: "po-sub", IdirUserID: "POID", DisplayName: "Pat Owner", Email: "po@example.com"}
	techActor  = authz.Actor{UserID: "tech-sub", IdirUserID: "TECHID", DisplayName: "Tess Tech", Email: "tech@example.com"}
	stranger   = authz.Actor{UserID: "other-sub", IdirUserID: "OTHER", DisplayName: "Olly Other", Email: "other@example.com"}
)

type fakeProvisioner struct {
	mu        sync.Mutex
	pr        int
	openErr   error
	mergeErr  error
	deleteErr error
	notMerged bool
	delay     time.Duration
	opened    []string
	deleted   []string
}

func (p *fakeProvisioner) OpenRealmPullRequest(_ context.Context, realm string, _ []domain.Environment) (int, error) {
	if p.delay > 0 {
		time.Sleep(p.delay)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.opened = append(p.opened, realm)
	if p.openErr != nil {
		return 0, p.openErr
	}
	return p.pr, nil
}

func (p *fakeProvisioner) MergePullRequest(_ context.Context, _ int) (bool, error) {
	if p.mergeErr != nil {
		return false, p.mergeErr
	}
	return !p.notMerged, nil
}

func (p *fakeProvisioner) DeleteBranch(_ context.Context, realm string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.deleted = append(p.deleted, realm)
	return p.deleteErr
}

func (p *fakeProvisioner) openCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.opened)
}

type fakeIdentity struct {
	mu       sync.Mutex
	taken    map[string]bool
	takenErr error
	failEnv  map[domain.Environment]bool
	grantErr error
	grants   []string
	revokes  []string
	enables  []string
	disables []string
}

func newFakeIdentity() *fakeIdentity {
	return &fakeIdentity{taken: map[string]bool{}, failEnv: map[domain.Environment]bool{}}
}

func (f *fakeIdentity) GrantRealmAdmin(_ context.Context, env domain.Environment, realm, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.grantErr != nil {
		return f.grantErr
	}
	f.grants = append(f.grants, fmt.Sprintf("%s/%s/%s", env, realm, id))
	return nil
}

func (f *fakeIdentity) RevokeRealmAdmin(_ context.Context, env domain.Environment, realm, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.revokes = append(f.revokes, fmt.Sprintf("%s/%s/%s", env, realm, id))
	return nil
}

func (f *fakeIdentity) EnableRealm(_ context.Context, env domain.Environment, realm string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failEnv[env] {
		return fmt.Errorf("%s unreachable", env)
	}
	f.enables = append(f.enables, string(env)+"/"+realm)
	return nil
}

func (f *fakeIdentity) DisableRealm(_ context.Context, env domain.Environment, realm string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failEnv[env] {
		return fmt.Errorf("%s unreachable", env)
	}
	f.disables = append(f.disables, string(env)+"/"+realm)
	return nil
}

func (f *fakeIdentity) RealmNameTaken(_ context.Context, realm string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.takenErr != nil {
		return false, f.takenErr
	}
	return f.taken[realm], nil
}

func (f *fakeIdentity) RealmInfo(_ context.Context, _ string, envs []domain.Environment) ([]identity.EnvironmentInfo, error) {
	out := make([]identity.EnvironmentInfo, 0, len(envs))
	for _, env := range envs {
		out = append(out, identity.EnvironmentInfo{Environment: env, Enabled: true, Protocols: []string{"oidc"}})
	}
	return out, nil
}

func (f *fakeIdentity) snapshot() (grants, revokes []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.grants...), append([]string(nil), f.revokes...)
}

type recordingDispatcher struct {
	mu     sync.Mutex
	kinds  []notification.Kind
	emails []notification.Email
}

func (d *recordingDispatcher) Dispatch(_ context.Context, kind notification.Kind, e notification.Email) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.kinds = append(d.kinds, kind)
	d.emails = append(d.emails, e)
	return nil
}

func (d *recordingDispatcher) count(kind notification.Kind) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, k := range d.kinds {
		if k == kind {
			n++
		}
	}
	return n
}

type harness struct {
	c      *Controller
	store  *memory.RealmStore
	audits *memory.AuditStore
	prov   *fakeProvisioner
	idp    *fakeIdentity
	notes  *recordingDispatcher
	m      *metrics.Metrics
	seq    int
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		store:  memory.NewRealmStore(),
		audits: memory.NewAuditStore(),
		prov:   &fakeProvisioner{pr: 42},
		idp:    newFakeIdentity(),
		notes:  &recordingDispatcher{},
		m:      metrics.New(prometheus.NewRegistry()),
	}
	h.c = New(Deps{
		Store:       h.store,
		Audit:       audit.NewLogger(h.audits),
		Provisioner: h.prov,
		Identity:    h.idp,
		Notifier:    notification.NewTriggers(notification.NewRenderer("https://steward.example.com", nil), h.notes, h.m),
		Metrics:     h.m,
		AdminRole:   adminMarker,
	})
	return h
}

// seed stores a record directly, bypassing the controller and its audit trail.
func (h *harness) seed(t *testing.T, mutate func(r *domain.RealmRequest)) *domain.RealmRequest {
	t.Helper()
	h.seq++
	r := &domain.RealmRequest{
		Realm:                      fmt.Sprintf("realm-%d", h.seq),
		ProductName:                "Portal",
		Environments:               []domain.Environment{domain.EnvDev, domain.EnvTest, domain.EnvProd},
		ProductOwnerEmail:          "po@example.com",
		ProductOwnerIdirUserID:     "POID",
		TechnicalContactEmail:      "tech@example.com",
		TechnicalContactIdirUserID: "TECHID",
		Status:                     domain.StatusPending,
	}
	if mutate != nil {
		mutate(r)
	}
	created, err := h.store.Create(context.Background(), r)
	require.NoError(t, err)
	return created
}

func (h *harness) reload(t *testing.T, id int64) *domain.RealmRequest {
	t.Helper()
	r, err := h.store.FindByID(context.Background(), id)
	require.NoError(t, err)
	return r
}

func (h *harness) eventCodes(realmID int64) []domain.EventCode {
	var out []domain.EventCode
	for _, ev := range h.audits.All() {
		if ev.RealmID != nil && *ev.RealmID == realmID {
			out = append(out, ev.Code)
		}
	}
	return out
}

func (h *harness) eventsWithoutRealm() []domain.EventCode {
	var out []domain.EventCode
	for _, ev := range h.audits.All() {
		if ev.RealmID == nil {
			out = append(out, ev.Code)
		}
	}
	return out
}

func validInput() CreateInput {
	return CreateInput{
		Realm:                      "my-realm",
		Purpose:                    "staff login",
		ProductName:                "Portal",
		ProductOwnerEmail:          "po@example.com",
		ProductOwnerIdirUserID:     "POID",
		TechnicalContactEmail:      "tech@example.com",
		TechnicalContactIdirUserID: "TECHID",
	}
}

func countPrefix(list []string, prefix string) int {
	n := 0
	for _, s := range list {
		if strings.HasPrefix(s, prefix) {
			n++
		}
	}
	return n
}
