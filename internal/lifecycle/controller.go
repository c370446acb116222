package lifecycle

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"realmsteward.io/steward/internal/domain"
	"realmsteward.io/steward/internal/governance/audit"
	"realmsteward.io/steward/internal/governance/authz"
	"realmsteward.io/steward/internal/metrics"
	"realmsteward.io/steward/internal/notification"
	apperrors "realmsteward.io/steward/internal/pkg/errors"
	"realmsteward.io/steward/internal/pkg/logger"
	"realmsteward.io/steward/internal/pkg/worker"
	"realmsteward.io/steward/internal/provider/identity"
	"realmsteward.io/steward/internal/provider/vcs"
	"realmsteward.io/steward/internal/repository"
)

const tracerName = "realmsteward.io/steward/internal/lifecycle"

// Deps are the collaborators of a Controller. Notifier and Metrics may be nil.
type Deps struct {
	Store       repository.RealmStore
	Audit       *audit.Logger
	Provisioner vcs.Provisioner
	Identity    identity.Admin
	Notifier    *notification.Triggers
	Pools       *worker.Pools
	Metrics     *metrics.Metrics
	// AdminRole is the role claim that marks an actor as admin.
	AdminRole string
}

// Controller executes lifecycle intents.
type Controller struct {
	store       repository.RealmStore
	audit       *audit.Logger
	provisioner vcs.Provisioner
	identity    identity.Admin
	notifier    *notification.Triggers
	pools       *worker.Pools
	metrics     *metrics.Metrics
	adminRole   string
	tracer      trace.Tracer
}

// New creates a Controller.
func New(d Deps) *Controller {
	return &Controller{
		store:       d.Store,
		audit:       d.Audit,
		provisioner: d.Provisioner,
		identity:    d.Identity,
		notifier:    d.Notifier,
		pools:       d.Pools,
		metrics:     d.Metrics,
		adminRole:   d.AdminRole,
		tracer:      otel.Tracer(tracerName),
	}
}

// begin opens the span for one operation.
func (c *Controller) begin(ctx context.Context, intent Intent, id int64) (context.Context, trace.Span) {
	ctx, span := c.tracer.Start(ctx, "lifecycle."+string(intent))
	span.SetAttributes(attribute.String("realm.intent", string(intent)))
	if id != 0 {
		span.SetAttributes(attribute.Int64("realm.id", id))
	}
	return ctx, span
}

// end records the outcome of an operation on its span and counters.
func (c *Controller) end(span trace.Span, intent Intent, err error) {
	defer span.End()
	if err == nil {
		c.metrics.IncTransition(string(intent), metrics.OutcomeSuccess)
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	if apperrors.CodeOf(err) == apperrors.CodeProcessingError {
		c.metrics.IncTransition(string(intent), metrics.OutcomeFailure)
		return
	}
	c.metrics.IncTransition(string(intent), metrics.OutcomeRejected)
}

func (c *Controller) role(actor authz.Actor, r *domain.RealmRequest) authz.Role {
	return authz.ClassifyRole(actor, r, c.adminRole)
}

func (c *Controller) isAdmin(actor authz.Actor) bool {
	return actor.IsAdmin(c.adminRole)
}

// load re-reads the record and maps store errors to caller outcomes.
func (c *Controller) load(ctx context.Context, id int64) (*domain.RealmRequest, error) {
	r, err := c.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.ErrRealmNotFound(id)
		}
		return nil, c.processing("load realm request", err, zap.Int64("realm_id", id))
	}
	return r, nil
}

// persist writes next guarded by pre and maps store errors to caller outcomes.
func (c *Controller) persist(ctx context.Context, next *domain.RealmRequest, pre repository.Precondition) (*domain.RealmRequest, error) {
	updated, err := c.store.Update(ctx, next, pre)
	if err == nil {
		return updated, nil
	}
	switch {
	case errors.Is(err, repository.ErrPreconditionFailed):
		logger.Warn("Realm request changed concurrently",
			zap.Int64("realm_id", next.ID),
			zap.Int64("expected_version", pre.Version),
		)
		return nil, apperrors.ErrConcurrentUpdate(next.ID)
	case errors.Is(err, repository.ErrNotFound):
		return nil, apperrors.ErrRealmNotFound(next.ID)
	case errors.Is(err, repository.ErrDuplicateRealm):
		// an archived realm cannot be restored while its name is reused
		return nil, apperrors.ErrRealmNameTaken(next.Realm)
	default:
		return nil, c.processing("persist realm request", err, zap.Int64("realm_id", next.ID))
	}
}

// processing logs the full cause and returns the generic caller error.
func (c *Controller) processing(msg string, err error, fields ...zap.Field) error {
	logger.Error(msg, append(fields, zap.Error(err))...)
	return apperrors.ErrProcessing(err)
}

// observe times a gateway call.
func (c *Controller) observe(gateway, operation string) func() {
	start := time.Now()
	return func() { c.metrics.ObserveGatewayCall(gateway, operation, start) }
}

func requireActor(actor authz.Actor) error {
	if !actor.Authenticated() {
		return apperrors.ErrUnauthenticated()
	}
	return nil
}

// Contact is a realm contact that holds realm-admin once the realm is applied.
type Contact struct {
	IdirUserID string
	Email      string
}

// adminContacts returns the product owner and technical contact,
// deduplicated by directory id.
func adminContacts(r *domain.RealmRequest) []Contact {
	var out []Contact
	seen := map[string]bool{}
	add := func(id, email string) {
		key := normalizeID(id)
		if key == "" || seen[key] {
			return
		}
		seen[key] = true
		out = append(out, Contact{IdirUserID: id, Email: email})
	}
	add(r.ProductOwnerIdirUserID, r.ProductOwnerEmail)
	add(r.TechnicalContactIdirUserID, r.TechnicalContactEmail)
	return out
}
