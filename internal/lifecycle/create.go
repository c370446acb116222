package lifecycle

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"realmsteward.io/steward/internal/domain"
	"realmsteward.io/steward/internal/governance/audit"
	"realmsteward.io/steward/internal/governance/authz"
	apperrors "realmsteward.io/steward/internal/pkg/errors"
	"realmsteward.io/steward/internal/pkg/logger"
	"realmsteward.io/steward/internal/repository"
)

// CreateInput is a new realm request. The technical contact defaults to the
// requesting actor.
type CreateInput struct {
	Realm           string               `json:"realm" validate:"required,max=100,realmname"`
	Purpose         string               `json:"purpose" validate:"max=2000"`
	ProductName     string               `json:"productName" validate:"required,max=200"`
	PrimaryEndUsers []string             `json:"primaryEndUsers" validate:"dive,max=200"`
	Environments    []domain.Environment `json:"environments" validate:"dive,environment"`

	ProductOwnerEmail                string `json:"productOwnerEmail" validate:"required,email"`
	ProductOwnerIdirUserID           string `json:"productOwnerIdirUserId" validate:"required,max=100"`
	TechnicalContactEmail            string `json:"technicalContactEmail" validate:"required,email"`
	TechnicalContactIdirUserID       string `json:"technicalContactIdirUserId" validate:"required,max=100"`
	SecondTechnicalContactEmail      string `json:"secondTechnicalContactEmail" validate:"omitempty,email"`
	SecondTechnicalContactIdirUserID string `json:"secondTechnicalContactIdirUserId" validate:"max=100"`

	Ministry string `json:"ministry" validate:"max=200"`
	Division string `json:"division" validate:"max=200"`
	Branch   string `json:"branch" validate:"max=200"`
}

// Create validates and stores a new pending realm request. Validation
// failures are not audited.
func (c *Controller) Create(ctx context.Context, actor authz.Actor, in CreateInput) (out *domain.RealmRequest, err error) {
	ctx, span := c.begin(ctx, IntentCreate, 0)
	defer func() { c.end(span, IntentCreate, err) }()

	if err := requireActor(actor); err != nil {
		return nil, err
	}

	in.Realm = strings.TrimSpace(in.Realm)
	if in.TechnicalContactIdirUserID == "" {
		in.TechnicalContactIdirUserID = actor.IdirUserID
	}
	if in.TechnicalContactEmail == "" {
		in.TechnicalContactEmail = actor.Email
	}
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	if err := Check(IntentCreate, State{}, c.role(actor, nil)); err != nil {
		return nil, err
	}

	if err := c.checkNameAvailable(ctx, in.Realm); err != nil {
		return nil, err
	}

	record := &domain.RealmRequest{
		Realm:                            in.Realm,
		Purpose:                          in.Purpose,
		ProductName:                      in.ProductName,
		PrimaryEndUsers:                  in.PrimaryEndUsers,
		Environments:                     normalizeEnvironments(in.Environments),
		ProductOwnerEmail:                in.ProductOwnerEmail,
		ProductOwnerIdirUserID:           in.ProductOwnerIdirUserID,
		TechnicalContactEmail:            in.TechnicalContactEmail,
		TechnicalContactIdirUserID:       in.TechnicalContactIdirUserID,
		SecondTechnicalContactEmail:      in.SecondTechnicalContactEmail,
		SecondTechnicalContactIdirUserID: in.SecondTechnicalContactIdirUserID,
		Ministry:                         in.Ministry,
		Division:                         in.Division,
		Branch:                           in.Branch,
		Approved:                         domain.ApprovalUnset,
		Status:                           domain.StatusPending,
		LastUpdatedBy:                    actor.DisplayName,
	}

	created, err := c.store.Create(ctx, record)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateRealm) {
			return nil, apperrors.ErrRealmNameTaken(in.Realm)
		}
		c.audit.RecordBestEffort(ctx, audit.Event{
			Code:    domain.EventCreateFailed,
			ActorID: actor.UserID,
			After:   record,
		})
		return nil, c.processing("create realm request", err, zap.String("realm", in.Realm))
	}

	_ = c.audit.Record(ctx, audit.Event{
		Code:    domain.EventCreateSuccess,
		RealmID: audit.RealmID(created.ID),
		ActorID: actor.UserID,
		After:   created,
	})
	c.notifier.OnCreated(ctx, created)

	logger.Info("Realm request created",
		zap.Int64("realm_id", created.ID),
		zap.String("realm", created.Realm),
		zap.String("actor", actor.UserID),
	)
	return created, nil
}

// checkNameAvailable rejects names used by an active record or by an
// existing identity-provider realm.
func (c *Controller) checkNameAvailable(ctx context.Context, realm string) error {
	inUse, err := c.store.RealmNameInUse(ctx, realm)
	if err != nil {
		return c.processing("check realm name in store", err, zap.String("realm", realm))
	}
	if inUse {
		return apperrors.ErrRealmNameTaken(realm)
	}

	done := c.observe("identity", "realm_name_taken")
	taken, err := c.identity.RealmNameTaken(ctx, realm)
	done()
	if err != nil {
		return c.processing("check realm name in identity provider", err, zap.String("realm", realm))
	}
	if taken {
		return apperrors.ErrRealmNameTaken(realm)
	}
	return nil
}

// normalizeEnvironments drops duplicates and defaults to every environment.
func normalizeEnvironments(envs []domain.Environment) []domain.Environment {
	if len(envs) == 0 {
		return append([]domain.Environment(nil), domain.AllEnvironments...)
	}
	want := map[domain.Environment]bool{}
	for _, e := range envs {
		want[e] = true
	}
	out := make([]domain.Environment, 0, len(want))
	for _, e := range domain.AllEnvironments {
		if want[e] {
			out = append(out, e)
		}
	}
	return out
}
