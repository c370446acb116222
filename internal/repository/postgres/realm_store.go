// Package postgres implements the repository contracts on PostgreSQL via pgx.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"realmsteward.io/steward/internal/domain"
	"realmsteward.io/steward/internal/repository"
)

const uniqueViolation = "23505"

const realmColumns = `id, realm, purpose, product_name, primary_end_users, environments,
	product_owner_email, product_owner_idir_userid,
	technical_contact_email, technical_contact_idir_userid,
	second_technical_contact_email, second_technical_contact_idir_userid,
	ministry, division, branch, rc_channel, rc_channel_owned_by, material_to_send,
	approved, status, archived, pr_number, last_updated_by, version, created_at, updated_at`

var _ repository.RealmStore = (*RealmStore)(nil)

// RealmStore persists realm requests in the realm_requests table.
type RealmStore struct {
	pool *pgxpool.Pool
}

// NewRealmStore creates a RealmStore on pool.
func NewRealmStore(pool *pgxpool.Pool) *RealmStore {
	return &RealmStore{pool: pool}
}

// FindByID loads one record.
func (s *RealmStore) FindByID(ctx context.Context, id int64) (*domain.RealmRequest, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+realmColumns+` FROM realm_requests WHERE id = $1`, id)
	r, err := scanRealm(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find realm request %d: %w", id, err)
	}
	return r, nil
}

// FindMany loads matching records ordered by id.
func (s *RealmStore) FindMany(ctx context.Context, f repository.RealmFilter) ([]*domain.RealmRequest, error) {
	var (
		where []string
		args  []interface{}
	)
	if !f.IncludeArchived {
		where = append(where, "archived = FALSE")
	}
	if f.ContactIdirUserID != "" {
		args = append(args, f.ContactIdirUserID)
		n := len(args)
		where = append(where, fmt.Sprintf(`(lower(product_owner_idir_userid) = lower($%d)
			OR lower(technical_contact_idir_userid) = lower($%d)
			OR lower(second_technical_contact_idir_userid) = lower($%d))`, n, n, n))
	}
	if len(f.Statuses) > 0 {
		statuses := make([]string, len(f.Statuses))
		for i, st := range f.Statuses {
			statuses[i] = string(st)
		}
		args = append(args, statuses)
		where = append(where, fmt.Sprintf("status = ANY($%d)", len(args)))
	}

	query := `SELECT ` + realmColumns + ` FROM realm_requests`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY id"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list realm requests: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*domain.RealmRequest, error) {
		return scanRealm(row)
	})
	if err != nil {
		return nil, fmt.Errorf("scan realm requests: %w", err)
	}
	return out, nil
}

// Create inserts a new record.
func (s *RealmStore) Create(ctx context.Context, r *domain.RealmRequest) (*domain.RealmRequest, error) {
	row := s.pool.QueryRow(ctx, `INSERT INTO realm_requests (
			realm, purpose, product_name, primary_end_users, environments,
			product_owner_email, product_owner_idir_userid,
			technical_contact_email, technical_contact_idir_userid,
			second_technical_contact_email, second_technical_contact_idir_userid,
			ministry, division, branch, rc_channel, rc_channel_owned_by, material_to_send,
			approved, status, archived, pr_number, last_updated_by
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22)
		RETURNING `+realmColumns,
		r.Realm, r.Purpose, r.ProductName, nonNil(r.PrimaryEndUsers), envStrings(r.Environments),
		r.ProductOwnerEmail, r.ProductOwnerIdirUserID,
		r.TechnicalContactEmail, r.TechnicalContactIdirUserID,
		r.SecondTechnicalContactEmail, r.SecondTechnicalContactIdirUserID,
		r.Ministry, r.Division, r.Branch, r.RcChannel, r.RcChannelOwnedBy, r.MaterialToSend,
		r.Approved.Bool(), string(r.Status), r.Archived, r.PRNumber, r.LastUpdatedBy,
	)
	created, err := scanRealm(row)
	if isUniqueViolation(err) {
		return nil, repository.ErrDuplicateRealm
	}
	if err != nil {
		return nil, fmt.Errorf("insert realm request: %w", err)
	}
	return created, nil
}

// Update writes the record when the stored version (and status, if given)
// still matches the precondition. The realm name is never rewritten.
func (s *RealmStore) Update(ctx context.Context, r *domain.RealmRequest, pre repository.Precondition) (*domain.RealmRequest, error) {
	args := []interface{}{
		r.ID, r.Purpose, r.ProductName, nonNil(r.PrimaryEndUsers), envStrings(r.Environments),
		r.ProductOwnerEmail, r.ProductOwnerIdirUserID,
		r.TechnicalContactEmail, r.TechnicalContactIdirUserID,
		r.SecondTechnicalContactEmail, r.SecondTechnicalContactIdirUserID,
		r.Ministry, r.Division, r.Branch, r.RcChannel, r.RcChannelOwnedBy, r.MaterialToSend,
		r.Approved.Bool(), string(r.Status), r.Archived, r.PRNumber, r.LastUpdatedBy,
		pre.Version,
	}
	query := `UPDATE realm_requests SET
			purpose = $2, product_name = $3, primary_end_users = $4, environments = $5,
			product_owner_email = $6, product_owner_idir_userid = $7,
			technical_contact_email = $8, technical_contact_idir_userid = $9,
			second_technical_contact_email = $10, second_technical_contact_idir_userid = $11,
			ministry = $12, division = $13, branch = $14,
			rc_channel = $15, rc_channel_owned_by = $16, material_to_send = $17,
			approved = $18, status = $19, archived = $20, pr_number = $21, last_updated_by = $22,
			version = version + 1, updated_at = now()
		WHERE id = $1 AND version = $23`
	if pre.Status != nil {
		args = append(args, string(*pre.Status))
		query += " AND status = $24"
	}
	query += " RETURNING " + realmColumns

	updated, err := scanRealm(s.pool.QueryRow(ctx, query, args...))
	switch {
	case err == nil:
		return updated, nil
	case isUniqueViolation(err):
		return nil, repository.ErrDuplicateRealm
	case errors.Is(err, pgx.ErrNoRows):
		return nil, s.classifyMiss(ctx, r.ID)
	default:
		return nil, fmt.Errorf("update realm request %d: %w", r.ID, err)
	}
}

// classifyMiss tells a missing record apart from a lost precondition.
func (s *RealmStore) classifyMiss(ctx context.Context, id int64) error {
	var exists bool
	if err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM realm_requests WHERE id = $1)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("check realm request %d: %w", id, err)
	}
	if !exists {
		return repository.ErrNotFound
	}
	return repository.ErrPreconditionFailed
}

// RealmNameInUse reports whether an active record uses name.
func (s *RealmStore) RealmNameInUse(ctx context.Context, name string) (bool, error) {
	var inUse bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM realm_requests WHERE lower(realm) = lower($1) AND archived = FALSE)`,
		name,
	).Scan(&inUse)
	if err != nil {
		return false, fmt.Errorf("check realm name: %w", err)
	}
	return inUse, nil
}

func scanRealm(row pgx.Row) (*domain.RealmRequest, error) {
	var (
		r        domain.RealmRequest
		envs     []string
		approved *bool
		status   string
	)
	err := row.Scan(
		&r.ID, &r.Realm, &r.Purpose, &r.ProductName, &r.PrimaryEndUsers, &envs,
		&r.ProductOwnerEmail, &r.ProductOwnerIdirUserID,
		&r.TechnicalContactEmail, &r.TechnicalContactIdirUserID,
		&r.SecondTechnicalContactEmail, &r.SecondTechnicalContactIdirUserID,
		&r.Ministry, &r.Division, &r.Branch, &r.RcChannel, &r.RcChannelOwnedBy, &r.MaterialToSend,
		&approved, &status, &r.Archived, &r.PRNumber, &r.LastUpdatedBy, &r.Version, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	r.Environments = make([]domain.Environment, len(envs))
	for i, e := range envs {
		r.Environments[i] = domain.Environment(e)
	}
	r.Approved = domain.ApprovalFromBool(approved)
	r.Status = domain.Status(status)
	return &r, nil
}

func envStrings(envs []domain.Environment) []string {
	out := make([]string, len(envs))
	for i, e := range envs {
		out[i] = string(e)
	}
	return out
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
