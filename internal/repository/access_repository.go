package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-access-api/internal/models"
)

const accessSelectColumns = `ta.id, ta.user_id, ta.resource_type, ta.resource_id, ta.granted_by, ta.start_date, ta.expires_at, ta.reason, ta.active, ta.revoked_at, ta.revocation_note, ta.created_at, ta.updated_at,
       u.full_name AS user_name, u.email AS user_email, g.full_name AS grantor_name`

const accessFromClause = `FROM temporary_access ta
JOIN users u ON u.id = ta.user_id
JOIN users g ON g.id = ta.granted_by`

// AccessRepository manages persistence for temporary access grants.
type AccessRepository struct {
	db *sqlx.DB
}

// NewAccessRepository constructs a new repository.
func NewAccessRepository(db *sqlx.DB) *AccessRepository {
	return &AccessRepository{db: db}
}

// List returns grants per provided filter along with the total count.
func (r *AccessRepository) List(ctx context.Context, filter models.AccessFilter) ([]models.TemporaryAccess, int, error) {
	where := []string{"1=1"}
	args := []interface{}{}
	if filter.ResourceType != "" {
		where = append(where, fmt.Sprintf("ta.resource_type = $%d", len(args)+1))
		args = append(args, filter.ResourceType)
	}
	if filter.Active != nil {
		where = append(where, fmt.Sprintf("ta.active = $%d", len(args)+1))
		args = append(args, *filter.Active)
	}
	if filter.Search != "" {
		idx := len(args) + 1
		where = append(where, fmt.Sprintf("(u.full_name ILIKE $%d OR u.email ILIKE $%d)", idx, idx))
		args = append(args, "%"+filter.Search+"%")
	}
	whereClause := strings.Join(where, " AND ")

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT %s
%s WHERE %s ORDER BY ta.created_at DESC, ta.id DESC LIMIT %d OFFSET %d`,
		accessSelectColumns, accessFromClause, whereClause, size, offset)
	var grants []models.TemporaryAccess
	if err := r.db.SelectContext(ctx, &grants, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list temporary access: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s WHERE %s", accessFromClause, whereClause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count temporary access: %w", err)
	}
	return grants, total, nil
}

// ListAll returns every grant with display fields, newest first.
func (r *AccessRepository) ListAll(ctx context.Context) ([]models.TemporaryAccess, error) {
	query := fmt.Sprintf("SELECT %s\n%s ORDER BY ta.created_at DESC, ta.id DESC", accessSelectColumns, accessFromClause)
	var grants []models.TemporaryAccess
	if err := r.db.SelectContext(ctx, &grants, query); err != nil {
		return nil, fmt.Errorf("list all temporary access: %w", err)
	}
	return grants, nil
}

// FindByID loads a single grant with display fields.
func (r *AccessRepository) FindByID(ctx context.Context, id string) (*models.TemporaryAccess, error) {
	query := fmt.Sprintf("SELECT %s\n%s WHERE ta.id = $1", accessSelectColumns, accessFromClause)
	var grant models.TemporaryAccess
	if err := r.db.GetContext(ctx, &grant, query, id); err != nil {
		return nil, err
	}
	return &grant, nil
}

// Create inserts a new grant.
func (r *AccessRepository) Create(ctx context.Context, grant *models.TemporaryAccess) error {
	if grant.ID == "" {
		grant.ID = uuid.NewString()
	}
	if grant.CreatedAt.IsZero() {
		grant.CreatedAt = time.Now().UTC()
	}
	grant.UpdatedAt = grant.CreatedAt
	query := `INSERT INTO temporary_access (id, user_id, resource_type, resource_id, granted_by, start_date, expires_at, reason, active, revoked_at, revocation_note, created_at, updated_at)
VALUES (:id, :user_id, :resource_type, :resource_id, :granted_by, :start_date, :expires_at, :reason, :active, :revoked_at, :revocation_note, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, grant); err != nil {
		return fmt.Errorf("create temporary access: %w", err)
	}
	return nil
}

// UpdateExpiry moves the expiry window and re-activates the grant. The
// update is conditional on updated_at so a concurrent revoke loses no data;
// zero rows affected means the caller raced another writer.
func (r *AccessRepository) UpdateExpiry(ctx context.Context, id string, expiresAt, now, expectedUpdatedAt time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE temporary_access SET expires_at = $1, active = TRUE, updated_at = $2 WHERE id = $3 AND updated_at = $4 AND revoked_at IS NULL`,
		expiresAt, now, id, expectedUpdatedAt)
	if err != nil {
		return 0, fmt.Errorf("extend temporary access: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("extend temporary access rows: %w", err)
	}
	return affected, nil
}

// Revoke deactivates a grant exactly once, guarded by updated_at.
func (r *AccessRepository) Revoke(ctx context.Context, id string, note *string, now, expectedUpdatedAt time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE temporary_access SET active = FALSE, revoked_at = $1, revocation_note = $2, updated_at = $1 WHERE id = $3 AND updated_at = $4 AND revoked_at IS NULL`,
		now, note, id, expectedUpdatedAt)
	if err != nil {
		return 0, fmt.Errorf("revoke temporary access: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("revoke temporary access rows: %w", err)
	}
	return affected, nil
}

// RevokeAllForUser revokes every unrevoked active grant of a user in one
// conditional update and returns the affected ids.
func (r *AccessRepository) RevokeAllForUser(ctx context.Context, userID string, now time.Time) ([]string, error) {
	var ids []string
	err := r.db.SelectContext(ctx, &ids,
		`UPDATE temporary_access SET active = FALSE, revoked_at = $1, updated_at = $1 WHERE user_id = $2 AND active = TRUE AND revoked_at IS NULL RETURNING id`,
		now, userID)
	if err != nil {
		return nil, fmt.Errorf("bulk revoke temporary access: %w", err)
	}
	return ids, nil
}

// DeactivateExpired flips past-expiry grants inactive. revoked_at is left
// untouched so swept records never classify as revoked. The single
// conditional update makes concurrent sweeps converge.
func (r *AccessRepository) DeactivateExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE temporary_access SET active = FALSE, updated_at = $1 WHERE active = TRUE AND expires_at < $1`,
		now)
	if err != nil {
		return 0, fmt.Errorf("deactivate expired access: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("deactivate expired access rows: %w", err)
	}
	return affected, nil
}

// Statistics aggregates grant counts relative to now.
func (r *AccessRepository) Statistics(ctx context.Context, now time.Time) (*models.AccessStatistics, error) {
	stats := &models.AccessStatistics{
		ByResourceType: make(map[models.ResourceType]int),
		GeneratedAt:    now,
	}

	query := `SELECT COUNT(*) AS total,
       COUNT(*) FILTER (WHERE active = TRUE AND expires_at >= $1) AS active,
       COUNT(*) FILTER (WHERE expires_at < $1) AS expired,
       COUNT(*) FILTER (WHERE revoked_at IS NOT NULL) AS revoked
FROM temporary_access`
	if err := r.db.QueryRowxContext(ctx, query, now).Scan(&stats.Total, &stats.Active, &stats.Expired, &stats.Revoked); err != nil {
		return nil, fmt.Errorf("access statistics: %w", err)
	}

	rows, err := r.db.QueryxContext(ctx, `SELECT resource_type, COUNT(*) FROM temporary_access GROUP BY resource_type`)
	if err != nil {
		return nil, fmt.Errorf("access statistics by type: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var rt models.ResourceType
		var count int
		if err := rows.Scan(&rt, &count); err != nil {
			return nil, fmt.Errorf("scan access statistics by type: %w", err)
		}
		stats.ByResourceType[rt] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate access statistics by type: %w", err)
	}
	return stats, nil
}
