package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-access-api/internal/models"
)

// AccessEventRepository persists the append-only grant history.
type AccessEventRepository struct {
	db *sqlx.DB
}

// NewAccessEventRepository constructs a new repository.
func NewAccessEventRepository(db *sqlx.DB) *AccessEventRepository {
	return &AccessEventRepository{db: db}
}

// Create appends one lifecycle event. Events are never updated or deleted.
func (r *AccessEventRepository) Create(ctx context.Context, event *models.AccessEvent) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	query := `INSERT INTO access_events (id, access_id, event_type, actor_id, reason, previous_expires_at, new_expires_at, created_at)
VALUES (:id, :access_id, :event_type, :actor_id, :reason, :previous_expires_at, :new_expires_at, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, event); err != nil {
		return fmt.Errorf("create access event: %w", err)
	}
	return nil
}

// ListByAccessID returns a grant's history, oldest first.
func (r *AccessEventRepository) ListByAccessID(ctx context.Context, accessID string) ([]models.AccessEvent, error) {
	query := `SELECT id, access_id, event_type, actor_id, reason, previous_expires_at, new_expires_at, created_at
FROM access_events WHERE access_id = $1 ORDER BY created_at ASC, id ASC`
	var events []models.AccessEvent
	if err := r.db.SelectContext(ctx, &events, query, accessID); err != nil {
		return nil, fmt.Errorf("list access events: %w", err)
	}
	return events, nil
}
