package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-access-api/internal/models"
)

// ResourceRepository checks existence of grantable resources.
type ResourceRepository struct {
	db *sqlx.DB
}

// NewResourceRepository constructs a new repository.
func NewResourceRepository(db *sqlx.DB) *ResourceRepository {
	return &ResourceRepository{db: db}
}

// Exists reports whether a resource of the given type exists.
func (r *ResourceRepository) Exists(ctx context.Context, resourceType models.ResourceType, id string) (bool, error) {
	var table string
	switch resourceType {
	case models.ResourceTypeExam:
		table = "exams"
	case models.ResourceTypeClass:
		table = "classes"
	case models.ResourceTypeMaterial:
		table = "materials"
	default:
		return false, fmt.Errorf("unknown resource type %q", resourceType)
	}

	var exists bool
	query := fmt.Sprintf("SELECT EXISTS(SELECT 1 FROM %s WHERE id = $1)", table)
	if err := r.db.GetContext(ctx, &exists, query, id); err != nil {
		return false, fmt.Errorf("check %s existence: %w", table, err)
	}
	return exists, nil
}
