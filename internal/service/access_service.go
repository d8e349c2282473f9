package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-access-api/internal/models"
	"github.com/noah-isme/sma-access-api/pkg/clock"
	"github.com/noah-isme/sma-access-api/pkg/export"
	appErrors "github.com/noah-isme/sma-access-api/pkg/errors"
)

const statisticsCacheKey = "access:statistics"

type accessRepository interface {
	List(ctx context.Context, filter models.AccessFilter) ([]models.TemporaryAccess, int, error)
	ListAll(ctx context.Context) ([]models.TemporaryAccess, error)
	FindByID(ctx context.Context, id string) (*models.TemporaryAccess, error)
	Create(ctx context.Context, grant *models.TemporaryAccess) error
	UpdateExpiry(ctx context.Context, id string, expiresAt, now, expectedUpdatedAt time.Time) (int64, error)
	Revoke(ctx context.Context, id string, note *string, now, expectedUpdatedAt time.Time) (int64, error)
	RevokeAllForUser(ctx context.Context, userID string, now time.Time) ([]string, error)
	DeactivateExpired(ctx context.Context, now time.Time) (int64, error)
	Statistics(ctx context.Context, now time.Time) (*models.AccessStatistics, error)
}

type userDirectory interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

type resourceDirectory interface {
	Exists(ctx context.Context, resourceType models.ResourceType, id string) (bool, error)
}

type accessEventStore interface {
	Create(ctx context.Context, event *models.AccessEvent) error
	ListByAccessID(ctx context.Context, accessID string) ([]models.AccessEvent, error)
}

// AccessService owns the lifecycle of temporary access grants.
type AccessService struct {
	repo        accessRepository
	users       userDirectory
	resources   resourceDirectory
	events      accessEventStore
	cache       *CacheService
	metrics     *MetricsService
	clock       clock.Clock
	validator   *validator.Validate
	logger      *zap.Logger
	statsTTL    time.Duration
	maxPageSize int
}

// NewAccessService constructs the service.
func NewAccessService(
	repo accessRepository,
	users userDirectory,
	resources resourceDirectory,
	events accessEventStore,
	cache *CacheService,
	metrics *MetricsService,
	clk clock.Clock,
	validate *validator.Validate,
	logger *zap.Logger,
	statsTTL time.Duration,
	maxPageSize int,
) *AccessService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if clk == nil {
		clk = clock.System()
	}
	if maxPageSize <= 0 {
		maxPageSize = 100
	}
	return &AccessService{
		repo:        repo,
		users:       users,
		resources:   resources,
		events:      events,
		cache:       cache,
		metrics:     metrics,
		clock:       clk,
		validator:   validate,
		logger:      logger,
		statsTTL:    statsTTL,
		maxPageSize: maxPageSize,
	}
}

// CreateAccessRequest describes the grant creation payload.
type CreateAccessRequest struct {
	UserID       string    `json:"user_id" validate:"required"`
	ResourceType string    `json:"resource_type" validate:"required"`
	ResourceID   string    `json:"resource_id" validate:"required"`
	StartDate    time.Time `json:"start_date" validate:"required"`
	ExpiresAt    time.Time `json:"expires_at" validate:"required"`
	Reason       string    `json:"reason" validate:"required"`
}

// ExtendAccessRequest moves the expiry window of an existing grant.
type ExtendAccessRequest struct {
	ExpiresAt time.Time `json:"expires_at" validate:"required"`
	Reason    string    `json:"reason" validate:"required"`
}

// RevokeAccessRequest carries the optional revocation note.
type RevokeAccessRequest struct {
	Note string `json:"note"`
}

// ListAccessRequest describes list filters.
type ListAccessRequest struct {
	ResourceType string
	Active       *bool
	Search       string
	Page         int
	Limit        int
}

// canGrant reports whether the actor may grant or revoke access to the
// given resource type. Admins cover every type; teachers only the resources
// they run themselves.
func canGrant(role models.UserRole, resourceType models.ResourceType) bool {
	switch role {
	case models.RoleSuperAdmin, models.RoleAdmin:
		return true
	case models.RoleTeacher:
		return resourceType == models.ResourceTypeExam || resourceType == models.ResourceTypeClass
	default:
		return false
	}
}

// Create grants a user temporary access to a resource.
func (s *AccessService) Create(ctx context.Context, actor *models.JWTClaims, req CreateAccessRequest) (*models.TemporaryAccess, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid access payload")
	}
	resourceType := models.ResourceType(req.ResourceType)
	if !resourceType.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown resource type %q", req.ResourceType))
	}
	if !req.ExpiresAt.After(req.StartDate) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "expires_at must be after start_date")
	}
	if !canGrant(actor.Role, resourceType) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "not allowed to grant access for this resource type")
	}

	grantee, err := s.users.FindByID(ctx, req.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "grantee not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load grantee")
	}
	if !grantee.Active {
		return nil, appErrors.Clone(appErrors.ErrValidation, "grantee account is inactive")
	}

	exists, err := s.resources.Exists(ctx, resourceType, req.ResourceID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check resource existence")
	}
	if !exists {
		return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("%s not found", resourceType))
	}

	now := s.clock.Now()
	grant := &models.TemporaryAccess{
		UserID:       req.UserID,
		ResourceType: resourceType,
		ResourceID:   req.ResourceID,
		GrantedBy:    actor.UserID,
		StartDate:    req.StartDate.UTC(),
		ExpiresAt:    req.ExpiresAt.UTC(),
		Reason:       req.Reason,
		Active:       true,
		CreatedAt:    now,
	}
	if err := s.repo.Create(ctx, grant); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create access grant")
	}

	s.recordEvent(ctx, &models.AccessEvent{
		AccessID:     grant.ID,
		Type:         models.AccessEventCreated,
		ActorID:      actor.UserID,
		Reason:       req.Reason,
		NewExpiresAt: &grant.ExpiresAt,
		CreatedAt:    now,
	})
	if s.metrics != nil {
		s.metrics.RecordGrantCreated(string(resourceType))
	}
	s.invalidateStatistics(ctx)

	grant.UserName = grantee.FullName
	grant.UserEmail = grantee.Email
	grant.GrantorName = actor.FullName
	grant.Status = grant.StatusAt(now)
	return grant, nil
}

// Extend lengthens a grant's window. Expired grants that were never revoked
// are reactivated; the returned flag reports that case.
func (s *AccessService) Extend(ctx context.Context, actor *models.JWTClaims, id string, req ExtendAccessRequest) (*models.TemporaryAccess, bool, error) {
	if actor == nil {
		return nil, false, appErrors.ErrUnauthorized
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid extend payload")
	}

	grant, err := s.loadGrant(ctx, id)
	if err != nil {
		return nil, false, err
	}
	if !canGrant(actor.Role, grant.ResourceType) {
		return nil, false, appErrors.Clone(appErrors.ErrForbidden, "not allowed to extend access for this resource type")
	}
	if grant.RevokedAt != nil {
		return nil, false, appErrors.Clone(appErrors.ErrInvalidState, "cannot extend a revoked grant")
	}
	newExpiry := req.ExpiresAt.UTC()
	if !newExpiry.After(grant.StartDate) {
		return nil, false, appErrors.Clone(appErrors.ErrValidation, "expires_at must be after start_date")
	}
	if !newExpiry.After(grant.ExpiresAt) {
		return nil, false, appErrors.Clone(appErrors.ErrValidation, "expires_at must extend the current expiry")
	}

	now := s.clock.Now()
	reactivated := !grant.Active || now.After(grant.ExpiresAt)

	affected, err := s.repo.UpdateExpiry(ctx, grant.ID, newExpiry, now, grant.UpdatedAt)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to extend access grant")
	}
	if affected == 0 {
		return nil, false, appErrors.Clone(appErrors.ErrConflict, "grant was modified concurrently")
	}

	previous := grant.ExpiresAt
	s.recordEvent(ctx, &models.AccessEvent{
		AccessID:          grant.ID,
		Type:              models.AccessEventExtended,
		ActorID:           actor.UserID,
		Reason:            req.Reason,
		PreviousExpiresAt: &previous,
		NewExpiresAt:      &newExpiry,
		CreatedAt:         now,
	})
	if s.metrics != nil {
		s.metrics.RecordGrantExtended(string(grant.ResourceType))
	}
	s.invalidateStatistics(ctx)

	grant.ExpiresAt = newExpiry
	grant.Active = true
	grant.UpdatedAt = now
	grant.Status = grant.StatusAt(now)
	return grant, reactivated, nil
}

// Revoke deactivates a grant explicitly. Revoking twice is rejected and the
// original revoked_at is never overwritten.
func (s *AccessService) Revoke(ctx context.Context, actor *models.JWTClaims, id string, req RevokeAccessRequest) (*models.TemporaryAccess, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}

	grant, err := s.loadGrant(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canGrant(actor.Role, grant.ResourceType) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "not allowed to revoke access for this resource type")
	}
	if grant.RevokedAt != nil {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "grant is already revoked")
	}

	now := s.clock.Now()
	var note *string
	if req.Note != "" {
		note = &req.Note
	}
	affected, err := s.repo.Revoke(ctx, grant.ID, note, now, grant.UpdatedAt)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to revoke access grant")
	}
	if affected == 0 {
		return nil, appErrors.Clone(appErrors.ErrConflict, "grant was modified concurrently")
	}

	s.recordEvent(ctx, &models.AccessEvent{
		AccessID:  grant.ID,
		Type:      models.AccessEventRevoked,
		ActorID:   actor.UserID,
		Reason:    req.Note,
		CreatedAt: now,
	})
	if s.metrics != nil {
		s.metrics.RecordGrantRevoked(string(grant.ResourceType))
	}
	s.invalidateStatistics(ctx)

	grant.Active = false
	grant.RevokedAt = &now
	grant.RevocationNote = note
	grant.UpdatedAt = now
	grant.Status = grant.StatusAt(now)
	return grant, nil
}

// RevokeAllForUser revokes every active grant of a user and returns the count.
func (s *AccessService) RevokeAllForUser(ctx context.Context, actor *models.JWTClaims, userID string) (int, error) {
	if actor == nil {
		return 0, appErrors.ErrUnauthorized
	}
	// Bulk revocation crosses resource types, so only admins may run it.
	if actor.Role != models.RoleSuperAdmin && actor.Role != models.RoleAdmin {
		return 0, appErrors.Clone(appErrors.ErrForbidden, "not allowed to bulk revoke access")
	}
	if _, err := s.users.FindByID(ctx, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}

	now := s.clock.Now()
	ids, err := s.repo.RevokeAllForUser(ctx, userID, now)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to bulk revoke access grants")
	}

	for _, id := range ids {
		s.recordEvent(ctx, &models.AccessEvent{
			AccessID:  id,
			Type:      models.AccessEventRevoked,
			ActorID:   actor.UserID,
			Reason:    "bulk revocation",
			CreatedAt: now,
		})
	}
	if s.metrics != nil && len(ids) > 0 {
		s.metrics.AddGrantsRevoked(len(ids))
	}
	if len(ids) > 0 {
		s.invalidateStatistics(ctx)
	}
	return len(ids), nil
}

// Get returns a single grant with its computed status.
func (s *AccessService) Get(ctx context.Context, id string) (*models.TemporaryAccess, error) {
	grant, err := s.loadGrant(ctx, id)
	if err != nil {
		return nil, err
	}
	grant.Status = grant.StatusAt(s.clock.Now())
	return grant, nil
}

// Events returns the lifecycle history of a grant.
func (s *AccessService) Events(ctx context.Context, id string) ([]models.AccessEvent, error) {
	if _, err := s.loadGrant(ctx, id); err != nil {
		return nil, err
	}
	events, err := s.events.ListByAccessID(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list access events")
	}
	return events, nil
}

// List returns a page of grants with computed statuses. The active filter
// matches the stored flag only; expiry is reflected in each row's status.
func (s *AccessService) List(ctx context.Context, req ListAccessRequest) ([]models.TemporaryAccess, *models.Pagination, error) {
	filter := models.AccessFilter{
		Active:   req.Active,
		Search:   req.Search,
		Page:     req.Page,
		PageSize: req.Limit,
	}
	if req.ResourceType != "" {
		resourceType := models.ResourceType(req.ResourceType)
		if !resourceType.Valid() {
			return nil, nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown resource type %q", req.ResourceType))
		}
		filter.ResourceType = resourceType
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 20
	}
	if filter.PageSize > s.maxPageSize {
		filter.PageSize = s.maxPageSize
	}

	grants, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list access grants")
	}
	now := s.clock.Now()
	for i := range grants {
		grants[i].Status = grants[i].StatusAt(now)
	}
	return grants, models.NewPagination(filter.Page, filter.PageSize, total), nil
}

// Statistics returns aggregate counts, served from cache when fresh.
// Failures propagate; the caller never receives zeroed defaults.
func (s *AccessService) Statistics(ctx context.Context) (*models.AccessStatistics, error) {
	var cached models.AccessStatistics
	if hit, err := s.cache.Get(ctx, statisticsCacheKey, &cached); err == nil && hit {
		return &cached, nil
	}

	stats, err := s.repo.Statistics(ctx, s.clock.Now())
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to compute access statistics")
	}
	if err := s.cache.Set(ctx, statisticsCacheKey, stats, s.statsTTL); err != nil {
		s.logger.Warn("failed to cache access statistics", zap.Error(err))
	}
	return stats, nil
}

// Cleanup deactivates every past-expiry grant in one conditional update.
// Running it twice in a row deactivates nothing the second time.
func (s *AccessService) Cleanup(ctx context.Context) (int64, error) {
	now := s.clock.Now()
	deactivated, err := s.repo.DeactivateExpired(ctx, now)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to deactivate expired grants")
	}
	if deactivated > 0 {
		if s.metrics != nil {
			s.metrics.AddSweepDeactivated(deactivated)
		}
		s.invalidateStatistics(ctx)
		s.logger.Info("expired grants deactivated", zap.Int64("count", deactivated))
	}
	return deactivated, nil
}

// Export renders the full grant register in the requested format.
func (s *AccessService) Export(ctx context.Context, format string) ([]byte, string, error) {
	grants, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load grants for export")
	}
	now := s.clock.Now()

	table := export.Table{
		Headers: []string{"ID", "User", "Resource Type", "Resource ID", "Granted By", "Start", "Expires", "Status", "Reason"},
	}
	for i := range grants {
		g := &grants[i]
		table.Rows = append(table.Rows, map[string]string{
			"ID":            g.ID,
			"User":          g.UserName,
			"Resource Type": string(g.ResourceType),
			"Resource ID":   g.ResourceID,
			"Granted By":    g.GrantorName,
			"Start":         g.StartDate.Format(time.RFC3339),
			"Expires":       g.ExpiresAt.Format(time.RFC3339),
			"Status":        string(g.StatusAt(now)),
			"Reason":        g.Reason,
		})
	}

	switch format {
	case "csv":
		payload, err := export.CSV(table)
		if err != nil {
			return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv export")
		}
		return payload, "text/csv", nil
	case "pdf":
		payload, err := export.PDF(table, "Temporary Access Register")
		if err != nil {
			return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf export")
		}
		return payload, "application/pdf", nil
	default:
		return nil, "", appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
	}
}

func (s *AccessService) loadGrant(ctx context.Context, id string) (*models.TemporaryAccess, error) {
	grant, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "access grant not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load access grant")
	}
	return grant, nil
}

// recordEvent appends history best-effort; a failed event write never fails
// the grant mutation it describes.
func (s *AccessService) recordEvent(ctx context.Context, event *models.AccessEvent) {
	if s.events == nil {
		return
	}
	if err := s.events.Create(ctx, event); err != nil {
		s.logger.Warn("failed to record access event",
			zap.String("access_id", event.AccessID),
			zap.String("event_type", string(event.Type)),
			zap.Error(err))
	}
}

func (s *AccessService) invalidateStatistics(ctx context.Context) {
	if err := s.cache.Invalidate(ctx, "access:*"); err != nil {
		s.logger.Warn("failed to invalidate statistics cache", zap.Error(err))
	}
}
