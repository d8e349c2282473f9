package handler

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-access-api/internal/models"
	"github.com/noah-isme/sma-access-api/internal/service"
	appErrors "github.com/noah-isme/sma-access-api/pkg/errors"
	"github.com/noah-isme/sma-access-api/pkg/response"
)

type accessService interface {
	Create(ctx context.Context, actor *models.JWTClaims, req service.CreateAccessRequest) (*models.TemporaryAccess, error)
	Extend(ctx context.Context, actor *models.JWTClaims, id string, req service.ExtendAccessRequest) (*models.TemporaryAccess, bool, error)
	Revoke(ctx context.Context, actor *models.JWTClaims, id string, req service.RevokeAccessRequest) (*models.TemporaryAccess, error)
	RevokeAllForUser(ctx context.Context, actor *models.JWTClaims, userID string) (int, error)
	Get(ctx context.Context, id string) (*models.TemporaryAccess, error)
	Events(ctx context.Context, id string) ([]models.AccessEvent, error)
	List(ctx context.Context, req service.ListAccessRequest) ([]models.TemporaryAccess, *models.Pagination, error)
	Statistics(ctx context.Context) (*models.AccessStatistics, error)
	Cleanup(ctx context.Context) (int64, error)
	Export(ctx context.Context, format string) ([]byte, string, error)
}

// AccessHandler exposes temporary access endpoints.
type AccessHandler struct {
	service accessService
}

// NewAccessHandler constructs an access handler.
func NewAccessHandler(svc accessService) *AccessHandler {
	return &AccessHandler{service: svc}
}

// List godoc
// @Summary List temporary access grants
// @Description List grants with filters and computed statuses
// @Tags Temporary Access
// @Produce json
// @Param resourceType query string false "Filter by resource type"
// @Param active query bool false "Filter by stored active flag"
// @Param search query string false "Search grantee name or email"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /temporary-access [get]
func (h *AccessHandler) List(c *gin.Context) {
	var req service.ListAccessRequest
	req.ResourceType = c.Query("resourceType")
	req.Search = c.Query("search")
	if active := c.Query("active"); active != "" {
		if val, err := strconv.ParseBool(active); err == nil {
			req.Active = &val
		}
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		req.Page = page
	}
	if limit, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		req.Limit = limit
	}

	grants, pagination, err := h.service.List(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, grants, pagination)
}

// Statistics godoc
// @Summary Grant statistics
// @Tags Temporary Access
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /temporary-access/statistics [get]
func (h *AccessHandler) Statistics(c *gin.Context) {
	stats, err := h.service.Statistics(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil)
}

// Export godoc
// @Summary Export the grant register
// @Tags Temporary Access
// @Produce text/csv
// @Param format query string false "Export format (csv or pdf)"
// @Success 200 {string} string "exported register"
// @Router /temporary-access/export [get]
func (h *AccessHandler) Export(c *gin.Context) {
	format := c.DefaultQuery("format", "csv")
	payload, contentType, err := h.service.Export(c.Request.Context(), format)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=temporary-access.%s", format))
	c.Data(http.StatusOK, contentType, payload)
}

// Get godoc
// @Summary Get one grant
// @Tags Temporary Access
// @Produce json
// @Param id path string true "Access ID"
// @Success 200 {object} response.Envelope
// @Router /temporary-access/{id} [get]
func (h *AccessHandler) Get(c *gin.Context) {
	grant, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, grant, nil)
}

// Events godoc
// @Summary Grant lifecycle history
// @Tags Temporary Access
// @Produce json
// @Param id path string true "Access ID"
// @Success 200 {object} response.Envelope
// @Router /temporary-access/{id}/events [get]
func (h *AccessHandler) Events(c *gin.Context) {
	events, err := h.service.Events(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, events, nil)
}

// Create godoc
// @Summary Grant temporary access
// @Tags Temporary Access
// @Accept json
// @Produce json
// @Param payload body service.CreateAccessRequest true "Grant payload"
// @Success 201 {object} response.Envelope
// @Router /temporary-access [post]
func (h *AccessHandler) Create(c *gin.Context) {
	var req service.CreateAccessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	grant, err := h.service.Create(c.Request.Context(), claimsFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, grant)
}

// Extend godoc
// @Summary Extend a grant's expiry
// @Tags Temporary Access
// @Accept json
// @Produce json
// @Param id path string true "Access ID"
// @Param payload body service.ExtendAccessRequest true "Extend payload"
// @Success 200 {object} response.Envelope
// @Router /temporary-access/{id}/extend [patch]
func (h *AccessHandler) Extend(c *gin.Context) {
	var req service.ExtendAccessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	grant, reactivated, err := h.service.Extend(c.Request.Context(), claimsFromContext(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	var meta map[string]interface{}
	if reactivated {
		meta = map[string]interface{}{"reactivated": true}
	}
	response.JSON(c, http.StatusOK, grant, nil, meta)
}

// Revoke godoc
// @Summary Revoke a grant
// @Tags Temporary Access
// @Accept json
// @Produce json
// @Param id path string true "Access ID"
// @Param payload body service.RevokeAccessRequest false "Optional revocation note"
// @Success 200 {object} response.Envelope
// @Router /temporary-access/{id} [delete]
func (h *AccessHandler) Revoke(c *gin.Context) {
	var req service.RevokeAccessRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
			return
		}
	}
	grant, err := h.service.Revoke(c.Request.Context(), claimsFromContext(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, grant, nil)
}

// RevokeAllForUser godoc
// @Summary Revoke every active grant of a user
// @Tags Temporary Access
// @Produce json
// @Param userId path string true "User ID"
// @Success 200 {object} response.Envelope
// @Router /temporary-access/user/{userId} [delete]
func (h *AccessHandler) RevokeAllForUser(c *gin.Context) {
	count, err := h.service.RevokeAllForUser(c.Request.Context(), claimsFromContext(c), c.Param("userId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"revoked": count}, nil)
}

// Cleanup godoc
// @Summary Deactivate expired grants
// @Tags Temporary Access
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /temporary-access/cleanup [post]
func (h *AccessHandler) Cleanup(c *gin.Context) {
	deactivated, err := h.service.Cleanup(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"deactivated": deactivated}, nil)
}
