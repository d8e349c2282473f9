package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-access-api/internal/middleware"
	"github.com/noah-isme/sma-access-api/internal/models"
	"github.com/noah-isme/sma-access-api/internal/service"
	appErrors "github.com/noah-isme/sma-access-api/pkg/errors"
	"github.com/noah-isme/sma-access-api/pkg/response"
)

type accessServiceMock struct {
	grant       *models.TemporaryAccess
	grantErr    error
	reactivated bool
	listResp    []models.TemporaryAccess
	listPage    *models.Pagination
	listErr     error
	statsResp   *models.AccessStatistics
	statsErr    error
	events      []models.AccessEvent
	revokeCount int
	cleanupN    int64
	exportBody  []byte
	exportType  string
	exportErr   error

	lastListReq   service.ListAccessRequest
	lastCreateReq service.CreateAccessRequest
	lastExtendReq service.ExtendAccessRequest
	lastRevokeReq service.RevokeAccessRequest
	lastID        string
}

func (m *accessServiceMock) Create(ctx context.Context, actor *models.JWTClaims, req service.CreateAccessRequest) (*models.TemporaryAccess, error) {
	m.lastCreateReq = req
	return m.grant, m.grantErr
}

func (m *accessServiceMock) Extend(ctx context.Context, actor *models.JWTClaims, id string, req service.ExtendAccessRequest) (*models.TemporaryAccess, bool, error) {
	m.lastID = id
	m.lastExtendReq = req
	return m.grant, m.reactivated, m.grantErr
}

func (m *accessServiceMock) Revoke(ctx context.Context, actor *models.JWTClaims, id string, req service.RevokeAccessRequest) (*models.TemporaryAccess, error) {
	m.lastID = id
	m.lastRevokeReq = req
	return m.grant, m.grantErr
}

func (m *accessServiceMock) RevokeAllForUser(ctx context.Context, actor *models.JWTClaims, userID string) (int, error) {
	m.lastID = userID
	return m.revokeCount, m.grantErr
}

func (m *accessServiceMock) Get(ctx context.Context, id string) (*models.TemporaryAccess, error) {
	m.lastID = id
	return m.grant, m.grantErr
}

func (m *accessServiceMock) Events(ctx context.Context, id string) ([]models.AccessEvent, error) {
	m.lastID = id
	return m.events, m.grantErr
}

func (m *accessServiceMock) List(ctx context.Context, req service.ListAccessRequest) ([]models.TemporaryAccess, *models.Pagination, error) {
	m.lastListReq = req
	return m.listResp, m.listPage, m.listErr
}

func (m *accessServiceMock) Statistics(ctx context.Context) (*models.AccessStatistics, error) {
	return m.statsResp, m.statsErr
}

func (m *accessServiceMock) Cleanup(ctx context.Context) (int64, error) {
	return m.cleanupN, m.grantErr
}

func (m *accessServiceMock) Export(ctx context.Context, format string) ([]byte, string, error) {
	return m.exportBody, m.exportType, m.exportErr
}

func newAccessTestContext(t *testing.T, method, target string, body []byte) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	var reader *bytes.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, target, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.Request = req
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin, FullName: "Admin One"})
	return c, w
}

func TestAccessHandlerList(t *testing.T) {
	mockSvc := &accessServiceMock{
		listResp: []models.TemporaryAccess{{ID: "a1", Status: models.AccessStatusActive}},
		listPage: models.NewPagination(2, 10, 11),
	}
	handler := NewAccessHandler(mockSvc)

	c, w := newAccessTestContext(t, http.MethodGet, "/temporary-access?resourceType=EXAM&active=true&search=one&page=2&limit=10", nil)
	handler.List(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "EXAM", mockSvc.lastListReq.ResourceType)
	require.NotNil(t, mockSvc.lastListReq.Active)
	assert.True(t, *mockSvc.lastListReq.Active)
	assert.Equal(t, "one", mockSvc.lastListReq.Search)
	assert.Equal(t, 2, mockSvc.lastListReq.Page)
	assert.Equal(t, 10, mockSvc.lastListReq.Limit)

	var envelope response.Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.NotNil(t, envelope.Pagination)
	assert.Equal(t, 11, envelope.Pagination.Total)
	assert.Equal(t, 2, envelope.Pagination.TotalPages)
}

func TestAccessHandlerCreate(t *testing.T) {
	mockSvc := &accessServiceMock{
		grant: &models.TemporaryAccess{ID: "a1", Status: models.AccessStatusActive},
	}
	handler := NewAccessHandler(mockSvc)

	payload, _ := json.Marshal(service.CreateAccessRequest{
		UserID:       "student-1",
		ResourceType: "EXAM",
		ResourceID:   "exam-1",
		StartDate:    time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC),
		ExpiresAt:    time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC),
		Reason:       "makeup exam",
	})
	c, w := newAccessTestContext(t, http.MethodPost, "/temporary-access", payload)
	handler.Create(c)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "student-1", mockSvc.lastCreateReq.UserID)
}

func TestAccessHandlerCreateInvalidBody(t *testing.T) {
	handler := NewAccessHandler(&accessServiceMock{})

	c, w := newAccessTestContext(t, http.MethodPost, "/temporary-access", []byte(`{"user_id":`))
	handler.Create(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAccessHandlerExtendReactivatedMeta(t *testing.T) {
	mockSvc := &accessServiceMock{
		grant:       &models.TemporaryAccess{ID: "a1", Status: models.AccessStatusActive},
		reactivated: true,
	}
	handler := NewAccessHandler(mockSvc)

	payload, _ := json.Marshal(service.ExtendAccessRequest{
		ExpiresAt: time.Date(2026, 3, 5, 8, 0, 0, 0, time.UTC),
		Reason:    "second chance",
	})
	c, w := newAccessTestContext(t, http.MethodPatch, "/temporary-access/a1/extend", payload)
	c.Params = gin.Params{{Key: "id", Value: "a1"}}
	handler.Extend(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "a1", mockSvc.lastID)

	var envelope response.Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.NotNil(t, envelope.Meta)
	assert.Equal(t, true, envelope.Meta["reactivated"])
}

func TestAccessHandlerExtendConflict(t *testing.T) {
	mockSvc := &accessServiceMock{grantErr: appErrors.ErrInvalidState}
	handler := NewAccessHandler(mockSvc)

	payload, _ := json.Marshal(service.ExtendAccessRequest{
		ExpiresAt: time.Date(2026, 3, 5, 8, 0, 0, 0, time.UTC),
		Reason:    "late",
	})
	c, w := newAccessTestContext(t, http.MethodPatch, "/temporary-access/a1/extend", payload)
	c.Params = gin.Params{{Key: "id", Value: "a1"}}
	handler.Extend(c)

	require.Equal(t, http.StatusConflict, w.Code)
}

func TestAccessHandlerRevokeWithoutBody(t *testing.T) {
	mockSvc := &accessServiceMock{
		grant: &models.TemporaryAccess{ID: "a1", Status: models.AccessStatusRevoked},
	}
	handler := NewAccessHandler(mockSvc)

	c, w := newAccessTestContext(t, http.MethodDelete, "/temporary-access/a1", nil)
	c.Params = gin.Params{{Key: "id", Value: "a1"}}
	handler.Revoke(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "a1", mockSvc.lastID)
	assert.Empty(t, mockSvc.lastRevokeReq.Note)
}

func TestAccessHandlerRevokeWithNote(t *testing.T) {
	mockSvc := &accessServiceMock{
		grant: &models.TemporaryAccess{ID: "a1", Status: models.AccessStatusRevoked},
	}
	handler := NewAccessHandler(mockSvc)

	c, w := newAccessTestContext(t, http.MethodDelete, "/temporary-access/a1", []byte(`{"note":"misuse"}`))
	c.Params = gin.Params{{Key: "id", Value: "a1"}}
	handler.Revoke(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "misuse", mockSvc.lastRevokeReq.Note)
}

func TestAccessHandlerRevokeAllForUser(t *testing.T) {
	mockSvc := &accessServiceMock{revokeCount: 3}
	handler := NewAccessHandler(mockSvc)

	c, w := newAccessTestContext(t, http.MethodDelete, "/temporary-access/user/student-1", nil)
	c.Params = gin.Params{{Key: "userId", Value: "student-1"}}
	handler.RevokeAllForUser(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "student-1", mockSvc.lastID)
	assert.Contains(t, w.Body.String(), `"revoked":3`)
}

func TestAccessHandlerCleanup(t *testing.T) {
	mockSvc := &accessServiceMock{cleanupN: 5}
	handler := NewAccessHandler(mockSvc)

	c, w := newAccessTestContext(t, http.MethodPost, "/temporary-access/cleanup", nil)
	handler.Cleanup(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"deactivated":5`)
}

func TestAccessHandlerStatisticsError(t *testing.T) {
	mockSvc := &accessServiceMock{statsErr: appErrors.ErrInternal}
	handler := NewAccessHandler(mockSvc)

	c, w := newAccessTestContext(t, http.MethodGet, "/temporary-access/statistics", nil)
	handler.Statistics(c)

	require.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestAccessHandlerGetNotFound(t *testing.T) {
	mockSvc := &accessServiceMock{grantErr: appErrors.ErrNotFound}
	handler := NewAccessHandler(mockSvc)

	c, w := newAccessTestContext(t, http.MethodGet, "/temporary-access/missing", nil)
	c.Params = gin.Params{{Key: "id", Value: "missing"}}
	handler.Get(c)

	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestAccessHandlerExport(t *testing.T) {
	mockSvc := &accessServiceMock{exportBody: []byte("ID,User\n"), exportType: "text/csv"}
	handler := NewAccessHandler(mockSvc)

	c, w := newAccessTestContext(t, http.MethodGet, "/temporary-access/export?format=csv", nil)
	handler.Export(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "temporary-access.csv")
}

func TestAccessHandlerEvents(t *testing.T) {
	mockSvc := &accessServiceMock{
		events: []models.AccessEvent{{ID: "e1", AccessID: "a1", Type: models.AccessEventCreated}},
	}
	handler := NewAccessHandler(mockSvc)

	c, w := newAccessTestContext(t, http.MethodGet, "/temporary-access/a1/events", nil)
	c.Params = gin.Params{{Key: "id", Value: "a1"}}
	handler.Events(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "a1", mockSvc.lastID)
}
