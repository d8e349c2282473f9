package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-access-api/internal/models"
)

func newAccessRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func accessRows(now time.Time) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "user_id", "resource_type", "resource_id", "granted_by", "start_date", "expires_at",
		"reason", "active", "revoked_at", "revocation_note", "created_at", "updated_at",
		"user_name", "user_email", "grantor_name",
	}).AddRow(
		"a1", "student-1", "EXAM", "exam-1", "admin-1", now.Add(-time.Hour), now.Add(24*time.Hour),
		"makeup exam", true, nil, nil, now, now,
		"Student One", "s1@example.com", "Admin One",
	)
}

func TestAccessRepositoryList(t *testing.T) {
	db, mock, cleanup := newAccessRepoMock(t)
	defer cleanup()
	repo := NewAccessRepository(db)
	now := time.Now().UTC()

	mock.ExpectQuery(`SELECT ta\.id,`).
		WithArgs("EXAM", true).
		WillReturnRows(accessRows(now))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*)")).
		WithArgs("EXAM", true).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	active := true
	list, total, err := repo.List(context.Background(), models.AccessFilter{
		ResourceType: models.ResourceTypeExam,
		Active:       &active,
	})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, 1, total)
	assert.Equal(t, "Student One", list[0].UserName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccessRepositoryListSearch(t *testing.T) {
	db, mock, cleanup := newAccessRepoMock(t)
	defer cleanup()
	repo := NewAccessRepository(db)
	now := time.Now().UTC()

	mock.ExpectQuery(`u\.full_name ILIKE`).
		WithArgs("%One%").
		WillReturnRows(accessRows(now))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*)")).
		WithArgs("%One%").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	list, total, err := repo.List(context.Background(), models.AccessFilter{Search: "One"})
	require.NoError(t, err)
	assert.Len(t, list, 1)
	assert.Equal(t, 1, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccessRepositoryFindByIDNotFound(t *testing.T) {
	db, mock, cleanup := newAccessRepoMock(t)
	defer cleanup()
	repo := NewAccessRepository(db)

	mock.ExpectQuery(`WHERE ta\.id = \$1`).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByID(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, sql.ErrNoRows))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccessRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newAccessRepoMock(t)
	defer cleanup()
	repo := NewAccessRepository(db)
	now := time.Now().UTC()

	mock.ExpectExec("INSERT INTO temporary_access").
		WillReturnResult(sqlmock.NewResult(1, 1))

	grant := &models.TemporaryAccess{
		UserID:       "student-1",
		ResourceType: models.ResourceTypeExam,
		ResourceID:   "exam-1",
		GrantedBy:    "admin-1",
		StartDate:    now,
		ExpiresAt:    now.Add(24 * time.Hour),
		Reason:       "makeup exam",
		Active:       true,
	}
	require.NoError(t, repo.Create(context.Background(), grant))
	assert.NotEmpty(t, grant.ID)
	assert.Equal(t, grant.CreatedAt, grant.UpdatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccessRepositoryUpdateExpiry(t *testing.T) {
	db, mock, cleanup := newAccessRepoMock(t)
	defer cleanup()
	repo := NewAccessRepository(db)
	now := time.Now().UTC()
	expiry := now.Add(48 * time.Hour)
	updatedAt := now.Add(-time.Hour)

	mock.ExpectExec("UPDATE temporary_access SET expires_at").
		WithArgs(expiry, now, "a1", updatedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	affected, err := repo.UpdateExpiry(context.Background(), "a1", expiry, now, updatedAt)
	require.NoError(t, err)
	assert.Equal(t, int64(1), affected)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccessRepositoryUpdateExpiryStaleVersion(t *testing.T) {
	db, mock, cleanup := newAccessRepoMock(t)
	defer cleanup()
	repo := NewAccessRepository(db)
	now := time.Now().UTC()

	mock.ExpectExec("UPDATE temporary_access SET expires_at").
		WillReturnResult(sqlmock.NewResult(0, 0))

	affected, err := repo.UpdateExpiry(context.Background(), "a1", now.Add(time.Hour), now, now)
	require.NoError(t, err)
	assert.Equal(t, int64(0), affected)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccessRepositoryRevoke(t *testing.T) {
	db, mock, cleanup := newAccessRepoMock(t)
	defer cleanup()
	repo := NewAccessRepository(db)
	now := time.Now().UTC()
	note := "misuse"

	mock.ExpectExec("UPDATE temporary_access SET active = FALSE, revoked_at").
		WithArgs(now, &note, "a1", now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	affected, err := repo.Revoke(context.Background(), "a1", &note, now, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), affected)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccessRepositoryRevokeAllForUser(t *testing.T) {
	db, mock, cleanup := newAccessRepoMock(t)
	defer cleanup()
	repo := NewAccessRepository(db)
	now := time.Now().UTC()

	mock.ExpectQuery("UPDATE temporary_access SET active = FALSE").
		WithArgs(now, "student-1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("a1").AddRow("a2"))

	ids, err := repo.RevokeAllForUser(context.Background(), "student-1", now)
	require.NoError(t, err)
	assert.Equal(t, []string{"a1", "a2"}, ids)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccessRepositoryDeactivateExpired(t *testing.T) {
	db, mock, cleanup := newAccessRepoMock(t)
	defer cleanup()
	repo := NewAccessRepository(db)
	now := time.Now().UTC()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE temporary_access SET active = FALSE, updated_at = $1 WHERE active = TRUE AND expires_at < $1")).
		WithArgs(now).
		WillReturnResult(sqlmock.NewResult(0, 3))

	affected, err := repo.DeactivateExpired(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, int64(3), affected)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccessRepositoryStatistics(t *testing.T) {
	db, mock, cleanup := newAccessRepoMock(t)
	defer cleanup()
	repo := NewAccessRepository(db)
	now := time.Now().UTC()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) AS total")).
		WithArgs(now).
		WillReturnRows(sqlmock.NewRows([]string{"total", "active", "expired", "revoked"}).AddRow(10, 6, 3, 1))
	mock.ExpectQuery("SELECT resource_type, COUNT").
		WillReturnRows(sqlmock.NewRows([]string{"resource_type", "count"}).
			AddRow("EXAM", 7).
			AddRow("CLASS", 3))

	stats, err := repo.Statistics(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 10, stats.Total)
	assert.Equal(t, 6, stats.Active)
	assert.Equal(t, 3, stats.Expired)
	assert.Equal(t, 1, stats.Revoked)
	assert.Equal(t, 7, stats.ByResourceType[models.ResourceTypeExam])
	assert.Equal(t, now, stats.GeneratedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}
