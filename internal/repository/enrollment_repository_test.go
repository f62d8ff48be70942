package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/coursehub/coursehub-api/internal/models"
)

func newEnrollmentRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func enrollmentRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "student_id", "course_id", "enrolled_at", "completed", "progress", "last_accessed", "expires_at", "subscription_type", "active", "renewed_at"})
}

func TestEnrollmentRepositoryFindActive(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	now := time.Now()
	rows := enrollmentRows().
		AddRow("enr-1", "stu-1", "crs-1", now, false, 0.0, now, nil, models.SubscriptionUnlimited, true, nil)
	mock.ExpectQuery("SELECT (.+) FROM enrollments WHERE student_id").
		WithArgs("stu-1", "crs-1").
		WillReturnRows(rows)

	enrollment, err := repo.FindActive(context.Background(), "stu-1", "crs-1")
	require.NoError(t, err)
	require.Equal(t, "enr-1", enrollment.ID)
	require.True(t, enrollment.Active)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryFindActiveNoRows(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectQuery("SELECT (.+) FROM enrollments WHERE student_id").
		WithArgs("stu-1", "crs-1").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindActive(context.Background(), "stu-1", "crs-1")
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryDeactivateExpired(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	now := time.Now().UTC()
	expiresAt := now.Add(-time.Hour)
	rows := enrollmentRows().
		AddRow("enr-2", "stu-2", "crs-2", now.AddDate(0, 0, -30), false, 0.4, now, expiresAt, models.SubscriptionMonthly, false, nil)
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE enrollments SET active = FALSE WHERE active = TRUE AND expires_at IS NOT NULL AND expires_at < $1 RETURNING")).
		WithArgs(now).
		WillReturnRows(rows)

	expired, err := repo.DeactivateExpired(context.Background(), now)
	require.NoError(t, err)
	require.Len(t, expired, 1)
	require.Equal(t, "enr-2", expired[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryCountActiveByCourse(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM enrollments WHERE course_id`).
		WithArgs("crs-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))

	count, err := repo.CountActiveByCourse(context.Background(), "crs-1")
	require.NoError(t, err)
	require.Equal(t, 7, count)
	require.NoError(t, mock.ExpectationsWereMet())
}
