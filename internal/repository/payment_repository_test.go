package repository

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/coursehub/coursehub-api/internal/models"
)

func newPaymentRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestPaymentRepositoryFindByProviderRef(t *testing.T) {
	db, mock, cleanup := newPaymentRepoMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "user_id", "course_id", "amount", "provider_ref", "method", "status", "details", "created_at", "updated_at"}).
		AddRow("pay-1", "usr-1", "crs-1", 49.99, "sess_abc", "card", models.PaymentPending, "", now, now)
	mock.ExpectQuery("SELECT (.+) FROM payments WHERE provider_ref").
		WithArgs("sess_abc").
		WillReturnRows(rows)

	payment, err := repo.FindByProviderRef(context.Background(), "sess_abc")
	require.NoError(t, err)
	require.Equal(t, "pay-1", payment.ID)
	require.Equal(t, models.PaymentPending, payment.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepositoryUpdateStatus(t *testing.T) {
	db, mock, cleanup := newPaymentRepoMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db)

	updatedAt := time.Now().UTC()
	mock.ExpectExec("UPDATE payments SET status").
		WithArgs("pay-1", models.PaymentCompleted, "provider confirmed", updatedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.UpdateStatus(context.Background(), "pay-1", models.PaymentCompleted, "provider confirmed", updatedAt))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepositorySumCompletedByCourse(t *testing.T) {
	db, mock, cleanup := newPaymentRepoMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db)

	mock.ExpectQuery(`SELECT COALESCE\(SUM\(amount\), 0\) FROM payments`).
		WithArgs("crs-1", models.PaymentCompleted).
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(149.97))

	total, err := repo.SumCompletedByCourse(context.Background(), "crs-1")
	require.NoError(t, err)
	require.InDelta(t, 149.97, total, 0.001)
	require.NoError(t, mock.ExpectationsWereMet())
}
