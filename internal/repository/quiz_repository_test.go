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
)

func newQuizRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestQuizRepositoryFindOpenAttempt(t *testing.T) {
	db, mock, cleanup := newQuizRepoMock(t)
	defer cleanup()
	repo := NewQuizRepository(db)

	started := time.Now()
	rows := sqlmock.NewRows([]string{"id", "quiz_id", "student_id", "score", "completed", "started_at", "completed_at"}).
		AddRow("att-1", "quiz-1", "stu-1", 0.0, false, started, nil)
	mock.ExpectQuery("SELECT (.+) FROM quiz_attempts").
		WithArgs("stu-1", "quiz-1").
		WillReturnRows(rows)

	attempt, err := repo.FindOpenAttempt(context.Background(), "stu-1", "quiz-1")
	require.NoError(t, err)
	require.Equal(t, "att-1", attempt.ID)
	require.False(t, attempt.Completed)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestQuizRepositoryCompleteAttempt(t *testing.T) {
	db, mock, cleanup := newQuizRepoMock(t)
	defer cleanup()
	repo := NewQuizRepository(db)

	completedAt := time.Now().UTC()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE quiz_attempts SET score = $2, completed = TRUE, completed_at = $3 WHERE id = $1 AND completed = FALSE")).
		WithArgs("att-1", 75.0, completedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.CompleteAttempt(context.Background(), "att-1", 75.0, completedAt))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestQuizRepositoryCompleteAttemptAlreadyCompleted(t *testing.T) {
	db, mock, cleanup := newQuizRepoMock(t)
	defer cleanup()
	repo := NewQuizRepository(db)

	completedAt := time.Now().UTC()
	mock.ExpectExec("UPDATE quiz_attempts SET score").
		WithArgs("att-1", 50.0, completedAt).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.CompleteAttempt(context.Background(), "att-1", 50.0, completedAt)
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestQuizRepositoryListQuestions(t *testing.T) {
	db, mock, cleanup := newQuizRepoMock(t)
	defer cleanup()
	repo := NewQuizRepository(db)

	questionRows := sqlmock.NewRows([]string{"id", "quiz_id", "text", "type", "points"}).
		AddRow("q-1", "quiz-1", "2+2?", "MULTIPLE_CHOICE", 1)
	mock.ExpectQuery("SELECT id, quiz_id, text, type, points FROM questions").
		WithArgs("quiz-1").
		WillReturnRows(questionRows)

	answerRows := sqlmock.NewRows([]string{"id", "question_id", "text", "correct"}).
		AddRow("a-1", "q-1", "4", true).
		AddRow("a-2", "q-1", "5", false)
	mock.ExpectQuery("SELECT id, question_id, text, correct FROM answers").
		WithArgs("q-1").
		WillReturnRows(answerRows)

	questions, err := repo.ListQuestions(context.Background(), "quiz-1")
	require.NoError(t, err)
	require.Len(t, questions, 1)
	require.Len(t, questions[0].Answers, 2)
	require.True(t, questions[0].Answers[0].Correct)
	require.NoError(t, mock.ExpectationsWereMet())
}
