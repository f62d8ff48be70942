package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/coursehub/coursehub-api/internal/models"
)

// QuizRepository manages persistence for quizzes, questions, answers and
// quiz attempts.
type QuizRepository struct {
	db *sqlx.DB
}

// NewQuizRepository constructs a QuizRepository.
func NewQuizRepository(db *sqlx.DB) *QuizRepository {
	return &QuizRepository{db: db}
}

// ListByCourse returns all quizzes of a course.
func (r *QuizRepository) ListByCourse(ctx context.Context, courseID string) ([]models.Quiz, error) {
	const query = `SELECT id, course_id, title, description, time_limit_minutes, passing_score, created_at FROM quizzes WHERE course_id = $1 ORDER BY created_at ASC`
	var quizzes []models.Quiz
	if err := r.db.SelectContext(ctx, &quizzes, query, courseID); err != nil {
		return nil, fmt.Errorf("list quizzes: %w", err)
	}
	return quizzes, nil
}

// FindByID fetches a quiz by ID.
func (r *QuizRepository) FindByID(ctx context.Context, id string) (*models.Quiz, error) {
	const query = `SELECT id, course_id, title, description, time_limit_minutes, passing_score, created_at FROM quizzes WHERE id = $1 LIMIT 1`
	var quiz models.Quiz
	if err := r.db.GetContext(ctx, &quiz, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find quiz by id: %w", err)
	}
	return &quiz, nil
}

// Create inserts a new quiz.
func (r *QuizRepository) Create(ctx context.Context, quiz *models.Quiz) error {
	if quiz.ID == "" {
		quiz.ID = uuid.NewString()
	}
	if quiz.CreatedAt.IsZero() {
		quiz.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO quizzes (id, course_id, title, description, time_limit_minutes, passing_score, created_at)
        VALUES (:id, :course_id, :title, :description, :time_limit_minutes, :passing_score, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, quiz); err != nil {
		return fmt.Errorf("create quiz: %w", err)
	}
	return nil
}

// Update rewrites a quiz's editable fields.
func (r *QuizRepository) Update(ctx context.Context, quiz *models.Quiz) error {
	const query = `UPDATE quizzes SET title = :title, description = :description,
        time_limit_minutes = :time_limit_minutes, passing_score = :passing_score WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, quiz); err != nil {
		return fmt.Errorf("update quiz: %w", err)
	}
	return nil
}

// Delete removes a quiz and, via cascading constraints, its questions.
func (r *QuizRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM quizzes WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete quiz: %w", err)
	}
	return nil
}

// ListQuestions returns all questions of a quiz with their answers.
func (r *QuizRepository) ListQuestions(ctx context.Context, quizID string) ([]models.QuestionDetail, error) {
	const query = `SELECT id, quiz_id, text, type, points FROM questions WHERE quiz_id = $1 ORDER BY id ASC`
	var questions []models.Question
	if err := r.db.SelectContext(ctx, &questions, query, quizID); err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}

	details := make([]models.QuestionDetail, 0, len(questions))
	for _, q := range questions {
		answers, err := r.ListAnswers(ctx, q.ID)
		if err != nil {
			return nil, err
		}
		details = append(details, models.QuestionDetail{Question: q, Answers: answers})
	}
	return details, nil
}

// ListAnswers returns the answer options of a question.
func (r *QuizRepository) ListAnswers(ctx context.Context, questionID string) ([]models.Answer, error) {
	const query = `SELECT id, question_id, text, correct FROM answers WHERE question_id = $1 ORDER BY id ASC`
	var answers []models.Answer
	if err := r.db.SelectContext(ctx, &answers, query, questionID); err != nil {
		return nil, fmt.Errorf("list answers: %w", err)
	}
	return answers, nil
}

// CreateQuestion inserts a question with its answer options.
func (r *QuizRepository) CreateQuestion(ctx context.Context, question *models.Question, answers []models.Answer) error {
	if question.ID == "" {
		question.ID = uuid.NewString()
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin question tx: %w", err)
	}
	defer tx.Rollback()

	const questionQuery = `INSERT INTO questions (id, quiz_id, text, type, points) VALUES (:id, :quiz_id, :text, :type, :points)`
	if _, err := tx.NamedExecContext(ctx, questionQuery, question); err != nil {
		return fmt.Errorf("create question: %w", err)
	}

	const answerQuery = `INSERT INTO answers (id, question_id, text, correct) VALUES (:id, :question_id, :text, :correct)`
	for i := range answers {
		answers[i].QuestionID = question.ID
		if answers[i].ID == "" {
			answers[i].ID = uuid.NewString()
		}
		if _, err := tx.NamedExecContext(ctx, answerQuery, answers[i]); err != nil {
			return fmt.Errorf("create answer: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit question tx: %w", err)
	}
	return nil
}

// FindQuestionByID fetches a question by ID.
func (r *QuizRepository) FindQuestionByID(ctx context.Context, id string) (*models.Question, error) {
	const query = `SELECT id, quiz_id, text, type, points FROM questions WHERE id = $1 LIMIT 1`
	var question models.Question
	if err := r.db.GetContext(ctx, &question, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find question by id: %w", err)
	}
	return &question, nil
}

// UpdateQuestion rewrites a question's text and point value.
func (r *QuizRepository) UpdateQuestion(ctx context.Context, question *models.Question) error {
	const query = `UPDATE questions SET text = :text, points = :points WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, question); err != nil {
		return fmt.Errorf("update question: %w", err)
	}
	return nil
}

// DeleteQuestion removes a question and its answers.
func (r *QuizRepository) DeleteQuestion(ctx context.Context, id string) error {
	const query = `DELETE FROM questions WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete question: %w", err)
	}
	return nil
}

// FindAnswerByID fetches an answer option by ID.
func (r *QuizRepository) FindAnswerByID(ctx context.Context, id string) (*models.Answer, error) {
	const query = `SELECT id, question_id, text, correct FROM answers WHERE id = $1 LIMIT 1`
	var answer models.Answer
	if err := r.db.GetContext(ctx, &answer, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find answer by id: %w", err)
	}
	return &answer, nil
}

// CreateAnswer inserts a single answer option.
func (r *QuizRepository) CreateAnswer(ctx context.Context, answer *models.Answer) error {
	if answer.ID == "" {
		answer.ID = uuid.NewString()
	}
	const query = `INSERT INTO answers (id, question_id, text, correct) VALUES (:id, :question_id, :text, :correct)`
	if _, err := r.db.NamedExecContext(ctx, query, answer); err != nil {
		return fmt.Errorf("create answer: %w", err)
	}
	return nil
}

// DeleteAnswer removes an answer option.
func (r *QuizRepository) DeleteAnswer(ctx context.Context, id string) error {
	const query = `DELETE FROM answers WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete answer: %w", err)
	}
	return nil
}

// FindOpenAttempt returns the student's non-completed attempt for a quiz, if any.
func (r *QuizRepository) FindOpenAttempt(ctx context.Context, studentID, quizID string) (*models.QuizAttempt, error) {
	const query = `SELECT id, quiz_id, student_id, score, completed, started_at, completed_at FROM quiz_attempts
        WHERE student_id = $1 AND quiz_id = $2 AND completed = FALSE LIMIT 1`
	var attempt models.QuizAttempt
	if err := r.db.GetContext(ctx, &attempt, query, studentID, quizID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find open attempt: %w", err)
	}
	return &attempt, nil
}

// FindAttemptByID fetches an attempt by ID.
func (r *QuizRepository) FindAttemptByID(ctx context.Context, id string) (*models.QuizAttempt, error) {
	const query = `SELECT id, quiz_id, student_id, score, completed, started_at, completed_at FROM quiz_attempts WHERE id = $1 LIMIT 1`
	var attempt models.QuizAttempt
	if err := r.db.GetContext(ctx, &attempt, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find attempt by id: %w", err)
	}
	return &attempt, nil
}

// ListAttemptsByStudent returns a student's attempts, newest first.
func (r *QuizRepository) ListAttemptsByStudent(ctx context.Context, studentID string, limit int) ([]models.QuizAttempt, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	query := fmt.Sprintf(`SELECT id, quiz_id, student_id, score, completed, started_at, completed_at FROM quiz_attempts
        WHERE student_id = $1 ORDER BY started_at DESC LIMIT %d`, limit)
	var attempts []models.QuizAttempt
	if err := r.db.SelectContext(ctx, &attempts, query, studentID); err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}
	return attempts, nil
}

// ListAttemptsByQuiz returns all attempts for a quiz, newest first.
func (r *QuizRepository) ListAttemptsByQuiz(ctx context.Context, quizID string) ([]models.QuizAttempt, error) {
	const query = `SELECT id, quiz_id, student_id, score, completed, started_at, completed_at FROM quiz_attempts
        WHERE quiz_id = $1 ORDER BY started_at DESC`
	var attempts []models.QuizAttempt
	if err := r.db.SelectContext(ctx, &attempts, query, quizID); err != nil {
		return nil, fmt.Errorf("list quiz attempts: %w", err)
	}
	return attempts, nil
}

// CreateAttempt inserts a new quiz attempt.
func (r *QuizRepository) CreateAttempt(ctx context.Context, attempt *models.QuizAttempt) error {
	if attempt.ID == "" {
		attempt.ID = uuid.NewString()
	}
	if attempt.StartedAt.IsZero() {
		attempt.StartedAt = time.Now().UTC()
	}
	const query = `INSERT INTO quiz_attempts (id, quiz_id, student_id, score, completed, started_at, completed_at)
        VALUES (:id, :quiz_id, :student_id, :score, :completed, :started_at, :completed_at)`
	if _, err := r.db.NamedExecContext(ctx, query, attempt); err != nil {
		return fmt.Errorf("create attempt: %w", err)
	}
	return nil
}

// CompleteAttempt stores the final score; it only touches non-completed rows
// so a finished attempt can never be rescored.
func (r *QuizRepository) CompleteAttempt(ctx context.Context, id string, score float64, completedAt time.Time) error {
	const query = `UPDATE quiz_attempts SET score = $2, completed = TRUE, completed_at = $3 WHERE id = $1 AND completed = FALSE`
	result, err := r.db.ExecContext(ctx, query, id, score, completedAt)
	if err != nil {
		return fmt.Errorf("complete attempt: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("complete attempt rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
