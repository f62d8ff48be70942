package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/coursehub/coursehub-api/internal/models"
	appErrors "github.com/coursehub/coursehub-api/pkg/errors"
)

type quizRepository interface {
	ListByCourse(ctx context.Context, courseID string) ([]models.Quiz, error)
	FindByID(ctx context.Context, id string) (*models.Quiz, error)
	Create(ctx context.Context, quiz *models.Quiz) error
	Update(ctx context.Context, quiz *models.Quiz) error
	Delete(ctx context.Context, id string) error
	ListQuestions(ctx context.Context, quizID string) ([]models.QuestionDetail, error)
	CreateQuestion(ctx context.Context, question *models.Question, answers []models.Answer) error
	FindQuestionByID(ctx context.Context, id string) (*models.Question, error)
	UpdateQuestion(ctx context.Context, question *models.Question) error
	DeleteQuestion(ctx context.Context, id string) error
	ListAnswers(ctx context.Context, questionID string) ([]models.Answer, error)
	FindAnswerByID(ctx context.Context, id string) (*models.Answer, error)
	CreateAnswer(ctx context.Context, answer *models.Answer) error
	DeleteAnswer(ctx context.Context, id string) error
	FindOpenAttempt(ctx context.Context, studentID, quizID string) (*models.QuizAttempt, error)
	ListAttemptsByQuiz(ctx context.Context, quizID string) ([]models.QuizAttempt, error)
	FindAttemptByID(ctx context.Context, id string) (*models.QuizAttempt, error)
	CreateAttempt(ctx context.Context, attempt *models.QuizAttempt) error
	CompleteAttempt(ctx context.Context, id string, score float64, completedAt time.Time) error
}

type quizCourseReader interface {
	FindByID(ctx context.Context, id string) (*models.CourseDetail, error)
}

type quizAccessChecker interface {
	CheckAccess(ctx context.Context, studentID, courseID string) (*models.Enrollment, error)
}

type quizNotifier interface {
	Notify(ctx context.Context, userID, title, message string, kind models.NotificationType, relatedID *string)
}

// CreateQuizRequest holds the payload for creating a quiz.
type CreateQuizRequest struct {
	Title            string  `json:"title" validate:"required,max=200"`
	Description      string  `json:"description" validate:"omitempty,max=5000"`
	TimeLimitMinutes int     `json:"time_limit_minutes" validate:"gte=0"`
	PassingScore     float64 `json:"passing_score" validate:"gte=0,lte=100"`
}

// UpdateQuizRequest holds the editable quiz fields.
type UpdateQuizRequest struct {
	Title            string  `json:"title" validate:"required,max=200"`
	Description      string  `json:"description" validate:"omitempty,max=5000"`
	TimeLimitMinutes int     `json:"time_limit_minutes" validate:"gte=0"`
	PassingScore     float64 `json:"passing_score" validate:"gte=0,lte=100"`
}

// UpdateQuestionRequest rewrites a question's prompt and weight. The type is
// fixed at creation because the answer options depend on it.
type UpdateQuestionRequest struct {
	Text   string `json:"text" validate:"required,max=2000"`
	Points int    `json:"points" validate:"required,gte=1"`
}

// CreateQuestionRequest holds a question with its answer options.
type CreateQuestionRequest struct {
	Text    string                `json:"text" validate:"required,max=2000"`
	Type    string                `json:"type" validate:"required,oneof=MULTIPLE_CHOICE TRUE_FALSE SHORT_ANSWER"`
	Points  int                   `json:"points" validate:"required,gte=1"`
	Answers []CreateAnswerRequest `json:"answers" validate:"dive"`
}

// CreateAnswerRequest is one answer option.
type CreateAnswerRequest struct {
	Text    string `json:"text" validate:"required,max=500"`
	Correct bool   `json:"correct"`
}

// SubmitAttemptRequest carries the selected answer per question. Questions
// without an entry count as unanswered.
type SubmitAttemptRequest struct {
	Answers map[string]string `json:"answers" validate:"required"`
}

// AttemptResult is the outcome of a completed attempt.
type AttemptResult struct {
	Attempt      *models.QuizAttempt `json:"attempt"`
	Score        float64             `json:"score"`
	Passed       bool                `json:"passed"`
	EarnedPoints int                 `json:"earned_points"`
	TotalPoints  int                 `json:"total_points"`
}

// QuizService manages quizzes, questions and attempt scoring.
type QuizService struct {
	repo      quizRepository
	courses   quizCourseReader
	access    quizAccessChecker
	notifier  quizNotifier
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewQuizService constructs a QuizService instance.
func NewQuizService(repo quizRepository, courses quizCourseReader, access quizAccessChecker, notifier quizNotifier, validate *validator.Validate, logger *zap.Logger) *QuizService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &QuizService{
		repo:      repo,
		courses:   courses,
		access:    access,
		notifier:  notifier,
		validator: validate,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// ListByCourse returns the quizzes of a course.
func (s *QuizService) ListByCourse(ctx context.Context, courseID string) ([]models.Quiz, error) {
	quizzes, err := s.repo.ListByCourse(ctx, courseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list quizzes")
	}
	return quizzes, nil
}

// Get returns a quiz with its questions. Correct answer flags are included;
// handlers strip them for student-facing responses.
func (s *QuizService) Get(ctx context.Context, id string) (*models.QuizDetail, error) {
	quiz, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "quiz not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load quiz")
	}
	questions, err := s.repo.ListQuestions(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load questions")
	}
	return &models.QuizDetail{Quiz: *quiz, Questions: questions}, nil
}

// Create registers a new quiz on a course owned by the actor.
func (s *QuizService) Create(ctx context.Context, courseID string, actor *models.JWTClaims, req CreateQuizRequest) (*models.Quiz, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid quiz payload")
	}
	if err := s.checkCourseOwnership(ctx, courseID, actor); err != nil {
		return nil, err
	}

	quiz := &models.Quiz{
		CourseID:         courseID,
		Title:            req.Title,
		Description:      req.Description,
		TimeLimitMinutes: req.TimeLimitMinutes,
		PassingScore:     req.PassingScore,
	}
	if err := s.repo.Create(ctx, quiz); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create quiz")
	}
	return quiz, nil
}

// Update rewrites a quiz's metadata on a course owned by the actor.
func (s *QuizService) Update(ctx context.Context, quizID string, actor *models.JWTClaims, req UpdateQuizRequest) (*models.Quiz, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid quiz payload")
	}
	quiz, err := s.repo.FindByID(ctx, quizID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "quiz not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load quiz")
	}
	if err := s.checkCourseOwnership(ctx, quiz.CourseID, actor); err != nil {
		return nil, err
	}

	quiz.Title = req.Title
	quiz.Description = req.Description
	quiz.TimeLimitMinutes = req.TimeLimitMinutes
	quiz.PassingScore = req.PassingScore
	if err := s.repo.Update(ctx, quiz); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update quiz")
	}
	return quiz, nil
}

// AddQuestion appends a question to a quiz. Multiple choice questions need
// exactly one correct answer; true/false questions need exactly two options
// with one marked correct; short answer questions carry no options.
func (s *QuizService) AddQuestion(ctx context.Context, quizID string, actor *models.JWTClaims, req CreateQuestionRequest) (*models.Question, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid question payload")
	}

	quiz, err := s.repo.FindByID(ctx, quizID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "quiz not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load quiz")
	}
	if err := s.checkCourseOwnership(ctx, quiz.CourseID, actor); err != nil {
		return nil, err
	}

	qType := models.QuestionType(req.Type)
	correct := 0
	for _, a := range req.Answers {
		if a.Correct {
			correct++
		}
	}
	switch qType {
	case models.QuestionMultipleChoice:
		if len(req.Answers) < 2 || correct != 1 {
			return nil, appErrors.Clone(appErrors.ErrValidation, "multiple choice questions need at least two options and exactly one correct answer")
		}
	case models.QuestionTrueFalse:
		if len(req.Answers) != 2 || correct != 1 {
			return nil, appErrors.Clone(appErrors.ErrValidation, "true/false questions need exactly two options and one correct answer")
		}
	case models.QuestionShortAnswer:
		if len(req.Answers) != 0 {
			return nil, appErrors.Clone(appErrors.ErrValidation, "short answer questions cannot have answer options")
		}
	}

	question := &models.Question{QuizID: quizID, Text: req.Text, Type: qType, Points: req.Points}
	answers := make([]models.Answer, len(req.Answers))
	for i, a := range req.Answers {
		answers[i] = models.Answer{Text: a.Text, Correct: a.Correct}
	}
	if err := s.repo.CreateQuestion(ctx, question, answers); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create question")
	}
	return question, nil
}

// UpdateQuestion rewrites a question's text and points.
func (s *QuizService) UpdateQuestion(ctx context.Context, questionID string, actor *models.JWTClaims, req UpdateQuestionRequest) (*models.Question, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid question payload")
	}
	question, err := s.loadOwnedQuestion(ctx, questionID, actor)
	if err != nil {
		return nil, err
	}

	question.Text = req.Text
	question.Points = req.Points
	if err := s.repo.UpdateQuestion(ctx, question); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update question")
	}
	return question, nil
}

// AddAnswer appends an answer option to an existing question. Short answer
// questions carry no options, and a question can only hold one correct one.
func (s *QuizService) AddAnswer(ctx context.Context, questionID string, actor *models.JWTClaims, req CreateAnswerRequest) (*models.Answer, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid answer payload")
	}
	question, err := s.loadOwnedQuestion(ctx, questionID, actor)
	if err != nil {
		return nil, err
	}
	if question.Type == models.QuestionShortAnswer {
		return nil, appErrors.Clone(appErrors.ErrValidation, "short answer questions cannot have answer options")
	}

	existing, err := s.repo.ListAnswers(ctx, questionID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list answers")
	}
	if question.Type == models.QuestionTrueFalse && len(existing) >= 2 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "true/false questions hold exactly two options")
	}
	if req.Correct {
		for _, a := range existing {
			if a.Correct {
				return nil, appErrors.Clone(appErrors.ErrValidation, "question already has a correct answer")
			}
		}
	}

	answer := &models.Answer{QuestionID: questionID, Text: req.Text, Correct: req.Correct}
	if err := s.repo.CreateAnswer(ctx, answer); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create answer")
	}
	return answer, nil
}

// DeleteAnswer removes an answer option from a question owned by the actor.
func (s *QuizService) DeleteAnswer(ctx context.Context, answerID string, actor *models.JWTClaims) error {
	answer, err := s.repo.FindAnswerByID(ctx, answerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "answer not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load answer")
	}
	if _, err := s.loadOwnedQuestion(ctx, answer.QuestionID, actor); err != nil {
		return err
	}
	if err := s.repo.DeleteAnswer(ctx, answerID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete answer")
	}
	return nil
}

// loadOwnedQuestion resolves a question and verifies the actor controls the
// course it belongs to.
func (s *QuizService) loadOwnedQuestion(ctx context.Context, questionID string, actor *models.JWTClaims) (*models.Question, error) {
	question, err := s.repo.FindQuestionByID(ctx, questionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "question not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load question")
	}
	quiz, err := s.repo.FindByID(ctx, question.QuizID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load quiz")
	}
	if err := s.checkCourseOwnership(ctx, quiz.CourseID, actor); err != nil {
		return nil, err
	}
	return question, nil
}

// StartAttempt opens a new attempt, or resumes the student's existing open
// attempt. A student never holds two open attempts on the same quiz.
func (s *QuizService) StartAttempt(ctx context.Context, quizID, studentID string) (*models.QuizAttempt, error) {
	quiz, err := s.repo.FindByID(ctx, quizID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "quiz not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load quiz")
	}
	if _, err := s.access.CheckAccess(ctx, studentID, quiz.CourseID); err != nil {
		return nil, err
	}

	if open, err := s.repo.FindOpenAttempt(ctx, studentID, quizID); err == nil {
		return open, nil
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check open attempts")
	}

	attempt := &models.QuizAttempt{QuizID: quizID, StudentID: studentID, StartedAt: s.now()}
	if err := s.repo.CreateAttempt(ctx, attempt); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create attempt")
	}
	return attempt, nil
}

// SubmitAttempt scores and completes an attempt. The score is the earned
// point share of all auto-scorable points, on a 0-100 scale. Correctness is
// judged by the selected option's stored flag; short answer questions are
// excluded from automatic scoring. Completed attempts are immutable.
func (s *QuizService) SubmitAttempt(ctx context.Context, attemptID, studentID string, req SubmitAttemptRequest) (*AttemptResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid attempt payload")
	}

	attempt, err := s.repo.FindAttemptByID(ctx, attemptID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "attempt not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attempt")
	}
	if attempt.StudentID != studentID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "attempt belongs to another student")
	}
	if attempt.Completed {
		return nil, appErrors.Clone(appErrors.ErrAttemptCompleted, "attempt is already completed")
	}

	quiz, err := s.repo.FindByID(ctx, attempt.QuizID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load quiz")
	}
	questions, err := s.repo.ListQuestions(ctx, attempt.QuizID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load questions")
	}

	earned, total := scoreAnswers(questions, req.Answers)
	score := 0.0
	if total > 0 {
		score = float64(earned) / float64(total) * 100
	}

	now := s.now()
	if err := s.repo.CompleteAttempt(ctx, attempt.ID, score, now); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrAttemptCompleted, "attempt is already completed")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to complete attempt")
	}
	attempt.Score = score
	attempt.Completed = true
	attempt.CompletedAt = &now

	passed := score >= quiz.PassingScore
	if s.notifier != nil && passed {
		s.notifier.Notify(ctx, studentID, "Quiz passed", quiz.Title, models.NotificationGrade, &attempt.ID)
	}
	return &AttemptResult{Attempt: attempt, Score: score, Passed: passed, EarnedPoints: earned, TotalPoints: total}, nil
}

// scoreAnswers sums the points of correctly answered questions against the
// total auto-scorable points. Selections reference answer option IDs.
func scoreAnswers(questions []models.QuestionDetail, selections map[string]string) (earned, total int) {
	for _, q := range questions {
		if q.Type == models.QuestionShortAnswer {
			continue
		}
		total += q.Points
		selectedID, ok := selections[q.ID]
		if !ok {
			continue
		}
		for _, a := range q.Answers {
			if a.ID == selectedID && a.Correct {
				earned += q.Points
				break
			}
		}
	}
	return earned, total
}

// DeleteQuestion removes a question from a quiz owned by the actor.
func (s *QuizService) DeleteQuestion(ctx context.Context, questionID string, actor *models.JWTClaims) error {
	if _, err := s.loadOwnedQuestion(ctx, questionID, actor); err != nil {
		return err
	}
	if err := s.repo.DeleteQuestion(ctx, questionID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete question")
	}
	return nil
}

// ListAttempts returns every attempt for a quiz. Restricted to the course
// instructor and admins.
func (s *QuizService) ListAttempts(ctx context.Context, quizID string, actor *models.JWTClaims) ([]models.QuizAttempt, error) {
	quiz, err := s.repo.FindByID(ctx, quizID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "quiz not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load quiz")
	}
	if err := s.checkCourseOwnership(ctx, quiz.CourseID, actor); err != nil {
		return nil, err
	}
	attempts, err := s.repo.ListAttemptsByQuiz(ctx, quizID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list attempts")
	}
	return attempts, nil
}

// Delete removes a quiz from a course owned by the actor.
func (s *QuizService) Delete(ctx context.Context, quizID string, actor *models.JWTClaims) error {
	quiz, err := s.repo.FindByID(ctx, quizID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "quiz not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load quiz")
	}
	if err := s.checkCourseOwnership(ctx, quiz.CourseID, actor); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, quizID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete quiz")
	}
	return nil
}

func (s *QuizService) checkCourseOwnership(ctx context.Context, courseID string, actor *models.JWTClaims) error {
	course, err := s.courses.FindByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	if actor.Role != models.RoleAdmin && course.InstructorID != actor.UserID {
		return appErrors.Clone(appErrors.ErrForbidden, "course belongs to another instructor")
	}
	return nil
}
