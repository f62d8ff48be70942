package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/coursehub/coursehub-api/internal/models"
	appErrors "github.com/coursehub/coursehub-api/pkg/errors"
)

type mockQuizRepo struct {
	quizzes      map[string]models.Quiz
	questions    map[string][]models.QuestionDetail
	attempts     map[string]models.QuizAttempt
	openAttempts map[string]models.QuizAttempt
	created      *models.QuizAttempt
	completed    map[string]float64
}

func (m *mockQuizRepo) ListByCourse(ctx context.Context, courseID string) ([]models.Quiz, error) {
	return nil, nil
}

func (m *mockQuizRepo) FindByID(ctx context.Context, id string) (*models.Quiz, error) {
	if q, ok := m.quizzes[id]; ok {
		return &q, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockQuizRepo) Create(ctx context.Context, quiz *models.Quiz) error {
	if quiz.ID == "" {
		quiz.ID = "new-quiz"
	}
	if m.quizzes == nil {
		m.quizzes = make(map[string]models.Quiz)
	}
	m.quizzes[quiz.ID] = *quiz
	return nil
}

func (m *mockQuizRepo) Update(ctx context.Context, quiz *models.Quiz) error {
	m.quizzes[quiz.ID] = *quiz
	return nil
}

func (m *mockQuizRepo) Delete(ctx context.Context, id string) error { return nil }

func (m *mockQuizRepo) ListQuestions(ctx context.Context, quizID string) ([]models.QuestionDetail, error) {
	return m.questions[quizID], nil
}

func (m *mockQuizRepo) CreateQuestion(ctx context.Context, question *models.Question, answers []models.Answer) error {
	if question.ID == "" {
		question.ID = "new-question"
	}
	if m.questions == nil {
		m.questions = make(map[string][]models.QuestionDetail)
	}
	m.questions[question.QuizID] = append(m.questions[question.QuizID], models.QuestionDetail{Question: *question, Answers: answers})
	return nil
}

func (m *mockQuizRepo) FindQuestionByID(ctx context.Context, id string) (*models.Question, error) {
	for _, details := range m.questions {
		for _, d := range details {
			if d.ID == id {
				question := d.Question
				return &question, nil
			}
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockQuizRepo) UpdateQuestion(ctx context.Context, question *models.Question) error {
	for quizID, details := range m.questions {
		for i, d := range details {
			if d.ID == question.ID {
				m.questions[quizID][i].Question = *question
			}
		}
	}
	return nil
}

func (m *mockQuizRepo) DeleteQuestion(ctx context.Context, id string) error { return nil }

func (m *mockQuizRepo) ListAnswers(ctx context.Context, questionID string) ([]models.Answer, error) {
	for _, details := range m.questions {
		for _, d := range details {
			if d.ID == questionID {
				return d.Answers, nil
			}
		}
	}
	return nil, nil
}

func (m *mockQuizRepo) FindAnswerByID(ctx context.Context, id string) (*models.Answer, error) {
	for _, details := range m.questions {
		for _, d := range details {
			for _, a := range d.Answers {
				if a.ID == id {
					answer := a
					return &answer, nil
				}
			}
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockQuizRepo) CreateAnswer(ctx context.Context, answer *models.Answer) error {
	if answer.ID == "" {
		answer.ID = "new-answer"
	}
	for quizID, details := range m.questions {
		for i, d := range details {
			if d.ID == answer.QuestionID {
				m.questions[quizID][i].Answers = append(m.questions[quizID][i].Answers, *answer)
			}
		}
	}
	return nil
}

func (m *mockQuizRepo) DeleteAnswer(ctx context.Context, id string) error { return nil }

func (m *mockQuizRepo) ListAttemptsByQuiz(ctx context.Context, quizID string) ([]models.QuizAttempt, error) {
	var attempts []models.QuizAttempt
	for _, a := range m.attempts {
		if a.QuizID == quizID {
			attempts = append(attempts, a)
		}
	}
	return attempts, nil
}

func (m *mockQuizRepo) FindOpenAttempt(ctx context.Context, studentID, quizID string) (*models.QuizAttempt, error) {
	if a, ok := m.openAttempts[studentID+"/"+quizID]; ok {
		return &a, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockQuizRepo) FindAttemptByID(ctx context.Context, id string) (*models.QuizAttempt, error) {
	if a, ok := m.attempts[id]; ok {
		return &a, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockQuizRepo) CreateAttempt(ctx context.Context, attempt *models.QuizAttempt) error {
	if attempt.ID == "" {
		attempt.ID = "new-attempt"
	}
	m.created = attempt
	return nil
}

func (m *mockQuizRepo) CompleteAttempt(ctx context.Context, id string, score float64, completedAt time.Time) error {
	attempt, ok := m.attempts[id]
	if !ok || attempt.Completed {
		return sql.ErrNoRows
	}
	attempt.Completed = true
	attempt.Score = score
	attempt.CompletedAt = &completedAt
	m.attempts[id] = attempt
	if m.completed == nil {
		m.completed = make(map[string]float64)
	}
	m.completed[id] = score
	return nil
}

type mockQuizAccess struct {
	denied bool
}

func (m *mockQuizAccess) CheckAccess(ctx context.Context, studentID, courseID string) (*models.Enrollment, error) {
	if m.denied {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "not enrolled in this course")
	}
	return &models.Enrollment{ID: "e1", StudentID: studentID, CourseID: courseID, Active: true}, nil
}

func newQuizTestService(repo *mockQuizRepo, courses *mockCourseReader, access *mockQuizAccess) (*QuizService, *mockNotifier) {
	notifier := &mockNotifier{}
	svc := NewQuizService(repo, courses, access, notifier, validator.New(), zap.NewNop())
	return svc, notifier
}

// Two scorable questions worth 1 and 3 points; answering only the 3 point
// question correctly yields 75.
func scoringFixture() map[string][]models.QuestionDetail {
	return map[string][]models.QuestionDetail{
		"q1": {
			{
				Question: models.Question{ID: "question-1", QuizID: "q1", Type: models.QuestionMultipleChoice, Points: 1},
				Answers: []models.Answer{
					{ID: "a1", QuestionID: "question-1", Correct: true},
					{ID: "a2", QuestionID: "question-1", Correct: false},
				},
			},
			{
				Question: models.Question{ID: "question-2", QuizID: "q1", Type: models.QuestionTrueFalse, Points: 3},
				Answers: []models.Answer{
					{ID: "a3", QuestionID: "question-2", Correct: false},
					{ID: "a4", QuestionID: "question-2", Correct: true},
				},
			},
			{
				Question: models.Question{ID: "question-3", QuizID: "q1", Type: models.QuestionShortAnswer, Points: 5},
			},
		},
	}
}

func TestSubmitAttemptScoresByPoints(t *testing.T) {
	repo := &mockQuizRepo{
		quizzes:   map[string]models.Quiz{"q1": {ID: "q1", CourseID: "c1", PassingScore: 70}},
		questions: scoringFixture(),
		attempts:  map[string]models.QuizAttempt{"at1": {ID: "at1", QuizID: "q1", StudentID: "s1"}},
	}
	svc, notifier := newQuizTestService(repo, &mockCourseReader{}, &mockQuizAccess{})

	result, err := svc.SubmitAttempt(context.Background(), "at1", "s1", SubmitAttemptRequest{
		Answers: map[string]string{
			"question-1": "a2",
			"question-2": "a4",
		},
	})
	require.NoError(t, err)
	assert.Equal(t, float64(75), result.Score)
	assert.Equal(t, 3, result.EarnedPoints)
	assert.Equal(t, 4, result.TotalPoints, "short answer points are excluded from auto scoring")
	assert.True(t, result.Passed)
	assert.True(t, result.Attempt.Completed)
	assert.Len(t, notifier.notified, 1)
}

func TestSubmitAttemptIgnoresUnansweredQuestions(t *testing.T) {
	repo := &mockQuizRepo{
		quizzes:   map[string]models.Quiz{"q1": {ID: "q1", CourseID: "c1", PassingScore: 70}},
		questions: scoringFixture(),
		attempts:  map[string]models.QuizAttempt{"at1": {ID: "at1", QuizID: "q1", StudentID: "s1"}},
	}
	svc, notifier := newQuizTestService(repo, &mockCourseReader{}, &mockQuizAccess{})

	result, err := svc.SubmitAttempt(context.Background(), "at1", "s1", SubmitAttemptRequest{
		Answers: map[string]string{"question-1": "a1"},
	})
	require.NoError(t, err)
	assert.Equal(t, float64(25), result.Score)
	assert.False(t, result.Passed)
	assert.Empty(t, notifier.notified)
}

func TestSubmitAttemptRejectsCompletedAttempt(t *testing.T) {
	done := time.Now().UTC()
	repo := &mockQuizRepo{
		quizzes:   map[string]models.Quiz{"q1": {ID: "q1", CourseID: "c1"}},
		questions: scoringFixture(),
		attempts: map[string]models.QuizAttempt{
			"at1": {ID: "at1", QuizID: "q1", StudentID: "s1", Completed: true, Score: 75, CompletedAt: &done},
		},
	}
	svc, _ := newQuizTestService(repo, &mockCourseReader{}, &mockQuizAccess{})

	_, err := svc.SubmitAttempt(context.Background(), "at1", "s1", SubmitAttemptRequest{Answers: map[string]string{}})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrAttemptCompleted.Code, appErrors.FromError(err).Code)
	assert.Empty(t, repo.completed, "completed attempts must stay immutable")
}

func TestSubmitAttemptRejectsForeignAttempt(t *testing.T) {
	repo := &mockQuizRepo{
		quizzes:  map[string]models.Quiz{"q1": {ID: "q1", CourseID: "c1"}},
		attempts: map[string]models.QuizAttempt{"at1": {ID: "at1", QuizID: "q1", StudentID: "s1"}},
	}
	svc, _ := newQuizTestService(repo, &mockCourseReader{}, &mockQuizAccess{})

	_, err := svc.SubmitAttempt(context.Background(), "at1", "s2", SubmitAttemptRequest{Answers: map[string]string{}})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestStartAttemptResumesOpenAttempt(t *testing.T) {
	started := time.Now().UTC().Add(-time.Minute)
	repo := &mockQuizRepo{
		quizzes: map[string]models.Quiz{"q1": {ID: "q1", CourseID: "c1"}},
		openAttempts: map[string]models.QuizAttempt{
			"s1/q1": {ID: "at1", QuizID: "q1", StudentID: "s1", StartedAt: started},
		},
	}
	svc, _ := newQuizTestService(repo, &mockCourseReader{}, &mockQuizAccess{})

	attempt, err := svc.StartAttempt(context.Background(), "q1", "s1")
	require.NoError(t, err)
	assert.Equal(t, "at1", attempt.ID, "an open attempt is resumed, never duplicated")
	assert.Nil(t, repo.created)
}

func TestStartAttemptCreatesWhenNoneOpen(t *testing.T) {
	repo := &mockQuizRepo{quizzes: map[string]models.Quiz{"q1": {ID: "q1", CourseID: "c1"}}}
	svc, _ := newQuizTestService(repo, &mockCourseReader{}, &mockQuizAccess{})

	attempt, err := svc.StartAttempt(context.Background(), "q1", "s1")
	require.NoError(t, err)
	assert.False(t, attempt.Completed)
	require.NotNil(t, repo.created)
	assert.Equal(t, "s1", repo.created.StudentID)
}

func TestStartAttemptRequiresAccess(t *testing.T) {
	repo := &mockQuizRepo{quizzes: map[string]models.Quiz{"q1": {ID: "q1", CourseID: "c1"}}}
	svc, _ := newQuizTestService(repo, &mockCourseReader{}, &mockQuizAccess{denied: true})

	_, err := svc.StartAttempt(context.Background(), "q1", "s1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestAddQuestionValidatesAnswerShapes(t *testing.T) {
	repo := &mockQuizRepo{quizzes: map[string]models.Quiz{"q1": {ID: "q1", CourseID: "c1"}}}
	courses := &mockCourseReader{courses: map[string]*models.CourseDetail{
		"c1": {Course: models.Course{ID: "c1", InstructorID: "i1"}},
	}}
	svc, _ := newQuizTestService(repo, courses, &mockQuizAccess{})
	actor := &models.JWTClaims{UserID: "i1", Role: models.RoleInstructor}

	_, err := svc.AddQuestion(context.Background(), "q1", actor, CreateQuestionRequest{
		Text: "Pick one", Type: "MULTIPLE_CHOICE", Points: 1,
		Answers: []CreateAnswerRequest{{Text: "A", Correct: true}, {Text: "B", Correct: true}},
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, err = svc.AddQuestion(context.Background(), "q1", actor, CreateQuestionRequest{
		Text: "Explain", Type: "SHORT_ANSWER", Points: 5,
		Answers: []CreateAnswerRequest{{Text: "any", Correct: false}},
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	question, err := svc.AddQuestion(context.Background(), "q1", actor, CreateQuestionRequest{
		Text: "True or false", Type: "TRUE_FALSE", Points: 2,
		Answers: []CreateAnswerRequest{{Text: "True", Correct: true}, {Text: "False", Correct: false}},
	})
	require.NoError(t, err)
	assert.Equal(t, models.QuestionTrueFalse, question.Type)
}

func TestAddAnswerRejectsSecondCorrectOption(t *testing.T) {
	repo := &mockQuizRepo{
		quizzes:   map[string]models.Quiz{"q1": {ID: "q1", CourseID: "c1"}},
		questions: scoringFixture(),
	}
	courses := &mockCourseReader{courses: map[string]*models.CourseDetail{
		"c1": {Course: models.Course{ID: "c1", InstructorID: "i1"}},
	}}
	svc, _ := newQuizTestService(repo, courses, &mockQuizAccess{})
	actor := &models.JWTClaims{UserID: "i1", Role: models.RoleInstructor}

	_, err := svc.AddAnswer(context.Background(), "question-1", actor, CreateAnswerRequest{Text: "also right", Correct: true})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	answer, err := svc.AddAnswer(context.Background(), "question-1", actor, CreateAnswerRequest{Text: "another wrong", Correct: false})
	require.NoError(t, err)
	assert.Equal(t, "question-1", answer.QuestionID)

	_, err = svc.AddAnswer(context.Background(), "question-3", actor, CreateAnswerRequest{Text: "free text", Correct: false})
	require.Error(t, err, "short answer questions take no options")
}

func TestScoreAnswersWrongSelectionEarnsNothing(t *testing.T) {
	questions := scoringFixture()["q1"]
	earned, total := scoreAnswers(questions, map[string]string{
		"question-1": "a2",
		"question-2": "a3",
	})
	assert.Equal(t, 0, earned)
	assert.Equal(t, 4, total)
}
