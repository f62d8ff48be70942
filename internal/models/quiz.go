package models

import "time"

// QuestionType categorises quiz questions.
type QuestionType string

// Possible question types. Short answer questions are never auto-scored.
const (
	QuestionMultipleChoice QuestionType = "MULTIPLE_CHOICE"
	QuestionTrueFalse      QuestionType = "TRUE_FALSE"
	QuestionShortAnswer    QuestionType = "SHORT_ANSWER"
)

// Quiz belongs to a course and owns an ordered set of questions.
type Quiz struct {
	ID               string    `db:"id" json:"id"`
	CourseID         string    `db:"course_id" json:"course_id"`
	Title            string    `db:"title" json:"title"`
	Description      string    `db:"description" json:"description,omitempty"`
	TimeLimitMinutes int       `db:"time_limit_minutes" json:"time_limit_minutes"`
	PassingScore     float64   `db:"passing_score" json:"passing_score"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
}

// Question belongs to a quiz.
type Question struct {
	ID     string       `db:"id" json:"id"`
	QuizID string       `db:"quiz_id" json:"quiz_id"`
	Text   string       `db:"text" json:"text"`
	Type   QuestionType `db:"type" json:"type"`
	Points int          `db:"points" json:"points"`
}

// Answer is one option of a multiple-choice or true/false question.
// Correctness lives on the answer row, never on its display text.
type Answer struct {
	ID         string `db:"id" json:"id"`
	QuestionID string `db:"question_id" json:"question_id"`
	Text       string `db:"text" json:"text"`
	Correct    bool   `db:"correct" json:"correct"`
}

// QuestionDetail bundles a question with its answers.
type QuestionDetail struct {
	Question
	Answers []Answer `json:"answers"`
}

// QuizDetail bundles a quiz with its full question tree.
type QuizDetail struct {
	Quiz
	Questions []QuestionDetail `json:"questions"`
}

// QuizAttempt is one student's try at a quiz. Once completed the score is
// immutable; at most one non-completed attempt exists per (student, quiz).
type QuizAttempt struct {
	ID          string     `db:"id" json:"id"`
	QuizID      string     `db:"quiz_id" json:"quiz_id"`
	StudentID   string     `db:"student_id" json:"student_id"`
	Score       float64    `db:"score" json:"score"`
	Completed   bool       `db:"completed" json:"completed"`
	StartedAt   time.Time  `db:"started_at" json:"started_at"`
	CompletedAt *time.Time `db:"completed_at" json:"completed_at,omitempty"`
}
