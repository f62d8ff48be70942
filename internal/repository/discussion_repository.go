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

// DiscussionRepository manages persistence for discussion threads and comments.
type DiscussionRepository struct {
	db *sqlx.DB
}

// NewDiscussionRepository constructs a DiscussionRepository.
func NewDiscussionRepository(db *sqlx.DB) *DiscussionRepository {
	return &DiscussionRepository{db: db}
}

// ListByCourse returns course discussions newest first.
func (r *DiscussionRepository) ListByCourse(ctx context.Context, courseID string, page, pageSize int) ([]models.DiscussionDetail, int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	query := fmt.Sprintf(`SELECT d.id, d.course_id, d.author_id, d.title, d.content, d.created_at, d.updated_at,
        u.username AS author_name,
        (SELECT COUNT(*) FROM comments cm WHERE cm.discussion_id = d.id) AS comment_count
        FROM discussions d JOIN users u ON u.id = d.author_id
        WHERE d.course_id = $1 ORDER BY d.created_at DESC LIMIT %d OFFSET %d`, pageSize, offset)

	var discussions []models.DiscussionDetail
	if err := r.db.SelectContext(ctx, &discussions, query, courseID); err != nil {
		return nil, 0, fmt.Errorf("list discussions: %w", err)
	}

	const countQuery = `SELECT COUNT(*) FROM discussions WHERE course_id = $1`
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, courseID); err != nil {
		return nil, 0, fmt.Errorf("count discussions: %w", err)
	}
	return discussions, total, nil
}

// FindByID fetches a discussion detail by ID.
func (r *DiscussionRepository) FindByID(ctx context.Context, id string) (*models.DiscussionDetail, error) {
	const query = `SELECT d.id, d.course_id, d.author_id, d.title, d.content, d.created_at, d.updated_at,
        u.username AS author_name,
        (SELECT COUNT(*) FROM comments cm WHERE cm.discussion_id = d.id) AS comment_count
        FROM discussions d JOIN users u ON u.id = d.author_id
        WHERE d.id = $1`
	var detail models.DiscussionDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// Create inserts a new discussion thread.
func (r *DiscussionRepository) Create(ctx context.Context, discussion *models.Discussion) error {
	if discussion.ID == "" {
		discussion.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if discussion.CreatedAt.IsZero() {
		discussion.CreatedAt = now
	}
	discussion.UpdatedAt = now
	const query = `INSERT INTO discussions (id, course_id, author_id, title, content, created_at, updated_at)
        VALUES (:id, :course_id, :author_id, :title, :content, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, discussion); err != nil {
		return fmt.Errorf("create discussion: %w", err)
	}
	return nil
}

// Update rewrites a thread's title and body.
func (r *DiscussionRepository) Update(ctx context.Context, discussion *models.Discussion) error {
	discussion.UpdatedAt = time.Now().UTC()
	const query = `UPDATE discussions SET title = :title, content = :content, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, discussion); err != nil {
		return fmt.Errorf("update discussion: %w", err)
	}
	return nil
}

// Delete removes a discussion and its comments.
func (r *DiscussionRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM discussions WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete discussion: %w", err)
	}
	return nil
}

// ListComments returns all comments of a discussion in creation order.
func (r *DiscussionRepository) ListComments(ctx context.Context, discussionID string) ([]models.CommentDetail, error) {
	const query = `SELECT cm.id, cm.discussion_id, cm.author_id, cm.parent_id, cm.content, cm.solution, cm.created_at, cm.updated_at,
        u.username AS author_name
        FROM comments cm JOIN users u ON u.id = cm.author_id
        WHERE cm.discussion_id = $1 ORDER BY cm.created_at ASC`
	var comments []models.CommentDetail
	if err := r.db.SelectContext(ctx, &comments, query, discussionID); err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	return comments, nil
}

// FindCommentByID fetches a comment by ID.
func (r *DiscussionRepository) FindCommentByID(ctx context.Context, id string) (*models.Comment, error) {
	const query = `SELECT id, discussion_id, author_id, parent_id, content, solution, created_at, updated_at FROM comments WHERE id = $1 LIMIT 1`
	var comment models.Comment
	if err := r.db.GetContext(ctx, &comment, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find comment by id: %w", err)
	}
	return &comment, nil
}

// CreateComment inserts a new comment or reply.
func (r *DiscussionRepository) CreateComment(ctx context.Context, comment *models.Comment) error {
	if comment.ID == "" {
		comment.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if comment.CreatedAt.IsZero() {
		comment.CreatedAt = now
	}
	comment.UpdatedAt = now
	const query = `INSERT INTO comments (id, discussion_id, author_id, parent_id, content, solution, created_at, updated_at)
        VALUES (:id, :discussion_id, :author_id, :parent_id, :content, :solution, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, comment); err != nil {
		return fmt.Errorf("create comment: %w", err)
	}
	return nil
}

// UpdateComment rewrites a comment's body.
func (r *DiscussionRepository) UpdateComment(ctx context.Context, comment *models.Comment) error {
	comment.UpdatedAt = time.Now().UTC()
	const query = `UPDATE comments SET content = :content, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, comment); err != nil {
		return fmt.Errorf("update comment: %w", err)
	}
	return nil
}

// MarkSolution flags a single comment as the thread solution, clearing any
// previous solution in the same thread.
func (r *DiscussionRepository) MarkSolution(ctx context.Context, discussionID, commentID string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin solution tx: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	if _, err := tx.ExecContext(ctx, `UPDATE comments SET solution = FALSE, updated_at = $2 WHERE discussion_id = $1 AND solution = TRUE`, discussionID, now); err != nil {
		return fmt.Errorf("clear solution: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE comments SET solution = TRUE, updated_at = $3 WHERE id = $1 AND discussion_id = $2`, commentID, discussionID, now); err != nil {
		return fmt.Errorf("mark solution: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit solution tx: %w", err)
	}
	return nil
}

// DeleteComment removes a comment permanently.
func (r *DiscussionRepository) DeleteComment(ctx context.Context, id string) error {
	const query = `DELETE FROM comments WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete comment: %w", err)
	}
	return nil
}
