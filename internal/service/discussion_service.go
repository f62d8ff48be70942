package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/coursehub/coursehub-api/internal/models"
	appErrors "github.com/coursehub/coursehub-api/pkg/errors"
)

type discussionRepository interface {
	ListByCourse(ctx context.Context, courseID string, page, pageSize int) ([]models.DiscussionDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.DiscussionDetail, error)
	Create(ctx context.Context, discussion *models.Discussion) error
	Update(ctx context.Context, discussion *models.Discussion) error
	Delete(ctx context.Context, id string) error
	ListComments(ctx context.Context, discussionID string) ([]models.CommentDetail, error)
	FindCommentByID(ctx context.Context, id string) (*models.Comment, error)
	CreateComment(ctx context.Context, comment *models.Comment) error
	UpdateComment(ctx context.Context, comment *models.Comment) error
	MarkSolution(ctx context.Context, discussionID, commentID string) error
	DeleteComment(ctx context.Context, id string) error
}

type discussionCourseReader interface {
	FindByID(ctx context.Context, id string) (*models.CourseDetail, error)
}

type discussionAccessChecker interface {
	CheckAccess(ctx context.Context, studentID, courseID string) (*models.Enrollment, error)
}

type discussionNotifier interface {
	Notify(ctx context.Context, userID, title, message string, kind models.NotificationType, relatedID *string)
}

// CreateDiscussionRequest holds a new thread payload.
type CreateDiscussionRequest struct {
	Title   string `json:"title" validate:"required,max=200"`
	Content string `json:"content" validate:"required,max=20000"`
}

// UpdateDiscussionRequest rewrites a thread's title and body.
type UpdateDiscussionRequest struct {
	Title   string `json:"title" validate:"required,max=200"`
	Content string `json:"content" validate:"required,max=20000"`
}

// CreateCommentRequest holds a reply payload. ParentID nests the comment
// under another comment in the same thread.
type CreateCommentRequest struct {
	Content  string  `json:"content" validate:"required,max=20000"`
	ParentID *string `json:"parent_id"`
}

// UpdateCommentRequest rewrites a comment's body.
type UpdateCommentRequest struct {
	Content string `json:"content" validate:"required,max=20000"`
}

// DiscussionService manages per-course forum threads.
type DiscussionService struct {
	repo        discussionRepository
	courses     discussionCourseReader
	enrollments discussionAccessChecker
	notifier    discussionNotifier
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewDiscussionService constructs a DiscussionService instance.
func NewDiscussionService(repo discussionRepository, courses discussionCourseReader, enrollments discussionAccessChecker, notifier discussionNotifier, validate *validator.Validate, logger *zap.Logger) *DiscussionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &DiscussionService{repo: repo, courses: courses, enrollments: enrollments, notifier: notifier, validator: validate, logger: logger}
}

// ListByCourse returns discussion threads for course participants.
func (s *DiscussionService) ListByCourse(ctx context.Context, courseID string, actor *models.JWTClaims, page, pageSize int) ([]models.DiscussionDetail, *models.Pagination, error) {
	if err := s.checkParticipant(ctx, courseID, actor); err != nil {
		return nil, nil, err
	}
	discussions, total, err := s.repo.ListByCourse(ctx, courseID, page, pageSize)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list discussions")
	}
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	return discussions, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

// Get returns a thread with its full comment tree.
func (s *DiscussionService) Get(ctx context.Context, discussionID string, actor *models.JWTClaims) (*models.DiscussionDetail, []models.CommentNode, error) {
	discussion, err := s.repo.FindByID(ctx, discussionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "discussion not found")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load discussion")
	}
	if err := s.checkParticipant(ctx, discussion.CourseID, actor); err != nil {
		return nil, nil, err
	}
	comments, err := s.repo.ListComments(ctx, discussionID)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load comments")
	}
	return discussion, buildCommentTree(comments), nil
}

// Create opens a new thread in a course the actor participates in.
func (s *DiscussionService) Create(ctx context.Context, courseID string, actor *models.JWTClaims, req CreateDiscussionRequest) (*models.Discussion, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid discussion payload")
	}
	if err := s.checkParticipant(ctx, courseID, actor); err != nil {
		return nil, err
	}
	discussion := &models.Discussion{CourseID: courseID, AuthorID: actor.UserID, Title: req.Title, Content: req.Content}
	if err := s.repo.Create(ctx, discussion); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create discussion")
	}
	return discussion, nil
}

// Update rewrites a thread. Authors edit their own; admins edit any.
func (s *DiscussionService) Update(ctx context.Context, discussionID string, actor *models.JWTClaims, req UpdateDiscussionRequest) (*models.Discussion, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid discussion payload")
	}
	discussion, err := s.repo.FindByID(ctx, discussionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "discussion not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load discussion")
	}
	if actor.Role != models.RoleAdmin && discussion.AuthorID != actor.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "discussion belongs to another user")
	}

	updated := discussion.Discussion
	updated.Title = req.Title
	updated.Content = req.Content
	if err := s.repo.Update(ctx, &updated); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update discussion")
	}
	return &updated, nil
}

// AddComment posts a reply and notifies the thread author.
func (s *DiscussionService) AddComment(ctx context.Context, discussionID string, actor *models.JWTClaims, req CreateCommentRequest) (*models.Comment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid comment payload")
	}

	discussion, err := s.repo.FindByID(ctx, discussionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "discussion not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load discussion")
	}
	if err := s.checkParticipant(ctx, discussion.CourseID, actor); err != nil {
		return nil, err
	}

	if req.ParentID != nil {
		parent, err := s.repo.FindCommentByID(ctx, *req.ParentID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "parent comment not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load parent comment")
		}
		if parent.DiscussionID != discussionID {
			return nil, appErrors.Clone(appErrors.ErrValidation, "parent comment belongs to another thread")
		}
	}

	comment := &models.Comment{DiscussionID: discussionID, AuthorID: actor.UserID, ParentID: req.ParentID, Content: req.Content}
	if err := s.repo.CreateComment(ctx, comment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create comment")
	}

	if s.notifier != nil && discussion.AuthorID != actor.UserID {
		s.notifier.Notify(ctx, discussion.AuthorID, "New reply", discussion.Title, models.NotificationContent, &comment.ID)
	}
	return comment, nil
}

// UpdateComment rewrites a reply. Only its author or an admin may edit it.
func (s *DiscussionService) UpdateComment(ctx context.Context, discussionID, commentID string, actor *models.JWTClaims, req UpdateCommentRequest) (*models.Comment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid comment payload")
	}
	comment, err := s.repo.FindCommentByID(ctx, commentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "comment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load comment")
	}
	if comment.DiscussionID != discussionID {
		return nil, appErrors.Clone(appErrors.ErrValidation, "comment belongs to another thread")
	}
	if actor.Role != models.RoleAdmin && comment.AuthorID != actor.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "comment belongs to another user")
	}

	comment.Content = req.Content
	if err := s.repo.UpdateComment(ctx, comment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update comment")
	}
	return comment, nil
}

// MarkSolution flags a comment as the accepted answer. Only the thread
// author, the course instructor or an admin may do this.
func (s *DiscussionService) MarkSolution(ctx context.Context, discussionID, commentID string, actor *models.JWTClaims) error {
	discussion, err := s.repo.FindByID(ctx, discussionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "discussion not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load discussion")
	}

	allowed := actor.Role == models.RoleAdmin || discussion.AuthorID == actor.UserID
	if !allowed {
		course, err := s.courses.FindByID(ctx, discussion.CourseID)
		if err == nil && course.InstructorID == actor.UserID {
			allowed = true
		}
	}
	if !allowed {
		return appErrors.Clone(appErrors.ErrForbidden, "only the author or instructor can mark a solution")
	}

	comment, err := s.repo.FindCommentByID(ctx, commentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "comment not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load comment")
	}
	if comment.DiscussionID != discussionID {
		return appErrors.Clone(appErrors.ErrValidation, "comment belongs to another thread")
	}

	if err := s.repo.MarkSolution(ctx, discussionID, commentID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark solution")
	}
	return nil
}

// Delete removes a thread. Authors delete their own; admins delete any.
func (s *DiscussionService) Delete(ctx context.Context, discussionID string, actor *models.JWTClaims) error {
	discussion, err := s.repo.FindByID(ctx, discussionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "discussion not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load discussion")
	}
	if actor.Role != models.RoleAdmin && discussion.AuthorID != actor.UserID {
		return appErrors.Clone(appErrors.ErrForbidden, "discussion belongs to another user")
	}
	if err := s.repo.Delete(ctx, discussionID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete discussion")
	}
	return nil
}

// DeleteComment removes a reply. The comment author, the course instructor
// and admins are allowed; replies nested under it are removed with it.
func (s *DiscussionService) DeleteComment(ctx context.Context, discussionID, commentID string, actor *models.JWTClaims) error {
	comment, err := s.repo.FindCommentByID(ctx, commentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "comment not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load comment")
	}
	if comment.DiscussionID != discussionID {
		return appErrors.Clone(appErrors.ErrValidation, "comment belongs to another thread")
	}

	allowed := actor.Role == models.RoleAdmin || comment.AuthorID == actor.UserID
	if !allowed {
		discussion, err := s.repo.FindByID(ctx, discussionID)
		if err == nil {
			course, err := s.courses.FindByID(ctx, discussion.CourseID)
			if err == nil && course.InstructorID == actor.UserID {
				allowed = true
			}
		}
	}
	if !allowed {
		return appErrors.Clone(appErrors.ErrForbidden, "comment belongs to another user")
	}

	if err := s.repo.DeleteComment(ctx, commentID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete comment")
	}
	return nil
}

func (s *DiscussionService) checkParticipant(ctx context.Context, courseID string, actor *models.JWTClaims) error {
	if actor.Role == models.RoleStudent {
		_, err := s.enrollments.CheckAccess(ctx, actor.UserID, courseID)
		return err
	}
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

// buildCommentTree nests replies under their parents preserving order.
func buildCommentTree(comments []models.CommentDetail) []models.CommentNode {
	nodes := make(map[string]*models.CommentNode, len(comments))
	order := make([]string, 0, len(comments))
	for _, c := range comments {
		nodes[c.ID] = &models.CommentNode{CommentDetail: c}
		order = append(order, c.ID)
	}

	// Comments arrive oldest first, so a parent always precedes its child.
	// Walking backwards guarantees a node's replies are complete before the
	// node itself is copied into its parent.
	for i := len(order) - 1; i >= 0; i-- {
		node := nodes[order[i]]
		if node.ParentID == nil {
			continue
		}
		if parent, ok := nodes[*node.ParentID]; ok {
			parent.Replies = append([]models.CommentNode{*node}, parent.Replies...)
		}
	}

	var roots []models.CommentNode
	for _, id := range order {
		node := nodes[id]
		if node.ParentID == nil {
			roots = append(roots, *node)
		}
	}
	return roots
}
