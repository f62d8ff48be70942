package models

import "time"

// Discussion is a per-course forum thread.
type Discussion struct {
	ID        string    `db:"id" json:"id"`
	CourseID  string    `db:"course_id" json:"course_id"`
	AuthorID  string    `db:"author_id" json:"author_id"`
	Title     string    `db:"title" json:"title"`
	Content   string    `db:"content" json:"content"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// DiscussionDetail enriches a thread with author and activity info.
type DiscussionDetail struct {
	Discussion
	AuthorName   string `db:"author_name" json:"author_name"`
	CommentCount int    `db:"comment_count" json:"comment_count"`
}

// Comment is a reply within a thread; ParentID nests it under another comment.
type Comment struct {
	ID           string    `db:"id" json:"id"`
	DiscussionID string    `db:"discussion_id" json:"discussion_id"`
	AuthorID     string    `db:"author_id" json:"author_id"`
	ParentID     *string   `db:"parent_id" json:"parent_id,omitempty"`
	Content      string    `db:"content" json:"content"`
	Solution     bool      `db:"solution" json:"solution"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// CommentDetail enriches a comment with its author name.
type CommentDetail struct {
	Comment
	AuthorName string `db:"author_name" json:"author_name"`
}

// CommentNode is a comment with its nested replies resolved.
type CommentNode struct {
	CommentDetail
	Replies []CommentNode `json:"replies,omitempty"`
}
