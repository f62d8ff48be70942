package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coursehub/coursehub-api/internal/models"
)

func comment(id string, parentID *string, offset time.Duration) models.CommentDetail {
	base := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	return models.CommentDetail{
		Comment: models.Comment{
			ID:           id,
			DiscussionID: "d1",
			ParentID:     parentID,
			CreatedAt:    base.Add(offset),
		},
	}
}

func TestBuildCommentTreeNestsReplies(t *testing.T) {
	c1 := "c1"
	c2 := "c2"
	comments := []models.CommentDetail{
		comment("c1", nil, 0),
		comment("c2", &c1, time.Minute),
		comment("c3", &c2, 2*time.Minute),
		comment("c4", nil, 3*time.Minute),
		comment("c5", &c1, 4*time.Minute),
	}

	roots := buildCommentTree(comments)
	require.Len(t, roots, 2)
	assert.Equal(t, "c1", roots[0].ID)
	assert.Equal(t, "c4", roots[1].ID)

	require.Len(t, roots[0].Replies, 2)
	assert.Equal(t, "c2", roots[0].Replies[0].ID)
	assert.Equal(t, "c5", roots[0].Replies[1].ID)

	require.Len(t, roots[0].Replies[0].Replies, 1)
	assert.Equal(t, "c3", roots[0].Replies[0].Replies[0].ID, "grandchildren stay attached through deep nesting")
}

func TestBuildCommentTreeSkipsMissingParents(t *testing.T) {
	orphanParent := "gone"
	comments := []models.CommentDetail{
		comment("c1", nil, 0),
		comment("c2", &orphanParent, time.Minute),
	}

	roots := buildCommentTree(comments)
	require.Len(t, roots, 1)
	assert.Equal(t, "c1", roots[0].ID)
	assert.Empty(t, roots[0].Replies)
}
