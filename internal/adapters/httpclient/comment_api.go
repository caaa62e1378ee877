package httpclient

import (
	"context"
	"net/http"
	"strconv"

	"gitlab.com/timkado/api/daisi-feed-client/internal/domain"
)

var _ domain.CommentAPI = (*Client)(nil)

func commentPath(id int64, suffix string) string {
	return "/comments/" + strconv.FormatInt(id, 10) + suffix
}

// ListComments returns every comment of a post, flattened. The backend may
// nest replies; nesting is turned into parent ids here.
func (c *Client) ListComments(ctx context.Context, postID int64) ([]domain.Comment, error) {
	var out []domain.Comment
	if err := c.do(ctx, request{method: http.MethodGet, path: postPath(postID, "/comments")}, &out); err != nil {
		return nil, err
	}
	flat := domain.FlattenComments(out)
	for i := range flat {
		if flat[i].PostID == 0 {
			flat[i].PostID = postID
		}
	}
	return flat, nil
}

// CreateComment adds a root comment, or a reply when in.ParentCommentID is set.
func (c *Client) CreateComment(ctx context.Context, postID int64, in domain.CommentInput) (domain.Comment, error) {
	var out domain.Comment
	if err := c.do(ctx, request{method: http.MethodPost, path: postPath(postID, "/comments"), body: in}, &out); err != nil {
		return domain.Comment{}, err
	}
	if out.PostID == 0 {
		out.PostID = postID
	}
	if out.ParentCommentID == nil && in.ParentCommentID != nil {
		parent := *in.ParentCommentID
		out.ParentCommentID = &parent
	}
	return out, nil
}

// GetComment fetches one comment by id.
func (c *Client) GetComment(ctx context.Context, id int64) (domain.Comment, error) {
	var out domain.Comment
	err := c.do(ctx, request{method: http.MethodGet, path: commentPath(id, "")}, &out)
	return out, err
}

// UpdateComment replaces a comment's content.
func (c *Client) UpdateComment(ctx context.Context, id int64, content string) (domain.Comment, error) {
	var out domain.Comment
	err := c.do(ctx, request{method: http.MethodPut, path: commentPath(id, ""), body: domain.CommentInput{Content: content}}, &out)
	return out, err
}

// DeleteComment removes a comment.
func (c *Client) DeleteComment(ctx context.Context, id int64) error {
	return c.do(ctx, request{method: http.MethodDelete, path: commentPath(id, "")}, nil)
}

// ToggleCommentLike flips the current user's like and returns the updated comment.
func (c *Client) ToggleCommentLike(ctx context.Context, id int64) (domain.Comment, error) {
	var out domain.Comment
	err := c.do(ctx, request{method: http.MethodPost, path: commentPath(id, "/like")}, &out)
	return out, err
}

// CommentLikes lists the users who liked a comment.
func (c *Client) CommentLikes(ctx context.Context, id int64) ([]domain.User, error) {
	var out []domain.User
	err := c.do(ctx, request{method: http.MethodGet, path: commentPath(id, "/likes")}, &out)
	return out, err
}
