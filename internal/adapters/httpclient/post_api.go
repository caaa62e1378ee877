package httpclient

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"gitlab.com/timkado/api/daisi-feed-client/internal/domain"
)

var _ domain.PostAPI = (*Client)(nil)

func pageQuery(cursor, size int) url.Values {
	q := url.Values{}
	q.Set("page", strconv.Itoa(cursor))
	q.Set("size", strconv.Itoa(size))
	return q
}

func postPath(id int64, suffix string) string {
	return "/posts/" + strconv.FormatInt(id, 10) + suffix
}

// ListPosts returns one page of the global feed.
func (c *Client) ListPosts(ctx context.Context, cursor, size int) (domain.Page[domain.Post], error) {
	var out pagePayload[domain.Post]
	if err := c.do(ctx, request{method: http.MethodGet, path: "/posts", query: pageQuery(cursor, size)}, &out); err != nil {
		return domain.Page[domain.Post]{}, err
	}
	return out.page(), nil
}

// ListUserPosts returns one page of a single author's posts.
func (c *Client) ListUserPosts(ctx context.Context, userID string, cursor, size int) (domain.Page[domain.Post], error) {
	var out pagePayload[domain.Post]
	req := request{method: http.MethodGet, path: "/posts/user/" + url.PathEscape(userID), query: pageQuery(cursor, size)}
	if err := c.do(ctx, req, &out); err != nil {
		return domain.Page[domain.Post]{}, err
	}
	return out.page(), nil
}

func (c *Client) GetPost(ctx context.Context, id int64) (domain.Post, error) {
	var out domain.Post
	err := c.do(ctx, request{method: http.MethodGet, path: postPath(id, "")}, &out)
	return out, err
}

func (c *Client) CreatePost(ctx context.Context, in domain.PostInput) (domain.Post, error) {
	var out domain.Post
	err := c.do(ctx, request{method: http.MethodPost, path: "/posts", body: in}, &out)
	return out, err
}

func (c *Client) UpdatePost(ctx context.Context, id int64, in domain.PostInput) (domain.Post, error) {
	var out domain.Post
	err := c.do(ctx, request{method: http.MethodPut, path: postPath(id, ""), body: in}, &out)
	return out, err
}

func (c *Client) DeletePost(ctx context.Context, id int64) error {
	return c.do(ctx, request{method: http.MethodDelete, path: postPath(id, "")}, nil)
}

// TogglePostLike flips the current user's like and returns the post as the server now sees it.
func (c *Client) TogglePostLike(ctx context.Context, id int64) (domain.Post, error) {
	var out domain.Post
	err := c.do(ctx, request{method: http.MethodPost, path: postPath(id, "/like")}, &out)
	return out, err
}

func (c *Client) PostLikes(ctx context.Context, id int64) ([]domain.User, error) {
	var out []domain.User
	err := c.do(ctx, request{method: http.MethodGet, path: postPath(id, "/likes")}, &out)
	return out, err
}
