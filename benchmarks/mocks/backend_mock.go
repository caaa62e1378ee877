package mocks

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"gitlab.com/timkado/api/daisi-feed-client/internal/domain"
)

// MockRefresher implements domain.TokenRefresher. Each call rotates the
// pair and takes Delay, long enough for concurrent 401s to pile up.
type MockRefresher struct {
	Delay time.Duration
	Calls atomic.Int64
}

// RefreshCredentials implements domain.TokenRefresher
func (m *MockRefresher) RefreshCredentials(ctx context.Context, _ string) (domain.CredentialPair, error) {
	n := m.Calls.Add(1)
	if m.Delay > 0 {
		select {
		case <-time.After(m.Delay):
		case <-ctx.Done():
			return domain.CredentialPair{}, ctx.Err()
		}
	}
	return domain.CredentialPair{
		AccessCredential:  fmt.Sprintf("access-%d", n),
		RefreshCredential: fmt.Sprintf("refresh-%d", n),
	}, nil
}

// MockFeedBackend implements domain.PostAPI and domain.CommentAPI in memory.
type MockFeedBackend struct {
	mu       sync.Mutex
	posts    map[int64]domain.Post
	comments map[int64][]domain.Comment
	nextID   int64

	Requests atomic.Int64
}

// NewMockFeedBackend seeds posts posts with commentsPerPost flat root comments each.
func NewMockFeedBackend(posts, commentsPerPost int) *MockFeedBackend {
	m := &MockFeedBackend{
		posts:    make(map[int64]domain.Post, posts),
		comments: make(map[int64][]domain.Comment, posts),
		nextID:   int64(posts*commentsPerPost) + 1000,
	}
	author := &domain.User{ID: "1", FirstName: "Bench", LastName: "User"}
	for i := 1; i <= posts; i++ {
		id := int64(i)
		m.posts[id] = domain.Post{ID: id, Content: fmt.Sprintf("post %d", i), Author: author, IsPublic: true, CommentCount: commentsPerPost}
		for j := 0; j < commentsPerPost; j++ {
			m.comments[id] = append(m.comments[id], domain.Comment{ID: int64(i*commentsPerPost + j), PostID: id, Content: "c", Author: author})
		}
	}
	return m
}

func (m *MockFeedBackend) ListPosts(_ context.Context, cursor, size int) (domain.Page[domain.Post], error) {
	m.Requests.Add(1)
	m.mu.Lock()
	defer m.mu.Unlock()
	items := make([]domain.Post, 0, size)
	for id := int64(cursor*size + 1); id <= int64((cursor+1)*size); id++ {
		if p, ok := m.posts[id]; ok {
			items = append(items, p)
		}
	}
	last := (cursor+1)*size >= len(m.posts)
	page := domain.Page[domain.Post]{Items: items, Cursor: cursor, IsLastPage: last, TotalElements: int64(len(m.posts))}
	if !last {
		page.NextCursor = cursor + 1
	}
	return page, nil
}

func (m *MockFeedBackend) ListUserPosts(ctx context.Context, _ string, cursor, size int) (domain.Page[domain.Post], error) {
	return m.ListPosts(ctx, cursor, size)
}

func (m *MockFeedBackend) GetPost(_ context.Context, id int64) (domain.Post, error) {
	m.Requests.Add(1)
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.posts[id]
	if !ok {
		return domain.Post{}, domain.NewAPIError(404, domain.ErrorResponse{Message: "Post not found"})
	}
	return p, nil
}

func (m *MockFeedBackend) CreatePost(_ context.Context, in domain.PostInput) (domain.Post, error) {
	m.Requests.Add(1)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	p := domain.Post{ID: m.nextID, Content: *in.Content, Author: &domain.User{ID: "1"}}
	m.posts[p.ID] = p
	return p, nil
}

func (m *MockFeedBackend) UpdatePost(_ context.Context, id int64, in domain.PostInput) (domain.Post, error) {
	m.Requests.Add(1)
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.posts[id]
	if in.Content != nil {
		p.Content = *in.Content
	}
	m.posts[id] = p
	return p, nil
}

func (m *MockFeedBackend) DeletePost(_ context.Context, id int64) error {
	m.Requests.Add(1)
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.posts, id)
	return nil
}

func (m *MockFeedBackend) TogglePostLike(_ context.Context, id int64) (domain.Post, error) {
	m.Requests.Add(1)
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.posts[id]
	p.LikeState = p.LikeState.Toggled()
	m.posts[id] = p
	return p, nil
}

func (m *MockFeedBackend) PostLikes(context.Context, int64) ([]domain.User, error) {
	m.Requests.Add(1)
	return []domain.User{}, nil
}

func (m *MockFeedBackend) ListComments(_ context.Context, postID int64) ([]domain.Comment, error) {
	m.Requests.Add(1)
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.Comment(nil), m.comments[postID]...), nil
}

func (m *MockFeedBackend) CreateComment(_ context.Context, postID int64, in domain.CommentInput) (domain.Comment, error) {
	m.Requests.Add(1)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	c := domain.Comment{ID: m.nextID, PostID: postID, Content: in.Content, ParentCommentID: in.ParentCommentID, Author: &domain.User{ID: "1"}}
	m.comments[postID] = append(m.comments[postID], c)
	return c, nil
}

func (m *MockFeedBackend) GetComment(_ context.Context, id int64) (domain.Comment, error) {
	m.Requests.Add(1)
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, list := range m.comments {
		for _, c := range list {
			if c.ID == id {
				return c, nil
			}
		}
	}
	return domain.Comment{}, domain.NewAPIError(404, domain.ErrorResponse{Message: "Comment not found"})
}

func (m *MockFeedBackend) UpdateComment(ctx context.Context, id int64, content string) (domain.Comment, error) {
	c, err := m.GetComment(ctx, id)
	c.Content = content
	return c, err
}

func (m *MockFeedBackend) DeleteComment(context.Context, int64) error {
	m.Requests.Add(1)
	return nil
}

func (m *MockFeedBackend) ToggleCommentLike(ctx context.Context, id int64) (domain.Comment, error) {
	c, err := m.GetComment(ctx, id)
	c.LikeState = c.LikeState.Toggled()
	return c, err
}

func (m *MockFeedBackend) CommentLikes(context.Context, int64) ([]domain.User, error) {
	m.Requests.Add(1)
	return []domain.User{}, nil
}
