package application

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"gitlab.com/timkado/api/daisi-feed-client/internal/adapters/memory"
	"gitlab.com/timkado/api/daisi-feed-client/internal/domain"
)

var errBoom = &domain.APIError{Status: http.StatusInternalServerError, Code: domain.ErrCodeInternal, Message: "boom"}

// fakeBackend is an in-memory stand-in for the three REST surfaces.
type fakeBackend struct {
	mu       sync.Mutex
	posts    map[int64]domain.Post
	comments map[int64][]domain.Comment
	calls    map[string]int
	failNext map[string]error
	nextID   int64
	likeGate chan struct{}
	me       domain.User
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		posts:    map[int64]domain.Post{},
		comments: map[int64][]domain.Comment{},
		calls:    map[string]int{},
		failNext: map[string]error{},
		nextID:   100,
		me:       domain.User{ID: "u1", FirstName: "Ada", LastName: "Lovelace"},
	}
}

func (f *fakeBackend) record(op string) error {
	f.calls[op]++
	if err, ok := f.failNext[op]; ok {
		delete(f.failNext, op)
		return err
	}
	return nil
}

func (f *fakeBackend) count(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *fakeBackend) fail(op string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failNext[op] = err
}

func (f *fakeBackend) addPost(p domain.Post) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.posts[p.ID] = p
}

func (f *fakeBackend) RefreshCredentials(context.Context, string) (domain.CredentialPair, error) {
	return domain.CredentialPair{}, errors.New("not used")
}

func (f *fakeBackend) Register(_ context.Context, in domain.RegisterInput) (domain.AuthResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("register"); err != nil {
		return domain.AuthResult{}, err
	}
	return domain.AuthResult{
		User:        domain.User{ID: "u2", FirstName: in.FirstName, LastName: in.LastName, Email: in.Email},
		Credentials: domain.CredentialPair{AccessCredential: "a", RefreshCredential: "r"},
	}, nil
}

func (f *fakeBackend) Login(_ context.Context, in domain.LoginInput) (domain.AuthResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("login"); err != nil {
		return domain.AuthResult{}, err
	}
	return domain.AuthResult{User: f.me, Credentials: domain.CredentialPair{AccessCredential: "a", RefreshCredential: "r"}}, nil
}

func (f *fakeBackend) Logout(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.record("logout")
}

func (f *fakeBackend) Me(context.Context) (domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.me, f.record("me")
}

func (f *fakeBackend) UserByID(_ context.Context, id string) (domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return domain.User{ID: id}, f.record("user")
}

func (f *fakeBackend) ListPosts(_ context.Context, cursor, size int) (domain.Page[domain.Post], error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("listPosts"); err != nil {
		return domain.Page[domain.Post]{}, err
	}
	items := make([]domain.Post, 0, len(f.posts))
	for id := int64(1); id <= f.nextID; id++ {
		if p, ok := f.posts[id]; ok {
			items = append(items, p)
		}
	}
	return domain.Page[domain.Post]{Items: items, Cursor: cursor, IsLastPage: true, TotalPages: 1, TotalElements: int64(len(items))}, nil
}

func (f *fakeBackend) ListUserPosts(ctx context.Context, userID string, cursor, size int) (domain.Page[domain.Post], error) {
	return f.ListPosts(ctx, cursor, size)
}

func (f *fakeBackend) GetPost(_ context.Context, id int64) (domain.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("getPost"); err != nil {
		return domain.Post{}, err
	}
	p, ok := f.posts[id]
	if !ok {
		return domain.Post{}, &domain.APIError{Status: http.StatusNotFound, Code: domain.ErrCodeNotFound, Message: "Post not found"}
	}
	return p, nil
}

func (f *fakeBackend) CreatePost(_ context.Context, in domain.PostInput) (domain.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("createPost"); err != nil {
		return domain.Post{}, err
	}
	f.nextID++
	me := f.me
	p := domain.Post{ID: f.nextID, Content: *in.Content, Author: &me}
	f.posts[p.ID] = p
	return p, nil
}

func (f *fakeBackend) UpdatePost(_ context.Context, id int64, in domain.PostInput) (domain.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("updatePost"); err != nil {
		return domain.Post{}, err
	}
	p := f.posts[id]
	if in.Content != nil {
		p.Content = *in.Content
	}
	f.posts[id] = p
	return p, nil
}

func (f *fakeBackend) DeletePost(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("deletePost"); err != nil {
		return err
	}
	delete(f.posts, id)
	return nil
}

func (f *fakeBackend) TogglePostLike(ctx context.Context, id int64) (domain.Post, error) {
	if f.likeGate != nil {
		<-f.likeGate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("likePost"); err != nil {
		return domain.Post{}, err
	}
	p := f.posts[id]
	p.LikeState = p.LikeState.Toggled()
	f.posts[id] = p
	return p, nil
}

func (f *fakeBackend) PostLikes(context.Context, int64) ([]domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return []domain.User{f.me}, f.record("postLikes")
}

func (f *fakeBackend) ListComments(_ context.Context, postID int64) ([]domain.Comment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("listComments"); err != nil {
		return nil, err
	}
	return append([]domain.Comment(nil), f.comments[postID]...), nil
}

func (f *fakeBackend) CreateComment(_ context.Context, postID int64, in domain.CommentInput) (domain.Comment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("createComment"); err != nil {
		return domain.Comment{}, err
	}
	f.nextID++
	c := domain.Comment{ID: f.nextID, PostID: postID, Content: in.Content, ParentCommentID: in.ParentCommentID}
	f.comments[postID] = append(f.comments[postID], c)
	p := f.posts[postID]
	p.CommentCount++
	f.posts[postID] = p
	return c, nil
}

func (f *fakeBackend) GetComment(_ context.Context, id int64) (domain.Comment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("getComment"); err != nil {
		return domain.Comment{}, err
	}
	for _, list := range f.comments {
		for _, c := range list {
			if c.ID == id {
				return c, nil
			}
		}
	}
	return domain.Comment{}, &domain.APIError{Status: http.StatusNotFound, Code: domain.ErrCodeNotFound}
}

func (f *fakeBackend) UpdateComment(_ context.Context, id int64, content string) (domain.Comment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("updateComment"); err != nil {
		return domain.Comment{}, err
	}
	for pid, list := range f.comments {
		for i, c := range list {
			if c.ID == id {
				c.Content = content
				list[i] = c
				f.comments[pid] = list
				return c, nil
			}
		}
	}
	return domain.Comment{}, &domain.APIError{Status: http.StatusNotFound, Code: domain.ErrCodeNotFound}
}

func (f *fakeBackend) DeleteComment(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("deleteComment"); err != nil {
		return err
	}
	for pid, list := range f.comments {
		if out, ok := domain.RemoveComment(list, id); ok {
			f.comments[pid] = out
		}
	}
	return nil
}

func (f *fakeBackend) ToggleCommentLike(_ context.Context, id int64) (domain.Comment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("likeComment"); err != nil {
		return domain.Comment{}, err
	}
	for pid, list := range f.comments {
		for i, c := range list {
			if c.ID == id {
				c.LikeState = c.LikeState.Toggled()
				list[i] = c
				f.comments[pid] = list
				return c, nil
			}
		}
	}
	return domain.Comment{}, &domain.APIError{Status: http.StatusNotFound, Code: domain.ErrCodeNotFound}
}

func (f *fakeBackend) CommentLikes(context.Context, int64) ([]domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return nil, f.record("commentLikes")
}

type recordingNotifier struct {
	mu        sync.Mutex
	successes []string
	failures  []string
}

func (n *recordingNotifier) Success(_ context.Context, msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.successes = append(n.successes, msg)
}

func (n *recordingNotifier) Failure(_ context.Context, msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.failures = append(n.failures, msg)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.InvalidationEvent
}

func (p *recordingPublisher) PublishInvalidation(_ context.Context, e domain.InvalidationEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) reasons() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Reason)
	}
	return out
}

type feedFixture struct {
	backend   *fakeBackend
	sessions  *SessionStore
	cache     *ResourceCache
	feed      *FeedService
	notifier  *recordingNotifier
	publisher *recordingPublisher
}

func newFeedFixture() *feedFixture {
	be := newFakeBackend()
	sessions := NewSessionStore(domain.NopLogger{}, memory.NewCredentialStore())
	_ = sessions.Establish(context.Background(), domain.AuthResult{
		User:        be.me,
		Credentials: domain.CredentialPair{AccessCredential: "a", RefreshCredential: "r"},
	})
	cache := NewResourceCache(domain.NopLogger{}, nil)
	notifier := &recordingNotifier{}
	publisher := &recordingPublisher{}
	feed := NewFeedService(FeedServiceDeps{
		Logger:    domain.NopLogger{},
		Posts:     be,
		Comments:  be,
		Sessions:  sessions,
		Cache:     cache,
		Publisher: publisher,
		Notifier:  notifier,
		Origin:    "test-origin",
	})
	return &feedFixture{backend: be, sessions: sessions, cache: cache, feed: feed, notifier: notifier, publisher: publisher}
}
