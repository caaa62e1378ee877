package application

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"

	"gitlab.com/timkado/api/daisi-feed-client/internal/domain"
	"gitlab.com/timkado/api/daisi-feed-client/pkg/contextkeys"
)

const publishTimeout = 3 * time.Second

// FeedService serves posts and comments through the ResourceCache and keeps
// the cache coherent after every successful mutation.
type FeedService struct {
	logger    domain.Logger
	posts     domain.PostAPI
	comments  domain.CommentAPI
	sessions  *SessionStore
	cache     *ResourceCache
	publisher domain.InvalidationPublisher
	notifier  domain.Notifier
	origin    string
	pageSize  int
}

// FeedServiceDeps groups the collaborators of FeedService. Publisher and
// Notifier are optional.
type FeedServiceDeps struct {
	Logger    domain.Logger
	Posts     domain.PostAPI
	Comments  domain.CommentAPI
	Sessions  *SessionStore
	Cache     *ResourceCache
	Publisher domain.InvalidationPublisher
	Notifier  domain.Notifier
	Origin    string
	PageSize  int
}

// NewFeedService creates a FeedService.
func NewFeedService(d FeedServiceDeps) *FeedService {
	if d.Logger == nil || d.Posts == nil || d.Comments == nil || d.Sessions == nil || d.Cache == nil {
		panic("missing dependency in NewFeedService")
	}
	if d.PageSize <= 0 {
		d.PageSize = 10
	}
	if d.Origin == "" {
		d.Origin = uuid.NewString()
	}
	return &FeedService{
		logger:    d.Logger,
		posts:     d.Posts,
		comments:  d.Comments,
		sessions:  d.Sessions,
		cache:     d.Cache,
		publisher: d.Publisher,
		notifier:  d.Notifier,
		origin:    d.Origin,
		pageSize:  d.PageSize,
	}
}

// Origin identifies this process on the invalidation bus.
func (s *FeedService) Origin() string { return s.origin }

// Cache exposes the underlying cache to the like controller and tests.
func (s *FeedService) Cache() *ResourceCache { return s.cache }

// Feed returns one page of the global feed.
func (s *FeedService) Feed(ctx context.Context, cursor int) (domain.Page[domain.Post], error) {
	key := domain.PageKey(domain.ResourcePostFeed, "", cursor)
	return cachedFetch(ctx, s.cache, key, func(ctx context.Context) (domain.Page[domain.Post], error) {
		return s.posts.ListPosts(ctx, cursor, s.pageSize)
	})
}

// UserPosts returns one page of a user's posts.
func (s *FeedService) UserPosts(ctx context.Context, userID string, cursor int) (domain.Page[domain.Post], error) {
	key := domain.PageKey(domain.ResourceUserPosts, userID, cursor)
	return cachedFetch(ctx, s.cache, key, func(ctx context.Context) (domain.Page[domain.Post], error) {
		return s.posts.ListUserPosts(ctx, userID, cursor, s.pageSize)
	})
}

// Post returns a single post.
func (s *FeedService) Post(ctx context.Context, id int64) (domain.Post, error) {
	key := domain.RecordKey(domain.ResourcePost, domain.IDString(id))
	return cachedFetch(ctx, s.cache, key, func(ctx context.Context) (domain.Post, error) {
		return s.posts.GetPost(ctx, id)
	})
}

// CommentCount returns the number of comments on a post. The count is its
// own entry so a new comment invalidates it without touching other posts.
func (s *FeedService) CommentCount(ctx context.Context, postID int64) (int, error) {
	key := domain.RecordKey(domain.ResourceCommentCount, domain.IDString(postID))
	return cachedFetch(ctx, s.cache, key, func(ctx context.Context) (int, error) {
		post, err := s.posts.GetPost(ctx, postID)
		if err != nil {
			return 0, err
		}
		s.cache.Set(domain.RecordKey(domain.ResourcePost, domain.IDString(postID)), post)
		return post.CommentCount, nil
	})
}

// Comments returns the flat comment list of a post.
func (s *FeedService) Comments(ctx context.Context, postID int64) ([]domain.Comment, error) {
	key := domain.RecordKey(domain.ResourceComments, domain.IDString(postID))
	return cachedFetch(ctx, s.cache, key, func(ctx context.Context) ([]domain.Comment, error) {
		return s.comments.ListComments(ctx, postID)
	})
}

// CommentTree assembles the cached flat list into a forest.
func (s *FeedService) CommentTree(ctx context.Context, postID int64) ([]*domain.CommentNode, error) {
	flat, err := s.Comments(ctx, postID)
	if err != nil {
		return nil, err
	}
	return domain.BuildCommentTree(flat), nil
}

// Comment returns a single comment.
func (s *FeedService) Comment(ctx context.Context, id int64) (domain.Comment, error) {
	key := domain.RecordKey(domain.ResourceComment, domain.IDString(id))
	return cachedFetch(ctx, s.cache, key, func(ctx context.Context) (domain.Comment, error) {
		return s.comments.GetComment(ctx, id)
	})
}

// PostLikes lists the users who liked a post.
func (s *FeedService) PostLikes(ctx context.Context, postID int64) ([]domain.User, error) {
	key := domain.RecordKey(domain.ResourcePostLikes, domain.IDString(postID))
	return cachedFetch(ctx, s.cache, key, func(ctx context.Context) ([]domain.User, error) {
		return s.posts.PostLikes(ctx, postID)
	})
}

// CommentLikes lists the users who liked a comment.
func (s *FeedService) CommentLikes(ctx context.Context, commentID int64) ([]domain.User, error) {
	key := domain.RecordKey(domain.ResourceCommentLikes, domain.IDString(commentID))
	return cachedFetch(ctx, s.cache, key, func(ctx context.Context) ([]domain.User, error) {
		return s.comments.CommentLikes(ctx, commentID)
	})
}

// FetchCollection reads any paginated or list resource by type. id is the
// owning record (author for user_posts, post for comments) and is ignored
// for the global feed.
func (s *FeedService) FetchCollection(ctx context.Context, resource domain.ResourceType, id string, cursor int) (any, error) {
	switch resource {
	case domain.ResourcePostFeed:
		return s.Feed(ctx, cursor)
	case domain.ResourceUserPosts:
		return s.UserPosts(ctx, id, cursor)
	case domain.ResourceComments, domain.ResourcePostLikes, domain.ResourceCommentLikes:
		num, err := parseID(id)
		if err != nil {
			return nil, err
		}
		switch resource {
		case domain.ResourceComments:
			return s.Comments(ctx, num)
		case domain.ResourcePostLikes:
			return s.PostLikes(ctx, num)
		default:
			return s.CommentLikes(ctx, num)
		}
	}
	return nil, fmt.Errorf("%s is not a collection", resource)
}

// ApplyRemoteInvalidation handles an event from another process. Events this
// process published itself are ignored.
func (s *FeedService) ApplyRemoteInvalidation(ctx context.Context, event domain.InvalidationEvent) error {
	if event.Origin == s.origin {
		return nil
	}
	ctx = context.WithValue(ctx, contextkeys.InvalidationEventIDKey, event.ID)
	removed := s.cache.Invalidate("remote", event.Entries...)
	s.logger.Debug(ctx, "Applied remote cache invalidation",
		"origin", event.Origin, "reason", event.Reason, "entries", len(event.Entries), "removed", removed)
	return nil
}

// publish fans entries out to other processes. Failures only cost other
// processes freshness, so they are logged and dropped.
func (s *FeedService) publish(ctx context.Context, reason string, entries []domain.Invalidation) {
	if s.publisher == nil || len(entries) == 0 {
		return
	}
	event := domain.InvalidationEvent{
		ID:         uuid.NewString(),
		Origin:     s.origin,
		Reason:     reason,
		Entries:    entries,
		OccurredAt: time.Now().UTC(),
	}
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := s.publisher.PublishInvalidation(pctx, event); err != nil {
		s.logger.Warn(ctx, "Failed to publish cache invalidation", "reason", reason, "event_id", event.ID, "error", err)
	}
}

func (s *FeedService) succeed(ctx context.Context, msg string) {
	if s.notifier != nil && msg != "" {
		s.notifier.Success(ctx, msg)
	}
}

func (s *FeedService) fail(ctx context.Context, op string, err error) error {
	s.logger.Warn(ctx, "Mutation failed; cache left untouched", "operation", op, "error", err)
	if s.notifier != nil {
		s.notifier.Failure(ctx, domain.UserMessage(err))
	}
	return err
}

func isPostPage(k domain.CacheKey) bool {
	return k.IsPage() && (k.Type == domain.ResourcePostFeed || k.Type == domain.ResourceUserPosts)
}

// patchPostPages rebuilds every cached page that holds post id.
func (s *FeedService) patchPostPages(id int64, fn func(domain.Post) domain.Post) int {
	return s.cache.UpdateWhere(isPostPage, func(v any) (any, bool) {
		page, ok := v.(domain.Page[domain.Post])
		if !ok {
			return v, false
		}
		i := slices.IndexFunc(page.Items, func(p domain.Post) bool { return p.ID == id })
		if i < 0 {
			return v, false
		}
		items := slices.Clone(page.Items)
		items[i] = fn(items[i])
		page.Items = items
		return page, true
	})
}

// patchPostRecord rewrites the cached post record when present.
func (s *FeedService) patchPostRecord(id int64, fn func(domain.Post) domain.Post) bool {
	return s.cache.Update(domain.RecordKey(domain.ResourcePost, domain.IDString(id)), func(v any) (any, bool) {
		post, ok := v.(domain.Post)
		if !ok {
			return v, false
		}
		return fn(post), true
	})
}

// cachedPostAuthor finds the author of a post in whatever the cache holds.
func (s *FeedService) cachedPostAuthor(id int64) string {
	if v, ok := s.cache.Peek(domain.RecordKey(domain.ResourcePost, domain.IDString(id))); ok {
		if post, ok := v.(domain.Post); ok && post.Author != nil {
			return post.Author.ID
		}
	}
	return ""
}
