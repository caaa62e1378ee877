package application

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"gitlab.com/timkado/api/daisi-feed-client/internal/adapters/metrics"
	"gitlab.com/timkado/api/daisi-feed-client/internal/domain"
)

// LikeTarget names a likeable record. PostID is the owning post of a comment.
type LikeTarget struct {
	Resource domain.ResourceType
	ID       int64
	PostID   int64
}

// PostTarget returns the target for a post.
func PostTarget(id int64) LikeTarget {
	return LikeTarget{Resource: domain.ResourcePost, ID: id, PostID: id}
}

// CommentTarget returns the target for a comment on postID.
func CommentTarget(postID, id int64) LikeTarget {
	return LikeTarget{Resource: domain.ResourceComment, ID: id, PostID: postID}
}

// LikeObserver sees every displayed state of a target. A toggle shows at
// most three states: the snapshot, the optimistic guess and the server's
// answer (or the snapshot again on rollback).
type LikeObserver func(target LikeTarget, state domain.LikeState)

type likeView struct {
	state    domain.LikeState
	inFlight bool
}

// LikeController applies like toggles optimistically. The displayed state
// flips before the network call and is rolled back to the exact snapshot if
// the call fails. One toggle per target may be in flight.
type LikeController struct {
	logger   domain.Logger
	feed     *FeedService
	notifier domain.Notifier

	mu        sync.Mutex
	views     map[LikeTarget]*likeView
	observers []LikeObserver
}

// NewLikeController creates a controller writing confirmed state through feed's cache.
func NewLikeController(logger domain.Logger, feed *FeedService, notifier domain.Notifier) *LikeController {
	if logger == nil {
		panic("logger is nil in NewLikeController")
	}
	if feed == nil {
		panic("feed service is nil in NewLikeController")
	}
	return &LikeController{
		logger:   logger,
		feed:     feed,
		notifier: notifier,
		views:    make(map[LikeTarget]*likeView),
	}
}

// Subscribe registers an observer for displayed state changes.
func (c *LikeController) Subscribe(obs LikeObserver) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observers = append(c.observers, obs)
}

// Track seeds the displayed state of target, as when a record is rendered.
// A target with a toggle in flight keeps its optimistic state.
func (c *LikeController) Track(target LikeTarget, state domain.LikeState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if v, ok := c.views[target]; ok && v.inFlight {
		return
	}
	c.views[target] = &likeView{state: state}
}

// State returns the displayed state of target.
func (c *LikeController) State(target LikeTarget) (domain.LikeState, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.views[target]
	if !ok {
		return domain.LikeState{}, false
	}
	return v.state, true
}

// Toggle flips the current user's like on target. On success the server's
// state is returned and written through the cache; on failure the snapshot
// is restored and the error returned.
func (c *LikeController) Toggle(ctx context.Context, target LikeTarget) (domain.LikeState, error) {
	if target.Resource != domain.ResourcePost && target.Resource != domain.ResourceComment {
		return domain.LikeState{}, fmt.Errorf("%s records cannot be liked", target.Resource)
	}
	if _, tracked := c.State(target); !tracked {
		seed, err := c.seed(ctx, target)
		if err != nil {
			return domain.LikeState{}, err
		}
		c.mu.Lock()
		if _, ok := c.views[target]; !ok {
			c.views[target] = &likeView{state: seed}
		}
		c.mu.Unlock()
	}

	c.mu.Lock()
	view := c.views[target]
	if view.inFlight {
		current := view.state
		c.mu.Unlock()
		metrics.IncrementOptimisticToggle("rejected")
		return current, domain.ErrLikeToggleInFlight
	}
	snapshot := view.state
	optimistic := snapshot.Toggled()
	view.state = optimistic
	view.inFlight = true
	observers := slices.Clone(c.observers)
	c.mu.Unlock()

	notifyLike(observers, target, optimistic)

	server, err := c.send(ctx, target)

	c.mu.Lock()
	view.inFlight = false
	if err != nil {
		view.state = snapshot
	} else {
		view.state = server
	}
	final := view.state
	observers = slices.Clone(c.observers)
	c.mu.Unlock()

	notifyLike(observers, target, final)

	if err != nil {
		metrics.IncrementOptimisticToggle("rolled_back")
		c.logger.Warn(ctx, "Like toggle failed; restored previous state",
			"resource", target.Resource, "id", target.ID, "error", err)
		if c.notifier != nil {
			c.notifier.Failure(ctx, domain.UserMessage(err))
		}
		return snapshot, err
	}

	metrics.IncrementOptimisticToggle("confirmed")
	if target.Resource == domain.ResourcePost {
		c.feed.applyPostLike(ctx, target.ID, server)
	} else {
		c.feed.applyCommentLike(ctx, target.PostID, target.ID, server)
	}
	return server, nil
}

func (c *LikeController) send(ctx context.Context, target LikeTarget) (domain.LikeState, error) {
	if target.Resource == domain.ResourcePost {
		post, err := c.feed.posts.TogglePostLike(ctx, target.ID)
		return post.LikeState, err
	}
	comment, err := c.feed.comments.ToggleCommentLike(ctx, target.ID)
	return comment.LikeState, err
}

// seed finds the current state of an untracked target, from the cache when
// possible and from the server otherwise.
func (c *LikeController) seed(ctx context.Context, target LikeTarget) (domain.LikeState, error) {
	if target.Resource == domain.ResourcePost {
		if v, ok := c.feed.cache.Peek(domain.RecordKey(domain.ResourcePost, domain.IDString(target.ID))); ok {
			if p, ok := v.(domain.Post); ok {
				return p.LikeState, nil
			}
		}
		post, err := c.feed.Post(ctx, target.ID)
		return post.LikeState, err
	}

	if v, ok := c.feed.cache.Peek(domain.RecordKey(domain.ResourceComments, domain.IDString(target.PostID))); ok {
		if flat, ok := v.([]domain.Comment); ok {
			for _, cm := range flat {
				if cm.ID == target.ID {
					return cm.LikeState, nil
				}
			}
		}
	}
	comment, err := c.feed.Comment(ctx, target.ID)
	return comment.LikeState, err
}

func notifyLike(observers []LikeObserver, target LikeTarget, state domain.LikeState) {
	for _, obs := range observers {
		obs(target, state)
	}
}
