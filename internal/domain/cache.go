package domain

import (
	"context"
	"fmt"
	"strconv"
	"time"
)

// ResourceType names a cached resource family.
type ResourceType string

const (
	ResourcePost         ResourceType = "post"
	ResourcePostFeed     ResourceType = "posts"         // ID unused
	ResourceUserPosts    ResourceType = "user_posts"    // ID = author id
	ResourceComments     ResourceType = "comments"      // ID = post id, flat list
	ResourceComment      ResourceType = "comment"       // ID = comment id
	ResourceCommentCount ResourceType = "comment_count" // ID = post id
	ResourcePostLikes    ResourceType = "post_likes"    // ID = post id
	ResourceCommentLikes ResourceType = "comment_likes" // ID = comment id
	ResourceUser         ResourceType = "user"          // ID = user id
	ResourceCurrentUser  ResourceType = "current_user"  // ID unused
)

// NoCursor marks keys of non-paginated entries.
const NoCursor = -1

// CacheKey identifies one cache entry. At most one entry exists per key.
type CacheKey struct {
	Type   ResourceType `json:"type"`
	ID     string       `json:"id,omitempty"`
	Cursor int          `json:"cursor"`
}

// RecordKey is the key of a single, non-paginated entry.
func RecordKey(t ResourceType, id string) CacheKey {
	return CacheKey{Type: t, ID: id, Cursor: NoCursor}
}

// PageKey is the key of one page of a collection.
func PageKey(t ResourceType, id string, cursor int) CacheKey {
	return CacheKey{Type: t, ID: id, Cursor: cursor}
}

// Collection returns the key with its cursor dropped, identifying the whole collection.
func (k CacheKey) Collection() CacheKey {
	return CacheKey{Type: k.Type, ID: k.ID, Cursor: NoCursor}
}

// IsPage reports whether the key addresses a page.
func (k CacheKey) IsPage() bool {
	return k.Cursor != NoCursor
}

func (k CacheKey) String() string {
	if k.IsPage() {
		return fmt.Sprintf("%s:%s:%d", k.Type, k.ID, k.Cursor)
	}
	return fmt.Sprintf("%s:%s", k.Type, k.ID)
}

// IDString formats a numeric resource id for cache keys.
func IDString(id int64) string {
	return strconv.FormatInt(id, 10)
}

// InvalidationScope says whether an invalidation targets one key or every page of a collection.
type InvalidationScope string

const (
	ScopeKey        InvalidationScope = "key"
	ScopeCollection InvalidationScope = "collection"
)

// Invalidation is one cache-dropping instruction.
type Invalidation struct {
	Key   CacheKey          `json:"key"`
	Scope InvalidationScope `json:"scope"`
}

// InvalidationEvent is broadcast after a successful mutation so other client
// processes sharing the account drop the same entries.
type InvalidationEvent struct {
	ID         string         `json:"id"`
	Origin     string         `json:"origin"`
	Reason     string         `json:"reason"`
	Entries    []Invalidation `json:"entries"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// InvalidationPublisher fans invalidation events out to other processes.
type InvalidationPublisher interface {
	PublishInvalidation(ctx context.Context, event InvalidationEvent) error
}

// InvalidationHandler is called for every received event.
type InvalidationHandler func(ctx context.Context, event InvalidationEvent) error

// InvalidationSubscriber receives invalidation events from other processes.
type InvalidationSubscriber interface {
	// SubscribeInvalidations registers handler and returns once the subscription is confirmed.
	// Delivery continues in the background until Close or ctx cancellation.
	SubscribeInvalidations(ctx context.Context, handler InvalidationHandler) error
	Close() error
}

// InvalidationBus is both ends of the cross-process channel.
type InvalidationBus interface {
	InvalidationPublisher
	InvalidationSubscriber
	// Healthy reports whether the underlying connection is usable.
	Healthy(ctx context.Context) error
}
