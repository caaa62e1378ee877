package application

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"gitlab.com/timkado/api/daisi-feed-client/internal/domain"
)

const (
	msgPostCreated    = "Post created successfully!"
	msgPostUpdated    = "Post updated successfully!"
	msgPostDeleted    = "Post deleted successfully!"
	msgCommentAdded   = "Comment added successfully!"
	msgCommentUpdated = "Comment updated successfully!"
	msgCommentDeleted = "Comment deleted successfully!"
)

// MutationOp names a write against the backend.
type MutationOp string

const (
	OpCreate MutationOp = "create"
	OpUpdate MutationOp = "update"
	OpDelete MutationOp = "delete"
	OpLike   MutationOp = "like"
)

// Mutation is one write, described independently of the endpoint that
// carries it. For comments PostID names the owning post; for a reply
// Comment.ParentCommentID is set.
type Mutation struct {
	Resource domain.ResourceType
	Op       MutationOp
	ID       int64
	PostID   int64
	Post     domain.PostInput
	Comment  domain.CommentInput
}

func (m Mutation) reason() string {
	return string(m.Resource) + "." + string(m.Op)
}

func key(t domain.ResourceType, id int64) domain.Invalidation {
	return domain.Invalidation{Key: domain.RecordKey(t, domain.IDString(id)), Scope: domain.ScopeKey}
}

func collection(t domain.ResourceType, id string) domain.Invalidation {
	return domain.Invalidation{Key: domain.RecordKey(t, id), Scope: domain.ScopeCollection}
}

// PlanInvalidations lists the entries a successful mutation makes stale.
// authorID is the post author where it matters (create and delete of posts).
// Entries patched in place by write-through are not listed for local use,
// but other processes cannot patch, so the plan covers them too.
func PlanInvalidations(m Mutation, authorID string) []domain.Invalidation {
	switch m.Resource {
	case domain.ResourcePost:
		switch m.Op {
		case OpCreate:
			// A new post shifts every page offset, not just the first page.
			out := []domain.Invalidation{collection(domain.ResourcePostFeed, ""), key(domain.ResourcePost, m.ID)}
			if authorID != "" {
				out = append(out, collection(domain.ResourceUserPosts, authorID))
			}
			return out
		case OpUpdate:
			out := []domain.Invalidation{key(domain.ResourcePost, m.ID), collection(domain.ResourcePostFeed, "")}
			if authorID != "" {
				out = append(out, collection(domain.ResourceUserPosts, authorID))
			}
			return out
		case OpDelete:
			out := []domain.Invalidation{
				key(domain.ResourcePost, m.ID),
				key(domain.ResourceComments, m.ID),
				key(domain.ResourceCommentCount, m.ID),
				key(domain.ResourcePostLikes, m.ID),
				collection(domain.ResourcePostFeed, ""),
			}
			if authorID != "" {
				out = append(out, collection(domain.ResourceUserPosts, authorID))
			}
			return out
		case OpLike:
			return []domain.Invalidation{key(domain.ResourcePost, m.ID), key(domain.ResourcePostLikes, m.ID)}
		}
	case domain.ResourceComment:
		parentSide := []domain.Invalidation{
			key(domain.ResourceComments, m.PostID),
			key(domain.ResourceCommentCount, m.PostID),
			key(domain.ResourcePost, m.PostID),
		}
		switch m.Op {
		case OpCreate:
			return parentSide
		case OpUpdate:
			return []domain.Invalidation{key(domain.ResourceComment, m.ID), key(domain.ResourceComments, m.PostID)}
		case OpDelete:
			return append(parentSide, key(domain.ResourceComment, m.ID), key(domain.ResourceCommentLikes, m.ID))
		case OpLike:
			return []domain.Invalidation{key(domain.ResourceComment, m.ID), key(domain.ResourceComments, m.PostID), key(domain.ResourceCommentLikes, m.ID)}
		}
	}
	return nil
}

// Mutate dispatches m to the matching typed operation and returns the
// server's version of the record (nil for deletes).
func (s *FeedService) Mutate(ctx context.Context, m Mutation) (any, error) {
	switch {
	case m.Resource == domain.ResourcePost && m.Op == OpCreate:
		return s.CreatePost(ctx, m.Post)
	case m.Resource == domain.ResourcePost && m.Op == OpUpdate:
		return s.UpdatePost(ctx, m.ID, m.Post)
	case m.Resource == domain.ResourcePost && m.Op == OpDelete:
		return nil, s.DeletePost(ctx, m.ID)
	case m.Resource == domain.ResourcePost && m.Op == OpLike:
		return s.TogglePostLike(ctx, m.ID)
	case m.Resource == domain.ResourceComment && m.Op == OpCreate:
		return s.CreateComment(ctx, m.PostID, m.Comment)
	case m.Resource == domain.ResourceComment && m.Op == OpUpdate:
		return s.UpdateComment(ctx, m.PostID, m.ID, m.Comment.Content)
	case m.Resource == domain.ResourceComment && m.Op == OpDelete:
		return nil, s.DeleteComment(ctx, m.PostID, m.ID)
	case m.Resource == domain.ResourceComment && m.Op == OpLike:
		return s.ToggleCommentLike(ctx, m.PostID, m.ID)
	}
	return nil, fmt.Errorf("unsupported mutation %s", m.reason())
}

// CreatePost publishes a new post.
func (s *FeedService) CreatePost(ctx context.Context, in domain.PostInput) (domain.Post, error) {
	in = in.Normalize()
	if err := in.Validate(true); err != nil {
		return domain.Post{}, s.fail(ctx, "post.create", err)
	}
	post, err := s.posts.CreatePost(ctx, in)
	if err != nil {
		return domain.Post{}, s.fail(ctx, "post.create", err)
	}
	author := s.sessions.UserID()
	if post.Author != nil && post.Author.ID != "" {
		author = post.Author.ID
	}

	m := Mutation{Resource: domain.ResourcePost, Op: OpCreate, ID: post.ID}
	plan := PlanInvalidations(m, author)
	s.cache.Invalidate("local", plan...)
	s.cache.Set(domain.RecordKey(domain.ResourcePost, domain.IDString(post.ID)), post)
	s.publish(ctx, m.reason(), plan)

	s.logger.Info(ctx, "Post created", "post_id", post.ID)
	s.succeed(ctx, msgPostCreated)
	return post, nil
}

// UpdatePost edits a post and writes the result through to every cached copy.
func (s *FeedService) UpdatePost(ctx context.Context, id int64, in domain.PostInput) (domain.Post, error) {
	in = in.Normalize()
	if err := in.Validate(false); err != nil {
		return domain.Post{}, s.fail(ctx, "post.update", err)
	}
	post, err := s.posts.UpdatePost(ctx, id, in)
	if err != nil {
		return domain.Post{}, s.fail(ctx, "post.update", err)
	}
	if post.ID == 0 {
		post.ID = id
	}

	s.cache.Set(domain.RecordKey(domain.ResourcePost, domain.IDString(id)), post)
	patched := s.patchPostPages(id, func(domain.Post) domain.Post { return post })

	author := ""
	if post.Author != nil {
		author = post.Author.ID
	}
	m := Mutation{Resource: domain.ResourcePost, Op: OpUpdate, ID: id}
	s.publish(ctx, m.reason(), PlanInvalidations(m, author))

	s.logger.Info(ctx, "Post updated", "post_id", id, "pages_patched", patched)
	s.succeed(ctx, msgPostUpdated)
	return post, nil
}

// DeletePost removes a post and every entry derived from it.
func (s *FeedService) DeletePost(ctx context.Context, id int64) error {
	author := s.cachedPostAuthor(id)
	if err := s.posts.DeletePost(ctx, id); err != nil {
		return s.fail(ctx, "post.delete", err)
	}
	if author == "" {
		author = s.sessions.UserID()
	}

	m := Mutation{Resource: domain.ResourcePost, Op: OpDelete, ID: id}
	plan := PlanInvalidations(m, author)
	s.cache.Invalidate("local", plan...)
	s.publish(ctx, m.reason(), plan)

	s.logger.Info(ctx, "Post deleted", "post_id", id)
	s.succeed(ctx, msgPostDeleted)
	return nil
}

// TogglePostLike flips the like without optimistic display and writes the
// server's state through. The LikeController is the optimistic variant.
func (s *FeedService) TogglePostLike(ctx context.Context, id int64) (domain.Post, error) {
	post, err := s.posts.TogglePostLike(ctx, id)
	if err != nil {
		return domain.Post{}, s.fail(ctx, "post.like", err)
	}
	s.applyPostLike(ctx, id, post.LikeState)
	return post, nil
}

func (s *FeedService) applyPostLike(ctx context.Context, id int64, state domain.LikeState) {
	withLike := func(p domain.Post) domain.Post {
		p.LikeState = state
		return p
	}
	s.patchPostRecord(id, withLike)
	s.patchPostPages(id, withLike)
	s.cache.Invalidate("local", key(domain.ResourcePostLikes, id))

	m := Mutation{Resource: domain.ResourcePost, Op: OpLike, ID: id}
	s.publish(ctx, m.reason(), PlanInvalidations(m, ""))
}

// CreateComment adds a comment, or a reply when in.ParentCommentID is set.
func (s *FeedService) CreateComment(ctx context.Context, postID int64, in domain.CommentInput) (domain.Comment, error) {
	in.Content = strings.TrimSpace(in.Content)
	if err := in.Validate(); err != nil {
		return domain.Comment{}, s.fail(ctx, "comment.create", err)
	}
	comment, err := s.comments.CreateComment(ctx, postID, in)
	if err != nil {
		return domain.Comment{}, s.fail(ctx, "comment.create", err)
	}

	m := Mutation{Resource: domain.ResourceComment, Op: OpCreate, ID: comment.ID, PostID: postID}
	plan := PlanInvalidations(m, "")
	s.cache.Invalidate("local", plan...)
	s.cache.Set(domain.RecordKey(domain.ResourceComment, domain.IDString(comment.ID)), comment)
	s.patchPostPages(postID, func(p domain.Post) domain.Post {
		p.CommentCount++
		return p
	})
	s.publish(ctx, m.reason(), plan)

	s.logger.Info(ctx, "Comment created", "post_id", postID, "comment_id", comment.ID, "is_reply", in.ParentCommentID != nil)
	s.succeed(ctx, msgCommentAdded)
	return comment, nil
}

// ReplyToComment is CreateComment with a parent.
func (s *FeedService) ReplyToComment(ctx context.Context, postID, parentID int64, content string) (domain.Comment, error) {
	parent := parentID
	return s.CreateComment(ctx, postID, domain.CommentInput{Content: content, ParentCommentID: &parent})
}

// UpdateComment edits a comment and rebuilds the cached list around it.
func (s *FeedService) UpdateComment(ctx context.Context, postID, id int64, content string) (domain.Comment, error) {
	content = strings.TrimSpace(content)
	if err := (domain.CommentInput{Content: content}).Validate(); err != nil {
		return domain.Comment{}, s.fail(ctx, "comment.update", err)
	}
	comment, err := s.comments.UpdateComment(ctx, id, content)
	if err != nil {
		return domain.Comment{}, s.fail(ctx, "comment.update", err)
	}
	if comment.ID == 0 {
		comment.ID = id
	}
	if comment.PostID != 0 {
		postID = comment.PostID
	}

	s.cache.Set(domain.RecordKey(domain.ResourceComment, domain.IDString(id)), comment)
	s.cache.Update(domain.RecordKey(domain.ResourceComments, domain.IDString(postID)), func(v any) (any, bool) {
		flat, ok := v.([]domain.Comment)
		if !ok {
			return v, false
		}
		return domain.ReplaceComment(flat, comment)
	})

	m := Mutation{Resource: domain.ResourceComment, Op: OpUpdate, ID: id, PostID: postID}
	s.publish(ctx, m.reason(), PlanInvalidations(m, ""))

	s.logger.Info(ctx, "Comment updated", "post_id", postID, "comment_id", id)
	s.succeed(ctx, msgCommentUpdated)
	return comment, nil
}

// DeleteComment removes a comment. Cached feed pages lose the comment and
// every cached descendant from their count.
func (s *FeedService) DeleteComment(ctx context.Context, postID, id int64) error {
	removed := 1
	if v, ok := s.cache.Peek(domain.RecordKey(domain.ResourceComments, domain.IDString(postID))); ok {
		if flat, ok := v.([]domain.Comment); ok {
			removed = subtreeSize(flat, id)
		}
	}

	if err := s.comments.DeleteComment(ctx, id); err != nil {
		return s.fail(ctx, "comment.delete", err)
	}

	m := Mutation{Resource: domain.ResourceComment, Op: OpDelete, ID: id, PostID: postID}
	plan := PlanInvalidations(m, "")
	s.cache.Invalidate("local", plan...)
	s.patchPostPages(postID, func(p domain.Post) domain.Post {
		p.CommentCount = max(p.CommentCount-removed, 0)
		return p
	})
	s.publish(ctx, m.reason(), plan)

	s.logger.Info(ctx, "Comment deleted", "post_id", postID, "comment_id", id)
	s.succeed(ctx, msgCommentDeleted)
	return nil
}

// ToggleCommentLike flips a comment like and writes the server state through.
func (s *FeedService) ToggleCommentLike(ctx context.Context, postID, id int64) (domain.Comment, error) {
	comment, err := s.comments.ToggleCommentLike(ctx, id)
	if err != nil {
		return domain.Comment{}, s.fail(ctx, "comment.like", err)
	}
	if comment.PostID != 0 {
		postID = comment.PostID
	}
	s.applyCommentLike(ctx, postID, id, comment.LikeState)
	return comment, nil
}

func (s *FeedService) applyCommentLike(ctx context.Context, postID, id int64, state domain.LikeState) {
	s.cache.Update(domain.RecordKey(domain.ResourceComment, domain.IDString(id)), func(v any) (any, bool) {
		c, ok := v.(domain.Comment)
		if !ok {
			return v, false
		}
		c.LikeState = state
		return c, true
	})
	s.cache.Update(domain.RecordKey(domain.ResourceComments, domain.IDString(postID)), func(v any) (any, bool) {
		flat, ok := v.([]domain.Comment)
		if !ok {
			return v, false
		}
		for _, c := range flat {
			if c.ID == id {
				c.LikeState = state
				return domain.ReplaceComment(flat, c)
			}
		}
		return v, false
	})
	s.cache.Invalidate("local", key(domain.ResourceCommentLikes, id))

	m := Mutation{Resource: domain.ResourceComment, Op: OpLike, ID: id, PostID: postID}
	s.publish(ctx, m.reason(), PlanInvalidations(m, ""))
}

// subtreeSize counts id and its cached descendants.
func subtreeSize(flat []domain.Comment, id int64) int {
	for _, root := range domain.BuildCommentTree(flat) {
		if n := findNode(root, id); n != nil {
			return domain.CountComments([]*domain.CommentNode{n})
		}
	}
	return 1
}

func findNode(n *domain.CommentNode, id int64) *domain.CommentNode {
	if n.Comment.ID == id {
		return n
	}
	for _, child := range n.Children {
		if found := findNode(child, id); found != nil {
			return found
		}
	}
	return nil
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}
