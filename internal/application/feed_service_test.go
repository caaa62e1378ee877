package application

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitlab.com/timkado/api/daisi-feed-client/internal/domain"
)

func ptr[T any](v T) *T { return &v }

func TestFeedService_CommentCreationRefreshesOnlyThatPost(t *testing.T) {
	fx := newFeedFixture()
	fx.backend.addPost(domain.Post{ID: 1, Content: "p1", CommentCount: 0})
	fx.backend.addPost(domain.Post{ID: 2, Content: "p2", CommentCount: 5})
	ctx := context.Background()

	page, err := fx.feed.Feed(ctx, 0)
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	count, err := fx.feed.CommentCount(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
	_, err = fx.feed.CommentCount(ctx, 2)
	require.NoError(t, err)
	getsBefore := fx.backend.count("getPost")

	_, err = fx.feed.CreateComment(ctx, 1, domain.CommentInput{Content: "  hello  "})
	require.NoError(t, err)

	count, err = fx.feed.CommentCount(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	_, err = fx.feed.CommentCount(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, getsBefore+1, fx.backend.count("getPost"), "only post 1 is refetched")

	page, err = fx.feed.Feed(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, fx.backend.count("listPosts"), "feed is patched, not reloaded")
	assert.Equal(t, 1, page.Items[0].CommentCount)
	assert.Equal(t, 5, page.Items[1].CommentCount)

	assert.Equal(t, []string{"comment.create"}, fx.publisher.reasons())
	assert.Equal(t, []string{msgCommentAdded}, fx.notifier.successes)
}

func TestFeedService_FailedMutationLeavesCacheUntouched(t *testing.T) {
	fx := newFeedFixture()
	fx.backend.addPost(domain.Post{ID: 1, Content: "p1"})
	ctx := context.Background()
	_, err := fx.feed.Feed(ctx, 0)
	require.NoError(t, err)
	_, err = fx.feed.Comments(ctx, 1)
	require.NoError(t, err)
	before := fx.cache.Len()

	fx.backend.fail("createComment", errBoom)
	_, err = fx.feed.CreateComment(ctx, 1, domain.CommentInput{Content: "x"})
	require.ErrorIs(t, err, domain.ErrServer)

	assert.Equal(t, before, fx.cache.Len())
	_, ok := fx.cache.Peek(domain.RecordKey(domain.ResourceComments, "1"))
	assert.True(t, ok)
	assert.Empty(t, fx.publisher.reasons())
	assert.Equal(t, []string{"boom"}, fx.notifier.failures)
}

func TestFeedService_CreatePostInvalidatesEveryPage(t *testing.T) {
	fx := newFeedFixture()
	ctx := context.Background()
	for cursor := 0; cursor < 2; cursor++ {
		_, err := fx.feed.Feed(ctx, cursor)
		require.NoError(t, err)
		_, err = fx.feed.UserPosts(ctx, "u1", cursor)
		require.NoError(t, err)
	}
	require.Equal(t, 4, fx.backend.count("listPosts"))

	post, err := fx.feed.CreatePost(ctx, domain.PostInput{Content: ptr(" new post "), ImageURL: ptr("  ")})
	require.NoError(t, err)
	assert.Equal(t, "new post", post.Content)

	for cursor := 0; cursor < 2; cursor++ {
		_, ok := fx.cache.Peek(domain.PageKey(domain.ResourcePostFeed, "", cursor))
		assert.False(t, ok, "feed page %d", cursor)
		_, ok = fx.cache.Peek(domain.PageKey(domain.ResourceUserPosts, "u1", cursor))
		assert.False(t, ok, "user page %d", cursor)
	}
	_, ok := fx.cache.Peek(domain.RecordKey(domain.ResourcePost, domain.IDString(post.ID)))
	assert.True(t, ok)

	_, err = fx.feed.Feed(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 5, fx.backend.count("listPosts"))
}

func TestFeedService_CreatePostRejectsBlankContent(t *testing.T) {
	fx := newFeedFixture()
	_, err := fx.feed.CreatePost(context.Background(), domain.PostInput{Content: ptr("   ")})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Zero(t, fx.backend.count("createPost"))
}

func TestFeedService_UpdatePostWritesThrough(t *testing.T) {
	fx := newFeedFixture()
	fx.backend.addPost(domain.Post{ID: 1, Content: "old"})
	ctx := context.Background()
	_, err := fx.feed.Feed(ctx, 0)
	require.NoError(t, err)

	_, err = fx.feed.UpdatePost(ctx, 1, domain.PostInput{Content: ptr("new")})
	require.NoError(t, err)

	page, err := fx.feed.Feed(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, "new", page.Items[0].Content)
	assert.Equal(t, 1, fx.backend.count("listPosts"))
	post, err := fx.feed.Post(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "new", post.Content)
	assert.Zero(t, fx.backend.count("getPost"))
}

func TestFeedService_DeletePostDropsDerivedEntries(t *testing.T) {
	fx := newFeedFixture()
	fx.backend.addPost(domain.Post{ID: 1, Content: "p", Author: &domain.User{ID: "u1"}})
	ctx := context.Background()
	_, _ = fx.feed.Feed(ctx, 0)
	_, _ = fx.feed.Feed(ctx, 1)
	_, _ = fx.feed.Post(ctx, 1)
	_, _ = fx.feed.Comments(ctx, 1)

	require.NoError(t, fx.feed.DeletePost(ctx, 1))
	assert.Zero(t, fx.cache.Len())
}

func TestFeedService_CommentEditsAndTree(t *testing.T) {
	fx := newFeedFixture()
	fx.backend.addPost(domain.Post{ID: 1})
	ctx := context.Background()

	root, err := fx.feed.CreateComment(ctx, 1, domain.CommentInput{Content: "root"})
	require.NoError(t, err)
	reply, err := fx.feed.ReplyToComment(ctx, 1, root.ID, "reply")
	require.NoError(t, err)

	tree, err := fx.feed.CommentTree(ctx, 1)
	require.NoError(t, err)
	require.Len(t, tree, 1)
	require.Len(t, tree[0].Children, 1)
	assert.Equal(t, reply.ID, tree[0].Children[0].Comment.ID)

	_, err = fx.feed.UpdateComment(ctx, 1, reply.ID, "edited")
	require.NoError(t, err)
	tree, err = fx.feed.CommentTree(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "edited", tree[0].Children[0].Comment.Content)
	assert.Equal(t, 1, fx.backend.count("listComments"), "edit is patched into the cached list")

	require.NoError(t, fx.feed.DeleteComment(ctx, 1, root.ID))
	_, ok := fx.cache.Peek(domain.RecordKey(domain.ResourceComments, "1"))
	assert.False(t, ok)
}

func TestFeedService_DeleteCommentSubtractsSubtree(t *testing.T) {
	fx := newFeedFixture()
	fx.backend.addPost(domain.Post{ID: 1})
	ctx := context.Background()
	root, _ := fx.feed.CreateComment(ctx, 1, domain.CommentInput{Content: "root"})
	_, _ = fx.feed.ReplyToComment(ctx, 1, root.ID, "a")
	_, _ = fx.feed.ReplyToComment(ctx, 1, root.ID, "b")
	_, err := fx.feed.Comments(ctx, 1)
	require.NoError(t, err)
	page, err := fx.feed.Feed(ctx, 0)
	require.NoError(t, err)
	require.Equal(t, 3, page.Items[0].CommentCount)

	require.NoError(t, fx.feed.DeleteComment(ctx, 1, root.ID))
	page, err = fx.feed.Feed(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, page.Items[0].CommentCount)
}

func TestFeedService_RemoteInvalidation(t *testing.T) {
	fx := newFeedFixture()
	fx.backend.addPost(domain.Post{ID: 1})
	ctx := context.Background()
	_, _ = fx.feed.Post(ctx, 1)

	own := domain.InvalidationEvent{Origin: fx.feed.Origin(), Entries: []domain.Invalidation{key(domain.ResourcePost, 1)}}
	require.NoError(t, fx.feed.ApplyRemoteInvalidation(ctx, own))
	_, ok := fx.cache.Peek(domain.RecordKey(domain.ResourcePost, "1"))
	assert.True(t, ok, "own events are ignored")

	other := own
	other.Origin = "someone-else"
	require.NoError(t, fx.feed.ApplyRemoteInvalidation(ctx, other))
	_, ok = fx.cache.Peek(domain.RecordKey(domain.ResourcePost, "1"))
	assert.False(t, ok)
}

func TestFeedService_MutateDispatch(t *testing.T) {
	fx := newFeedFixture()
	ctx := context.Background()

	out, err := fx.feed.Mutate(ctx, Mutation{Resource: domain.ResourcePost, Op: OpCreate, Post: domain.PostInput{Content: ptr("hi")}})
	require.NoError(t, err)
	post := out.(domain.Post)

	out, err = fx.feed.Mutate(ctx, Mutation{Resource: domain.ResourceComment, Op: OpCreate, PostID: post.ID, Comment: domain.CommentInput{Content: "c"}})
	require.NoError(t, err)
	assert.Equal(t, post.ID, out.(domain.Comment).PostID)

	_, err = fx.feed.Mutate(ctx, Mutation{Resource: domain.ResourceUser, Op: OpCreate})
	assert.Error(t, err)
}

func TestPlanInvalidations(t *testing.T) {
	plan := PlanInvalidations(Mutation{Resource: domain.ResourceComment, Op: OpCreate, ID: 9, PostID: 3}, "")
	assert.ElementsMatch(t, []domain.Invalidation{
		key(domain.ResourceComments, 3),
		key(domain.ResourceCommentCount, 3),
		key(domain.ResourcePost, 3),
	}, plan)

	plan = PlanInvalidations(Mutation{Resource: domain.ResourcePost, Op: OpCreate, ID: 4}, "u1")
	assert.Contains(t, plan, collection(domain.ResourcePostFeed, ""))
	assert.Contains(t, plan, collection(domain.ResourceUserPosts, "u1"))

	assert.Nil(t, PlanInvalidations(Mutation{Resource: domain.ResourceUser, Op: OpDelete}, ""))
}
