package store

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pulsefeed/pulsefeed/feederr"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewWithRedis(rdb, zap.NewNop().Sugar())
}

func createPost(t *testing.T, c *Client, authorID, content string) *PostDoc {
	t.Helper()
	doc := &PostDoc{
		AuthorID:       authorID,
		AuthorName:     "Test User",
		AuthorUsername: "@test",
		AuthorAvatar:   "/user-avatar.jpg",
		Content:        content,
	}
	require.NoError(t, c.CreatePost(context.Background(), doc))
	require.NotEmpty(t, doc.ID)
	return doc
}

func TestCreateAndGetPost(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	doc := createPost(t, c, "u1", "hello")

	got, err := c.GetPost(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, "u1", got.AuthorID)
	assert.Equal(t, "hello", got.Content)
	assert.Equal(t, int64(0), got.Likes)
	assert.Empty(t, got.LikedBy)
	assert.Equal(t, int64(0), got.CommentCount)
	assert.False(t, got.CreatedAt.IsZero())
	assert.Equal(t, got.CreatedAt, got.UpdatedAt)
}

func TestGetPostNotFound(t *testing.T) {
	c := newTestClient(t)
	_, err := c.GetPost(context.Background(), "missing")
	assert.True(t, feederr.IsNotFound(err))
}

func TestListPostIDsNewestFirst(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	first := createPost(t, c, "u1", "first")
	time.Sleep(2 * time.Millisecond)
	second := createPost(t, c, "u1", "second")
	time.Sleep(2 * time.Millisecond)
	third := createPost(t, c, "u2", "third")

	ids, err := c.ListPostIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{third.ID, second.ID, first.ID}, ids)
}

func TestListPostIDsByAuthor(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	mine := createPost(t, c, "u1", "mine")
	createPost(t, c, "u2", "theirs")

	ids, err := c.ListPostIDsByAuthor(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{mine.ID}, ids)
}

func TestToggleLikeKeepsCounterAndSetInLockstep(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()
	doc := createPost(t, c, "u1", "hello")

	liked, err := c.ToggleLike(ctx, doc.ID, "u2")
	require.NoError(t, err)
	assert.True(t, liked)

	got, err := c.GetPost(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.Likes)
	assert.Equal(t, []string{"u2"}, got.LikedBy)

	// double toggle returns to the prior state
	liked, err = c.ToggleLike(ctx, doc.ID, "u2")
	require.NoError(t, err)
	assert.False(t, liked)

	got, err = c.GetPost(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), got.Likes)
	assert.Empty(t, got.LikedBy)
}

func TestToggleLikeConcurrentDistinctUsers(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()
	doc := createPost(t, c, "author", "race me")

	const users = 20
	var wg sync.WaitGroup
	for i := 0; i < users; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, err := c.ToggleLike(ctx, doc.ID, fmt.Sprintf("user-%d", n))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	got, err := c.GetPost(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(len(got.LikedBy)), got.Likes)
	assert.Equal(t, int64(users), got.Likes)
}

func TestToggleLikeMissingPost(t *testing.T) {
	c := newTestClient(t)
	_, err := c.ToggleLike(context.Background(), "missing", "u1")
	assert.True(t, feederr.IsNotFound(err))
}

func TestCreateCommentIncrementsCount(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()
	post := createPost(t, c, "u1", "hello")

	cmt := &CommentDoc{PostID: post.ID, AuthorID: "u2", AuthorName: "C", Content: "nice"}
	require.NoError(t, c.CreateComment(ctx, cmt))
	require.NotEmpty(t, cmt.ID)

	got, err := c.GetPost(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.CommentCount)

	comments, err := c.ListComments(ctx, post.ID)
	require.NoError(t, err)
	require.Len(t, comments, 1)
	assert.Equal(t, "nice", comments[0].Content)
	assert.Equal(t, post.ID, comments[0].PostID)
}

func TestCreateCommentMissingPost(t *testing.T) {
	c := newTestClient(t)
	err := c.CreateComment(context.Background(), &CommentDoc{PostID: "missing", AuthorID: "u", AuthorName: "U", Content: "x"})
	assert.True(t, feederr.IsNotFound(err))
}

func TestListCommentsOldestFirst(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()
	post := createPost(t, c, "u1", "hello")

	for _, content := range []string{"one", "two", "three"} {
		require.NoError(t, c.CreateComment(ctx, &CommentDoc{PostID: post.ID, AuthorID: "u2", AuthorName: "C", Content: content}))
		time.Sleep(2 * time.Millisecond)
	}

	comments, err := c.ListComments(ctx, post.ID)
	require.NoError(t, err)
	require.Len(t, comments, 3)
	assert.Equal(t, "one", comments[0].Content)
	assert.Equal(t, "two", comments[1].Content)
	assert.Equal(t, "three", comments[2].Content)
}

func TestUpdatePostPartial(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()
	post := createPost(t, c, "u1", "before")

	require.NoError(t, c.UpdatePost(ctx, post.ID, map[string]string{"content": "after"}))

	got, err := c.GetPost(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, "after", got.Content)
	assert.Equal(t, post.AuthorID, got.AuthorID)
	assert.True(t, got.UpdatedAt.After(got.CreatedAt) || got.UpdatedAt.Equal(got.CreatedAt))
}

func TestUpdatePostMissing(t *testing.T) {
	c := newTestClient(t)
	err := c.UpdatePost(context.Background(), "missing", map[string]string{"content": "x"})
	assert.True(t, feederr.IsNotFound(err))
}

func TestDeleteCommentsThenPost(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()
	post := createPost(t, c, "u1", "hello")
	cmt := &CommentDoc{PostID: post.ID, AuthorID: "u2", AuthorName: "C", Content: "bye"}
	require.NoError(t, c.CreateComment(ctx, cmt))

	require.NoError(t, c.DeleteComments(ctx, post.ID))

	// intermediate state is valid: post remains, zero comments
	got, err := c.GetPost(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), got.CommentCount)
	comments, err := c.ListComments(ctx, post.ID)
	require.NoError(t, err)
	assert.Empty(t, comments)

	require.NoError(t, c.DeletePost(ctx, post.ID, post.AuthorID))

	_, err = c.GetPost(ctx, post.ID)
	assert.True(t, feederr.IsNotFound(err))
	ids, err := c.ListPostIDs(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)
	ids, err = c.ListPostIDsByAuthor(ctx, post.AuthorID)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestSubscribeChangesDeliversEvents(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	sub, err := c.SubscribeChanges(ctx)
	require.NoError(t, err)
	defer sub.Close()

	createPost(t, c, "u1", "hello")

	select {
	case ev, ok := <-sub.Events():
		require.True(t, ok)
		assert.Contains(t, ev, "created:")
	case <-time.After(2 * time.Second):
		t.Fatal("no change event delivered")
	}
}

func TestSubscriptionCloseIsIdempotent(t *testing.T) {
	c := newTestClient(t)

	sub, err := c.SubscribeChanges(context.Background())
	require.NoError(t, err)

	first := sub.Close()
	second := sub.Close()
	assert.Equal(t, first, second)

	_, ok := <-sub.Events()
	assert.False(t, ok)
}

func TestStoreUnavailableSurfaces(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	c := NewWithRedis(rdb, zap.NewNop().Sugar())

	mr.Close()

	_, err := c.ListPostIDs(context.Background())
	assert.True(t, feederr.IsUnavailable(err))
}
