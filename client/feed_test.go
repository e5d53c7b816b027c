package client

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pulsefeed/pulsefeed/auth"
	"github.com/pulsefeed/pulsefeed/engine"
	"github.com/pulsefeed/pulsefeed/feederr"
	"github.com/pulsefeed/pulsefeed/models"
	"github.com/pulsefeed/pulsefeed/projector"
	"github.com/pulsefeed/pulsefeed/repository"
	"github.com/pulsefeed/pulsefeed/store"
)

type stubAuth struct{ user *auth.User }

func (s *stubAuth) CurrentUser() *auth.User              { return s.user }
func (s *stubAuth) OnAuthChange(func(*auth.User)) func() { return func() {} }

func newTestFeed(t *testing.T, user *auth.User) (*Feed, *engine.Engine) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	log := zap.NewNop().Sugar()

	st := store.NewWithRedis(rdb, log)
	repo := repository.NewPosts(st, log)
	eng := engine.New(st, log)
	proj := projector.New(projector.DefaultDeltaTTL)

	f := NewFeed(repo, eng, proj, &stubAuth{user: user}, log)
	require.NoError(t, f.Start(context.Background()))
	t.Cleanup(f.Stop)
	return f, eng
}

func waitForFeed(t *testing.T, f *Feed, cond func([]models.Post) bool) []models.Post {
	t.Helper()
	var posts []models.Post
	require.Eventually(t, func() bool {
		posts = f.Posts()
		return cond(posts)
	}, 2*time.Second, 10*time.Millisecond)
	return posts
}

func TestCreatePostAppearsInFeed(t *testing.T) {
	viewer := &auth.User{ID: "u1", DisplayName: "Ana", Username: "@ana"}
	f, _ := newTestFeed(t, viewer)

	_, err := f.CreatePost(context.Background(), "hola mundo", "")
	require.NoError(t, err)

	posts := waitForFeed(t, f, func(p []models.Post) bool { return len(p) == 1 })
	assert.Equal(t, "hola mundo", posts[0].Content)
	assert.Equal(t, "Ana", posts[0].Author.Name)
}

func TestLikeAppliesOptimisticallyAndConfirms(t *testing.T) {
	viewer := &auth.User{ID: "u1", DisplayName: "Ana"}
	f, eng := newTestFeed(t, viewer)

	post, err := eng.CreatePost(context.Background(), "u2", models.Author{Name: "Bob"}, "like me", "")
	require.NoError(t, err)
	waitForFeed(t, f, func(p []models.Post) bool { return len(p) == 1 })

	require.NoError(t, f.Like(context.Background(), post.ID))

	// visible immediately, and still liked once the server snapshot lands
	posts := f.Posts()
	require.Len(t, posts, 1)
	assert.True(t, posts[0].Liked)
	assert.Equal(t, int64(1), posts[0].Likes)

	waitForFeed(t, f, func(p []models.Post) bool {
		return len(p) == 1 && p[0].Liked && p[0].Likes == 1
	})
}

func TestCommentShowsSynthesizedThenAuthoritative(t *testing.T) {
	viewer := &auth.User{ID: "u1", DisplayName: "Ana"}
	f, eng := newTestFeed(t, viewer)

	post, err := eng.CreatePost(context.Background(), "u2", models.Author{Name: "Bob"}, "discuss", "")
	require.NoError(t, err)
	waitForFeed(t, f, func(p []models.Post) bool { return len(p) == 1 })

	require.NoError(t, f.Comment(context.Background(), post.ID, "nice"))

	// the synthesized comment is superseded by the store-assigned one
	posts := waitForFeed(t, f, func(p []models.Post) bool {
		return len(p) == 1 && len(p[0].Comments) == 1 &&
			!strings.HasPrefix(p[0].Comments[0].ID, "local-")
	})
	assert.Equal(t, "nice", posts[0].Comments[0].Content)
	assert.Equal(t, int64(1), posts[0].CommentCount)
}

func TestDeleteHidesImmediately(t *testing.T) {
	viewer := &auth.User{ID: "u1", DisplayName: "Ana", Username: "@ana"}
	f, _ := newTestFeed(t, viewer)

	post, err := f.CreatePost(context.Background(), "bye", "")
	require.NoError(t, err)
	waitForFeed(t, f, func(p []models.Post) bool { return len(p) == 1 })

	require.NoError(t, f.Delete(context.Background(), post.ID))
	assert.Empty(t, f.Posts())

	waitForFeed(t, f, func(p []models.Post) bool { return len(p) == 0 })
}

func TestRejectedDeleteRollsBack(t *testing.T) {
	viewer := &auth.User{ID: "u1", DisplayName: "Ana"}
	f, eng := newTestFeed(t, viewer)

	post, err := eng.CreatePost(context.Background(), "u2", models.Author{Name: "Bob"}, "not yours", "")
	require.NoError(t, err)
	waitForFeed(t, f, func(p []models.Post) bool { return len(p) == 1 })

	err = f.Delete(context.Background(), post.ID)
	assert.True(t, feederr.IsForbidden(err))

	// the optimistic removal is rolled back; post stays visible
	posts := f.Posts()
	require.Len(t, posts, 1)
	assert.Equal(t, post.ID, posts[0].ID)
}

func TestMutationsRequireSignIn(t *testing.T) {
	f, eng := newTestFeed(t, nil)

	post, err := eng.CreatePost(context.Background(), "u2", models.Author{Name: "Bob"}, "hello", "")
	require.NoError(t, err)

	_, err = f.CreatePost(context.Background(), "anon post", "")
	assert.True(t, feederr.IsForbidden(err))
	assert.True(t, feederr.IsForbidden(f.Like(context.Background(), post.ID)))
	assert.True(t, feederr.IsForbidden(f.Comment(context.Background(), post.ID, "hi")))
	assert.True(t, feederr.IsForbidden(f.Delete(context.Background(), post.ID)))
}
