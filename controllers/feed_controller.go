package controllers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/pulsefeed/pulsefeed/engine"
	"github.com/pulsefeed/pulsefeed/middleware"
	"github.com/pulsefeed/pulsefeed/models"
	"github.com/pulsefeed/pulsefeed/repository"
	"github.com/pulsefeed/pulsefeed/utils"
)

// FeedController exposes the feed and its mutations over HTTP.
type FeedController struct {
	repo   *repository.Posts
	engine *engine.Engine
	log    *zap.SugaredLogger
}

// NewFeedController creates a new FeedController instance.
func NewFeedController(repo *repository.Posts, eng *engine.Engine, log *zap.SugaredLogger) *FeedController {
	return &FeedController{repo: repo, engine: eng, log: log}
}

// ListPosts returns the full feed, newest first, viewer-relative when the
// request is authenticated.
func (f *FeedController) ListPosts(ctx *gin.Context) {
	posts, err := f.repo.FetchAll(ctx.Request.Context())
	if err != nil {
		utils.FromError(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{"items": forViewer(posts, viewerID(ctx))})
}

// ListUserPosts returns posts created by a specific user (public).
func (f *FeedController) ListUserPosts(ctx *gin.Context) {
	authorID := ctx.Param("id")
	if authorID == "" {
		utils.Error(ctx, http.StatusBadRequest, 40010, "missing user id")
		return
	}
	posts, err := f.repo.FetchByAuthor(ctx.Request.Context(), authorID)
	if err != nil {
		utils.FromError(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{"items": forViewer(posts, viewerID(ctx))})
}

// StreamPosts delivers feed snapshots as server-sent events: one event per
// committed change to the posts collection, snapshots coalesced under load.
// The stream runs until the client disconnects.
func (f *FeedController) StreamPosts(ctx *gin.Context) {
	viewer := viewerID(ctx)

	snapshots := make(chan []models.Post, 1)
	unsubscribe, err := f.repo.Subscribe(ctx.Request.Context(), func(posts []models.Post) {
		for {
			select {
			case snapshots <- posts:
				return
			default:
				// replace the stale queued snapshot with the fresh one
				select {
				case <-snapshots:
				default:
				}
			}
		}
	})
	if err != nil {
		utils.FromError(ctx, err)
		return
	}
	defer unsubscribe()

	ctx.Header("Content-Type", "text/event-stream")
	ctx.Header("Cache-Control", "no-cache")
	ctx.Header("Connection", "keep-alive")

	ctx.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Request.Context().Done():
			return false
		case posts := <-snapshots:
			ctx.SSEvent("feed", forViewer(posts, viewer))
			return true
		}
	})
}

// CreatePost allows authenticated users to publish a post.
func (f *FeedController) CreatePost(ctx *gin.Context) {
	var req struct {
		Content string `json:"content" binding:"required"`
		Image   string `json:"image"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40011, "invalid request payload")
		return
	}

	author := models.Author{
		Name:     ctx.GetString(middleware.ContextDisplayNameKey),
		Username: ctx.GetString(middleware.ContextUsernameKey),
		Avatar:   ctx.GetString(middleware.ContextAvatarKey),
	}
	post, err := f.engine.CreatePost(ctx.Request.Context(), viewerID(ctx), author, req.Content, req.Image)
	if err != nil {
		utils.FromError(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{"post": post})
}

// ToggleLike flips the caller's like on a post and reports the new state.
func (f *FeedController) ToggleLike(ctx *gin.Context) {
	liked, err := f.engine.ToggleLike(ctx.Request.Context(), ctx.Param("id"), viewerID(ctx))
	if err != nil {
		utils.FromError(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{"liked": liked})
}

// CreateComment appends a comment to a post.
func (f *FeedController) CreateComment(ctx *gin.Context) {
	var req struct {
		Content string `json:"content" binding:"required"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40012, "invalid request payload")
		return
	}

	comment, err := f.engine.AddComment(
		ctx.Request.Context(),
		ctx.Param("id"),
		viewerID(ctx),
		ctx.GetString(middleware.ContextDisplayNameKey),
		req.Content,
	)
	if err != nil {
		utils.FromError(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{"comment": comment})
}

// UpdatePost applies a partial update to the caller's own post. Omitted
// fields keep their values; an explicitly empty image clears it.
func (f *FeedController) UpdatePost(ctx *gin.Context) {
	var req struct {
		Content *string `json:"content"`
		Image   *string `json:"image"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40013, "invalid request payload")
		return
	}

	upd := engine.PostUpdate{Content: req.Content, Image: req.Image}
	if err := f.engine.UpdatePost(ctx.Request.Context(), ctx.Param("id"), viewerID(ctx), upd); err != nil {
		utils.FromError(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{"message": "post updated"})
}

// DeletePost removes the caller's own post and its comments.
func (f *FeedController) DeletePost(ctx *gin.Context) {
	if err := f.engine.DeletePost(ctx.Request.Context(), ctx.Param("id"), viewerID(ctx)); err != nil {
		utils.FromError(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{"message": "post deleted"})
}

func viewerID(ctx *gin.Context) string {
	return ctx.GetString(middleware.ContextUserIDKey)
}

func forViewer(posts []models.Post, viewerID string) []models.Post {
	out := make([]models.Post, len(posts))
	for i, p := range posts {
		out[i] = p.ForViewer(viewerID)
	}
	return out
}
