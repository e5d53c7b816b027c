// Package client composes the repository subscription, the engagement engine
// and the feed projector into a live feed view for one signed-in session:
// mutations apply optimistically to the local projection first, then go to
// the engine, and every authoritative snapshot from the subscription replaces
// the optimistic prediction.
package client

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pulsefeed/pulsefeed/auth"
	"github.com/pulsefeed/pulsefeed/engine"
	"github.com/pulsefeed/pulsefeed/feederr"
	"github.com/pulsefeed/pulsefeed/models"
	"github.com/pulsefeed/pulsefeed/projector"
	"github.com/pulsefeed/pulsefeed/repository"
)

// Feed is a live, viewer-relative view over the posts collection.
type Feed struct {
	repo   *repository.Posts
	engine *engine.Engine
	proj   *projector.Projector
	auth   auth.Service
	log    *zap.SugaredLogger

	mu          sync.Mutex
	unsubscribe func()
}

// NewFeed assembles a feed client. Call Start to begin receiving snapshots.
func NewFeed(repo *repository.Posts, eng *engine.Engine, proj *projector.Projector, authSvc auth.Service, log *zap.SugaredLogger) *Feed {
	return &Feed{repo: repo, engine: eng, proj: proj, auth: authSvc, log: log}
}

// Start subscribes to the posts collection and keeps the projection current
// until Stop is called or ctx is cancelled.
func (f *Feed) Start(ctx context.Context) error {
	unsubscribe, err := f.repo.Subscribe(ctx, f.proj.ApplySnapshot)
	if err != nil {
		return err
	}
	f.mu.Lock()
	f.unsubscribe = unsubscribe
	f.mu.Unlock()
	return nil
}

// Stop releases the subscription. Safe to call more than once.
func (f *Feed) Stop() {
	f.mu.Lock()
	unsubscribe := f.unsubscribe
	f.mu.Unlock()
	if unsubscribe != nil {
		unsubscribe()
	}
}

// Posts returns the current projection for the signed-in viewer.
func (f *Feed) Posts() []models.Post {
	viewerID := ""
	if user := f.auth.CurrentUser(); user != nil {
		viewerID = user.ID
	}
	return f.proj.Snapshot(viewerID)
}

// CreatePost publishes a new post under the signed-in identity.
func (f *Feed) CreatePost(ctx context.Context, content, image string) (*models.Post, error) {
	user, err := f.requireUser()
	if err != nil {
		return nil, err
	}
	snapshot := models.Author{Name: user.DisplayName, Username: user.Username, Avatar: user.Avatar}
	return f.engine.CreatePost(ctx, user.ID, snapshot, content, image)
}

// Like flips the viewer's like on postID, optimistically first.
func (f *Feed) Like(ctx context.Context, postID string) error {
	user, err := f.requireUser()
	if err != nil {
		return err
	}
	f.proj.Like(postID, user.ID)
	if _, err := f.engine.ToggleLike(ctx, postID, user.ID); err != nil {
		f.proj.DropLike(postID, user.ID)
		return err
	}
	return nil
}

// Comment appends a comment to postID. A synthesized entry with a temporary
// id shows up immediately; the authoritative snapshot supersedes it.
func (f *Feed) Comment(ctx context.Context, postID, content string) error {
	user, err := f.requireUser()
	if err != nil {
		return err
	}
	local := models.Comment{
		ID:        "local-" + uuid.NewString(),
		PostID:    postID,
		AuthorID:  user.ID,
		Author:    user.DisplayName,
		Content:   content,
		Timestamp: "now",
		CreatedAt: time.Now(),
	}
	f.proj.Comment(postID, local)
	if _, err := f.engine.AddComment(ctx, postID, user.ID, user.DisplayName, content); err != nil {
		f.proj.DropComment(postID, local.ID)
		return err
	}
	return nil
}

// Edit updates the viewer's own post.
func (f *Feed) Edit(ctx context.Context, postID string, upd engine.PostUpdate) error {
	user, err := f.requireUser()
	if err != nil {
		return err
	}
	return f.engine.UpdatePost(ctx, postID, user.ID, upd)
}

// Delete removes the viewer's own post, hiding it immediately. A server
// rejection rolls the optimistic removal back.
func (f *Feed) Delete(ctx context.Context, postID string) error {
	user, err := f.requireUser()
	if err != nil {
		return err
	}
	f.proj.Remove(postID)
	if err := f.engine.DeletePost(ctx, postID, user.ID); err != nil {
		f.proj.Unremove(postID)
		return err
	}
	return nil
}

func (f *Feed) requireUser() (*auth.User, error) {
	user := f.auth.CurrentUser()
	if user == nil {
		return nil, feederr.New(feederr.Forbidden, "sign in to interact with the feed")
	}
	return user, nil
}
