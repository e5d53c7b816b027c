// Package repository translates store documents into the domain model. It
// owns the read-side aggregation rules: feed order, eager comment joins, and
// the persisted counters it reports but never mutates.
package repository

import (
	"context"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/pulsefeed/pulsefeed/feederr"
	"github.com/pulsefeed/pulsefeed/models"
	"github.com/pulsefeed/pulsefeed/store"
	"github.com/pulsefeed/pulsefeed/utils"
)

// Posts reads the posts collection.
type Posts struct {
	store *store.Client
	log   *zap.SugaredLogger
}

// NewPosts creates a repository over the given store handle.
func NewPosts(st *store.Client, log *zap.SugaredLogger) *Posts {
	return &Posts{store: st, log: log}
}

// FetchAll returns every post ordered newest first, comments resolved and
// ordered oldest first.
func (r *Posts) FetchAll(ctx context.Context) ([]models.Post, error) {
	ids, err := r.store.ListPostIDs(ctx)
	if err != nil {
		return nil, err
	}
	return r.hydrate(ctx, ids)
}

// FetchByAuthor returns one author's posts, newest first. The store's
// author index is unordered, so ordering happens here after hydration.
func (r *Posts) FetchByAuthor(ctx context.Context, authorID string) ([]models.Post, error) {
	ids, err := r.store.ListPostIDsByAuthor(ctx, authorID)
	if err != nil {
		return nil, err
	}
	posts, err := r.hydrate(ctx, ids)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(posts, func(i, j int) bool {
		return posts[i].CreatedAt.After(posts[j].CreatedAt)
	})
	return posts, nil
}

// Subscribe registers callback to receive the complete ordered snapshot
// after every change to the posts collection, starting with the current one.
// Callbacks are delivered sequentially from a single goroutine. The returned
// handle stops delivery; it is safe to call more than once and after the
// underlying connection has failed.
func (r *Posts) Subscribe(ctx context.Context, callback func([]models.Post)) (func(), error) {
	subCtx, cancel := context.WithCancel(ctx)
	sub, err := r.store.SubscribeChanges(subCtx)
	if err != nil {
		cancel()
		return nil, err
	}

	go func() {
		// releases the pub/sub connection when ctx is cancelled without
		// the handle ever being called; Close is idempotent
		defer func() {
			if err := sub.Close(); err != nil {
				r.log.Debugf("close change subscription: %v", err)
			}
		}()
		r.deliver(subCtx, callback)
		for {
			select {
			case <-subCtx.Done():
				return
			case _, ok := <-sub.Events():
				if !ok {
					return
				}
				r.deliver(subCtx, callback)
			}
		}
	}()

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			cancel()
			if err := sub.Close(); err != nil {
				r.log.Debugf("close change subscription: %v", err)
			}
		})
	}
	return unsubscribe, nil
}

func (r *Posts) deliver(ctx context.Context, callback func([]models.Post)) {
	posts, err := r.FetchAll(ctx)
	if err != nil {
		// transient store failure; the next change event retries
		r.log.Warnf("refresh feed snapshot: %v", err)
		return
	}
	if ctx.Err() != nil {
		return
	}
	callback(posts)
}

func (r *Posts) hydrate(ctx context.Context, ids []string) ([]models.Post, error) {
	posts := make([]models.Post, 0, len(ids))
	for _, id := range ids {
		doc, err := r.store.GetPost(ctx, id)
		if err != nil {
			if feederr.IsNotFound(err) {
				// deleted between index read and point read
				continue
			}
			return nil, err
		}
		comments, err := r.store.ListComments(ctx, id)
		if err != nil {
			return nil, err
		}
		posts = append(posts, toPost(doc, comments))
	}
	return posts, nil
}

func toPost(doc *store.PostDoc, comments []store.CommentDoc) models.Post {
	cs := make([]models.Comment, len(comments))
	for i, c := range comments {
		cs[i] = models.Comment{
			ID:        c.ID,
			PostID:    c.PostID,
			AuthorID:  c.AuthorID,
			Author:    c.AuthorName,
			Content:   c.Content,
			Timestamp: utils.FormatRelativeTime(c.CreatedAt),
			CreatedAt: c.CreatedAt,
		}
	}
	return models.Post{
		ID:       doc.ID,
		AuthorID: doc.AuthorID,
		Author: models.Author{
			Name:     doc.AuthorName,
			Username: doc.AuthorUsername,
			Avatar:   doc.AuthorAvatar,
		},
		Content: doc.Content,
		Image:   doc.Image,
		// persisted counter trusted as-is; the engine keeps it consistent
		Likes:        doc.Likes,
		LikedBy:      doc.LikedBy,
		CommentCount: doc.CommentCount,
		Comments:     cs,
		Timestamp:    utils.FormatRelativeTime(doc.CreatedAt),
		CreatedAt:    doc.CreatedAt,
		UpdatedAt:    doc.UpdatedAt,
	}
}
