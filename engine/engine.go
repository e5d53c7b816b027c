// Package engine is the engagement engine: the only component that mutates
// post and comment documents. It enforces input validation and authorship
// checks, and delegates counter atomicity to the store's primitives.
package engine

import (
	"context"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/pulsefeed/pulsefeed/feederr"
	"github.com/pulsefeed/pulsefeed/models"
	"github.com/pulsefeed/pulsefeed/store"
	"github.com/pulsefeed/pulsefeed/utils"
)

// MaxContentLength is the upper bound on post content, in characters.
const MaxContentLength = 500

const defaultAvatar = "/user-avatar.jpg"

// Engine applies authorized mutations against the document store.
type Engine struct {
	store *store.Client
	log   *zap.SugaredLogger
}

// New creates an engine over the given store handle.
func New(st *store.Client, log *zap.SugaredLogger) *Engine {
	return &Engine{store: st, log: log}
}

// PostUpdate describes a partial update. Nil means "not supplied"; a
// non-nil empty Image explicitly clears the image.
type PostUpdate struct {
	Content *string
	Image   *string
}

// CreatePost publishes a new post by authorID. The author display snapshot
// is copied onto the document as-is and never re-joined to later profile
// changes.
func (e *Engine) CreatePost(ctx context.Context, authorID string, author models.Author, content, image string) (*models.Post, error) {
	// validate the exact string that will be stored: sanitizing can both
	// empty markup-only input and inflate entities past the length bound
	content = strings.TrimSpace(utils.Sanitize(content))
	if err := validateContent(content); err != nil {
		return nil, err
	}

	if author.Avatar == "" {
		author.Avatar = defaultAvatar
	}
	if author.Username != "" && !strings.HasPrefix(author.Username, "@") {
		author.Username = "@" + author.Username
	}

	doc := &store.PostDoc{
		AuthorID:       authorID,
		AuthorName:     author.Name,
		AuthorUsername: author.Username,
		AuthorAvatar:   author.Avatar,
		Content:        content,
		Image:          image,
	}
	if err := e.store.CreatePost(ctx, doc); err != nil {
		return nil, err
	}
	e.log.Infow("post created", "post_id", doc.ID, "author_id", authorID)

	post := models.Post{
		ID:        doc.ID,
		AuthorID:  doc.AuthorID,
		Author:    author,
		Content:   doc.Content,
		Image:     doc.Image,
		LikedBy:   []string{},
		Comments:  []models.Comment{},
		Timestamp: utils.FormatRelativeTime(doc.CreatedAt),
		CreatedAt: doc.CreatedAt,
		UpdatedAt: doc.UpdatedAt,
	}
	return &post, nil
}

// ToggleLike flips userID's like on a post and reports the resulting state.
// The flip and the counter move are one atomic store operation, so
// concurrent togglers cannot drive likes out of sync with the likedBy set.
func (e *Engine) ToggleLike(ctx context.Context, postID, userID string) (bool, error) {
	liked, err := e.store.ToggleLike(ctx, postID, userID)
	if err != nil {
		return false, err
	}
	e.log.Debugw("like toggled", "post_id", postID, "user_id", userID, "liked", liked)
	return liked, nil
}

// AddComment appends a comment by any authenticated viewer and bumps the
// post's commentCount atomically.
func (e *Engine) AddComment(ctx context.Context, postID, authorID, authorName, content string) (*models.Comment, error) {
	content = strings.TrimSpace(utils.Sanitize(content))
	if content == "" {
		return nil, feederr.New(feederr.Validation, "comment cannot be empty")
	}

	doc := &store.CommentDoc{
		PostID:     postID,
		AuthorID:   authorID,
		AuthorName: authorName,
		Content:    content,
	}
	if err := e.store.CreateComment(ctx, doc); err != nil {
		return nil, err
	}
	e.log.Debugw("comment added", "post_id", postID, "comment_id", doc.ID)

	comment := models.Comment{
		ID:        doc.ID,
		PostID:    doc.PostID,
		AuthorID:  doc.AuthorID,
		Author:    doc.AuthorName,
		Content:   doc.Content,
		Timestamp: utils.FormatRelativeTime(doc.CreatedAt),
		CreatedAt: doc.CreatedAt,
	}
	return &comment, nil
}

// UpdatePost applies a partial update to a post owned by requesterID.
// Omitted fields keep their prior values; updatedAt always refreshes.
func (e *Engine) UpdatePost(ctx context.Context, postID, requesterID string, upd PostUpdate) error {
	post, err := e.store.GetPost(ctx, postID)
	if err != nil {
		return err
	}
	if post.AuthorID != requesterID {
		return feederr.New(feederr.Forbidden, "you can only update your own posts")
	}

	fields := map[string]string{}
	if upd.Content != nil {
		content := strings.TrimSpace(utils.Sanitize(*upd.Content))
		if err := validateContent(content); err != nil {
			return err
		}
		fields["content"] = content
	}
	if upd.Image != nil {
		// empty string clears the image, distinct from "not supplied"
		fields["image"] = *upd.Image
	}

	if err := e.store.UpdatePost(ctx, postID, fields); err != nil {
		return err
	}
	e.log.Infow("post updated", "post_id", postID)
	return nil
}

// DeletePost removes a post owned by requesterID together with all of its
// comments. Comments go first: if the second step fails, the remaining state
// (comments gone, post present) is valid and the call can be retried. The
// reverse would orphan comments.
func (e *Engine) DeletePost(ctx context.Context, postID, requesterID string) error {
	post, err := e.store.GetPost(ctx, postID)
	if err != nil {
		return err
	}
	if post.AuthorID != requesterID {
		return feederr.New(feederr.Forbidden, "you can only delete your own posts")
	}

	if err := e.store.DeleteComments(ctx, postID); err != nil {
		return err
	}
	if err := e.store.DeletePost(ctx, postID, post.AuthorID); err != nil {
		return err
	}
	e.log.Infow("post deleted", "post_id", postID)
	return nil
}

func validateContent(content string) error {
	if content == "" {
		return feederr.New(feederr.Validation, "content cannot be empty")
	}
	if utf8.RuneCountInString(content) > MaxContentLength {
		return feederr.Newf(feederr.Validation, "content exceeds %d characters", MaxContentLength)
	}
	return nil
}
