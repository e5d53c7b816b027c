// Package store is the document store adapter. It keeps the two logical
// collections (posts, comments) in Redis and exposes the primitives the
// repository and engagement engine build on: point reads, ordered and
// filtered queries, conditional partial updates, atomic counter/set
// mutations, and a change-subscription feed over pub/sub.
//
// The client is an explicitly constructed instance handed to its consumers;
// there is no ambient global connection.
package store

import (
	"context"
	"errors"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/pulsefeed/pulsefeed/config"
	"github.com/pulsefeed/pulsefeed/feederr"
)

const (
	keyPostsIndex  = "posts:index"
	changesChannel = "posts:changes"
)

func postKey(id string) string     { return "post:" + id }
func likedByKey(id string) string  { return "post:" + id + ":likedby" }
func commentsKey(id string) string { return "post:" + id + ":comments" }
func commentKey(id string) string  { return "comment:" + id }
func authorKey(id string) string   { return "author:" + id + ":posts" }

// PostDoc is a post document as persisted, likedBy resolved from its set.
type PostDoc struct {
	ID             string
	AuthorID       string
	AuthorName     string
	AuthorUsername string
	AuthorAvatar   string
	Content        string
	Image          string
	Likes          int64
	LikedBy        []string
	CommentCount   int64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// CommentDoc is a comment document as persisted.
type CommentDoc struct {
	ID         string
	PostID     string
	AuthorID   string
	AuthorName string
	Content    string
	CreatedAt  time.Time
}

// Client is a handle to the document store.
type Client struct {
	rdb *redis.Client
	log *zap.SugaredLogger
}

// New connects to the store described by cfg and verifies reachability.
func New(cfg config.AppConfig, log *zap.SugaredLogger) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         net.JoinHostPort(cfg.RedisHost, strconv.Itoa(cfg.RedisPort)),
		Password:     cfg.RedisPassword,
		DB:           cfg.RedisDB,
		DialTimeout:  3 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, feederr.Wrap(feederr.Unavailable, "document store unreachable", err)
	}
	return &Client{rdb: rdb, log: log}, nil
}

// NewWithRedis wraps an existing redis client. Used by tests.
func NewWithRedis(rdb *redis.Client, log *zap.SugaredLogger) *Client {
	return &Client{rdb: rdb, log: log}
}

// Close releases the underlying connection pool.
func (c *Client) Close() error { return c.rdb.Close() }

// CreatePost persists a new post document, assigns its identifier and
// server timestamps, and announces the change.
func (c *Client) CreatePost(ctx context.Context, doc *PostDoc) error {
	doc.ID = uuid.NewString()
	now := time.Now().UTC()
	doc.CreatedAt = now
	doc.UpdatedAt = now

	pipe := c.rdb.TxPipeline()
	pipe.HSet(ctx, postKey(doc.ID),
		"authorId", doc.AuthorID,
		"authorName", doc.AuthorName,
		"authorUsername", doc.AuthorUsername,
		"authorAvatar", doc.AuthorAvatar,
		"content", doc.Content,
		"image", doc.Image,
		"likes", doc.Likes,
		"commentCount", doc.CommentCount,
		"createdAt", now.Format(time.RFC3339Nano),
		"updatedAt", now.Format(time.RFC3339Nano),
	)
	pipe.ZAdd(ctx, keyPostsIndex, redis.Z{Score: float64(now.UnixNano()), Member: doc.ID})
	pipe.SAdd(ctx, authorKey(doc.AuthorID), doc.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return wrapStoreErr("create post", err)
	}
	c.publishChange(ctx, "created", doc.ID)
	return nil
}

// GetPost reads a single post document with its likedBy set.
func (c *Client) GetPost(ctx context.Context, id string) (*PostDoc, error) {
	fields, err := c.rdb.HGetAll(ctx, postKey(id)).Result()
	if err != nil {
		return nil, wrapStoreErr("get post", err)
	}
	if len(fields) == 0 {
		return nil, feederr.Newf(feederr.NotFound, "post %s not found", id)
	}
	likedBy, err := c.rdb.SMembers(ctx, likedByKey(id)).Result()
	if err != nil {
		return nil, wrapStoreErr("get post likedBy", err)
	}
	return docFromHash(id, fields, likedBy), nil
}

// ListPostIDs returns all post ids ordered newest first.
func (c *Client) ListPostIDs(ctx context.Context) ([]string, error) {
	ids, err := c.rdb.ZRevRange(ctx, keyPostsIndex, 0, -1).Result()
	if err != nil {
		return nil, wrapStoreErr("list posts", err)
	}
	return ids, nil
}

// ListPostIDsByAuthor returns the (unordered) post ids of one author; the
// repository orders the hydrated result client-side.
func (c *Client) ListPostIDsByAuthor(ctx context.Context, authorID string) ([]string, error) {
	ids, err := c.rdb.SMembers(ctx, authorKey(authorID)).Result()
	if err != nil {
		return nil, wrapStoreErr("list posts by author", err)
	}
	return ids, nil
}

// ToggleLike atomically flips userID's like on a post, keeping the counter
// and the set in lockstep. Returns whether the post is now liked by userID.
func (c *Client) ToggleLike(ctx context.Context, postID, userID string) (bool, error) {
	res, err := toggleLikeScript.Run(ctx, c.rdb,
		[]string{postKey(postID), likedByKey(postID)}, userID).Int()
	if err != nil {
		return false, wrapStoreErr("toggle like", err)
	}
	if res < 0 {
		return false, feederr.Newf(feederr.NotFound, "post %s not found", postID)
	}
	c.publishChange(ctx, "liked", postID)
	return res == 1, nil
}

// CreateComment persists a comment and bumps the post's commentCount in the
// same atomic step. Assigns the comment id and server timestamp.
func (c *Client) CreateComment(ctx context.Context, doc *CommentDoc) error {
	doc.ID = uuid.NewString()
	doc.CreatedAt = time.Now().UTC()

	res, err := addCommentScript.Run(ctx, c.rdb,
		[]string{postKey(doc.PostID), commentKey(doc.ID), commentsKey(doc.PostID)},
		doc.ID,
		doc.PostID,
		doc.AuthorID,
		doc.AuthorName,
		doc.Content,
		doc.CreatedAt.Format(time.RFC3339Nano),
		strconv.FormatInt(doc.CreatedAt.UnixNano(), 10),
	).Int()
	if err != nil {
		return wrapStoreErr("create comment", err)
	}
	if res < 0 {
		return feederr.Newf(feederr.NotFound, "post %s not found", doc.PostID)
	}
	c.publishChange(ctx, "commented", doc.PostID)
	return nil
}

// ListComments returns a post's comments ordered oldest first.
func (c *Client) ListComments(ctx context.Context, postID string) ([]CommentDoc, error) {
	ids, err := c.rdb.ZRange(ctx, commentsKey(postID), 0, -1).Result()
	if err != nil {
		return nil, wrapStoreErr("list comments", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	pipe := c.rdb.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.HGetAll(ctx, commentKey(id))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, wrapStoreErr("load comments", err)
	}

	comments := make([]CommentDoc, 0, len(ids))
	for i, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 {
			// index entry without document: mid-cascade state, skip
			continue
		}
		createdAt, _ := time.Parse(time.RFC3339Nano, fields["createdAt"])
		comments = append(comments, CommentDoc{
			ID:         ids[i],
			PostID:     fields["postId"],
			AuthorID:   fields["authorId"],
			AuthorName: fields["authorName"],
			Content:    fields["content"],
			CreatedAt:  createdAt,
		})
	}
	return comments, nil
}

// UpdatePost applies a partial field update to an existing post.
func (c *Client) UpdatePost(ctx context.Context, id string, fields map[string]string) error {
	argv := make([]interface{}, 0, 2*len(fields)+2)
	for k, v := range fields {
		argv = append(argv, k, v)
	}
	argv = append(argv, "updatedAt", time.Now().UTC().Format(time.RFC3339Nano))

	res, err := updatePostScript.Run(ctx, c.rdb, []string{postKey(id)}, argv...).Int()
	if err != nil {
		return wrapStoreErr("update post", err)
	}
	if res < 0 {
		return feederr.Newf(feederr.NotFound, "post %s not found", id)
	}
	c.publishChange(ctx, "updated", id)
	return nil
}

// DeleteComments removes every comment referencing postID along with the
// per-post comment index, and zeroes the persisted counter so the partially
// deleted state still satisfies commentCount == |comments|.
func (c *Client) DeleteComments(ctx context.Context, postID string) error {
	ids, err := c.rdb.ZRange(ctx, commentsKey(postID), 0, -1).Result()
	if err != nil {
		return wrapStoreErr("list comments for delete", err)
	}

	pipe := c.rdb.TxPipeline()
	for _, id := range ids {
		pipe.Del(ctx, commentKey(id))
	}
	pipe.Del(ctx, commentsKey(postID))
	pipe.HSet(ctx, postKey(postID), "commentCount", 0)
	if _, err := pipe.Exec(ctx); err != nil {
		return wrapStoreErr("delete comments", err)
	}
	return nil
}

// DeletePost removes the post document and all of its index entries. The
// caller must have deleted the post's comments first.
func (c *Client) DeletePost(ctx context.Context, id, authorID string) error {
	pipe := c.rdb.TxPipeline()
	pipe.Del(ctx, postKey(id))
	pipe.Del(ctx, likedByKey(id))
	pipe.ZRem(ctx, keyPostsIndex, id)
	pipe.SRem(ctx, authorKey(authorID), id)
	if _, err := pipe.Exec(ctx); err != nil {
		return wrapStoreErr("delete post", err)
	}
	c.publishChange(ctx, "deleted", id)
	return nil
}

// Subscription is a handle on the store's change feed. Close is idempotent
// and stops event delivery promptly.
type Subscription struct {
	ps        *redis.PubSub
	events    chan string
	closeOnce sync.Once
	closeErr  error
}

// SubscribeChanges opens the change feed. Every committed mutation produces
// at least one event; consumers re-read the collection, so coalescing bursts
// is safe and expected.
func (c *Client) SubscribeChanges(ctx context.Context) (*Subscription, error) {
	ps := c.rdb.Subscribe(ctx, changesChannel)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, wrapStoreErr("subscribe changes", err)
	}

	s := &Subscription{ps: ps, events: make(chan string, 16)}
	go s.forward()
	return s, nil
}

// Events delivers change notifications. The channel closes after Close or
// when the underlying connection is lost.
func (s *Subscription) Events() <-chan string { return s.events }

// Close releases the subscription. Safe to call multiple times, also after
// the underlying connection has already failed.
func (s *Subscription) Close() error {
	s.closeOnce.Do(func() { s.closeErr = s.ps.Close() })
	return s.closeErr
}

func (s *Subscription) forward() {
	defer close(s.events)
	for msg := range s.ps.Channel() {
		select {
		case s.events <- msg.Payload:
		default:
			// consumer busy; it re-reads the full snapshot per event, so a
			// queued event already covers this change
		}
	}
}

// publishChange announces a committed mutation. Best effort: when the
// publish itself fails, subscribers keep serving the previous snapshot
// until the next committed change; the commit is never rolled back over
// a lost notification.
func (c *Client) publishChange(ctx context.Context, action, postID string) {
	if err := c.rdb.Publish(ctx, changesChannel, action+":"+postID).Err(); err != nil {
		c.log.Warnf("publish change %s:%s failed: %v", action, postID, err)
	}
}

func docFromHash(id string, fields map[string]string, likedBy []string) *PostDoc {
	likes, _ := strconv.ParseInt(fields["likes"], 10, 64)
	commentCount, _ := strconv.ParseInt(fields["commentCount"], 10, 64)
	createdAt, _ := time.Parse(time.RFC3339Nano, fields["createdAt"])
	updatedAt, _ := time.Parse(time.RFC3339Nano, fields["updatedAt"])
	return &PostDoc{
		ID:             id,
		AuthorID:       fields["authorId"],
		AuthorName:     fields["authorName"],
		AuthorUsername: fields["authorUsername"],
		AuthorAvatar:   fields["authorAvatar"],
		Content:        fields["content"],
		Image:          fields["image"],
		Likes:          likes,
		LikedBy:        likedBy,
		CommentCount:   commentCount,
		CreatedAt:      createdAt,
		UpdatedAt:      updatedAt,
	}
}

func wrapStoreErr(op string, err error) error {
	if errors.Is(err, redis.Nil) {
		return feederr.Wrap(feederr.NotFound, op, err)
	}
	return feederr.Wrap(feederr.Unavailable, op, err)
}
