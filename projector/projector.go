// Package projector maintains the client-visible feed: the last authoritative
// snapshot delivered by the repository subscription, overlaid with short-lived
// optimistic deltas for mutations the viewer has issued but the server has not
// yet confirmed. The authoritative layer is replaced wholesale on every
// notification; optimistic state is a transient visual prediction, never a
// second source of truth.
package projector

import (
	"sync"
	"time"

	"github.com/pulsefeed/pulsefeed/models"
)

// DefaultDeltaTTL bounds how long an unconfirmed delta stays visible.
const DefaultDeltaTTL = 10 * time.Second

type deltaKind int

const (
	deltaLike deltaKind = iota + 1
	deltaComment
	deltaRemove
)

type delta struct {
	kind    deltaKind
	postID  string
	userID  string
	comment models.Comment
	addedAt time.Time
}

// Projector merges authoritative snapshots with pending optimistic deltas.
type Projector struct {
	mu      sync.Mutex
	posts   []models.Post
	pending []delta
	ttl     time.Duration
	now     func() time.Time
}

// New creates a projector whose optimistic deltas expire after ttl.
func New(ttl time.Duration) *Projector {
	if ttl <= 0 {
		ttl = DefaultDeltaTTL
	}
	return &Projector{ttl: ttl, now: time.Now}
}

// ApplySnapshot installs a new authoritative snapshot and reconciles pending
// deltas against it: like deltas are always dropped (the server state is
// last-writer-wins for engagement counters), a synthesized comment is dropped
// once the snapshot carries a comment with the same post, author and content,
// and a removal is dropped once the post no longer appears.
func (p *Projector) ApplySnapshot(posts []models.Post) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.posts = posts

	kept := make([]delta, 0, len(p.pending))
	now := p.now()
	for _, d := range p.pending {
		if now.Sub(d.addedAt) > p.ttl {
			continue
		}
		switch d.kind {
		case deltaLike:
			continue
		case deltaComment:
			if snapshotHasComment(posts, d.postID, d.comment) {
				continue
			}
		case deltaRemove:
			if !snapshotHasPost(posts, d.postID) {
				continue
			}
		}
		kept = append(kept, d)
	}
	p.pending = kept
}

// Like records an optimistic like flip for userID on postID.
func (p *Projector) Like(postID, userID string) {
	p.add(delta{kind: deltaLike, postID: postID, userID: userID})
}

// DropLike discards a pending like flip, used when the server rejects the
// toggle.
func (p *Projector) DropLike(postID, userID string) {
	p.drop(func(d delta) bool {
		return d.kind == deltaLike && d.postID == postID && d.userID == userID
	})
}

// Comment records a locally synthesized comment appended to postID. The
// caller supplies the temporary identifier; the store-assigned one will
// differ, and the synthesized entry is superseded rather than merged.
func (p *Projector) Comment(postID string, comment models.Comment) {
	p.add(delta{kind: deltaComment, postID: postID, comment: comment})
}

// DropComment discards a pending synthesized comment by its temporary id.
func (p *Projector) DropComment(postID, commentID string) {
	p.drop(func(d delta) bool {
		return d.kind == deltaComment && d.postID == postID && d.comment.ID == commentID
	})
}

// Remove hides postID from the projection ahead of server confirmation.
func (p *Projector) Remove(postID string) {
	p.add(delta{kind: deltaRemove, postID: postID})
}

// Unremove rolls back an optimistic removal after the server rejected the
// delete; the hidden post reappears on the next Snapshot call.
func (p *Projector) Unremove(postID string) {
	p.drop(func(d delta) bool {
		return d.kind == deltaRemove && d.postID == postID
	})
}

// Snapshot renders the feed for one viewer: authoritative order with pending
// deltas applied in place and the viewer-relative liked flag derived. Entries
// are never reordered; deltas only insert, remove or mutate in place.
func (p *Projector) Snapshot(viewerID string) []models.Post {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.expireLocked()

	out := make([]models.Post, 0, len(p.posts))
	for _, post := range p.posts {
		if p.removedLocked(post.ID) {
			continue
		}
		cp := clonePost(post)
		for _, d := range p.pending {
			if d.postID != cp.ID {
				continue
			}
			switch d.kind {
			case deltaLike:
				applyLikeFlip(&cp, d.userID)
			case deltaComment:
				cp.Comments = append(cp.Comments, d.comment)
				cp.CommentCount++
			}
		}
		cp.Liked = cp.LikedByUser(viewerID)
		out = append(out, cp)
	}
	return out
}

func (p *Projector) add(d delta) {
	p.mu.Lock()
	defer p.mu.Unlock()
	d.addedAt = p.now()
	p.pending = append(p.pending, d)
}

func (p *Projector) drop(match func(delta) bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	kept := p.pending[:0]
	for _, d := range p.pending {
		if !match(d) {
			kept = append(kept, d)
		}
	}
	p.pending = kept
}

func (p *Projector) expireLocked() {
	now := p.now()
	kept := p.pending[:0]
	for _, d := range p.pending {
		if now.Sub(d.addedAt) <= p.ttl {
			kept = append(kept, d)
		}
	}
	p.pending = kept
}

func (p *Projector) removedLocked(postID string) bool {
	for _, d := range p.pending {
		if d.kind == deltaRemove && d.postID == postID {
			return true
		}
	}
	return false
}

func applyLikeFlip(post *models.Post, userID string) {
	for i, id := range post.LikedBy {
		if id == userID {
			post.LikedBy = append(post.LikedBy[:i], post.LikedBy[i+1:]...)
			post.Likes--
			return
		}
	}
	post.LikedBy = append(post.LikedBy, userID)
	post.Likes++
}

func clonePost(p models.Post) models.Post {
	cp := p
	cp.LikedBy = append([]string(nil), p.LikedBy...)
	cp.Comments = append([]models.Comment(nil), p.Comments...)
	return cp
}

func snapshotHasPost(posts []models.Post, postID string) bool {
	for i := range posts {
		if posts[i].ID == postID {
			return true
		}
	}
	return false
}

func snapshotHasComment(posts []models.Post, postID string, c models.Comment) bool {
	for i := range posts {
		if posts[i].ID != postID {
			continue
		}
		for _, existing := range posts[i].Comments {
			if existing.AuthorID == c.AuthorID && existing.Content == c.Content {
				return true
			}
		}
		return false
	}
	return false
}
