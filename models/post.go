package models

import "time"

// Author is the display snapshot copied onto a post at creation time. It is
// deliberately not live-joined to later profile edits; historical posts keep
// the name and avatar their author had when publishing.
type Author struct {
	Name     string `json:"name"`
	Username string `json:"username"`
	Avatar   string `json:"avatar"`
}

// Post represents a feed entry together with its resolved engagement state.
type Post struct {
	ID           string    `json:"id"`
	AuthorID     string    `json:"author_id"`
	Author       Author    `json:"author"`
	Content      string    `json:"content"`
	Image        string    `json:"image,omitempty"`
	Likes        int64     `json:"likes"`
	Liked        bool      `json:"liked"`
	LikedBy      []string  `json:"liked_by"`
	CommentCount int64     `json:"comment_count"`
	Comments     []Comment `json:"comments"`
	Timestamp    string    `json:"timestamp"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// LikedByUser reports whether userID is in the post's likedBy set.
func (p *Post) LikedByUser(userID string) bool {
	if userID == "" {
		return false
	}
	for _, id := range p.LikedBy {
		if id == userID {
			return true
		}
	}
	return false
}

// ForViewer returns a copy with the viewer-relative liked flag derived from
// the likedBy set. The flag is computed at read time and never persisted.
func (p Post) ForViewer(userID string) Post {
	p.Liked = p.LikedByUser(userID)
	return p
}
