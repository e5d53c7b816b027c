package models

import "time"

// Comment represents a reply to a post. Comments are immutable once created;
// they only disappear when the owning post is deleted.
type Comment struct {
	ID        string    `json:"id"`
	PostID    string    `json:"post_id"`
	AuthorID  string    `json:"author_id"`
	Author    string    `json:"author"`
	Content   string    `json:"content"`
	Timestamp string    `json:"timestamp"`
	CreatedAt time.Time `json:"created_at"`
}
