package model

import "time"

// Article field limits.
const (
	MaxTitleLength = 255
)

// Article is a post owned by exactly one user.
type Article struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Author is filled on read paths when the owner could be resolved.
	Author *Author `json:"author,omitempty"`
}

// OwnerID returns the id of the user allowed to mutate the article.
func (a *Article) OwnerID() string {
	return a.UserID
}
