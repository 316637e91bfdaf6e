package model

import "time"

// Comment content limits, counted in characters.
const (
	MinCommentLength = 10
	MaxCommentLength = 100
)

// Comment belongs to one article and one user.
type Comment struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	UserID    string    `json:"user_id"`
	ArticleID string    `json:"article_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Author *Author `json:"author,omitempty"`
}

// OwnerID returns the id of the user allowed to mutate the comment.
func (c *Comment) OwnerID() string {
	return c.UserID
}
