package model

import "time"

// Session is one outstanding bearer token. Only the token digest is stored.
type Session struct {
	ID         string
	UserID     string
	TokenHash  string
	CreatedAt  time.Time
	LastUsedAt *time.Time
	ExpiresAt  time.Time
}

// IsExpired reports whether the session is past its expiry at now.
func (s *Session) IsExpired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// Identity is the authenticated caller of a request.
// It is built by the auth middleware and passed explicitly to services.
type Identity struct {
	UserID    string `json:"user_id"`
	SessionID string `json:"session_id"`
	TokenHash string `json:"-"`
}

// IsZero reports whether no caller is authenticated.
func (i Identity) IsZero() bool {
	return i.UserID == ""
}
