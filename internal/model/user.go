// Package model defines domain entities for the application.
package model

import "time"

// User is a registered account. PasswordHash never leaves the process.
type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Author is the public subset of a User embedded in content responses.
type Author struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// AsAuthor returns the public author view of u.
func (u *User) AsAuthor() *Author {
	if u == nil {
		return nil
	}
	return &Author{ID: u.ID, Name: u.Name}
}
