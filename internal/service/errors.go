// Package service holds the business rules of the blog: registration and
// sessions, profile management, and owner-gated article and comment CRUD.
package service

import (
	"errors"
	"fmt"
	"strings"
)

// Error taxonomy surfaced to handlers. Storage errors are translated into
// these before they leave the package.
var (
	ErrNotFound        = errors.New("not found")
	ErrAuthentication  = errors.New("invalid credentials")
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrInvalidToken    = errors.New("invalid or expired registration token")
	ErrPermission      = errors.New("permission denied")
	ErrConflict        = errors.New("conflict")
)

// Resource-specific errors. Each still matches its taxonomy sentinel with errors.Is.
var (
	ErrUserNotFound    = fmt.Errorf("user %w", ErrNotFound)
	ErrArticleNotFound = fmt.Errorf("article %w", ErrNotFound)
	ErrCommentNotFound = fmt.Errorf("comment %w", ErrNotFound)
	ErrEmailTaken      = fmt.Errorf("%w: email already registered", ErrConflict)
)

// FieldError describes one invalid input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError carries every field that failed validation.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.Field + ": " + f.Message
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Has reports whether field has at least one error.
func (e *ValidationError) Has(field string) bool {
	for _, f := range e.Fields {
		if f.Field == field {
			return true
		}
	}
	return false
}
