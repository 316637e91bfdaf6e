// Package dto defines the JSON request and response bodies of the HTTP API.
package dto

import (
	"time"

	"github.com/inkpost/inkpost/internal/model"
	"github.com/inkpost/inkpost/internal/service"
)

// ErrorResponse represents an API error. Errors lists every invalid field
// for validation failures.
type ErrorResponse struct {
	Error  string               `json:"error"`
	Code   string               `json:"code"`
	Errors []service.FieldError `json:"errors,omitempty"`
}

// MessageResponse is the body of operations that only acknowledge.
type MessageResponse struct {
	Message string `json:"message"`
}

// PreRegisterRequest is the body of POST /register/preregister.
type PreRegisterRequest struct {
	Email string `json:"email"`
}

// VerifyRequest is the body of POST /register/verify.
type VerifyRequest struct {
	Token                string `json:"token"`
	Name                 string `json:"name"`
	Password             string `json:"password"`
	PasswordConfirmation string `json:"password_confirmation"`
}

// LoginRequest is the body of POST /login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UpdateUserRequest is the body of PUT /user. Absent fields are left unchanged.
type UpdateUserRequest struct {
	Name                 *string `json:"name"`
	Password             *string `json:"password"`
	PasswordConfirmation *string `json:"password_confirmation"`
}

// CreateArticleRequest is the body of POST /articles.
type CreateArticleRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// UpdateArticleRequest is the body of PUT /articles/{id}.
type UpdateArticleRequest struct {
	Title   *string `json:"title"`
	Content *string `json:"content"`
}

// CreateCommentRequest is the body of POST /articles/{id}/comments.
type CreateCommentRequest struct {
	Content string `json:"content"`
}

// UpdateCommentRequest is the body of PUT /comments/{id}.
type UpdateCommentRequest struct {
	Content *string `json:"content"`
}

// UserResponse is the public view of an account.
type UserResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// AuthorResponse is embedded in articles and comments.
type AuthorResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ArticleResponse represents an article in API responses.
type ArticleResponse struct {
	ID        string          `json:"id"`
	Title     string          `json:"title"`
	Content   string          `json:"content"`
	UserID    string          `json:"user_id"`
	Author    *AuthorResponse `json:"author,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// CommentResponse represents a comment in API responses.
type CommentResponse struct {
	ID        string          `json:"id"`
	Content   string          `json:"content"`
	UserID    string          `json:"user_id"`
	ArticleID string          `json:"article_id"`
	Author    *AuthorResponse `json:"author,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// VerifyResponse is returned after a completed registration.
type VerifyResponse struct {
	Message string        `json:"message"`
	User    *UserResponse `json:"user"`
}

// LoginResponse carries the newly issued bearer token.
type LoginResponse struct {
	Message   string        `json:"message"`
	Token     string        `json:"token"`
	ExpiresAt time.Time     `json:"expires_at"`
	User      *UserResponse `json:"user"`
}

// ProfileResponse is returned by GET /user.
type ProfileResponse struct {
	User *UserResponse `json:"user"`
}

// ProfileUpdateResponse is returned by PUT /user.
type ProfileUpdateResponse struct {
	Message string        `json:"message"`
	User    *UserResponse `json:"user"`
}

// ArticleEnvelope wraps a single article.
type ArticleEnvelope struct {
	Data *ArticleResponse `json:"data"`
}

// ArticleListResponse wraps a list of articles.
type ArticleListResponse struct {
	Data []ArticleResponse `json:"data"`
}

// CommentEnvelope wraps a single comment.
type CommentEnvelope struct {
	Comment *CommentResponse `json:"comment"`
}

// CommentListResponse wraps the comments of an article.
type CommentListResponse struct {
	Comments []CommentResponse `json:"comments"`
}

// ToUserResponse converts a User model to UserResponse DTO.
func ToUserResponse(u *model.User) *UserResponse {
	return &UserResponse{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

func toAuthorResponse(a *model.Author) *AuthorResponse {
	if a == nil {
		return nil
	}
	return &AuthorResponse{ID: a.ID, Name: a.Name}
}

// ToArticleResponse converts an Article model to ArticleResponse DTO.
func ToArticleResponse(a *model.Article) *ArticleResponse {
	return &ArticleResponse{
		ID:        a.ID,
		Title:     a.Title,
		Content:   a.Content,
		UserID:    a.UserID,
		Author:    toAuthorResponse(a.Author),
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
	}
}

// ToArticleListResponse converts a slice of Article models. The result is
// never nil so an empty list encodes as [].
func ToArticleListResponse(articles []*model.Article) *ArticleListResponse {
	out := make([]ArticleResponse, len(articles))
	for i, a := range articles {
		out[i] = *ToArticleResponse(a)
	}
	return &ArticleListResponse{Data: out}
}

// ToCommentResponse converts a Comment model to CommentResponse DTO.
func ToCommentResponse(c *model.Comment) *CommentResponse {
	return &CommentResponse{
		ID:        c.ID,
		Content:   c.Content,
		UserID:    c.UserID,
		ArticleID: c.ArticleID,
		Author:    toAuthorResponse(c.Author),
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

// ToCommentListResponse converts a slice of Comment models.
func ToCommentListResponse(comments []*model.Comment) *CommentListResponse {
	out := make([]CommentResponse, len(comments))
	for i, c := range comments {
		out[i] = *ToCommentResponse(c)
	}
	return &CommentListResponse{Comments: out}
}
