package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/inkpost/inkpost/internal/handler/dto"
	"github.com/inkpost/inkpost/internal/model"
	"github.com/inkpost/inkpost/internal/service"
)

// Comments is the comment service as seen by the HTTP layer.
type Comments interface {
	ListComments(ctx context.Context, articleID string) ([]*model.Comment, error)
	CreateComment(ctx context.Context, actor model.Identity, articleID string, in service.CreateCommentInput) (*model.Comment, error)
	UpdateComment(ctx context.Context, actor model.Identity, id string, in service.UpdateCommentInput) (*model.Comment, error)
	DeleteComment(ctx context.Context, actor model.Identity, id string) error
}

// CommentHandler handles comment endpoints.
type CommentHandler struct {
	comments Comments
	logger   *slog.Logger
}

// NewCommentHandler creates a new CommentHandler.
func NewCommentHandler(comments Comments, logger *slog.Logger) *CommentHandler {
	return &CommentHandler{comments: comments, logger: logger}
}

// List returns the comments of an article, newest first.
// GET /articles/{id}/comments
func (h *CommentHandler) List(w http.ResponseWriter, r *http.Request) {
	comments, err := h.comments.ListComments(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.ToCommentListResponse(comments))
}

// Create posts a comment on an article.
// POST /articles/{id}/comments
func (h *CommentHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateCommentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}

	comment, err := h.comments.CreateComment(r.Context(), identity(r), chi.URLParam(r, "id"), service.CreateCommentInput{
		Content: req.Content,
	})
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, dto.CommentEnvelope{Comment: dto.ToCommentResponse(comment)})
}

// Update changes the content of a comment. Owner only.
// PUT /comments/{id}
func (h *CommentHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req dto.UpdateCommentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}

	comment, err := h.comments.UpdateComment(r.Context(), identity(r), chi.URLParam(r, "id"), service.UpdateCommentInput{
		Content: req.Content,
	})
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.CommentEnvelope{Comment: dto.ToCommentResponse(comment)})
}

// Delete removes a comment. Owner only.
// DELETE /comments/{id}
func (h *CommentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.comments.DeleteComment(r.Context(), identity(r), chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
