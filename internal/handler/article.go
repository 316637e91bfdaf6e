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

// Articles is the article service as seen by the HTTP layer.
type Articles interface {
	ListArticles(ctx context.Context) ([]*model.Article, error)
	GetArticle(ctx context.Context, id string) (*model.Article, error)
	CreateArticle(ctx context.Context, actor model.Identity, in service.CreateArticleInput) (*model.Article, error)
	UpdateArticle(ctx context.Context, actor model.Identity, id string, in service.UpdateArticleInput) (*model.Article, error)
	DeleteArticle(ctx context.Context, actor model.Identity, id string) error
}

// ArticleHandler handles article endpoints.
type ArticleHandler struct {
	articles Articles
	logger   *slog.Logger
}

// NewArticleHandler creates a new ArticleHandler.
func NewArticleHandler(articles Articles, logger *slog.Logger) *ArticleHandler {
	return &ArticleHandler{articles: articles, logger: logger}
}

// List returns every article.
// GET /articles
func (h *ArticleHandler) List(w http.ResponseWriter, r *http.Request) {
	articles, err := h.articles.ListArticles(r.Context())
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.ToArticleListResponse(articles))
}

// Get returns a single article.
// GET /articles/{id}
func (h *ArticleHandler) Get(w http.ResponseWriter, r *http.Request) {
	article, err := h.articles.GetArticle(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.ArticleEnvelope{Data: dto.ToArticleResponse(article)})
}

// Create publishes an article owned by the caller.
// POST /articles
func (h *ArticleHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateArticleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}

	article, err := h.articles.CreateArticle(r.Context(), identity(r), service.CreateArticleInput{
		Title:   req.Title,
		Content: req.Content,
	})
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	w.Header().Set("Location", "/articles/"+article.ID)
	writeJSON(w, http.StatusCreated, dto.ArticleEnvelope{Data: dto.ToArticleResponse(article)})
}

// Update changes title and/or content. Owner only.
// PUT /articles/{id}
func (h *ArticleHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req dto.UpdateArticleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}

	article, err := h.articles.UpdateArticle(r.Context(), identity(r), chi.URLParam(r, "id"), service.UpdateArticleInput{
		Title:   req.Title,
		Content: req.Content,
	})
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ArticleEnvelope{Data: dto.ToArticleResponse(article)})
}

// Delete removes an article and its comments. Owner only.
// DELETE /articles/{id}
func (h *ArticleHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.articles.DeleteArticle(r.Context(), identity(r), chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
