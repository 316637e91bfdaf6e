package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/inkpost/inkpost/internal/authz"
	"github.com/inkpost/inkpost/internal/metrics"
	"github.com/inkpost/inkpost/internal/model"
	"github.com/inkpost/inkpost/internal/repository"
)

// ArticleService handles article CRUD. Mutations are owner-only.
type ArticleService struct {
	articles ArticleStore
	authors  AuthorLookup
	logger   *slog.Logger
	metrics  metrics.Recorder
}

// NewArticleService creates a new ArticleService.
func NewArticleService(articles ArticleStore, authors AuthorLookup, logger *slog.Logger, recorder metrics.Recorder) *ArticleService {
	if logger == nil {
		logger = slog.Default()
	}
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &ArticleService{
		articles: articles,
		authors:  authors,
		logger:   logger.With("component", "service.article"),
		metrics:  recorder,
	}
}

// ListArticles returns every article, newest first. There is no pagination.
func (s *ArticleService) ListArticles(ctx context.Context) ([]*model.Article, error) {
	articles, err := s.articles.ListArticles(ctx)
	if err != nil {
		return nil, fmt.Errorf("list articles: %w", err)
	}
	if err := s.attachAuthors(ctx, articles...); err != nil {
		return nil, err
	}
	return articles, nil
}

// GetArticle returns one article.
func (s *ArticleService) GetArticle(ctx context.Context, id string) (*model.Article, error) {
	article, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.attachAuthors(ctx, article); err != nil {
		return nil, err
	}
	return article, nil
}

// CreateArticle stores a new article owned by the caller.
func (s *ArticleService) CreateArticle(ctx context.Context, actor model.Identity, in CreateArticleInput) (*model.Article, error) {
	if actor.IsZero() {
		return nil, ErrUnauthenticated
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}

	now := utcNow()
	article := &model.Article{
		ID:        newID(),
		Title:     strings.TrimSpace(in.Title),
		Content:   in.Content,
		UserID:    actor.UserID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.articles.CreateArticle(ctx, article); err != nil {
		// The account was deleted while this request was in flight.
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUnauthenticated
		}
		return nil, fmt.Errorf("create article: %w", err)
	}
	if err := s.attachAuthors(ctx, article); err != nil {
		return nil, err
	}

	s.metrics.IncArticle(metrics.ActionCreated)
	s.logger.InfoContext(ctx, "article_created", "article_id", article.ID, "user_id", actor.UserID)
	return article, nil
}

// UpdateArticle applies the present fields of in, if the caller owns the article.
func (s *ArticleService) UpdateArticle(ctx context.Context, actor model.Identity, id string, in UpdateArticleInput) (*model.Article, error) {
	if actor.IsZero() {
		return nil, ErrUnauthenticated
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}

	article, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, actor, article); err != nil {
		return nil, err
	}
	if in.Empty() {
		if err := s.attachAuthors(ctx, article); err != nil {
			return nil, err
		}
		return article, nil
	}

	if in.Title != nil {
		article.Title = strings.TrimSpace(*in.Title)
	}
	if in.Content != nil {
		article.Content = *in.Content
	}
	article.UpdatedAt = utcNow()

	if err := s.articles.UpdateArticle(ctx, article); err != nil {
		if errors.Is(err, repository.ErrArticleNotFound) {
			return nil, ErrArticleNotFound
		}
		return nil, fmt.Errorf("update article: %w", err)
	}
	if err := s.attachAuthors(ctx, article); err != nil {
		return nil, err
	}

	s.metrics.IncArticle(metrics.ActionUpdated)
	s.logger.InfoContext(ctx, "article_updated", "article_id", article.ID, "user_id", actor.UserID)
	return article, nil
}

// DeleteArticle removes an article and its comments, if the caller owns it.
func (s *ArticleService) DeleteArticle(ctx context.Context, actor model.Identity, id string) error {
	if actor.IsZero() {
		return ErrUnauthenticated
	}

	article, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if err := s.authorize(ctx, actor, article); err != nil {
		return err
	}

	if err := s.articles.DeleteArticle(ctx, article.ID); err != nil {
		if errors.Is(err, repository.ErrArticleNotFound) {
			return ErrArticleNotFound
		}
		return fmt.Errorf("delete article: %w", err)
	}

	s.metrics.IncArticle(metrics.ActionDeleted)
	s.logger.InfoContext(ctx, "article_deleted", "article_id", article.ID, "user_id", actor.UserID)
	return nil
}

func (s *ArticleService) load(ctx context.Context, id string) (*model.Article, error) {
	if !validID(id) {
		return nil, ErrArticleNotFound
	}
	article, err := s.articles.GetArticleByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrArticleNotFound) {
			return nil, ErrArticleNotFound
		}
		return nil, fmt.Errorf("get article: %w", err)
	}
	return article, nil
}

func (s *ArticleService) authorize(ctx context.Context, actor model.Identity, article *model.Article) error {
	if err := authz.Check(actor.UserID, article); err != nil {
		s.metrics.IncPermissionDenied("article")
		s.logger.WarnContext(ctx, "permission_denied",
			"resource", "article",
			"article_id", article.ID,
			"user_id", actor.UserID,
		)
		return ErrPermission
	}
	return nil
}

func (s *ArticleService) attachAuthors(ctx context.Context, articles ...*model.Article) error {
	ids := uniqueIDs(len(articles), func(i int) string { return articles[i].UserID })
	authors, err := authorsByID(ctx, s.authors, ids)
	if err != nil {
		return fmt.Errorf("resolve authors: %w", err)
	}
	for _, a := range articles {
		a.Author = authors[a.UserID]
	}
	return nil
}
