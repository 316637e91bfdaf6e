package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/inkpost/inkpost/internal/authz"
	"github.com/inkpost/inkpost/internal/metrics"
	"github.com/inkpost/inkpost/internal/model"
	"github.com/inkpost/inkpost/internal/repository"
)

// ArticleChecker reports whether an article exists.
type ArticleChecker interface {
	ArticleExists(ctx context.Context, id string) (bool, error)
}

// CommentService handles comments on articles. Mutations are owner-only.
type CommentService struct {
	comments CommentStore
	articles ArticleChecker
	authors  AuthorLookup
	logger   *slog.Logger
	metrics  metrics.Recorder
}

// NewCommentService creates a new CommentService.
func NewCommentService(comments CommentStore, articles ArticleChecker, authors AuthorLookup, logger *slog.Logger, recorder metrics.Recorder) *CommentService {
	if logger == nil {
		logger = slog.Default()
	}
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &CommentService{
		comments: comments,
		articles: articles,
		authors:  authors,
		logger:   logger.With("component", "service.comment"),
		metrics:  recorder,
	}
}

// ListComments returns the comments of an article, newest first.
func (s *CommentService) ListComments(ctx context.Context, articleID string) ([]*model.Comment, error) {
	if err := s.requireArticle(ctx, articleID); err != nil {
		return nil, err
	}

	comments, err := s.comments.ListCommentsByArticle(ctx, articleID)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	if err := s.attachAuthors(ctx, comments...); err != nil {
		return nil, err
	}
	return comments, nil
}

// CreateComment adds the caller's comment to an article.
func (s *CommentService) CreateComment(ctx context.Context, actor model.Identity, articleID string, in CreateCommentInput) (*model.Comment, error) {
	if actor.IsZero() {
		return nil, ErrUnauthenticated
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}
	if !validID(articleID) {
		return nil, ErrArticleNotFound
	}

	now := utcNow()
	comment := &model.Comment{
		ID:        newID(),
		Content:   in.Content,
		UserID:    actor.UserID,
		ArticleID: articleID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	// The foreign key rejects a missing article, so no separate existence check.
	if err := s.comments.CreateComment(ctx, comment); err != nil {
		if errors.Is(err, repository.ErrArticleNotFound) {
			return nil, ErrArticleNotFound
		}
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUnauthenticated
		}
		return nil, fmt.Errorf("create comment: %w", err)
	}
	if err := s.attachAuthors(ctx, comment); err != nil {
		return nil, err
	}

	s.metrics.IncComment(metrics.ActionCreated)
	s.logger.InfoContext(ctx, "comment_created",
		"comment_id", comment.ID,
		"article_id", articleID,
		"user_id", actor.UserID,
	)
	return comment, nil
}

// UpdateComment changes the content of the caller's comment.
func (s *CommentService) UpdateComment(ctx context.Context, actor model.Identity, id string, in UpdateCommentInput) (*model.Comment, error) {
	if actor.IsZero() {
		return nil, ErrUnauthenticated
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}

	comment, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, actor, comment); err != nil {
		return nil, err
	}
	if in.Empty() {
		if err := s.attachAuthors(ctx, comment); err != nil {
			return nil, err
		}
		return comment, nil
	}

	comment.Content = *in.Content
	comment.UpdatedAt = utcNow()

	if err := s.comments.UpdateComment(ctx, comment); err != nil {
		if errors.Is(err, repository.ErrCommentNotFound) {
			return nil, ErrCommentNotFound
		}
		return nil, fmt.Errorf("update comment: %w", err)
	}
	if err := s.attachAuthors(ctx, comment); err != nil {
		return nil, err
	}

	s.metrics.IncComment(metrics.ActionUpdated)
	s.logger.InfoContext(ctx, "comment_updated", "comment_id", comment.ID, "user_id", actor.UserID)
	return comment, nil
}

// DeleteComment removes the caller's comment.
func (s *CommentService) DeleteComment(ctx context.Context, actor model.Identity, id string) error {
	if actor.IsZero() {
		return ErrUnauthenticated
	}

	comment, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if err := s.authorize(ctx, actor, comment); err != nil {
		return err
	}

	if err := s.comments.DeleteComment(ctx, comment.ID); err != nil {
		if errors.Is(err, repository.ErrCommentNotFound) {
			return ErrCommentNotFound
		}
		return fmt.Errorf("delete comment: %w", err)
	}

	s.metrics.IncComment(metrics.ActionDeleted)
	s.logger.InfoContext(ctx, "comment_deleted", "comment_id", comment.ID, "user_id", actor.UserID)
	return nil
}

func (s *CommentService) requireArticle(ctx context.Context, articleID string) error {
	if !validID(articleID) {
		return ErrArticleNotFound
	}
	ok, err := s.articles.ArticleExists(ctx, articleID)
	if err != nil {
		return fmt.Errorf("check article: %w", err)
	}
	if !ok {
		return ErrArticleNotFound
	}
	return nil
}

func (s *CommentService) load(ctx context.Context, id string) (*model.Comment, error) {
	if !validID(id) {
		return nil, ErrCommentNotFound
	}
	comment, err := s.comments.GetCommentByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrCommentNotFound) {
			return nil, ErrCommentNotFound
		}
		return nil, fmt.Errorf("get comment: %w", err)
	}
	return comment, nil
}

func (s *CommentService) authorize(ctx context.Context, actor model.Identity, comment *model.Comment) error {
	if err := authz.Check(actor.UserID, comment); err != nil {
		s.metrics.IncPermissionDenied("comment")
		s.logger.WarnContext(ctx, "permission_denied",
			"resource", "comment",
			"comment_id", comment.ID,
			"user_id", actor.UserID,
		)
		return ErrPermission
	}
	return nil
}

func (s *CommentService) attachAuthors(ctx context.Context, comments ...*model.Comment) error {
	ids := uniqueIDs(len(comments), func(i int) string { return comments[i].UserID })
	authors, err := authorsByID(ctx, s.authors, ids)
	if err != nil {
		return fmt.Errorf("resolve authors: %w", err)
	}
	for _, c := range comments {
		c.Author = authors[c.UserID]
	}
	return nil
}
