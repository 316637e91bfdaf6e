package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/inkpost/inkpost/internal/model"
)

// ErrArticleNotFound is returned when no article has the given id.
var ErrArticleNotFound = errors.New("article not found")

const articleColumns = `id, title, content, user_id, created_at, updated_at`

// CreateArticle inserts a new article.
func (r *Repository) CreateArticle(ctx context.Context, a *model.Article) error {
	query := `
		INSERT INTO articles (id, title, content, user_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	if _, err := r.pool.Exec(ctx, query, a.ID, a.Title, a.Content, a.UserID, a.CreatedAt, a.UpdatedAt); err != nil {
		if isForeignKeyViolation(err, "articles_user_id_fkey") {
			return ErrUserNotFound
		}
		return fmt.Errorf("failed to create article: %w", err)
	}
	return nil
}

// GetArticleByID retrieves an article by id.
func (r *Repository) GetArticleByID(ctx context.Context, id string) (*model.Article, error) {
	query := `SELECT ` + articleColumns + ` FROM articles WHERE id = $1`

	a, err := scanArticle(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrArticleNotFound
		}
		return nil, fmt.Errorf("failed to get article by ID: %w", err)
	}
	return a, nil
}

// ListArticles returns every article, newest first.
// TODO: add keyset pagination on (created_at, id) once listing size warrants it.
func (r *Repository) ListArticles(ctx context.Context) ([]*model.Article, error) {
	query := `SELECT ` + articleColumns + ` FROM articles ORDER BY created_at DESC, id DESC`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list articles: %w", err)
	}
	defer rows.Close()

	articles := make([]*model.Article, 0)
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan article: %w", err)
		}
		articles = append(articles, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating articles: %w", err)
	}

	return articles, nil
}

// UpdateArticle persists title and content.
func (r *Repository) UpdateArticle(ctx context.Context, a *model.Article) error {
	query := `
		UPDATE articles
		SET title = $2, content = $3, updated_at = $4
		WHERE id = $1
	`

	result, err := r.pool.Exec(ctx, query, a.ID, a.Title, a.Content, a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update article: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrArticleNotFound
	}
	return nil
}

// DeleteArticle removes an article. Its comments cascade.
func (r *Repository) DeleteArticle(ctx context.Context, id string) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM articles WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete article: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrArticleNotFound
	}
	return nil
}

// ArticleExists reports whether an article with id exists.
func (r *Repository) ArticleExists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM articles WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check article existence: %w", err)
	}
	return exists, nil
}

func scanArticle(row pgx.Row) (*model.Article, error) {
	var a model.Article
	err := row.Scan(&a.ID, &a.Title, &a.Content, &a.UserID, &a.CreatedAt, &a.UpdatedAt)
	return &a, err
}
