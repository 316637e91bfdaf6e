package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/inkpost/inkpost/internal/model"
)

// ErrCommentNotFound is returned when no comment has the given id.
var ErrCommentNotFound = errors.New("comment not found")

const commentColumns = `id, content, user_id, article_id, created_at, updated_at`

// CreateComment inserts a comment. A missing parent article yields ErrArticleNotFound.
func (r *Repository) CreateComment(ctx context.Context, c *model.Comment) error {
	query := `
		INSERT INTO comments (id, content, user_id, article_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.pool.Exec(ctx, query, c.ID, c.Content, c.UserID, c.ArticleID, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		if isForeignKeyViolation(err, "comments_article_id_fkey") {
			return ErrArticleNotFound
		}
		if isForeignKeyViolation(err, "comments_user_id_fkey") {
			return ErrUserNotFound
		}
		return fmt.Errorf("failed to create comment: %w", err)
	}
	return nil
}

// GetCommentByID retrieves a comment by id.
func (r *Repository) GetCommentByID(ctx context.Context, id string) (*model.Comment, error) {
	query := `SELECT ` + commentColumns + ` FROM comments WHERE id = $1`

	c, err := scanComment(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCommentNotFound
		}
		return nil, fmt.Errorf("failed to get comment by ID: %w", err)
	}
	return c, nil
}

// ListCommentsByArticle returns an article's comments, newest first.
func (r *Repository) ListCommentsByArticle(ctx context.Context, articleID string) ([]*model.Comment, error) {
	query := `
		SELECT ` + commentColumns + `
		FROM comments
		WHERE article_id = $1
		ORDER BY created_at DESC, id DESC
	`

	rows, err := r.pool.Query(ctx, query, articleID)
	if err != nil {
		return nil, fmt.Errorf("failed to list comments: %w", err)
	}
	defer rows.Close()

	comments := make([]*model.Comment, 0)
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan comment: %w", err)
		}
		comments = append(comments, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating comments: %w", err)
	}

	return comments, nil
}

// UpdateComment persists the comment content.
func (r *Repository) UpdateComment(ctx context.Context, c *model.Comment) error {
	query := `UPDATE comments SET content = $2, updated_at = $3 WHERE id = $1`

	result, err := r.pool.Exec(ctx, query, c.ID, c.Content, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update comment: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrCommentNotFound
	}
	return nil
}

// DeleteComment removes a comment.
func (r *Repository) DeleteComment(ctx context.Context, id string) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM comments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete comment: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrCommentNotFound
	}
	return nil
}

func scanComment(row pgx.Row) (*model.Comment, error) {
	var c model.Comment
	err := row.Scan(&c.ID, &c.Content, &c.UserID, &c.ArticleID, &c.CreatedAt, &c.UpdatedAt)
	return &c, err
}
