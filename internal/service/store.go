package service

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/inkpost/inkpost/internal/model"
)

// UserStore persists user accounts. *repository.Repository implements it.
type UserStore interface {
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	UpdateUser(ctx context.Context, user *model.User) error
	DeleteUser(ctx context.Context, id string) error
}

// AuthorLookup resolves many users in one round trip.
type AuthorLookup interface {
	GetUsersByIDs(ctx context.Context, ids []string) (map[string]*model.User, error)
}

// SessionStore persists issued bearer tokens.
type SessionStore interface {
	CreateSession(ctx context.Context, s *model.Session) error
	DeleteSession(ctx context.Context, id string) error
	ListSessionTokenHashes(ctx context.Context, userID string) ([]string, error)
}

// SessionCache holds short-lived lookups of sessions by token digest.
type SessionCache interface {
	RevokeSessions(ctx context.Context, tokenHashes ...string) error
}

// PendingRegistrations is a key-value store with expiry and atomic take.
// *cache.Cache implements it on Redis.
type PendingRegistrations interface {
	PutRegistration(ctx context.Context, p *model.PendingRegistration) error
	TakeRegistration(ctx context.Context, token string) (*model.PendingRegistration, error)
	RestoreRegistration(ctx context.Context, p *model.PendingRegistration) error
}

// ArticleStore persists articles.
type ArticleStore interface {
	CreateArticle(ctx context.Context, a *model.Article) error
	GetArticleByID(ctx context.Context, id string) (*model.Article, error)
	ListArticles(ctx context.Context) ([]*model.Article, error)
	UpdateArticle(ctx context.Context, a *model.Article) error
	DeleteArticle(ctx context.Context, id string) error
	ArticleExists(ctx context.Context, id string) (bool, error)
}

// CommentStore persists comments.
type CommentStore interface {
	CreateComment(ctx context.Context, c *model.Comment) error
	GetCommentByID(ctx context.Context, id string) (*model.Comment, error)
	ListCommentsByArticle(ctx context.Context, articleID string) ([]*model.Comment, error)
	UpdateComment(ctx context.Context, c *model.Comment) error
	DeleteComment(ctx context.Context, id string) error
}

// newID returns a lexicographically sortable unique id.
func newID() string {
	return ulid.Make().String()
}

func utcNow() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

// authorsByID resolves the public author view for each id.
func authorsByID(ctx context.Context, lookup AuthorLookup, ids []string) (map[string]*model.Author, error) {
	if len(ids) == 0 {
		return map[string]*model.Author{}, nil
	}
	users, err := lookup.GetUsersByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make(map[string]*model.Author, len(users))
	for id, u := range users {
		out[id] = u.AsAuthor()
	}
	return out, nil
}

func uniqueIDs(n int, at func(i int) string) []string {
	seen := make(map[string]struct{}, n)
	ids := make([]string, 0, n)
	for i := 0; i < n; i++ {
		id := at(i)
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids
}
