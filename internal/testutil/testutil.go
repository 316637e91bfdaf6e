// Package testutil holds helpers shared by integration tests.
package testutil

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/oklog/ulid/v2"
	"github.com/redis/go-redis/v9"

	"github.com/inkpost/inkpost/internal/migrations"
	"github.com/inkpost/inkpost/internal/model"
)

// RequireEnv returns an environment variable or skips the test if missing.
func RequireEnv(t testing.TB, key string) string {
	t.Helper()
	value := os.Getenv(key)
	if value == "" {
		t.Skipf("%s not set", key)
	}
	return value
}

const advisoryLockID int64 = 731_001

// AcquireDBLock takes a session advisory lock so DB tests from different
// packages do not reset the schema under each other.
func AcquireDBLock(ctx context.Context, pool *pgxpool.Pool) (func() error, error) {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}

	if _, err := conn.Exec(ctx, "SELECT pg_advisory_lock($1)", advisoryLockID); err != nil {
		conn.Release()
		return nil, fmt.Errorf("acquire advisory lock: %w", err)
	}

	return func() error {
		defer conn.Release()
		if _, err := conn.Exec(ctx, "SELECT pg_advisory_unlock($1)", advisoryLockID); err != nil {
			return fmt.Errorf("release advisory lock: %w", err)
		}
		return nil
	}, nil
}

// ResetSchema rolls back and reapplies all embedded migrations.
func ResetSchema(ctx context.Context, pool *pgxpool.Pool) error {
	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()
	return migrations.Reset(ctx, db)
}

// FlushRedis clears the current Redis database.
func FlushRedis(ctx context.Context, client *redis.Client) error {
	return client.FlushDB(ctx).Err()
}

// NewRedisClient connects to REDIS_URL or skips the test.
func NewRedisClient(t testing.TB) *redis.Client {
	t.Helper()
	opt, err := redis.ParseURL(RequireEnv(t, "REDIS_URL"))
	if err != nil {
		t.Fatalf("parse REDIS_URL: %v", err)
	}
	client := redis.NewClient(opt)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

var seq atomic.Int64

// UniqueID returns a prefixed id unique within the test binary.
func UniqueID(prefix string) string {
	return fmt.Sprintf("%s-%d-%d", prefix, time.Now().UnixNano(), seq.Add(1))
}

// UniqueEmail returns an address that has not been used by this test binary.
func UniqueEmail(prefix string) string {
	return strings.ToLower(UniqueID(prefix)) + "@example.test"
}

// NewTestUser builds a user with a placeholder password hash.
func NewTestUser(t testing.TB, name string) *model.User {
	t.Helper()
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &model.User{
		ID:           ulid.Make().String(),
		Name:         name,
		Email:        UniqueEmail(strings.ToLower(name)),
		PasswordHash: "$argon2id$v=19$m=65536,t=3,p=4$c2FsdA$a2V5",
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// NewTestArticle builds an article owned by userID.
func NewTestArticle(t testing.TB, userID, title string) *model.Article {
	t.Helper()
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &model.Article{
		ID:        ulid.Make().String(),
		Title:     title,
		Content:   "Body of " + title,
		UserID:    userID,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// NewTestComment builds a comment on articleID by userID.
func NewTestComment(t testing.TB, articleID, userID string) *model.Comment {
	t.Helper()
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &model.Comment{
		ID:        ulid.Make().String(),
		Content:   "A perfectly fine comment",
		UserID:    userID,
		ArticleID: articleID,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
