//go:build integration

package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/inkpost/inkpost/internal/model"
	"github.com/inkpost/inkpost/internal/testutil"
)

func newTestEnv(t *testing.T) (context.Context, *Repository) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration tests in short mode")
	}

	ctx := context.Background()
	dbURL := testutil.RequireEnv(t, "DATABASE_URL")

	repo, err := New(ctx, dbURL)
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	t.Cleanup(repo.Close)

	unlock, err := testutil.AcquireDBLock(ctx, repo.Pool())
	if err != nil {
		t.Fatalf("acquire db lock: %v", err)
	}
	t.Cleanup(func() { _ = unlock() })

	if err := testutil.ResetSchema(ctx, repo.Pool()); err != nil {
		t.Fatalf("reset schema: %v", err)
	}

	return ctx, repo
}

func mustCreateUser(t *testing.T, ctx context.Context, repo *Repository, name string) *model.User {
	t.Helper()
	u := testutil.NewTestUser(t, name)
	if err := repo.CreateUser(ctx, u); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	return u
}

func TestIntegrationUsers_CreateAndGet(t *testing.T) {
	ctx, repo := newTestEnv(t)

	u := mustCreateUser(t, ctx, repo, "Alice")

	byID, err := repo.GetUserByID(ctx, u.ID)
	if err != nil {
		t.Fatalf("GetUserByID failed: %v", err)
	}
	if byID.Email != u.Email || byID.Name != "Alice" || byID.PasswordHash != u.PasswordHash {
		t.Errorf("unexpected user %+v", byID)
	}

	byEmail, err := repo.GetUserByEmail(ctx, u.Email)
	if err != nil {
		t.Fatalf("GetUserByEmail failed: %v", err)
	}
	if byEmail.ID != u.ID {
		t.Errorf("ID mismatch: got %s, want %s", byEmail.ID, u.ID)
	}

	if _, err := repo.GetUserByEmail(ctx, "nobody@example.test"); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("expected ErrUserNotFound, got %v", err)
	}
}

func TestIntegrationUsers_DuplicateEmail(t *testing.T) {
	ctx, repo := newTestEnv(t)

	u := mustCreateUser(t, ctx, repo, "Alice")
	dup := testutil.NewTestUser(t, "Other")
	dup.Email = u.Email

	if err := repo.CreateUser(ctx, dup); !errors.Is(err, ErrEmailExists) {
		t.Errorf("expected ErrEmailExists, got %v", err)
	}
}

func TestIntegrationUsers_GetUsersByIDs(t *testing.T) {
	ctx, repo := newTestEnv(t)

	a := mustCreateUser(t, ctx, repo, "Alice")
	b := mustCreateUser(t, ctx, repo, "Bob")

	users, err := repo.GetUsersByIDs(ctx, []string{a.ID, b.ID, "missing"})
	if err != nil {
		t.Fatalf("GetUsersByIDs failed: %v", err)
	}
	if len(users) != 2 {
		t.Fatalf("expected 2 users, got %d", len(users))
	}
	if users[b.ID].Name != "Bob" {
		t.Errorf("expected Bob, got %+v", users[b.ID])
	}
}

func TestIntegrationUsers_DeleteCascades(t *testing.T) {
	ctx, repo := newTestEnv(t)

	alice := mustCreateUser(t, ctx, repo, "Alice")
	bob := mustCreateUser(t, ctx, repo, "Bob")

	aliceArticle := testutil.NewTestArticle(t, alice.ID, "Alice writes")
	bobArticle := testutil.NewTestArticle(t, bob.ID, "Bob writes")
	for _, a := range []*model.Article{aliceArticle, bobArticle} {
		if err := repo.CreateArticle(ctx, a); err != nil {
			t.Fatalf("CreateArticle failed: %v", err)
		}
	}

	onBob := testutil.NewTestComment(t, bobArticle.ID, alice.ID)
	onAlice := testutil.NewTestComment(t, aliceArticle.ID, bob.ID)
	for _, c := range []*model.Comment{onBob, onAlice} {
		if err := repo.CreateComment(ctx, c); err != nil {
			t.Fatalf("CreateComment failed: %v", err)
		}
	}

	now := time.Now().UTC()
	session := &model.Session{ID: ulid.Make().String(), UserID: alice.ID, TokenHash: fakeHash("a"), CreatedAt: now, ExpiresAt: now.Add(time.Hour)}
	if err := repo.CreateSession(ctx, session); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	if err := repo.DeleteUser(ctx, alice.ID); err != nil {
		t.Fatalf("DeleteUser failed: %v", err)
	}

	if _, err := repo.GetArticleByID(ctx, aliceArticle.ID); !errors.Is(err, ErrArticleNotFound) {
		t.Errorf("alice's article should be gone, got %v", err)
	}
	if _, err := repo.GetCommentByID(ctx, onBob.ID); !errors.Is(err, ErrCommentNotFound) {
		t.Errorf("alice's comment should be gone, got %v", err)
	}
	// Bob's comment lived on Alice's article, so it goes with the article.
	if _, err := repo.GetCommentByID(ctx, onAlice.ID); !errors.Is(err, ErrCommentNotFound) {
		t.Errorf("comment on alice's article should be gone, got %v", err)
	}
	if _, err := repo.GetSessionByTokenHash(ctx, session.TokenHash); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("alice's session should be gone, got %v", err)
	}
	if _, err := repo.GetArticleByID(ctx, bobArticle.ID); err != nil {
		t.Errorf("bob's article should survive, got %v", err)
	}
}

func TestIntegrationArticles_ListNewestFirst(t *testing.T) {
	ctx, repo := newTestEnv(t)

	u := mustCreateUser(t, ctx, repo, "Alice")
	base := time.Now().UTC().Truncate(time.Microsecond)

	for i, title := range []string{"first", "second", "third"} {
		a := testutil.NewTestArticle(t, u.ID, title)
		a.CreatedAt = base.Add(time.Duration(i) * time.Second)
		a.UpdatedAt = a.CreatedAt
		if err := repo.CreateArticle(ctx, a); err != nil {
			t.Fatalf("CreateArticle failed: %v", err)
		}
	}

	articles, err := repo.ListArticles(ctx)
	if err != nil {
		t.Fatalf("ListArticles failed: %v", err)
	}
	if len(articles) != 3 {
		t.Fatalf("expected 3 articles, got %d", len(articles))
	}
	if articles[0].Title != "third" || articles[2].Title != "first" {
		t.Errorf("unexpected order: %s, %s, %s", articles[0].Title, articles[1].Title, articles[2].Title)
	}
}

func TestIntegrationArticles_UpdateAndDelete(t *testing.T) {
	ctx, repo := newTestEnv(t)

	u := mustCreateUser(t, ctx, repo, "Alice")
	a := testutil.NewTestArticle(t, u.ID, "Draft")
	if err := repo.CreateArticle(ctx, a); err != nil {
		t.Fatalf("CreateArticle failed: %v", err)
	}
	c := testutil.NewTestComment(t, a.ID, u.ID)
	if err := repo.CreateComment(ctx, c); err != nil {
		t.Fatalf("CreateComment failed: %v", err)
	}

	a.Title = "Final"
	a.UpdatedAt = time.Now().UTC()
	if err := repo.UpdateArticle(ctx, a); err != nil {
		t.Fatalf("UpdateArticle failed: %v", err)
	}
	got, err := repo.GetArticleByID(ctx, a.ID)
	if err != nil {
		t.Fatalf("GetArticleByID failed: %v", err)
	}
	if got.Title != "Final" {
		t.Errorf("expected title Final, got %s", got.Title)
	}

	if err := repo.DeleteArticle(ctx, a.ID); err != nil {
		t.Fatalf("DeleteArticle failed: %v", err)
	}
	if err := repo.DeleteArticle(ctx, a.ID); !errors.Is(err, ErrArticleNotFound) {
		t.Errorf("second delete should be ErrArticleNotFound, got %v", err)
	}
	if _, err := repo.GetCommentByID(ctx, c.ID); !errors.Is(err, ErrCommentNotFound) {
		t.Errorf("comment should cascade with article, got %v", err)
	}
}

func TestIntegrationComments_MissingArticle(t *testing.T) {
	ctx, repo := newTestEnv(t)

	u := mustCreateUser(t, ctx, repo, "Alice")
	c := testutil.NewTestComment(t, ulid.Make().String(), u.ID)

	if err := repo.CreateComment(ctx, c); !errors.Is(err, ErrArticleNotFound) {
		t.Errorf("expected ErrArticleNotFound, got %v", err)
	}
}

func TestIntegrationComments_ListByArticle(t *testing.T) {
	ctx, repo := newTestEnv(t)

	u := mustCreateUser(t, ctx, repo, "Alice")
	a := testutil.NewTestArticle(t, u.ID, "Post")
	other := testutil.NewTestArticle(t, u.ID, "Other")
	for _, art := range []*model.Article{a, other} {
		if err := repo.CreateArticle(ctx, art); err != nil {
			t.Fatalf("CreateArticle failed: %v", err)
		}
	}

	base := time.Now().UTC().Truncate(time.Microsecond)
	for i := 0; i < 3; i++ {
		c := testutil.NewTestComment(t, a.ID, u.ID)
		c.CreatedAt = base.Add(time.Duration(i) * time.Second)
		if err := repo.CreateComment(ctx, c); err != nil {
			t.Fatalf("CreateComment failed: %v", err)
		}
	}
	if err := repo.CreateComment(ctx, testutil.NewTestComment(t, other.ID, u.ID)); err != nil {
		t.Fatalf("CreateComment failed: %v", err)
	}

	comments, err := repo.ListCommentsByArticle(ctx, a.ID)
	if err != nil {
		t.Fatalf("ListCommentsByArticle failed: %v", err)
	}
	if len(comments) != 3 {
		t.Fatalf("expected 3 comments, got %d", len(comments))
	}
	if !comments[0].CreatedAt.After(comments[2].CreatedAt) {
		t.Error("comments should be newest first")
	}

	exists, err := repo.ArticleExists(ctx, a.ID)
	if err != nil || !exists {
		t.Errorf("ArticleExists = %v, %v; want true", exists, err)
	}
}

func TestIntegrationSessions_Lifecycle(t *testing.T) {
	ctx, repo := newTestEnv(t)

	u := mustCreateUser(t, ctx, repo, "Alice")
	now := time.Now().UTC()

	live := &model.Session{ID: ulid.Make().String(), UserID: u.ID, TokenHash: fakeHash("1"), CreatedAt: now, ExpiresAt: now.Add(time.Hour)}
	second := &model.Session{ID: ulid.Make().String(), UserID: u.ID, TokenHash: fakeHash("2"), CreatedAt: now, ExpiresAt: now.Add(time.Hour)}
	expired := &model.Session{ID: ulid.Make().String(), UserID: u.ID, TokenHash: fakeHash("3"), CreatedAt: now, ExpiresAt: now.Add(-time.Minute)}
	for _, s := range []*model.Session{live, second, expired} {
		if err := repo.CreateSession(ctx, s); err != nil {
			t.Fatalf("CreateSession failed: %v", err)
		}
	}

	got, err := repo.GetSessionByTokenHash(ctx, live.TokenHash)
	if err != nil {
		t.Fatalf("GetSessionByTokenHash failed: %v", err)
	}
	if got.UserID != u.ID {
		t.Errorf("unexpected session owner %s", got.UserID)
	}
	if _, err := repo.GetSessionByTokenHash(ctx, expired.TokenHash); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("expired session should be not found, got %v", err)
	}

	if err := repo.TouchSession(ctx, live.ID, now); err != nil {
		t.Fatalf("TouchSession failed: %v", err)
	}

	hashes, err := repo.ListSessionTokenHashes(ctx, u.ID)
	if err != nil {
		t.Fatalf("ListSessionTokenHashes failed: %v", err)
	}
	if len(hashes) != 3 {
		t.Errorf("expected 3 hashes, got %d", len(hashes))
	}

	if err := repo.DeleteSession(ctx, live.ID); err != nil {
		t.Fatalf("DeleteSession failed: %v", err)
	}
	if _, err := repo.GetSessionByTokenHash(ctx, live.TokenHash); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("revoked session should be not found, got %v", err)
	}
	if _, err := repo.GetSessionByTokenHash(ctx, second.TokenHash); err != nil {
		t.Errorf("other session should survive logout, got %v", err)
	}

	n, err := repo.DeleteExpiredSessions(ctx)
	if err != nil {
		t.Fatalf("DeleteExpiredSessions failed: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 expired session removed, got %d", n)
	}
}

func fakeHash(seed string) string {
	out := make([]byte, 64)
	for i := range out {
		out[i] = seed[0]
	}
	return string(out)
}
