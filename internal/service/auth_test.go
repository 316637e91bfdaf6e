package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inkpost/inkpost/internal/auth"
	"github.com/inkpost/inkpost/internal/metrics"
	"github.com/inkpost/inkpost/internal/model"
)

func matchesToken(plaintext, hash string) bool {
	return auth.HashToken(plaintext) == hash
}

func strPtr(s string) *string { return &s }

func TestPreRegister_StoresTokenAndSendsMail(t *testing.T) {
	env := newTestEnv(t)

	token := env.preRegister(t, "a@x.com")

	assert.Len(t, token, model.RegistrationTokenLength)
	assert.Equal(t, []string{token}, env.pending.tokens())

	msg := env.outbox.last()
	assert.Equal(t, "a@x.com", msg.To)
	assert.NotEmpty(t, msg.Subject)

	snap := env.metrics.Snapshot()
	assert.EqualValues(t, 1, snap.RegistrationsRequested)
	assert.EqualValues(t, 1, snap.Notifications[metrics.NotificationQueued])
}

func TestPreRegister_NormalizesEmail(t *testing.T) {
	env := newTestEnv(t)

	env.preRegister(t, "  Alice@Example.COM ")
	assert.Equal(t, "alice@example.com", env.outbox.last().To)
}

func TestPreRegister_InvalidEmail(t *testing.T) {
	env := newTestEnv(t)

	for _, email := range []string{"", "not-an-email", "Alice <a@x.com>", strings.Repeat("a", 250) + "@x.com"} {
		err := env.auth.PreRegister(context.Background(), PreRegisterInput{Email: email})
		var verr *ValidationError
		require.ErrorAs(t, err, &verr, "email %q", email)
		assert.True(t, verr.Has("email"))
	}
	assert.Empty(t, env.pending.tokens())
}

func TestPreRegister_DuplicateEmail(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "a@x.com", "Alice")

	err := env.auth.PreRegister(context.Background(), PreRegisterInput{Email: "a@x.com"})

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.True(t, verr.Has("email"))
}

func TestPreRegister_MailFailureKeepsToken(t *testing.T) {
	env := newTestEnv(t)
	env.outbox.err = errors.New("smtp down")

	err := env.auth.PreRegister(context.Background(), PreRegisterInput{Email: "a@x.com"})

	require.NoError(t, err)
	assert.Len(t, env.pending.tokens(), 1)
	assert.EqualValues(t, 1, env.metrics.Snapshot().Notifications[metrics.NotificationFailed])
}

func TestVerifyRegistration_CreatesUser(t *testing.T) {
	env := newTestEnv(t)
	token := env.preRegister(t, "a@x.com")

	user, err := env.auth.VerifyRegistration(context.Background(), VerifyRegistrationInput{
		Token: token, Name: "Alice", Password: "pw123456", PasswordConfirmation: "pw123456",
	})

	require.NoError(t, err)
	assert.Equal(t, "a@x.com", user.Email)
	assert.Equal(t, "Alice", user.Name)
	assert.NotEqual(t, "pw123456", user.PasswordHash)
	ok, err := auth.VerifyPassword("pw123456", user.PasswordHash)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, env.pending.tokens(), "token must be consumed")
	assert.EqualValues(t, 1, env.metrics.Snapshot().RegistrationsCompleted)
}

func TestVerifyRegistration_TokenIsSingleUse(t *testing.T) {
	env := newTestEnv(t)
	token := env.preRegister(t, "a@x.com")
	in := VerifyRegistrationInput{Token: token, Name: "Alice", Password: "pw123456", PasswordConfirmation: "pw123456"}

	_, err := env.auth.VerifyRegistration(context.Background(), in)
	require.NoError(t, err)

	_, err = env.auth.VerifyRegistration(context.Background(), in)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRegistration_ExpiredToken(t *testing.T) {
	env := newTestEnv(t)
	token := env.preRegister(t, "a@x.com")

	env.clock.Advance(30*time.Minute + time.Second)

	_, err := env.auth.VerifyRegistration(context.Background(), VerifyRegistrationInput{
		Token: token, Name: "Alice", Password: "pw123456", PasswordConfirmation: "pw123456",
	})
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRegistration_UnknownToken(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.auth.VerifyRegistration(context.Background(), VerifyRegistrationInput{
		Token: "nope", Name: "Alice", Password: "pw123456", PasswordConfirmation: "pw123456",
	})
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRegistration_ReportsAllFieldErrors(t *testing.T) {
	env := newTestEnv(t)
	token := env.preRegister(t, "a@x.com")

	_, err := env.auth.VerifyRegistration(context.Background(), VerifyRegistrationInput{
		Token: token, Name: strings.Repeat("n", 256), Password: "short", PasswordConfirmation: "other",
	})

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.True(t, verr.Has("name"))
	assert.True(t, verr.Has("password"))
	assert.Len(t, env.pending.tokens(), 1, "invalid input must not consume the token")
}

func TestVerifyRegistration_ConflictWhenEmailRegistered(t *testing.T) {
	env := newTestEnv(t)
	first := env.preRegister(t, "a@x.com")
	second := env.preRegister(t, "a@x.com")

	_, err := env.auth.VerifyRegistration(context.Background(), VerifyRegistrationInput{
		Token: first, Name: "Alice", Password: "pw123456", PasswordConfirmation: "pw123456",
	})
	require.NoError(t, err)

	_, err = env.auth.VerifyRegistration(context.Background(), VerifyRegistrationInput{
		Token: second, Name: "Alice again", Password: "pw123456", PasswordConfirmation: "pw123456",
	})
	assert.ErrorIs(t, err, ErrConflict)
	assert.Empty(t, env.pending.tokens(), "a conflicting token is not restored")
}

func TestVerifyRegistration_RestoresTokenOnStorageFailure(t *testing.T) {
	env := newTestEnv(t)
	token := env.preRegister(t, "a@x.com")
	env.db.failCreateUser = errors.New("connection reset")

	_, err := env.auth.VerifyRegistration(context.Background(), VerifyRegistrationInput{
		Token: token, Name: "Alice", Password: "pw123456", PasswordConfirmation: "pw123456",
	})
	require.Error(t, err)
	assert.Equal(t, []string{token}, env.pending.tokens())

	env.db.failCreateUser = nil
	_, err = env.auth.VerifyRegistration(context.Background(), VerifyRegistrationInput{
		Token: token, Name: "Alice", Password: "pw123456", PasswordConfirmation: "pw123456",
	})
	require.NoError(t, err)
}

func TestLogin_IssuesIndependentSessions(t *testing.T) {
	env := newTestEnv(t)
	user := env.register(t, "a@x.com", "Alice")

	first, res1 := env.login(t, "a@x.com")
	second, res2 := env.login(t, "a@x.com")

	assert.NotEqual(t, res1.Token, res2.Token)
	assert.NoError(t, auth.ValidateSessionToken(res1.Token))
	assert.Equal(t, user.ID, res1.User.ID)
	assert.NotEqual(t, first.SessionID, second.SessionID)
	assert.Len(t, env.db.sessionsOf(user.ID), 2)
	assert.EqualValues(t, 2, env.metrics.Snapshot().LoginsSucceeded)
}

func TestLogin_FailuresAreIndistinguishable(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "a@x.com", "Alice")

	_, wrongPassword := env.auth.Login(context.Background(), LoginInput{Email: "a@x.com", Password: "wrong-password"})
	_, unknownEmail := env.auth.Login(context.Background(), LoginInput{Email: "nobody@x.com", Password: "pw123456"})

	assert.ErrorIs(t, wrongPassword, ErrAuthentication)
	assert.ErrorIs(t, unknownEmail, ErrAuthentication)
	assert.Equal(t, wrongPassword.Error(), unknownEmail.Error())
	assert.EqualValues(t, 2, env.metrics.Snapshot().LoginsFailed)
}

func TestLogin_MissingFields(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.auth.Login(context.Background(), LoginInput{})

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.True(t, verr.Has("email"))
	assert.True(t, verr.Has("password"))
}

func TestLogout_RevokesOnlyCurrentSession(t *testing.T) {
	env := newTestEnv(t)
	user := env.register(t, "a@x.com", "Alice")
	current, _ := env.login(t, "a@x.com")
	other, _ := env.login(t, "a@x.com")

	require.NoError(t, env.auth.Logout(context.Background(), current))

	remaining := env.db.sessionsOf(user.ID)
	require.Len(t, remaining, 1)
	assert.Equal(t, other.SessionID, remaining[0].ID)
	assert.Equal(t, []string{current.TokenHash}, env.sessions.evicted)

	assert.ErrorIs(t, env.auth.Logout(context.Background(), current), ErrUnauthenticated)
}

func TestLogout_RequiresIdentity(t *testing.T) {
	env := newTestEnv(t)
	assert.ErrorIs(t, env.auth.Logout(context.Background(), model.Identity{}), ErrUnauthenticated)
}

func TestUpdateProfile_PartialUpdate(t *testing.T) {
	env := newTestEnv(t)
	user := env.register(t, "a@x.com", "Alice")
	id, _ := env.login(t, "a@x.com")

	updated, err := env.auth.UpdateProfile(context.Background(), id, UpdateProfileInput{Name: strPtr("Alicia")})
	require.NoError(t, err)
	assert.Equal(t, "Alicia", updated.Name)
	assert.Equal(t, user.PasswordHash, updated.PasswordHash)

	_, err = env.auth.UpdateProfile(context.Background(), id, UpdateProfileInput{
		Password: strPtr("new-password"), PasswordConfirmation: strPtr("new-password"),
	})
	require.NoError(t, err)

	_, err = env.auth.Login(context.Background(), LoginInput{Email: "a@x.com", Password: "new-password"})
	assert.NoError(t, err)
	assert.NotEmpty(t, env.db.sessionsOf(user.ID), "existing sessions survive a password change")
}

func TestUpdateProfile_ListsEveryViolation(t *testing.T) {
	env := newTestEnv(t)
	user := env.register(t, "a@x.com", "Alice")

	_, err := env.auth.UpdateProfile(context.Background(), identityOf(user), UpdateProfileInput{
		Name:                 strPtr(strings.Repeat("x", 256)),
		Password:             strPtr("short"),
		PasswordConfirmation: strPtr("mismatch"),
	})

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.True(t, verr.Has("name"))
	assert.True(t, verr.Has("password"))
	assert.GreaterOrEqual(t, len(verr.Fields), 3)
}

func TestUpdateProfile_EmptyPatchIsNoop(t *testing.T) {
	env := newTestEnv(t)
	user := env.register(t, "a@x.com", "Alice")

	got, err := env.auth.UpdateProfile(context.Background(), identityOf(user), UpdateProfileInput{})
	require.NoError(t, err)
	assert.Equal(t, user.Name, got.Name)
}

func TestDeleteAccount_Cascades(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.register(t, "a@x.com", "Alice")
	bob := env.register(t, "b@x.com", "Bob")
	aliceID, _ := env.login(t, "a@x.com")

	article, err := env.articles.CreateArticle(ctx, aliceID, CreateArticleInput{Title: "Hi", Content: "Body text"})
	require.NoError(t, err)
	bobArticle, err := env.articles.CreateArticle(ctx, identityOf(bob), CreateArticleInput{Title: "Bob's", Content: "Body"})
	require.NoError(t, err)
	comment, err := env.comments.CreateComment(ctx, aliceID, bobArticle.ID, CreateCommentInput{Content: "Nice post, Bob!"})
	require.NoError(t, err)

	require.NoError(t, env.auth.DeleteAccount(ctx, aliceID))

	_, err = env.articles.GetArticle(ctx, article.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	comments, err := env.comments.ListComments(ctx, bobArticle.ID)
	require.NoError(t, err)
	assert.Empty(t, comments)
	_, err = env.comments.UpdateComment(ctx, aliceID, comment.ID, UpdateCommentInput{})
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Empty(t, env.db.sessionsOf(alice.ID))
	assert.Contains(t, env.sessions.evicted, aliceID.TokenHash)
	_, err = env.auth.GetProfile(ctx, aliceID)
	assert.ErrorIs(t, err, ErrUnauthenticated)
	assert.EqualValues(t, 1, env.metrics.Snapshot().AccountsDeleted)
}

func TestGetProfile(t *testing.T) {
	env := newTestEnv(t)
	user := env.register(t, "a@x.com", "Alice")

	got, err := env.auth.GetProfile(context.Background(), identityOf(user))
	require.NoError(t, err)
	assert.Equal(t, user.Email, got.Email)

	_, err = env.auth.GetProfile(context.Background(), model.Identity{})
	assert.ErrorIs(t, err, ErrUnauthenticated)
}
