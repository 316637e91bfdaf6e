package service

import (
	"context"
	"regexp"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/inkpost/inkpost/internal/metrics"
	"github.com/inkpost/inkpost/internal/model"
)

type testEnv struct {
	db       *memDB
	pending  *memPending
	sessions *memSessionCache
	outbox   *outbox
	clock    *fakeClock
	metrics  *metrics.InMemoryRecorder

	auth     *AuthService
	articles *ArticleService
	comments *CommentService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		db:       newMemDB(),
		sessions: &memSessionCache{},
		outbox:   &outbox{},
		clock:    newFakeClock(),
		metrics:  metrics.NewInMemory(),
	}
	env.pending = newMemPending(env.clock.Now)
	env.auth = NewAuthService(AuthConfig{
		Users:    env.db,
		Sessions: env.db,
		Cache:    env.sessions,
		Pending:  env.pending,
		Sender:   env.outbox,
		Logger:   discardLogger(),
		Metrics:  env.metrics,
		Now:      env.clock.Now,
	})
	env.articles = NewArticleService(env.db, env.db, discardLogger(), env.metrics)
	env.comments = NewCommentService(env.db, env.db, env.db, discardLogger(), env.metrics)
	return env
}

var mailedToken = regexp.MustCompile(`token: ([A-Za-z0-9]+)`)

// preRegister runs PreRegister and returns the token from the sent mail.
func (e *testEnv) preRegister(t *testing.T, email string) string {
	t.Helper()
	require.NoError(t, e.auth.PreRegister(context.Background(), PreRegisterInput{Email: email}))
	m := mailedToken.FindStringSubmatch(e.outbox.last().Body)
	require.Len(t, m, 2, "mail body should carry the token")
	return m[1]
}

// register creates an account and returns it.
func (e *testEnv) register(t *testing.T, email, name string) *model.User {
	t.Helper()
	token := e.preRegister(t, email)
	user, err := e.auth.VerifyRegistration(context.Background(), VerifyRegistrationInput{
		Token:                token,
		Name:                 name,
		Password:             "pw123456",
		PasswordConfirmation: "pw123456",
	})
	require.NoError(t, err)
	return user
}

// login returns the identity the auth middleware would build for a new session.
func (e *testEnv) login(t *testing.T, email string) (model.Identity, *LoginResult) {
	t.Helper()
	res, err := e.auth.Login(context.Background(), LoginInput{Email: email, Password: "pw123456"})
	require.NoError(t, err)

	for _, s := range e.db.sessionsOf(res.User.ID) {
		if matchesToken(res.Token, s.TokenHash) {
			return model.Identity{UserID: s.UserID, SessionID: s.ID, TokenHash: s.TokenHash}, res
		}
	}
	t.Fatal("login did not persist a session for the issued token")
	return model.Identity{}, nil
}

func identityOf(u *model.User) model.Identity {
	return model.Identity{UserID: u.ID, SessionID: "s-" + u.ID}
}
