package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/inkpost/inkpost/internal/auth"
	"github.com/inkpost/inkpost/internal/cache"
	"github.com/inkpost/inkpost/internal/metrics"
	"github.com/inkpost/inkpost/internal/model"
	"github.com/inkpost/inkpost/internal/notify"
	"github.com/inkpost/inkpost/internal/repository"
)

// Defaults used when AuthConfig leaves a duration unset.
const (
	DefaultRegistrationTTL = 30 * time.Minute
	DefaultSessionTTL      = 30 * 24 * time.Hour

	maxTokenCollisions = 3
)

// AuthConfig wires the AuthService.
type AuthConfig struct {
	Users    UserStore
	Sessions SessionStore
	Cache    SessionCache
	Pending  PendingRegistrations
	Sender   notify.Sender
	Logger   *slog.Logger
	Metrics  metrics.Recorder

	RegistrationTTL time.Duration
	SessionTTL      time.Duration

	// Now overrides the clock in tests.
	Now func() time.Time
}

// AuthService handles registration, sessions and the caller's own account.
type AuthService struct {
	users           UserStore
	sessions        SessionStore
	cache           SessionCache
	pending         PendingRegistrations
	sender          notify.Sender
	logger          *slog.Logger
	metrics         metrics.Recorder
	registrationTTL time.Duration
	sessionTTL      time.Duration
	now             func() time.Time
}

// NewAuthService creates an AuthService.
func NewAuthService(cfg AuthConfig) *AuthService {
	s := &AuthService{
		users:           cfg.Users,
		sessions:        cfg.Sessions,
		cache:           cfg.Cache,
		pending:         cfg.Pending,
		sender:          cfg.Sender,
		logger:          cfg.Logger,
		metrics:         cfg.Metrics,
		registrationTTL: cfg.RegistrationTTL,
		sessionTTL:      cfg.SessionTTL,
		now:             cfg.Now,
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.logger = s.logger.With("component", "service.auth")
	if s.metrics == nil {
		s.metrics = metrics.NewNoop()
	}
	if s.registrationTTL <= 0 {
		s.registrationTTL = DefaultRegistrationTTL
	}
	if s.sessionTTL <= 0 {
		s.sessionTTL = DefaultSessionTTL
	}
	if s.now == nil {
		s.now = utcNow
	}
	return s
}

// PreRegister emails a single-use registration token to an address that
// has no account yet.
func (s *AuthService) PreRegister(ctx context.Context, in PreRegisterInput) error {
	if err := in.Validate(); err != nil {
		return err
	}
	email := normalizeEmail(in.Email)

	_, err := s.users.GetUserByEmail(ctx, email)
	switch {
	case err == nil:
		return &ValidationError{Fields: []FieldError{{Field: "email", Message: "The email has already been taken."}}}
	case !errors.Is(err, repository.ErrUserNotFound):
		return fmt.Errorf("check email: %w", err)
	}

	pending, err := s.storePending(ctx, email)
	if err != nil {
		return err
	}
	s.metrics.IncRegistrationRequested()

	s.logger.InfoContext(ctx, "registration_requested",
		"token_hash", auth.ShortHash(auth.HashToken(pending.Token)),
		"expires_at", pending.ExpiresAt,
	)

	// Delivery failures never undo the cache write; the caller can ask again.
	msg := notify.Message{
		To:      email,
		Subject: "Complete your registration",
		Body: fmt.Sprintf("Your registration token: %s\n\nIt expires in %d minutes.",
			pending.Token, int(s.registrationTTL.Minutes())),
	}
	if err := s.sender.Send(ctx, msg); err != nil {
		s.metrics.IncNotification(metrics.NotificationFailed)
		s.logger.WarnContext(ctx, "registration_mail_failed", "error", err)
		return nil
	}
	s.metrics.IncNotification(metrics.NotificationQueued)
	return nil
}

func (s *AuthService) storePending(ctx context.Context, email string) (*model.PendingRegistration, error) {
	for i := 0; i < maxTokenCollisions; i++ {
		token, err := auth.NewRegistrationToken(model.RegistrationTokenLength)
		if err != nil {
			return nil, err
		}
		p := &model.PendingRegistration{
			Token:     token,
			Email:     email,
			ExpiresAt: s.now().Add(s.registrationTTL),
		}
		err = s.pending.PutRegistration(ctx, p)
		if err == nil {
			return p, nil
		}
		if !errors.Is(err, cache.ErrTokenExists) {
			return nil, fmt.Errorf("store registration: %w", err)
		}
	}
	return nil, errors.New("failed to generate unique registration token after retries")
}

// VerifyRegistration redeems a registration token and creates the account.
// The token is consumed atomically; a second redemption fails with ErrInvalidToken.
func (s *AuthService) VerifyRegistration(ctx context.Context, in VerifyRegistrationInput) (*model.User, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	pending, err := s.pending.TakeRegistration(ctx, in.Token)
	if err != nil {
		if errors.Is(err, cache.ErrTokenNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, fmt.Errorf("take registration: %w", err)
	}

	user, err := s.createUser(ctx, pending.Email, in.Name, in.Password)
	if err != nil {
		if !errors.Is(err, ErrConflict) {
			// The token was valid; give it back so an outage does not burn it.
			if rerr := s.pending.RestoreRegistration(ctx, pending); rerr != nil {
				s.logger.ErrorContext(ctx, "registration_restore_failed", "error", rerr)
			}
		}
		return nil, err
	}

	s.metrics.IncRegistrationCompleted()
	s.logger.InfoContext(ctx, "user_registered", "user_id", user.ID)
	return user, nil
}

func (s *AuthService) createUser(ctx context.Context, email, name, password string) (*model.User, error) {
	_, err := s.users.GetUserByEmail(ctx, email)
	switch {
	case err == nil:
		return nil, ErrEmailTaken
	case !errors.Is(err, repository.ErrUserNotFound):
		return nil, fmt.Errorf("check email: %w", err)
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, err
	}

	now := s.now()
	user := &model.User{
		ID:           newID(),
		Name:         strings.TrimSpace(name),
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

// LoginResult is a freshly issued bearer token and its owner.
type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	User      *model.User
}

// Login checks credentials and opens a new session. Existing sessions of
// the user stay valid. Unknown email and wrong password are indistinguishable.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (*LoginResult, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	user, err := s.users.GetUserByEmail(ctx, normalizeEmail(in.Email))
	if err != nil {
		if !errors.Is(err, repository.ErrUserNotFound) {
			return nil, fmt.Errorf("find user: %w", err)
		}
		auth.BurnPasswordCheck(in.Password)
		s.metrics.IncLogin(false)
		return nil, ErrAuthentication
	}

	ok, err := auth.VerifyPassword(in.Password, user.PasswordHash)
	if err != nil {
		s.logger.ErrorContext(ctx, "password_hash_unreadable", "user_id", user.ID, "error", err)
	}
	if !ok {
		s.metrics.IncLogin(false)
		s.logger.InfoContext(ctx, "login_failed", "user_id", user.ID)
		return nil, ErrAuthentication
	}

	token, err := auth.NewSessionToken()
	if err != nil {
		return nil, err
	}
	now := s.now()
	session := &model.Session{
		ID:        newID(),
		UserID:    user.ID,
		TokenHash: token.Hash,
		CreatedAt: now,
		ExpiresAt: now.Add(s.sessionTTL),
	}
	if err := s.sessions.CreateSession(ctx, session); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	s.metrics.IncLogin(true)
	s.logger.InfoContext(ctx, "login_succeeded",
		"user_id", user.ID,
		"session_id", session.ID,
		"token_hash", auth.ShortHash(token.Hash),
	)
	return &LoginResult{Token: token.Plaintext, ExpiresAt: session.ExpiresAt, User: user}, nil
}

// Logout revokes only the session the caller authenticated with.
func (s *AuthService) Logout(ctx context.Context, id model.Identity) error {
	if id.IsZero() || id.SessionID == "" {
		return ErrUnauthenticated
	}

	if err := s.sessions.DeleteSession(ctx, id.SessionID); err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return ErrUnauthenticated
		}
		return fmt.Errorf("delete session: %w", err)
	}
	if id.TokenHash != "" {
		if err := s.cache.RevokeSessions(ctx, id.TokenHash); err != nil {
			s.logger.WarnContext(ctx, "session_cache_evict_failed", "session_id", id.SessionID, "error", err)
		}
	}

	s.metrics.IncLogout()
	s.logger.InfoContext(ctx, "logout", "user_id", id.UserID, "session_id", id.SessionID)
	return nil
}

// GetProfile returns the caller's account.
func (s *AuthService) GetProfile(ctx context.Context, id model.Identity) (*model.User, error) {
	if id.IsZero() {
		return nil, ErrUnauthenticated
	}
	user, err := s.users.GetUserByID(ctx, id.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUnauthenticated
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

// UpdateProfile applies a partial update to the caller's account.
// Changing the password leaves the caller's other sessions active.
func (s *AuthService) UpdateProfile(ctx context.Context, id model.Identity, in UpdateProfileInput) (*model.User, error) {
	if id.IsZero() {
		return nil, ErrUnauthenticated
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}

	user, err := s.GetProfile(ctx, id)
	if err != nil {
		return nil, err
	}

	var changed []string
	if in.Name != nil {
		user.Name = strings.TrimSpace(*in.Name)
		changed = append(changed, "name")
	}
	if in.Password != nil {
		hash, err := auth.HashPassword(*in.Password)
		if err != nil {
			return nil, err
		}
		user.PasswordHash = hash
		changed = append(changed, "password")
	}
	if len(changed) == 0 {
		return user, nil
	}

	user.UpdatedAt = s.now()
	if err := s.users.UpdateUser(ctx, user); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUnauthenticated
		}
		return nil, fmt.Errorf("update user: %w", err)
	}

	s.logger.InfoContext(ctx, "user_updated", "user_id", user.ID, "fields", changed)
	return user, nil
}

// DeleteAccount removes the caller. Sessions, articles and comments go
// with the user row.
func (s *AuthService) DeleteAccount(ctx context.Context, id model.Identity) error {
	if id.IsZero() {
		return ErrUnauthenticated
	}

	hashes, err := s.sessions.ListSessionTokenHashes(ctx, id.UserID)
	if err != nil {
		return fmt.Errorf("list sessions: %w", err)
	}

	if err := s.users.DeleteUser(ctx, id.UserID); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return ErrUnauthenticated
		}
		return fmt.Errorf("delete user: %w", err)
	}

	if err := s.cache.RevokeSessions(ctx, hashes...); err != nil {
		s.logger.WarnContext(ctx, "session_cache_evict_failed", "user_id", id.UserID, "error", err)
	}

	s.metrics.IncAccountDeleted()
	s.logger.InfoContext(ctx, "user_deleted", "user_id", id.UserID, "sessions_revoked", len(hashes))
	return nil
}
