package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/inkpost/inkpost/internal/auth"
	"github.com/inkpost/inkpost/internal/model"
	"github.com/inkpost/inkpost/internal/repository"
)

// touchTimeout bounds the background last_used_at update.
const touchTimeout = 5 * time.Second

// SessionLookup finds live sessions by token digest. *repository.Repository implements it.
type SessionLookup interface {
	GetSessionByTokenHash(ctx context.Context, tokenHash string) (*model.Session, error)
	TouchSession(ctx context.Context, id string, at time.Time) error
}

// SessionCache is the short-lived read-through cache in front of SessionLookup.
// SetSession must not store a digest that has been revoked.
type SessionCache interface {
	GetSession(ctx context.Context, tokenHash string) (*model.Session, error)
	SetSession(ctx context.Context, s *model.Session) error
}

// AuthConfig holds the dependencies of the auth middleware.
type AuthConfig struct {
	Logger   *slog.Logger
	Sessions SessionLookup
	Cache    SessionCache
}

// Auth requires a valid bearer session token and injects the caller's
// model.Identity into the request context. Every failure gets the same 401.
func Auth(cfg AuthConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			token := bearerToken(r)
			if token == "" {
				rejectAuth(w, r, cfg.Logger, "missing_token")
				return
			}
			if err := auth.ValidateSessionToken(token); err != nil {
				rejectAuth(w, r, cfg.Logger, "invalid_format")
				return
			}
			tokenHash := auth.HashToken(token)

			session, err := cfg.Cache.GetSession(ctx, tokenHash)
			if err != nil {
				cfg.Logger.Warn("session cache read failed",
					slog.String("error", err.Error()),
					slog.String("request_id", GetRequestID(ctx)),
				)
			}
			cacheHit := session != nil

			if !cacheHit {
				session, err = cfg.Sessions.GetSessionByTokenHash(ctx, tokenHash)
				if err != nil {
					if errors.Is(err, repository.ErrSessionNotFound) {
						rejectAuth(w, r, cfg.Logger, "unknown_token")
						return
					}
					cfg.Logger.Error("session lookup failed",
						slog.String("error", err.Error()),
						slog.String("request_id", GetRequestID(ctx)),
					)
					rejectAuth(w, r, cfg.Logger, "lookup_error")
					return
				}
				if err := cfg.Cache.SetSession(ctx, session); err != nil {
					cfg.Logger.Warn("session cache write failed", slog.String("error", err.Error()))
				}
				touchSession(ctx, cfg, session.ID)
			}

			setLoggedUser(ctx, session.UserID)
			cfg.Logger.Debug("authenticated",
				slog.String("user_id", session.UserID),
				slog.String("session_id", session.ID),
				slog.String("token_hash", auth.ShortHash(tokenHash)),
				slog.Bool("cache_hit", cacheHit),
				slog.String("request_id", GetRequestID(ctx)),
			)

			identity := model.Identity{UserID: session.UserID, SessionID: session.ID, TokenHash: tokenHash}
			next.ServeHTTP(w, r.WithContext(auth.ContextWithIdentity(ctx, identity)))
		})
	}
}

// touchSession records use in the background. It only runs on cache misses,
// so last_used_at has the resolution of the session cache TTL.
func touchSession(ctx context.Context, cfg AuthConfig, sessionID string) {
	at := time.Now().UTC()
	go func() {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), touchTimeout)
		defer cancel()
		if err := cfg.Sessions.TouchSession(ctx, sessionID, at); err != nil {
			cfg.Logger.Warn("session touch failed", slog.String("session_id", sessionID), slog.String("error", err.Error()))
		}
	}()
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

func rejectAuth(w http.ResponseWriter, r *http.Request, logger *slog.Logger, reason string) {
	logger.Info("authentication failed",
		slog.String("reason", reason),
		slog.String("endpoint", r.Method+" "+r.URL.Path),
		slog.String("request_id", GetRequestID(r.Context())),
	)
	w.Header().Set("WWW-Authenticate", `Bearer realm="inkpost"`)
	writeError(w, http.StatusUnauthorized, "UNAUTHENTICATED", "Unauthenticated.")
}
