package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/inkpost/inkpost/internal/model"
)

const (
	sessionPrefix = "auth:session:"
	revokedPrefix = "auth:revoked:"
	// sessionCacheTTL bounds how long a revoked token could linger if a
	// cache delete were lost. Revocation markers live as long, which covers
	// any lookup that started before the revocation.
	sessionCacheTTL = 5 * time.Minute
)

// setSessionScript writes a cached lookup unless the digest was revoked.
var setSessionScript = redis.NewScript(`
	if redis.call('EXISTS', KEYS[2]) == 1 then
		return 0
	end
	redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[2])
	return 1
`)

type cachedSession struct {
	SessionID string    `json:"sid"`
	UserID    string    `json:"uid"`
	ExpiresAt time.Time `json:"exp"`
}

// GetSession returns the cached session for a token digest.
// A miss, a revoked digest, a corrupt entry or an expired session all
// return nil without error.
func (c *Cache) GetSession(ctx context.Context, tokenHash string) (*model.Session, error) {
	vals, err := c.client.MGet(ctx, sessionPrefix+tokenHash, revokedPrefix+tokenHash).Result()
	if err != nil {
		return nil, fmt.Errorf("get cached session: %w", err)
	}
	if vals[1] != nil {
		return nil, nil
	}
	data, ok := vals[0].(string)
	if !ok {
		return nil, nil
	}

	var cached cachedSession
	if err := json.Unmarshal([]byte(data), &cached); err != nil {
		return nil, nil //nolint:nilerr
	}

	s := &model.Session{ID: cached.SessionID, UserID: cached.UserID, TokenHash: tokenHash, ExpiresAt: cached.ExpiresAt}
	if s.IsExpired(c.now()) {
		return nil, nil
	}
	return s, nil
}

// SetSession caches a session lookup. The entry never outlives the session,
// and nothing is written for a revoked digest.
func (c *Cache) SetSession(ctx context.Context, s *model.Session) error {
	ttl := sessionCacheTTL
	if remaining := s.ExpiresAt.Sub(c.now()); remaining < ttl {
		ttl = remaining
	}
	if ttl <= 0 {
		return nil
	}

	data, err := json.Marshal(cachedSession{SessionID: s.ID, UserID: s.UserID, ExpiresAt: s.ExpiresAt})
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	keys := []string{sessionPrefix + s.TokenHash, revokedPrefix + s.TokenHash}
	if err := setSessionScript.Run(ctx, c.client, keys, data, ttl.Milliseconds()).Err(); err != nil {
		return fmt.Errorf("set cached session: %w", err)
	}
	return nil
}

// RevokeSessions drops cached lookups for the given token digests and marks
// them revoked so a lookup already in flight cannot cache them again.
func (c *Cache) RevokeSessions(ctx context.Context, tokenHashes ...string) error {
	if len(tokenHashes) == 0 {
		return nil
	}
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, h := range tokenHashes {
			pipe.Del(ctx, sessionPrefix+h)
			pipe.Set(ctx, revokedPrefix+h, 1, sessionCacheTTL)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("revoke cached sessions: %w", err)
	}
	return nil
}
