package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/inkpost/inkpost/internal/model"
)

const registrationPrefix = "prereg:"

var (
	// ErrTokenNotFound means the registration token is unknown, expired or already used.
	ErrTokenNotFound = errors.New("registration token not found")
	// ErrTokenExists means a live entry already holds this token.
	ErrTokenExists = errors.New("registration token already exists")
)

type pendingEntry struct {
	Email     string    `json:"email"`
	ExpiresAt time.Time `json:"expires_at"`
}

// PutRegistration stores token -> email until p.ExpiresAt.
// An existing token is never overwritten.
func (c *Cache) PutRegistration(ctx context.Context, p *model.PendingRegistration) error {
	ttl := p.TTL(c.now())
	if ttl <= 0 {
		return fmt.Errorf("registration already expired at %s", p.ExpiresAt.Format(time.RFC3339))
	}

	data, err := json.Marshal(pendingEntry{Email: p.Email, ExpiresAt: p.ExpiresAt.UTC()})
	if err != nil {
		return fmt.Errorf("marshal registration: %w", err)
	}

	ok, err := c.client.SetNX(ctx, registrationPrefix+p.Token, data, ttl).Result()
	if err != nil {
		return fmt.Errorf("store registration: %w", err)
	}
	if !ok {
		return ErrTokenExists
	}
	return nil
}

// TakeRegistration atomically reads and deletes a token with GETDEL, so two
// concurrent verifications can never both redeem it.
func (c *Cache) TakeRegistration(ctx context.Context, token string) (*model.PendingRegistration, error) {
	data, err := c.client.GetDel(ctx, registrationPrefix+token).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrTokenNotFound
		}
		return nil, fmt.Errorf("take registration: %w", err)
	}

	var entry pendingEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("decode registration: %w", err)
	}

	p := &model.PendingRegistration{Token: token, Email: entry.Email, ExpiresAt: entry.ExpiresAt}
	// Key TTL and ExpiresAt agree, but a clock-skewed read must not extend a token's life.
	if p.TTL(c.now()) <= 0 {
		return nil, ErrTokenNotFound
	}
	return p, nil
}

// RestoreRegistration puts a taken token back for its remaining lifetime.
// Expired registrations are dropped silently.
func (c *Cache) RestoreRegistration(ctx context.Context, p *model.PendingRegistration) error {
	if p.TTL(c.now()) <= 0 {
		return nil
	}
	err := c.PutRegistration(ctx, p)
	if errors.Is(err, ErrTokenExists) {
		return nil
	}
	return err
}
