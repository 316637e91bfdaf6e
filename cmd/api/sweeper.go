package main

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

type expiredSessionDeleter interface {
	DeleteExpiredSessions(ctx context.Context) (int64, error)
}

// sessionSweeper periodically removes expired session rows. Expired rows
// are already rejected on lookup; this only keeps the table small.
type sessionSweeper struct {
	sessions expiredSessionDeleter
	interval time.Duration
	logger   *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func newSessionSweeper(sessions expiredSessionDeleter, interval time.Duration, logger *slog.Logger) *sessionSweeper {
	return &sessionSweeper{
		sessions: sessions,
		interval: interval,
		logger:   logger.With("component", "session_sweeper"),
	}
}

func (s *sessionSweeper) run(ctx context.Context) {
	s.mu.Lock()
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	done := s.done
	s.mu.Unlock()
	defer close(done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		s.sweep(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *sessionSweeper) sweep(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	n, err := s.sessions.DeleteExpiredSessions(ctx)
	if err != nil {
		if ctx.Err() == nil {
			s.logger.Warn("failed to delete expired sessions", "error", err)
		}
		return
	}
	if n > 0 {
		s.logger.Info("expired sessions deleted", "count", n)
	}
}

// stop cancels the loop and waits for an in-flight sweep.
func (s *sessionSweeper) stop(ctx context.Context) error {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.mu.Unlock()
	if cancel == nil {
		return nil
	}

	cancel()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
