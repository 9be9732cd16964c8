package core

// scheduler.go discards idle sessions so abandoned uploads do not hold
// parsed files in memory. Sessions that are importing are never reaped.

import (
	"context"
	"log/slog"
	"time"
)

// DefaultReapInterval is how often idle sessions are checked.
const DefaultReapInterval = time.Minute

// StartSessionReaper removes sessions idle for longer than the configured
// TTL, checking every interval. It blocks until ctx is cancelled.
func (s *Service) StartSessionReaper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultReapInterval
	}

	slog.Info("session reaper started",
		"interval", interval,
		"idle_ttl", s.cfg.SessionIdleTTL,
	)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("session reaper stopped")
			return
		case now := <-ticker.C:
			if n := s.ReapIdle(now); n > 0 {
				slog.Info("reaped idle import sessions", "count", n, "remaining", s.SessionCount())
			}
		}
	}
}

// ReapIdle discards sessions not touched since now minus the idle TTL.
// Returns the number of sessions removed.
func (s *Service) ReapIdle(now time.Time) int {
	cutoff := now.Add(-s.cfg.SessionIdleTTL)

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, sess := range s.sessions {
		if !sess.idleSince().Before(cutoff) {
			continue
		}
		// close refuses sessions that are importing.
		if sess.close() {
			delete(s.sessions, id)
			removed++
		}
	}
	sessionsActive.Set(float64(len(s.sessions)))
	return removed
}
