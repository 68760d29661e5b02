package typing

import (
	"sync"
	"time"

	"go-typing/internal/clock"
)

// ThrottleConfig controls how often the local user's typing is broadcast.
type ThrottleConfig struct {
	Enabled bool
	// Interval is the minimum gap between two notifications for one scope.
	Interval time.Duration
	// MaxMembers suppresses notifications in scopes with this many members
	// or more. Zero disables the limit.
	MaxMembers int
}

// Throttle rate-limits outbound typing notifications for one user.
type Throttle struct {
	cfg   ThrottleConfig
	clock clock.Clock

	mu   sync.Mutex
	last map[ScopeKey]time.Time
}

func NewThrottle(cfg ThrottleConfig, c clock.Clock) *Throttle {
	if c == nil {
		c = clock.Real()
	}
	return &Throttle{
		cfg:   cfg,
		clock: c,
		last:  make(map[ScopeKey]time.Time),
	}
}

// Allow reports whether a typing notification for scope may be sent now,
// and records the send when it may.
func (t *Throttle) Allow(scope ScopeKey, members int) bool {
	if !t.cfg.Enabled {
		return false
	}
	if t.cfg.MaxMembers > 0 && members >= t.cfg.MaxMembers {
		return false
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.clock.Now()
	if last, ok := t.last[scope]; ok && now.Sub(last) <= t.cfg.Interval {
		return false
	}
	t.last[scope] = now

	for k, ts := range t.last {
		if now.Sub(ts) > t.cfg.Interval {
			delete(t.last, k)
		}
	}
	return true
}
