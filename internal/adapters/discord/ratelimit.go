package discord

import (
	"sync"
	"time"

	"github.com/juju/clock"
)

type userLimiter struct {
	mu    sync.Mutex
	next  map[string]time.Time
	win   time.Duration
	clock clock.Clock
}

func newUserLimiter(window time.Duration, clk clock.Clock) *userLimiter {
	if clk == nil {
		clk = clock.WallClock
	}
	return &userLimiter{next: map[string]time.Time{}, win: window, clock: clk}
}

func (l *userLimiter) Allow(userID string) bool {
	now := l.clock.Now()
	l.mu.Lock()
	defer l.mu.Unlock()
	if until, ok := l.next[userID]; ok && now.Before(until) {
		return false
	}
	l.next[userID] = now.Add(l.win)
	return true
}
