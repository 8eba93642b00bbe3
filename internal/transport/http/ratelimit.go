package http

import (
	"sync"
	"time"
)

const rateWindow = time.Minute

// commandLimiter caps the signaling commands one connection may submit per
// fixed one-minute window. Frames that never become commands are not counted.
type commandLimiter struct {
	mu          sync.Mutex
	limit       int
	used        int
	windowStart time.Time
	now         func() time.Time
}

func newCommandLimiter(limit int) *commandLimiter {
	return &commandLimiter{limit: limit, now: time.Now}
}

// allow records one command and reports whether it fits the current window.
func (l *commandLimiter) allow() bool {
	if l == nil || l.limit <= 0 {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if l.windowStart.IsZero() || now.Sub(l.windowStart) >= rateWindow {
		l.windowStart = now
		l.used = 0
	}
	if l.used >= l.limit {
		return false
	}
	l.used++
	return true
}
