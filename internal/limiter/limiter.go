package limiter

import (
	"sync"
	"time"
)

// Info is a diagnostic snapshot of one user's window.
type Info struct {
	UserID        int64
	RequestsMade  int
	RequestsLimit int
	Remaining     int
	Window        time.Duration
}

// window holds one user's recent request timestamps. Each window carries its
// own mutex so mutations for one user never block unrelated users.
type window struct {
	mu     sync.Mutex
	stamps []time.Time
}

// Limiter is an in-memory sliding-window admission controller keyed by user.
type Limiter struct {
	maxRequests int
	windowSize  time.Duration

	mu    sync.Mutex // guards users map only
	users map[int64]*window

	now func() time.Time
}

// New creates a limiter allowing maxRequests per user within windowSize.
func New(maxRequests int, windowSize time.Duration) *Limiter {
	if maxRequests <= 0 {
		maxRequests = 10
	}
	if windowSize <= 0 {
		windowSize = time.Minute
	}
	return &Limiter{
		maxRequests: maxRequests,
		windowSize:  windowSize,
		users:       make(map[int64]*window),
		now:         time.Now,
	}
}

func (l *Limiter) entry(userID int64) *window {
	l.mu.Lock()
	defer l.mu.Unlock()
	w, ok := l.users[userID]
	if !ok {
		w = &window{}
		l.users[userID] = w
	}
	return w
}

// prune drops timestamps older than the cutoff. Caller holds w.mu.
func prune(w *window, cutoff time.Time) {
	kept := w.stamps[:0]
	for _, ts := range w.stamps {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	w.stamps = kept
}

// Allow reports whether the user may make a request now, recording the
// request if admitted. A rejected request does not mutate the window.
func (l *Limiter) Allow(userID int64) bool {
	now := l.now()
	w := l.entry(userID)

	w.mu.Lock()
	defer w.mu.Unlock()
	prune(w, now.Add(-l.windowSize))
	if len(w.stamps) >= l.maxRequests {
		return false
	}
	w.stamps = append(w.stamps, now)
	return true
}

// Remaining returns how many requests the user has left in the current
// window. Never negative.
func (l *Limiter) Remaining(userID int64) int {
	now := l.now()
	w := l.entry(userID)

	w.mu.Lock()
	defer w.mu.Unlock()
	prune(w, now.Add(-l.windowSize))
	remaining := l.maxRequests - len(w.stamps)
	if remaining < 0 {
		remaining = 0
	}
	return remaining
}

// Info returns a diagnostic snapshot for the user.
func (l *Limiter) Info(userID int64) Info {
	now := l.now()
	w := l.entry(userID)

	w.mu.Lock()
	defer w.mu.Unlock()
	prune(w, now.Add(-l.windowSize))
	made := len(w.stamps)
	remaining := l.maxRequests - made
	if remaining < 0 {
		remaining = 0
	}
	return Info{
		UserID:        userID,
		RequestsMade:  made,
		RequestsLimit: l.maxRequests,
		Remaining:     remaining,
		Window:        l.windowSize,
	}
}

// Cleanup removes users whose window has fully expired. Intended to be
// called periodically so memory stays bounded under user churn.
func (l *Limiter) Cleanup() {
	cutoff := l.now().Add(-l.windowSize)

	l.mu.Lock()
	defer l.mu.Unlock()
	for userID, w := range l.users {
		w.mu.Lock()
		prune(w, cutoff)
		empty := len(w.stamps) == 0
		w.mu.Unlock()
		if empty {
			delete(l.users, userID)
		}
	}
}
