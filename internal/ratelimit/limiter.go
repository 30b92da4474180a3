package ratelimit

import (
	"sync"
	"time"
)

// Decision is the outcome of a single admission check.
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetAt    time.Time
	RetryAfter time.Duration
}

// Limiter admits at most max requests per client within a sliding window.
// Rejected requests do not consume budget, so a client hammering a full
// window is admitted again as soon as the oldest admitted request ages out.
type Limiter struct {
	window time.Duration
	max    int
	now    func() time.Time

	mu      sync.Mutex
	clients map[string]*clientWindow

	stopOnce sync.Once
	stop     chan struct{}
}

type clientWindow struct {
	admitted []time.Time
	lastSeen time.Time
}

// Option configures Limiter behavior.
type Option func(*Limiter)

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) Option {
	return func(l *Limiter) {
		if fn != nil {
			l.now = fn
		}
	}
}

// New constructs a Limiter and starts its idle-client sweeper.
func New(window time.Duration, max int, opts ...Option) *Limiter {
	if window <= 0 {
		window = time.Minute
	}
	if max <= 0 {
		max = 100
	}
	l := &Limiter{
		window:  window,
		max:     max,
		now:     time.Now,
		clients: make(map[string]*clientWindow),
		stop:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}
	go l.sweep()
	return l
}

// Check performs one atomic prune-count-append step for clientID.
func (l *Limiter) Check(clientID string) Decision {
	now := l.now()
	cutoff := now.Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	cw, ok := l.clients[clientID]
	if !ok {
		cw = &clientWindow{}
		l.clients[clientID] = cw
	}
	cw.lastSeen = now

	// Lazy prune: drop admissions that fell out of the window.
	kept := cw.admitted[:0]
	for _, t := range cw.admitted {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	cw.admitted = kept

	if len(cw.admitted) >= l.max {
		oldest := cw.admitted[0]
		retry := oldest.Add(l.window).Sub(now)
		if retry < 0 {
			retry = 0
		}
		return Decision{
			Allowed:    false,
			Limit:      l.max,
			Remaining:  0,
			ResetAt:    oldest.Add(l.window),
			RetryAfter: retry,
		}
	}

	cw.admitted = append(cw.admitted, now)
	resetAt := cw.admitted[0].Add(l.window)
	return Decision{
		Allowed:   true,
		Limit:     l.max,
		Remaining: l.max - len(cw.admitted),
		ResetAt:   resetAt,
	}
}

// Close stops the background sweeper.
func (l *Limiter) Close() {
	l.stopOnce.Do(func() { close(l.stop) })
}

// sweep evicts clients that have been idle for a full window, bounding
// memory by the number of recently active clients.
func (l *Limiter) sweep() {
	ticker := time.NewTicker(l.window)
	defer ticker.Stop()
	for {
		select {
		case <-l.stop:
			return
		case <-ticker.C:
			cutoff := l.now().Add(-2 * l.window)
			l.mu.Lock()
			for id, cw := range l.clients {
				if cw.lastSeen.Before(cutoff) {
					delete(l.clients, id)
				}
			}
			l.mu.Unlock()
		}
	}
}
