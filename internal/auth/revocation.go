package auth

import (
	"sync"
	"time"
)

// revocationList tracks revoked token identifiers until the underlying token
// would have expired anyway. Entries are pruned on every access, so the list
// is bounded by the number of outstanding unexpired tokens.
type revocationList struct {
	mu      sync.Mutex
	entries map[string]time.Time // jti -> token expiry
}

func newRevocationList() *revocationList {
	return &revocationList{entries: make(map[string]time.Time)}
}

func (l *revocationList) add(jti string, expiresAt, now time.Time) {
	if jti == "" || !expiresAt.After(now) {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.prune(now)
	l.entries[jti] = expiresAt
}

func (l *revocationList) contains(jti string, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.prune(now)
	_, ok := l.entries[jti]
	return ok
}

func (l *revocationList) len(now time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.prune(now)
	return len(l.entries)
}

// prune drops entries whose token has expired. Caller holds the lock.
func (l *revocationList) prune(now time.Time) {
	for jti, exp := range l.entries {
		if !exp.After(now) {
			delete(l.entries, jti)
		}
	}
}
