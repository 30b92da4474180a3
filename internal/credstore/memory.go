package credstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"sentra.org/internal/ids"
)

var _ Store = (*Memory)(nil)

// Memory implements Store with in-process maps. It is the default backend
// and the one used throughout the tests.
type Memory struct {
	mu      sync.RWMutex
	users   map[string]*User // keyed by ID
	byEmail map[string]string
	keys    map[string]*APIKey
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		users:   make(map[string]*User),
		byEmail: make(map[string]string),
		keys:    make(map[string]*APIKey),
	}
}

func (m *Memory) FindByEmail(ctx context.Context, email string) (*User, error) {
	email = normalizeEmail(email)
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byEmail[email]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneUser(m.users[id]), nil
}

func (m *Memory) FindByID(ctx context.Context, id string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneUser(u), nil
}

func (m *Memory) CreateUser(ctx context.Context, u *User) error {
	if u.ID == "" {
		u.ID = ids.New()
	}
	u.Email = normalizeEmail(u.Email)
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byEmail[u.Email]; ok {
		return ErrAlreadyExists
	}
	if _, ok := m.users[u.ID]; ok {
		return ErrAlreadyExists
	}
	m.users[u.ID] = cloneUser(u)
	m.byEmail[u.Email] = u.ID
	return nil
}

func (m *Memory) RecordLogin(ctx context.Context, userID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return ErrNotFound
	}
	at = at.UTC()
	u.LastLogin = &at
	return nil
}

func (m *Memory) FindAPIKey(ctx context.Context, key string) (*APIKey, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	k, ok := m.keys[key]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneKey(k), nil
}

func (m *Memory) CreateAPIKey(ctx context.Context, k *APIKey) error {
	if k.Key == "" {
		k.Key = ids.NewAPIKey()
	}
	if k.CreatedAt.IsZero() {
		k.CreatedAt = time.Now().UTC()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.keys[k.Key]; ok {
		return ErrAlreadyExists
	}
	m.keys[k.Key] = cloneKey(k)
	return nil
}

func (m *Memory) RevokeAPIKey(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k, ok := m.keys[key]
	if !ok {
		return ErrNotFound
	}
	k.Active = false
	return nil
}

func (m *Memory) ListAPIKeys(ctx context.Context, ownerID string) ([]*APIKey, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*APIKey
	for _, k := range m.keys {
		if ownerID == "" || k.OwnerID == ownerID {
			out = append(out, cloneKey(k))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func normalizeEmail(email string) string {
	return strings.TrimSpace(strings.ToLower(email))
}

func cloneUser(u *User) *User {
	if u == nil {
		return nil
	}
	cp := *u
	cp.Roles = append([]string(nil), u.Roles...)
	cp.Scopes = append([]string(nil), u.Scopes...)
	if u.LastLogin != nil {
		t := *u.LastLogin
		cp.LastLogin = &t
	}
	return &cp
}

func cloneKey(k *APIKey) *APIKey {
	if k == nil {
		return nil
	}
	cp := *k
	cp.Scopes = append([]string(nil), k.Scopes...)
	if k.ExpiresAt != nil {
		t := *k.ExpiresAt
		cp.ExpiresAt = &t
	}
	return &cp
}
