package credstore

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound      = errors.New("credstore: not found")
	ErrAlreadyExists = errors.New("credstore: already exists")
)

// User is the stored account record behind a resolved identity.
type User struct {
	ID           string
	Email        string
	FullName     string
	PasswordHash string
	Roles        []string
	Scopes       []string
	Active       bool
	CreatedAt    time.Time
	LastLogin    *time.Time
}

// APIKey is a long-lived credential owned by a user. Revocation flips
// Active; the key string itself never changes.
type APIKey struct {
	Key       string
	OwnerID   string
	Name      string
	Scopes    []string
	Active    bool
	CreatedAt time.Time
	ExpiresAt *time.Time
}

// Expired reports whether the key's optional expiry has passed.
func (k *APIKey) Expired(now time.Time) bool {
	return k.ExpiresAt != nil && !now.Before(*k.ExpiresAt)
}

// Store describes persistence operations required by the auth subsystem.
// Implementations must be safe for concurrent use.
type Store interface {
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByID(ctx context.Context, id string) (*User, error)
	CreateUser(ctx context.Context, u *User) error
	RecordLogin(ctx context.Context, userID string, at time.Time) error

	FindAPIKey(ctx context.Context, key string) (*APIKey, error)
	CreateAPIKey(ctx context.Context, k *APIKey) error
	RevokeAPIKey(ctx context.Context, key string) error
	ListAPIKeys(ctx context.Context, ownerID string) ([]*APIKey, error)
}
