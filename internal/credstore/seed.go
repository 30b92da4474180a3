package credstore

import (
	"context"
	"fmt"
)

type seedUser struct {
	email    string
	fullName string
	password string
	roles    []string
	scopes   []string
}

var seedUsers = []seedUser{
	{
		email:    "admin@example.com",
		fullName: "Admin User",
		password: "admin123",
		roles:    []string{"admin", "user"},
		scopes:   []string{"read", "write", "admin"},
	},
	{
		email:    "user@example.com",
		fullName: "Regular User",
		password: "user123",
		roles:    []string{"user"},
		scopes:   []string{"read", "write"},
	},
}

// Seed loads the demo accounts and API key into store. Intended for local
// runs and tests; production deployments provision their own records.
func Seed(ctx context.Context, store Store) error {
	var adminID string
	for _, su := range seedUsers {
		hash, err := HashPassword(su.password)
		if err != nil {
			return fmt.Errorf("credstore: seed %s: %w", su.email, err)
		}
		u := &User{
			Email:        su.email,
			FullName:     su.fullName,
			PasswordHash: hash,
			Roles:        su.roles,
			Scopes:       su.scopes,
			Active:       true,
		}
		if err := store.CreateUser(ctx, u); err != nil {
			return fmt.Errorf("credstore: seed %s: %w", su.email, err)
		}
		if su.email == "admin@example.com" {
			adminID = u.ID
		}
	}
	return store.CreateAPIKey(ctx, &APIKey{
		Key:     "api_key_123",
		OwnerID: adminID,
		Name:    "demo key",
		Scopes:  []string{"read"},
		Active:  true,
	})
}
