package auth

import (
	"fmt"
	"strings"
)

// Identity is the resolved principal attached to a request. It is built once
// per request by Resolve and never mutated afterwards.
type Identity struct {
	ID       string
	Email    string
	FullName string
	Roles    []string
	Scopes   []string
	Active   bool
}

// HasRole reports whether the identity carries the role (case-insensitive).
func (id Identity) HasRole(role string) bool {
	role = strings.TrimSpace(strings.ToLower(role))
	if role == "" {
		return false
	}
	for _, r := range id.Roles {
		if strings.EqualFold(r, role) {
			return true
		}
	}
	return false
}

// HasScope reports whether the identity carries the scope.
func (id Identity) HasScope(scope string) bool {
	scope = strings.TrimSpace(scope)
	if scope == "" {
		return false
	}
	for _, s := range id.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// RequireRole rejects identities lacking the role. The returned error names
// the requirement so clients can diagnose, and matches ErrInsufficientRole.
func RequireRole(id Identity, role string) error {
	if !id.HasRole(role) {
		return fmt.Errorf("%w: %s", ErrInsufficientRole, role)
	}
	return nil
}

// RequireScope rejects identities lacking the scope.
func RequireScope(id Identity, scope string) error {
	if !id.HasScope(scope) {
		return fmt.Errorf("%w: %s", ErrInsufficientScope, scope)
	}
	return nil
}

func dedupe(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(values))
	var out []string
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
