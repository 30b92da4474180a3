package auth

import (
	"context"
	"errors"
	"testing"
)

func TestIdentityGrants(t *testing.T) {
	id := Identity{
		ID:     "u1",
		Roles:  []string{"Admin", "user"},
		Scopes: []string{"read", "write"},
	}

	if !id.HasRole("admin") || !id.HasRole("ADMIN") {
		t.Fatal("role match must ignore case")
	}
	if id.HasRole("auditor") {
		t.Fatal("unexpected role match")
	}
	if !id.HasScope("read") {
		t.Fatal("expected scope match")
	}
	if id.HasScope("READ") {
		t.Fatal("scope match must be exact")
	}

	if err := RequireRole(id, "admin"); err != nil {
		t.Fatalf("RequireRole: %v", err)
	}
	if err := RequireRole(id, "auditor"); !errors.Is(err, ErrInsufficientRole) {
		t.Fatalf("expected ErrInsufficientRole, got %v", err)
	}
	if err := RequireScope(id, "write"); err != nil {
		t.Fatalf("RequireScope: %v", err)
	}
	if err := RequireScope(id, "admin"); !errors.Is(err, ErrInsufficientScope) {
		t.Fatalf("expected ErrInsufficientScope, got %v", err)
	}
}

func TestIdentityContext(t *testing.T) {
	base := context.Background()

	if _, ok := IdentityFromContext(base); ok {
		t.Fatal("empty context must not carry an identity")
	}

	want := Identity{ID: "u1", Email: "a@example.com"}
	ctx := ContextWithIdentity(base, want)
	got, ok := IdentityFromContext(ctx)
	if !ok || got.ID != want.ID {
		t.Fatalf("identity not round-tripped: %+v ok=%v", got, ok)
	}

	ctx = ContextWithToken(ctx, "raw-token")
	raw, ok := TokenFromContext(ctx)
	if !ok || raw != "raw-token" {
		t.Fatalf("token not round-tripped: %q ok=%v", raw, ok)
	}
	if _, ok := TokenFromContext(base); ok {
		t.Fatal("empty context must not carry a token")
	}
}
