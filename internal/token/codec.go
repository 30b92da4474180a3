package token

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const issuer = "sentra"

// Kind separates access tokens from refresh tokens. A token is only valid
// for the use its kind names.
type Kind string

const (
	KindAccess  Kind = "access"
	KindRefresh Kind = "refresh"
)

// Verification failures. Callers distinguish these because clients react
// differently: an expired access token should trigger a refresh, a revoked
// or malformed one a re-login.
var (
	ErrMalformed    = errors.New("token: malformed")
	ErrBadSignature = errors.New("token: bad signature")
	ErrExpired      = errors.New("token: expired")
	ErrWrongKind    = errors.New("token: wrong kind")
)

// Claims carried by every issued token.
type Claims struct {
	Scopes []string `json:"scopes,omitempty"`
	Kind   Kind     `json:"kind"`
	jwt.RegisteredClaims
}

// Codec signs and verifies tokens with a process-wide HS256 secret.
type Codec struct {
	secret []byte
	now    func() time.Time
}

// Option configures Codec behavior.
type Option func(*Codec)

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) Option {
	return func(c *Codec) {
		if fn != nil {
			c.now = fn
		}
	}
}

// NewCodec constructs a Codec for the given signing secret.
func NewCodec(secret string, opts ...Option) (*Codec, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, errors.New("token: signing secret is required")
	}
	c := &Codec{
		secret: []byte(secret),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Issue signs a token for subject with the given scopes, kind and lifetime.
// The returned claims include the generated JTI, usable as the token's
// opaque identifier for revocation.
func (c *Codec) Issue(subject string, scopes []string, kind Kind, ttl time.Duration) (string, *Claims, error) {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return "", nil, errors.New("token: subject is required")
	}
	if kind != KindAccess && kind != KindRefresh {
		return "", nil, fmt.Errorf("token: unsupported kind %q", kind)
	}
	if ttl <= 0 {
		return "", nil, errors.New("token: ttl must be greater than zero")
	}

	now := c.now().UTC()
	claims := &Claims{
		Scopes: scopes,
		Kind:   kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", nil, fmt.Errorf("token: sign: %w", err)
	}
	return signed, claims, nil
}

// Verify parses and validates raw, requiring the expected kind. All failures
// on attacker-controlled input come back as one of the package sentinel
// errors, never a panic.
func (c *Codec) Verify(raw string, kind Kind) (*Claims, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ErrMalformed
	}

	parsed, err := jwt.ParseWithClaims(raw, &Claims{}, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, ErrBadSignature
		}
		return c.secret, nil
	}, jwt.WithTimeFunc(c.now), jwt.WithIssuer(issuer))
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrExpired
		case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, ErrBadSignature):
			return nil, ErrBadSignature
		default:
			return nil, ErrMalformed
		}
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrMalformed
	}
	if strings.TrimSpace(claims.Subject) == "" || claims.ExpiresAt == nil || claims.IssuedAt == nil {
		return nil, ErrMalformed
	}
	if claims.ExpiresAt.Time.Before(claims.IssuedAt.Time) {
		return nil, ErrMalformed
	}
	if claims.Kind != kind {
		return nil, ErrWrongKind
	}
	return claims, nil
}
