package auth

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"sentra.org/internal/credstore"
	"sentra.org/internal/token"
)

const (
	defaultAccessTTL  = 30 * time.Minute
	defaultRefreshTTL = 7 * 24 * time.Hour
)

// Service authenticates credentials, issues token pairs and resolves
// presented tokens or API keys to an identity.
type Service struct {
	store credstore.Store
	codec *token.Codec
	now   func() time.Time

	accessTTL  time.Duration
	refreshTTL time.Duration

	revoked *revocationList

	loginRate  rate.Limit
	loginBurst int
	loginMu    sync.Mutex
	logins     map[string]*rate.Limiter
}

// TokenPair holds freshly issued access and refresh tokens.
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

// ServiceOption configures Service behavior.
type ServiceOption func(*Service) error

// WithAccessTTL configures access token lifetime.
func WithAccessTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) error {
		if ttl > 0 {
			s.accessTTL = ttl
		}
		return nil
	}
}

// WithRefreshTTL configures refresh token lifetime.
func WithRefreshTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) error {
		if ttl > 0 {
			s.refreshTTL = ttl
		}
		return nil
	}
}

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) ServiceOption {
	return func(s *Service) error {
		if fn != nil {
			s.now = fn
		}
		return nil
	}
}

// WithLoginThrottle configures the per-email credential attempt budget.
func WithLoginThrottle(perSecond float64, burst int) ServiceOption {
	return func(s *Service) error {
		if perSecond <= 0 || burst <= 0 {
			return errors.New("auth: login throttle rate and burst must be positive")
		}
		s.loginRate = rate.Limit(perSecond)
		s.loginBurst = burst
		return nil
	}
}

// NewService constructs a Service over the given store and token codec.
func NewService(store credstore.Store, codec *token.Codec, opts ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, errors.New("auth: store is required")
	}
	if codec == nil {
		return nil, errors.New("auth: token codec is required")
	}
	s := &Service{
		store:      store,
		codec:      codec,
		now:        time.Now,
		accessTTL:  defaultAccessTTL,
		refreshTTL: defaultRefreshTTL,
		revoked:    newRevocationList(),
		loginRate:  rate.Limit(1),
		loginBurst: 5,
		logins:     make(map[string]*rate.Limiter),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Login verifies the credential pair and issues a token pair scoped to the
// user's granted scopes. Unknown email, wrong password and inactive account
// all come back as ErrInvalidCredentials so callers cannot enumerate users.
func (s *Service) Login(ctx context.Context, email, password string) (TokenPair, Identity, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return TokenPair{}, Identity{}, ErrInvalidCredentials
	}
	if !s.allowLoginAttempt(email) {
		return TokenPair{}, Identity{}, ErrTooManyAttempts
	}

	user, err := s.store.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, credstore.ErrNotFound) {
			return TokenPair{}, Identity{}, ErrInvalidCredentials
		}
		return TokenPair{}, Identity{}, err
	}
	if !user.Active {
		return TokenPair{}, Identity{}, ErrInvalidCredentials
	}
	if err := credstore.VerifyPassword(user.PasswordHash, password); err != nil {
		return TokenPair{}, Identity{}, ErrInvalidCredentials
	}

	// Best effort; a failed timestamp update must not fail the login.
	_ = s.store.RecordLogin(ctx, user.ID, s.now())

	identity := identityFromUser(user, user.Scopes)
	pair, err := s.mintPair(user.ID, user.Scopes)
	if err != nil {
		return TokenPair{}, Identity{}, err
	}
	return pair, identity, nil
}

// Refresh rotates a refresh token: the presented token is revoked and a new
// pair is issued. A second use of the same refresh token fails with
// ErrTokenRevoked.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (TokenPair, Identity, error) {
	claims, err := s.verify(refreshToken, token.KindRefresh)
	if err != nil {
		return TokenPair{}, Identity{}, err
	}

	user, err := s.store.FindByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, credstore.ErrNotFound) {
			return TokenPair{}, Identity{}, ErrInvalidCredentials
		}
		return TokenPair{}, Identity{}, err
	}
	if !user.Active {
		return TokenPair{}, Identity{}, ErrInvalidCredentials
	}

	// Rotation happens before reissue so a crash between the two steps
	// leaves the old token dead rather than two live refresh tokens.
	s.revoked.add(claims.ID, claims.ExpiresAt.Time, s.now())

	identity := identityFromUser(user, user.Scopes)
	pair, err := s.mintPair(user.ID, user.Scopes)
	if err != nil {
		return TokenPair{}, Identity{}, err
	}
	return pair, identity, nil
}

// Resolve maps the presented credentials to an identity. Bearer tokens take
// precedence over API keys; the first successful match wins. With no
// credentials at all the result is ErrNoCredentials.
func (s *Service) Resolve(ctx context.Context, bearer, apiKey string) (Identity, error) {
	bearer = strings.TrimSpace(bearer)
	apiKey = strings.TrimSpace(apiKey)
	if bearer == "" && apiKey == "" {
		return Identity{}, ErrNoCredentials
	}

	var tokenErr error
	if bearer != "" {
		identity, err := s.resolveBearer(ctx, bearer)
		if err == nil {
			return identity, nil
		}
		tokenErr = err
	}
	if apiKey != "" {
		identity, err := s.resolveAPIKey(ctx, apiKey)
		if err == nil {
			return identity, nil
		}
		if tokenErr == nil {
			return Identity{}, err
		}
	}
	return Identity{}, tokenErr
}

// Logout revokes the presented access token until its natural expiry. An
// already-expired token is a no-op success.
func (s *Service) Logout(ctx context.Context, rawAccessToken string) error {
	claims, err := s.verify(rawAccessToken, token.KindAccess)
	if err != nil {
		if errors.Is(err, ErrTokenExpired) || errors.Is(err, ErrTokenRevoked) {
			return nil
		}
		return err
	}
	s.revoked.add(claims.ID, claims.ExpiresAt.Time, s.now())
	return nil
}

// RevokedCount reports the number of outstanding revoked token identifiers.
// Exposed for metrics.
func (s *Service) RevokedCount() int {
	return s.revoked.len(s.now())
}

func (s *Service) resolveBearer(ctx context.Context, raw string) (Identity, error) {
	claims, err := s.verify(raw, token.KindAccess)
	if err != nil {
		return Identity{}, err
	}
	user, err := s.store.FindByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, credstore.ErrNotFound) {
			return Identity{}, ErrInvalidCredentials
		}
		return Identity{}, err
	}
	if !user.Active {
		return Identity{}, ErrInvalidCredentials
	}
	// Scopes come from the token, not the user record, so a narrowly
	// scoped token stays narrow even if the user holds more.
	return identityFromUser(user, claims.Scopes), nil
}

func (s *Service) resolveAPIKey(ctx context.Context, key string) (Identity, error) {
	rec, err := s.store.FindAPIKey(ctx, key)
	if err != nil {
		if errors.Is(err, credstore.ErrNotFound) {
			return Identity{}, ErrUnknownAPIKey
		}
		return Identity{}, err
	}
	if !rec.Active || rec.Expired(s.now()) {
		return Identity{}, ErrInactiveAPIKey
	}
	user, err := s.store.FindByID(ctx, rec.OwnerID)
	if err != nil {
		if errors.Is(err, credstore.ErrNotFound) {
			return Identity{}, ErrInactiveAPIKey
		}
		return Identity{}, err
	}
	if !user.Active {
		return Identity{}, ErrInactiveAPIKey
	}
	return identityFromUser(user, rec.Scopes), nil
}

// verify maps codec failures to the service's rejection reasons and applies
// the revocation check.
func (s *Service) verify(raw string, kind token.Kind) (*token.Claims, error) {
	claims, err := s.codec.Verify(raw, kind)
	if err != nil {
		switch {
		case errors.Is(err, token.ErrExpired):
			return nil, ErrTokenExpired
		default:
			return nil, ErrTokenMalformed
		}
	}
	if s.revoked.contains(claims.ID, s.now()) {
		return nil, ErrTokenRevoked
	}
	return claims, nil
}

func (s *Service) mintPair(userID string, scopes []string) (TokenPair, error) {
	access, accessClaims, err := s.codec.Issue(userID, scopes, token.KindAccess, s.accessTTL)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, refreshClaims, err := s.codec.Issue(userID, scopes, token.KindRefresh, s.refreshTTL)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  accessClaims.ExpiresAt.Time,
		RefreshExpiresAt: refreshClaims.ExpiresAt.Time,
	}, nil
}

func (s *Service) allowLoginAttempt(email string) bool {
	s.loginMu.Lock()
	lim, ok := s.logins[email]
	if !ok {
		lim = rate.NewLimiter(s.loginRate, s.loginBurst)
		s.logins[email] = lim
	}
	s.loginMu.Unlock()
	return lim.Allow()
}

func identityFromUser(u *credstore.User, scopes []string) Identity {
	return Identity{
		ID:       u.ID,
		Email:    u.Email,
		FullName: u.FullName,
		Roles:    dedupe(u.Roles),
		Scopes:   dedupe(scopes),
		Active:   u.Active,
	}
}
