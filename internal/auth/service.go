package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"backoffice.games/internal/ids"
)

const (
	defaultAccessTTL  = 60 * time.Minute
	defaultRefreshTTL = 30 * 24 * time.Hour
	defaultPurgeGrace = 24 * time.Hour

	revokedReasonRefresh  = "used for refresh"
	revokedReasonPassword = "password changed"
)

// ErrIdentityMissing is returned when a refresh token outlives its user.
var ErrIdentityMissing = fmt.Errorf("%w: token identity no longer exists", ErrNotFound)

// Service implements the access-control core: credential login, token
// issuance and rotation, and user/role/permission management over a Store.
type Service struct {
	store Store
	now   func() time.Time

	signingKey []byte
	issuer     string
	audience   string
	accessTTL  time.Duration
	refreshTTL time.Duration
	purgeGrace time.Duration
}

// Option configures Service behavior.
type Option func(*Service) error

// WithSigningKey sets the symmetric key used to sign access tokens.
func WithSigningKey(key string) Option {
	return func(s *Service) error {
		if strings.TrimSpace(key) == "" {
			return errors.New("auth: signing key is required")
		}
		s.signingKey = []byte(key)
		return nil
	}
}

// WithIssuer overrides the token issuer claim.
func WithIssuer(issuer string) Option {
	return func(s *Service) error {
		if v := strings.TrimSpace(issuer); v != "" {
			s.issuer = v
		}
		return nil
	}
}

// WithAudience overrides the token audience claim.
func WithAudience(audience string) Option {
	return func(s *Service) error {
		if v := strings.TrimSpace(audience); v != "" {
			s.audience = v
		}
		return nil
	}
}

// WithAccessTTL configures access token lifetime.
func WithAccessTTL(ttl time.Duration) Option {
	return func(s *Service) error {
		if ttl > 0 {
			s.accessTTL = ttl
		}
		return nil
	}
}

// WithRefreshTTL configures refresh token lifetime.
func WithRefreshTTL(ttl time.Duration) Option {
	return func(s *Service) error {
		if ttl > 0 {
			s.refreshTTL = ttl
		}
		return nil
	}
}

// WithPurgeGrace configures how long expired refresh tokens are retained
// before the housekeeping sweep removes them.
func WithPurgeGrace(grace time.Duration) Option {
	return func(s *Service) error {
		if grace >= 0 {
			s.purgeGrace = grace
		}
		return nil
	}
}

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) Option {
	return func(s *Service) error {
		if fn != nil {
			s.now = fn
		}
		return nil
	}
}

// NewService constructs the Service. A signing key is mandatory.
func NewService(store Store, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("auth: store is required")
	}
	svc := &Service{
		store:      store,
		now:        time.Now,
		issuer:     "backoffice",
		audience:   "backoffice",
		accessTTL:  defaultAccessTTL,
		refreshTTL: defaultRefreshTTL,
		purgeGrace: defaultPurgeGrace,
	}
	for _, opt := range opts {
		if err := opt(svc); err != nil {
			return nil, err
		}
	}
	if len(svc.signingKey) == 0 {
		return nil, errors.New("auth: signing key is required")
	}
	return svc, nil
}

// TokenPair is an access/refresh token pair with expirations.
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

// Login authenticates credentials and issues a fresh token pair. Unknown
// email and wrong password both fail with ErrInvalidCredentials.
func (s *Service) Login(ctx context.Context, email, password string) (TokenPair, error) {
	email = NormalizeEmail(email)
	if email == "" || password == "" {
		return TokenPair{}, ErrInvalidCredentials
	}
	user, err := s.store.Users(ctx).FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return TokenPair{}, ErrInvalidCredentials
		}
		return TokenPair{}, err
	}
	if err := VerifyPassword(user.PasswordHash, password); err != nil {
		return TokenPair{}, ErrInvalidCredentials
	}
	keys, isSuper, err := s.resolveAuthorization(ctx, user.ID)
	if err != nil {
		return TokenPair{}, err
	}
	access, accessExp, err := s.IssueAccessToken(user, keys, isSuper)
	if err != nil {
		return TokenPair{}, err
	}
	rec, err := s.newRefreshToken(user.ID)
	if err != nil {
		return TokenPair{}, err
	}
	if err := s.store.RefreshTokens(ctx).Create(ctx, rec); err != nil {
		return TokenPair{}, err
	}
	return TokenPair{
		AccessToken:      access,
		RefreshToken:     rec.Token,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: rec.ExpiresAt,
	}, nil
}

// Refresh exchanges a valid refresh token for a new pair. The old token is
// revoked and the identity's permissions are re-resolved from the current
// role graph; claims embedded in the previous access token are never
// trusted here.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return TokenPair{}, ErrInvalidToken
	}
	tokens := s.store.RefreshTokens(ctx)
	old, err := tokens.Find(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return TokenPair{}, ErrInvalidToken
		}
		return TokenPair{}, err
	}
	if !old.Valid(s.now()) {
		return TokenPair{}, ErrInvalidToken
	}
	user, err := s.store.Users(ctx).Find(ctx, old.UserID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return TokenPair{}, ErrIdentityMissing
		}
		return TokenPair{}, err
	}
	keys, isSuper, err := s.resolveAuthorization(ctx, user.ID)
	if err != nil {
		return TokenPair{}, err
	}
	access, accessExp, err := s.IssueAccessToken(user, keys, isSuper)
	if err != nil {
		return TokenPair{}, err
	}
	rec, err := s.newRefreshToken(user.ID)
	if err != nil {
		return TokenPair{}, err
	}
	if err := tokens.Rotate(ctx, old.Token, revokedReasonRefresh, rec); err != nil {
		if errors.Is(err, ErrNotFound) {
			// The token was consumed by a concurrent refresh after the
			// lookup above; the loser sees an invalid token, not a fault.
			return TokenPair{}, ErrInvalidToken
		}
		return TokenPair{}, err
	}
	return TokenPair{
		AccessToken:      access,
		RefreshToken:     rec.Token,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: rec.ExpiresAt,
	}, nil
}

func (s *Service) newRefreshToken(userID string) (*RefreshToken, error) {
	token, err := NewRefreshTokenString()
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	return &RefreshToken{
		ID:        ids.New(),
		UserID:    userID,
		Token:     token,
		ExpiresAt: now.Add(s.refreshTTL),
		CreatedAt: now,
	}, nil
}

// resolveAuthorization walks the role graph once: user links -> roles ->
// permission links -> keys. Orphaned links are skipped by the store. The
// result is deduplicated; order is not significant.
func (s *Service) resolveAuthorization(ctx context.Context, userID string) ([]string, bool, error) {
	roles, err := s.store.Roles(ctx).ForUser(ctx, userID)
	if err != nil {
		return nil, false, err
	}
	perms := s.store.Permissions(ctx)
	seen := make(map[string]struct{})
	var keys []string
	isSuper := false
	for _, role := range roles {
		if role.Name == SuperAdminRoleName {
			isSuper = true
		}
		list, err := perms.ForRole(ctx, role.ID)
		if err != nil {
			return nil, false, err
		}
		for _, p := range list {
			if _, ok := seen[p.Key]; ok {
				continue
			}
			seen[p.Key] = struct{}{}
			keys = append(keys, p.Key)
		}
	}
	return keys, isSuper, nil
}

// EffectivePermissions resolves the deduplicated permission key set
// reachable from the user through all assigned roles.
func (s *Service) EffectivePermissions(ctx context.Context, userID string) ([]string, error) {
	keys, _, err := s.resolveAuthorization(ctx, userID)
	return keys, err
}

// IsSuperAdmin reports whether any of the user's roles is the reserved
// SuperAdmin system role.
func (s *Service) IsSuperAdmin(ctx context.Context, userID string) (bool, error) {
	_, isSuper, err := s.resolveAuthorization(ctx, userID)
	return isSuper, err
}

// PurgeExpiredRefreshTokens removes refresh tokens whose expiry predates
// now minus the configured grace period.
func (s *Service) PurgeExpiredRefreshTokens(ctx context.Context) (int64, error) {
	cutoff := s.now().UTC().Add(-s.purgeGrace)
	return s.store.RefreshTokens(ctx).PurgeExpired(ctx, cutoff)
}
