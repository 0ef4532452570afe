package auth

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const refreshTokenEntropyBytes = 64

// permissionList marshals the way multi-valued JWT claims appear on the
// wire: a bare string when there is exactly one entry, a JSON array
// otherwise. Both forms are accepted when parsing.
type permissionList []string

func (p permissionList) MarshalJSON() ([]byte, error) {
	if len(p) == 1 {
		return json.Marshal(p[0])
	}
	return json.Marshal([]string(p))
}

func (p *permissionList) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*p = permissionList{single}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return err
	}
	*p = permissionList(many)
	return nil
}

// AccessClaims is the decoded access token payload. It is the complete
// authorization input for a request: the role graph was walked once at
// issuance and never again per-request.
type AccessClaims struct {
	Email       string         `json:"email"`
	Name        string         `json:"name,omitempty"`
	SuperAdmin  string         `json:"is_superadmin,omitempty"`
	Permissions permissionList `json:"permission,omitempty"`
	jwt.RegisteredClaims
}

// IsSuperAdmin reports whether the superadmin override claim is present.
// The claim is the string literal "true" when set and absent otherwise;
// it is never emitted as "false".
func (c *AccessClaims) IsSuperAdmin() bool {
	return c != nil && c.SuperAdmin == "true"
}

// HasPermission reports whether the exact permission key is embedded in
// the token. No prefix or wildcard semantics.
func (c *AccessClaims) HasPermission(key string) bool {
	if c == nil {
		return false
	}
	for _, p := range c.Permissions {
		if p == key {
			return true
		}
	}
	return false
}

// IssueAccessToken mints a signed, time-bounded access token embedding the
// identity and its resolved authorization claims. Permission keys are
// deduplicated and sorted for a stable wire form.
func (s *Service) IssueAccessToken(user *User, permissionKeys []string, isSuperAdmin bool) (string, time.Time, error) {
	now := s.now().UTC()
	exp := now.Add(s.accessTTL)

	claims := AccessClaims{
		Email:       user.Email,
		Name:        user.Name,
		Permissions: dedupeSorted(permissionKeys),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			Issuer:    s.issuer,
			Audience:  jwt.ClaimStrings{s.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			ID:        uuid.NewString(),
		},
	}
	if isSuperAdmin {
		claims.SuperAdmin = "true"
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.signingKey)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign access token: %w", err)
	}
	return signed, exp, nil
}

// ParseAccessToken verifies signature, issuer, audience and lifetime, and
// returns the embedded claims. Any failure maps to ErrInvalidToken.
func (s *Service) ParseAccessToken(token string) (*AccessClaims, error) {
	parsed, err := jwt.ParseWithClaims(token, &AccessClaims{},
		func(t *jwt.Token) (any, error) {
			if t.Method != jwt.SigningMethodHS256 {
				return nil, ErrInvalidToken
			}
			return s.signingKey, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithAudience(s.audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := parsed.Claims.(*AccessClaims)
	if !ok || !parsed.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// NewRefreshTokenString returns an opaque, unguessable refresh token.
// Uniqueness is guaranteed by entropy (64 random bytes), not by storage
// retries.
func NewRefreshTokenString() (string, error) {
	buf := make([]byte, refreshTokenEntropyBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate refresh token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func dedupeSorted(keys []string) permissionList {
	if len(keys) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(keys))
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if k == "" {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	sort.Strings(out)
	return permissionList(out)
}
