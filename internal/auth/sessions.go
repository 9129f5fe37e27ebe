package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const sessionIssuer = "agencydesk"

const (
	defaultSessionTTL  = 7 * 24 * time.Hour
	defaultRefreshAge  = 24 * time.Hour
	issuedAtClockSkew  = 5 * time.Second
)

// SessionClaims are the JWT claims carried by a session token.
type SessionClaims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// Sessions issues and verifies signed session tokens (HS256). Tokens live
// seven days and are re-issued once a day of activity has passed.
type Sessions struct {
	secret     []byte
	ttl        time.Duration
	refreshAge time.Duration
	now        func() time.Time
}

// SessionOption configures Sessions behavior.
type SessionOption func(*Sessions)

// WithSessionTTL overrides the token lifetime.
func WithSessionTTL(ttl time.Duration) SessionOption {
	return func(s *Sessions) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithRefreshAge overrides the activity age after which a token is re-issued.
func WithRefreshAge(age time.Duration) SessionOption {
	return func(s *Sessions) {
		if age > 0 {
			s.refreshAge = age
		}
	}
}

// WithSessionClock overrides the time source (useful for tests).
func WithSessionClock(fn func() time.Time) SessionOption {
	return func(s *Sessions) {
		if fn != nil {
			s.now = fn
		}
	}
}

// NewSessions constructs the session token manager.
func NewSessions(secret string, opts ...SessionOption) (*Sessions, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, errors.New("auth: session secret is required")
	}
	s := &Sessions{
		secret:     []byte(secret),
		ttl:        defaultSessionTTL,
		refreshAge: defaultRefreshAge,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Issue signs a fresh session token for the principal.
func (s *Sessions) Issue(p Principal) (string, time.Time, error) {
	if strings.TrimSpace(p.ID) == "" {
		return "", time.Time{}, errors.New("auth: principal id is required")
	}
	if _, err := ParseRole(string(p.Role)); err != nil {
		return "", time.Time{}, err
	}
	now := s.now().UTC()
	expiresAt := now.Add(s.ttl)
	claims := SessionClaims{
		Email: strings.TrimSpace(strings.ToLower(p.Email)),
		Role:  string(p.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    sessionIssuer,
			Subject:   p.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        uuid.NewString(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// Verify validates signature and claims and returns the principal along with
// the token's issue time. Every failure collapses to ErrInvalidToken; the
// caller must not distinguish causes to the client.
func (s *Sessions) Verify(token string) (Principal, time.Time, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Principal{}, time.Time{}, ErrInvalidToken
	}
	parsed, err := jwt.ParseWithClaims(token, &SessionClaims{}, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, ErrInvalidToken
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(func() time.Time { return s.now().UTC() }))
	if err != nil {
		return Principal{}, time.Time{}, ErrInvalidToken
	}
	claims, ok := parsed.Claims.(*SessionClaims)
	if !ok || !parsed.Valid {
		return Principal{}, time.Time{}, ErrInvalidToken
	}
	if claims.Issuer != sessionIssuer {
		return Principal{}, time.Time{}, ErrInvalidToken
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return Principal{}, time.Time{}, ErrInvalidToken
	}
	if claims.IssuedAt == nil || claims.ExpiresAt == nil {
		return Principal{}, time.Time{}, ErrInvalidToken
	}
	now := s.now().UTC()
	if now.After(claims.ExpiresAt.Time) {
		return Principal{}, time.Time{}, ErrInvalidToken
	}
	if claims.IssuedAt.Time.After(now.Add(issuedAtClockSkew)) {
		return Principal{}, time.Time{}, ErrInvalidToken
	}
	role, err := ParseRole(claims.Role)
	if err != nil {
		return Principal{}, time.Time{}, ErrInvalidToken
	}
	principal := Principal{
		ID:    claims.Subject,
		Email: claims.Email,
		Role:  role,
	}
	return principal, claims.IssuedAt.Time, nil
}

// NeedsRefresh reports whether a token issued at the given instant should be
// re-issued on this request.
func (s *Sessions) NeedsRefresh(issuedAt time.Time) bool {
	return s.now().UTC().Sub(issuedAt) >= s.refreshAge
}
