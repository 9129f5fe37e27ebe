package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// IdentityClaims are the claims an identity-provider assertion must carry.
type IdentityClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// Identity verifies assertions minted by the external identity provider. The
// provider is trusted for "who is this" only; role and row-level access are
// decided locally.
type Identity struct {
	secret  []byte
	issuer  string
	domains []string
	now     func() time.Time
}

// NewIdentity constructs the identity-provider verifier. domains is the
// allow list of email domains permitted to sign in.
func NewIdentity(secret, issuer string, domains []string) (*Identity, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, errors.New("auth: identity provider secret is required")
	}
	normalized := make([]string, 0, len(domains))
	for _, d := range domains {
		d = strings.TrimSpace(strings.ToLower(d))
		if d != "" {
			normalized = append(normalized, d)
		}
	}
	if len(normalized) == 0 {
		return nil, errors.New("auth: at least one allowed domain is required")
	}
	return &Identity{
		secret:  []byte(secret),
		issuer:  strings.TrimSpace(issuer),
		domains: normalized,
		now:     time.Now,
	}, nil
}

// VerifyAssertion validates the provider assertion and returns the verified
// email. Signature or expiry problems return ErrInvalidToken; a valid
// assertion for a foreign domain returns ErrDomainNotAllowed.
func (i *Identity) VerifyAssertion(assertion string) (string, error) {
	assertion = strings.TrimSpace(assertion)
	if assertion == "" {
		return "", ErrInvalidToken
	}
	parsed, err := jwt.ParseWithClaims(assertion, &IdentityClaims{}, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, ErrInvalidToken
		}
		return i.secret, nil
	}, jwt.WithTimeFunc(func() time.Time { return i.now().UTC() }))
	if err != nil {
		return "", ErrInvalidToken
	}
	claims, ok := parsed.Claims.(*IdentityClaims)
	if !ok || !parsed.Valid {
		return "", ErrInvalidToken
	}
	if i.issuer != "" && !strings.EqualFold(claims.Issuer, i.issuer) {
		return "", ErrInvalidToken
	}
	email := strings.TrimSpace(strings.ToLower(claims.Email))
	if email == "" || !strings.Contains(email, "@") {
		return "", ErrInvalidToken
	}
	if !i.domainAllowed(email) {
		return "", ErrDomainNotAllowed
	}
	return email, nil
}

func (i *Identity) domainAllowed(email string) bool {
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return false
	}
	domain := email[at+1:]
	for _, d := range i.domains {
		if domain == d {
			return true
		}
	}
	return false
}
