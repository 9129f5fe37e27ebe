package auth

import (
	"errors"
	"strings"
	"testing"
	"time"
)

const testSecret = "test-secret-0123456789"

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestIssueAndVerify(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	s, err := NewSessions(testSecret, WithSessionClock(fixedClock(now)))
	if err != nil {
		t.Fatalf("new sessions: %v", err)
	}

	token, expiresAt, err := s.Issue(Principal{ID: "u1", Email: "Lead@Agency.Test", Role: RoleDPRLead})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if want := now.Add(7 * 24 * time.Hour); !expiresAt.Equal(want) {
		t.Fatalf("expires at %v, want %v", expiresAt, want)
	}

	p, issuedAt, err := s.Verify(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if p.ID != "u1" || p.Role != RoleDPRLead {
		t.Fatalf("unexpected principal %+v", p)
	}
	if p.Email != "lead@agency.test" {
		t.Fatalf("email not normalized: %q", p.Email)
	}
	if !issuedAt.Equal(now) {
		t.Fatalf("issued at %v, want %v", issuedAt, now)
	}
}

func TestVerifyFailuresCollapseToInvalidToken(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	s, _ := NewSessions(testSecret, WithSessionClock(fixedClock(now)))
	other, _ := NewSessions("completely-different-secret", WithSessionClock(fixedClock(now)))

	good, _, err := s.Issue(Principal{ID: "u1", Email: "a@b.test", Role: RoleAssistant})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	// Expired token.
	late, _ := NewSessions(testSecret, WithSessionClock(fixedClock(now.Add(8*24*time.Hour))))

	cases := map[string]func() (Principal, time.Time, error){
		"empty":        func() (Principal, time.Time, error) { return s.Verify("") },
		"garbage":      func() (Principal, time.Time, error) { return s.Verify("not.a.jwt") },
		"wrong secret": func() (Principal, time.Time, error) { return other.Verify(good) },
		"expired":      func() (Principal, time.Time, error) { return late.Verify(good) },
		"tampered":     func() (Principal, time.Time, error) { return s.Verify(good[:len(good)-4] + "AAAA") },
	}
	for name, fn := range cases {
		if _, _, err := fn(); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("%s: expected ErrInvalidToken, got %v", name, err)
		}
	}
}

func TestVerifyRejectsUnknownRole(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	s, _ := NewSessions(testSecret, WithSessionClock(fixedClock(now)))
	if _, _, err := s.Issue(Principal{ID: "u1", Role: Role("root")}); err == nil {
		t.Fatal("issuing a token for an unknown role must fail")
	}
}

func TestNeedsRefresh(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	s, _ := NewSessions(testSecret, WithSessionClock(fixedClock(now)))

	if s.NeedsRefresh(now.Add(-23 * time.Hour)) {
		t.Fatal("token under a day old should not refresh")
	}
	if !s.NeedsRefresh(now.Add(-25 * time.Hour)) {
		t.Fatal("token over a day old should refresh")
	}
}

func TestRefreshedTokenCarriesSameIdentity(t *testing.T) {
	start := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	clock := start
	s, _ := NewSessions(testSecret, WithSessionClock(func() time.Time { return clock }))

	token, _, err := s.Issue(Principal{ID: "u1", Email: "a@b.test", Role: RoleAssistant})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	clock = start.Add(30 * time.Hour)
	p, issuedAt, err := s.Verify(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !s.NeedsRefresh(issuedAt) {
		t.Fatal("expected refresh after 30h")
	}

	fresh, expiresAt, err := s.Issue(p)
	if err != nil {
		t.Fatalf("re-issue: %v", err)
	}
	if fresh == token {
		t.Fatal("refreshed token must differ (new jti, new iat)")
	}
	if want := clock.Add(7 * 24 * time.Hour); !expiresAt.Equal(want) {
		t.Fatalf("refreshed expiry %v, want %v", expiresAt, want)
	}
	p2, _, err := s.Verify(fresh)
	if err != nil {
		t.Fatalf("verify refreshed: %v", err)
	}
	if p2 != p {
		t.Fatalf("identity changed across refresh: %+v vs %+v", p2, p)
	}
}

func TestNewSessionsRequiresSecret(t *testing.T) {
	if _, err := NewSessions("   "); err == nil || !strings.Contains(err.Error(), "secret") {
		t.Fatalf("expected secret error, got %v", err)
	}
}
