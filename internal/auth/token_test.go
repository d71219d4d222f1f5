package auth

import (
	"errors"
	"testing"
	"time"
)

func TestTokenIssuer_IssueAndParse(t *testing.T) {
	t.Parallel()

	issuer := NewTokenIssuer("unit-test-secret", time.Hour)
	now := time.Now()

	token, expiresAt, err := issuer.Issue("alice", now)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	if token == "" {
		t.Fatal("expected non-empty token")
	}
	if want := now.Add(time.Hour); expiresAt.Sub(want) > time.Second || want.Sub(expiresAt) > time.Second {
		t.Errorf("expiry mismatch: got %v, want ~%v", expiresAt, want)
	}

	claims, err := issuer.Parse(token)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if claims.Username != "alice" {
		t.Errorf("username mismatch: got %q, want %q", claims.Username, "alice")
	}
}

func TestTokenIssuer_Parse_WrongSecret(t *testing.T) {
	t.Parallel()

	token, _, err := NewTokenIssuer("secret-a", time.Hour).Issue("alice", time.Now())
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	_, err = NewTokenIssuer("secret-b", time.Hour).Parse(token)
	if !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("expected ErrTokenInvalid, got %v", err)
	}
}

func TestTokenIssuer_Parse_Expired(t *testing.T) {
	t.Parallel()

	issuer := NewTokenIssuer("unit-test-secret", time.Hour)

	// Issue a token whose expiry is already in the past.
	token, _, err := issuer.Issue("alice", time.Now().Add(-2*time.Hour))
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	_, err = issuer.Parse(token)
	if !errors.Is(err, ErrTokenExpired) {
		t.Errorf("expected ErrTokenExpired, got %v", err)
	}
}

func TestTokenIssuer_Parse_Garbage(t *testing.T) {
	t.Parallel()

	issuer := NewTokenIssuer("unit-test-secret", time.Hour)
	if _, err := issuer.Parse("not.a.token"); !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("expected ErrTokenInvalid, got %v", err)
	}
}
