package security

import (
	"errors"
	"testing"
	"time"
)

func TestTokenProvider_IssueAndValidate(t *testing.T) {
	p, err := NewTestTokenProvider()
	if err != nil {
		t.Fatalf("NewTestTokenProvider: %v", err)
	}
	at, err := p.IssueAccess("sid-1", "user-1", "jdoe", "PILOT")
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	if at.Token == "" || at.ID == "" {
		t.Fatal("token or jti empty")
	}
	if !at.ExpiresAt.After(time.Now()) {
		t.Fatal("expires at in the past")
	}
	claims, err := p.ValidateAccess(at.Token)
	if err != nil {
		t.Fatalf("ValidateAccess: %v", err)
	}
	if claims.SessionID != "sid-1" || claims.Subject != "user-1" || claims.Role != "PILOT" || claims.Username != "jdoe" {
		t.Errorf("claims = %+v", claims)
	}
}

func TestTokenProvider_ValidateAccessInvalid(t *testing.T) {
	p, err := NewTestTokenProvider()
	if err != nil {
		t.Fatalf("NewTestTokenProvider: %v", err)
	}
	for _, tok := range []string{"", "not-a-jwt", "a.b.c"} {
		if _, err := p.ValidateAccess(tok); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("ValidateAccess(%q) = %v, want ErrInvalidToken", tok, err)
		}
	}
}

func TestTokenProvider_ValidateAccessExpired(t *testing.T) {
	p, err := NewTestTokenProvider()
	if err != nil {
		t.Fatalf("NewTestTokenProvider: %v", err)
	}
	at, err := p.IssueAccess("sid-1", "user-1", "jdoe", "USER")
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	p.nowF = func() time.Time { return time.Now().Add(2 * p.AccessTTL()) }
	if _, err := p.ValidateAccess(at.Token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("ValidateAccess(expired) = %v, want ErrInvalidToken", err)
	}
}

func TestTokenProvider_WrongAudience(t *testing.T) {
	p, err := NewTestTokenProvider()
	if err != nil {
		t.Fatalf("NewTestTokenProvider: %v", err)
	}
	at, err := p.IssueAccess("sid-1", "user-1", "jdoe", "USER")
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	other := NewTokenProvider(p.privateKey, p.publicKey, "test-issuer", "other-audience", time.Hour)
	if _, err := other.ValidateAccess(at.Token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("ValidateAccess(wrong aud) = %v, want ErrInvalidToken", err)
	}
}
