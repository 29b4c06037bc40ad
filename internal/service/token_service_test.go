package service

import (
	"testing"
	"time"

	"lumenpress/internal/domain"
)

func TestTokenServiceIssueParse(t *testing.T) {
	svc := NewTokenService("secret", 30*24*time.Hour)
	user := domain.User{ID: "u1", Email: "user@example.com", IsAdmin: true}

	token, err := svc.Issue(user)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	claims, err := svc.Parse(token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.UserID != "u1" || claims.Email != "user@example.com" || !claims.IsAdmin {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestTokenServiceRejectsExpired(t *testing.T) {
	svc := NewTokenService("secret", 1*time.Nanosecond)
	token, err := svc.Issue(domain.User{ID: "u1", Email: "user@example.com"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	time.Sleep(10 * time.Millisecond)

	if _, err := svc.Parse(token); err != ErrTokenExpired {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func TestTokenServiceRejectsForeignSignature(t *testing.T) {
	issuer := NewTokenService("secret-a", time.Hour)
	parser := NewTokenService("secret-b", time.Hour)

	token, err := issuer.Issue(domain.User{ID: "u1", Email: "user@example.com"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := parser.Parse(token); err != ErrTokenInvalid {
		t.Fatalf("expected ErrTokenInvalid, got %v", err)
	}
}

func TestTokenServiceRejectsGarbage(t *testing.T) {
	svc := NewTokenService("secret", time.Hour)
	for _, token := range []string{"", "   ", "not-a-jwt", "a.b.c"} {
		if _, err := svc.Parse(token); err == nil {
			t.Fatalf("expected error for %q", token)
		}
	}
}
