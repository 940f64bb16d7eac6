package jwt

import (
	"testing"
	"time"
)

func TestGenerateAndParse(t *testing.T) {
	token, err := GenerateToken("user-1", "alice", "secret", time.Minute)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	claims, err := Parse(token, "secret")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.UserID != "user-1" || claims.Username != "alice" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	if _, err := Parse(token, "other-secret"); err == nil {
		t.Fatalf("expected signature error with wrong secret")
	}
}

func TestParseRejectsExpired(t *testing.T) {
	token, err := GenerateToken("user-1", "alice", "secret", -time.Minute)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if _, err := Parse(token, "secret"); err == nil {
		t.Fatalf("expected expired token to be rejected")
	}
}
