package user

import (
	"testing"
	"time"
)

func TestIssueThenParseRoundTrips(t *testing.T) {
	v := NewVerifier("test-secret")
	token, err := v.Issue("u1", time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	claims, err := v.Parse(token)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if claims.UserID != "u1" {
		t.Fatalf("expected user id u1, got %q", claims.UserID)
	}
	if claims.Expiry.Before(time.Now()) {
		t.Fatalf("expected a future expiry, got %v", claims.Expiry)
	}
}

func TestParseHeaderRequiresBearerPrefix(t *testing.T) {
	v := NewVerifier("test-secret")
	token, _ := v.Issue("u1", time.Hour)

	if _, err := v.ParseHeader(token); err == nil {
		t.Fatal("expected an error for a header missing the Bearer prefix")
	}
	if _, err := v.ParseHeader("Bearer " + token); err != nil {
		t.Fatalf("ParseHeader: %v", err)
	}
}

func TestParseRejectsExpiredToken(t *testing.T) {
	v := NewVerifier("test-secret")
	token, err := v.Issue("u1", -time.Minute)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := v.Parse(token); err == nil {
		t.Fatal("expected an error for an expired token")
	}
}

func TestParseRejectsTokenSignedWithDifferentSecret(t *testing.T) {
	v1 := NewVerifier("secret-one")
	v2 := NewVerifier("secret-two")
	token, err := v1.Issue("u1", time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := v2.Parse(token); err == nil {
		t.Fatal("expected an error when verifying with the wrong secret")
	}
}
