package utils

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var testSecret = bytes.Repeat([]byte("s"), 32)

func TestGenerateJWT_VerifiesAndCarriesSubject(t *testing.T) {
	svc := NewTokenService(testSecret, 72*time.Hour)

	token, err := svc.GenerateJWT("alice")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !svc.ValidateJWT(token) {
		t.Fatal("fresh token should verify")
	}
	sub, err := svc.UsernameFromJWT(token)
	if err != nil || sub != "alice" {
		t.Fatalf("expected subject alice, got %q (%v)", sub, err)
	}
}

func TestValidateJWT_Expiry(t *testing.T) {
	issued := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	svc := NewTokenService(testSecret, 72*time.Hour).WithClock(func() time.Time { return issued })

	token, err := svc.GenerateJWT("alice")
	if err != nil {
		t.Fatal(err)
	}

	justBefore := svc.WithClock(func() time.Time { return issued.Add(72*time.Hour - time.Minute) })
	if !justBefore.ValidateJWT(token) {
		t.Error("token should still be valid inside the window")
	}

	after := svc.WithClock(func() time.Time { return issued.Add(72*time.Hour + time.Second) })
	if after.ValidateJWT(token) {
		t.Error("token should be rejected after expiry")
	}
	if _, err := after.UsernameFromJWT(token); err == nil {
		t.Error("expired token should not yield a subject")
	}
}

func TestValidateJWT_DifferentSecret(t *testing.T) {
	token, _ := NewTokenService(testSecret, time.Hour).GenerateJWT("alice")

	other := NewTokenService(bytes.Repeat([]byte("o"), 32), time.Hour)
	if other.ValidateJWT(token) {
		t.Error("token signed with another secret must not verify")
	}
}

func TestValidateJWT_Garbage(t *testing.T) {
	svc := NewTokenService(testSecret, time.Hour)
	for _, tok := range []string{"", "abc", "a.b.c", strings.Repeat("x", 300)} {
		if svc.ValidateJWT(tok) {
			t.Errorf("garbage token %q verified", tok)
		}
	}
}

func TestValidateJWT_RejectsNoneAlgorithm(t *testing.T) {
	claims := jwt.RegisteredClaims{
		Subject:   "alice",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatal(err)
	}
	if NewTokenService(testSecret, time.Hour).ValidateJWT(token) {
		t.Error("unsigned token must not verify")
	}
}

func TestValidateJWT_RequiresExpiry(t *testing.T) {
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: "alice"}).SignedString(testSecret)
	if err != nil {
		t.Fatal(err)
	}
	if NewTokenService(testSecret, time.Hour).ValidateJWT(token) {
		t.Error("token without exp must not verify")
	}
}

func TestNewTokenService_MethodFollowsKeyLength(t *testing.T) {
	cases := []struct {
		size int
		alg  string
	}{
		{32, "HS256"},
		{48, "HS384"},
		{64, "HS512"},
	}
	for _, tc := range cases {
		svc := NewTokenService(bytes.Repeat([]byte("k"), tc.size), time.Hour)
		token, err := svc.GenerateJWT("bob")
		if err != nil {
			t.Fatal(err)
		}
		parsed, _, err := jwt.NewParser().ParseUnverified(token, &Claims{})
		if err != nil {
			t.Fatal(err)
		}
		if parsed.Method.Alg() != tc.alg {
			t.Errorf("key of %d bytes: expected %s, got %s", tc.size, tc.alg, parsed.Method.Alg())
		}
		if !svc.ValidateJWT(token) {
			t.Errorf("%s token should verify", tc.alg)
		}
	}
}

func TestGenerateJWT_Misconfigured(t *testing.T) {
	if _, err := NewTokenService(nil, time.Hour).GenerateJWT("a"); err == nil {
		t.Error("expected error without secret")
	}
	if _, err := NewTokenService(testSecret, 0).GenerateJWT("a"); err == nil {
		t.Error("expected error without max age")
	}
}
