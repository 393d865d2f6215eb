package identity

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt"
)

const testSecret = "test-secret"

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func TestVerifyValidToken(t *testing.T) {
	v := NewJWTVerifier(testSecret)
	tok := signToken(t, testSecret, jwt.MapClaims{
		"id":  "user-1",
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	userID, err := v.Verify(tok)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if userID != "user-1" {
		t.Fatalf("user id = %q, want user-1", userID)
	}
}

func TestVerifyRejections(t *testing.T) {
	v := NewJWTVerifier(testSecret)
	future := time.Now().Add(time.Hour).Unix()

	cases := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"garbage", "not.a.token"},
		{"wrong secret", signToken(t, "other-secret", jwt.MapClaims{"id": "user-1", "exp": future})},
		{"expired", signToken(t, testSecret, jwt.MapClaims{"id": "user-1", "exp": time.Now().Add(-time.Hour).Unix()})},
		{"no expiry", signToken(t, testSecret, jwt.MapClaims{"id": "user-1"})},
		{"no user id", signToken(t, testSecret, jwt.MapClaims{"exp": future})},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := v.Verify(tc.token); err == nil {
				t.Fatal("expected verification to fail")
			}
		})
	}
}

func TestVerifyRejectsUnsignedAlg(t *testing.T) {
	v := NewJWTVerifier(testSecret)
	token := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
		"id":  "user-1",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	_, err = v.Verify(signed)
	if err == nil {
		t.Fatal("none algorithm must be rejected")
	}
	if !strings.Contains(err.Error(), "signing method") && !strings.Contains(err.Error(), "parse token") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestVerifyExpiryUsesInjectedClock(t *testing.T) {
	v := NewJWTVerifier(testSecret)
	exp := time.Now().Add(time.Hour)
	tok := signToken(t, testSecret, jwt.MapClaims{"id": "user-1", "exp": exp.Unix()})

	v.now = func() time.Time { return exp.Add(time.Minute) }
	if _, err := v.Verify(tok); err == nil {
		t.Fatal("token past expiry should fail")
	}
}
