// Package identity verifies the tokens clients present on joinOnline. The
// hub never issues tokens; the external identity provider does. Verification
// fails closed: expired, malformed or unsigned tokens never yield a user id.
package identity

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt"
)

// JWTVerifier checks HS256 tokens signed with a shared secret and extracts
// the subject user id from the "id" claim.
type JWTVerifier struct {
	secret []byte
	now    func() time.Time
}

func NewJWTVerifier(secret string) *JWTVerifier {
	return &JWTVerifier{
		secret: []byte(secret),
		now:    time.Now,
	}
}

func (v *JWTVerifier) Verify(tokenString string) (string, error) {
	if tokenString == "" {
		return "", fmt.Errorf("identity: token string is empty")
	}

	parsed, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return "", fmt.Errorf("identity: parse token: %w", err)
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok || !parsed.Valid {
		return "", fmt.Errorf("identity: invalid token claims")
	}

	exp, ok := claims["exp"].(float64)
	if !ok {
		return "", fmt.Errorf("identity: token has no expiry")
	}
	if v.now().Unix() > int64(exp) {
		return "", fmt.Errorf("identity: token expired")
	}

	userID, ok := claims["id"].(string)
	if !ok || userID == "" {
		return "", fmt.Errorf("identity: token has no user id claim")
	}
	return userID, nil
}
