package ws

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// connClaims are the JWT claims a connection authenticates with: the subject
// is the citizen or responder identity, Role one of the ws roles.
type connClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// parseToken validates an HS256 token and extracts identity and role.
func parseToken(tokenStr, secret string) (identity, role string, err error) {
	claims := &connClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return "", "", fmt.Errorf("invalid token: %w", err)
	}
	if !token.Valid {
		return "", "", fmt.Errorf("invalid token")
	}

	if claims.Subject == "" {
		return "", "", fmt.Errorf("token missing subject")
	}
	if claims.Role != RoleCitizen && claims.Role != RoleResponder {
		return "", "", fmt.Errorf("token carries unknown role %q", claims.Role)
	}
	return claims.Subject, claims.Role, nil
}
