package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	pkgerrors "github.com/honeynil/UsersLedgerService/pkg/errors"
)

// GenerateServiceToken signs an HS256 token whose subject is the calling
// service. A zero ttl produces a token that never expires.
func GenerateServiceToken(secret []byte, service string, ttl time.Duration) (string, error) {
	if len(secret) == 0 {
		return "", fmt.Errorf("JWT secret not set")
	}
	if service == "" {
		return "", fmt.Errorf("service name is required")
	}

	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:  service,
		IssuedAt: jwt.NewNumericDate(now),
	}
	if ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// ValidateServiceToken checks the signature and expiry of tokenStr and
// returns the calling service.
func ValidateServiceToken(secret []byte, tokenStr string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Method.Alg())
		}
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", fmt.Errorf("%w: %v", pkgerrors.ErrUnauthenticated, err)
	}
	if !token.Valid || claims.Subject == "" {
		return "", fmt.Errorf("%w: token has no subject", pkgerrors.ErrUnauthenticated)
	}
	return claims.Subject, nil
}
