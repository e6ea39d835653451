package utils

import (
	"errors"
	"time"

	"pwashop/config"

	"github.com/golang-jwt/jwt"
)

var errNoSecret = errors.New("jwt secret is not configured")

// secretKey falls back to a fixed development secret outside production only.
func secretKey() ([]byte, error) {
	secret := config.AppConfig.JWTSecret
	if secret == "" {
		if config.IsProduction() {
			return nil, errNoSecret
		}
		secret = "pwashop-dev-secret"
	}
	return []byte(secret), nil
}

// GenerateToken creates a signed JWT token for the given user ID.
// The origin backend issues the real tokens; this is used by tooling and tests.
func GenerateToken(userID string, duration time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"sub":    userID,
		"userId": userID,
		"iat":    time.Now().Unix(),
		"exp":    time.Now().Add(duration).Unix(),
	}
	key, err := secretKey()
	if err != nil {
		return "", err
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(key)
}

// ValidateToken parses and validates a token string and returns the token if valid.
func ValidateToken(tokenString string) (*jwt.Token, error) {
	return jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		// Ensure that the token's signing method is HMAC.
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return secretKey()
	})
}

// ExtractIDFromToken returns the user ID carried by a valid token.
// The origin signs {userId}; "sub" is accepted as well.
func ExtractIDFromToken(tokenString string) (string, error) {
	token, err := ValidateToken(tokenString)
	if err != nil {
		return "", err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", errors.New("invalid token")
	}

	for _, claim := range []string{"userId", "sub", "id"} {
		if id, ok := claims[claim].(string); ok && id != "" {
			return id, nil
		}
	}
	return "", errors.New("token does not contain a user id claim")
}
