package service

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/brokerx/marketfeed/pkg/utils/zaplogger"
	"github.com/golang-jwt/jwt/v5"
)

// AuthService validates bearer tokens presented at connect time and resolves
// them to a user identity
type AuthService struct {
	secret []byte
}

// NewAuthService creates an authenticator from a base64-encoded HMAC secret
func NewAuthService(encodedSecret string) (*AuthService, error) {
	secret, err := base64.StdEncoding.DecodeString(encodedSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to decode JWT secret: %w", err)
	}
	if len(secret) == 0 {
		return nil, fmt.Errorf("JWT secret is empty")
	}
	return &AuthService{secret: secret}, nil
}

// Authenticate resolves an Authorization header to a user id, or rejects
// the connection
func (s *AuthService) Authenticate(authHeader string) (string, error) {
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", fmt.Errorf("missing or invalid Authorization header")
	}
	tokenString := strings.TrimPrefix(authHeader, "Bearer ")

	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}))
	if err != nil {
		return "", fmt.Errorf("invalid token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", fmt.Errorf("unexpected token claims")
	}

	userID, err := claims.GetSubject()
	if err != nil || userID == "" {
		return "", fmt.Errorf("token has no subject")
	}

	email, _ := claims["email"].(string)
	role, _ := claims["role"].(string)
	zaplogger.Info("WebSocket authenticated", zaplogger.Fields{
		"user_id": userID,
		"email":   email,
		"role":    role,
	})

	return userID, nil
}
