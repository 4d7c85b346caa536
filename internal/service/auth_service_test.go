package service

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func newTestAuthService(t *testing.T) *AuthService {
	t.Helper()
	svc, err := NewAuthService(base64.StdEncoding.EncodeToString(testSecret))
	require.NoError(t, err)
	return svc
}

func signToken(t *testing.T, secret []byte, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	require.NoError(t, err)
	return token
}

func TestNewAuthServiceRejectsBadSecret(t *testing.T) {
	_, err := NewAuthService("not-base64!!!")
	require.Error(t, err)

	_, err = NewAuthService("")
	require.Error(t, err)
}

func TestAuthenticateValidToken(t *testing.T) {
	svc := newTestAuthService(t)
	token := signToken(t, testSecret, jwt.MapClaims{
		"sub":   "user-42",
		"email": "user@example.com",
		"role":  "TRADER",
		"exp":   time.Now().Add(time.Hour).Unix(),
	})

	userID, err := svc.Authenticate("Bearer " + token)
	require.NoError(t, err)
	require.Equal(t, "user-42", userID)
}

func TestAuthenticateRejectsMissingHeader(t *testing.T) {
	svc := newTestAuthService(t)

	_, err := svc.Authenticate("")
	require.Error(t, err)

	_, err = svc.Authenticate("Token abc")
	require.Error(t, err)
}

func TestAuthenticateRejectsWrongSecret(t *testing.T) {
	svc := newTestAuthService(t)
	token := signToken(t, []byte("another-secret-another-secret-00"), jwt.MapClaims{
		"sub": "user-42",
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	_, err := svc.Authenticate("Bearer " + token)
	require.Error(t, err)
}

func TestAuthenticateRejectsExpiredToken(t *testing.T) {
	svc := newTestAuthService(t)
	token := signToken(t, testSecret, jwt.MapClaims{
		"sub": "user-42",
		"exp": time.Now().Add(-time.Hour).Unix(),
	})

	_, err := svc.Authenticate("Bearer " + token)
	require.Error(t, err)
}

func TestAuthenticateRejectsMissingSubject(t *testing.T) {
	svc := newTestAuthService(t)
	token := signToken(t, testSecret, jwt.MapClaims{
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	_, err := svc.Authenticate("Bearer " + token)
	require.Error(t, err)
}
