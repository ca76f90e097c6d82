package service

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Isurika-2001/university-management-system-sub001/internal/models"
	appErrors "github.com/Isurika-2001/university-management-system-sub001/pkg/errors"
)

func signToken(t *testing.T, secret string, method jwt.SigningMethod, claims *models.JWTClaims) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(method, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func testClaims(issuer string, expiresIn time.Duration) *models.JWTClaims {
	now := time.Now()
	return &models.JWTClaims{
		Role: models.RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   "user-1",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(expiresIn)),
		},
	}
}

func TestAuthServiceValidateToken(t *testing.T) {
	svc := NewAuthService(nil, AuthConfig{AccessTokenSecret: "secret", Issuer: "ums"})

	claims, err := svc.ValidateToken(signToken(t, "secret", jwt.SigningMethodHS256, testClaims("ums", time.Hour)))
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, models.RoleAdmin, claims.Role)
}

func TestAuthServiceValidateTokenRejects(t *testing.T) {
	svc := NewAuthService(nil, AuthConfig{AccessTokenSecret: "secret", Issuer: "ums"})

	cases := map[string]string{
		"wrong secret": signToken(t, "other", jwt.SigningMethodHS256, testClaims("ums", time.Hour)),
		"expired":      signToken(t, "secret", jwt.SigningMethodHS256, testClaims("ums", -time.Minute)),
		"wrong issuer": signToken(t, "secret", jwt.SigningMethodHS256, testClaims("elsewhere", time.Hour)),
		"wrong method": signToken(t, "secret", jwt.SigningMethodHS384, testClaims("ums", time.Hour)),
		"garbage":      "not-a-token",
	}
	for name, token := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.ValidateToken(token)
			require.Error(t, err)
			var appErr *appErrors.Error
			require.True(t, errors.As(err, &appErr))
			assert.Equal(t, appErrors.ErrUnauthorized.Code, appErr.Code)
		})
	}
}
