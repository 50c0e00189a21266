// Package services contains the core business logic for the reporter.
package services

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Role represents the permission level of a dashboard token.
type Role string

const (
	RoleAdmin  Role = "admin"  // Can delete reports and issue viewer tokens
	RoleViewer Role = "viewer" // Can only read and stream reports
)

// Claims represents the JWT payload for authenticated requests.
// The subject names the token holder and is logged with each request.
type Claims struct {
	Role Role `json:"role"`
	jwt.RegisteredClaims
}

// AuthService handles JWT token generation and validation for dashboard access.
type AuthService struct {
	secret              []byte
	adminTokenDuration  time.Duration
	viewerTokenDuration time.Duration
}

// NewAuthService creates an AuthService with the given signing secret and token durations.
func NewAuthService(secret string, adminDuration, viewerDuration time.Duration) *AuthService {
	return &AuthService{
		secret:              []byte(secret),
		adminTokenDuration:  adminDuration,
		viewerTokenDuration: viewerDuration,
	}
}

// GenerateToken creates a signed JWT for the given subject and role.
// Viewer tokens have their own expiry so they can be handed out for longer.
func (s *AuthService) GenerateToken(subject string, role Role) (string, time.Time, error) {
	duration := s.viewerTokenDuration
	if role == RoleAdmin {
		duration = s.adminTokenDuration
	}
	expiresAt := time.Now().Add(duration)

	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "songify-reporter",
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// ValidateToken verifies the JWT signature and expiry, returning the claims if valid.
func (s *AuthService) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.secret, nil
	})

	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}

	return nil, errors.New("invalid token")
}
