// Package services holds the business logic: server selection, call
// reconciliation, BigBlueButton orchestration and pool administration.
//
// Services never see http.Request; they take domain models and return them.
// Storage goes through repository interfaces.
package services

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/akinalp/stagecall/models"
	"github.com/akinalp/stagecall/pkg"
)

const tokenIssuer = "stagecall"

// AuthService validates the access tokens the platform hands to users.
type AuthService interface {
	ValidateAccessToken(tokenString string) (*models.TokenClaims, error)
	// IssueAccessToken signs a token for user. Used by the platform bridge
	// and by tests.
	IssueAccessToken(user *models.User) (string, error)
}

type authService struct {
	jwtSecret []byte
	accessExp time.Duration
}

// NewAuthService builds an AuthService with the shared HMAC secret.
func NewAuthService(jwtSecret string, accessExpMinutes int) AuthService {
	return &authService{
		jwtSecret: []byte(jwtSecret),
		accessExp: time.Duration(accessExpMinutes) * time.Minute,
	}
}

func (s *authService) ValidateAccessToken(tokenString string) (*models.TokenClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &models.TokenClaims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: invalid token", pkg.ErrUnauthorized)
	}

	claims, ok := token.Claims.(*models.TokenClaims)
	if !ok || !token.Valid || claims.UserID == "" {
		return nil, fmt.Errorf("%w: invalid token claims", pkg.ErrUnauthorized)
	}
	return claims, nil
}

func (s *authService) IssueAccessToken(user *models.User) (string, error) {
	now := time.Now()
	claims := &models.TokenClaims{
		UserID:  user.ID,
		EventID: user.EventID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.accessExp)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    tokenIssuer,
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("failed to sign access token: %w", err)
	}
	return signed, nil
}
