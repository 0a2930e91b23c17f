package models

import "github.com/golang-jwt/jwt/v5"

// TokenClaims is the payload of an access token. The platform issues the
// token; this service only validates it.
type TokenClaims struct {
	UserID  string `json:"user_id"`
	EventID string `json:"event_id"`
	jwt.RegisteredClaims
}
