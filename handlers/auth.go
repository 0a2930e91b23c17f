// Package handlers holds the HTTP handlers.
//
// Handlers stay thin: parse the request, call a service, write the
// response. Business rules and storage live in services and repository.
package handlers

import (
	"net/http"

	jsoniter "github.com/json-iterator/go"

	"github.com/akinalp/stagecall/models"
	"github.com/akinalp/stagecall/pkg"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type contextKey string

// UserContextKey carries the authenticated *models.User. AuthMiddleware
// sets it.
const UserContextKey contextKey = "user"

// AuthHandler serves the identity of the caller.
type AuthHandler struct{}

// NewAuthHandler builds an AuthHandler.
func NewAuthHandler() *AuthHandler {
	return &AuthHandler{}
}

// Me returns the authenticated user.
//
//	GET /api/users/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	pkg.JSON(w, http.StatusOK, user)
}

// currentUser reads the user set by AuthMiddleware, writing a 401 when it
// is missing.
func currentUser(w http.ResponseWriter, r *http.Request) (*models.User, bool) {
	user, ok := r.Context().Value(UserContextKey).(*models.User)
	if !ok {
		pkg.ErrorWithMessage(w, http.StatusUnauthorized, "user not found in context")
		return nil, false
	}
	return user, true
}
