package middleware

import (
	"net/http"

	"github.com/akinalp/stagecall/handlers"
	"github.com/akinalp/stagecall/models"
	"github.com/akinalp/stagecall/pkg"
)

// PlatformAdminMiddleware restricts a route to platform admins. It runs
// after AuthMiddleware:
//
//	authMw.Require(platformAdminMw.Require(http.HandlerFunc(adminHandler.ListServers)))
type PlatformAdminMiddleware struct{}

// NewPlatformAdminMiddleware builds a PlatformAdminMiddleware.
func NewPlatformAdminMiddleware() *PlatformAdminMiddleware {
	return &PlatformAdminMiddleware{}
}

// Require answers 403 unless the context user is a platform admin.
func (m *PlatformAdminMiddleware) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := r.Context().Value(handlers.UserContextKey).(*models.User)
		if !ok {
			pkg.ErrorWithMessage(w, http.StatusUnauthorized, "user not found in context")
			return
		}

		if !user.IsPlatformAdmin {
			pkg.ErrorWithMessage(w, http.StatusForbidden, "platform admin access required")
			return
		}

		next.ServeHTTP(w, r)
	})
}
