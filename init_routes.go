package main

import (
	"net/http"

	"github.com/akinalp/stagecall/middleware"
	"github.com/akinalp/stagecall/repository"
	"github.com/akinalp/stagecall/services"
)

func initRoutes(
	mux *http.ServeMux,
	h *Handlers,
	authService services.AuthService,
	userRepo repository.UserRepository,
) {
	authMw := middleware.NewAuthMiddleware(authService, userRepo)
	platformAdminMw := middleware.NewPlatformAdminMiddleware()

	auth := func(handler http.HandlerFunc) http.Handler {
		return authMw.Require(handler)
	}
	authAdmin := func(handler http.HandlerFunc) http.Handler {
		return authMw.Require(platformAdminMw.Require(handler))
	}

	mux.HandleFunc("GET /api/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok","service":"stagecall"}`))
	})

	mux.Handle("GET /api/users/me", auth(h.Auth.Me))

	// Video calls
	mux.Handle("POST /api/rooms/{roomId}/bbb/join", auth(h.BBB.RoomURL))
	mux.Handle("GET /api/rooms/{roomId}/bbb/recordings", auth(h.BBB.Recordings))
	mux.Handle("POST /api/calls", auth(h.BBB.StartCall))
	mux.Handle("POST /api/calls/{callId}/bbb/join", auth(h.BBB.CallURL))

	// Server pool administration
	mux.Handle("GET /api/admin/conferencing-servers", authAdmin(h.Admin.ListServers))
	mux.Handle("POST /api/admin/conferencing-servers", authAdmin(h.Admin.CreateServer))
	mux.Handle("POST /api/admin/conferencing-servers/update-costs", authAdmin(h.Admin.UpdateCosts))
	mux.Handle("GET /api/admin/conferencing-servers/{id}", authAdmin(h.Admin.GetServer))
	mux.Handle("PATCH /api/admin/conferencing-servers/{id}", authAdmin(h.Admin.UpdateServer))
	mux.Handle("DELETE /api/admin/conferencing-servers/{id}", authAdmin(h.Admin.DeleteServer))
	mux.Handle("POST /api/admin/rooms/{roomId}/move", authAdmin(h.Admin.MoveRoom))

	mux.Handle("GET /live/", h.Style)
	mux.HandleFunc("GET /ws", h.WS.HandleConnection)
}
