package main

import (
	"github.com/akinalp/stagecall/config"
	"github.com/akinalp/stagecall/handlers"
	"github.com/akinalp/stagecall/static"
	"github.com/akinalp/stagecall/ws"
)

// Handlers groups the HTTP and WebSocket handlers.
type Handlers struct {
	Auth  *handlers.AuthHandler
	BBB   *handlers.BBBHandler
	Admin *handlers.AdminHandler
	Style *handlers.StyleHandler
	WS    *ws.Handler
}

func initHandlers(svcs *Services, repos *Repositories, hub *ws.Hub, cfg *config.Config) *Handlers {
	return &Handlers{
		Auth:  handlers.NewAuthHandler(),
		BBB:   handlers.NewBBBHandler(svcs.LiveCall),
		Admin: handlers.NewAdminHandler(svcs.ServerAdmin, svcs.CostUpdater),
		Style: handlers.NewStyleHandler(static.AssetsFS),
		WS:    ws.NewHandler(hub, svcs.Auth, repos.User, svcs.LiveCall, cfg.CORS.AllowedOrigins),
	}
}
