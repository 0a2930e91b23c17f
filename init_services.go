package main

import (
	"database/sql"

	"github.com/akinalp/stagecall/config"
	"github.com/akinalp/stagecall/pkg/bbb"
	"github.com/akinalp/stagecall/pkg/ratelimit"
	"github.com/akinalp/stagecall/services"
	"github.com/akinalp/stagecall/ws"
)

// Services groups the business services.
type Services struct {
	Auth        services.AuthService
	Call        services.CallService
	BBB         services.BBBService
	LiveCall    services.LiveCallService
	ServerAdmin services.ServerAdminService
	CostUpdater services.CostUpdater

	// JoinLimiter is nil when join rate limiting is disabled.
	JoinLimiter *ratelimit.Limiter
}

func initServices(db *sql.DB, repos *Repositories, hub ws.EventPublisher, cfg *config.Config) *Services {
	client := bbb.NewClient(nil)
	key := cfg.Encryption.Key

	authService := services.NewAuthService(cfg.JWT.Secret, cfg.JWT.AccessTokenExpiry)
	callService := services.NewCallService(db, repos.Call)
	bbbService := services.NewBBBService(client, callService, repos.Server, cfg.BBB, cfg.Debug, key)
	liveCallService := services.NewLiveCallService(bbbService, callService, repos.Room, repos.Event, repos.User, hub)

	var joinLimiter *ratelimit.Limiter
	if cfg.RateLimit.JoinRequests > 0 {
		joinLimiter = ratelimit.New(cfg.RateLimit.JoinRequests, cfg.RateLimit.JoinWindow)
		liveCallService = services.NewJoinLimitedLiveCallService(liveCallService, joinLimiter)
	}

	serverAdminService := services.NewServerAdminService(db, repos.Server, repos.Call, key)
	costUpdater := services.NewCostUpdater(repos.Server, client, key, cfg.BBB.CostSchedule, cfg.BBB.RequestTimeout)

	return &Services{
		Auth:        authService,
		Call:        callService,
		BBB:         bbbService,
		LiveCall:    liveCallService,
		ServerAdmin: serverAdminService,
		CostUpdater: costUpdater,
		JoinLimiter: joinLimiter,
	}
}
