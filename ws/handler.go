// Package ws serves the live command channel: clients ask for join links
// and recordings over a WebSocket and receive direct-call invites.
//
// Frames are JSON arrays. Commands are [action, id, payload] and are
// answered with ["success", id, body] or ["error", id, {"code": ...}].
// Pushes have no id: [action, data].
package ws

import (
	"context"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/akinalp/stagecall/models"
)

// TokenValidator validates the access token passed in the query string.
// ws declares its own interfaces because services imports ws.
type TokenValidator interface {
	ValidateAccessToken(tokenString string) (*models.TokenClaims, error)
}

// UserGetter loads the user a token belongs to.
type UserGetter interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
}

// CallCommands serves the bbb.* commands.
type CallCommands interface {
	RoomURL(ctx context.Context, user *models.User, roomID string) (string, error)
	CallURL(ctx context.Context, user *models.User, callID string) (string, error)
	Recordings(ctx context.Context, user *models.User, roomID string) (*models.RecordingsResult, error)
}

// Handler upgrades authenticated requests to WebSocket connections.
type Handler struct {
	hub            *Hub
	tokenValidator TokenValidator
	users          UserGetter
	commands       CallCommands
	upgrader       websocket.Upgrader
}

// NewHandler builds a Handler. An empty allowedOrigins accepts any origin.
func NewHandler(hub *Hub, tokenValidator TokenValidator, users UserGetter, commands CallCommands, allowedOrigins []string) *Handler {
	return &Handler{
		hub:            hub,
		tokenValidator: tokenValidator,
		users:          users,
		commands:       commands,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		set[o] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || set[origin] || set["*"]
	}
}

// HandleConnection authenticates ?token=, upgrades the connection and
// blocks until it closes.
func (h *Handler) HandleConnection(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		http.Error(w, "missing token", http.StatusUnauthorized)
		return
	}

	claims, err := h.tokenValidator.ValidateAccessToken(token)
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	user, err := h.users.GetByID(r.Context(), claims.UserID)
	if err != nil {
		http.Error(w, "user not found", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Str("user_id", user.ID).Msg("ws upgrade failed")
		return
	}

	client := newClient(h.hub, conn, user, h.commands)
	select {
	case h.hub.register <- client:
	case <-h.hub.done:
		_ = conn.Close()
		return
	}

	go client.WritePump()
	client.ReadPump()
}
