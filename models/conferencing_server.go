package models

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// ConferencingServer is one BigBlueButton server of the pool.
//
// Secret is decrypted when loaded through the services layer and is never
// serialized to clients.
type ConferencingServer struct {
	ID             string    `json:"id"`
	URL            string    `json:"url"`
	Secret         string    `json:"-"`
	Active         bool      `json:"active"`
	RoomsOnly      bool      `json:"rooms_only"`
	EventExclusive *string   `json:"event_exclusive"`
	Cost           int       `json:"cost"`
	CreatedAt      time.Time `json:"created_at"`
}

// Shared reports whether the server is not reserved for any event.
func (s *ConferencingServer) Shared() bool {
	return s.EventExclusive == nil
}

// ExclusiveTo reports whether the server is reserved for eventID.
func (s *ConferencingServer) ExclusiveTo(eventID string) bool {
	return s.EventExclusive != nil && *s.EventExclusive == eventID
}

// ServerCandidate is an active server annotated with the load value the
// selector ranks on: the number of the event's room calls placed on it when
// placing a room, or its cost when placing a direct call.
type ServerCandidate struct {
	ConferencingServer
	RelevantCost int `json:"relevant_cost"`
}

// ConferencingServerAdminView is the admin listing row.
type ConferencingServerAdminView struct {
	ConferencingServer
	CallCount int `json:"call_count"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// CreateConferencingServerRequest is the admin payload for a new server.
type CreateConferencingServerRequest struct {
	URL            string  `json:"url" validate:"required,url"`
	Secret         string  `json:"secret" validate:"required"`
	Active         *bool   `json:"active"`
	RoomsOnly      bool    `json:"rooms_only"`
	EventExclusive *string `json:"event_exclusive" validate:"omitempty,min=1"`
}

// Validate trims the payload and checks it.
func (r *CreateConferencingServerRequest) Validate() error {
	r.URL = NormalizeServerURL(r.URL)
	r.Secret = strings.TrimSpace(r.Secret)
	return validate.Struct(r)
}

// UpdateConferencingServerRequest changes only the fields that are set. An
// empty event_exclusive string clears the exclusivity.
type UpdateConferencingServerRequest struct {
	URL            *string `json:"url" validate:"omitempty,url"`
	Secret         *string `json:"secret" validate:"omitempty,min=1"`
	Active         *bool   `json:"active"`
	RoomsOnly      *bool   `json:"rooms_only"`
	EventExclusive *string `json:"event_exclusive"`
}

// Validate trims the payload and checks it.
func (r *UpdateConferencingServerRequest) Validate() error {
	if r.URL != nil {
		u := NormalizeServerURL(*r.URL)
		r.URL = &u
	}
	if r.Secret != nil {
		s := strings.TrimSpace(*r.Secret)
		r.Secret = &s
	}
	return validate.Struct(r)
}

// MoveRoomRequest reassigns the call of a room to another server.
type MoveRoomRequest struct {
	ServerID string `json:"server_id" validate:"required"`
}

// Validate checks the payload.
func (r *MoveRoomRequest) Validate() error {
	r.ServerID = strings.TrimSpace(r.ServerID)
	return validate.Struct(r)
}

// NormalizeServerURL trims the URL and makes sure it ends with a slash, so
// "api/<operation>" can be appended to it.
func NormalizeServerURL(raw string) string {
	u := strings.TrimSpace(raw)
	if u != "" && !strings.HasSuffix(u, "/") {
		u += "/"
	}
	return u
}
