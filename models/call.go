package models

import (
	"strings"
	"time"
)

// Guest policies understood by the create operation.
const (
	GuestPolicyAlwaysAccept = "ALWAYS_ACCEPT"
	GuestPolicyAskModerator = "ASK_MODERATOR"
)

// Call is the persistent meeting of a room, or of a direct call when RoomID
// is nil. There is at most one Call per room.
type Call struct {
	ID          string              `json:"id"`
	RoomID      *string             `json:"room_id"`
	EventID     string              `json:"event_id"`
	ServerID    string              `json:"server_id"`
	MeetingID   string              `json:"meeting_id"`
	AttendeePW  string              `json:"-"`
	ModeratorPW string              `json:"-"`
	VoiceBridge *string             `json:"voice_bridge"`
	GuestPolicy *string             `json:"guest_policy"`
	CreatedAt   time.Time           `json:"created_at"`
	Server      *ConferencingServer `json:"server,omitempty"`
}

// CreateParams are the query parameters of the create operation. They are
// built per request and never stored.
type CreateParams map[string]string

// CreateDirectCallRequest starts a call between the caller and Invitees.
type CreateDirectCallRequest struct {
	Invitees []string `json:"invitees" validate:"required,min=1,dive,required"`
}

// Validate trims the invitee ids and checks the payload.
func (r *CreateDirectCallRequest) Validate() error {
	for i, id := range r.Invitees {
		r.Invitees[i] = strings.TrimSpace(id)
	}
	return validate.Struct(r)
}

// DirectCall is returned when a direct call is started.
type DirectCall struct {
	ID      string   `json:"id"`
	Members []string `json:"members"`
}
