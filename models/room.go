package models

import (
	"strconv"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/rs/zerolog/log"
)

// ModuleTypeBBB marks a room module that embeds a BigBlueButton call.
const ModuleTypeBBB = "call.bigbluebutton"

// Room is a space of an event. Its modules come from the platform as a JSON
// list of {type, config} entries.
type Room struct {
	ID        string       `json:"id"`
	EventID   string       `json:"event_id"`
	Name      string       `json:"name"`
	Modules   []RoomModule `json:"module_config"`
	CreatedAt time.Time    `json:"created_at"`
}

// RoomModule is one entry of a room's module_config.
type RoomModule struct {
	Type   string              `json:"type"`
	Config jsoniter.RawMessage `json:"config,omitempty"`
}

// BBBRoomConfig is the config mapping of a call.bigbluebutton module.
type BBBRoomConfig struct {
	Record           bool        `json:"record"`
	VoiceBridge      VoiceBridge `json:"voice_bridge"`
	PreferServer     string      `json:"prefer_server"`
	WaitingRoom      bool        `json:"waiting_room"`
	AutoMicrophone   bool        `json:"auto_microphone"`
	AutoCamera       bool        `json:"auto_camera"`
	HidePresentation bool        `json:"hide_presentation"`
	MuteOnStart      bool        `json:"bbb_mute_on_start"`
	DisableCam       bool        `json:"bbb_disable_cam"`
	DisableChat      bool        `json:"bbb_disable_chat"`
	Presentation     string      `json:"presentation"`
}

// GuestPolicy derives the create guest policy from the waiting room flag.
func (c BBBRoomConfig) GuestPolicy() string {
	if c.WaitingRoom {
		return GuestPolicyAskModerator
	}
	return GuestPolicyAlwaysAccept
}

// VoiceBridge is the dial-in number of a room. The platform stores it as a
// string or as a number, so both are accepted.
type VoiceBridge string

// UnmarshalJSON accepts a JSON string, a JSON number or null.
func (v *VoiceBridge) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	switch {
	case raw == "null" || raw == "":
		*v = ""
	case strings.HasPrefix(raw, `"`):
		s, err := strconv.Unquote(raw)
		if err != nil {
			return err
		}
		*v = VoiceBridge(strings.TrimSpace(s))
	default:
		*v = VoiceBridge(raw)
	}
	return nil
}

// Ptr returns nil for an empty voice bridge.
func (v VoiceBridge) Ptr() *string {
	if v == "" {
		return nil
	}
	s := string(v)
	return &s
}

// BBBConfig returns the config of the room's first call.bigbluebutton
// module. ok is false when the room has no such module.
//
// A module whose config does not decode still counts as a call: the room
// keeps working with default settings and the problem is logged.
func (r *Room) BBBConfig() (cfg BBBRoomConfig, ok bool) {
	for _, m := range r.Modules {
		if m.Type != ModuleTypeBBB {
			continue
		}
		if len(m.Config) > 0 {
			if err := jsoniter.Unmarshal(m.Config, &cfg); err != nil {
				log.Warn().Err(err).
					Str("room_id", r.ID).
					Str("event_id", r.EventID).
					Msg("malformed video call config, using defaults")
				return BBBRoomConfig{}, true
			}
		}
		return cfg, true
	}
	return BBBRoomConfig{}, false
}

// RoomRole is the per-room role of a user.
type RoomRole string

const (
	RoomRoleNone      RoomRole = ""
	RoomRoleAttendee  RoomRole = "attendee"
	RoomRoleModerator RoomRole = "moderator"
)
