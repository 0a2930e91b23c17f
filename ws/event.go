package ws

import (
	"fmt"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Command actions sent by clients as [action, id, payload].
const (
	ActionPing       = "ping"
	ActionRoomURL    = "bbb.room_url"
	ActionCallURL    = "bbb.call_url"
	ActionRecordings = "bbb.recordings"
	ActionPong       = "pong"
	ActionSuccess    = "success"
	ActionError      = "error"
	ActionCallInvite = "call.invite"
)

// Command is a client request. ID is echoed in the reply so the client can
// match answers to requests that complete out of order.
type Command struct {
	Action  string
	ID      jsoniter.RawMessage
	Payload jsoniter.RawMessage
}

// UnmarshalJSON reads the [action, id, payload] frame. Ping frames carry
// only [action, id].
func (c *Command) UnmarshalJSON(data []byte) error {
	var frame []jsoniter.RawMessage
	if err := json.Unmarshal(data, &frame); err != nil {
		return err
	}
	if len(frame) < 2 {
		return fmt.Errorf("frame has %d elements, want at least 2", len(frame))
	}
	if err := json.Unmarshal(frame[0], &c.Action); err != nil {
		return fmt.Errorf("invalid action: %w", err)
	}
	c.ID = frame[1]
	if len(frame) > 2 {
		c.Payload = frame[2]
	}
	return nil
}

// RoomPayload is the payload of bbb.room_url and bbb.recordings.
type RoomPayload struct {
	Room string `json:"room"`
}

// CallPayload is the payload of bbb.call_url.
type CallPayload struct {
	Call string `json:"call"`
}

// URLBody is the success body of the join commands.
type URLBody struct {
	URL string `json:"url"`
}

// ErrorBody is the payload of an error reply.
type ErrorBody struct {
	Code string `json:"code"`
}

// Event is a server frame. Replies carry the command ID; pushes do not.
type Event struct {
	Action string
	ID     jsoniter.RawMessage
	Data   any
}

// MarshalJSON writes replies as [action, id, data] and pushes as
// [action, data].
func (e Event) MarshalJSON() ([]byte, error) {
	if e.ID == nil {
		return json.Marshal([]any{e.Action, e.Data})
	}
	if e.Data == nil {
		return json.Marshal([]any{e.Action, e.ID})
	}
	return json.Marshal([]any{e.Action, e.ID, e.Data})
}

// CallInviteData is pushed to invitees of a new direct call.
type CallInviteData struct {
	Call string `json:"call"`
	From string `json:"from"`
}
