package models

import "time"

// Event is the tenant owning rooms, users and optionally servers.
type Event struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	Domain    string      `json:"domain"`
	Timezone  string      `json:"timezone"`
	Config    EventConfig `json:"config"`
	CreatedAt time.Time   `json:"created_at"`
}

// EventConfig holds the event settings read by the call integration.
type EventConfig struct {
	DisablePrivateChat *bool `json:"bbb_disable_privatechat,omitempty"`
}

// PrivateChatDisabled reports the lock setting for private chat. It is on
// unless the event turns it off explicitly.
func (c EventConfig) PrivateChatDisabled() bool {
	if c.DisablePrivateChat == nil {
		return true
	}
	return *c.DisablePrivateChat
}
