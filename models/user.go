// Package models defines the domain types shared by the repository,
// services and transport layers.
package models

import "time"

// User is a member of an event. Profile fields mirror the platform's user
// profile: display name and an optional avatar URL.
type User struct {
	ID              string    `json:"id"`
	EventID         string    `json:"event_id"`
	DisplayName     string    `json:"display_name"`
	AvatarURL       string    `json:"avatar_url,omitempty"`
	IsAdmin         bool      `json:"is_admin"`
	IsPlatformAdmin bool      `json:"is_platform_admin"`
	CreatedAt       time.Time `json:"created_at"`
}

// HasProfile reports whether the user set a display name.
func (u *User) HasProfile() bool {
	return u.DisplayName != ""
}
