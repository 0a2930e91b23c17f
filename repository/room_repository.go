package repository

import (
	"context"

	"github.com/akinalp/stagecall/models"
)

// RoomRepository reads and writes rooms and their per-user roles.
type RoomRepository interface {
	Create(ctx context.Context, room *models.Room) error
	GetByID(ctx context.Context, id string) (*models.Room, error)

	// GetRole returns models.RoomRoleNone when the user has no role.
	GetRole(ctx context.Context, roomID, userID string) (models.RoomRole, error)
	SetRole(ctx context.Context, roomID, userID string, role models.RoomRole) error
}
