package repository

import (
	"context"

	"github.com/akinalp/stagecall/models"
)

// UserRepository reads and writes the users mirrored from the platform.
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
}
