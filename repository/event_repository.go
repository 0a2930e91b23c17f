package repository

import (
	"context"

	"github.com/akinalp/stagecall/models"
)

// EventRepository reads and writes the events mirrored from the platform.
type EventRepository interface {
	Create(ctx context.Context, event *models.Event) error
	GetByID(ctx context.Context, id string) (*models.Event, error)
}
