// Package repository is the storage layer. Every repository is an interface
// with a SQLite implementation built on database.TxQuerier, so the same code
// runs on the pool or inside database.WithTx.
package repository

import (
	"context"

	"github.com/akinalp/stagecall/models"
)

// ConferencingServerRepository stores the BigBlueButton server pool.
// Secrets are stored as given; encryption happens in the services layer.
type ConferencingServerRepository interface {
	Create(ctx context.Context, server *models.ConferencingServer) error
	GetByID(ctx context.Context, id string) (*models.ConferencingServer, error)
	Update(ctx context.Context, server *models.ConferencingServer) error
	Delete(ctx context.Context, id string) error

	// List returns every server with the number of calls placed on it.
	List(ctx context.Context) ([]models.ConferencingServerAdminView, error)

	// ListActive returns every active server.
	ListActive(ctx context.Context) ([]models.ConferencingServer, error)

	// ListForEvent returns the active servers that are exclusive to eventID
	// or shared, in a stable order.
	ListForEvent(ctx context.Context, eventID string) ([]models.ConferencingServer, error)

	// ListCandidates returns the active servers a new call may be placed on,
	// ordered by relevant cost ascending.
	//
	// forRoom=true: relevant cost is the number of calls of eventID's rooms
	// already on the server. forRoom=false: rooms_only servers are excluded
	// and relevant cost is the server's cost column.
	ListCandidates(ctx context.Context, eventID string, forRoom bool) ([]models.ServerCandidate, error)

	// IncrementCost adds delta to the cost column in a single UPDATE.
	IncrementCost(ctx context.Context, id string, delta int) error

	// SetCost overwrites the cost column.
	SetCost(ctx context.Context, id string, cost int) error
}
