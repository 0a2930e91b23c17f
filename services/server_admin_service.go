package services

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/akinalp/stagecall/database"
	"github.com/akinalp/stagecall/models"
	"github.com/akinalp/stagecall/pkg"
	"github.com/akinalp/stagecall/pkg/crypto"
	"github.com/akinalp/stagecall/repository"
)

// ServerAdminService manages the conferencing server pool for platform
// admins. Secrets are sealed with AES-256-GCM before they are stored.
type ServerAdminService interface {
	List(ctx context.Context) ([]models.ConferencingServerAdminView, error)
	Get(ctx context.Context, id string) (*models.ConferencingServer, error)
	Create(ctx context.Context, req *models.CreateConferencingServerRequest) (*models.ConferencingServer, error)
	Update(ctx context.Context, id string, req *models.UpdateConferencingServerRequest) (*models.ConferencingServer, error)

	// Delete removes a server. Calls still placed on it are moved to
	// migrateTo first; without migrateTo a server with calls cannot be
	// deleted.
	Delete(ctx context.Context, id, migrateTo string) error

	// MoveRoom reassigns the call of roomID to serverID.
	MoveRoom(ctx context.Context, roomID, serverID string) error
}

type serverAdminService struct {
	db      *sql.DB
	servers repository.ConferencingServerRepository
	calls   repository.CallRepository
	key     []byte
}

// NewServerAdminService builds a ServerAdminService.
func NewServerAdminService(
	db *sql.DB,
	servers repository.ConferencingServerRepository,
	calls repository.CallRepository,
	key []byte,
) ServerAdminService {
	return &serverAdminService{db: db, servers: servers, calls: calls, key: key}
}

func (s *serverAdminService) List(ctx context.Context) ([]models.ConferencingServerAdminView, error) {
	views, err := s.servers.List(ctx)
	if err != nil {
		return nil, err
	}
	if views == nil {
		views = []models.ConferencingServerAdminView{}
	}
	return views, nil
}

func (s *serverAdminService) Get(ctx context.Context, id string) (*models.ConferencingServer, error) {
	return s.servers.GetByID(ctx, id)
}

func (s *serverAdminService) Create(ctx context.Context, req *models.CreateConferencingServerRequest) (*models.ConferencingServer, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", pkg.ErrBadRequest, err)
	}

	sealed, err := crypto.Encrypt(req.Secret, s.key)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt server secret: %w", err)
	}

	server := &models.ConferencingServer{
		URL:            req.URL,
		Secret:         sealed,
		Active:         req.Active == nil || *req.Active,
		RoomsOnly:      req.RoomsOnly,
		EventExclusive: req.EventExclusive,
	}
	if err := s.servers.Create(ctx, server); err != nil {
		return nil, err
	}

	log.Info().Str("server_id", server.ID).Str("server_url", server.URL).Msg("conferencing server added")
	return server, nil
}

func (s *serverAdminService) Update(ctx context.Context, id string, req *models.UpdateConferencingServerRequest) (*models.ConferencingServer, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", pkg.ErrBadRequest, err)
	}

	server, err := s.servers.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.URL != nil {
		server.URL = *req.URL
	}
	if req.Secret != nil {
		sealed, err := crypto.Encrypt(*req.Secret, s.key)
		if err != nil {
			return nil, fmt.Errorf("failed to encrypt server secret: %w", err)
		}
		server.Secret = sealed
	}
	if req.Active != nil {
		server.Active = *req.Active
	}
	if req.RoomsOnly != nil {
		server.RoomsOnly = *req.RoomsOnly
	}
	if req.EventExclusive != nil {
		if *req.EventExclusive == "" {
			server.EventExclusive = nil
		} else {
			server.EventExclusive = req.EventExclusive
		}
	}

	if err := s.servers.Update(ctx, server); err != nil {
		return nil, err
	}
	return server, nil
}

func (s *serverAdminService) Delete(ctx context.Context, id, migrateTo string) error {
	if migrateTo == id {
		return fmt.Errorf("%w: cannot migrate calls to the server being deleted", pkg.ErrBadRequest)
	}

	return database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		txServers := repository.NewSQLiteConferencingServerRepo(tx)
		txCalls := repository.NewSQLiteCallRepo(tx)

		if migrateTo != "" {
			target, err := txServers.GetByID(ctx, migrateTo)
			if err != nil {
				return fmt.Errorf("migration target: %w", err)
			}
			if !target.Active {
				return fmt.Errorf("%w: migration target is inactive", pkg.ErrBadRequest)
			}

			moved, err := txCalls.MoveCalls(ctx, id, migrateTo)
			if err != nil {
				return err
			}
			log.Info().Str("from", id).Str("to", migrateTo).Int64("calls", moved).Msg("calls migrated")
		}

		return txServers.Delete(ctx, id)
	})
}

func (s *serverAdminService) MoveRoom(ctx context.Context, roomID, serverID string) error {
	return database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		txServers := repository.NewSQLiteConferencingServerRepo(tx)
		txCalls := repository.NewSQLiteCallRepo(tx)

		server, err := txServers.GetByID(ctx, serverID)
		if err != nil {
			return err
		}
		if !server.Active {
			return fmt.Errorf("%w: server is inactive", pkg.ErrBadRequest)
		}

		call, err := txCalls.GetByRoomID(ctx, roomID)
		if err != nil {
			return err
		}
		return txCalls.UpdateServer(ctx, call.ID, server.ID)
	})
}
