package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/akinalp/stagecall/database"
	"github.com/akinalp/stagecall/models"
	"github.com/akinalp/stagecall/pkg"
)

type sqliteConferencingServerRepo struct {
	db database.TxQuerier
}

// NewSQLiteConferencingServerRepo returns the SQLite implementation.
func NewSQLiteConferencingServerRepo(db database.TxQuerier) ConferencingServerRepository {
	return &sqliteConferencingServerRepo{db: db}
}

const serverColumns = `s.id, s.url, s.secret, s.active, s.rooms_only, s.event_exclusive, s.cost, s.created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanServer(row rowScanner, extra ...any) (*models.ConferencingServer, error) {
	s := &models.ConferencingServer{}
	var exclusive sql.NullString
	dest := append([]any{
		&s.ID, &s.URL, &s.Secret, &s.Active, &s.RoomsOnly, &exclusive, &s.Cost, &s.CreatedAt,
	}, extra...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	s.EventExclusive = stringPtr(exclusive)
	return s, nil
}

func (r *sqliteConferencingServerRepo) Create(ctx context.Context, server *models.ConferencingServer) error {
	server.ID = uuid.NewString()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO conferencing_servers (id, url, secret, active, rooms_only, event_exclusive, cost)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		server.ID, server.URL, server.Secret, server.Active, server.RoomsOnly,
		nullString(server.EventExclusive), server.Cost,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: server url already registered", pkg.ErrAlreadyExists)
		}
		if isForeignKeyViolation(err) {
			return fmt.Errorf("%w: unknown event", pkg.ErrBadRequest)
		}
		return fmt.Errorf("failed to create conferencing server: %w", err)
	}

	return r.db.QueryRowContext(ctx,
		`SELECT created_at FROM conferencing_servers WHERE id = ?`, server.ID,
	).Scan(&server.CreatedAt)
}

func (r *sqliteConferencingServerRepo) GetByID(ctx context.Context, id string) (*models.ConferencingServer, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+serverColumns+` FROM conferencing_servers s WHERE s.id = ?`, id)

	server, err := scanServer(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkg.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get conferencing server: %w", err)
	}
	return server, nil
}

func (r *sqliteConferencingServerRepo) Update(ctx context.Context, server *models.ConferencingServer) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE conferencing_servers
		SET url = ?, secret = ?, active = ?, rooms_only = ?, event_exclusive = ?
		WHERE id = ?`,
		server.URL, server.Secret, server.Active, server.RoomsOnly,
		nullString(server.EventExclusive), server.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: server url already registered", pkg.ErrAlreadyExists)
		}
		if isForeignKeyViolation(err) {
			return fmt.Errorf("%w: unknown event", pkg.ErrBadRequest)
		}
		return fmt.Errorf("failed to update conferencing server: %w", err)
	}
	return requireAffected(result)
}

func (r *sqliteConferencingServerRepo) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM conferencing_servers WHERE id = ?`, id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("%w: server still hosts calls", pkg.ErrBadRequest)
		}
		return fmt.Errorf("failed to delete conferencing server: %w", err)
	}
	return requireAffected(result)
}

func (r *sqliteConferencingServerRepo) List(ctx context.Context) ([]models.ConferencingServerAdminView, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+serverColumns+`,
			(SELECT COUNT(*) FROM calls c WHERE c.server_id = s.id) AS call_count
		FROM conferencing_servers s
		ORDER BY s.created_at, s.rowid`)
	if err != nil {
		return nil, fmt.Errorf("failed to list conferencing servers: %w", err)
	}
	defer rows.Close()

	var views []models.ConferencingServerAdminView
	for rows.Next() {
		var count int
		server, err := scanServer(rows, &count)
		if err != nil {
			return nil, fmt.Errorf("failed to scan conferencing server: %w", err)
		}
		views = append(views, models.ConferencingServerAdminView{ConferencingServer: *server, CallCount: count})
	}
	return views, rows.Err()
}

func (r *sqliteConferencingServerRepo) ListActive(ctx context.Context) ([]models.ConferencingServer, error) {
	return r.listServers(ctx, `
		SELECT `+serverColumns+` FROM conferencing_servers s
		WHERE s.active = 1
		ORDER BY s.created_at, s.rowid`)
}

func (r *sqliteConferencingServerRepo) ListForEvent(ctx context.Context, eventID string) ([]models.ConferencingServer, error) {
	return r.listServers(ctx, `
		SELECT `+serverColumns+` FROM conferencing_servers s
		WHERE s.active = 1 AND (s.event_exclusive = ? OR s.event_exclusive IS NULL)
		ORDER BY s.created_at, s.rowid`, eventID)
}

func (r *sqliteConferencingServerRepo) listServers(ctx context.Context, query string, args ...any) ([]models.ConferencingServer, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list conferencing servers: %w", err)
	}
	defer rows.Close()

	var servers []models.ConferencingServer
	for rows.Next() {
		server, err := scanServer(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan conferencing server: %w", err)
		}
		servers = append(servers, *server)
	}
	return servers, rows.Err()
}

func (r *sqliteConferencingServerRepo) ListCandidates(ctx context.Context, eventID string, forRoom bool) ([]models.ServerCandidate, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if forRoom {
		rows, err = r.db.QueryContext(ctx, `
			SELECT `+serverColumns+`,
				(SELECT COUNT(*) FROM calls c
				 INNER JOIN rooms rm ON rm.id = c.room_id
				 WHERE rm.event_id = ? AND c.server_id = s.id) AS relevant_cost
			FROM conferencing_servers s
			WHERE s.active = 1
			ORDER BY relevant_cost ASC, s.id`, eventID)
	} else {
		rows, err = r.db.QueryContext(ctx, `
			SELECT `+serverColumns+`, s.cost AS relevant_cost
			FROM conferencing_servers s
			WHERE s.active = 1 AND s.rooms_only = 0
			ORDER BY relevant_cost ASC, s.id`)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list server candidates: %w", err)
	}
	defer rows.Close()

	var candidates []models.ServerCandidate
	for rows.Next() {
		var relevant int
		server, err := scanServer(rows, &relevant)
		if err != nil {
			return nil, fmt.Errorf("failed to scan server candidate: %w", err)
		}
		candidates = append(candidates, models.ServerCandidate{ConferencingServer: *server, RelevantCost: relevant})
	}
	return candidates, rows.Err()
}

func (r *sqliteConferencingServerRepo) IncrementCost(ctx context.Context, id string, delta int) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE conferencing_servers SET cost = cost + ? WHERE id = ?`, delta, id)
	if err != nil {
		return fmt.Errorf("failed to increment server cost: %w", err)
	}
	return requireAffected(result)
}

func (r *sqliteConferencingServerRepo) SetCost(ctx context.Context, id string, cost int) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE conferencing_servers SET cost = ? WHERE id = ?`, cost, id)
	if err != nil {
		return fmt.Errorf("failed to set server cost: %w", err)
	}
	return requireAffected(result)
}
