package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	jsoniter "github.com/json-iterator/go"

	"github.com/akinalp/stagecall/database"
	"github.com/akinalp/stagecall/models"
	"github.com/akinalp/stagecall/pkg"
)

type sqliteEventRepo struct {
	db database.TxQuerier
}

// NewSQLiteEventRepo returns the SQLite implementation.
func NewSQLiteEventRepo(db database.TxQuerier) EventRepository {
	return &sqliteEventRepo{db: db}
}

func (r *sqliteEventRepo) Create(ctx context.Context, event *models.Event) error {
	config, err := jsoniter.MarshalToString(event.Config)
	if err != nil {
		return fmt.Errorf("failed to encode event config: %w", err)
	}
	if event.Timezone == "" {
		event.Timezone = "UTC"
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO events (id, name, domain, timezone, config) VALUES (?, ?, ?, ?, ?)`,
		event.ID, event.Name, event.Domain, event.Timezone, config,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: event %s", pkg.ErrAlreadyExists, event.ID)
		}
		return fmt.Errorf("failed to create event: %w", err)
	}

	return r.db.QueryRowContext(ctx,
		`SELECT created_at FROM events WHERE id = ?`, event.ID,
	).Scan(&event.CreatedAt)
}

func (r *sqliteEventRepo) GetByID(ctx context.Context, id string) (*models.Event, error) {
	event := &models.Event{}
	var config string

	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, domain, timezone, config, created_at FROM events WHERE id = ?`, id,
	).Scan(&event.ID, &event.Name, &event.Domain, &event.Timezone, &config, &event.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkg.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get event: %w", err)
	}

	if err := jsoniter.UnmarshalFromString(config, &event.Config); err != nil {
		return nil, fmt.Errorf("failed to decode event config: %w", err)
	}
	return event, nil
}
