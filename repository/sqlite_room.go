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

type sqliteRoomRepo struct {
	db database.TxQuerier
}

// NewSQLiteRoomRepo returns the SQLite implementation.
func NewSQLiteRoomRepo(db database.TxQuerier) RoomRepository {
	return &sqliteRoomRepo{db: db}
}

func (r *sqliteRoomRepo) Create(ctx context.Context, room *models.Room) error {
	if room.Modules == nil {
		room.Modules = []models.RoomModule{}
	}
	modules, err := jsoniter.MarshalToString(room.Modules)
	if err != nil {
		return fmt.Errorf("failed to encode room modules: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO rooms (id, event_id, name, module_config) VALUES (?, ?, ?, ?)`,
		room.ID, room.EventID, room.Name, modules,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: room %s", pkg.ErrAlreadyExists, room.ID)
		}
		return fmt.Errorf("failed to create room: %w", err)
	}

	return r.db.QueryRowContext(ctx,
		`SELECT created_at FROM rooms WHERE id = ?`, room.ID,
	).Scan(&room.CreatedAt)
}

func (r *sqliteRoomRepo) GetByID(ctx context.Context, id string) (*models.Room, error) {
	room := &models.Room{}
	var modules string

	err := r.db.QueryRowContext(ctx, `
		SELECT id, event_id, name, module_config, created_at FROM rooms WHERE id = ?`, id,
	).Scan(&room.ID, &room.EventID, &room.Name, &modules, &room.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkg.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get room: %w", err)
	}

	if err := jsoniter.UnmarshalFromString(modules, &room.Modules); err != nil {
		return nil, fmt.Errorf("failed to decode room modules: %w", err)
	}
	return room, nil
}

func (r *sqliteRoomRepo) GetRole(ctx context.Context, roomID, userID string) (models.RoomRole, error) {
	var role string
	err := r.db.QueryRowContext(ctx,
		`SELECT role FROM room_roles WHERE room_id = ? AND user_id = ?`, roomID, userID,
	).Scan(&role)
	if errors.Is(err, sql.ErrNoRows) {
		return models.RoomRoleNone, nil
	}
	if err != nil {
		return models.RoomRoleNone, fmt.Errorf("failed to get room role: %w", err)
	}
	return models.RoomRole(role), nil
}

func (r *sqliteRoomRepo) SetRole(ctx context.Context, roomID, userID string, role models.RoomRole) error {
	if role == models.RoomRoleNone {
		_, err := r.db.ExecContext(ctx,
			`DELETE FROM room_roles WHERE room_id = ? AND user_id = ?`, roomID, userID)
		if err != nil {
			return fmt.Errorf("failed to clear room role: %w", err)
		}
		return nil
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO room_roles (room_id, user_id, role) VALUES (?, ?, ?)
		ON CONFLICT(room_id, user_id) DO UPDATE SET role = excluded.role`,
		roomID, userID, string(role),
	)
	if err != nil {
		return fmt.Errorf("failed to set room role: %w", err)
	}
	return nil
}
