package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/akinalp/stagecall/database"
	"github.com/akinalp/stagecall/models"
	"github.com/akinalp/stagecall/pkg"
)

type sqliteUserRepo struct {
	db database.TxQuerier
}

// NewSQLiteUserRepo returns the SQLite implementation.
func NewSQLiteUserRepo(db database.TxQuerier) UserRepository {
	return &sqliteUserRepo{db: db}
}

func (r *sqliteUserRepo) Create(ctx context.Context, user *models.User) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (id, event_id, display_name, avatar_url, is_admin, is_platform_admin)
		VALUES (?, ?, ?, ?, ?, ?)`,
		user.ID, user.EventID, user.DisplayName, user.AvatarURL, user.IsAdmin, user.IsPlatformAdmin,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: user %s", pkg.ErrAlreadyExists, user.ID)
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	return r.db.QueryRowContext(ctx,
		`SELECT created_at FROM users WHERE id = ?`, user.ID,
	).Scan(&user.CreatedAt)
}

func (r *sqliteUserRepo) GetByID(ctx context.Context, id string) (*models.User, error) {
	user := &models.User{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, event_id, display_name, avatar_url, is_admin, is_platform_admin, created_at
		FROM users WHERE id = ?`, id,
	).Scan(&user.ID, &user.EventID, &user.DisplayName, &user.AvatarURL,
		&user.IsAdmin, &user.IsPlatformAdmin, &user.CreatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkg.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}
