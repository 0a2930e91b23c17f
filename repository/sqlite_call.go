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

type sqliteCallRepo struct {
	db database.TxQuerier
}

// NewSQLiteCallRepo returns the SQLite implementation.
func NewSQLiteCallRepo(db database.TxQuerier) CallRepository {
	return &sqliteCallRepo{db: db}
}

const callSelect = `
	SELECT c.id, c.room_id, c.event_id, c.server_id, c.meeting_id, c.attendee_pw, c.moderator_pw,
		c.voice_bridge, c.guest_policy, c.created_at, ` + serverColumns + `
	FROM calls c
	INNER JOIN conferencing_servers s ON s.id = c.server_id`

func scanCall(row rowScanner) (*models.Call, error) {
	c := &models.Call{}
	var roomID, voiceBridge, guestPolicy sql.NullString

	server, err := scanServerAfter(row,
		&c.ID, &roomID, &c.EventID, &c.ServerID, &c.MeetingID, &c.AttendeePW, &c.ModeratorPW,
		&voiceBridge, &guestPolicy, &c.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	c.RoomID = stringPtr(roomID)
	c.VoiceBridge = stringPtr(voiceBridge)
	c.GuestPolicy = stringPtr(guestPolicy)
	c.Server = server
	return c, nil
}

// scanServerAfter scans prefix columns followed by serverColumns.
func scanServerAfter(row rowScanner, prefix ...any) (*models.ConferencingServer, error) {
	s := &models.ConferencingServer{}
	var exclusive sql.NullString
	dest := append(prefix,
		&s.ID, &s.URL, &s.Secret, &s.Active, &s.RoomsOnly, &exclusive, &s.Cost, &s.CreatedAt,
	)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	s.EventExclusive = stringPtr(exclusive)
	return s, nil
}

func (r *sqliteCallRepo) Create(ctx context.Context, call *models.Call) error {
	call.ID = uuid.NewString()
	call.MeetingID = randomToken()
	call.AttendeePW = randomToken()[:16]
	call.ModeratorPW = randomToken()[:16]

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO calls (id, room_id, event_id, server_id, meeting_id, attendee_pw, moderator_pw, voice_bridge, guest_policy)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		call.ID, nullString(call.RoomID), call.EventID, call.ServerID, call.MeetingID,
		call.AttendeePW, call.ModeratorPW, nullString(call.VoiceBridge), nullString(call.GuestPolicy),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: room already has a call", pkg.ErrAlreadyExists)
		}
		return fmt.Errorf("failed to create call: %w", err)
	}

	return r.db.QueryRowContext(ctx,
		`SELECT created_at FROM calls WHERE id = ?`, call.ID,
	).Scan(&call.CreatedAt)
}

func (r *sqliteCallRepo) getOne(ctx context.Context, what, query string, args ...any) (*models.Call, error) {
	call, err := scanCall(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkg.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get call by %s: %w", what, err)
	}
	return call, nil
}

func (r *sqliteCallRepo) GetByID(ctx context.Context, id string) (*models.Call, error) {
	return r.getOne(ctx, "id", callSelect+` WHERE c.id = ?`, id)
}

func (r *sqliteCallRepo) GetByRoomID(ctx context.Context, roomID string) (*models.Call, error) {
	return r.getOne(ctx, "room", callSelect+` WHERE c.room_id = ?`, roomID)
}

func (r *sqliteCallRepo) GetByIDForMember(ctx context.Context, id, userID string) (*models.Call, error) {
	return r.getOne(ctx, "member", callSelect+`
		INNER JOIN call_invites ci ON ci.call_id = c.id
		WHERE c.id = ? AND ci.user_id = ?`, id, userID)
}

func (r *sqliteCallRepo) UpdateServer(ctx context.Context, callID, serverID string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE calls SET server_id = ? WHERE id = ?`, serverID, callID)
	if err != nil {
		return fmt.Errorf("failed to update call server: %w", err)
	}
	return requireAffected(result)
}

func (r *sqliteCallRepo) UpdateRoomSettings(ctx context.Context, callID string, guestPolicy, voiceBridge *string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE calls SET guest_policy = ?, voice_bridge = ? WHERE id = ?`,
		nullString(guestPolicy), nullString(voiceBridge), callID)
	if err != nil {
		return fmt.Errorf("failed to update call settings: %w", err)
	}
	return requireAffected(result)
}

func (r *sqliteCallRepo) AddInvites(ctx context.Context, callID string, userIDs []string) error {
	for _, userID := range userIDs {
		if _, err := r.db.ExecContext(ctx,
			`INSERT OR IGNORE INTO call_invites (call_id, user_id) VALUES (?, ?)`, callID, userID,
		); err != nil {
			if isForeignKeyViolation(err) {
				return fmt.Errorf("%w: unknown user %s", pkg.ErrBadRequest, userID)
			}
			return fmt.Errorf("failed to add call invite: %w", err)
		}
	}
	return nil
}

func (r *sqliteCallRepo) ListInvites(ctx context.Context, callID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT user_id FROM call_invites WHERE call_id = ? ORDER BY user_id`, callID)
	if err != nil {
		return nil, fmt.Errorf("failed to list call invites: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan call invite: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *sqliteCallRepo) MoveCalls(ctx context.Context, fromServerID, toServerID string) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE calls SET server_id = ? WHERE server_id = ?`, toServerID, fromServerID)
	if err != nil {
		return 0, fmt.Errorf("failed to move calls: %w", err)
	}
	return result.RowsAffected()
}
