package repository

import (
	"context"

	"github.com/akinalp/stagecall/models"
)

// CallRepository stores calls and the invitees of direct calls. Lookups
// return the call with its Server populated.
type CallRepository interface {
	// Create fills ID, MeetingID and both passwords and inserts the call.
	// A second call for the same room fails with pkg.ErrAlreadyExists.
	Create(ctx context.Context, call *models.Call) error

	GetByID(ctx context.Context, id string) (*models.Call, error)
	GetByRoomID(ctx context.Context, roomID string) (*models.Call, error)

	// GetByIDForMember returns pkg.ErrNotFound both when the call does not
	// exist and when userID is not invited to it.
	GetByIDForMember(ctx context.Context, id, userID string) (*models.Call, error)

	UpdateServer(ctx context.Context, callID, serverID string) error
	UpdateRoomSettings(ctx context.Context, callID string, guestPolicy, voiceBridge *string) error

	AddInvites(ctx context.Context, callID string, userIDs []string) error
	ListInvites(ctx context.Context, callID string) ([]string, error)

	// MoveCalls reassigns every call of fromServerID and returns how many
	// were moved.
	MoveCalls(ctx context.Context, fromServerID, toServerID string) (int64, error)
}
