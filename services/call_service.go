package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/akinalp/stagecall/database"
	"github.com/akinalp/stagecall/models"
	"github.com/akinalp/stagecall/pkg"
	"github.com/akinalp/stagecall/repository"
)

// metaSource tags every meeting created by this service. BBB keeps meta_*
// parameters with the meeting and its recordings.
const metaSource = "eventyay"

// CallService keeps the persistent Call of a room or direct call in a
// usable state and derives the create parameters from it.
//
// Every entry point runs in one transaction: the lookup, a reselection of
// an inactive server and the cost bump commit or roll back together.
type CallService interface {
	// CreateParamsForRoom returns the create parameters of the room's call,
	// creating the call on first use. An inactive server is replaced and a
	// changed guest policy or voice bridge is written back.
	CreateParamsForRoom(ctx context.Context, room *models.Room, event *models.Event, cfg models.BBBRoomConfig) (models.CreateParams, *models.ConferencingServer, error)

	// CreateParamsForCallID returns the create parameters of a direct call.
	// It returns pkg.ErrNotFound when the call does not exist or userID is
	// not invited to it.
	CreateParamsForCallID(ctx context.Context, callID, userID string, record bool) (models.CreateParams, *models.ConferencingServer, error)

	// CallForRoom returns the room's call, or pkg.ErrNotFound.
	CallForRoom(ctx context.Context, roomID string) (*models.Call, error)

	// StartDirectCall creates a room-less call in eventID on a server chosen
	// by cost, inviting the creator and invitees.
	StartDirectCall(ctx context.Context, eventID, creatorID string, invitees []string) (*models.DirectCall, error)
}

type callService struct {
	db    *sql.DB
	calls repository.CallRepository
}

// NewCallService builds a CallService. calls serves the read-only lookups;
// writes use repositories bound to their own transaction on db.
func NewCallService(db *sql.DB, calls repository.CallRepository) CallService {
	return &callService{db: db, calls: calls}
}

func (s *callService) CreateParamsForRoom(
	ctx context.Context,
	room *models.Room,
	event *models.Event,
	cfg models.BBBRoomConfig,
) (models.CreateParams, *models.ConferencingServer, error) {
	guestPolicy := cfg.GuestPolicy()
	voiceBridge := cfg.VoiceBridge.Ptr()

	var call *models.Call
	err := database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		txCalls := repository.NewSQLiteCallRepo(tx)
		txServers := repository.NewSQLiteConferencingServerRepo(tx)

		// First join of the room: place a new call. Transactions take the
		// write lock up front and calls.room_id is UNIQUE, so two first
		// joins never both insert.
		existing, err := txCalls.GetByRoomID(ctx, room.ID)
		if errors.Is(err, pkg.ErrNotFound) {
			server, err := ChooseServer(ctx, txServers, ServerSelection{
				EventID:      room.EventID,
				ForRoom:      true,
				PreferServer: models.NormalizeServerURL(cfg.PreferServer),
			})
			if err != nil {
				return err
			}

			call = &models.Call{
				RoomID:      lo.ToPtr(room.ID),
				EventID:     room.EventID,
				ServerID:    server.ID,
				VoiceBridge: voiceBridge,
				GuestPolicy: &guestPolicy,
				Server:      server,
			}
			if err := txCalls.Create(ctx, call); err != nil {
				return fmt.Errorf("failed to create room call: %w", err)
			}
			log.Info().Str("room_id", room.ID).Str("server_url", server.URL).Msg("placed room call")
			return nil
		}
		if err != nil {
			return err
		}

		// The call keeps its meeting id and passwords when it moves; BBB
		// creates the meeting on the new server at the next create.
		call = existing
		if !call.Server.Active {
			if err := s.reassign(ctx, txCalls, txServers, call, ServerSelection{EventID: room.EventID, ForRoom: true}); err != nil {
				return err
			}
		}

		// Room settings may have been edited since the call was placed.
		if !sameString(call.GuestPolicy, &guestPolicy) || !sameString(call.VoiceBridge, voiceBridge) {
			call.GuestPolicy = &guestPolicy
			call.VoiceBridge = voiceBridge
			if err := txCalls.UpdateRoomSettings(ctx, call.ID, call.GuestPolicy, call.VoiceBridge); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	// Parameters for the create call. Private chat is locked unless the
	// event explicitly reopens it.
	params := models.CreateParams{
		"name":                           lo.Ternary(room.Name != "", room.Name, "Meeting"),
		"meetingID":                      call.MeetingID,
		"attendeePW":                     call.AttendeePW,
		"moderatorPW":                    call.ModeratorPW,
		"record":                         strconv.FormatBool(cfg.Record),
		"meta_Source":                    metaSource,
		"meta_Event":                     room.EventID,
		"meta_Room":                      room.ID,
		"muteOnStart":                    strconv.FormatBool(cfg.MuteOnStart),
		"lockSettingsDisablePrivateChat": strconv.FormatBool(event.Config.PrivateChatDisabled()),
		"lockSettingsDisableCam":         strconv.FormatBool(cfg.DisableCam),
		"lockSettingsDisablePublicChat":  strconv.FormatBool(cfg.DisableChat),
	}
	addOptional(params, call)
	return params, call.Server, nil
}

func (s *callService) CreateParamsForCallID(ctx context.Context, callID, userID string, record bool) (models.CreateParams, *models.ConferencingServer, error) {
	var call *models.Call
	err := database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		txCalls := repository.NewSQLiteCallRepo(tx)
		txServers := repository.NewSQLiteConferencingServerRepo(tx)

		// A call the user is not invited to looks exactly like a missing
		// one.
		found, err := txCalls.GetByIDForMember(ctx, callID, userID)
		if err != nil {
			return err
		}
		call = found

		if !call.Server.Active {
			return s.reassign(ctx, txCalls, txServers, call, ServerSelection{EventID: call.EventID})
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	// Direct calls have no room settings and never take the event's
	// private chat setting.
	params := models.CreateParams{
		"name":                           "Call",
		"meetingID":                      call.MeetingID,
		"attendeePW":                     call.AttendeePW,
		"moderatorPW":                    call.ModeratorPW,
		"record":                         strconv.FormatBool(record),
		"meta_Source":                    metaSource,
		"meta_Call":                      call.ID,
		"lockSettingsDisablePrivateChat": "true",
	}
	addOptional(params, call)
	return params, call.Server, nil
}

func (s *callService) CallForRoom(ctx context.Context, roomID string) (*models.Call, error) {
	return s.calls.GetByRoomID(ctx, roomID)
}

// StartDirectCall dedupes the member list and drops empty ids before the
// invites are stored. The creator is always a member.
func (s *callService) StartDirectCall(ctx context.Context, eventID, creatorID string, invitees []string) (*models.DirectCall, error) {
	members := lo.Uniq(append([]string{creatorID}, invitees...))
	members = lo.Compact(members)

	var call *models.Call
	err := database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		txCalls := repository.NewSQLiteCallRepo(tx)
		txServers := repository.NewSQLiteConferencingServerRepo(tx)

		server, err := ChooseServer(ctx, txServers, ServerSelection{EventID: eventID})
		if err != nil {
			return err
		}

		call = &models.Call{EventID: eventID, ServerID: server.ID, Server: server}
		if err := txCalls.Create(ctx, call); err != nil {
			return fmt.Errorf("failed to create direct call: %w", err)
		}
		return txCalls.AddInvites(ctx, call.ID, members)
	})
	if err != nil {
		return nil, err
	}

	log.Info().Str("call_id", call.ID).Str("event_id", eventID).Int("members", len(members)).Msg("started direct call")
	return &models.DirectCall{ID: call.ID, Members: members}, nil
}

// reassign moves call to a freshly selected server. The caller's
// transaction makes the selection, the cost bump and the update atomic.
func (s *callService) reassign(
	ctx context.Context,
	calls repository.CallRepository,
	servers repository.ConferencingServerRepository,
	call *models.Call,
	sel ServerSelection,
) error {
	server, err := ChooseServer(ctx, servers, sel)
	if err != nil {
		return err
	}
	if err := calls.UpdateServer(ctx, call.ID, server.ID); err != nil {
		return err
	}

	log.Warn().
		Str("call_id", call.ID).
		Str("from", call.Server.URL).
		Str("to", server.URL).
		Msg("call server inactive, reassigned")

	call.ServerID = server.ID
	call.Server = server
	return nil
}

// addOptional sets voiceBridge and guestPolicy only when the call has
// them. BBB picks its own defaults for missing parameters.
func addOptional(params models.CreateParams, call *models.Call) {
	if call.VoiceBridge != nil && *call.VoiceBridge != "" {
		params["voiceBridge"] = *call.VoiceBridge
	}
	if call.GuestPolicy != nil && *call.GuestPolicy != "" {
		params["guestPolicy"] = *call.GuestPolicy
	}
}

// sameString compares two optional strings; two nils are equal.
func sameString(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
