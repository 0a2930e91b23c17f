package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/akinalp/stagecall/models"
	"github.com/akinalp/stagecall/pkg"
	"github.com/akinalp/stagecall/repository"
	"github.com/akinalp/stagecall/ws"
)

// LiveCallService is the entry point of the HTTP and WebSocket surfaces.
// It resolves the room and event, enforces tenancy and room roles, then
// delegates to BBBService and CallService. Invitees of a new direct call
// get a call.invite push on their open connections.
type LiveCallService interface {
	RoomURL(ctx context.Context, user *models.User, roomID string) (string, error)
	CallURL(ctx context.Context, user *models.User, callID string) (string, error)
	Recordings(ctx context.Context, user *models.User, roomID string) (*models.RecordingsResult, error)
	StartDirectCall(ctx context.Context, user *models.User, req *models.CreateDirectCallRequest) (*models.DirectCall, error)
}

type liveCallService struct {
	bbb    BBBService
	calls  CallService
	rooms  repository.RoomRepository
	events repository.EventRepository
	users  repository.UserRepository
	hub    ws.EventPublisher
}

// NewLiveCallService builds a LiveCallService.
func NewLiveCallService(
	bbb BBBService,
	calls CallService,
	rooms repository.RoomRepository,
	events repository.EventRepository,
	users repository.UserRepository,
	hub ws.EventPublisher,
) LiveCallService {
	return &liveCallService{bbb: bbb, calls: calls, rooms: rooms, events: events, users: users, hub: hub}
}

func (s *liveCallService) RoomURL(ctx context.Context, user *models.User, roomID string) (string, error) {
	room, event, err := s.callRoom(ctx, user, roomID)
	if err != nil {
		return "", err
	}

	role, err := s.role(ctx, user, room)
	if err != nil {
		return "", err
	}
	if role == models.RoomRoleNone {
		return "", fmt.Errorf("%w: no role in room", pkg.ErrForbidden)
	}
	if !user.HasProfile() {
		return "", pkg.ErrMissingProfile
	}

	return s.bbb.JoinURLForRoom(ctx, event, room, user, role == models.RoomRoleModerator)
}

func (s *liveCallService) CallURL(ctx context.Context, user *models.User, callID string) (string, error) {
	if !user.HasProfile() {
		return "", pkg.ErrMissingProfile
	}

	event, err := s.events.GetByID(ctx, user.EventID)
	if err != nil {
		return "", err
	}
	return s.bbb.JoinURLForCallID(ctx, event, callID, user)
}

func (s *liveCallService) Recordings(ctx context.Context, user *models.User, roomID string) (*models.RecordingsResult, error) {
	room, event, err := s.callRoom(ctx, user, roomID)
	if err != nil {
		return nil, err
	}

	role, err := s.role(ctx, user, room)
	if err != nil {
		return nil, err
	}
	if role != models.RoomRoleModerator {
		return nil, fmt.Errorf("%w: recordings require moderator", pkg.ErrForbidden)
	}

	return s.bbb.RecordingsForRoom(ctx, event, room)
}

func (s *liveCallService) StartDirectCall(ctx context.Context, user *models.User, req *models.CreateDirectCallRequest) (*models.DirectCall, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", pkg.ErrBadRequest, err)
	}

	for _, id := range req.Invitees {
		invitee, err := s.users.GetByID(ctx, id)
		if errors.Is(err, pkg.ErrNotFound) || (err == nil && invitee.EventID != user.EventID) {
			return nil, fmt.Errorf("%w: unknown invitee %s", pkg.ErrBadRequest, id)
		}
		if err != nil {
			return nil, err
		}
	}

	direct, err := s.calls.StartDirectCall(ctx, user.EventID, user.ID, req.Invitees)
	if err != nil {
		return nil, err
	}

	// Offline invitees reach the call through the call-id join later.
	for _, id := range direct.Members {
		if id == user.ID {
			continue
		}
		if !s.hub.IsOnline(id) {
			log.Debug().Str("call_id", direct.ID).Str("user_id", id).Msg("invitee offline, no invite pushed")
			continue
		}
		s.hub.BroadcastToUser(id, ws.Event{
			Action: ws.ActionCallInvite,
			Data:   ws.CallInviteData{Call: direct.ID, From: user.ID},
		})
	}
	return direct, nil
}

// callRoom loads a room of the user's event that has a video call module.
// Rooms of other events are reported as missing.
func (s *liveCallService) callRoom(ctx context.Context, user *models.User, roomID string) (*models.Room, *models.Event, error) {
	room, err := s.rooms.GetByID(ctx, roomID)
	if err != nil {
		return nil, nil, err
	}
	if room.EventID != user.EventID {
		return nil, nil, pkg.ErrNotFound
	}
	if _, ok := room.BBBConfig(); !ok {
		return nil, nil, fmt.Errorf("%w: room has no video call", pkg.ErrNotFound)
	}

	event, err := s.events.GetByID(ctx, room.EventID)
	if err != nil {
		return nil, nil, err
	}
	return room, event, nil
}

// role resolves the user's role in room. Event admins moderate everywhere.
func (s *liveCallService) role(ctx context.Context, user *models.User, room *models.Room) (models.RoomRole, error) {
	if user.IsAdmin {
		return models.RoomRoleModerator, nil
	}
	return s.rooms.GetRole(ctx, room.ID, user.ID)
}
