package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akinalp/stagecall/models"
	"github.com/akinalp/stagecall/pkg"
)

func bbbConfig(t *testing.T, room *models.Room) models.BBBRoomConfig {
	t.Helper()
	cfg, ok := room.BBBConfig()
	require.True(t, ok)
	return cfg
}

func TestCreateParamsForRoomCreatesCallOnce(t *testing.T) {
	h := newHarness(t)
	server := h.addServer(t, "https://a.example/", nil)
	room := h.addRoom(t, "r1", "ev1", `{"record":true,"bbb_mute_on_start":true,"bbb_disable_chat":true}`)
	event := h.event(t, "ev1")

	params, got, err := h.callSvc.CreateParamsForRoom(h.ctx, room, event, bbbConfig(t, room))
	require.NoError(t, err)
	assert.Equal(t, server.ID, got.ID)

	assert.Equal(t, "Room r1", params["name"])
	assert.Equal(t, "true", params["record"])
	assert.Equal(t, "eventyay", params["meta_Source"])
	assert.Equal(t, "ev1", params["meta_Event"])
	assert.Equal(t, "r1", params["meta_Room"])
	assert.Equal(t, "true", params["muteOnStart"])
	assert.Equal(t, "true", params["lockSettingsDisablePrivateChat"], "private chat is locked unless the event opts out")
	assert.Equal(t, "false", params["lockSettingsDisableCam"])
	assert.Equal(t, "true", params["lockSettingsDisablePublicChat"])
	assert.Equal(t, models.GuestPolicyAlwaysAccept, params["guestPolicy"])
	assert.NotContains(t, params, "voiceBridge")
	assert.NotEmpty(t, params["meetingID"])
	assert.NotEqual(t, params["attendeePW"], params["moderatorPW"])

	again, _, err := h.callSvc.CreateParamsForRoom(h.ctx, room, event, bbbConfig(t, room))
	require.NoError(t, err)
	assert.Equal(t, params["meetingID"], again["meetingID"])
	assert.Equal(t, 1, h.countRoomCalls(t, "r1"))
}

func TestCreateParamsForRoomHonoursPreferredServer(t *testing.T) {
	h := newHarness(t)
	h.addServer(t, "https://a.example/", nil)
	preferred := h.addServer(t, "https://b.example/", func(s *models.ConferencingServer) { s.Cost = 99 })
	room := h.addRoom(t, "r1", "ev1", `{"prefer_server":"https://b.example"}`)

	_, got, err := h.callSvc.CreateParamsForRoom(h.ctx, room, h.event(t, "ev1"), bbbConfig(t, room))
	require.NoError(t, err)
	assert.Equal(t, preferred.ID, got.ID)
}

func TestCreateParamsForRoomReplacesInactiveServer(t *testing.T) {
	h := newHarness(t)
	old := h.addServer(t, "https://old.example/", nil)
	room := h.addRoom(t, "r1", "ev1", `{}`)
	event := h.event(t, "ev1")

	first, got, err := h.callSvc.CreateParamsForRoom(h.ctx, room, event, bbbConfig(t, room))
	require.NoError(t, err)
	require.Equal(t, old.ID, got.ID)

	old.Active = false
	require.NoError(t, h.servers.Update(h.ctx, old))
	fresh := h.addServer(t, "https://new.example/", nil)

	second, got, err := h.callSvc.CreateParamsForRoom(h.ctx, room, event, bbbConfig(t, room))
	require.NoError(t, err)
	assert.Equal(t, fresh.ID, got.ID)
	assert.Equal(t, first["meetingID"], second["meetingID"])
	assert.Equal(t, 1, h.countRoomCalls(t, "r1"))

	call, err := h.calls.GetByRoomID(h.ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, fresh.ID, call.ServerID)
}

func TestCreateParamsForRoomWritesBackChangedSettings(t *testing.T) {
	h := newHarness(t)
	h.addServer(t, "https://a.example/", nil)
	room := h.addRoom(t, "r1", "ev1", `{}`)
	event := h.event(t, "ev1")

	_, _, err := h.callSvc.CreateParamsForRoom(h.ctx, room, event, bbbConfig(t, room))
	require.NoError(t, err)

	room.Modules[0].Config = []byte(`{"waiting_room":true,"voice_bridge":"71234"}`)
	params, _, err := h.callSvc.CreateParamsForRoom(h.ctx, room, event, bbbConfig(t, room))
	require.NoError(t, err)
	assert.Equal(t, models.GuestPolicyAskModerator, params["guestPolicy"])
	assert.Equal(t, "71234", params["voiceBridge"])

	call, err := h.calls.GetByRoomID(h.ctx, "r1")
	require.NoError(t, err)
	require.NotNil(t, call.GuestPolicy)
	require.NotNil(t, call.VoiceBridge)
	assert.Equal(t, models.GuestPolicyAskModerator, *call.GuestPolicy)
	assert.Equal(t, "71234", *call.VoiceBridge)
}

func TestCreateParamsForRoomWithoutServers(t *testing.T) {
	h := newHarness(t)
	room := h.addRoom(t, "r1", "ev1", `{}`)

	_, _, err := h.callSvc.CreateParamsForRoom(h.ctx, room, h.event(t, "ev1"), bbbConfig(t, room))
	assert.ErrorIs(t, err, pkg.ErrUnavailable)
	assert.Equal(t, 0, h.countRoomCalls(t, "r1"))
}

func TestEventCanReopenPrivateChat(t *testing.T) {
	h := newHarness(t)
	h.addServer(t, "https://a.example/", nil)
	off := false
	require.NoError(t, h.events.Create(h.ctx, &models.Event{ID: "ev3", Name: "Open", Config: models.EventConfig{DisablePrivateChat: &off}}))
	room := h.addRoom(t, "r1", "ev3", `{}`)

	params, _, err := h.callSvc.CreateParamsForRoom(h.ctx, room, h.event(t, "ev3"), bbbConfig(t, room))
	require.NoError(t, err)
	assert.Equal(t, "false", params["lockSettingsDisablePrivateChat"])
}

func TestCreateParamsForCallID(t *testing.T) {
	h := newHarness(t)
	first := h.addServer(t, "https://a.example/", nil)
	alice := h.addUser(t, "alice", "ev1", "Alice")
	h.addUser(t, "bob", "ev1", "Bob")
	h.addUser(t, "mallory", "ev1", "Mallory")

	direct, err := h.callSvc.StartDirectCall(h.ctx, "ev1", alice.ID, []string{"bob"})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"alice", "bob"}, direct.Members)

	params, server, err := h.callSvc.CreateParamsForCallID(h.ctx, direct.ID, "bob", false)
	require.NoError(t, err)
	assert.Equal(t, first.ID, server.ID)
	assert.Equal(t, "Call", params["name"])
	assert.Equal(t, direct.ID, params["meta_Call"])
	assert.Equal(t, "false", params["record"])
	assert.Equal(t, "true", params["lockSettingsDisablePrivateChat"])

	_, _, err = h.callSvc.CreateParamsForCallID(h.ctx, direct.ID, "mallory", false)
	assert.ErrorIs(t, err, pkg.ErrNotFound)
	_, _, err = h.callSvc.CreateParamsForCallID(h.ctx, "no-such-call", "bob", false)
	assert.ErrorIs(t, err, pkg.ErrNotFound)

	first.Active = false
	require.NoError(t, h.servers.Update(h.ctx, first))
	second := h.addServer(t, "https://b.example/", nil)

	again, server, err := h.callSvc.CreateParamsForCallID(h.ctx, direct.ID, "alice", false)
	require.NoError(t, err)
	assert.Equal(t, second.ID, server.ID)
	assert.Equal(t, params["meetingID"], again["meetingID"])
}
