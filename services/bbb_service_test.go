package services

import (
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akinalp/stagecall/models"
	"github.com/akinalp/stagecall/pkg"
	"github.com/akinalp/stagecall/pkg/bbb"
)

func joinQuery(t *testing.T, joinURL string) url.Values {
	t.Helper()
	u, err := url.Parse(joinURL)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(u.Path, "/api/join"), u.Path)
	q, err := url.ParseQuery(u.RawQuery)
	require.NoError(t, err)
	return q
}

func TestJoinURLForRoom(t *testing.T) {
	h := newHarness(t)
	fake := newFakeBBB(t)
	fake.register(t, h, nil)
	room := h.addRoom(t, "r1", "ev1", `{"waiting_room":true,"auto_camera":true,"hide_presentation":true}`)
	user := &models.User{ID: "u1", EventID: "ev1", DisplayName: "Jane:Doe", AvatarURL: "https://cdn.example/jane.png"}

	joinURL, err := h.bbbSvc.JoinURLForRoom(h.ctx, h.event(t, "ev1"), room, user, false)
	require.NoError(t, err)
	require.Equal(t, []string{bbb.OpCreate}, fake.ops())
	assert.Equal(t, http.MethodGet, fake.last().Method)

	call, err := h.calls.GetByRoomID(h.ctx, "r1")
	require.NoError(t, err)

	q := joinQuery(t, joinURL)
	assert.Equal(t, "JaneDoe", q.Get("fullName"))
	assert.Equal(t, call.MeetingID, q.Get("meetingID"))
	assert.Equal(t, call.AttendeePW, q.Get("password"))
	assert.Equal(t, "u1", q.Get("userID"))
	assert.Equal(t, "https://cdn.example/jane.png", q.Get("avatarURL"))
	assert.Equal(t, "true", q.Get("guest"))
	assert.Equal(t, "true", q.Get("joinViaHtml5"))
	assert.Equal(t, "https://video.example/live/bbb.css", q.Get("userdata-bbb_custom_style_url"))
	assert.Equal(t, "true", q.Get("userdata-bbb_listen_only_mode"))
	assert.Equal(t, "true", q.Get("userdata-bbb_auto_share_webcam"))
	assert.Equal(t, "true", q.Get("userdata-bbb_skip_video_preview"))
	assert.Equal(t, "true", q.Get("userdata-bbb_auto_swap_layout"))

	query, checksum, found := strings.Cut(strings.SplitN(joinURL, "?", 2)[1], "&checksum=")
	require.True(t, found)
	assert.Equal(t, bbb.Checksum(bbb.OpJoin, query, fake.secret), checksum)
}

func TestJoinURLForRoomModerator(t *testing.T) {
	h := newHarness(t)
	fake := newFakeBBB(t)
	fake.register(t, h, nil)
	room := h.addRoom(t, "r1", "ev1", `{"waiting_room":true,"auto_microphone":true}`)
	user := &models.User{ID: "u1", EventID: "ev1", DisplayName: "Mod"}

	joinURL, err := h.bbbSvc.JoinURLForRoom(h.ctx, h.event(t, "ev1"), room, user, true)
	require.NoError(t, err)

	call, err := h.calls.GetByRoomID(h.ctx, "r1")
	require.NoError(t, err)

	q := joinQuery(t, joinURL)
	assert.Equal(t, call.ModeratorPW, q.Get("password"))
	assert.Equal(t, "false", q.Get("guest"))
	assert.Equal(t, "false", q.Get("userdata-bbb_listen_only_mode"))
	assert.False(t, q.Has("avatarURL"))
}

func TestJoinURLForRoomUploadsPresentation(t *testing.T) {
	h := newHarness(t)
	fake := newFakeBBB(t)
	fake.register(t, h, nil)
	room := h.addRoom(t, "r1", "ev1", `{"presentation":"https://files.example/deck.pdf?a=1&b=2"}`)

	_, err := h.bbbSvc.JoinURLForRoom(h.ctx, h.event(t, "ev1"), room, &models.User{ID: "u1", DisplayName: "U"}, false)
	require.NoError(t, err)

	req := fake.last()
	assert.Equal(t, bbb.OpCreate, req.Op)
	assert.Equal(t, http.MethodPost, req.Method)
	assert.Equal(t, "application/xml", req.Type)
	assert.Equal(t,
		`<modules><module name="presentation"><document url="https://files.example/deck.pdf?a=1&amp;b=2" /></module></modules>`,
		req.Body)
}

func TestJoinURLForRoomSoftFailures(t *testing.T) {
	t.Run("create rejected", func(t *testing.T) {
		h := newHarness(t)
		fake := newFakeBBB(t)
		fake.createFail = true
		fake.register(t, h, nil)
		room := h.addRoom(t, "r1", "ev1", `{}`)

		_, err := h.bbbSvc.JoinURLForRoom(h.ctx, h.event(t, "ev1"), room, &models.User{ID: "u1", DisplayName: "U"}, false)
		assert.ErrorIs(t, err, pkg.ErrUnavailable)
	})

	t.Run("server down", func(t *testing.T) {
		h := newHarness(t)
		fake := newFakeBBB(t)
		fake.status = http.StatusServiceUnavailable
		fake.register(t, h, nil)
		room := h.addRoom(t, "r1", "ev1", `{}`)

		_, err := h.bbbSvc.JoinURLForRoom(h.ctx, h.event(t, "ev1"), room, &models.User{ID: "u1", DisplayName: "U"}, false)
		assert.ErrorIs(t, err, pkg.ErrUnavailable)
	})

	t.Run("no server", func(t *testing.T) {
		h := newHarness(t)
		room := h.addRoom(t, "r1", "ev1", `{}`)

		_, err := h.bbbSvc.JoinURLForRoom(h.ctx, h.event(t, "ev1"), room, &models.User{ID: "u1", DisplayName: "U"}, false)
		assert.ErrorIs(t, err, pkg.ErrUnavailable)
	})
}

func TestJoinURLForRoomReselectsInactiveServer(t *testing.T) {
	h := newHarness(t)
	old := h.addServer(t, "https://old.example/", nil)
	roomID := "r1"
	room := h.addRoom(t, roomID, "ev1", `{}`)
	require.NoError(t, h.calls.Create(h.ctx, &models.Call{RoomID: &roomID, EventID: "ev1", ServerID: old.ID}))
	old.Active = false
	require.NoError(t, h.servers.Update(h.ctx, old))

	fake := newFakeBBB(t)
	fresh := fake.register(t, h, nil)

	_, err := h.bbbSvc.JoinURLForRoom(h.ctx, h.event(t, "ev1"), room, &models.User{ID: "u1", DisplayName: "U"}, false)
	require.NoError(t, err)

	call, err := h.calls.GetByRoomID(h.ctx, roomID)
	require.NoError(t, err)
	assert.Equal(t, fresh.ID, call.ServerID)
	assert.Equal(t, 1, h.countRoomCalls(t, roomID))
}

func TestJoinURLForCallID(t *testing.T) {
	h := newHarness(t)
	fake := newFakeBBB(t)
	fake.register(t, h, nil)
	h.addUser(t, "alice", "ev1", "Alice")
	bob := h.addUser(t, "bob", "ev1", "Bob: the Builder")
	h.addUser(t, "eve", "ev1", "Eve")

	direct, err := h.callSvc.StartDirectCall(h.ctx, "ev1", "alice", []string{"bob"})
	require.NoError(t, err)

	event := &models.Event{ID: "ev1", Domain: "conf.example"}
	joinURL, err := h.bbbSvc.JoinURLForCallID(h.ctx, event, direct.ID, bob)
	require.NoError(t, err)

	call, err := h.calls.GetByID(h.ctx, direct.ID)
	require.NoError(t, err)

	q := joinQuery(t, joinURL)
	assert.Equal(t, call.ModeratorPW, q.Get("password"))
	assert.Equal(t, "Bob the Builder", q.Get("fullName"))
	assert.Equal(t, "true", q.Get("userdata-bbb_auto_share_webcam"))
	assert.Equal(t, "false", q.Get("userdata-bbb_listen_only_mode"))
	assert.Equal(t, "true", q.Get("userdata-bbb_auto_swap_layout"))
	assert.Equal(t, "https://conf.example/live/bbb.css", q.Get("userdata-bbb_custom_style_url"))

	_, err = h.bbbSvc.JoinURLForCallID(h.ctx, event, direct.ID, &models.User{ID: "eve", DisplayName: "Eve"})
	assert.ErrorIs(t, err, pkg.ErrNotFound)
}

// startRoomCall places the room's call through a join so recordings have a
// meeting id to look up.
func startRoomCall(t *testing.T, h *harness, roomID string) (*models.Room, *models.Call) {
	t.Helper()
	room := h.addRoom(t, roomID, "ev1", `{}`)
	_, _, err := h.callSvc.CreateParamsForRoom(h.ctx, room, h.event(t, "ev1"), models.BBBRoomConfig{})
	require.NoError(t, err)
	call, err := h.calls.GetByRoomID(h.ctx, roomID)
	require.NoError(t, err)
	return room, call
}

// 2024-03-10T12:00:00Z
const recStart = int64(1710072000000)

func TestRecordingsKeepOnlyPublished(t *testing.T) {
	h := newHarness(t)
	fake := newFakeBBB(t)
	fake.register(t, h, nil)
	room, _ := startRoomCall(t, h, "r1")

	fake.recordings = recordingXML("published", recStart, recStart+3600000, "12", "presentation", "https://p/1") +
		recordingXML("unpublished", recStart, recStart+1, "1", "presentation", "https://p/2") +
		recordingXML("deleted", recStart, recStart+1, "1", "presentation", "https://p/3") +
		recordingXML("processing", recStart, recStart+1, "1", "presentation", "https://p/4") +
		recordingXML("PUBLISHED", recStart+7200000, recStart+7200500, "3", "notes", "https://n/5")

	res, err := h.bbbSvc.RecordingsForRoom(h.ctx, h.event(t, "ev1"), room)
	require.NoError(t, err)
	assert.Nil(t, res.ErrorType)
	require.Len(t, res.Recordings, 2)

	first := res.Recordings[0]
	assert.Equal(t, "published", first.State)
	assert.Equal(t, 12, first.Participants)
	assert.Equal(t, "2024-03-10T13:00:00+01:00", first.Start)
	assert.Equal(t, "2024-03-10T14:00:00+01:00", first.End)
	require.NotNil(t, first.URL)
	assert.Equal(t, "https://p/1", *first.URL)
	assert.Nil(t, first.URLVideo)

	second := res.Recordings[1]
	assert.Equal(t, "published", second.State)
	assert.Equal(t, "2024-03-10T15:00:00.500000+01:00", second.End)
	require.NotNil(t, second.URLNotes)
	assert.Equal(t, "https://n/5", *second.URLNotes)
}

func TestRecordingsMaskPartialFailure(t *testing.T) {
	h := newHarness(t)
	broken := newFakeBBB(t)
	broken.status = http.StatusInternalServerError
	broken.register(t, h, nil)
	healthy := newFakeBBB(t)
	healthy.register(t, h, nil)
	room, call := startRoomCall(t, h, "r1")

	healthy.recordings = recordingXML("published", recStart, recStart+1000, "2", "video", "https://v/1")

	res, err := h.bbbSvc.RecordingsForRoom(h.ctx, h.event(t, "ev1"), room)
	require.NoError(t, err)
	assert.Nil(t, res.ErrorType)
	require.Len(t, res.Recordings, 1)
	assert.Equal(t, "https://v/1", *res.Recordings[0].URLVideo)

	// Both servers were asked, filtered by the call's meeting.
	for _, f := range []*fakeBBB{broken, healthy} {
		last := f.last()
		assert.Equal(t, bbb.OpGetRecordings, last.Op)
		q, err := url.ParseQuery(strings.SplitN(last.Query, "&checksum=", 2)[0])
		require.NoError(t, err)
		assert.Equal(t, call.MeetingID, q.Get("meetingID"))
		assert.Equal(t, "any", q.Get("state"))
	}
}

func TestRecordingsAllServersFailing(t *testing.T) {
	h := newHarness(t)
	for i := 0; i < 2; i++ {
		f := newFakeBBB(t)
		f.status = http.StatusInternalServerError
		f.register(t, h, nil)
	}
	room, _ := startRoomCall(t, h, "r1")

	res, err := h.bbbSvc.RecordingsForRoom(h.ctx, h.event(t, "ev1"), room)
	require.NoError(t, err)
	assert.Empty(t, res.Recordings)
	require.NotNil(t, res.ErrorType)
	assert.Equal(t, models.RecordingErrorBBBUnavailable, *res.ErrorType)
}

func TestRecordingsNoneFound(t *testing.T) {
	h := newHarness(t)
	a := newFakeBBB(t)
	a.register(t, h, nil)
	b := newFakeBBB(t)
	b.register(t, h, nil)
	b.recordings = recordingXML("unpublished", recStart, recStart+1, "1", "presentation", "https://p/1")
	room, _ := startRoomCall(t, h, "r1")

	res, err := h.bbbSvc.RecordingsForRoom(h.ctx, h.event(t, "ev1"), room)
	require.NoError(t, err)
	assert.NotNil(t, res.Recordings)
	assert.Empty(t, res.Recordings)
	require.NotNil(t, res.ErrorType)
	assert.Equal(t, models.RecordingErrorNoRecordings, *res.ErrorType)
}

func TestRecordingsWithoutCall(t *testing.T) {
	h := newHarness(t)
	fake := newFakeBBB(t)
	fake.register(t, h, nil)
	room := h.addRoom(t, "r1", "ev1", `{}`)

	res, err := h.bbbSvc.RecordingsForRoom(h.ctx, h.event(t, "ev1"), room)
	require.NoError(t, err)
	require.NotNil(t, res.ErrorType)
	assert.Equal(t, models.RecordingErrorNoRecordings, *res.ErrorType)
	assert.Empty(t, fake.ops())
}

func TestRecordingsSkipOtherEventsServers(t *testing.T) {
	h := newHarness(t)
	own := newFakeBBB(t)
	own.register(t, h, nil)
	room, _ := startRoomCall(t, h, "r1")

	ev2 := "ev2"
	foreign := newFakeBBB(t)
	foreign.register(t, h, func(s *models.ConferencingServer) { s.EventExclusive = &ev2 })

	_, err := h.bbbSvc.RecordingsForRoom(h.ctx, h.event(t, "ev1"), room)
	require.NoError(t, err)
	assert.Empty(t, foreign.ops())
	assert.Contains(t, own.ops(), bbb.OpGetRecordings)
}

func TestRecordingsPreserveServerOrder(t *testing.T) {
	h := newHarness(t)
	first := newFakeBBB(t)
	first.register(t, h, nil)
	second := newFakeBBB(t)
	second.register(t, h, nil)
	room, _ := startRoomCall(t, h, "r1")

	first.recordings = recordingXML("published", recStart, recStart+1000, "1", "presentation", "https://first/1") +
		recordingXML("published", recStart, recStart+1000, "1", "presentation", "https://first/2")
	second.recordings = recordingXML("published", recStart, recStart+1000, "1", "presentation", "https://second/1")

	res, err := h.bbbSvc.RecordingsForRoom(h.ctx, h.event(t, "ev1"), room)
	require.NoError(t, err)
	require.Len(t, res.Recordings, 3)
	assert.Equal(t, "https://first/1", *res.Recordings[0].URL)
	assert.Equal(t, "https://first/2", *res.Recordings[1].URL)
	assert.Equal(t, "https://second/1", *res.Recordings[2].URL)
}
