package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/akinalp/stagecall/config"
	"github.com/akinalp/stagecall/database"
	"github.com/akinalp/stagecall/models"
	"github.com/akinalp/stagecall/pkg/bbb"
	"github.com/akinalp/stagecall/pkg/crypto"
	"github.com/akinalp/stagecall/repository"
	"github.com/akinalp/stagecall/ws"
)

var testKey = bytes.Repeat([]byte{7}, 32)

type harness struct {
	ctx context.Context
	db  *database.DB

	events  repository.EventRepository
	rooms   repository.RoomRepository
	users   repository.UserRepository
	servers repository.ConferencingServerRepository
	calls   repository.CallRepository

	callSvc CallService
	bbbSvc  BBBService
	live    LiveCallService
	pushes  *recordingPublisher
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	h := &harness{
		ctx:     context.Background(),
		db:      db,
		events:  repository.NewSQLiteEventRepo(db.Conn),
		rooms:   repository.NewSQLiteRoomRepo(db.Conn),
		users:   repository.NewSQLiteUserRepo(db.Conn),
		servers: repository.NewSQLiteConferencingServerRepo(db.Conn),
		calls:   repository.NewSQLiteCallRepo(db.Conn),
	}

	h.callSvc = NewCallService(db.Conn, h.calls)
	h.bbbSvc = NewBBBService(bbb.NewClient(nil), h.callSvc, h.servers, config.BBBConfig{
		SystemTimeZone:    time.UTC,
		SiteNetloc:        "video.example",
		StylePath:         "/live/bbb.css",
		RequestTimeout:    2 * time.Second,
		RecordingsTimeout: 2 * time.Second,
	}, false, testKey)
	t.Cleanup(h.bbbSvc.Close)
	h.pushes = &recordingPublisher{}
	h.live = NewLiveCallService(h.bbbSvc, h.callSvc, h.rooms, h.events, h.users, h.pushes)

	require.NoError(t, h.events.Create(h.ctx, &models.Event{ID: "ev1", Name: "Event 1", Timezone: "Europe/Berlin"}))
	require.NoError(t, h.events.Create(h.ctx, &models.Event{ID: "ev2", Name: "Event 2"}))
	return h
}

// addServer stores a server with its secret sealed the way the admin
// service does.
func (h *harness) addServer(t *testing.T, url string, mutate func(*models.ConferencingServer)) *models.ConferencingServer {
	t.Helper()
	sealed, err := crypto.Encrypt("secret-"+url, testKey)
	require.NoError(t, err)

	s := &models.ConferencingServer{URL: models.NormalizeServerURL(url), Secret: sealed, Active: true}
	if mutate != nil {
		mutate(s)
	}
	require.NoError(t, h.servers.Create(h.ctx, s))
	return s
}

func (h *harness) cost(t *testing.T, id string) int {
	t.Helper()
	s, err := h.servers.GetByID(h.ctx, id)
	require.NoError(t, err)
	return s.Cost
}

func (h *harness) addRoom(t *testing.T, id, eventID, bbbConfig string) *models.Room {
	t.Helper()
	room := &models.Room{ID: id, EventID: eventID, Name: "Room " + id}
	if bbbConfig != "" {
		room.Modules = []models.RoomModule{{Type: models.ModuleTypeBBB, Config: []byte(bbbConfig)}}
	}
	require.NoError(t, h.rooms.Create(h.ctx, room))
	return room
}

func (h *harness) addUser(t *testing.T, id, eventID, name string) *models.User {
	t.Helper()
	u := &models.User{ID: id, EventID: eventID, DisplayName: name}
	require.NoError(t, h.users.Create(h.ctx, u))
	return u
}

func (h *harness) event(t *testing.T, id string) *models.Event {
	t.Helper()
	ev, err := h.events.GetByID(h.ctx, id)
	require.NoError(t, err)
	return ev
}

func (h *harness) countRoomCalls(t *testing.T, roomID string) int {
	t.Helper()
	var n int
	require.NoError(t, h.db.Conn.QueryRow(`SELECT COUNT(*) FROM calls WHERE room_id = ?`, roomID).Scan(&n))
	return n
}

// recordingPublisher keeps pushed events per user. Users in offline have
// no open connection.
type recordingPublisher struct {
	mu      sync.Mutex
	events  map[string][]ws.Event
	offline map[string]bool
}

func (p *recordingPublisher) BroadcastToUser(userID string, event ws.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.events == nil {
		p.events = map[string][]ws.Event{}
	}
	p.events[userID] = append(p.events[userID], event)
}

func (p *recordingPublisher) IsOnline(userID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return !p.offline[userID]
}

func (p *recordingPublisher) setOffline(userID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.offline == nil {
		p.offline = map[string]bool{}
	}
	p.offline[userID] = true
}

func (p *recordingPublisher) to(userID string) []ws.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.events[userID]
}

// fakeBBB is a BigBlueButton server that checks checksums and answers
// create, getRecordings and getMeetings.
type fakeBBB struct {
	srv    *httptest.Server
	secret string

	mu         sync.Mutex
	status     int
	createFail bool
	recordings string
	meetings   string
	requests   []fakeRequest
}

type fakeRequest struct {
	Op     string
	Method string
	Query  string
	Body   string
	Type   string
}

func newFakeBBB(t *testing.T) *fakeBBB {
	t.Helper()
	f := &fakeBBB{status: http.StatusOK}
	f.srv = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.srv.Close)
	return f
}

// URL is the base URL the server is registered with.
func (f *fakeBBB) URL() string {
	return f.srv.URL + "/bigbluebutton/"
}

// register stores the fake in the pool, sealing its secret.
func (f *fakeBBB) register(t *testing.T, h *harness, mutate func(*models.ConferencingServer)) *models.ConferencingServer {
	t.Helper()
	f.secret = "secret-" + f.URL()
	return h.addServer(t, f.URL(), mutate)
}

func (f *fakeBBB) serve(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	op := path.Base(r.URL.Path)
	body, _ := io.ReadAll(r.Body)
	f.requests = append(f.requests, fakeRequest{
		Op: op, Method: r.Method, Query: r.URL.RawQuery, Body: string(body), Type: r.Header.Get("Content-Type"),
	})

	if f.status != http.StatusOK {
		w.WriteHeader(f.status)
		return
	}

	query, checksum, _ := strings.Cut(r.URL.RawQuery, "&checksum=")
	if bbb.Checksum(op, query, f.secret) != checksum {
		_, _ = io.WriteString(w, `<response><returncode>FAILED</returncode><messageKey>checksumError</messageKey></response>`)
		return
	}

	switch op {
	case bbb.OpCreate:
		if f.createFail {
			_, _ = io.WriteString(w, `<response><returncode>FAILED</returncode><messageKey>idNotUnique</messageKey></response>`)
			return
		}
		_, _ = io.WriteString(w, `<response><returncode>SUCCESS</returncode></response>`)
	case bbb.OpGetRecordings:
		_, _ = fmt.Fprintf(w, `<response><returncode>SUCCESS</returncode><recordings>%s</recordings></response>`, f.recordings)
	case bbb.OpGetMeetings:
		_, _ = fmt.Fprintf(w, `<response><returncode>SUCCESS</returncode><meetings>%s</meetings></response>`, f.meetings)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (f *fakeBBB) ops() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.requests))
	for _, r := range f.requests {
		out = append(out, r.Op)
	}
	return out
}

func (f *fakeBBB) last() fakeRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1]
}

func recordingXML(state string, start, end int64, participants string, formats ...string) string {
	var b strings.Builder
	fmt.Fprintf(&b, `<recording><recordID>r-%s-%d</recordID><state>%s</state><startTime>%d</startTime><endTime>%d</endTime>`,
		state, start, state, start, end)
	if participants != "" {
		fmt.Fprintf(&b, `<participants>%s</participants>`, participants)
	}
	b.WriteString(`<playback>`)
	for i := 0; i+1 < len(formats); i += 2 {
		fmt.Fprintf(&b, `<format><type>%s</type><url>%s</url></format>`, formats[i], formats[i+1])
	}
	b.WriteString(`</playback></recording>`)
	return b.String()
}
