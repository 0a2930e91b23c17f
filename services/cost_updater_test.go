package services

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/antchfx/xmlquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akinalp/stagecall/models"
	"github.com/akinalp/stagecall/pkg/bbb"
)

const twoMeetings = `
<meeting><participantCount>10</participantCount><voiceParticipantCount>4</voiceParticipantCount><videoCount>2</videoCount></meeting>
<meeting><participantCount>3</participantCount><voiceParticipantCount>0</voiceParticipantCount><videoCount>x</videoCount></meeting>`

func TestMeetingsCost(t *testing.T) {
	doc, err := xmlquery.Parse(strings.NewReader(`<response><meetings>` + twoMeetings + `</meetings></response>`))
	require.NoError(t, err)

	// 10+4+3*2 for the first meeting, 3 for the second whose video count is garbage.
	assert.Equal(t, 23, meetingsCost(xmlquery.FindOne(doc, "/response")))
}

func TestCostUpdaterUpdateAll(t *testing.T) {
	h := newHarness(t)

	up := newFakeBBB(t)
	up.meetings = twoMeetings
	reachable := up.register(t, h, func(s *models.ConferencingServer) { s.Cost = 500 })

	down := newFakeBBB(t)
	down.status = http.StatusServiceUnavailable
	unreachable := down.register(t, h, func(s *models.ConferencingServer) { s.Cost = 70 })

	idle := newFakeBBB(t)
	empty := idle.register(t, h, func(s *models.ConferencingServer) { s.Cost = 30 })

	off := newFakeBBB(t)
	inactive := off.register(t, h, func(s *models.ConferencingServer) {
		s.Active = false
		s.Cost = 9
	})

	updater := NewCostUpdater(h.servers, bbb.NewClient(nil), testKey, "", time.Second)
	updater.UpdateAll(h.ctx)

	assert.Equal(t, 23, h.cost(t, reachable.ID))
	assert.Equal(t, 70, h.cost(t, unreachable.ID), "unreachable servers keep their cost")
	assert.Equal(t, 0, h.cost(t, empty.ID))
	assert.Equal(t, 9, h.cost(t, inactive.ID))
	assert.Empty(t, off.ops(), "inactive servers are not polled")
	assert.Equal(t, []string{bbb.OpGetMeetings}, up.ops())
}

func TestCostUpdaterSchedule(t *testing.T) {
	h := newHarness(t)

	disabled := NewCostUpdater(h.servers, bbb.NewClient(nil), testKey, "", time.Second)
	require.NoError(t, disabled.Start())
	disabled.Stop()

	bad := NewCostUpdater(h.servers, bbb.NewClient(nil), testKey, "every now and then", time.Second)
	assert.Error(t, bad.Start())

	good := NewCostUpdater(h.servers, bbb.NewClient(nil), testKey, "@every 1h", time.Second)
	require.NoError(t, good.Start())
	require.NoError(t, good.Start(), "starting twice is a no-op")
	good.Stop()
	good.Stop()
}
