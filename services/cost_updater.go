package services

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/antchfx/xmlquery"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"github.com/akinalp/stagecall/models"
	"github.com/akinalp/stagecall/pkg/bbb"
	"github.com/akinalp/stagecall/pkg/crypto"
	"github.com/akinalp/stagecall/repository"
)

// Weight of one video stream relative to one audio participant.
const videoCostWeight = 3

// CostUpdater periodically replaces the cost of every active server with
// its measured load. Between runs the selector's +10 bumps keep new calls
// spread out.
type CostUpdater interface {
	// Start schedules UpdateAll. An empty schedule leaves the job off.
	Start() error
	// Stop waits for a running update to finish.
	Stop()
	// UpdateAll polls every active server once.
	UpdateAll(ctx context.Context)
}

type costUpdater struct {
	servers  repository.ConferencingServerRepository
	client   *bbb.Client
	key      []byte
	schedule string
	timeout  time.Duration

	mu     sync.Mutex
	quartz *cron.Cron
}

// NewCostUpdater builds a CostUpdater.
func NewCostUpdater(
	servers repository.ConferencingServerRepository,
	client *bbb.Client,
	key []byte,
	schedule string,
	timeout time.Duration,
) CostUpdater {
	return &costUpdater{
		servers:  servers,
		client:   client,
		key:      key,
		schedule: schedule,
		timeout:  timeout,
	}
}

func (u *costUpdater) Start() error {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.schedule == "" || u.quartz != nil {
		return nil
	}

	quartz := cron.New(cron.WithLogger(cron.VerbosePrintfLogger(&log.Logger)))
	if _, err := quartz.AddFunc(u.schedule, func() {
		u.UpdateAll(context.Background())
	}); err != nil {
		return fmt.Errorf("invalid cost schedule %q: %w", u.schedule, err)
	}
	quartz.Start()
	u.quartz = quartz

	log.Info().Str("schedule", u.schedule).Msg("server cost updater started")
	return nil
}

func (u *costUpdater) Stop() {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.quartz == nil {
		return
	}
	<-u.quartz.Stop().Done()
	u.quartz = nil
	log.Info().Msg("server cost updater stopped")
}

func (u *costUpdater) UpdateAll(ctx context.Context) {
	servers, err := u.servers.ListActive(ctx)
	if err != nil {
		log.Error().Err(err).Msg("failed to list servers for cost update")
		return
	}

	for i := range servers {
		u.updateOne(ctx, &servers[i])
	}
}

func (u *costUpdater) updateOne(ctx context.Context, server *models.ConferencingServer) {
	secret, err := crypto.Decrypt(server.Secret, u.key)
	if err != nil {
		log.Error().Err(err).Str("server_url", server.URL).Msg("cannot decrypt server secret")
		return
	}

	root, ok := u.client.Get(ctx, bbb.BuildURL(bbb.OpGetMeetings, nil, server.URL, secret), u.timeout)
	if !ok {
		log.Warn().Str("server_url", server.URL).Msg("server unreachable, keeping previous cost")
		return
	}

	cost := meetingsCost(root)
	if err := u.servers.SetCost(ctx, server.ID, cost); err != nil {
		log.Error().Err(err).Str("server_url", server.URL).Msg("failed to store server cost")
		return
	}
	log.Debug().Str("server_url", server.URL).Int("cost", cost).Msg("server cost updated")
}

// meetingsCost sums participants, voice participants and weighted video
// streams over all meetings of a getMeetings response.
func meetingsCost(root *xmlquery.Node) int {
	total := 0
	for _, m := range xmlquery.Find(root, "meetings/meeting") {
		total += intText(m, "participantCount") +
			intText(m, "voiceParticipantCount") +
			videoCostWeight*intText(m, "videoCount")
	}
	return total
}

func intText(n *xmlquery.Node, path string) int {
	s, ok := bbb.Text(n, path)
	if !ok {
		return 0
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return v
}
