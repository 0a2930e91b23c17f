package services

import (
	"context"
	"errors"
	"fmt"
	"html"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/akinalp/stagecall/config"
	"github.com/akinalp/stagecall/models"
	"github.com/akinalp/stagecall/pkg"
	"github.com/akinalp/stagecall/pkg/bbb"
	"github.com/akinalp/stagecall/pkg/cache"
	"github.com/akinalp/stagecall/pkg/crypto"
	"github.com/akinalp/stagecall/repository"

	_ "time/tzdata" // event time zones must resolve without a system zoneinfo
)

// BBBService builds join links and aggregates recordings.
//
// Join builders return pkg.ErrUnavailable when no server is available or
// the create call failed; clients render it as "video call unavailable".
type BBBService interface {
	JoinURLForRoom(ctx context.Context, event *models.Event, room *models.Room, user *models.User, moderator bool) (string, error)
	JoinURLForCallID(ctx context.Context, event *models.Event, callID string, user *models.User) (string, error)
	RecordingsForRoom(ctx context.Context, event *models.Event, room *models.Room) (*models.RecordingsResult, error)

	// Close stops the background sweep of the recordings cache. It is a
	// no-op when the cache is disabled and safe to call more than once.
	Close()
}

type bbbService struct {
	client  *bbb.Client
	calls   CallService
	servers repository.ConferencingServerRepository
	cfg     config.BBBConfig
	debug   bool
	key     []byte

	// recordings holds non-empty results per event and meeting. Nil when
	// cfg.RecordingsCacheTTL is zero.
	recordings *cache.TTLCache[string, []models.Recording]
}

// NewBBBService builds a BBBService. key decrypts the stored server secrets.
func NewBBBService(
	client *bbb.Client,
	calls CallService,
	servers repository.ConferencingServerRepository,
	cfg config.BBBConfig,
	debug bool,
	key []byte,
) BBBService {
	s := &bbbService{
		client:  client,
		calls:   calls,
		servers: servers,
		cfg:     cfg,
		debug:   debug,
		key:     key,
	}
	if cfg.RecordingsCacheTTL > 0 {
		s.recordings = cache.New[string, []models.Recording](cfg.RecordingsCacheTTL, 5*cfg.RecordingsCacheTTL)
	}
	return s
}

func (s *bbbService) JoinURLForRoom(ctx context.Context, event *models.Event, room *models.Room, user *models.User, moderator bool) (string, error) {
	cfg, ok := room.BBBConfig()
	if !ok {
		return "", fmt.Errorf("%w: room has no video call", pkg.ErrNotFound)
	}

	params, server, err := s.calls.CreateParamsForRoom(ctx, room, event, cfg)
	if err != nil {
		return "", err
	}
	secret, err := s.secret(server)
	if err != nil {
		return "", err
	}

	createURL := bbb.BuildURL(bbb.OpCreate, toValues(params), server.URL, secret)
	if cfg.Presentation != "" {
		body := `<modules><module name="presentation"><document url="` +
			html.EscapeString(cfg.Presentation) + `" /></module></modules>`
		_, ok = s.client.Post(ctx, createURL, body, s.cfg.RequestTimeout)
	} else {
		_, ok = s.client.Get(ctx, createURL, s.cfg.RequestTimeout)
	}
	if !ok {
		return "", pkg.ErrUnavailable
	}

	join := s.baseJoinParams(event, params, user)
	join.Set("password", lo.Ternary(moderator, params["moderatorPW"], params["attendeePW"]))
	join.Set("guest", strconv.FormatBool(!moderator && cfg.WaitingRoom))
	join.Set("userdata-bbb_listen_only_mode", strconv.FormatBool(!cfg.AutoMicrophone))
	join.Set("userdata-bbb_auto_share_webcam", strconv.FormatBool(cfg.AutoCamera))
	join.Set("userdata-bbb_skip_video_preview", strconv.FormatBool(cfg.AutoCamera))
	join.Set("userdata-bbb_auto_swap_layout", strconv.FormatBool(cfg.HidePresentation))

	return bbb.BuildURL(bbb.OpJoin, join, server.URL, secret), nil
}

func (s *bbbService) JoinURLForCallID(ctx context.Context, event *models.Event, callID string, user *models.User) (string, error) {
	params, server, err := s.calls.CreateParamsForCallID(ctx, callID, user.ID, false)
	if err != nil {
		return "", err
	}
	secret, err := s.secret(server)
	if err != nil {
		return "", err
	}

	createURL := bbb.BuildURL(bbb.OpCreate, toValues(params), server.URL, secret)
	if _, ok := s.client.Get(ctx, createURL, s.cfg.RequestTimeout); !ok {
		return "", pkg.ErrUnavailable
	}

	// Everyone in a direct call moderates; listen-only and a presentation
	// area make no sense there.
	join := s.baseJoinParams(event, params, user)
	join.Set("password", params["moderatorPW"])
	join.Set("userdata-bbb_auto_share_webcam", "true")
	join.Set("userdata-bbb_listen_only_mode", "false")
	join.Set("userdata-bbb_auto_swap_layout", "true")

	return bbb.BuildURL(bbb.OpJoin, join, server.URL, secret), nil
}

func (s *bbbService) baseJoinParams(event *models.Event, params models.CreateParams, user *models.User) url.Values {
	join := url.Values{}
	join.Set("meetingID", params["meetingID"])
	join.Set("fullName", bbb.EscapeName(user.DisplayName))
	join.Set("userID", user.ID)
	join.Set("joinViaHtml5", "true")
	if user.AvatarURL != "" {
		join.Set("avatarURL", user.AvatarURL)
	}
	join.Set("userdata-bbb_custom_style_url", s.styleURL(event))
	join.Set("userdata-bbb_show_public_chat_on_login", "false")
	join.Set("userdata-bbb_skip_check_audio", "true")
	return join
}

func (s *bbbService) styleURL(event *models.Event) string {
	scheme := lo.Ternary(s.debug, "http://", "https://")
	domain := lo.Ternary(event.Domain != "", event.Domain, s.cfg.SiteNetloc)
	return scheme + domain + s.cfg.StylePath
}

func (s *bbbService) RecordingsForRoom(ctx context.Context, event *models.Event, room *models.Room) (*models.RecordingsResult, error) {
	call, err := s.calls.CallForRoom(ctx, room.ID)
	if errors.Is(err, pkg.ErrNotFound) {
		return recordingsResult(nil, models.RecordingErrorNoRecordings), nil
	}
	if err != nil {
		return nil, err
	}

	cacheKey := event.ID + "/" + call.MeetingID
	if s.recordings != nil {
		if cached, ok := s.recordings.Get(cacheKey); ok {
			return recordingsResult(cached, ""), nil
		}
	}

	// Every server the event may use, not only the call's current one:
	// recordings stay where they were made when a call moves.
	servers, err := s.servers.ListForEvent(ctx, event.ID)
	if err != nil {
		return nil, err
	}

	eventTZ := eventLocation(event.Timezone)
	var recordings []models.Recording
	unavailable := 0

	// One server at a time, in list order. A failing server is counted and
	// skipped.
	for i := range servers {
		server := &servers[i]
		logger := log.With().
			Str("server_url", server.URL).
			Str("event_id", event.ID).
			Str("room_id", room.ID).
			Logger()

		secret, err := s.secret(server)
		if err != nil {
			logger.Error().Err(err).Msg("BBB recordings request skipped")
			unavailable++
			continue
		}

		params := url.Values{}
		params.Set("meetingID", call.MeetingID)
		params.Set("state", "any")
		recordingsURL := bbb.BuildURL(bbb.OpGetRecordings, params, server.URL, secret)

		root, ok := s.client.Get(ctx, recordingsURL, s.cfg.RecordingsTimeout)
		if !ok {
			logger.Warn().Msg("BBB recordings request failed")
			unavailable++
			continue
		}

		parser := &recordingParser{
			requestURL: recordingsURL,
			systemTZ:   s.systemTZ(),
			eventTZ:    eventTZ,
			logger:     logger,
		}
		recordings = append(recordings, parser.parse(root)...)
	}

	// Found recordings win over any failure; BBB_UNAVAILABLE only when no
	// server answered at all.
	switch {
	case len(recordings) > 0:
		if s.recordings != nil {
			s.recordings.Set(cacheKey, recordings)
		}
		return recordingsResult(recordings, ""), nil
	case unavailable == len(servers):
		return recordingsResult(nil, models.RecordingErrorBBBUnavailable), nil
	default:
		return recordingsResult(nil, models.RecordingErrorNoRecordings), nil
	}
}

func (s *bbbService) Close() {
	if s.recordings != nil {
		s.recordings.Close()
	}
}

func (s *bbbService) systemTZ() *time.Location {
	if s.cfg.SystemTimeZone == nil {
		return time.UTC
	}
	return s.cfg.SystemTimeZone
}

func (s *bbbService) secret(server *models.ConferencingServer) (string, error) {
	secret, err := crypto.Decrypt(server.Secret, s.key)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt secret of %s: %w", server.URL, err)
	}
	return secret, nil
}

func recordingsResult(recordings []models.Recording, errorType models.RecordingErrorType) *models.RecordingsResult {
	if recordings == nil {
		recordings = []models.Recording{}
	}
	result := &models.RecordingsResult{Recordings: recordings}
	if errorType != "" {
		result.ErrorType = &errorType
	}
	return result
}

func toValues(params models.CreateParams) url.Values {
	values := make(url.Values, len(params))
	for k, v := range params {
		values.Set(k, v)
	}
	return values
}
