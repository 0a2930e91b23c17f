package services

import (
	"strconv"
	"strings"
	"time"

	"github.com/antchfx/xmlquery"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/akinalp/stagecall/models"
	"github.com/akinalp/stagecall/pkg/bbb"
)

const (
	isoSeconds = "2006-01-02T15:04:05-07:00"
	isoMicros  = "2006-01-02T15:04:05.000000-07:00"
)

// recordingParser normalizes the <recording> elements of one getRecordings
// response.
type recordingParser struct {
	requestURL string
	systemTZ   *time.Location
	eventTZ    *time.Location
	logger     zerolog.Logger
}

// parse returns the published recordings of root in document order.
// Entries without a usable playback URL or with missing or malformed
// times, participants or state are skipped.
func (p *recordingParser) parse(root *xmlquery.Node) []models.Recording {
	var out []models.Recording
	for _, rec := range xmlquery.Find(root, "recordings/recording") {
		r, ok := p.parseOne(rec)
		if ok {
			out = append(out, r)
		}
	}
	return out
}

func (p *recordingParser) parseOne(rec *xmlquery.Node) (models.Recording, bool) {
	state, _ := bbb.Text(rec, "state")
	if !strings.EqualFold(state, "published") {
		return models.Recording{}, false
	}

	start, okStart := bbb.Text(rec, "startTime")
	end, okEnd := bbb.Text(rec, "endTime")
	participants, okParticipants := bbb.Text(rec, "participants")
	if !okStart || !okEnd || !okParticipants {
		return models.Recording{}, false
	}

	startMs, errStart := strconv.ParseInt(start, 10, 64)
	endMs, errEnd := strconv.ParseInt(end, 10, 64)
	count, errCount := strconv.Atoi(participants)
	if errStart != nil || errEnd != nil || errCount != nil {
		p.logger.Warn().Msg("BBB recording entry malformed")
		return models.Recording{}, false
	}

	r := models.Recording{
		Start:        p.formatTime(startMs),
		End:          p.formatTime(endMs),
		Participants: count,
		State:        strings.ToLower(state),
	}

	for _, f := range xmlquery.Find(rec, "playback/format") {
		kind, okKind := bbb.Text(f, "type")
		link, okLink := bbb.Text(f, "url")
		if !okKind || !okLink {
			continue
		}
		switch kind {
		case "presentation":
			r.URL = &link
		case "screenshare":
			r.URLScreenshare = &link
		case "notes":
			r.URLNotes = &link
		case "video", "Video":
			fixed := p.fixVideoURL(link)
			r.URLVideo = &fixed
		}
	}

	if r.URL == nil && r.URLScreenshare == nil && r.URLVideo == nil && r.URLNotes == nil {
		return models.Recording{}, false
	}
	return r, true
}

// fixVideoURL repairs video links that some servers emit without a host
// ("https:///playback/...") using the host the request went to.
func (p *recordingParser) fixVideoURL(link string) string {
	if !strings.Contains(link, "///") {
		return link
	}
	return strings.ReplaceAll(link, "///", "//"+bbb.Hostname(p.requestURL)+"/")
}

// formatTime renders a BBB millisecond timestamp in the event's zone.
//
// BBB reports times in its own wall clock rather than UTC. The servers are
// assumed to share the system time zone, so the value is read in systemTZ
// before it is shown in the event's zone.
func (p *recordingParser) formatTime(ms int64) string {
	t := time.UnixMilli(ms).In(p.systemTZ).In(p.eventTZ)
	if t.Nanosecond()/1000 != 0 {
		return t.Format(isoMicros)
	}
	return t.Format(isoSeconds)
}

// eventLocation loads the event's zone, falling back to UTC.
func eventLocation(name string) *time.Location {
	if name == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		log.Warn().Err(err).Str("timezone", name).Msg("unknown event time zone, using UTC")
		return time.UTC
	}
	return loc
}
