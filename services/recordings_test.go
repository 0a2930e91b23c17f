package services

import (
	"strings"
	"testing"
	"time"

	"github.com/antchfx/xmlquery"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseRecordingsDoc(t *testing.T, p *recordingParser, inner string) *xmlquery.Node {
	t.Helper()
	doc, err := xmlquery.Parse(strings.NewReader(
		`<response><returncode>SUCCESS</returncode><recordings>` + inner + `</recordings></response>`))
	require.NoError(t, err)
	root := xmlquery.FindOne(doc, "/response")
	require.NotNil(t, root)
	return root
}

func newTestParser(t *testing.T, eventTZ string) *recordingParser {
	t.Helper()
	loc, err := time.LoadLocation(eventTZ)
	require.NoError(t, err)
	return &recordingParser{
		requestURL: "https://bbb3.example.org/bigbluebutton/api/getRecordings?meetingID=m&checksum=x",
		systemTZ:   time.UTC,
		eventTZ:    loc,
		logger:     zerolog.Nop(),
	}
}

func TestRecordingParserSkipsMalformedEntries(t *testing.T) {
	p := newTestParser(t, "UTC")
	root := parseRecordingsDoc(t, p,
		// missing participants
		recordingXML("published", recStart, recStart+1000, "", "presentation", "https://p/1")+
			// non-numeric participants
			recordingXML("published", recStart, recStart+1000, "many", "presentation", "https://p/2")+
			// no usable playback
			recordingXML("published", recStart, recStart+1000, "3", "podcast", "https://p/3")+
			// format without url
			recordingXML("published", recStart, recStart+1000, "3", "presentation", "")+
			// missing state
			`<recording><startTime>1</startTime><endTime>2</endTime><participants>1</participants>`+
			`<playback><format><type>presentation</type><url>https://p/5</url></format></playback></recording>`+
			// missing times
			`<recording><state>published</state><participants>1</participants>`+
			`<playback><format><type>presentation</type><url>https://p/6</url></format></playback></recording>`+
			recordingXML("published", recStart, recStart+1000, "4", "screenshare", "https://s/7"))

	recs := p.parse(root)
	require.Len(t, recs, 1)
	require.NotNil(t, recs[0].URLScreenshare)
	assert.Equal(t, "https://s/7", *recs[0].URLScreenshare)
	assert.Equal(t, 4, recs[0].Participants)
}

func TestRecordingParserFixesHostlessVideoURLs(t *testing.T) {
	p := newTestParser(t, "UTC")
	root := parseRecordingsDoc(t, p,
		recordingXML("published", recStart, recStart+1000, "1", "Video", "https:///playback/video/abc/")+
			recordingXML("published", recStart, recStart+1000, "1", "video", "https:///playback/video/def/")+
			recordingXML("published", recStart, recStart+1000, "1", "video", "https://cdn.example/v/ghi/"))

	recs := p.parse(root)
	require.Len(t, recs, 3)
	assert.Equal(t, "https://bbb3.example.org/playback/video/abc/", *recs[0].URLVideo)
	assert.Equal(t, "https://bbb3.example.org/playback/video/def/", *recs[1].URLVideo)
	assert.Equal(t, "https://cdn.example/v/ghi/", *recs[2].URLVideo)
}

func TestRecordingParserCollectsAllFormats(t *testing.T) {
	p := newTestParser(t, "America/New_York")
	root := parseRecordingsDoc(t, p, recordingXML("Published", recStart, recStart+60000, "7",
		"presentation", "https://p/1",
		"screenshare", "https://s/1",
		"video", "https://v/1",
		"notes", "https://n/1"))

	recs := p.parse(root)
	require.Len(t, recs, 1)
	r := recs[0]
	assert.Equal(t, "published", r.State)
	assert.Equal(t, "https://p/1", *r.URL)
	assert.Equal(t, "https://s/1", *r.URLScreenshare)
	assert.Equal(t, "https://v/1", *r.URLVideo)
	assert.Equal(t, "https://n/1", *r.URLNotes)
	// 12:00Z is 08:00 in New York once daylight saving started on 2024-03-10.
	assert.Equal(t, "2024-03-10T08:00:00-04:00", r.Start)
	assert.Equal(t, "2024-03-10T08:01:00-04:00", r.End)
}

func TestFormatTimeMatchesISOFormat(t *testing.T) {
	p := newTestParser(t, "UTC")
	assert.Equal(t, "2024-03-10T12:00:00+00:00", p.formatTime(recStart))
	assert.Equal(t, "2024-03-10T12:00:00.007000+00:00", p.formatTime(recStart+7))
}

func TestEventLocationFallsBackToUTC(t *testing.T) {
	assert.Equal(t, time.UTC, eventLocation(""))
	assert.Equal(t, time.UTC, eventLocation("Mars/Olympus_Mons"))
	assert.Equal(t, "Europe/Berlin", eventLocation("Europe/Berlin").String())
}
