package models

// RecordingErrorType classifies an empty recordings result.
type RecordingErrorType string

const (
	RecordingErrorNoRecordings   RecordingErrorType = "NO_RECORDINGS"
	RecordingErrorBBBUnavailable RecordingErrorType = "BBB_UNAVAILABLE"
)

// Recording is one published recording, normalized across servers. Times
// are ISO-8601 in the event's time zone.
type Recording struct {
	Start          string  `json:"start"`
	End            string  `json:"end"`
	Participants   int     `json:"participants"`
	State          string  `json:"state"`
	URL            *string `json:"url"`
	URLVideo       *string `json:"url_video"`
	URLScreenshare *string `json:"url_screenshare"`
	URLNotes       *string `json:"url_notes"`
}

// RecordingsResult is the aggregated answer for a room. ErrorType is nil
// whenever Recordings is non-empty.
type RecordingsResult struct {
	Recordings []Recording         `json:"recordings"`
	ErrorType  *RecordingErrorType `json:"error_type"`
}
