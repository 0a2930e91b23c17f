// Package pkg holds helpers shared by every layer: domain errors and the
// JSON response envelope.
package pkg

import "errors"

// Domain errors. Services wrap them with fmt.Errorf("...: %w", ...) and the
// transport layers map them to status codes and protocol error codes.
var (
	ErrNotFound       = errors.New("not found")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrAlreadyExists  = errors.New("already exists")
	ErrBadRequest     = errors.New("bad request")
	ErrInternal       = errors.New("internal error")
	ErrMissingProfile = errors.New("missing profile")
	ErrRateLimited    = errors.New("too many requests")

	// ErrUnavailable means no conferencing server could serve the request.
	// It is a soft failure: the client shows "video call unavailable".
	ErrUnavailable = errors.New("video call unavailable")
)

// Protocol error codes shared by the HTTP and WebSocket surfaces.
const (
	CodeRoomUnknown    = "room.unknown"
	CodeCallUnknown    = "call.unknown"
	CodeDenied         = "protocol.denied"
	CodeUnauthorized   = "protocol.unauthenticated"
	CodeMissingProfile = "bbb.join.missing_profile"
	CodeFailed         = "bbb.failed"
	CodeBadRequest     = "protocol.read_failed"
	CodeUnknownCommand = "protocol.unknown_command"
	CodeRateLimited    = "protocol.rate_limited"
	CodeInternal       = "server.error"
)

// ErrorCode maps an error returned by the call services to its protocol code.
// unknownCode is used for ErrNotFound, since the same sentinel stands for a
// missing room or a missing call depending on the command.
func ErrorCode(err error, unknownCode string) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return unknownCode
	case errors.Is(err, ErrForbidden):
		return CodeDenied
	case errors.Is(err, ErrUnauthorized):
		return CodeUnauthorized
	case errors.Is(err, ErrMissingProfile):
		return CodeMissingProfile
	case errors.Is(err, ErrUnavailable):
		return CodeFailed
	case errors.Is(err, ErrBadRequest):
		return CodeBadRequest
	case errors.Is(err, ErrRateLimited):
		return CodeRateLimited
	default:
		return CodeInternal
	}
}
