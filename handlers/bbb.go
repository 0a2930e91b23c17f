package handlers

import (
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/akinalp/stagecall/models"
	"github.com/akinalp/stagecall/pkg"
	"github.com/akinalp/stagecall/services"
)

// BBBHandler serves join links, recordings and direct calls.
//
// Failures are reported with the protocol error code in the error field,
// so HTTP clients see the same codes as WebSocket clients.
type BBBHandler struct {
	live services.LiveCallService
}

// NewBBBHandler builds a BBBHandler.
func NewBBBHandler(live services.LiveCallService) *BBBHandler {
	return &BBBHandler{live: live}
}

type joinURLResponse struct {
	URL string `json:"url"`
}

// RoomURL returns a join link for the room's video call.
//
//	POST /api/rooms/{roomId}/bbb/join
//	Response: { "url": "https://bbb.example/bigbluebutton/api/join?..." }
func (h *BBBHandler) RoomURL(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	joinURL, err := h.live.RoomURL(r.Context(), user, r.PathValue("roomId"))
	if err != nil {
		callError(w, err, pkg.CodeRoomUnknown)
		return
	}
	pkg.JSON(w, http.StatusOK, joinURLResponse{URL: joinURL})
}

// CallURL returns a join link for a direct call the user is invited to.
//
//	POST /api/calls/{callId}/bbb/join
func (h *BBBHandler) CallURL(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	joinURL, err := h.live.CallURL(r.Context(), user, r.PathValue("callId"))
	if err != nil {
		callError(w, err, pkg.CodeCallUnknown)
		return
	}
	pkg.JSON(w, http.StatusOK, joinURLResponse{URL: joinURL})
}

// Recordings lists the published recordings of the room's call.
//
//	GET /api/rooms/{roomId}/bbb/recordings
//	Response: { "recordings": [...], "error_type": null | "NO_RECORDINGS" | "BBB_UNAVAILABLE" }
func (h *BBBHandler) Recordings(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	result, err := h.live.Recordings(r.Context(), user, r.PathValue("roomId"))
	if err != nil {
		callError(w, err, pkg.CodeRoomUnknown)
		return
	}
	pkg.JSON(w, http.StatusOK, result)
}

// StartCall creates a direct call with the given members of the caller's
// event.
//
//	POST /api/calls
//	Request:  { "invitees": ["user-id", ...] }
//	Response: { "id": "...", "members": [...] }
func (h *BBBHandler) StartCall(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req models.CreateDirectCallRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkg.ErrorWithMessage(w, http.StatusBadRequest, pkg.CodeBadRequest)
		return
	}

	direct, err := h.live.StartDirectCall(r.Context(), user, &req)
	if err != nil {
		callError(w, err, pkg.CodeCallUnknown)
		return
	}
	pkg.JSON(w, http.StatusCreated, direct)
}

func callError(w http.ResponseWriter, err error, unknownCode string) {
	code := pkg.ErrorCode(err, unknownCode)
	if code == pkg.CodeInternal {
		log.Error().Err(err).Msg("video call request failed")
	}
	pkg.ErrorWithMessage(w, pkg.StatusFor(err), code)
}
