package handlers

import (
	"net/http"

	"github.com/akinalp/stagecall/models"
	"github.com/akinalp/stagecall/pkg"
	"github.com/akinalp/stagecall/services"
)

// AdminHandler manages the conferencing server pool. Routes are wrapped in
// PlatformAdminMiddleware.
type AdminHandler struct {
	servers services.ServerAdminService
	costs   services.CostUpdater
}

// NewAdminHandler builds an AdminHandler.
func NewAdminHandler(servers services.ServerAdminService, costs services.CostUpdater) *AdminHandler {
	return &AdminHandler{servers: servers, costs: costs}
}

// ListServers handles GET /api/admin/conferencing-servers
func (h *AdminHandler) ListServers(w http.ResponseWriter, r *http.Request) {
	views, err := h.servers.List(r.Context())
	if err != nil {
		pkg.Error(w, err)
		return
	}
	pkg.JSON(w, http.StatusOK, views)
}

// GetServer handles GET /api/admin/conferencing-servers/{id}
func (h *AdminHandler) GetServer(w http.ResponseWriter, r *http.Request) {
	server, err := h.servers.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		pkg.Error(w, err)
		return
	}
	pkg.JSON(w, http.StatusOK, server)
}

// CreateServer handles POST /api/admin/conferencing-servers
func (h *AdminHandler) CreateServer(w http.ResponseWriter, r *http.Request) {
	var req models.CreateConferencingServerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkg.ErrorWithMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	server, err := h.servers.Create(r.Context(), &req)
	if err != nil {
		pkg.Error(w, err)
		return
	}
	pkg.JSON(w, http.StatusCreated, server)
}

// UpdateServer handles PATCH /api/admin/conferencing-servers/{id}
func (h *AdminHandler) UpdateServer(w http.ResponseWriter, r *http.Request) {
	var req models.UpdateConferencingServerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkg.ErrorWithMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	server, err := h.servers.Update(r.Context(), r.PathValue("id"), &req)
	if err != nil {
		pkg.Error(w, err)
		return
	}
	pkg.JSON(w, http.StatusOK, server)
}

// DeleteServer handles DELETE /api/admin/conferencing-servers/{id}?migrate_to={targetId}
// Calls still placed on the server move to migrate_to.
func (h *AdminHandler) DeleteServer(w http.ResponseWriter, r *http.Request) {
	migrateTo := r.URL.Query().Get("migrate_to")
	if err := h.servers.Delete(r.Context(), r.PathValue("id"), migrateTo); err != nil {
		pkg.Error(w, err)
		return
	}
	pkg.JSON(w, http.StatusOK, map[string]string{"message": "server deleted"})
}

// MoveRoom handles POST /api/admin/rooms/{roomId}/move
// Body: { "server_id": "..." }
func (h *AdminHandler) MoveRoom(w http.ResponseWriter, r *http.Request) {
	var req models.MoveRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkg.ErrorWithMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		pkg.ErrorWithMessage(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.servers.MoveRoom(r.Context(), r.PathValue("roomId"), req.ServerID); err != nil {
		pkg.Error(w, err)
		return
	}
	pkg.JSON(w, http.StatusOK, map[string]string{"message": "room moved"})
}

// UpdateCosts handles POST /api/admin/conferencing-servers/update-costs
// Polls every active server now instead of waiting for the schedule and
// returns the refreshed listing.
func (h *AdminHandler) UpdateCosts(w http.ResponseWriter, r *http.Request) {
	h.costs.UpdateAll(r.Context())

	views, err := h.servers.List(r.Context())
	if err != nil {
		pkg.Error(w, err)
		return
	}
	pkg.JSON(w, http.StatusOK, views)
}
