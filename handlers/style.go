package handlers

import (
	"io/fs"
	"net/http"
)

// StyleHandler serves the embedded assets under /live/, among them the
// style sheet referenced by every join link.
type StyleHandler struct {
	files http.Handler
}

// NewStyleHandler serves assets, an FS rooted above the live/ directory.
func NewStyleHandler(assets fs.FS) *StyleHandler {
	return &StyleHandler{files: http.FileServer(http.FS(assets))}
}

// ServeHTTP handles GET /live/{file}
func (h *StyleHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	h.files.ServeHTTP(w, r)
}
