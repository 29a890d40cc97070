package handler

import (
	"net/http"
	"strings"
)

// Metadata handles GET /api/v1/metadata?url=
func (h *Handler) Metadata(w http.ResponseWriter, r *http.Request) {
	target := strings.TrimSpace(r.URL.Query().Get("url"))
	if target == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "url is required")
		return
	}
	writeJSON(w, http.StatusOK, h.fetcher.Fetch(r.Context(), target))
}
