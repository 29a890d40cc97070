package handler

import (
	"net/http"
	"strconv"

	"github.com/fruitai/outreach/internal/apperr"
	"github.com/fruitai/outreach/internal/middleware"
	"github.com/fruitai/outreach/internal/model"
	"github.com/fruitai/outreach/internal/service"
)

// transparentGIF is a 1x1 transparent GIF
var transparentGIF = []byte{
	0x47, 0x49, 0x46, 0x38, 0x39, 0x61, 0x01, 0x00, 0x01, 0x00, 0x80, 0x00, 0x00, 0x00, 0x00, 0x00,
	0xff, 0xff, 0xff, 0x21, 0xf9, 0x04, 0x01, 0x00, 0x00, 0x00, 0x00, 0x2c, 0x00, 0x00, 0x00, 0x00,
	0x01, 0x00, 0x01, 0x00, 0x00, 0x02, 0x02, 0x44, 0x01, 0x00, 0x3b,
}

func visitOf(r *http.Request) service.Visit {
	return service.Visit{
		UserAgent: r.UserAgent(),
		IPAddress: middleware.IPKey(r),
	}
}

// TrackOpen handles GET /t/open/{emailId}. The pixel is served whatever the
// outcome.
func (h *Handler) TrackOpen(w http.ResponseWriter, r *http.Request) {
	if err := h.trackingSvc.Open(r.Context(), r.PathValue("emailId"), visitOf(r)); err != nil {
		h.log.Warn().Err(err).
			Str("email_id", r.PathValue("emailId")).
			Str("request_id", middleware.GetRequestID(r.Context())).
			Msg("failed to track open")
	}

	w.Header().Set("Content-Type", "image/gif")
	w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate, max-age=0")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Content-Length", strconv.Itoa(len(transparentGIF)))
	w.WriteHeader(http.StatusOK)
	w.Write(transparentGIF)
}

// TrackClick handles GET /t/click/{emailId}/{index}. Only links stored with
// the email are redirected to.
func (h *Handler) TrackClick(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil {
		writeError(w, http.StatusNotFound, string(apperr.KindNotFound), "Link not found")
		return
	}

	dest, err := h.trackingSvc.Click(r.Context(), r.PathValue("emailId"), index, visitOf(r))
	if dest == "" {
		h.writeAppError(w, r, err)
		return
	}
	if err != nil {
		h.log.Warn().Err(err).
			Str("email_id", r.PathValue("emailId")).
			Str("request_id", middleware.GetRequestID(r.Context())).
			Msg("failed to track click")
	}

	w.Header().Set("Cache-Control", "no-store")
	http.Redirect(w, r, dest, http.StatusFound)
}

// CampaignEvents handles GET /api/v1/campaigns/{id}/events
func (h *Handler) CampaignEvents(w http.ResponseWriter, r *http.Request) {
	typ := model.EngagementType(r.URL.Query().Get("type"))
	out, err := h.trackingSvc.Events(r.Context(), r.PathValue("id"), typ)
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": out})
}
