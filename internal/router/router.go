package router

import (
	"net/http"

	"github.com/fruitai/outreach/internal/config"
	"github.com/fruitai/outreach/internal/handler"
	"github.com/fruitai/outreach/internal/middleware"
)

// New creates and configures the HTTP router
func New(h *handler.Handler, mw *middleware.Middleware, ws http.Handler, cfg *config.Config) http.Handler {
	mux := http.NewServeMux()

	// Health check endpoints (no auth required)
	mux.HandleFunc("GET /health", h.Health)
	mux.HandleFunc("GET /ready", h.Ready)

	api := func(next http.HandlerFunc) http.Handler {
		return mw.Auth(mw.RateLimit(mw.DefaultRateLimit("api"))(next))
	}

	mux.Handle("GET /api/v1/{$}", api(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"message":"Outreach API v1","version":"` + handler.Version + `"}`))
	}))

	// Campaigns
	mux.Handle("POST /api/v1/campaigns", api(h.StartCampaign))
	mux.Handle("GET /api/v1/campaigns", api(h.ListCampaigns))
	mux.Handle("GET /api/v1/campaigns/{id}", api(h.GetCampaign))
	mux.Handle("GET /api/v1/campaigns/{id}/status", api(h.CampaignStatus))
	mux.Handle("GET /api/v1/campaigns/{id}/prospects", api(h.CampaignProspects))
	mux.Handle("GET /api/v1/campaigns/{id}/emails", api(h.CampaignEmails))
	mux.Handle("GET /api/v1/campaigns/{id}/transitions", api(h.CampaignTransitions))
	mux.Handle("GET /api/v1/campaigns/{id}/events", api(h.CampaignEvents))
	mux.Handle("POST /api/v1/campaigns/{id}/template", api(h.SelectTemplate))
	mux.Handle("POST /api/v1/campaigns/{id}/review", api(h.ReviewCampaign))
	mux.Handle("POST /api/v1/campaigns/{id}/cancel", api(h.CancelCampaign))

	// Templates
	mux.Handle("GET /api/v1/templates", api(h.ListTemplates))
	mux.Handle("POST /api/v1/templates/preview", api(h.PreviewTemplate))
	mux.Handle("GET /api/v1/templates/{id}", api(h.GetTemplate))

	mux.Handle("GET /api/v1/metadata", api(h.Metadata))

	// Open and click tracking, fetched by mail clients without credentials
	tracked := mw.RateLimit(mw.DefaultRateLimit("tracking"))
	mux.Handle("GET /t/open/{emailId}", tracked(http.HandlerFunc(h.TrackOpen)))
	mux.Handle("GET /t/click/{emailId}/{index}", tracked(http.HandlerFunc(h.TrackClick)))

	// Status channel
	mux.Handle("GET /ws/workflow", mw.Auth(ws))

	// Apply middleware stack
	var handler http.Handler = mux

	handler = mw.CORS(cfg.Server.AllowedOrigins)(handler)

	// Security headers
	handler = mw.SecurityHeaders(handler)

	// Request logging
	handler = mw.Logger(handler)

	// Timing
	handler = mw.Timing(handler)

	// Request ID
	handler = mw.RequestID(handler)

	// Panic recovery (outermost)
	handler = mw.Recover(handler)

	return handler
}
