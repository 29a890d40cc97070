package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/fruitai/outreach/internal/apperr"
	"github.com/fruitai/outreach/internal/logger"
	"github.com/fruitai/outreach/internal/metadata"
	"github.com/fruitai/outreach/internal/middleware"
	"github.com/fruitai/outreach/internal/service"
	"github.com/fruitai/outreach/internal/template"
)

const maxBodyBytes = 1 << 20

// HealthChecker is a dependency checked by /health and /ready
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// MetadataFetcher looks up website metadata
type MetadataFetcher interface {
	Fetch(ctx context.Context, rawURL string) metadata.Info
}

// Handler holds all HTTP handlers
type Handler struct {
	db          HealthChecker
	rdb         HealthChecker
	log         *logger.Logger
	campaignSvc *service.CampaignService
	trackingSvc *service.TrackingService
	renderer    *template.Renderer
	fetcher     MetadataFetcher
}

// New creates a new Handler instance
func New(db, rdb HealthChecker, log *logger.Logger, campaignSvc *service.CampaignService,
	trackingSvc *service.TrackingService, renderer *template.Renderer, fetcher MetadataFetcher) *Handler {
	return &Handler{
		db:          db,
		rdb:         rdb,
		log:         log.WithComponent("http"),
		campaignSvc: campaignSvc,
		trackingSvc: trackingSvc,
		renderer:    renderer,
		fetcher:     fetcher,
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]any{
			"code":    code,
			"message": message,
		},
	})
}

// writeAppError maps an error kind to its HTTP status. Internal errors are
// logged with their cause and reported with their message only.
func (h *Handler) writeAppError(w http.ResponseWriter, r *http.Request, err error) {
	kind := apperr.KindOf(err)
	status := StatusFor(kind)

	resp := map[string]any{
		"code":    string(kind),
		"message": apperr.MessageOf(err),
	}
	if reqID := middleware.GetRequestID(r.Context()); reqID != "" {
		resp["request_id"] = reqID
	}

	if status >= http.StatusInternalServerError {
		h.log.Error().Err(err).
			Str("kind", string(kind)).
			Str("path", r.URL.Path).
			Str("request_id", middleware.GetRequestID(r.Context())).
			Msg("request failed")
	}
	writeJSON(w, status, map[string]any{"error": resp})
}

// StatusFor returns the HTTP status for an error kind
func StatusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindConfiguration:
		return http.StatusBadRequest
	case apperr.KindStaleAction:
		return http.StatusConflict
	case apperr.KindUnknownTemplate:
		return http.StatusUnprocessableEntity
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindNoTransportAvailable, apperr.KindTransport,
		apperr.KindDiscoveryFailure, apperr.KindGenerationFailure:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func readJSON(r *http.Request, v any) error {
	if r.Body == nil {
		return errors.New("request body is empty")
	}
	defer r.Body.Close()

	decoder := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is empty")
		}
		return err
	}
	return nil
}
