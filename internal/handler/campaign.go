package handler

import (
	"net/http"
	"strconv"

	"github.com/fruitai/outreach/internal/model"
	"github.com/fruitai/outreach/internal/service"
)

// StartCampaign handles POST /api/v1/campaigns
func (h *Handler) StartCampaign(w http.ResponseWriter, r *http.Request) {
	var req service.StartCampaignRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "Invalid request body: "+err.Error())
		return
	}

	c, err := h.campaignSvc.Start(r.Context(), req)
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

// ListCampaigns handles GET /api/v1/campaigns
func (h *Handler) ListCampaigns(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	page, err := intParam(q.Get("page"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "page must be a number")
		return
	}
	pageSize, err := intParam(q.Get("page_size"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "page_size must be a number")
		return
	}

	out, err := h.campaignSvc.List(r.Context(), service.ListCampaignsRequest{
		Page:     page,
		PageSize: pageSize,
		Status:   model.WorkflowStatus(q.Get("status")),
	})
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// GetCampaign handles GET /api/v1/campaigns/{id}
func (h *Handler) GetCampaign(w http.ResponseWriter, r *http.Request) {
	out, err := h.campaignSvc.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// CampaignStatus handles GET /api/v1/campaigns/{id}/status
func (h *Handler) CampaignStatus(w http.ResponseWriter, r *http.Request) {
	out, err := h.campaignSvc.Status(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// CampaignProspects handles GET /api/v1/campaigns/{id}/prospects
func (h *Handler) CampaignProspects(w http.ResponseWriter, r *http.Request) {
	out, err := h.campaignSvc.Prospects(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}
	if out == nil {
		out = []*model.Prospect{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"prospects": out})
}

// CampaignEmails handles GET /api/v1/campaigns/{id}/emails
func (h *Handler) CampaignEmails(w http.ResponseWriter, r *http.Request) {
	out, err := h.campaignSvc.Emails(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}
	if out == nil {
		out = []*model.Email{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"emails": out})
}

// CampaignTransitions handles GET /api/v1/campaigns/{id}/transitions
func (h *Handler) CampaignTransitions(w http.ResponseWriter, r *http.Request) {
	out, err := h.campaignSvc.Transitions(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}
	if out == nil {
		out = []*model.Transition{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"transitions": out})
}

// SelectTemplate handles POST /api/v1/campaigns/{id}/template
func (h *Handler) SelectTemplate(w http.ResponseWriter, r *http.Request) {
	var req service.SelectTemplateRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "Invalid request body: "+err.Error())
		return
	}

	out, err := h.campaignSvc.SelectTemplate(r.Context(), r.PathValue("id"), req)
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// ReviewCampaign handles POST /api/v1/campaigns/{id}/review
func (h *Handler) ReviewCampaign(w http.ResponseWriter, r *http.Request) {
	var req service.ReviewRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "Invalid request body: "+err.Error())
		return
	}

	out, err := h.campaignSvc.Review(r.Context(), r.PathValue("id"), req)
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// CancelCampaign handles POST /api/v1/campaigns/{id}/cancel
func (h *Handler) CancelCampaign(w http.ResponseWriter, r *http.Request) {
	out, err := h.campaignSvc.Cancel(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func intParam(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.Atoi(s)
}
