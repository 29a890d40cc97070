package handler

import (
	"net/http"

	"github.com/fruitai/outreach/internal/apperr"
	"github.com/fruitai/outreach/internal/template"
)

// PreviewRequest is the body of a template preview
type PreviewRequest struct {
	TemplateID     string         `json:"templateId"`
	Customizations map[string]any `json:"customizations,omitempty"`
	Data           PreviewData    `json:"data"`
}

// PreviewData is sample prospect data for a preview
type PreviewData struct {
	Name          string `json:"name,omitempty"`
	Company       string `json:"company,omitempty"`
	Email         string `json:"email,omitempty"`
	SenderName    string `json:"senderName,omitempty"`
	SenderCompany string `json:"senderCompany,omitempty"`
	Website       string `json:"website,omitempty"`
	Goal          string `json:"goal,omitempty"`
	Body          string `json:"body,omitempty"`
}

// ListTemplates handles GET /api/v1/templates
func (h *Handler) ListTemplates(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"templates": h.renderer.Registry().List()})
}

// GetTemplate handles GET /api/v1/templates/{id}
func (h *Handler) GetTemplate(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	t, err := h.renderer.Registry().Get(id)
	if err != nil {
		h.writeAppError(w, r, apperr.New(apperr.KindNotFound, "template %q not found", id))
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// PreviewTemplate handles POST /api/v1/templates/preview
func (h *Handler) PreviewTemplate(w http.ResponseWriter, r *http.Request) {
	var req PreviewRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "Invalid request body: "+err.Error())
		return
	}
	if req.TemplateID == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "templateId is required")
		return
	}

	out, err := h.renderer.Render(req.TemplateID, req.Customizations, template.Data{
		Name:          req.Data.Name,
		Company:       req.Data.Company,
		Email:         req.Data.Email,
		SenderName:    req.Data.SenderName,
		SenderCompany: req.Data.SenderCompany,
		Website:       req.Data.Website,
		Goal:          req.Data.Goal,
		Body:          req.Data.Body,
	})
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}
