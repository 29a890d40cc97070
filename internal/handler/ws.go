package handler

import (
	"context"

	"github.com/fruitai/outreach/internal/apperr"
	"github.com/fruitai/outreach/internal/realtime"
	"github.com/fruitai/outreach/internal/service"
	"github.com/fruitai/outreach/internal/workflow"
)

// HandleAction applies a decision sent over the websocket. It goes through
// the same service calls as the REST endpoints.
func (h *Handler) HandleAction(ctx context.Context, a realtime.ClientAction) (any, error) {
	if a.CampaignID == "" {
		return nil, apperr.New(apperr.KindConfiguration, "campaignId is required")
	}

	switch workflow.ActionKind(a.Kind) {
	case workflow.ActionSelectTemplate:
		return h.campaignSvc.SelectTemplate(ctx, a.CampaignID, service.SelectTemplateRequest{
			PauseID:        a.PauseID,
			TemplateID:     a.TemplateID,
			Customizations: a.Customizations,
		})
	case workflow.ActionApprove, workflow.ActionReject, workflow.ActionEdit:
		return h.campaignSvc.Review(ctx, a.CampaignID, service.ReviewRequest{
			Decision:       a.Kind,
			PauseID:        a.PauseID,
			TemplateID:     a.TemplateID,
			Customizations: a.Customizations,
			Feedback:       a.Feedback,
		})
	case workflow.ActionCancel:
		return h.campaignSvc.Cancel(ctx, a.CampaignID)
	default:
		return nil, apperr.New(apperr.KindConfiguration, "unknown action %q", a.Kind)
	}
}
