package workflow

import (
	"context"

	"github.com/fruitai/outreach/internal/email"
	"github.com/fruitai/outreach/internal/model"
	"github.com/fruitai/outreach/internal/template"
)

// Store persists campaigns and everything they produce. It is satisfied by
// repository.Store.
type Store interface {
	CreateCampaign(ctx context.Context, c *model.Campaign, t *model.Transition) error
	UpdateCampaign(ctx context.Context, c *model.Campaign, t *model.Transition) error
	GetCampaign(ctx context.Context, id string) (*model.Campaign, error)
	AddProspect(ctx context.Context, p *model.Prospect) error
	SaveEmail(ctx context.Context, e *model.Email) error
	ListActiveCampaigns(ctx context.Context) ([]*model.Campaign, error)
	ListProspects(ctx context.Context, campaignID string) ([]*model.Prospect, error)
	ListEmails(ctx context.Context, campaignID string) ([]*model.Email, error)
}

// Renderer turns a template selection into email content
type Renderer interface {
	Has(templateID string) bool
	Render(templateID string, customizations map[string]any, data template.Data) (template.Rendered, error)
}

// Mailer delivers one message, choosing the transport itself
type Mailer interface {
	Send(ctx context.Context, msg email.Message, smtp *email.SMTPSettings) (email.Result, error)
}
