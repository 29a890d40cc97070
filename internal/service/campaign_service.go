package service

import (
	"context"
	"strings"

	"github.com/fruitai/outreach/internal/apperr"
	"github.com/fruitai/outreach/internal/logger"
	"github.com/fruitai/outreach/internal/model"
	"github.com/fruitai/outreach/internal/repository"
	"github.com/fruitai/outreach/internal/workflow"
)

// Paging limits for campaign listings
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Archive is the read side of campaign storage. It is satisfied by
// repository.Store.
type Archive interface {
	GetCampaign(ctx context.Context, id string) (*model.Campaign, error)
	ListCampaigns(ctx context.Context, f repository.CampaignFilter) ([]*model.Campaign, int, error)
	CountProspects(ctx context.Context, campaignID string) (int, error)
	ListProspects(ctx context.Context, campaignID string) ([]*model.Prospect, error)
	ListEmails(ctx context.Context, campaignID string) ([]*model.Email, error)
	EmailStats(ctx context.Context, campaignID string) (model.EmailStats, error)
	ListTransitions(ctx context.Context, campaignID string) ([]*model.Transition, error)
}

// Workflow is the part of the coordinator the API drives
type Workflow interface {
	Start(ctx context.Context, req workflow.StartRequest) (*model.Campaign, error)
	Apply(ctx context.Context, a workflow.Action) (workflow.Result, error)
	Snapshot(id string) (workflow.Snapshot, error)
}

// StartCampaignRequest is the body of a start call
type StartCampaignRequest struct {
	ID            string            `json:"id,omitempty"`
	TargetWebsite string            `json:"targetWebsite"`
	Goal          string            `json:"goal"`
	BusinessType  string            `json:"businessType"`
	SenderName    string            `json:"senderName,omitempty"`
	SenderCompany string            `json:"senderCompany,omitempty"`
	SMTP          *model.SMTPConfig `json:"smtp"`
	Defaults      map[string]any    `json:"defaults,omitempty"`
}

// SelectTemplateRequest is the body of a template selection
type SelectTemplateRequest struct {
	PauseID        string         `json:"pauseId,omitempty"`
	TemplateID     string         `json:"templateId"`
	Customizations map[string]any `json:"customizations,omitempty"`
}

// Review decisions
const (
	DecisionApprove = "approve"
	DecisionReject  = "reject"
	DecisionEdit    = "edit"
)

// ReviewRequest is the body of a review decision
type ReviewRequest struct {
	Decision       string         `json:"decision"`
	PauseID        string         `json:"pauseId,omitempty"`
	TemplateID     string         `json:"templateId,omitempty"`
	Customizations map[string]any `json:"customizations,omitempty"`
	Feedback       string         `json:"feedback,omitempty"`
}

// ListCampaignsRequest selects one page of campaigns
type ListCampaignsRequest struct {
	Page     int
	PageSize int
	Status   model.WorkflowStatus
}

// CampaignPage is one page of campaigns
type CampaignPage struct {
	Campaigns []*model.Campaign `json:"campaigns"`
	Total     int               `json:"total"`
	Page      int               `json:"page"`
	PageSize  int               `json:"pageSize"`
}

// CampaignDetails is a stored campaign with its counts and live state
type CampaignDetails struct {
	Campaign  *model.Campaign    `json:"campaign"`
	Prospects int                `json:"prospects"`
	Emails    model.EmailStats   `json:"emails"`
	Live      *workflow.Snapshot `json:"live,omitempty"`
}

// CampaignService serves campaign queries and forwards decisions to the workflow
type CampaignService struct {
	archive  Archive
	workflow Workflow
	log      *logger.Logger
}

// NewCampaignService creates a new CampaignService
func NewCampaignService(archive Archive, wf Workflow, log *logger.Logger) *CampaignService {
	return &CampaignService{
		archive:  archive,
		workflow: wf,
		log:      log.WithComponent("campaign_service"),
	}
}

// Start begins a new campaign
func (s *CampaignService) Start(ctx context.Context, req StartCampaignRequest) (*model.Campaign, error) {
	c, err := s.workflow.Start(ctx, workflow.StartRequest{
		ID:            req.ID,
		TargetWebsite: req.TargetWebsite,
		Goal:          req.Goal,
		BusinessType:  req.BusinessType,
		SenderName:    req.SenderName,
		SenderCompany: req.SenderCompany,
		SMTP:          req.SMTP,
		Defaults:      req.Defaults,
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().Str("campaign_id", c.ID).Str("target_website", c.TargetWebsite).Msg("campaign started")
	return redact(c), nil
}

// List returns one page of stored campaigns
func (s *CampaignService) List(ctx context.Context, req ListCampaignsRequest) (*CampaignPage, error) {
	if req.Status != "" && !req.Status.Valid() {
		return nil, apperr.New(apperr.KindConfiguration, "unknown status %q", req.Status)
	}
	if req.Page < 1 {
		req.Page = 1
	}
	switch {
	case req.PageSize < 1:
		req.PageSize = DefaultPageSize
	case req.PageSize > MaxPageSize:
		req.PageSize = MaxPageSize
	}

	campaigns, total, err := s.archive.ListCampaigns(ctx, repository.CampaignFilter{
		Status: req.Status,
		Limit:  req.PageSize,
		Offset: (req.Page - 1) * req.PageSize,
	})
	if err != nil {
		return nil, err
	}

	page := &CampaignPage{
		Campaigns: make([]*model.Campaign, 0, len(campaigns)),
		Total:     total,
		Page:      req.Page,
		PageSize:  req.PageSize,
	}
	for _, c := range campaigns {
		page.Campaigns = append(page.Campaigns, redact(c))
	}
	return page, nil
}

// Get returns a campaign with its prospect count, email stats and live state
func (s *CampaignService) Get(ctx context.Context, id string) (*CampaignDetails, error) {
	c, err := s.archive.GetCampaign(ctx, id)
	if err != nil {
		return nil, err
	}

	prospects, err := s.archive.CountProspects(ctx, id)
	if err != nil {
		return nil, err
	}
	stats, err := s.archive.EmailStats(ctx, id)
	if err != nil {
		return nil, err
	}

	details := &CampaignDetails{
		Campaign:  redact(c),
		Prospects: prospects,
		Emails:    stats,
	}
	if snap, err := s.workflow.Snapshot(id); err == nil {
		details.Live = &snap
	}
	return details, nil
}

// Status returns the live snapshot of a campaign, or its stored state when
// no run is active
func (s *CampaignService) Status(ctx context.Context, id string) (*workflow.Snapshot, error) {
	if snap, err := s.workflow.Snapshot(id); err == nil {
		return &snap, nil
	}

	c, err := s.archive.GetCampaign(ctx, id)
	if err != nil {
		return nil, err
	}
	prospects, err := s.archive.CountProspects(ctx, id)
	if err != nil {
		return nil, err
	}
	stats, err := s.archive.EmailStats(ctx, id)
	if err != nil {
		return nil, err
	}
	return &workflow.Snapshot{
		Campaign:  *redact(c),
		Prospects: prospects,
		Emails:    stats.Total,
	}, nil
}

// Prospects returns a campaign's prospects in discovery order
func (s *CampaignService) Prospects(ctx context.Context, id string) ([]*model.Prospect, error) {
	if _, err := s.archive.GetCampaign(ctx, id); err != nil {
		return nil, err
	}
	return s.archive.ListProspects(ctx, id)
}

// Emails returns a campaign's emails in insertion order
func (s *CampaignService) Emails(ctx context.Context, id string) ([]*model.Email, error) {
	if _, err := s.archive.GetCampaign(ctx, id); err != nil {
		return nil, err
	}
	return s.archive.ListEmails(ctx, id)
}

// Transitions returns a campaign's audit trail
func (s *CampaignService) Transitions(ctx context.Context, id string) ([]*model.Transition, error) {
	if _, err := s.archive.GetCampaign(ctx, id); err != nil {
		return nil, err
	}
	return s.archive.ListTransitions(ctx, id)
}

// SelectTemplate resumes a campaign paused for template selection
func (s *CampaignService) SelectTemplate(ctx context.Context, id string, req SelectTemplateRequest) (workflow.Result, error) {
	return s.workflow.Apply(ctx, workflow.Action{
		Kind:           workflow.ActionSelectTemplate,
		CampaignID:     id,
		PauseID:        req.PauseID,
		TemplateID:     strings.TrimSpace(req.TemplateID),
		Customizations: req.Customizations,
	})
}

// Review applies a review decision to a campaign paused for review
func (s *CampaignService) Review(ctx context.Context, id string, req ReviewRequest) (workflow.Result, error) {
	var kind workflow.ActionKind
	switch strings.ToLower(strings.TrimSpace(req.Decision)) {
	case DecisionApprove:
		kind = workflow.ActionApprove
	case DecisionReject:
		kind = workflow.ActionReject
	case DecisionEdit:
		kind = workflow.ActionEdit
	default:
		return workflow.Result{}, apperr.New(apperr.KindConfiguration,
			"decision must be one of approve, reject or edit")
	}

	return s.workflow.Apply(ctx, workflow.Action{
		Kind:           kind,
		CampaignID:     id,
		PauseID:        req.PauseID,
		TemplateID:     strings.TrimSpace(req.TemplateID),
		Customizations: req.Customizations,
		Feedback:       req.Feedback,
	})
}

// Cancel stops a campaign. Cancelling a finished campaign changes nothing.
func (s *CampaignService) Cancel(ctx context.Context, id string) (workflow.Result, error) {
	return s.workflow.Apply(ctx, workflow.Action{Kind: workflow.ActionCancel, CampaignID: id})
}

func redact(c *model.Campaign) *model.Campaign {
	out := *c
	if c.SMTP != nil {
		smtp := c.SMTP.Redacted()
		out.SMTP = &smtp
	}
	return &out
}
