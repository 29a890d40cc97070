package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fruitai/outreach/internal/apperr"
	"github.com/fruitai/outreach/internal/logger"
	"github.com/fruitai/outreach/internal/model"
	"github.com/fruitai/outreach/internal/repository"
	"github.com/fruitai/outreach/internal/workflow"
)

type fakeArchive struct {
	campaigns   map[string]*model.Campaign
	lastFilter  repository.CampaignFilter
	prospects   []*model.Prospect
	emails      []*model.Email
	stats       model.EmailStats
	transitions []*model.Transition
}

func (a *fakeArchive) GetCampaign(_ context.Context, id string) (*model.Campaign, error) {
	c, ok := a.campaigns[id]
	if !ok {
		return nil, apperr.New(apperr.KindNotFound, "campaign %q not found", id)
	}
	return c, nil
}

func (a *fakeArchive) ListCampaigns(_ context.Context, f repository.CampaignFilter) ([]*model.Campaign, int, error) {
	a.lastFilter = f
	var out []*model.Campaign
	for _, c := range a.campaigns {
		out = append(out, c)
	}
	return out, len(out), nil
}

func (a *fakeArchive) CountProspects(context.Context, string) (int, error) {
	return len(a.prospects), nil
}

func (a *fakeArchive) ListProspects(context.Context, string) ([]*model.Prospect, error) {
	return a.prospects, nil
}

func (a *fakeArchive) ListEmails(context.Context, string) ([]*model.Email, error) {
	return a.emails, nil
}

func (a *fakeArchive) EmailStats(context.Context, string) (model.EmailStats, error) {
	return a.stats, nil
}

func (a *fakeArchive) ListTransitions(context.Context, string) ([]*model.Transition, error) {
	return a.transitions, nil
}

type fakeWorkflow struct {
	started  workflow.StartRequest
	actions  []workflow.Action
	live     map[string]workflow.Snapshot
	applyErr error
}

func (w *fakeWorkflow) Start(_ context.Context, req workflow.StartRequest) (*model.Campaign, error) {
	w.started = req
	return &model.Campaign{
		ID:            "new",
		TargetWebsite: req.TargetWebsite,
		Status:        model.StatusDiscoveringProspects,
		SMTP:          req.SMTP,
	}, nil
}

func (w *fakeWorkflow) Apply(_ context.Context, a workflow.Action) (workflow.Result, error) {
	w.actions = append(w.actions, a)
	if w.applyErr != nil {
		return workflow.Result{}, w.applyErr
	}
	return workflow.Result{CampaignID: a.CampaignID, Status: model.StatusGeneratingEmails}, nil
}

func (w *fakeWorkflow) Snapshot(id string) (workflow.Snapshot, error) {
	snap, ok := w.live[id]
	if !ok {
		return workflow.Snapshot{}, apperr.New(apperr.KindNotFound, "campaign %q is not active", id)
	}
	return snap, nil
}

func newService() (*CampaignService, *fakeArchive, *fakeWorkflow) {
	archive := &fakeArchive{campaigns: map[string]*model.Campaign{
		"c1": {
			ID:     "c1",
			Status: model.StatusCompleted,
			SMTP:   &model.SMTPConfig{Host: "smtp.example.org", Password: "hunter2"},
		},
	}}
	wf := &fakeWorkflow{live: map[string]workflow.Snapshot{}}
	return NewCampaignService(archive, wf, logger.Nop()), archive, wf
}

func TestCampaignService_StartRedactsPassword(t *testing.T) {
	svc, _, wf := newService()

	c, err := svc.Start(context.Background(), StartCampaignRequest{
		TargetWebsite: "https://example.org",
		SMTP:          &model.SMTPConfig{Host: "smtp.example.org", Password: "hunter2"},
		Defaults:      map[string]any{"buttonText": "Talk"},
	})
	require.NoError(t, err)
	assert.Equal(t, "********", c.SMTP.Password)
	assert.Equal(t, "hunter2", wf.started.SMTP.Password)
	assert.Equal(t, "Talk", wf.started.Defaults["buttonText"])
}

func TestCampaignService_ListPaging(t *testing.T) {
	svc, archive, _ := newService()

	page, err := svc.List(context.Background(), ListCampaignsRequest{Page: 3, PageSize: 500})
	require.NoError(t, err)
	assert.Equal(t, MaxPageSize, page.PageSize)
	assert.Equal(t, 200, archive.lastFilter.Offset)
	assert.Equal(t, MaxPageSize, archive.lastFilter.Limit)
	require.Len(t, page.Campaigns, 1)
	assert.Equal(t, "********", page.Campaigns[0].SMTP.Password)

	page, err = svc.List(context.Background(), ListCampaignsRequest{})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, DefaultPageSize, page.PageSize)

	_, err = svc.List(context.Background(), ListCampaignsRequest{Status: "bogus"})
	assert.True(t, errors.Is(err, apperr.ErrConfiguration))
}

func TestCampaignService_GetAndStatus(t *testing.T) {
	svc, archive, wf := newService()
	archive.prospects = []*model.Prospect{{Email: "a@acme.test"}}
	archive.stats = model.EmailStats{Total: 1, Sent: 1}

	details, err := svc.Get(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, 1, details.Prospects)
	assert.Equal(t, 1, details.Emails.Sent)
	assert.Nil(t, details.Live)

	status, err := svc.Status(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, status.Campaign.Status)
	assert.Equal(t, 1, status.Emails)

	wf.live["c1"] = workflow.Snapshot{Campaign: model.Campaign{ID: "c1", Status: model.StatusSending}, Step: "sending"}
	status, err = svc.Status(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusSending, status.Campaign.Status)

	_, err = svc.Get(context.Background(), "missing")
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
	_, err = svc.Emails(context.Background(), "missing")
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
}

func TestCampaignService_Review(t *testing.T) {
	svc, _, wf := newService()

	_, err := svc.Review(context.Background(), "c1", ReviewRequest{Decision: "Approve", PauseID: "p"})
	require.NoError(t, err)
	_, err = svc.Review(context.Background(), "c1", ReviewRequest{Decision: "edit", TemplateID: " modern_tech "})
	require.NoError(t, err)
	_, err = svc.Review(context.Background(), "c1", ReviewRequest{Decision: "shrug"})
	assert.True(t, errors.Is(err, apperr.ErrConfiguration))

	require.Len(t, wf.actions, 2)
	assert.Equal(t, workflow.ActionApprove, wf.actions[0].Kind)
	assert.Equal(t, "p", wf.actions[0].PauseID)
	assert.Equal(t, workflow.ActionEdit, wf.actions[1].Kind)
	assert.Equal(t, "modern_tech", wf.actions[1].TemplateID)
}

func TestCampaignService_CancelAndSelect(t *testing.T) {
	svc, _, wf := newService()

	_, err := svc.SelectTemplate(context.Background(), "c1", SelectTemplateRequest{TemplateID: "modern_tech", PauseID: "p1"})
	require.NoError(t, err)
	_, err = svc.Cancel(context.Background(), "c1")
	require.NoError(t, err)

	require.Len(t, wf.actions, 2)
	assert.Equal(t, workflow.ActionSelectTemplate, wf.actions[0].Kind)
	assert.Equal(t, workflow.ActionCancel, wf.actions[1].Kind)
	assert.Equal(t, "c1", wf.actions[1].CampaignID)
}
