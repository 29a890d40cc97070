package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fruitai/outreach/internal/apperr"
	"github.com/fruitai/outreach/internal/logger"
	"github.com/fruitai/outreach/internal/metadata"
	"github.com/fruitai/outreach/internal/model"
	"github.com/fruitai/outreach/internal/realtime"
	"github.com/fruitai/outreach/internal/repository"
	"github.com/fruitai/outreach/internal/service"
	"github.com/fruitai/outreach/internal/template"
	"github.com/fruitai/outreach/internal/workflow"
)

type checker struct{ err error }

func (p checker) HealthCheck(context.Context) error { return p.err }

type fakeArchive struct {
	campaigns map[string]*model.Campaign
	emails    []*model.Email
}

func (a *fakeArchive) GetCampaign(_ context.Context, id string) (*model.Campaign, error) {
	c, ok := a.campaigns[id]
	if !ok {
		return nil, apperr.New(apperr.KindNotFound, "campaign %q not found", id)
	}
	return c, nil
}

func (a *fakeArchive) ListCampaigns(_ context.Context, f repository.CampaignFilter) ([]*model.Campaign, int, error) {
	var out []*model.Campaign
	for _, c := range a.campaigns {
		if f.Status == "" || c.Status == f.Status {
			out = append(out, c)
		}
	}
	return out, len(out), nil
}

func (a *fakeArchive) CountProspects(context.Context, string) (int, error) { return 2, nil }

func (a *fakeArchive) ListProspects(context.Context, string) ([]*model.Prospect, error) {
	return nil, nil
}

func (a *fakeArchive) ListEmails(context.Context, string) ([]*model.Email, error) {
	return a.emails, nil
}

func (a *fakeArchive) EmailStats(context.Context, string) (model.EmailStats, error) {
	return model.EmailStats{Total: len(a.emails)}, nil
}

func (a *fakeArchive) ListTransitions(context.Context, string) ([]*model.Transition, error) {
	return nil, nil
}

type fakeWorkflow struct {
	actions  []workflow.Action
	applyErr error
	startErr error
}

func (w *fakeWorkflow) Start(_ context.Context, req workflow.StartRequest) (*model.Campaign, error) {
	if w.startErr != nil {
		return nil, w.startErr
	}
	return &model.Campaign{ID: "c-new", TargetWebsite: req.TargetWebsite, Status: model.StatusDiscoveringProspects, SMTP: req.SMTP}, nil
}

func (w *fakeWorkflow) Apply(_ context.Context, a workflow.Action) (workflow.Result, error) {
	w.actions = append(w.actions, a)
	if w.applyErr != nil {
		return workflow.Result{}, w.applyErr
	}
	return workflow.Result{CampaignID: a.CampaignID, Status: model.StatusGeneratingEmails}, nil
}

func (w *fakeWorkflow) Snapshot(id string) (workflow.Snapshot, error) {
	return workflow.Snapshot{}, apperr.New(apperr.KindNotFound, "campaign %q is not active", id)
}

type fakeFetcher struct{}

func (fakeFetcher) Fetch(_ context.Context, rawURL string) metadata.Info {
	return metadata.Info{URL: rawURL, Name: "Acme"}
}

type fakeEngagement struct {
	emails map[string]*model.Email
	events []*model.EmailEvent
}

func (f *fakeEngagement) GetCampaign(_ context.Context, id string) (*model.Campaign, error) {
	if id != "c1" {
		return nil, apperr.New(apperr.KindNotFound, "campaign %q not found", id)
	}
	return &model.Campaign{ID: id}, nil
}

func (f *fakeEngagement) GetEmail(_ context.Context, id string) (*model.Email, error) {
	e, ok := f.emails[id]
	if !ok {
		return nil, apperr.New(apperr.KindNotFound, "email %q not found", id)
	}
	return e, nil
}

func (f *fakeEngagement) RecordEngagement(_ context.Context, ev *model.EmailEvent) error {
	f.events = append(f.events, ev)
	return nil
}

func (f *fakeEngagement) ListEngagement(context.Context, string, model.EngagementType) ([]*model.EmailEvent, error) {
	return f.events, nil
}

type fixture struct {
	h          *Handler
	mux        *http.ServeMux
	archive    *fakeArchive
	wf         *fakeWorkflow
	engagement *fakeEngagement
}

func newFixture() *fixture {
	archive := &fakeArchive{campaigns: map[string]*model.Campaign{
		"c1": {ID: "c1", Status: model.StatusCompleted, TargetWebsite: "https://acme.test"},
	}}
	wf := &fakeWorkflow{}
	svc := service.NewCampaignService(archive, wf, logger.Nop())
	renderer := template.NewRenderer(template.NewRegistry())
	engagement := &fakeEngagement{emails: map[string]*model.Email{
		"e1": {ID: "e1", CampaignID: "c1", Status: model.EmailStatusSent, Links: []string{"https://acme.test/demo"}},
	}}
	tracking := service.NewTrackingService(engagement, nil, logger.Nop())
	h := New(checker{}, checker{}, logger.Nop(), svc, tracking, renderer, fakeFetcher{})

	mux := http.NewServeMux()
	mux.HandleFunc("POST /campaigns", h.StartCampaign)
	mux.HandleFunc("GET /campaigns", h.ListCampaigns)
	mux.HandleFunc("GET /campaigns/{id}", h.GetCampaign)
	mux.HandleFunc("GET /campaigns/{id}/status", h.CampaignStatus)
	mux.HandleFunc("GET /campaigns/{id}/emails", h.CampaignEmails)
	mux.HandleFunc("GET /campaigns/{id}/prospects", h.CampaignProspects)
	mux.HandleFunc("POST /campaigns/{id}/template", h.SelectTemplate)
	mux.HandleFunc("POST /campaigns/{id}/review", h.ReviewCampaign)
	mux.HandleFunc("POST /campaigns/{id}/cancel", h.CancelCampaign)
	mux.HandleFunc("GET /templates", h.ListTemplates)
	mux.HandleFunc("GET /templates/{id}", h.GetTemplate)
	mux.HandleFunc("POST /templates/preview", h.PreviewTemplate)
	mux.HandleFunc("GET /metadata", h.Metadata)
	mux.HandleFunc("GET /health", h.Health)
	mux.HandleFunc("GET /campaigns/{id}/events", h.CampaignEvents)
	mux.HandleFunc("GET /t/open/{emailId}", h.TrackOpen)
	mux.HandleFunc("GET /t/click/{emailId}/{index}", h.TrackClick)

	return &fixture{h: h, mux: mux, archive: archive, wf: wf, engagement: engagement}
}

func (f *fixture) do(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	f.mux.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(bytes.NewReader(rec.Body.Bytes())).Decode(v))
}

type errorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func TestStartCampaign(t *testing.T) {
	f := newFixture()

	rec := f.do(t, http.MethodPost, "/campaigns", `{
		"targetWebsite": "https://acme.test",
		"goal": "demo",
		"businessType": "saas",
		"smtp": {"host": "smtp.acme.test", "port": 587, "fromAddress": "me@acme.test", "password": "pw"}
	}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var c model.Campaign
	decode(t, rec, &c)
	assert.Equal(t, "c-new", c.ID)
	assert.NotEqual(t, "pw", c.SMTP.Password)
}

func TestStartCampaign_BadRequests(t *testing.T) {
	f := newFixture()

	rec := f.do(t, http.MethodPost, "/campaigns", `{"targetWebsite": "x", "unknown": 1}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPost, "/campaigns", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	f.wf.startErr = apperr.New(apperr.KindConfiguration, "targetWebsite is required")
	rec = f.do(t, http.MethodPost, "/campaigns", `{"targetWebsite": ""}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var body errorBody
	decode(t, rec, &body)
	assert.Equal(t, "configuration_error", body.Error.Code)
	assert.Equal(t, "targetWebsite is required", body.Error.Message)
}

func TestListCampaigns(t *testing.T) {
	f := newFixture()

	rec := f.do(t, http.MethodGet, "/campaigns?page=1&page_size=10&status=completed", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var page service.CampaignPage
	decode(t, rec, &page)
	assert.Equal(t, 1, page.Total)
	assert.Equal(t, 10, page.PageSize)

	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodGet, "/campaigns?page=x", "").Code)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodGet, "/campaigns?status=bogus", "").Code)
}

func TestGetCampaign(t *testing.T) {
	f := newFixture()

	rec := f.do(t, http.MethodGet, "/campaigns/c1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var details service.CampaignDetails
	decode(t, rec, &details)
	assert.Equal(t, "c1", details.Campaign.ID)
	assert.Equal(t, 2, details.Prospects)

	rec = f.do(t, http.MethodGet, "/campaigns/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	var body errorBody
	decode(t, rec, &body)
	assert.Equal(t, "not_found", body.Error.Code)
}

func TestCampaignStatus_FallsBackToStoredState(t *testing.T) {
	f := newFixture()

	rec := f.do(t, http.MethodGet, "/campaigns/c1/status", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var snap workflow.Snapshot
	decode(t, rec, &snap)
	assert.Equal(t, model.StatusCompleted, snap.Campaign.Status)
}

func TestCampaignLists_AreNeverNull(t *testing.T) {
	f := newFixture()

	rec := f.do(t, http.MethodGet, "/campaigns/c1/emails", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"emails":[]}`, rec.Body.String())

	rec = f.do(t, http.MethodGet, "/campaigns/c1/prospects", "")
	assert.JSONEq(t, `{"prospects":[]}`, rec.Body.String())
}

func TestDecisions(t *testing.T) {
	f := newFixture()

	rec := f.do(t, http.MethodPost, "/campaigns/c1/template", `{"templateId":"modern_tech","pauseId":"p1"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodPost, "/campaigns/c1/review", `{"decision":"reject","feedback":"shorter"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodPost, "/campaigns/c1/cancel", "")
	require.Equal(t, http.StatusOK, rec.Code)

	require.Len(t, f.wf.actions, 3)
	assert.Equal(t, workflow.ActionSelectTemplate, f.wf.actions[0].Kind)
	assert.Equal(t, "p1", f.wf.actions[0].PauseID)
	assert.Equal(t, workflow.ActionReject, f.wf.actions[1].Kind)
	assert.Equal(t, "shorter", f.wf.actions[1].Feedback)
	assert.Equal(t, workflow.ActionCancel, f.wf.actions[2].Kind)
}

func TestDecisions_ErrorStatuses(t *testing.T) {
	tests := []struct {
		err  error
		want int
		code string
	}{
		{apperr.New(apperr.KindStaleAction, "campaign is not awaiting a template"), http.StatusConflict, "stale_action"},
		{apperr.New(apperr.KindUnknownTemplate, "template %q is not registered", "x"), http.StatusUnprocessableEntity, "unknown_template"},
		{errors.New("db exploded"), http.StatusInternalServerError, "internal_error"},
		{apperr.Wrap(apperr.KindInternal, errors.New("db exploded"), "failed to approve emails"), http.StatusInternalServerError, "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			f := newFixture()
			f.wf.applyErr = tt.err

			rec := f.do(t, http.MethodPost, "/campaigns/c1/template", `{"templateId":"x"}`)
			assert.Equal(t, tt.want, rec.Code)
			var body errorBody
			decode(t, rec, &body)
			assert.Equal(t, tt.code, body.Error.Code)
			assert.NotContains(t, body.Error.Message, "db exploded")
		})
	}
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusBadGateway, StatusFor(apperr.KindNoTransportAvailable))
	assert.Equal(t, http.StatusBadGateway, StatusFor(apperr.KindGenerationFailure))
	assert.Equal(t, http.StatusNotFound, StatusFor(apperr.KindNotFound))
	assert.Equal(t, http.StatusInternalServerError, StatusFor(apperr.KindInternal))
}

func TestTemplates(t *testing.T) {
	f := newFixture()

	rec := f.do(t, http.MethodGet, "/templates", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Templates []template.Template `json:"templates"`
	}
	decode(t, rec, &list)
	assert.Len(t, list.Templates, 3)

	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/templates/modern_tech", "").Code)
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/templates/missing", "").Code)
}

func TestPreviewTemplate(t *testing.T) {
	f := newFixture()

	rec := f.do(t, http.MethodPost, "/templates/preview", `{
		"templateId": "professional_partnership",
		"customizations": {"subject": "Hello {company}"},
		"data": {"name": "Ada", "company": "Acme"}
	}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var out template.Rendered
	decode(t, rec, &out)
	assert.Equal(t, "Hello Acme", out.Subject)
	assert.Contains(t, out.HTML, "Ada")

	rec = f.do(t, http.MethodPost, "/templates/preview", `{"templateId":"nope"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = f.do(t, http.MethodPost, "/templates/preview", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMetadata(t *testing.T) {
	f := newFixture()

	rec := f.do(t, http.MethodGet, "/metadata?url=acme.test", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var info metadata.Info
	decode(t, rec, &info)
	assert.Equal(t, "Acme", info.Name)

	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodGet, "/metadata", "").Code)
}

func TestHealth(t *testing.T) {
	f := newFixture()
	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/health", "").Code)

	f.h.rdb = checker{err: errors.New("down")}
	rec := f.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var resp HealthResponse
	decode(t, rec, &resp)
	assert.Equal(t, "degraded", resp.Status)
	assert.Equal(t, "unhealthy", resp.Services["redis"])
}

func TestHandleAction(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, err := f.h.HandleAction(ctx, realtime.ClientAction{Kind: "approve", CampaignID: "c1", PauseID: "p2"})
	require.NoError(t, err)
	_, err = f.h.HandleAction(ctx, realtime.ClientAction{Kind: "edit", CampaignID: "c1", TemplateID: "modern_tech"})
	require.NoError(t, err)
	_, err = f.h.HandleAction(ctx, realtime.ClientAction{Kind: "select_template", CampaignID: "c1", TemplateID: "modern_tech"})
	require.NoError(t, err)

	_, err = f.h.HandleAction(ctx, realtime.ClientAction{Kind: "dance", CampaignID: "c1"})
	assert.True(t, errors.Is(err, apperr.ErrConfiguration))
	_, err = f.h.HandleAction(ctx, realtime.ClientAction{Kind: "approve"})
	assert.True(t, errors.Is(err, apperr.ErrConfiguration))

	require.Len(t, f.wf.actions, 3)
	assert.Equal(t, workflow.ActionApprove, f.wf.actions[0].Kind)
	assert.Equal(t, "p2", f.wf.actions[0].PauseID)
	assert.Equal(t, workflow.ActionEdit, f.wf.actions[1].Kind)
	assert.Equal(t, workflow.ActionSelectTemplate, f.wf.actions[2].Kind)
}

func TestTrackOpen(t *testing.T) {
	f := newFixture()

	for _, id := range []string{"e1", "unknown"} {
		rec := f.do(t, http.MethodGet, "/t/open/"+id, "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "image/gif", rec.Header().Get("Content-Type"))
		assert.Contains(t, rec.Header().Get("Cache-Control"), "no-store")
		assert.Equal(t, transparentGIF, rec.Body.Bytes())
	}

	require.Len(t, f.engagement.events, 1)
	assert.Equal(t, model.EngagementOpen, f.engagement.events[0].Type)
	assert.Equal(t, "e1", f.engagement.events[0].EmailID)
}

func TestTrackClick(t *testing.T) {
	f := newFixture()

	rec := f.do(t, http.MethodGet, "/t/click/e1/0", "")
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "https://acme.test/demo", rec.Header().Get("Location"))
	require.Len(t, f.engagement.events, 1)
	assert.Equal(t, model.EngagementClick, f.engagement.events[0].Type)

	for _, target := range []string{"/t/click/e1/1", "/t/click/e1/x", "/t/click/unknown/0"} {
		rec = f.do(t, http.MethodGet, target, "")
		assert.Equal(t, http.StatusNotFound, rec.Code, target)
		assert.Empty(t, rec.Header().Get("Location"), target)
	}
	assert.Len(t, f.engagement.events, 1)
}

func TestCampaignEvents(t *testing.T) {
	f := newFixture()
	f.do(t, http.MethodGet, "/t/open/e1", "")

	rec := f.do(t, http.MethodGet, "/campaigns/c1/events", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Events []model.EmailEvent `json:"events"`
	}
	decode(t, rec, &body)
	require.Len(t, body.Events, 1)
	assert.Equal(t, "e1", body.Events[0].EmailID)

	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodGet, "/campaigns/c1/events?type=bounce", "").Code)
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/campaigns/zzz/events", "").Code)
}
