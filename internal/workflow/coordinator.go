package workflow

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fruitai/outreach/internal/apperr"
	"github.com/fruitai/outreach/internal/discovery"
	"github.com/fruitai/outreach/internal/generation"
	"github.com/fruitai/outreach/internal/logger"
	"github.com/fruitai/outreach/internal/model"
	"github.com/fruitai/outreach/internal/realtime"
)

// ActionKind names a client decision
type ActionKind string

const (
	ActionSelectTemplate ActionKind = "select_template"
	ActionApprove        ActionKind = "approve"
	ActionReject         ActionKind = "reject"
	ActionEdit           ActionKind = "edit"
	ActionCancel         ActionKind = "cancel"
)

// Action is a client decision addressed to one campaign. PauseID, when set,
// must name the campaign's open pause.
type Action struct {
	Kind           ActionKind     `json:"kind"`
	CampaignID     string         `json:"campaignId"`
	PauseID        string         `json:"pauseId,omitempty"`
	TemplateID     string         `json:"templateId,omitempty"`
	Customizations map[string]any `json:"customizations,omitempty"`
	// Feedback is handed to the generator when a review is rejected
	Feedback string `json:"feedback,omitempty"`
}

// Result is the campaign state after an accepted action
type Result struct {
	CampaignID string               `json:"campaignId"`
	Status     model.WorkflowStatus `json:"status"`
	PauseID    string               `json:"pauseId,omitempty"`
}

// StartRequest holds the inputs of a new campaign
type StartRequest struct {
	ID            string
	TargetWebsite string
	Goal          string
	BusinessType  string
	SenderName    string
	SenderCompany string
	SMTP          *model.SMTPConfig
	Defaults      map[string]any
}

// Snapshot is the live view of an active campaign
type Snapshot struct {
	Campaign  model.Campaign  `json:"campaign"`
	Step      string          `json:"step,omitempty"`
	PauseID   string          `json:"pauseId,omitempty"`
	PauseKind model.PauseKind `json:"pauseKind,omitempty"`
	Prospects int             `json:"prospects"`
	Emails    int             `json:"emails"`
}

// Deps are the collaborators of a Coordinator. Generator may be nil, in
// which case email bodies come from the template.
type Deps struct {
	Store     Store
	Source    discovery.Source
	Generator generation.Generator
	Renderer  Renderer
	Mailer    Mailer
	Events    realtime.Publisher
}

// Options tunes a Coordinator
type Options struct {
	RenderConcurrency int
	MaxProspects      int
	DiscoveryTimeout  time.Duration
	PersistTimeout    time.Duration
	// TrackingBaseURL is the public origin of the tracking endpoints. Empty
	// disables open and click tracking.
	TrackingBaseURL string
}

// Coordinator owns every active campaign run
type Coordinator struct {
	store     Store
	source    discovery.Source
	generator generation.Generator
	renderer  Renderer
	mailer    Mailer
	events    realtime.Publisher
	opts      Options
	log       *logger.Logger

	now   func() time.Time
	newID func() string

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	runs   map[string]*run
	closed bool
}

// New creates a Coordinator
func New(deps Deps, opts Options, log *logger.Logger) *Coordinator {
	if opts.RenderConcurrency <= 0 {
		opts.RenderConcurrency = 4
	}
	if opts.PersistTimeout <= 0 {
		opts.PersistTimeout = 10 * time.Second
	}
	if deps.Events == nil {
		deps.Events = realtime.Discard
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Coordinator{
		store:     deps.Store,
		source:    deps.Source,
		generator: deps.Generator,
		renderer:  deps.Renderer,
		mailer:    deps.Mailer,
		events:    deps.Events,
		opts:      opts,
		log:       log.WithComponent("workflow"),
		now:       func() time.Time { return time.Now().UTC() },
		newID:     uuid.NewString,
		ctx:       ctx,
		cancel:    cancel,
		runs:      make(map[string]*run),
	}
}

// Start validates and persists a new campaign and begins discovery
func (c *Coordinator) Start(ctx context.Context, req StartRequest) (*model.Campaign, error) {
	if err := validateStart(req); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, apperr.New(apperr.KindInternal, "coordinator is shutting down")
	}

	id := strings.TrimSpace(req.ID)
	if id == "" {
		id = c.newID()
	}
	if _, exists := c.runs[id]; exists {
		return nil, apperr.New(apperr.KindConfiguration, "campaign %q already exists", id)
	}

	now := c.now()
	campaign := &model.Campaign{
		ID:            id,
		TargetWebsite: strings.TrimSpace(req.TargetWebsite),
		Goal:          strings.TrimSpace(req.Goal),
		BusinessType:  strings.TrimSpace(req.BusinessType),
		SenderName:    strings.TrimSpace(req.SenderName),
		SenderCompany: strings.TrimSpace(req.SenderCompany),
		Status:        model.StatusDiscoveringProspects,
		SMTP:          req.SMTP,
		Defaults:      req.Defaults,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	transition := &model.Transition{
		CampaignID: id,
		From:       model.StatusIdle,
		To:         model.StatusDiscoveringProspects,
		Reason:     model.ReasonStarted,
		At:         now,
	}
	if err := c.store.CreateCampaign(ctx, campaign, transition); err != nil {
		return nil, err
	}

	r := c.newRun(campaign)
	c.runs[id] = r
	c.log.Transition(id, string(model.StatusIdle), string(campaign.Status), model.ReasonStarted)

	r.mu.Lock()
	c.publishStatusLocked(r)
	r.mu.Unlock()
	c.publishStep(r, StepDiscovery, realtime.StepStarted, 0, c.opts.MaxProspects, "searching for prospects")
	c.publishLog(r, levelInfo, fmt.Sprintf("campaign started for %s", campaign.TargetWebsite))

	c.wg.Add(2)
	go c.discover(r)
	go c.pipeline(r)

	out := *campaign
	return &out, nil
}

func validateStart(req StartRequest) error {
	website := strings.TrimSpace(req.TargetWebsite)
	if website == "" {
		return apperr.New(apperr.KindConfiguration, "targetWebsite is required")
	}
	u, err := url.Parse(website)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return apperr.New(apperr.KindConfiguration, "targetWebsite must be an http or https URL")
	}
	if req.SMTP == nil || strings.TrimSpace(req.SMTP.Host) == "" || strings.TrimSpace(req.SMTP.FromAddress) == "" {
		return apperr.New(apperr.KindConfiguration, "smtp host and from address are required")
	}
	if req.SMTP.Port < 0 || req.SMTP.Port > 65535 {
		return apperr.New(apperr.KindConfiguration, "smtp port %d is out of range", req.SMTP.Port)
	}
	return nil
}

// Apply validates a client decision against the campaign's open pause and
// applies it. Stale and invalid actions change nothing.
func (c *Coordinator) Apply(ctx context.Context, a Action) (Result, error) {
	if strings.TrimSpace(a.CampaignID) == "" {
		return Result{}, apperr.New(apperr.KindConfiguration, "campaignId is required")
	}

	r := c.lookup(a.CampaignID)
	if r == nil {
		return c.applyInactive(ctx, a)
	}
	if a.Kind == ActionCancel {
		return c.cancelRun(ctx, r)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var err error
	switch a.Kind {
	case ActionSelectTemplate:
		err = c.selectTemplateLocked(r, a)
	case ActionApprove:
		err = c.approveLocked(r, a)
	case ActionReject:
		err = c.reviseLocked(r, a, true)
	case ActionEdit:
		err = c.reviseLocked(r, a, false)
	default:
		err = apperr.New(apperr.KindConfiguration, "unknown action %q", a.Kind)
	}
	if err != nil {
		if errors.Is(err, apperr.ErrStaleAction) {
			r.log.Warn().
				Str("action", string(a.Kind)).
				Str("pause_id", a.PauseID).
				Str("status", string(r.campaign.Status)).
				Msg("stale action rejected")
		}
		return Result{}, err
	}

	r.wake()
	return r.resultLocked(), nil
}

// applyInactive answers actions for campaigns without a live run
func (c *Coordinator) applyInactive(ctx context.Context, a Action) (Result, error) {
	campaign, err := c.store.GetCampaign(ctx, a.CampaignID)
	if err != nil {
		return Result{}, err
	}
	if a.Kind == ActionCancel && campaign.Status.IsTerminal() {
		return Result{CampaignID: campaign.ID, Status: campaign.Status}, nil
	}
	return Result{}, apperr.New(apperr.KindStaleAction,
		"campaign %s is %s and not accepting %s", campaign.ID, campaign.Status, a.Kind)
}

func (c *Coordinator) checkGateLocked(r *run, a Action, kind model.PauseKind) error {
	if r.gate == nil || r.gate.Kind != kind {
		return apperr.New(apperr.KindStaleAction,
			"campaign %s is %s and not awaiting %s", r.campaign.ID, r.campaign.Status, kind)
	}
	if a.PauseID != "" && a.PauseID != r.gate.ID {
		return apperr.New(apperr.KindStaleAction, "pause %s is not open for campaign %s", a.PauseID, r.campaign.ID)
	}
	return nil
}

func (c *Coordinator) selectTemplateLocked(r *run, a Action) error {
	if err := c.checkGateLocked(r, a, model.PauseTemplateSelection); err != nil {
		return err
	}
	if !c.renderer.Has(a.TemplateID) {
		return apperr.New(apperr.KindUnknownTemplate, "unknown template %q", a.TemplateID)
	}

	selection := &model.TemplateSelection{TemplateID: a.TemplateID, Customizations: a.Customizations}
	err := c.transitionLocked(r, model.StatusGeneratingEmails, model.ReasonTemplateSelected, nil, func(cm *model.Campaign) {
		cm.Selection = selection
	})
	if err != nil {
		return err
	}
	c.publishLog(r, levelInfo, fmt.Sprintf("template %s selected", a.TemplateID))
	return nil
}

func (c *Coordinator) approveLocked(r *run, a Action) error {
	if err := c.checkGateLocked(r, a, model.PauseReview); err != nil {
		return err
	}

	ctx, cancel := c.persistContext(r)
	defer cancel()

	now := c.now()
	approved := make([]*model.Email, len(r.emails))
	for i, e := range r.emails {
		next := *e
		if next.Status == model.EmailStatusDraft {
			next.Status = model.EmailStatusApproved
			next.UpdatedAt = now
			if err := c.store.SaveEmail(ctx, &next); err != nil {
				return apperr.Wrap(apperr.KindInternal, err, "failed to approve email for %s", next.ProspectEmail)
			}
		}
		approved[i] = &next
	}

	if err := c.transitionLocked(r, model.StatusSending, model.ReasonApproved, nil); err != nil {
		return err
	}
	r.emails = approved
	c.publishLog(r, levelInfo, fmt.Sprintf("%d emails approved", len(approved)))
	return nil
}

// reviseLocked sends a reviewed campaign back to generation. A rejection
// regenerates bodies; an edit re-renders the existing ones.
func (c *Coordinator) reviseLocked(r *run, a Action, regenerate bool) error {
	if err := c.checkGateLocked(r, a, model.PauseReview); err != nil {
		return err
	}

	var selection model.TemplateSelection
	if r.campaign.Selection != nil {
		selection = *r.campaign.Selection
	}
	reason := model.ReasonRejected
	if !regenerate {
		reason = model.ReasonEdited
		if a.TemplateID != "" {
			if !c.renderer.Has(a.TemplateID) {
				return apperr.New(apperr.KindUnknownTemplate, "unknown template %q", a.TemplateID)
			}
			selection.TemplateID = a.TemplateID
		}
		if a.Customizations != nil {
			selection.Customizations = a.Customizations
		}
	}

	err := c.transitionLocked(r, model.StatusGeneratingEmails, reason, nil, func(cm *model.Campaign) {
		cm.Selection = &selection
	})
	if err != nil {
		return err
	}
	r.regenerate = regenerate
	r.feedback = strings.TrimSpace(a.Feedback)

	if regenerate {
		c.publishLog(r, levelInfo, "emails rejected, regenerating")
	} else {
		c.publishLog(r, levelInfo, "emails edited, re-rendering")
	}
	return nil
}

// cancelRun cancels a live campaign. Paused campaigns stop at once; a
// running stage is asked to stop and the call waits until it has.
func (c *Coordinator) cancelRun(ctx context.Context, r *run) (Result, error) {
	r.mu.Lock()
	status := r.campaign.Status
	switch {
	case status.IsTerminal():
		res := r.resultLocked()
		r.mu.Unlock()
		return res, nil
	case status.IsPaused():
		err := c.cancelLocked(r)
		res := r.resultLocked()
		r.mu.Unlock()
		if err != nil {
			return Result{}, err
		}
		r.stop()
		return res, nil
	}
	r.cancelRequested = true
	r.mu.Unlock()

	r.log.Info().Str("status", string(status)).Msg("cancellation requested")
	r.stop()

	select {
	case <-r.done:
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.resultLocked(), nil
}

// Snapshot returns the live state of an active campaign
func (c *Coordinator) Snapshot(id string) (Snapshot, error) {
	r := c.lookup(id)
	if r == nil {
		return Snapshot{}, apperr.New(apperr.KindNotFound, "campaign %q is not active", id)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked(), nil
}

// Active returns snapshots of every active campaign, oldest first
func (c *Coordinator) Active() []Snapshot {
	c.mu.Lock()
	runs := make([]*run, 0, len(c.runs))
	for _, r := range c.runs {
		runs = append(runs, r)
	}
	c.mu.Unlock()

	out := make([]Snapshot, 0, len(runs))
	for _, r := range runs {
		r.mu.Lock()
		out = append(out, r.snapshotLocked())
		r.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Campaign.CreatedAt.Equal(out[j].Campaign.CreatedAt) {
			return out[i].Campaign.ID < out[j].Campaign.ID
		}
		return out[i].Campaign.CreatedAt.Before(out[j].Campaign.CreatedAt)
	})
	return out
}

// Recover reloads non-terminal campaigns after a restart. Paused campaigns
// get a fresh pause and can be resumed; campaigns interrupted mid-stage are
// marked failed. It returns the number of campaigns restored.
func (c *Coordinator) Recover(ctx context.Context) (int, error) {
	campaigns, err := c.store.ListActiveCampaigns(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list active campaigns: %w", err)
	}

	restored := 0
	for _, campaign := range campaigns {
		if campaign.Status.IsPaused() {
			if err := c.restore(ctx, campaign); err != nil {
				return restored, err
			}
			restored++
			continue
		}

		from := campaign.Status
		now := c.now()
		campaign.Status = model.StatusFailed
		campaign.Error = "interrupted by restart"
		campaign.UpdatedAt = now
		err := c.store.UpdateCampaign(ctx, campaign, &model.Transition{
			CampaignID: campaign.ID,
			From:       from,
			To:         model.StatusFailed,
			Reason:     model.ReasonRestarted,
			At:         now,
		})
		if err != nil {
			return restored, fmt.Errorf("failed to mark campaign %s failed: %w", campaign.ID, err)
		}
		c.log.Transition(campaign.ID, string(from), string(model.StatusFailed), model.ReasonRestarted)
	}

	c.log.Info().Int("restored", restored).Int("total", len(campaigns)).Msg("campaigns recovered")
	return restored, nil
}

func (c *Coordinator) restore(ctx context.Context, campaign *model.Campaign) error {
	prospects, err := c.store.ListProspects(ctx, campaign.ID)
	if err != nil {
		return fmt.Errorf("failed to load prospects of %s: %w", campaign.ID, err)
	}
	emails, err := c.store.ListEmails(ctx, campaign.ID)
	if err != nil {
		return fmt.Errorf("failed to load emails of %s: %w", campaign.ID, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return apperr.New(apperr.KindInternal, "coordinator is shutting down")
	}
	if _, exists := c.runs[campaign.ID]; exists {
		return nil
	}

	r := c.newRun(campaign)
	for _, p := range prospects {
		r.seen[p.EmailKey()] = struct{}{}
		r.prospects = append(r.prospects, *p)
	}
	r.emails = emails
	close(r.discoveryDone)

	kind := model.PauseTemplateSelection
	if campaign.Status == model.StatusPausedForReview {
		kind = model.PauseReview
	}
	r.gate = c.openGate(r, kind)
	c.runs[campaign.ID] = r

	r.mu.Lock()
	c.publishStatusLocked(r)
	r.mu.Unlock()
	c.publishLog(r, levelInfo, "campaign restored after restart")

	c.wg.Add(1)
	go c.pipeline(r)
	return nil
}

// Shutdown stops every run and waits for their goroutines. Interrupted
// campaigns keep their persisted status and are handled by Recover.
func (c *Coordinator) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()

	c.cancel()

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Coordinator) lookup(id string) *run {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.runs[id]
}

func (c *Coordinator) openGate(r *run, kind model.PauseKind) *model.PauseGate {
	return &model.PauseGate{
		ID:         c.newID(),
		Kind:       kind,
		CampaignID: r.id,
		OpenedAt:   c.now(),
	}
}

// transitionLocked persists a status change with its audit row, then
// publishes it. mutate may adjust other campaign fields in the same write.
func (c *Coordinator) transitionLocked(r *run, to model.WorkflowStatus, reason string, gate *model.PauseGate, mutate ...func(*model.Campaign)) error {
	from := r.campaign.Status
	if !CanTransition(from, to) {
		return apperr.New(apperr.KindInternal, "illegal transition from %s to %s", from, to)
	}

	now := c.now()
	next := *r.campaign
	next.Status = to
	next.UpdatedAt = now
	for _, fn := range mutate {
		fn(&next)
	}

	ctx, cancel := c.persistContext(r)
	defer cancel()

	err := c.store.UpdateCampaign(ctx, &next, &model.Transition{
		CampaignID: r.id,
		From:       from,
		To:         to,
		Reason:     reason,
		At:         now,
	})
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, err, "failed to persist transition to %s", to)
	}

	*r.campaign = next
	r.gate = gate
	c.log.Transition(r.id, string(from), string(to), reason)
	c.publishStatusLocked(r)
	return nil
}

func (c *Coordinator) cancelLocked(r *run) error {
	if err := c.transitionLocked(r, model.StatusCancelled, model.ReasonCancelled, nil); err != nil {
		return err
	}
	c.notifyLocked(r, realtime.NotificationPayload{
		Kind:    realtime.NotifyCampaignCancelled,
		Level:   "warning",
		Message: "Campaign cancelled",
	})
	return nil
}

func (c *Coordinator) failLocked(r *run, cause error) {
	kind := apperr.KindOf(cause)
	message := apperr.MessageOf(cause)

	r.log.Error().Err(cause).Str("kind", string(kind)).Msg("campaign failed")

	err := c.transitionLocked(r, model.StatusFailed, string(kind), nil, func(cm *model.Campaign) {
		cm.Error = message
	})
	if err != nil {
		r.log.Error().Err(err).Msg("failed to record campaign failure")
		return
	}
	c.notifyLocked(r, realtime.NotificationPayload{
		Kind:      realtime.NotifyCampaignFailed,
		Level:     "error",
		Message:   message,
		ErrorKind: string(kind),
	})
}

// persistContext bounds a store write. Writes outlive run cancellation so a
// cancelled or failed campaign still records its final state.
func (c *Coordinator) persistContext(r *run) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(r.ctx), c.opts.PersistTimeout)
}
