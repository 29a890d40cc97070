package workflow

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"slices"
	"strings"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/fruitai/outreach/internal/apperr"
	"github.com/fruitai/outreach/internal/discovery"
	"github.com/fruitai/outreach/internal/email"
	"github.com/fruitai/outreach/internal/generation"
	"github.com/fruitai/outreach/internal/model"
	"github.com/fruitai/outreach/internal/realtime"
	"github.com/fruitai/outreach/internal/template"
)

// pipeline advances a campaign stage by stage until it is terminal, the run
// is stopped, or a stage fails.
func (c *Coordinator) pipeline(r *run) {
	defer c.wg.Done()
	defer c.finish(r)

	for {
		var err error
		switch status := r.status(); {
		case status.IsTerminal():
			return
		case status == model.StatusDiscoveringProspects:
			err = c.awaitFirstProspect(r)
		case status.IsPaused():
			err = c.awaitDecision(r)
		case status == model.StatusGeneratingEmails:
			err = c.generate(r)
		case status == model.StatusSending:
			err = c.send(r)
		default:
			err = apperr.New(apperr.KindInternal, "campaign cannot run from status %s", status)
		}
		if err != nil {
			c.abort(r, err)
			return
		}
	}
}

func (c *Coordinator) finish(r *run) {
	r.stop()
	<-r.discoveryDone

	c.mu.Lock()
	if c.runs[r.id] == r {
		delete(c.runs, r.id)
	}
	c.mu.Unlock()

	close(r.done)
}

// abort ends a run after a stage error. A stopped run becomes cancelled
// only when a client asked for it; on shutdown the stored status is kept.
func (c *Coordinator) abort(r *run, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.campaign.Status.IsTerminal() {
		return
	}
	if r.ctx.Err() != nil {
		if !r.cancelRequested {
			r.log.Info().Str("status", string(r.campaign.Status)).Msg("campaign run interrupted")
			return
		}
		if err := c.cancelLocked(r); err != nil {
			r.log.Error().Err(err).Msg("failed to record cancellation")
		}
		return
	}
	c.failLocked(r, err)
}

// discover runs the source and feeds accepted prospects into the run
func (c *Coordinator) discover(r *run) {
	defer c.wg.Done()

	ctx := r.ctx
	if c.opts.DiscoveryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.DiscoveryTimeout)
		defer cancel()
	}

	r.mu.Lock()
	criteria := discovery.Criteria{
		CampaignID:    r.id,
		TargetWebsite: r.campaign.TargetWebsite,
		Goal:          r.campaign.Goal,
		BusinessType:  r.campaign.BusinessType,
		MaxProspects:  c.opts.MaxProspects,
	}
	r.mu.Unlock()

	err := c.source.Discover(ctx, criteria, func(p model.Prospect) error {
		return c.accept(r, p)
	})
	if errors.Is(err, discovery.ErrStop) {
		err = nil
	}

	r.mu.Lock()
	found := len(r.prospects)
	r.mu.Unlock()

	// The configured time limit ends discovery; it is not a source failure
	if err != nil && found > 0 && r.ctx.Err() == nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		c.publishLog(r, levelWarn, fmt.Sprintf("discovery stopped after %s", c.opts.DiscoveryTimeout))
		err = nil
	}

	if r.ctx.Err() == nil {
		if err == nil {
			c.publishStep(r, StepDiscovery, realtime.StepCompleted, found, found, fmt.Sprintf("found %d prospects", found))
		} else {
			c.publishStep(r, StepDiscovery, realtime.StepFailed, found, found, err.Error())
		}
	}
	r.log.Info().Int("prospects", found).AnErr("error", err).Msg("discovery finished")

	r.discoveryErr = err
	close(r.discoveryDone)
	r.wake()
}

// accept validates, deduplicates and stores one prospect. The first one
// pauses the campaign for template selection.
func (c *Coordinator) accept(r *run, p model.Prospect) error {
	addr, err := mail.ParseAddress(strings.TrimSpace(p.Email))
	if err != nil {
		c.publishLog(r, levelWarn, fmt.Sprintf("skipped invalid address %q", p.Email))
		return nil
	}
	p.Email = addr.Address
	if p.Name == "" {
		p.Name = addr.Name
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.ctx.Err(); err != nil {
		return err
	}
	if r.campaign.Status.IsTerminal() {
		return discovery.ErrStop
	}
	key := p.EmailKey()
	if _, dup := r.seen[key]; dup {
		return nil
	}
	if limit := c.opts.MaxProspects; limit > 0 && len(r.prospects) >= limit {
		return discovery.ErrStop
	}

	p.CampaignID = r.id
	p.Position = len(r.prospects)
	p.CreatedAt = c.now()

	ctx, cancel := c.persistContext(r)
	defer cancel()
	if err := c.store.AddProspect(ctx, &p); err != nil {
		return apperr.Wrap(apperr.KindInternal, err, "failed to store prospect %s", p.Email)
	}
	r.seen[key] = struct{}{}
	r.prospects = append(r.prospects, p)

	count := len(r.prospects)
	c.publishStep(r, StepDiscovery, realtime.StepProgress, count, c.opts.MaxProspects, fmt.Sprintf("found %s", p.Email))

	if count == 1 && r.campaign.Status == model.StatusDiscoveringProspects {
		gate := c.openGate(r, model.PauseTemplateSelection)
		if err := c.transitionLocked(r, model.StatusPausedForTemplateSelection, model.ReasonFirstProspect, gate); err != nil {
			return err
		}
		first := p
		c.notifyLocked(r, realtime.NotificationPayload{
			Kind:     realtime.NotifyFirstProspectReady,
			Level:    "info",
			Message:  "First prospect found, choose a template",
			PauseID:  gate.ID,
			Prospect: &first,
		})
		r.wake()
	}
	return nil
}

func (c *Coordinator) awaitFirstProspect(r *run) error {
	for {
		if r.status() != model.StatusDiscoveringProspects {
			return nil
		}
		select {
		case <-r.discoveryDone:
			if r.status() != model.StatusDiscoveringProspects {
				return nil
			}
			if err := r.ctx.Err(); err != nil {
				return err
			}
			return discoveryFailure(r.discoveryErr)
		case <-r.signal:
		case <-r.ctx.Done():
			return r.ctx.Err()
		}
	}
}

func discoveryFailure(err error) error {
	if err == nil {
		return apperr.New(apperr.KindDiscoveryFailure, "no prospects found")
	}
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return err
	}
	return apperr.Wrap(apperr.KindDiscoveryFailure, err, "prospect discovery failed")
}

// discoveryFailed returns the discovery error once discovery has ended with
// one. It does not block.
func (r *run) discoveryFailed() error {
	select {
	case <-r.discoveryDone:
	default:
		return nil
	}
	if r.discoveryErr == nil {
		return nil
	}
	if err := r.ctx.Err(); err != nil {
		return err
	}
	return discoveryFailure(r.discoveryErr)
}

// awaitDecision blocks while the campaign is paused. A discovery error
// reported during the pause fails the campaign.
func (c *Coordinator) awaitDecision(r *run) error {
	for {
		if err := r.discoveryFailed(); err != nil {
			return err
		}
		if !r.status().IsPaused() {
			return nil
		}
		select {
		case <-r.signal:
		case <-r.ctx.Done():
			return r.ctx.Err()
		}
	}
}

// generate renders one draft per prospect once discovery has finished, then
// opens the review pause
func (c *Coordinator) generate(r *run) error {
	select {
	case <-r.discoveryDone:
	case <-r.ctx.Done():
		return r.ctx.Err()
	}
	if err := r.discoveryFailed(); err != nil {
		return err
	}

	r.mu.Lock()
	campaign := *r.campaign
	prospects := slices.Clone(r.prospects)
	previous := make(map[string]*model.Email, len(r.emails))
	for _, e := range r.emails {
		previous[model.NormalizeEmail(e.ProspectEmail)] = e
	}
	regenerate, feedback := r.regenerate, r.feedback
	r.regenerate, r.feedback = false, ""
	r.mu.Unlock()

	if campaign.Selection == nil {
		return apperr.New(apperr.KindInternal, "campaign %s has no template selection", campaign.ID)
	}
	if len(prospects) == 0 {
		return discoveryFailure(r.discoveryErr)
	}

	total := len(prospects)
	c.publishStep(r, StepGeneration, realtime.StepStarted, 0, total, fmt.Sprintf("generating %d emails", total))

	emails := make([]*model.Email, total)
	var rendered atomic.Int64

	g, ctx := errgroup.WithContext(r.ctx)
	g.SetLimit(c.opts.RenderConcurrency)
	for i, p := range prospects {
		g.Go(func() error {
			e, err := c.compose(ctx, &campaign, p, previous[p.EmailKey()], regenerate, feedback)
			if err != nil {
				return err
			}
			emails[i] = e
			n := int(rendered.Add(1))
			c.publishStep(r, StepGeneration, realtime.StepProgress, n, total, "")
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if r.ctx.Err() != nil {
			return r.ctx.Err()
		}
		return err
	}
	if err := r.ctx.Err(); err != nil {
		return err
	}

	pctx, cancel := c.persistContext(r)
	defer cancel()
	for _, e := range emails {
		if err := c.store.SaveEmail(pctx, e); err != nil {
			return apperr.Wrap(apperr.KindInternal, err, "failed to store email for %s", e.ProspectEmail)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.ctx.Err(); err != nil {
		return err
	}
	r.emails = emails
	c.publishStep(r, StepGeneration, realtime.StepCompleted, total, total, "emails ready for review")

	gate := c.openGate(r, model.PauseReview)
	if err := c.transitionLocked(r, model.StatusPausedForReview, model.ReasonFirstEmailReady, gate); err != nil {
		return err
	}
	c.notifyLocked(r, realtime.NotificationPayload{
		Kind:    realtime.NotifyFirstEmailReady,
		Level:   "info",
		Message: fmt.Sprintf("%d emails are ready for review", total),
		PauseID: gate.ID,
		Email:   emails[0],
	})
	return nil
}

// compose produces the draft for one prospect. An existing body is reused
// unless regeneration was asked for.
func (c *Coordinator) compose(ctx context.Context, campaign *model.Campaign, p model.Prospect, prev *model.Email, regenerate bool, feedback string) (*model.Email, error) {
	selection := campaign.Selection

	body := ""
	switch {
	case prev != nil && !regenerate:
		body = prev.Body
	case c.generator != nil:
		gc := generation.Context{
			Prospect:      p,
			TargetWebsite: campaign.TargetWebsite,
			Goal:          campaign.Goal,
			BusinessType:  campaign.BusinessType,
			SenderName:    campaign.SenderName,
			SenderCompany: campaign.SenderCompany,
			TemplateID:    selection.TemplateID,
			Instructions:  feedback,
		}
		text, err := c.generator.Generate(ctx, generation.BuildPrompt(gc), gc)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, apperr.Wrap(apperr.KindGenerationFailure, err, "failed to generate email for %s", p.Email)
		}
		body = text
	}

	now := c.now()
	id, createdAt := c.newID(), now
	if prev != nil {
		id, createdAt = prev.ID, prev.CreatedAt
	}

	data := template.Data{
		Name:          p.Name,
		Company:       p.Company,
		Email:         p.Email,
		SenderName:    campaign.SenderName,
		SenderCompany: campaign.SenderCompany,
		Website:       campaign.TargetWebsite,
		Goal:          campaign.Goal,
		Body:          body,
		Defaults:      campaign.Defaults,
	}
	if c.opts.TrackingBaseURL != "" {
		data.Tracking = &template.Tracking{BaseURL: c.opts.TrackingBaseURL, EmailID: id}
	}
	out, err := c.renderer.Render(selection.TemplateID, selection.Customizations, data)
	if err != nil {
		return nil, err
	}

	e := &model.Email{
		ID:             id,
		CampaignID:     campaign.ID,
		ProspectEmail:  p.Email,
		Position:       p.Position,
		Subject:        out.Subject,
		HTML:           out.HTML,
		Text:           out.Text,
		Body:           body,
		TemplateID:     selection.TemplateID,
		Customizations: selection.Customizations,
		Links:          out.Links,
		Status:         model.EmailStatusDraft,
		CreatedAt:      createdAt,
		UpdatedAt:      now,
	}
	return e, nil
}

// send delivers approved emails one at a time in insertion order. Each
// result is stored and published before the next send starts.
func (c *Coordinator) send(r *run) error {
	r.mu.Lock()
	emails := r.emails
	settings := smtpSettings(r.campaign.SMTP)
	names := make(map[string]string, len(r.prospects))
	for _, p := range r.prospects {
		names[p.EmailKey()] = p.Name
	}
	r.mu.Unlock()

	total := len(emails)
	c.publishStep(r, StepSending, realtime.StepStarted, 0, total, fmt.Sprintf("sending %d emails", total))

	sent, failed := 0, 0
	for i, e := range emails {
		if e.Status != model.EmailStatusApproved {
			continue
		}
		if err := r.ctx.Err(); err != nil {
			return err
		}

		msg := email.Message{
			FromAddress: settingsFrom(settings),
			FromName:    settingsName(settings),
			To:          e.ProspectEmail,
			ToName:      names[model.NormalizeEmail(e.ProspectEmail)],
			Subject:     e.Subject,
			HTMLBody:    e.HTML,
			TextBody:    e.Text,
		}
		// An in-flight send finishes even if the campaign is cancelled meanwhile
		res, sendErr := c.mailer.Send(context.WithoutCancel(r.ctx), msg, settings)

		now := c.now()
		next := *e
		next.UpdatedAt = now
		if sendErr != nil {
			next.Status = model.EmailStatusFailed
			next.Error = sendErr.Error()
			failed++
		} else {
			next.Status = model.EmailStatusSent
			next.Method = res.Method
			next.Transport = res.Transport
			next.MessageID = res.MessageID
			next.Error = ""
			next.SentAt = &now
			sent++
		}

		pctx, cancel := c.persistContext(r)
		err := c.store.SaveEmail(pctx, &next)
		cancel()
		if err != nil {
			return apperr.Wrap(apperr.KindInternal, err, "failed to store delivery result for %s", next.ProspectEmail)
		}

		r.mu.Lock()
		*e = next
		r.mu.Unlock()

		c.publish(r, realtime.TypeEmailUpdate, realtime.EmailPayload{Email: &next, Index: i, Total: total})
		if sendErr != nil {
			r.log.Warn().Err(sendErr).Str("to", next.ProspectEmail).Msg("email delivery failed")
			message := fmt.Sprintf("failed to send to %s: %s", next.ProspectEmail, apperr.MessageOf(sendErr))
			c.publishLog(r, levelError, message)
			c.publish(r, realtime.TypeNotification, realtime.NotificationPayload{
				Kind:      realtime.NotifyEmailFailed,
				Level:     "error",
				Message:   message,
				ErrorKind: string(apperr.KindOf(sendErr)),
				Email:     &next,
			})
		} else {
			c.publishLog(r, levelInfo, fmt.Sprintf("sent to %s via %s", next.ProspectEmail, next.Transport))
		}
		c.publishStep(r, StepSending, realtime.StepProgress, i+1, total, "")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	c.publishStep(r, StepSending, realtime.StepCompleted, total, total, fmt.Sprintf("%d sent, %d failed", sent, failed))
	if err := c.transitionLocked(r, model.StatusCompleted, model.ReasonAllAttempted, nil); err != nil {
		return err
	}
	c.notifyLocked(r, realtime.NotificationPayload{
		Kind:    realtime.NotifyCampaignCompleted,
		Level:   "success",
		Message: fmt.Sprintf("Campaign completed: %d sent, %d failed", sent, failed),
	})
	return nil
}

func smtpSettings(cfg *model.SMTPConfig) *email.SMTPSettings {
	if cfg == nil {
		return nil
	}
	return &email.SMTPSettings{
		Host:        cfg.Host,
		Port:        cfg.Port,
		Username:    cfg.Username,
		Password:    cfg.Password,
		FromAddress: cfg.FromAddress,
		FromName:    cfg.FromName,
		SSL:         cfg.SSL,
	}
}

func settingsFrom(s *email.SMTPSettings) string {
	if s == nil {
		return ""
	}
	return s.FromAddress
}

func settingsName(s *email.SMTPSettings) string {
	if s == nil {
		return ""
	}
	return s.FromName
}
