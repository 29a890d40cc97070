package workflow

import (
	"context"
	"sync"

	"github.com/fruitai/outreach/internal/logger"
	"github.com/fruitai/outreach/internal/model"
	"github.com/fruitai/outreach/internal/realtime"
)

// Log levels carried by log_update
const (
	levelInfo  = "info"
	levelWarn  = "warn"
	levelError = "error"
)

// run is the in-memory state of one active campaign. Fields below mu are
// guarded by it.
type run struct {
	id  string
	log *logger.Logger

	ctx    context.Context
	cancel context.CancelFunc

	// signal wakes the pipeline goroutine after a state change
	signal chan struct{}
	// discoveryDone is closed when the discovery goroutine returns;
	// discoveryErr is written before that.
	discoveryDone chan struct{}
	discoveryErr  error
	// done is closed when the pipeline goroutine has exited
	done chan struct{}

	mu              sync.Mutex
	campaign        *model.Campaign
	gate            *model.PauseGate
	prospects       []model.Prospect
	seen            map[string]struct{}
	emails          []*model.Email
	regenerate      bool
	feedback        string
	cancelRequested bool
}

func (c *Coordinator) newRun(campaign *model.Campaign) *run {
	ctx, cancel := context.WithCancel(c.ctx)
	cp := *campaign
	return &run{
		id:            campaign.ID,
		log:           c.log.WithCampaignID(campaign.ID),
		ctx:           ctx,
		cancel:        cancel,
		signal:        make(chan struct{}, 1),
		discoveryDone: make(chan struct{}),
		done:          make(chan struct{}),
		campaign:      &cp,
		seen:          make(map[string]struct{}),
	}
}

func (r *run) wake() {
	select {
	case r.signal <- struct{}{}:
	default:
	}
}

func (r *run) stop() { r.cancel() }

func (r *run) status() model.WorkflowStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.campaign.Status
}

func (r *run) resultLocked() Result {
	res := Result{CampaignID: r.id, Status: r.campaign.Status}
	if r.gate != nil {
		res.PauseID = r.gate.ID
	}
	return res
}

func (r *run) snapshotLocked() Snapshot {
	s := Snapshot{
		Campaign:  *r.campaign,
		Step:      stepFor(r.campaign.Status),
		Prospects: len(r.prospects),
		Emails:    len(r.emails),
	}
	if r.campaign.SMTP != nil {
		smtp := r.campaign.SMTP.Redacted()
		s.Campaign.SMTP = &smtp
	}
	if r.gate != nil {
		s.PauseID = r.gate.ID
		s.PauseKind = r.gate.Kind
	}
	return s
}

func (c *Coordinator) publish(r *run, typ realtime.EventType, data any) {
	c.events.Publish(realtime.Event{Type: typ, CampaignID: r.id, Data: data})
}

func (c *Coordinator) publishStatusLocked(r *run) {
	p := realtime.StatusPayload{
		Status: r.campaign.Status,
		Step:   stepFor(r.campaign.Status),
		Error:  r.campaign.Error,
	}
	if r.gate != nil {
		p.PauseID = r.gate.ID
		p.PauseKind = r.gate.Kind
	}
	c.publish(r, realtime.TypeStatusUpdate, p)
}

func (c *Coordinator) publishStep(r *run, step, state string, count, total int, message string) {
	progress := 0
	switch {
	case state == realtime.StepCompleted:
		progress = 100
	case total > 0:
		progress = min(count*100/total, 100)
	}
	c.publish(r, realtime.TypeStepUpdate, realtime.StepPayload{
		Step:     step,
		State:    state,
		Progress: progress,
		Count:    count,
		Total:    total,
		Message:  message,
	})
}

func (c *Coordinator) publishLog(r *run, level, message string) {
	c.publish(r, realtime.TypeLogUpdate, realtime.LogPayload{Level: level, Message: message})
}

func (c *Coordinator) notifyLocked(r *run, p realtime.NotificationPayload) {
	c.publish(r, realtime.TypeNotification, p)
}
