package workflow

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fruitai/outreach/internal/apperr"
	"github.com/fruitai/outreach/internal/discovery"
	"github.com/fruitai/outreach/internal/email"
	"github.com/fruitai/outreach/internal/generation"
	"github.com/fruitai/outreach/internal/model"
	"github.com/fruitai/outreach/internal/realtime"
)

// memStore is an in-memory Store
type memStore struct {
	mu          sync.Mutex
	campaigns   map[string]model.Campaign
	prospects   map[string][]model.Prospect
	emails      map[string]map[string]model.Email
	transitions []model.Transition

	saveEmailErr error
}

func newMemStore() *memStore {
	return &memStore{
		campaigns: make(map[string]model.Campaign),
		prospects: make(map[string][]model.Prospect),
		emails:    make(map[string]map[string]model.Email),
	}
}

func (s *memStore) CreateCampaign(_ context.Context, c *model.Campaign, t *model.Transition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.campaigns[c.ID]; ok {
		return apperr.New(apperr.KindConfiguration, "campaign %q already exists", c.ID)
	}
	s.campaigns[c.ID] = *c
	if t != nil {
		s.transitions = append(s.transitions, *t)
	}
	return nil
}

func (s *memStore) UpdateCampaign(_ context.Context, c *model.Campaign, t *model.Transition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.campaigns[c.ID]; !ok {
		return apperr.New(apperr.KindNotFound, "campaign %q not found", c.ID)
	}
	s.campaigns[c.ID] = *c
	if t != nil {
		s.transitions = append(s.transitions, *t)
	}
	return nil
}

func (s *memStore) GetCampaign(_ context.Context, id string) (*model.Campaign, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.campaigns[id]
	if !ok {
		return nil, apperr.New(apperr.KindNotFound, "campaign %q not found", id)
	}
	return &c, nil
}

func (s *memStore) AddProspect(_ context.Context, p *model.Prospect) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prospects[p.CampaignID] = append(s.prospects[p.CampaignID], *p)
	return nil
}

func (s *memStore) SaveEmail(_ context.Context, e *model.Email) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveEmailErr != nil {
		return s.saveEmailErr
	}
	if s.emails[e.CampaignID] == nil {
		s.emails[e.CampaignID] = make(map[string]model.Email)
	}
	s.emails[e.CampaignID][e.ID] = *e
	return nil
}

func (s *memStore) ListActiveCampaigns(_ context.Context) ([]*model.Campaign, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.Campaign
	for _, c := range s.campaigns {
		if !c.Status.IsTerminal() {
			c := c
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memStore) ListProspects(_ context.Context, campaignID string) ([]*model.Prospect, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*model.Prospect, 0, len(s.prospects[campaignID]))
	for _, p := range s.prospects[campaignID] {
		p := p
		out = append(out, &p)
	}
	return out, nil
}

func (s *memStore) ListEmails(_ context.Context, campaignID string) ([]*model.Email, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*model.Email, 0, len(s.emails[campaignID]))
	for _, e := range s.emails[campaignID] {
		e := e
		out = append(out, &e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

func (s *memStore) campaign(id string) model.Campaign {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.campaigns[id]
}

func (s *memStore) reasons(id string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, t := range s.transitions {
		if t.CampaignID == id {
			out = append(out, t.Reason)
		}
	}
	return out
}

func (s *memStore) emailList(id string) []model.Email {
	list, _ := s.ListEmails(context.Background(), id)
	out := make([]model.Email, len(list))
	for i, e := range list {
		out[i] = *e
	}
	return out
}

// recorder is a Publisher that keeps every event
type recorder struct {
	mu     sync.Mutex
	events []realtime.Event
}

func (r *recorder) Publish(ev realtime.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) all() []realtime.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]realtime.Event(nil), r.events...)
}

func (r *recorder) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func (r *recorder) notifications(campaignID string) []realtime.NotificationPayload {
	var out []realtime.NotificationPayload
	for _, ev := range r.all() {
		if p, ok := ev.Data.(realtime.NotificationPayload); ok && ev.CampaignID == campaignID {
			out = append(out, p)
		}
	}
	return out
}

func (r *recorder) logs(campaignID string) []string {
	var out []string
	for _, ev := range r.all() {
		if p, ok := ev.Data.(realtime.LogPayload); ok && ev.CampaignID == campaignID {
			out = append(out, p.Message)
		}
	}
	return out
}

// scriptSource emits a fixed list of prospects. When hold is set it blocks
// after the first prospect until hold is closed.
type scriptSource struct {
	prospects []model.Prospect
	hold      chan struct{}
	err       error
}

func (s *scriptSource) Name() string { return "script" }

func (s *scriptSource) Discover(ctx context.Context, _ discovery.Criteria, emit discovery.EmitFunc) error {
	for i, p := range s.prospects {
		if i == 1 && s.hold != nil {
			select {
			case <-s.hold:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if err := emit(p); err != nil {
			return err
		}
	}
	return s.err
}

// blockingSource finds nothing until it is cancelled
type blockingSource struct{}

func (blockingSource) Name() string { return "blocking" }

func (blockingSource) Discover(ctx context.Context, _ discovery.Criteria, _ discovery.EmitFunc) error {
	<-ctx.Done()
	return ctx.Err()
}

// countingGenerator numbers every body it writes
type countingGenerator struct {
	calls atomic.Int64
	err   error
}

func (g *countingGenerator) Generate(_ context.Context, _ string, gc generation.Context) (string, error) {
	n := g.calls.Add(1)
	if g.err != nil {
		return "", g.err
	}
	return fmt.Sprintf("Generated body %d for %s.", n, gc.Prospect.Email), nil
}

// blockingGenerator signals started on its first call and then waits for
// cancellation
type blockingGenerator struct {
	once    sync.Once
	started chan struct{}
}

func newBlockingGenerator() *blockingGenerator {
	return &blockingGenerator{started: make(chan struct{})}
}

func (g *blockingGenerator) Generate(ctx context.Context, _ string, _ generation.Context) (string, error) {
	g.once.Do(func() { close(g.started) })
	<-ctx.Done()
	return "", ctx.Err()
}

// fakeMailer records deliveries and tracks how many overlap
type fakeMailer struct {
	mu      sync.Mutex
	sent    []string
	failFor map[string]error
	delay   time.Duration

	inFlight    atomic.Int32
	maxInFlight atomic.Int32
}

func (m *fakeMailer) Send(_ context.Context, msg email.Message, _ *email.SMTPSettings) (email.Result, error) {
	n := m.inFlight.Add(1)
	defer m.inFlight.Add(-1)
	for {
		prev := m.maxInFlight.Load()
		if n <= prev || m.maxInFlight.CompareAndSwap(prev, n) {
			break
		}
	}
	if m.delay > 0 {
		time.Sleep(m.delay)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg.To)
	if err := m.failFor[msg.To]; err != nil {
		return email.Result{}, err
	}
	return email.Result{
		Method:    email.MethodPrimary,
		Transport: email.TransportSMTP,
		MessageID: fmt.Sprintf("<%d@test>", len(m.sent)),
	}, nil
}

func (m *fakeMailer) recipients() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.sent...)
}

var errRefused = errors.New("connection refused")

func prospect(addr, name string) model.Prospect {
	return model.Prospect{Email: addr, Name: name, Company: "Acme"}
}
