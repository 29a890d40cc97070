package realtime

import (
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/fruitai/outreach/internal/logger"
)

// Subscriber receives encoded events from the hub. Deliver must not block;
// returning false removes the subscriber.
type Subscriber interface {
	Deliver(msg []byte) bool
	Close()
}

// Filter is implemented by subscribers that only want some campaigns.
// Events without a campaign id are always delivered.
type Filter interface {
	Wants(campaignID string) bool
}

type campaignState struct {
	payload StatusPayload
}

// Hub fans events out to subscribers in publish order and remembers the
// latest status of every active campaign for clients that connect later.
type Hub struct {
	log *logger.Logger
	now func() time.Time

	mu       sync.Mutex
	subs     map[Subscriber]struct{}
	order    []Subscriber
	campaign map[string]*campaignState
}

// NewHub creates a Hub
func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		log:      log.WithComponent("realtime"),
		now:      func() time.Time { return time.Now().UTC() },
		subs:     make(map[Subscriber]struct{}),
		campaign: make(map[string]*campaignState),
	}
}

// Connect registers sub and immediately sends it the current snapshot
func (h *Hub) Connect(sub Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.subs[sub]; ok {
		return
	}
	h.subs[sub] = struct{}{}
	h.order = append(h.order, sub)

	for _, ev := range h.snapshotLocked("") {
		if !h.deliverLocked(sub, ev) {
			return
		}
	}
}

// Disconnect removes sub. Calling it more than once is harmless.
func (h *Hub) Disconnect(sub Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(sub)
}

// Publish stamps ev and sends it to every interested subscriber
func (h *Hub) Publish(ev Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.trackLocked(ev)

	if len(h.order) == 0 {
		return
	}

	ev.Timestamp = h.now()
	msg, err := json.Marshal(ev)
	if err != nil {
		h.log.Error().Err(err).Str("type", string(ev.Type)).Msg("failed to encode event")
		return
	}

	// Copy: delivery failures mutate h.order
	for _, sub := range append([]Subscriber(nil), h.order...) {
		if f, ok := sub.(Filter); ok && ev.CampaignID != "" && !f.Wants(ev.CampaignID) {
			continue
		}
		if !sub.Deliver(msg) {
			h.log.Debug().Str("type", string(ev.Type)).Msg("subscriber rejected event, removing")
			h.removeLocked(sub)
		}
	}
}

// Snapshot returns a status_update for each active campaign, or only for
// campaignID when it is non-empty
func (h *Hub) Snapshot(campaignID string) []Event {
	h.mu.Lock()
	defer h.mu.Unlock()

	events := h.snapshotLocked(campaignID)
	for i := range events {
		events[i].Timestamp = h.now()
	}
	return events
}

// Clients returns the number of registered subscribers
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.order)
}

// Close disconnects every subscriber
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, sub := range append([]Subscriber(nil), h.order...) {
		h.removeLocked(sub)
	}
}

func (h *Hub) deliverLocked(sub Subscriber, ev Event) bool {
	ev.Timestamp = h.now()
	msg, err := json.Marshal(ev)
	if err != nil {
		return true
	}
	if !sub.Deliver(msg) {
		h.removeLocked(sub)
		return false
	}
	return true
}

func (h *Hub) removeLocked(sub Subscriber) {
	if _, ok := h.subs[sub]; !ok {
		return
	}
	delete(h.subs, sub)
	for i, s := range h.order {
		if s == sub {
			h.order = append(h.order[:i], h.order[i+1:]...)
			break
		}
	}
	sub.Close()
}

// trackLocked keeps the per-campaign snapshot current
func (h *Hub) trackLocked(ev Event) {
	if ev.CampaignID == "" {
		return
	}

	switch p := ev.Data.(type) {
	case StatusPayload:
		if p.Status.IsTerminal() {
			delete(h.campaign, ev.CampaignID)
			return
		}
		st, ok := h.campaign[ev.CampaignID]
		if !ok {
			st = &campaignState{}
			h.campaign[ev.CampaignID] = st
		}
		step := st.payload.Step
		st.payload = p
		if p.Step == "" {
			st.payload.Step = step
		}
	case StepPayload:
		if st, ok := h.campaign[ev.CampaignID]; ok {
			st.payload.Step = p.Step
		}
	}
}

func (h *Hub) snapshotLocked(campaignID string) []Event {
	ids := make([]string, 0, len(h.campaign))
	for id := range h.campaign {
		if campaignID == "" || id == campaignID {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	events := make([]Event, 0, len(ids))
	for _, id := range ids {
		events = append(events, Event{
			Type:       TypeStatusUpdate,
			CampaignID: id,
			Data:       h.campaign[id].payload,
		})
	}
	return events
}
