package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/fruitai/outreach/internal/apperr"
	"github.com/fruitai/outreach/internal/logger"
	"github.com/fruitai/outreach/internal/model"
	"github.com/fruitai/outreach/internal/realtime"
)

// Engagement is the storage behind open and click tracking. It is satisfied
// by repository.Store.
type Engagement interface {
	GetCampaign(ctx context.Context, id string) (*model.Campaign, error)
	GetEmail(ctx context.Context, id string) (*model.Email, error)
	RecordEngagement(ctx context.Context, ev *model.EmailEvent) error
	ListEngagement(ctx context.Context, campaignID string, typ model.EngagementType) ([]*model.EmailEvent, error)
}

// Visit describes the client that fetched a tracked URL
type Visit struct {
	UserAgent string
	IPAddress string
}

// TrackingService records opens and clicks of sent emails
type TrackingService struct {
	store  Engagement
	events realtime.Publisher
	log    *logger.Logger

	newID func() string
	now   func() time.Time
}

// NewTrackingService creates a new TrackingService
func NewTrackingService(store Engagement, events realtime.Publisher, log *logger.Logger) *TrackingService {
	if events == nil {
		events = realtime.Discard
	}
	return &TrackingService{
		store:  store,
		events: events,
		log:    log.WithComponent("tracking_service"),
		newID:  uuid.NewString,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Open records that emailID was opened. Drafts shown for review are not
// counted.
func (s *TrackingService) Open(ctx context.Context, emailID string, v Visit) error {
	e, err := s.store.GetEmail(ctx, emailID)
	if err != nil {
		return err
	}
	if e.Status != model.EmailStatusSent {
		return nil
	}
	return s.record(ctx, e, &model.EmailEvent{Type: model.EngagementOpen}, v)
}

// Click records a click on the link at index and returns its destination.
// The destination is returned even when recording fails.
func (s *TrackingService) Click(ctx context.Context, emailID string, index int, v Visit) (string, error) {
	e, err := s.store.GetEmail(ctx, emailID)
	if err != nil {
		return "", err
	}
	if index < 0 || index >= len(e.Links) {
		return "", apperr.New(apperr.KindNotFound, "link %d of email %q not found", index, emailID)
	}
	dest := e.Links[index]
	if e.Status != model.EmailStatusSent {
		return dest, nil
	}
	ev := &model.EmailEvent{Type: model.EngagementClick, LinkIndex: &index, URL: dest}
	return dest, s.record(ctx, e, ev, v)
}

// Events returns a campaign's tracked events, optionally of one type
func (s *TrackingService) Events(ctx context.Context, campaignID string, typ model.EngagementType) ([]*model.EmailEvent, error) {
	if typ != "" && !typ.Valid() {
		return nil, apperr.New(apperr.KindConfiguration, "unknown event type %q", typ)
	}
	if _, err := s.store.GetCampaign(ctx, campaignID); err != nil {
		return nil, err
	}
	events, err := s.store.ListEngagement(ctx, campaignID, typ)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, err, "failed to list events")
	}
	if events == nil {
		events = []*model.EmailEvent{}
	}
	return events, nil
}

func (s *TrackingService) record(ctx context.Context, e *model.Email, ev *model.EmailEvent, v Visit) error {
	ev.ID = s.newID()
	ev.EmailID = e.ID
	ev.CampaignID = e.CampaignID
	ev.UserAgent = v.UserAgent
	ev.IPAddress = v.IPAddress
	ev.CreatedAt = s.now()

	if err := s.store.RecordEngagement(ctx, ev); err != nil {
		return apperr.Wrap(apperr.KindInternal, err, "failed to record %s", ev.Type)
	}

	s.log.Debug().
		Str("campaign_id", e.CampaignID).
		Str("email_id", e.ID).
		Str("type", string(ev.Type)).
		Msg("engagement recorded")

	s.events.Publish(realtime.Event{
		Type:       realtime.TypeNotification,
		CampaignID: e.CampaignID,
		Data: realtime.NotificationPayload{
			Kind:       realtime.NotifyEmailEngagement,
			Level:      "info",
			Message:    string(ev.Type) + " by " + e.ProspectEmail,
			Email:      e,
			Engagement: ev,
		},
	})
	return nil
}
