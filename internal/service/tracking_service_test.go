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
	"github.com/fruitai/outreach/internal/realtime"
)

type fakeEngagement struct {
	emails    map[string]*model.Email
	events    []*model.EmailEvent
	recordErr error
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
	if f.recordErr != nil {
		return f.recordErr
	}
	f.events = append(f.events, ev)
	return nil
}

func (f *fakeEngagement) ListEngagement(_ context.Context, _ string, typ model.EngagementType) ([]*model.EmailEvent, error) {
	var out []*model.EmailEvent
	for _, ev := range f.events {
		if typ == "" || ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out, nil
}

func newTrackingFixture() (*TrackingService, *fakeEngagement, *[]realtime.Event) {
	store := &fakeEngagement{emails: map[string]*model.Email{
		"sent": {
			ID: "sent", CampaignID: "c1", ProspectEmail: "a@acme.test",
			Status: model.EmailStatusSent, Links: []string{"https://acme.test/demo"},
		},
		"draft": {
			ID: "draft", CampaignID: "c1", ProspectEmail: "b@acme.test",
			Status: model.EmailStatusDraft, Links: []string{"https://acme.test/demo"},
		},
	}}
	var published []realtime.Event
	svc := NewTrackingService(store, realtime.PublisherFunc(func(ev realtime.Event) {
		published = append(published, ev)
	}), logger.Nop())
	return svc, store, &published
}

func TestTrackingService_OpenAndClick(t *testing.T) {
	svc, store, published := newTrackingFixture()
	ctx := context.Background()
	visit := Visit{UserAgent: "Mail/1.0", IPAddress: "203.0.113.7"}

	require.NoError(t, svc.Open(ctx, "sent", visit))
	dest, err := svc.Click(ctx, "sent", 0, visit)
	require.NoError(t, err)
	assert.Equal(t, "https://acme.test/demo", dest)

	require.Len(t, store.events, 2)
	assert.Equal(t, model.EngagementOpen, store.events[0].Type)
	assert.Nil(t, store.events[0].LinkIndex)
	click := store.events[1]
	assert.Equal(t, model.EngagementClick, click.Type)
	require.NotNil(t, click.LinkIndex)
	assert.Equal(t, 0, *click.LinkIndex)
	assert.Equal(t, "https://acme.test/demo", click.URL)
	assert.Equal(t, "c1", click.CampaignID)
	assert.Equal(t, "203.0.113.7", click.IPAddress)

	require.Len(t, *published, 2)
	n, ok := (*published)[1].Data.(realtime.NotificationPayload)
	require.True(t, ok)
	assert.Equal(t, realtime.NotifyEmailEngagement, n.Kind)
	assert.Equal(t, "c1", (*published)[1].CampaignID)
	assert.Same(t, click, n.Engagement)
}

func TestTrackingService_DraftsAreNotCounted(t *testing.T) {
	svc, store, published := newTrackingFixture()
	ctx := context.Background()

	require.NoError(t, svc.Open(ctx, "draft", Visit{}))
	dest, err := svc.Click(ctx, "draft", 0, Visit{})
	require.NoError(t, err)
	assert.Equal(t, "https://acme.test/demo", dest)

	assert.Empty(t, store.events)
	assert.Empty(t, *published)
}

func TestTrackingService_UnknownTargets(t *testing.T) {
	svc, _, _ := newTrackingFixture()
	ctx := context.Background()

	err := svc.Open(ctx, "missing", Visit{})
	assert.True(t, errors.Is(err, apperr.ErrNotFound))

	for _, index := range []int{-1, 1} {
		_, err = svc.Click(ctx, "sent", index, Visit{})
		assert.True(t, errors.Is(err, apperr.ErrNotFound), index)
	}
}

func TestTrackingService_RecordFailure(t *testing.T) {
	svc, store, published := newTrackingFixture()
	store.recordErr = errors.New("connection reset")

	dest, err := svc.Click(context.Background(), "sent", 0, Visit{})
	require.Error(t, err)
	assert.Equal(t, apperr.KindInternal, apperr.KindOf(err))
	assert.Equal(t, "https://acme.test/demo", dest)
	assert.Empty(t, *published)
}

func TestTrackingService_Events(t *testing.T) {
	svc, _, _ := newTrackingFixture()
	ctx := context.Background()

	require.NoError(t, svc.Open(ctx, "sent", Visit{}))
	_, err := svc.Click(ctx, "sent", 0, Visit{})
	require.NoError(t, err)

	all, err := svc.Events(ctx, "c1", "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	clicks, err := svc.Events(ctx, "c1", model.EngagementClick)
	require.NoError(t, err)
	assert.Len(t, clicks, 1)

	_, err = svc.Events(ctx, "c1", "bounce")
	assert.Equal(t, apperr.KindConfiguration, apperr.KindOf(err))

	_, err = svc.Events(ctx, "c2", "")
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
}
