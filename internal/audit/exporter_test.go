package audit

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/streadway/amqp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/fruitai/outreach/internal/logger"
	"github.com/fruitai/outreach/internal/model"
	"github.com/fruitai/outreach/internal/realtime"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type published struct {
	exchange string
	key      string
	msg      amqp.Publishing
}

type fakeChannel struct {
	mu     sync.Mutex
	out    []published
	closed bool
	err    error
	block  chan struct{}
}

func (c *fakeChannel) Publish(exchange, key string, _, _ bool, msg amqp.Publishing) error {
	if c.block != nil {
		<-c.block
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.out = append(c.out, published{exchange: exchange, key: key, msg: msg})
	return nil
}

func (c *fakeChannel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeChannel) published() []published {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]published(nil), c.out...)
}

func encode(t *testing.T, ev realtime.Event) []byte {
	t.Helper()
	b, err := json.Marshal(ev)
	require.NoError(t, err)
	return b
}

func TestExporter_PublishesLifecycleEvents(t *testing.T) {
	ch := &fakeChannel{}
	e := NewExporter(ch, "outreach.events", logger.Nop())

	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	status := encode(t, realtime.Event{
		Type:       realtime.TypeStatusUpdate,
		CampaignID: "c1",
		Timestamp:  at,
		Data:       realtime.StatusPayload{Status: model.StatusSending},
	})
	step := encode(t, realtime.Event{
		Type:       realtime.TypeStepUpdate,
		CampaignID: "c1",
		Data:       realtime.StepPayload{Step: "sending", State: realtime.StepProgress},
	})
	note := encode(t, realtime.Event{
		Type: realtime.TypeNotification,
		Data: realtime.NotificationPayload{Kind: "maintenance", Message: "hello"},
	})

	assert.True(t, e.Deliver(status))
	assert.True(t, e.Deliver(step))
	assert.True(t, e.Deliver([]byte("not json")))
	assert.True(t, e.Deliver(note))
	e.Close()

	out := ch.published()
	require.Len(t, out, 2)

	assert.Equal(t, "outreach.events", out[0].exchange)
	assert.Equal(t, "campaign.c1.status_update", out[0].key)
	assert.Equal(t, "application/json", out[0].msg.ContentType)
	assert.Equal(t, amqp.Persistent, out[0].msg.DeliveryMode)
	assert.Equal(t, "status_update", out[0].msg.Type)
	assert.True(t, at.Equal(out[0].msg.Timestamp))
	assert.JSONEq(t, string(status), string(out[0].msg.Body))

	assert.Equal(t, "system.notification", out[1].key)
	assert.True(t, ch.closed)
}

func TestExporter_DeliverAfterCloseFails(t *testing.T) {
	ch := &fakeChannel{}
	e := NewExporter(ch, "x", logger.Nop())
	e.Close()
	e.Close()

	assert.False(t, e.Deliver([]byte(`{"type":"status_update"}`)))
}

func TestExporter_DropsWhenQueueIsFull(t *testing.T) {
	ch := &fakeChannel{block: make(chan struct{})}
	e := NewExporter(ch, "x", logger.Nop())

	msg := []byte(`{"type":"status_update","campaignId":"c1"}`)
	// One event may already sit in the blocked publisher
	for i := 0; i < queueSize+5; i++ {
		assert.True(t, e.Deliver(msg))
	}
	assert.GreaterOrEqual(t, e.Dropped(), 4)

	close(ch.block)
	e.Close()
	assert.Equal(t, queueSize+5-e.Dropped(), len(ch.published()))
}

func TestExporter_PublishErrorIsLogged(t *testing.T) {
	ch := &fakeChannel{err: errors.New("channel closed")}
	e := NewExporter(ch, "x", logger.Nop())

	assert.True(t, e.Deliver([]byte(`{"type":"email_update","campaignId":"c1"}`)))
	e.Close()
	assert.Empty(t, ch.published())
}

func TestRoutingKey(t *testing.T) {
	assert.Equal(t, "campaign.abc.email_update", RoutingKey(realtime.TypeEmailUpdate, "abc"))
	assert.Equal(t, "system.status_update", RoutingKey(realtime.TypeStatusUpdate, ""))
}
