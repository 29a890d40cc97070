// Package audit mirrors campaign lifecycle events onto an AMQP exchange so
// other systems can keep their own trail.
package audit

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/streadway/amqp"

	"github.com/fruitai/outreach/internal/logger"
	"github.com/fruitai/outreach/internal/realtime"
)

const queueSize = 1024

// exported lists the event types worth keeping; progress and log lines are not
var exported = map[realtime.EventType]bool{
	realtime.TypeStatusUpdate: true,
	realtime.TypeEmailUpdate:  true,
	realtime.TypeNotification: true,
}

// Channel is the subset of *amqp.Channel the exporter uses
type Channel interface {
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Exporter is a hub subscriber that republishes events on an exchange.
// Delivery from the hub never blocks: when the queue is full the event is
// dropped and counted.
type Exporter struct {
	ch       Channel
	conn     *amqp.Connection
	exchange string
	log      *logger.Logger

	queue chan []byte
	done  chan struct{}
	wg    sync.WaitGroup

	mu      sync.Mutex
	closed  bool
	dropped int
}

// Dial connects to the broker, declares a durable topic exchange and starts
// an Exporter on it
func Dial(url, exchange string, log *logger.Logger) (*Exporter, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to AMQP broker: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open AMQP channel: %w", err)
	}

	err = ch.ExchangeDeclare(
		exchange,
		amqp.ExchangeTopic,
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange %q: %w", exchange, err)
	}

	e := NewExporter(ch, exchange, log)
	e.conn = conn
	return e, nil
}

// NewExporter starts an Exporter publishing on ch
func NewExporter(ch Channel, exchange string, log *logger.Logger) *Exporter {
	e := &Exporter{
		ch:       ch,
		exchange: exchange,
		log:      log.WithComponent("audit"),
		queue:    make(chan []byte, queueSize),
		done:     make(chan struct{}),
	}
	e.wg.Add(1)
	go e.run()
	return e
}

// Deliver implements realtime.Subscriber
func (e *Exporter) Deliver(msg []byte) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return false
	}
	select {
	case e.queue <- msg:
	default:
		e.dropped++
	}
	return true
}

// Dropped returns how many events were discarded because the queue was full
func (e *Exporter) Dropped() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dropped
}

// Close implements realtime.Subscriber. Queued events are flushed first.
func (e *Exporter) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	close(e.done)
	e.mu.Unlock()

	e.wg.Wait()

	if err := e.ch.Close(); err != nil {
		e.log.Warn().Err(err).Msg("failed to close AMQP channel")
	}
	if e.conn != nil {
		if err := e.conn.Close(); err != nil {
			e.log.Warn().Err(err).Msg("failed to close AMQP connection")
		}
	}
}

func (e *Exporter) run() {
	defer e.wg.Done()

	for {
		select {
		case msg := <-e.queue:
			e.publish(msg)
		case <-e.done:
			for {
				select {
				case msg := <-e.queue:
					e.publish(msg)
				default:
					return
				}
			}
		}
	}
}

type envelope struct {
	Type       realtime.EventType `json:"type"`
	CampaignID string             `json:"campaignId"`
	Timestamp  time.Time          `json:"timestamp"`
}

func (e *Exporter) publish(msg []byte) {
	var env envelope
	if err := json.Unmarshal(msg, &env); err != nil {
		e.log.Warn().Err(err).Msg("skipping undecodable event")
		return
	}
	if !exported[env.Type] {
		return
	}

	err := e.ch.Publish(
		e.exchange,
		RoutingKey(env.Type, env.CampaignID),
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    env.Timestamp,
			Type:         string(env.Type),
			Body:         msg,
		},
	)
	if err != nil {
		e.log.Error().Err(err).Str("type", string(env.Type)).Str("campaign_id", env.CampaignID).Msg("failed to publish audit event")
	}
}

// RoutingKey is campaign.<id>.<type>, or system.<type> for untargeted events
func RoutingKey(typ realtime.EventType, campaignID string) string {
	if campaignID == "" {
		return "system." + string(typ)
	}
	return "campaign." + campaignID + "." + string(typ)
}
