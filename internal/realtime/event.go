// Package realtime pushes campaign progress to connected clients.
package realtime

import (
	"time"

	"github.com/fruitai/outreach/internal/model"
)

// EventType identifies the payload carried by an Event
type EventType string

// Server-published event types
const (
	TypeStatusUpdate EventType = "status_update"
	TypeStepUpdate   EventType = "step_update"
	TypeEmailUpdate  EventType = "email_update"
	TypeNotification EventType = "notification"
	TypeLogUpdate    EventType = "log_update"
)

// Replies sent to a single client
const (
	TypeConnected    EventType = "connected"
	TypePong         EventType = "pong"
	TypeSubscribed   EventType = "subscribed"
	TypeActionResult EventType = "action_result"
	TypeError        EventType = "error"
)

// Event is the envelope every message on the channel uses. Timestamp is set
// by the hub when the event is sent.
type Event struct {
	Type       EventType `json:"type"`
	CampaignID string    `json:"campaignId,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
	Data       any       `json:"data,omitempty"`
}

// StatusPayload accompanies status_update
type StatusPayload struct {
	Status    model.WorkflowStatus `json:"status"`
	Step      string               `json:"step,omitempty"`
	PauseID   string               `json:"pauseId,omitempty"`
	PauseKind model.PauseKind      `json:"pauseKind,omitempty"`
	Error     string               `json:"error,omitempty"`
}

// Step states carried by step_update
const (
	StepStarted   = "started"
	StepProgress  = "progress"
	StepCompleted = "completed"
	StepFailed    = "failed"
)

// StepPayload accompanies step_update
type StepPayload struct {
	Step     string `json:"step"`
	State    string `json:"state"`
	Progress int    `json:"progress"`
	Count    int    `json:"count,omitempty"`
	Total    int    `json:"total,omitempty"`
	Message  string `json:"message,omitempty"`
}

// EmailPayload accompanies email_update
type EmailPayload struct {
	Email *model.Email `json:"email"`
	Index int          `json:"index"`
	Total int          `json:"total"`
}

// Notification kinds
const (
	NotifyFirstProspectReady = "first_prospect_ready"
	NotifyFirstEmailReady    = "first_email_ready"
	NotifyCampaignCompleted  = "campaign_completed"
	NotifyCampaignFailed     = "campaign_failed"
	NotifyCampaignCancelled  = "campaign_cancelled"
	NotifyEmailFailed        = "email_failed"
	NotifyEmailEngagement    = "email_engagement"
)

// NotificationPayload accompanies notification
type NotificationPayload struct {
	Kind       string            `json:"kind"`
	Level      string            `json:"level"`
	Message    string            `json:"message"`
	PauseID    string            `json:"pauseId,omitempty"`
	ErrorKind  string            `json:"errorKind,omitempty"`
	Prospect   *model.Prospect   `json:"prospect,omitempty"`
	Email      *model.Email      `json:"email,omitempty"`
	Engagement *model.EmailEvent `json:"engagement,omitempty"`
}

// LogPayload accompanies log_update
type LogPayload struct {
	Level   string `json:"level"`
	Message string `json:"message"`
}

// Publisher accepts events for fan-out. The coordinator depends on this
// rather than on the hub.
type Publisher interface {
	Publish(ev Event)
}

// PublisherFunc adapts a function to Publisher
type PublisherFunc func(ev Event)

// Publish calls f(ev)
func (f PublisherFunc) Publish(ev Event) { f(ev) }

// Discard drops every event
var Discard Publisher = PublisherFunc(func(Event) {})
