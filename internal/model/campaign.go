package model

import (
	"time"
)

// WorkflowStatus represents the stage a campaign is in
type WorkflowStatus string

const (
	StatusIdle                       WorkflowStatus = "idle"
	StatusDiscoveringProspects       WorkflowStatus = "discovering_prospects"
	StatusPausedForTemplateSelection WorkflowStatus = "paused_for_template_selection"
	StatusGeneratingEmails           WorkflowStatus = "generating_emails"
	StatusPausedForReview            WorkflowStatus = "paused_for_review"
	StatusSending                    WorkflowStatus = "sending"
	StatusCompleted                  WorkflowStatus = "completed"
	StatusFailed                     WorkflowStatus = "failed"
	StatusCancelled                  WorkflowStatus = "cancelled"
)

// AllStatuses lists every workflow status in lifecycle order
var AllStatuses = []WorkflowStatus{
	StatusIdle,
	StatusDiscoveringProspects,
	StatusPausedForTemplateSelection,
	StatusGeneratingEmails,
	StatusPausedForReview,
	StatusSending,
	StatusCompleted,
	StatusFailed,
	StatusCancelled,
}

// Valid reports whether s is one of the defined statuses
func (s WorkflowStatus) Valid() bool {
	for _, v := range AllStatuses {
		if v == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions are possible
func (s WorkflowStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// IsPaused reports whether the campaign waits on a client decision
func (s WorkflowStatus) IsPaused() bool {
	return s == StatusPausedForTemplateSelection || s == StatusPausedForReview
}

// SMTPConfig is the caller-supplied primary transport for a campaign
type SMTPConfig struct {
	Host        string `json:"host"`
	Port        int    `json:"port"`
	Username    string `json:"username"`
	Password    string `json:"password,omitempty"`
	FromAddress string `json:"fromAddress"`
	FromName    string `json:"fromName,omitempty"`
	// SSL selects implicit TLS (usually port 465) instead of STARTTLS
	SSL bool `json:"ssl,omitempty"`
}

// Redacted returns a copy safe to expose over the API
func (c SMTPConfig) Redacted() SMTPConfig {
	if c.Password != "" {
		c.Password = "********"
	}
	return c
}

// TemplateSelection is the template a campaign renders with plus user overrides
type TemplateSelection struct {
	TemplateID     string         `json:"templateId"`
	Customizations map[string]any `json:"customizations,omitempty"`
}

// Campaign represents one outreach run
type Campaign struct {
	ID            string             `json:"id"`
	TargetWebsite string             `json:"targetWebsite"`
	Goal          string             `json:"goal"`
	BusinessType  string             `json:"businessType"`
	SenderName    string             `json:"senderName,omitempty"`
	SenderCompany string             `json:"senderCompany,omitempty"`
	Status        WorkflowStatus     `json:"status"`
	Selection     *TemplateSelection `json:"selection,omitempty"`
	SMTP          *SMTPConfig        `json:"smtp,omitempty"`
	// Defaults are campaign-wide template customizations, applied beneath the selection's own
	Defaults      map[string]any     `json:"defaults,omitempty"`
	Error         string             `json:"error,omitempty"`
	CreatedAt     time.Time          `json:"createdAt"`
	UpdatedAt     time.Time          `json:"updatedAt"`
}

// PauseKind identifies which human decision a pause waits for
type PauseKind string

const (
	PauseTemplateSelection PauseKind = "template_selection"
	PauseReview            PauseKind = "review"
)

// PauseGate is the single open decision point of a campaign
type PauseGate struct {
	ID         string    `json:"id"`
	Kind       PauseKind `json:"kind"`
	CampaignID string    `json:"campaignId"`
	OpenedAt   time.Time `json:"openedAt"`
}
