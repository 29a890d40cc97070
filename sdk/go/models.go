package outreach

import (
	"encoding/json"
	"time"
)

// Campaign statuses
const (
	StatusIdle                       = "idle"
	StatusDiscoveringProspects       = "discovering_prospects"
	StatusPausedForTemplateSelection = "paused_for_template_selection"
	StatusGeneratingEmails           = "generating_emails"
	StatusPausedForReview            = "paused_for_review"
	StatusSending                    = "sending"
	StatusCompleted                  = "completed"
	StatusFailed                     = "failed"
	StatusCancelled                  = "cancelled"
)

// SMTPConfig is the primary transport of a campaign.
type SMTPConfig struct {
	Host        string `json:"host"`
	Port        int    `json:"port"`
	Username    string `json:"username"`
	Password    string `json:"password,omitempty"`
	FromAddress string `json:"fromAddress"`
	FromName    string `json:"fromName,omitempty"`
	SSL         bool   `json:"ssl,omitempty"`
}

// TemplateSelection is the template chosen for a campaign.
type TemplateSelection struct {
	TemplateID     string         `json:"templateId"`
	Customizations map[string]any `json:"customizations,omitempty"`
}

// Campaign is a campaign as returned by the API. SMTP passwords are redacted.
type Campaign struct {
	ID            string             `json:"id"`
	TargetWebsite string             `json:"targetWebsite"`
	Goal          string             `json:"goal"`
	BusinessType  string             `json:"businessType"`
	SenderName    string             `json:"senderName,omitempty"`
	SenderCompany string             `json:"senderCompany,omitempty"`
	Status        string             `json:"status"`
	Selection     *TemplateSelection `json:"selection,omitempty"`
	SMTP          *SMTPConfig        `json:"smtp,omitempty"`
	Defaults      map[string]any     `json:"defaults,omitempty"`
	Error         string             `json:"error,omitempty"`
	CreatedAt     time.Time          `json:"createdAt"`
	UpdatedAt     time.Time          `json:"updatedAt"`
}

// Prospect is a discovered contact.
type Prospect struct {
	CampaignID string         `json:"campaignId"`
	Email      string         `json:"email"`
	Name       string         `json:"name,omitempty"`
	Company    string         `json:"company,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Position   int            `json:"position"`
	CreatedAt  time.Time      `json:"createdAt"`
}

// Email is a generated outreach email.
type Email struct {
	ID             string         `json:"id"`
	CampaignID     string         `json:"campaignId"`
	ProspectEmail  string         `json:"prospectEmail"`
	Position       int            `json:"position"`
	Subject        string         `json:"subject"`
	HTML           string         `json:"html"`
	Text           string         `json:"text"`
	TemplateID     string         `json:"templateId"`
	Customizations map[string]any `json:"customizations,omitempty"`
	Status         string         `json:"status"`
	Method         string         `json:"method,omitempty"`
	Transport      string         `json:"transport,omitempty"`
	MessageID      string         `json:"messageId,omitempty"`
	Error          string         `json:"error,omitempty"`
	SentAt         *time.Time     `json:"sentAt,omitempty"`
	CreatedAt      time.Time      `json:"createdAt"`
}

// EmailStats counts a campaign's emails by status. Opened and Clicked count
// emails with at least one tracked event.
type EmailStats struct {
	Total    int `json:"total"`
	Draft    int `json:"draft"`
	Approved int `json:"approved"`
	Sent     int `json:"sent"`
	Failed   int `json:"failed"`
	Opened   int `json:"opened"`
	Clicked  int `json:"clicked"`
}

// EmailEvent is a tracked open or click of a sent email.
type EmailEvent struct {
	ID         string    `json:"id"`
	EmailID    string    `json:"emailId"`
	CampaignID string    `json:"campaignId"`
	Type       string    `json:"type"`
	LinkIndex  *int      `json:"linkIndex,omitempty"`
	URL        string    `json:"url,omitempty"`
	UserAgent  string    `json:"userAgent,omitempty"`
	IPAddress  string    `json:"ipAddress,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Transition is one entry of a campaign's audit trail.
type Transition struct {
	ID         int64     `json:"id"`
	CampaignID string    `json:"campaignId"`
	From       string    `json:"from"`
	To         string    `json:"to"`
	Reason     string    `json:"reason,omitempty"`
	At         time.Time `json:"at"`
}

// StartCampaignRequest starts a campaign.
type StartCampaignRequest struct {
	ID            string         `json:"id,omitempty"`
	TargetWebsite string         `json:"targetWebsite"`
	Goal          string         `json:"goal"`
	BusinessType  string         `json:"businessType"`
	SenderName    string         `json:"senderName,omitempty"`
	SenderCompany string         `json:"senderCompany,omitempty"`
	SMTP          *SMTPConfig    `json:"smtp"`
	Defaults      map[string]any `json:"defaults,omitempty"`
}

// SelectTemplateRequest resumes a campaign paused for template selection.
type SelectTemplateRequest struct {
	PauseID        string         `json:"pauseId,omitempty"`
	TemplateID     string         `json:"templateId"`
	Customizations map[string]any `json:"customizations,omitempty"`
}

// Review decisions
const (
	DecisionApprove = "approve"
	DecisionReject  = "reject"
	DecisionEdit    = "edit"
)

// ReviewRequest is a decision on a campaign paused for review.
type ReviewRequest struct {
	Decision       string         `json:"decision"`
	PauseID        string         `json:"pauseId,omitempty"`
	TemplateID     string         `json:"templateId,omitempty"`
	Customizations map[string]any `json:"customizations,omitempty"`
	Feedback       string         `json:"feedback,omitempty"`
}

// ActionResult is the state of a campaign after a decision.
type ActionResult struct {
	CampaignID string `json:"campaignId"`
	Status     string `json:"status"`
	PauseID    string `json:"pauseId,omitempty"`
}

// Snapshot is the live state of a campaign.
type Snapshot struct {
	Campaign  Campaign `json:"campaign"`
	Step      string   `json:"step,omitempty"`
	PauseID   string   `json:"pauseId,omitempty"`
	PauseKind string   `json:"pauseKind,omitempty"`
	Prospects int      `json:"prospects"`
	Emails    int      `json:"emails"`
}

// CampaignDetails is a stored campaign with counts and live state.
type CampaignDetails struct {
	Campaign  Campaign   `json:"campaign"`
	Prospects int        `json:"prospects"`
	Emails    EmailStats `json:"emails"`
	Live      *Snapshot  `json:"live,omitempty"`
}

// CampaignPage is one page of a campaign listing.
type CampaignPage struct {
	Campaigns []Campaign `json:"campaigns"`
	Total     int        `json:"total"`
	Page      int        `json:"page"`
	PageSize  int        `json:"pageSize"`
}

// ListOptions filters a campaign listing.
type ListOptions struct {
	Page     int
	PageSize int
	Status   string
}

// Template is a registered email template.
type Template struct {
	ID           string         `json:"id"`
	Name         string         `json:"name"`
	Description  string         `json:"description,omitempty"`
	PrimaryColor string         `json:"primaryColor"`
	FontFamily   string         `json:"fontFamily,omitempty"`
	Components   []string       `json:"components"`
	Defaults     map[string]any `json:"defaults,omitempty"`
}

// PreviewRequest renders a template with sample data.
type PreviewRequest struct {
	TemplateID     string         `json:"templateId"`
	Customizations map[string]any `json:"customizations,omitempty"`
	Data           PreviewData    `json:"data"`
}

// PreviewData is sample prospect data.
type PreviewData struct {
	Name          string `json:"name,omitempty"`
	Company       string `json:"company,omitempty"`
	Email         string `json:"email,omitempty"`
	SenderName    string `json:"senderName,omitempty"`
	SenderCompany string `json:"senderCompany,omitempty"`
	Website       string `json:"website,omitempty"`
	Goal          string `json:"goal,omitempty"`
	Body          string `json:"body,omitempty"`
}

// Rendered is a rendered email.
type Rendered struct {
	Subject string `json:"subject"`
	HTML    string `json:"html"`
	Text    string `json:"text"`
}

// SiteMetadata describes a website.
type SiteMetadata struct {
	URL         string `json:"url"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Logo        string `json:"logo,omitempty"`
	Placeholder bool   `json:"placeholder,omitempty"`
}

// Event is a message from the status channel. Data is left raw; its shape
// depends on Type.
type Event struct {
	Type       string          `json:"type"`
	CampaignID string          `json:"campaignId,omitempty"`
	Timestamp  time.Time       `json:"timestamp"`
	Data       json.RawMessage `json:"data,omitempty"`
}
