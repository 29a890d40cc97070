package model

import "time"

// EmailStatus represents the delivery state of a generated email
type EmailStatus string

const (
	EmailStatusDraft    EmailStatus = "draft"
	EmailStatusApproved EmailStatus = "approved"
	EmailStatusSent     EmailStatus = "sent"
	EmailStatusFailed   EmailStatus = "failed"
)

// Email is a rendered message for exactly one prospect of one campaign.
// Links holds the destinations of its tracked links, by link index.
type Email struct {
	ID             string         `json:"id"`
	CampaignID     string         `json:"campaignId"`
	ProspectEmail  string         `json:"prospectEmail"`
	Position       int            `json:"position"`
	Subject        string         `json:"subject"`
	HTML           string         `json:"html"`
	Text           string         `json:"text"`
	Body           string         `json:"body,omitempty"`
	TemplateID     string         `json:"templateId"`
	Customizations map[string]any `json:"customizations,omitempty"`
	Links          []string       `json:"links,omitempty"`
	Status         EmailStatus    `json:"status"`
	Method         string         `json:"method,omitempty"`
	Transport      string         `json:"transport,omitempty"`
	MessageID      string         `json:"messageId,omitempty"`
	Error          string         `json:"error,omitempty"`
	SentAt         *time.Time     `json:"sentAt,omitempty"`
	CreatedAt      time.Time      `json:"createdAt"`
	UpdatedAt      time.Time      `json:"updatedAt"`
}

// EmailStats counts a campaign's emails by status. Opened and Clicked count
// emails with at least one tracked event of that type.
type EmailStats struct {
	Total    int `json:"total"`
	Draft    int `json:"draft"`
	Approved int `json:"approved"`
	Sent     int `json:"sent"`
	Failed   int `json:"failed"`
	Opened   int `json:"opened"`
	Clicked  int `json:"clicked"`
}

// Add counts one email with the given status
func (s *EmailStats) Add(status EmailStatus, n int) {
	switch status {
	case EmailStatusDraft:
		s.Draft += n
	case EmailStatusApproved:
		s.Approved += n
	case EmailStatusSent:
		s.Sent += n
	case EmailStatusFailed:
		s.Failed += n
	}
	s.Total += n
}
