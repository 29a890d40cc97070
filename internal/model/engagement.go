package model

import "time"

// EngagementType is what a recipient did with a sent email
type EngagementType string

const (
	EngagementOpen  EngagementType = "open"
	EngagementClick EngagementType = "click"
)

// Valid reports whether t is a known engagement type
func (t EngagementType) Valid() bool {
	return t == EngagementOpen || t == EngagementClick
}

// EmailEvent records one tracked open or click. The tracking id of an email
// is its ID.
type EmailEvent struct {
	ID         string         `json:"id"`
	EmailID    string         `json:"emailId"`
	CampaignID string         `json:"campaignId"`
	Type       EngagementType `json:"type"`
	// LinkIndex and URL are set for clicks
	LinkIndex *int      `json:"linkIndex,omitempty"`
	URL       string    `json:"url,omitempty"`
	UserAgent string    `json:"userAgent,omitempty"`
	IPAddress string    `json:"ipAddress,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}
