package model

import "time"

// Transition is one audit row of a campaign status change
type Transition struct {
	ID         int64          `json:"id"`
	CampaignID string         `json:"campaignId"`
	From       WorkflowStatus `json:"from"`
	To         WorkflowStatus `json:"to"`
	Reason     string         `json:"reason,omitempty"`
	At         time.Time      `json:"at"`
}

// Transition reasons recorded by the coordinator
const (
	ReasonStarted          = "campaign.started"
	ReasonFirstProspect    = "prospect.first_found"
	ReasonTemplateSelected = "template.selected"
	ReasonFirstEmailReady  = "email.first_rendered"
	ReasonApproved         = "review.approved"
	ReasonRejected         = "review.rejected"
	ReasonEdited           = "review.edited"
	ReasonAllAttempted     = "send.all_attempted"
	ReasonCancelled        = "campaign.cancelled"
	ReasonRestarted        = "campaign.interrupted_by_restart"
)
