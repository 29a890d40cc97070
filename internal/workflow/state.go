// Package workflow drives a campaign through discovery, template selection,
// generation, review and sending.
package workflow

import "github.com/fruitai/outreach/internal/model"

// Stage names carried by step_update events
const (
	StepDiscovery         = "discovery"
	StepTemplateSelection = "template_selection"
	StepGeneration        = "generation"
	StepReview            = "review"
	StepSending           = "sending"
)

// edges lists every allowed forward transition. Failure and cancellation
// are allowed from any non-terminal status and are not repeated here.
var edges = map[model.WorkflowStatus][]model.WorkflowStatus{
	model.StatusIdle:                       {model.StatusDiscoveringProspects},
	model.StatusDiscoveringProspects:       {model.StatusPausedForTemplateSelection},
	model.StatusPausedForTemplateSelection: {model.StatusGeneratingEmails},
	model.StatusGeneratingEmails:           {model.StatusPausedForReview},
	model.StatusPausedForReview:            {model.StatusSending, model.StatusGeneratingEmails},
	model.StatusSending:                    {model.StatusCompleted},
}

// CanTransition reports whether a campaign may move from one status to another
func CanTransition(from, to model.WorkflowStatus) bool {
	if !from.Valid() || !to.Valid() || from.IsTerminal() {
		return false
	}
	if to == model.StatusFailed || to == model.StatusCancelled {
		return true
	}
	for _, next := range edges[from] {
		if next == to {
			return true
		}
	}
	return false
}

// stepFor returns the stage a status belongs to
func stepFor(status model.WorkflowStatus) string {
	switch status {
	case model.StatusDiscoveringProspects:
		return StepDiscovery
	case model.StatusPausedForTemplateSelection:
		return StepTemplateSelection
	case model.StatusGeneratingEmails:
		return StepGeneration
	case model.StatusPausedForReview:
		return StepReview
	case model.StatusSending:
		return StepSending
	default:
		return ""
	}
}
