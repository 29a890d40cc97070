package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fruitai/outreach/internal/model"
)

func TestCanTransition(t *testing.T) {
	allowed := map[[2]model.WorkflowStatus]bool{
		{model.StatusIdle, model.StatusDiscoveringProspects}:                       true,
		{model.StatusDiscoveringProspects, model.StatusPausedForTemplateSelection}: true,
		{model.StatusPausedForTemplateSelection, model.StatusGeneratingEmails}:     true,
		{model.StatusGeneratingEmails, model.StatusPausedForReview}:                true,
		{model.StatusPausedForReview, model.StatusSending}:                         true,
		{model.StatusPausedForReview, model.StatusGeneratingEmails}:                true,
		{model.StatusSending, model.StatusCompleted}:                               true,
	}

	for _, from := range model.AllStatuses {
		for _, to := range model.AllStatuses {
			want := allowed[[2]model.WorkflowStatus{from, to}]
			if !from.IsTerminal() && (to == model.StatusFailed || to == model.StatusCancelled) {
				want = true
			}
			assert.Equal(t, want, CanTransition(from, to), "%s -> %s", from, to)
		}
	}
}

func TestCanTransition_RejectsUnknownStatus(t *testing.T) {
	assert.False(t, CanTransition("bogus", model.StatusFailed))
	assert.False(t, CanTransition(model.StatusIdle, "bogus"))
}

func TestStepFor(t *testing.T) {
	assert.Equal(t, StepDiscovery, stepFor(model.StatusDiscoveringProspects))
	assert.Equal(t, StepReview, stepFor(model.StatusPausedForReview))
	assert.Empty(t, stepFor(model.StatusCompleted))
}
