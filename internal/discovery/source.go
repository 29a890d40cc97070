// Package discovery finds prospects for a campaign.
package discovery

import (
	"context"
	"errors"
	"fmt"

	"github.com/fruitai/outreach/internal/logger"
	"github.com/fruitai/outreach/internal/model"
)

// ErrStop may be returned by an EmitFunc to end discovery early without error
var ErrStop = errors.New("discovery: stop")

// Criteria describes what a campaign is looking for
type Criteria struct {
	CampaignID    string `json:"campaignId"`
	TargetWebsite string `json:"targetWebsite"`
	Goal          string `json:"goal"`
	BusinessType  string `json:"businessType"`
	MaxProspects  int    `json:"maxProspects"`
}

// EmitFunc receives prospects as they are found. An error other than ErrStop
// aborts discovery and is returned by Discover.
type EmitFunc func(p model.Prospect) error

// Source produces prospects for a campaign
type Source interface {
	Name() string
	Discover(ctx context.Context, c Criteria, emit EmitFunc) error
}

// MultiSource queries sources in order, skipping addresses already emitted.
// A failing source is logged and the next one is tried; Discover fails only
// when every source failed.
type MultiSource struct {
	sources []Source
	log     *logger.Logger
}

// NewMultiSource creates a MultiSource
func NewMultiSource(log *logger.Logger, sources ...Source) *MultiSource {
	return &MultiSource{sources: sources, log: log.WithComponent("discovery")}
}

// Name implements Source
func (m *MultiSource) Name() string { return "multi" }

// Discover implements Source
func (m *MultiSource) Discover(ctx context.Context, c Criteria, emit EmitFunc) error {
	if len(m.sources) == 0 {
		return errors.New("no discovery sources configured")
	}

	seen := make(map[string]struct{})
	emitted := 0
	stopped := false

	forward := func(p model.Prospect) error {
		key := p.EmailKey()
		if _, dup := seen[key]; dup {
			return nil
		}
		seen[key] = struct{}{}

		if err := emit(p); err != nil {
			if errors.Is(err, ErrStop) {
				stopped = true
				return ErrStop
			}
			return &emitError{err: err}
		}
		emitted++
		if c.MaxProspects > 0 && emitted >= c.MaxProspects {
			stopped = true
			return ErrStop
		}
		return nil
	}

	var failures []error
	for _, src := range m.sources {
		err := src.Discover(ctx, c, forward)
		switch {
		case stopped:
			return nil
		case err == nil:
			continue
		case ctx.Err() != nil:
			return ctx.Err()
		case errors.Is(err, ErrStop):
			return nil
		}

		// An error returned by emit itself is the caller's, not the source's
		var emitErr *emitError
		if errors.As(err, &emitErr) {
			return emitErr.err
		}

		m.log.Warn().Err(err).Str("source", src.Name()).Str("campaign_id", c.CampaignID).Msg("discovery source failed")
		failures = append(failures, fmt.Errorf("%s: %w", src.Name(), err))
	}

	if len(failures) == len(m.sources) {
		return errors.Join(failures...)
	}
	return nil
}

// emitError marks an error that originated in the caller's EmitFunc
type emitError struct{ err error }

func (e *emitError) Error() string { return e.err.Error() }
func (e *emitError) Unwrap() error { return e.err }
