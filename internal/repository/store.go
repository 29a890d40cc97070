package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/fruitai/outreach/internal/apperr"
	"github.com/fruitai/outreach/internal/database"
	"github.com/fruitai/outreach/internal/model"
)

// Store bundles the repositories into the persistence port the workflow
// coordinator writes through. Status changes and their audit rows are
// committed in one transaction.
type Store struct {
	db          *database.Postgres
	Campaigns   *CampaignRepository
	Prospects   *ProspectRepository
	Emails      *EmailRepository
	Transitions *TransitionRepository
	Engagement  *EngagementRepository
}

// NewStore creates a Store over the given repositories
func NewStore(db *database.Postgres, campaigns *CampaignRepository, prospects *ProspectRepository,
	emails *EmailRepository, transitions *TransitionRepository, engagement *EngagementRepository) *Store {
	return &Store{
		db:          db,
		Campaigns:   campaigns,
		Prospects:   prospects,
		Emails:      emails,
		Transitions: transitions,
		Engagement:  engagement,
	}
}

// CreateCampaign inserts a campaign and its first transition
func (s *Store) CreateCampaign(ctx context.Context, c *model.Campaign, t *model.Transition) error {
	if err := s.Campaigns.Create(ctx, c); err != nil {
		if errors.Is(err, ErrDuplicate) {
			return apperr.Wrap(apperr.KindConfiguration, err, "campaign %q already exists", c.ID)
		}
		return err
	}
	if t == nil {
		return nil
	}
	return s.Transitions.Create(ctx, t)
}

// UpdateCampaign persists the campaign's mutable fields and, when given, the
// transition that produced them
func (s *Store) UpdateCampaign(ctx context.Context, c *model.Campaign, t *model.Transition) error {
	if t == nil {
		return s.Campaigns.Update(ctx, c)
	}
	return s.db.WithTx(ctx, func(tx *sql.Tx) error {
		if err := s.Campaigns.update(ctx, tx, c); err != nil {
			return err
		}
		return s.Transitions.create(ctx, tx, t)
	})
}

// GetCampaign returns a stored campaign, active or archived
func (s *Store) GetCampaign(ctx context.Context, id string) (*model.Campaign, error) {
	c, err := s.Campaigns.GetByID(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, apperr.Wrap(apperr.KindNotFound, err, "campaign %q not found", id)
	}
	return c, err
}

// AddProspect stores a prospect; re-adding the same address is a no-op
func (s *Store) AddProspect(ctx context.Context, p *model.Prospect) error {
	if err := s.Prospects.Add(ctx, p); err != nil && !errors.Is(err, ErrDuplicate) {
		return err
	}
	return nil
}

// SaveEmail inserts or replaces a campaign email
func (s *Store) SaveEmail(ctx context.Context, e *model.Email) error {
	return s.Emails.Save(ctx, e)
}

// ListActiveCampaigns returns campaigns that have not reached a terminal status
func (s *Store) ListActiveCampaigns(ctx context.Context) ([]*model.Campaign, error) {
	return s.Campaigns.ListActive(ctx)
}

// ListProspects returns a campaign's prospects in insertion order
func (s *Store) ListProspects(ctx context.Context, campaignID string) ([]*model.Prospect, error) {
	return s.Prospects.ListByCampaign(ctx, campaignID)
}

// ListEmails returns a campaign's emails in insertion order
func (s *Store) ListEmails(ctx context.Context, campaignID string) ([]*model.Email, error) {
	return s.Emails.ListByCampaign(ctx, campaignID)
}

// ListCampaigns returns one page of campaigns, newest first, and the total count
func (s *Store) ListCampaigns(ctx context.Context, f CampaignFilter) ([]*model.Campaign, int, error) {
	return s.Campaigns.List(ctx, f)
}

// CountProspects returns how many prospects a campaign has
func (s *Store) CountProspects(ctx context.Context, campaignID string) (int, error) {
	return s.Prospects.CountByCampaign(ctx, campaignID)
}

// GetEmail returns a stored email by ID
func (s *Store) GetEmail(ctx context.Context, id string) (*model.Email, error) {
	e, err := s.Emails.GetByID(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, apperr.Wrap(apperr.KindNotFound, err, "email %q not found", id)
	}
	return e, err
}

// RecordEngagement stores a tracked open or click
func (s *Store) RecordEngagement(ctx context.Context, ev *model.EmailEvent) error {
	return s.Engagement.Create(ctx, ev)
}

// ListEngagement returns a campaign's tracked events, oldest first. An empty
// type lists every event.
func (s *Store) ListEngagement(ctx context.Context, campaignID string, typ model.EngagementType) ([]*model.EmailEvent, error) {
	return s.Engagement.ListByCampaign(ctx, campaignID, typ)
}

// EmailStats counts a campaign's emails by status and engagement
func (s *Store) EmailStats(ctx context.Context, campaignID string) (model.EmailStats, error) {
	return s.Emails.StatsByCampaign(ctx, campaignID)
}

// ListTransitions returns a campaign's audit trail, oldest first
func (s *Store) ListTransitions(ctx context.Context, campaignID string) ([]*model.Transition, error) {
	return s.Transitions.ListByCampaign(ctx, campaignID)
}
