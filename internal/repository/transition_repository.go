package repository

import (
	"context"
	"fmt"

	"github.com/fruitai/outreach/internal/database"
	"github.com/fruitai/outreach/internal/model"
)

// TransitionRepository handles the campaign status audit trail
type TransitionRepository struct {
	db *database.Postgres
}

// NewTransitionRepository creates a new TransitionRepository
func NewTransitionRepository(db *database.Postgres) *TransitionRepository {
	return &TransitionRepository{db: db}
}

// Create inserts a new audit row
func (r *TransitionRepository) Create(ctx context.Context, t *model.Transition) error {
	return r.create(ctx, r.db, t)
}

func (r *TransitionRepository) create(ctx context.Context, q querier, t *model.Transition) error {
	query := `
		INSERT INTO campaign_transitions (campaign_id, from_status, to_status, reason, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`
	err := q.QueryRowContext(ctx, query, t.CampaignID, t.From, t.To, t.Reason, t.At).Scan(&t.ID)
	if err != nil {
		return fmt.Errorf("failed to record transition: %w", err)
	}
	return nil
}

// ListByCampaign returns a campaign's transitions oldest first
func (r *TransitionRepository) ListByCampaign(ctx context.Context, campaignID string) ([]*model.Transition, error) {
	query := `
		SELECT id, campaign_id, from_status, to_status, reason, created_at
		FROM campaign_transitions
		WHERE campaign_id = $1
		ORDER BY id
	`
	rows, err := r.db.QueryContext(ctx, query, campaignID)
	if err != nil {
		return nil, fmt.Errorf("failed to list transitions: %w", err)
	}
	defer rows.Close()

	var transitions []*model.Transition
	for rows.Next() {
		var t model.Transition
		if err := rows.Scan(&t.ID, &t.CampaignID, &t.From, &t.To, &t.Reason, &t.At); err != nil {
			return nil, fmt.Errorf("failed to scan transition: %w", err)
		}
		transitions = append(transitions, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate transitions: %w", err)
	}
	return transitions, nil
}
