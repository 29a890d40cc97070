package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/fruitai/outreach/internal/database"
	"github.com/fruitai/outreach/internal/model"
)

// ProspectRepository handles prospect persistence
type ProspectRepository struct {
	db *database.Postgres
}

// NewProspectRepository creates a new ProspectRepository
func NewProspectRepository(db *database.Postgres) *ProspectRepository {
	return &ProspectRepository{db: db}
}

// Add inserts a prospect. A second prospect with the same address in the
// same campaign is rejected with ErrDuplicate.
func (r *ProspectRepository) Add(ctx context.Context, p *model.Prospect) error {
	metadata := p.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	metadataJSON, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("failed to encode prospect metadata: %w", err)
	}

	query := `
		INSERT INTO prospects (campaign_id, email_key, email, name, company, metadata, position, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (campaign_id, email_key) DO NOTHING
	`
	result, err := r.db.ExecContext(ctx, query,
		p.CampaignID,
		p.EmailKey(),
		p.Email,
		p.Name,
		p.Company,
		metadataJSON,
		p.Position,
		p.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to add prospect: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrDuplicate
	}
	return nil
}

// ListByCampaign returns a campaign's prospects in insertion order
func (r *ProspectRepository) ListByCampaign(ctx context.Context, campaignID string) ([]*model.Prospect, error) {
	query := `
		SELECT campaign_id, email, name, company, metadata, position, created_at
		FROM prospects
		WHERE campaign_id = $1
		ORDER BY position
	`
	rows, err := r.db.QueryContext(ctx, query, campaignID)
	if err != nil {
		return nil, fmt.Errorf("failed to list prospects: %w", err)
	}
	defer rows.Close()

	var prospects []*model.Prospect
	for rows.Next() {
		var (
			p        model.Prospect
			metadata []byte
		)
		if err := rows.Scan(&p.CampaignID, &p.Email, &p.Name, &p.Company, &metadata, &p.Position, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan prospect: %w", err)
		}
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &p.Metadata); err != nil {
				return nil, fmt.Errorf("failed to decode prospect metadata: %w", err)
			}
		}
		prospects = append(prospects, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate prospects: %w", err)
	}
	return prospects, nil
}

// CountByCampaign returns the number of prospects stored for a campaign
func (r *ProspectRepository) CountByCampaign(ctx context.Context, campaignID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM prospects WHERE campaign_id = $1`, campaignID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count prospects: %w", err)
	}
	return n, nil
}
