package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/fruitai/outreach/internal/database"
	"github.com/fruitai/outreach/internal/model"
)

// EngagementRepository stores tracked opens and clicks
type EngagementRepository struct {
	db *database.Postgres
}

// NewEngagementRepository creates a new EngagementRepository
func NewEngagementRepository(db *database.Postgres) *EngagementRepository {
	return &EngagementRepository{db: db}
}

// Create inserts an engagement event
func (r *EngagementRepository) Create(ctx context.Context, ev *model.EmailEvent) error {
	query := `
		INSERT INTO email_events (id, email_id, campaign_id, type, link_index, url, user_agent, ip_address, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	var linkIndex sql.NullInt64
	if ev.LinkIndex != nil {
		linkIndex = sql.NullInt64{Int64: int64(*ev.LinkIndex), Valid: true}
	}
	_, err := r.db.ExecContext(ctx, query,
		ev.ID,
		ev.EmailID,
		ev.CampaignID,
		ev.Type,
		linkIndex,
		ev.URL,
		ev.UserAgent,
		ev.IPAddress,
		ev.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record email event: %w", err)
	}
	return nil
}

// ListByCampaign returns a campaign's events oldest first, optionally of one type
func (r *EngagementRepository) ListByCampaign(ctx context.Context, campaignID string, typ model.EngagementType) ([]*model.EmailEvent, error) {
	query := `
		SELECT id, email_id, campaign_id, type, link_index, url, user_agent, ip_address, created_at
		FROM email_events
		WHERE campaign_id = $1 AND ($2::text = '' OR type = $2)
		ORDER BY created_at, id
	`
	rows, err := r.db.QueryContext(ctx, query, campaignID, string(typ))
	if err != nil {
		return nil, fmt.Errorf("failed to list email events: %w", err)
	}
	defer rows.Close()

	var events []*model.EmailEvent
	for rows.Next() {
		var (
			ev        model.EmailEvent
			linkIndex sql.NullInt64
		)
		err := rows.Scan(
			&ev.ID,
			&ev.EmailID,
			&ev.CampaignID,
			&ev.Type,
			&linkIndex,
			&ev.URL,
			&ev.UserAgent,
			&ev.IPAddress,
			&ev.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan email event: %w", err)
		}
		if linkIndex.Valid {
			i := int(linkIndex.Int64)
			ev.LinkIndex = &i
		}
		events = append(events, &ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate email events: %w", err)
	}
	return events, nil
}
