package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/fruitai/outreach/internal/database"
	"github.com/fruitai/outreach/internal/model"
)

const emailColumns = `id, campaign_id, prospect_email, position, subject, html, text, body, template_id,
	customizations, links, status, method, transport, message_id, error, sent_at, created_at, updated_at`

// EmailRepository handles generated email persistence
type EmailRepository struct {
	db *database.Postgres
}

// NewEmailRepository creates a new EmailRepository
func NewEmailRepository(db *database.Postgres) *EmailRepository {
	return &EmailRepository{db: db}
}

// Save inserts an email or replaces the existing one for the same prospect
func (r *EmailRepository) Save(ctx context.Context, e *model.Email) error {
	customizations := e.Customizations
	if customizations == nil {
		customizations = map[string]any{}
	}
	customizationsJSON, err := json.Marshal(customizations)
	if err != nil {
		return fmt.Errorf("failed to encode customizations: %w", err)
	}
	links := e.Links
	if links == nil {
		links = []string{}
	}
	linksJSON, err := json.Marshal(links)
	if err != nil {
		return fmt.Errorf("failed to encode links: %w", err)
	}

	query := `
		INSERT INTO emails (` + emailColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
		ON CONFLICT (campaign_id, prospect_email) DO UPDATE SET
		    subject = EXCLUDED.subject,
		    html = EXCLUDED.html,
		    text = EXCLUDED.text,
		    body = EXCLUDED.body,
		    template_id = EXCLUDED.template_id,
		    customizations = EXCLUDED.customizations,
		    links = EXCLUDED.links,
		    status = EXCLUDED.status,
		    method = EXCLUDED.method,
		    transport = EXCLUDED.transport,
		    message_id = EXCLUDED.message_id,
		    error = EXCLUDED.error,
		    sent_at = EXCLUDED.sent_at,
		    updated_at = EXCLUDED.updated_at
	`
	_, err = r.db.ExecContext(ctx, query,
		e.ID,
		e.CampaignID,
		e.ProspectEmail,
		e.Position,
		e.Subject,
		e.HTML,
		e.Text,
		e.Body,
		e.TemplateID,
		customizationsJSON,
		linksJSON,
		e.Status,
		e.Method,
		e.Transport,
		e.MessageID,
		e.Error,
		e.SentAt,
		e.CreatedAt,
		e.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save email: %w", err)
	}
	return nil
}

// GetByID retrieves an email by ID
func (r *EmailRepository) GetByID(ctx context.Context, id string) (*model.Email, error) {
	query := `SELECT ` + emailColumns + ` FROM emails WHERE id = $1`
	return scanEmail(r.db.QueryRowContext(ctx, query, id))
}

// ListByCampaign returns a campaign's emails in prospect insertion order
func (r *EmailRepository) ListByCampaign(ctx context.Context, campaignID string) ([]*model.Email, error) {
	query := `SELECT ` + emailColumns + ` FROM emails WHERE campaign_id = $1 ORDER BY position`
	rows, err := r.db.QueryContext(ctx, query, campaignID)
	if err != nil {
		return nil, fmt.Errorf("failed to list emails: %w", err)
	}
	defer rows.Close()

	var emails []*model.Email
	for rows.Next() {
		e, err := scanEmail(rows)
		if err != nil {
			return nil, err
		}
		emails = append(emails, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate emails: %w", err)
	}
	return emails, nil
}

func scanEmail(row rowScanner) (*model.Email, error) {
	var (
		e              model.Email
		customizations []byte
		links          []byte
		sentAt         sql.NullTime
	)
	err := row.Scan(
		&e.ID,
		&e.CampaignID,
		&e.ProspectEmail,
		&e.Position,
		&e.Subject,
		&e.HTML,
		&e.Text,
		&e.Body,
		&e.TemplateID,
		&customizations,
		&links,
		&e.Status,
		&e.Method,
		&e.Transport,
		&e.MessageID,
		&e.Error,
		&sentAt,
		&e.CreatedAt,
		&e.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan email: %w", err)
	}
	if len(customizations) > 0 {
		if err := json.Unmarshal(customizations, &e.Customizations); err != nil {
			return nil, fmt.Errorf("failed to decode customizations: %w", err)
		}
	}
	if len(links) > 0 {
		if err := json.Unmarshal(links, &e.Links); err != nil {
			return nil, fmt.Errorf("failed to decode links: %w", err)
		}
	}
	if sentAt.Valid {
		t := sentAt.Time
		e.SentAt = &t
	}
	return &e, nil
}

// StatsByCampaign counts a campaign's emails by status, and how many of them
// were opened or clicked
func (r *EmailRepository) StatsByCampaign(ctx context.Context, campaignID string) (model.EmailStats, error) {
	var stats model.EmailStats

	rows, err := r.db.QueryContext(ctx,
		`SELECT status, COUNT(*) FROM emails WHERE campaign_id = $1 GROUP BY status`, campaignID)
	if err != nil {
		return stats, fmt.Errorf("failed to count emails: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			status model.EmailStatus
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return stats, fmt.Errorf("failed to scan email stats: %w", err)
		}
		stats.Add(status, n)
	}
	if err := rows.Err(); err != nil {
		return stats, fmt.Errorf("failed to iterate email stats: %w", err)
	}

	query := `
		SELECT COUNT(DISTINCT email_id) FILTER (WHERE type = 'open'),
		       COUNT(DISTINCT email_id) FILTER (WHERE type = 'click')
		FROM email_events
		WHERE campaign_id = $1
	`
	if err := r.db.QueryRowContext(ctx, query, campaignID).Scan(&stats.Opened, &stats.Clicked); err != nil {
		return stats, fmt.Errorf("failed to count engagement: %w", err)
	}
	return stats, nil
}
