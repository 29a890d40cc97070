package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/fruitai/outreach/internal/database"
	"github.com/fruitai/outreach/internal/model"
	"github.com/fruitai/outreach/internal/secret"
)

// CampaignRepository handles campaign persistence. SMTP passwords are sealed
// before they are written and opened when read back.
type CampaignRepository struct {
	db  *database.Postgres
	box *secret.Box
}

// NewCampaignRepository creates a new CampaignRepository
func NewCampaignRepository(db *database.Postgres, box *secret.Box) *CampaignRepository {
	return &CampaignRepository{db: db, box: box}
}

// CampaignFilter narrows List results
type CampaignFilter struct {
	Status model.WorkflowStatus
	Limit  int
	Offset int
}

const campaignColumns = `id, target_website, goal, business_type, sender_name, sender_company,
	status, selection, smtp, defaults, error, created_at, updated_at`

// Create inserts a new campaign, returning ErrDuplicate when the id is taken
func (r *CampaignRepository) Create(ctx context.Context, c *model.Campaign) error {
	selection, err := marshalNullable(c.Selection)
	if err != nil {
		return fmt.Errorf("failed to encode selection: %w", err)
	}
	smtp, err := r.sealSMTP(c.SMTP)
	if err != nil {
		return err
	}
	defaults, err := marshalMap(c.Defaults)
	if err != nil {
		return fmt.Errorf("failed to encode defaults: %w", err)
	}

	query := `
		INSERT INTO campaigns (id, target_website, goal, business_type, sender_name, sender_company,
		    status, selection, smtp, defaults, error, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err = r.db.ExecContext(ctx, query,
		c.ID,
		c.TargetWebsite,
		c.Goal,
		c.BusinessType,
		c.SenderName,
		c.SenderCompany,
		c.Status,
		selection,
		smtp,
		defaults,
		c.Error,
		c.CreatedAt,
		c.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to create campaign: %w", err)
	}
	return nil
}

// GetByID retrieves a campaign by ID
func (r *CampaignRepository) GetByID(ctx context.Context, id string) (*model.Campaign, error) {
	query := `SELECT ` + campaignColumns + ` FROM campaigns WHERE id = $1`
	return r.scanCampaign(r.db.QueryRowContext(ctx, query, id))
}

// List returns campaigns newest first along with the total matching count
func (r *CampaignRepository) List(ctx context.Context, f CampaignFilter) ([]*model.Campaign, int, error) {
	if f.Limit <= 0 {
		f.Limit = 20
	}

	var total int
	countQuery := `SELECT COUNT(*) FROM campaigns WHERE ($1 = '' OR status = $1)`
	if err := r.db.QueryRowContext(ctx, countQuery, string(f.Status)).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count campaigns: %w", err)
	}

	query := `
		SELECT ` + campaignColumns + `
		FROM campaigns
		WHERE ($1 = '' OR status = $1)
		ORDER BY created_at DESC, id
		LIMIT $2 OFFSET $3
	`
	rows, err := r.db.QueryContext(ctx, query, string(f.Status), f.Limit, f.Offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list campaigns: %w", err)
	}
	defer rows.Close()

	campaigns, err := r.collect(rows)
	if err != nil {
		return nil, 0, err
	}
	return campaigns, total, nil
}

// ListActive returns every campaign not in a terminal status, oldest first
func (r *CampaignRepository) ListActive(ctx context.Context) ([]*model.Campaign, error) {
	query := `
		SELECT ` + campaignColumns + `
		FROM campaigns
		WHERE status NOT IN ($1, $2, $3)
		ORDER BY created_at, id
	`
	rows, err := r.db.QueryContext(ctx, query,
		model.StatusCompleted, model.StatusFailed, model.StatusCancelled)
	if err != nil {
		return nil, fmt.Errorf("failed to list active campaigns: %w", err)
	}
	defer rows.Close()

	return r.collect(rows)
}

// Update writes the mutable fields of a campaign: status, selection and error
func (r *CampaignRepository) Update(ctx context.Context, c *model.Campaign) error {
	return r.update(ctx, r.db, c)
}

func (r *CampaignRepository) update(ctx context.Context, q querier, c *model.Campaign) error {
	selection, err := marshalNullable(c.Selection)
	if err != nil {
		return fmt.Errorf("failed to encode selection: %w", err)
	}

	query := `
		UPDATE campaigns
		SET status = $1, selection = $2, error = $3, updated_at = $4
		WHERE id = $5
	`
	result, err := q.ExecContext(ctx, query, c.Status, selection, c.Error, c.UpdatedAt, c.ID)
	if err != nil {
		return fmt.Errorf("failed to update campaign: %w", err)
	}
	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *CampaignRepository) collect(rows *sql.Rows) ([]*model.Campaign, error) {
	var campaigns []*model.Campaign
	for rows.Next() {
		c, err := r.scanCampaign(rows)
		if err != nil {
			return nil, err
		}
		campaigns = append(campaigns, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate campaigns: %w", err)
	}
	return campaigns, nil
}

func (r *CampaignRepository) scanCampaign(row rowScanner) (*model.Campaign, error) {
	var (
		c         model.Campaign
		selection []byte
		smtp      []byte
		defaults  []byte
	)
	err := row.Scan(
		&c.ID,
		&c.TargetWebsite,
		&c.Goal,
		&c.BusinessType,
		&c.SenderName,
		&c.SenderCompany,
		&c.Status,
		&selection,
		&smtp,
		&defaults,
		&c.Error,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan campaign: %w", err)
	}

	if len(selection) > 0 {
		c.Selection = &model.TemplateSelection{}
		if err := json.Unmarshal(selection, c.Selection); err != nil {
			return nil, fmt.Errorf("failed to decode selection: %w", err)
		}
	}
	if len(defaults) > 0 {
		if err := json.Unmarshal(defaults, &c.Defaults); err != nil {
			return nil, fmt.Errorf("failed to decode defaults: %w", err)
		}
	}
	if len(smtp) > 0 {
		cfg, err := r.openSMTP(smtp)
		if err != nil {
			return nil, err
		}
		c.SMTP = cfg
	}

	return &c, nil
}

func (r *CampaignRepository) sealSMTP(cfg *model.SMTPConfig) ([]byte, error) {
	if cfg == nil {
		return nil, nil
	}
	sealed := *cfg
	if sealed.Password != "" && r.box != nil && r.box.Enabled() {
		pw, err := r.box.Seal(sealed.Password)
		if err != nil {
			return nil, fmt.Errorf("failed to seal smtp password: %w", err)
		}
		sealed.Password = pw
	}
	return json.Marshal(sealed)
}

func (r *CampaignRepository) openSMTP(raw []byte) (*model.SMTPConfig, error) {
	var cfg model.SMTPConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("failed to decode smtp config: %w", err)
	}
	if cfg.Password != "" && r.box != nil && r.box.Enabled() {
		pw, err := r.box.Open(cfg.Password)
		if err != nil {
			return nil, fmt.Errorf("failed to open smtp password: %w", err)
		}
		cfg.Password = pw
	}
	return &cfg, nil
}

// marshalMap encodes m as a JSON object, never null
func marshalMap(m map[string]any) ([]byte, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}

// marshalNullable encodes v as JSON, or SQL NULL when v is a nil pointer
func marshalNullable[T any](v *T) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}
