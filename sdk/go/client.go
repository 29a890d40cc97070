// Package outreach is a Go client for the outreach campaign API.
package outreach

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

// Config holds the configuration for the outreach client.
type Config struct {
	// BaseURL is the root URL of the outreach server.
	// Examples: "https://outreach.example.com" or "https://outreach.example.com/api/v1"
	// The "/api/v1" suffix is appended automatically if missing.
	BaseURL string

	// APIToken is sent as a bearer token when set.
	APIToken string

	// HTTPClient is an optional custom HTTP client.
	// If nil, a default client with 60s timeout is used. Cancelling a
	// running campaign waits for its current stage to stop.
	HTTPClient *http.Client

	// Dialer is used by Watch. If nil, websocket.DefaultDialer is used.
	Dialer *websocket.Dialer
}

func (c *Config) defaults() {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: 60 * time.Second}
	}
	if c.Dialer == nil {
		c.Dialer = websocket.DefaultDialer
	}
	c.BaseURL = strings.TrimSuffix(c.BaseURL, "/")
	if !strings.HasSuffix(c.BaseURL, "/api/v1") {
		c.BaseURL = c.BaseURL + "/api/v1"
	}
}

// Client is the outreach SDK client.
type Client struct {
	cfg Config
}

// NewClient creates a new client with the given configuration.
func NewClient(cfg Config) *Client {
	cfg.defaults()
	return &Client{cfg: cfg}
}

// StartCampaign starts a campaign. Discovery begins immediately.
func (c *Client) StartCampaign(ctx context.Context, req StartCampaignRequest) (*Campaign, error) {
	var out Campaign
	if err := c.do(ctx, http.MethodPost, "/campaigns", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListCampaigns returns one page of campaigns.
func (c *Client) ListCampaigns(ctx context.Context, opts ListOptions) (*CampaignPage, error) {
	q := url.Values{}
	if opts.Page > 0 {
		q.Set("page", strconv.Itoa(opts.Page))
	}
	if opts.PageSize > 0 {
		q.Set("page_size", strconv.Itoa(opts.PageSize))
	}
	if opts.Status != "" {
		q.Set("status", opts.Status)
	}
	path := "/campaigns"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var out CampaignPage
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetCampaign returns a campaign with its counts.
func (c *Client) GetCampaign(ctx context.Context, id string) (*CampaignDetails, error) {
	if id == "" {
		return nil, ErrEmptyID
	}
	var out CampaignDetails
	if err := c.do(ctx, http.MethodGet, campaignPath(id, ""), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Status returns the live state of a campaign, including the open pause id.
func (c *Client) Status(ctx context.Context, id string) (*Snapshot, error) {
	if id == "" {
		return nil, ErrEmptyID
	}
	var out Snapshot
	if err := c.do(ctx, http.MethodGet, campaignPath(id, "status"), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Prospects returns a campaign's prospects in discovery order.
func (c *Client) Prospects(ctx context.Context, id string) ([]Prospect, error) {
	if id == "" {
		return nil, ErrEmptyID
	}
	var out struct {
		Prospects []Prospect `json:"prospects"`
	}
	if err := c.do(ctx, http.MethodGet, campaignPath(id, "prospects"), nil, &out); err != nil {
		return nil, err
	}
	return out.Prospects, nil
}

// Emails returns a campaign's emails.
func (c *Client) Emails(ctx context.Context, id string) ([]Email, error) {
	if id == "" {
		return nil, ErrEmptyID
	}
	var out struct {
		Emails []Email `json:"emails"`
	}
	if err := c.do(ctx, http.MethodGet, campaignPath(id, "emails"), nil, &out); err != nil {
		return nil, err
	}
	return out.Emails, nil
}

// Transitions returns a campaign's audit trail.
func (c *Client) Transitions(ctx context.Context, id string) ([]Transition, error) {
	if id == "" {
		return nil, ErrEmptyID
	}
	var out struct {
		Transitions []Transition `json:"transitions"`
	}
	if err := c.do(ctx, http.MethodGet, campaignPath(id, "transitions"), nil, &out); err != nil {
		return nil, err
	}
	return out.Transitions, nil
}

// Events returns a campaign's tracked opens and clicks, oldest first. An
// empty eventType returns both.
func (c *Client) Events(ctx context.Context, id, eventType string) ([]EmailEvent, error) {
	if id == "" {
		return nil, ErrEmptyID
	}
	path := campaignPath(id, "events")
	if eventType != "" {
		path += "?" + url.Values{"type": {eventType}}.Encode()
	}
	var out struct {
		Events []EmailEvent `json:"events"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Events, nil
}

// SelectTemplate resumes a campaign paused for template selection.
func (c *Client) SelectTemplate(ctx context.Context, id string, req SelectTemplateRequest) (*ActionResult, error) {
	return c.action(ctx, id, "template", req)
}

// Review approves, rejects or edits a campaign's generated emails.
func (c *Client) Review(ctx context.Context, id string, req ReviewRequest) (*ActionResult, error) {
	return c.action(ctx, id, "review", req)
}

// Cancel stops a campaign. Cancelling a finished campaign is a no-op.
func (c *Client) Cancel(ctx context.Context, id string) (*ActionResult, error) {
	return c.action(ctx, id, "cancel", nil)
}

// Templates lists the registered templates.
func (c *Client) Templates(ctx context.Context) ([]Template, error) {
	var out struct {
		Templates []Template `json:"templates"`
	}
	if err := c.do(ctx, http.MethodGet, "/templates", nil, &out); err != nil {
		return nil, err
	}
	return out.Templates, nil
}

// Preview renders a template with sample data.
func (c *Client) Preview(ctx context.Context, req PreviewRequest) (*Rendered, error) {
	var out Rendered
	if err := c.do(ctx, http.MethodPost, "/templates/preview", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Metadata looks up a website's name, description and logo.
func (c *Client) Metadata(ctx context.Context, site string) (*SiteMetadata, error) {
	var out SiteMetadata
	if err := c.do(ctx, http.MethodGet, "/metadata?url="+url.QueryEscape(site), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) action(ctx context.Context, id, verb string, payload any) (*ActionResult, error) {
	if id == "" {
		return nil, ErrEmptyID
	}
	var out ActionResult
	if err := c.do(ctx, http.MethodPost, campaignPath(id, verb), payload, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func campaignPath(id, sub string) string {
	p := "/campaigns/" + url.PathEscape(id)
	if sub != "" {
		p += "/" + sub
	}
	return p
}

// do sends a request to the API and decodes a successful response into out.
func (c *Client) do(ctx context.Context, method, path string, payload, out any) error {
	var bodyReader io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("outreach: failed to marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("outreach: failed to create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.cfg.APIToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIToken)
	}

	resp, err := c.cfg.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("outreach: request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("outreach: failed to read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return parseAPIError(resp.StatusCode, body)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("outreach: failed to parse response: %w", err)
	}
	return nil
}
