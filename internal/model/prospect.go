package model

import (
	"strings"
	"time"
)

// Prospect is a discovered recipient. Immutable once stored.
type Prospect struct {
	CampaignID string         `json:"campaignId"`
	Email      string         `json:"email"`
	Name       string         `json:"name,omitempty"`
	Company    string         `json:"company,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Position   int            `json:"position"`
	CreatedAt  time.Time      `json:"createdAt"`
}

// EmailKey is the per-campaign uniqueness key of a prospect
func (p Prospect) EmailKey() string {
	return NormalizeEmail(p.Email)
}

// NormalizeEmail lower-cases and trims an address for comparisons
func NormalizeEmail(addr string) string {
	return strings.ToLower(strings.TrimSpace(addr))
}
