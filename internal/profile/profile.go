// Package profile resolves organization compliance profiles. The engine
// never owns this data; it is fetched per request with a short cache.
package profile

import (
	"context"
	"errors"
)

// ErrNotFound indicates the organization has no stored profile.
var ErrNotFound = errors.New("organization profile not found")

// ComplianceProfile is the org-level routing input: subscription plan,
// mandatory data residency and active compliance regimes.
type ComplianceProfile struct {
	Plan           string   `json:"plan"` // free, pro, team, enterprise
	DataResidency  string   `json:"data_residency,omitempty"`
	ComplianceTags []string `json:"compliance_tags,omitempty"`
}

// Store fetches the profile for an organization.
type Store interface {
	GetProfile(ctx context.Context, orgID string) (*ComplianceProfile, error)
}
