// Package flags answers "is this check enabled for this caller". Flags
// gate individual sub-checks of the routing orchestrator.
package flags

import "context"

// Flag names for the routing sub-checks.
const (
	FlagLengthCheck     = "length_check"
	FlagRegionRouting   = "region_routing"
	FlagCostTiering     = "cost_tiering"
	FlagAbuseDetection  = "abuse_detection"
	FlagSimilarityCheck = "similarity_check"
)

// Source answers feature-flag checks. Implementations must be cheap
// enough to call on every request.
type Source interface {
	IsEnabled(ctx context.Context, flag, userID, workspaceID string) bool
}

// StaticSource serves flags from a fixed map. Missing flags fall back
// to Default. The zero value disables everything.
type StaticSource struct {
	Flags   map[string]bool
	Default bool
}

// NewStaticSource creates a source where unlisted flags default to
// enabled. Used when no flag store is configured.
func NewStaticSource(overrides map[string]bool) *StaticSource {
	return &StaticSource{Flags: overrides, Default: true}
}

func (s *StaticSource) IsEnabled(_ context.Context, flag, _, _ string) bool {
	if v, ok := s.Flags[flag]; ok {
		return v
	}
	return s.Default
}
