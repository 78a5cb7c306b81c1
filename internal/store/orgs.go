package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/relaymesh/promptgate/internal/profile"
)

// GetProfile returns the compliance profile for an organization. It
// implements profile.Store.
func (s *Store) GetProfile(ctx context.Context, orgID string) (*profile.ComplianceProfile, error) {
	var (
		plan      string
		residency sql.NullString
		tags      []byte
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT plan, data_residency, COALESCE(compliance_tags, '{}')
		FROM org_profiles WHERE org_id = $1`, orgID,
	).Scan(&plan, &residency, &tags)
	if err == sql.ErrNoRows {
		return nil, profile.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("GetProfile: %w", err)
	}

	return &profile.ComplianceProfile{
		Plan:           plan,
		DataResidency:  residency.String,
		ComplianceTags: parseTextArray(tags),
	}, nil
}

// parseTextArray decodes a postgres text[] literal like {GDPR,SOC2}.
// Quoted elements are unquoted; an empty array yields nil.
func parseTextArray(raw []byte) []string {
	s := string(raw)
	if len(s) < 2 || s[0] != '{' || s[len(s)-1] != '}' {
		return nil
	}
	s = s[1 : len(s)-1]
	if s == "" {
		return nil
	}

	var out []string
	var cur []byte
	inQuotes := false
	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case c == '"':
			inQuotes = !inQuotes
		case c == '\\' && i+1 < len(s):
			i++
			cur = append(cur, s[i])
		case c == ',' && !inQuotes:
			out = append(out, string(cur))
			cur = cur[:0]
		default:
			cur = append(cur, c)
		}
	}
	out = append(out, string(cur))
	return out
}
