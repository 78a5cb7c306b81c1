package store

import (
	"context"
	"fmt"

	"github.com/relaymesh/promptgate/internal/flags"
)

// ListFlags returns every feature-flag override. It implements
// flags.FlagLister; the flag source refreshes this set on a TTL rather
// than querying per check.
func (s *Store) ListFlags(ctx context.Context) ([]flags.Override, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT flag, COALESCE(user_id, ''), COALESCE(workspace_id, ''), enabled
		FROM feature_flags`)
	if err != nil {
		return nil, fmt.Errorf("ListFlags: %w", err)
	}
	defer rows.Close()

	var out []flags.Override
	for rows.Next() {
		var f flags.Override
		if err := rows.Scan(&f.Flag, &f.UserID, &f.WorkspaceID, &f.Enabled); err != nil {
			return nil, fmt.Errorf("ListFlags: %w", err)
		}
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListFlags: %w", err)
	}
	return out, nil
}
