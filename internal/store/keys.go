package store

import (
	"context"
	"database/sql"
	"fmt"
)

// APIKeyRow is a row from the api_keys table, looked up by prefix. The
// full key is verified against KeyHash with bcrypt by the caller.
type APIKeyRow struct {
	OrgID   string
	KeyHash string
	Enabled bool
}

// LookupKeyByPrefix returns the API key row matching the prefix, or nil
// if no key has that prefix.
func (s *Store) LookupKeyByPrefix(ctx context.Context, prefix string) (*APIKeyRow, error) {
	row := &APIKeyRow{}
	err := s.db.QueryRowContext(ctx, `
		SELECT org_id, key_hash, enabled
		FROM api_keys WHERE key_prefix = $1`, prefix,
	).Scan(&row.OrgID, &row.KeyHash, &row.Enabled)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("LookupKeyByPrefix: %w", err)
	}
	return row, nil
}
