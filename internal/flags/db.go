package flags

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// FlagLister loads the full override set. Implemented by the Postgres
// store.
type FlagLister interface {
	ListFlags(ctx context.Context) ([]Override, error)
}

// Override is one flag override. Empty UserID/WorkspaceID apply
// globally; the most specific override wins (user > workspace > global).
type Override struct {
	Flag        string
	UserID      string
	WorkspaceID string
	Enabled     bool
}

// DBSource serves flags from a periodically refreshed snapshot of the
// override table. A refresh failure keeps the previous snapshot; flag
// checks never block on the database.
type DBSource struct {
	lister FlagLister
	ttl    time.Duration
	def    bool
	logger *zap.Logger

	mu        sync.RWMutex
	snapshot  []Override
	refreshed time.Time
}

// NewDBSource creates a flag source refreshing every ttl. Unmatched
// flags default to enabled.
func NewDBSource(lister FlagLister, ttl time.Duration, logger *zap.Logger) *DBSource {
	if ttl == 0 {
		ttl = 30 * time.Second
	}
	return &DBSource{
		lister: lister,
		ttl:    ttl,
		def:    true,
		logger: logger,
	}
}

// IsEnabled resolves the flag for the caller: a user-scoped override
// wins over workspace-scoped, which wins over global.
func (s *DBSource) IsEnabled(ctx context.Context, flag, userID, workspaceID string) bool {
	s.maybeRefresh(ctx)

	s.mu.RLock()
	defer s.mu.RUnlock()

	result := s.def
	bestRank := -1
	for _, o := range s.snapshot {
		if o.Flag != flag {
			continue
		}
		rank, match := overrideRank(o, userID, workspaceID)
		if match && rank > bestRank {
			bestRank = rank
			result = o.Enabled
		}
	}
	return result
}

func overrideRank(o Override, userID, workspaceID string) (int, bool) {
	switch {
	case o.UserID != "":
		return 2, o.UserID == userID
	case o.WorkspaceID != "":
		return 1, o.WorkspaceID == workspaceID
	default:
		return 0, true
	}
}

func (s *DBSource) maybeRefresh(ctx context.Context) {
	s.mu.RLock()
	fresh := time.Since(s.refreshed) < s.ttl
	s.mu.RUnlock()
	if fresh {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if time.Since(s.refreshed) < s.ttl {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	overrides, err := s.lister.ListFlags(ctx)
	if err != nil {
		s.logger.Warn("feature flag refresh failed, keeping previous snapshot",
			zap.Error(err),
		)
		// Back off a full TTL before retrying so a down database is
		// not hit on every flag check.
		s.refreshed = time.Now()
		return
	}
	s.snapshot = overrides
	s.refreshed = time.Now()
}
