// Package api exposes the decision engine over HTTP JSON. Each check
// endpoint maps one-to-one onto an internal package; /v1/route runs the
// composed orchestrator.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/relaymesh/promptgate/internal/abuse"
	"github.com/relaymesh/promptgate/internal/auditread"
	"github.com/relaymesh/promptgate/internal/flags"
	"github.com/relaymesh/promptgate/internal/promptlen"
	"github.com/relaymesh/promptgate/internal/routing"
	"github.com/relaymesh/promptgate/internal/similarity"
	"github.com/relaymesh/promptgate/internal/store"
	"go.uber.org/zap"
)

// Dependencies holds shared state injected into all HTTP handlers.
// Store may be nil for local development, which disables auth.
type Dependencies struct {
	Store      *store.Store
	Abuse      *abuse.Detector
	Similarity *similarity.Checker
	Length     promptlen.Options
	Router     *routing.Orchestrator
	Reader     *auditread.Reader // nil if ClickHouse unavailable
	Flags      flags.Source      // nil means all checks enabled
	Logger     *zap.Logger
	CacheTTL   time.Duration
}

// flagEnabled treats a missing flag source as all-enabled.
func (d *Dependencies) flagEnabled(ctx context.Context, flag, userID, workspaceID string) bool {
	if d.Flags == nil {
		return true
	}
	return d.Flags.IsEnabled(ctx, flag, userID, workspaceID)
}

// NewRouter builds the HTTP mux with all routes wired up.
func NewRouter(deps *Dependencies) http.Handler {
	mux := http.NewServeMux()

	// Decision endpoints (auth required via Bearer pg_ token)
	mux.HandleFunc("POST /v1/check/abuse", deps.authMiddleware(deps.handleCheckAbuse))
	mux.HandleFunc("POST /v1/check/similarity", deps.authMiddleware(deps.handleCheckSimilarity))
	mux.HandleFunc("POST /v1/check/length", deps.authMiddleware(deps.handleCheckLength))
	mux.HandleFunc("POST /v1/route", deps.authMiddleware(deps.handleRoute))

	// Audit inspection & analytics
	mux.HandleFunc("GET /v1/audit", deps.authMiddleware(deps.handleListAuditRecords))
	mux.HandleFunc("GET /v1/audit/{trace_id}", deps.authMiddleware(deps.handleGetAuditRecord))
	mux.HandleFunc("GET /v1/analytics", deps.authMiddleware(deps.handleGetAnalytics))

	// Health check
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	return corsMiddleware(requestLogging(mux, deps.Logger))
}
