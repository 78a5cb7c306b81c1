package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// contextKey is an unexported type for context keys to avoid collisions.
type contextKey int

const orgCtxKey contextKey = iota

// authOrg holds the authenticated organization context for a request.
type authOrg struct {
	OrgID string
}

// orgFromContext extracts the authenticated org from the request context.
func orgFromContext(ctx context.Context) *authOrg {
	v, _ := ctx.Value(orgCtxKey).(*authOrg)
	return v
}

// API keys look like pg_<random>; the first 8 chars index the key table.
const (
	keyPrefix    = "pg_"
	keyPrefixLen = 8
)

// --- Auth cache (stale-while-revalidate) ---

type cacheEntry struct {
	org        *authOrg
	expiresAt  time.Time
	refreshing atomic.Bool
}

type authCache struct {
	store sync.Map // map[string]*cacheEntry (keyed by full API key)
	ttl   time.Duration
}

func newAuthCache(ttl time.Duration) *authCache {
	return &authCache{ttl: ttl}
}

func (c *authCache) get(key string) (org *authOrg, hit bool, needsRefresh bool) {
	v, ok := c.store.Load(key)
	if !ok {
		return nil, false, false
	}
	entry := v.(*cacheEntry)
	if time.Now().Before(entry.expiresAt) {
		return entry.org, true, false // fresh
	}
	// Stale: return the value but signal refresh (one goroutine only).
	needsRefresh = entry.refreshing.CompareAndSwap(false, true)
	return entry.org, true, needsRefresh
}

func (c *authCache) set(key string, org *authOrg) {
	c.store.Store(key, &cacheEntry{
		org:       org,
		expiresAt: time.Now().Add(c.ttl),
	})
}

// --- Auth middleware ---

// authMiddleware validates Bearer pg_ tokens against the key table and
// injects the authenticated org into the request context. With no store
// configured the request proceeds unauthenticated (local development).
func (d *Dependencies) authMiddleware(next http.HandlerFunc) http.HandlerFunc {
	cache := newAuthCache(d.CacheTTL)

	return func(w http.ResponseWriter, r *http.Request) {
		if d.Store == nil {
			next(w, r)
			return
		}

		token, ok := extractBearerToken(r)
		if !ok {
			writeJSON(w, http.StatusUnauthorized, ErrorResp{Detail: "Missing or invalid Authorization header"})
			return
		}
		if len(token) < keyPrefixLen || !strings.HasPrefix(token, keyPrefix) {
			writeJSON(w, http.StatusUnauthorized, ErrorResp{Detail: "Invalid API key format"})
			return
		}

		// Cache lookup
		org, hit, needsRefresh := cache.get(token)
		if hit && needsRefresh {
			// Stale hit: answer with the stale entry, refresh in background.
			go d.refreshAuth(cache, token)
		}
		if hit && org != nil {
			ctx := context.WithValue(r.Context(), orgCtxKey, org)
			next(w, r.WithContext(ctx))
			return
		}

		// Cache miss: synchronous lookup.
		org, err := d.authenticateToken(r.Context(), token)
		if err != nil {
			d.Logger.Warn("auth failed", zap.Error(err))
			writeJSON(w, http.StatusUnauthorized, ErrorResp{Detail: "Invalid API key"})
			return
		}

		cache.set(token, org)
		ctx := context.WithValue(r.Context(), orgCtxKey, org)
		next(w, r.WithContext(ctx))
	}
}

// authenticateToken validates an API key against Postgres and returns
// the org context.
func (d *Dependencies) authenticateToken(ctx context.Context, token string) (*authOrg, error) {
	prefix := token[:keyPrefixLen]
	row, err := d.Store.LookupKeyByPrefix(ctx, prefix)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, fmt.Errorf("no key for prefix")
	}
	if !row.Enabled {
		return nil, fmt.Errorf("key disabled")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(row.KeyHash), []byte(token)); err != nil {
		return nil, err
	}
	return &authOrg{OrgID: row.OrgID}, nil
}

// refreshAuth refreshes the cache entry in the background.
func (d *Dependencies) refreshAuth(cache *authCache, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	org, err := d.authenticateToken(ctx, token)
	if err != nil {
		d.Logger.Warn("background auth refresh failed", zap.Error(err))
		return
	}
	cache.set(token, org)
}

// extractBearerToken extracts the token from "Authorization: Bearer <token>".
func extractBearerToken(r *http.Request) (string, bool) {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return "", false
	}
	const prefix = "Bearer "
	if !strings.HasPrefix(auth, prefix) {
		return "", false
	}
	return strings.TrimSpace(auth[len(prefix):]), true
}

// --- JSON helpers ---

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

// readJSON decodes a JSON request body into the given pointer.
func readJSON(r *http.Request, v interface{}) error {
	defer func() { _ = r.Body.Close() }()
	return json.NewDecoder(r.Body).Decode(v)
}

// --- Request logging ---

func requestLogging(next http.Handler, logger *zap.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		logger.Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", sw.status),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// --- CORS ---

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
		w.Header().Set("Access-Control-Max-Age", "86400")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
