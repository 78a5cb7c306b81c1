package api

import (
	"github.com/relaymesh/promptgate/internal/abuse"
	"github.com/relaymesh/promptgate/internal/promptlen"
	"github.com/relaymesh/promptgate/internal/routing"
	"github.com/relaymesh/promptgate/internal/similarity"
)

// --- POST /v1/check/abuse ---

// CheckAbuseRequest is the JSON body for POST /v1/check/abuse.
type CheckAbuseRequest struct {
	Prompt  string `json:"prompt"`
	TraceID string `json:"trace_id,omitempty"`
}

// CheckAbuseResponse wraps the abuse verdict with the resolved action.
type CheckAbuseResponse struct {
	abuse.Verdict
	Action    string  `json:"action"`
	TraceID   string  `json:"trace_id"`
	LatencyMs float64 `json:"latency_ms"`
}

// --- POST /v1/check/similarity ---

// CheckSimilarityRequest is the JSON body for POST /v1/check/similarity.
// Threshold 0 means the server default; Method "" means cosine.
type CheckSimilarityRequest struct {
	Prompt       string   `json:"prompt"`
	KnownPrompts []string `json:"known_prompts"`
	Threshold    float64  `json:"threshold,omitempty"`
	Method       string   `json:"method,omitempty"`
	WorkspaceID  string   `json:"workspace_id,omitempty"`
	TraceID      string   `json:"trace_id,omitempty"`
}

// CheckSimilarityResponse wraps the similarity verdict.
type CheckSimilarityResponse struct {
	similarity.Verdict
	Action    string  `json:"action"`
	TraceID   string  `json:"trace_id"`
	LatencyMs float64 `json:"latency_ms"`
}

// --- POST /v1/check/length ---

// CheckLengthRequest is the JSON body for POST /v1/check/length.
type CheckLengthRequest struct {
	Prompt   string `json:"prompt"`
	Provider string `json:"provider,omitempty"`
}

// CheckLengthResponse wraps the length verdict.
type CheckLengthResponse struct {
	promptlen.Verdict
	Action string `json:"action"`
}

// --- POST /v1/route ---

// RouteRequest is the JSON body for POST /v1/route. Plan, DataResidency
// and ComplianceTags are fallbacks for when no org profile exists.
type RouteRequest struct {
	Prompt      string `json:"prompt"`
	Provider    string `json:"provider"`
	Model       string `json:"model,omitempty"`
	WorkspaceID string `json:"workspace_id,omitempty"`
	UserID      string `json:"user_id,omitempty"`
	TraceID     string `json:"trace_id,omitempty"`

	UserRegion        string `json:"user_region,omitempty"`
	PreferredRegion   string `json:"preferred_region,omitempty"`
	EnforceCompliance bool   `json:"enforce_compliance,omitempty"`

	Plan           string   `json:"plan,omitempty"`
	DataResidency  string   `json:"data_residency,omitempty"`
	ComplianceTags []string `json:"compliance_tags,omitempty"`
}

// RouteResponse wraps the routing decision with the resolved action.
type RouteResponse struct {
	*routing.Decision
	Action string `json:"action"`
}

// ErrorResp is a standard error response body.
type ErrorResp struct {
	Detail string `json:"detail"`
}
