// Package routing combines length, region and cost checks into one
// auditable routing decision. Gate checks (abuse, similarity) run
// separately in the calling layer: "is this prompt allowed at all" is
// kept apart from "where should an allowed prompt be sent".
package routing

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/relaymesh/promptgate/internal/audit"
	"github.com/relaymesh/promptgate/internal/costtier"
	"github.com/relaymesh/promptgate/internal/flags"
	"github.com/relaymesh/promptgate/internal/profile"
	"github.com/relaymesh/promptgate/internal/promptlen"
	"github.com/relaymesh/promptgate/internal/region"
	"github.com/relaymesh/promptgate/internal/verdict"
	"go.uber.org/zap"
)

// Request is everything the orchestrator needs to route one prompt.
// Plan, DataResidency and ComplianceTags are caller-supplied fallbacks
// used when the org profile cannot be fetched.
type Request struct {
	OrgID       string
	WorkspaceID string
	UserID      string
	TraceID     string

	Prompt   string
	Provider string
	Model    string

	UserRegion        string
	PreferredRegion   string
	EnforceCompliance bool

	Plan           string
	DataResidency  string
	ComplianceTags []string
}

// Decision is the final, immutable routing decision. It is created
// fresh per request and never mutated after Route returns it.
type Decision struct {
	TraceID   string         `json:"trace_id"`
	Provider  string         `json:"provider"`
	Model     string         `json:"model"`
	Action    verdict.Action `json:"-"`
	Reason    string         `json:"reason"`
	Factors   []string       `json:"factors"`
	Warnings  []string       `json:"warnings,omitempty"`
	Errors    []string       `json:"errors,omitempty"`
	Timestamp time.Time      `json:"timestamp"`

	Length *promptlen.Verdict `json:"length,omitempty"`
	Region *region.Decision   `json:"region,omitempty"`
	Cost   *costtier.Decision `json:"cost,omitempty"`
}

// Config holds the orchestrator's tunables.
type Config struct {
	LengthOptions  promptlen.Options
	ProfileTimeout time.Duration // bound on the profile fetch, default 2s
}

// DefaultConfig returns the default orchestrator configuration.
func DefaultConfig() Config {
	return Config{
		LengthOptions:  promptlen.DefaultOptions(),
		ProfileTimeout: 2 * time.Second,
	}
}

// Orchestrator composes the routing sub-checks behind feature flags.
type Orchestrator struct {
	cfg      Config
	profiles profile.Store
	flags    flags.Source
	sink     audit.Sink
	logger   *zap.Logger
}

// NewOrchestrator creates an orchestrator. profiles may be nil, in
// which case caller-supplied defaults are always used.
func NewOrchestrator(cfg Config, profiles profile.Store, flagSrc flags.Source, sink audit.Sink, logger *zap.Logger) *Orchestrator {
	if sink == nil {
		sink = audit.NopSink{}
	}
	return &Orchestrator{
		cfg:      cfg,
		profiles: profiles,
		flags:    flagSrc,
		sink:     sink,
		logger:   logger,
	}
}

// Route produces the routing decision for one request. A profile fetch
// failure downgrades to caller-supplied defaults with a warning; it
// never fails the decision.
func (o *Orchestrator) Route(ctx context.Context, req Request) *Decision {
	d := &Decision{
		TraceID:   req.TraceID,
		Provider:  req.Provider,
		Model:     req.Model,
		Action:    verdict.ActionAllow,
		Timestamp: time.Now().UTC(),
	}
	if d.TraceID == "" {
		d.TraceID = uuid.New().String()
	}

	// 1. Resolve the org profile, falling back to request values.
	plan := req.Plan
	residency := req.DataResidency
	tags := req.ComplianceTags
	if o.profiles != nil && req.OrgID != "" {
		prof, err := o.fetchProfile(ctx, req.OrgID)
		switch {
		case err != nil:
			o.logger.Warn("org profile fetch failed, using caller defaults",
				zap.String("org_id", req.OrgID),
				zap.Error(err),
			)
			d.Warnings = append(d.Warnings, "org profile unavailable, caller defaults applied")
		case prof != nil:
			plan = prof.Plan
			if prof.DataResidency != "" {
				residency = prof.DataResidency
			}
			if len(prof.ComplianceTags) > 0 {
				tags = prof.ComplianceTags
			}
		}
	}

	var reasons []string

	// 2. Length classification.
	if o.enabled(ctx, flags.FlagLengthCheck, req) {
		lv := promptlen.Classify(req.Prompt, req.Provider, o.cfg.LengthOptions)
		d.Length = &lv
		d.Action = verdict.Max(d.Action, lv.Action)
		d.Warnings = append(d.Warnings, lv.Warnings...)
		d.Errors = append(d.Errors, lv.Errors...)
		d.Factors = append(d.Factors, "length_check")
		if !lv.Valid {
			reasons = append(reasons, "prompt length outside accepted bounds")
		}
	}

	// 3. Region routing.
	if o.enabled(ctx, flags.FlagRegionRouting, req) {
		rd := region.Resolve(region.Input{
			UserRegion:        req.UserRegion,
			DataResidency:     residency,
			ComplianceTags:    tags,
			PreferredRegion:   req.PreferredRegion,
			Provider:          req.Provider,
			EnforceCompliance: req.EnforceCompliance,
		})
		d.Region = &rd
		d.Factors = append(d.Factors, "region_routing")
		reasons = append(reasons, rd.Reason)
	}

	// 4. Cost tiering. When the caller requested no model, the length
	// recommendation is checked against the plan instead.
	if o.enabled(ctx, flags.FlagCostTiering, req) {
		requested := req.Model
		if requested == "" && d.Length != nil {
			requested = d.Length.RecommendedModel
		}
		cd := costtier.Apply(plan, req.Provider, requested)
		d.Cost = &cd
		d.Factors = append(d.Factors, "cost_tiering")
		if cd.Downgraded {
			reasons = append(reasons, cd.Reason)
		}
	}

	// 5. Final model: cost downgrade wins, then the length
	// recommendation, then the requested model.
	switch {
	case d.Cost != nil && d.Cost.Downgraded:
		d.Model = d.Cost.RecommendedModel
	case d.Length != nil && d.Length.RecommendedModel != "" && req.Model == "":
		d.Model = d.Length.RecommendedModel
	}

	// 6. Aggregate reason.
	d.Reason = strings.Join(reasons, "; ")
	if d.Reason == "" {
		d.Reason = "no routing constraints applied"
	}

	o.recordDecision(req, d)
	return d
}

func (o *Orchestrator) fetchProfile(ctx context.Context, orgID string) (*profile.ComplianceProfile, error) {
	timeout := o.cfg.ProfileTimeout
	if timeout == 0 {
		timeout = 2 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return o.profiles.GetProfile(ctx, orgID)
}

func (o *Orchestrator) enabled(ctx context.Context, flag string, req Request) bool {
	if o.flags == nil {
		return true
	}
	return o.flags.IsEnabled(ctx, flag, req.UserID, req.WorkspaceID)
}

// recordDecision forwards the decision to the audit sink,
// fire-and-forget.
func (o *Orchestrator) recordDecision(req Request, d *Decision) {
	rec := &audit.Record{
		Kind:        audit.KindRoutingDecision,
		TraceID:     d.TraceID,
		OrgID:       req.OrgID,
		WorkspaceID: req.WorkspaceID,
		Timestamp:   d.Timestamp,
		Provider:    d.Provider,
		Model:       d.Model,
		Action:      d.Action.String(),
		Reason:      d.Reason,
		Factors:     d.Factors,
		Warnings:    d.Warnings,
	}
	if d.Region != nil {
		rec.Region = d.Region.Region
	}
	o.sink.Record(rec)
}
