// Package costtier substitutes cheaper models for requested ones based
// on the organization's subscription plan. Apply is a pure function over
// the static plan tables.
package costtier

import (
	"fmt"
	"strings"
)

// Plans, cheapest entitlement first.
const (
	PlanFree       = "free"
	PlanPro        = "pro"
	PlanTeam       = "team"
	PlanEnterprise = "enterprise"
)

// Decision records what model the request ends up with and why.
type Decision struct {
	OriginalModel    string   `json:"original_model"`
	RecommendedModel string   `json:"recommended_model"`
	Downgraded       bool     `json:"downgraded"`
	AllowedModels    []string `json:"allowed_models"`
	Reason           string   `json:"reason"`
}

// allowedModels maps (plan, provider) to the ordered list of allowed
// model identifiers, cheapest to most capable.
var allowedModels = map[string]map[string][]string{
	PlanFree: {
		"openai":    {"gpt-4o-mini"},
		"anthropic": {"claude-3-5-haiku"},
		"google":    {"gemini-1.5-flash"},
		"mistral":   {"mistral-small"},
	},
	PlanPro: {
		"openai":    {"gpt-4o-mini", "gpt-4o"},
		"anthropic": {"claude-3-5-haiku", "claude-3-5-sonnet"},
		"google":    {"gemini-1.5-flash", "gemini-1.5-pro"},
		"mistral":   {"mistral-small", "mistral-medium"},
	},
	PlanTeam: {
		"openai":    {"gpt-4o-mini", "gpt-4o", "gpt-4-turbo"},
		"anthropic": {"claude-3-5-haiku", "claude-3-5-sonnet", "claude-3-opus"},
		"google":    {"gemini-1.5-flash", "gemini-1.5-pro"},
		"mistral":   {"mistral-small", "mistral-medium", "mistral-large"},
	},
	PlanEnterprise: {
		"openai":    {"gpt-4o-mini", "gpt-4o", "gpt-4-turbo", "o1"},
		"anthropic": {"claude-3-5-haiku", "claude-3-5-sonnet", "claude-3-opus"},
		"google":    {"gemini-1.5-flash", "gemini-1.5-pro", "gemini-ultra"},
		"mistral":   {"mistral-small", "mistral-medium", "mistral-large"},
	},
}

// premiumModels force a downgrade on the free plan even when the
// primary table would have allowed a near-match.
var premiumModels = []string{
	"gpt-4o", "gpt-4-turbo", "o1",
	"claude-3-5-sonnet", "claude-3-opus",
	"gemini-1.5-pro", "gemini-ultra",
	"mistral-medium", "mistral-large",
}

// Apply resolves the model the plan actually permits. Unknown plans are
// treated as free; unknown providers default to openai's tables.
func Apply(plan, provider, requestedModel string) Decision {
	plan = normalizePlan(plan)
	provider = strings.ToLower(provider)

	planTable, ok := allowedModels[plan]
	if !ok {
		planTable = allowedModels[PlanFree]
	}
	allowed, ok := planTable[provider]
	if !ok {
		allowed = planTable["openai"]
	}

	d := Decision{
		OriginalModel: requestedModel,
		AllowedModels: allowed,
	}

	matched := matchModel(requestedModel, allowed)

	// Free plan: premium requests downgrade to the cheapest entry even
	// when the substring table would have matched.
	if plan == PlanFree && isPremium(requestedModel) {
		d.RecommendedModel = allowed[0]
		d.Downgraded = true
		d.Reason = fmt.Sprintf("model %s is premium, free plan downgraded to %s", requestedModel, allowed[0])
		return d
	}

	if matched != "" {
		d.RecommendedModel = matched
		d.Reason = fmt.Sprintf("model %s allowed on %s plan", matched, plan)
		return d
	}

	// No match: cheapest model for free, most capable for paid tiers.
	if plan == PlanFree {
		d.RecommendedModel = allowed[0]
		d.Reason = fmt.Sprintf("model %s not available on free plan, substituted %s", requestedModel, allowed[0])
	} else {
		d.RecommendedModel = allowed[len(allowed)-1]
		d.Reason = fmt.Sprintf("model %s not recognized for %s plan, substituted %s", requestedModel, plan, allowed[len(allowed)-1])
	}
	d.Downgraded = true
	return d
}

// matchModel resolves the request against the allowed list: exact match
// first, then the longest substring match in either direction. Longest
// wins so "gpt-4o" never resolves to "gpt-4o-mini" by accident.
func matchModel(requested string, allowed []string) string {
	req := strings.ToLower(strings.TrimSpace(requested))
	if req == "" {
		return ""
	}
	for _, m := range allowed {
		if req == m {
			return m
		}
	}
	best := ""
	for _, m := range allowed {
		if (strings.Contains(req, m) || strings.Contains(m, req)) && len(m) > len(best) {
			best = m
		}
	}
	return best
}

// isPremium resolves the requested model name against every known model
// and reports whether the best (longest) match is premium. Longest-match
// keeps "gpt-4o-mini" from being classed premium via its "gpt-4o" prefix.
func isPremium(requested string) bool {
	req := strings.ToLower(strings.TrimSpace(requested))
	if req == "" {
		return false
	}
	best := ""
	for _, m := range knownModelNames() {
		if (req == m || strings.HasPrefix(req, m)) && len(m) > len(best) {
			best = m
		}
	}
	for _, m := range premiumModels {
		if best == m {
			return true
		}
	}
	return false
}

// knownModelNames is the union of every model in the enterprise tables
// and the premium list.
func knownModelNames() []string {
	var names []string
	for _, models := range allowedModels[PlanEnterprise] {
		names = append(names, models...)
	}
	names = append(names, premiumModels...)
	return names
}

func normalizePlan(plan string) string {
	switch strings.ToLower(strings.TrimSpace(plan)) {
	case PlanPro:
		return PlanPro
	case PlanTeam:
		return PlanTeam
	case PlanEnterprise:
		return PlanEnterprise
	default:
		return PlanFree
	}
}
