// Package region pins an LLM request to a provider region based on data
// residency, compliance tags and caller preference. Resolve is a pure
// function; every decision carries a reason string for the audit trail.
package region

import (
	"fmt"
	"strings"
)

// Canonical regions.
const (
	RegionUSEast  = "us-east-1"
	RegionEUWest  = "eu-west-1"
	RegionAPSouth = "ap-southeast-1"

	defaultRegion = RegionUSEast
)

// Input is everything the router considers. EnforceCompliance gates the
// compliance-tag rules; residency always wins regardless.
type Input struct {
	UserRegion        string
	DataResidency     string // "EU", "US", "Asia" or empty
	ComplianceTags    []string
	PreferredRegion   string
	Provider          string
	EnforceCompliance bool
}

// Decision is the pinned region plus provenance.
type Decision struct {
	Region             string `json:"region"`
	Endpoint           string `json:"endpoint,omitempty"`
	Reason             string `json:"reason"`
	RequiresCompliance bool   `json:"requires_compliance"`
	DataResidency      string `json:"data_residency,omitempty"`
}

// residencyRegions maps a data-residency tag to its canonical region.
var residencyRegions = map[string]string{
	"eu":   RegionEUWest,
	"us":   RegionUSEast,
	"asia": RegionAPSouth,
}

// regionAliases maps detected user geography to canonical regions.
var regionAliases = map[string]string{
	"us":        RegionUSEast,
	"usa":       RegionUSEast,
	"us-east":   RegionUSEast,
	"us-east-1": RegionUSEast,
	"na":        RegionUSEast,
	"eu":        RegionEUWest,
	"europe":    RegionEUWest,
	"eu-west":   RegionEUWest,
	"eu-west-1": RegionEUWest,
	"uk":        RegionEUWest,
	"de":        RegionEUWest,
	"fr":        RegionEUWest,
	"asia":      RegionAPSouth,
	"apac":      RegionAPSouth,
	"ap":        RegionAPSouth,
	"jp":        RegionAPSouth,
	"sg":        RegionAPSouth,
	"ap-southeast-1": RegionAPSouth,
}

// providerEndpoints maps provider -> region -> endpoint host.
var providerEndpoints = map[string]map[string]string{
	"openai": {
		RegionUSEast:  "api.openai.com",
		RegionEUWest:  "eu.api.openai.com",
		RegionAPSouth: "ap.api.openai.com",
	},
	"anthropic": {
		RegionUSEast:  "api.anthropic.com",
		RegionEUWest:  "api.eu.anthropic.com",
		RegionAPSouth: "api.anthropic.com",
	},
	"google": {
		RegionUSEast:  "us-central1-aiplatform.googleapis.com",
		RegionEUWest:  "europe-west4-aiplatform.googleapis.com",
		RegionAPSouth: "asia-southeast1-aiplatform.googleapis.com",
	},
}

// Resolve picks the region by strict priority: data residency, then
// mandatory compliance tags (when enforced), then caller preference,
// then detected geography, then the fixed fallback.
func Resolve(in Input) Decision {
	// (a) Explicit data residency always wins.
	if in.DataResidency != "" {
		key := strings.ToLower(strings.TrimSpace(in.DataResidency))
		if region, ok := residencyRegions[key]; ok {
			return Decision{
				Region:             region,
				Endpoint:           endpointFor(in.Provider, region),
				Reason:             fmt.Sprintf("data residency %s pins region %s", in.DataResidency, region),
				RequiresCompliance: true,
				DataResidency:      in.DataResidency,
			}
		}
		// Unknown residency tag: fall through but note it downstream
		// via the geography/preference path.
	}

	// (b) Compliance tags, only when enforcement is on.
	if in.EnforceCompliance {
		tags := normalizeTags(in.ComplianceTags)

		// GDPR and HIPAA are mandatory overrides, never relaxed by
		// user preference.
		if tags["gdpr"] {
			return Decision{
				Region:             RegionEUWest,
				Endpoint:           endpointFor(in.Provider, RegionEUWest),
				Reason:             "GDPR compliance mandates EU processing",
				RequiresCompliance: true,
			}
		}
		if tags["hipaa"] {
			return Decision{
				Region:             RegionUSEast,
				Endpoint:           endpointFor(in.Provider, RegionUSEast),
				Reason:             "HIPAA compliance mandates US processing",
				RequiresCompliance: true,
			}
		}
		// CCPA and PIPEDA bias toward US.
		if tags["ccpa"] || tags["pipeda"] {
			return Decision{
				Region:             RegionUSEast,
				Endpoint:           endpointFor(in.Provider, RegionUSEast),
				Reason:             "CCPA/PIPEDA compliance biases toward US processing",
				RequiresCompliance: true,
			}
		}
		// SOC2 is advisory only: no region constraint.
	}

	// (c) Caller preference, consulted only when no compliance rule fired.
	if in.PreferredRegion != "" {
		if region, ok := regionAliases[strings.ToLower(strings.TrimSpace(in.PreferredRegion))]; ok {
			return Decision{
				Region:   region,
				Endpoint: endpointFor(in.Provider, region),
				Reason:   fmt.Sprintf("caller preference %s", in.PreferredRegion),
			}
		}
	}

	// (d) Detected user geography.
	if in.UserRegion != "" {
		if region, ok := regionAliases[strings.ToLower(strings.TrimSpace(in.UserRegion))]; ok {
			return Decision{
				Region:   region,
				Endpoint: endpointFor(in.Provider, region),
				Reason:   fmt.Sprintf("user geography %s", in.UserRegion),
			}
		}
	}

	// (e) Fixed fallback.
	return Decision{
		Region:   defaultRegion,
		Endpoint: endpointFor(in.Provider, defaultRegion),
		Reason:   "default region fallback",
	}
}

func endpointFor(provider, region string) string {
	regions, ok := providerEndpoints[strings.ToLower(provider)]
	if !ok {
		return ""
	}
	return regions[region]
}

func normalizeTags(tags []string) map[string]bool {
	out := make(map[string]bool, len(tags))
	for _, t := range tags {
		out[strings.ToLower(strings.TrimSpace(t))] = true
	}
	return out
}
