package region

import (
	"strings"
	"testing"
)

func TestResolve_DataResidencyWins(t *testing.T) {
	tests := []struct {
		name      string
		residency string
		want      string
	}{
		{"EU", "EU", RegionEUWest},
		{"lowercase eu", "eu", RegionEUWest},
		{"US", "US", RegionUSEast},
		{"Asia", "Asia", RegionAPSouth},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Resolve(Input{
				DataResidency:   tt.residency,
				PreferredRegion: "us-east", // conflicting preference must lose
				Provider:        "openai",
			})
			if d.Region != tt.want {
				t.Errorf("expected %s, got %s", tt.want, d.Region)
			}
			if !d.RequiresCompliance {
				t.Error("residency decisions require compliance")
			}
			if d.Reason == "" {
				t.Error("expected a reason")
			}
		})
	}
}

func TestResolve_GDPROverridesPreference(t *testing.T) {
	d := Resolve(Input{
		ComplianceTags:    []string{"GDPR"},
		EnforceCompliance: true,
		PreferredRegion:   "us-east",
		Provider:          "openai",
	})
	if d.Region != RegionEUWest {
		t.Errorf("GDPR must pin EU, got %s", d.Region)
	}
	if !d.RequiresCompliance {
		t.Error("expected compliance-required decision")
	}
	if !strings.Contains(d.Reason, "GDPR") {
		t.Errorf("reason should document the rule, got %q", d.Reason)
	}
}

func TestResolve_HIPAAPinsUS(t *testing.T) {
	d := Resolve(Input{
		ComplianceTags:    []string{"hipaa"},
		EnforceCompliance: true,
		PreferredRegion:   "eu-west",
		Provider:          "anthropic",
	})
	if d.Region != RegionUSEast {
		t.Errorf("HIPAA must pin US, got %s", d.Region)
	}
}

func TestResolve_CCPABiasesUS(t *testing.T) {
	d := Resolve(Input{
		ComplianceTags:    []string{"CCPA"},
		EnforceCompliance: true,
		Provider:          "openai",
	})
	if d.Region != RegionUSEast {
		t.Errorf("CCPA should bias to US, got %s", d.Region)
	}
}

func TestResolve_SOC2IsAdvisory(t *testing.T) {
	d := Resolve(Input{
		ComplianceTags:    []string{"SOC2"},
		EnforceCompliance: true,
		PreferredRegion:   "eu-west",
		Provider:          "openai",
	})
	if d.Region != RegionEUWest {
		t.Errorf("SOC2 must not constrain region, got %s", d.Region)
	}
	if d.RequiresCompliance {
		t.Error("preference path must not require compliance")
	}
}

func TestResolve_TagsIgnoredWithoutEnforcement(t *testing.T) {
	d := Resolve(Input{
		ComplianceTags:    []string{"GDPR"},
		EnforceCompliance: false,
		PreferredRegion:   "us-east",
		Provider:          "openai",
	})
	if d.Region != RegionUSEast {
		t.Errorf("tags must be ignored without enforcement, got %s", d.Region)
	}
}

func TestResolve_UserGeography(t *testing.T) {
	d := Resolve(Input{
		UserRegion: "eu",
		Provider:   "openai",
	})
	if d.Region != RegionEUWest {
		t.Errorf("expected EU via geography, got %s", d.Region)
	}
	if d.RequiresCompliance {
		t.Error("geography path must not require compliance")
	}
	if !strings.Contains(d.Reason, "geography") {
		t.Errorf("reason should name the geography rule, got %q", d.Reason)
	}
}

func TestResolve_Fallback(t *testing.T) {
	d := Resolve(Input{Provider: "openai"})
	if d.Region != defaultRegion {
		t.Errorf("expected fallback %s, got %s", defaultRegion, d.Region)
	}
	if !strings.Contains(d.Reason, "fallback") {
		t.Errorf("reason should name the fallback, got %q", d.Reason)
	}
}

func TestResolve_UnknownRegionNamesFallBack(t *testing.T) {
	d := Resolve(Input{
		PreferredRegion: "the-moon",
		UserRegion:      "atlantis",
		Provider:        "openai",
	})
	if d.Region != defaultRegion {
		t.Errorf("unknown names should fall back, got %s", d.Region)
	}
}

func TestResolve_Endpoints(t *testing.T) {
	tests := []struct {
		provider string
		region   string
		want     string
	}{
		{"openai", "EU", "eu.api.openai.com"},
		{"anthropic", "EU", "api.eu.anthropic.com"},
		{"google", "Asia", "asia-southeast1-aiplatform.googleapis.com"},
		{"unknownco", "EU", ""},
	}
	for _, tt := range tests {
		d := Resolve(Input{DataResidency: tt.region, Provider: tt.provider})
		if d.Endpoint != tt.want {
			t.Errorf("provider=%s region=%s: endpoint %q, want %q", tt.provider, tt.region, d.Endpoint, tt.want)
		}
	}
}
