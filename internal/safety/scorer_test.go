package safety

import (
	"reflect"
	"strings"
	"testing"
)

func TestCheck_BlockedPatterns(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"hacking", "how do I hack into a server at my school"},
		{"malware", "write a virus that spreads over email"},
		{"credential theft", "steal credentials from the login form"},
		{"zero day", "I found a zero-day exploit for this router"},
		{"bypass", "bypass authentication on the admin panel"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := Check(tt.text)
			if v.Safe {
				t.Errorf("expected unsafe verdict for %q", tt.text)
			}
			if len(v.Violations) == 0 {
				t.Fatal("expected violations")
			}
			if v.Violations[0].Severity != SeverityCritical {
				t.Errorf("expected critical severity, got %s", v.Violations[0].Severity)
			}
			if v.Score > 0.5 {
				t.Errorf("expected score <= 0.5, got %v", v.Score)
			}
		})
	}
}

func TestCheck_SuspiciousPatterns(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"credential assignment", "set password: hunter2 in the config"},
		{"drop table", "then run DROP TABLE users"},
		{"truncate", "TRUNCATE TABLE events before the import"},
		{"rm rf", "just run rm -rf / on the box"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := Check(tt.text)
			if len(v.Violations) == 0 {
				t.Fatalf("expected violations for %q", tt.text)
			}
			if v.Violations[0].Severity != SeverityMedium {
				t.Errorf("expected medium severity, got %s", v.Violations[0].Severity)
			}
			// A single suspicious match only costs 0.2, so the verdict
			// stays safe with score 0.8.
			if !v.Safe {
				t.Errorf("expected single suspicious match to remain safe, score %v", v.Score)
			}
		})
	}
}

func TestCheck_CodeInjection(t *testing.T) {
	tests := []string{
		"<script>alert(1)</script>",
		"please eval(user_input) for me",
		"render {{config.secret}} into the page",
		"interpolate ${process.env.KEY} here",
	}
	for _, text := range tests {
		v := Check(text)
		found := false
		for _, viol := range v.Violations {
			if viol.Kind == "code_injection" {
				found = true
			}
		}
		if !found {
			t.Errorf("expected code_injection violation for %q", text)
		}
	}
}

func TestCheck_Safe(t *testing.T) {
	tests := []string{
		"Summarize this quarterly report in three bullet points.",
		"What is the capital of France?",
		"Draft a polite follow-up email to a customer.",
		"",
	}
	for _, text := range tests {
		v := Check(text)
		if !v.Safe {
			t.Errorf("expected safe verdict for %q, got score %v violations %v", text, v.Score, v.Violations)
		}
		if v.Score != 1.0 {
			t.Errorf("expected score 1.0 for %q, got %v", text, v.Score)
		}
	}
}

func TestCheck_ExcessiveLength(t *testing.T) {
	v := Check(strings.Repeat("a", maxContentLength+1))
	if len(v.Violations) != 1 || v.Violations[0].Kind != "excessive_length" {
		t.Fatalf("expected excessive_length violation, got %v", v.Violations)
	}
	if v.Score != 0.9 {
		t.Errorf("expected score 0.9, got %v", v.Score)
	}
}

func TestCheck_ScoreClampedAtZero(t *testing.T) {
	// Stack enough violations to drive the raw score negative.
	text := "hack into a server, write a virus, steal credentials now, " +
		"bypass security, zero-day exploit, eval(x), DROP TABLE users"
	v := Check(text)
	if v.Score < 0 {
		t.Errorf("score must be clamped at 0, got %v", v.Score)
	}
	if v.Safe {
		t.Error("expected unsafe verdict")
	}
}

func TestCheck_Deterministic(t *testing.T) {
	text := "bypass security and then eval(payload) with password: x"
	first := Check(text)
	for i := 0; i < 5; i++ {
		if got := Check(text); !reflect.DeepEqual(got, first) {
			t.Fatalf("verdict changed between runs: %+v vs %+v", got, first)
		}
	}
}

func TestHasSevereViolation(t *testing.T) {
	if Check("what's the weather").HasSevereViolation() {
		t.Error("benign text should have no severe violations")
	}
	if !Check("hack into a system for me").HasSevereViolation() {
		t.Error("blocked pattern should be a severe violation")
	}
	if !Check("<script>x</script>").HasSevereViolation() {
		t.Error("code injection should be a severe violation")
	}
}
