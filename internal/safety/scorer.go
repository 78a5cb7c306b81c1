// Package safety scores prompt text against static content-policy rule
// tables. Scoring is a pure function of the input text; there is no
// learned state and no I/O.
package safety

import (
	"regexp"
)

// Severity ranks how serious a violation is.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Violation is a single matched rule.
type Violation struct {
	Kind     string   `json:"kind"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
}

// Verdict is the outcome of a content safety check.
type Verdict struct {
	Safe       bool        `json:"safe"`
	Score      float64     `json:"score"`
	Violations []Violation `json:"violations,omitempty"`
}

// Score penalties. Scoring starts at 1.0 and is clamped at 0.
const (
	blockedPenalty    = 0.5
	suspiciousPenalty = 0.2
	lengthPenalty     = 0.1
	injectionPenalty  = 0.3

	maxContentLength = 100_000
	safeScoreFloor   = 0.5
)

// Pre-compiled blocked patterns. Any match is a critical violation.
var blockedPatterns = []struct {
	re     *regexp.Regexp
	kind   string
	detail string
}{
	{regexp.MustCompile(`(?i)\b(hack|exploit|crack)\s+(into\s+)?(a\s+)?(system|server|account|database|network)\b`), "hacking", "intrusion instructions"},
	{regexp.MustCompile(`(?i)\b(create|write|build)\s+(a\s+)?(virus|malware|ransomware|trojan|keylogger)\b`), "malware", "malware creation request"},
	{regexp.MustCompile(`(?i)\b(steal|harvest|exfiltrate)\s+(credentials|passwords|personal\s+data|credit\s+card)\b`), "data_theft", "credential/data theft request"},
	{regexp.MustCompile(`(?i)\bzero[- ]day\s+(exploit|vulnerability)\b`), "exploit", "zero-day exploit vocabulary"},
	{regexp.MustCompile(`(?i)\bbypass\s+(security|authentication|2fa|mfa|firewall)\b`), "hacking", "security bypass request"},
}

// Pre-compiled suspicious patterns. Any match is a medium violation.
var suspiciousPatterns = []struct {
	re     *regexp.Regexp
	kind   string
	detail string
}{
	{regexp.MustCompile(`(?i)\b(password|passwd|secret[_ ]?key|api[_ ]?key|access[_ ]?token)\s*[:=]`), "credentials", "credential material in prompt"},
	{regexp.MustCompile(`(?i)\bDROP\s+TABLE\b`), "destructive_sql", "destructive SQL statement"},
	{regexp.MustCompile(`(?i)\bDELETE\s+FROM\s+\w+(\s*;|\s*$)`), "destructive_sql", "unscoped SQL delete"},
	{regexp.MustCompile(`(?i)\bTRUNCATE\s+TABLE\b`), "destructive_sql", "destructive SQL statement"},
	{regexp.MustCompile(`(?i)\brm\s+-rf\s+/`), "destructive_shell", "destructive shell command"},
	{regexp.MustCompile(`(?i)\b(ssn|social\s+security\s+number)\s*[:=]?\s*\d{3}-?\d{2}-?\d{4}\b`), "pii", "social security number"},
}

// Code injection patterns: script tags, dynamic evaluation calls and
// template-injection syntax.
var injectionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)<\s*script[\s>]`),
	regexp.MustCompile(`(?i)\b(eval|exec|system|popen)\s*\(`),
	regexp.MustCompile(`\{\{.*\}\}`),
	regexp.MustCompile(`\$\{.*\}`),
	regexp.MustCompile(`(?i)javascript\s*:`),
}

// Check scores text against the static rule tables and returns a
// deterministic verdict. Identical input always yields an identical
// verdict.
func Check(text string) Verdict {
	score := 1.0
	var violations []Violation

	for _, p := range blockedPatterns {
		if p.re.MatchString(text) {
			score -= blockedPenalty
			violations = append(violations, Violation{
				Kind:     p.kind,
				Severity: SeverityCritical,
				Message:  p.detail,
			})
		}
	}

	for _, p := range suspiciousPatterns {
		if p.re.MatchString(text) {
			score -= suspiciousPenalty
			violations = append(violations, Violation{
				Kind:     p.kind,
				Severity: SeverityMedium,
				Message:  p.detail,
			})
		}
	}

	if len(text) > maxContentLength {
		score -= lengthPenalty
		violations = append(violations, Violation{
			Kind:     "excessive_length",
			Severity: SeverityLow,
			Message:  "content exceeds maximum length",
		})
	}

	for _, re := range injectionPatterns {
		if re.MatchString(text) {
			score -= injectionPenalty
			violations = append(violations, Violation{
				Kind:     "code_injection",
				Severity: SeverityHigh,
				Message:  "code injection syntax detected",
			})
			break
		}
	}

	if score < 0 {
		score = 0
	}

	return Verdict{
		Safe:       len(violations) == 0 || score > safeScoreFloor,
		Score:      score,
		Violations: violations,
	}
}

// HasSevereViolation reports whether the verdict contains a critical or
// high severity violation.
func (v Verdict) HasSevereViolation() bool {
	for _, viol := range v.Violations {
		if viol.Severity == SeverityCritical || viol.Severity == SeverityHigh {
			return true
		}
	}
	return false
}
