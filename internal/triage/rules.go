package triage

import (
	"strings"
	"time"

	"github.com/spec-kit/helpdesk-triage/internal/domain"
)

// Deterministic rule overlay for ticket priority. The classifier computes its
// own urgency estimate with similar heuristics; both are computed and blended
// so that model drift can never lower the deterministic floor.

var highTerms = []string{
	"outage",
	"down",
	"cannot login",
	"data loss",
	"security",
	"breach",
	"payment failed",
	"billing error",
	"leak",
}

var mediumTerms = []string{
	"degraded",
	"timeout",
	"slow",
	"intermittent",
}

// RulePriority computes a priority from ticket text and deadline proximity.
// now is a required input so the result is reproducible; first matching rule
// wins: deadline within 24h → high, within 72h → medium, then keyword
// severity, then low. A zero deadline skips the deadline rules entirely.
func RulePriority(title, description string, deadline time.Time, now time.Time) domain.Priority {
	if !deadline.IsZero() {
		hrs := deadline.Sub(now).Hours()
		if hrs <= 24 {
			return domain.PriorityHigh
		}
		if hrs <= 72 {
			return domain.PriorityMedium
		}
	}

	text := strings.ToLower(title + " " + description)
	for _, term := range highTerms {
		if strings.Contains(text, term) {
			return domain.PriorityHigh
		}
	}
	for _, term := range mediumTerms {
		if strings.Contains(text, term) {
			return domain.PriorityMedium
		}
	}
	return domain.PriorityLow
}

// PickHigher returns the more urgent of two priorities. Ties return a: the
// first argument wins, which keeps the classifier's value on equal urgency.
func PickHigher(a, b domain.Priority) domain.Priority {
	if a.Rank() >= b.Rank() {
		return a
	}
	return b
}
