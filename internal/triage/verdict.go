package triage

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/spec-kit/helpdesk-triage/internal/domain"
)

// Verdict is the structured result of the classification step. It is
// ephemeral: produced once per triage run and persisted onto the ticket,
// never stored as its own entity.
type Verdict struct {
	Summary       string          `json:"summary"`
	Priority      domain.Priority `json:"priority"`
	HelpfulNotes  string          `json:"helpfulNotes"`
	RelatedSkills []string        `json:"relatedSkills"`
}

// FieldIssue describes one schema violation found while validating a verdict.
type FieldIssue struct {
	Path    string
	Message string
}

func (i FieldIssue) String() string {
	return i.Path + ": " + i.Message
}

// ClassificationError reports that the classification call could not produce
// a parseable, schema-valid verdict even after the local repair attempt.
// It is retriable at the workflow level.
type ClassificationError struct {
	Message string
	Excerpt string       // truncated raw model output, for diagnostics
	Issues  []FieldIssue // validation issues, when JSON parsed but failed the schema
	Err     error
}

func (e *ClassificationError) Error() string {
	if len(e.Issues) > 0 {
		parts := make([]string, len(e.Issues))
		for i, issue := range e.Issues {
			parts[i] = issue.String()
		}
		return fmt.Sprintf("%s: %s", e.Message, strings.Join(parts, "; "))
	}
	if e.Excerpt != "" {
		return fmt.Sprintf("%s. Raw (truncated): %s", e.Message, e.Excerpt)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ClassificationError) Unwrap() error {
	return e.Err
}

const excerptLimit = 300

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit]
}

var fenceRe = regexp.MustCompile("(?is)```json\\s*(.*?)\\s*```")

// extractJSONCandidate unwraps an optional ```json fence; models are told
// not to emit one but occasionally do anyway.
func extractJSONCandidate(text string) string {
	if m := fenceRe.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	return strings.TrimSpace(text)
}

// parseVerdict turns raw model output into a validated Verdict. On schema
// failure a single repair pass coerces each field; if the repaired object
// still fails, the original issues are surfaced.
func parseVerdict(raw string) (*Verdict, error) {
	candidate := extractJSONCandidate(raw)

	var fields map[string]any
	if err := json.Unmarshal([]byte(candidate), &fields); err != nil {
		return nil, &ClassificationError{
			Message: "classifier returned non-JSON output",
			Excerpt: truncate(raw, excerptLimit),
			Err:     err,
		}
	}

	verdict, issues := validateVerdict(fields)
	if len(issues) == 0 {
		return verdict, nil
	}

	repaired, stillBroken := validateVerdict(repairVerdict(fields))
	if len(stillBroken) == 0 {
		return repaired, nil
	}
	return nil, &ClassificationError{
		Message: "classifier JSON failed validation",
		Issues:  issues,
	}
}

// validateVerdict checks the fixed verdict schema: summary and helpfulNotes
// are non-empty strings, priority is in the enum, relatedSkills is an array
// of strings defaulting to empty when absent.
func validateVerdict(fields map[string]any) (*Verdict, []FieldIssue) {
	var issues []FieldIssue
	v := &Verdict{RelatedSkills: []string{}}

	if s, ok := fields["summary"].(string); ok && s != "" {
		v.Summary = s
	} else {
		issues = append(issues, FieldIssue{Path: "summary", Message: "must be a non-empty string"})
	}

	if s, ok := fields["priority"].(string); ok && domain.Priority(s).Valid() {
		v.Priority = domain.Priority(s)
	} else {
		issues = append(issues, FieldIssue{Path: "priority", Message: `must be one of "low", "medium", "high"`})
	}

	if s, ok := fields["helpfulNotes"].(string); ok && s != "" {
		v.HelpfulNotes = s
	} else {
		issues = append(issues, FieldIssue{Path: "helpfulNotes", Message: "must be a non-empty string"})
	}

	if raw, present := fields["relatedSkills"]; present {
		arr, ok := raw.([]any)
		if !ok {
			issues = append(issues, FieldIssue{Path: "relatedSkills", Message: "must be an array of strings"})
		} else {
			for i, item := range arr {
				s, ok := item.(string)
				if !ok {
					issues = append(issues, FieldIssue{
						Path:    fmt.Sprintf("relatedSkills.%d", i),
						Message: "must be a string",
					})
					continue
				}
				v.RelatedSkills = append(v.RelatedSkills, s)
			}
		}
	}

	return v, issues
}

// repairVerdict coerces a structurally-wrong verdict toward the schema:
// priority via case-insensitive enum match (medium when unmatched), text
// fields via string coercion, relatedSkills via element-wise stringification.
func repairVerdict(fields map[string]any) map[string]any {
	repaired := map[string]any{
		"summary":      coerceString(fields["summary"]),
		"helpfulNotes": coerceString(fields["helpfulNotes"]),
	}

	if p, ok := domain.ParsePriority(coerceString(fields["priority"])); ok {
		repaired["priority"] = string(p)
	} else {
		repaired["priority"] = string(domain.PriorityMedium)
	}

	skills := []any{}
	if arr, ok := fields["relatedSkills"].([]any); ok {
		for _, item := range arr {
			skills = append(skills, coerceString(item))
		}
	}
	repaired["relatedSkills"] = skills

	return repaired
}

func coerceString(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case float64:
		// JSON numbers decode as float64; render integers without a decimal.
		if s == float64(int64(s)) {
			return fmt.Sprintf("%d", int64(s))
		}
		return fmt.Sprintf("%g", s)
	case bool:
		return fmt.Sprintf("%t", s)
	default:
		return fmt.Sprintf("%v", s)
	}
}
