package triage

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/spec-kit/helpdesk-triage/internal/domain"
)

func TestParseVerdictCleanJSON(t *testing.T) {
	raw := `{"summary":"API returns 502","priority":"high","helpfulNotes":"Check the upstream LB","relatedSkills":["Go","Nginx"]}`
	got, err := parseVerdict(raw)
	if err != nil {
		t.Fatalf("parseVerdict: %v", err)
	}
	want := &Verdict{
		Summary:       "API returns 502",
		Priority:      domain.PriorityHigh,
		HelpfulNotes:  "Check the upstream LB",
		RelatedSkills: []string{"Go", "Nginx"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("verdict mismatch (-want +got):\n%s", diff)
	}
}

func TestParseVerdictUnwrapsFenceAndRepairs(t *testing.T) {
	raw := "```json\n{\"summary\":\"x\",\"priority\":\"URGENT\",\"helpfulNotes\":\"y\",\"relatedSkills\":[1,2]}\n```"
	got, err := parseVerdict(raw)
	if err != nil {
		t.Fatalf("parseVerdict: %v", err)
	}
	want := &Verdict{
		Summary:       "x",
		Priority:      domain.PriorityMedium, // URGENT is outside the enum
		HelpfulNotes:  "y",
		RelatedSkills: []string{"1", "2"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("repaired verdict mismatch (-want +got):\n%s", diff)
	}
}

func TestParseVerdictRepairsCaseInsensitivePriority(t *testing.T) {
	raw := `{"summary":"x","priority":"High","helpfulNotes":"y"}`
	got, err := parseVerdict(raw)
	if err != nil {
		t.Fatalf("parseVerdict: %v", err)
	}
	if got.Priority != domain.PriorityHigh {
		t.Errorf("Priority = %q, want high", got.Priority)
	}
	if len(got.RelatedSkills) != 0 {
		t.Errorf("RelatedSkills = %v, want empty default", got.RelatedSkills)
	}
}

func TestParseVerdictNonJSONFailsWithExcerpt(t *testing.T) {
	_, err := parseVerdict("not json at all")
	if err == nil {
		t.Fatal("expected error")
	}
	var cerr *ClassificationError
	if !errors.As(err, &cerr) {
		t.Fatalf("error type = %T, want *ClassificationError", err)
	}
	if !strings.Contains(cerr.Error(), "not json at all") {
		t.Errorf("error lacks raw excerpt: %v", cerr)
	}
}

func TestParseVerdictExcerptTruncated(t *testing.T) {
	long := strings.Repeat("garbage ", 100)
	_, err := parseVerdict(long)
	var cerr *ClassificationError
	if !errors.As(err, &cerr) {
		t.Fatalf("error type = %T, want *ClassificationError", err)
	}
	if len(cerr.Excerpt) > excerptLimit {
		t.Errorf("excerpt length = %d, want <= %d", len(cerr.Excerpt), excerptLimit)
	}
}

func TestParseVerdictUnrepairableListsOriginalIssues(t *testing.T) {
	// summary missing entirely: repair coerces it to "" which still fails the
	// non-empty check, so the original issues must surface.
	raw := `{"priority":"low","helpfulNotes":"y"}`
	_, err := parseVerdict(raw)
	if err == nil {
		t.Fatal("expected error")
	}
	var cerr *ClassificationError
	if !errors.As(err, &cerr) {
		t.Fatalf("error type = %T, want *ClassificationError", err)
	}
	if len(cerr.Issues) == 0 {
		t.Fatal("expected validation issues")
	}
	found := false
	for _, issue := range cerr.Issues {
		if issue.Path == "summary" {
			found = true
		}
	}
	if !found {
		t.Errorf("issues = %v, want one for summary", cerr.Issues)
	}
}

func TestExtractJSONCandidate(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"bare object", `{"a":1}`, `{"a":1}`},
		{"fenced", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"fenced with surrounding prose", "Here you go:\n```json\n{\"a\":1}\n```\nDone.", `{"a":1}`},
		{"whitespace wrapped", "  \n {\"a\":1} \n ", `{"a":1}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := extractJSONCandidate(tc.in); got != tc.want {
				t.Errorf("extractJSONCandidate = %q, want %q", got, tc.want)
			}
		})
	}
}
