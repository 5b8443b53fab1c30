package triage

import (
	"context"
	"strings"

	"github.com/spec-kit/helpdesk-triage/internal/domain"
)

// CandidateFinder lists assignment candidates of a given role in a stable
// order (creation order), so selection is deterministic across runs.
type CandidateFinder interface {
	ListByRole(ctx context.Context, role domain.Role) ([]domain.User, error)
}

// Selector chooses a ticket assignee by skill match with fallback.
type Selector struct {
	users CandidateFinder
}

// NewSelector builds a selector over the candidate source.
func NewSelector(users CandidateFinder) *Selector {
	return &Selector{users: users}
}

// SelectAssignee picks a moderator whose skills match any of the given skill
// tags, falling back to the first admin, and to nil when neither exists.
// A nil result is not an error: the ticket simply stays unassigned.
func (s *Selector) SelectAssignee(ctx context.Context, skills []string) (*domain.User, error) {
	if len(skills) > 0 {
		moderators, err := s.users.ListByRole(ctx, domain.RoleModerator)
		if err != nil {
			return nil, err
		}
		for i := range moderators {
			if skillsMatch(skills, moderators[i].Skills) {
				return &moderators[i], nil
			}
		}
	}

	admins, err := s.users.ListByRole(ctx, domain.RoleAdmin)
	if err != nil {
		return nil, err
	}
	if len(admins) == 0 {
		return nil, nil
	}
	return &admins[0], nil
}

// skillsMatch reports whether any wanted skill appears as a case-insensitive
// substring of any candidate skill. OR-of-substrings, not set membership, so
// "Payments" matches a candidate listing "Payments/Stripe integration".
func skillsMatch(wanted, candidate []string) bool {
	for _, w := range wanted {
		token := strings.ToLower(strings.TrimSpace(w))
		if token == "" {
			continue
		}
		for _, c := range candidate {
			if strings.Contains(strings.ToLower(c), token) {
				return true
			}
		}
	}
	return false
}
