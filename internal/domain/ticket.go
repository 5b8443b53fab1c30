package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusTodo       TicketStatus = "TODO"
	TicketStatusInProgress TicketStatus = "IN_PROGRESS"
	TicketStatusCompleted  TicketStatus = "COMPLETED"
)

// ModeratorReply is the single embedded reply a moderator leaves on a ticket.
type ModeratorReply struct {
	Code        string
	Explanation string
	RepliedAt   time.Time
}

// Ticket is the aggregate for support requests. Triage mutates priority,
// helpful notes, related skills, status and assignee; title, description,
// creator and deadline are immutable inputs.
type Ticket struct {
	ID            string
	Title         string
	Description   string
	Status        TicketStatus
	Priority      Priority // empty until triage completes
	CreatedBy     UserRef
	AssignedTo    *UserRef
	Deadline      time.Time
	HelpfulNotes  string
	RelatedSkills []string
	LegacySkills  []string // legacy "skills" column, never written by triage
	Reply         *ModeratorReply
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Skills returns the canonical skill tags for display and matching:
// relatedSkills when set, the legacy skills column otherwise.
func (t *Ticket) Skills() []string {
	if len(t.RelatedSkills) > 0 {
		return t.RelatedSkills
	}
	if len(t.LegacySkills) > 0 {
		return t.LegacySkills
	}
	return []string{}
}

// DefaultDeadline is applied when a ticket is created without one.
func DefaultDeadline(now time.Time) time.Time {
	return now.Add(7 * 24 * time.Hour)
}
