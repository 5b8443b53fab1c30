package dto

import (
	"time"

	"github.com/spec-kit/helpdesk-triage/internal/domain"
)

// TicketCreateRequest payload for new tickets.
type TicketCreateRequest struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Priority    string     `json:"priority,omitempty"`
	Deadline    *time.Time `json:"deadline,omitempty"`
}

// TicketReplyRequest payload for a moderator's resolution.
type TicketReplyRequest struct {
	TicketID    string `json:"ticketId"`
	Code        string `json:"code,omitempty"`
	Explanation string `json:"explanation"`
}

// UserRefResponse renders a user reference; name and email are present
// only when the reference was populated by the query.
type UserRefResponse struct {
	ID    string `json:"id"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}

// ReplyResponse renders a moderator reply.
type ReplyResponse struct {
	Code        string    `json:"code,omitempty"`
	Explanation string    `json:"explanation"`
	RepliedAt   time.Time `json:"repliedAt"`
}

// TicketResponse is the public view of a ticket.
type TicketResponse struct {
	ID            string           `json:"id"`
	Title         string           `json:"title"`
	Description   string           `json:"description"`
	Status        string           `json:"status"`
	Priority      string           `json:"priority,omitempty"`
	CreatedBy     UserRefResponse  `json:"createdBy"`
	AssignedTo    *UserRefResponse `json:"assignedTo,omitempty"`
	Deadline      time.Time        `json:"deadline"`
	HelpfulNotes  string           `json:"helpfulNotes,omitempty"`
	RelatedSkills []string         `json:"relatedSkills"`
	Reply         *ReplyResponse   `json:"reply,omitempty"`
	CreatedAt     time.Time        `json:"createdAt"`
	UpdatedAt     time.Time        `json:"updatedAt"`
}

// NewTicketResponse maps the domain model. Related skills coalesce through
// the legacy alias so old rows still render their skill list.
func NewTicketResponse(ticket *domain.Ticket) TicketResponse {
	resp := TicketResponse{
		ID:            ticket.ID,
		Title:         ticket.Title,
		Description:   ticket.Description,
		Status:        string(ticket.Status),
		Priority:      string(ticket.Priority),
		CreatedBy:     newUserRefResponse(ticket.CreatedBy),
		Deadline:      ticket.Deadline,
		HelpfulNotes:  ticket.HelpfulNotes,
		RelatedSkills: ticket.Skills(),
		CreatedAt:     ticket.CreatedAt,
		UpdatedAt:     ticket.UpdatedAt,
	}
	if ticket.AssignedTo != nil {
		ref := newUserRefResponse(*ticket.AssignedTo)
		resp.AssignedTo = &ref
	}
	if ticket.Reply != nil {
		resp.Reply = &ReplyResponse{
			Code:        ticket.Reply.Code,
			Explanation: ticket.Reply.Explanation,
			RepliedAt:   ticket.Reply.RepliedAt,
		}
	}
	return resp
}

// NewTicketResponses maps a slice.
func NewTicketResponses(tickets []domain.Ticket) []TicketResponse {
	out := make([]TicketResponse, 0, len(tickets))
	for i := range tickets {
		out = append(out, NewTicketResponse(&tickets[i]))
	}
	return out
}

func newUserRefResponse(ref domain.UserRef) UserRefResponse {
	if !ref.Populated() {
		return UserRefResponse{ID: ref.ID}
	}
	return UserRefResponse{ID: ref.ID, Name: ref.Name, Email: ref.Email}
}
