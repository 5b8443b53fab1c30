package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-triage/internal/domain"
	"github.com/spec-kit/helpdesk-triage/internal/queue"
	"github.com/spec-kit/helpdesk-triage/internal/repository"
	apperrors "github.com/spec-kit/helpdesk-triage/pkg/util/errorutil"
)

// TicketService coordinates ticket workflows on the HTTP side of the
// queue: creation, role-scoped reads, and moderator replies. Triage itself
// runs in the background worker.
type TicketService struct {
	tickets       repository.TicketRepository
	publisher     queue.Publisher
	notifications *NotificationService
	logger        *zap.Logger
	now           func() time.Time
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	TicketRepo    repository.TicketRepository
	Publisher     queue.Publisher
	Notifications *NotificationService
	Logger        *zap.Logger
	Now           func() time.Time
}

func NewTicketService(deps TicketDependencies) *TicketService {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &TicketService{
		tickets:       deps.TicketRepo,
		publisher:     deps.Publisher,
		notifications: deps.Notifications,
		logger:        deps.Logger,
		now:           now,
	}
}

// TicketCreateInput describes the ticket creation payload. Priority is
// optional; triage replaces it with the blended verdict once it runs.
type TicketCreateInput struct {
	Title       string
	Description string
	Priority    string
	Deadline    *time.Time
}

// Create persists a new ticket in TODO and enqueues it for triage. A
// failed enqueue does not fail creation; the ticket simply stays in TODO
// until re-enqueued.
func (s *TicketService) Create(ctx context.Context, creator *domain.User, input TicketCreateInput) (*domain.Ticket, error) {
	title := strings.TrimSpace(input.Title)
	description := strings.TrimSpace(input.Description)
	if title == "" || description == "" {
		return nil, apperrors.NewValidationError("title and description are required", nil)
	}

	var priority domain.Priority
	if input.Priority != "" {
		parsed, ok := domain.ParsePriority(input.Priority)
		if !ok {
			return nil, apperrors.NewValidationError("unknown priority", map[string]any{"priority": input.Priority})
		}
		priority = parsed
	}

	deadline := domain.DefaultDeadline(s.now())
	if input.Deadline != nil && !input.Deadline.IsZero() {
		deadline = *input.Deadline
	}

	ticket := &domain.Ticket{
		Title:       title,
		Description: description,
		Status:      domain.TicketStatusTodo,
		Priority:    priority,
		CreatedBy:   domain.RefFromUser(creator.ID, creator.Name, creator.Email),
		Deadline:    deadline,
	}
	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, apperrors.MapError(err)
	}

	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, queue.Message{Name: queue.EventTicketCreated, TicketID: ticket.ID}); err != nil {
			s.logger.Warn("failed to enqueue ticket for triage",
				zap.String("ticket_id", ticket.ID), zap.Error(err))
		}
	}

	return ticket, nil
}

// List returns the tickets the caller may see: their own for base users,
// everything for moderators and admins.
func (s *TicketService) List(ctx context.Context, caller *domain.User) ([]domain.Ticket, error) {
	var (
		tickets []domain.Ticket
		err     error
	)
	if caller.Role.Elevated() {
		tickets, err = s.tickets.ListAll(ctx)
	} else {
		tickets, err = s.tickets.ListByCreator(ctx, caller.ID)
	}
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return tickets, nil
}

// ListAssigned returns the tickets currently assigned to the caller.
func (s *TicketService) ListAssigned(ctx context.Context, caller *domain.User) ([]domain.Ticket, error) {
	tickets, err := s.tickets.ListByAssignee(ctx, caller.ID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return tickets, nil
}

// Get loads a single ticket. Base users only see their own tickets; a
// foreign id reads as not found rather than forbidden.
func (s *TicketService) Get(ctx context.Context, caller *domain.User, id string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetWithCreator(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"id": id})
		}
		return nil, apperrors.MapError(err)
	}
	if !caller.Role.Elevated() && ticket.CreatedBy.ID != caller.ID {
		return nil, apperrors.NewNotFound("ticket", map[string]any{"id": id})
	}
	return ticket, nil
}

// ReplyInput describes a moderator's resolution.
type ReplyInput struct {
	Code        string
	Explanation string
}

// Reply records the assignee's resolution, completes the ticket and sends
// the reply notification best-effort.
func (s *TicketService) Reply(ctx context.Context, caller *domain.User, ticketID string, input ReplyInput) (*domain.Ticket, error) {
	if strings.TrimSpace(input.Explanation) == "" {
		return nil, apperrors.NewValidationError("explanation is required", nil)
	}

	ticket, err := s.tickets.GetWithCreator(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"id": ticketID})
		}
		return nil, apperrors.MapError(err)
	}

	// Moderators reply only to their own queue; admins may reply anywhere.
	if caller.Role != domain.RoleAdmin {
		if ticket.AssignedTo == nil || ticket.AssignedTo.ID != caller.ID {
			return nil, apperrors.NewForbidden("ticket is not assigned to you")
		}
	}

	reply := domain.ModeratorReply{
		Code:        input.Code,
		Explanation: input.Explanation,
		RepliedAt:   s.now().UTC(),
	}
	updated, err := s.tickets.SetReply(ctx, ticketID, reply)
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	if s.notifications != nil {
		if err := s.notifications.NotifyReply(ctx, updated); err != nil {
			s.logger.Warn("reply notification failed", zap.String("ticket_id", ticketID), zap.Error(err))
		}
	}

	return updated, nil
}
