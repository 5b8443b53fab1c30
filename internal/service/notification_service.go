package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-triage/internal/domain"
	"github.com/spec-kit/helpdesk-triage/internal/mailer"
	"github.com/spec-kit/helpdesk-triage/internal/observability"
)

// NotificationService composes and sends the outbound emails the pipeline
// and ticket workflows produce. Delivery failures are reported to the
// caller, who decides whether they are fatal; they never are today.
type NotificationService struct {
	mailer        mailer.Mailer
	metrics       *observability.Metrics
	logger        *zap.Logger
	replyNotifyTo string
}

// NotificationDependencies bundles collaborators for the service.
type NotificationDependencies struct {
	Mailer        mailer.Mailer
	Metrics       *observability.Metrics
	Logger        *zap.Logger
	ReplyNotifyTo string
}

func NewNotificationService(deps NotificationDependencies) *NotificationService {
	return &NotificationService{
		mailer:        deps.Mailer,
		metrics:       deps.Metrics,
		logger:        deps.Logger,
		replyNotifyTo: deps.ReplyNotifyTo,
	}
}

// NotifyAssignment emails a moderator that a ticket landed on their queue.
func (s *NotificationService) NotifyAssignment(ctx context.Context, assignee domain.User, ticket *domain.Ticket) error {
	body := fmt.Sprintf(
		"A new ticket is assigned to you.\n\nTitle: %s\nDescription: %s\nPriority: %s\nCreated by: %s\n\nPlease review it as soon as possible.",
		ticket.Title, ticket.Description, ticket.Priority, ticket.CreatedBy.Label(),
	)
	err := s.mailer.Send(ctx, mailer.Message{
		To:      assignee.Email,
		Subject: "New Ticket Assigned",
		Text:    body,
	})
	s.record("assignment", err)
	return err
}

// SendWelcome greets a freshly registered user.
func (s *NotificationService) SendWelcome(ctx context.Context, user domain.User) error {
	body := fmt.Sprintf("Hi %s,\n\nThanks for signing up. We're glad to have you onboard!", user.Name)
	err := s.mailer.Send(ctx, mailer.Message{
		To:      user.Email,
		Subject: "Welcome to the app",
		Text:    body,
	})
	s.record("welcome", err)
	return err
}

// NotifyReply sends a moderator's resolution to the ticket creator. When
// the creator reference was not populated the configured fallback inbox is
// used; with neither available the notification is skipped silently.
func (s *NotificationService) NotifyReply(ctx context.Context, ticket *domain.Ticket) error {
	if ticket.Reply == nil {
		return nil
	}
	to := ticket.CreatedBy.Email
	if to == "" {
		to = s.replyNotifyTo
	}
	if to == "" {
		return nil
	}
	body := fmt.Sprintf(
		"Your ticket %q was resolved.\n\nCode:\n%s\n\nExplanation:\n%s",
		ticket.Title, ticket.Reply.Code, ticket.Reply.Explanation,
	)
	err := s.mailer.Send(ctx, mailer.Message{
		To:      to,
		Subject: fmt.Sprintf("Ticket resolved: %s", ticket.Title),
		Text:    body,
	})
	s.record("reply", err)
	return err
}

func (s *NotificationService) record(kind string, err error) {
	outcome := "sent"
	if err != nil {
		outcome = "failed"
		s.logger.Warn("notification delivery failed", zap.String("kind", kind), zap.Error(err))
	}
	if s.metrics != nil {
		s.metrics.RecordNotification(kind, outcome)
	}
}
