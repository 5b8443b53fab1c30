package triage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-triage/internal/domain"
	"github.com/spec-kit/helpdesk-triage/internal/observability"
	"github.com/spec-kit/helpdesk-triage/internal/workflow"
	apperrors "github.com/spec-kit/helpdesk-triage/pkg/util/errorutil"
)

// TriageUpdate is the write applied after classification and blending.
type TriageUpdate struct {
	Priority      domain.Priority
	HelpfulNotes  string
	RelatedSkills []string
	Status        domain.TicketStatus
}

// TicketStore is the slice of ticket persistence the pipeline needs. All
// writes are single-document updates scoped by ticket id; reads must observe
// prior writes within the same run. Missing tickets surface as pgx.ErrNoRows.
type TicketStore interface {
	GetWithCreator(ctx context.Context, id string) (*domain.Ticket, error)
	SetStatus(ctx context.Context, id string, status domain.TicketStatus) error
	ApplyTriage(ctx context.Context, id string, update TriageUpdate) error
	SetAssignee(ctx context.Context, id string, assigneeID *string) error
}

// Notifier delivers the assignment email. Failures are the caller's to
// swallow; the pipeline never lets them fail a run.
type Notifier interface {
	NotifyAssignment(ctx context.Context, assignee domain.User, ticket *domain.Ticket) error
}

// RunRecorder persists per-step audit records of a workflow run.
type RunRecorder interface {
	Record(ctx context.Context, runID, ticketID, step, outcome string, attempt int, detail string)
}

// Pipeline is the six-step triage workflow for a single ticket. Each step is
// independently retried and memoized per run; all ticket data is re-read from
// storage at each step rather than carried in memory across process
// boundaries.
type Pipeline struct {
	tickets    TicketStore
	classifier *Classifier
	selector   *Selector
	notifier   Notifier
	recorder   RunRecorder
	metrics    *observability.Metrics
	logger     *zap.Logger

	retries int
	backoff time.Duration
	now     func() time.Time
}

// PipelineDependencies bundles the pipeline's collaborators.
type PipelineDependencies struct {
	Tickets    TicketStore
	Classifier *Classifier
	Selector   *Selector
	Notifier   Notifier
	Recorder   RunRecorder
	Metrics    *observability.Metrics
	Logger     *zap.Logger
	Retries    int
	Backoff    time.Duration
	Now        func() time.Time
}

// NewPipeline constructs the workflow.
func NewPipeline(deps PipelineDependencies) *Pipeline {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &Pipeline{
		tickets:    deps.Tickets,
		classifier: deps.Classifier,
		selector:   deps.Selector,
		notifier:   deps.Notifier,
		recorder:   deps.Recorder,
		metrics:    deps.Metrics,
		logger:     logger,
		retries:    deps.Retries,
		backoff:    deps.Backoff,
		now:        now,
	}
}

// Run triages one ticket. It is fired once per ticket creation, carrying only
// the ticket id. Steps 1-5 propagate failure after exhausting the retry
// budget; step 6 is best-effort and never fails the run.
func (p *Pipeline) Run(ctx context.Context, ticketID string) error {
	runID := uuid.NewString()
	logger := p.logger.With(zap.String("ticket_id", ticketID), zap.String("run_id", runID))

	runner := workflow.NewRunner(p.retries, p.backoff, logger)
	if p.recorder != nil || p.metrics != nil {
		runner.Observe = func(step, outcome string, attempt int, err error) {
			p.metrics.RecordStep(step, outcome)
			if p.recorder == nil {
				return
			}
			detail := ""
			if err != nil {
				detail = err.Error()
			}
			p.recorder.Record(ctx, runID, ticketID, step, outcome, attempt, detail)
		}
	}

	// 1) Load the ticket with its creator populated. A missing ticket is a
	// permanent precondition violation, not a transient fault.
	ticket, err := workflow.Step(ctx, runner, "get-ticket-details", func(ctx context.Context) (*domain.Ticket, error) {
		t, err := p.tickets.GetWithCreator(ctx, ticketID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, workflow.NonRetriable(apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID}))
			}
			return nil, err
		}
		return t, nil
	})
	if err != nil {
		return err
	}

	// 2) Reaffirm the initial TODO status.
	if _, err := workflow.Step(ctx, runner, "update-ticket-status", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, p.tickets.SetStatus(ctx, ticketID, domain.TicketStatusTodo)
	}); err != nil {
		return err
	}

	// 3) Classify. The journal memoizes the verdict, so retries of later
	// steps never re-invoke the classifier within this run.
	verdict, err := workflow.Step(ctx, runner, "analyze-ticket", func(ctx context.Context) (*Verdict, error) {
		return p.classifier.Analyze(ctx, ticket.Title, ticket.Description)
	})
	if err != nil {
		return err
	}

	// 4) Blend classifier priority with the deterministic rule overlay and
	// persist the triage result. Deterministic overwrite: replayable.
	if _, err := workflow.Step(ctx, runner, "persist-triage-results", func(ctx context.Context) (struct{}, error) {
		ruleBased := RulePriority(ticket.Title, ticket.Description, ticket.Deadline, p.now())
		final := PickHigher(verdict.Priority, ruleBased)
		return struct{}{}, p.tickets.ApplyTriage(ctx, ticketID, TriageUpdate{
			Priority:      final,
			HelpfulNotes:  verdict.HelpfulNotes,
			RelatedSkills: verdict.RelatedSkills,
			Status:        domain.TicketStatusInProgress,
		})
	}); err != nil {
		return err
	}

	// 5) Choose an assignee from the classified skills. No candidate is not
	// an error: the ticket stays unassigned.
	assignee, err := workflow.Step(ctx, runner, "assign-moderator", func(ctx context.Context) (*domain.User, error) {
		mod, err := p.selector.SelectAssignee(ctx, verdict.RelatedSkills)
		if err != nil {
			return nil, err
		}
		var assigneeID *string
		if mod != nil {
			assigneeID = &mod.ID
		}
		if err := p.tickets.SetAssignee(ctx, ticketID, assigneeID); err != nil {
			return nil, err
		}
		return mod, nil
	})
	if err != nil {
		return err
	}

	// 6) Notify the assignee. Best-effort: failures are logged and swallowed,
	// the ticket is already triaged and assigned.
	_, _ = workflow.Step(ctx, runner, "send-email-notification", func(ctx context.Context) (struct{}, error) {
		if assignee == nil {
			return struct{}{}, nil
		}
		fresh, err := p.tickets.GetWithCreator(ctx, ticketID)
		if err != nil {
			logger.Warn("notification skipped: re-fetch failed", zap.Error(err))
			return struct{}{}, nil
		}
		if err := p.notifier.NotifyAssignment(ctx, *assignee, fresh); err != nil {
			logger.Warn("notification failed", zap.String("assignee", assignee.Email), zap.Error(err))
		}
		return struct{}{}, nil
	})

	logger.Info("triage completed")
	return nil
}
