// Package worker runs the background side of the service: a small pool of
// goroutines draining the Redis queue and dispatching each event to its
// workflow.
package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-triage/internal/domain"
	"github.com/spec-kit/helpdesk-triage/internal/observability"
	"github.com/spec-kit/helpdesk-triage/internal/queue"
	"github.com/spec-kit/helpdesk-triage/internal/repository"
	"github.com/spec-kit/helpdesk-triage/internal/service"
	"github.com/spec-kit/helpdesk-triage/internal/triage"
	"github.com/spec-kit/helpdesk-triage/internal/workflow"
	apperrors "github.com/spec-kit/helpdesk-triage/pkg/util/errorutil"
)

const receiveTimeout = 5 * time.Second

// Worker drains the triage event queue.
type Worker struct {
	queue         *queue.Queue
	pipeline      *triage.Pipeline
	users         repository.UserRepository
	notifications *service.NotificationService
	metrics       *observability.Metrics
	logger        *zap.Logger
	concurrency   int
	retries       int
	backoff       time.Duration
}

// Dependencies bundles collaborators for the worker.
type Dependencies struct {
	Queue         *queue.Queue
	Pipeline      *triage.Pipeline
	UserRepo      repository.UserRepository
	Notifications *service.NotificationService
	Metrics       *observability.Metrics
	Logger        *zap.Logger
	Concurrency   int
	Retries       int
	Backoff       time.Duration
}

func New(deps Dependencies) *Worker {
	concurrency := deps.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Worker{
		queue:         deps.Queue,
		pipeline:      deps.Pipeline,
		users:         deps.UserRepo,
		notifications: deps.Notifications,
		metrics:       deps.Metrics,
		logger:        deps.Logger,
		concurrency:   concurrency,
		retries:       deps.Retries,
		backoff:       deps.Backoff,
	}
}

// Run consumes the queue until ctx is cancelled, then waits for in-flight
// events to finish.
func (w *Worker) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for i := 0; i < w.concurrency; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			w.consume(ctx, id)
		}(i)
	}
	wg.Wait()
}

func (w *Worker) consume(ctx context.Context, id int) {
	logger := w.logger.With(zap.Int("consumer", id))
	for {
		if ctx.Err() != nil {
			return
		}
		msg, err := w.queue.Receive(ctx, receiveTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Warn("queue receive failed", zap.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}
		if msg == nil {
			continue
		}
		w.dispatch(ctx, logger, msg)
	}
}

func (w *Worker) dispatch(ctx context.Context, logger *zap.Logger, msg *queue.Message) {
	logger = logger.With(zap.String("event", msg.Name), zap.String("message_id", msg.ID))

	var err error
	switch msg.Name {
	case queue.EventTicketCreated:
		err = w.pipeline.Run(ctx, msg.TicketID)
	case queue.EventUserSignedUp:
		err = w.handleSignup(ctx, msg.Email)
	default:
		logger.Warn("unknown event dropped")
		w.metrics.RecordRun(msg.Name, "dropped")
		return
	}

	if err != nil {
		logger.Error("event handling failed", zap.Error(err))
		w.metrics.RecordRun(msg.Name, "failed")
		return
	}
	w.metrics.RecordRun(msg.Name, "ok")
}

// handleSignup sends the welcome email through the same step runner the
// triage pipeline uses, so transient SMTP hiccups get the retry budget.
func (w *Worker) handleSignup(ctx context.Context, email string) error {
	runner := workflow.NewRunner(w.retries, w.backoff, w.logger)

	user, err := workflow.Step(ctx, runner, "get-user-details", func(ctx context.Context) (*domain.User, error) {
		u, err := w.users.GetByEmail(ctx, email)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, workflow.NonRetriable(apperrors.NewNotFound("user", map[string]any{"email": email}))
			}
			return nil, err
		}
		return u, nil
	})
	if err != nil {
		return err
	}

	_, err = workflow.Step(ctx, runner, "send-welcome-email", func(ctx context.Context) (any, error) {
		return nil, w.notifications.SendWelcome(ctx, *user)
	})
	return err
}
