package worker

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-triage/internal/domain"
	"github.com/spec-kit/helpdesk-triage/internal/mailer"
	"github.com/spec-kit/helpdesk-triage/internal/observability"
	"github.com/spec-kit/helpdesk-triage/internal/queue"
	"github.com/spec-kit/helpdesk-triage/internal/service"
	apperrors "github.com/spec-kit/helpdesk-triage/pkg/util/errorutil"
)

type fakeUserRepo struct {
	users map[string]*domain.User
}

func (f *fakeUserRepo) Create(_ context.Context, _ *domain.User) error { return nil }
func (f *fakeUserRepo) Update(_ context.Context, _ *domain.User) error { return nil }
func (f *fakeUserRepo) List(_ context.Context) ([]domain.User, error)  { return nil, nil }
func (f *fakeUserRepo) ListByRole(_ context.Context, _ domain.Role) ([]domain.User, error) {
	return nil, nil
}
func (f *fakeUserRepo) GetByID(_ context.Context, _ string) (*domain.User, error) {
	return nil, pgx.ErrNoRows
}
func (f *fakeUserRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	u, ok := f.users[email]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	clone := *u
	return &clone, nil
}

type fakeMailer struct {
	sent     []mailer.Message
	failures int
}

func (f *fakeMailer) Send(_ context.Context, msg mailer.Message) error {
	if f.failures > 0 {
		f.failures--
		return errors.New("smtp unavailable")
	}
	f.sent = append(f.sent, msg)
	return nil
}

func newTestWorker(users *fakeUserRepo, fm *fakeMailer) *Worker {
	notifications := service.NewNotificationService(service.NotificationDependencies{
		Mailer:  fm,
		Metrics: observability.NewMetrics(),
		Logger:  zap.NewNop(),
	})
	return New(Dependencies{
		UserRepo:      users,
		Notifications: notifications,
		Metrics:       observability.NewMetrics(),
		Logger:        zap.NewNop(),
		Concurrency:   1,
		Retries:       2,
		Backoff:       time.Millisecond,
	})
}

func TestHandleSignupSendsWelcome(t *testing.T) {
	users := &fakeUserRepo{users: map[string]*domain.User{
		"alice@example.com": {ID: "u1", Name: "Alice", Email: "alice@example.com", Role: domain.RoleUser},
	}}
	fm := &fakeMailer{}
	w := newTestWorker(users, fm)

	if err := w.handleSignup(context.Background(), "alice@example.com"); err != nil {
		t.Fatalf("handleSignup: %v", err)
	}
	if len(fm.sent) != 1 {
		t.Fatalf("expected 1 welcome email, got %d", len(fm.sent))
	}
	if fm.sent[0].To != "alice@example.com" {
		t.Errorf("recipient = %q", fm.sent[0].To)
	}
	if !strings.Contains(fm.sent[0].Text, "Alice") {
		t.Errorf("welcome body does not address the user:\n%s", fm.sent[0].Text)
	}
}

func TestHandleSignupRetriesTransientSMTP(t *testing.T) {
	users := &fakeUserRepo{users: map[string]*domain.User{
		"alice@example.com": {ID: "u1", Name: "Alice", Email: "alice@example.com"},
	}}
	fm := &fakeMailer{failures: 2}
	w := newTestWorker(users, fm)

	if err := w.handleSignup(context.Background(), "alice@example.com"); err != nil {
		t.Fatalf("handleSignup should succeed within the retry budget: %v", err)
	}
	if len(fm.sent) != 1 {
		t.Fatalf("expected 1 welcome email after retries, got %d", len(fm.sent))
	}
}

func TestHandleSignupMissingUserDoesNotRetry(t *testing.T) {
	users := &fakeUserRepo{users: map[string]*domain.User{}}
	fm := &fakeMailer{}
	w := newTestWorker(users, fm)

	err := w.handleSignup(context.Background(), "ghost@example.com")
	if err == nil {
		t.Fatal("expected error for missing user")
	}
	var domainErr *apperrors.DomainError
	if !errors.As(err, &domainErr) || domainErr.Code != "NOT_FOUND" {
		t.Errorf("error = %v, want NOT_FOUND domain error", err)
	}
	if len(fm.sent) != 0 {
		t.Errorf("no email expected, got %d", len(fm.sent))
	}
}

func TestConsumeStopsPromptlyOnCancel(t *testing.T) {
	w := newTestWorker(&fakeUserRepo{users: map[string]*domain.User{}}, &fakeMailer{})
	// A queue with no client fails every receive, driving the back-off path.
	w.queue = queue.New(nil, "triage:events")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.consume(ctx, 0)
		close(done)
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(500 * time.Millisecond):
		t.Fatal("consumer did not stop promptly after cancellation")
	}
}

func TestDispatchUnknownEventDropped(t *testing.T) {
	w := newTestWorker(&fakeUserRepo{users: map[string]*domain.User{}}, &fakeMailer{})

	w.dispatch(context.Background(), zap.NewNop(), &queue.Message{ID: "m1", Name: "bogus/event"})

	snapshot := w.metrics.Snapshot()
	if snapshot["run|bogus/event|dropped"] != 1 {
		t.Errorf("dropped counter missing: %v", snapshot)
	}
}
