package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-triage/internal/domain"
	"github.com/spec-kit/helpdesk-triage/internal/queue"
	"github.com/spec-kit/helpdesk-triage/internal/triage"
	apperrors "github.com/spec-kit/helpdesk-triage/pkg/util/errorutil"
)

type fakeTicketRepo struct {
	tickets map[string]*domain.Ticket
}

func newFakeTicketRepo() *fakeTicketRepo {
	return &fakeTicketRepo{tickets: make(map[string]*domain.Ticket)}
}

func (f *fakeTicketRepo) Create(_ context.Context, t *domain.Ticket) error {
	t.ID = uuid.New().String()
	t.CreatedAt = time.Now()
	t.UpdatedAt = t.CreatedAt
	clone := *t
	f.tickets[t.ID] = &clone
	return nil
}

func (f *fakeTicketRepo) GetWithCreator(_ context.Context, id string) (*domain.Ticket, error) {
	t, ok := f.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	clone := *t
	return &clone, nil
}

func (f *fakeTicketRepo) ListByCreator(_ context.Context, userID string) ([]domain.Ticket, error) {
	var out []domain.Ticket
	for _, t := range f.tickets {
		if t.CreatedBy.ID == userID {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (f *fakeTicketRepo) ListByAssignee(_ context.Context, userID string) ([]domain.Ticket, error) {
	var out []domain.Ticket
	for _, t := range f.tickets {
		if t.AssignedTo != nil && t.AssignedTo.ID == userID {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (f *fakeTicketRepo) ListAll(_ context.Context) ([]domain.Ticket, error) {
	var out []domain.Ticket
	for _, t := range f.tickets {
		out = append(out, *t)
	}
	return out, nil
}

func (f *fakeTicketRepo) SetStatus(_ context.Context, id string, status domain.TicketStatus) error {
	t, ok := f.tickets[id]
	if !ok {
		return pgx.ErrNoRows
	}
	t.Status = status
	return nil
}

func (f *fakeTicketRepo) ApplyTriage(_ context.Context, id string, update triage.TriageUpdate) error {
	t, ok := f.tickets[id]
	if !ok {
		return pgx.ErrNoRows
	}
	t.Priority = update.Priority
	t.HelpfulNotes = update.HelpfulNotes
	t.RelatedSkills = update.RelatedSkills
	t.Status = update.Status
	return nil
}

func (f *fakeTicketRepo) SetAssignee(_ context.Context, id string, assigneeID *string) error {
	t, ok := f.tickets[id]
	if !ok {
		return pgx.ErrNoRows
	}
	if assigneeID == nil {
		t.AssignedTo = nil
	} else {
		ref := domain.RefFromID(*assigneeID)
		t.AssignedTo = &ref
	}
	return nil
}

func (f *fakeTicketRepo) SetReply(_ context.Context, id string, reply domain.ModeratorReply) (*domain.Ticket, error) {
	t, ok := f.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	r := reply
	t.Reply = &r
	t.Status = domain.TicketStatusCompleted
	clone := *t
	return &clone, nil
}

type fakePublisher struct {
	published []queue.Message
	err       error
}

func (f *fakePublisher) Publish(_ context.Context, msg queue.Message) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, msg)
	return nil
}

var fixedNow = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

func newTestTicketService(repo *fakeTicketRepo, pub *fakePublisher) *TicketService {
	return NewTicketService(TicketDependencies{
		TicketRepo:    repo,
		Publisher:     pub,
		Notifications: newTestNotifications(&fakeMailer{}, ""),
		Logger:        zap.NewNop(),
		Now:           func() time.Time { return fixedNow },
	})
}

func domainErrCode(t *testing.T, err error) string {
	t.Helper()
	if err == nil {
		t.Fatal("expected error")
	}
	return apperrors.ToDomainError(err).Code
}

func TestCreateDefaultsDeadlineAndEnqueues(t *testing.T) {
	repo := newFakeTicketRepo()
	pub := &fakePublisher{}
	svc := newTestTicketService(repo, pub)

	creator := &domain.User{ID: "u1", Name: "Alice", Email: "alice@example.com", Role: domain.RoleUser}
	ticket, err := svc.Create(context.Background(), creator, TicketCreateInput{
		Title:       "Broken login",
		Description: "Cannot sign in",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if ticket.Status != domain.TicketStatusTodo {
		t.Errorf("status = %s, want TODO", ticket.Status)
	}
	if want := fixedNow.Add(7 * 24 * time.Hour); !ticket.Deadline.Equal(want) {
		t.Errorf("deadline = %v, want %v", ticket.Deadline, want)
	}
	if len(pub.published) != 1 {
		t.Fatalf("expected 1 queued event, got %d", len(pub.published))
	}
	msg := pub.published[0]
	if msg.Name != queue.EventTicketCreated || msg.TicketID != ticket.ID {
		t.Errorf("queued %+v", msg)
	}
}

func TestCreateExplicitDeadlineKept(t *testing.T) {
	repo := newFakeTicketRepo()
	svc := newTestTicketService(repo, &fakePublisher{})

	deadline := fixedNow.Add(48 * time.Hour)
	creator := &domain.User{ID: "u1", Role: domain.RoleUser}
	ticket, err := svc.Create(context.Background(), creator, TicketCreateInput{
		Title:       "Broken login",
		Description: "Cannot sign in",
		Deadline:    &deadline,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if !ticket.Deadline.Equal(deadline) {
		t.Errorf("deadline = %v, want %v", ticket.Deadline, deadline)
	}
}

func TestCreateSurvivesEnqueueFailure(t *testing.T) {
	repo := newFakeTicketRepo()
	pub := &fakePublisher{err: context.DeadlineExceeded}
	svc := newTestTicketService(repo, pub)

	creator := &domain.User{ID: "u1", Role: domain.RoleUser}
	ticket, err := svc.Create(context.Background(), creator, TicketCreateInput{
		Title:       "Broken login",
		Description: "Cannot sign in",
	})
	if err != nil {
		t.Fatalf("Create should not fail on enqueue error: %v", err)
	}
	if _, ok := repo.tickets[ticket.ID]; !ok {
		t.Error("ticket was not persisted")
	}
}

func TestGetHidesForeignTicketsFromBaseUsers(t *testing.T) {
	repo := newFakeTicketRepo()
	svc := newTestTicketService(repo, &fakePublisher{})

	owner := &domain.User{ID: "u1", Role: domain.RoleUser}
	ticket, err := svc.Create(context.Background(), owner, TicketCreateInput{Title: "t", Description: "d"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	stranger := &domain.User{ID: "u2", Role: domain.RoleUser}
	if _, err := svc.Get(context.Background(), stranger, ticket.ID); domainErrCode(t, err) != "NOT_FOUND" {
		t.Errorf("foreign read error code = %s, want NOT_FOUND", domainErrCode(t, err))
	}

	moderator := &domain.User{ID: "m1", Role: domain.RoleModerator}
	if _, err := svc.Get(context.Background(), moderator, ticket.ID); err != nil {
		t.Errorf("moderator read failed: %v", err)
	}
}

func TestReplyRequiresAssignment(t *testing.T) {
	repo := newFakeTicketRepo()
	svc := newTestTicketService(repo, &fakePublisher{})

	owner := &domain.User{ID: "u1", Role: domain.RoleUser}
	ticket, err := svc.Create(context.Background(), owner, TicketCreateInput{Title: "t", Description: "d"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	assigneeID := "m1"
	if err := repo.SetAssignee(context.Background(), ticket.ID, &assigneeID); err != nil {
		t.Fatalf("SetAssignee: %v", err)
	}

	other := &domain.User{ID: "m2", Role: domain.RoleModerator}
	if _, err := svc.Reply(context.Background(), other, ticket.ID, ReplyInput{Explanation: "done"}); domainErrCode(t, err) != "FORBIDDEN" {
		t.Errorf("unassigned moderator reply code = %s, want FORBIDDEN", domainErrCode(t, err))
	}

	assignee := &domain.User{ID: "m1", Role: domain.RoleModerator}
	updated, err := svc.Reply(context.Background(), assignee, ticket.ID, ReplyInput{Code: "fix", Explanation: "done"})
	if err != nil {
		t.Fatalf("assignee reply failed: %v", err)
	}
	if updated.Status != domain.TicketStatusCompleted {
		t.Errorf("status = %s, want COMPLETED", updated.Status)
	}
	if updated.Reply == nil || updated.Reply.Explanation != "done" {
		t.Errorf("reply not recorded: %+v", updated.Reply)
	}

	admin := &domain.User{ID: "a1", Role: domain.RoleAdmin}
	if _, err := svc.Reply(context.Background(), admin, ticket.ID, ReplyInput{Explanation: "override"}); err != nil {
		t.Errorf("admin reply failed: %v", err)
	}
}

func TestListScopesByRole(t *testing.T) {
	repo := newFakeTicketRepo()
	svc := newTestTicketService(repo, &fakePublisher{})

	alice := &domain.User{ID: "u1", Role: domain.RoleUser}
	bob := &domain.User{ID: "u2", Role: domain.RoleUser}
	for _, creator := range []*domain.User{alice, alice, bob} {
		if _, err := svc.Create(context.Background(), creator, TicketCreateInput{Title: "t", Description: "d"}); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	own, err := svc.List(context.Background(), alice)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(own) != 2 {
		t.Errorf("base user sees %d tickets, want 2", len(own))
	}

	all, err := svc.List(context.Background(), &domain.User{ID: "m1", Role: domain.RoleModerator})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("moderator sees %d tickets, want 3", len(all))
	}
}
