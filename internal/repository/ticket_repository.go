package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/helpdesk-triage/internal/domain"
	"github.com/spec-kit/helpdesk-triage/internal/triage"
)

// TicketRepository encapsulates ticket persistence. Get* methods return
// pgx.ErrNoRows for missing tickets; every read populates the creator and
// assignee references from the users table.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	GetWithCreator(ctx context.Context, id string) (*domain.Ticket, error)
	ListByCreator(ctx context.Context, userID string) ([]domain.Ticket, error)
	ListByAssignee(ctx context.Context, userID string) ([]domain.Ticket, error)
	ListAll(ctx context.Context) ([]domain.Ticket, error)
	SetStatus(ctx context.Context, id string, status domain.TicketStatus) error
	ApplyTriage(ctx context.Context, id string, update triage.TriageUpdate) error
	SetAssignee(ctx context.Context, id string, assigneeID *string) error
	SetReply(ctx context.Context, id string, reply domain.ModeratorReply) (*domain.Ticket, error)
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates the Postgres-backed repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

const ticketColumns = `
        t.id, t.title, t.description, t.status, t.priority,
        t.deadline, t.helpful_notes, t.related_skills, t.skills,
        t.reply_code, t.reply_explanation, t.replied_at,
        t.created_at, t.updated_at,
        t.created_by, cu.name, cu.email,
        t.assigned_to, au.name, au.email`

const ticketJoin = `
        FROM tickets t
        JOIN users cu ON cu.id = t.created_by
        LEFT JOIN users au ON au.id = t.assigned_to`

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (title, description, status, priority, created_by, assigned_to, deadline, related_skills)
        VALUES ($1,$2,$3,NULLIF($4,''),$5,$6,$7,$8)
        RETURNING id, created_at, updated_at`

	var assignedTo *string
	if ticket.AssignedTo != nil {
		assignedTo = &ticket.AssignedTo.ID
	}
	return r.pool.QueryRow(ctx, query,
		ticket.Title,
		ticket.Description,
		ticket.Status,
		string(ticket.Priority),
		ticket.CreatedBy.ID,
		assignedTo,
		ticket.Deadline,
		ticket.RelatedSkills,
	).Scan(&ticket.ID, &ticket.CreatedAt, &ticket.UpdatedAt)
}

func (r *ticketRepository) GetWithCreator(ctx context.Context, id string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ticketJoin + ` WHERE t.id=$1`
	row := r.pool.QueryRow(ctx, query, id)
	return scanTicket(row)
}

func (r *ticketRepository) ListByCreator(ctx context.Context, userID string) ([]domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ticketJoin + ` WHERE t.created_by=$1 ORDER BY t.created_at DESC`
	return r.queryTickets(ctx, query, userID)
}

func (r *ticketRepository) ListByAssignee(ctx context.Context, userID string) ([]domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ticketJoin + ` WHERE t.assigned_to=$1 ORDER BY t.created_at DESC`
	return r.queryTickets(ctx, query, userID)
}

func (r *ticketRepository) ListAll(ctx context.Context) ([]domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ticketJoin + ` ORDER BY t.created_at DESC`
	return r.queryTickets(ctx, query)
}

func (r *ticketRepository) SetStatus(ctx context.Context, id string, status domain.TicketStatus) error {
	const query = `UPDATE tickets SET status=$1, updated_at=NOW() WHERE id=$2`
	cmd, err := r.pool.Exec(ctx, query, status, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *ticketRepository) ApplyTriage(ctx context.Context, id string, update triage.TriageUpdate) error {
	const query = `
        UPDATE tickets
        SET priority=$1, helpful_notes=$2, related_skills=$3, status=$4, updated_at=NOW()
        WHERE id=$5`
	skills := update.RelatedSkills
	if skills == nil {
		skills = []string{}
	}
	cmd, err := r.pool.Exec(ctx, query, string(update.Priority), update.HelpfulNotes, skills, update.Status, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *ticketRepository) SetAssignee(ctx context.Context, id string, assigneeID *string) error {
	const query = `UPDATE tickets SET assigned_to=$1, updated_at=NOW() WHERE id=$2`
	cmd, err := r.pool.Exec(ctx, query, assigneeID, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *ticketRepository) SetReply(ctx context.Context, id string, reply domain.ModeratorReply) (*domain.Ticket, error) {
	const query = `
        UPDATE tickets
        SET reply_code=$1, reply_explanation=$2, replied_at=$3, status=$4, updated_at=NOW()
        WHERE id=$5`
	cmd, err := r.pool.Exec(ctx, query, reply.Code, reply.Explanation, reply.RepliedAt, domain.TicketStatusCompleted, id)
	if err != nil {
		return nil, err
	}
	if cmd.RowsAffected() == 0 {
		return nil, pgx.ErrNoRows
	}
	return r.GetWithCreator(ctx, id)
}

func (r *ticketRepository) queryTickets(ctx context.Context, query string, args ...any) ([]domain.Ticket, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Ticket
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *ticket)
	}
	return result, rows.Err()
}

func scanTicket(row pgx.Row) (*domain.Ticket, error) {
	var (
		ticket           domain.Ticket
		priority         *string
		replyCode        *string
		replyExplanation *string
		repliedAt        *time.Time
		creatorID        string
		creatorName      string
		creatorEmail     string
		assigneeID       *string
		assigneeName     *string
		assigneeEmail    *string
	)
	if err := row.Scan(
		&ticket.ID,
		&ticket.Title,
		&ticket.Description,
		&ticket.Status,
		&priority,
		&ticket.Deadline,
		&ticket.HelpfulNotes,
		&ticket.RelatedSkills,
		&ticket.LegacySkills,
		&replyCode,
		&replyExplanation,
		&repliedAt,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
		&creatorID,
		&creatorName,
		&creatorEmail,
		&assigneeID,
		&assigneeName,
		&assigneeEmail,
	); err != nil {
		return nil, err
	}

	if priority != nil {
		ticket.Priority = domain.Priority(*priority)
	}
	ticket.CreatedBy = domain.RefFromUser(creatorID, creatorName, creatorEmail)
	if assigneeID != nil {
		ref := domain.RefFromID(*assigneeID)
		if assigneeName != nil && assigneeEmail != nil {
			ref = domain.RefFromUser(*assigneeID, *assigneeName, *assigneeEmail)
		}
		ticket.AssignedTo = &ref
	}
	if repliedAt != nil {
		reply := domain.ModeratorReply{RepliedAt: *repliedAt}
		if replyCode != nil {
			reply.Code = *replyCode
		}
		if replyExplanation != nil {
			reply.Explanation = *replyExplanation
		}
		ticket.Reply = &reply
	}
	return &ticket, nil
}
