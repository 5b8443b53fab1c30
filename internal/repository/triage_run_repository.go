package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// TriageRunRepository records the step-by-step audit trail of triage runs.
// Writes are best-effort: a failed insert must never fail the run itself.
type TriageRunRepository interface {
	Record(ctx context.Context, runID, ticketID, step, outcome string, attempt int, detail string)
}

type triageRunRepository struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

func NewTriageRunRepository(pool *pgxpool.Pool, logger *zap.Logger) TriageRunRepository {
	return &triageRunRepository{pool: pool, logger: logger}
}

func (r *triageRunRepository) Record(ctx context.Context, runID, ticketID, step, outcome string, attempt int, detail string) {
	const query = `
        INSERT INTO triage_runs (run_id, ticket_id, step, outcome, attempt, detail)
        VALUES ($1,$2,$3,$4,$5,$6)`
	if _, err := r.pool.Exec(ctx, query, runID, ticketID, step, outcome, attempt, detail); err != nil {
		r.logger.Warn("failed to record triage step",
			zap.String("run_id", runID),
			zap.String("ticket_id", ticketID),
			zap.String("step", step),
			zap.Error(err))
	}
}
