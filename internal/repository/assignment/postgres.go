package assignment

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"milk-delivery/internal/domain"
	"milk-delivery/internal/logger"
	"milk-delivery/internal/repository"
)

type postgresRepo struct {
	pool   *pgxpool.Pool
	logger *zap.SugaredLogger
	now    func() time.Time
}

// NewPostgres returns a Repository backed by Postgres.
func NewPostgres(pool *pgxpool.Pool, log *zap.SugaredLogger) Repository {
	return &postgresRepo{pool: pool, logger: logger.OrNop(log), now: time.Now}
}

const fullColumns = `id::text, owner_id::text, customer_id::text, delivery_agent_id::text,
       to_char(date, 'YYYY-MM-DD'), shift, liters::float8, delivered, assigned_at, unassigned_at`

func (r *postgresRepo) List(ctx context.Context, f domain.AssignmentFilter) ([]domain.Assignment, error) {
	return repository.ReadTiered(ctx,
		func(ctx context.Context) ([]domain.Assignment, error) { return r.listFull(ctx, f) },
		func(ctx context.Context) ([]domain.Assignment, error) {
			r.logger.Warnw("assignment repo: falling back to minimal columns", "owner", f.OwnerID)
			rows, err := r.listMinimal(ctx, f)
			if err != nil {
				return nil, err
			}
			return synthesize(rows, r.now(), f), nil
		},
	)
}

func (r *postgresRepo) listFull(ctx context.Context, f domain.AssignmentFilter) ([]domain.Assignment, error) {
	var (
		where []string
		args  []any
	)
	add := func(clause string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}
	if f.OwnerID != "" {
		add("owner_id::text = $%d", f.OwnerID)
	}
	if f.From != "" {
		add("date >= $%d::date", f.From)
	}
	if f.To != "" {
		add("date <= $%d::date", f.To)
	}
	if f.AgentID != "" {
		add("delivery_agent_id::text = $%d", f.AgentID)
	}
	q := `SELECT ` + fullColumns + ` FROM delivery_assignments`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY date ASC, shift ASC, assigned_at ASC"

	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, repository.MapPgError(err)
	}
	defer rows.Close()

	out := make([]domain.Assignment, 0)
	for rows.Next() {
		a, err := scanFull(rows)
		if err != nil {
			return nil, repository.MapPgError(err)
		}
		out = append(out, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, repository.MapPgError(err)
	}
	return out, nil
}

func (r *postgresRepo) listMinimal(ctx context.Context, f domain.AssignmentFilter) ([]domain.Assignment, error) {
	const q = `
SELECT id::text, owner_id::text, customer_id::text, delivery_agent_id::text, assigned_at, unassigned_at
FROM delivery_assignments
WHERE ($1 = '' OR owner_id::text = $1)
  AND ($2 = '' OR delivery_agent_id::text = $2)
ORDER BY assigned_at DESC
`
	rows, err := r.pool.Query(ctx, q, f.OwnerID, f.AgentID)
	if err != nil {
		return nil, repository.MapPgError(err)
	}
	defer rows.Close()

	out := make([]domain.Assignment, 0)
	for rows.Next() {
		var a domain.Assignment
		if err := rows.Scan(&a.ID, &a.OwnerID, &a.CustomerID, &a.DeliveryAgentID, &a.AssignedAt, &a.UnassignedAt); err != nil {
			return nil, repository.MapPgError(err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, repository.MapPgError(err)
	}
	return out, nil
}

func (r *postgresRepo) Insert(ctx context.Context, in domain.NewAssignment) (*domain.Assignment, error) {
	const q = `
INSERT INTO delivery_assignments (owner_id, customer_id, delivery_agent_id, date, shift, liters, delivered)
VALUES ($1, $2, $3, $4::date, $5, $6, $7)
RETURNING ` + fullColumns
	a, err := scanFull(r.pool.QueryRow(ctx, q,
		in.OwnerID, in.CustomerID, in.DeliveryAgentID, in.Date, string(in.Shift), in.Liters, in.Delivered,
	))
	if err != nil {
		r.logger.Errorw("assignment repo: insert failed", "customer", in.CustomerID, "err", err)
		return nil, repository.MapPgError(err)
	}
	return a, nil
}

func (r *postgresRepo) Update(ctx context.Context, id string, patch domain.AssignmentPatch) error {
	if patch.Liters == nil && patch.Delivered == nil {
		return nil
	}
	const q = `
UPDATE delivery_assignments
SET liters = COALESCE($2, liters),
    delivered = COALESCE($3, delivered)
WHERE id::text = $1
`
	cmd, err := r.pool.Exec(ctx, q, id, patch.Liters, patch.Delivered)
	if err != nil {
		return repository.MapPgError(err)
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func scanFull(row pgx.Row) (*domain.Assignment, error) {
	var (
		a     domain.Assignment
		shift string
	)
	if err := row.Scan(
		&a.ID,
		&a.OwnerID,
		&a.CustomerID,
		&a.DeliveryAgentID,
		&a.Date,
		&shift,
		&a.Liters,
		&a.Delivered,
		&a.AssignedAt,
		&a.UnassignedAt,
	); err != nil {
		return nil, err
	}
	a.Shift = domain.Shift(shift)
	return &a, nil
}
