package agent

import (
	"context"
	"strings"

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
}

// NewPostgres returns a ReadWriter backed by Postgres.
func NewPostgres(pool *pgxpool.Pool, log *zap.SugaredLogger) ReadWriter {
	return &postgresRepo{pool: pool, logger: logger.OrNop(log)}
}

const columns = `id::text, owner_id::text, name, phone, coalesce(area, ''), coalesce(login_id, ''), created_at, updated_at`

func (r *postgresRepo) List(ctx context.Context, ownerID string) ([]domain.DeliveryAgent, error) {
	const q = `
SELECT ` + columns + `
FROM delivery_agents
WHERE ($1 = '' OR owner_id::text = $1)
ORDER BY name ASC
`
	rows, err := r.pool.Query(ctx, q, ownerID)
	if err != nil {
		return nil, repository.MapPgError(err)
	}
	defer rows.Close()

	out := make([]domain.DeliveryAgent, 0)
	for rows.Next() {
		a, err := r.scanAgent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, repository.MapPgError(err)
	}
	return out, nil
}

func (r *postgresRepo) FindByNamePhone(ctx context.Context, name, phone string) (*domain.DeliveryAgent, error) {
	const q = `
SELECT ` + columns + `
FROM delivery_agents
WHERE name = $1 AND phone = $2
LIMIT 1
`
	return r.scanAgent(r.pool.QueryRow(ctx, q, strings.TrimSpace(name), strings.TrimSpace(phone)))
}

func (r *postgresRepo) Upsert(ctx context.Context, a domain.DeliveryAgent) (*domain.DeliveryAgent, error) {
	const q = `
INSERT INTO delivery_agents (owner_id, name, phone, area, login_id)
VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''))
ON CONFLICT (owner_id, phone) DO UPDATE
SET name = EXCLUDED.name,
    area = EXCLUDED.area,
    login_id = EXCLUDED.login_id,
    updated_at = now()
RETURNING ` + columns
	return r.scanAgent(r.pool.QueryRow(ctx, q,
		a.OwnerID,
		strings.TrimSpace(a.Name),
		strings.TrimSpace(a.Phone),
		a.Area,
		a.LoginID,
	))
}

func (r *postgresRepo) scanAgent(row pgx.Row) (*domain.DeliveryAgent, error) {
	var a domain.DeliveryAgent
	if err := row.Scan(&a.ID, &a.OwnerID, &a.Name, &a.Phone, &a.Area, &a.LoginID, &a.CreatedAt, &a.UpdatedAt); err != nil {
		mapped := repository.MapPgError(err)
		if mapped != domain.ErrNotFound {
			r.logger.Errorw("agent repo: scan error", "err", err)
		}
		return nil, mapped
	}
	return &a, nil
}
