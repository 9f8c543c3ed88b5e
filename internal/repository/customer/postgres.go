package customer

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
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

const fullColumns = `id::text, user_id::text, name, phone, coalesce(address, ''), product, rate::text,
       coalesce(plan, ''), coalesce(plan_type, ''), created_at, updated_at`

const minimalColumns = `id::text, user_id::text, name, phone, coalesce(address, ''), '', '0',
       coalesce(plan, ''), coalesce(plan_type, ''), created_at, updated_at`

func (r *postgresRepo) List(ctx context.Context, ownerID string) ([]domain.Customer, error) {
	return repository.ReadTiered(ctx,
		func(ctx context.Context) ([]domain.Customer, error) { return r.list(ctx, fullColumns, ownerID) },
		func(ctx context.Context) ([]domain.Customer, error) {
			r.logger.Warnw("customer repo: falling back to minimal columns", "owner", ownerID)
			return r.list(ctx, minimalColumns, ownerID)
		},
	)
}

func (r *postgresRepo) list(ctx context.Context, columns, ownerID string) ([]domain.Customer, error) {
	q := `
SELECT ` + columns + `
FROM customers
WHERE ($1 = '' OR user_id::text = $1)
ORDER BY name ASC
`
	rows, err := r.pool.Query(ctx, q, ownerID)
	if err != nil {
		return nil, repository.MapPgError(err)
	}
	defer rows.Close()

	out := make([]domain.Customer, 0)
	for rows.Next() {
		c, err := r.scanCustomer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, repository.MapPgError(err)
	}
	return out, nil
}

func (r *postgresRepo) FindByNamePhone(ctx context.Context, name, phone string) (*domain.Customer, error) {
	q := `
SELECT ` + fullColumns + `
FROM customers
WHERE name = $1 AND phone = $2
LIMIT 1
`
	return r.scanCustomer(r.pool.QueryRow(ctx, q, strings.TrimSpace(name), strings.TrimSpace(phone)))
}

func (r *postgresRepo) Upsert(ctx context.Context, c domain.Customer) (*domain.Customer, error) {
	product := c.Product
	if product == "" {
		product = domain.ProductBuffalo
	}
	planType := c.PlanType
	if planType == "" {
		planType = domain.DefaultPlanType
	}
	q := `
INSERT INTO customers (user_id, name, phone, address, product, rate, plan, plan_type)
VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6::numeric, $7, $8)
ON CONFLICT (user_id, phone) DO UPDATE
SET name = EXCLUDED.name,
    address = EXCLUDED.address,
    product = EXCLUDED.product,
    rate = EXCLUDED.rate,
    plan = EXCLUDED.plan,
    plan_type = EXCLUDED.plan_type,
    updated_at = now()
RETURNING ` + fullColumns
	return r.scanCustomer(r.pool.QueryRow(ctx, q,
		c.UserID,
		strings.TrimSpace(c.Name),
		strings.TrimSpace(c.Phone),
		c.Address,
		string(product),
		c.Rate.String(),
		c.Plan,
		planType,
	))
}

func (r *postgresRepo) scanCustomer(row pgx.Row) (*domain.Customer, error) {
	var (
		c       domain.Customer
		product string
		rate    string
	)
	err := row.Scan(
		&c.ID,
		&c.UserID,
		&c.Name,
		&c.Phone,
		&c.Address,
		&product,
		&rate,
		&c.Plan,
		&c.PlanType,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		mapped := repository.MapPgError(err)
		if mapped != domain.ErrNotFound {
			r.logger.Errorw("customer repo: scan error", "err", err)
		}
		return nil, mapped
	}
	c.Product, err = domain.ParseProduct(product)
	if err != nil {
		r.logger.Warnw("customer repo: unknown product, defaulting", "id", c.ID, "product", product)
		c.Product = domain.ProductBuffalo
	}
	if c.Rate, err = decimal.NewFromString(rate); err != nil {
		c.Rate = decimal.Zero
	}
	if c.PlanType == "" {
		c.PlanType = domain.DefaultPlanType
	}
	return &c, nil
}
