package customer

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"milk-delivery/internal/domain"
	"milk-delivery/internal/logger"
	"milk-delivery/internal/postgrest"
	"milk-delivery/internal/repository"
)

const (
	table             = "customers"
	restFullSelect    = "id,user_id,name,phone,address,product,rate,plan,plan_type,created_at,updated_at"
	restMinimalSelect = "id,user_id,name,phone,address,plan,plan_type,created_at,updated_at"
)

type restRepo struct {
	client *postgrest.Client
	logger *zap.SugaredLogger
}

// NewREST returns a Repository reading customers through PostgREST.
func NewREST(client *postgrest.Client, log *zap.SugaredLogger) Repository {
	return &restRepo{client: client, logger: logger.OrNop(log)}
}

type restRow struct {
	ID        string              `json:"id"`
	UserID    *string             `json:"user_id"`
	Name      string              `json:"name"`
	Phone     string              `json:"phone"`
	Address   *string             `json:"address"`
	Product   *string             `json:"product"`
	Rate      decimal.NullDecimal `json:"rate"`
	Plan      *string             `json:"plan"`
	PlanType  *string             `json:"plan_type"`
	CreatedAt postgrest.Timestamp `json:"created_at"`
	UpdatedAt postgrest.Timestamp `json:"updated_at"`
}

func (r restRow) toDomain() domain.Customer {
	c := domain.Customer{
		ID:        r.ID,
		UserID:    deref(r.UserID),
		Name:      r.Name,
		Phone:     r.Phone,
		Address:   deref(r.Address),
		Product:   domain.ProductBuffalo,
		Rate:      decimal.Zero,
		Plan:      deref(r.Plan),
		PlanType:  deref(r.PlanType),
		CreatedAt: r.CreatedAt.Time,
		UpdatedAt: r.UpdatedAt.Time,
	}
	if p, err := domain.ParseProduct(deref(r.Product)); err == nil {
		c.Product = p
	}
	if r.Rate.Valid {
		c.Rate = r.Rate.Decimal
	}
	if c.PlanType == "" {
		c.PlanType = domain.DefaultPlanType
	}
	return c
}

func (r *restRepo) List(ctx context.Context, ownerID string) ([]domain.Customer, error) {
	return repository.ReadTiered(ctx,
		func(ctx context.Context) ([]domain.Customer, error) { return r.list(ctx, restFullSelect, ownerID) },
		func(ctx context.Context) ([]domain.Customer, error) {
			r.logger.Warnw("customer repo: falling back to minimal columns", "owner", ownerID)
			return r.list(ctx, restMinimalSelect, ownerID)
		},
	)
}

func (r *restRepo) list(ctx context.Context, columns, ownerID string) ([]domain.Customer, error) {
	q := r.client.From(table).Select(columns).Order("name", true)
	if ownerID != "" {
		q = q.Eq("user_id", ownerID)
	}
	var rows []restRow
	if err := q.Execute(ctx, &rows); err != nil {
		return nil, err
	}
	out := make([]domain.Customer, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

func (r *restRepo) FindByNamePhone(ctx context.Context, name, phone string) (*domain.Customer, error) {
	find := func(columns string) func(context.Context) ([]domain.Customer, error) {
		return func(ctx context.Context) ([]domain.Customer, error) {
			var row restRow
			err := r.client.From(table).
				Select(columns).
				Eq("name", strings.TrimSpace(name)).
				Eq("phone", strings.TrimSpace(phone)).
				Limit(1).
				Single(ctx, &row)
			if err != nil {
				return nil, err
			}
			return []domain.Customer{row.toDomain()}, nil
		}
	}
	found, err := repository.ReadTiered(ctx, find(restFullSelect), find(restMinimalSelect))
	if err != nil {
		return nil, err
	}
	return &found[0], nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
