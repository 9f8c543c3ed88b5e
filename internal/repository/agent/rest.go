package agent

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"milk-delivery/internal/domain"
	"milk-delivery/internal/logger"
	"milk-delivery/internal/postgrest"
)

const (
	table      = "delivery_agents"
	restSelect = "id,owner_id,name,phone,area,login_id,created_at,updated_at"
)

type restRepo struct {
	client *postgrest.Client
	logger *zap.SugaredLogger
}

// NewREST returns a Repository reading delivery agents through PostgREST.
func NewREST(client *postgrest.Client, log *zap.SugaredLogger) Repository {
	return &restRepo{client: client, logger: logger.OrNop(log)}
}

type restRow struct {
	ID        string              `json:"id"`
	OwnerID   *string             `json:"owner_id"`
	Name      string              `json:"name"`
	Phone     string              `json:"phone"`
	Area      *string             `json:"area"`
	LoginID   *string             `json:"login_id"`
	CreatedAt postgrest.Timestamp `json:"created_at"`
	UpdatedAt postgrest.Timestamp `json:"updated_at"`
}

func (r restRow) toDomain() domain.DeliveryAgent {
	return domain.DeliveryAgent{
		ID:        r.ID,
		OwnerID:   deref(r.OwnerID),
		Name:      r.Name,
		Phone:     r.Phone,
		Area:      deref(r.Area),
		LoginID:   deref(r.LoginID),
		CreatedAt: r.CreatedAt.Time,
		UpdatedAt: r.UpdatedAt.Time,
	}
}

func (r *restRepo) List(ctx context.Context, ownerID string) ([]domain.DeliveryAgent, error) {
	q := r.client.From(table).Select(restSelect).Order("name", true)
	if ownerID != "" {
		q = q.Eq("owner_id", ownerID)
	}
	var rows []restRow
	if err := q.Execute(ctx, &rows); err != nil {
		return nil, err
	}
	out := make([]domain.DeliveryAgent, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

func (r *restRepo) FindByNamePhone(ctx context.Context, name, phone string) (*domain.DeliveryAgent, error) {
	var row restRow
	err := r.client.From(table).
		Select(restSelect).
		Eq("name", strings.TrimSpace(name)).
		Eq("phone", strings.TrimSpace(phone)).
		Limit(1).
		Single(ctx, &row)
	if err != nil {
		return nil, err
	}
	a := row.toDomain()
	return &a, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
