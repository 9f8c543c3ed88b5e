package assignment

import (
	"context"
	"time"

	"go.uber.org/zap"

	"milk-delivery/internal/domain"
	"milk-delivery/internal/logger"
	"milk-delivery/internal/postgrest"
	"milk-delivery/internal/repository"
)

const (
	table             = "delivery_assignments"
	restFullSelect    = "id,owner_id,delivery_agent_id,customer_id,date,shift,liters,delivered,assigned_at,unassigned_at"
	restMinimalSelect = "id,owner_id,delivery_agent_id,customer_id,assigned_at,unassigned_at"
)

type restRepo struct {
	client *postgrest.Client
	logger *zap.SugaredLogger
	now    func() time.Time
}

// NewREST returns a Repository backed by PostgREST.
func NewREST(client *postgrest.Client, log *zap.SugaredLogger) Repository {
	return &restRepo{client: client, logger: logger.OrNop(log), now: time.Now}
}

type restRow struct {
	ID              string              `json:"id"`
	OwnerID         *string             `json:"owner_id"`
	CustomerID      string              `json:"customer_id"`
	DeliveryAgentID string              `json:"delivery_agent_id"`
	Date            string              `json:"date"`
	Shift           string              `json:"shift"`
	Liters          *float64            `json:"liters"`
	Delivered       *bool               `json:"delivered"`
	AssignedAt      postgrest.Timestamp `json:"assigned_at"`
	UnassignedAt    postgrest.Timestamp `json:"unassigned_at"`
}

func (r restRow) toDomain() domain.Assignment {
	a := domain.Assignment{
		ID:              r.ID,
		CustomerID:      r.CustomerID,
		DeliveryAgentID: r.DeliveryAgentID,
		Date:            r.Date,
		Shift:           domain.Shift(r.Shift),
		AssignedAt:      r.AssignedAt.Time,
		UnassignedAt:    r.UnassignedAt.Ptr(),
	}
	if r.OwnerID != nil {
		a.OwnerID = *r.OwnerID
	}
	if r.Liters != nil {
		a.Liters = *r.Liters
	}
	if r.Delivered != nil {
		a.Delivered = *r.Delivered
	}
	return a
}

type insertRow struct {
	OwnerID         string  `json:"owner_id"`
	DeliveryAgentID string  `json:"delivery_agent_id"`
	CustomerID      string  `json:"customer_id"`
	Date            string  `json:"date"`
	Shift           string  `json:"shift"`
	Liters          float64 `json:"liters"`
	Delivered       bool    `json:"delivered"`
}

type patchRow struct {
	Liters    *float64 `json:"liters,omitempty"`
	Delivered *bool    `json:"delivered,omitempty"`
}

func (r *restRepo) List(ctx context.Context, f domain.AssignmentFilter) ([]domain.Assignment, error) {
	return repository.ReadTiered(ctx,
		func(ctx context.Context) ([]domain.Assignment, error) {
			q := r.client.From(table).Select(restFullSelect)
			if f.OwnerID != "" {
				q = q.Eq("owner_id", f.OwnerID)
			}
			if f.From != "" {
				q = q.Gte("date", f.From)
			}
			if f.To != "" {
				q = q.Lte("date", f.To)
			}
			if f.AgentID != "" {
				q = q.Eq("delivery_agent_id", f.AgentID)
			}
			return r.fetch(ctx, q.Order("date", true).Order("shift", true))
		},
		func(ctx context.Context) ([]domain.Assignment, error) {
			r.logger.Warnw("assignment repo: falling back to minimal columns", "owner", f.OwnerID)
			q := r.client.From(table).Select(restMinimalSelect)
			if f.OwnerID != "" {
				q = q.Eq("owner_id", f.OwnerID)
			}
			if f.AgentID != "" {
				q = q.Eq("delivery_agent_id", f.AgentID)
			}
			rows, err := r.fetch(ctx, q.Order("assigned_at", false))
			if err != nil {
				return nil, err
			}
			return synthesize(rows, r.now(), f), nil
		},
	)
}

func (r *restRepo) fetch(ctx context.Context, q *postgrest.Query) ([]domain.Assignment, error) {
	var rows []restRow
	if err := q.Execute(ctx, &rows); err != nil {
		return nil, err
	}
	out := make([]domain.Assignment, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

func (r *restRepo) Insert(ctx context.Context, in domain.NewAssignment) (*domain.Assignment, error) {
	var row restRow
	err := r.client.From(table).Select(restFullSelect).Insert(ctx, insertRow{
		OwnerID:         in.OwnerID,
		DeliveryAgentID: in.DeliveryAgentID,
		CustomerID:      in.CustomerID,
		Date:            in.Date,
		Shift:           string(in.Shift),
		Liters:          in.Liters,
		Delivered:       in.Delivered,
	}, &row)
	if err != nil {
		r.logger.Errorw("assignment repo: insert failed", "customer", in.CustomerID, "err", err)
		return nil, err
	}
	a := row.toDomain()
	return &a, nil
}

func (r *restRepo) Update(ctx context.Context, id string, patch domain.AssignmentPatch) error {
	if patch.Liters == nil && patch.Delivered == nil {
		return nil
	}
	var updated []struct {
		ID string `json:"id"`
	}
	err := r.client.From(table).
		Select("id").
		Eq("id", id).
		Update(ctx, patchRow{Liters: patch.Liters, Delivered: patch.Delivered}, &updated)
	if err != nil {
		return err
	}
	if len(updated) == 0 {
		return domain.ErrNotFound
	}
	return nil
}
