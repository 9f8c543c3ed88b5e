package agent

import (
	"context"

	"milk-delivery/internal/domain"
)

// Repository fetches delivery agents from the remote store.
type Repository interface {
	List(ctx context.Context, ownerID string) ([]domain.DeliveryAgent, error)
	FindByNamePhone(ctx context.Context, name, phone string) (*domain.DeliveryAgent, error)
}

type Writer interface {
	Upsert(ctx context.Context, a domain.DeliveryAgent) (*domain.DeliveryAgent, error)
}

type ReadWriter interface {
	Repository
	Writer
}
