package customer

import (
	"context"

	"milk-delivery/internal/domain"
)

// Repository fetches customers from the remote store.
type Repository interface {
	List(ctx context.Context, ownerID string) ([]domain.Customer, error)
	FindByNamePhone(ctx context.Context, name, phone string) (*domain.Customer, error)
}

// Writer persists customers. Only the direct Postgres backend writes customers.
type Writer interface {
	Upsert(ctx context.Context, c domain.Customer) (*domain.Customer, error)
}

// ReadWriter is implemented by the Postgres backend.
type ReadWriter interface {
	Repository
	Writer
}
