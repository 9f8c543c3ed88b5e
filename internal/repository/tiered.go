package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"milk-delivery/internal/domain"
)

// ReadTiered runs full and falls back to minimal only when full fails with
// domain.ErrSchemaMismatch. Any other error is returned unchanged.
func ReadTiered[T any](ctx context.Context, full, minimal func(context.Context) ([]T, error)) ([]T, error) {
	rows, err := full(ctx)
	if err == nil {
		return rows, nil
	}
	if minimal == nil || !errors.Is(err, domain.ErrSchemaMismatch) {
		return nil, err
	}
	return minimal(ctx)
}

// MapPgError translates pgx errors into domain sentinels.
func MapPgError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return fmt.Errorf("%w: %s", domain.ErrAlreadyExists, pgErr.Message)
		case "42703", "42P01":
			return fmt.Errorf("%w: %s", domain.ErrSchemaMismatch, pgErr.Message)
		case "23503", "23514", "22P02":
			return fmt.Errorf("%w: %s", domain.ErrValidation, pgErr.Message)
		}
	}
	return err
}
