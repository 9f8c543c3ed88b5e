package assignment

import (
	"context"
	"time"

	"milk-delivery/internal/domain"
)

// Repository reads and writes delivery assignments.
type Repository interface {
	List(ctx context.Context, f domain.AssignmentFilter) ([]domain.Assignment, error)
	Insert(ctx context.Context, in domain.NewAssignment) (*domain.Assignment, error)
	Update(ctx context.Context, id string, patch domain.AssignmentPatch) error
}

// synthesize fills the columns a minimal read could not fetch.
func synthesize(rows []domain.Assignment, now time.Time, f domain.AssignmentFilter) []domain.Assignment {
	today := now.UTC().Format(domain.DateLayout)
	out := make([]domain.Assignment, 0, len(rows))
	for _, a := range rows {
		a.Date = today
		a.Shift = domain.ShiftMorning
		a.Liters = 0
		a.Delivered = false
		if f.From != "" && a.Date < f.From {
			continue
		}
		if f.To != "" && a.Date > f.To {
			continue
		}
		out = append(out, a)
	}
	return out
}
