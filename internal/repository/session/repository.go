package session

import (
	"context"
	"time"
)

// Session is an issued login for a customer or delivery agent.
type Session struct {
	Token     string    `json:"-"`
	OwnerID   string    `json:"ownerId"`
	Role      string    `json:"role"`
	SubjectID string    `json:"subjectId"`
	Name      string    `json:"name"`
	ExpiresAt time.Time `json:"expiresAt"`
	CreatedAt time.Time `json:"createdAt"`
}

type Repository interface {
	Create(ctx context.Context, s Session) error
	Get(ctx context.Context, token string) (*Session, error)
	Delete(ctx context.Context, token string) error
}
