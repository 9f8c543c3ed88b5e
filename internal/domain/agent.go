package domain

import "time"

// DeliveryAgent delivers assignments on behalf of an owning account.
type DeliveryAgent struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"ownerId"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone"`
	Area      string    `json:"area,omitempty"`
	LoginID   string    `json:"loginId,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
