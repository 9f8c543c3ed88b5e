package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// DefaultPlanType is applied when the store has no plan type for a customer.
const DefaultPlanType = "Daily"

// Customer is a household receiving milk from a seller.
type Customer struct {
	ID        string          `json:"id"`
	UserID    string          `json:"userId"`
	Name      string          `json:"name"`
	Phone     string          `json:"phone"`
	Address   string          `json:"address,omitempty"`
	Product   Product         `json:"product"`
	Rate      decimal.Decimal `json:"rate"`
	Plan      string          `json:"plan"`
	PlanType  string          `json:"planType"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// EffectiveRate returns the per-liter rate, falling back to the product list price.
func (c Customer) EffectiveRate() decimal.Decimal {
	if c.Rate.IsPositive() {
		return c.Rate
	}
	return c.Product.ListPrice()
}
