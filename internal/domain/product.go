package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Product is the milk variant a customer subscribes to.
type Product string

const (
	ProductBuffalo Product = "Buffalo Milk"
	ProductCow     Product = "Cow Milk"
)

// Products lists every product in display order.
var Products = []Product{ProductBuffalo, ProductCow}

var listPrices = map[Product]decimal.Decimal{
	ProductBuffalo: decimal.NewFromInt(70),
	ProductCow:     decimal.NewFromInt(60),
}

// ParseProduct validates a product name. Empty input maps to Buffalo Milk.
func ParseProduct(s string) (Product, error) {
	switch Product(s) {
	case "":
		return ProductBuffalo, nil
	case ProductBuffalo, ProductCow:
		return Product(s), nil
	}
	return "", fmt.Errorf("%w: unknown product %q", ErrValidation, s)
}

// ListPrice is the default per-liter price in INR.
func (p Product) ListPrice() decimal.Decimal {
	if price, ok := listPrices[p]; ok {
		return price
	}
	return decimal.Zero
}
