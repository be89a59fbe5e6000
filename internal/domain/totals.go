package domain

import "math"

// DefaultTaxRate is applied to the cart subtotal when none is configured.
const DefaultTaxRate = 0.2

// Totals summarizes a cart. Amounts are computed in cents and rounded to two
// decimals.
type Totals struct {
	ItemCount int     `json:"item_count"`
	Subtotal  float64 `json:"subtotal"`
	Tax       float64 `json:"tax"`
	Total     float64 `json:"total"`
}

// Totals computes the cart totals at taxRate.
func (s SessionState) Totals(taxRate float64) Totals {
	var count int
	var subtotal int64
	for _, e := range s.Cart {
		count += e.Qty
		subtotal += toCents(e.Price) * int64(e.Qty)
	}
	tax := int64(math.Round(float64(subtotal) * taxRate))

	return Totals{
		ItemCount: count,
		Subtotal:  fromCents(subtotal),
		Tax:       fromCents(tax),
		Total:     fromCents(subtotal + tax),
	}
}

func toCents(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

func fromCents(cents int64) float64 {
	return float64(cents) / 100
}
