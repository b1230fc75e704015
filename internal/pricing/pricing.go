// Package pricing resolves what a customer pays for a product.
package pricing

import (
	"github.com/safar/boutique-store/internal/models"
	"github.com/shopspring/decimal"
)

// EffectiveUnitPrice returns the promotional price when one is set, otherwise
// the list price. A nil product costs nothing.
func EffectiveUnitPrice(p *models.Product) decimal.Decimal {
	if p == nil {
		return decimal.Zero
	}
	if p.PromoPrice != nil {
		return *p.PromoPrice
	}
	return p.Price
}

func LineTotal(unitPrice decimal.Decimal, quantity int) decimal.Decimal {
	return unitPrice.Mul(decimal.NewFromInt(int64(quantity)))
}

// ValidateProductPrice checks the catalog invariant 0 <= promo <= price.
func ValidateProductPrice(price decimal.Decimal, promo *decimal.Decimal) bool {
	if price.IsNegative() {
		return false
	}
	if promo == nil {
		return true
	}
	return !promo.IsNegative() && promo.LessThanOrEqual(price)
}
