package shop

import (
	"context"
	"errors"
	"fmt"
	"iter"

	"github.com/safar/boutique-store/internal/auth"
	"github.com/safar/boutique-store/internal/database"
	"github.com/safar/boutique-store/internal/models"
	"github.com/safar/boutique-store/internal/pricing"
	"github.com/safar/boutique-store/internal/store"
	"github.com/shopspring/decimal"
)

// CartLine is a cart line priced at the product's current effective price.
type CartLine struct {
	models.CartLine
	Product   *models.Product `json:"product,omitempty"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

type Cart struct {
	Lines []CartLine      `json:"lines"`
	Total decimal.Decimal `json:"total"`
	Count int             `json:"count"`
}

// All yields the lines in insertion order. It can be ranged over any number
// of times.
func (c *Cart) All() iter.Seq[CartLine] {
	return func(yield func(CartLine) bool) {
		for _, l := range c.Lines {
			if !yield(l) {
				return
			}
		}
	}
}

// AddToCart adds qty units of a product, merging with an existing line.
func (s *Service) AddToCart(ctx context.Context, id auth.Identity, productID int64, qty int) (models.CartLine, error) {
	if err := auth.Authorize(id, auth.ActionManageCart); err != nil {
		return models.CartLine{}, err
	}
	if _, err := s.db.Reader().GetProduct(ctx, productID); err != nil {
		return models.CartLine{}, err
	}

	if !id.Authenticated() {
		return s.carts.Add(id.SessionID, productID, qty)
	}

	if qty >= 1 {
		line, err := s.db.Reader().AddCartLine(ctx, id.UserID, productID, qty)
		if err != nil {
			return models.CartLine{}, err
		}
		return *line, nil
	}

	// Negative adds only ever shrink an existing line, so the row lock is enough.
	var line *models.CartLine
	err := s.db.InTx(ctx, database.DefaultTxOptions(), func(tx store.Tx) error {
		existing, err := tx.FindCartLine(ctx, id.UserID, productID)
		switch {
		case errors.Is(err, database.ErrCartLineNotFound):
			return fmt.Errorf("%w: %d", database.ErrInvalidQuantity, qty)
		case err != nil:
			return err
		}

		next := existing.Quantity + qty
		if next < 1 {
			return fmt.Errorf("%w: quantity would drop to %d", database.ErrInvalidQuantity, next)
		}
		if err := tx.UpdateCartLineQuantity(ctx, id.UserID, existing.ID, next); err != nil {
			return err
		}
		existing.Quantity = next
		line = existing
		return nil
	})
	if err != nil {
		return models.CartLine{}, err
	}
	return *line, nil
}

// SetCartQuantity overwrites a line's quantity; zero or less removes it.
func (s *Service) SetCartQuantity(ctx context.Context, id auth.Identity, lineID int64, qty int) error {
	if err := auth.Authorize(id, auth.ActionManageCart); err != nil {
		return err
	}
	if qty <= 0 {
		return s.removeLine(ctx, id, lineID)
	}
	if !id.Authenticated() {
		return s.carts.SetQuantity(id.SessionID, lineID, qty)
	}
	return s.db.Reader().UpdateCartLineQuantity(ctx, id.UserID, lineID, qty)
}

func (s *Service) RemoveFromCart(ctx context.Context, id auth.Identity, lineID int64) error {
	if err := auth.Authorize(id, auth.ActionManageCart); err != nil {
		return err
	}
	return s.removeLine(ctx, id, lineID)
}

func (s *Service) removeLine(ctx context.Context, id auth.Identity, lineID int64) error {
	if !id.Authenticated() {
		return s.carts.Remove(id.SessionID, lineID)
	}
	return s.db.Reader().DeleteCartLine(ctx, id.UserID, lineID)
}

// Cart returns the caller's cart priced with current product prices.
func (s *Service) Cart(ctx context.Context, id auth.Identity) (*Cart, error) {
	if err := auth.Authorize(id, auth.ActionManageCart); err != nil {
		return nil, err
	}

	lines, err := s.cartLines(ctx, id)
	if err != nil {
		return nil, err
	}

	ids := make([]int64, 0, len(lines))
	for _, l := range lines {
		ids = append(ids, l.ProductID)
	}
	products, err := s.db.Reader().GetProductsByID(ctx, ids)
	if err != nil {
		return nil, err
	}

	cart := &Cart{Lines: make([]CartLine, 0, len(lines)), Total: decimal.Zero}
	for _, l := range lines {
		p := products[l.ProductID]
		unit := pricing.EffectiveUnitPrice(p)
		sub := pricing.LineTotal(unit, l.Quantity)
		cart.Lines = append(cart.Lines, CartLine{CartLine: l, Product: p, UnitPrice: unit, Subtotal: sub})
		cart.Total = cart.Total.Add(sub)
		cart.Count += l.Quantity
	}
	return cart, nil
}

// CartCount is the number of units in the cart, as shown on a cart badge.
func (s *Service) CartCount(ctx context.Context, id auth.Identity) (int, error) {
	if err := auth.Authorize(id, auth.ActionManageCart); err != nil {
		return 0, err
	}
	if !id.Authenticated() {
		return s.carts.Count(id.SessionID), nil
	}

	lines, err := s.db.Reader().ListCartLines(ctx, id.UserID, false)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, l := range lines {
		n += l.Quantity
	}
	return n, nil
}

func (s *Service) cartLines(ctx context.Context, id auth.Identity) ([]models.CartLine, error) {
	if !id.Authenticated() {
		return s.carts.Lines(id.SessionID), nil
	}
	return s.db.Reader().ListCartLines(ctx, id.UserID, false)
}
