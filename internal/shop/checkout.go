package shop

import (
	"context"
	"fmt"

	"github.com/safar/boutique-store/internal/auth"
	"github.com/safar/boutique-store/internal/database"
	"github.com/safar/boutique-store/internal/models"
	"github.com/safar/boutique-store/internal/pricing"
	"github.com/safar/boutique-store/internal/store"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// Checkout turns the caller's cart into a pending order. Order, order lines
// and the emptied cart commit together or not at all; prices are frozen on the
// order lines at this point. The delivery location is stored as given.
func (s *Service) Checkout(ctx context.Context, id auth.Identity, location *models.Location) (*models.Order, error) {
	if err := auth.Authorize(id, auth.ActionCheckout); err != nil {
		return nil, err
	}

	var order *models.Order
	err := s.db.InTx(ctx, database.DefaultTxOptions(), func(tx store.Tx) error {
		lines, err := tx.ListCartLines(ctx, id.UserID, true)
		if err != nil {
			return err
		}
		if len(lines) == 0 {
			return database.ErrEmptyCart
		}

		ids := make([]int64, 0, len(lines))
		for _, l := range lines {
			ids = append(ids, l.ProductID)
		}
		products, err := tx.GetProductsByID(ctx, ids)
		if err != nil {
			return err
		}

		items := make([]models.OrderItem, 0, len(lines))
		total := decimal.Zero
		for _, l := range lines {
			p, ok := products[l.ProductID]
			if !ok {
				return fmt.Errorf("checkout line %d: %w", l.ID, database.ErrProductNotFound)
			}
			unit := pricing.EffectiveUnitPrice(p)
			sub := pricing.LineTotal(unit, l.Quantity)
			items = append(items, models.OrderItem{
				ProductID:   p.ID,
				ProductName: p.Name,
				Quantity:    l.Quantity,
				UnitPrice:   unit,
				Subtotal:    sub,
			})
			total = total.Add(sub)
		}

		order = &models.Order{
			UserID:      id.UserID,
			Status:      models.OrderStatusPending,
			TotalAmount: total,
			Location:    location,
		}
		if err := tx.InsertOrder(ctx, order); err != nil {
			return err
		}

		for i := range items {
			items[i].OrderID = order.ID
			if err := tx.InsertOrderItem(ctx, &items[i]); err != nil {
				return err
			}
		}
		order.Items = items

		_, err = tx.ClearCart(ctx, id.UserID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"order_id": order.ID,
		"user_id":  id.UserID,
		"total":    order.TotalAmount.String(),
		"items":    len(order.Items),
	}).Info("order placed")

	s.notify(ctx, order, "")
	return order, nil
}
