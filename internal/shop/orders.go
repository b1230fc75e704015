package shop

import (
	"context"
	"fmt"
	"time"

	"github.com/safar/boutique-store/internal/auth"
	"github.com/safar/boutique-store/internal/database"
	"github.com/safar/boutique-store/internal/lifecycle"
	"github.com/safar/boutique-store/internal/models"
	"github.com/safar/boutique-store/internal/store"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// Transition is the outcome of an order status change. Changed is false when
// the request was an accepted no-op, such as an agent accepting an order they
// already carry.
type Transition struct {
	Order    *models.Order      `json:"order"`
	Previous models.OrderStatus `json:"previous"`
	Changed  bool               `json:"changed"`
}

type transitionFunc func(*models.Order, auth.Identity) (lifecycle.Result, error)

func (s *Service) Accept(ctx context.Context, id auth.Identity, orderID int64) (*Transition, error) {
	return s.transition(ctx, id, orderID, auth.ActionAcceptOrder, lifecycle.Accept)
}

func (s *Service) Complete(ctx context.Context, id auth.Identity, orderID int64) (*Transition, error) {
	return s.transition(ctx, id, orderID, auth.ActionCompleteOrder, lifecycle.Complete)
}

func (s *Service) Cancel(ctx context.Context, id auth.Identity, orderID int64) (*Transition, error) {
	return s.transition(ctx, id, orderID, auth.ActionCancelOrder, lifecycle.Cancel)
}

// transition loads the order under a row lock, applies fn and writes the
// result back with a status compare-and-set, all in one transaction.
func (s *Service) transition(ctx context.Context, id auth.Identity, orderID int64, action auth.Action, fn transitionFunc) (*Transition, error) {
	if err := auth.Authorize(id, action); err != nil {
		return nil, err
	}

	var out Transition
	err := s.db.InTx(ctx, database.DefaultTxOptions(), func(tx store.Tx) error {
		o, err := tx.LockOrder(ctx, orderID)
		if err != nil {
			return err
		}
		// Customers never learn about orders that are not theirs. Agents and
		// staff get the lifecycle's own answer so a lost race reads as such.
		if id.Is(models.RoleClient) && !lifecycle.CanView(o, id) {
			return database.ErrOrderNotFound
		}
		return s.apply(ctx, tx, o, id, fn, &out)
	})
	if err != nil {
		return nil, err
	}

	s.afterTransition(ctx, id, action, &out)
	return &out, nil
}

// ClaimNext hands the calling agent the oldest pending order nobody else is
// claiming at the same moment.
func (s *Service) ClaimNext(ctx context.Context, id auth.Identity) (*Transition, error) {
	if err := auth.Authorize(id, auth.ActionAcceptOrder); err != nil {
		return nil, err
	}
	if !id.Is(models.RoleAgent) {
		return nil, fmt.Errorf("%w: only delivery agents claim orders", database.ErrForbidden)
	}

	var out Transition
	err := s.db.InTx(ctx, database.DefaultTxOptions(), func(tx store.Tx) error {
		o, err := tx.LockNextPendingOrder(ctx)
		if err != nil {
			return err
		}
		return s.apply(ctx, tx, o, id, lifecycle.Accept, &out)
	})
	if err != nil {
		return nil, err
	}

	s.afterTransition(ctx, id, auth.ActionAcceptOrder, &out)
	return &out, nil
}

func (s *Service) apply(ctx context.Context, tx store.Tx, o *models.Order, id auth.Identity, fn transitionFunc, out *Transition) error {
	expected := o.Status
	res, err := fn(o, id)
	if err != nil {
		return err
	}

	out.Order, out.Previous, out.Changed = o, res.Previous, res.Changed
	if !res.Changed {
		return nil
	}
	if !lifecycle.CanTransition(expected, o.Status) {
		return fmt.Errorf("%w: %s to %s is not a lifecycle edge", database.ErrInvalidTransition, expected, o.Status)
	}
	return tx.SaveFulfillment(ctx, o, expected)
}

func (s *Service) afterTransition(ctx context.Context, id auth.Identity, action auth.Action, out *Transition) {
	log := s.log.WithFields(logrus.Fields{
		"order_id": out.Order.ID,
		"actor":    id.String(),
		"action":   action,
		"status":   out.Order.Status,
	})
	if !out.Changed {
		log.Info("order transition was a no-op")
		return
	}
	log.WithField("previous", out.Previous).Info("order status changed")

	if full, err := s.db.Reader().GetOrder(ctx, out.Order.ID); err == nil {
		out.Order = full
	}
	s.notify(ctx, out.Order, out.Previous)
}

var (
	maxLatitude  = decimal.NewFromInt(90)
	maxLongitude = decimal.NewFromInt(180)
)

// UpdatePosition records where the assigned agent was at the given time; a
// zero time means now. The order's status does not change.
func (s *Service) UpdatePosition(ctx context.Context, id auth.Identity, orderID int64, lat, lng decimal.Decimal, at time.Time) (*models.Order, error) {
	if err := auth.Authorize(id, auth.ActionUpdatePosition); err != nil {
		return nil, err
	}
	if lat.Abs().GreaterThan(maxLatitude) || lng.Abs().GreaterThan(maxLongitude) {
		return nil, fmt.Errorf("%w: coordinates out of range", database.ErrInvalidArgument)
	}
	if at.IsZero() {
		at = s.now()
	}

	var order *models.Order
	err := s.db.InTx(ctx, database.DefaultTxOptions(), func(tx store.Tx) error {
		o, err := tx.LockOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if err := lifecycle.UpdatePosition(o, id, lat, lng, at); err != nil {
			return err
		}
		order = o
		return tx.SaveFulfillment(ctx, o, o.Status)
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// GetOrder returns an order with its lines. Orders the caller may not see
// are reported as missing.
func (s *Service) GetOrder(ctx context.Context, id auth.Identity, orderID int64) (*models.Order, error) {
	if err := auth.Authorize(id, auth.ActionViewOwnOrders); err != nil {
		return nil, err
	}

	o, err := s.db.Reader().GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !lifecycle.CanView(o, id) {
		return nil, database.ErrOrderNotFound
	}
	return o, nil
}

const (
	defaultOrdersLimit = 10
	maxOrdersLimit     = 100
)

// ListMyOrders pages through the caller's own orders, newest first.
func (s *Service) ListMyOrders(ctx context.Context, id auth.Identity, cursor string, limit int) (*store.CursorPage, error) {
	if err := auth.Authorize(id, auth.ActionViewOwnOrders); err != nil {
		return nil, err
	}
	if limit < 1 || limit > maxOrdersLimit {
		limit = defaultOrdersLimit
	}
	return s.db.Reader().ListOrdersCursor(ctx, id.UserID, cursor, limit)
}

type OrderQuery struct {
	Status   models.OrderStatus
	Page     int
	PageSize int
}

// ListOrders is the back-office order list. Agents see the pending pool plus
// their own deliveries; staff see everything.
func (s *Service) ListOrders(ctx context.Context, id auth.Identity, q OrderQuery) (*store.OffsetPage, error) {
	if err := auth.Authorize(id, auth.ActionListOrders); err != nil {
		return nil, err
	}
	if q.Status != "" && !q.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", database.ErrInvalidArgument, q.Status)
	}

	filter := store.OrderFilter{Status: q.Status, Page: q.Page, PageSize: q.PageSize}
	if id.Is(models.RoleAgent) {
		agentID := id.UserID
		filter.AgentID = &agentID
		filter.WithPending = true
	}
	return s.db.Reader().ListOrders(ctx, filter)
}
