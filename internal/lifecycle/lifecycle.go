// Package lifecycle holds the order status state machine. Functions here are
// pure: they inspect and mutate an in-memory order, and the caller persists the
// result inside the same transaction that loaded it.
package lifecycle

import (
	"fmt"
	"time"

	"github.com/safar/boutique-store/internal/auth"
	"github.com/safar/boutique-store/internal/database"
	"github.com/safar/boutique-store/internal/models"
	"github.com/shopspring/decimal"
)

type Event string

const (
	EventAccept   Event = "accept"
	EventComplete Event = "complete"
	EventCancel   Event = "cancel"
)

var transitions = map[models.OrderStatus]map[Event]models.OrderStatus{
	models.OrderStatusPending: {
		EventAccept: models.OrderStatusInProgress,
		EventCancel: models.OrderStatusCancelled,
	},
	models.OrderStatusInProgress: {
		EventComplete: models.OrderStatusDelivered,
		EventCancel:   models.OrderStatusCancelled,
	},
}

// Next returns the status reached from current by event.
func Next(current models.OrderStatus, event Event) (models.OrderStatus, error) {
	if to, ok := transitions[current][event]; ok {
		return to, nil
	}
	return current, fmt.Errorf("%w: cannot %s an order that is %s", database.ErrInvalidTransition, event, current)
}

func CanTransition(from, to models.OrderStatus) bool {
	for _, target := range transitions[from] {
		if target == to {
			return true
		}
	}
	return false
}

// Result describes what a transition did to the order.
type Result struct {
	Previous models.OrderStatus
	Changed  bool
}

// Accept moves a pending order into delivery. An agent accepting an unassigned
// order becomes its agent. Accepting again as the actor who already holds the
// order is reported as unchanged rather than as an error.
func Accept(o *models.Order, actor auth.Identity) (Result, error) {
	res := Result{Previous: o.Status}

	if o.Status == models.OrderStatusInProgress && heldBy(o, actor) {
		return res, nil
	}

	to, err := Next(o.Status, EventAccept)
	if err != nil {
		return res, err
	}

	if o.AgentID == nil && actor.Is(models.RoleAgent) {
		id := actor.UserID
		o.AgentID = &id
	}
	o.Status = to
	res.Changed = true
	return res, nil
}

// Complete marks an in-progress order delivered. Agents may only complete
// orders assigned to them.
func Complete(o *models.Order, actor auth.Identity) (Result, error) {
	res := Result{Previous: o.Status}

	to, err := Next(o.Status, EventComplete)
	if err != nil {
		return res, err
	}

	if actor.Is(models.RoleAgent) {
		if o.AgentID != nil && !o.AssignedTo(actor.UserID) {
			return res, fmt.Errorf("%w: order %d is assigned to another agent", database.ErrForbidden, o.ID)
		}
		if o.AgentID == nil {
			id := actor.UserID
			o.AgentID = &id
		}
	}

	o.Status = to
	res.Changed = true
	return res, nil
}

// Cancel terminates a pending or in-progress order. Staff may cancel anything
// cancellable, agents only what they carry, customers only their own orders
// that nobody has picked up yet.
func Cancel(o *models.Order, actor auth.Identity) (Result, error) {
	res := Result{Previous: o.Status}

	to, err := Next(o.Status, EventCancel)
	if err != nil {
		return res, err
	}

	switch {
	case actor.Is(models.RoleStaff):
	case actor.Is(models.RoleAgent):
		if !o.AssignedTo(actor.UserID) {
			return res, fmt.Errorf("%w: order %d is not assigned to agent %d", database.ErrForbidden, o.ID, actor.UserID)
		}
	case actor.Authenticated() && actor.UserID == o.UserID:
		if o.Status != models.OrderStatusPending {
			return res, fmt.Errorf("%w: order %d is already out for delivery", database.ErrForbidden, o.ID)
		}
	default:
		return res, fmt.Errorf("%w: cannot cancel order %d", database.ErrForbidden, o.ID)
	}

	o.Status = to
	res.Changed = true
	return res, nil
}

// UpdatePosition records the assigned agent's last known coordinates.
func UpdatePosition(o *models.Order, actor auth.Identity, lat, lng decimal.Decimal, at time.Time) error {
	if o.Status != models.OrderStatusInProgress {
		return fmt.Errorf("%w: position can only be reported while %s, order is %s",
			database.ErrInvalidTransition, models.OrderStatusInProgress, o.Status)
	}
	if !actor.Is(models.RoleAgent) || !o.AssignedTo(actor.UserID) {
		return fmt.Errorf("%w: only the assigned agent reports position for order %d", database.ErrForbidden, o.ID)
	}

	o.AgentPosition = &models.AgentPosition{
		Latitude:  lat,
		Longitude: lng,
		UpdatedAt: at,
	}
	return nil
}

// CanView reports whether actor may read the order at all. Callers answer
// "not found" rather than "forbidden" so order ids cannot be guessed.
func CanView(o *models.Order, actor auth.Identity) bool {
	switch {
	case !actor.Authenticated():
		return false
	case actor.Role == models.RoleStaff:
		return true
	case actor.UserID == o.UserID:
		return true
	case actor.Role == models.RoleAgent:
		// Unassigned open orders are up for grabs by any agent.
		return o.AssignedTo(actor.UserID) || (o.AgentID == nil && !o.Status.Terminal())
	}
	return false
}

func heldBy(o *models.Order, actor auth.Identity) bool {
	if actor.Is(models.RoleAgent) {
		return o.AssignedTo(actor.UserID)
	}
	return actor.Is(models.RoleStaff) && o.AgentID == nil
}
