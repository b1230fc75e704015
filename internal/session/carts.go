// Package session keeps shopping carts for visitors who have not signed in.
// Carts live in process memory only and are dropped after a period of
// inactivity.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/safar/boutique-store/internal/database"
	"github.com/safar/boutique-store/internal/models"
	"github.com/sirupsen/logrus"
)

type cart struct {
	lines   []models.CartLine
	touched time.Time
}

// Carts is safe for concurrent use.
type Carts struct {
	mu     sync.Mutex
	carts  map[string]*cart
	nextID int64
	now    func() time.Time
}

func NewCarts() *Carts {
	return &Carts{
		carts: make(map[string]*cart),
		now:   time.Now,
	}
}

// get returns the session's cart, creating it when create is set. Callers
// hold mu.
func (c *Carts) get(sessionID string, create bool) *cart {
	ct, ok := c.carts[sessionID]
	if !ok && create {
		ct = &cart{}
		c.carts[sessionID] = ct
	}
	if ct != nil {
		ct.touched = c.now()
	}
	return ct
}

// Add increments the session's line for productID by qty, creating the line
// when the product is not in the cart yet.
func (c *Carts) Add(sessionID string, productID int64, qty int) (models.CartLine, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ct := c.get(sessionID, true)
	for i := range ct.lines {
		if ct.lines[i].ProductID != productID {
			continue
		}
		if ct.lines[i].Quantity+qty < 1 {
			return models.CartLine{}, fmt.Errorf("%w: quantity would drop to %d", database.ErrInvalidQuantity, ct.lines[i].Quantity+qty)
		}
		ct.lines[i].Quantity += qty
		return ct.lines[i], nil
	}

	if qty < 1 {
		return models.CartLine{}, fmt.Errorf("%w: %d", database.ErrInvalidQuantity, qty)
	}

	c.nextID++
	line := models.CartLine{
		ID:        c.nextID,
		ProductID: productID,
		Quantity:  qty,
		AddedAt:   c.now(),
	}
	ct.lines = append(ct.lines, line)
	return line, nil
}

// SetQuantity overwrites a line's quantity. A quantity of zero or less
// removes the line.
func (c *Carts) SetQuantity(sessionID string, lineID int64, qty int) error {
	if qty <= 0 {
		return c.Remove(sessionID, lineID)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	ct := c.get(sessionID, false)
	if ct == nil {
		return database.ErrCartLineNotFound
	}
	for i := range ct.lines {
		if ct.lines[i].ID == lineID {
			ct.lines[i].Quantity = qty
			return nil
		}
	}
	return database.ErrCartLineNotFound
}

func (c *Carts) Remove(sessionID string, lineID int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	ct := c.get(sessionID, false)
	if ct == nil {
		return database.ErrCartLineNotFound
	}
	for i := range ct.lines {
		if ct.lines[i].ID == lineID {
			ct.lines = append(ct.lines[:i], ct.lines[i+1:]...)
			return nil
		}
	}
	return database.ErrCartLineNotFound
}

// Lines returns a copy of the session's lines in the order they were added.
func (c *Carts) Lines(sessionID string) []models.CartLine {
	c.mu.Lock()
	defer c.mu.Unlock()

	ct := c.get(sessionID, false)
	if ct == nil {
		return []models.CartLine{}
	}
	out := make([]models.CartLine, len(ct.lines))
	copy(out, ct.lines)
	return out
}

func (c *Carts) Count(sessionID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	ct := c.get(sessionID, false)
	if ct == nil {
		return 0
	}
	n := 0
	for _, l := range ct.lines {
		n += l.Quantity
	}
	return n
}

// Sweep drops every cart untouched for longer than ttl and reports how many
// were dropped.
func (c *Carts) Sweep(ttl time.Duration) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	cutoff := c.now().Add(-ttl)
	dropped := 0
	for id, ct := range c.carts {
		if ct.touched.Before(cutoff) {
			delete(c.carts, id)
			dropped++
		}
	}
	return dropped
}

// Run sweeps idle carts every interval until ctx is done.
func (c *Carts) Run(ctx context.Context, interval, ttl time.Duration, log logrus.FieldLogger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := c.Sweep(ttl); n > 0 {
				log.WithField("dropped", n).Info("evicted idle session carts")
			}
		}
	}
}
