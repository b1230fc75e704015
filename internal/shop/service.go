// Package shop is the storefront's application layer. Every exported
// operation authorizes the caller, runs its reads and writes through the
// store, and notifies customers once the work is committed.
package shop

import (
	"context"
	"time"

	"github.com/safar/boutique-store/internal/database"
	"github.com/safar/boutique-store/internal/models"
	"github.com/safar/boutique-store/internal/notify"
	"github.com/safar/boutique-store/internal/session"
	"github.com/safar/boutique-store/internal/stats"
	"github.com/safar/boutique-store/internal/store"
	"github.com/sirupsen/logrus"
)

// Persistence is the slice of *store.Store the service depends on.
type Persistence interface {
	Reader() store.Tx
	InTx(ctx context.Context, opts database.TxOptions, fn func(store.Tx) error) error
}

type Service struct {
	db       Persistence
	carts    *session.Carts
	notifier notify.Notifier
	stats    stats.Aggregator
	log      logrus.FieldLogger
	now      func() time.Time
}

func New(db Persistence, carts *session.Carts, notifier notify.Notifier, agg stats.Aggregator, log logrus.FieldLogger) *Service {
	return &Service{
		db:       db,
		carts:    carts,
		notifier: notifier,
		stats:    agg,
		log:      log,
		now:      time.Now,
	}
}

// notify reports an order event to its owner. Failures are logged and
// swallowed: the order change is already committed.
func (s *Service) notify(ctx context.Context, order *models.Order, previous models.OrderStatus) {
	log := s.log.WithFields(logrus.Fields{
		"order_id": order.ID,
		"status":   order.Status,
		"previous": previous,
	})

	recipient, err := s.db.Reader().GetUser(ctx, order.UserID)
	if err != nil {
		log.WithError(err).Warn("notification skipped: recipient lookup failed")
		return
	}

	ev := notify.Event{Order: *order, Previous: previous, Recipient: *recipient}
	if err := s.notifier.Notify(ctx, ev); err != nil {
		log.WithError(err).Warn("order notification failed")
	}
}
