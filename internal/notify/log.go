package notify

import (
	"context"

	"github.com/sirupsen/logrus"
)

// LogNotifier writes notifications to the log instead of sending them. It is
// used when no SMTP relay is configured.
type LogNotifier struct {
	log      logrus.FieldLogger
	currency string
}

func NewLogNotifier(log logrus.FieldLogger, currency string) *LogNotifier {
	return &LogNotifier{log: log, currency: currency}
}

func (n *LogNotifier) Notify(_ context.Context, ev Event) error {
	msg := Compose(ev, n.currency)
	n.log.WithFields(logrus.Fields{
		"order_id":  ev.Order.ID,
		"order":     ev.Order.OrderNumber,
		"status":    ev.Order.Status,
		"previous":  ev.Previous,
		"recipient": ev.Recipient.Email,
		"subject":   msg.Subject,
	}).Info("order notification")
	return nil
}
