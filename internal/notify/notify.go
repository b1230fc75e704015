// Package notify tells customers about their orders. Delivery is best effort:
// callers log a failed notification and carry on.
package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/safar/boutique-store/internal/models"
)

// Event is one order-level change worth telling the customer about. An empty
// Previous means the order was just created.
type Event struct {
	Order     models.Order
	Previous  models.OrderStatus
	Recipient models.User
}

func (e Event) Created() bool {
	return e.Previous == ""
}

type Notifier interface {
	Notify(ctx context.Context, ev Event) error
}

// Message is a rendered notification.
type Message struct {
	Subject string
	Body    string
}

// Compose renders the subject and plain-text body for ev, formatting amounts
// in currency.
func Compose(ev Event, currency string) Message {
	o := ev.Order

	var subject, lead string
	switch {
	case ev.Created():
		subject = fmt.Sprintf("Order %s received", o.OrderNumber)
		lead = "Thank you for your order. We will let you know once a courier picks it up."
	case o.Status == models.OrderStatusInProgress:
		subject = fmt.Sprintf("Order %s is on its way", o.OrderNumber)
		lead = "A courier has accepted your order and is heading your way."
	case o.Status == models.OrderStatusDelivered:
		subject = fmt.Sprintf("Order %s delivered", o.OrderNumber)
		lead = "Your order has been delivered. Enjoy, and feel free to rate your products."
	case o.Status == models.OrderStatusCancelled:
		subject = fmt.Sprintf("Order %s cancelled", o.OrderNumber)
		lead = "Your order has been cancelled."
	default:
		subject = fmt.Sprintf("Order %s: %s", o.OrderNumber, o.Status.Label())
		lead = "The status of your order changed."
	}

	var b strings.Builder
	name := ev.Recipient.Name
	if name == "" {
		name = "customer"
	}
	fmt.Fprintf(&b, "Hello %s,\n\n%s\n\n", name, lead)
	fmt.Fprintf(&b, "Order: %s\nStatus: %s\n", o.OrderNumber, o.Status.Label())
	if !ev.Created() {
		fmt.Fprintf(&b, "Previous status: %s\n", ev.Previous.Label())
	}

	if len(o.Items) > 0 {
		b.WriteString("\nItems:\n")
		for _, it := range o.Items {
			fmt.Fprintf(&b, "  %d x %s @ %s %s = %s %s\n",
				it.Quantity, it.ProductName,
				it.UnitPrice.StringFixed(2), currency,
				it.Subtotal.StringFixed(2), currency)
		}
	}
	fmt.Fprintf(&b, "\nTotal: %s %s\n", o.TotalAmount.StringFixed(2), currency)

	if loc := o.Location; loc != nil && loc.Address != "" {
		fmt.Fprintf(&b, "Delivery address: %s\n", loc.Address)
	}

	return Message{Subject: subject, Body: b.String()}
}
