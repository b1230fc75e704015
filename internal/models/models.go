package models

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

type Role string

const (
	RoleClient Role = "CLIENT"
	RoleAgent  Role = "LIVREUR"
	RoleStaff  Role = "STAFF"
)

func (r Role) Valid() bool {
	switch r {
	case RoleClient, RoleAgent, RoleStaff:
		return true
	}
	return false
}

type User struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Role      Role      `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Version   int       `json:"version"`
}

type Category struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Icon        string    `json:"icon"`
	ParentID    *int64    `json:"parent_id,omitempty"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"created_at"`
}

type Product struct {
	ID          int64            `json:"id"`
	Name        string           `json:"name"`
	Description string           `json:"description,omitempty"`
	Price       decimal.Decimal  `json:"price"`
	PromoPrice  *decimal.Decimal `json:"promo_price,omitempty"`
	CategoryIDs []int64          `json:"category_ids"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
	Version     int              `json:"version"`
	Rating      RatingSummary    `json:"rating"`
}

// RatingSummary is derived from the ratings table on every read.
type RatingSummary struct {
	Average decimal.Decimal `json:"average"`
	Count   int             `json:"count"`
}

const (
	PopularMinRatings = 5
	PopularMinAverage = 4
)

func (s RatingSummary) Popular() bool {
	return s.Count >= PopularMinRatings && s.Average.GreaterThanOrEqual(decimal.NewFromInt(PopularMinAverage))
}

// MarshalJSON adds the derived popular flag to every encoded product.
func (p Product) MarshalJSON() ([]byte, error) {
	type product Product
	return json.Marshal(struct {
		product
		Popular bool `json:"popular"`
	}{product(p), p.Rating.Popular()})
}

type Rating struct {
	ProductID int64     `json:"product_id"`
	UserID    int64     `json:"user_id"`
	Value     int       `json:"value"`
	Comment   string    `json:"comment,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type CartLine struct {
	ID        int64     `json:"id"`
	OwnerID   int64     `json:"owner_id,omitempty"`
	ProductID int64     `json:"product_id"`
	Quantity  int       `json:"quantity"`
	AddedAt   time.Time `json:"added_at"`
}

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "PENDING"
	OrderStatusInProgress OrderStatus = "IN_PROGRESS"
	OrderStatusDelivered  OrderStatus = "DELIVERED"
	OrderStatusCancelled  OrderStatus = "CANCELLED"
)

var OrderStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusInProgress,
	OrderStatusDelivered,
	OrderStatusCancelled,
}

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusInProgress, OrderStatusDelivered, OrderStatusCancelled:
		return true
	}
	return false
}

func (s OrderStatus) Terminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled
}

func (s OrderStatus) Label() string {
	switch s {
	case OrderStatusPending:
		return "Pending"
	case OrderStatusInProgress:
		return "In progress"
	case OrderStatusDelivered:
		return "Delivered"
	case OrderStatusCancelled:
		return "Cancelled"
	}
	return string(s)
}

// Location is the delivery point captured at checkout, stored as given.
type Location struct {
	Latitude  decimal.Decimal `json:"latitude"`
	Longitude decimal.Decimal `json:"longitude"`
	Address   string          `json:"address,omitempty"`
}

type AgentPosition struct {
	Latitude  decimal.Decimal `json:"latitude"`
	Longitude decimal.Decimal `json:"longitude"`
	UpdatedAt time.Time       `json:"updated_at"`
}

type Order struct {
	ID            int64           `json:"id"`
	UserID        int64           `json:"user_id"`
	OrderNumber   string          `json:"order_number"`
	Status        OrderStatus     `json:"status"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	Location      *Location       `json:"location,omitempty"`
	AgentID       *int64          `json:"agent_id,omitempty"`
	AgentPosition *AgentPosition  `json:"agent_position,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
	Version       int             `json:"version"`
	Items         []OrderItem     `json:"items,omitempty"`
}

func (o *Order) AssignedTo(userID int64) bool {
	return o.AgentID != nil && *o.AgentID == userID
}

type OrderItem struct {
	ID          int64           `json:"id"`
	OrderID     int64           `json:"order_id"`
	ProductID   int64           `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Subtotal    decimal.Decimal `json:"subtotal"`
	CreatedAt   time.Time       `json:"created_at"`
}
