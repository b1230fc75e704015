package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/safar/boutique-store/internal/database"
	"github.com/safar/boutique-store/internal/models"
	"github.com/shopspring/decimal"
)

type OrderFilter struct {
	Status models.OrderStatus
	// AgentID limits the listing to one agent's orders. With WithPending set the
	// pending pool every agent may pick from is included as well.
	AgentID     *int64
	WithPending bool
	Page        int
	PageSize    int
}

// Scope selects the orders a dashboard is computed over. A nil AgentID means
// every order in the shop.
type Scope struct {
	AgentID *int64
}

const orderColumns = `id, user_id, order_number, status, total_amount,
		       latitude, longitude, address,
		       agent_id, agent_latitude, agent_longitude, agent_position_at,
		       created_at, updated_at, version`

func generateOrderNumber(now time.Time) string {
	return fmt.Sprintf("ORD-%s-%s", now.Format("20060102"), strings.ToUpper(uuid.NewString()[:8]))
}

func scanOrder(row interface{ Scan(...any) error }, order *models.Order) error {
	var (
		lat, lng           decimal.NullDecimal
		address            sql.NullString
		agentID            sql.NullInt64
		agentLat, agentLng decimal.NullDecimal
		positionAt         sql.NullTime
	)

	err := row.Scan(
		&order.ID,
		&order.UserID,
		&order.OrderNumber,
		&order.Status,
		&order.TotalAmount,
		&lat,
		&lng,
		&address,
		&agentID,
		&agentLat,
		&agentLng,
		&positionAt,
		&order.CreatedAt,
		&order.UpdatedAt,
		&order.Version,
	)
	if err != nil {
		return err
	}

	order.Location = nil
	if lat.Valid && lng.Valid {
		order.Location = &models.Location{
			Latitude:  lat.Decimal,
			Longitude: lng.Decimal,
			Address:   address.String,
		}
	}

	order.AgentID = nil
	if agentID.Valid {
		v := agentID.Int64
		order.AgentID = &v
	}

	order.AgentPosition = nil
	if agentLat.Valid && agentLng.Valid {
		order.AgentPosition = &models.AgentPosition{
			Latitude:  agentLat.Decimal,
			Longitude: agentLng.Decimal,
			UpdatedAt: positionAt.Time,
		}
	}
	return nil
}

func (s *Queries) InsertOrder(ctx context.Context, order *models.Order) error {
	var lat, lng decimal.NullDecimal
	var address sql.NullString
	if order.Location != nil {
		lat = decimal.NullDecimal{Decimal: order.Location.Latitude, Valid: true}
		lng = decimal.NullDecimal{Decimal: order.Location.Longitude, Valid: true}
		address = sql.NullString{String: order.Location.Address, Valid: order.Location.Address != ""}
	}

	if order.OrderNumber == "" {
		order.OrderNumber = generateOrderNumber(time.Now())
	}

	err := s.q.QueryRowContext(ctx,
		`INSERT INTO orders (user_id, order_number, status, total_amount, latitude, longitude, address,
		                     created_at, updated_at, version)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW(), 1)
		 RETURNING id, created_at, updated_at, version`,
		order.UserID, order.OrderNumber, order.Status, order.TotalAmount, lat, lng, address,
	).Scan(&order.ID, &order.CreatedAt, &order.UpdatedAt, &order.Version)
	if err != nil {
		if database.IsForeignKeyViolation(err) {
			return fmt.Errorf("create order: %w", database.ErrUserNotFound)
		}
		return fmt.Errorf("create order: %w", err)
	}
	return nil
}

func (s *Queries) InsertOrderItem(ctx context.Context, item *models.OrderItem) error {
	err := s.q.QueryRowContext(ctx,
		`INSERT INTO order_items (order_id, product_id, product_name, quantity, unit_price, subtotal, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, NOW())
		 RETURNING id, created_at`,
		item.OrderID, item.ProductID, item.ProductName, item.Quantity, item.UnitPrice, item.Subtotal,
	).Scan(&item.ID, &item.CreatedAt)
	if err != nil {
		return fmt.Errorf("create order item: %w", err)
	}
	return nil
}

func (s *Queries) GetOrder(ctx context.Context, id int64) (*models.Order, error) {
	order := &models.Order{}

	err := scanOrder(s.q.QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = $1`, id), order)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}

	items, err := s.orderItems(ctx, id)
	if err != nil {
		return nil, err
	}
	order.Items = items

	return order, nil
}

func (s *Queries) orderItems(ctx context.Context, orderID int64) ([]models.OrderItem, error) {
	itemsQuery := `
		SELECT id, order_id, product_id, product_name, quantity, unit_price, subtotal, created_at
		FROM order_items
		WHERE order_id = $1
		ORDER BY id`

	rows, err := s.q.QueryContext(ctx, itemsQuery, orderID)
	if err != nil {
		return nil, fmt.Errorf("get order items: %w", err)
	}
	defer rows.Close()

	var items []models.OrderItem
	for rows.Next() {
		var item models.OrderItem
		err := rows.Scan(
			&item.ID,
			&item.OrderID,
			&item.ProductID,
			&item.ProductName,
			&item.Quantity,
			&item.UnitPrice,
			&item.Subtotal,
			&item.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return items, nil
}

// LockOrder reads an order and holds its row lock for the rest of the
// transaction, so status checks and the following write see the same state.
func (s *Queries) LockOrder(ctx context.Context, id int64) (*models.Order, error) {
	order := &models.Order{}

	err := scanOrder(s.q.QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, id), order)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrOrderNotFound
		}
		return nil, fmt.Errorf("lock order: %w", err)
	}
	return order, nil
}

// LockNextPendingOrder claims the oldest pending order nobody else is holding.
func (s *Queries) LockNextPendingOrder(ctx context.Context) (*models.Order, error) {
	order := &models.Order{}

	query := `
		SELECT ` + orderColumns + `
		FROM orders
		WHERE status = $1
		ORDER BY created_at, id
		FOR UPDATE SKIP LOCKED
		LIMIT 1`

	err := scanOrder(s.q.QueryRowContext(ctx, query, models.OrderStatusPending), order)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrOrderNotFound
		}
		return nil, fmt.Errorf("get next pending order: %w", err)
	}
	return order, nil
}

// SaveFulfillment writes the mutable part of an order: status, agent and agent
// position. The write only lands if the row still has the expected status and
// version, so a concurrent transition turns into ErrInvalidTransition instead
// of a silent overwrite.
func (s *Queries) SaveFulfillment(ctx context.Context, order *models.Order, expected models.OrderStatus) error {
	var agentLat, agentLng decimal.NullDecimal
	var positionAt sql.NullTime
	if p := order.AgentPosition; p != nil {
		agentLat = decimal.NullDecimal{Decimal: p.Latitude, Valid: true}
		agentLng = decimal.NullDecimal{Decimal: p.Longitude, Valid: true}
		positionAt = sql.NullTime{Time: p.UpdatedAt, Valid: true}
	}

	err := s.q.QueryRowContext(ctx,
		`UPDATE orders
		 SET status = $1, agent_id = $2, agent_latitude = $3, agent_longitude = $4,
		     agent_position_at = $5, updated_at = NOW(), version = version + 1
		 WHERE id = $6 AND status = $7 AND version = $8
		 RETURNING updated_at, version`,
		order.Status, nullInt64(order.AgentID), agentLat, agentLng, positionAt,
		order.ID, expected, order.Version,
	).Scan(&order.UpdatedAt, &order.Version)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: order %d changed concurrently", database.ErrInvalidTransition, order.ID)
		}
		return fmt.Errorf("save order %d: %w", order.ID, err)
	}
	return nil
}

func (s *Queries) ListOrdersCursor(ctx context.Context, userID int64, cursor string, limit int) (*CursorPage, error) {
	cursorData, err := DecodeCursor(cursor)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", database.ErrInvalidArgument, err)
	}

	args := []any{userID, limit + 1}
	where := `user_id = $1`
	if !cursorData.IsStart() {
		where += ` AND (created_at, id) < ($3, $4)`
		args = append(args, cursorData.CreatedAt, cursorData.ID)
	}

	query := `
		SELECT ` + orderColumns + `
		FROM orders
		WHERE ` + where + `
		ORDER BY created_at DESC, id DESC
		LIMIT $2`

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	orders := []models.Order{}
	for rows.Next() {
		var order models.Order
		if err := scanOrder(rows, &order); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, order)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	hasMore := len(orders) > limit
	if hasMore {
		orders = orders[:limit]
	}

	for i := range orders {
		items, err := s.orderItems(ctx, orders[i].ID)
		if err != nil {
			return nil, err
		}
		orders[i].Items = items
	}

	var nextCursor string
	if hasMore && len(orders) > 0 {
		lastOrder := orders[len(orders)-1]
		nextCursor = EncodeCursor(OrderCursor{
			CreatedAt: lastOrder.CreatedAt,
			ID:        lastOrder.ID,
		})
	}

	return &CursorPage{
		Items:      orders,
		NextCursor: nextCursor,
		HasMore:    hasMore,
	}, nil
}

func (s *Queries) ListOrders(ctx context.Context, filter OrderFilter) (*OffsetPage, error) {
	page, pageSize := NormalizePage(filter.Page, filter.PageSize, 20)

	var where []string
	var args []any
	if filter.Status != "" {
		args = append(args, filter.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.AgentID != nil {
		args = append(args, *filter.AgentID)
		cond := fmt.Sprintf("agent_id = $%d", len(args))
		if filter.WithPending {
			args = append(args, models.OrderStatusPending)
			cond = fmt.Sprintf("(%s OR status = $%d)", cond, len(args))
		}
		where = append(where, cond)
	}

	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int64
	if err := s.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM orders`+clause, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count orders: %w", err)
	}

	args = append(args, pageSize, (page-1)*pageSize)
	query := `SELECT ` + orderColumns + ` FROM orders` + clause +
		fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	orders := []models.Order{}
	for rows.Next() {
		var order models.Order
		if err := scanOrder(rows, &order); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, order)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return newOffsetPage(orders, total, page, pageSize), nil
}

// OrdersInScope loads order headers, newest first, for dashboard computation.
func (s *Queries) OrdersInScope(ctx context.Context, scope Scope) ([]models.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders`
	var args []any
	if scope.AgentID != nil {
		query += ` WHERE agent_id = $1`
		args = append(args, *scope.AgentID)
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("orders in scope: %w", err)
	}
	defer rows.Close()

	orders := []models.Order{}
	for rows.Next() {
		var order models.Order
		if err := scanOrder(rows, &order); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, order)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return orders, nil
}

func (s *Queries) CountOrders(ctx context.Context, status models.OrderStatus) (int64, error) {
	var n int64
	err := s.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM orders WHERE status = $1`, status).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count %s orders: %w", status, err)
	}
	return n, nil
}
