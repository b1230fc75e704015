package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/safar/boutique-store/internal/database"
	"github.com/safar/boutique-store/internal/models"
)

func scanCartLine(row interface{ Scan(...any) error }, line *models.CartLine) error {
	return row.Scan(&line.ID, &line.OwnerID, &line.ProductID, &line.Quantity, &line.AddedAt)
}

// FindCartLine locks and returns the owner's line for a product, if any.
func (s *Queries) FindCartLine(ctx context.Context, ownerID, productID int64) (*models.CartLine, error) {
	line := &models.CartLine{}

	err := scanCartLine(s.q.QueryRowContext(ctx,
		`SELECT id, user_id, product_id, quantity, added_at
		 FROM cart_items
		 WHERE user_id = $1 AND product_id = $2
		 FOR UPDATE`,
		ownerID, productID), line)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrCartLineNotFound
		}
		return nil, fmt.Errorf("find cart line: %w", err)
	}
	return line, nil
}

func (s *Queries) GetCartLine(ctx context.Context, ownerID, lineID int64) (*models.CartLine, error) {
	line := &models.CartLine{}

	err := scanCartLine(s.q.QueryRowContext(ctx,
		`SELECT id, user_id, product_id, quantity, added_at
		 FROM cart_items
		 WHERE id = $1 AND user_id = $2`,
		lineID, ownerID), line)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrCartLineNotFound
		}
		return nil, fmt.Errorf("get cart line: %w", err)
	}
	return line, nil
}

// AddCartLine adds qty units of a product to the owner's cart in one
// statement: a missing line is created, an existing one is incremented. Two
// concurrent first adds therefore both land on the same row.
func (s *Queries) AddCartLine(ctx context.Context, ownerID, productID int64, qty int) (*models.CartLine, error) {
	line := &models.CartLine{}

	err := scanCartLine(s.q.QueryRowContext(ctx,
		`INSERT INTO cart_items (user_id, product_id, quantity, added_at)
		 VALUES ($1, $2, $3, NOW())
		 ON CONFLICT (user_id, product_id)
		 DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity
		 RETURNING id, user_id, product_id, quantity, added_at`,
		ownerID, productID, qty), line)
	if err != nil {
		switch {
		case database.IsForeignKeyViolation(err):
			return nil, fmt.Errorf("add cart line: %w", database.ErrProductNotFound)
		case database.IsCheckViolation(err):
			return nil, fmt.Errorf("add cart line: %w", database.ErrInvalidQuantity)
		}
		return nil, fmt.Errorf("add cart line: %w", err)
	}
	return line, nil
}

func (s *Queries) UpdateCartLineQuantity(ctx context.Context, ownerID, lineID int64, quantity int) error {
	result, err := s.q.ExecContext(ctx,
		`UPDATE cart_items SET quantity = $1 WHERE id = $2 AND user_id = $3`,
		quantity, lineID, ownerID)
	if err != nil {
		if database.IsCheckViolation(err) {
			return fmt.Errorf("update cart line: %w", database.ErrInvalidQuantity)
		}
		return fmt.Errorf("update cart line: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return database.ErrCartLineNotFound
	}
	return nil
}

func (s *Queries) DeleteCartLine(ctx context.Context, ownerID, lineID int64) error {
	result, err := s.q.ExecContext(ctx,
		`DELETE FROM cart_items WHERE id = $1 AND user_id = $2`, lineID, ownerID)
	if err != nil {
		return fmt.Errorf("delete cart line: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return database.ErrCartLineNotFound
	}
	return nil
}

// ListCartLines returns the owner's lines in insertion order. With lock set the
// rows stay locked until the surrounding transaction ends, which is what keeps
// two concurrent checkouts from both consuming the same cart.
func (s *Queries) ListCartLines(ctx context.Context, ownerID int64, lock bool) ([]models.CartLine, error) {
	query := `
		SELECT id, user_id, product_id, quantity, added_at
		FROM cart_items
		WHERE user_id = $1
		ORDER BY id`
	if lock {
		query += ` FOR UPDATE`
	}

	rows, err := s.q.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list cart lines: %w", err)
	}
	defer rows.Close()

	lines := []models.CartLine{}
	for rows.Next() {
		var line models.CartLine
		if err := scanCartLine(rows, &line); err != nil {
			return nil, fmt.Errorf("scan cart line: %w", err)
		}
		lines = append(lines, line)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return lines, nil
}

func (s *Queries) ClearCart(ctx context.Context, ownerID int64) (int64, error) {
	result, err := s.q.ExecContext(ctx, `DELETE FROM cart_items WHERE user_id = $1`, ownerID)
	if err != nil {
		return 0, fmt.Errorf("clear cart: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("get rows affected: %w", err)
	}
	return rowsAffected, nil
}
