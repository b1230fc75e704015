package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/safar/boutique-store/internal/database"
	"github.com/safar/boutique-store/internal/models"
)

type CategorySales struct {
	CategoryID int64  `json:"category_id"`
	Name       string `json:"name"`
	Quantity   int64  `json:"quantity"`
}

const categoryColumns = `id, name, description, icon, parent_id, active, created_at`

func scanCategory(row interface{ Scan(...any) error }, c *models.Category) error {
	var parent sql.NullInt64
	if err := row.Scan(&c.ID, &c.Name, &c.Description, &c.Icon, &parent, &c.Active, &c.CreatedAt); err != nil {
		return err
	}
	c.ParentID = nil
	if parent.Valid {
		v := parent.Int64
		c.ParentID = &v
	}
	return nil
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func categoryWriteError(op string, err error) error {
	switch {
	case database.IsUniqueViolation(err):
		return fmt.Errorf("%s: %w", op, database.ErrDuplicateName)
	case database.IsForeignKeyViolation(err):
		return fmt.Errorf("%s: parent %w", op, database.ErrCategoryNotFound)
	case database.IsCheckViolation(err):
		return fmt.Errorf("%s: %w", op, database.ErrCategoryCycle)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func (s *Queries) CreateCategory(ctx context.Context, c *models.Category) error {
	if c.Icon == "" {
		c.Icon = "fas fa-folder"
	}

	query := `
		INSERT INTO categories (name, description, icon, parent_id, active, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		RETURNING id, created_at`

	err := s.q.QueryRowContext(ctx, query,
		c.Name, c.Description, c.Icon, nullInt64(c.ParentID), c.Active,
	).Scan(&c.ID, &c.CreatedAt)
	if err != nil {
		return categoryWriteError("create category", err)
	}
	return nil
}

func (s *Queries) GetCategory(ctx context.Context, id int64) (*models.Category, error) {
	c := &models.Category{}

	err := scanCategory(s.q.QueryRowContext(ctx,
		`SELECT `+categoryColumns+` FROM categories WHERE id = $1`, id), c)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrCategoryNotFound
		}
		return nil, fmt.Errorf("get category: %w", err)
	}
	return c, nil
}

func (s *Queries) UpdateCategory(ctx context.Context, c *models.Category) error {
	if c.Icon == "" {
		c.Icon = "fas fa-folder"
	}

	result, err := s.q.ExecContext(ctx,
		`UPDATE categories
		 SET name = $1, description = $2, icon = $3, parent_id = $4, active = $5
		 WHERE id = $6`,
		c.Name, c.Description, c.Icon, nullInt64(c.ParentID), c.Active, c.ID)
	if err != nil {
		return categoryWriteError("update category", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return database.ErrCategoryNotFound
	}
	return nil
}

// DeleteCategory removes a category; child categories go with it through the
// ON DELETE CASCADE on parent_id.
func (s *Queries) DeleteCategory(ctx context.Context, id int64) error {
	result, err := s.q.ExecContext(ctx, `DELETE FROM categories WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete category: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return database.ErrCategoryNotFound
	}
	return nil
}

func (s *Queries) ListCategories(ctx context.Context) ([]models.Category, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT `+categoryColumns+` FROM categories ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	categories := []models.Category{}
	for rows.Next() {
		var c models.Category
		if err := scanCategory(rows, &c); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		categories = append(categories, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return categories, nil
}

// CategoryAncestors walks parent links upward from id, nearest first. The walk
// is bounded so a cycle already present in the table cannot loop forever.
func (s *Queries) CategoryAncestors(ctx context.Context, id int64) ([]int64, error) {
	query := `
		WITH RECURSIVE chain(id, parent_id, depth) AS (
			SELECT id, parent_id, 0 FROM categories WHERE id = $1
			UNION ALL
			SELECT c.id, c.parent_id, chain.depth + 1
			FROM categories c
			JOIN chain ON c.id = chain.parent_id
			WHERE chain.depth < 64
		)
		SELECT id FROM chain WHERE depth > 0 ORDER BY depth`

	rows, err := s.q.QueryContext(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("category ancestors: %w", err)
	}
	defer rows.Close()

	var ancestors []int64
	for rows.Next() {
		var ancestor int64
		if err := rows.Scan(&ancestor); err != nil {
			return nil, fmt.Errorf("scan ancestor: %w", err)
		}
		ancestors = append(ancestors, ancestor)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return ancestors, nil
}

// TopCategories ranks categories by units sold across all orders.
func (s *Queries) TopCategories(ctx context.Context, limit int) ([]CategorySales, error) {
	query := `
		SELECT c.id, c.name, COALESCE(SUM(oi.quantity), 0) AS sold
		FROM categories c
		LEFT JOIN product_categories pc ON pc.category_id = c.id
		LEFT JOIN order_items oi ON oi.product_id = pc.product_id
		GROUP BY c.id, c.name
		ORDER BY sold DESC, c.name
		LIMIT $1`

	rows, err := s.q.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("top categories: %w", err)
	}
	defer rows.Close()

	sales := []CategorySales{}
	for rows.Next() {
		var cs CategorySales
		if err := rows.Scan(&cs.CategoryID, &cs.Name, &cs.Quantity); err != nil {
			return nil, fmt.Errorf("scan category sales: %w", err)
		}
		sales = append(sales, cs)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return sales, nil
}
