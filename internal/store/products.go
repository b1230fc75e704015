package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"
	"github.com/safar/boutique-store/internal/database"
	"github.com/safar/boutique-store/internal/models"
	"github.com/shopspring/decimal"
)

type ProductSort string

const (
	SortByName      ProductSort = "name"
	SortByPriceAsc  ProductSort = "price_asc"
	SortByPriceDesc ProductSort = "price_desc"
	SortByNewest    ProductSort = "date"
)

type ProductFilter struct {
	CategoryID int64
	Search     string
	PromoOnly  bool
	Sort       ProductSort
	Page       int
	PageSize   int
}

const productSelect = `
		SELECT p.id, p.name, p.description, p.price, p.promo_price,
		       p.created_at, p.updated_at, p.version,
		       COALESCE(r.average, 0), COALESCE(r.votes, 0),
		       ARRAY(SELECT pc.category_id FROM product_categories pc
		             WHERE pc.product_id = p.id ORDER BY pc.category_id)
		FROM products p
		LEFT JOIN (
			SELECT product_id, ROUND(AVG(value), 2) AS average, COUNT(*) AS votes
			FROM ratings
			GROUP BY product_id
		) r ON r.product_id = p.id`

func scanProduct(row interface{ Scan(...any) error }, product *models.Product) error {
	var promo decimal.NullDecimal
	var categoryIDs pq.Int64Array

	err := row.Scan(
		&product.ID,
		&product.Name,
		&product.Description,
		&product.Price,
		&promo,
		&product.CreatedAt,
		&product.UpdatedAt,
		&product.Version,
		&product.Rating.Average,
		&product.Rating.Count,
		&categoryIDs,
	)
	if err != nil {
		return err
	}

	product.PromoPrice = nil
	if promo.Valid {
		v := promo.Decimal
		product.PromoPrice = &v
	}
	product.CategoryIDs = []int64(categoryIDs)
	if product.CategoryIDs == nil {
		product.CategoryIDs = []int64{}
	}
	return nil
}

func nullDecimal(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: *d, Valid: true}
}

func (s *Queries) CreateProduct(ctx context.Context, product *models.Product) error {
	query := `
		INSERT INTO products (name, description, price, promo_price, created_at, updated_at, version)
		VALUES ($1, $2, $3, $4, NOW(), NOW(), 1)
		RETURNING id, created_at, updated_at, version`

	err := s.q.QueryRowContext(ctx, query,
		product.Name, product.Description, product.Price, nullDecimal(product.PromoPrice),
	).Scan(&product.ID, &product.CreatedAt, &product.UpdatedAt, &product.Version)
	if err != nil {
		if database.IsCheckViolation(err) {
			return fmt.Errorf("create product: %w", database.ErrInvalidPrice)
		}
		return fmt.Errorf("create product: %w", err)
	}

	if len(product.CategoryIDs) > 0 {
		_, err = s.q.ExecContext(ctx,
			`INSERT INTO product_categories (product_id, category_id)
			 SELECT $1, unnest($2::bigint[])
			 ON CONFLICT DO NOTHING`,
			product.ID, pq.Array(product.CategoryIDs))
		if err != nil {
			if database.IsForeignKeyViolation(err) {
				return fmt.Errorf("link product categories: %w", database.ErrCategoryNotFound)
			}
			return fmt.Errorf("link product categories: %w", err)
		}
	}

	return nil
}

func (s *Queries) GetProduct(ctx context.Context, id int64) (*models.Product, error) {
	product := &models.Product{}

	err := scanProduct(s.q.QueryRowContext(ctx, productSelect+` WHERE p.id = $1`, id), product)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrProductNotFound
		}
		return nil, fmt.Errorf("get product: %w", err)
	}

	return product, nil
}

// GetProductsByID loads a batch of products keyed by id. Missing ids are simply
// absent from the map.
func (s *Queries) GetProductsByID(ctx context.Context, ids []int64) (map[int64]*models.Product, error) {
	products := make(map[int64]*models.Product, len(ids))
	if len(ids) == 0 {
		return products, nil
	}

	rows, err := s.q.QueryContext(ctx, productSelect+` WHERE p.id = ANY($1)`, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("get products: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		product := &models.Product{}
		if err := scanProduct(rows, product); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products[product.ID] = product
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return products, nil
}

func (s *Queries) ListProducts(ctx context.Context, filter ProductFilter) (*OffsetPage, error) {
	page, pageSize := NormalizePage(filter.Page, filter.PageSize, 12)

	var where []string
	var args []any
	if filter.CategoryID > 0 {
		args = append(args, filter.CategoryID)
		where = append(where, fmt.Sprintf(
			`EXISTS (SELECT 1 FROM product_categories pc WHERE pc.product_id = p.id AND pc.category_id = $%d)`, len(args)))
	}
	if term := strings.TrimSpace(filter.Search); term != "" {
		args = append(args, "%"+term+"%")
		where = append(where, fmt.Sprintf(`(p.name ILIKE $%d OR p.description ILIKE $%d)`, len(args), len(args)))
	}
	if filter.PromoOnly {
		where = append(where, `p.promo_price IS NOT NULL`)
	}

	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int64
	err := s.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM products p`+clause, args...).Scan(&total)
	if err != nil {
		return nil, fmt.Errorf("count products: %w", err)
	}

	order := " ORDER BY p.name, p.id"
	switch filter.Sort {
	case SortByPriceAsc:
		order = " ORDER BY p.price, p.id"
	case SortByPriceDesc:
		order = " ORDER BY p.price DESC, p.id"
	case SortByNewest:
		order = " ORDER BY p.created_at DESC, p.id DESC"
	}

	args = append(args, pageSize, (page-1)*pageSize)
	query := productSelect + clause + order +
		fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	products := []models.Product{}
	for rows.Next() {
		var product models.Product
		if err := scanProduct(rows, &product); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, product)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return newOffsetPage(products, total, page, pageSize), nil
}

// UpdateProductPrice changes list and promotional price under an optimistic
// version check. Existing order lines keep the price they were sold at.
func (s *Queries) UpdateProductPrice(ctx context.Context, id int64, price decimal.Decimal, promo *decimal.Decimal, version int) error {
	result, err := s.q.ExecContext(ctx,
		`UPDATE products
		 SET price = $1, promo_price = $2, version = version + 1, updated_at = NOW()
		 WHERE id = $3 AND version = $4`,
		price, nullDecimal(promo), id, version)
	if err != nil {
		if database.IsCheckViolation(err) {
			return fmt.Errorf("update price: %w", database.ErrInvalidPrice)
		}
		return fmt.Errorf("update price: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return database.ErrOptimisticLockFailed
	}

	return nil
}
