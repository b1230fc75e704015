package shop

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/safar/boutique-store/internal/auth"
	"github.com/safar/boutique-store/internal/database"
	"github.com/safar/boutique-store/internal/models"
	"github.com/safar/boutique-store/internal/pricing"
	"github.com/safar/boutique-store/internal/store"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

func (s *Service) ListProducts(ctx context.Context, id auth.Identity, filter store.ProductFilter) (*store.OffsetPage, error) {
	if err := auth.Authorize(id, auth.ActionBrowse); err != nil {
		return nil, err
	}
	return s.db.Reader().ListProducts(ctx, filter)
}

func (s *Service) GetProduct(ctx context.Context, id auth.Identity, productID int64) (*models.Product, error) {
	if err := auth.Authorize(id, auth.ActionBrowse); err != nil {
		return nil, err
	}
	return s.db.Reader().GetProduct(ctx, productID)
}

func (s *Service) CreateProduct(ctx context.Context, id auth.Identity, p *models.Product) error {
	if err := auth.Authorize(id, auth.ActionManageCatalog); err != nil {
		return err
	}
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" {
		return fmt.Errorf("%w: product name is required", database.ErrInvalidArgument)
	}
	if !pricing.ValidateProductPrice(p.Price, p.PromoPrice) {
		return database.ErrInvalidPrice
	}

	err := s.db.InTx(ctx, database.DefaultTxOptions(), func(tx store.Tx) error {
		return tx.CreateProduct(ctx, p)
	})
	if err != nil {
		return err
	}

	s.log.WithFields(logrus.Fields{"product_id": p.ID, "actor": id.String()}).Info("product created")
	return nil
}

// UpdatePrice changes a product's prices. version must match the product's
// current version. Orders already placed keep their frozen prices.
func (s *Service) UpdatePrice(ctx context.Context, id auth.Identity, productID int64, price decimal.Decimal, promo *decimal.Decimal, version int) (*models.Product, error) {
	if err := auth.Authorize(id, auth.ActionManageCatalog); err != nil {
		return nil, err
	}
	if !pricing.ValidateProductPrice(price, promo) {
		return nil, database.ErrInvalidPrice
	}

	q := s.db.Reader()
	if _, err := q.GetProduct(ctx, productID); err != nil {
		return nil, err
	}
	if err := q.UpdateProductPrice(ctx, productID, price, promo, version); err != nil {
		return nil, err
	}
	return q.GetProduct(ctx, productID)
}

// RateProduct records the caller's 1 to 5 rating; rating again replaces the
// previous one.
func (s *Service) RateProduct(ctx context.Context, id auth.Identity, productID int64, value int, comment string) (*models.Product, error) {
	if err := auth.Authorize(id, auth.ActionRate); err != nil {
		return nil, err
	}
	if value < 1 || value > 5 {
		return nil, database.ErrInvalidRating
	}

	q := s.db.Reader()
	r := &models.Rating{ProductID: productID, UserID: id.UserID, Value: value, Comment: strings.TrimSpace(comment)}
	if err := q.UpsertRating(ctx, r); err != nil {
		return nil, err
	}
	return q.GetProduct(ctx, productID)
}

func (s *Service) ListCategories(ctx context.Context, id auth.Identity) ([]models.Category, error) {
	if err := auth.Authorize(id, auth.ActionBrowse); err != nil {
		return nil, err
	}
	return s.db.Reader().ListCategories(ctx)
}

func (s *Service) CreateCategory(ctx context.Context, id auth.Identity, c *models.Category) error {
	if err := auth.Authorize(id, auth.ActionManageCatalog); err != nil {
		return err
	}
	if err := normalizeCategory(c); err != nil {
		return err
	}
	return s.db.InTx(ctx, database.DefaultTxOptions(), func(tx store.Tx) error {
		return tx.CreateCategory(ctx, c)
	})
}

// UpdateCategory rewrites a category. Re-parenting is refused when the new
// parent is the category itself or one of its descendants.
func (s *Service) UpdateCategory(ctx context.Context, id auth.Identity, c *models.Category) error {
	if err := auth.Authorize(id, auth.ActionManageCatalog); err != nil {
		return err
	}
	if err := normalizeCategory(c); err != nil {
		return err
	}

	return s.db.InTx(ctx, database.DefaultTxOptions(), func(tx store.Tx) error {
		if c.ParentID != nil {
			if *c.ParentID == c.ID {
				return database.ErrCategoryCycle
			}
			ancestors, err := tx.CategoryAncestors(ctx, *c.ParentID)
			if err != nil {
				return err
			}
			if slices.Contains(ancestors, c.ID) {
				return database.ErrCategoryCycle
			}
		}
		return tx.UpdateCategory(ctx, c)
	})
}

func (s *Service) DeleteCategory(ctx context.Context, id auth.Identity, categoryID int64) error {
	if err := auth.Authorize(id, auth.ActionManageCatalog); err != nil {
		return err
	}
	return s.db.Reader().DeleteCategory(ctx, categoryID)
}

func normalizeCategory(c *models.Category) error {
	c.Name = strings.TrimSpace(c.Name)
	if c.Name == "" {
		return fmt.Errorf("%w: category name is required", database.ErrInvalidArgument)
	}
	return nil
}
