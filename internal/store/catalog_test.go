package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/safar/boutique-store/internal/database"
	"github.com/safar/boutique-store/internal/models"
	"github.com/safar/boutique-store/internal/store"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProductCategoriesAndListing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	q := f.store.Reader()

	clothes := &models.Category{Name: "Clothes", Active: true}
	require.NoError(t, q.CreateCategory(ctx, clothes))
	assert.Equal(t, "fas fa-folder", clothes.Icon)

	shirt := f.product(t, "Shirt", 300, clothes.ID)
	promo := decimal.NewFromInt(250)
	hat := &models.Product{Name: "Hat", Price: decimal.NewFromInt(500), PromoPrice: &promo}
	require.NoError(t, q.CreateProduct(ctx, hat))

	got, err := q.GetProduct(ctx, shirt.ID)
	require.NoError(t, err)
	assert.Equal(t, []int64{clothes.ID}, got.CategoryIDs)

	page, err := q.ListProducts(ctx, store.ProductFilter{CategoryID: clothes.ID})
	require.NoError(t, err)
	assert.EqualValues(t, 1, page.Total)

	page, err = q.ListProducts(ctx, store.ProductFilter{PromoOnly: true})
	require.NoError(t, err)
	require.EqualValues(t, 1, page.Total)
	assert.Equal(t, hat.ID, page.Items.([]models.Product)[0].ID)

	page, err = q.ListProducts(ctx, store.ProductFilter{Sort: store.SortByPriceDesc})
	require.NoError(t, err)
	assert.Equal(t, hat.ID, page.Items.([]models.Product)[0].ID)

	byID, err := q.GetProductsByID(ctx, []int64{shirt.ID, hat.ID, 9999})
	require.NoError(t, err)
	assert.Len(t, byID, 2)

	err = q.CreateProduct(ctx, &models.Product{Name: "Bad", Price: decimal.NewFromInt(1), CategoryIDs: []int64{9999}})
	assert.ErrorIs(t, err, database.ErrCategoryNotFound)
}

func TestUpdateProductPriceOptimistic(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	q := f.store.Reader()

	shirt := f.product(t, "Shirt", 300)

	require.NoError(t, q.UpdateProductPrice(ctx, shirt.ID, decimal.NewFromInt(350), nil, shirt.Version))

	err := q.UpdateProductPrice(ctx, shirt.ID, decimal.NewFromInt(400), nil, shirt.Version)
	assert.ErrorIs(t, err, database.ErrOptimisticLockFailed)

	tooHigh := decimal.NewFromInt(900)
	err = q.UpdateProductPrice(ctx, shirt.ID, decimal.NewFromInt(400), &tooHigh, shirt.Version+1)
	assert.ErrorIs(t, err, database.ErrInvalidPrice)
}

func TestCategoryTree(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	q := f.store.Reader()

	root := &models.Category{Name: "Root", Active: true}
	require.NoError(t, q.CreateCategory(ctx, root))
	mid := &models.Category{Name: "Mid", ParentID: &root.ID, Active: true}
	require.NoError(t, q.CreateCategory(ctx, mid))
	leaf := &models.Category{Name: "Leaf", ParentID: &mid.ID, Active: true}
	require.NoError(t, q.CreateCategory(ctx, leaf))

	ancestors, err := q.CategoryAncestors(ctx, leaf.ID)
	require.NoError(t, err)
	assert.Equal(t, []int64{mid.ID, root.ID}, ancestors)

	err = q.CreateCategory(ctx, &models.Category{Name: "Root"})
	assert.ErrorIs(t, err, database.ErrDuplicateName)

	root.ParentID = &root.ID
	assert.ErrorIs(t, q.UpdateCategory(ctx, root), database.ErrCategoryCycle)

	require.NoError(t, q.DeleteCategory(ctx, root.ID))
	_, err = q.GetCategory(ctx, leaf.ID)
	assert.ErrorIs(t, err, database.ErrCategoryNotFound)
}

func TestRatingsAndOverview(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	q := f.store.Reader()

	shirt := f.product(t, "Shirt", 300)

	require.NoError(t, q.UpsertRating(ctx, &models.Rating{ProductID: shirt.ID, UserID: f.client.ID, Value: 2}))
	require.NoError(t, q.UpsertRating(ctx, &models.Rating{ProductID: shirt.ID, UserID: f.agent.ID, Value: 5}))
	// Rating again replaces the earlier vote.
	require.NoError(t, q.UpsertRating(ctx, &models.Rating{ProductID: shirt.ID, UserID: f.agent.ID, Value: 4}))

	err := q.UpsertRating(ctx, &models.Rating{ProductID: shirt.ID, UserID: f.staff.ID, Value: 6})
	assert.ErrorIs(t, err, database.ErrInvalidRating)

	got, err := q.GetProduct(ctx, shirt.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Rating.Count)
	assert.True(t, got.Rating.Average.Equal(decimal.NewFromInt(3)))

	overview, err := q.RatingOverview(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, overview.Count)

	low, err := q.ListLowRatings(ctx, 3, 5)
	require.NoError(t, err)
	require.Len(t, low, 1)
	assert.Equal(t, f.client.ID, low[0].UserID)

	n, err := q.CountUsersSince(ctx, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)
}
