package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/safar/boutique-store/internal/database"
	"github.com/safar/boutique-store/internal/models"
	"github.com/shopspring/decimal"
)

// Querier is satisfied by both *sql.DB and *sql.Tx, so every query below runs
// unchanged inside or outside a transaction.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type UserStore interface {
	CreateUser(ctx context.Context, email, name string, role models.Role) (*models.User, error)
	GetUser(ctx context.Context, id int64) (*models.User, error)
	CountUsersSince(ctx context.Context, since time.Time) (int64, error)
}

type CatalogStore interface {
	CreateProduct(ctx context.Context, p *models.Product) error
	GetProduct(ctx context.Context, id int64) (*models.Product, error)
	GetProductsByID(ctx context.Context, ids []int64) (map[int64]*models.Product, error)
	ListProducts(ctx context.Context, filter ProductFilter) (*OffsetPage, error)
	UpdateProductPrice(ctx context.Context, id int64, price decimal.Decimal, promo *decimal.Decimal, version int) error

	CreateCategory(ctx context.Context, c *models.Category) error
	GetCategory(ctx context.Context, id int64) (*models.Category, error)
	UpdateCategory(ctx context.Context, c *models.Category) error
	DeleteCategory(ctx context.Context, id int64) error
	ListCategories(ctx context.Context) ([]models.Category, error)
	CategoryAncestors(ctx context.Context, id int64) ([]int64, error)

	UpsertRating(ctx context.Context, r *models.Rating) error
	RatingOverview(ctx context.Context) (models.RatingSummary, error)
	ListLowRatings(ctx context.Context, below, limit int) ([]models.Rating, error)
	TopCategories(ctx context.Context, limit int) ([]CategorySales, error)
}

type CartStore interface {
	FindCartLine(ctx context.Context, ownerID, productID int64) (*models.CartLine, error)
	GetCartLine(ctx context.Context, ownerID, lineID int64) (*models.CartLine, error)
	AddCartLine(ctx context.Context, ownerID, productID int64, qty int) (*models.CartLine, error)
	UpdateCartLineQuantity(ctx context.Context, ownerID, lineID int64, quantity int) error
	DeleteCartLine(ctx context.Context, ownerID, lineID int64) error
	ListCartLines(ctx context.Context, ownerID int64, lock bool) ([]models.CartLine, error)
	ClearCart(ctx context.Context, ownerID int64) (int64, error)
}

type OrderStore interface {
	InsertOrder(ctx context.Context, o *models.Order) error
	InsertOrderItem(ctx context.Context, item *models.OrderItem) error
	GetOrder(ctx context.Context, id int64) (*models.Order, error)
	LockOrder(ctx context.Context, id int64) (*models.Order, error)
	LockNextPendingOrder(ctx context.Context) (*models.Order, error)
	SaveFulfillment(ctx context.Context, o *models.Order, expected models.OrderStatus) error
	ListOrdersCursor(ctx context.Context, userID int64, cursor string, limit int) (*CursorPage, error)
	ListOrders(ctx context.Context, filter OrderFilter) (*OffsetPage, error)
	OrdersInScope(ctx context.Context, scope Scope) ([]models.Order, error)
	CountOrders(ctx context.Context, status models.OrderStatus) (int64, error)
}

// Tx is everything the shop service can do against persistence inside one
// unit of work.
type Tx interface {
	UserStore
	CatalogStore
	CartStore
	OrderStore
}

// Queries implements Tx on top of any Querier.
type Queries struct {
	q Querier
}

func NewQueries(q Querier) *Queries {
	return &Queries{q: q}
}

var _ Tx = (*Queries)(nil)

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Reader runs statements directly on the pool, outside any transaction.
func (s *Store) Reader() Tx {
	return NewQueries(s.db)
}

func (s *Store) InTx(ctx context.Context, opts database.TxOptions, fn func(Tx) error) error {
	return database.WithTransaction(ctx, s.db, opts, func(tx *sql.Tx) error {
		return fn(NewQueries(tx))
	})
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
