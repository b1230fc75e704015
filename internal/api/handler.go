// Package api exposes the storefront over HTTP with gin.
package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/safar/boutique-store/internal/auth"
	"github.com/safar/boutique-store/internal/models"
	"github.com/safar/boutique-store/internal/shop"
	"github.com/safar/boutique-store/internal/stats"
	"github.com/safar/boutique-store/internal/store"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// Storefront is the set of shop operations the HTTP layer drives.
type Storefront interface {
	ListProducts(ctx context.Context, id auth.Identity, filter store.ProductFilter) (*store.OffsetPage, error)
	GetProduct(ctx context.Context, id auth.Identity, productID int64) (*models.Product, error)
	CreateProduct(ctx context.Context, id auth.Identity, p *models.Product) error
	UpdatePrice(ctx context.Context, id auth.Identity, productID int64, price decimal.Decimal, promo *decimal.Decimal, version int) (*models.Product, error)
	RateProduct(ctx context.Context, id auth.Identity, productID int64, value int, comment string) (*models.Product, error)

	ListCategories(ctx context.Context, id auth.Identity) ([]models.Category, error)
	CreateCategory(ctx context.Context, id auth.Identity, c *models.Category) error
	UpdateCategory(ctx context.Context, id auth.Identity, c *models.Category) error
	DeleteCategory(ctx context.Context, id auth.Identity, categoryID int64) error

	Cart(ctx context.Context, id auth.Identity) (*shop.Cart, error)
	CartCount(ctx context.Context, id auth.Identity) (int, error)
	AddToCart(ctx context.Context, id auth.Identity, productID int64, qty int) (models.CartLine, error)
	SetCartQuantity(ctx context.Context, id auth.Identity, lineID int64, qty int) error
	RemoveFromCart(ctx context.Context, id auth.Identity, lineID int64) error
	Checkout(ctx context.Context, id auth.Identity, location *models.Location) (*models.Order, error)

	GetOrder(ctx context.Context, id auth.Identity, orderID int64) (*models.Order, error)
	ListMyOrders(ctx context.Context, id auth.Identity, cursor string, limit int) (*store.CursorPage, error)
	ListOrders(ctx context.Context, id auth.Identity, q shop.OrderQuery) (*store.OffsetPage, error)
	Accept(ctx context.Context, id auth.Identity, orderID int64) (*shop.Transition, error)
	Complete(ctx context.Context, id auth.Identity, orderID int64) (*shop.Transition, error)
	Cancel(ctx context.Context, id auth.Identity, orderID int64) (*shop.Transition, error)
	ClaimNext(ctx context.Context, id auth.Identity) (*shop.Transition, error)
	UpdatePosition(ctx context.Context, id auth.Identity, orderID int64, lat, lng decimal.Decimal, at time.Time) (*models.Order, error)

	AgentDashboard(ctx context.Context, id auth.Identity) (*stats.AgentStats, error)
	AdminDashboard(ctx context.Context, id auth.Identity) (*shop.AdminDashboard, error)
}

var _ Storefront = (*shop.Service)(nil)

type Pinger interface {
	Ping(ctx context.Context) error
}

type Handler struct {
	shop Storefront
	db   Pinger
	log  logrus.FieldLogger
}

func NewHandler(s Storefront, db Pinger, log logrus.FieldLogger) *Handler {
	return &Handler{shop: s, db: db, log: log}
}

func (h *Handler) RegisterRoutes(router gin.IRouter) {
	router.GET("/healthz", h.Health)

	products := router.Group("/products")
	{
		products.GET("", h.ListProducts)
		products.POST("", h.CreateProduct)
		products.GET("/:id", h.GetProduct)
		products.PUT("/:id/price", h.UpdatePrice)
		products.POST("/:id/ratings", h.RateProduct)
	}

	categories := router.Group("/categories")
	{
		categories.GET("", h.ListCategories)
		categories.POST("", h.CreateCategory)
		categories.PUT("/:id", h.UpdateCategory)
		categories.DELETE("/:id", h.DeleteCategory)
	}

	cart := router.Group("/cart")
	{
		cart.GET("", h.GetCart)
		cart.GET("/count", h.CartCount)
		cart.POST("/items", h.AddToCart)
		cart.PATCH("/items/:id", h.SetCartQuantity)
		cart.DELETE("/items/:id", h.RemoveFromCart)
	}

	router.POST("/checkout", h.Checkout)

	orders := router.Group("/orders")
	{
		orders.GET("", h.ListOrders)
		orders.GET("/mine", h.ListMyOrders)
		orders.POST("/claim", h.ClaimNext)
		orders.GET("/:id", h.GetOrder)
		orders.POST("/:id/accept", h.Accept)
		orders.POST("/:id/complete", h.Complete)
		orders.POST("/:id/cancel", h.Cancel)
		orders.PUT("/:id/position", h.UpdatePosition)
	}

	dashboard := router.Group("/dashboard")
	{
		dashboard.GET("/agent", h.AgentDashboard)
		dashboard.GET("/admin", h.AdminDashboard)
	}
}

// NewRouter builds the gin engine with identity resolution and request
// logging in front of every route.
func NewRouter(h *Handler, identityMW gin.HandlerFunc, log logrus.FieldLogger) *gin.Engine {
	router := gin.New()
	router.RedirectTrailingSlash = false
	router.Use(gin.Recovery(), RequestLogger(log), identityMW)
	h.RegisterRoutes(router)
	return router
}

func (h *Handler) Health(c *gin.Context) {
	if err := h.db.Ping(c.Request.Context()); err != nil {
		h.log.WithError(err).Error("health check failed")
		ErrorResponse(c, http.StatusServiceUnavailable, "database unavailable")
		return
	}
	SuccessResponse(c, http.StatusOK, "ok", nil)
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		ErrorResponse(c, http.StatusBadRequest, "invalid id "+strconv.Quote(c.Param("id")))
		return 0, false
	}
	return id, true
}
