package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/safar/boutique-store/internal/models"
	"github.com/shopspring/decimal"
)

func (h *Handler) GetCart(c *gin.Context) {
	cart, err := h.shop.Cart(c.Request.Context(), identity(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "cart retrieved", cart)
}

func (h *Handler) CartCount(c *gin.Context) {
	n, err := h.shop.CartCount(c.Request.Context(), identity(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "cart count retrieved", gin.H{"count": n})
}

type addToCartRequest struct {
	ProductID int64 `json:"product_id" binding:"required"`
	Quantity  *int  `json:"quantity"`
}

func (h *Handler) AddToCart(c *gin.Context) {
	var req addToCartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	qty := 1
	if req.Quantity != nil {
		qty = *req.Quantity
	}

	line, err := h.shop.AddToCart(c.Request.Context(), identity(c), req.ProductID, qty)
	if err != nil {
		h.fail(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "added to cart", line)
}

type quantityRequest struct {
	Quantity *int `json:"quantity" binding:"required"`
}

func (h *Handler) SetCartQuantity(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req quantityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	if err := h.shop.SetCartQuantity(c.Request.Context(), identity(c), id, *req.Quantity); err != nil {
		h.fail(c, err)
		return
	}
	message := "quantity updated"
	if *req.Quantity <= 0 {
		message = "item removed from cart"
	}
	SuccessResponse(c, http.StatusOK, message, nil)
}

func (h *Handler) RemoveFromCart(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.shop.RemoveFromCart(c.Request.Context(), identity(c), id); err != nil {
		h.fail(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "item removed from cart", nil)
}

type checkoutRequest struct {
	Latitude  *decimal.Decimal `json:"latitude"`
	Longitude *decimal.Decimal `json:"longitude"`
	Address   string           `json:"address"`
}

func (r checkoutRequest) location() *models.Location {
	if r.Latitude == nil || r.Longitude == nil {
		return nil
	}
	return &models.Location{Latitude: *r.Latitude, Longitude: *r.Longitude, Address: r.Address}
}

func (h *Handler) Checkout(c *gin.Context) {
	var req checkoutRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			ErrorResponse(c, http.StatusBadRequest, "invalid request body: "+err.Error())
			return
		}
	}

	order, err := h.shop.Checkout(c.Request.Context(), identity(c), req.location())
	if err != nil {
		h.fail(c, err)
		return
	}
	SuccessResponse(c, http.StatusCreated, "order placed", order)
}
