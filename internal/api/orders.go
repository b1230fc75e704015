package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/safar/boutique-store/internal/auth"
	"github.com/safar/boutique-store/internal/models"
	"github.com/safar/boutique-store/internal/shop"
	"github.com/shopspring/decimal"
)

func (h *Handler) GetOrder(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	order, err := h.shop.GetOrder(c.Request.Context(), identity(c), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "order retrieved", order)
}

type myOrdersQuery struct {
	Cursor string `form:"cursor"`
	Limit  int    `form:"limit"`
}

func (h *Handler) ListMyOrders(c *gin.Context) {
	var q myOrdersQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		ErrorResponse(c, http.StatusBadRequest, "invalid query: "+err.Error())
		return
	}
	page, err := h.shop.ListMyOrders(c.Request.Context(), identity(c), q.Cursor, q.Limit)
	if err != nil {
		h.fail(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "orders retrieved", page)
}

type ordersQuery struct {
	Status   string `form:"status"`
	Page     int    `form:"page"`
	PageSize int    `form:"page_size"`
}

func (h *Handler) ListOrders(c *gin.Context) {
	var q ordersQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		ErrorResponse(c, http.StatusBadRequest, "invalid query: "+err.Error())
		return
	}
	page, err := h.shop.ListOrders(c.Request.Context(), identity(c), shop.OrderQuery{
		Status:   models.OrderStatus(q.Status),
		Page:     q.Page,
		PageSize: q.PageSize,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "orders retrieved", page)
}

type transitionCall func(ctx context.Context, id auth.Identity, orderID int64) (*shop.Transition, error)

func (h *Handler) transition(c *gin.Context, call transitionCall, verb string) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	res, err := call(c.Request.Context(), identity(c), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.transitioned(c, res, verb)
}

func (h *Handler) transitioned(c *gin.Context, res *shop.Transition, verb string) {
	message := "order " + verb
	if !res.Changed {
		message = "order already " + verb + ", nothing changed"
	}
	SuccessResponse(c, http.StatusOK, message, res)
}

func (h *Handler) Accept(c *gin.Context) {
	h.transition(c, h.shop.Accept, "accepted")
}

func (h *Handler) Complete(c *gin.Context) {
	h.transition(c, h.shop.Complete, "delivered")
}

func (h *Handler) Cancel(c *gin.Context) {
	h.transition(c, h.shop.Cancel, "cancelled")
}

func (h *Handler) ClaimNext(c *gin.Context) {
	res, err := h.shop.ClaimNext(c.Request.Context(), identity(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	h.transitioned(c, res, "accepted")
}

// RecordedAt is when the device took the fix; omitted means now.
type positionRequest struct {
	Latitude   *decimal.Decimal `json:"latitude" binding:"required"`
	Longitude  *decimal.Decimal `json:"longitude" binding:"required"`
	RecordedAt *time.Time       `json:"recorded_at"`
}

func (h *Handler) UpdatePosition(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req positionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	var at time.Time
	if req.RecordedAt != nil {
		at = *req.RecordedAt
	}
	order, err := h.shop.UpdatePosition(c.Request.Context(), identity(c), id, *req.Latitude, *req.Longitude, at)
	if err != nil {
		h.fail(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "position updated", order)
}

func (h *Handler) AgentDashboard(c *gin.Context) {
	st, err := h.shop.AgentDashboard(c.Request.Context(), identity(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "agent dashboard", st)
}

func (h *Handler) AdminDashboard(c *gin.Context) {
	d, err := h.shop.AdminDashboard(c.Request.Context(), identity(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "admin dashboard", d)
}
