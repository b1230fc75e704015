package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/safar/boutique-store/internal/models"
	"github.com/safar/boutique-store/internal/store"
	"github.com/shopspring/decimal"
)

type productQuery struct {
	Category int64  `form:"category"`
	Search   string `form:"q"`
	Promo    bool   `form:"promo"`
	Sort     string `form:"sort"`
	Page     int    `form:"page"`
	PageSize int    `form:"page_size"`
}

func (h *Handler) ListProducts(c *gin.Context) {
	var q productQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		ErrorResponse(c, http.StatusBadRequest, "invalid query: "+err.Error())
		return
	}

	page, err := h.shop.ListProducts(c.Request.Context(), identity(c), store.ProductFilter{
		CategoryID: q.Category,
		Search:     q.Search,
		PromoOnly:  q.Promo,
		Sort:       store.ProductSort(q.Sort),
		Page:       q.Page,
		PageSize:   q.PageSize,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "products retrieved", page)
}

func (h *Handler) GetProduct(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	p, err := h.shop.GetProduct(c.Request.Context(), identity(c), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "product retrieved", p)
}

type productRequest struct {
	Name        string           `json:"name" binding:"required"`
	Description string           `json:"description"`
	Price       decimal.Decimal  `json:"price"`
	PromoPrice  *decimal.Decimal `json:"promo_price"`
	CategoryIDs []int64          `json:"category_ids"`
}

func (h *Handler) CreateProduct(c *gin.Context) {
	var req productRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	p := &models.Product{
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		PromoPrice:  req.PromoPrice,
		CategoryIDs: req.CategoryIDs,
	}
	if err := h.shop.CreateProduct(c.Request.Context(), identity(c), p); err != nil {
		h.fail(c, err)
		return
	}
	SuccessResponse(c, http.StatusCreated, "product created", p)
}

type priceRequest struct {
	Price      decimal.Decimal  `json:"price"`
	PromoPrice *decimal.Decimal `json:"promo_price"`
	Version    int              `json:"version" binding:"required"`
}

func (h *Handler) UpdatePrice(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req priceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	p, err := h.shop.UpdatePrice(c.Request.Context(), identity(c), id, req.Price, req.PromoPrice, req.Version)
	if err != nil {
		h.fail(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "price updated", p)
}

type ratingRequest struct {
	Value   int    `json:"value" binding:"required"`
	Comment string `json:"comment"`
}

func (h *Handler) RateProduct(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req ratingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	p, err := h.shop.RateProduct(c.Request.Context(), identity(c), id, req.Value, req.Comment)
	if err != nil {
		h.fail(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "rating saved", p)
}

func (h *Handler) ListCategories(c *gin.Context) {
	categories, err := h.shop.ListCategories(c.Request.Context(), identity(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "categories retrieved", categories)
}

type categoryRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
	ParentID    *int64 `json:"parent_id"`
	Active      *bool  `json:"active"`
}

func (r categoryRequest) category() *models.Category {
	active := true
	if r.Active != nil {
		active = *r.Active
	}
	return &models.Category{
		Name:        r.Name,
		Description: r.Description,
		Icon:        r.Icon,
		ParentID:    r.ParentID,
		Active:      active,
	}
}

func (h *Handler) CreateCategory(c *gin.Context) {
	var req categoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	cat := req.category()
	if err := h.shop.CreateCategory(c.Request.Context(), identity(c), cat); err != nil {
		h.fail(c, err)
		return
	}
	SuccessResponse(c, http.StatusCreated, "category created", cat)
}

func (h *Handler) UpdateCategory(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req categoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	cat := req.category()
	cat.ID = id
	if err := h.shop.UpdateCategory(c.Request.Context(), identity(c), cat); err != nil {
		h.fail(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "category updated", cat)
}

func (h *Handler) DeleteCategory(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.shop.DeleteCategory(c.Request.Context(), identity(c), id); err != nil {
		h.fail(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "category deleted", nil)
}
