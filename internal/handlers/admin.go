package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/hamropasal/storefront/internal/logging"
	"github.com/hamropasal/storefront/internal/models"
	"github.com/hamropasal/storefront/internal/service/order"
	"github.com/hamropasal/storefront/internal/service/topup"
	"github.com/hamropasal/storefront/internal/util"
)

// AdminHandler is the back office: order transitions, the top-up
// approval queue, promo codes and inventory code pools.
type AdminHandler struct {
	DB     *gorm.DB
	Orders *order.Service
	Topups *topup.Service
}

func (h *AdminHandler) ListOrders(c echo.Context) error {
	page := ParseIntDefault(c.QueryParam("page"), 1)
	size := ParseIntDefault(c.QueryParam("size"), util.DefaultPageSize)
	offset, limit := util.Calculate(page, size)

	orders, total, err := h.Orders.ListAllOrders(c.Request().Context(), c.QueryParam("status"), offset, limit)
	if err != nil {
		return HTTPError(err)
	}

	return c.JSON(http.StatusOK, map[string]any{
		"data": orders,
		"meta": PageMeta(page, limit, offset, total),
	})
}

func (h *AdminHandler) GetOrder(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	found, err := h.Orders.GetOrderAdmin(c.Request().Context(), uint(id))
	if err != nil {
		return HTTPError(err)
	}

	return c.JSON(http.StatusOK, found)
}

func (h *AdminHandler) UpdateOrderStatus(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "admin.update_order_status")

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var req struct {
		Status     string `json:"status"`
		AdminNotes string `json:"admin_notes"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if req.Status == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "status required")
	}

	updated, err := h.Orders.UpdateStatus(ctx, uint(id), req.Status, req.AdminNotes)
	if err != nil {
		he := HTTPError(err)
		l.Warn("order_status_error", "order_id", id, "status", he.Code, "error", err)
		return he
	}

	l.Info("order_status_changed", "order_id", id, "new_status", updated.Status)
	return c.JSON(http.StatusOK, updated)
}

func (h *AdminHandler) ListTopups(c echo.Context) error {
	page := ParseIntDefault(c.QueryParam("page"), 1)
	size := ParseIntDefault(c.QueryParam("size"), util.DefaultPageSize)
	offset, limit := util.Calculate(page, size)

	reqs, total, err := h.Topups.List(c.Request().Context(), c.QueryParam("status"), offset, limit)
	if err != nil {
		return HTTPError(err)
	}

	return c.JSON(http.StatusOK, map[string]any{
		"data": reqs,
		"meta": PageMeta(page, limit, offset, total),
	})
}

func (h *AdminHandler) resolveTopup(c echo.Context, approve bool) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "admin.resolve_topup")

	adminID, err := CurrentUserID(c)
	if err != nil {
		return err
	}

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var req struct {
		AdminNotes string `json:"admin_notes"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	var resolved *models.TopupRequest
	if approve {
		resolved, err = h.Topups.Approve(ctx, uint(id), adminID, req.AdminNotes)
	} else {
		resolved, err = h.Topups.Reject(ctx, uint(id), adminID, req.AdminNotes)
	}
	if err != nil {
		he := HTTPError(err)
		l.Warn("topup_resolve_error", "request_id", id, "status", he.Code, "error", err)
		return he
	}

	l.Info("topup_resolved", "request_id", id, "result", resolved.Status)
	return c.JSON(http.StatusOK, resolved)
}

func (h *AdminHandler) ApproveTopup(c echo.Context) error {
	return h.resolveTopup(c, true)
}

func (h *AdminHandler) RejectTopup(c echo.Context) error {
	return h.resolveTopup(c, false)
}

type promoRequest struct {
	Code              string  `json:"code"`
	DiscountType      string  `json:"discount_type"`
	DiscountValue     float64 `json:"discount_value"`
	MinOrderAmount    float64 `json:"min_order_amount"`
	MaxDiscountAmount float64 `json:"max_discount_amount"`
	ExpiresAt         *string `json:"expires_at"`
	UsageLimit        uint    `json:"usage_limit"`
	Active            *bool   `json:"active"`
}

// promoPatchRequest uses pointers throughout so a patch can tell
// "field absent" apart from an explicit zero (e.g. resetting
// min_order_amount or usage_limit back to 0, or clearing expires_at
// with an empty string).
type promoPatchRequest struct {
	DiscountType      *string  `json:"discount_type"`
	DiscountValue     *float64 `json:"discount_value"`
	MinOrderAmount    *float64 `json:"min_order_amount"`
	MaxDiscountAmount *float64 `json:"max_discount_amount"`
	ExpiresAt         *string  `json:"expires_at"`
	UsageLimit        *uint    `json:"usage_limit"`
	Active            *bool    `json:"active"`
}

func (h *AdminHandler) CreatePromo(c echo.Context) error {
	var req promoRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if req.Code == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "code required")
	}
	if req.DiscountType != models.DiscountPercentage && req.DiscountType != models.DiscountFixed {
		return echo.NewHTTPError(http.StatusBadRequest, "discount_type must be percentage or fixed")
	}
	if req.DiscountValue <= 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "discount_value must be > 0")
	}
	if req.DiscountType == models.DiscountPercentage && req.DiscountValue > 100 {
		return echo.NewHTTPError(http.StatusBadRequest, "percentage cannot exceed 100")
	}

	promo := models.PromoCode{
		Code:              strings.ToUpper(strings.TrimSpace(req.Code)),
		DiscountType:      req.DiscountType,
		DiscountValue:     req.DiscountValue,
		MinOrderAmount:    req.MinOrderAmount,
		MaxDiscountAmount: req.MaxDiscountAmount,
		UsageLimit:        req.UsageLimit,
		Active:            true,
	}
	if req.Active != nil {
		promo.Active = *req.Active
	}
	if req.ExpiresAt != nil {
		t, err := time.Parse(time.RFC3339, *req.ExpiresAt)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "expires_at must be RFC3339")
		}
		promo.ExpiresAt = &t
	}

	if err := h.DB.Create(&promo).Error; err != nil {
		return echo.NewHTTPError(http.StatusConflict, "promo code already exists")
	}

	return c.JSON(http.StatusCreated, promo)
}

func (h *AdminHandler) ListPromos(c echo.Context) error {
	page := ParseIntDefault(c.QueryParam("page"), 1)
	size := ParseIntDefault(c.QueryParam("size"), util.DefaultPageSize)
	offset, limit := util.Calculate(page, size)

	var total int64
	if err := h.DB.Model(&models.PromoCode{}).Count(&total).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	var promos []models.PromoCode
	if err := h.DB.Order("id ASC").Offset(offset).Limit(limit).Find(&promos).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	return c.JSON(http.StatusOK, map[string]any{
		"data": promos,
		"meta": PageMeta(page, limit, offset, total),
	})
}

func (h *AdminHandler) PatchPromo(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var promo models.PromoCode
	if err := h.DB.First(&promo, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "promo not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	var req promoPatchRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	if req.DiscountType != nil {
		if *req.DiscountType != models.DiscountPercentage && *req.DiscountType != models.DiscountFixed {
			return echo.NewHTTPError(http.StatusBadRequest, "discount_type must be percentage or fixed")
		}
		promo.DiscountType = *req.DiscountType
	}
	if req.DiscountValue != nil {
		if *req.DiscountValue <= 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "discount_value must be > 0")
		}
		promo.DiscountValue = *req.DiscountValue
	}
	if promo.DiscountType == models.DiscountPercentage && promo.DiscountValue > 100 {
		return echo.NewHTTPError(http.StatusBadRequest, "percentage cannot exceed 100")
	}
	if req.MinOrderAmount != nil {
		promo.MinOrderAmount = *req.MinOrderAmount
	}
	if req.MaxDiscountAmount != nil {
		promo.MaxDiscountAmount = *req.MaxDiscountAmount
	}
	if req.UsageLimit != nil {
		promo.UsageLimit = *req.UsageLimit
	}
	if req.Active != nil {
		promo.Active = *req.Active
	}
	if req.ExpiresAt != nil {
		if *req.ExpiresAt == "" {
			promo.ExpiresAt = nil
		} else {
			t, err := time.Parse(time.RFC3339, *req.ExpiresAt)
			if err != nil {
				return echo.NewHTTPError(http.StatusBadRequest, "expires_at must be RFC3339")
			}
			promo.ExpiresAt = &t
		}
	}

	if err := h.DB.Save(&promo).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	return c.JSON(http.StatusOK, promo)
}

func (h *AdminHandler) DeletePromo(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	result := h.DB.Delete(&models.PromoCode{}, id)
	if result.Error != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
	if result.RowsAffected == 0 {
		return echo.NewHTTPError(http.StatusNotFound, "promo not found")
	}

	return c.JSON(http.StatusOK, map[string]any{"deleted": id})
}

// AddInventoryCodes bulk-loads codes into a variant's pool, or creates
// standalone gift codes when discount_amount is set.
func (h *AdminHandler) AddInventoryCodes(c echo.Context) error {
	var req struct {
		VariantID      uint     `json:"variant_id"`
		Codes          []string `json:"codes"`
		DiscountAmount float64  `json:"discount_amount"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if len(req.Codes) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "codes required")
	}
	if req.VariantID == 0 && req.DiscountAmount <= 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "variant_id or discount_amount required")
	}

	if req.VariantID != 0 {
		var variant models.ProductVariant
		if err := h.DB.First(&variant, req.VariantID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return echo.NewHTTPError(http.StatusNotFound, "variant not found")
			}
			return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
		}
	}

	rows := make([]models.InventoryCode, 0, len(req.Codes))
	for _, code := range req.Codes {
		code = strings.TrimSpace(code)
		if code == "" {
			return echo.NewHTTPError(http.StatusBadRequest, "empty code in list")
		}
		rows = append(rows, models.InventoryCode{
			VariantID:      req.VariantID,
			Code:           code,
			DiscountAmount: req.DiscountAmount,
		})
	}

	if err := h.DB.Create(&rows).Error; err != nil {
		return echo.NewHTTPError(http.StatusConflict, "duplicate code in pool")
	}

	return c.JSON(http.StatusCreated, map[string]any{"added": len(rows)})
}

func (h *AdminHandler) ListInventoryCodes(c echo.Context) error {
	page := ParseIntDefault(c.QueryParam("page"), 1)
	size := ParseIntDefault(c.QueryParam("size"), util.DefaultPageSize)
	offset, limit := util.Calculate(page, size)

	q := h.DB.Model(&models.InventoryCode{})
	if v := c.QueryParam("variant_id"); v != "" {
		q = q.Where("variant_id = ?", ParseIntDefault(v, 0))
	}
	if v := c.QueryParam("used"); v != "" {
		q = q.Where("is_used = ?", v == "true")
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	var codes []models.InventoryCode
	if err := q.Order("id ASC").Offset(offset).Limit(limit).Find(&codes).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	return c.JSON(http.StatusOK, map[string]any{
		"data": codes,
		"meta": PageMeta(page, limit, offset, total),
	})
}
