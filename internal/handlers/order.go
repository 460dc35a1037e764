package handlers

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/hamropasal/storefront/internal/logging"
	"github.com/hamropasal/storefront/internal/service/order"
	"github.com/hamropasal/storefront/internal/util"
)

type OrderHandler struct {
	Orders *order.Service
}

func (h *OrderHandler) Checkout(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.checkout")

	userID, err := CurrentUserID(c)
	if err != nil {
		return err
	}

	var req struct {
		Items         []order.LineInput `json:"items"`
		DiscountCode  string            `json:"discount_code"`
		PaymentMethod string            `json:"payment_method"`
		ProofURL      string            `json:"proof_url"`
	}
	if err := c.Bind(&req); err != nil {
		l.Warn("checkout_error", "status", 400, "reason", "invalid body", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	placed, err := h.Orders.PlaceOrder(ctx, userID, req.Items, req.DiscountCode, req.PaymentMethod, req.ProofURL)
	if err != nil {
		he := HTTPError(err)
		l.Warn("checkout_error", "status", he.Code, "error", err)
		return he
	}

	l.Info("checkout_success", "order_number", placed.Number, "final_amount", placed.FinalAmount)
	return c.JSON(http.StatusCreated, placed)
}

func (h *OrderHandler) ListOrders(c echo.Context) error {
	userID, err := CurrentUserID(c)
	if err != nil {
		return err
	}

	page := ParseIntDefault(c.QueryParam("page"), 1)
	size := ParseIntDefault(c.QueryParam("size"), util.DefaultPageSize)
	offset, limit := util.Calculate(page, size)

	orders, total, err := h.Orders.ListOrders(c.Request().Context(), userID, offset, limit)
	if err != nil {
		return HTTPError(err)
	}

	return c.JSON(http.StatusOK, map[string]any{
		"data": orders,
		"meta": PageMeta(page, limit, offset, total),
	})
}

func (h *OrderHandler) GetOrder(c echo.Context) error {
	userID, err := CurrentUserID(c)
	if err != nil {
		return err
	}

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	found, err := h.Orders.GetOrder(c.Request().Context(), userID, uint(id))
	if err != nil {
		return HTTPError(err)
	}

	return c.JSON(http.StatusOK, found)
}

func (h *OrderHandler) AttachProof(c echo.Context) error {
	userID, err := CurrentUserID(c)
	if err != nil {
		return err
	}

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var req struct {
		ProofURL string `json:"proof_url"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	if err := h.Orders.AttachProof(c.Request().Context(), userID, uint(id), req.ProofURL); err != nil {
		return HTTPError(err)
	}

	return c.JSON(http.StatusOK, map[string]any{"message": "proof attached"})
}
