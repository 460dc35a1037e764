package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/hamropasal/storefront/internal/service/discount"
	"github.com/hamropasal/storefront/internal/service/order"
	"github.com/hamropasal/storefront/internal/service/topup"
	"github.com/hamropasal/storefront/internal/service/wallet"
)

func ParseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if v, err := strconv.Atoi(s); err == nil {
		return v
	}
	return def
}

// CurrentUserID reads the identity the auth middleware resolved for
// this request. Settlement code never re-derives the user elsewhere.
func CurrentUserID(c echo.Context) (uint, error) {
	id, ok := c.Get("userID").(uint)
	if !ok || id == 0 {
		return 0, echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	return id, nil
}

// HTTPError maps service sentinel errors onto status codes.
func HTTPError(err error) *echo.HTTPError {
	switch {
	case errors.Is(err, discount.ErrValidation),
		errors.Is(err, wallet.ErrValidation),
		errors.Is(err, order.ErrValidation),
		errors.Is(err, topup.ErrValidation):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())

	case errors.Is(err, discount.ErrNotFound),
		errors.Is(err, wallet.ErrNotFound),
		errors.Is(err, order.ErrNotFound),
		errors.Is(err, topup.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())

	case errors.Is(err, order.ErrConflict),
		errors.Is(err, topup.ErrAlreadyProcessed):
		return echo.NewHTTPError(http.StatusConflict, err.Error())

	case errors.Is(err, discount.ErrExpired),
		errors.Is(err, discount.ErrBelowMinimum),
		errors.Is(err, discount.ErrUsageExceeded),
		errors.Is(err, discount.ErrInvalidDiscount),
		errors.Is(err, wallet.ErrInsufficientFunds),
		errors.Is(err, order.ErrOutOfStock):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())

	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
}

func PageMeta(page, limit, offset int, total int64) map[string]any {
	return map[string]any{
		"page":        page,
		"size":        limit,
		"total":       total,
		"total_pages": (total + int64(limit) - 1) / int64(limit),
		"has_prev":    page > 1,
		"has_next":    int64(offset+limit) < total,
	}
}
