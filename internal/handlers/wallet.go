package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/hamropasal/storefront/internal/logging"
	"github.com/hamropasal/storefront/internal/service/topup"
	"github.com/hamropasal/storefront/internal/service/wallet"
	"github.com/hamropasal/storefront/internal/util"
)

type WalletHandler struct {
	Wallet *wallet.Service
	Topups *topup.Service
}

func (h *WalletHandler) GetBalance(c echo.Context) error {
	userID, err := CurrentUserID(c)
	if err != nil {
		return err
	}

	balance, err := h.Wallet.Balance(c.Request().Context(), userID)
	if err != nil {
		return HTTPError(err)
	}

	return c.JSON(http.StatusOK, map[string]any{"balance": balance})
}

func (h *WalletHandler) GetTransactions(c echo.Context) error {
	userID, err := CurrentUserID(c)
	if err != nil {
		return err
	}

	page := ParseIntDefault(c.QueryParam("page"), 1)
	size := ParseIntDefault(c.QueryParam("size"), util.DefaultPageSize)
	offset, limit := util.Calculate(page, size)

	txns, total, err := h.Wallet.History(c.Request().Context(), userID, offset, limit)
	if err != nil {
		return HTTPError(err)
	}

	return c.JSON(http.StatusOK, map[string]any{
		"data": txns,
		"meta": PageMeta(page, limit, offset, total),
	})
}

func (h *WalletHandler) RequestTopup(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "wallet.request_topup")

	userID, err := CurrentUserID(c)
	if err != nil {
		return err
	}

	var req struct {
		Amount        float64 `json:"amount"`
		PaymentMethod string  `json:"payment_method"`
		ProofURL      string  `json:"proof_url"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	created, err := h.Topups.Request(ctx, userID, req.Amount, req.PaymentMethod, req.ProofURL)
	if err != nil {
		he := HTTPError(err)
		l.Warn("topup_request_error", "status", he.Code, "error", err)
		return he
	}

	l.Info("topup_requested", "request_id", created.ID, "amount", created.Amount)
	return c.JSON(http.StatusCreated, created)
}

func (h *WalletHandler) ListTopups(c echo.Context) error {
	userID, err := CurrentUserID(c)
	if err != nil {
		return err
	}

	page := ParseIntDefault(c.QueryParam("page"), 1)
	size := ParseIntDefault(c.QueryParam("size"), util.DefaultPageSize)
	offset, limit := util.Calculate(page, size)

	reqs, total, err := h.Topups.ListForUser(c.Request().Context(), userID, offset, limit)
	if err != nil {
		return HTTPError(err)
	}

	return c.JSON(http.StatusOK, map[string]any{
		"data": reqs,
		"meta": PageMeta(page, limit, offset, total),
	})
}
