package cart

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/hamropasal/storefront/internal/handlers"
	"github.com/hamropasal/storefront/internal/models"
)

type CartHandler struct {
	DB *gorm.DB
}

func (h *CartHandler) GetCart(c echo.Context) error {
	userID, err := handlers.CurrentUserID(c)
	if err != nil {
		return err
	}

	var items []models.CartItem
	if err := h.DB.Where("user_id = ?", userID).Find(&items).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	return c.JSON(http.StatusOK, items)
}

func (h *CartHandler) AddToCart(c echo.Context) error {
	userID, err := handlers.CurrentUserID(c)
	if err != nil {
		return err
	}

	var req struct {
		VariantID uint `json:"variant_id"`
		Quantity  uint `json:"quantity"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if req.Quantity < 1 {
		req.Quantity = 1
	}

	var variant models.ProductVariant
	if err := h.DB.First(&variant, req.VariantID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "variant not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	var item models.CartItem
	err = h.DB.Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.CartItem{}).
			Where("user_id = ? AND variant_id = ?", userID, req.VariantID).
			Update("quantity", gorm.Expr("quantity + ?", req.Quantity))
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected > 0 {
			return tx.Where("user_id = ? AND variant_id = ?", userID, req.VariantID).First(&item).Error
		}

		item = models.CartItem{
			UserID:    userID,
			VariantID: req.VariantID,
			Quantity:  req.Quantity,
		}
		return tx.Create(&item).Error
	})
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	return c.JSON(http.StatusOK, item)
}

func (h *CartHandler) DeleteOneFromCart(c echo.Context) error {
	userID, err := handlers.CurrentUserID(c)
	if err != nil {
		return err
	}

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var item models.CartItem
	if err := h.DB.Where("id = ? AND user_id = ?", id, userID).First(&item).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "item not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	if item.Quantity > 1 {
		item.Quantity -= 1
		if err := h.DB.Save(&item).Error; err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
		}
		return c.JSON(http.StatusOK, item)
	}

	if err := h.DB.Delete(&item).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	return c.JSON(http.StatusOK, map[string]any{"deleted_item": id})
}

func (h *CartHandler) ClearCart(c echo.Context) error {
	userID, err := handlers.CurrentUserID(c)
	if err != nil {
		return err
	}

	if err := h.DB.Where("user_id = ?", userID).Delete(&models.CartItem{}).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	return c.JSON(http.StatusOK, map[string]any{"message": "cart cleared"})
}
