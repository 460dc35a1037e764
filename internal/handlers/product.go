package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/hamropasal/storefront/internal/es"
	"github.com/hamropasal/storefront/internal/models"
	"github.com/hamropasal/storefront/internal/notify"
	"github.com/hamropasal/storefront/internal/util"
)

type ProductHandler struct {
	DB       *gorm.DB
	Notifier *notify.Notifier
	Indexer  *es.Indexer
}

func (h *ProductHandler) GetProduct(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var product models.Product
	err = h.DB.Preload("Variants").Where("id = ? AND active = ?", id, true).First(&product).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "product not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	return c.JSON(http.StatusOK, product)
}

func (h *ProductHandler) GetProducts(c echo.Context) error {
	page := ParseIntDefault(c.QueryParam("page"), 1)
	size := ParseIntDefault(c.QueryParam("size"), util.DefaultPageSize)
	offset, limit := util.Calculate(page, size)

	q := h.DB.Model(&models.Product{}).Where("active = ?", true)

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	var items []models.Product
	if err := q.Preload("Variants").Order("id ASC").Offset(offset).Limit(limit).Find(&items).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	return c.JSON(http.StatusOK, map[string]any{
		"data": items,
		"meta": PageMeta(page, limit, offset, total),
	})
}

type productRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Active      *bool  `json:"active"`
}

func (h *ProductHandler) CreateProduct(c echo.Context) error {
	var req productRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if req.Name == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "name required")
	}

	product := models.Product{
		Name:        req.Name,
		Description: req.Description,
		Active:      true,
	}
	if req.Active != nil {
		product.Active = *req.Active
	}

	if err := h.DB.Create(&product).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	ctx := c.Request().Context()
	h.Indexer.IndexProduct(ctx, &product)
	h.Notifier.ProductChanged(ctx, "product_created", product.ID)

	return c.JSON(http.StatusCreated, product)
}

func (h *ProductHandler) PatchProduct(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var product models.Product
	if err := h.DB.First(&product, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "product not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	var req productRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	if req.Name != "" {
		product.Name = req.Name
	}
	if req.Description != "" {
		product.Description = req.Description
	}
	if req.Active != nil {
		product.Active = *req.Active
	}

	if err := h.DB.Save(&product).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	ctx := c.Request().Context()
	if err := h.DB.Preload("Variants").First(&product, product.ID).Error; err == nil {
		h.Indexer.IndexProduct(ctx, &product)
	}
	h.Notifier.ProductChanged(ctx, "product_updated", product.ID)

	return c.JSON(http.StatusOK, product)
}

func (h *ProductHandler) DeleteProduct(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	result := h.DB.Delete(&models.Product{}, id)
	if result.Error != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
	if result.RowsAffected == 0 {
		return echo.NewHTTPError(http.StatusNotFound, "product not found")
	}
	h.DB.Where("product_id = ?", id).Delete(&models.ProductVariant{})

	ctx := c.Request().Context()
	h.Indexer.DeleteProduct(ctx, uint(id))
	h.Notifier.ProductChanged(ctx, "product_deleted", uint(id))

	return c.JSON(http.StatusOK, map[string]any{"deleted": id})
}

type variantRequest struct {
	Name       string   `json:"name"`
	Price      *float64 `json:"price"`
	StockType  string   `json:"stock_type"`
	StockCount uint     `json:"stock_count"`
}

var stockTypes = map[string]bool{
	models.StockUnlimited: true,
	models.StockLimited:   true,
	models.StockCodes:     true,
}

func (h *ProductHandler) CreateVariant(c echo.Context) error {
	productID, err := strconv.Atoi(c.Param("id"))
	if err != nil || productID <= 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var product models.Product
	if err := h.DB.First(&product, productID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "product not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	var req variantRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if req.Name == "" || req.Price == nil || *req.Price < 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "name and non-negative price required")
	}
	if req.StockType == "" {
		req.StockType = models.StockUnlimited
	}
	if !stockTypes[req.StockType] {
		return echo.NewHTTPError(http.StatusBadRequest, "unknown stock type")
	}

	variant := models.ProductVariant{
		ProductID:  uint(productID),
		Name:       req.Name,
		Price:      *req.Price,
		StockType:  req.StockType,
		StockCount: req.StockCount,
	}
	if err := h.DB.Create(&variant).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	ctx := c.Request().Context()
	if err := h.DB.Preload("Variants").First(&product, product.ID).Error; err == nil {
		h.Indexer.IndexProduct(ctx, &product)
	}

	return c.JSON(http.StatusCreated, variant)
}

func (h *ProductHandler) PatchVariant(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("variant_id"))
	if err != nil || id <= 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var variant models.ProductVariant
	if err := h.DB.First(&variant, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "variant not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	var req variantRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	if req.Name != "" {
		variant.Name = req.Name
	}
	if req.Price != nil {
		if *req.Price < 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "price must be >= 0")
		}
		variant.Price = *req.Price
	}
	if req.StockType != "" {
		if !stockTypes[req.StockType] {
			return echo.NewHTTPError(http.StatusBadRequest, "unknown stock type")
		}
		variant.StockType = req.StockType
		variant.StockCount = req.StockCount
	}

	if err := h.DB.Save(&variant).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	return c.JSON(http.StatusOK, variant)
}

func (h *ProductHandler) DeleteVariant(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("variant_id"))
	if err != nil || id <= 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	result := h.DB.Delete(&models.ProductVariant{}, id)
	if result.Error != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
	if result.RowsAffected == 0 {
		return echo.NewHTTPError(http.StatusNotFound, "variant not found")
	}

	return c.JSON(http.StatusOK, map[string]any{"deleted": id})
}
