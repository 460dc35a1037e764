package discount

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/hamropasal/storefront/internal/models"
)

var (
	ErrValidation      = errors.New("validation")       // 400
	ErrNotFound        = errors.New("not found")        // 404
	ErrInvalidDiscount = errors.New("invalid discount") // 422
	ErrExpired         = errors.New("expired")          // 422
	ErrBelowMinimum    = errors.New("below minimum")    // 422
	ErrUsageExceeded   = errors.New("usage exceeded")   // 422
)

type Kind string

const (
	KindInventory Kind = "inventory"
	KindPromo     Kind = "promo"
)

// Resolution is the tagged outcome of a code lookup: either a single-use
// inventory gift code or a reusable promo rule, with the computed amount.
type Resolution struct {
	Kind            Kind    `json:"kind"`
	Code            string  `json:"code"`
	Amount          float64 `json:"amount"`
	InventoryCodeID uint    `json:"inventory_code_id,omitempty"`
	PromoCodeID     uint    `json:"promo_code_id,omitempty"`
}

// Resolve computes the discount a code is worth against subtotal. It has
// no side effects; consumption happens in the settlement transaction,
// which passes its own tx handle here so both see one snapshot.
//
// Inventory codes are matched first, case-sensitive on the trimmed
// input. Promo codes are matched uppercased.
func Resolve(ctx context.Context, db *gorm.DB, code string, subtotal float64) (*Resolution, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, fmt.Errorf("%w: code required", ErrValidation)
	}
	if subtotal < 0 {
		return nil, fmt.Errorf("%w: subtotal must be >= 0", ErrValidation)
	}

	var inv models.InventoryCode
	err := db.WithContext(ctx).
		Where("code = ? AND is_used = ?", code, false).
		First(&inv).Error
	if err == nil {
		if inv.DiscountAmount <= 0 {
			return nil, fmt.Errorf("%w: code carries no discount", ErrInvalidDiscount)
		}
		amount := inv.DiscountAmount
		if amount > subtotal {
			amount = subtotal
		}
		return &Resolution{
			Kind:            KindInventory,
			Code:            inv.Code,
			Amount:          amount,
			InventoryCodeID: inv.ID,
		}, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	var promo models.PromoCode
	err = db.WithContext(ctx).
		Where("code = ? AND active = ?", strings.ToUpper(code), true).
		First(&promo).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: unknown discount code", ErrNotFound)
		}
		return nil, err
	}

	if promo.ExpiresAt != nil && promo.ExpiresAt.Before(time.Now()) {
		return nil, fmt.Errorf("%w: promo code expired", ErrExpired)
	}
	if subtotal < promo.MinOrderAmount {
		return nil, fmt.Errorf("%w: order amount below %.2f", ErrBelowMinimum, promo.MinOrderAmount)
	}
	if promo.UsageLimit > 0 && promo.UsageCount >= promo.UsageLimit {
		return nil, fmt.Errorf("%w: promo code usage limit reached", ErrUsageExceeded)
	}

	var amount float64
	switch promo.DiscountType {
	case models.DiscountPercentage:
		amount = subtotal * promo.DiscountValue / 100
		if promo.MaxDiscountAmount > 0 && amount > promo.MaxDiscountAmount {
			amount = promo.MaxDiscountAmount
		}
	case models.DiscountFixed:
		amount = promo.DiscountValue
	default:
		return nil, fmt.Errorf("%w: unknown discount type %q", ErrInvalidDiscount, promo.DiscountType)
	}
	if amount > subtotal {
		amount = subtotal
	}

	return &Resolution{
		Kind:        KindPromo,
		Code:        promo.Code,
		Amount:      amount,
		PromoCodeID: promo.ID,
	}, nil
}

// Consume marks the resolved code spent inside tx. Guards are single
// conditional statements checked through RowsAffected, so two orders
// racing for one gift code or the last promo slot cannot both win.
func Consume(ctx context.Context, tx *gorm.DB, res *Resolution, orderID uint) error {
	switch res.Kind {
	case KindInventory:
		now := time.Now()
		result := tx.WithContext(ctx).Model(&models.InventoryCode{}).
			Where("id = ? AND is_used = ?", res.InventoryCodeID, false).
			Updates(map[string]interface{}{
				"is_used":  true,
				"order_id": orderID,
				"used_at":  now,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("%w: discount code already used", ErrNotFound)
		}
	case KindPromo:
		result := tx.WithContext(ctx).Model(&models.PromoCode{}).
			Where("id = ? AND (usage_limit = 0 OR usage_count < usage_limit)", res.PromoCodeID).
			Update("usage_count", gorm.Expr("usage_count + ?", 1))
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("%w: promo code usage limit reached", ErrUsageExceeded)
		}
	default:
		return fmt.Errorf("%w: unknown resolution kind %q", ErrValidation, res.Kind)
	}
	return nil
}

// Release undoes a consumption when an order is cancelled or refunded.
func Release(ctx context.Context, tx *gorm.DB, orderID uint, promoCode string) error {
	result := tx.WithContext(ctx).Model(&models.InventoryCode{}).
		Where("order_id = ? AND discount_amount > 0 AND is_used = ?", orderID, true).
		Updates(map[string]interface{}{
			"is_used":  false,
			"order_id": nil,
			"used_at":  nil,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected > 0 || promoCode == "" {
		return nil
	}

	return tx.WithContext(ctx).Model(&models.PromoCode{}).
		Where("code = ? AND usage_count > 0", strings.ToUpper(promoCode)).
		Update("usage_count", gorm.Expr("usage_count - ?", 1)).Error
}
