package order

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/hamropasal/storefront/internal/models"
	"github.com/hamropasal/storefront/internal/notify"
	"github.com/hamropasal/storefront/internal/service/discount"
	"github.com/hamropasal/storefront/internal/service/wallet"
)

var (
	ErrValidation = errors.New("validation")   // 400
	ErrNotFound   = errors.New("not found")    // 404
	ErrConflict   = errors.New("conflict")     // 409
	ErrOutOfStock = errors.New("out of stock") // 422
)

type Service struct {
	DB       *gorm.DB
	Wallet   *wallet.Service
	Notifier *notify.Notifier
}

type LineInput struct {
	VariantID uint `json:"variant_id"`
	Quantity  uint `json:"quantity"`
}

var paymentMethods = map[string]bool{
	models.PaymentMethodWallet:       true,
	models.PaymentMethodEsewa:        true,
	models.PaymentMethodBankTransfer: true,
}

var allowedTransitions = map[string]map[string]bool{
	models.OrderStatusPending: {
		models.OrderStatusProcessing: true,
		models.OrderStatusCancelled:  true,
	},
	models.OrderStatusProcessing: {
		models.OrderStatusCompleted: true,
		models.OrderStatusCancelled: true,
		models.OrderStatusRefunded:  true,
	},
	models.OrderStatusCompleted: {
		models.OrderStatusRefunded: true,
	},
}

func newOrderNumber() string {
	return "ORD-" + strings.ToUpper(uuid.NewString()[:8])
}

// PlaceOrder settles a cart: reprices every line from the variant table,
// resolves and consumes the discount, creates the order and its items,
// and debits the wallet when that is the payment method. Everything runs
// in one transaction; any failure leaves no state behind.
func (s *Service) PlaceOrder(ctx context.Context, userID uint, lines []LineInput, discountCode, paymentMethod, proofURL string) (*models.Order, error) {
	if len(lines) == 0 {
		return nil, fmt.Errorf("%w: items required", ErrValidation)
	}
	if !paymentMethods[paymentMethod] {
		return nil, fmt.Errorf("%w: unknown payment method %q", ErrValidation, paymentMethod)
	}

	var order models.Order

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var subtotal float64
		var items []models.OrderItem

		for _, line := range lines {
			if line.Quantity == 0 {
				return fmt.Errorf("%w: quantity must be > 0", ErrValidation)
			}

			var variant models.ProductVariant
			if err := tx.First(&variant, line.VariantID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return fmt.Errorf("%w: variant %d", ErrNotFound, line.VariantID)
				}
				return err
			}

			var product models.Product
			if err := tx.First(&product, variant.ProductID).Error; err != nil {
				return err
			}
			if !product.Active {
				return fmt.Errorf("%w: product %q is not available", ErrNotFound, product.Name)
			}

			switch variant.StockType {
			case models.StockLimited:
				result := tx.Model(&models.ProductVariant{}).
					Where("id = ? AND stock_count >= ?", variant.ID, line.Quantity).
					Update("stock_count", gorm.Expr("stock_count - ?", line.Quantity))
				if result.Error != nil {
					return result.Error
				}
				if result.RowsAffected == 0 {
					return fmt.Errorf("%w: %s / %s", ErrOutOfStock, product.Name, variant.Name)
				}
			case models.StockCodes:
				var available int64
				err := tx.Model(&models.InventoryCode{}).
					Where("variant_id = ? AND is_used = ? AND discount_amount = 0", variant.ID, false).
					Count(&available).Error
				if err != nil {
					return err
				}
				if available < int64(line.Quantity) {
					return fmt.Errorf("%w: %s / %s", ErrOutOfStock, product.Name, variant.Name)
				}
			}

			lineTotal := float64(line.Quantity) * variant.Price
			subtotal += lineTotal
			items = append(items, models.OrderItem{
				VariantID:   variant.ID,
				ProductName: product.Name,
				VariantName: variant.Name,
				Quantity:    line.Quantity,
				UnitPrice:   variant.Price,
				LineTotal:   lineTotal,
				Status:      models.ItemStatusPending,
			})
		}

		var resolution *discount.Resolution
		var discountAmount float64
		if strings.TrimSpace(discountCode) != "" {
			var err error
			resolution, err = discount.Resolve(ctx, tx, discountCode, subtotal)
			if err != nil {
				return err
			}
			discountAmount = resolution.Amount
		}

		order = models.Order{
			Number:          newOrderNumber(),
			UserID:          userID,
			TotalAmount:     subtotal,
			DiscountAmount:  discountAmount,
			FinalAmount:     subtotal - discountAmount,
			Status:          models.OrderStatusPending,
			PaymentMethod:   paymentMethod,
			PaymentStatus:   models.PaymentStatusPending,
			PaymentProofURL: proofURL,
			Items:           items,
		}
		if resolution != nil {
			order.DiscountCode = resolution.Code
		}
		if err := tx.Create(&order).Error; err != nil {
			return err
		}

		if resolution != nil {
			if err := discount.Consume(ctx, tx, resolution, order.ID); err != nil {
				return err
			}
		}

		if paymentMethod == models.PaymentMethodWallet {
			if order.FinalAmount > 0 {
				_, err := s.Wallet.DebitIn(ctx, tx, userID, order.FinalAmount,
					models.TxnTypePurchase, order.ID, "order "+order.Number)
				if err != nil {
					return err
				}
			}
			order.PaymentStatus = models.PaymentStatusPaid
			order.Status = models.OrderStatusProcessing
			if err := tx.Model(&models.Order{}).Where("id = ?", order.ID).Updates(map[string]interface{}{
				"payment_status": order.PaymentStatus,
				"status":         order.Status,
			}).Error; err != nil {
				return err
			}
		}

		return tx.Where("user_id = ?", userID).Delete(&models.CartItem{}).Error
	})
	if err != nil {
		return nil, err
	}

	s.Notifier.OrderPlaced(ctx, &order)
	return &order, nil
}

// AttachProof stores the uploaded payment-proof URL on a manually paid,
// still-pending order owned by the caller.
func (s *Service) AttachProof(ctx context.Context, userID, orderID uint, proofURL string) error {
	if strings.TrimSpace(proofURL) == "" {
		return fmt.Errorf("%w: proof url required", ErrValidation)
	}

	result := s.DB.WithContext(ctx).Model(&models.Order{}).
		Where("id = ? AND user_id = ? AND payment_status = ? AND payment_method <> ?",
			orderID, userID, models.PaymentStatusPending, models.PaymentMethodWallet).
		Update("payment_proof_url", proofURL)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: order %d", ErrNotFound, orderID)
	}
	return nil
}

// UpdateStatus performs an admin transition. Completing delivers the
// items (assigning codes from the variant pools); cancelling or
// refunding a wallet-paid order credits the amount back and releases the
// consumed discount code. The old status is re-checked in the UPDATE so
// two concurrent transitions cannot both apply.
func (s *Service) UpdateStatus(ctx context.Context, orderID uint, newStatus, adminNotes string) (*models.Order, error) {
	var order models.Order

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Preload("Items").First(&order, orderID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: order %d", ErrNotFound, orderID)
			}
			return err
		}

		if !allowedTransitions[order.Status][newStatus] {
			return fmt.Errorf("%w: cannot move order from %s to %s", ErrConflict, order.Status, newStatus)
		}

		updates := map[string]interface{}{"status": newStatus}
		if adminNotes != "" {
			updates["admin_notes"] = adminNotes
		}

		switch newStatus {
		case models.OrderStatusProcessing:
			// Admin verified the manual payment proof.
			updates["payment_status"] = models.PaymentStatusPaid

		case models.OrderStatusCompleted:
			if err := s.deliverItems(ctx, tx, &order); err != nil {
				return err
			}

		case models.OrderStatusCancelled, models.OrderStatusRefunded:
			if order.PaymentStatus == models.PaymentStatusPaid && order.PaymentMethod == models.PaymentMethodWallet && order.FinalAmount > 0 {
				_, err := s.Wallet.CreditIn(ctx, tx, order.UserID, order.FinalAmount,
					models.TxnTypeRefund, order.ID, "refund for order "+order.Number)
				if err != nil {
					return err
				}
			}
			if order.DiscountAmount > 0 {
				if err := discount.Release(ctx, tx, order.ID, order.DiscountCode); err != nil {
					return err
				}
			}
			if newStatus == models.OrderStatusCancelled {
				if err := s.restoreStock(ctx, tx, &order); err != nil {
					return err
				}
			}
		}

		result := tx.Model(&models.Order{}).
			Where("id = ? AND status = ?", order.ID, order.Status).
			Updates(updates)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("%w: order %d changed concurrently", ErrConflict, order.ID)
		}

		order.Status = newStatus
		if adminNotes != "" {
			order.AdminNotes = adminNotes
		}
		if s, ok := updates["payment_status"].(string); ok {
			order.PaymentStatus = s
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.Notifier.OrderStatusChanged(ctx, &order)
	return &order, nil
}

func (s *Service) deliverItems(ctx context.Context, tx *gorm.DB, order *models.Order) error {
	now := time.Now()

	for i := range order.Items {
		item := &order.Items[i]
		if item.Status != models.ItemStatusPending {
			continue
		}

		var variant models.ProductVariant
		if err := tx.First(&variant, item.VariantID).Error; err != nil {
			return err
		}

		updates := map[string]interface{}{"status": models.ItemStatusDelivered}

		if variant.StockType == models.StockCodes {
			var codes []models.InventoryCode
			err := tx.Where("variant_id = ? AND is_used = ? AND discount_amount = 0", variant.ID, false).
				Order("id ASC").Limit(int(item.Quantity)).Find(&codes).Error
			if err != nil {
				return err
			}
			if len(codes) < int(item.Quantity) {
				return fmt.Errorf("%w: no codes left for %s", ErrOutOfStock, item.VariantName)
			}

			ids := make([]uint, len(codes))
			values := make([]string, len(codes))
			for j, code := range codes {
				ids[j] = code.ID
				values[j] = code.Code
			}

			result := tx.Model(&models.InventoryCode{}).
				Where("id IN ? AND is_used = ?", ids, false).
				Updates(map[string]interface{}{
					"is_used":  true,
					"order_id": order.ID,
					"used_at":  now,
				})
			if result.Error != nil {
				return result.Error
			}
			if result.RowsAffected != int64(len(ids)) {
				return fmt.Errorf("%w: codes for %s claimed concurrently", ErrOutOfStock, item.VariantName)
			}

			updates["code_value"] = strings.Join(values, "\n")
		}

		if err := tx.Model(&models.OrderItem{}).Where("id = ?", item.ID).Updates(updates).Error; err != nil {
			return err
		}
		item.Status = models.ItemStatusDelivered
		if v, ok := updates["code_value"].(string); ok {
			item.CodeValue = v
		}
	}

	return nil
}

func (s *Service) restoreStock(ctx context.Context, tx *gorm.DB, order *models.Order) error {
	for _, item := range order.Items {
		err := tx.Model(&models.ProductVariant{}).
			Where("id = ? AND stock_type = ?", item.VariantID, models.StockLimited).
			Update("stock_count", gorm.Expr("stock_count + ?", item.Quantity)).Error
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) GetOrder(ctx context.Context, userID, orderID uint) (*models.Order, error) {
	var order models.Order
	err := s.DB.WithContext(ctx).Preload("Items").
		Where("id = ? AND user_id = ?", orderID, userID).
		First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: order %d", ErrNotFound, orderID)
		}
		return nil, err
	}
	return &order, nil
}

func (s *Service) ListOrders(ctx context.Context, userID uint, offset, limit int) ([]models.Order, int64, error) {
	q := s.DB.WithContext(ctx).Model(&models.Order{}).Where("user_id = ?", userID)

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var orders []models.Order
	if err := q.Order("id DESC").Offset(offset).Limit(limit).Find(&orders).Error; err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

// ListAllOrders is the admin listing, optionally filtered by status.
func (s *Service) ListAllOrders(ctx context.Context, status string, offset, limit int) ([]models.Order, int64, error) {
	q := s.DB.WithContext(ctx).Model(&models.Order{})
	if status != "" {
		q = q.Where("status = ?", status)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var orders []models.Order
	if err := q.Order("id DESC").Offset(offset).Limit(limit).Find(&orders).Error; err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

func (s *Service) GetOrderAdmin(ctx context.Context, orderID uint) (*models.Order, error) {
	var order models.Order
	err := s.DB.WithContext(ctx).Preload("Items").First(&order, orderID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: order %d", ErrNotFound, orderID)
		}
		return nil, err
	}
	return &order, nil
}
