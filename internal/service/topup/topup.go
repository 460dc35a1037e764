package topup

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/hamropasal/storefront/internal/models"
	"github.com/hamropasal/storefront/internal/notify"
	"github.com/hamropasal/storefront/internal/service/wallet"
)

var (
	ErrValidation       = errors.New("validation")        // 400
	ErrNotFound         = errors.New("not found")         // 404
	ErrAlreadyProcessed = errors.New("already processed") // 409
)

// Service runs the top-up workflow: a user queues a pending request
// with a matching pending ledger entry; an admin later approves
// (crediting the wallet and finalizing the entry) or rejects it.
// pending -> approved | rejected are terminal; the transition is a
// conditional UPDATE so a request can never be resolved twice.
type Service struct {
	DB       *gorm.DB
	Wallet   *wallet.Service
	Notifier *notify.Notifier
}

func (s *Service) Request(ctx context.Context, userID uint, amount float64, paymentMethod, proofURL string) (*models.TopupRequest, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("%w: amount must be > 0", ErrValidation)
	}
	if paymentMethod == "" {
		return nil, fmt.Errorf("%w: payment method required", ErrValidation)
	}

	req := models.TopupRequest{
		UserID:        userID,
		Amount:        amount,
		PaymentMethod: paymentMethod,
		ProofURL:      proofURL,
		Status:        models.TopupStatusPending,
	}

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&req).Error; err != nil {
			return err
		}

		txn := models.WalletTransaction{
			UserID:          userID,
			Amount:          amount,
			Type:            models.TxnCredit,
			TransactionType: models.TxnTypeTopup,
			ReferenceID:     req.ID,
			Description:     fmt.Sprintf("top-up via %s", paymentMethod),
			Status:          models.TxnStatusPending,
		}
		return tx.Create(&txn).Error
	})
	if err != nil {
		return nil, err
	}

	return &req, nil
}

func (s *Service) Approve(ctx context.Context, requestID, adminID uint, adminNotes string) (*models.TopupRequest, error) {
	var req models.TopupRequest

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&req, requestID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: top-up request %d", ErrNotFound, requestID)
			}
			return err
		}

		result := tx.Model(&models.TopupRequest{}).
			Where("id = ? AND status = ?", requestID, models.TopupStatusPending).
			Updates(map[string]interface{}{
				"status":      models.TopupStatusApproved,
				"admin_notes": adminNotes,
				"resolved_by": adminID,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("%w: top-up request %d is %s", ErrAlreadyProcessed, requestID, req.Status)
		}

		if _, err := s.Wallet.CompleteTopupIn(ctx, tx, req.UserID, req.ID); err != nil {
			return err
		}

		req.Status = models.TopupStatusApproved
		req.AdminNotes = adminNotes
		req.ResolvedBy = &adminID
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.Notifier.TopupResolved(ctx, &req)
	return &req, nil
}

func (s *Service) Reject(ctx context.Context, requestID, adminID uint, adminNotes string) (*models.TopupRequest, error) {
	var req models.TopupRequest

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&req, requestID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: top-up request %d", ErrNotFound, requestID)
			}
			return err
		}

		result := tx.Model(&models.TopupRequest{}).
			Where("id = ? AND status = ?", requestID, models.TopupStatusPending).
			Updates(map[string]interface{}{
				"status":      models.TopupStatusRejected,
				"admin_notes": adminNotes,
				"resolved_by": adminID,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("%w: top-up request %d is %s", ErrAlreadyProcessed, requestID, req.Status)
		}

		req.Status = models.TopupStatusRejected
		req.AdminNotes = adminNotes
		req.ResolvedBy = &adminID
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.Notifier.TopupResolved(ctx, &req)
	return &req, nil
}

func (s *Service) ListForUser(ctx context.Context, userID uint, offset, limit int) ([]models.TopupRequest, int64, error) {
	q := s.DB.WithContext(ctx).Model(&models.TopupRequest{}).Where("user_id = ?", userID)

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var reqs []models.TopupRequest
	if err := q.Order("id DESC").Offset(offset).Limit(limit).Find(&reqs).Error; err != nil {
		return nil, 0, err
	}
	return reqs, total, nil
}

// List is the admin queue, optionally filtered by status.
func (s *Service) List(ctx context.Context, status string, offset, limit int) ([]models.TopupRequest, int64, error) {
	q := s.DB.WithContext(ctx).Model(&models.TopupRequest{})
	if status != "" {
		q = q.Where("status = ?", status)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var reqs []models.TopupRequest
	if err := q.Order("id ASC").Offset(offset).Limit(limit).Find(&reqs).Error; err != nil {
		return nil, 0, err
	}
	return reqs, total, nil
}
