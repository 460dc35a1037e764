package wallet

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/hamropasal/storefront/internal/models"
)

var (
	ErrValidation        = errors.New("validation")         // 400
	ErrNotFound          = errors.New("not found")          // 404
	ErrInsufficientFunds = errors.New("insufficient funds") // 422
)

// Service is the wallet ledger. Every balance change is a single
// conditional UPDATE on the user row plus one appended transaction row
// carrying a balance_after snapshot, executed in one DB transaction.
// There is never a read-then-write on the balance outside of it.
type Service struct {
	DB *gorm.DB
}

func (s *Service) Credit(ctx context.Context, userID uint, amount float64, txnType string, referenceID uint, description string) (*models.WalletTransaction, error) {
	var out *models.WalletTransaction
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		out, err = s.CreditIn(ctx, tx, userID, amount, txnType, referenceID, description)
		return err
	})
	return out, err
}

func (s *Service) Debit(ctx context.Context, userID uint, amount float64, txnType string, referenceID uint, description string) (*models.WalletTransaction, error) {
	var out *models.WalletTransaction
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		out, err = s.DebitIn(ctx, tx, userID, amount, txnType, referenceID, description)
		return err
	})
	return out, err
}

// CreditIn runs inside the caller's transaction so settlement and
// top-up approval commit the ledger write together with their own rows.
func (s *Service) CreditIn(ctx context.Context, tx *gorm.DB, userID uint, amount float64, txnType string, referenceID uint, description string) (*models.WalletTransaction, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("%w: amount must be > 0", ErrValidation)
	}

	result := tx.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		Update("wallet_balance", gorm.Expr("wallet_balance + ?", amount))
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, fmt.Errorf("%w: user %d", ErrNotFound, userID)
	}

	balance, err := balanceIn(ctx, tx, userID)
	if err != nil {
		return nil, err
	}

	txn := models.WalletTransaction{
		UserID:          userID,
		Amount:          amount,
		Type:            models.TxnCredit,
		TransactionType: txnType,
		ReferenceID:     referenceID,
		Description:     description,
		BalanceAfter:    balance,
		Status:          models.TxnStatusCompleted,
	}
	if err := tx.WithContext(ctx).Create(&txn).Error; err != nil {
		return nil, err
	}
	return &txn, nil
}

func (s *Service) DebitIn(ctx context.Context, tx *gorm.DB, userID uint, amount float64, txnType string, referenceID uint, description string) (*models.WalletTransaction, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("%w: amount must be > 0", ErrValidation)
	}

	// The balance check is part of the UPDATE itself; a concurrent
	// debit cannot observe a stale balance.
	result := tx.WithContext(ctx).Model(&models.User{}).
		Where("id = ? AND wallet_balance >= ?", userID, amount).
		Update("wallet_balance", gorm.Expr("wallet_balance - ?", amount))
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		var count int64
		if err := tx.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).Count(&count).Error; err != nil {
			return nil, err
		}
		if count == 0 {
			return nil, fmt.Errorf("%w: user %d", ErrNotFound, userID)
		}
		return nil, fmt.Errorf("%w: balance below %.2f", ErrInsufficientFunds, amount)
	}

	balance, err := balanceIn(ctx, tx, userID)
	if err != nil {
		return nil, err
	}

	txn := models.WalletTransaction{
		UserID:          userID,
		Amount:          -amount,
		Type:            models.TxnDebit,
		TransactionType: txnType,
		ReferenceID:     referenceID,
		Description:     description,
		BalanceAfter:    balance,
		Status:          models.TxnStatusCompleted,
	}
	if err := tx.WithContext(ctx).Create(&txn).Error; err != nil {
		return nil, err
	}
	return &txn, nil
}

// CompleteTopupIn finalizes the pending ledger row created with a
// top-up request: credits the balance and flips exactly that row to
// completed with the post-credit snapshot.
func (s *Service) CompleteTopupIn(ctx context.Context, tx *gorm.DB, userID, requestID uint) (float64, error) {
	var pending models.WalletTransaction
	err := tx.WithContext(ctx).
		Where("user_id = ? AND transaction_type = ? AND reference_id = ? AND status = ?",
			userID, models.TxnTypeTopup, requestID, models.TxnStatusPending).
		First(&pending).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, fmt.Errorf("%w: pending top-up entry for request %d", ErrNotFound, requestID)
		}
		return 0, err
	}

	result := tx.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		Update("wallet_balance", gorm.Expr("wallet_balance + ?", pending.Amount))
	if result.Error != nil {
		return 0, result.Error
	}
	if result.RowsAffected == 0 {
		return 0, fmt.Errorf("%w: user %d", ErrNotFound, userID)
	}

	balance, err := balanceIn(ctx, tx, userID)
	if err != nil {
		return 0, err
	}

	result = tx.WithContext(ctx).Model(&models.WalletTransaction{}).
		Where("id = ? AND status = ?", pending.ID, models.TxnStatusPending).
		Updates(map[string]interface{}{
			"status":        models.TxnStatusCompleted,
			"balance_after": balance,
		})
	if result.Error != nil {
		return 0, result.Error
	}
	if result.RowsAffected == 0 {
		return 0, fmt.Errorf("%w: top-up entry %d already completed", ErrNotFound, pending.ID)
	}

	return balance, nil
}

func (s *Service) Balance(ctx context.Context, userID uint) (float64, error) {
	return balanceIn(ctx, s.DB, userID)
}

func (s *Service) History(ctx context.Context, userID uint, offset, limit int) ([]models.WalletTransaction, int64, error) {
	q := s.DB.WithContext(ctx).Model(&models.WalletTransaction{}).Where("user_id = ?", userID)

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var txns []models.WalletTransaction
	if err := q.Order("id DESC").Offset(offset).Limit(limit).Find(&txns).Error; err != nil {
		return nil, 0, err
	}
	return txns, total, nil
}

func balanceIn(ctx context.Context, db *gorm.DB, userID uint) (float64, error) {
	var user models.User
	err := db.WithContext(ctx).Select("wallet_balance").First(&user, userID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, fmt.Errorf("%w: user %d", ErrNotFound, userID)
		}
		return 0, err
	}
	return user.WalletBalance, nil
}
