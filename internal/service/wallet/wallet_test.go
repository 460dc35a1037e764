package wallet

import (
	"context"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/hamropasal/storefront/internal/models"
)

func initTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to connect to in-memory db: %v", err)
	}

	if err := db.AutoMigrate(&models.User{}, &models.WalletTransaction{}); err != nil {
		t.Fatalf("failed to migrate tables: %v", err)
	}

	return db
}

func newTestUser(t *testing.T, db *gorm.DB, balance float64) *models.User {
	user := models.User{
		Username:      "wallet_user",
		PasswordHash:  "x",
		Role:          models.RoleUser,
		WalletBalance: balance,
	}
	require.NoError(t, db.Create(&user).Error)
	return &user
}

func TestCreditDebitRoundTrip(t *testing.T) {
	db := initTestDB(t)
	svc := &Service{DB: db}
	ctx := context.Background()
	user := newTestUser(t, db, 0)

	credit, err := svc.Credit(ctx, user.ID, 500, models.TxnTypeTopup, 1, "top-up")
	require.NoError(t, err)
	require.Equal(t, 500.0, credit.Amount)
	require.Equal(t, models.TxnCredit, credit.Type)
	require.Equal(t, 500.0, credit.BalanceAfter)
	require.Equal(t, models.TxnStatusCompleted, credit.Status)

	debit, err := svc.Debit(ctx, user.ID, 200, models.TxnTypePurchase, 7, "order ORD-1")
	require.NoError(t, err)
	require.Equal(t, -200.0, debit.Amount)
	require.Equal(t, models.TxnDebit, debit.Type)
	require.Equal(t, 300.0, debit.BalanceAfter)

	balance, err := svc.Balance(ctx, user.ID)
	require.NoError(t, err)
	require.Equal(t, 300.0, balance)

	txns, total, err := svc.History(ctx, user.ID, 0, 10)
	require.NoError(t, err)
	require.Equal(t, int64(2), total)
	require.Len(t, txns, 2)
	// newest first
	require.Equal(t, models.TxnDebit, txns[0].Type)
	require.Equal(t, models.TxnCredit, txns[1].Type)
}

func TestDebitInsufficientFunds(t *testing.T) {
	db := initTestDB(t)
	svc := &Service{DB: db}
	ctx := context.Background()
	user := newTestUser(t, db, 100)

	_, err := svc.Debit(ctx, user.ID, 100.01, models.TxnTypePurchase, 1, "too much")
	require.ErrorIs(t, err, ErrInsufficientFunds)

	// failed debit leaves nothing behind
	balance, err := svc.Balance(ctx, user.ID)
	require.NoError(t, err)
	require.Equal(t, 100.0, balance)

	var count int64
	require.NoError(t, db.Model(&models.WalletTransaction{}).Count(&count).Error)
	require.Equal(t, int64(0), count)
}

func TestDebitExactBalance(t *testing.T) {
	db := initTestDB(t)
	svc := &Service{DB: db}
	ctx := context.Background()
	user := newTestUser(t, db, 250)

	debit, err := svc.Debit(ctx, user.ID, 250, models.TxnTypePurchase, 2, "all in")
	require.NoError(t, err)
	require.Equal(t, 0.0, debit.BalanceAfter)
}

func TestUnknownUser(t *testing.T) {
	db := initTestDB(t)
	svc := &Service{DB: db}
	ctx := context.Background()

	_, err := svc.Credit(ctx, 999, 10, models.TxnTypeTopup, 1, "")
	require.ErrorIs(t, err, ErrNotFound)

	_, err = svc.Debit(ctx, 999, 10, models.TxnTypePurchase, 1, "")
	require.ErrorIs(t, err, ErrNotFound)

	_, err = svc.Balance(ctx, 999)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestNonPositiveAmounts(t *testing.T) {
	db := initTestDB(t)
	svc := &Service{DB: db}
	ctx := context.Background()
	user := newTestUser(t, db, 100)

	_, err := svc.Credit(ctx, user.ID, 0, models.TxnTypeTopup, 1, "")
	require.ErrorIs(t, err, ErrValidation)

	_, err = svc.Debit(ctx, user.ID, -5, models.TxnTypePurchase, 1, "")
	require.ErrorIs(t, err, ErrValidation)
}

func TestCompleteTopupFinalizesPendingEntry(t *testing.T) {
	db := initTestDB(t)
	svc := &Service{DB: db}
	ctx := context.Background()
	user := newTestUser(t, db, 50)

	pending := models.WalletTransaction{
		UserID:          user.ID,
		Amount:          300,
		Type:            models.TxnCredit,
		TransactionType: models.TxnTypeTopup,
		ReferenceID:     42,
		Status:          models.TxnStatusPending,
	}
	require.NoError(t, db.Create(&pending).Error)

	var balance float64
	err := db.Transaction(func(tx *gorm.DB) error {
		var err error
		balance, err = svc.CompleteTopupIn(ctx, tx, user.ID, 42)
		return err
	})
	require.NoError(t, err)
	require.Equal(t, 350.0, balance)

	var txn models.WalletTransaction
	require.NoError(t, db.First(&txn, pending.ID).Error)
	require.Equal(t, models.TxnStatusCompleted, txn.Status)
	require.Equal(t, 350.0, txn.BalanceAfter)

	// already completed, a second finalization finds no pending entry
	err = db.Transaction(func(tx *gorm.DB) error {
		_, err := svc.CompleteTopupIn(ctx, tx, user.ID, 42)
		return err
	})
	require.ErrorIs(t, err, ErrNotFound)

	balance, err = svc.Balance(ctx, user.ID)
	require.NoError(t, err)
	require.Equal(t, 350.0, balance)
}
