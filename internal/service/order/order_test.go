package order

import (
	"context"
	"strings"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/hamropasal/storefront/internal/models"
	"github.com/hamropasal/storefront/internal/notify"
	"github.com/hamropasal/storefront/internal/service/discount"
	"github.com/hamropasal/storefront/internal/service/wallet"
)

func initTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to connect to in-memory db: %v", err)
	}

	err = db.AutoMigrate(
		&models.User{},
		&models.Product{},
		&models.ProductVariant{},
		&models.InventoryCode{},
		&models.PromoCode{},
		&models.CartItem{},
		&models.Order{},
		&models.OrderItem{},
		&models.WalletTransaction{},
	)
	if err != nil {
		t.Fatalf("failed to migrate tables: %v", err)
	}

	return db
}

func newTestService(db *gorm.DB) *Service {
	return &Service{
		DB:       db,
		Wallet:   &wallet.Service{DB: db},
		Notifier: &notify.Notifier{},
	}
}

func newTestUser(t *testing.T, db *gorm.DB, balance float64) *models.User {
	user := models.User{
		Username:      "buyer",
		PasswordHash:  "x",
		Role:          models.RoleUser,
		WalletBalance: balance,
	}
	require.NoError(t, db.Create(&user).Error)
	return &user
}

func newTestVariant(t *testing.T, db *gorm.DB, price float64, stockType string, stockCount uint) *models.ProductVariant {
	product := models.Product{Name: "Steam Gift Card", Active: true}
	require.NoError(t, db.Create(&product).Error)

	variant := models.ProductVariant{
		ProductID:  product.ID,
		Name:       "Standard",
		Price:      price,
		StockType:  stockType,
		StockCount: stockCount,
	}
	require.NoError(t, db.Create(&variant).Error)
	return &variant
}

func TestPlaceOrderWalletWithFixedPromo(t *testing.T) {
	db := initTestDB(t)
	svc := newTestService(db)
	ctx := context.Background()

	user := newTestUser(t, db, 500)
	variant := newTestVariant(t, db, 200, models.StockUnlimited, 0)
	require.NoError(t, db.Create(&models.PromoCode{
		Code:          "FLAT100",
		DiscountType:  models.DiscountFixed,
		DiscountValue: 100,
		Active:        true,
	}).Error)
	require.NoError(t, db.Create(&models.CartItem{UserID: user.ID, VariantID: variant.ID, Quantity: 3}).Error)

	placed, err := svc.PlaceOrder(ctx, user.ID,
		[]LineInput{{VariantID: variant.ID, Quantity: 3}},
		"flat100", models.PaymentMethodWallet, "")
	require.NoError(t, err)

	require.True(t, strings.HasPrefix(placed.Number, "ORD-"))
	require.Equal(t, 600.0, placed.TotalAmount)
	require.Equal(t, 100.0, placed.DiscountAmount)
	require.Equal(t, 500.0, placed.FinalAmount)
	require.Equal(t, "FLAT100", placed.DiscountCode)
	require.Equal(t, models.OrderStatusProcessing, placed.Status)
	require.Equal(t, models.PaymentStatusPaid, placed.PaymentStatus)
	require.Len(t, placed.Items, 1)
	require.Equal(t, "Steam Gift Card", placed.Items[0].ProductName)
	require.Equal(t, 200.0, placed.Items[0].UnitPrice)
	require.Equal(t, 600.0, placed.Items[0].LineTotal)

	balance, err := svc.Wallet.Balance(ctx, user.ID)
	require.NoError(t, err)
	require.Equal(t, 0.0, balance)

	var debit models.WalletTransaction
	require.NoError(t, db.Where("transaction_type = ?", models.TxnTypePurchase).First(&debit).Error)
	require.Equal(t, -500.0, debit.Amount)
	require.Equal(t, placed.ID, debit.ReferenceID)

	var promo models.PromoCode
	require.NoError(t, db.Where("code = ?", "FLAT100").First(&promo).Error)
	require.Equal(t, uint(1), promo.UsageCount)

	// checkout empties the cart
	var cartCount int64
	require.NoError(t, db.Model(&models.CartItem{}).Where("user_id = ?", user.ID).Count(&cartCount).Error)
	require.Equal(t, int64(0), cartCount)
}

func TestPlaceOrderInsufficientFundsRollsBack(t *testing.T) {
	db := initTestDB(t)
	svc := newTestService(db)
	ctx := context.Background()

	user := newTestUser(t, db, 100)
	variant := newTestVariant(t, db, 150, models.StockLimited, 5)
	require.NoError(t, db.Create(&models.PromoCode{
		Code:          "TEN",
		DiscountType:  models.DiscountFixed,
		DiscountValue: 10,
		Active:        true,
	}).Error)

	_, err := svc.PlaceOrder(ctx, user.ID,
		[]LineInput{{VariantID: variant.ID, Quantity: 1}},
		"TEN", models.PaymentMethodWallet, "")
	require.ErrorIs(t, err, wallet.ErrInsufficientFunds)

	var orders int64
	require.NoError(t, db.Model(&models.Order{}).Count(&orders).Error)
	require.Equal(t, int64(0), orders)

	var after models.ProductVariant
	require.NoError(t, db.First(&after, variant.ID).Error)
	require.Equal(t, uint(5), after.StockCount)

	var promo models.PromoCode
	require.NoError(t, db.Where("code = ?", "TEN").First(&promo).Error)
	require.Equal(t, uint(0), promo.UsageCount)

	balance, err := svc.Wallet.Balance(ctx, user.ID)
	require.NoError(t, err)
	require.Equal(t, 100.0, balance)
}

func TestPlaceOrderGiftCodeSingleUse(t *testing.T) {
	db := initTestDB(t)
	svc := newTestService(db)
	ctx := context.Background()

	user := newTestUser(t, db, 1000)
	variant := newTestVariant(t, db, 100, models.StockUnlimited, 0)
	require.NoError(t, db.Create(&models.InventoryCode{Code: "GIFT-xyz", DiscountAmount: 40}).Error)

	first, err := svc.PlaceOrder(ctx, user.ID,
		[]LineInput{{VariantID: variant.ID, Quantity: 1}},
		"GIFT-xyz", models.PaymentMethodWallet, "")
	require.NoError(t, err)
	require.Equal(t, 60.0, first.FinalAmount)

	_, err = svc.PlaceOrder(ctx, user.ID,
		[]LineInput{{VariantID: variant.ID, Quantity: 1}},
		"GIFT-xyz", models.PaymentMethodWallet, "")
	require.ErrorIs(t, err, discount.ErrNotFound)

	balance, err := svc.Wallet.Balance(ctx, user.ID)
	require.NoError(t, err)
	require.Equal(t, 940.0, balance)
}

func TestPlaceOrderLimitedStock(t *testing.T) {
	db := initTestDB(t)
	svc := newTestService(db)
	ctx := context.Background()

	user := newTestUser(t, db, 1000)
	variant := newTestVariant(t, db, 10, models.StockLimited, 2)

	_, err := svc.PlaceOrder(ctx, user.ID,
		[]LineInput{{VariantID: variant.ID, Quantity: 3}},
		"", models.PaymentMethodWallet, "")
	require.ErrorIs(t, err, ErrOutOfStock)

	placed, err := svc.PlaceOrder(ctx, user.ID,
		[]LineInput{{VariantID: variant.ID, Quantity: 2}},
		"", models.PaymentMethodWallet, "")
	require.NoError(t, err)
	require.Equal(t, 20.0, placed.FinalAmount)

	var after models.ProductVariant
	require.NoError(t, db.First(&after, variant.ID).Error)
	require.Equal(t, uint(0), after.StockCount)
}

func TestPlaceOrderCodePoolAvailability(t *testing.T) {
	db := initTestDB(t)
	svc := newTestService(db)
	ctx := context.Background()

	user := newTestUser(t, db, 1000)
	variant := newTestVariant(t, db, 50, models.StockCodes, 0)
	require.NoError(t, db.Create(&models.InventoryCode{VariantID: variant.ID, Code: "KEY-1"}).Error)

	_, err := svc.PlaceOrder(ctx, user.ID,
		[]LineInput{{VariantID: variant.ID, Quantity: 2}},
		"", models.PaymentMethodWallet, "")
	require.ErrorIs(t, err, ErrOutOfStock)

	_, err = svc.PlaceOrder(ctx, user.ID,
		[]LineInput{{VariantID: variant.ID, Quantity: 1}},
		"", models.PaymentMethodWallet, "")
	require.NoError(t, err)
}

func TestPlaceOrderValidation(t *testing.T) {
	db := initTestDB(t)
	svc := newTestService(db)
	ctx := context.Background()

	user := newTestUser(t, db, 100)
	variant := newTestVariant(t, db, 10, models.StockUnlimited, 0)

	_, err := svc.PlaceOrder(ctx, user.ID, nil, "", models.PaymentMethodWallet, "")
	require.ErrorIs(t, err, ErrValidation)

	_, err = svc.PlaceOrder(ctx, user.ID,
		[]LineInput{{VariantID: variant.ID, Quantity: 1}},
		"", "paypal", "")
	require.ErrorIs(t, err, ErrValidation)

	_, err = svc.PlaceOrder(ctx, user.ID,
		[]LineInput{{VariantID: variant.ID, Quantity: 0}},
		"", models.PaymentMethodWallet, "")
	require.ErrorIs(t, err, ErrValidation)

	_, err = svc.PlaceOrder(ctx, user.ID,
		[]LineInput{{VariantID: 999, Quantity: 1}},
		"", models.PaymentMethodWallet, "")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestManualPaymentStaysPending(t *testing.T) {
	db := initTestDB(t)
	svc := newTestService(db)
	ctx := context.Background()

	user := newTestUser(t, db, 0)
	variant := newTestVariant(t, db, 80, models.StockUnlimited, 0)

	placed, err := svc.PlaceOrder(ctx, user.ID,
		[]LineInput{{VariantID: variant.ID, Quantity: 1}},
		"", models.PaymentMethodEsewa, "")
	require.NoError(t, err)
	require.Equal(t, models.OrderStatusPending, placed.Status)
	require.Equal(t, models.PaymentStatusPending, placed.PaymentStatus)

	require.NoError(t, svc.AttachProof(ctx, user.ID, placed.ID, "https://cdn.example/proof.png"))

	var after models.Order
	require.NoError(t, db.First(&after, placed.ID).Error)
	require.Equal(t, "https://cdn.example/proof.png", after.PaymentProofURL)

	// not the owner
	err = svc.AttachProof(ctx, user.ID+1, placed.ID, "https://cdn.example/other.png")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateStatusDeliversCodes(t *testing.T) {
	db := initTestDB(t)
	svc := newTestService(db)
	ctx := context.Background()

	user := newTestUser(t, db, 1000)
	variant := newTestVariant(t, db, 50, models.StockCodes, 0)
	for _, code := range []string{"KEY-a", "KEY-b", "KEY-c"} {
		require.NoError(t, db.Create(&models.InventoryCode{VariantID: variant.ID, Code: code}).Error)
	}

	placed, err := svc.PlaceOrder(ctx, user.ID,
		[]LineInput{{VariantID: variant.ID, Quantity: 2}},
		"", models.PaymentMethodWallet, "")
	require.NoError(t, err)
	require.Equal(t, models.OrderStatusProcessing, placed.Status)

	completed, err := svc.UpdateStatus(ctx, placed.ID, models.OrderStatusCompleted, "delivered")
	require.NoError(t, err)
	require.Equal(t, models.OrderStatusCompleted, completed.Status)
	require.Equal(t, "delivered", completed.AdminNotes)
	require.Len(t, completed.Items, 1)
	require.Equal(t, models.ItemStatusDelivered, completed.Items[0].Status)
	require.Equal(t, []string{"KEY-a", "KEY-b"}, strings.Split(completed.Items[0].CodeValue, "\n"))

	var used int64
	require.NoError(t, db.Model(&models.InventoryCode{}).
		Where("variant_id = ? AND is_used = ?", variant.ID, true).Count(&used).Error)
	require.Equal(t, int64(2), used)
}

func TestUpdateStatusTransitions(t *testing.T) {
	db := initTestDB(t)
	svc := newTestService(db)
	ctx := context.Background()

	user := newTestUser(t, db, 0)
	variant := newTestVariant(t, db, 80, models.StockUnlimited, 0)

	placed, err := svc.PlaceOrder(ctx, user.ID,
		[]LineInput{{VariantID: variant.ID, Quantity: 1}},
		"", models.PaymentMethodBankTransfer, "")
	require.NoError(t, err)

	// pending cannot jump straight to completed
	_, err = svc.UpdateStatus(ctx, placed.ID, models.OrderStatusCompleted, "")
	require.ErrorIs(t, err, ErrConflict)

	processing, err := svc.UpdateStatus(ctx, placed.ID, models.OrderStatusProcessing, "")
	require.NoError(t, err)
	require.Equal(t, models.PaymentStatusPaid, processing.PaymentStatus)

	_, err = svc.UpdateStatus(ctx, placed.ID, models.OrderStatusPending, "")
	require.ErrorIs(t, err, ErrConflict)

	_, err = svc.UpdateStatus(ctx, 999, models.OrderStatusProcessing, "")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestCancelRefundsWalletAndReleasesDiscount(t *testing.T) {
	db := initTestDB(t)
	svc := newTestService(db)
	ctx := context.Background()

	user := newTestUser(t, db, 500)
	variant := newTestVariant(t, db, 100, models.StockLimited, 10)
	require.NoError(t, db.Create(&models.PromoCode{
		Code:          "COMEBACK",
		DiscountType:  models.DiscountFixed,
		DiscountValue: 50,
		Active:        true,
	}).Error)

	placed, err := svc.PlaceOrder(ctx, user.ID,
		[]LineInput{{VariantID: variant.ID, Quantity: 2}},
		"COMEBACK", models.PaymentMethodWallet, "")
	require.NoError(t, err)
	require.Equal(t, 150.0, placed.FinalAmount)

	cancelled, err := svc.UpdateStatus(ctx, placed.ID, models.OrderStatusCancelled, "user request")
	require.NoError(t, err)
	require.Equal(t, models.OrderStatusCancelled, cancelled.Status)

	balance, err := svc.Wallet.Balance(ctx, user.ID)
	require.NoError(t, err)
	require.Equal(t, 500.0, balance)

	var refund models.WalletTransaction
	require.NoError(t, db.Where("transaction_type = ?", models.TxnTypeRefund).First(&refund).Error)
	require.Equal(t, 150.0, refund.Amount)
	require.Equal(t, placed.ID, refund.ReferenceID)

	var promo models.PromoCode
	require.NoError(t, db.Where("code = ?", "COMEBACK").First(&promo).Error)
	require.Equal(t, uint(0), promo.UsageCount)

	var after models.ProductVariant
	require.NoError(t, db.First(&after, variant.ID).Error)
	require.Equal(t, uint(10), after.StockCount)
}

func TestListAndGetOrders(t *testing.T) {
	db := initTestDB(t)
	svc := newTestService(db)
	ctx := context.Background()

	user := newTestUser(t, db, 1000)
	variant := newTestVariant(t, db, 10, models.StockUnlimited, 0)

	for i := 0; i < 3; i++ {
		_, err := svc.PlaceOrder(ctx, user.ID,
			[]LineInput{{VariantID: variant.ID, Quantity: 1}},
			"", models.PaymentMethodWallet, "")
		require.NoError(t, err)
	}

	orders, total, err := svc.ListOrders(ctx, user.ID, 0, 2)
	require.NoError(t, err)
	require.Equal(t, int64(3), total)
	require.Len(t, orders, 2)

	found, err := svc.GetOrder(ctx, user.ID, orders[0].ID)
	require.NoError(t, err)
	require.Len(t, found.Items, 1)

	// another user's order is invisible
	_, err = svc.GetOrder(ctx, user.ID+1, orders[0].ID)
	require.ErrorIs(t, err, ErrNotFound)

	all, total, err := svc.ListAllOrders(ctx, models.OrderStatusProcessing, 0, 10)
	require.NoError(t, err)
	require.Equal(t, int64(3), total)
	require.Len(t, all, 3)
}
