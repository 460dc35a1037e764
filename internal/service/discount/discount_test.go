package discount

import (
	"context"
	"testing"
	"time"

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

	if err := db.AutoMigrate(&models.InventoryCode{}, &models.PromoCode{}); err != nil {
		t.Fatalf("failed to migrate tables: %v", err)
	}

	return db
}

func TestResolvePercentagePromo(t *testing.T) {
	db := initTestDB(t)
	ctx := context.Background()

	promo := models.PromoCode{
		Code:          "SAVE10",
		DiscountType:  models.DiscountPercentage,
		DiscountValue: 10,
		Active:        true,
	}
	require.NoError(t, db.Create(&promo).Error)

	res, err := Resolve(ctx, db, "save10", 200)
	require.NoError(t, err)
	require.Equal(t, KindPromo, res.Kind)
	require.Equal(t, "SAVE10", res.Code)
	require.Equal(t, 20.0, res.Amount)
	require.Equal(t, promo.ID, res.PromoCodeID)
}

func TestResolvePercentageCappedByMaxDiscount(t *testing.T) {
	db := initTestDB(t)

	promo := models.PromoCode{
		Code:              "BIG50",
		DiscountType:      models.DiscountPercentage,
		DiscountValue:     50,
		MaxDiscountAmount: 100,
		Active:            true,
	}
	require.NoError(t, db.Create(&promo).Error)

	res, err := Resolve(context.Background(), db, "BIG50", 1000)
	require.NoError(t, err)
	require.Equal(t, 100.0, res.Amount)
}

func TestResolveFixedCappedAtSubtotal(t *testing.T) {
	db := initTestDB(t)

	promo := models.PromoCode{
		Code:          "FLAT500",
		DiscountType:  models.DiscountFixed,
		DiscountValue: 500,
		Active:        true,
	}
	require.NoError(t, db.Create(&promo).Error)

	res, err := Resolve(context.Background(), db, "FLAT500", 120)
	require.NoError(t, err)
	require.Equal(t, 120.0, res.Amount)
}

func TestResolveExpiredPromo(t *testing.T) {
	db := initTestDB(t)

	past := time.Now().Add(-time.Hour)
	promo := models.PromoCode{
		Code:          "OLD",
		DiscountType:  models.DiscountFixed,
		DiscountValue: 50,
		ExpiresAt:     &past,
		Active:        true,
	}
	require.NoError(t, db.Create(&promo).Error)

	_, err := Resolve(context.Background(), db, "OLD", 200)
	require.ErrorIs(t, err, ErrExpired)
}

func TestResolveBelowMinimumOrder(t *testing.T) {
	db := initTestDB(t)

	promo := models.PromoCode{
		Code:           "MIN100",
		DiscountType:   models.DiscountFixed,
		DiscountValue:  20,
		MinOrderAmount: 100,
		Active:         true,
	}
	require.NoError(t, db.Create(&promo).Error)

	_, err := Resolve(context.Background(), db, "MIN100", 99)
	require.ErrorIs(t, err, ErrBelowMinimum)

	res, err := Resolve(context.Background(), db, "MIN100", 100)
	require.NoError(t, err)
	require.Equal(t, 20.0, res.Amount)
}

func TestResolveUsageLimitReached(t *testing.T) {
	db := initTestDB(t)

	promo := models.PromoCode{
		Code:          "ONCE",
		DiscountType:  models.DiscountFixed,
		DiscountValue: 10,
		UsageLimit:    1,
		UsageCount:    1,
		Active:        true,
	}
	require.NoError(t, db.Create(&promo).Error)

	_, err := Resolve(context.Background(), db, "ONCE", 200)
	require.ErrorIs(t, err, ErrUsageExceeded)
}

func TestResolveInactiveAndUnknown(t *testing.T) {
	db := initTestDB(t)

	promo := models.PromoCode{
		Code:          "HIDDEN",
		DiscountType:  models.DiscountFixed,
		DiscountValue: 10,
		Active:        false,
	}
	require.NoError(t, db.Create(&promo).Error)

	_, err := Resolve(context.Background(), db, "HIDDEN", 200)
	require.ErrorIs(t, err, ErrNotFound)

	_, err = Resolve(context.Background(), db, "NOPE", 200)
	require.ErrorIs(t, err, ErrNotFound)

	_, err = Resolve(context.Background(), db, "   ", 200)
	require.ErrorIs(t, err, ErrValidation)
}

func TestResolveInventoryCodeBeforePromo(t *testing.T) {
	db := initTestDB(t)

	inv := models.InventoryCode{Code: "GIFT-abc", DiscountAmount: 150}
	require.NoError(t, db.Create(&inv).Error)

	res, err := Resolve(context.Background(), db, "GIFT-abc", 100)
	require.NoError(t, err)
	require.Equal(t, KindInventory, res.Kind)
	require.Equal(t, inv.ID, res.InventoryCodeID)
	// capped at subtotal
	require.Equal(t, 100.0, res.Amount)
}

func TestResolveInventoryCodeWithoutDiscount(t *testing.T) {
	db := initTestDB(t)

	inv := models.InventoryCode{Code: "PLAIN-1", DiscountAmount: 0}
	require.NoError(t, db.Create(&inv).Error)

	_, err := Resolve(context.Background(), db, "PLAIN-1", 100)
	require.ErrorIs(t, err, ErrInvalidDiscount)
}

func TestConsumeInventoryCodeOnlyOnce(t *testing.T) {
	db := initTestDB(t)
	ctx := context.Background()

	inv := models.InventoryCode{Code: "GIFT-1", DiscountAmount: 50}
	require.NoError(t, db.Create(&inv).Error)

	res, err := Resolve(ctx, db, "GIFT-1", 200)
	require.NoError(t, err)

	require.NoError(t, Consume(ctx, db, res, 11))

	var used models.InventoryCode
	require.NoError(t, db.First(&used, inv.ID).Error)
	require.True(t, used.IsUsed)
	require.NotNil(t, used.OrderID)
	require.Equal(t, uint(11), *used.OrderID)
	require.NotNil(t, used.UsedAt)

	// the second settlement racing for the same code must lose
	err = Consume(ctx, db, res, 12)
	require.ErrorIs(t, err, ErrNotFound)

	_, err = Resolve(ctx, db, "GIFT-1", 200)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestConsumePromoRespectsLimit(t *testing.T) {
	db := initTestDB(t)
	ctx := context.Background()

	promo := models.PromoCode{
		Code:          "LAST",
		DiscountType:  models.DiscountFixed,
		DiscountValue: 10,
		UsageLimit:    1,
		Active:        true,
	}
	require.NoError(t, db.Create(&promo).Error)

	res, err := Resolve(ctx, db, "LAST", 200)
	require.NoError(t, err)

	require.NoError(t, Consume(ctx, db, res, 21))

	var after models.PromoCode
	require.NoError(t, db.First(&after, promo.ID).Error)
	require.Equal(t, uint(1), after.UsageCount)

	err = Consume(ctx, db, res, 22)
	require.ErrorIs(t, err, ErrUsageExceeded)

	require.NoError(t, db.First(&after, promo.ID).Error)
	require.Equal(t, uint(1), after.UsageCount)
}

func TestConsumeUnlimitedPromo(t *testing.T) {
	db := initTestDB(t)
	ctx := context.Background()

	promo := models.PromoCode{
		Code:          "FOREVER",
		DiscountType:  models.DiscountFixed,
		DiscountValue: 10,
		UsageLimit:    0,
		Active:        true,
	}
	require.NoError(t, db.Create(&promo).Error)

	res, err := Resolve(ctx, db, "FOREVER", 200)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		require.NoError(t, Consume(ctx, db, res, uint(30+i)))
	}

	var after models.PromoCode
	require.NoError(t, db.First(&after, promo.ID).Error)
	require.Equal(t, uint(3), after.UsageCount)
}

func TestReleaseInventoryCode(t *testing.T) {
	db := initTestDB(t)
	ctx := context.Background()

	inv := models.InventoryCode{Code: "GIFT-2", DiscountAmount: 50}
	require.NoError(t, db.Create(&inv).Error)

	res, err := Resolve(ctx, db, "GIFT-2", 200)
	require.NoError(t, err)
	require.NoError(t, Consume(ctx, db, res, 41))

	require.NoError(t, Release(ctx, db, 41, ""))

	var freed models.InventoryCode
	require.NoError(t, db.First(&freed, inv.ID).Error)
	require.False(t, freed.IsUsed)
	require.Nil(t, freed.OrderID)
	require.Nil(t, freed.UsedAt)
}

func TestReleasePromoUsage(t *testing.T) {
	db := initTestDB(t)
	ctx := context.Background()

	promo := models.PromoCode{
		Code:          "BACK",
		DiscountType:  models.DiscountFixed,
		DiscountValue: 10,
		UsageCount:    2,
		Active:        true,
	}
	require.NoError(t, db.Create(&promo).Error)

	require.NoError(t, Release(ctx, db, 51, "back"))

	var after models.PromoCode
	require.NoError(t, db.First(&after, promo.ID).Error)
	require.Equal(t, uint(1), after.UsageCount)
}
