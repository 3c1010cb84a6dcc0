package service

import (
	"testing"
	"time"

	"chronora/internal/model"
	apperrors "chronora/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func validCouponRequest() *model.CreateCouponRequest {
	return &model.CreateCouponRequest{
		Code:          "save10",
		DiscountType:  "percentage",
		DiscountValue: 10,
		MinPurchase:   1000,
		StartDate:     time.Now().Add(-time.Hour),
		ExpiryDate:    time.Now().Add(time.Hour),
	}
}

func TestCreateCoupon(t *testing.T) {
	f := newFixture(t)

	coupon, err := f.coupons.CreateCoupon(f.ctx, validCouponRequest())
	require.NoError(t, err)
	assert.Equal(t, "SAVE10", coupon.Code)
	assert.Equal(t, 1, coupon.PerUserLimit)
	assert.True(t, coupon.IsActive)

	_, err = f.coupons.CreateCoupon(f.ctx, validCouponRequest())
	assert.ErrorIs(t, err, apperrors.ErrCouponAlreadyExists)
}

func TestCreateCouponValidation(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name   string
		mutate func(r *model.CreateCouponRequest)
	}{
		{"blank code", func(r *model.CreateCouponRequest) { r.Code = "  " }},
		{"unknown type", func(r *model.CreateCouponRequest) { r.DiscountType = "bogo" }},
		{"percentage above 100", func(r *model.CreateCouponRequest) { r.DiscountValue = 120 }},
		{"zero fixed value", func(r *model.CreateCouponRequest) { r.DiscountType = "fixed"; r.DiscountValue = 0 }},
		{"negative minimum", func(r *model.CreateCouponRequest) { r.MinPurchase = -1 }},
		{"expiry before start", func(r *model.CreateCouponRequest) { r.ExpiryDate = r.StartDate.Add(-time.Minute) }},
		{"bad allow-list id", func(r *model.CreateCouponRequest) { r.AllowedUsers = []string{"nope"} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validCouponRequest()
			tt.mutate(req)
			_, err := f.coupons.CreateCoupon(f.ctx, req)
			assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))
		})
	}
}

func TestApplyCoupon(t *testing.T) {
	f := newFixture(t)
	_, err := f.coupons.CreateCoupon(f.ctx, validCouponRequest())
	require.NoError(t, err)
	userID := primitive.NewObjectID()

	preview, err := f.coupons.ApplyCoupon(f.ctx, "Save10", userID, 1500)
	require.NoError(t, err)
	assert.Equal(t, 150.0, preview.Discount)
	assert.Equal(t, 1350.0, preview.Payable)

	_, err = f.coupons.ApplyCoupon(f.ctx, "SAVE10", userID, 999)
	assert.ErrorIs(t, err, apperrors.ErrCouponMinPurchase)

	_, err = f.coupons.ApplyCoupon(f.ctx, "MISSING", userID, 1500)
	assert.ErrorIs(t, err, apperrors.ErrCouponNotFound)

	coupon, err := f.coupons.Lookup(f.ctx, "save10")
	require.NoError(t, err)
	assert.Zero(t, coupon.UsedCount, "previewing must not record usage")
}

func TestListAvailableCoupons(t *testing.T) {
	f := newFixture(t)
	userID, other := primitive.NewObjectID(), primitive.NewObjectID()

	open := validCouponRequest()
	open.Code = "OPEN"
	private := validCouponRequest()
	private.Code = "VIP"
	private.AllowedUsers = []string{other.Hex()}
	expired := validCouponRequest()
	expired.Code = "OLD"
	expired.StartDate = time.Now().Add(-48 * time.Hour)
	expired.ExpiryDate = time.Now().Add(-24 * time.Hour)

	for _, req := range []*model.CreateCouponRequest{open, private, expired} {
		_, err := f.coupons.CreateCoupon(f.ctx, req)
		require.NoError(t, err)
	}

	available, err := f.coupons.ListAvailable(f.ctx, userID)
	require.NoError(t, err)
	require.Len(t, available, 1)
	assert.Equal(t, "OPEN", available[0].Code)

	coupon, err := f.coupons.Lookup(f.ctx, "OPEN")
	require.NoError(t, err)
	require.NoError(t, f.store.RedeemCoupon(f.ctx, coupon, userID))

	available, err = f.coupons.ListAvailable(f.ctx, userID)
	require.NoError(t, err)
	assert.Empty(t, available)

	all, err := f.coupons.ListCoupons(f.ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}
