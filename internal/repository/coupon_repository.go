package repository

import (
	"context"

	"chronora/internal/model"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// CouponRepository defines the interface for coupon data operations
type CouponRepository interface {
	// CreateCoupon creates a new coupon
	CreateCoupon(ctx context.Context, coupon *model.Coupon) error

	// GetCouponByCode retrieves a coupon by its code
	GetCouponByCode(ctx context.Context, code string) (*model.Coupon, error)

	// ListCoupons returns every coupon
	ListCoupons(ctx context.Context) ([]*model.Coupon, error)

	// RedeemCoupon atomically records one use of the coupon by userID.
	// Returns an error if the per-user or total usage limit is reached.
	RedeemCoupon(ctx context.Context, coupon *model.Coupon, userID primitive.ObjectID) error

	// UnredeemCoupon reverts one use recorded by RedeemCoupon
	UnredeemCoupon(ctx context.Context, couponID, userID primitive.ObjectID) error
}
