package model

import (
	"time"

	apperrors "chronora/pkg/errors"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type CouponStatus string

const (
	CouponActive   CouponStatus = "Active"
	CouponInactive CouponStatus = "Inactive"
)

// Coupon represents a discount code redeemable at checkout
type Coupon struct {
	ID               primitive.ObjectID   `bson:"_id,omitempty" json:"id,omitempty"`
	Code             string               `bson:"code" json:"code"`
	Description      string               `bson:"description" json:"description"`
	DiscountType     DiscountType         `bson:"discount_type" json:"discount_type"`
	DiscountValue    float64              `bson:"discount_value" json:"discount_value"`
	MinPurchase      float64              `bson:"min_purchase" json:"min_purchase"`
	MaxDiscountLimit float64              `bson:"max_discount_limit" json:"max_discount_limit"` // 0 means uncapped
	PerUserLimit     int                  `bson:"per_user_limit" json:"per_user_limit"`
	TotalUsageLimit  int                  `bson:"total_usage_limit" json:"total_usage_limit"` // 0 means unlimited
	UsedCount        int                  `bson:"used_count" json:"used_count"`
	UsedBy           []CouponUsage        `bson:"used_by" json:"-"`
	AllowedUsers     []primitive.ObjectID `bson:"allowed_users,omitempty" json:"allowed_users,omitempty"`
	StartDate        time.Time            `bson:"start_date" json:"start_date"`
	ExpiryDate       time.Time            `bson:"expiry_date" json:"expiry_date"`
	IsActive         bool                 `bson:"is_active" json:"is_active"`
	CreatedAt        time.Time            `bson:"created_at" json:"created_at"`
	UpdatedAt        time.Time            `bson:"updated_at" json:"updated_at"`
}

// CouponUsage counts how many orders a user placed with a coupon
type CouponUsage struct {
	UserID primitive.ObjectID `bson:"user_id" json:"user_id"`
	Count  int                `bson:"count" json:"count"`
}

// UsageBy returns how many times userID has redeemed the coupon
func (c *Coupon) UsageBy(userID primitive.ObjectID) int {
	for _, u := range c.UsedBy {
		if u.UserID == userID {
			return u.Count
		}
	}
	return 0
}

// Status derives Active/Inactive from the active flag, the validity window and usage
func (c *Coupon) Status(now time.Time) CouponStatus {
	if !c.IsActive || now.Before(c.StartDate) || now.After(c.ExpiryDate) {
		return CouponInactive
	}
	if c.TotalUsageLimit > 0 && c.UsedCount >= c.TotalUsageLimit {
		return CouponInactive
	}
	return CouponActive
}

// Allows reports whether userID passes the allow-list; an empty list allows everyone
func (c *Coupon) Allows(userID primitive.ObjectID) bool {
	if len(c.AllowedUsers) == 0 {
		return true
	}
	for _, id := range c.AllowedUsers {
		if id == userID {
			return true
		}
	}
	return false
}

// Evaluate runs the coupon rules in order and returns the discount for subtotal.
// Checkout preview and order placement both go through here.
func (c *Coupon) Evaluate(subtotal float64, userID primitive.ObjectID, now time.Time) (float64, error) {
	if !c.IsActive {
		return 0, apperrors.ErrCouponInactive
	}
	if now.Before(c.StartDate) {
		return 0, apperrors.ErrCouponNotStarted
	}
	if now.After(c.ExpiryDate) {
		return 0, apperrors.ErrCouponExpired
	}
	if !c.Allows(userID) {
		return 0, apperrors.ErrCouponNotAllowed
	}
	if subtotal < c.MinPurchase {
		return 0, apperrors.ErrCouponMinPurchase
	}
	if c.PerUserLimit > 0 && c.UsageBy(userID) >= c.PerUserLimit {
		return 0, apperrors.ErrCouponUserLimit
	}
	if c.TotalUsageLimit > 0 && c.UsedCount >= c.TotalUsageLimit {
		return 0, apperrors.ErrCouponExhausted
	}
	return c.discountFor(subtotal), nil
}

func (c *Coupon) discountFor(subtotal float64) float64 {
	total := decimal.NewFromFloat(subtotal)
	var discount decimal.Decimal
	switch c.DiscountType {
	case DiscountPercentage:
		discount = total.Mul(decimal.NewFromFloat(c.DiscountValue)).Div(decimal.NewFromInt(100))
		if c.MaxDiscountLimit > 0 {
			discount = decimal.Min(discount, decimal.NewFromFloat(c.MaxDiscountLimit))
		}
	default:
		discount = decimal.NewFromFloat(c.DiscountValue)
	}
	discount = decimal.Min(discount, total).Round(0)
	if discount.IsNegative() {
		return 0
	}
	return discount.InexactFloat64()
}

// CreateCouponRequest represents the admin request to create a coupon
type CreateCouponRequest struct {
	Code             string    `json:"code" binding:"required"`
	Description      string    `json:"description"`
	DiscountType     string    `json:"discount_type" binding:"required"`
	DiscountValue    float64   `json:"discount_value" binding:"required"`
	MinPurchase      float64   `json:"min_purchase"`
	MaxDiscountLimit float64   `json:"max_discount_limit"`
	PerUserLimit     int       `json:"per_user_limit"`
	TotalUsageLimit  int       `json:"total_usage_limit"`
	AllowedUsers     []string  `json:"allowed_users"`
	StartDate        time.Time `json:"start_date" binding:"required"`
	ExpiryDate       time.Time `json:"expiry_date" binding:"required"`
}

// ApplyCouponRequest represents the request to preview a coupon against the cart
type ApplyCouponRequest struct {
	Code string `json:"code" binding:"required"`
}

// CouponPreview is the result of a successful coupon preview
type CouponPreview struct {
	Code     string  `json:"code"`
	Subtotal float64 `json:"subtotal"`
	Discount float64 `json:"discount"`
	Payable  float64 `json:"payable"`
}
