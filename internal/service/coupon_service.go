package service

import (
	"context"
	"strings"
	"time"

	"chronora/internal/model"
	"chronora/internal/repository"
	apperrors "chronora/pkg/errors"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// CouponService handles business logic for coupons
type CouponService struct {
	couponRepo repository.CouponRepository
	log        *logrus.Logger
	now        func() time.Time
}

// NewCouponService creates a new coupon service
func NewCouponService(couponRepo repository.CouponRepository, logger *logrus.Logger) *CouponService {
	return &CouponService{
		couponRepo: couponRepo,
		log:        logger,
		now:        time.Now,
	}
}

// NormalizeCode is applied to every code entering the system
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// CreateCoupon validates and stores a new coupon
func (s *CouponService) CreateCoupon(ctx context.Context, req *model.CreateCouponRequest) (*model.Coupon, error) {
	code := NormalizeCode(req.Code)
	if code == "" {
		return nil, apperrors.Validation("coupon code is required")
	}
	discountType := model.DiscountType(strings.ToLower(strings.TrimSpace(req.DiscountType)))
	switch discountType {
	case model.DiscountPercentage:
		if req.DiscountValue <= 0 || req.DiscountValue > 100 {
			return nil, apperrors.Validation("percentage discount must be between 0 and 100")
		}
	case model.DiscountFixed:
		if req.DiscountValue <= 0 {
			return nil, apperrors.Validation("discount value must be positive")
		}
	default:
		return nil, apperrors.Validation("discount type must be percentage or fixed")
	}
	if req.MinPurchase < 0 || req.MaxDiscountLimit < 0 || req.TotalUsageLimit < 0 {
		return nil, apperrors.Validation("limits cannot be negative")
	}
	if !req.StartDate.Before(req.ExpiryDate) {
		return nil, apperrors.Validation("start date must be before expiry date")
	}
	perUser := req.PerUserLimit
	if perUser <= 0 {
		perUser = 1
	}

	allowed := make([]primitive.ObjectID, 0, len(req.AllowedUsers))
	for _, hex := range req.AllowedUsers {
		id, err := primitive.ObjectIDFromHex(hex)
		if err != nil {
			return nil, apperrors.Validationf("invalid user id in allow-list: %s", hex)
		}
		allowed = append(allowed, id)
	}

	now := s.now()
	coupon := &model.Coupon{
		Code:             code,
		Description:      req.Description,
		DiscountType:     discountType,
		DiscountValue:    req.DiscountValue,
		MinPurchase:      req.MinPurchase,
		MaxDiscountLimit: req.MaxDiscountLimit,
		PerUserLimit:     perUser,
		TotalUsageLimit:  req.TotalUsageLimit,
		UsedBy:           []model.CouponUsage{},
		AllowedUsers:     allowed,
		StartDate:        req.StartDate,
		ExpiryDate:       req.ExpiryDate,
		IsActive:         true,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := s.couponRepo.CreateCoupon(ctx, coupon); err != nil {
		return nil, err
	}
	s.log.Infof("Use Case: Coupon %s created (%s %.2f)", coupon.Code, coupon.DiscountType, coupon.DiscountValue)
	return coupon, nil
}

// Lookup returns the coupon with the normalized code
func (s *CouponService) Lookup(ctx context.Context, code string) (*model.Coupon, error) {
	return s.couponRepo.GetCouponByCode(ctx, NormalizeCode(code))
}

// ApplyCoupon previews a coupon against a subtotal. Nothing is recorded; usage
// is only counted when an order is placed.
func (s *CouponService) ApplyCoupon(ctx context.Context, code string, userID primitive.ObjectID, subtotal float64) (*model.CouponPreview, error) {
	coupon, err := s.Lookup(ctx, code)
	if err != nil {
		return nil, err
	}
	discount, err := coupon.Evaluate(subtotal, userID, s.now())
	if err != nil {
		s.log.Warnf("Use Case: Coupon %s rejected for user %s: %v", coupon.Code, userID.Hex(), err)
		return nil, err
	}
	payable := decimal.NewFromFloat(subtotal).Sub(decimal.NewFromFloat(discount))
	return &model.CouponPreview{
		Code:     coupon.Code,
		Subtotal: subtotal,
		Discount: discount,
		Payable:  payable.InexactFloat64(),
	}, nil
}

// ListAvailable returns the coupons userID could still redeem
func (s *CouponService) ListAvailable(ctx context.Context, userID primitive.ObjectID) ([]*model.Coupon, error) {
	coupons, err := s.couponRepo.ListCoupons(ctx)
	if err != nil {
		return nil, err
	}
	now := s.now()
	available := make([]*model.Coupon, 0, len(coupons))
	for _, c := range coupons {
		if c.Status(now) != model.CouponActive || !c.Allows(userID) {
			continue
		}
		if c.PerUserLimit > 0 && c.UsageBy(userID) >= c.PerUserLimit {
			continue
		}
		available = append(available, c)
	}
	return available, nil
}

// ListCoupons returns every coupon for the back office
func (s *CouponService) ListCoupons(ctx context.Context) ([]*model.Coupon, error) {
	return s.couponRepo.ListCoupons(ctx)
}
