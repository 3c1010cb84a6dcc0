package service

import (
	"context"
	"strings"
	"time"

	"chronora/internal/model"
	"chronora/internal/repository"
	apperrors "chronora/pkg/errors"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type OfferService struct {
	offers   repository.OfferRepository
	products repository.ProductRepository
	log      *logrus.Logger
	now      func() time.Time
}

func NewOfferService(offers repository.OfferRepository, products repository.ProductRepository, logger *logrus.Logger) *OfferService {
	return &OfferService{offers: offers, products: products, log: logger, now: time.Now}
}

// CreateOffer validates the offer against its target. The fixed-amount check
// only runs here; later price changes are not re-validated.
func (s *OfferService) CreateOffer(ctx context.Context, req *model.CreateOfferRequest) (*model.Offer, error) {
	scope := model.OfferScope(strings.ToLower(strings.TrimSpace(req.Scope)))
	if scope != model.OfferScopeProduct && scope != model.OfferScopeCategory {
		return nil, apperrors.Validation("offer scope must be product or category")
	}
	targetID, err := primitive.ObjectIDFromHex(req.TargetID)
	if err != nil {
		return nil, apperrors.ErrInvalidID
	}
	discountType := model.DiscountType(strings.ToLower(strings.TrimSpace(req.DiscountType)))
	switch discountType {
	case model.DiscountPercentage:
		if req.DiscountValue <= 0 || req.DiscountValue >= 100 {
			return nil, apperrors.Validation("percentage offer must be between 0 and 100")
		}
	case model.DiscountFixed:
		if req.DiscountValue <= 0 {
			return nil, apperrors.Validation("offer value must be positive")
		}
	default:
		return nil, apperrors.Validation("discount type must be percentage or fixed")
	}
	if !req.StartDate.Before(req.EndDate) {
		return nil, apperrors.Validation("start date must be before end date")
	}

	if scope == model.OfferScopeProduct {
		product, err := s.products.GetProduct(ctx, targetID)
		if err != nil {
			return nil, err
		}
		if discountType == model.DiscountFixed && req.DiscountValue >= product.Price {
			return nil, apperrors.Validationf("fixed offer must be below the product price of %.2f", product.Price)
		}
	}

	offer := &model.Offer{
		Name:          strings.TrimSpace(req.Name),
		Scope:         scope,
		TargetID:      targetID,
		DiscountType:  discountType,
		DiscountValue: req.DiscountValue,
		StartDate:     req.StartDate,
		EndDate:       req.EndDate,
		IsActive:      true,
		CreatedAt:     s.now(),
	}
	if err := s.offers.CreateOffer(ctx, offer); err != nil {
		return nil, err
	}
	s.log.Infof("Use Case: Offer %q created for %s %s", offer.Name, scope, targetID.Hex())
	return offer, nil
}
