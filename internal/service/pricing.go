package service

import (
	"context"
	"time"

	"chronora/internal/model"
	"chronora/internal/repository"
	apperrors "chronora/pkg/errors"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// PricingService resolves the selling price of products against active offers
type PricingService struct {
	products repository.ProductRepository
	offers   repository.OfferRepository
	log      *logrus.Logger
	now      func() time.Time
}

func NewPricingService(products repository.ProductRepository, offers repository.OfferRepository, logger *logrus.Logger) *PricingService {
	return &PricingService{
		products: products,
		offers:   offers,
		log:      logger,
		now:      time.Now,
	}
}

// Resolve picks the best offer for product. Product offers shadow category
// offers; within a scope the largest discount wins and ties go to the most
// recently created offer. A nil product yields a zero quote.
func Resolve(product *model.Product, offers []*model.Offer, now time.Time) model.PriceQuote {
	if product == nil {
		return model.PriceQuote{}
	}
	quote := model.PriceQuote{
		ProductID:     product.ID,
		OriginalPrice: product.Price,
		FinalPrice:    product.Price,
	}

	var productScoped, categoryScoped []*model.Offer
	for _, o := range offers {
		if o == nil || !o.ActiveAt(now) {
			continue
		}
		switch {
		case o.Scope == model.OfferScopeProduct && o.TargetID == product.ID:
			productScoped = append(productScoped, o)
		case o.Scope == model.OfferScopeCategory && o.TargetID == product.CategoryID:
			categoryScoped = append(categoryScoped, o)
		}
	}
	candidates := productScoped
	if len(candidates) == 0 {
		candidates = categoryScoped
	}

	price := decimal.NewFromFloat(product.Price)
	var best *model.Offer
	bestDiscount := decimal.Zero
	for _, o := range candidates {
		d := offerDiscount(price, o)
		if best == nil || d.GreaterThan(bestDiscount) ||
			(d.Equal(bestDiscount) && o.CreatedAt.After(best.CreatedAt)) {
			best, bestDiscount = o, d
		}
	}
	if best == nil {
		return quote
	}

	quote.AppliedOffer = best
	quote.FinalPrice = price.Sub(bestDiscount).InexactFloat64()
	if price.IsPositive() {
		quote.DiscountPercentage = bestDiscount.Div(price).Mul(decimal.NewFromInt(100)).Round(0).InexactFloat64()
	}
	return quote
}

// offerDiscount is clamped to [0, price]
func offerDiscount(price decimal.Decimal, o *model.Offer) decimal.Decimal {
	value := decimal.NewFromFloat(o.DiscountValue)
	var d decimal.Decimal
	switch o.DiscountType {
	case model.DiscountPercentage:
		d = price.Mul(value).Div(decimal.NewFromInt(100)).Round(0)
	default:
		d = value
	}
	if d.IsNegative() {
		return decimal.Zero
	}
	return decimal.Min(d, price)
}

// Quote loads the product and its active offers. variantID is optional; when
// given it must belong to the product.
func (s *PricingService) Quote(ctx context.Context, productID primitive.ObjectID, variantID *primitive.ObjectID) (*model.PriceQuote, error) {
	product, err := s.products.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	if variantID != nil {
		variant, err := s.products.GetVariant(ctx, *variantID)
		if err != nil {
			return nil, err
		}
		if variant.ProductID != product.ID {
			return nil, apperrors.ErrVariantNotFound
		}
	}
	quote, err := s.quoteProduct(ctx, product)
	if err != nil {
		return nil, err
	}
	return &quote, nil
}

func (s *PricingService) quoteProduct(ctx context.Context, product *model.Product) (model.PriceQuote, error) {
	now := s.now()
	offers, err := s.offers.ListActiveOffers(ctx, product.ID, product.CategoryID, now)
	if err != nil {
		return model.PriceQuote{}, err
	}
	return Resolve(product, offers, now), nil
}

// PriceLines turns cart lines into order items at current prices. Blocked or
// missing products fail the whole call; stock is checked but not reserved.
func (s *PricingService) PriceLines(ctx context.Context, lines []model.CartLine) ([]model.OrderItem, float64, error) {
	items := make([]model.OrderItem, 0, len(lines))
	subtotal := decimal.Zero
	for _, line := range lines {
		if line.Quantity <= 0 {
			return nil, 0, apperrors.Validation("quantity must be at least 1")
		}
		product, err := s.products.GetProduct(ctx, line.ProductID)
		if err != nil {
			return nil, 0, err
		}
		variant, err := s.products.GetVariant(ctx, line.VariantID)
		if err != nil {
			return nil, 0, err
		}
		if variant.ProductID != product.ID {
			return nil, 0, apperrors.ErrVariantNotFound
		}
		if product.IsBlocked || variant.IsBlocked {
			return nil, 0, apperrors.ErrProductBlocked
		}
		if variant.Stock < line.Quantity {
			s.log.Warnf("Use Case: %s (%s) has %d in stock, %d requested", product.Name, variant.Color, variant.Stock, line.Quantity)
			return nil, 0, apperrors.ErrOutOfStock
		}

		quote, err := s.quoteProduct(ctx, product)
		if err != nil {
			return nil, 0, err
		}
		item := model.OrderItem{
			ProductID:     product.ID,
			VariantID:     variant.ID,
			Name:          product.Name,
			Color:         variant.Color,
			Quantity:      line.Quantity,
			Price:         quote.FinalPrice,
			OriginalPrice: quote.OriginalPrice,
		}
		if quote.AppliedOffer != nil {
			id := quote.AppliedOffer.ID
			item.OfferID = &id
		}
		items = append(items, item)
		subtotal = subtotal.Add(decimal.NewFromFloat(item.Price).Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	return items, subtotal.InexactFloat64(), nil
}
