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

// CartService prices carts and keeps them consistent with the catalog
type CartService struct {
	carts    repository.CartRepository
	products repository.ProductRepository
	pricing  *PricingService
	log      *logrus.Logger
}

func NewCartService(carts repository.CartRepository, products repository.ProductRepository, pricing *PricingService, logger *logrus.Logger) *CartService {
	return &CartService{carts: carts, products: products, pricing: pricing, log: logger}
}

// Lines returns the raw cart lines used for checkout
func (s *CartService) Lines(ctx context.Context, userID primitive.ObjectID) ([]model.CartLine, error) {
	cart, err := s.carts.GetCart(ctx, userID)
	if err != nil {
		return nil, err
	}
	return cart.Items, nil
}

// Summary prices every line. Lines that can no longer be bought are listed as
// unavailable and left out of the subtotal.
func (s *CartService) Summary(ctx context.Context, userID primitive.ObjectID) (*model.CartSummary, error) {
	cart, err := s.carts.GetCart(ctx, userID)
	if err != nil {
		return nil, err
	}
	summary := &model.CartSummary{Items: make([]model.CartItemView, 0, len(cart.Items))}
	subtotal := decimal.Zero
	for _, line := range cart.Items {
		items, lineTotal, err := s.pricing.PriceLines(ctx, []model.CartLine{line})
		if err != nil {
			if apperrors.KindOf(err) == apperrors.KindInternal {
				return nil, err
			}
			summary.Items = append(summary.Items, model.CartItemView{
				ProductID: line.ProductID,
				VariantID: line.VariantID,
				Quantity:  line.Quantity,
			})
			continue
		}
		it := items[0]
		summary.Items = append(summary.Items, model.CartItemView{
			ProductID:     it.ProductID,
			VariantID:     it.VariantID,
			Name:          it.Name,
			Color:         it.Color,
			Quantity:      it.Quantity,
			Price:         it.Price,
			OriginalPrice: it.OriginalPrice,
			LineTotal:     lineTotal,
			Available:     true,
		})
		subtotal = subtotal.Add(decimal.NewFromFloat(lineTotal))
	}
	summary.Subtotal = subtotal.InexactFloat64()
	return summary, nil
}

// SetItem sets the quantity of a variant in the cart; zero removes it
func (s *CartService) SetItem(ctx context.Context, userID primitive.ObjectID, req *model.CartItemRequest) error {
	productID, err := primitive.ObjectIDFromHex(req.ProductID)
	if err != nil {
		return apperrors.ErrInvalidID
	}
	variantID, err := primitive.ObjectIDFromHex(req.VariantID)
	if err != nil {
		return apperrors.ErrInvalidID
	}
	line := model.CartLine{ProductID: productID, VariantID: variantID, Quantity: req.Quantity}

	if req.Quantity > 0 {
		if _, _, err := s.pricing.PriceLines(ctx, []model.CartLine{line}); err != nil {
			return err
		}
	}
	if err := s.carts.SetCartItem(ctx, userID, line); err != nil {
		return err
	}
	s.log.Infof("Use Case: Cart of user %s set variant %s to quantity %d", userID.Hex(), variantID.Hex(), req.Quantity)
	return nil
}

// WalletService exposes the wallet ledger of a user
type WalletService struct {
	users repository.UserRepository
}

func NewWalletService(users repository.UserRepository) *WalletService {
	return &WalletService{users: users}
}

// GetWallet returns the balance with the newest transactions first
func (s *WalletService) GetWallet(ctx context.Context, userID primitive.ObjectID) (*model.Wallet, error) {
	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	wallet := user.Wallet
	txns := make([]model.WalletTransaction, len(wallet.Transactions))
	for i, t := range wallet.Transactions {
		txns[len(txns)-1-i] = t
	}
	wallet.Transactions = txns
	return &wallet, nil
}

func newWalletTransaction(amount float64, description, orderCode string, at time.Time) model.WalletTransaction {
	return model.WalletTransaction{
		ID:          newTransactionID(),
		Amount:      amount,
		Description: description,
		OrderCode:   orderCode,
		CreatedAt:   at,
	}
}
