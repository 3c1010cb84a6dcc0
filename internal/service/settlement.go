package service

import (
	"context"
	"fmt"
	"time"

	"chronora/internal/model"
	"chronora/internal/repository"
	apperrors "chronora/pkg/errors"
	"chronora/pkg/payment"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// SettlementService computes and pays out refunds for items leaving an order
type SettlementService struct {
	users   repository.UserRepository
	gateway payment.Gateway
	log     *logrus.Logger
	now     func() time.Time
}

// NewSettlementService accepts a nil gateway; gateway refunds then go to the wallet
func NewSettlementService(users repository.UserRepository, gateway payment.Gateway, logger *logrus.Logger) *SettlementService {
	return &SettlementService{users: users, gateway: gateway, log: logger, now: time.Now}
}

// ComputeRefund spreads the order's coupon discount over the items in
// proportion to their pre-discount subtotals and returns what index is worth
// after its share, floored at zero and rounded to two decimals.
func ComputeRefund(order *model.Order, index int) (float64, error) {
	if index < 0 || index >= len(order.Items) {
		return 0, apperrors.ErrItemNotFound
	}
	item := order.Items[index]
	itemSubtotal := decimal.NewFromFloat(item.Price).Mul(decimal.NewFromInt(int64(item.Quantity)))

	itemsTotal := decimal.Zero
	for _, it := range order.Items {
		itemsTotal = itemsTotal.Add(decimal.NewFromFloat(it.Price).Mul(decimal.NewFromInt(int64(it.Quantity))))
	}

	share := decimal.Zero
	if itemsTotal.IsPositive() && order.Discount > 0 {
		share = itemSubtotal.Div(itemsTotal).Mul(decimal.NewFromFloat(order.Discount))
	}
	refund := itemSubtotal.Sub(share)
	if refund.IsNegative() {
		return 0, nil
	}
	return refund.Round(2).InexactFloat64(), nil
}

// Plan decides how the item at index is refunded and records it on the item.
// Nothing is paid out yet. Money is only returned when it was collected:
// unpaid COD and unverified gateway orders refund nothing.
func (s *SettlementService) Plan(order *model.Order, index int) (model.RefundResult, error) {
	amount, err := ComputeRefund(order, index)
	if err != nil {
		return model.RefundResult{}, err
	}
	method := model.RefundWallet
	switch {
	case !order.PaymentStatus.Captured():
		method, amount = model.RefundNone, 0
	case order.PaymentMethod == model.PaymentRazorpay && order.PaymentID != "":
		method = model.RefundRazorpay
	}
	if amount == 0 {
		method = model.RefundNone
	}

	refund := &model.ItemRefund{
		Amount:     amount,
		Method:     method,
		RefundedAt: s.now(),
	}
	// wallet credits reuse this id as their ledger id
	if method == model.RefundWallet {
		refund.RefundID = newTransactionID()
	}
	order.Items[index].Refund = refund
	if amount > 0 {
		order.RefundedAmount = decimal.NewFromFloat(order.RefundedAmount).Add(decimal.NewFromFloat(amount)).Round(2).InexactFloat64()
		order.PaymentStatus = refundedPaymentStatus(order)
	}
	return model.RefundResult{ItemIndex: index, Amount: amount, Method: method}, nil
}

func refundedPaymentStatus(order *model.Order) model.PaymentStatus {
	for i := range order.Items {
		if order.Items[i].Active() {
			return model.PaymentPartiallyRefunded
		}
	}
	return model.PaymentRefunded
}

// CreditWallet pays a planned wallet refund into the user's wallet
func (s *SettlementService) CreditWallet(ctx context.Context, order *model.Order, index int) error {
	refund := order.Items[index].Refund
	if refund == nil || refund.Amount <= 0 {
		return nil
	}
	txn := newWalletTransaction(refund.Amount, refundDescription(order, index), order.Code, s.now())
	if refund.RefundID != "" {
		txn.ID = refund.RefundID
	}
	if err := s.users.CreditWallet(ctx, order.UserID, txn); err != nil {
		return err
	}
	refund.RefundID = txn.ID
	s.log.Infof("Use Case: Credited %.2f to wallet of user %s for order %s item %d", refund.Amount, order.UserID.Hex(), order.Code, index)
	return nil
}

// ApplyRefund pays out the planned refund of item index. Gateway refunds that
// fail fall back to a wallet credit so the money is never dropped.
func (s *SettlementService) ApplyRefund(ctx context.Context, order *model.Order, index int) (model.RefundResult, error) {
	if index < 0 || index >= len(order.Items) {
		return model.RefundResult{}, apperrors.ErrItemNotFound
	}
	if order.Items[index].Refund == nil {
		if _, err := s.Plan(order, index); err != nil {
			return model.RefundResult{}, err
		}
	}
	refund := order.Items[index].Refund

	switch refund.Method {
	case model.RefundRazorpay:
		refundID, err := s.gatewayRefund(ctx, order.PaymentID, refund.Amount)
		if err == nil {
			refund.RefundID = refundID
			s.log.Infof("Use Case: Gateway refund %s of %.2f issued for order %s item %d", refundID, refund.Amount, order.Code, index)
			break
		}
		s.log.Warnf("Use Case: Gateway refund for order %s item %d failed: %v. Falling back to wallet credit.", order.Code, index, err)
		refund.Method = model.RefundWallet
		if err := s.CreditWallet(ctx, order, index); err != nil {
			s.log.Errorf("CRITICAL: refund of %.2f for order %s item %d could not be delivered: %v", refund.Amount, order.Code, index, err)
			return model.RefundResult{}, err
		}
	case model.RefundWallet:
		if err := s.CreditWallet(ctx, order, index); err != nil {
			return model.RefundResult{}, err
		}
	}

	return model.RefundResult{ItemIndex: index, Amount: refund.Amount, Method: refund.Method, RefundID: refund.RefundID}, nil
}

func (s *SettlementService) gatewayRefund(ctx context.Context, paymentID string, amount float64) (string, error) {
	if s.gateway == nil {
		return "", apperrors.ErrGatewayUnavailable
	}
	return s.gateway.Refund(ctx, paymentID, amount)
}

func refundDescription(order *model.Order, index int) string {
	return fmt.Sprintf("Refund for order %s, item %d (%s)", order.Code, index+1, order.Items[index].Name)
}
