package service

import (
	"context"
	"strings"
	"time"

	"chronora/internal/model"
	"chronora/internal/repository"
	apperrors "chronora/pkg/errors"
	"chronora/pkg/payment"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// OrderOptions are the checkout rules read from configuration
type OrderOptions struct {
	Currency              string
	CODLimit              float64
	DeliveryCharge        float64
	FreeDeliveryThreshold float64
}

// OrderDeps groups the collaborators of OrderService
type OrderDeps struct {
	Orders     repository.OrderRepository
	Users      repository.UserRepository
	Carts      repository.CartRepository
	Coupons    repository.CouponRepository
	Pricing    *PricingService
	Stock      *StockLedger
	Settlement *SettlementService
	Gateway    payment.Gateway
	UnitOfWork UnitOfWork
}

// OrderService owns order placement and every later status transition
type OrderService struct {
	orders     repository.OrderRepository
	users      repository.UserRepository
	carts      repository.CartRepository
	coupons    repository.CouponRepository
	pricing    *PricingService
	stock      *StockLedger
	settlement *SettlementService
	gateway    payment.Gateway
	uow        UnitOfWork
	opts       OrderOptions
	log        *logrus.Logger
	now        func() time.Time
}

func NewOrderService(deps OrderDeps, opts OrderOptions, logger *logrus.Logger) *OrderService {
	if opts.Currency == "" {
		opts.Currency = "INR"
	}
	return &OrderService{
		orders:     deps.Orders,
		users:      deps.Users,
		carts:      deps.Carts,
		coupons:    deps.Coupons,
		pricing:    deps.Pricing,
		stock:      deps.Stock,
		settlement: deps.Settlement,
		gateway:    deps.Gateway,
		uow:        deps.UnitOfWork,
		opts:       opts,
		log:        logger,
		now:        time.Now,
	}
}

// PlaceOrderInput is a checkout of a cart snapshot
type PlaceOrderInput struct {
	Lines         []model.CartLine
	Address       model.Address
	PaymentMethod string
	CouponCode    string
}

func userActor(userID primitive.ObjectID) string {
	return "user:" + userID.Hex()
}

func validateAddress(a model.Address) error {
	required := [][2]string{
		{"name", a.Name}, {"phone", a.Phone}, {"line1", a.Line1},
		{"city", a.City}, {"state", a.State}, {"pincode", a.Pincode},
	}
	for _, f := range required {
		if strings.TrimSpace(f[1]) == "" {
			return apperrors.Validationf("address %s is required", f[0])
		}
	}
	return nil
}

// totals adds the delivery charge, which is waived once the discounted
// subtotal reaches the free delivery threshold
func (s *OrderService) totals(subtotal, discount float64) (delivery, total float64) {
	payable := decimal.NewFromFloat(subtotal).Sub(decimal.NewFromFloat(discount))
	if payable.LessThan(decimal.NewFromFloat(s.opts.FreeDeliveryThreshold)) {
		delivery = s.opts.DeliveryCharge
	}
	total = payable.Add(decimal.NewFromFloat(delivery)).Round(2).InexactFloat64()
	return delivery, total
}

// PlaceOrder prices the lines, applies the coupon and then, as one unit of
// work, debits the wallet, stores the order, reserves stock, records coupon
// usage and clears the cart. Without a transactional store every completed
// step is compensated in reverse order when a later one fails.
func (s *OrderService) PlaceOrder(ctx context.Context, userID primitive.ObjectID, in PlaceOrderInput) (*model.PlaceOrderResponse, error) {
	s.log.Infof("Use Case: PlaceOrder started for user %s with %d line(s)", userID.Hex(), len(in.Lines))

	if len(in.Lines) == 0 {
		return nil, apperrors.ErrCartEmpty
	}
	method, ok := model.ParsePaymentMethod(in.PaymentMethod)
	if !ok {
		return nil, apperrors.ErrInvalidPaymentMethod
	}
	if err := validateAddress(in.Address); err != nil {
		return nil, err
	}

	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.IsBlocked {
		return nil, apperrors.ErrUserBlocked
	}

	items, subtotal, err := s.pricing.PriceLines(ctx, in.Lines)
	if err != nil {
		s.log.Warnf("Use Case: Pricing failed for user %s: %v", userID.Hex(), err)
		return nil, err
	}

	now := s.now()
	var coupon *model.Coupon
	var discount float64
	if strings.TrimSpace(in.CouponCode) != "" {
		coupon, err = s.coupons.GetCouponByCode(ctx, NormalizeCode(in.CouponCode))
		if err != nil {
			return nil, err
		}
		discount, err = coupon.Evaluate(subtotal, userID, now)
		if err != nil {
			s.log.Warnf("Use Case: Coupon %s rejected at checkout for user %s: %v", coupon.Code, userID.Hex(), err)
			return nil, err
		}
	}

	delivery, total := s.totals(subtotal, discount)
	if method == model.PaymentCOD && total > s.opts.CODLimit {
		s.log.Warnf("Use Case: COD rejected for user %s, total %.2f above limit %.2f", userID.Hex(), total, s.opts.CODLimit)
		return nil, apperrors.ErrCODLimitExceeded
	}
	s.log.Infof("Use Case: Priced order for user %s: subtotal %.2f, discount %.2f, delivery %.2f, total %.2f",
		userID.Hex(), subtotal, discount, delivery, total)

	order := &model.Order{
		Code:           newOrderCode(),
		UserID:         userID,
		Items:          items,
		PaymentMethod:  method,
		PaymentStatus:  model.PaymentPending,
		Status:         model.StatusConfirmed,
		Address:        in.Address,
		Subtotal:       subtotal,
		DeliveryCharge: delivery,
		Discount:       discount,
		TotalAmount:    total,
		StatusHistory:  []model.StatusChange{},
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if coupon != nil {
		id := coupon.ID
		order.CouponCode = coupon.Code
		order.CouponID = &id
	}
	switch method {
	case model.PaymentWallet:
		order.PaymentStatus = model.PaymentPaid
	case model.PaymentRazorpay:
		order.Status = model.StatusPending
	}
	for i := range order.Items {
		order.Items[i].Status = order.Status
		if order.Status == model.StatusConfirmed {
			order.Items[i].Timeline.Mark(model.StatusConfirmed, now)
		}
	}
	order.Record("", order.Status, nil, "Order placed", userActor(userID), now)

	// The gateway order is created before any write so a gateway outage leaves nothing to undo
	if method == model.PaymentRazorpay {
		if s.gateway == nil {
			return nil, apperrors.ErrGatewayUnavailable
		}
		gatewayOrderID, err := s.gateway.CreateOrder(ctx, total, s.opts.Currency, order.Code)
		if err != nil {
			s.log.Errorf("Use Case: Gateway order creation failed for %s: %v", order.Code, err)
			return nil, apperrors.ErrGatewayUnavailable
		}
		order.GatewayOrderID = gatewayOrderID
	}

	var undo compensations
	err = s.uow.WithTransaction(ctx, func(ctx context.Context) error {
		undo = nil

		if method == model.PaymentWallet {
			txn := newWalletTransaction(total, "Payment for order "+order.Code, order.Code, now)
			if err := s.users.DebitWallet(ctx, userID, txn); err != nil {
				return err
			}
			undo.add("refund wallet debit", func(ctx context.Context) error {
				reversal := newWalletTransaction(total, "Reversal of payment for order "+order.Code, order.Code, s.now())
				return s.users.CreditWallet(ctx, userID, reversal)
			})
		}

		if err := s.orders.CreateOrder(ctx, order); err != nil {
			return err
		}
		orderID := order.ID
		undo.add("delete order", func(ctx context.Context) error {
			return s.orders.DeleteOrder(ctx, orderID)
		})

		for _, it := range order.Items {
			if err := s.stock.Reserve(ctx, it.VariantID, it.Quantity); err != nil {
				return err
			}
			undo.add("release stock", func(ctx context.Context) error {
				return s.stock.Release(ctx, it.VariantID, it.Quantity)
			})
		}

		if coupon != nil {
			if err := s.coupons.RedeemCoupon(ctx, coupon, userID); err != nil {
				return err
			}
			undo.add("unredeem coupon", func(ctx context.Context) error {
				return s.coupons.UnredeemCoupon(ctx, coupon.ID, userID)
			})
		}

		return s.carts.ClearCart(ctx, userID)
	})
	if err != nil {
		s.log.Warnf("Use Case: PlaceOrder for user %s failed: %v", userID.Hex(), err)
		if !s.uow.Transactional() {
			undo.run(ctx, s.log)
		}
		return nil, err
	}

	s.log.Infof("Use Case: Order %s placed for user %s (%s, %s)", order.Code, userID.Hex(), order.Status, order.PaymentStatus)
	resp := &model.PlaceOrderResponse{
		OrderID:        order.ID.Hex(),
		OrderCode:      order.Code,
		TotalAmount:    order.TotalAmount,
		Status:         string(order.Status),
		PaymentStatus:  string(order.PaymentStatus),
		GatewayOrderID: order.GatewayOrderID,
		Currency:       s.opts.Currency,
	}
	if method == model.PaymentRazorpay {
		resp.GatewayKeyID = s.gateway.KeyID()
	}
	return resp, nil
}

// VerifyPayment checks the gateway signature. The order is only confirmed
// after a valid signature; a bad one marks the payment Failed.
func (s *OrderService) VerifyPayment(ctx context.Context, userID, orderID primitive.ObjectID, req *model.VerifyPaymentRequest) (*model.Order, error) {
	order, err := s.getOwned(ctx, userID, orderID)
	if err != nil {
		return nil, err
	}
	if order.PaymentMethod != model.PaymentRazorpay || order.Status != model.StatusPending || order.PaymentStatus.Captured() {
		return nil, apperrors.ErrPaymentNotPending
	}

	verified := s.gateway != nil &&
		req.GatewayOrderID == order.GatewayOrderID &&
		s.gateway.VerifySignature(req.GatewayOrderID, req.PaymentID, req.Signature)
	if !verified {
		order.PaymentStatus = model.PaymentFailed
		if err := s.orders.UpdateOrder(ctx, order); err != nil {
			return nil, err
		}
		s.log.Warnf("Use Case: Payment verification failed for order %s", order.Code)
		return nil, apperrors.ErrPaymentVerification
	}

	now := s.now()
	prev := order.Status
	order.PaymentID = req.PaymentID
	order.PaymentStatus = model.PaymentPaid
	for i := range order.Items {
		if order.Items[i].Status == model.StatusPending {
			order.Items[i].Status = model.StatusConfirmed
			order.Items[i].Timeline.Mark(model.StatusConfirmed, now)
		}
	}
	order.Status = deriveStatus(order.Items)
	order.Record(prev, order.Status, nil, "Payment verified", userActor(userID), now)
	if err := s.orders.UpdateOrder(ctx, order); err != nil {
		return nil, err
	}
	s.log.Infof("Use Case: Payment %s verified for order %s", req.PaymentID, order.Code)
	return order, nil
}

// UpdateOrderStatus moves the whole order. Forward targets must lie strictly
// after the least advanced active item and wait for pending requests.
// Cancelled stops every item that has not been delivered and Returned takes
// back every active item; both apply from any open status, pending requests
// included.
func (s *OrderService) UpdateOrderStatus(ctx context.Context, orderID primitive.ObjectID, rawTarget, reason, actor string) (*model.TransitionResult, error) {
	target, ok := model.ParseStatus(rawTarget)
	if !ok {
		return nil, apperrors.ErrInvalidStatus
	}
	order, snapshot, err := s.load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status.IsTerminal() {
		return nil, apperrors.ErrOrderClosed
	}

	now := s.now()
	prev := order.Status
	var released []int

	switch {
	case target == model.StatusCancelled:
		for i := range order.Items {
			if cancellableByAdmin(&order.Items[i]) {
				cancel(&order.Items[i], reason, now)
				released = append(released, i)
			}
		}
		if len(released) == 0 {
			return nil, apperrors.ErrItemNotCancellable
		}
	case target == model.StatusReturned:
		for i := range order.Items {
			it := &order.Items[i]
			if it.Active() && it.Timeline.ReturnedAt == nil {
				it.Status = model.StatusReturned
				it.Timeline.Mark(model.StatusReturned, now)
				released = append(released, i)
			}
		}
		if len(released) == 0 {
			return nil, apperrors.ErrInvalidTransition
		}
	case model.ForwardIndex(target) >= 0:
		if err := guardOpen(order); err != nil {
			return nil, err
		}
		if order.PaymentMethod == model.PaymentRazorpay && !order.PaymentStatus.Captured() {
			return nil, apperrors.ErrPaymentIncomplete
		}
		progress := orderProgress(order.Items)
		if progress < 0 {
			return nil, apperrors.ErrOrderClosed
		}
		targetIdx := model.ForwardIndex(target)
		if targetIdx <= progress {
			s.log.Warnf("Use Case: Rejected backward or repeated transition of order %s to %s", order.Code, target)
			return nil, apperrors.ErrInvalidTransition
		}
		for i := range order.Items {
			it := &order.Items[i]
			if fi := model.ForwardIndex(it.Status); fi >= 0 && fi < targetIdx {
				it.Status = target
				it.Timeline.Mark(target, now)
			}
		}
	default:
		return nil, apperrors.ErrInvalidTransition
	}

	markCODCollected(order)
	order.Status = deriveStatus(order.Items)
	order.Record(prev, order.Status, nil, reason, actor, now)
	s.log.Infof("Use Case: Order %s moved %s -> %s by %s", order.Code, prev, order.Status, actor)
	return s.commit(ctx, order, snapshot, released)
}

// UpdateItemStatus moves a single item forward, or cancels it if it has not
// been delivered yet
func (s *OrderService) UpdateItemStatus(ctx context.Context, orderID primitive.ObjectID, index int, rawTarget, reason, actor string) (*model.TransitionResult, error) {
	target, ok := model.ParseStatus(rawTarget)
	if !ok {
		return nil, apperrors.ErrInvalidStatus
	}
	order, snapshot, err := s.load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := guardOpen(order); err != nil {
		return nil, err
	}
	it, err := itemAt(order, index)
	if err != nil {
		return nil, err
	}

	now := s.now()
	prev := order.Status
	var released []int

	switch {
	case target == model.StatusCancelled:
		if it.Timeline.CancelledAt != nil {
			return nil, apperrors.ErrAlreadyCancelled
		}
		if !cancellableByAdmin(it) {
			return nil, apperrors.ErrItemNotCancellable
		}
		cancel(it, reason, now)
		released = append(released, index)
	case model.ForwardIndex(target) >= 0:
		if order.PaymentMethod == model.PaymentRazorpay && !order.PaymentStatus.Captured() {
			return nil, apperrors.ErrPaymentIncomplete
		}
		current := model.ForwardIndex(it.Status)
		if current < 0 || model.ForwardIndex(target) <= current {
			return nil, apperrors.ErrInvalidTransition
		}
		it.Status = target
		it.Timeline.Mark(target, now)
	default:
		return nil, apperrors.ErrInvalidTransition
	}

	markCODCollected(order)
	order.Status = deriveStatus(order.Items)
	order.Record(prev, order.Status, &index, reason, actor, now)
	s.log.Infof("Use Case: Order %s item %d moved to %s by %s", order.Code, index, target, actor)
	return s.commit(ctx, order, snapshot, released)
}

// CancelItem lets the owner cancel an item before it ships. Stock is released
// and the item's share of the payment refunded.
func (s *OrderService) CancelItem(ctx context.Context, userID, orderID primitive.ObjectID, index int, reason string) (*model.TransitionResult, error) {
	order, snapshot, err := s.loadOwned(ctx, userID, orderID)
	if err != nil {
		return nil, err
	}
	if err := guardOpen(order); err != nil {
		return nil, err
	}
	it, err := itemAt(order, index)
	if err != nil {
		return nil, err
	}
	if it.Timeline.CancelledAt != nil || it.Status == model.StatusCancelled {
		return nil, apperrors.ErrAlreadyCancelled
	}
	switch it.Status {
	case model.StatusPending, model.StatusConfirmed, model.StatusProcessing:
	default:
		return nil, apperrors.ErrItemNotCancellable
	}
	if strings.TrimSpace(reason) == "" {
		reason = "Cancelled by customer"
	}

	now := s.now()
	prev := order.Status
	cancel(it, reason, now)
	order.Status = deriveStatus(order.Items)
	order.Record(prev, order.Status, &index, reason, userActor(userID), now)
	s.log.Infof("Use Case: User %s cancelled item %d of order %s", userID.Hex(), index, order.Code)
	return s.commit(ctx, order, snapshot, []int{index})
}

// RequestCancel asks an admin to cancel every undelivered item
func (s *OrderService) RequestCancel(ctx context.Context, userID, orderID primitive.ObjectID, reason string) (*model.TransitionResult, error) {
	order, snapshot, err := s.loadOwned(ctx, userID, orderID)
	if err != nil {
		return nil, err
	}
	if err := guardOpen(order); err != nil {
		return nil, err
	}
	eligible := false
	for i := range order.Items {
		if cancellableByAdmin(&order.Items[i]) {
			eligible = true
			break
		}
	}
	if !eligible {
		return nil, apperrors.ErrItemNotCancellable
	}
	if strings.TrimSpace(reason) == "" {
		return nil, apperrors.Validation("cancellation reason is required")
	}

	now := s.now()
	prev := order.Status
	order.Status = model.StatusCancelRequested
	order.Record(prev, order.Status, nil, reason, userActor(userID), now)
	s.log.Infof("Use Case: Cancellation requested for order %s", order.Code)
	return s.commit(ctx, order, snapshot, nil)
}

// ApproveCancel settles a pending cancellation request
func (s *OrderService) ApproveCancel(ctx context.Context, orderID primitive.ObjectID, reason, actor string) (*model.TransitionResult, error) {
	order, snapshot, err := s.load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status != model.StatusCancelRequested {
		return nil, apperrors.ErrNoPendingRequest
	}
	request, _ := order.LastEntryInto(model.StatusCancelRequested)
	if strings.TrimSpace(reason) == "" {
		reason = request.Reason
	}

	now := s.now()
	var released []int
	for i := range order.Items {
		if cancellableByAdmin(&order.Items[i]) {
			cancel(&order.Items[i], reason, now)
			released = append(released, i)
		}
	}
	if len(released) == 0 {
		return nil, apperrors.ErrItemNotCancellable
	}
	order.Status = deriveStatus(order.Items)
	order.Record(model.StatusCancelRequested, order.Status, nil, reason, actor, now)
	s.log.Infof("Use Case: Cancellation of order %s approved by %s", order.Code, actor)
	return s.commit(ctx, order, snapshot, released)
}

// RejectCancel restores the status the order had before the request
func (s *OrderService) RejectCancel(ctx context.Context, orderID primitive.ObjectID, reason, actor string) (*model.TransitionResult, error) {
	order, snapshot, err := s.load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status != model.StatusCancelRequested {
		return nil, apperrors.ErrNoPendingRequest
	}
	restored := deriveStatus(order.Items)
	if entry, ok := order.LastEntryInto(model.StatusCancelRequested); ok && entry.PreviousStatus != "" {
		restored = entry.PreviousStatus
	}

	now := s.now()
	order.Status = restored
	order.Record(model.StatusCancelRequested, restored, nil, reason, actor, now)
	s.log.Infof("Use Case: Cancellation of order %s rejected by %s, back to %s", order.Code, actor, restored)
	return s.commit(ctx, order, snapshot, nil)
}

// RequestReturn opens a return for a delivered item. Each item can be
// requested once; a rejected return is final.
func (s *OrderService) RequestReturn(ctx context.Context, userID, orderID primitive.ObjectID, index int, reason string) (*model.TransitionResult, error) {
	order, snapshot, err := s.loadOwned(ctx, userID, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status.IsTerminal() {
		return nil, apperrors.ErrOrderClosed
	}
	if order.Status == model.StatusCancelRequested {
		return nil, apperrors.ErrPendingRequest
	}
	it, err := itemAt(order, index)
	if err != nil {
		return nil, err
	}
	if it.Timeline.ReturnedAt != nil {
		return nil, apperrors.ErrAlreadyReturned
	}
	if it.Timeline.ReturnRequestedAt != nil {
		return nil, apperrors.ErrReturnAlreadyHandled
	}
	if it.Status != model.StatusDelivered {
		return nil, apperrors.ErrItemNotReturnable
	}
	if strings.TrimSpace(reason) == "" {
		return nil, apperrors.Validation("return reason is required")
	}

	now := s.now()
	prev := order.Status
	it.Status = model.StatusReturnRequested
	it.ReturnReason = reason
	it.Timeline.Mark(model.StatusReturnRequested, now)
	order.Status = deriveStatus(order.Items)
	order.Record(prev, order.Status, &index, reason, userActor(userID), now)
	s.log.Infof("Use Case: Return requested for order %s item %d", order.Code, index)
	return s.commit(ctx, order, snapshot, nil)
}

// ApproveReturn accepts a return request; the item is settled once it is
// received back through MarkReturned
func (s *OrderService) ApproveReturn(ctx context.Context, orderID primitive.ObjectID, index int, reason, actor string) (*model.TransitionResult, error) {
	order, snapshot, err := s.load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	it, err := itemAt(order, index)
	if err != nil {
		return nil, err
	}
	if it.Status != model.StatusReturnRequested {
		return nil, apperrors.ErrNoPendingRequest
	}

	now := s.now()
	prev := order.Status
	it.Status = model.StatusReturnApproved
	it.Timeline.Mark(model.StatusReturnApproved, now)
	order.Status = deriveStatus(order.Items)
	order.Record(prev, order.Status, &index, reason, actor, now)
	s.log.Infof("Use Case: Return of order %s item %d approved by %s", order.Code, index, actor)
	return s.commit(ctx, order, snapshot, nil)
}

// RejectReturn puts the item back to Delivered. The order returns to the
// status it had before the return request, or ReturnRejected if unknown.
func (s *OrderService) RejectReturn(ctx context.Context, orderID primitive.ObjectID, index int, reason, actor string) (*model.TransitionResult, error) {
	order, snapshot, err := s.load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	it, err := itemAt(order, index)
	if err != nil {
		return nil, err
	}
	if it.Status != model.StatusReturnRequested {
		return nil, apperrors.ErrNoPendingRequest
	}

	now := s.now()
	prev := order.Status
	it.Status = model.StatusDelivered
	it.ReturnRejectReason = reason
	it.Timeline.Mark(model.StatusReturnRejected, now)

	switch derived := deriveStatus(order.Items); {
	case derived == model.StatusReturnRequested || derived == model.StatusReturnApproved:
		order.Status = derived
	default:
		order.Status = model.StatusReturnRejected
		if st, ok := statusBefore(order, model.StatusReturnRequested); ok {
			order.Status = st
		}
	}
	order.Record(prev, order.Status, &index, reason, actor, now)
	s.log.Infof("Use Case: Return of order %s item %d rejected by %s", order.Code, index, actor)
	return s.commit(ctx, order, snapshot, nil)
}

// MarkReturned records the arrival of an approved return, releases its stock
// and refunds it
func (s *OrderService) MarkReturned(ctx context.Context, orderID primitive.ObjectID, index int, reason, actor string) (*model.TransitionResult, error) {
	order, snapshot, err := s.load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	it, err := itemAt(order, index)
	if err != nil {
		return nil, err
	}
	if it.Timeline.ReturnedAt != nil || it.Status == model.StatusReturned {
		return nil, apperrors.ErrAlreadyReturned
	}
	if it.Status != model.StatusReturnApproved {
		return nil, apperrors.ErrInvalidTransition
	}

	now := s.now()
	prev := order.Status
	it.Status = model.StatusReturned
	it.Timeline.Mark(model.StatusReturned, now)
	order.Status = deriveStatus(order.Items)
	order.Record(prev, order.Status, &index, reason, actor, now)
	s.log.Infof("Use Case: Order %s item %d received back", order.Code, index)
	return s.commit(ctx, order, snapshot, []int{index})
}

// GetOrder returns an order of userID
func (s *OrderService) GetOrder(ctx context.Context, userID, orderID primitive.ObjectID) (*model.Order, error) {
	return s.getOwned(ctx, userID, orderID)
}

// GetOrderAdmin returns any order
func (s *OrderService) GetOrderAdmin(ctx context.Context, orderID primitive.ObjectID) (*model.Order, error) {
	return s.orders.GetOrder(ctx, orderID)
}

func (s *OrderService) ListUserOrders(ctx context.Context, userID primitive.ObjectID) ([]*model.Order, error) {
	return s.orders.ListOrdersByUser(ctx, userID)
}

// ListOrders filters by status when rawStatus is not empty
func (s *OrderService) ListOrders(ctx context.Context, rawStatus string) ([]*model.Order, error) {
	var status model.OrderStatus
	if strings.TrimSpace(rawStatus) != "" {
		st, ok := model.ParseStatus(rawStatus)
		if !ok {
			return nil, apperrors.ErrInvalidStatus
		}
		status = st
	}
	return s.orders.ListOrders(ctx, status)
}

func (s *OrderService) getOwned(ctx context.Context, userID, orderID primitive.ObjectID) (*model.Order, error) {
	order, err := s.orders.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.UserID != userID {
		return nil, apperrors.ErrOrderNotFound
	}
	return order, nil
}

func (s *OrderService) load(ctx context.Context, orderID primitive.ObjectID) (*model.Order, *model.Order, error) {
	order, err := s.orders.GetOrder(ctx, orderID)
	if err != nil {
		return nil, nil, err
	}
	return order, order.Clone(), nil
}

func (s *OrderService) loadOwned(ctx context.Context, userID, orderID primitive.ObjectID) (*model.Order, *model.Order, error) {
	order, err := s.getOwned(ctx, userID, orderID)
	if err != nil {
		return nil, nil, err
	}
	return order, order.Clone(), nil
}

// commit persists a mutated order. Refunds are planned first; the order save,
// stock release and wallet credits form one unit of work, and gateway refunds
// run after it has committed so a retried transaction cannot refund twice.
func (s *OrderService) commit(ctx context.Context, order, snapshot *model.Order, released []int) (*model.TransitionResult, error) {
	for _, idx := range released {
		if _, err := s.settlement.Plan(order, idx); err != nil {
			return nil, err
		}
	}

	version := order.Version
	var undo compensations
	err := s.uow.WithTransaction(ctx, func(ctx context.Context) error {
		undo = nil
		order.Version = version

		if err := s.orders.UpdateOrder(ctx, order); err != nil {
			return err
		}
		undo.add("restore order", func(ctx context.Context) error {
			restore := snapshot.Clone()
			restore.Version = order.Version
			return s.orders.UpdateOrder(ctx, restore)
		})

		for _, idx := range released {
			it := order.Items[idx]
			if err := s.stock.Release(ctx, it.VariantID, it.Quantity); err != nil {
				return err
			}
			undo.add("re-reserve stock", func(ctx context.Context) error {
				return s.stock.Reserve(ctx, it.VariantID, it.Quantity)
			})
		}

		for _, idx := range released {
			refund := order.Items[idx].Refund
			if refund.Method != model.RefundWallet || refund.Amount <= 0 {
				continue
			}
			if err := s.settlement.CreditWallet(ctx, order, idx); err != nil {
				return err
			}
			amount, desc := refund.Amount, refundDescription(order, idx)
			undo.add("reverse wallet credit", func(ctx context.Context) error {
				txn := newWalletTransaction(amount, "Reversal: "+desc, order.Code, s.now())
				return s.users.DebitWallet(ctx, order.UserID, txn)
			})
		}
		return nil
	})
	if err != nil {
		if apperrors.Is(err, apperrors.ErrConcurrentUpdate) {
			s.log.Warnf("Use Case: Order %s changed concurrently, update rejected", order.Code)
		} else {
			s.log.Errorf("Use Case: Saving order %s failed: %v", order.Code, err)
		}
		if !s.uow.Transactional() {
			undo.run(ctx, s.log)
		}
		return nil, err
	}

	detached := context.WithoutCancel(ctx)
	for _, idx := range released {
		if order.Items[idx].Refund.Method != model.RefundRazorpay {
			continue
		}
		if _, err := s.settlement.ApplyRefund(detached, order, idx); err != nil {
			continue
		}
		if err := s.orders.UpdateItemRefund(detached, order.ID, idx, *order.Items[idx].Refund); err != nil {
			s.log.Errorf("CRITICAL: refund record of order %s item %d not saved: %v", order.Code, idx, err)
			continue
		}
		order.Version++
	}

	result := &model.TransitionResult{OrderID: order.ID.Hex(), Status: order.Status}
	total := decimal.Zero
	for _, idx := range released {
		r := order.Items[idx].Refund
		result.Refunds = append(result.Refunds, model.RefundResult{ItemIndex: idx, Amount: r.Amount, Method: r.Method, RefundID: r.RefundID})
		total = total.Add(decimal.NewFromFloat(r.Amount))
	}
	result.RefundAmount = total.InexactFloat64()
	return result, nil
}

func guardOpen(order *model.Order) error {
	if order.Status.IsTerminal() {
		return apperrors.ErrOrderClosed
	}
	if order.Status == model.StatusCancelRequested || order.Status == model.StatusReturnRequested {
		return apperrors.ErrPendingRequest
	}
	return nil
}

func itemAt(order *model.Order, index int) (*model.OrderItem, error) {
	if index < 0 || index >= len(order.Items) {
		return nil, apperrors.ErrItemNotFound
	}
	return &order.Items[index], nil
}

// cancellableByAdmin covers every fulfilment state before delivery
func cancellableByAdmin(it *model.OrderItem) bool {
	fi := model.ForwardIndex(it.Status)
	return it.Active() && it.Timeline.CancelledAt == nil && fi >= 0 && fi < model.ForwardIndex(model.StatusDelivered)
}

func cancel(it *model.OrderItem, reason string, at time.Time) {
	it.Status = model.StatusCancelled
	it.CancelReason = reason
	it.Timeline.Mark(model.StatusCancelled, at)
}

// orderProgress is the forward index of the least advanced active item.
// Items in the return flow count as delivered; -1 means no active item.
func orderProgress(items []model.OrderItem) int {
	progress := -1
	delivered := model.ForwardIndex(model.StatusDelivered)
	for i := range items {
		if !items[i].Active() {
			continue
		}
		fi := model.ForwardIndex(items[i].Status)
		if fi < 0 {
			fi = delivered
		}
		if progress < 0 || fi < progress {
			progress = fi
		}
	}
	return progress
}

// markCODCollected flips unpaid COD orders to Paid once nothing active is
// still on its way
func markCODCollected(order *model.Order) {
	if order.PaymentMethod != model.PaymentCOD || order.PaymentStatus != model.PaymentPending {
		return
	}
	delivered := model.ForwardIndex(model.StatusDelivered)
	hasActive := false
	for i := range order.Items {
		it := &order.Items[i]
		if !it.Active() {
			continue
		}
		if fi := model.ForwardIndex(it.Status); fi >= 0 && fi < delivered {
			return
		}
		hasActive = true
	}
	if hasActive {
		order.PaymentStatus = model.PaymentPaid
	}
}

// deriveStatus aggregates the item statuses into the order status
func deriveStatus(items []model.OrderItem) model.OrderStatus {
	var cancelled, returned, delivered, returnRequested, returnApproved int
	minForward := -1
	for _, it := range items {
		switch it.Status {
		case model.StatusCancelled:
			cancelled++
		case model.StatusReturned:
			returned++
		case model.StatusReturnRequested:
			returnRequested++
		case model.StatusReturnApproved:
			returnApproved++
		case model.StatusDelivered:
			delivered++
		}
		if fi := model.ForwardIndex(it.Status); fi >= 0 && (minForward < 0 || fi < minForward) {
			minForward = fi
		}
	}

	n := len(items)
	switch {
	case returnRequested > 0:
		return model.StatusReturnRequested
	case returnApproved > 0:
		return model.StatusReturnApproved
	case n > 0 && returned == n:
		return model.StatusReturned
	case n > 0 && cancelled == n:
		return model.StatusCancelled
	case returned > 0:
		return model.StatusPartiallyReturned
	case cancelled > 0:
		return model.StatusPartiallyCancelled
	case delivered > 0 && delivered < n:
		return model.StatusPartiallyDelivered
	case minForward >= 0:
		return model.ForwardSequence[minForward]
	}
	return model.StatusPending
}

// statusBefore finds the status the order had when it last entered status
// from a different one
func statusBefore(order *model.Order, status model.OrderStatus) (model.OrderStatus, bool) {
	for i := len(order.StatusHistory) - 1; i >= 0; i-- {
		h := order.StatusHistory[i]
		if h.Status == status && h.PreviousStatus != status && h.PreviousStatus != "" {
			return h.PreviousStatus, true
		}
	}
	return "", false
}

