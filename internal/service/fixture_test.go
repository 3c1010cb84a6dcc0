package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"chronora/internal/model"
	"chronora/internal/repository"
	"chronora/internal/repository/memory"
	"chronora/pkg/database"
	"chronora/pkg/logger"
	"chronora/pkg/payment"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const testSecret = "test_secret"

// fakeGateway signs with testSecret and records refunds
type fakeGateway struct {
	mu        sync.Mutex
	seq       int
	createErr error
	refundErr error
	refunds   []float64
}

func (g *fakeGateway) CreateOrder(_ context.Context, amount float64, currency, receipt string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.createErr != nil {
		return "", g.createErr
	}
	g.seq++
	return fmt.Sprintf("order_test_%d", g.seq), nil
}

func (g *fakeGateway) VerifySignature(gatewayOrderID, paymentID, signature string) bool {
	return payment.VerifySignature(testSecret, gatewayOrderID, paymentID, signature)
}

func (g *fakeGateway) Refund(_ context.Context, paymentID string, amount float64) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.refundErr != nil {
		return "", g.refundErr
	}
	g.refunds = append(g.refunds, amount)
	return fmt.Sprintf("rfnd_%d", len(g.refunds)), nil
}

func (g *fakeGateway) KeyID() string { return "rzp_test_key" }

type fixture struct {
	t        *testing.T
	ctx      context.Context
	store    *memory.Store
	gateway  *fakeGateway
	pricing  *PricingService
	orders   *OrderService
	coupons  *CouponService
	carts    *CartService
	category primitive.ObjectID
}

type fixtureOption func(*OrderDeps, *memory.Store)

// withFailingRedeem makes recording coupon usage fail with err
func withFailingRedeem(err error) fixtureOption {
	return func(d *OrderDeps, store *memory.Store) {
		d.Coupons = failingCoupons{CouponRepository: store, err: err}
	}
}

func newFixture(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()
	log := logger.Discard()
	store := memory.NewStore()
	gateway := &fakeGateway{}
	pricing := NewPricingService(store, store, log)

	deps := OrderDeps{
		Orders:     store,
		Users:      store,
		Carts:      store,
		Coupons:    store,
		Pricing:    pricing,
		Stock:      NewStockLedger(store, log),
		Settlement: NewSettlementService(store, gateway, log),
		Gateway:    gateway,
		UnitOfWork: database.NoTransaction{},
	}
	for _, opt := range opts {
		opt(&deps, store)
	}

	return &fixture{
		t:       t,
		ctx:     context.Background(),
		store:   store,
		gateway: gateway,
		pricing: pricing,
		orders: NewOrderService(deps, OrderOptions{
			Currency:              "INR",
			CODLimit:              1000,
			DeliveryCharge:        40,
			FreeDeliveryThreshold: 500,
		}, log),
		coupons:  NewCouponService(store, log),
		carts:    NewCartService(store, store, pricing, log),
		category: primitive.NewObjectID(),
	}
}

// product stores a product with one variant and returns both ids
func (f *fixture) product(name string, price float64, stock int) (primitive.ObjectID, primitive.ObjectID) {
	now := time.Now()
	productID := f.store.PutProduct(model.Product{
		Name:       name,
		Price:      price,
		CategoryID: f.category,
		CreatedAt:  now,
	})
	variantID := f.store.PutVariant(model.Variant{
		ProductID: productID,
		Color:     "black",
		Stock:     stock,
		CreatedAt: now,
	})
	return productID, variantID
}

func (f *fixture) user(balance float64) primitive.ObjectID {
	return f.store.PutUser(model.User{
		Name:   "Test User",
		Email:  primitive.NewObjectID().Hex() + "@example.com",
		Wallet: model.Wallet{Balance: balance},
	})
}

func (f *fixture) coupon(c model.Coupon) {
	now := time.Now()
	c.IsActive = true
	c.StartDate = now.Add(-time.Hour)
	c.ExpiryDate = now.Add(24 * time.Hour)
	c.CreatedAt = now
	require.NoError(f.t, f.store.CreateCoupon(f.ctx, &c))
}

func line(productID, variantID primitive.ObjectID, qty int) model.CartLine {
	return model.CartLine{ProductID: productID, VariantID: variantID, Quantity: qty}
}

func testAddress() model.Address {
	return model.Address{
		Name:    "Asha Rao",
		Phone:   "9999999999",
		Line1:   "12 MG Road",
		City:    "Bengaluru",
		State:   "KA",
		Pincode: "560001",
		Country: "IN",
	}
}

// place checks out lines and fails the test on error
func (f *fixture) place(userID primitive.ObjectID, method string, lines ...model.CartLine) *model.Order {
	f.t.Helper()
	resp, err := f.orders.PlaceOrder(f.ctx, userID, PlaceOrderInput{
		Lines:         lines,
		Address:       testAddress(),
		PaymentMethod: method,
	})
	require.NoError(f.t, err)
	return f.order(resp.OrderID)
}

func (f *fixture) order(hex string) *model.Order {
	f.t.Helper()
	id, err := primitive.ObjectIDFromHex(hex)
	require.NoError(f.t, err)
	order, err := f.store.GetOrder(f.ctx, id)
	require.NoError(f.t, err)
	return order
}

func (f *fixture) reload(order *model.Order) *model.Order {
	f.t.Helper()
	return f.order(order.ID.Hex())
}

// deliver moves the order to Delivered as an admin
func (f *fixture) deliver(order *model.Order) {
	f.t.Helper()
	_, err := f.orders.UpdateOrderStatus(f.ctx, order.ID, "Delivered", "", "admin:test")
	require.NoError(f.t, err)
}

// failingCoupons lets the coupon usage write fail after the order is stored
type failingCoupons struct {
	repository.CouponRepository
	err error
}

func (c failingCoupons) RedeemCoupon(context.Context, *model.Coupon, primitive.ObjectID) error {
	return c.err
}

var errGatewayDown = errors.New("gateway down")
