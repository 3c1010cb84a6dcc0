package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"chronora/internal/auth"
	"chronora/internal/model"
	"chronora/internal/repository/memory"
	"chronora/internal/service"
	"chronora/pkg/database"
	"chronora/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type testServer struct {
	t      *testing.T
	router *gin.Engine
	store  *memory.Store
	tokens *auth.Manager
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func newTestServer(t *testing.T) *testServer {
	gin.SetMode(gin.TestMode)
	log := logger.Discard()
	store := memory.NewStore()
	tokens := auth.NewManager("test-secret", time.Hour)

	pricing := service.NewPricingService(store, store, log)
	carts := service.NewCartService(store, store, pricing, log)
	orders := service.NewOrderService(service.OrderDeps{
		Orders:     store,
		Users:      store,
		Carts:      store,
		Coupons:    store,
		Pricing:    pricing,
		Stock:      service.NewStockLedger(store, log),
		Settlement: service.NewSettlementService(store, nil, log),
		UnitOfWork: database.NoTransaction{},
	}, service.OrderOptions{CODLimit: 1000, DeliveryCharge: 40, FreeDeliveryThreshold: 500}, log)

	router := NewRouter(Services{
		Orders:  orders,
		Coupons: service.NewCouponService(store, log),
		Offers:  service.NewOfferService(store, store, log),
		Pricing: pricing,
		Carts:   carts,
		Wallet:  service.NewWalletService(store),
	}, RouterConfig{Tokens: tokens, Logger: log})

	return &testServer{t: t, router: router, store: store, tokens: tokens}
}

func (s *testServer) token(userID primitive.ObjectID, role string) string {
	s.t.Helper()
	token, err := s.tokens.GenerateToken(userID.Hex(), role)
	require.NoError(s.t, err)
	return token
}

func (s *testServer) do(method, path, token string, body interface{}) (int, envelope) {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var env envelope
	_ = json.Unmarshal(w.Body.Bytes(), &env)
	return w.Code, env
}

func (s *testServer) product(price float64, stock int) (primitive.ObjectID, primitive.ObjectID) {
	productID := s.store.PutProduct(model.Product{Name: "Diver", Price: price})
	variantID := s.store.PutVariant(model.Variant{ProductID: productID, Color: "steel", Stock: stock})
	return productID, variantID
}

func (s *testServer) customer(balance float64, productID, variantID primitive.ObjectID, qty int) (primitive.ObjectID, string) {
	s.t.Helper()
	userID := s.store.PutUser(model.User{Name: "Customer", Wallet: model.Wallet{Balance: balance}})
	require.NoError(s.t, s.store.SetCartItem(context.Background(), userID, model.CartLine{
		ProductID: productID, VariantID: variantID, Quantity: qty,
	}))
	return userID, s.token(userID, auth.RoleUser)
}

func checkout(method, coupon string) model.PlaceOrderRequest {
	return model.PlaceOrderRequest{
		Address: model.Address{
			Name: "Asha Rao", Phone: "9999999999", Line1: "12 MG Road",
			City: "Bengaluru", State: "KA", Pincode: "560001",
		},
		PaymentMethod: method,
		CouponCode:    coupon,
	}
}

func TestHealthAndAuth(t *testing.T) {
	s := newTestServer(t)
	userToken := s.token(primitive.NewObjectID(), auth.RoleUser)

	code, _ := s.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, code)

	code, env := s.do(http.MethodGet, "/api/cart", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.False(t, env.Success)

	code, _ = s.do(http.MethodGet, "/api/admin/orders", userToken, nil)
	assert.Equal(t, http.StatusForbidden, code)

	code, env = s.do(http.MethodGet, "/api/orders/not-an-id", userToken, nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "invalid id", env.Message)

	code, env = s.do(http.MethodGet, "/api/orders/"+primitive.NewObjectID().Hex(), userToken, nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "order not found", env.Message)

	code, _ = s.do(http.MethodPost, "/api/orders/"+primitive.NewObjectID().Hex()+"/items/x/cancel", userToken, nil)
	assert.Equal(t, http.StatusBadRequest, code)
}

// 20 customers check out the same watch with 5 in stock
func TestFlashSaleCheckout(t *testing.T) {
	s := newTestServer(t)
	productID, variantID := s.product(900, 5)

	const buyers = 20
	tokens := make([]string, buyers)
	for i := range tokens {
		_, tokens[i] = s.customer(1000, productID, variantID, 1)
	}

	var (
		mu    sync.Mutex
		wg    sync.WaitGroup
		codes = map[int]int{}
	)
	for _, token := range tokens {
		wg.Add(1)
		go func(token string) {
			defer wg.Done()
			code, _ := s.do(http.MethodPost, "/api/orders", token, checkout("wallet", ""))
			mu.Lock()
			codes[code]++
			mu.Unlock()
		}(token)
	}
	wg.Wait()

	assert.Equal(t, 5, codes[http.StatusCreated], fmt.Sprint(codes))
	assert.Equal(t, buyers-5, codes[http.StatusConflict], fmt.Sprint(codes))
	assert.Equal(t, 0, s.store.VariantStock(variantID))
	assert.Equal(t, 5, s.store.OrderCount())
}

// one customer fires 10 concurrent checkouts with a once-per-user coupon
func TestDoubleDipCoupon(t *testing.T) {
	s := newTestServer(t)
	productID, variantID := s.product(600, 50)
	userID, token := s.customer(0, productID, variantID, 1)
	require.NoError(t, s.store.CreateCoupon(context.Background(), &model.Coupon{
		Code:          "PROMO_SUPER",
		DiscountType:  model.DiscountFixed,
		DiscountValue: 100,
		PerUserLimit:  1,
		IsActive:      true,
		StartDate:     time.Now().Add(-time.Hour),
		ExpiryDate:    time.Now().Add(time.Hour),
	}))

	var (
		mu    sync.Mutex
		wg    sync.WaitGroup
		codes = map[int]int{}
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			code, _ := s.do(http.MethodPost, "/api/orders", token, checkout("cod", "promo_super"))
			mu.Lock()
			codes[code]++
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, codes[http.StatusCreated], fmt.Sprint(codes))
	// losers either hit the usage limit or find the cart already checked out
	assert.Equal(t, 9, codes[http.StatusConflict]+codes[http.StatusBadRequest], fmt.Sprint(codes))
	assert.Equal(t, 1, s.store.OrderCount())
	assert.Equal(t, 49, s.store.VariantStock(variantID))

	coupon, err := s.store.GetCouponByCode(context.Background(), "PROMO_SUPER")
	require.NoError(t, err)
	assert.Equal(t, 1, coupon.UsageBy(userID))
}

func TestOrderLifecycleOverHTTP(t *testing.T) {
	s := newTestServer(t)
	productID, variantID := s.product(1500, 3)
	userID, token := s.customer(2000, productID, variantID, 1)
	admin := s.token(primitive.NewObjectID(), auth.RoleAdmin)

	code, env := s.do(http.MethodGet, "/api/cart", token, nil)
	require.Equal(t, http.StatusOK, code)
	var cart model.CartSummary
	require.NoError(t, json.Unmarshal(env.Data, &cart))
	assert.Equal(t, 1500.0, cart.Subtotal)

	code, env = s.do(http.MethodPost, "/api/orders", token, checkout("wallet", ""))
	require.Equal(t, http.StatusCreated, code, env.Message)
	var placed model.PlaceOrderResponse
	require.NoError(t, json.Unmarshal(env.Data, &placed))
	assert.Equal(t, "Confirmed", placed.Status)
	orderPath := "/api/admin/orders/" + placed.OrderID

	code, env = s.do(http.MethodPatch, orderPath+"/status", admin, model.StatusUpdateRequest{Status: "Processing"})
	require.Equal(t, http.StatusOK, code, env.Message)
	code, env = s.do(http.MethodPatch, orderPath+"/status", admin, model.StatusUpdateRequest{Status: "Confirmed"})
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "invalid status transition", env.Message)

	code, _ = s.do(http.MethodPatch, orderPath+"/items/0/status", admin, model.StatusUpdateRequest{Status: "Delivered"})
	require.Equal(t, http.StatusOK, code)

	code, env = s.do(http.MethodPost, "/api/orders/"+placed.OrderID+"/items/0/return", token, model.ReasonRequest{Reason: "dial scratched"})
	require.Equal(t, http.StatusOK, code, env.Message)
	code, _ = s.do(http.MethodPost, orderPath+"/items/0/return/approve", admin, nil)
	require.Equal(t, http.StatusOK, code)
	code, env = s.do(http.MethodPost, orderPath+"/items/0/returned", admin, model.ReasonRequest{Reason: "received"})
	require.Equal(t, http.StatusOK, code, env.Message)

	var result model.TransitionResult
	require.NoError(t, json.Unmarshal(env.Data, &result))
	assert.Equal(t, model.StatusReturned, result.Status)
	assert.Equal(t, 1500.0, result.RefundAmount)

	code, env = s.do(http.MethodGet, "/api/wallet", token, nil)
	require.Equal(t, http.StatusOK, code)
	var wallet model.Wallet
	require.NoError(t, json.Unmarshal(env.Data, &wallet))
	assert.Equal(t, 2000.0, wallet.Balance)
	require.Len(t, wallet.Transactions, 2)
	assert.Equal(t, model.TransactionCredit, wallet.Transactions[0].Type)
	assert.Equal(t, model.TransactionDebit, wallet.Transactions[1].Type)

	code, env = s.do(http.MethodGet, "/api/admin/orders?status=returned", admin, nil)
	require.Equal(t, http.StatusOK, code)
	var orders []model.Order
	require.NoError(t, json.Unmarshal(env.Data, &orders))
	require.Len(t, orders, 1)
	assert.Equal(t, userID, orders[0].UserID)
}

func TestCouponEndpoints(t *testing.T) {
	s := newTestServer(t)
	productID, variantID := s.product(1500, 3)
	_, token := s.customer(0, productID, variantID, 1)
	admin := s.token(primitive.NewObjectID(), auth.RoleAdmin)

	req := model.CreateCouponRequest{
		Code:          "save10",
		DiscountType:  "percentage",
		DiscountValue: 10,
		MinPurchase:   1000,
		StartDate:     time.Now().Add(-time.Hour),
		ExpiryDate:    time.Now().Add(time.Hour),
	}
	code, env := s.do(http.MethodPost, "/api/admin/coupons", admin, req)
	require.Equal(t, http.StatusCreated, code, env.Message)
	code, _ = s.do(http.MethodPost, "/api/admin/coupons", admin, req)
	assert.Equal(t, http.StatusConflict, code)

	code, env = s.do(http.MethodPost, "/api/coupons/apply", token, model.ApplyCouponRequest{Code: "SAVE10"})
	require.Equal(t, http.StatusOK, code, env.Message)
	var preview model.CouponPreview
	require.NoError(t, json.Unmarshal(env.Data, &preview))
	assert.Equal(t, 150.0, preview.Discount)
	assert.Equal(t, 1350.0, preview.Payable)

	code, env = s.do(http.MethodGet, "/api/coupons", token, nil)
	require.Equal(t, http.StatusOK, code)
	var coupons []model.Coupon
	require.NoError(t, json.Unmarshal(env.Data, &coupons))
	assert.Len(t, coupons, 1)
}
