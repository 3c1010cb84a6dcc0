// Package memory keeps every collection in process memory. It backs the
// server's memory mode and the service tests. Writes are not transactional,
// so services run their compensation path against it.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"chronora/internal/model"
	apperrors "chronora/pkg/errors"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Store implements all repository interfaces over maps guarded by one mutex.
// Values are copied in and out so callers never share memory with the store.
type Store struct {
	mu       sync.RWMutex
	products map[primitive.ObjectID]model.Product
	variants map[primitive.ObjectID]model.Variant
	offers   map[primitive.ObjectID]model.Offer
	coupons  map[primitive.ObjectID]model.Coupon
	orders   map[primitive.ObjectID]model.Order
	users    map[primitive.ObjectID]model.User
	carts    map[primitive.ObjectID]model.Cart
}

func NewStore() *Store {
	return &Store{
		products: make(map[primitive.ObjectID]model.Product),
		variants: make(map[primitive.ObjectID]model.Variant),
		offers:   make(map[primitive.ObjectID]model.Offer),
		coupons:  make(map[primitive.ObjectID]model.Coupon),
		orders:   make(map[primitive.ObjectID]model.Order),
		users:    make(map[primitive.ObjectID]model.User),
		carts:    make(map[primitive.ObjectID]model.Cart),
	}
}

// Seeding helpers

func (s *Store) PutProduct(p model.Product) primitive.ObjectID {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID.IsZero() {
		p.ID = primitive.NewObjectID()
	}
	p.VariantIDs = append([]primitive.ObjectID(nil), p.VariantIDs...)
	s.products[p.ID] = p
	return p.ID
}

// PutVariant stores v and links it to its product when the product exists
func (s *Store) PutVariant(v model.Variant) primitive.ObjectID {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v.ID.IsZero() {
		v.ID = primitive.NewObjectID()
	}
	v.Images = append([]string(nil), v.Images...)
	s.variants[v.ID] = v
	if p, ok := s.products[v.ProductID]; ok {
		p.VariantIDs = append(p.VariantIDs, v.ID)
		s.products[p.ID] = p
	}
	return v.ID
}

func (s *Store) PutUser(u model.User) primitive.ObjectID {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.ID.IsZero() {
		u.ID = primitive.NewObjectID()
	}
	s.users[u.ID] = copyUser(u)
	return u.ID
}

// VariantStock returns the current stock, -1 for an unknown variant
func (s *Store) VariantStock(id primitive.ObjectID) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.variants[id]
	if !ok {
		return -1
	}
	return v.Stock
}

func (s *Store) UserBalance(id primitive.ObjectID) float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.users[id].Wallet.Balance
}

// OrderCount returns the number of stored orders
func (s *Store) OrderCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.orders)
}

// ProductRepository

func (s *Store) GetProduct(_ context.Context, id primitive.ObjectID) (*model.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.products[id]
	if !ok {
		return nil, apperrors.ErrProductNotFound
	}
	p.VariantIDs = append([]primitive.ObjectID(nil), p.VariantIDs...)
	return &p, nil
}

func (s *Store) GetVariant(_ context.Context, id primitive.ObjectID) (*model.Variant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.variants[id]
	if !ok {
		return nil, apperrors.ErrVariantNotFound
	}
	v.Images = append([]string(nil), v.Images...)
	return &v, nil
}

func (s *Store) DecrementStock(_ context.Context, variantID primitive.ObjectID, quantity int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.variants[variantID]
	if !ok || v.Stock < quantity {
		return apperrors.ErrOutOfStock
	}
	v.Stock -= quantity
	v.UpdatedAt = time.Now()
	s.variants[variantID] = v
	return nil
}

func (s *Store) IncrementStock(_ context.Context, variantID primitive.ObjectID, quantity int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.variants[variantID]
	if !ok {
		return apperrors.ErrVariantNotFound
	}
	v.Stock += quantity
	v.UpdatedAt = time.Now()
	s.variants[variantID] = v
	return nil
}

// OfferRepository

func (s *Store) CreateOffer(_ context.Context, offer *model.Offer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if offer.ID.IsZero() {
		offer.ID = primitive.NewObjectID()
	}
	s.offers[offer.ID] = *offer
	return nil
}

func (s *Store) ListActiveOffers(_ context.Context, productID, categoryID primitive.ObjectID, now time.Time) ([]*model.Offer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	offers := []*model.Offer{}
	for _, o := range s.offers {
		if !o.ActiveAt(now) {
			continue
		}
		if (o.Scope == model.OfferScopeProduct && o.TargetID == productID) ||
			(o.Scope == model.OfferScopeCategory && o.TargetID == categoryID) {
			o := o
			offers = append(offers, &o)
		}
	}
	return offers, nil
}

// CouponRepository

func (s *Store) CreateCoupon(_ context.Context, coupon *model.Coupon) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.coupons {
		if c.Code == coupon.Code {
			return apperrors.ErrCouponAlreadyExists
		}
	}
	if coupon.ID.IsZero() {
		coupon.ID = primitive.NewObjectID()
	}
	s.coupons[coupon.ID] = copyCoupon(*coupon)
	return nil
}

func (s *Store) GetCouponByCode(_ context.Context, code string) (*model.Coupon, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.coupons {
		if c.Code == code {
			out := copyCoupon(c)
			return &out, nil
		}
	}
	return nil, apperrors.ErrCouponNotFound
}

func (s *Store) ListCoupons(_ context.Context) ([]*model.Coupon, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	coupons := make([]*model.Coupon, 0, len(s.coupons))
	for _, c := range s.coupons {
		out := copyCoupon(c)
		coupons = append(coupons, &out)
	}
	sort.Slice(coupons, func(i, j int) bool { return coupons[i].CreatedAt.After(coupons[j].CreatedAt) })
	return coupons, nil
}

// RedeemCoupon applies the same guards as the Mongo conditional updates
func (s *Store) RedeemCoupon(_ context.Context, coupon *model.Coupon, userID primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.coupons[coupon.ID]
	if !ok {
		return apperrors.ErrCouponNotFound
	}
	if c.TotalUsageLimit > 0 && c.UsedCount >= c.TotalUsageLimit {
		return apperrors.ErrCouponExhausted
	}
	idx := -1
	for i, u := range c.UsedBy {
		if u.UserID == userID {
			idx = i
			break
		}
	}
	if idx < 0 {
		c.UsedBy = append(c.UsedBy, model.CouponUsage{UserID: userID, Count: 1})
	} else {
		if c.PerUserLimit > 0 && c.UsedBy[idx].Count >= c.PerUserLimit {
			return apperrors.ErrCouponUserLimit
		}
		c.UsedBy[idx].Count++
	}
	c.UsedCount++
	c.UpdatedAt = time.Now()
	s.coupons[c.ID] = c
	return nil
}

func (s *Store) UnredeemCoupon(_ context.Context, couponID, userID primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.coupons[couponID]
	if !ok {
		return apperrors.ErrCouponNotFound
	}
	for i, u := range c.UsedBy {
		if u.UserID == userID && u.Count > 0 {
			c.UsedBy[i].Count--
			c.UsedCount--
			c.UpdatedAt = time.Now()
			s.coupons[c.ID] = c
			return nil
		}
	}
	return apperrors.ErrCouponNotFound
}

// OrderRepository

func (s *Store) CreateOrder(_ context.Context, order *model.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range s.orders {
		if o.Code == order.Code {
			return apperrors.Conflict("order code already exists")
		}
	}
	if order.ID.IsZero() {
		order.ID = primitive.NewObjectID()
	}
	order.Version = 1
	s.orders[order.ID] = *order.Clone()
	return nil
}

func (s *Store) GetOrder(_ context.Context, id primitive.ObjectID) (*model.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, apperrors.ErrOrderNotFound
	}
	out := *o.Clone()
	return &out, nil
}

func (s *Store) ListOrdersByUser(_ context.Context, userID primitive.ObjectID) ([]*model.Order, error) {
	return s.listOrders(func(o *model.Order) bool { return o.UserID == userID }), nil
}

func (s *Store) ListOrders(_ context.Context, status model.OrderStatus) ([]*model.Order, error) {
	return s.listOrders(func(o *model.Order) bool { return status == "" || o.Status == status }), nil
}

func (s *Store) listOrders(match func(*model.Order) bool) []*model.Order {
	s.mu.RLock()
	defer s.mu.RUnlock()
	orders := []*model.Order{}
	for _, o := range s.orders {
		if match(&o) {
			out := *o.Clone()
			orders = append(orders, &out)
		}
	}
	sort.Slice(orders, func(i, j int) bool { return orders[i].CreatedAt.After(orders[j].CreatedAt) })
	return orders
}

func (s *Store) UpdateOrder(_ context.Context, order *model.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.orders[order.ID]
	if !ok {
		return apperrors.ErrOrderNotFound
	}
	if current.Version != order.Version {
		return apperrors.ErrConcurrentUpdate
	}
	order.Version++
	order.UpdatedAt = time.Now()
	s.orders[order.ID] = *order.Clone()
	return nil
}

func (s *Store) UpdateItemRefund(_ context.Context, orderID primitive.ObjectID, index int, refund model.ItemRefund) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok {
		return apperrors.ErrOrderNotFound
	}
	if index < 0 || index >= len(o.Items) {
		return apperrors.ErrItemNotFound
	}
	o = *o.Clone()
	o.Items[index].Refund = &refund
	o.Version++
	o.UpdatedAt = time.Now()
	s.orders[orderID] = o
	return nil
}

func (s *Store) DeleteOrder(_ context.Context, id primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.orders, id)
	return nil
}

// UserRepository

func (s *Store) GetUser(_ context.Context, id primitive.ObjectID) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, apperrors.ErrUserNotFound
	}
	out := copyUser(u)
	return &out, nil
}

func (s *Store) DebitWallet(_ context.Context, userID primitive.ObjectID, txn model.WalletTransaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return apperrors.ErrUserNotFound
	}
	if u.Wallet.Balance < txn.Amount {
		return apperrors.ErrInsufficientBalance
	}
	txn.Type = model.TransactionDebit
	u.Wallet.Balance -= txn.Amount
	u.Wallet.Transactions = append(u.Wallet.Transactions, txn)
	s.users[userID] = u
	return nil
}

func (s *Store) CreditWallet(_ context.Context, userID primitive.ObjectID, txn model.WalletTransaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return apperrors.ErrUserNotFound
	}
	txn.Type = model.TransactionCredit
	u.Wallet.Balance += txn.Amount
	u.Wallet.Transactions = append(u.Wallet.Transactions, txn)
	s.users[userID] = u
	return nil
}

// CartRepository

func (s *Store) GetCart(_ context.Context, userID primitive.ObjectID) (*model.Cart, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.carts[userID]
	if !ok {
		return &model.Cart{UserID: userID, Items: []model.CartLine{}}, nil
	}
	c.Items = append([]model.CartLine{}, c.Items...)
	return &c, nil
}

func (s *Store) SetCartItem(_ context.Context, userID primitive.ObjectID, line model.CartLine) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.carts[userID]
	c.UserID = userID
	items := make([]model.CartLine, 0, len(c.Items)+1)
	for _, l := range c.Items {
		if l.VariantID != line.VariantID {
			items = append(items, l)
		}
	}
	if line.Quantity > 0 {
		items = append(items, line)
	}
	c.Items = items
	c.UpdatedAt = time.Now()
	s.carts[userID] = c
	return nil
}

func (s *Store) ClearCart(_ context.Context, userID primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.carts[userID]; ok {
		c.Items = []model.CartLine{}
		c.UpdatedAt = time.Now()
		s.carts[userID] = c
	}
	return nil
}

func copyCoupon(c model.Coupon) model.Coupon {
	c.UsedBy = append([]model.CouponUsage{}, c.UsedBy...)
	c.AllowedUsers = append([]primitive.ObjectID(nil), c.AllowedUsers...)
	return c
}

func copyUser(u model.User) model.User {
	u.Wallet.Transactions = append([]model.WalletTransaction{}, u.Wallet.Transactions...)
	return u
}
