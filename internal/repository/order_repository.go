package repository

import (
	"context"

	"chronora/internal/model"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// OrderRepository defines the interface for order data operations
type OrderRepository interface {
	CreateOrder(ctx context.Context, order *model.Order) error
	GetOrder(ctx context.Context, id primitive.ObjectID) (*model.Order, error)
	ListOrdersByUser(ctx context.Context, userID primitive.ObjectID) ([]*model.Order, error)

	// ListOrders returns all orders, optionally filtered by status
	ListOrders(ctx context.Context, status model.OrderStatus) ([]*model.Order, error)

	// UpdateOrder replaces the order if its version is unchanged since it was read
	// and bumps the version. A stale version yields ErrConcurrentUpdate.
	UpdateOrder(ctx context.Context, order *model.Order) error

	// UpdateItemRefund overwrites the refund record of one item and bumps the
	// version so a concurrent read-modify-write fails its version check
	UpdateItemRefund(ctx context.Context, orderID primitive.ObjectID, index int, refund model.ItemRefund) error

	// DeleteOrder removes an order; only used to roll back a failed placement
	DeleteOrder(ctx context.Context, id primitive.ObjectID) error
}

// UserRepository covers the wallet of a user
type UserRepository interface {
	GetUser(ctx context.Context, id primitive.ObjectID) (*model.User, error)

	// DebitWallet atomically subtracts txn.Amount if the balance covers it
	DebitWallet(ctx context.Context, userID primitive.ObjectID, txn model.WalletTransaction) error

	// CreditWallet adds txn.Amount and appends txn to the ledger
	CreditWallet(ctx context.Context, userID primitive.ObjectID, txn model.WalletTransaction) error
}

// CartRepository defines the interface for cart data operations
type CartRepository interface {
	// GetCart returns the user's cart, empty when none exists
	GetCart(ctx context.Context, userID primitive.ObjectID) (*model.Cart, error)
	SetCartItem(ctx context.Context, userID primitive.ObjectID, line model.CartLine) error
	ClearCart(ctx context.Context, userID primitive.ObjectID) error
}
