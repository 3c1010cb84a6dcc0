package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type TransactionType string

const (
	TransactionCredit TransactionType = "credit"
	TransactionDebit  TransactionType = "debit"
)

// WalletTransaction is an immutable ledger entry
type WalletTransaction struct {
	ID          string          `bson:"id" json:"id"`
	Amount      float64         `bson:"amount" json:"amount"`
	Type        TransactionType `bson:"type" json:"type"`
	Description string          `bson:"description" json:"description"`
	OrderCode   string          `bson:"order_code,omitempty" json:"order_code,omitempty"`
	CreatedAt   time.Time       `bson:"created_at" json:"created_at"`
}

// Wallet holds a non-negative balance and its transaction ledger
type Wallet struct {
	Balance      float64             `bson:"balance" json:"balance"`
	Transactions []WalletTransaction `bson:"transactions" json:"transactions"`
}

// User is the storefront customer; only the fields this service reads are mapped
type User struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	Name      string             `bson:"name" json:"name"`
	Email     string             `bson:"email" json:"email"`
	IsBlocked bool               `bson:"is_blocked" json:"is_blocked"`
	Wallet    Wallet             `bson:"wallet" json:"wallet"`
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
}

// CartLine is one product variant in a user's cart
type CartLine struct {
	ProductID primitive.ObjectID `bson:"product_id" json:"product_id"`
	VariantID primitive.ObjectID `bson:"variant_id" json:"variant_id"`
	Quantity  int                `bson:"quantity" json:"quantity"`
}

// Cart is keyed by user
type Cart struct {
	UserID    primitive.ObjectID `bson:"user_id" json:"user_id"`
	Items     []CartLine         `bson:"items" json:"items"`
	UpdatedAt time.Time          `bson:"updated_at" json:"updated_at"`
}

// CartItemRequest sets the quantity of a variant in the cart; 0 removes it
type CartItemRequest struct {
	ProductID string `json:"product_id" binding:"required"`
	VariantID string `json:"variant_id" binding:"required"`
	Quantity  int    `json:"quantity" binding:"min=0"`
}

// CartItemView is a cart line priced against the current offers
type CartItemView struct {
	ProductID     primitive.ObjectID `json:"product_id"`
	VariantID     primitive.ObjectID `json:"variant_id"`
	Name          string             `json:"name"`
	Color         string             `json:"color"`
	Quantity      int                `json:"quantity"`
	Price         float64            `json:"price"`
	OriginalPrice float64            `json:"original_price"`
	LineTotal     float64            `json:"line_total"`
	Available     bool               `json:"available"`
}

// CartSummary is the priced view of a cart
type CartSummary struct {
	Items    []CartItemView `json:"items"`
	Subtotal float64        `json:"subtotal"`
}
