package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Product is a catalog entry; its variants carry the stock
type Product struct {
	ID         primitive.ObjectID   `bson:"_id,omitempty" json:"id,omitempty"`
	Name       string               `bson:"name" json:"name"`
	Price      float64              `bson:"price" json:"price"`
	CategoryID primitive.ObjectID   `bson:"category_id" json:"category_id"`
	VariantIDs []primitive.ObjectID `bson:"variant_ids" json:"variant_ids"`
	IsBlocked  bool                 `bson:"is_blocked" json:"is_blocked"`
	CreatedAt  time.Time            `bson:"created_at" json:"created_at"`
	UpdatedAt  time.Time            `bson:"updated_at" json:"updated_at"`
}

// Variant is a sellable colour/attribute of a product. Stock is only mutated
// through the stock ledger.
type Variant struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	ProductID primitive.ObjectID `bson:"product_id" json:"product_id"`
	Color     string             `bson:"color" json:"color"`
	Stock     int                `bson:"stock" json:"stock"`
	Images    []string           `bson:"images" json:"images"`
	IsBlocked bool               `bson:"is_blocked" json:"is_blocked"`
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time          `bson:"updated_at" json:"updated_at"`
}

type OfferScope string

const (
	OfferScopeProduct  OfferScope = "product"
	OfferScopeCategory OfferScope = "category"
)

type DiscountType string

const (
	DiscountPercentage DiscountType = "percentage"
	DiscountFixed      DiscountType = "fixed"
)

// Offer is a time-boxed discount on a product or on every product of a category
type Offer struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	Name          string             `bson:"name" json:"name"`
	Scope         OfferScope         `bson:"scope" json:"scope"`
	TargetID      primitive.ObjectID `bson:"target_id" json:"target_id"`
	DiscountType  DiscountType       `bson:"discount_type" json:"discount_type"`
	DiscountValue float64            `bson:"discount_value" json:"discount_value"`
	StartDate     time.Time          `bson:"start_date" json:"start_date"`
	EndDate       time.Time          `bson:"end_date" json:"end_date"`
	IsActive      bool               `bson:"is_active" json:"is_active"`
	CreatedAt     time.Time          `bson:"created_at" json:"created_at"`
}

// ActiveAt reports whether the offer applies at t
func (o *Offer) ActiveAt(t time.Time) bool {
	return o.IsActive && !t.Before(o.StartDate) && !t.After(o.EndDate)
}

// PriceQuote is the outcome of resolving a product price against offers
type PriceQuote struct {
	ProductID          primitive.ObjectID `json:"product_id"`
	OriginalPrice      float64            `json:"original_price"`
	FinalPrice         float64            `json:"final_price"`
	AppliedOffer       *Offer             `json:"applied_offer"`
	DiscountPercentage float64            `json:"discount_percentage"`
}

// CreateOfferRequest represents the admin request to create an offer
type CreateOfferRequest struct {
	Name          string    `json:"name" binding:"required"`
	Scope         string    `json:"scope" binding:"required"`
	TargetID      string    `json:"target_id" binding:"required"`
	DiscountType  string    `json:"discount_type" binding:"required"`
	DiscountValue float64   `json:"discount_value" binding:"required"`
	StartDate     time.Time `json:"start_date" binding:"required"`
	EndDate       time.Time `json:"end_date" binding:"required"`
}
