package repository

import (
	"context"
	"time"

	"chronora/internal/model"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ProductRepository defines the catalog reads and the stock mutations
type ProductRepository interface {
	GetProduct(ctx context.Context, id primitive.ObjectID) (*model.Product, error)
	GetVariant(ctx context.Context, id primitive.ObjectID) (*model.Variant, error)

	// DecrementStock atomically decrements the stock of a variant.
	// Returns error if stock is insufficient or the variant is not found
	DecrementStock(ctx context.Context, variantID primitive.ObjectID, quantity int) error

	// IncrementStock returns quantity units to the variant
	IncrementStock(ctx context.Context, variantID primitive.ObjectID, quantity int) error
}

// OfferRepository defines the interface for offer data operations
type OfferRepository interface {
	CreateOffer(ctx context.Context, offer *model.Offer) error

	// ListActiveOffers returns offers active at now that target the product
	// directly or its category
	ListActiveOffers(ctx context.Context, productID, categoryID primitive.ObjectID, now time.Time) ([]*model.Offer, error)
}
