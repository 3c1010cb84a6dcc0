package repository

import (
	"context"
	"errors"
	"time"

	"chronora/internal/model"
	apperrors "chronora/pkg/errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type mongodbProductRepository struct {
	products *mongo.Collection
	variants *mongo.Collection
}

// NewProductRepository creates a new MongoDB-based product repository
func NewProductRepository(db *mongo.Database) ProductRepository {
	return &mongodbProductRepository{
		products: db.Collection("products"),
		variants: db.Collection("variants"),
	}
}

func (r *mongodbProductRepository) GetProduct(ctx context.Context, id primitive.ObjectID) (*model.Product, error) {
	var product model.Product
	if err := r.products.FindOne(ctx, bson.M{"_id": id}).Decode(&product); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperrors.ErrProductNotFound
		}
		return nil, err
	}
	return &product, nil
}

func (r *mongodbProductRepository) GetVariant(ctx context.Context, id primitive.ObjectID) (*model.Variant, error) {
	var variant model.Variant
	if err := r.variants.FindOne(ctx, bson.M{"_id": id}).Decode(&variant); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperrors.ErrVariantNotFound
		}
		return nil, err
	}
	return &variant, nil
}

// DecrementStock atomically decrements the stock of a variant
func (r *mongodbProductRepository) DecrementStock(ctx context.Context, variantID primitive.ObjectID, quantity int) error {
	updateResult := r.variants.FindOneAndUpdate(
		ctx,
		bson.M{
			"_id":   variantID,
			"stock": bson.M{"$gte": quantity}, // Only update if stock >= quantity
		},
		bson.M{
			"$inc": bson.M{"stock": -quantity},
			"$set": bson.M{"updated_at": time.Now()},
		},
		options.FindOneAndUpdate().
			SetReturnDocument(options.After).
			SetUpsert(false),
	)

	if err := updateResult.Err(); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return apperrors.ErrOutOfStock
		}
		return err
	}

	return nil
}

// IncrementStock returns quantity units to the variant
func (r *mongodbProductRepository) IncrementStock(ctx context.Context, variantID primitive.ObjectID, quantity int) error {
	res, err := r.variants.UpdateOne(ctx,
		bson.M{"_id": variantID},
		bson.M{
			"$inc": bson.M{"stock": quantity},
			"$set": bson.M{"updated_at": time.Now()},
		},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return apperrors.ErrVariantNotFound
	}
	return nil
}

type mongodbOfferRepository struct {
	collection *mongo.Collection
}

// NewOfferRepository creates a new MongoDB-based offer repository
func NewOfferRepository(db *mongo.Database) OfferRepository {
	return &mongodbOfferRepository{collection: db.Collection("offers")}
}

func (r *mongodbOfferRepository) CreateOffer(ctx context.Context, offer *model.Offer) error {
	if offer.ID.IsZero() {
		offer.ID = primitive.NewObjectID()
	}
	_, err := r.collection.InsertOne(ctx, offer)
	return err
}

func (r *mongodbOfferRepository) ListActiveOffers(ctx context.Context, productID, categoryID primitive.ObjectID, now time.Time) ([]*model.Offer, error) {
	filter := bson.M{
		"is_active":  true,
		"start_date": bson.M{"$lte": now},
		"end_date":   bson.M{"$gte": now},
		"$or": bson.A{
			bson.M{"scope": model.OfferScopeProduct, "target_id": productID},
			bson.M{"scope": model.OfferScopeCategory, "target_id": categoryID},
		},
	}
	cursor, err := r.collection.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var offers []*model.Offer
	if err := cursor.All(ctx, &offers); err != nil {
		return nil, err
	}
	return offers, nil
}
