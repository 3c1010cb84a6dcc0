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

type mongodbUserRepository struct {
	collection *mongo.Collection
}

// NewUserRepository creates a new MongoDB-based user repository
func NewUserRepository(db *mongo.Database) UserRepository {
	return &mongodbUserRepository{collection: db.Collection("users")}
}

func (r *mongodbUserRepository) GetUser(ctx context.Context, id primitive.ObjectID) (*model.User, error) {
	var user model.User
	if err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&user); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperrors.ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// DebitWallet atomically decrements the balance, same pattern as stock
func (r *mongodbUserRepository) DebitWallet(ctx context.Context, userID primitive.ObjectID, txn model.WalletTransaction) error {
	txn.Type = model.TransactionDebit
	res, err := r.collection.UpdateOne(ctx,
		bson.M{
			"_id":            userID,
			"wallet.balance": bson.M{"$gte": txn.Amount}, // Only update if balance covers it
		},
		bson.M{
			"$inc":  bson.M{"wallet.balance": -txn.Amount},
			"$push": bson.M{"wallet.transactions": txn},
		},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		if _, err := r.GetUser(ctx, userID); err != nil {
			return err
		}
		return apperrors.ErrInsufficientBalance
	}
	return nil
}

func (r *mongodbUserRepository) CreditWallet(ctx context.Context, userID primitive.ObjectID, txn model.WalletTransaction) error {
	txn.Type = model.TransactionCredit
	res, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": userID},
		bson.M{
			"$inc":  bson.M{"wallet.balance": txn.Amount},
			"$push": bson.M{"wallet.transactions": txn},
		},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return apperrors.ErrUserNotFound
	}
	return nil
}

type mongodbCartRepository struct {
	collection *mongo.Collection
}

// NewCartRepository creates a new MongoDB-based cart repository
func NewCartRepository(db *mongo.Database) CartRepository {
	return &mongodbCartRepository{collection: db.Collection("carts")}
}

func (r *mongodbCartRepository) GetCart(ctx context.Context, userID primitive.ObjectID) (*model.Cart, error) {
	var cart model.Cart
	err := r.collection.FindOne(ctx, bson.M{"user_id": userID}).Decode(&cart)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return &model.Cart{UserID: userID, Items: []model.CartLine{}}, nil
		}
		return nil, err
	}
	if cart.Items == nil {
		cart.Items = []model.CartLine{}
	}
	return &cart, nil
}

// SetCartItem replaces the quantity of a variant; zero removes the line.
// Each step is a single conditional update, so concurrent calls for the same
// variant never leave two lines behind.
func (r *mongodbCartRepository) SetCartItem(ctx context.Context, userID primitive.ObjectID, line model.CartLine) error {
	if line.Quantity <= 0 {
		_, err := r.collection.UpdateOne(ctx,
			bson.M{"user_id": userID},
			bson.M{
				"$pull": bson.M{"items": bson.M{"variant_id": line.VariantID}},
				"$set":  bson.M{"updated_at": time.Now()},
			},
		)
		return err
	}

	for attempt := 0; attempt < 3; attempt++ {
		res, err := r.collection.UpdateOne(ctx,
			bson.M{"user_id": userID, "items.variant_id": line.VariantID},
			bson.M{"$set": bson.M{
				"items.$[line].quantity":   line.Quantity,
				"items.$[line].product_id": line.ProductID,
				"updated_at":               time.Now(),
			}},
			options.Update().SetArrayFilters(options.ArrayFilters{
				Filters: []interface{}{bson.M{"line.variant_id": line.VariantID}},
			}),
		)
		if err != nil {
			return err
		}
		if res.MatchedCount > 0 {
			return nil
		}

		// No line yet: push only while the variant is still absent. The upsert
		// creates the cart; losing the insert race surfaces as a duplicate key.
		_, err = r.collection.UpdateOne(ctx,
			bson.M{"user_id": userID, "items.variant_id": bson.M{"$ne": line.VariantID}},
			bson.M{
				"$push": bson.M{"items": line},
				"$set":  bson.M{"updated_at": time.Now()},
			},
			options.Update().SetUpsert(true),
		)
		if err == nil {
			return nil
		}
		if !mongo.IsDuplicateKeyError(err) {
			return err
		}
	}
	return apperrors.Conflict("cart was modified concurrently, retry")
}

func (r *mongodbCartRepository) ClearCart(ctx context.Context, userID primitive.ObjectID) error {
	_, err := r.collection.UpdateOne(ctx,
		bson.M{"user_id": userID},
		bson.M{"$set": bson.M{"items": []model.CartLine{}, "updated_at": time.Now()}},
	)
	return err
}
