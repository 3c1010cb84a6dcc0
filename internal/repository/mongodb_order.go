package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"chronora/internal/model"
	apperrors "chronora/pkg/errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// mongodbOrderRepository implements OrderRepository using MongoDB
type mongodbOrderRepository struct {
	collection *mongo.Collection
}

// NewOrderRepository creates a new MongoDB-based order repository
func NewOrderRepository(db *mongo.Database) OrderRepository {
	return &mongodbOrderRepository{
		collection: db.Collection("orders"),
	}
}

// CreateOrder inserts a new order at version 1
func (r *mongodbOrderRepository) CreateOrder(ctx context.Context, order *model.Order) error {
	if order.ID.IsZero() {
		order.ID = primitive.NewObjectID()
	}
	order.Version = 1
	_, err := r.collection.InsertOne(ctx, order)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return apperrors.Conflict("order code already exists")
		}
		return err
	}
	return nil
}

func (r *mongodbOrderRepository) GetOrder(ctx context.Context, id primitive.ObjectID) (*model.Order, error) {
	var order model.Order
	if err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&order); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperrors.ErrOrderNotFound
		}
		return nil, err
	}
	return &order, nil
}

func (r *mongodbOrderRepository) ListOrdersByUser(ctx context.Context, userID primitive.ObjectID) ([]*model.Order, error) {
	return r.find(ctx, bson.M{"user_id": userID})
}

func (r *mongodbOrderRepository) ListOrders(ctx context.Context, status model.OrderStatus) ([]*model.Order, error) {
	filter := bson.M{}
	if status != "" {
		filter["status"] = status
	}
	return r.find(ctx, filter)
}

func (r *mongodbOrderRepository) find(ctx context.Context, filter bson.M) ([]*model.Order, error) {
	cursor, err := r.collection.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	orders := []*model.Order{}
	if err := cursor.All(ctx, &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// UpdateOrder replaces the document only when the stored version still
// matches the one the caller read
func (r *mongodbOrderRepository) UpdateOrder(ctx context.Context, order *model.Order) error {
	expected := order.Version
	order.Version = expected + 1
	order.UpdatedAt = time.Now()

	res, err := r.collection.ReplaceOne(ctx,
		bson.M{"_id": order.ID, "version": expected},
		order,
	)
	if err != nil {
		order.Version = expected
		return err
	}
	if res.MatchedCount == 0 {
		order.Version = expected
		return apperrors.ErrConcurrentUpdate
	}
	return nil
}

func (r *mongodbOrderRepository) UpdateItemRefund(ctx context.Context, orderID primitive.ObjectID, index int, refund model.ItemRefund) error {
	res, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": orderID, fmt.Sprintf("items.%d", index): bson.M{"$exists": true}},
		bson.M{
			"$set": bson.M{fmt.Sprintf("items.%d.refund", index): refund, "updated_at": time.Now()},
			"$inc": bson.M{"version": 1},
		},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return apperrors.ErrItemNotFound
	}
	return nil
}

func (r *mongodbOrderRepository) DeleteOrder(ctx context.Context, id primitive.ObjectID) error {
	_, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	return err
}
