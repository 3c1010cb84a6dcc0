package database

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Collection names
const (
	CollectionProducts = "products"
	CollectionVariants = "variants"
	CollectionOffers   = "offers"
	CollectionCoupons  = "coupons"
	CollectionOrders   = "orders"
	CollectionUsers    = "users"
	CollectionCarts    = "carts"
)

// MongoDB wraps the MongoDB client and database
type MongoDB struct {
	Client   *mongo.Client
	Database *mongo.Database
}

// Connect establishes a connection to MongoDB
func Connect(ctx context.Context, uri, dbName string) (*MongoDB, error) {
	clientOptions := options.Client().ApplyURI(uri)

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	mongoDB := &MongoDB{
		Client:   client,
		Database: client.Database(dbName),
	}

	if err := mongoDB.CreateIndexes(ctx); err != nil {
		return nil, fmt.Errorf("failed to create indexes: %w", err)
	}

	return mongoDB, nil
}

type indexSpec struct {
	collection string
	model      mongo.IndexModel
}

// CreateIndexes creates all necessary indexes for the application
func (m *MongoDB) CreateIndexes(ctx context.Context) error {
	specs := []indexSpec{
		{CollectionCoupons, mongo.IndexModel{
			Keys:    bson.D{{Key: "code", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("coupon_code_unique"),
		}},
		{CollectionOrders, mongo.IndexModel{
			Keys:    bson.D{{Key: "code", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("order_code_unique"),
		}},
		{CollectionOrders, mongo.IndexModel{
			Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}},
			Options: options.Index().SetName("order_user_created"),
		}},
		{CollectionOrders, mongo.IndexModel{
			Keys:    bson.D{{Key: "status", Value: 1}},
			Options: options.Index().SetName("order_status"),
		}},
		{CollectionUsers, mongo.IndexModel{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("user_email_unique"),
		}},
		{CollectionCarts, mongo.IndexModel{
			Keys:    bson.D{{Key: "user_id", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("cart_user_unique"),
		}},
		{CollectionOffers, mongo.IndexModel{
			Keys:    bson.D{{Key: "scope", Value: 1}, {Key: "target_id", Value: 1}, {Key: "is_active", Value: 1}},
			Options: options.Index().SetName("offer_scope_target"),
		}},
		{CollectionVariants, mongo.IndexModel{
			Keys:    bson.D{{Key: "product_id", Value: 1}},
			Options: options.Index().SetName("variant_product"),
		}},
	}

	for _, spec := range specs {
		if _, err := m.Database.Collection(spec.collection).Indexes().CreateOne(ctx, spec.model); err != nil {
			return fmt.Errorf("failed to create %s index on %s: %w", *spec.model.Options.Name, spec.collection, err)
		}
	}
	return nil
}

// Disconnect closes the MongoDB connection
func (m *MongoDB) Disconnect(ctx context.Context) error {
	return m.Client.Disconnect(ctx)
}
