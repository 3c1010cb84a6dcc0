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

// mongodbCouponRepository implements CouponRepository using MongoDB
type mongodbCouponRepository struct {
	collection *mongo.Collection
}

// NewCouponRepository creates a new MongoDB-based coupon repository
func NewCouponRepository(db *mongo.Database) CouponRepository {
	return &mongodbCouponRepository{
		collection: db.Collection("coupons"),
	}
}

// CreateCoupon creates a new coupon
func (r *mongodbCouponRepository) CreateCoupon(ctx context.Context, coupon *model.Coupon) error {
	if coupon.ID.IsZero() {
		coupon.ID = primitive.NewObjectID()
	}
	if coupon.UsedBy == nil {
		coupon.UsedBy = []model.CouponUsage{}
	}
	_, err := r.collection.InsertOne(ctx, coupon)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return apperrors.ErrCouponAlreadyExists
		}
		return err
	}

	return nil
}

// GetCouponByCode retrieves a coupon by its code
func (r *mongodbCouponRepository) GetCouponByCode(ctx context.Context, code string) (*model.Coupon, error) {
	var coupon model.Coupon
	err := r.collection.FindOne(ctx, bson.M{"code": code}).Decode(&coupon)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperrors.ErrCouponNotFound
		}
		return nil, err
	}

	return &coupon, nil
}

// ListCoupons returns every coupon, newest first
func (r *mongodbCouponRepository) ListCoupons(ctx context.Context) ([]*model.Coupon, error) {
	cursor, err := r.collection.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var coupons []*model.Coupon
	if err := cursor.All(ctx, &coupons); err != nil {
		return nil, err
	}

	return coupons, nil
}

// RedeemCoupon records a use in two conditional updates: the first only matches
// when the user has no usage record yet, the second bumps an existing record
// that is still below the per-user limit. Both are guarded by the total limit.
func (r *mongodbCouponRepository) RedeemCoupon(ctx context.Context, coupon *model.Coupon, userID primitive.ObjectID) error {
	now := time.Now()

	firstUse := bson.M{
		"_id":             coupon.ID,
		"used_by.user_id": bson.M{"$ne": userID},
	}
	if coupon.TotalUsageLimit > 0 {
		firstUse["used_count"] = bson.M{"$lt": coupon.TotalUsageLimit}
	}
	res, err := r.collection.UpdateOne(ctx, firstUse, bson.M{
		"$inc":  bson.M{"used_count": 1},
		"$push": bson.M{"used_by": model.CouponUsage{UserID: userID, Count: 1}},
		"$set":  bson.M{"updated_at": now},
	})
	if err != nil {
		return err
	}
	if res.MatchedCount == 1 {
		return nil
	}

	elem := bson.M{"user_id": userID}
	if coupon.PerUserLimit > 0 {
		elem["count"] = bson.M{"$lt": coupon.PerUserLimit}
	}
	repeatUse := bson.M{
		"_id":     coupon.ID,
		"used_by": bson.M{"$elemMatch": elem},
	}
	if coupon.TotalUsageLimit > 0 {
		repeatUse["used_count"] = bson.M{"$lt": coupon.TotalUsageLimit}
	}
	res, err = r.collection.UpdateOne(ctx, repeatUse, bson.M{
		"$inc": bson.M{"used_count": 1, "used_by.$.count": 1},
		"$set": bson.M{"updated_at": now},
	})
	if err != nil {
		return err
	}
	if res.MatchedCount == 1 {
		return nil
	}

	// Neither update matched; read back to report which limit was hit
	var current model.Coupon
	if err := r.collection.FindOne(ctx, bson.M{"_id": coupon.ID}).Decode(&current); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return apperrors.ErrCouponNotFound
		}
		return err
	}
	if current.TotalUsageLimit > 0 && current.UsedCount >= current.TotalUsageLimit {
		return apperrors.ErrCouponExhausted
	}
	return apperrors.ErrCouponUserLimit
}

// UnredeemCoupon reverts one use of the coupon by userID
func (r *mongodbCouponRepository) UnredeemCoupon(ctx context.Context, couponID, userID primitive.ObjectID) error {
	res, err := r.collection.UpdateOne(ctx,
		bson.M{
			"_id":     couponID,
			"used_by": bson.M{"$elemMatch": bson.M{"user_id": userID, "count": bson.M{"$gt": 0}}},
		},
		bson.M{
			"$inc": bson.M{"used_count": -1, "used_by.$.count": -1},
			"$set": bson.M{"updated_at": time.Now()},
		},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return apperrors.ErrCouponNotFound
	}
	return nil
}
