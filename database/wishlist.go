package database

import (
	"context"

	"openfashion/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type mongoWishlist struct {
	coll *mongo.Collection
}

func (r *mongoWishlist) Add(ctx context.Context, item *models.WishlistItem) error {
	count, err := r.coll.CountDocuments(ctx, bson.M{"user_id": item.UserID, "link": item.Link})
	if err != nil {
		return err
	}
	if count > 0 {
		return ErrDuplicate
	}
	if item.ID.IsZero() {
		item.ID = primitive.NewObjectID()
	}
	if item.Tags == nil {
		item.Tags = []string{}
	}
	_, err = r.coll.InsertOne(ctx, item)
	if mongo.IsDuplicateKeyError(err) {
		return ErrDuplicate
	}
	return err
}

func (r *mongoWishlist) ListByUser(ctx context.Context, userID string, skip, limit int) ([]models.WishlistItem, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetSkip(int64(skip)).
		SetLimit(int64(limit))
	return findAll[models.WishlistItem](ctx, r.coll, bson.M{"user_id": userID}, opts)
}

func (r *mongoWishlist) Delete(ctx context.Context, id, userID string) error {
	oid, err := objectID(id)
	if err != nil {
		return err
	}
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": oid, "user_id": userID})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *mongoWishlist) Like(ctx context.Context, id string) error {
	oid, err := objectID(id)
	if err != nil {
		return err
	}
	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$inc": bson.M{"likes": 1}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *mongoWishlist) Discover(ctx context.Context, filter models.WishlistFilter) ([]models.WishlistItem, error) {
	query := bson.M{}
	if filter.Category != "" {
		query["category"] = filter.Category
	}
	if len(filter.Tags) > 0 {
		query["tags"] = bson.M{"$in": filter.Tags}
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "likes", Value: -1}}).
		SetSkip(int64(filter.Skip)).
		SetLimit(int64(filter.Limit))
	return findAll[models.WishlistItem](ctx, r.coll, query, opts)
}
