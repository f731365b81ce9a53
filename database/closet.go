package database

import (
	"context"

	"openfashion/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type mongoCloset struct {
	coll *mongo.Collection
}

func (r *mongoCloset) Add(ctx context.Context, item *models.ClosetItem) error {
	if item.ID.IsZero() {
		item.ID = primitive.NewObjectID()
	}
	_, err := r.coll.InsertOne(ctx, item)
	return err
}

func (r *mongoCloset) Get(ctx context.Context, id string) (*models.ClosetItem, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}
	return findOne[models.ClosetItem](ctx, r.coll, bson.M{"_id": oid})
}

func (r *mongoCloset) ListByUser(ctx context.Context, userID string) ([]models.ClosetItem, error) {
	return findAll[models.ClosetItem](ctx, r.coll, bson.M{"user_id": userID},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
}

func (r *mongoCloset) UpdateByLink(ctx context.Context, userID string, item models.ClosetItem) error {
	res, err := r.coll.UpdateOne(ctx,
		bson.M{"user_id": userID, "link": item.Link},
		bson.M{"$set": bson.M{
			"name":      item.Name,
			"category":  item.Category,
			"price":     item.Price,
			"thumbnail": item.Thumbnail,
			"tags":      item.Tags,
		}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *mongoCloset) DeleteByLink(ctx context.Context, userID, link, category string) error {
	res, err := r.coll.DeleteOne(ctx, bson.M{"user_id": userID, "link": link, "category": category})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}
