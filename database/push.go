package database

import (
	"context"

	"openfashion/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type mongoPush struct {
	coll *mongo.Collection
}

// Save keeps one subscription per user, replacing any earlier one.
func (r *mongoPush) Save(ctx context.Context, sub *models.PushSubscription) error {
	_, err := r.coll.UpdateOne(ctx,
		bson.M{"user_id": sub.UserID},
		bson.M{"$set": bson.M{"user_id": sub.UserID, "sub": sub.Sub}},
		options.Update().SetUpsert(true),
	)
	return err
}

func (r *mongoPush) Get(ctx context.Context, userID string) (*models.PushSubscription, error) {
	return findOne[models.PushSubscription](ctx, r.coll, bson.M{"user_id": userID})
}

func (r *mongoPush) Delete(ctx context.Context, userID string) error {
	_, err := r.coll.DeleteOne(ctx, bson.M{"user_id": userID})
	return err
}
