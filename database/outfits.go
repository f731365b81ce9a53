package database

import (
	"context"
	"time"

	"openfashion/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type mongoOutfits struct {
	coll *mongo.Collection
}

func (r *mongoOutfits) Create(ctx context.Context, post *models.OutfitPost) error {
	if post.ID.IsZero() {
		post.ID = primitive.NewObjectID()
	}
	if post.Components == nil {
		post.Components = []models.OutfitComponent{}
	}
	_, err := r.coll.InsertOne(ctx, post)
	return err
}

func (r *mongoOutfits) Get(ctx context.Context, id string) (*models.OutfitPost, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}
	return findOne[models.OutfitPost](ctx, r.coll, bson.M{"_id": oid})
}

func (r *mongoOutfits) ListByUser(ctx context.Context, userID string) ([]models.OutfitPost, error) {
	return findAll[models.OutfitPost](ctx, r.coll, bson.M{"user_id": userID},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
}

func (r *mongoOutfits) ReplaceComponents(ctx context.Context, id string, components []models.OutfitComponent) error {
	if components == nil {
		components = []models.OutfitComponent{}
	}
	return r.update(ctx, id, bson.M{"$set": bson.M{"components": components, "updated_at": time.Now().UTC()}})
}

func (r *mongoOutfits) AppendComponent(ctx context.Context, id string, component models.OutfitComponent) error {
	return r.update(ctx, id, bson.M{
		"$push": bson.M{"components": component},
		"$set":  bson.M{"updated_at": time.Now().UTC()},
	})
}

func (r *mongoOutfits) Delete(ctx context.Context, id string) error {
	oid, err := objectID(id)
	if err != nil {
		return err
	}
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *mongoOutfits) update(ctx context.Context, id string, update bson.M) error {
	oid, err := objectID(id)
	if err != nil {
		return err
	}
	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": oid}, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}
