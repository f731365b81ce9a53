package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"openfashion/logger"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

const (
	UsersCollection        = "users"
	ClosetsCollection      = "closets"
	WishlistsCollection    = "wishlists"
	OutfitsCollection      = "outfit_posts"
	QuizzesCollection      = "style_quizzes"
	ProfilesCollection     = "style_profiles"
	InteractionsCollection = "user_interactions"
	JobsCollection         = "analysis_jobs"
	PushCollection         = "push_subscriptions"
)

// Connect dials MongoDB, retrying a few times, and pings the server.
func Connect(ctx context.Context, uri string, attempts int) (*mongo.Client, error) {
	var lastErr error
	for i := 1; i <= attempts; i++ {
		client, err := dial(ctx, uri)
		if err == nil {
			logger.Get().Info("Connected to MongoDB")
			return client, nil
		}
		lastErr = err
		logger.Get().Warn("MongoDB connection attempt failed", zap.Int("attempt", i), zap.Error(err))
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(2 * time.Second):
		}
	}
	return nil, fmt.Errorf("connect mongo: %w", lastErr)
}

func dial(ctx context.Context, uri string) (*mongo.Client, error) {
	cctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	client, err := mongo.Connect(cctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(cctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return client, nil
}

func Disconnect(client *mongo.Client) error {
	if client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := client.Disconnect(ctx); err != nil {
		return err
	}
	logger.Get().Info("Disconnected from MongoDB")
	return nil
}

// EnsureIndexes creates the unique and lookup indexes the repositories rely on.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	specs := map[string][]mongo.IndexModel{
		UsersCollection: {
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "username", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "stripe_customer_id", Value: 1}}},
		},
		ClosetsCollection: {
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "link", Value: 1}}},
		},
		WishlistsCollection: {
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "link", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "likes", Value: -1}}},
		},
		OutfitsCollection: {
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}}},
		},
		QuizzesCollection: {
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}}},
		},
		ProfilesCollection: {
			{Keys: bson.D{{Key: "user_id", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		InteractionsCollection: {
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}}},
		},
		JobsCollection: {
			{Keys: bson.D{{Key: "job_id", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}}},
			{Keys: bson.D{{Key: "status", Value: 1}}},
		},
		PushCollection: {
			{Keys: bson.D{{Key: "user_id", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
	}
	for coll, indexes := range specs {
		if _, err := db.Collection(coll).Indexes().CreateMany(ctx, indexes); err != nil {
			return fmt.Errorf("create indexes on %s: %w", coll, err)
		}
	}
	return nil
}

// NewMongoStore wires every repository to its collection in db.
func NewMongoStore(db *mongo.Database) *Store {
	return &Store{
		Users:        &mongoUsers{coll: db.Collection(UsersCollection)},
		Closet:       &mongoCloset{coll: db.Collection(ClosetsCollection)},
		Wishlist:     &mongoWishlist{coll: db.Collection(WishlistsCollection)},
		Outfits:      &mongoOutfits{coll: db.Collection(OutfitsCollection)},
		Quizzes:      &mongoQuizzes{coll: db.Collection(QuizzesCollection)},
		Profiles:     &mongoProfiles{coll: db.Collection(ProfilesCollection)},
		Interactions: &mongoInteractions{coll: db.Collection(InteractionsCollection)},
		Jobs:         &mongoJobs{coll: db.Collection(JobsCollection)},
		Push:         &mongoPush{coll: db.Collection(PushCollection)},
	}
}

func objectID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, ErrNotFound
	}
	return oid, nil
}

func findOne[T any](ctx context.Context, coll *mongo.Collection, filter interface{}, opts ...*options.FindOneOptions) (*T, error) {
	var out T
	err := coll.FindOne(ctx, filter, opts...).Decode(&out)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func findAll[T any](ctx context.Context, coll *mongo.Collection, filter interface{}, opts ...*options.FindOptions) ([]T, error) {
	cursor, err := coll.Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	out := []T{}
	if err := cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
