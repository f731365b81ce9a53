package database

import (
	"context"
	"regexp"
	"time"

	"openfashion/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type mongoUsers struct {
	coll *mongo.Collection
}

func (r *mongoUsers) Create(ctx context.Context, user *models.User) error {
	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	_, err := r.coll.InsertOne(ctx, user)
	if mongo.IsDuplicateKeyError(err) {
		return ErrDuplicate
	}
	return err
}

func (r *mongoUsers) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return findOne[models.User](ctx, r.coll, bson.M{"email": email})
}

func (r *mongoUsers) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	return findOne[models.User](ctx, r.coll, bson.M{"username": username})
}

func (r *mongoUsers) FindByStripeCustomer(ctx context.Context, customerID string) (*models.User, error) {
	return findOne[models.User](ctx, r.coll, bson.M{"stripe_customer_id": customerID})
}

func (r *mongoUsers) Search(ctx context.Context, query string, limit int) ([]models.User, error) {
	pattern := primitiveRegex(query)
	filter := bson.M{"$or": []bson.M{
		{"username": pattern},
		{"display_name": pattern},
	}}
	return findAll[models.User](ctx, r.coll, filter, options.Find().SetLimit(int64(limit)))
}

func (r *mongoUsers) UpdateProfile(ctx context.Context, email string, upd models.ProfileUpdate) (*models.User, error) {
	set := bson.M{}
	if upd.DisplayName != nil {
		set["display_name"] = *upd.DisplayName
	}
	if upd.AvatarURL != nil {
		set["avatar_url"] = *upd.AvatarURL
	}
	if upd.Bio != nil {
		set["bio"] = *upd.Bio
	}
	if len(set) > 0 {
		res, err := r.coll.UpdateOne(ctx, bson.M{"email": email}, bson.M{"$set": set})
		if err != nil {
			return nil, err
		}
		if res.MatchedCount == 0 {
			return nil, ErrNotFound
		}
	}
	return r.FindByEmail(ctx, email)
}

func (r *mongoUsers) LinkGoogle(ctx context.Context, email, googleID string) error {
	return r.updateExisting(ctx, bson.M{"email": email}, bson.M{"$set": bson.M{
		"google_id":     googleID,
		"auth_provider": "google",
	}})
}

func (r *mongoUsers) Follow(ctx context.Context, follower, target string) error {
	if _, err := r.coll.UpdateOne(ctx, bson.M{"username": follower}, bson.M{"$addToSet": bson.M{"following": target}}); err != nil {
		return err
	}
	_, err := r.coll.UpdateOne(ctx, bson.M{"username": target}, bson.M{"$addToSet": bson.M{"followers": follower}})
	return err
}

func (r *mongoUsers) Unfollow(ctx context.Context, follower, target string) error {
	if _, err := r.coll.UpdateOne(ctx, bson.M{"username": follower}, bson.M{"$pull": bson.M{"following": target}}); err != nil {
		return err
	}
	_, err := r.coll.UpdateOne(ctx, bson.M{"username": target}, bson.M{"$pull": bson.M{"followers": follower}})
	return err
}

func (r *mongoUsers) SetSubscriptionByEmail(ctx context.Context, email string, upd SubscriptionUpdate) error {
	return r.setSubscription(ctx, bson.M{"email": email}, upd)
}

func (r *mongoUsers) SetSubscriptionByCustomer(ctx context.Context, customerID string, upd SubscriptionUpdate) error {
	return r.setSubscription(ctx, bson.M{"stripe_customer_id": customerID}, upd)
}

func (r *mongoUsers) setSubscription(ctx context.Context, filter bson.M, upd SubscriptionUpdate) error {
	set := subscriptionSet(upd)
	if len(set) == 0 {
		return nil
	}
	res, err := r.coll.UpdateOne(ctx, filter, bson.M{"$set": set})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func subscriptionSet(upd SubscriptionUpdate) bson.M {
	set := bson.M{}
	if upd.Status != nil {
		set["subscription_status"] = *upd.Status
	}
	if upd.Tier != nil {
		set["subscription_tier"] = *upd.Tier
	}
	if upd.CustomerID != nil {
		set["stripe_customer_id"] = *upd.CustomerID
	}
	if upd.SubscriptionID != nil {
		set["stripe_subscription_id"] = *upd.SubscriptionID
	}
	if upd.EndDate != nil {
		set["subscription_end_date"] = *upd.EndDate
	} else if upd.ClearEndDate {
		set["subscription_end_date"] = nil
	}
	if upd.PendingCancellation != nil {
		set["pending_cancellation"] = *upd.PendingCancellation
	}
	return set
}

func (r *mongoUsers) ResetWeeklyUploads(ctx context.Context, email string, nextReset time.Time) error {
	return r.updateExisting(ctx, bson.M{"email": email}, bson.M{"$set": bson.M{
		"weekly_uploads_used":       0,
		"weekly_uploads_reset_date": nextReset,
	}})
}

func (r *mongoUsers) IncrementWeeklyUploads(ctx context.Context, email string, resetIfMissing time.Time) error {
	if _, err := r.coll.UpdateOne(ctx,
		bson.M{"email": email, "weekly_uploads_reset_date": nil},
		bson.M{"$set": bson.M{"weekly_uploads_reset_date": resetIfMissing}},
	); err != nil {
		return err
	}
	return r.updateExisting(ctx, bson.M{"email": email}, bson.M{"$inc": bson.M{"weekly_uploads_used": 1}})
}

func (r *mongoUsers) ResetFashionSearches(ctx context.Context, email string) error {
	return r.updateExisting(ctx, bson.M{"email": email}, bson.M{"$set": bson.M{"fashion_searches_used": 0}})
}

func (r *mongoUsers) IncrementFashionSearches(ctx context.Context, email string, at time.Time) error {
	return r.updateExisting(ctx, bson.M{"email": email}, bson.M{
		"$inc": bson.M{"fashion_searches_used": 1},
		"$set": bson.M{"last_fashion_search_date": at},
	})
}

func (r *mongoUsers) updateExisting(ctx context.Context, filter, update bson.M) error {
	res, err := r.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// primitiveRegex builds a case-insensitive substring match with the user's
// input escaped.
func primitiveRegex(query string) bson.M {
	return bson.M{"$regex": regexp.QuoteMeta(query), "$options": "i"}
}
