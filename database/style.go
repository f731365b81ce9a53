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

var newestFirst = bson.D{{Key: "created_at", Value: -1}}

type mongoQuizzes struct {
	coll *mongo.Collection
}

func (r *mongoQuizzes) Create(ctx context.Context, quiz *models.StyleQuiz) error {
	if quiz.ID.IsZero() {
		quiz.ID = primitive.NewObjectID()
	}
	if quiz.Responses == nil {
		quiz.Responses = []models.QuizResponse{}
	}
	_, err := r.coll.InsertOne(ctx, quiz)
	return err
}

func (r *mongoQuizzes) HasCompleted(ctx context.Context, userID string) (bool, error) {
	n, err := r.coll.CountDocuments(ctx, bson.M{"user_id": userID, "completed": true, "archived": bson.M{"$ne": true}})
	return n > 0, err
}

func (r *mongoQuizzes) Active(ctx context.Context, userID string) (*models.StyleQuiz, error) {
	return findOne[models.StyleQuiz](ctx, r.coll,
		bson.M{"user_id": userID, "completed": false, "archived": bson.M{"$ne": true}},
		options.FindOne().SetSort(newestFirst))
}

func (r *mongoQuizzes) Current(ctx context.Context, userID string) (*models.StyleQuiz, error) {
	return findOne[models.StyleQuiz](ctx, r.coll,
		bson.M{"user_id": userID, "archived": bson.M{"$ne": true}},
		options.FindOne().SetSort(newestFirst))
}

// AddResponse appends to the active quiz, replacing any earlier answer to
// the same question.
func (r *mongoQuizzes) AddResponse(ctx context.Context, userID string, resp models.QuizResponse) error {
	quiz, err := r.Active(ctx, userID)
	if err != nil {
		return err
	}
	if _, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": quiz.ID},
		bson.M{"$pull": bson.M{"responses": bson.M{"question_id": resp.QuestionID}}},
	); err != nil {
		return err
	}
	_, err = r.coll.UpdateOne(ctx, bson.M{"_id": quiz.ID}, bson.M{"$push": bson.M{"responses": resp}})
	return err
}

func (r *mongoQuizzes) MarkCompleted(ctx context.Context, id string) error {
	oid, err := objectID(id)
	if err != nil {
		return err
	}
	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": bson.M{"completed": true}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *mongoQuizzes) ArchiveAll(ctx context.Context, userID string) error {
	_, err := r.coll.UpdateMany(ctx, bson.M{"user_id": userID}, bson.M{"$set": bson.M{"archived": true}})
	return err
}

type mongoProfiles struct {
	coll *mongo.Collection
}

func (r *mongoProfiles) Get(ctx context.Context, userID string) (*models.StyleProfile, error) {
	return findOne[models.StyleProfile](ctx, r.coll, bson.M{"user_id": userID})
}

func (r *mongoProfiles) Upsert(ctx context.Context, profile *models.StyleProfile) error {
	now := time.Now().UTC()
	profile.UpdatedAt = now
	_, err := r.coll.UpdateOne(ctx,
		bson.M{"user_id": profile.UserID},
		bson.M{
			"$set": bson.M{
				"style_summary":     profile.StyleSummary,
				"style_preferences": profile.StylePreferences,
				"updated_at":        now,
			},
			"$setOnInsert": bson.M{"created_at": now},
		},
		options.Update().SetUpsert(true),
	)
	return err
}

type mongoInteractions struct {
	coll *mongo.Collection
}

func (r *mongoInteractions) Add(ctx context.Context, interaction *models.Interaction) error {
	if interaction.ID.IsZero() {
		interaction.ID = primitive.NewObjectID()
	}
	if interaction.CreatedAt.IsZero() {
		interaction.CreatedAt = time.Now().UTC()
	}
	_, err := r.coll.InsertOne(ctx, interaction)
	return err
}

func (r *mongoInteractions) Recent(ctx context.Context, userID string, limit int) ([]models.Interaction, error) {
	return findAll[models.Interaction](ctx, r.coll, bson.M{"user_id": userID},
		options.Find().SetSort(newestFirst).SetLimit(int64(limit)))
}

func (r *mongoInteractions) RecentOfType(ctx context.Context, userID, interactionType string, limit int) ([]models.Interaction, error) {
	return findAll[models.Interaction](ctx, r.coll,
		bson.M{"user_id": userID, "interaction_type": interactionType},
		options.Find().SetSort(newestFirst).SetLimit(int64(limit)))
}
