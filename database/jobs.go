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

type mongoJobs struct {
	coll *mongo.Collection
}

func (r *mongoJobs) Create(ctx context.Context, job *models.AnalysisJob) error {
	if job.ID.IsZero() {
		job.ID = primitive.NewObjectID()
	}
	_, err := r.coll.InsertOne(ctx, job)
	if mongo.IsDuplicateKeyError(err) {
		return ErrDuplicate
	}
	return err
}

func (r *mongoJobs) Get(ctx context.Context, jobID string) (*models.AnalysisJob, error) {
	return findOne[models.AnalysisJob](ctx, r.coll, bson.M{"job_id": jobID})
}

func (r *mongoJobs) ListByUser(ctx context.Context, userID string, limit int) ([]models.AnalysisJob, error) {
	opts := options.Find().SetSort(newestFirst)
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	return findAll[models.AnalysisJob](ctx, r.coll, bson.M{"user_id": userID}, opts)
}

func (r *mongoJobs) ListByStatus(ctx context.Context, status models.JobStatus) ([]models.AnalysisJob, error) {
	return findAll[models.AnalysisJob](ctx, r.coll, bson.M{"status": status},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
}

func (r *mongoJobs) Transition(ctx context.Context, jobID string, from, to models.JobStatus, result *models.AnalysisResult, errText string) error {
	set := bson.M{"status": to, "updated_at": time.Now().UTC()}
	if result != nil {
		set["result"] = result
	}
	if errText != "" {
		set["error"] = errText
	}
	res, err := r.coll.UpdateOne(ctx, bson.M{"job_id": jobID, "status": from}, bson.M{"$set": set})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrStaleState
	}
	return nil
}

func (r *mongoJobs) Delete(ctx context.Context, jobID, userID string) error {
	res, err := r.coll.DeleteOne(ctx, bson.M{"job_id": jobID, "user_id": userID})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}
