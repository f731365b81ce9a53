package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type JobStatus string

const (
	JobPending    JobStatus = "pending"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

// Terminal reports whether no further transition is allowed.
func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobFailed
}

type AnalysisJob struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"-"`
	JobID     string             `bson:"job_id" json:"job_id"`
	UserID    string             `bson:"user_id" json:"user_id"`
	Status    JobStatus          `bson:"status" json:"status"`
	ImageURL  string             `bson:"image_url" json:"image_url"`
	Filename  string             `bson:"filename" json:"filename"`
	Result    *AnalysisResult    `bson:"result" json:"result"`
	Error     string             `bson:"error,omitempty" json:"error,omitempty"`
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time          `bson:"updated_at" json:"updated_at"`
}

type AnalysisResult struct {
	AnnotatedImageBase64 string      `bson:"annotated_image_base64" json:"annotated_image_base64"`
	Components           []Component `bson:"components" json:"components"`
}

// Component is one detected garment region and what was found for it.
type Component struct {
	Name             string      `bson:"name" json:"name"`
	Score            float64     `bson:"score" json:"score"`
	Box              BoundingBox `bson:"box" json:"box"`
	DominantColor    [3]uint8    `bson:"dominant_color" json:"dominant_color"`
	ColorName        string      `bson:"color_name" json:"color_name"`
	OriginalImageURL string      `bson:"original_image_url" json:"original_image_url"`
	BgRemovedURL     string      `bson:"bg_removed_url" json:"bg_removed_url"`
	ClothingItems    []Product   `bson:"clothing_items" json:"clothing_items"`
	SimilarQueries   []string    `bson:"similar_queries" json:"similar_queries"`
}

// Product is a catalogue match returned by visual or shopping search.
type Product struct {
	Title     string `bson:"title" json:"title"`
	Link      string `bson:"link" json:"link"`
	Price     string `bson:"price" json:"price"`
	Thumbnail string `bson:"thumbnail" json:"thumbnail"`
	Source    string `bson:"source,omitempty" json:"source,omitempty"`
	Rating    string `bson:"rating,omitempty" json:"rating,omitempty"`
	Reviews   string `bson:"reviews,omitempty" json:"reviews,omitempty"`
}
