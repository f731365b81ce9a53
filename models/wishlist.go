package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type WishlistItem struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID    string             `bson:"user_id" json:"user_id"`
	Title     string             `bson:"title" json:"title"`
	Category  string             `bson:"category" json:"category"`
	Price     string             `bson:"price" json:"price"`
	Link      string             `bson:"link" json:"link"`
	Thumbnail string             `bson:"thumbnail" json:"thumbnail"`
	Source    string             `bson:"source,omitempty" json:"source,omitempty"`
	Likes     int                `bson:"likes" json:"likes"`
	Saves     int                `bson:"saves" json:"saves"`
	Tags      []string           `bson:"tags" json:"tags"`
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
}

// WishlistFilter drives the discover listing.
type WishlistFilter struct {
	Category string
	Tags     []string
	Skip     int
	Limit    int
}
