package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type OutfitPost struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID     string             `bson:"user_id" json:"user_id"`
	Username   string             `bson:"username" json:"username"`
	ImageURL   string             `bson:"image_url" json:"image_url"`
	Caption    string             `bson:"caption" json:"caption"`
	Components []OutfitComponent  `bson:"components" json:"components"`
	CreatedAt  time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt  time.Time          `bson:"updated_at" json:"updated_at"`
}

// OutfitComponent is one garment tagged on an outfit photo, in display order.
type OutfitComponent struct {
	Name         string       `bson:"name" json:"name"`
	Category     string       `bson:"category" json:"category"`
	Box          *BoundingBox `bson:"box,omitempty" json:"box,omitempty"`
	ClosetItemID string       `bson:"closet_item_id,omitempty" json:"closet_item_id,omitempty"`
}

// BoundingBox is a pixel rectangle, max edges exclusive.
type BoundingBox struct {
	XMin int `bson:"x_min" json:"x_min"`
	YMin int `bson:"y_min" json:"y_min"`
	XMax int `bson:"x_max" json:"x_max"`
	YMax int `bson:"y_max" json:"y_max"`
}
