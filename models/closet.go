package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type ClosetItem struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID    string             `bson:"user_id" json:"user_id"`
	Name      string             `bson:"name" json:"name"`
	Category  string             `bson:"category" json:"category"`
	Price     string             `bson:"price" json:"price"`
	Link      string             `bson:"link" json:"link"`
	Thumbnail string             `bson:"thumbnail" json:"thumbnail"`
	Tags      []string           `bson:"tags,omitempty" json:"tags,omitempty"`
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
}

// ClosetGroup is one category bucket of the grouped closet view.
type ClosetGroup struct {
	Name          string       `json:"name"`
	ImageURL      string       `json:"image_url"`
	ClothingItems []ClosetItem `json:"clothing_items"`
}

const closetGroupPreview = 6

// GroupCloset buckets items by category in first-seen order. Each bucket
// shows at most six items and uses the first item's thumbnail as cover.
func GroupCloset(items []ClosetItem) []ClosetGroup {
	index := map[string]int{}
	groups := []ClosetGroup{}
	all := map[string][]ClosetItem{}
	for _, item := range items {
		if _, ok := index[item.Category]; !ok {
			index[item.Category] = len(groups)
			groups = append(groups, ClosetGroup{Name: item.Category})
		}
		all[item.Category] = append(all[item.Category], item)
	}
	for i := range groups {
		bucket := all[groups[i].Name]
		groups[i].ImageURL = bucket[0].Thumbnail
		if len(bucket) > closetGroupPreview {
			bucket = bucket[:closetGroupPreview]
		}
		groups[i].ClothingItems = bucket
	}
	return groups
}
