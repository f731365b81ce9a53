package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	SubscriptionBasic   = "basic"
	SubscriptionPremium = "premium"
)

type User struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Email        string             `bson:"email" json:"email"`
	Username     string             `bson:"username" json:"username"`
	PasswordHash string             `bson:"password,omitempty" json:"-"`
	Name         string             `bson:"name,omitempty" json:"name,omitempty"`
	DisplayName  string             `bson:"display_name,omitempty" json:"display_name,omitempty"`
	AvatarURL    string             `bson:"avatar_url,omitempty" json:"avatar_url,omitempty"`
	Bio          string             `bson:"bio,omitempty" json:"bio,omitempty"`
	AuthProvider string             `bson:"auth_provider" json:"auth_provider"`
	GoogleID     string             `bson:"google_id,omitempty" json:"-"`

	// Both lists hold usernames.
	Followers []string `bson:"followers" json:"followers"`
	Following []string `bson:"following" json:"following"`

	SubscriptionStatus   string     `bson:"subscription_status" json:"subscription_status"`
	SubscriptionTier     string     `bson:"subscription_tier" json:"subscription_tier"`
	SubscriptionEndDate  *time.Time `bson:"subscription_end_date" json:"subscription_end_date,omitempty"`
	StripeCustomerID     string     `bson:"stripe_customer_id,omitempty" json:"-"`
	StripeSubscriptionID string     `bson:"stripe_subscription_id,omitempty" json:"-"`
	PendingCancellation  bool       `bson:"pending_cancellation" json:"pending_cancellation"`

	WeeklyUploadsUsed      int        `bson:"weekly_uploads_used" json:"weekly_uploads_used"`
	WeeklyUploadsResetDate *time.Time `bson:"weekly_uploads_reset_date" json:"weekly_uploads_reset_date,omitempty"`

	FashionSearchesUsed   int        `bson:"fashion_searches_used" json:"fashion_searches_used"`
	LastFashionSearchDate *time.Time `bson:"last_fashion_search_date" json:"last_fashion_search_date,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}

func (u *User) IsPremium() bool {
	return u.SubscriptionStatus == SubscriptionPremium
}

// Public strips credentials and billing identifiers.
func (u *User) Public() Profile {
	return Profile{
		ID:          u.ID.Hex(),
		Email:       u.Email,
		Username:    u.Username,
		Name:        u.Name,
		DisplayName: u.DisplayName,
		AvatarURL:   u.AvatarURL,
		Bio:         u.Bio,
		Followers:   nonNil(u.Followers),
		Following:   nonNil(u.Following),
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
