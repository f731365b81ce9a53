package billing

import "openfashion/models"

const (
	TierBasic   = "basic"
	TierPremium = "premium"

	// FreeWeeklyUploads is the basic-tier image analysis allowance.
	FreeWeeklyUploads = 3
	// FreeWeeklySearches is the basic-tier fashion search allowance.
	FreeWeeklySearches = 3
)

func intPtr(n int) *int { return &n }

var tiers = []models.SubscriptionTier{
	{
		ID:       TierBasic,
		Name:     "Basic",
		Price:    0,
		Currency: "usd",
		Interval: "month",
		Features: []string{
			"3 uploads per week",
			"Basic image analysis",
			"Standard support",
		},
		UploadLimit: intPtr(FreeWeeklyUploads),
		Description: "Perfect for getting started",
	},
	{
		ID:       TierPremium,
		Name:     "Premium",
		Price:    5,
		Currency: "usd",
		Interval: "month",
		Features: []string{
			"Unlimited uploads",
			"Advanced search features",
			"Priority support",
			"No SerpAPI restrictions",
		},
		Description: "Unlock all features",
	},
}

// legacy price identifiers older frontends still send as tier ids.
var tierAliases = map[string]string{
	"price_basic_monthly":   TierBasic,
	"price_premium_monthly": TierPremium,
}

// Tiers returns a copy of the published plans.
func Tiers() []models.SubscriptionTier {
	out := make([]models.SubscriptionTier, len(tiers))
	copy(out, tiers)
	return out
}

// Tier resolves a tier id or one of its aliases.
func Tier(id string) (models.SubscriptionTier, bool) {
	if alias, ok := tierAliases[id]; ok {
		id = alias
	}
	for _, t := range tiers {
		if t.ID == id {
			return t, true
		}
	}
	return models.SubscriptionTier{}, false
}
