// Package stylequiz holds the onboarding style quiz question bank.
package stylequiz

import "openfashion/models"

var questions = []models.QuizQuestion{
	{
		ID:       "age_range",
		Question: "Which age range do you belong to?",
		Options:  []string{
			"Under 18",
			"18–24",
			"25–34",
			"35–44",
			"45–54",
			"55+",
		},
		Type: "multiple_choice",
	},
	{
		ID:       "gender",
		Question: "What is your gender identity?",
		Options:  []string{
			"Female",
			"Male",
			"Non-binary / Third gender",
			"Prefer not to say",
			"Other",
		},
		Type: "multiple_choice",
	},
	{
		ID:       "primary_style",
		Question: "Which overarching style label best describes your vibe?",
		Options:  []string{
			"Minimalist",
			"Streetwear",
			"Casual Chic",
			"Bohemian",
			"Athletic / Sporty",
			"Vintage / Retro",
			"High Fashion / Avant-Garde",
			"Preppy / Classic",
			"Eclectic / Experimental",
		},
		Type: "multiple_choice",
	},
	{
		ID:       "silhouette_preference",
		Question: "What kind of silhouettes do you gravitate toward?",
		Options:  []string{
			"Tailored & structured",
			"Oversized & relaxed",
			"Form-fitting & body-conscious",
			"Flowy & drapey",
			"Layered & textured",
			"Monochrome block shapes",
		},
		Type: "multiple_choice",
	},
	{
		ID:       "color_palette",
		Question: "Which color palette speaks to you most?",
		Options:  []string{
			"Neutrals (black, white, gray, beige)",
			"Bold primaries (red, blue, yellow)",
			"Soft pastels (pink, mint, lavender)",
			"Earth tones (olive, brown, rust)",
			"Jewel tones (emerald, sapphire, ruby)",
			"High-contrast (black & white only)",
		},
		Type: "multiple_choice",
	},
	{
		ID:       "pattern_prints",
		Question: "How do you feel about patterns and prints?",
		Options:  []string{
			"All-over bold prints (florals, geometrics)",
			"Subtle textures (pinstripes, tweed)",
			"Graphic logos & slogans",
			"Color-blocking",
			"I prefer solids only",
		},
		Type: "multiple_choice",
	},
	{
		ID:       "material_preference",
		Question: "Which fabrics make you feel most comfortable?",
		Options:  []string{
			"Breathable cotton / linen",
			"Stretchy knits / jersey",
			"Denim / canvas",
			"Silk / satin",
			"Leather / faux leather",
			"Technical / performance fabrics",
		},
		Type: "multiple_choice",
	},
	{
		ID:       "comfort_vs_style",
		Question: "On a scale of 1–5, how much do you prioritize comfort over trendiness?",
		Type:     "rating",
		Scale:    []int{1, 2, 3, 4, 5},
	},
	{
		ID:       "price_sensitivity",
		Question: "What’s your typical budget per clothing item?",
		Options:  []string{
			"Under $50",
			"$50–$100",
			"$100–$200",
			"$200–$500",
			"Luxury ($500+)",
		},
		Type: "multiple_choice",
	},
	{
		ID:       "brand_loyalty",
		Question: "Which of these statements best reflects your brand approach?",
		Options:  []string{
			"I stick to favorite brands/designers",
			"I mix high-end & high-street",
			"I chase new emerging labels",
			"I prefer sustainable / ethical brands",
			"Brands don’t matter to me",
		},
		Type: "multiple_choice",
	},
	{
		ID:       "sustainability",
		Question: "How important is sustainability / eco-friendly production?",
		Options:  []string{
			"Top priority",
			"Somewhat important",
			"Neutral",
			"Not a concern",
		},
		Type: "multiple_choice",
	},
	{
		ID:       "season_focus",
		Question: "Which season’s wardrobe are you building right now?",
		Options:  []string{
			"Spring",
			"Summer",
			"Fall",
			"Winter",
			"All-season staples",
		},
		Type: "multiple_choice",
	},
	{
		ID:       "wardrobe_gaps",
		Question: "Which items are you most looking to add or improve? (Select up to 3)",
		Options:  []string{
			"Outerwear (coats, jackets)",
			"Tops (tees, blouses)",
			"Bottoms (jeans, trousers)",
			"Dresses / Jumpsuits",
			"Footwear",
			"Accessories (bags, hats, jewelry)",
		},
		Type: "multi_select",
	},
	{
		ID:       "inspiration_sources",
		Question: "Who or what influences your style the most? (e.g., celebrity, Instagram accounts, subculture, era)",
		Type:     "text",
	},
	{
		ID:       "favorite_outfit",
		Question: "Describe your go-to favorite outfit in a few sentences.",
		Type:     "text",
	},
	{
		ID:       "style_challenges",
		Question: "What style challenges would you like to solve? (e.g., fit, color coordination, outfit ideas)",
		Type:     "text",
	},
	{
		ID:       "shopping_frequency",
		Question: "How often do you shop for clothes?",
		Options:  []string{
			"Weekly",
			"Monthly",
			"Seasonally",
			"Rarely (few times a year)",
		},
		Type: "multiple_choice",
	},
	{
		ID:       "event_focus",
		Question: "What occasions do you dress for most often?",
		Options:  []string{
			"Everyday casual",
			"Work / Professional",
			"Night out / Social",
			"Athletic / Active",
			"Special events (weddings, parties)",
		},
		Type: "multiple_choice",
	},
	{
		ID:       "fit_pic_importance",
		Question: "How important is looking “Instagram-ready” or like a “fit pic”?",
		Options:  []string{
			"Very important",
			"Somewhat important",
			"Neutral",
			"Not important",
		},
		Type: "multiple_choice",
	},
	{
		ID:       "info_opt_in",
		Question: "Would you like personalized style tips and trend alerts via email or in-app notifications?",
		Options:  []string{
			"Yes, both email & in-app",
			"Only email",
			"Only in-app",
			"No, thank you",
		},
		Type: "multiple_choice",
	},
}

// Questions returns the quiz in display order.
func Questions() []models.QuizQuestion {
	out := make([]models.QuizQuestion, len(questions))
	copy(out, questions)
	return out
}

// Known reports whether id names a quiz question.
func Known(id string) bool {
	for _, q := range questions {
		if q.ID == id {
			return true
		}
	}
	return false
}
