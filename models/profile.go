package models

// Profile is the public view of a user returned by the users routes.
type Profile struct {
	ID          string   `json:"id"`
	Email       string   `json:"email"`
	Username    string   `json:"username"`
	Name        string   `json:"name,omitempty"`
	DisplayName string   `json:"display_name,omitempty"`
	AvatarURL   string   `json:"avatar_url,omitempty"`
	Bio         string   `json:"bio,omitempty"`
	Followers   []string `json:"followers"`
	Following   []string `json:"following"`
	NeedsQuiz   bool     `json:"needs_quiz"`
}

// ProfileUpdate carries the optional fields of PUT /user/profile.
type ProfileUpdate struct {
	DisplayName *string `json:"display_name"`
	AvatarURL   *string `json:"avatar_url"`
	Bio         *string `json:"bio"`
}
