package models

type SubscriptionTier struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Price       float64  `json:"price"`
	Currency    string   `json:"currency"`
	Interval    string   `json:"interval"`
	Features    []string `json:"features"`
	UploadLimit *int     `json:"upload_limit"`
	Description string   `json:"description"`
}

// UploadAllowance is the answer to "may this user upload now".
type UploadAllowance struct {
	CanUpload    bool   `json:"can_upload"`
	Reason       string `json:"reason"`
	UploadsUsed  int    `json:"uploads_used"`
	UploadsLimit int    `json:"uploads_limit"`
}

// SearchAllowance mirrors UploadAllowance for fashion search. -1 means unlimited.
type SearchAllowance struct {
	Limit        int    `json:"limit"`
	Used         int    `json:"used"`
	Remaining    int    `json:"remaining"`
	Subscription string `json:"subscription"`
}
