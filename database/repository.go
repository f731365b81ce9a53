package database

import (
	"context"
	"errors"
	"time"

	"openfashion/models"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("duplicate")
	// ErrStaleState means a conditional job transition did not match.
	ErrStaleState = errors.New("job is not in the expected state")
)

// SubscriptionUpdate sets only the non-nil fields.
type SubscriptionUpdate struct {
	Status              *string
	Tier                *string
	CustomerID          *string
	SubscriptionID      *string
	EndDate             *time.Time
	ClearEndDate        bool
	PendingCancellation *bool
}

type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByUsername(ctx context.Context, username string) (*models.User, error)
	FindByStripeCustomer(ctx context.Context, customerID string) (*models.User, error)
	Search(ctx context.Context, query string, limit int) ([]models.User, error)
	UpdateProfile(ctx context.Context, email string, upd models.ProfileUpdate) (*models.User, error)
	// LinkGoogle records the Google account id and switches the provider.
	LinkGoogle(ctx context.Context, email, googleID string) error
	Follow(ctx context.Context, follower, target string) error
	Unfollow(ctx context.Context, follower, target string) error

	SetSubscriptionByEmail(ctx context.Context, email string, upd SubscriptionUpdate) error
	SetSubscriptionByCustomer(ctx context.Context, customerID string, upd SubscriptionUpdate) error

	ResetWeeklyUploads(ctx context.Context, email string, nextReset time.Time) error
	IncrementWeeklyUploads(ctx context.Context, email string, resetIfMissing time.Time) error
	ResetFashionSearches(ctx context.Context, email string) error
	IncrementFashionSearches(ctx context.Context, email string, at time.Time) error
}

type ClosetRepository interface {
	Add(ctx context.Context, item *models.ClosetItem) error
	Get(ctx context.Context, id string) (*models.ClosetItem, error)
	ListByUser(ctx context.Context, userID string) ([]models.ClosetItem, error)
	UpdateByLink(ctx context.Context, userID string, item models.ClosetItem) error
	DeleteByLink(ctx context.Context, userID, link, category string) error
}

type WishlistRepository interface {
	Add(ctx context.Context, item *models.WishlistItem) error
	ListByUser(ctx context.Context, userID string, skip, limit int) ([]models.WishlistItem, error)
	Delete(ctx context.Context, id, userID string) error
	Like(ctx context.Context, id string) error
	Discover(ctx context.Context, filter models.WishlistFilter) ([]models.WishlistItem, error)
}

type OutfitRepository interface {
	Create(ctx context.Context, post *models.OutfitPost) error
	Get(ctx context.Context, id string) (*models.OutfitPost, error)
	ListByUser(ctx context.Context, userID string) ([]models.OutfitPost, error)
	ReplaceComponents(ctx context.Context, id string, components []models.OutfitComponent) error
	AppendComponent(ctx context.Context, id string, component models.OutfitComponent) error
	Delete(ctx context.Context, id string) error
}

type QuizRepository interface {
	Create(ctx context.Context, quiz *models.StyleQuiz) error
	HasCompleted(ctx context.Context, userID string) (bool, error)
	// Active returns the newest quiz that is neither completed nor archived.
	Active(ctx context.Context, userID string) (*models.StyleQuiz, error)
	// Current returns the newest quiz that is not archived.
	Current(ctx context.Context, userID string) (*models.StyleQuiz, error)
	AddResponse(ctx context.Context, userID string, resp models.QuizResponse) error
	MarkCompleted(ctx context.Context, id string) error
	ArchiveAll(ctx context.Context, userID string) error
}

type ProfileRepository interface {
	Get(ctx context.Context, userID string) (*models.StyleProfile, error)
	Upsert(ctx context.Context, profile *models.StyleProfile) error
}

type InteractionRepository interface {
	Add(ctx context.Context, interaction *models.Interaction) error
	Recent(ctx context.Context, userID string, limit int) ([]models.Interaction, error)
	RecentOfType(ctx context.Context, userID, interactionType string, limit int) ([]models.Interaction, error)
}

type JobRepository interface {
	Create(ctx context.Context, job *models.AnalysisJob) error
	Get(ctx context.Context, jobID string) (*models.AnalysisJob, error)
	// ListByUser returns the newest jobs first.
	ListByUser(ctx context.Context, userID string, limit int) ([]models.AnalysisJob, error)
	ListByStatus(ctx context.Context, status models.JobStatus) ([]models.AnalysisJob, error)
	// Transition moves a job from one status to another only if it is
	// currently in from. It returns ErrStaleState otherwise.
	Transition(ctx context.Context, jobID string, from, to models.JobStatus, result *models.AnalysisResult, errText string) error
	Delete(ctx context.Context, jobID, userID string) error
}

type PushRepository interface {
	Save(ctx context.Context, sub *models.PushSubscription) error
	Get(ctx context.Context, userID string) (*models.PushSubscription, error)
	Delete(ctx context.Context, userID string) error
}

// Store groups one repository per collection.
type Store struct {
	Users        UserRepository
	Closet       ClosetRepository
	Wishlist     WishlistRepository
	Outfits      OutfitRepository
	Quizzes      QuizRepository
	Profiles     ProfileRepository
	Interactions InteractionRepository
	Jobs         JobRepository
	Push         PushRepository
}
