package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"openfashion/database"
	"openfashion/models"
)

var (
	// ErrQuotaExceeded is returned when a basic user has used the weekly allowance.
	ErrQuotaExceeded = errors.New("weekly quota exceeded")
	// ErrBillingDisabled means no payment processor key is configured.
	ErrBillingDisabled = errors.New("billing is not configured")
)

const quotaWindow = 7 * 24 * time.Hour

var (
	UploadLimitMessage = fmt.Sprintf("Weekly upload limit of %d reached. Upgrade to premium for unlimited uploads.", FreeWeeklyUploads)
	SearchLimitMessage = fmt.Sprintf("You've reached your weekly search limit of %d searches. Upgrade to premium for unlimited searches.", FreeWeeklySearches)
)

// Quota enforces the weekly allowances of basic-tier users.
type Quota struct {
	users database.UserRepository
	now   func() time.Time
}

func NewQuota(users database.UserRepository) *Quota {
	return &Quota{users: users, now: time.Now}
}

// CheckUpload reports whether email may start another analysis. A reset
// date in the past zeroes the counter and starts a new window.
func (q *Quota) CheckUpload(ctx context.Context, email string) (models.UploadAllowance, error) {
	user, err := q.users.FindByEmail(ctx, email)
	if err != nil {
		return models.UploadAllowance{}, err
	}
	if user.IsPremium() {
		return models.UploadAllowance{CanUpload: true, Reason: "Premium user"}, nil
	}

	now := q.now().UTC()
	used := user.WeeklyUploadsUsed
	if reset := user.WeeklyUploadsResetDate; reset != nil && now.After(*reset) {
		if err := q.users.ResetWeeklyUploads(ctx, email, now.Add(quotaWindow)); err != nil {
			return models.UploadAllowance{}, fmt.Errorf("reset weekly uploads: %w", err)
		}
		used = 0
	}

	if used >= FreeWeeklyUploads {
		return models.UploadAllowance{
			Reason:       "Weekly upload limit reached",
			UploadsUsed:  used,
			UploadsLimit: FreeWeeklyUploads,
		}, nil
	}
	return models.UploadAllowance{
		CanUpload:    true,
		Reason:       "Within weekly limit",
		UploadsUsed:  used,
		UploadsLimit: FreeWeeklyUploads,
	}, nil
}

// RequireUpload is CheckUpload folded into ErrQuotaExceeded.
func (q *Quota) RequireUpload(ctx context.Context, email string) error {
	allowance, err := q.CheckUpload(ctx, email)
	if err != nil {
		return err
	}
	if !allowance.CanUpload {
		return ErrQuotaExceeded
	}
	return nil
}

// RecordUpload counts one finished analysis.
func (q *Quota) RecordUpload(ctx context.Context, email string) error {
	return q.users.IncrementWeeklyUploads(ctx, email, q.now().UTC().Add(quotaWindow))
}

// CheckSearch returns the fashion search allowance. The counter restarts
// when the last search is a week old or fell in a different ISO week.
func (q *Quota) CheckSearch(ctx context.Context, email string) (models.SearchAllowance, error) {
	user, err := q.users.FindByEmail(ctx, email)
	if err != nil {
		return models.SearchAllowance{}, err
	}
	if user.IsPremium() {
		return models.SearchAllowance{Limit: -1, Remaining: -1, Subscription: models.SubscriptionPremium}, nil
	}

	used := user.FashionSearchesUsed
	if last := user.LastFashionSearchDate; last != nil && used > 0 && newSearchWeek(*last, q.now()) {
		if err := q.users.ResetFashionSearches(ctx, email); err != nil {
			return models.SearchAllowance{}, fmt.Errorf("reset fashion searches: %w", err)
		}
		used = 0
	}

	remaining := FreeWeeklySearches - used
	if remaining < 0 {
		remaining = 0
	}
	return models.SearchAllowance{
		Limit:        FreeWeeklySearches,
		Used:         used,
		Remaining:    remaining,
		Subscription: models.SubscriptionBasic,
	}, nil
}

// RecordSearch counts one search. Premium searches are not counted.
func (q *Quota) RecordSearch(ctx context.Context, email string, allowance models.SearchAllowance) error {
	if allowance.Subscription == models.SubscriptionPremium {
		return nil
	}
	return q.users.IncrementFashionSearches(ctx, email, q.now().UTC())
}

func newSearchWeek(last, now time.Time) bool {
	lastDay := truncateDay(last)
	today := truncateDay(now)
	if today.Sub(lastDay) >= quotaWindow {
		return true
	}
	_, lastWeek := lastDay.ISOWeek()
	_, thisWeek := today.ISOWeek()
	return lastWeek != thisWeek
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
