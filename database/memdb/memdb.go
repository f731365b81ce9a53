// Package memdb is an in-process implementation of the repositories, used by
// tests and by MONGO_URI=memory:// for local runs without MongoDB.
package memdb

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"openfashion/database"
	"openfashion/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// New returns a Store whose repositories share one lock.
func New() *database.Store {
	db := &memory{}
	return &database.Store{
		Users:        &users{db},
		Closet:       &closet{db},
		Wishlist:     &wishlist{db},
		Outfits:      &outfits{db},
		Quizzes:      &quizzes{db},
		Profiles:     &profiles{db},
		Interactions: &interactions{db},
		Jobs:         &jobs{db},
		Push:         &push{db},
	}
}

type memory struct {
	mu           sync.RWMutex
	users        []*models.User
	closet       []*models.ClosetItem
	wishlist     []*models.WishlistItem
	outfits      []*models.OutfitPost
	quizzes      []*models.StyleQuiz
	profiles     map[string]*models.StyleProfile
	interactions []*models.Interaction
	jobs         []*models.AnalysisJob
	push         map[string]*models.PushSubscription
}

func hexID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, database.ErrNotFound
	}
	return oid, nil
}

func window[T any](items []T, skip, limit int) []T {
	if skip >= len(items) {
		return []T{}
	}
	items = items[skip:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

type users struct{ *memory }

func (m *users) find(pred func(*models.User) bool) *models.User {
	for _, u := range m.users {
		if pred(u) {
			return u
		}
	}
	return nil
}

func (m *users) byUsername(name string) *models.User {
	return m.find(func(u *models.User) bool { return u.Username == name })
}

func (m *users) Create(_ context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.find(func(u *models.User) bool { return u.Email == user.Email || u.Username == user.Username }) != nil {
		return database.ErrDuplicate
	}
	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	cp := *user
	m.users = append(m.users, &cp)
	return nil
}

func (m *users) lookup(pred func(*models.User) bool) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u := m.find(pred)
	if u == nil {
		return nil, database.ErrNotFound
	}
	cp := *u
	cp.Followers = append([]string(nil), u.Followers...)
	cp.Following = append([]string(nil), u.Following...)
	return &cp, nil
}

func (m *users) FindByEmail(_ context.Context, email string) (*models.User, error) {
	return m.lookup(func(u *models.User) bool { return u.Email == email })
}

func (m *users) FindByUsername(_ context.Context, username string) (*models.User, error) {
	return m.lookup(func(u *models.User) bool { return u.Username == username })
}

func (m *users) FindByStripeCustomer(_ context.Context, customerID string) (*models.User, error) {
	return m.lookup(func(u *models.User) bool { return customerID != "" && u.StripeCustomerID == customerID })
}

func (m *users) Search(_ context.Context, query string, limit int) ([]models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	q := strings.ToLower(query)
	out := []models.User{}
	for _, u := range m.users {
		if strings.Contains(strings.ToLower(u.Username), q) || strings.Contains(strings.ToLower(u.DisplayName), q) {
			out = append(out, *u)
		}
	}
	return window(out, 0, limit), nil
}

func (m *users) UpdateProfile(ctx context.Context, email string, upd models.ProfileUpdate) (*models.User, error) {
	m.mu.Lock()
	u := m.find(func(u *models.User) bool { return u.Email == email })
	if u == nil {
		m.mu.Unlock()
		return nil, database.ErrNotFound
	}
	if upd.DisplayName != nil {
		u.DisplayName = *upd.DisplayName
	}
	if upd.AvatarURL != nil {
		u.AvatarURL = *upd.AvatarURL
	}
	if upd.Bio != nil {
		u.Bio = *upd.Bio
	}
	m.mu.Unlock()
	return m.FindByEmail(ctx, email)
}

func addUnique(list []string, v string) []string {
	for _, s := range list {
		if s == v {
			return list
		}
	}
	return append(list, v)
}

func remove(list []string, v string) []string {
	out := list[:0]
	for _, s := range list {
		if s != v {
			out = append(out, s)
		}
	}
	return out
}

func (m *users) Follow(_ context.Context, follower, target string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u := m.byUsername(follower); u != nil {
		u.Following = addUnique(u.Following, target)
	}
	if u := m.byUsername(target); u != nil {
		u.Followers = addUnique(u.Followers, follower)
	}
	return nil
}

func (m *users) Unfollow(_ context.Context, follower, target string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u := m.byUsername(follower); u != nil {
		u.Following = remove(u.Following, target)
	}
	if u := m.byUsername(target); u != nil {
		u.Followers = remove(u.Followers, follower)
	}
	return nil
}

func (m *users) mutate(pred func(*models.User) bool, fn func(*models.User)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := m.find(pred)
	if u == nil {
		return database.ErrNotFound
	}
	fn(u)
	return nil
}

func applySubscription(u *models.User, upd database.SubscriptionUpdate) {
	if upd.Status != nil {
		u.SubscriptionStatus = *upd.Status
	}
	if upd.Tier != nil {
		u.SubscriptionTier = *upd.Tier
	}
	if upd.CustomerID != nil {
		u.StripeCustomerID = *upd.CustomerID
	}
	if upd.SubscriptionID != nil {
		u.StripeSubscriptionID = *upd.SubscriptionID
	}
	if upd.EndDate != nil {
		end := *upd.EndDate
		u.SubscriptionEndDate = &end
	} else if upd.ClearEndDate {
		u.SubscriptionEndDate = nil
	}
	if upd.PendingCancellation != nil {
		u.PendingCancellation = *upd.PendingCancellation
	}
}

func (m *users) SetSubscriptionByEmail(_ context.Context, email string, upd database.SubscriptionUpdate) error {
	return m.mutate(func(u *models.User) bool { return u.Email == email },
		func(u *models.User) { applySubscription(u, upd) })
}

func (m *users) SetSubscriptionByCustomer(_ context.Context, customerID string, upd database.SubscriptionUpdate) error {
	return m.mutate(func(u *models.User) bool { return customerID != "" && u.StripeCustomerID == customerID },
		func(u *models.User) { applySubscription(u, upd) })
}

func (m *users) LinkGoogle(_ context.Context, email, googleID string) error {
	return m.mutate(func(u *models.User) bool { return u.Email == email }, func(u *models.User) {
		u.GoogleID = googleID
		u.AuthProvider = "google"
	})
}

func (m *users) ResetWeeklyUploads(_ context.Context, email string, nextReset time.Time) error {
	return m.mutate(func(u *models.User) bool { return u.Email == email }, func(u *models.User) {
		u.WeeklyUploadsUsed = 0
		u.WeeklyUploadsResetDate = &nextReset
	})
}

func (m *users) IncrementWeeklyUploads(_ context.Context, email string, resetIfMissing time.Time) error {
	return m.mutate(func(u *models.User) bool { return u.Email == email }, func(u *models.User) {
		if u.WeeklyUploadsResetDate == nil {
			u.WeeklyUploadsResetDate = &resetIfMissing
		}
		u.WeeklyUploadsUsed++
	})
}

func (m *users) ResetFashionSearches(_ context.Context, email string) error {
	return m.mutate(func(u *models.User) bool { return u.Email == email }, func(u *models.User) {
		u.FashionSearchesUsed = 0
	})
}

func (m *users) IncrementFashionSearches(_ context.Context, email string, at time.Time) error {
	return m.mutate(func(u *models.User) bool { return u.Email == email }, func(u *models.User) {
		u.FashionSearchesUsed++
		u.LastFashionSearchDate = &at
	})
}

type closet struct{ *memory }

func (m *closet) Add(_ context.Context, item *models.ClosetItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if item.ID.IsZero() {
		item.ID = primitive.NewObjectID()
	}
	cp := *item
	m.closet = append(m.closet, &cp)
	return nil
}

func (m *closet) Get(_ context.Context, id string) (*models.ClosetItem, error) {
	oid, err := hexID(id)
	if err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, item := range m.closet {
		if item.ID == oid {
			cp := *item
			return &cp, nil
		}
	}
	return nil, database.ErrNotFound
}

func (m *closet) ListByUser(_ context.Context, userID string) ([]models.ClosetItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []models.ClosetItem{}
	for _, item := range m.closet {
		if item.UserID == userID {
			out = append(out, *item)
		}
	}
	return out, nil
}

func (m *closet) UpdateByLink(_ context.Context, userID string, upd models.ClosetItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, item := range m.closet {
		if item.UserID == userID && item.Link == upd.Link {
			item.Name = upd.Name
			item.Category = upd.Category
			item.Price = upd.Price
			item.Thumbnail = upd.Thumbnail
			item.Tags = upd.Tags
			return nil
		}
	}
	return database.ErrNotFound
}

func (m *closet) DeleteByLink(_ context.Context, userID, link, category string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, item := range m.closet {
		if item.UserID == userID && item.Link == link && item.Category == category {
			m.closet = append(m.closet[:i], m.closet[i+1:]...)
			return nil
		}
	}
	return database.ErrNotFound
}

type wishlist struct{ *memory }

func (m *wishlist) Add(_ context.Context, item *models.WishlistItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.wishlist {
		if existing.UserID == item.UserID && existing.Link == item.Link {
			return database.ErrDuplicate
		}
	}
	if item.ID.IsZero() {
		item.ID = primitive.NewObjectID()
	}
	if item.Tags == nil {
		item.Tags = []string{}
	}
	cp := *item
	m.wishlist = append(m.wishlist, &cp)
	return nil
}

func (m *wishlist) ListByUser(_ context.Context, userID string, skip, limit int) ([]models.WishlistItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []models.WishlistItem{}
	for i := len(m.wishlist) - 1; i >= 0; i-- {
		if m.wishlist[i].UserID == userID {
			out = append(out, *m.wishlist[i])
		}
	}
	return window(out, skip, limit), nil
}

func (m *wishlist) Delete(_ context.Context, id, userID string) error {
	oid, err := hexID(id)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, item := range m.wishlist {
		if item.ID == oid && item.UserID == userID {
			m.wishlist = append(m.wishlist[:i], m.wishlist[i+1:]...)
			return nil
		}
	}
	return database.ErrNotFound
}

func (m *wishlist) Like(_ context.Context, id string) error {
	oid, err := hexID(id)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, item := range m.wishlist {
		if item.ID == oid {
			item.Likes++
			return nil
		}
	}
	return database.ErrNotFound
}

func (m *wishlist) Discover(_ context.Context, filter models.WishlistFilter) ([]models.WishlistItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []models.WishlistItem{}
	for _, item := range m.wishlist {
		if filter.Category != "" && item.Category != filter.Category {
			continue
		}
		if len(filter.Tags) > 0 && !anyTag(item.Tags, filter.Tags) {
			continue
		}
		out = append(out, *item)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Likes > out[j].Likes })
	return window(out, filter.Skip, filter.Limit), nil
}

func anyTag(have, want []string) bool {
	for _, w := range want {
		for _, h := range have {
			if h == w {
				return true
			}
		}
	}
	return false
}

type outfits struct{ *memory }

func (m *outfits) Create(_ context.Context, post *models.OutfitPost) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if post.ID.IsZero() {
		post.ID = primitive.NewObjectID()
	}
	if post.Components == nil {
		post.Components = []models.OutfitComponent{}
	}
	cp := *post
	cp.Components = append([]models.OutfitComponent{}, post.Components...)
	m.outfits = append(m.outfits, &cp)
	return nil
}

func (m *outfits) find(id string) (*models.OutfitPost, error) {
	oid, err := hexID(id)
	if err != nil {
		return nil, err
	}
	for _, p := range m.outfits {
		if p.ID == oid {
			return p, nil
		}
	}
	return nil, database.ErrNotFound
}

func (m *outfits) Get(_ context.Context, id string) (*models.OutfitPost, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, err := m.find(id)
	if err != nil {
		return nil, err
	}
	cp := *p
	cp.Components = append([]models.OutfitComponent{}, p.Components...)
	return &cp, nil
}

func (m *outfits) ListByUser(_ context.Context, userID string) ([]models.OutfitPost, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []models.OutfitPost{}
	for i := len(m.outfits) - 1; i >= 0; i-- {
		if m.outfits[i].UserID == userID {
			out = append(out, *m.outfits[i])
		}
	}
	return out, nil
}

func (m *outfits) ReplaceComponents(_ context.Context, id string, components []models.OutfitComponent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, err := m.find(id)
	if err != nil {
		return err
	}
	p.Components = append([]models.OutfitComponent{}, components...)
	p.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *outfits) AppendComponent(_ context.Context, id string, component models.OutfitComponent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, err := m.find(id)
	if err != nil {
		return err
	}
	p.Components = append(p.Components, component)
	p.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *outfits) Delete(_ context.Context, id string) error {
	oid, err := hexID(id)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, p := range m.outfits {
		if p.ID == oid {
			m.outfits = append(m.outfits[:i], m.outfits[i+1:]...)
			return nil
		}
	}
	return database.ErrNotFound
}

type quizzes struct{ *memory }

func (m *quizzes) Create(_ context.Context, quiz *models.StyleQuiz) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if quiz.ID.IsZero() {
		quiz.ID = primitive.NewObjectID()
	}
	if quiz.Responses == nil {
		quiz.Responses = []models.QuizResponse{}
	}
	cp := *quiz
	m.quizzes = append(m.quizzes, &cp)
	return nil
}

// newest walks quizzes from the most recently created.
func (m *quizzes) newest(userID string, pred func(*models.StyleQuiz) bool) *models.StyleQuiz {
	for i := len(m.quizzes) - 1; i >= 0; i-- {
		q := m.quizzes[i]
		if q.UserID == userID && !q.Archived && pred(q) {
			return q
		}
	}
	return nil
}

func (m *quizzes) HasCompleted(_ context.Context, userID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.newest(userID, func(q *models.StyleQuiz) bool { return q.Completed }) != nil, nil
}

func (m *quizzes) snapshot(q *models.StyleQuiz) (*models.StyleQuiz, error) {
	if q == nil {
		return nil, database.ErrNotFound
	}
	cp := *q
	cp.Responses = append([]models.QuizResponse{}, q.Responses...)
	return &cp, nil
}

func (m *quizzes) Active(_ context.Context, userID string) (*models.StyleQuiz, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshot(m.newest(userID, func(q *models.StyleQuiz) bool { return !q.Completed }))
}

func (m *quizzes) Current(_ context.Context, userID string) (*models.StyleQuiz, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshot(m.newest(userID, func(*models.StyleQuiz) bool { return true }))
}

func (m *quizzes) AddResponse(_ context.Context, userID string, resp models.QuizResponse) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	q := m.newest(userID, func(q *models.StyleQuiz) bool { return !q.Completed })
	if q == nil {
		return database.ErrNotFound
	}
	kept := q.Responses[:0]
	for _, r := range q.Responses {
		if r.QuestionID != resp.QuestionID {
			kept = append(kept, r)
		}
	}
	q.Responses = append(kept, resp)
	return nil
}

func (m *quizzes) MarkCompleted(_ context.Context, id string) error {
	oid, err := hexID(id)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, q := range m.quizzes {
		if q.ID == oid {
			q.Completed = true
			return nil
		}
	}
	return database.ErrNotFound
}

func (m *quizzes) ArchiveAll(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, q := range m.quizzes {
		if q.UserID == userID {
			q.Archived = true
		}
	}
	return nil
}

type profiles struct{ *memory }

func (m *profiles) Get(_ context.Context, userID string) (*models.StyleProfile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.profiles[userID]
	if !ok {
		return nil, database.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *profiles) Upsert(_ context.Context, profile *models.StyleProfile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.profiles == nil {
		m.profiles = map[string]*models.StyleProfile{}
	}
	now := time.Now().UTC()
	profile.UpdatedAt = now
	if existing, ok := m.profiles[profile.UserID]; ok {
		profile.ID = existing.ID
		profile.CreatedAt = existing.CreatedAt
	} else {
		profile.ID = primitive.NewObjectID()
		profile.CreatedAt = now
	}
	cp := *profile
	m.profiles[profile.UserID] = &cp
	return nil
}

type interactions struct{ *memory }

func (m *interactions) Add(_ context.Context, interaction *models.Interaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if interaction.ID.IsZero() {
		interaction.ID = primitive.NewObjectID()
	}
	if interaction.CreatedAt.IsZero() {
		interaction.CreatedAt = time.Now().UTC()
	}
	cp := *interaction
	m.interactions = append(m.interactions, &cp)
	return nil
}

func (m *interactions) Recent(ctx context.Context, userID string, limit int) ([]models.Interaction, error) {
	return m.RecentOfType(ctx, userID, "", limit)
}

// RecentOfType with an empty type matches every interaction.
func (m *interactions) RecentOfType(_ context.Context, userID, interactionType string, limit int) ([]models.Interaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []models.Interaction{}
	for i := len(m.interactions) - 1; i >= 0; i-- {
		it := m.interactions[i]
		if it.UserID != userID || (interactionType != "" && it.InteractionType != interactionType) {
			continue
		}
		out = append(out, *it)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

type jobs struct{ *memory }

func (m *jobs) Create(_ context.Context, job *models.AnalysisJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, j := range m.jobs {
		if j.JobID == job.JobID {
			return database.ErrDuplicate
		}
	}
	if job.ID.IsZero() {
		job.ID = primitive.NewObjectID()
	}
	cp := *job
	m.jobs = append(m.jobs, &cp)
	return nil
}

func (m *jobs) Get(_ context.Context, jobID string) (*models.AnalysisJob, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, j := range m.jobs {
		if j.JobID == jobID {
			cp := *j
			return &cp, nil
		}
	}
	return nil, database.ErrNotFound
}

func (m *jobs) ListByUser(_ context.Context, userID string, limit int) ([]models.AnalysisJob, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []models.AnalysisJob{}
	for i := len(m.jobs) - 1; i >= 0; i-- {
		if m.jobs[i].UserID == userID {
			out = append(out, *m.jobs[i])
		}
	}
	return window(out, 0, limit), nil
}

func (m *jobs) ListByStatus(_ context.Context, status models.JobStatus) ([]models.AnalysisJob, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []models.AnalysisJob{}
	for _, j := range m.jobs {
		if j.Status == status {
			out = append(out, *j)
		}
	}
	return out, nil
}

func (m *jobs) Transition(_ context.Context, jobID string, from, to models.JobStatus, result *models.AnalysisResult, errText string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, j := range m.jobs {
		if j.JobID != jobID {
			continue
		}
		if j.Status != from {
			return database.ErrStaleState
		}
		j.Status = to
		j.UpdatedAt = time.Now().UTC()
		if result != nil {
			j.Result = result
		}
		if errText != "" {
			j.Error = errText
		}
		return nil
	}
	return database.ErrStaleState
}

func (m *jobs) Delete(_ context.Context, jobID, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, j := range m.jobs {
		if j.JobID == jobID && j.UserID == userID {
			m.jobs = append(m.jobs[:i], m.jobs[i+1:]...)
			return nil
		}
	}
	return database.ErrNotFound
}

type push struct{ *memory }

func (m *push) Save(_ context.Context, sub *models.PushSubscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.push == nil {
		m.push = map[string]*models.PushSubscription{}
	}
	cp := *sub
	m.push[sub.UserID] = &cp
	return nil
}

func (m *push) Get(_ context.Context, userID string) (*models.PushSubscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sub, ok := m.push[userID]
	if !ok {
		return nil, database.ErrNotFound
	}
	cp := *sub
	return &cp, nil
}

func (m *push) Delete(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.push, userID)
	return nil
}
