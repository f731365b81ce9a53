package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"sync"
	"testing"
	"time"

	"openfashion/billing"
	"openfashion/database"
	"openfashion/database/memdb"
	"openfashion/googleauth"
	"openfashion/handlers"
	"openfashion/models"
	"openfashion/routes"
	"openfashion/websocket"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

const (
	testSecret        = "test-secret"
	testWebhookSecret = "whsec_handlers"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeStorage struct {
	mu      sync.Mutex
	uploads []string
}

func (f *fakeStorage) Upload(_ context.Context, _ []byte, folder, name string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	url := fmt.Sprintf("https://cdn.test/%s/%s", folder, name)
	f.uploads = append(f.uploads, url)
	return url, nil
}

type fakeJobs struct {
	store   *database.Store
	created []*models.AnalysisJob
}

func (f *fakeJobs) Create(ctx context.Context, userID, imageURL, filename string) (*models.AnalysisJob, error) {
	now := time.Now().UTC()
	job := &models.AnalysisJob{
		JobID:     uuid.NewString(),
		UserID:    userID,
		Status:    models.JobPending,
		ImageURL:  imageURL,
		Filename:  filename,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := f.store.Jobs.Create(ctx, job); err != nil {
		return nil, err
	}
	f.created = append(f.created, job)
	return job, nil
}

type fakeSearch struct {
	queries []string
	err     error
}

func (f *fakeSearch) VisualMatches(context.Context, string, string) ([]models.Product, error) {
	return []models.Product{}, nil
}

func (f *fakeSearch) Shopping(_ context.Context, query string, num int) ([]models.Product, error) {
	f.queries = append(f.queries, query)
	if f.err != nil {
		return nil, f.err
	}
	out := []models.Product{}
	for i := 0; i < num && i < 2; i++ {
		out = append(out, models.Product{Title: fmt.Sprintf("%s %d", query, i), Link: fmt.Sprintf("https://shop.test/%d", i)})
	}
	return out, nil
}

type fakeStylist struct {
	err      error
	lastTurn []models.ChatTurn
}

func (f *fakeStylist) BuildProfile(_ context.Context, responses []models.QuizResponse) (string, []models.StylePreference, error) {
	if f.err != nil {
		return "", nil, f.err
	}
	return fmt.Sprintf("Built from %d answers", len(responses)), []models.StylePreference{{Category: "minimalist", ConfidenceScore: 0.9}}, nil
}

func (f *fakeStylist) UpdateProfile(_ context.Context, summary string, recent []models.Interaction) (string, []models.StylePreference, error) {
	if f.err != nil {
		return "", nil, f.err
	}
	return fmt.Sprintf("%s, updated with %d interactions", summary, len(recent)), []models.StylePreference{{Category: "streetwear", ConfidenceScore: 0.7}}, nil
}

func (f *fakeStylist) Recommend(context.Context, string, []models.Interaction) ([]models.Recommendation, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []models.Recommendation{{ItemType: "jacket", Description: "Cropped denim jacket", ConfidenceScore: 0.8}}, nil
}

func (f *fakeStylist) ProfileQueries(context.Context, string, []string) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []string{"linen shirts", "wide leg trousers"}, nil
}

func (f *fakeStylist) OptimizeQuery(_ context.Context, query string, _ *models.StyleProfile) string {
	return "optimized " + query
}

func (f *fakeStylist) Suggestions(context.Context, *models.StyleProfile) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []string{"tailored blazers"}, nil
}

func (f *fakeStylist) StartChat(context.Context, *models.StyleProfile) (models.ChatReply, error) {
	if f.err != nil {
		return models.ChatReply{}, f.err
	}
	return models.ChatReply{Response: "Hello, stylist here", NextQuestions: []string{}, Suggestions: []string{}}, nil
}

func (f *fakeStylist) Chat(_ context.Context, _ *models.StyleProfile, history []models.ChatTurn, message string) (models.ChatReply, error) {
	f.lastTurn = history
	if f.err != nil {
		return models.ChatReply{}, f.err
	}
	return models.ChatReply{Response: "About " + message, NextQuestions: []string{}, Suggestions: []string{}}, nil
}

type fakeGoogle struct {
	identity *googleauth.Identity
}

func (f *fakeGoogle) Exchange(context.Context, string, string) (*googleauth.Identity, error) {
	return f.identity, nil
}

func (f *fakeGoogle) VerifyCredential(_ context.Context, credential string) (*googleauth.Identity, error) {
	if credential == "bad" {
		return nil, fmt.Errorf("token rejected")
	}
	return f.identity, nil
}

type env struct {
	t       *testing.T
	store   *database.Store
	router  *gin.Engine
	storage *fakeStorage
	jobs    *fakeJobs
	search  *fakeSearch
	stylist *fakeStylist
	google  *fakeGoogle
}

func newEnv(t *testing.T) *env {
	t.Helper()
	store := memdb.New()
	e := &env{
		t:       t,
		store:   store,
		storage: &fakeStorage{},
		jobs:    &fakeJobs{store: store},
		search:  &fakeSearch{},
		stylist: &fakeStylist{},
		google: &fakeGoogle{identity: &googleauth.Identity{
			GoogleID: "g-1", Email: "jane@example.com", Name: "Jane Doe", Picture: "https://img.test/jane.png",
		}},
	}
	h := &handlers.Handler{
		Store:          store,
		Secret:         testSecret,
		TokenTTL:       time.Hour,
		Storage:        e.storage,
		Stylist:        e.stylist,
		Search:         e.search,
		Google:         e.google,
		Billing:        billing.NewService(billing.Options{WebhookSecret: testWebhookSecret}, store.Users),
		Quota:          billing.NewQuota(store.Users),
		Jobs:           e.jobs,
		VAPIDPublicKey: "pub-key",
	}
	e.router = routes.SetupRouter(h, routes.Options{
		Secret:         testSecret,
		AllowedOrigins: []string{"http://localhost:3000"},
		Hub:            websocket.NewManager(),
	})
	return e
}

func (e *env) request(method, path, token string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *env) json(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(e.t, err)
		r = bytes.NewReader(data)
	}
	return e.request(method, path, token, r, "application/json")
}

// register creates an account and returns its bearer token.
func (e *env) register(email, username string) string {
	e.t.Helper()
	w := e.json(http.MethodPost, "/api/auth/register", "", gin.H{"email": email, "password": "pw", "username": username})
	require.Equal(e.t, http.StatusOK, w.Code, w.Body.String())
	var resp handlers.TokenResponse
	require.NoError(e.t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(e.t, resp.AccessToken)
	return resp.AccessToken
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

// imageForm builds a multipart body with one file part of the given content type.
func imageForm(t *testing.T, field, contentType string, fields map[string]string) (io.Reader, string) {
	t.Helper()
	return imageFormData(t, field, contentType, fields, []byte("\xff\xd8\xff\xe0fake-jpeg"))
}

func imageFormData(t *testing.T, field, contentType string, fields map[string]string, data []byte) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	hdr := textproto.MIMEHeader{}
	hdr.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename="photo.jpg"`, field))
	hdr.Set("Content-Type", contentType)
	part, err := mw.CreatePart(hdr)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}
