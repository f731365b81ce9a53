package handlers_test

import (
	"bytes"
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"openfashion/billing"
	"openfashion/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUploadQueuesJob(t *testing.T) {
	e := newEnv(t)
	token := e.register("alice@example.com", "alice")

	body, ct := imageForm(t, "image", "image/jpeg", nil)
	w := e.request(http.MethodPost, "/api/upload/", token, body, ct)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decode[map[string]string](t, w)
	assert.Equal(t, "pending", resp["status"])
	require.NotEmpty(t, resp["job_id"])

	require.Len(t, e.jobs.created, 1)
	job := e.jobs.created[0]
	assert.Equal(t, "alice@example.com", job.UserID)
	assert.Equal(t, "photo.jpg", job.Filename)
	assert.True(t, strings.HasPrefix(job.ImageURL, "https://cdn.test/"))
}

func TestUploadRejectsBadInput(t *testing.T) {
	e := newEnv(t)
	token := e.register("alice@example.com", "alice")

	body, ct := imageForm(t, "image", "application/pdf", nil)
	w := e.request(http.MethodPost, "/api/upload/", token, body, ct)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Invalid file type")

	body, ct = imageForm(t, "photo", "image/jpeg", nil)
	w = e.request(http.MethodPost, "/api/upload/", token, body, ct)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "No file uploaded")

	assert.Empty(t, e.jobs.created)
}

func TestUploadEnforcesWeeklyLimit(t *testing.T) {
	e := newEnv(t)
	token := e.register("alice@example.com", "alice")
	ctx := context.Background()
	reset := time.Now().Add(24 * time.Hour)
	for i := 0; i < billing.FreeWeeklyUploads; i++ {
		require.NoError(t, e.store.Users.IncrementWeeklyUploads(ctx, "alice@example.com", reset))
	}

	w := e.json(http.MethodGet, "/api/subscription/upload-limit", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	allowance := decode[models.UploadAllowance](t, w)
	assert.False(t, allowance.CanUpload)
	assert.Equal(t, billing.FreeWeeklyUploads, allowance.UploadsUsed)

	body, ct := imageForm(t, "image", "image/jpeg", nil)
	w = e.request(http.MethodPost, "/api/upload/", token, body, ct)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "limit of 3")
	assert.Empty(t, e.jobs.created)
}

func TestJobOwnership(t *testing.T) {
	e := newEnv(t)
	alice := e.register("alice@example.com", "alice")
	bob := e.register("bob@example.com", "bob")

	body, ct := imageForm(t, "image", "image/jpeg", nil)
	w := e.request(http.MethodPost, "/api/upload/", alice, body, ct)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	jobID := decode[map[string]string](t, w)["job_id"]

	w = e.json(http.MethodGet, "/api/upload/job/"+jobID, alice, nil)
	require.Equal(t, http.StatusOK, w.Code)
	job := decode[models.AnalysisJob](t, w)
	assert.Equal(t, models.JobPending, job.Status)

	w = e.json(http.MethodGet, "/api/upload/job/"+jobID, bob, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "Not authorized to access this job")

	w = e.json(http.MethodGet, "/api/upload/job/does-not-exist", alice, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = e.json(http.MethodGet, "/api/upload/jobs", alice, nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[struct {
		Jobs []models.AnalysisJob `json:"jobs"`
	}](t, w)
	require.Len(t, list.Jobs, 1)
	assert.Equal(t, jobID, list.Jobs[0].JobID)

	w = e.json(http.MethodGet, "/api/upload/jobs?limit=51", alice, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = e.json(http.MethodDelete, "/api/upload/job/"+jobID, bob, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = e.json(http.MethodDelete, "/api/upload/job/"+jobID, alice, nil)
	require.Equal(t, http.StatusOK, w.Code)
	w = e.json(http.MethodGet, "/api/upload/job/"+jobID, alice, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUploadThumbnail(t *testing.T) {
	e := newEnv(t)
	token := e.register("alice@example.com", "alice")

	body, ct := imageForm(t, "file", "image/webp", nil)
	w := e.request(http.MethodPost, "/api/upload/upload-thumbnail", token, body, ct)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, decode[map[string]string](t, w)["url"], "https://cdn.test/")
}

func TestUploadRejectsOversizedImage(t *testing.T) {
	e := newEnv(t)
	token := e.register("alice@example.com", "alice")

	big := bytes.Repeat([]byte{0xff}, 20<<20+1)
	body, ct := imageFormData(t, "image", "image/jpeg", nil, big)
	w := e.request(http.MethodPost, "/api/upload/", token, body, ct)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Contains(t, w.Body.String(), "File too large")
	assert.Empty(t, e.jobs.created)

	body, ct = imageFormData(t, "file", "image/jpeg", nil, big)
	w = e.request(http.MethodPost, "/api/upload/upload-thumbnail", token, body, ct)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}
