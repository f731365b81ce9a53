package handlers

import (
	"context"
	"errors"
	"net/http"

	"openfashion/billing"
	"openfashion/jobs"
	"openfashion/logger"
	"openfashion/storage"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	defaultJobPage = 10
	maxJobPage     = 50
)

// UploadImage stores the photo and queues an analysis job for it.
func (h *Handler) UploadImage(c *gin.Context) {
	email := currentEmail(c)

	ctx, cancel := context.WithTimeout(c.Request.Context(), upstreamTimeout)
	defer cancel()

	allowance, err := h.Quota.CheckUpload(ctx, email)
	if err != nil {
		storeError(c, err, "User not found", "upload quota")
		return
	}
	if !allowance.CanUpload {
		c.JSON(http.StatusForbidden, gin.H{"error": billing.UploadLimitMessage})
		return
	}

	data, filename, ok := readImage(c, "image")
	if !ok {
		return
	}

	url, err := h.Storage.Upload(ctx, data, storage.FolderUploads, uuid.NewString())
	if err != nil {
		logger.Get().Error("[Handler] image upload failed", zap.String("user", email), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store image: " + err.Error()})
		return
	}

	job, err := h.Jobs.Create(ctx, email, url, filename)
	if errors.Is(err, jobs.ErrQueueFull) || errors.Is(err, jobs.ErrStopped) {
		resp := gin.H{"error": "Analysis queue is full, try again later"}
		if job != nil {
			resp["job_id"] = job.JobID
			resp["status"] = job.Status
		}
		c.JSON(http.StatusServiceUnavailable, resp)
		return
	}
	if err != nil {
		logger.Get().Error("[Handler] create job failed", zap.String("user", email), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create analysis job"})
		return
	}

	logger.Get().Info("[Handler] analysis job queued", zap.String("user", email), zap.String("job", job.JobID))
	c.JSON(http.StatusOK, gin.H{"job_id": job.JobID, "status": "pending"})
}

func (h *Handler) GetJob(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	job, err := h.Store.Jobs.Get(ctx, c.Param("id"))
	if err != nil {
		storeError(c, err, "Job not found", "get job")
		return
	}
	if job.UserID != currentEmail(c) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Not authorized to access this job"})
		return
	}
	c.JSON(http.StatusOK, job)
}

func (h *Handler) ListJobs(c *gin.Context) {
	limit, ok := queryInt(c, "limit", defaultJobPage, 1, maxJobPage)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	list, err := h.Store.Jobs.ListByUser(ctx, currentEmail(c), limit)
	if err != nil {
		storeError(c, err, "", "list jobs")
		return
	}
	c.JSON(http.StatusOK, gin.H{"jobs": list})
}

func (h *Handler) DeleteJob(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	email := currentEmail(c)
	job, err := h.Store.Jobs.Get(ctx, c.Param("id"))
	if err != nil {
		storeError(c, err, "Job not found", "get job")
		return
	}
	if job.UserID != email {
		c.JSON(http.StatusForbidden, gin.H{"error": "Not authorized to delete this job"})
		return
	}
	if err := h.Store.Jobs.Delete(ctx, job.JobID, email); err != nil {
		storeError(c, err, "Job not found", "delete job")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Job deleted"})
}

func (h *Handler) UploadThumbnail(c *gin.Context) {
	data, _, ok := readImage(c, "file")
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), upstreamTimeout)
	defer cancel()

	url, err := h.Storage.Upload(ctx, data, storage.FolderThumbnails, uuid.NewString())
	if err != nil {
		logger.Get().Error("[Handler] thumbnail upload failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to upload thumbnail"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url})
}
