// Package jobs queues image analysis jobs and runs them on a fixed pool of
// workers.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"openfashion/database"
	"openfashion/events"
	"openfashion/logger"
	"openfashion/metrics"
	"openfashion/models"
	"openfashion/push"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrQueueFull = errors.New("job queue is full")
	ErrStopped   = errors.New("job pool is stopped")
)

const (
	// StatusMessage is the websocket message type for job updates.
	StatusMessage = "job_status"

	persistTimeout = 10 * time.Second
)

// Runner executes the analysis for one job.
type Runner interface {
	Run(ctx context.Context, job *models.AnalysisJob, profile *models.StyleProfile) (*models.AnalysisResult, error)
}

// Broadcaster delivers realtime messages to a user's open connections.
type Broadcaster interface {
	SendToUser(userID, msgType string, payload interface{})
}

// UploadRecorder counts a finished analysis against the owner's allowance.
type UploadRecorder interface {
	RecordUpload(ctx context.Context, email string) error
}

type Deps struct {
	Jobs     database.JobRepository
	Profiles database.ProfileRepository
	Runner   Runner
	Quota    UploadRecorder
	Hub      Broadcaster
	Push     push.Notifier
	Events   events.Publisher
}

type Options struct {
	Workers   int
	QueueSize int
	Timeout   time.Duration
}

// StatusUpdate is the payload of a job_status message.
type StatusUpdate struct {
	JobID  string           `json:"job_id"`
	Status models.JobStatus `json:"status"`
	Error  string           `json:"error,omitempty"`
}

type Pool struct {
	deps  Deps
	opts  Options
	queue chan string
	quit  chan struct{}
	wg    sync.WaitGroup

	mu      sync.RWMutex
	stopped bool
}

func NewPool(deps Deps, opts Options) *Pool {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 100
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Minute
	}
	if deps.Events == nil {
		deps.Events = events.Noop{}
	}
	return &Pool{
		deps:  deps,
		opts:  opts,
		queue: make(chan string, opts.QueueSize),
		quit:  make(chan struct{}),
	}
}

func (p *Pool) Start() {
	logger.Get().Info("Starting job worker pool", zap.Int("workers", p.opts.Workers), zap.Int("queue", p.opts.QueueSize))
	for i := 0; i < p.opts.Workers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
}

// Stop refuses new work and waits for running jobs. Jobs still queued stay
// pending and are picked up by RequeuePending on the next start.
func (p *Pool) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	close(p.quit)
	p.mu.Unlock()

	logger.Get().Info("Stopping job worker pool")
	p.wg.Wait()
}

// Create persists a pending job and queues it. When the queue is full the
// job is marked failed and ErrQueueFull is returned with it.
func (p *Pool) Create(ctx context.Context, userID, imageURL, filename string) (*models.AnalysisJob, error) {
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
	if err := p.deps.Jobs.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}
	p.announce(job.UserID, job.JobID, models.JobPending, "")

	if err := p.Submit(job.JobID); err != nil {
		if ferr := p.deps.Jobs.Transition(ctx, job.JobID, models.JobPending, models.JobFailed, nil, "queue full"); ferr != nil {
			logger.Get().Error("[Jobs] could not fail rejected job", zap.String("job", job.JobID), zap.Error(ferr))
		}
		job.Status = models.JobFailed
		job.Error = "queue full"
		p.announce(job.UserID, job.JobID, models.JobFailed, job.Error)
		metrics.ObserveJob(string(models.JobFailed), 0)
		return job, err
	}
	return job, nil
}

// Submit queues a job id without blocking.
func (p *Pool) Submit(jobID string) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.stopped {
		return ErrStopped
	}
	select {
	case p.queue <- jobID:
		metrics.SetQueueDepth(len(p.queue))
		return nil
	default:
		logger.Get().Warn("[Jobs] queue full, job rejected", zap.String("job", jobID))
		return ErrQueueFull
	}
}

// RequeuePending queues jobs left pending by a previous process.
func (p *Pool) RequeuePending(ctx context.Context) (int, error) {
	pending, err := p.deps.Jobs.ListByStatus(ctx, models.JobPending)
	if err != nil {
		return 0, fmt.Errorf("list pending jobs: %w", err)
	}
	n := 0
	for _, job := range pending {
		if err := p.Submit(job.JobID); err != nil {
			if ferr := p.deps.Jobs.Transition(ctx, job.JobID, models.JobPending, models.JobFailed, nil, "queue full"); ferr != nil {
				logger.Get().Error("[Jobs] could not fail pending job", zap.String("job", job.JobID), zap.Error(ferr))
			}
			continue
		}
		n++
	}
	if n > 0 {
		logger.Get().Info("Requeued pending jobs", zap.Int("count", n))
	}
	return n, nil
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()
	logger.Get().Debug("Job worker started", zap.Int("worker_id", id))

	for {
		select {
		case <-p.quit:
			logger.Get().Debug("Job worker stopping", zap.Int("worker_id", id))
			return
		case jobID := <-p.queue:
			metrics.SetQueueDepth(len(p.queue))
			p.process(jobID)
		}
	}
}

func (p *Pool) process(jobID string) {
	log := logger.Get().With(zap.String("job", jobID))
	started := time.Now()

	ctx, cancel := context.WithTimeout(context.Background(), p.opts.Timeout)
	defer cancel()

	job, err := p.deps.Jobs.Get(ctx, jobID)
	if err != nil {
		log.Error("[Jobs] job lookup failed", zap.Error(err))
		if errors.Is(err, database.ErrNotFound) {
			return
		}
		// Fail it so the job does not sit in pending until the next restart.
		if ferr := p.deps.Jobs.Transition(ctx, jobID, models.JobPending, models.JobFailed, nil, "job lookup failed"); ferr != nil {
			log.Error("[Jobs] could not fail unreadable job", zap.Error(ferr))
			return
		}
		metrics.ObserveJob(string(models.JobFailed), time.Since(started))
		return
	}
	if err := p.deps.Jobs.Transition(ctx, jobID, models.JobPending, models.JobProcessing, nil, ""); err != nil {
		if errors.Is(err, database.ErrStaleState) {
			log.Debug("[Jobs] job already claimed", zap.String("status", string(job.Status)))
			return
		}
		log.Error("[Jobs] claim failed", zap.Error(err))
		return
	}
	p.announce(job.UserID, jobID, models.JobProcessing, "")

	var profile *models.StyleProfile
	if p.deps.Profiles != nil {
		profile, err = p.deps.Profiles.Get(ctx, job.UserID)
		if err != nil && !errors.Is(err, database.ErrNotFound) {
			log.Warn("[Jobs] style profile unavailable", zap.Error(err))
		}
	}

	result, runErr := p.run(ctx, job, profile)

	// The run context may be spent; persist with a fresh one.
	wctx, wcancel := context.WithTimeout(context.Background(), persistTimeout)
	defer wcancel()

	if runErr != nil {
		log.Warn("[Jobs] analysis failed", zap.Error(runErr))
		if err := p.deps.Jobs.Transition(wctx, jobID, models.JobProcessing, models.JobFailed, nil, runErr.Error()); err != nil {
			log.Error("[Jobs] could not mark job failed", zap.Error(err))
		}
		metrics.ObserveJob(string(models.JobFailed), time.Since(started))
		p.announce(job.UserID, jobID, models.JobFailed, runErr.Error())
		p.notify(wctx, job.UserID, push.Notification{
			Title: "Analysis failed",
			Body:  "We couldn't analyse your photo. Please try another one.",
			URL:   "/jobs/" + jobID,
		})
		return
	}

	if err := p.deps.Jobs.Transition(wctx, jobID, models.JobProcessing, models.JobCompleted, result, ""); err != nil {
		log.Error("[Jobs] could not store result", zap.Error(err))
		return
	}
	if p.deps.Quota != nil {
		if err := p.deps.Quota.RecordUpload(wctx, job.UserID); err != nil {
			log.Warn("[Jobs] upload count not recorded", zap.Error(err))
		}
	}
	metrics.ObserveJob(string(models.JobCompleted), time.Since(started))
	log.Info("[Jobs] analysis completed", zap.Int("components", len(result.Components)), zap.Duration("took", time.Since(started)))

	p.announce(job.UserID, jobID, models.JobCompleted, "")
	p.notify(wctx, job.UserID, push.Notification{
		Title: "Your outfit analysis is ready",
		Body:  fmt.Sprintf("We found %d pieces in your photo.", len(result.Components)),
		URL:   "/jobs/" + jobID,
	})
}

// run calls the Runner, turning a panic or an empty result into an error so
// the job still reaches a terminal state.
func (p *Pool) run(ctx context.Context, job *models.AnalysisJob, profile *models.StyleProfile) (result *models.AnalysisResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Get().Error("[Jobs] analysis panicked", zap.String("job", job.JobID), zap.Any("panic", r), zap.Stack("stack"))
			result, err = nil, fmt.Errorf("analysis panicked: %v", r)
		}
	}()
	result, err = p.deps.Runner.Run(ctx, job, profile)
	if err == nil && result == nil {
		err = errors.New("analysis returned no result")
	}
	return result, err
}

func (p *Pool) announce(userID, jobID string, status models.JobStatus, errText string) {
	if p.deps.Hub != nil {
		p.deps.Hub.SendToUser(userID, StatusMessage, StatusUpdate{JobID: jobID, Status: status, Error: errText})
	}
	evt := events.JobEvent{JobID: jobID, UserID: userID, Status: string(status), Error: errText, Timestamp: time.Now().UTC()}
	if err := p.deps.Events.PublishJob(evt); err != nil {
		logger.Get().Warn("[Jobs] event not published", zap.String("job", jobID), zap.Error(err))
	}
}

func (p *Pool) notify(ctx context.Context, userID string, n push.Notification) {
	if p.deps.Push == nil {
		return
	}
	if err := p.deps.Push.Notify(ctx, userID, n); err != nil && !errors.Is(err, push.ErrNoSubscription) {
		logger.Get().Warn("[Jobs] push notification failed", zap.String("user", userID), zap.Error(err))
	}
}
