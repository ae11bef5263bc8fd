// Package service implements the job orchestration engine: admission
// control, the FIFO queue, worker supervision callbacks, retry, and the
// fan-out of state transitions.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/veranemoloko/fetchd/internal/backend"
	"github.com/veranemoloko/fetchd/internal/broadcast"
	"github.com/veranemoloko/fetchd/internal/config"
	"github.com/veranemoloko/fetchd/internal/domain"
	errpkg "github.com/veranemoloko/fetchd/internal/errors"
	"github.com/veranemoloko/fetchd/internal/metrics"
	"github.com/veranemoloko/fetchd/internal/repository"
	"github.com/veranemoloko/fetchd/internal/retry"
	"github.com/veranemoloko/fetchd/internal/storage"
	"github.com/veranemoloko/fetchd/internal/supervisor"
	"github.com/veranemoloko/fetchd/internal/validation"
)

const opsBuffer = 256

// Engine owns the job table, the queue, and the concurrency counter.
// All mutation funnels through a single goroutine receiving closures over
// the ops channel, so no locking is needed on the table itself and
// status transitions observe a strict order.
type Engine struct {
	cfg     *config.Config
	policy  retry.Policy
	runner  supervisor.Runner
	store   *repository.SnapshotStore
	history *repository.HistoryStore
	filer   *storage.FileStorage
	hub     *broadcast.Hub
	logger  *slog.Logger

	// probe inspects content types ahead of classification; overridable
	// in tests.
	probe func(ctx context.Context, rawURL, userAgent, referer string) backend.Hints

	ops  chan func()
	done chan struct{}
	wg   sync.WaitGroup

	stopOnce sync.Once

	// Owned exclusively by the loop goroutine.
	jobs    map[string]*domain.Job
	order   []string
	queue   []string
	active  int
	handles map[string]supervisor.Handle
}

// NewEngine restores persisted state and starts the engine loop. Jobs
// found in-flight in the snapshot come back as interrupted; jobs that
// were still queued are re-enqueued in submission order.
func NewEngine(
	cfg *config.Config,
	policy retry.Policy,
	runner supervisor.Runner,
	store *repository.SnapshotStore,
	history *repository.HistoryStore,
	filer *storage.FileStorage,
	hub *broadcast.Hub,
	logger *slog.Logger,
) (*Engine, error) {
	if logger == nil {
		logger = slog.Default()
	}

	e := &Engine{
		cfg:     cfg,
		policy:  policy,
		runner:  runner,
		store:   store,
		history: history,
		filer:   filer,
		hub:     hub,
		logger:  logger,
		probe:   backend.Probe,
		ops:     make(chan func(), opsBuffer),
		done:    make(chan struct{}),
		jobs:    make(map[string]*domain.Job),
		handles: make(map[string]supervisor.Handle),
	}

	restored, err := store.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to restore state: %w", err)
	}

	sort.SliceStable(restored, func(i, j int) bool {
		return restored[i].CreatedAt.Before(restored[j].CreatedAt)
	})
	for _, job := range restored {
		e.jobs[job.ID] = job
		e.order = append(e.order, job.ID)
		if job.Status == domain.StatusQueued {
			e.queue = append(e.queue, job.ID)
		}
	}

	e.wg.Add(1)
	go e.loop()

	if err := e.do(func() { e.promote() }); err != nil {
		return nil, err
	}

	logger.Info("engine started",
		"restored_jobs", len(restored),
		"queued", len(e.queue),
		"max_concurrent", cfg.MaxConcurrent,
	)
	return e, nil
}

func (e *Engine) loop() {
	defer e.wg.Done()
	for {
		select {
		case fn := <-e.ops:
			fn()
		case <-e.done:
			return
		}
	}
}

// do runs fn on the engine loop and waits for it to finish.
func (e *Engine) do(fn func()) error {
	doneCh := make(chan struct{})
	select {
	case e.ops <- func() { fn(); close(doneCh) }:
	case <-e.done:
		return errpkg.ErrShuttingDown
	}
	select {
	case <-doneCh:
		return nil
	case <-e.done:
		return errpkg.ErrShuttingDown
	}
}

// post runs fn on the engine loop without waiting; dropped after
// shutdown.
func (e *Engine) post(fn func()) {
	select {
	case e.ops <- fn:
	case <-e.done:
	}
}

// Submit validates and classifies a transfer request, creates the job in
// queued status, and attempts promotion immediately.
func (e *Engine) Submit(ctx context.Context, req *domain.SubmitRequest) (*domain.SubmitResponse, error) {
	if err := validation.ValidateURL(req.URL); err != nil {
		return nil, err
	}
	if err := validation.CheckAllowedDomain(req.URL, e.cfg.AllowedDomains); err != nil {
		return nil, err
	}

	id := domain.NewJobID()

	// Classify first; a HEAD probe is only worth the round trip when the
	// URL alone says "direct", since a manifest can hide behind a plain
	// extension. The probe is network I/O and runs here, before the loop.
	hints := backend.Hints{ForceVideo: req.ForceVideo}
	kind := backend.Classify(req.URL, hints)
	if kind == domain.BackendDirect && e.probe != nil {
		hints.ContentType = e.probe(ctx, req.URL, req.UserAgent, req.Referer).ContentType
		kind = backend.Classify(req.URL, hints)
	}

	job := &domain.Job{
		ID:       id,
		URL:      req.URL,
		Filename: domain.SanitizeFilename(req.Filename, req.URL, id),
		Backend:  kind,
		Status:   domain.StatusQueued,
		Config: domain.TransferConfig{
			Referer:     req.Referer,
			UserAgent:   req.UserAgent,
			Cookie:      req.Cookie,
			InsecureTLS: req.InsecureTLS,
			Connections: req.Connections,
			Format:      req.Format,
		},
		CreatedAt: time.Now(),
	}

	var resp *domain.SubmitResponse
	err := e.do(func() {
		e.dedupeFilename(job)
		e.jobs[job.ID] = job
		e.order = append(e.order, job.ID)
		e.queue = append(e.queue, job.ID)
		metrics.JobsSubmitted.Inc()
		e.publish(domain.EventJobCreated, job)
		e.persist()
		e.promote()

		resp = &domain.SubmitResponse{
			ID:            job.ID,
			Status:        job.Status,
			QueuePosition: e.queuePosition(job.ID),
		}
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("job submitted",
		"job_id", job.ID,
		"backend", job.Backend,
		"status", resp.Status,
		"queue_position", resp.QueuePosition,
	)
	return resp, nil
}

// Cancel cancels a single job. Queued jobs leave the queue without ever
// spawning a worker; active jobs get their worker killed. Returns the
// number of jobs affected.
func (e *Engine) Cancel(id string) (int, error) {
	var n int
	var opErr error
	err := e.do(func() {
		job, ok := e.jobs[id]
		if !ok {
			opErr = errpkg.ErrJobNotFound
			return
		}
		if job.Status.IsTerminal() {
			opErr = errpkg.ErrJobNotActive
			return
		}
		n = e.cancelJob(job)
	})
	if err != nil {
		return 0, err
	}
	return n, opErr
}

// CancelAll drains the pending queue and kills every active worker.
func (e *Engine) CancelAll() (int, error) {
	var n int
	err := e.do(func() {
		// Queue first, so a freed slot cannot promote a job that is
		// about to be cancelled anyway.
		for _, id := range append([]string(nil), e.queue...) {
			if job, ok := e.jobs[id]; ok && job.Status == domain.StatusQueued {
				n += e.cancelJob(job)
			}
		}
		for _, id := range e.order {
			if job := e.jobs[id]; job.Status.IsActive() {
				n += e.cancelJob(job)
			}
		}
	})
	if err != nil {
		return 0, err
	}
	e.logger.Info("cancelled all jobs", "count", n)
	return n, nil
}

// GetJob returns a copy of a tracked job.
func (e *Engine) GetJob(id string) (*domain.Job, error) {
	var job *domain.Job
	err := e.do(func() {
		if j, ok := e.jobs[id]; ok {
			job = j.Clone()
			job.QueuePosition = e.queuePosition(id)
		}
	})
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, errpkg.ErrJobNotFound
	}
	return job, nil
}

// ListJobs returns copies of all tracked jobs in submission order, with
// queue positions filled in.
func (e *Engine) ListJobs() ([]*domain.Job, error) {
	var out []*domain.Job
	err := e.do(func() {
		out = make([]*domain.Job, 0, len(e.order))
		for _, id := range e.order {
			job := e.jobs[id].Clone()
			job.QueuePosition = e.queuePosition(id)
			out = append(out, job)
		}
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Subscribe registers a status-stream subscriber primed with the current
// state of every tracked job.
func (e *Engine) Subscribe() (<-chan domain.Event, func(), error) {
	var ch <-chan domain.Event
	var cancel func()
	err := e.do(func() {
		initial := make([]domain.Event, 0, len(e.order))
		for _, id := range e.order {
			job := e.jobs[id].Clone()
			job.QueuePosition = e.queuePosition(id)
			initial = append(initial, domain.Event{Type: domain.EventJobUpdated, Job: job})
		}
		ch, cancel = e.hub.Subscribe(initial)
	})
	if err != nil {
		return nil, nil, err
	}
	return ch, cancel, nil
}

// Shutdown kills active workers, writes a final snapshot, and stops the
// loop. In-flight jobs come back as interrupted on the next start.
func (e *Engine) Shutdown(ctx context.Context) error {
	var err error
	e.stopOnce.Do(func() {
		err = e.do(func() {
			for _, h := range e.handles {
				h.Kill()
			}
			e.persist()
		})
		close(e.done)
		e.hub.Close()
		e.wg.Wait()
		e.logger.Info("engine stopped")
	})
	return err
}

// WorkerProgress implements supervisor.Sink.
func (e *Engine) WorkerProgress(jobID string, p backend.Progress) {
	e.post(func() { e.applyProgress(jobID, p) })
}

// WorkerExit implements supervisor.Sink.
func (e *Engine) WorkerExit(jobID string, res supervisor.ExitResult) {
	e.post(func() { e.handleExit(jobID, res) })
}

// Everything below runs on the loop goroutine.

// dedupeFilename prefixes the filename with the job id's first segment
// when another tracked job already writes to the same name, since workers
// run with overwrite enabled.
func (e *Engine) dedupeFilename(job *domain.Job) {
	for _, other := range e.jobs {
		if other.Filename == job.Filename {
			job.Filename = job.ID[:8] + "_" + job.Filename
			return
		}
	}
}

func (e *Engine) queuePosition(id string) int {
	for i, qid := range e.queue {
		if qid == id {
			return i + 1
		}
	}
	return 0
}

// promote pops queued jobs into free slots until capacity or the queue
// runs out.
func (e *Engine) promote() {
	for e.active < e.cfg.MaxConcurrent && len(e.queue) > 0 {
		id := e.queue[0]
		e.queue = e.queue[1:]

		job, ok := e.jobs[id]
		if !ok || job.Status != domain.StatusQueued {
			continue
		}

		e.active++
		e.startJob(job)
	}
	e.updateGauges()
}

// startJob launches the worker for a job that already holds a slot.
func (e *Engine) startJob(job *domain.Job) {
	opts := backend.LaunchOptions{
		DownloadDir:      e.cfg.DownloadDir,
		SingleConnection: job.RetryCount > 0,
	}

	handle, err := e.runner.Start(job, opts, e)
	if err != nil {
		// Launch failures (missing binary, permissions) are terminal and
		// never retried.
		e.logger.Error("worker launch failed", "job_id", job.ID, "error", err)
		e.failJob(job, fmt.Sprintf("launch failed: %v", err))
		return
	}

	e.handles[job.ID] = handle
	job.Status = domain.StatusDownloading
	if job.StartedAt == nil {
		now := time.Now()
		job.StartedAt = &now
	}

	e.publish(domain.EventJobUpdated, job)
	e.persist()
}

func (e *Engine) applyProgress(id string, p backend.Progress) {
	job, ok := e.jobs[id]
	if !ok || !job.Status.IsActive() {
		return
	}

	if p.Percent != nil {
		job.Progress = min(max(*p.Percent, 0), 100)
	}
	if p.Speed != nil {
		job.Speed = *p.Speed
	}
	if p.ETA != nil {
		job.ETA = *p.ETA
	}
	if p.CurrentSize != nil {
		job.CurrentSize = *p.CurrentSize
	}
	if p.TotalSize != nil {
		job.FullSize = *p.TotalSize
	}

	// Progress ticks are published but not snapshotted; persisting every
	// tick would multiply writes for no recovery value.
	e.publish(domain.EventJobUpdated, job)
}

func (e *Engine) handleExit(id string, res supervisor.ExitResult) {
	job, ok := e.jobs[id]
	if !ok || !job.Status.IsActive() {
		// Cancelled before the exit arrived; slot already freed.
		return
	}
	delete(e.handles, id)

	if res.Code == 0 && !res.TimedOut {
		e.completeJob(job)
		return
	}

	errText := res.OutputTail
	if res.TimedOut {
		errText = fmt.Sprintf("worker timed out after %s", e.cfg.JobTimeout)
	}

	if e.policy.ShouldRetry(job.RetryCount, res.Code, errText) {
		e.retryJob(job)
		return
	}

	e.failJob(job, failureMessage(res, errText))
}

func (e *Engine) completeJob(job *domain.Job) {
	job.Progress = 100

	newPath, size := e.filer.Finalize(job.Filename)
	job.Filename = newPath
	if size > 0 {
		job.FullSize = size
		job.CurrentSize = size
		metrics.ArtifactBytes.Add(float64(size))
	}

	now := time.Now()
	job.CompletedAt = &now
	job.Status = domain.StatusCompleted

	metrics.JobsCompleted.Inc()
	if job.StartedAt != nil {
		metrics.JobDuration.Observe(now.Sub(*job.StartedAt).Seconds())
	}

	if err := e.history.Append(domain.HistoryRecord{
		ID:          job.ID,
		URL:         job.URL,
		Filename:    job.Filename,
		Size:        size,
		CompletedAt: now,
	}); err != nil {
		e.logger.Error("failed to append history record", "job_id", job.ID, "error", err)
	}

	e.logger.Info("job completed", "job_id", job.ID, "filename", job.Filename, "size", size)

	e.publish(domain.EventJobUpdated, job)
	e.persist()
	e.leaveActive()
}

func (e *Engine) failJob(job *domain.Job, msg string) {
	job.Status = domain.StatusError
	job.SetError(msg)
	now := time.Now()
	job.CompletedAt = &now

	metrics.JobsFailed.Inc()
	e.logger.Warn("job failed", "job_id", job.ID, "retry_count", job.RetryCount, "error", job.Error)

	e.publish(domain.EventJobUpdated, job)
	e.persist()
	e.leaveActive()
}

// retryJob re-arms a transiently failed job. The job keeps its slot, so
// the relaunch bypasses the queue entirely.
func (e *Engine) retryJob(job *domain.Job) {
	job.RetryCount++
	job.Status = domain.StatusRetrying
	job.Speed = ""
	job.ETA = ""

	metrics.JobRetries.Inc()
	e.logger.Info("job scheduled for retry",
		"job_id", job.ID,
		"retry_count", job.RetryCount,
		"backoff", e.policy.Backoff,
	)

	e.publish(domain.EventJobUpdated, job)
	e.persist()

	id := job.ID
	time.AfterFunc(e.policy.Backoff, func() {
		e.post(func() { e.relaunch(id) })
	})
}

func (e *Engine) relaunch(id string) {
	job, ok := e.jobs[id]
	if !ok || job.Status != domain.StatusRetrying {
		// Cancelled during backoff.
		return
	}
	e.startJob(job)
}

func (e *Engine) cancelJob(job *domain.Job) int {
	wasActive := job.Status.IsActive()

	if job.Status == domain.StatusQueued {
		for i, qid := range e.queue {
			if qid == job.ID {
				e.queue = append(e.queue[:i], e.queue[i+1:]...)
				break
			}
		}
	}

	if handle, ok := e.handles[job.ID]; ok {
		handle.Kill()
		delete(e.handles, job.ID)
	}

	job.Status = domain.StatusCancelled
	now := time.Now()
	job.CompletedAt = &now

	metrics.JobsCancelled.Inc()
	e.logger.Info("job cancelled", "job_id", job.ID)

	e.filer.RemovePartials(job.Filename)

	e.publish(domain.EventJobUpdated, job)
	e.persist()

	if wasActive {
		e.leaveActive()
	} else {
		e.updateGauges()
	}
	return 1
}

// leaveActive frees a slot and immediately tries to fill it.
func (e *Engine) leaveActive() {
	e.active--
	e.promote()
}

func (e *Engine) publish(typ domain.EventType, job *domain.Job) {
	clone := job.Clone()
	clone.QueuePosition = e.queuePosition(job.ID)
	e.hub.Publish(domain.Event{Type: typ, Job: clone})
}

func (e *Engine) persist() {
	jobs := make([]*domain.Job, 0, len(e.order))
	for _, id := range e.order {
		jobs = append(jobs, e.jobs[id])
	}
	if err := e.store.Save(jobs); err != nil {
		e.logger.Error("failed to persist state", "error", err)
	}
}

func (e *Engine) updateGauges() {
	metrics.ActiveJobs.Set(float64(e.active))
	metrics.QueueLength.Set(float64(len(e.queue)))
}

func failureMessage(res supervisor.ExitResult, errText string) string {
	lines := strings.Split(strings.TrimSpace(errText), "\n")
	last := ""
	if len(lines) > 0 {
		last = strings.TrimSpace(lines[len(lines)-1])
	}
	if res.TimedOut {
		return errText
	}
	return fmt.Sprintf("worker exited with code %d: %s", res.Code, last)
}
