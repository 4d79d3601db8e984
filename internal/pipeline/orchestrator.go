package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"
)

var (
	// ErrQueueFull is returned by Submit when no queue slot is free.
	ErrQueueFull = errors.New("job queue is full")

	// ErrStopped is returned by Submit after Stop.
	ErrStopped = errors.New("orchestrator stopped")
)

// OrchestratorConfig sizes the job queue.
type OrchestratorConfig struct {
	JobWorkers      int           // Rank jobs processed at once.
	MaxQueueSize    int           // Jobs waiting beyond the running ones.
	JobTTL          time.Duration // How long finished jobs stay queryable.
	CleanupInterval time.Duration
}

// Orchestrator queues rank jobs and runs them on a fixed set of workers.
type Orchestrator struct {
	jobs   *JobStore
	queue  chan *Job
	runner *Runner
	log    *slog.Logger
	cfg    OrchestratorConfig

	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.RWMutex
	stopped bool
}

// NewOrchestrator creates the job queue. Call Start to begin processing.
func NewOrchestrator(cfg OrchestratorConfig, runner *Runner, log *slog.Logger) *Orchestrator {
	if cfg.JobWorkers <= 0 {
		cfg.JobWorkers = 1
	}
	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = 100
	}
	if cfg.JobTTL <= 0 {
		cfg.JobTTL = time.Hour
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = 5 * time.Minute
	}
	return &Orchestrator{
		jobs:   NewJobStore(cfg.JobTTL),
		queue:  make(chan *Job, cfg.MaxQueueSize),
		runner: runner,
		log:    log,
		cfg:    cfg,
	}
}

// Start launches worker goroutines.
func (o *Orchestrator) Start(ctx context.Context) {
	workerCtx, cancel := context.WithCancel(ctx)
	o.cancel = cancel

	for range o.cfg.JobWorkers {
		o.wg.Add(1)
		go func() {
			defer o.wg.Done()
			for {
				select {
				case <-workerCtx.Done():
					return
				case job, ok := <-o.queue:
					if !ok {
						return
					}
					o.process(workerCtx, job)
				}
			}
		}()
	}

	// Start job store cleanup.
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		ticker := time.NewTicker(o.cfg.CleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-workerCtx.Done():
				return
			case <-ticker.C:
				o.jobs.Cleanup()
			}
		}
	}()
}

// Stop cancels running jobs, waits for the workers, and fails every job
// still queued.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	if o.stopped {
		o.mu.Unlock()
		return
	}
	o.stopped = true
	close(o.queue)
	o.mu.Unlock()

	if o.cancel != nil {
		o.cancel()
	}
	o.wg.Wait()

	for job := range o.queue {
		job.AddError("orchestrator stopped before the job ran")
		job.SetStatus(StatusFailed, "queued")
		o.removeInput(o.log.With("job_id", job.ID), job)
	}
}

// Submit queues a job for processing.
func (o *Orchestrator) Submit(job *Job) error {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.stopped {
		job.SetStatus(StatusFailed, "queued")
		return ErrStopped
	}
	select {
	case o.queue <- job:
		o.jobs.Put(job)
		return nil
	default:
		job.SetStatus(StatusFailed, "queue_full")
		return fmt.Errorf("%w (%d)", ErrQueueFull, o.cfg.MaxQueueSize)
	}
}

// GetJob returns a job by ID.
func (o *Orchestrator) GetJob(id string) *Job {
	return o.jobs.Get(id)
}

// QueueDepth returns current queue depth.
func (o *Orchestrator) QueueDepth() int {
	return len(o.queue)
}

func (o *Orchestrator) process(ctx context.Context, job *Job) {
	log := o.log.With("job_id", job.ID)
	defer o.removeInput(log, job)

	job.SetStatus(StatusRunning, "ranking")
	log.Info("rank job started", "documents", len(job.request.Documents))

	out, err := o.runner.Run(ctx, job.request)
	if err != nil {
		log.Error("rank job failed", "error", err)
		job.AddError(err.Error())
		job.SetStatus(StatusFailed, "ranking")
		return
	}
	job.Complete(out)
	log.Info("rank job completed",
		"processed", len(out.Metadata.InputDocuments),
		"sections", len(out.ExtractedSections),
	)
}

func (o *Orchestrator) removeInput(log *slog.Logger, job *Job) {
	if job.inputDir == "" {
		return
	}
	if err := os.RemoveAll(job.inputDir); err != nil {
		log.Warn("failed to remove job input", "dir", job.inputDir, "error", err)
	}
}
