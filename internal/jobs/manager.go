// Package jobs runs region aggregations asynchronously with SQLite
// persistence, so long computations survive restarts and can be
// polled or cancelled.
package jobs

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/canopystats/server/internal/jobs/jobstore"
	"github.com/canopystats/server/internal/metrics"
	"github.com/canopystats/server/internal/service"
)

// ManagerConfig contains configuration for the job manager.
type ManagerConfig struct {
	MaxConcurrent int    // Max concurrent jobs (default 1)
	SQLitePath    string // Path to SQLite database
	RetentionDays int    // Days to keep finished jobs (default 7)
	CleanupPeriod time.Duration
}

// Manager manages aggregation jobs with SQLite persistence.
type Manager struct {
	cfg      ManagerConfig
	store    *jobstore.Store
	queue    chan string // job IDs
	running  map[string]context.CancelFunc
	mu       sync.Mutex
	stopped  bool
	wg       sync.WaitGroup
	stopOnce sync.Once
	stopCh   chan struct{}

	// Executor is called to run the actual aggregation.
	Executor func(ctx context.Context, store *jobstore.Store, jobID string) error
}

// NewManager creates a new job manager with SQLite persistence.
func NewManager(cfg ManagerConfig) (*Manager, error) {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 1
	}
	if cfg.RetentionDays <= 0 {
		cfg.RetentionDays = 7
	}
	if cfg.CleanupPeriod <= 0 {
		cfg.CleanupPeriod = 1 * time.Hour
	}

	store, err := jobstore.NewStore(cfg.SQLitePath)
	if err != nil {
		return nil, err
	}

	m := &Manager{
		cfg:     cfg,
		store:   store,
		queue:   make(chan string, 100),
		running: make(map[string]context.CancelFunc),
		stopCh:  make(chan struct{}),
	}
	return m, nil
}

// Store returns the underlying store for direct access.
func (m *Manager) Store() *jobstore.Store {
	return m.store
}

// Start starts the worker goroutines and cleanup ticker.
// Also recovers from previous shutdown.
func (m *Manager) Start() {
	// Mark any running jobs as failed (process restart)
	if err := m.store.MarkRunningAsFailed("server restarted"); err != nil {
		log.Printf("[Jobs] failed to mark running jobs as failed: %v", err)
	}

	// Re-queue any queued jobs
	queued, err := m.store.ListQueuedJobs()
	if err != nil {
		log.Printf("[Jobs] failed to list queued jobs: %v", err)
	} else {
		for _, job := range queued {
			select {
			case m.queue <- job.ID:
				log.Printf("[Jobs] re-queued job %s", job.ID)
			default:
				log.Printf("[Jobs] queue full, cannot re-queue job %s", job.ID)
			}
		}
	}

	for i := 0; i < m.cfg.MaxConcurrent; i++ {
		m.wg.Add(1)
		go m.worker()
	}

	go m.cleaner()
}

// Stop stops all workers gracefully. Submissions after Stop are
// rejected.
func (m *Manager) Stop() {
	m.stopOnce.Do(func() {
		m.mu.Lock()
		m.stopped = true
		m.mu.Unlock()
		close(m.stopCh)
		close(m.queue)
		m.wg.Wait()
		m.store.Close()
	})
}

func (m *Manager) worker() {
	defer m.wg.Done()
	for jobID := range m.queue {
		m.runJob(jobID)
	}
}

func (m *Manager) runJob(jobID string) {
	ctx, cancel := context.WithCancel(context.Background())

	m.mu.Lock()
	m.running[jobID] = cancel
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		delete(m.running, jobID)
		m.mu.Unlock()
	}()

	if err := m.store.UpdateJobStarted(jobID); err != nil {
		log.Printf("[Jobs] failed to update job %s as started: %v", jobID, err)
		return
	}

	var execErr error
	if m.Executor != nil {
		execErr = m.Executor(ctx, m.store, jobID)
	}

	if ctx.Err() == context.Canceled {
		m.store.UpdateJobStatus(jobID, jobstore.JobStatusCancelled, "cancelled by user")
	} else if execErr != nil {
		m.store.UpdateJobStatus(jobID, jobstore.JobStatusFailed, execErr.Error())
	} else {
		m.store.UpdateJobStatus(jobID, jobstore.JobStatusCompleted, "")
	}
}

func (m *Manager) cleaner() {
	ticker := time.NewTicker(m.cfg.CleanupPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-m.stopCh:
			return
		case <-ticker.C:
			m.cleanup()
		}
	}
}

func (m *Manager) cleanup() {
	deleted, err := m.store.DeleteExpiredJobs(m.cfg.RetentionDays)
	if err != nil {
		log.Printf("[Jobs] cleanup error: %v", err)
	} else if deleted > 0 {
		log.Printf("[Jobs] cleaned up %d expired jobs", deleted)
	}
}

// Submit creates a new job and enqueues it for execution.
func (m *Manager) Submit(params jobstore.JobParams) (*jobstore.Job, error) {
	id := generateJobID()
	job := &jobstore.Job{
		ID:        id,
		Region:    params.Region,
		Status:    jobstore.JobStatusQueued,
		Params:    params,
		CreatedAt: time.Now(),
	}

	// The lock spans the enqueue so Stop cannot close the queue
	// between the check and the send.
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopped {
		return nil, errors.New("job manager is stopped")
	}

	if err := m.store.CreateJob(job); err != nil {
		return nil, err
	}

	select {
	case m.queue <- id:
	default:
		// Queue full; mark as failed immediately
		m.store.UpdateJobStatus(id, jobstore.JobStatusFailed, "job queue is full; try again later")
	}

	return job, nil
}

// Get returns a job by ID.
func (m *Manager) Get(id string) *jobstore.Job {
	job, err := m.store.GetJob(id)
	if err != nil {
		log.Printf("[Jobs] error getting job %s: %v", id, err)
		return nil
	}
	return job
}

// Cancel attempts to cancel a running job.
func (m *Manager) Cancel(id string) bool {
	m.mu.Lock()
	cancel, ok := m.running[id]
	m.mu.Unlock()

	if ok && cancel != nil {
		cancel()
		return true
	}

	// If not running, try to mark as cancelled in DB
	job, err := m.store.GetJob(id)
	if err != nil || job == nil {
		return false
	}
	if job.Status == jobstore.JobStatusQueued {
		m.store.UpdateJobStatus(id, jobstore.JobStatusCancelled, "cancelled before start")
		return true
	}
	return false
}

// Delete deletes a job.
func (m *Manager) Delete(id string) error {
	return m.store.DeleteJob(id)
}

func generateJobID() string {
	b := make([]byte, 8)
	rand.Read(b)
	return hex.EncodeToString(b)
}

// ServiceExecutor returns an Executor that dispatches a job's
// parameters to the aggregation service and stores the JSON-encoded
// outcome on the job record.
func ServiceExecutor(svc *service.Service) func(ctx context.Context, store *jobstore.Store, jobID string) error {
	return func(ctx context.Context, store *jobstore.Store, jobID string) error {
		job, err := store.GetJob(jobID)
		if err != nil {
			return err
		}
		if job == nil {
			return fmt.Errorf("job %s disappeared", jobID)
		}

		var out any
		switch job.Params.Kind {
		case jobstore.JobKindMetric:
			metric, err := metrics.ParseMetric(job.Params.Metric)
			if err != nil {
				return err
			}
			out, err = svc.AggregateRegionMetric(ctx, job.Params.Region, metric)
			if err != nil {
				return err
			}
		case jobstore.JobKindBiomass:
			out, err = svc.AggregateRegionBiomass(ctx, job.Params.Region)
			if err != nil {
				return err
			}
		case jobstore.JobKindSpecies:
			out, err = svc.DominantSpecies(ctx, job.Params.Region, job.Params.TopN)
			if err != nil {
				return err
			}
		case jobstore.JobKindCompare:
			metric, err := metrics.ParseMetric(job.Params.Metric)
			if err != nil {
				return err
			}
			out, err = svc.CompareRegions(ctx, job.Params.Region, job.Params.SecondRegion, metric)
			if err != nil {
				return err
			}
		default:
			return fmt.Errorf("unknown job kind %q", job.Params.Kind)
		}

		data, err := json.Marshal(out)
		if err != nil {
			return fmt.Errorf("failed to encode job result: %w", err)
		}
		return store.SetResult(jobID, data)
	}
}
