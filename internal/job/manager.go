package job

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"tomahawk/internal/id"
)

// Status represents the current status of a job
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Finished reports whether s is a terminal status.
func (s Status) Finished() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

var ErrNotFound = errors.New("job not found")

// Job is the bookkeeping record of one dispatched job.
type Job struct {
	ID          string
	Target      string
	Method      string
	Args        Args
	Status      Status
	Error       string
	CreatedAt   time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time

	cancel context.CancelFunc
}

// Manager keeps job records and fans status changes out to listeners.
// Records are returned by value so callers never share state with workers.
type Manager struct {
	jobs      map[string]*Job
	mu        sync.RWMutex
	listeners []chan Job
	retention time.Duration
}

const defaultRetention = 1 * time.Hour

// NewManager creates a job manager. Finished jobs older than retention are
// dropped by the cleanup loop; zero selects one hour.
func NewManager(retention time.Duration) *Manager {
	if retention <= 0 {
		retention = defaultRetention
	}
	return &Manager{
		jobs:      make(map[string]*Job),
		retention: retention,
	}
}

// StartCleanup starts a background goroutine that removes old finished jobs.
// Stops when ctx is cancelled.
func (m *Manager) StartCleanup(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(10 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.cleanup()
			}
		}
	}()
}

func (m *Manager) cleanup() {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := time.Now().Add(-m.retention)
	for id, job := range m.jobs {
		if job.CompletedAt != nil && job.CompletedAt.Before(cutoff) {
			delete(m.jobs, id)
		}
	}
}

// Create registers a new pending job
func (m *Manager) Create(target, method string, args Args) Job {
	m.mu.Lock()
	defer m.mu.Unlock()

	job := &Job{
		ID:        id.MustGenerate("job"),
		Target:    target,
		Method:    method,
		Args:      args,
		Status:    StatusPending,
		CreatedAt: time.Now(),
	}

	m.jobs[job.ID] = job
	m.notifyListeners(*job)
	return *job
}

// Get retrieves a job by ID
func (m *Manager) Get(jobID string) (Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	job, ok := m.jobs[jobID]
	if !ok {
		return Job{}, fmt.Errorf("%w: %s", ErrNotFound, jobID)
	}
	return *job, nil
}

// List returns all jobs, oldest first
func (m *Manager) List() []Job {
	m.mu.RLock()
	defer m.mu.RUnlock()

	jobs := make([]Job, 0, len(m.jobs))
	for _, job := range m.jobs {
		jobs = append(jobs, *job)
	}
	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].CreatedAt.Before(jobs[j].CreatedAt)
	})
	return jobs
}

// Update applies fn to the job and stamps status transitions.
func (m *Manager) Update(jobID string, fn func(*Job)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, ok := m.jobs[jobID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, jobID)
	}

	oldStatus := job.Status
	fn(job)

	if oldStatus != job.Status {
		now := time.Now()
		switch {
		case job.Status == StatusRunning:
			if job.StartedAt == nil {
				job.StartedAt = &now
			}
		case job.Status.Finished():
			if job.CompletedAt == nil {
				job.CompletedAt = &now
			}
			job.cancel = nil
		}
	}

	m.notifyListeners(*job)
	return nil
}

// Cancel stops a pending or running job. Cancelling a finished job is a no-op.
func (m *Manager) Cancel(jobID string) error {
	m.mu.RLock()
	job, ok := m.jobs[jobID]
	var cancel context.CancelFunc
	if ok {
		cancel = job.cancel
	}
	m.mu.RUnlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, jobID)
	}
	if cancel != nil {
		cancel()
	}
	return nil
}

func (m *Manager) setCancel(jobID string, cancel context.CancelFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if job, ok := m.jobs[jobID]; ok && !job.Status.Finished() {
		job.cancel = cancel
	}
}

// Subscribe returns a channel receiving every job update.
func (m *Manager) Subscribe() <-chan Job {
	m.mu.Lock()
	defer m.mu.Unlock()

	ch := make(chan Job, 32)
	m.listeners = append(m.listeners, ch)
	return ch
}

// Unsubscribe removes a listener and closes its channel.
func (m *Manager) Unsubscribe(ch <-chan Job) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, listener := range m.listeners {
		if listener == ch {
			m.listeners = append(m.listeners[:i], m.listeners[i+1:]...)
			close(listener)
			break
		}
	}
}

// notifyListeners sends updates to all listeners. Slow listeners miss updates.
func (m *Manager) notifyListeners(job Job) {
	for _, ch := range m.listeners {
		select {
		case ch <- job:
		default:
		}
	}
}
