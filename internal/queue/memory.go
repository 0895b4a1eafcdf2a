package queue

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Memory is a mutex-guarded in-process queue implementing the same contract as
// the Redis queue. Pending jobs do not survive a restart; the scheduler's boot
// reconciliation pass re-derives them from contest rows.
type Memory struct {
	mu      sync.Mutex
	jobs    map[string]Job
	dead    []Job
	handler Handler
	opts    Options
}

func NewMemory(opts Options) *Memory {
	return &Memory{
		jobs: make(map[string]Job),
		opts: opts.withDefaults(),
	}
}

func (m *Memory) Enqueue(ctx context.Context, job Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	// Same id replaces the pending job, never duplicates it.
	m.jobs[job.ID] = job
	return nil
}

func (m *Memory) Cancel(ctx context.Context, jobID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.jobs, jobID)
	return nil
}

// Bind sets the handler without starting the poll loop. Useful when ticking
// the queue manually via RunDue.
func (m *Memory) Bind(h Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handler = h
}

func (m *Memory) Start(ctx context.Context, h Handler) {
	m.Bind(h)
	go func() {
		ticker := time.NewTicker(m.opts.PollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.RunDue(ctx, time.Now())
			}
		}
	}()
}

// RunDue executes every job whose RunAt is at or before now, in RunAt order,
// and returns how many jobs ran. Failed jobs are rescheduled with backoff
// until MaxAttempts, then moved to the dead list for manual inspection.
func (m *Memory) RunDue(ctx context.Context, now time.Time) int {
	m.mu.Lock()
	h := m.handler
	var due []Job
	for id, job := range m.jobs {
		if !job.RunAt.After(now) {
			due = append(due, job)
			delete(m.jobs, id)
		}
	}
	m.mu.Unlock()

	if h == nil || len(due) == 0 {
		return 0
	}
	sort.Slice(due, func(i, j int) bool { return due[i].RunAt.Before(due[j].RunAt) })

	ran := 0
	for _, job := range due {
		ran++
		err := h(ctx, job)
		if err == nil {
			continue
		}
		if errors.Is(err, ErrSkip) {
			zap.S().Infof("job %s skipped: %v", job.ID, err)
			continue
		}

		job.Attempts++
		if job.Attempts >= m.opts.MaxAttempts {
			zap.S().Errorf("job %s failed after %d attempts, parking it: %v", job.ID, job.Attempts, err)
			m.mu.Lock()
			m.dead = append(m.dead, job)
			m.mu.Unlock()
			continue
		}
		zap.S().Warnf("job %s failed (attempt %d), retrying: %v", job.ID, job.Attempts, err)
		job.RunAt = now.Add(m.opts.Backoff)
		m.mu.Lock()
		// Do not clobber a fresher job enqueued under the same id meanwhile.
		if _, exists := m.jobs[job.ID]; !exists {
			m.jobs[job.ID] = job
		}
		m.mu.Unlock()
	}
	return ran
}

// Pending reports the pending job for an id, if any.
func (m *Memory) Pending(jobID string) (Job, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[jobID]
	return job, ok
}

// Len is the number of pending jobs.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.jobs)
}

// Dead returns jobs that exhausted their retries.
func (m *Memory) Dead() []Job {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Job, len(m.dead))
	copy(out, m.dead)
	return out
}

func (m *Memory) Close() error {
	return nil
}
