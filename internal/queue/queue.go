// Package queue provides the delayed-job queue driving contest lifecycle
// transitions. Jobs are keyed by deterministic ids so that re-scheduling the
// same job replaces the pending one instead of duplicating it.
package queue

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Kind is the closed set of job kinds. Dispatch happens through a single
// switch on this value; there is no string-keyed handler registry.
type Kind int

const (
	KindContestStart Kind = iota
	KindContestEnd
)

func (k Kind) String() string {
	switch k {
	case KindContestStart:
		return "start"
	case KindContestEnd:
		return "end"
	default:
		return "unknown"
	}
}

// JobID derives the deterministic, contest-scoped id for a job kind.
// Enqueueing under an existing id replaces the pending job.
func JobID(contestID string, kind Kind) string {
	return fmt.Sprintf("contest:%s:%s", contestID, kind)
}

// Job is a delayed unit of work. RunAt in the past means the job is due on the
// next queue tick.
type Job struct {
	ID        string    `json:"id"`
	Kind      Kind      `json:"kind"`
	ContestID string    `json:"contest_id"`
	RunAt     time.Time `json:"run_at"`
	Attempts  int       `json:"attempts"`
}

// Handler executes a due job. Returning an error wrapping ErrSkip acknowledges
// the job without retrying (benign races such as "already running"); any other
// error triggers the queue's retry policy.
type Handler func(ctx context.Context, job Job) error

// ErrSkip marks a job outcome that must be logged and swallowed, not retried.
var ErrSkip = errors.New("job skipped")

type Queue interface {
	// Enqueue schedules a job, replacing any pending job with the same ID.
	Enqueue(ctx context.Context, job Job) error
	// Cancel removes a pending job. Cancelling an absent job is not an error.
	Cancel(ctx context.Context, jobID string) error
	// Start consumes due jobs with h until ctx is done.
	Start(ctx context.Context, h Handler)
	Close() error
}

// Options tune the consumption loop; zero values fall back to the defaults
// used by config.applyDefaults.
type Options struct {
	Workers      int
	PollInterval time.Duration
	MaxAttempts  int
	Backoff      time.Duration
}

func (o Options) withDefaults() Options {
	if o.Workers <= 0 {
		o.Workers = 4
	}
	if o.PollInterval <= 0 {
		o.PollInterval = 500 * time.Millisecond
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 5
	}
	if o.Backoff <= 0 {
		o.Backoff = 2 * time.Second
	}
	return o
}
