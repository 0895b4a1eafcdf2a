package contest

import (
	"context"

	"github.com/Diploma-Survivors/sfinx-backend-sub003/internal/database"
	"github.com/Diploma-Survivors/sfinx-backend-sub003/internal/database/models"
	"github.com/Diploma-Survivors/sfinx-backend-sub003/internal/queue"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Scheduler translates contest start/end timestamps into delayed jobs. Job ids
// are deterministic per contest and kind, so scheduling the same contest again
// replaces the pending jobs instead of duplicating them.
type Scheduler struct {
	db *gorm.DB
	q  queue.Queue
}

func NewScheduler(db *gorm.DB, q queue.Queue) *Scheduler {
	return &Scheduler{db: db, q: q}
}

// Schedule enqueues the lifecycle jobs a contest needs given its current
// status: start and end for a Scheduled contest, end only once it is Running.
// A target time already in the past makes the job due on the next queue tick.
func (s *Scheduler) Schedule(ctx context.Context, c *models.Contest) error {
	if c.Status == models.StatusScheduled {
		startJob := queue.Job{
			ID:        queue.JobID(c.ID, queue.KindContestStart),
			Kind:      queue.KindContestStart,
			ContestID: c.ID,
			RunAt:     c.StartTime,
		}
		if err := s.q.Enqueue(ctx, startJob); err != nil {
			return err
		}
	}

	endJob := queue.Job{
		ID:        queue.JobID(c.ID, queue.KindContestEnd),
		Kind:      queue.KindContestEnd,
		ContestID: c.ID,
		RunAt:     c.EndTime,
	}
	if err := s.q.Enqueue(ctx, endJob); err != nil {
		return err
	}

	zap.S().Infof("scheduled lifecycle jobs for contest %s (start %s, end %s)",
		c.ID, c.StartTime, c.EndTime)
	return nil
}

// Unschedule removes both lifecycle jobs for a contest. Best-effort: a job
// that already fired or never existed is not an error.
func (s *Scheduler) Unschedule(ctx context.Context, contestID string) {
	for _, kind := range []queue.Kind{queue.KindContestStart, queue.KindContestEnd} {
		if err := s.q.Cancel(ctx, queue.JobID(contestID, kind)); err != nil {
			zap.S().Warnf("failed to cancel %s job for contest %s: %v", kind, contestID, err)
		}
	}
}

// Recover re-derives and re-enqueues lifecycle jobs for every contest that is
// currently Scheduled or Running. Run at boot: pending delayed jobs may have
// been lost with the previous process, and re-enqueueing under the same ids is
// harmless when they were not.
func (s *Scheduler) Recover(ctx context.Context) error {
	contests, err := database.GetSchedulableContests(s.db)
	if err != nil {
		return err
	}

	if len(contests) == 0 {
		zap.S().Info("no contests need schedule recovery")
		return nil
	}

	zap.S().Infof("recovering schedules for %d contests...", len(contests))
	for i := range contests {
		c := contests[i]
		if err := s.Schedule(ctx, &c); err != nil {
			zap.S().Errorf("failed to recover schedule for contest %s: %v", c.ID, err)
		}
	}
	zap.S().Info("finished schedule recovery")
	return nil
}
