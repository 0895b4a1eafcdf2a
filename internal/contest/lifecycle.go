package contest

import (
	"context"
	"errors"
	"fmt"

	"github.com/Diploma-Survivors/sfinx-backend-sub003/internal/database"
	"github.com/Diploma-Survivors/sfinx-backend-sub003/internal/database/models"
	"github.com/Diploma-Survivors/sfinx-backend-sub003/internal/pubsub"
	"github.com/Diploma-Survivors/sfinx-backend-sub003/internal/queue"
	"github.com/Diploma-Survivors/sfinx-backend-sub003/internal/rating"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	// Benign race outcomes: the transition a job wanted already happened.
	// Swallowed by the job handler, never retried.
	ErrAlreadyStarted = errors.New("can only start scheduled contests")
	ErrAlreadyEnded   = errors.New("can only end running contests")

	ErrMissingTimes   = errors.New("contest needs start and end times before scheduling")
	ErrCancelTerminal = errors.New("ended or cancelled contests cannot be cancelled")
)

// Service owns contest status transitions. Status only ever moves forward
// (Draft, Scheduled, Running, Ended) except into Cancelled, which is reachable
// from any non-terminal state and is terminal itself.
type Service struct {
	db     *gorm.DB
	sched  *Scheduler
	broker *pubsub.Broker
}

func NewService(db *gorm.DB, sched *Scheduler, broker *pubsub.Broker) *Service {
	return &Service{db: db, sched: sched, broker: broker}
}

// Create stores a new contest in Draft.
func (s *Service) Create(ctx context.Context, c *models.Contest) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	c.Status = models.StatusDraft
	if err := database.CreateContest(s.db, c); err != nil {
		return err
	}
	publishEvent(s.broker, EventContestCreated, c.ID)
	return nil
}

// Update applies an administrative edit. Changing times on a Scheduled
// contest reschedules its lifecycle jobs under the same job ids; once the
// contest is running its times are locked, like its problem set.
func (s *Service) Update(ctx context.Context, c *models.Contest) error {
	current, err := database.GetContest(s.db, c.ID)
	if err != nil {
		return err
	}
	if current.Status != models.StatusDraft && current.Status != models.StatusScheduled &&
		(!current.StartTime.Equal(c.StartTime) || !current.EndTime.Equal(c.EndTime)) {
		return database.ErrContestLocked
	}
	// Status and the rating guard are owned by the state machine, not by
	// admin edits.
	current.Title = c.Title
	current.Slug = c.Slug
	current.Description = c.Description
	current.StartTime = c.StartTime
	current.EndTime = c.EndTime
	current.MaxParticipants = c.MaxParticipants

	if err := database.UpdateContest(s.db, current); err != nil {
		return err
	}
	*c = *current

	if c.Status == models.StatusScheduled || c.Status == models.StatusRunning {
		if err := s.sched.Schedule(ctx, c); err != nil {
			return err
		}
	}
	publishEvent(s.broker, EventContestUpdated, c.ID)
	return nil
}

// Publish moves Draft -> Scheduled and enqueues the lifecycle jobs.
func (s *Service) Publish(ctx context.Context, contestID string) error {
	c, err := database.GetContest(s.db, contestID)
	if err != nil {
		return err
	}
	if c.Status != models.StatusDraft {
		return fmt.Errorf("can only publish draft contests, contest is %s", c.Status)
	}
	if c.StartTime.IsZero() || c.EndTime.IsZero() {
		return ErrMissingTimes
	}

	c.Status = models.StatusScheduled
	if err := database.UpdateContestStatus(s.db, c.ID, c.Status); err != nil {
		return err
	}
	if err := s.sched.Schedule(ctx, c); err != nil {
		return err
	}
	publishEvent(s.broker, EventContestUpdated, c.ID)
	return nil
}

// Start moves Scheduled -> Running. Any other current status yields
// ErrAlreadyStarted, which callers racing the clock treat as a no-op.
func (s *Service) Start(ctx context.Context, contestID string) error {
	c, err := database.GetContest(s.db, contestID)
	if err != nil {
		return err
	}
	if c.Status != models.StatusScheduled {
		return fmt.Errorf("%w (contest %s is %s)", ErrAlreadyStarted, contestID, c.Status)
	}

	c.Status = models.StatusRunning
	if err := database.UpdateContestStatus(s.db, c.ID, c.Status); err != nil {
		return err
	}
	zap.S().Infof("contest %s is now running", contestID)
	publishEvent(s.broker, EventContestUpdated, c.ID)
	return nil
}

// End moves Running -> Ended and then runs the rating batch. The transition is
// retry-safe: a repeated End on an Ended contest only re-attempts the rating
// batch if it has not been applied yet, and reports ErrAlreadyEnded otherwise.
func (s *Service) End(ctx context.Context, contestID string) error {
	c, err := database.GetContest(s.db, contestID)
	if err != nil {
		return err
	}

	switch c.Status {
	case models.StatusRunning:
		c.Status = models.StatusEnded
		if err := database.UpdateContestStatus(s.db, c.ID, c.Status); err != nil {
			return err
		}
		s.sched.Unschedule(ctx, contestID)
		zap.S().Infof("contest %s has ended", contestID)
		publishEvent(s.broker, EventContestUpdated, c.ID)
	case models.StatusEnded:
		if c.RatingDone {
			return fmt.Errorf("%w (contest %s is %s)", ErrAlreadyEnded, contestID, c.Status)
		}
		// Fall through to the rating batch: a previous end attempt made the
		// transition but died before rating was applied.
	default:
		return fmt.Errorf("%w (contest %s is %s)", ErrAlreadyEnded, contestID, c.Status)
	}

	if err := s.applyRatings(contestID); err != nil {
		return err
	}
	if s.broker != nil {
		s.broker.CloseTopic(pubsub.LeaderboardTopic(contestID))
	}
	return nil
}

// Cancel moves any non-terminal contest to Cancelled and drops its jobs. A
// cancelled contest is never rated.
func (s *Service) Cancel(ctx context.Context, contestID string) error {
	c, err := database.GetContest(s.db, contestID)
	if err != nil {
		return err
	}
	if c.Status.Terminal() {
		return ErrCancelTerminal
	}

	c.Status = models.StatusCancelled
	if err := database.UpdateContestStatus(s.db, c.ID, c.Status); err != nil {
		return err
	}
	s.sched.Unschedule(ctx, contestID)
	if s.broker != nil {
		s.broker.CloseTopic(pubsub.LeaderboardTopic(contestID))
	}
	zap.S().Infof("contest %s cancelled", contestID)
	publishEvent(s.broker, EventContestUpdated, c.ID)
	return nil
}

// Delete removes a contest entirely. Running and Ended contests are protected;
// pending jobs are dropped with the contest.
func (s *Service) Delete(ctx context.Context, contestID string) error {
	if err := database.DeleteContest(s.db, contestID); err != nil {
		return err
	}
	s.sched.Unschedule(ctx, contestID)
	if s.broker != nil {
		s.broker.CloseTopic(pubsub.LeaderboardTopic(contestID))
	}
	publishEvent(s.broker, EventContestDeleted, contestID)
	return nil
}

// HandleJob is the queue handler dispatching lifecycle jobs. Benign races and
// vanished contests are wrapped in queue.ErrSkip so the queue acknowledges
// them instead of retrying.
func (s *Service) HandleJob(ctx context.Context, job queue.Job) error {
	var err error
	switch job.Kind {
	case queue.KindContestStart:
		err = s.Start(ctx, job.ContestID)
	case queue.KindContestEnd:
		err = s.End(ctx, job.ContestID)
	default:
		return fmt.Errorf("%w: unknown job kind %d", queue.ErrSkip, job.Kind)
	}

	if err == nil {
		return nil
	}
	if errors.Is(err, ErrAlreadyStarted) || errors.Is(err, ErrAlreadyEnded) ||
		errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: %v", queue.ErrSkip, err)
	}
	return err
}

// applyRatings runs the Elo batch for a finished contest. Fewer than two
// participants with submissions is a documented no-op. The batch commits
// atomically; RatingDone makes a concurrent or repeated run a no-op too.
func (s *Service) applyRatings(contestID string) error {
	participants, err := database.GetActiveParticipants(s.db, contestID)
	if err != nil {
		return err
	}
	if len(participants) < 2 {
		zap.S().Infof("contest %s has %d rated participants, skipping rating", contestID, len(participants))
		return nil
	}

	entries := BuildLeaderboard(participants)

	userIDs := make([]string, len(entries))
	for i, e := range entries {
		userIDs[i] = e.UserID
	}
	ratings, err := database.GetRatingsForUsers(s.db, userIDs)
	if err != nil {
		return err
	}

	field := make([]rating.Contestant, len(entries))
	for i, e := range entries {
		field[i] = rating.Contestant{
			UserID: e.UserID,
			Rank:   e.Rank,
			Rating: ratings[e.UserID],
		}
	}

	results := rating.CalculateDeltas(field)
	updates := make([]database.RatingUpdate, len(results))
	for i, r := range results {
		updates[i] = database.RatingUpdate{
			UserID:       r.UserID,
			RatingBefore: r.RatingBefore,
			RatingAfter:  r.RatingAfter,
			RatingDelta:  r.Delta,
			ContestRank:  r.Rank,
		}
	}

	if err := database.ApplyRatingResults(s.db, contestID, updates); err != nil {
		if errors.Is(err, database.ErrRatingApplied) {
			zap.S().Infof("rating for contest %s already applied", contestID)
			return nil
		}
		return err
	}
	zap.S().Infof("applied rating deltas for %d participants of contest %s", len(updates), contestID)
	return nil
}
