package contest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Diploma-Survivors/sfinx-backend-sub003/internal/database"
	"github.com/Diploma-Survivors/sfinx-backend-sub003/internal/database/models"
	"github.com/Diploma-Survivors/sfinx-backend-sub003/internal/pubsub"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	ErrContestNotStarted   = errors.New("contest has not started")
	ErrProblemNotInContest = errors.New("problem is not part of this contest")
)

// scoreUpdateRetries bounds the optimistic-lock loop per event. Conflicts only
// happen when the same participant's row is written concurrently, which a
// single user can barely sustain, so a handful of retries is plenty.
const scoreUpdateRetries = 5

// Aggregator folds accepted-submission events into per-participant score
// aggregates. Events for different participants are fully independent;
// per-participant writes are serialized by the row's version counter.
type Aggregator struct {
	db     *gorm.DB
	broker *pubsub.Broker
}

func NewAggregator(db *gorm.DB, broker *pubsub.Broker) *Aggregator {
	return &Aggregator{db: db, broker: broker}
}

// HandleSubmissionAccepted applies one accepted verdict. Events without a
// contest id and events arriving after the contest ended are ignored;
// submissions from unregistered users or for unknown problems are rejected.
func (a *Aggregator) HandleSubmissionAccepted(ctx context.Context, ev SubmissionAccepted) error {
	if ev.ContestID == "" {
		return nil
	}

	c, err := database.GetContest(a.db, ev.ContestID)
	if err != nil {
		return fmt.Errorf("load contest %s: %w", ev.ContestID, err)
	}

	switch c.Status {
	case models.StatusRunning:
	case models.StatusEnded, models.StatusCancelled:
		// Late verdicts after the end boundary do not count toward score or
		// rating. Logged so the submission subsystem's lag is visible.
		zap.S().Warnf("ignoring late accepted submission %s for %s contest %s",
			ev.SubmissionID, c.Status, ev.ContestID)
		return nil
	default:
		return ErrContestNotStarted
	}

	var points decimal.Decimal
	found := false
	for _, p := range c.Problems {
		if p.ProblemID == ev.ProblemID {
			points = p.Points
			found = true
			break
		}
	}
	if !found {
		return ErrProblemNotInContest
	}

	for attempt := 0; attempt < scoreUpdateRetries; attempt++ {
		participant, err := database.GetParticipant(a.db, ev.ContestID, ev.UserID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return database.ErrNotRegistered
			}
			return err
		}

		applyAccepted(participant, c, ev, points)

		err = database.SaveParticipantScores(a.db, participant)
		if err == nil {
			a.publishLeaderboard(ev.ContestID)
			return nil
		}
		if !errors.Is(err, database.ErrVersionConflict) {
			return err
		}
		zap.S().Debugf("version conflict for participant %s/%s, retrying", ev.ContestID, ev.UserID)
	}
	return database.ErrVersionConflict
}

// applyAccepted mutates the participant aggregate for one accepted verdict.
// Only the first accepted verdict per problem scores; repeats bump counters.
// Score and solved count never decrease while the contest runs.
func applyAccepted(p *models.ContestParticipant, c *models.Contest, ev SubmissionAccepted, points decimal.Decimal) {
	if p.ProblemScores == nil {
		p.ProblemScores = models.ProblemScoreMap{}
	}

	ps := p.ProblemScores[ev.ProblemID]
	ps.Submissions++
	ps.LastSubmitTime = ev.SubmittedAt
	p.TotalSubmissions++

	if ps.FirstAcTime == nil {
		ac := ev.SubmittedAt
		ps.FirstAcTime = &ac
		ps.Score = points

		p.SolvedCount++
		p.TotalScore = p.TotalScore.Add(points)

		elapsed := int(ev.SubmittedAt.Sub(c.StartTime).Seconds())
		if elapsed < 0 {
			elapsed = 0
		}
		// Verdict events may arrive out of submission order; the finish time
		// tracks the latest solve and never moves backwards.
		if elapsed > p.FinishTime {
			p.FinishTime = elapsed
		}
	}
	p.ProblemScores[ev.ProblemID] = ps
}

func (a *Aggregator) publishLeaderboard(contestID string) {
	if a.broker == nil {
		return
	}
	participants, err := database.GetActiveParticipants(a.db, contestID)
	if err != nil {
		zap.S().Errorf("failed to load participants for leaderboard push: %v", err)
		return
	}
	entries := BuildLeaderboard(participants)
	msg, err := json.Marshal(entries)
	if err != nil {
		zap.S().Errorf("failed to marshal leaderboard: %v", err)
		return
	}
	a.broker.Publish(pubsub.LeaderboardTopic(contestID), msg)
}
