package contest

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/Diploma-Survivors/sfinx-backend-sub003/internal/database"
	"github.com/Diploma-Survivors/sfinx-backend-sub003/internal/database/models"
	"github.com/Diploma-Survivors/sfinx-backend-sub003/internal/pubsub"
	"github.com/Diploma-Survivors/sfinx-backend-sub003/internal/queue"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type testEnv struct {
	db         *gorm.DB
	queue      *queue.Memory
	scheduler  *Scheduler
	lifecycle  *Service
	aggregator *Aggregator
	broker     *pubsub.Broker
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := database.Init(filepath.Join(t.TempDir(), "contest.db"))
	require.NoError(t, err)

	q := queue.NewMemory(queue.Options{MaxAttempts: 3, Backoff: time.Millisecond})
	broker := pubsub.New()
	scheduler := NewScheduler(db, q)
	lifecycle := NewService(db, scheduler, broker)
	q.Bind(lifecycle.HandleJob)

	return &testEnv{
		db:         db,
		queue:      q,
		scheduler:  scheduler,
		lifecycle:  lifecycle,
		aggregator: NewAggregator(db, broker),
		broker:     broker,
	}
}

// createContest sets up a Draft contest with two problems (p1 worth 100,
// p2 worth 200) and registers alice and bob.
func (e *testEnv) createContest(t *testing.T, start, end time.Time) *models.Contest {
	t.Helper()

	c := &models.Contest{
		Title:     "Weekly Round",
		Slug:      "weekly-round",
		StartTime: start,
		EndTime:   end,
	}
	require.NoError(t, e.lifecycle.Create(context.Background(), c))

	problems := []models.ContestProblem{
		{ProblemID: "p1", Points: decimal.NewFromInt(100), OrderIndex: 0, Label: "A"},
		{ProblemID: "p2", Points: decimal.NewFromInt(200), OrderIndex: 1, Label: "B"},
	}
	require.NoError(t, database.SetContestProblems(e.db, c.ID, problems))

	require.NoError(t, database.RegisterParticipant(e.db, c.ID, "alice"))
	require.NoError(t, database.RegisterParticipant(e.db, c.ID, "bob"))
	return c
}

func (e *testEnv) contestStatus(t *testing.T, id string) models.ContestStatus {
	t.Helper()
	c, err := database.GetContest(e.db, id)
	require.NoError(t, err)
	return c.Status
}

func (e *testEnv) accepted(t *testing.T, contestID, userID, problemID string, at time.Time) {
	t.Helper()
	require.NoError(t, e.aggregator.HandleSubmissionAccepted(context.Background(), SubmissionAccepted{
		SubmissionID: "sub-" + userID + "-" + problemID,
		UserID:       userID,
		ProblemID:    problemID,
		ContestID:    contestID,
		SubmittedAt:  at,
	}))
}
