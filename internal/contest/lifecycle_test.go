package contest

import (
	"context"
	"testing"
	"time"

	"github.com/Diploma-Survivors/sfinx-backend-sub003/internal/database"
	"github.com/Diploma-Survivors/sfinx-backend-sub003/internal/database/models"
	"github.com/Diploma-Survivors/sfinx-backend-sub003/internal/queue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLifecycle_FullContestFlow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	start := time.Now().Add(-time.Minute)
	end := time.Now().Add(time.Hour)
	c := env.createContest(t, start, end)
	assert.Equal(t, models.StatusDraft, c.Status)

	require.NoError(t, env.lifecycle.Publish(ctx, c.ID))
	assert.Equal(t, models.StatusScheduled, env.contestStatus(t, c.ID))
	assert.Equal(t, 2, env.queue.Len(), "publish schedules a start and an end job")

	// Start time is already in the past, so the start job is due immediately;
	// the end job is not.
	assert.Equal(t, 1, env.queue.RunDue(ctx, time.Now()))
	assert.Equal(t, models.StatusRunning, env.contestStatus(t, c.ID))

	// alice solves both problems, bob solves the easy one.
	env.accepted(t, c.ID, "alice", "p1", start.Add(10*time.Minute))
	env.accepted(t, c.ID, "bob", "p1", start.Add(12*time.Minute))
	env.accepted(t, c.ID, "alice", "p2", start.Add(30*time.Minute))

	assert.Equal(t, 1, env.queue.RunDue(ctx, end.Add(time.Second)))
	assert.Equal(t, models.StatusEnded, env.contestStatus(t, c.ID))
	assert.Equal(t, 0, env.queue.Len(), "ending removes all pending jobs")

	ended, err := database.GetContest(env.db, c.ID)
	require.NoError(t, err)
	assert.True(t, ended.RatingDone)

	alice, err := database.GetParticipant(env.db, c.ID, "alice")
	require.NoError(t, err)
	bob, err := database.GetParticipant(env.db, c.ID, "bob")
	require.NoError(t, err)

	require.NotNil(t, alice.ContestRank)
	require.NotNil(t, bob.ContestRank)
	assert.Equal(t, 1, *alice.ContestRank)
	assert.Equal(t, 2, *bob.ContestRank)

	require.NotNil(t, alice.RatingDelta)
	require.NotNil(t, bob.RatingDelta)
	assert.Greater(t, *alice.RatingDelta, 0)
	assert.Less(t, *bob.RatingDelta, 0)
	assert.LessOrEqual(t, *alice.RatingDelta+*bob.RatingDelta, 0)

	assert.Equal(t, models.DefaultContestRating, *alice.RatingBefore)
	assert.Equal(t, *alice.RatingBefore+*alice.RatingDelta, *alice.RatingAfter)

	aliceStats, err := database.GetUserStatistics(env.db, "alice")
	require.NoError(t, err)
	assert.Equal(t, *alice.RatingAfter, aliceStats.ContestRating)
	assert.Equal(t, 1, aliceStats.ContestsParticipated)

	// A repeated end transition is a benign race: swallowed by the job
	// handler, and rating is not applied twice.
	err = env.lifecycle.End(ctx, c.ID)
	assert.ErrorIs(t, err, ErrAlreadyEnded)

	err = env.lifecycle.HandleJob(ctx, queue.Job{
		ID:        queue.JobID(c.ID, queue.KindContestEnd),
		Kind:      queue.KindContestEnd,
		ContestID: c.ID,
	})
	assert.ErrorIs(t, err, queue.ErrSkip)

	aliceAgain, err := database.GetParticipant(env.db, c.ID, "alice")
	require.NoError(t, err)
	assert.Equal(t, *alice.RatingAfter, *aliceAgain.RatingAfter)
}

func TestLifecycle_TransitionGuards(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	c := env.createContest(t, time.Now().Add(time.Hour), time.Now().Add(2*time.Hour))

	// Draft contests cannot start or end directly.
	assert.ErrorIs(t, env.lifecycle.Start(ctx, c.ID), ErrAlreadyStarted)
	assert.ErrorIs(t, env.lifecycle.End(ctx, c.ID), ErrAlreadyEnded)

	require.NoError(t, env.lifecycle.Publish(ctx, c.ID))
	assert.Error(t, env.lifecycle.Publish(ctx, c.ID), "publish is Draft-only")

	// Scheduled contests cannot end before running.
	assert.ErrorIs(t, env.lifecycle.End(ctx, c.ID), ErrAlreadyEnded)

	require.NoError(t, env.lifecycle.Start(ctx, c.ID))
	assert.ErrorIs(t, env.lifecycle.Start(ctx, c.ID), ErrAlreadyStarted)
}

func TestLifecycle_StartJobIsBenignWhenAlreadyRunning(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	c := env.createContest(t, time.Now().Add(-time.Minute), time.Now().Add(time.Hour))
	require.NoError(t, env.lifecycle.Publish(ctx, c.ID))
	require.NoError(t, env.lifecycle.Start(ctx, c.ID))

	err := env.lifecycle.HandleJob(ctx, queue.Job{
		ID:        queue.JobID(c.ID, queue.KindContestStart),
		Kind:      queue.KindContestStart,
		ContestID: c.ID,
	})
	assert.ErrorIs(t, err, queue.ErrSkip)
}

func TestLifecycle_RescheduleIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	c := env.createContest(t, time.Now().Add(time.Hour), time.Now().Add(2*time.Hour))
	require.NoError(t, env.lifecycle.Publish(ctx, c.ID))
	assert.Equal(t, 2, env.queue.Len())

	// Moving the times twice leaves exactly one job per kind.
	for i := 1; i <= 2; i++ {
		c.StartTime = time.Now().Add(time.Duration(i) * 3 * time.Hour)
		c.EndTime = c.StartTime.Add(time.Hour)
		require.NoError(t, env.lifecycle.Update(ctx, c))
	}
	assert.Equal(t, 2, env.queue.Len())

	pending, ok := env.queue.Pending(queue.JobID(c.ID, queue.KindContestStart))
	require.True(t, ok)
	assert.WithinDuration(t, c.StartTime, pending.RunAt, time.Second)
}

func TestLifecycle_TimesLockedOnceRunning(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	start := time.Now().Add(-time.Minute)
	end := time.Now().Add(time.Hour)
	c := env.createContest(t, start, end)
	require.NoError(t, env.lifecycle.Publish(ctx, c.ID))
	require.NoError(t, env.lifecycle.Start(ctx, c.ID))

	edit := *c
	edit.StartTime = start.Add(30 * time.Minute)
	edit.EndTime = end.Add(30 * time.Minute)
	assert.ErrorIs(t, env.lifecycle.Update(ctx, &edit), database.ErrContestLocked)

	stored, err := database.GetContest(env.db, c.ID)
	require.NoError(t, err)
	assert.True(t, stored.StartTime.Equal(start), "rejected edit must not change stored times")
	assert.True(t, stored.EndTime.Equal(end))

	// Cosmetic edits stay possible while the contest runs.
	retitle := *c
	retitle.Title = "Weekly Round (rescheduled broadcast)"
	require.NoError(t, env.lifecycle.Update(ctx, &retitle))
	assert.Equal(t, "Weekly Round (rescheduled broadcast)", retitle.Title)
}

func TestLifecycle_CancelRemovesJobsAndBlocksRating(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	c := env.createContest(t, time.Now().Add(time.Hour), time.Now().Add(2*time.Hour))
	require.NoError(t, env.lifecycle.Publish(ctx, c.ID))
	require.Equal(t, 2, env.queue.Len())

	require.NoError(t, env.lifecycle.Cancel(ctx, c.ID))
	assert.Equal(t, models.StatusCancelled, env.contestStatus(t, c.ID))
	assert.Equal(t, 0, env.queue.Len(), "cancelling removes both jobs")

	// Terminal: cancelled contests are never rated and cannot change again.
	assert.ErrorIs(t, env.lifecycle.End(ctx, c.ID), ErrAlreadyEnded)
	assert.ErrorIs(t, env.lifecycle.Cancel(ctx, c.ID), ErrCancelTerminal)
}

func TestLifecycle_CancelAfterEndRejected(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	c := env.createContest(t, time.Now().Add(-2*time.Hour), time.Now().Add(-time.Hour))
	require.NoError(t, env.lifecycle.Publish(ctx, c.ID))
	require.NoError(t, env.lifecycle.Start(ctx, c.ID))
	require.NoError(t, env.lifecycle.End(ctx, c.ID))

	assert.ErrorIs(t, env.lifecycle.Cancel(ctx, c.ID), ErrCancelTerminal)
}

func TestLifecycle_DeleteGuards(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	c := env.createContest(t, time.Now().Add(-time.Minute), time.Now().Add(time.Hour))
	require.NoError(t, env.lifecycle.Publish(ctx, c.ID))
	require.NoError(t, env.lifecycle.Start(ctx, c.ID))

	assert.ErrorIs(t, env.lifecycle.Delete(ctx, c.ID), database.ErrContestDeletable)

	// A draft contest can be deleted, and its (nonexistent) jobs are
	// cancelled without error.
	d := &models.Contest{
		Title:     "Scratch",
		Slug:      "scratch",
		StartTime: time.Now().Add(time.Hour),
		EndTime:   time.Now().Add(2 * time.Hour),
	}
	require.NoError(t, env.lifecycle.Create(ctx, d))
	require.NoError(t, env.lifecycle.Delete(ctx, d.ID))
}

func TestRegistrationListing(t *testing.T) {
	env := newTestEnv(t)

	c := env.createContest(t, time.Now().Add(time.Hour), time.Now().Add(2*time.Hour))

	all, err := database.GetParticipants(env.db, c.ID)
	require.NoError(t, err)
	assert.Len(t, all, 2, "registration listing covers everyone, submitted or not")

	active, err := database.GetActiveParticipants(env.db, c.ID)
	require.NoError(t, err)
	assert.Empty(t, active, "nobody submitted yet")

	require.NoError(t, database.UnregisterParticipant(env.db, c.ID, "bob"))
	all, err = database.GetParticipants(env.db, c.ID)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "alice", all[0].UserID)
}

func TestLifecycle_SingleParticipantIsNotRated(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	start := time.Now().Add(-time.Hour)
	c := env.createContest(t, start, time.Now().Add(time.Hour))
	require.NoError(t, env.lifecycle.Publish(ctx, c.ID))
	require.NoError(t, env.lifecycle.Start(ctx, c.ID))

	// Only alice submits; bob stays idle and is not part of the rated field.
	env.accepted(t, c.ID, "alice", "p1", start.Add(5*time.Minute))

	require.NoError(t, env.lifecycle.End(ctx, c.ID))
	assert.Equal(t, models.StatusEnded, env.contestStatus(t, c.ID))

	alice, err := database.GetParticipant(env.db, c.ID, "alice")
	require.NoError(t, err)
	assert.Nil(t, alice.RatingBefore, "fewer than 2 rated participants: no rows mutated")
	assert.Nil(t, alice.ContestRank)

	_, err = database.GetUserStatistics(env.db, "alice")
	assert.Error(t, err, "no statistics row is created for an unrated contest")
}

func TestScheduler_RecoverReenqueuesJobs(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	scheduled := env.createContest(t, time.Now().Add(time.Hour), time.Now().Add(2*time.Hour))
	require.NoError(t, env.lifecycle.Publish(ctx, scheduled.ID))

	running := &models.Contest{
		Title:     "Running Round",
		Slug:      "running-round",
		StartTime: time.Now().Add(-time.Hour),
		EndTime:   time.Now().Add(time.Hour),
	}
	require.NoError(t, env.lifecycle.Create(ctx, running))
	require.NoError(t, env.lifecycle.Publish(ctx, running.ID))
	require.NoError(t, env.lifecycle.Start(ctx, running.ID))

	// Simulate a restart with an empty queue.
	require.NoError(t, env.queue.Cancel(ctx, queue.JobID(scheduled.ID, queue.KindContestStart)))
	require.NoError(t, env.queue.Cancel(ctx, queue.JobID(scheduled.ID, queue.KindContestEnd)))
	require.NoError(t, env.queue.Cancel(ctx, queue.JobID(running.ID, queue.KindContestStart)))
	require.NoError(t, env.queue.Cancel(ctx, queue.JobID(running.ID, queue.KindContestEnd)))
	require.Equal(t, 0, env.queue.Len())

	require.NoError(t, env.scheduler.Recover(ctx))

	// Scheduled contest gets both jobs back, the running one only its end job.
	assert.Equal(t, 3, env.queue.Len())
	_, ok := env.queue.Pending(queue.JobID(scheduled.ID, queue.KindContestStart))
	assert.True(t, ok)
	_, ok = env.queue.Pending(queue.JobID(scheduled.ID, queue.KindContestEnd))
	assert.True(t, ok)
	_, ok = env.queue.Pending(queue.JobID(running.ID, queue.KindContestStart))
	assert.False(t, ok, "a running contest must not get a start job again")
	_, ok = env.queue.Pending(queue.JobID(running.ID, queue.KindContestEnd))
	assert.True(t, ok)
}
