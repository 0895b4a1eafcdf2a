package contest

import (
	"testing"

	"github.com/Diploma-Survivors/sfinx-backend-sub003/internal/database/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func participant(userID string, solved int, score string, finish, subs int) models.ContestParticipant {
	return models.ContestParticipant{
		ContestID:        "c1",
		UserID:           userID,
		SolvedCount:      solved,
		TotalScore:       decimal.RequireFromString(score),
		FinishTime:       finish,
		TotalSubmissions: subs,
	}
}

func TestBuildLeaderboard_Ordering(t *testing.T) {
	participants := []models.ContestParticipant{
		participant("slow", 2, "200", 4000, 5),
		participant("top", 3, "300", 3000, 4),
		participant("fast", 2, "200", 1000, 3),
		participant("partial", 2, "150", 500, 6),
	}

	entries := BuildLeaderboard(participants)
	require.Len(t, entries, 4)

	assert.Equal(t, "top", entries[0].UserID)
	assert.Equal(t, "fast", entries[1].UserID, "equal solved/score resolves by earlier finish")
	assert.Equal(t, "slow", entries[2].UserID)
	assert.Equal(t, "partial", entries[3].UserID, "lower score loses despite earlier finish")

	for i, e := range entries {
		assert.Equal(t, i+1, e.Rank)
	}
}

func TestBuildLeaderboard_ExcludesZeroSubmissions(t *testing.T) {
	participants := []models.ContestParticipant{
		participant("active", 1, "100", 600, 1),
		participant("registered-only", 0, "0", 0, 0),
	}

	entries := BuildLeaderboard(participants)
	require.Len(t, entries, 1)
	assert.Equal(t, "active", entries[0].UserID)
}

func TestBuildLeaderboard_CompetitionRanks(t *testing.T) {
	// Two-way tie at the top: ranks must be 1,1,3 and never 1,1,2.
	participants := []models.ContestParticipant{
		participant("a", 2, "200", 1000, 2),
		participant("b", 2, "200", 1000, 3),
		participant("c", 1, "100", 500, 1),
	}

	entries := BuildLeaderboard(participants)
	require.Len(t, entries, 3)
	assert.Equal(t, 1, entries[0].Rank)
	assert.Equal(t, 1, entries[1].Rank)
	assert.Equal(t, 3, entries[2].Rank)
}

func TestBuildLeaderboard_TieNeedsAllThreeKeys(t *testing.T) {
	// Same solved count and score but different finish times is not a tie.
	participants := []models.ContestParticipant{
		participant("a", 2, "200", 1000, 2),
		participant("b", 2, "200", 1001, 2),
	}

	entries := BuildLeaderboard(participants)
	require.Len(t, entries, 2)
	assert.Equal(t, 1, entries[0].Rank)
	assert.Equal(t, 2, entries[1].Rank)
}

func TestBuildLeaderboard_ThreeWayTieThenNext(t *testing.T) {
	participants := []models.ContestParticipant{
		participant("a", 1, "100", 100, 1),
		participant("b", 1, "100", 100, 4),
		participant("c", 1, "100", 100, 2),
		participant("d", 0, "0", 0, 7),
	}

	entries := BuildLeaderboard(participants)
	require.Len(t, entries, 4)
	assert.Equal(t, 1, entries[0].Rank)
	assert.Equal(t, 1, entries[1].Rank)
	assert.Equal(t, 1, entries[2].Rank)
	assert.Equal(t, 4, entries[3].Rank, "rank after a 3-way tie at first place is 4")
	// Tied entries come out in a fixed order.
	assert.Equal(t, []string{"a", "b", "c", "d"},
		[]string{entries[0].UserID, entries[1].UserID, entries[2].UserID, entries[3].UserID})
}

func TestBuildLeaderboard_Empty(t *testing.T) {
	assert.Empty(t, BuildLeaderboard(nil))
	assert.Empty(t, BuildLeaderboard([]models.ContestParticipant{
		participant("idle", 0, "0", 0, 0),
	}))
}
