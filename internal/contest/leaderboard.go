package contest

import (
	"sort"

	"github.com/Diploma-Survivors/sfinx-backend-sub003/internal/database/models"
	"github.com/shopspring/decimal"
)

// LeaderboardEntry is one row of the leaderboard read model, consumed by the
// API layer and pushed to realtime subscribers.
type LeaderboardEntry struct {
	Rank             int                    `json:"rank"`
	UserID           string                 `json:"user_id"`
	TotalScore       decimal.Decimal        `json:"total_score"`
	SolvedCount      int                    `json:"solved_count"`
	FinishTime       int                    `json:"finish_time"`
	TotalSubmissions int                    `json:"total_submissions"`
	ProblemScores    models.ProblemScoreMap `json:"problem_scores"`
}

// BuildLeaderboard ranks a contest's participants. Participants with zero
// submissions are excluded. Ordering is solved count descending, then total
// score descending, then finish time ascending; participants equal on all
// three keys are tied and share a competition rank (1,1,3 for a two-way tie
// at the top, never 1,1,2). Output order among tied participants is fixed by
// user id, which does not affect rank values.
func BuildLeaderboard(participants []models.ContestParticipant) []LeaderboardEntry {
	var active []models.ContestParticipant
	for _, p := range participants {
		if p.TotalSubmissions > 0 {
			active = append(active, p)
		}
	}

	sort.Slice(active, func(i, j int) bool {
		a, b := active[i], active[j]
		if a.SolvedCount != b.SolvedCount {
			return a.SolvedCount > b.SolvedCount
		}
		if cmp := a.TotalScore.Cmp(b.TotalScore); cmp != 0 {
			return cmp > 0
		}
		if a.FinishTime != b.FinishTime {
			return a.FinishTime < b.FinishTime
		}
		return a.UserID < b.UserID
	})

	entries := make([]LeaderboardEntry, 0, len(active))
	for i, p := range active {
		rank := 1
		if i > 0 {
			prev := active[i-1]
			if tied(p, prev) {
				rank = entries[i-1].Rank
			} else {
				rank = i + 1
			}
		}
		entries = append(entries, LeaderboardEntry{
			Rank:             rank,
			UserID:           p.UserID,
			TotalScore:       p.TotalScore,
			SolvedCount:      p.SolvedCount,
			FinishTime:       p.FinishTime,
			TotalSubmissions: p.TotalSubmissions,
			ProblemScores:    p.ProblemScores,
		})
	}
	return entries
}

func tied(a, b models.ContestParticipant) bool {
	return a.SolvedCount == b.SolvedCount &&
		a.TotalScore.Cmp(b.TotalScore) == 0 &&
		a.FinishTime == b.FinishTime
}
