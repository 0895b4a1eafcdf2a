// Package rating implements the Codeforces-style Elo rating recalculation run
// once per finished contest. It is purely computational: callers load the
// standings and current ratings, and persist the resulting deltas.
package rating

import "math"

const (
	// MinRating is the floor no rating may drop below.
	MinRating = 1

	// Binary search bounds for the performance rating. Fixed constants:
	// changing them changes every rating the system will ever produce.
	searchLo = 1
	searchHi = 8000
)

// Contestant is one rated participant entering the calculation.
type Contestant struct {
	UserID string
	// Rank is the competition rank from the leaderboard; tied participants
	// share the same value.
	Rank int
	// Rating is the contestant's rating going into the contest.
	Rating int
}

// Result is the outcome of the calculation for one contestant.
type Result struct {
	UserID       string
	Rank         int
	RatingBefore int
	RatingAfter  int
	Delta        int
}

// CalculateDeltas computes rating changes for a full contest field. Fields of
// fewer than two contestants are not rated and yield nil. The computation is
// deterministic and results are returned in input order.
func CalculateDeltas(field []Contestant) []Result {
	n := len(field)
	if n < 2 {
		return nil
	}

	ratings := make([]int, n)
	for i, c := range field {
		ratings[i] = c.Rating
	}

	deltas := make([]int, n)
	for i, c := range field {
		seed := seedOf(ratings, i, ratings[i])
		midRank := math.Sqrt(float64(c.Rank) * seed)
		target := targetRating(ratings, i, midRank)
		deltas[i] = floorDiv(target-c.Rating, 2)
	}

	// Keep the rating pool from inflating: if the field-wide sum of deltas is
	// positive, shave an equal share off everyone so the sum ends up <= 0.
	sum := 0
	for _, d := range deltas {
		sum += d
	}
	if sum > 0 {
		dec := (sum + n - 1) / n
		for i := range deltas {
			deltas[i] -= dec
		}
	}

	results := make([]Result, n)
	for i, c := range field {
		delta := deltas[i]
		after := c.Rating + delta
		if after < MinRating {
			// The floor absorbs part of the loss; Delta always satisfies
			// RatingBefore + Delta == RatingAfter.
			after = MinRating
			delta = after - c.Rating
		}
		results[i] = Result{
			UserID:       c.UserID,
			Rank:         c.Rank,
			RatingBefore: c.Rating,
			RatingAfter:  after,
			Delta:        delta,
		}
	}
	return results
}

// seedOf is the expected rank of a contestant rated `rating` against the whole
// field, the classic pairwise win-probability sum. The contestant's own slot
// (index self) is skipped; the leading 1 accounts for them.
func seedOf(ratings []int, self int, rating int) float64 {
	seed := 1.0
	for i, r := range ratings {
		if i == self {
			continue
		}
		seed += 1.0 / (1.0 + math.Pow(10, float64(rating-r)/400.0))
	}
	return seed
}

// targetRating finds, by integer binary search, the rating whose seed against
// the field is closest to midRank. seedOf is monotonically non-increasing in
// rating, so the usual halving applies.
func targetRating(ratings []int, self int, midRank float64) int {
	lo, hi := searchLo, searchHi
	for hi-lo > 1 {
		mid := (lo + hi) / 2
		if seedOf(ratings, self, mid) < midRank {
			hi = mid
		} else {
			lo = mid
		}
	}
	return lo
}

// floorDiv divides rounding toward negative infinity, matching the reference
// algorithm's floor semantics for negative deltas.
func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
