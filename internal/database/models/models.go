package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

type ContestStatus string

const (
	StatusDraft     ContestStatus = "Draft"
	StatusScheduled ContestStatus = "Scheduled"
	StatusRunning   ContestStatus = "Running"
	StatusEnded     ContestStatus = "Ended"
	StatusCancelled ContestStatus = "Cancelled"
)

// Terminal reports whether no further transition may leave this status.
func (s ContestStatus) Terminal() bool {
	return s == StatusEnded || s == StatusCancelled
}

// ProblemScore tracks a participant's progress on a single contest problem.
type ProblemScore struct {
	Score          decimal.Decimal `json:"score"`
	Submissions    int             `json:"submissions"`
	LastSubmitTime time.Time       `json:"last_submit_time"`
	FirstAcTime    *time.Time      `json:"first_ac_time,omitempty"`
}

// ProblemScoreMap is stored as a JSON text column, keyed by problem ID.
type ProblemScoreMap map[string]ProblemScore

func (m ProblemScoreMap) Value() (driver.Value, error) {
	return json.Marshal(m)
}

func (m *ProblemScoreMap) Scan(value interface{}) error {
	bytes, ok := value.([]byte)
	if !ok {
		return errors.New("type assertion to []byte failed")
	}
	return json.Unmarshal(bytes, &m)
}

type Contest struct {
	ID        string `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time
	UpdatedAt time.Time

	Title       string `json:"title"`
	Slug        string `gorm:"uniqueIndex" json:"slug"`
	Description string `json:"description"`

	StartTime time.Time     `json:"start_time"`
	EndTime   time.Time     `json:"end_time"`
	Status    ContestStatus `gorm:"index" json:"status"`

	// MaxParticipants of 0 means unlimited.
	MaxParticipants int `json:"max_participants"`

	// RatingDone guards the post-contest rating run: the Ended transition may
	// be retried by the queue, but the rating batch must apply at most once.
	RatingDone bool `json:"rating_done"`

	Problems []ContestProblem `gorm:"foreignKey:ContestID;constraint:OnDelete:CASCADE" json:"problems"`
}

type ContestProblem struct {
	ContestID  string          `gorm:"primaryKey" json:"contest_id"`
	ProblemID  string          `gorm:"primaryKey" json:"problem_id"`
	Points     decimal.Decimal `gorm:"type:decimal(10,2)" json:"points"`
	OrderIndex int             `json:"order_index"`
	Label      string          `json:"label"`
}

type ContestParticipant struct {
	ContestID string `gorm:"primaryKey" json:"contest_id"`
	UserID    string `gorm:"primaryKey" json:"user_id"`
	CreatedAt time.Time
	UpdatedAt time.Time

	TotalScore  decimal.Decimal `gorm:"type:decimal(12,2)" json:"total_score"`
	SolvedCount int             `json:"solved_count"`

	// FinishTime is the elapsed contest-seconds of the last accepted solve,
	// used as the final leaderboard tiebreak (earlier is better).
	FinishTime       int             `json:"finish_time"`
	TotalSubmissions int             `json:"total_submissions"`
	ProblemScores    ProblemScoreMap `gorm:"type:text" json:"problem_scores"`

	// Version is the optimistic-lock counter; every score mutation must go
	// through the compare-and-swap update in the database package.
	Version int `json:"-"`

	// Post-contest fields, written in bulk by the rating batch.
	RatingBefore *int `json:"rating_before,omitempty"`
	RatingAfter  *int `json:"rating_after,omitempty"`
	RatingDelta  *int `json:"rating_delta,omitempty"`
	ContestRank  *int `json:"contest_rank,omitempty"`
}

// DefaultContestRating is the rating assumed for users with no statistics row.
const DefaultContestRating = 1500

type UserStatistics struct {
	UserID    string `gorm:"primaryKey" json:"user_id"`
	CreatedAt time.Time
	UpdatedAt time.Time

	ContestRating        int `json:"contest_rating"`
	ContestsParticipated int `json:"contests_participated"`
}
