package database

import (
	"errors"
	"time"

	"github.com/Diploma-Survivors/sfinx-backend-sub003/internal/database/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrInvalidTimes      = errors.New("contest end time must be after start time")
	ErrContestLocked     = errors.New("contest cannot be modified after it has started")
	ErrContestDeletable  = errors.New("running or ended contests cannot be deleted")
	ErrAlreadyRegistered = errors.New("user is already registered for this contest")
	ErrNotRegistered     = errors.New("user is not registered for this contest")
	ErrContestFull       = errors.New("contest has reached its participant limit")
	ErrRegistrationOver  = errors.New("registration changes are only allowed before the contest starts")
	ErrVersionConflict   = errors.New("participant row was modified concurrently")
	ErrRatingApplied     = errors.New("rating has already been applied for this contest")
)

// Contest CRUD

func CreateContest(db *gorm.DB, contest *models.Contest) error {
	if !contest.EndTime.After(contest.StartTime) {
		return ErrInvalidTimes
	}
	return db.Create(contest).Error
}

func GetContest(db *gorm.DB, id string) (*models.Contest, error) {
	var contest models.Contest
	if err := db.Preload("Problems").Where("id = ?", id).First(&contest).Error; err != nil {
		return nil, err
	}
	return &contest, nil
}

func GetContestBySlug(db *gorm.DB, slug string) (*models.Contest, error) {
	var contest models.Contest
	if err := db.Preload("Problems").Where("slug = ?", slug).First(&contest).Error; err != nil {
		return nil, err
	}
	return &contest, nil
}

func GetAllContests(db *gorm.DB) ([]models.Contest, error) {
	var contests []models.Contest
	if err := db.Order("start_time desc").Find(&contests).Error; err != nil {
		return nil, err
	}
	return contests, nil
}

func UpdateContest(db *gorm.DB, contest *models.Contest) error {
	if !contest.EndTime.After(contest.StartTime) {
		return ErrInvalidTimes
	}
	return db.Save(contest).Error
}

// UpdateContestStatus flips only the status column, leaving problems and
// other fields untouched.
func UpdateContestStatus(db *gorm.DB, id string, status models.ContestStatus) error {
	return db.Model(&models.Contest{}).
		Where("id = ?", id).
		Update("status", status).Error
}

func DeleteContest(db *gorm.DB, id string) error {
	contest, err := GetContest(db, id)
	if err != nil {
		return err
	}
	if contest.Status == models.StatusRunning || contest.Status == models.StatusEnded {
		return ErrContestDeletable
	}
	return db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("contest_id = ?", id).Delete(&models.ContestParticipant{}).Error; err != nil {
			return err
		}
		if err := tx.Where("contest_id = ?", id).Delete(&models.ContestProblem{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Contest{}, "id = ?", id).Error
	})
}

// SetContestProblems replaces the problem set of a contest. The problem set is
// immutable once the contest is running.
func SetContestProblems(db *gorm.DB, contestID string, problems []models.ContestProblem) error {
	contest, err := GetContest(db, contestID)
	if err != nil {
		return err
	}
	if contest.Status != models.StatusDraft && contest.Status != models.StatusScheduled {
		return ErrContestLocked
	}
	return db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("contest_id = ?", contestID).Delete(&models.ContestProblem{}).Error; err != nil {
			return err
		}
		for i := range problems {
			problems[i].ContestID = contestID
		}
		if len(problems) == 0 {
			return nil
		}
		return tx.Create(&problems).Error
	})
}

// Participants

func RegisterParticipant(db *gorm.DB, contestID, userID string) error {
	return db.Transaction(func(tx *gorm.DB) error {
		var contest models.Contest
		if err := tx.Where("id = ?", contestID).First(&contest).Error; err != nil {
			return err
		}
		if contest.Status != models.StatusDraft && contest.Status != models.StatusScheduled {
			return ErrRegistrationOver
		}

		var count int64
		if err := tx.Model(&models.ContestParticipant{}).
			Where("contest_id = ?", contestID).Count(&count).Error; err != nil {
			return err
		}
		if contest.MaxParticipants > 0 && count >= int64(contest.MaxParticipants) {
			return ErrContestFull
		}

		var existing int64
		if err := tx.Model(&models.ContestParticipant{}).
			Where("contest_id = ? AND user_id = ?", contestID, userID).
			Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return ErrAlreadyRegistered
		}

		participant := models.ContestParticipant{
			ContestID:     contestID,
			UserID:        userID,
			ProblemScores: models.ProblemScoreMap{},
		}
		return tx.Create(&participant).Error
	})
}

func UnregisterParticipant(db *gorm.DB, contestID, userID string) error {
	var contest models.Contest
	if err := db.Where("id = ?", contestID).First(&contest).Error; err != nil {
		return err
	}
	if contest.Status != models.StatusDraft && contest.Status != models.StatusScheduled {
		return ErrRegistrationOver
	}
	result := db.Where("contest_id = ? AND user_id = ?", contestID, userID).
		Delete(&models.ContestParticipant{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotRegistered
	}
	return nil
}

func GetParticipant(db *gorm.DB, contestID, userID string) (*models.ContestParticipant, error) {
	var participant models.ContestParticipant
	if err := db.Where("contest_id = ? AND user_id = ?", contestID, userID).
		First(&participant).Error; err != nil {
		return nil, err
	}
	return &participant, nil
}

func GetParticipants(db *gorm.DB, contestID string) ([]models.ContestParticipant, error) {
	var participants []models.ContestParticipant
	if err := db.Where("contest_id = ?", contestID).Find(&participants).Error; err != nil {
		return nil, err
	}
	return participants, nil
}

// GetActiveParticipants returns participants who made at least one submission.
// Only these are ranked and rated.
func GetActiveParticipants(db *gorm.DB, contestID string) ([]models.ContestParticipant, error) {
	var participants []models.ContestParticipant
	if err := db.Where("contest_id = ? AND total_submissions > 0", contestID).
		Find(&participants).Error; err != nil {
		return nil, err
	}
	return participants, nil
}

// SaveParticipantScores persists a score mutation with an optimistic version
// check. The caller must have loaded the row at participant.Version; the update
// only lands if no concurrent writer bumped the version in between, otherwise
// ErrVersionConflict is returned and the caller is expected to reread and retry.
func SaveParticipantScores(db *gorm.DB, participant *models.ContestParticipant) error {
	result := db.Model(&models.ContestParticipant{}).
		Where("contest_id = ? AND user_id = ? AND version = ?",
			participant.ContestID, participant.UserID, participant.Version).
		Updates(map[string]interface{}{
			"total_score":       participant.TotalScore,
			"solved_count":      participant.SolvedCount,
			"finish_time":       participant.FinishTime,
			"total_submissions": participant.TotalSubmissions,
			"problem_scores":    participant.ProblemScores,
			"version":           participant.Version + 1,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrVersionConflict
	}
	participant.Version++
	return nil
}

// Ratings

// GetRatingsForUsers loads current contest ratings, defaulting users without a
// statistics row to models.DefaultContestRating.
func GetRatingsForUsers(db *gorm.DB, userIDs []string) (map[string]int, error) {
	ratings := make(map[string]int, len(userIDs))
	for _, id := range userIDs {
		ratings[id] = models.DefaultContestRating
	}
	if len(userIDs) == 0 {
		return ratings, nil
	}

	var stats []models.UserStatistics
	if err := db.Where("user_id IN ?", userIDs).Find(&stats).Error; err != nil {
		return nil, err
	}
	for _, s := range stats {
		ratings[s.UserID] = s.ContestRating
	}
	return ratings, nil
}

// RatingUpdate is one participant's share of a finished contest's rating batch.
type RatingUpdate struct {
	UserID       string
	RatingBefore int
	RatingAfter  int
	RatingDelta  int
	ContestRank  int
}

// ApplyRatingResults persists a whole contest's rating batch atomically:
// participant rows, user statistics, and the contest's RatingDone flag commit
// together or not at all. A second call for the same contest fails with
// ErrRatingApplied, which makes the Ended transition safe to retry.
func ApplyRatingResults(db *gorm.DB, contestID string, updates []RatingUpdate) error {
	return db.Transaction(func(tx *gorm.DB) error {
		// Reread inside the transaction so a concurrent end-retry observes the
		// flag before writing anything.
		var contest models.Contest
		if err := tx.Where("id = ?", contestID).First(&contest).Error; err != nil {
			return err
		}
		if contest.RatingDone {
			return ErrRatingApplied
		}

		for _, u := range updates {
			before, after, delta, rank := u.RatingBefore, u.RatingAfter, u.RatingDelta, u.ContestRank
			if err := tx.Model(&models.ContestParticipant{}).
				Where("contest_id = ? AND user_id = ?", contestID, u.UserID).
				Updates(map[string]interface{}{
					"rating_before": before,
					"rating_after":  after,
					"rating_delta":  delta,
					"contest_rank":  rank,
				}).Error; err != nil {
				return err
			}

			stats := models.UserStatistics{
				UserID:               u.UserID,
				ContestRating:        after,
				ContestsParticipated: 1,
			}
			if err := tx.Clauses(clause.OnConflict{
				Columns: []clause.Column{{Name: "user_id"}},
				DoUpdates: clause.Assignments(map[string]interface{}{
					"contest_rating":        after,
					"contests_participated": gorm.Expr("contests_participated + 1"),
					"updated_at":            time.Now(),
				}),
			}).Create(&stats).Error; err != nil {
				return err
			}
		}

		return tx.Model(&models.Contest{}).
			Where("id = ?", contestID).
			Update("rating_done", true).Error
	})
}

func GetUserStatistics(db *gorm.DB, userID string) (*models.UserStatistics, error) {
	var stats models.UserStatistics
	if err := db.Where("user_id = ?", userID).First(&stats).Error; err != nil {
		return nil, err
	}
	return &stats, nil
}

// GetSchedulableContests returns contests whose lifecycle jobs must exist in
// the queue: everything currently Scheduled or Running. Used by the boot
// reconciliation pass.
func GetSchedulableContests(db *gorm.DB) ([]models.Contest, error) {
	var contests []models.Contest
	if err := db.Where("status IN ?", []models.ContestStatus{models.StatusScheduled, models.StatusRunning}).
		Find(&contests).Error; err != nil {
		return nil, err
	}
	return contests, nil
}
