package user

import (
	"errors"
	"net/http"

	"github.com/Diploma-Survivors/sfinx-backend-sub003/internal/contest"
	"github.com/Diploma-Survivors/sfinx-backend-sub003/internal/database"
	"github.com/Diploma-Survivors/sfinx-backend-sub003/internal/database/models"
	"github.com/Diploma-Survivors/sfinx-backend-sub003/internal/util"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

func (h *Handler) getAllContests(c *gin.Context) {
	if slug := c.Query("slug"); slug != "" {
		found, err := database.GetContestBySlug(h.db, slug)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				util.Error(c, http.StatusNotFound, "contest not found")
				return
			}
			util.Error(c, http.StatusInternalServerError, err)
			return
		}
		util.Success(c, []models.Contest{*found}, "Contests loaded")
		return
	}

	contests, err := database.GetAllContests(h.db)
	if err != nil {
		util.Error(c, http.StatusInternalServerError, err)
		return
	}
	util.Success(c, contests, "Contests loaded")
}

func (h *Handler) getContest(c *gin.Context) {
	contestID := c.Param("id")
	found, err := database.GetContest(h.db, contestID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			util.Error(c, http.StatusNotFound, "contest not found")
			return
		}
		util.Error(c, http.StatusInternalServerError, err)
		return
	}
	util.Success(c, found, "Contest found")
}

func (h *Handler) getLeaderboard(c *gin.Context) {
	contestID := c.Param("id")
	participants, err := database.GetActiveParticipants(h.db, contestID)
	if err != nil {
		util.Error(c, http.StatusInternalServerError, err)
		return
	}
	entries := contest.BuildLeaderboard(participants)
	util.Success(c, entries, "Leaderboard loaded")
}

// getRatingResults serves the rating read model of a finished contest: ranks
// and rating deltas per rated participant.
func (h *Handler) getRatingResults(c *gin.Context) {
	contestID := c.Param("id")
	found, err := database.GetContest(h.db, contestID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			util.Error(c, http.StatusNotFound, "contest not found")
			return
		}
		util.Error(c, http.StatusInternalServerError, err)
		return
	}
	if !found.RatingDone {
		util.Error(c, http.StatusConflict, "rating has not been computed for this contest")
		return
	}

	participants, err := database.GetActiveParticipants(h.db, contestID)
	if err != nil {
		util.Error(c, http.StatusInternalServerError, err)
		return
	}

	type ratingRow struct {
		ContestID    string `json:"contest_id"`
		UserID       string `json:"user_id"`
		RatingBefore *int   `json:"rating_before"`
		RatingAfter  *int   `json:"rating_after"`
		RatingDelta  *int   `json:"rating_delta"`
		ContestRank  *int   `json:"contest_rank"`
	}
	rows := make([]ratingRow, 0, len(participants))
	for _, p := range participants {
		rows = append(rows, ratingRow{
			ContestID:    p.ContestID,
			UserID:       p.UserID,
			RatingBefore: p.RatingBefore,
			RatingAfter:  p.RatingAfter,
			RatingDelta:  p.RatingDelta,
			ContestRank:  p.ContestRank,
		})
	}
	util.Success(c, rows, "Rating results loaded")
}

func (h *Handler) getUserStatistics(c *gin.Context) {
	userID := c.Param("id")
	stats, err := database.GetUserStatistics(h.db, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			util.Error(c, http.StatusNotFound, "user has no contest statistics yet")
			return
		}
		util.Error(c, http.StatusInternalServerError, err)
		return
	}
	util.Success(c, stats, "Statistics loaded")
}

type registrationRequest struct {
	UserID string `json:"user_id" binding:"required"`
}

func (h *Handler) register(c *gin.Context) {
	contestID := c.Param("id")
	var req registrationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.Error(c, http.StatusBadRequest, err)
		return
	}

	if err := database.RegisterParticipant(h.db, contestID, req.UserID); err != nil {
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			util.Error(c, http.StatusNotFound, "contest not found")
		case errors.Is(err, database.ErrAlreadyRegistered),
			errors.Is(err, database.ErrContestFull),
			errors.Is(err, database.ErrRegistrationOver):
			util.Error(c, http.StatusConflict, err)
		default:
			util.Error(c, http.StatusInternalServerError, err)
		}
		return
	}
	util.Success(c, nil, "Registered")
}

func (h *Handler) unregister(c *gin.Context) {
	contestID := c.Param("id")
	var req registrationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.Error(c, http.StatusBadRequest, err)
		return
	}

	if err := database.UnregisterParticipant(h.db, contestID, req.UserID); err != nil {
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			util.Error(c, http.StatusNotFound, "contest not found")
		case errors.Is(err, database.ErrNotRegistered),
			errors.Is(err, database.ErrRegistrationOver):
			util.Error(c, http.StatusConflict, err)
		default:
			util.Error(c, http.StatusInternalServerError, err)
		}
		return
	}
	util.Success(c, nil, "Unregistered")
}
