package admin

import (
	"errors"
	"net/http"
	"time"

	"github.com/Diploma-Survivors/sfinx-backend-sub003/internal/contest"
	"github.com/Diploma-Survivors/sfinx-backend-sub003/internal/database"
	"github.com/Diploma-Survivors/sfinx-backend-sub003/internal/database/models"
	"github.com/Diploma-Survivors/sfinx-backend-sub003/internal/util"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type contestRequest struct {
	Title           string    `json:"title" binding:"required"`
	Slug            string    `json:"slug" binding:"required"`
	Description     string    `json:"description"`
	StartTime       time.Time `json:"start_time" binding:"required"`
	EndTime         time.Time `json:"end_time" binding:"required"`
	MaxParticipants int       `json:"max_participants"`
}

func (h *Handler) createContest(c *gin.Context) {
	var req contestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.Error(c, http.StatusBadRequest, err)
		return
	}

	newContest := &models.Contest{
		Title:           req.Title,
		Slug:            req.Slug,
		Description:     req.Description,
		StartTime:       req.StartTime,
		EndTime:         req.EndTime,
		MaxParticipants: req.MaxParticipants,
	}
	if err := h.lifecycle.Create(c.Request.Context(), newContest); err != nil {
		if errors.Is(err, database.ErrInvalidTimes) {
			util.Error(c, http.StatusBadRequest, err)
			return
		}
		util.Error(c, http.StatusInternalServerError, err)
		return
	}
	util.Success(c, newContest, "Contest created")
}

func (h *Handler) updateContest(c *gin.Context) {
	contestID := c.Param("id")
	var req contestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.Error(c, http.StatusBadRequest, err)
		return
	}

	updated := &models.Contest{
		ID:              contestID,
		Title:           req.Title,
		Slug:            req.Slug,
		Description:     req.Description,
		StartTime:       req.StartTime,
		EndTime:         req.EndTime,
		MaxParticipants: req.MaxParticipants,
	}
	if err := h.lifecycle.Update(c.Request.Context(), updated); err != nil {
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			util.Error(c, http.StatusNotFound, "contest not found")
		case errors.Is(err, database.ErrInvalidTimes):
			util.Error(c, http.StatusBadRequest, err)
		default:
			util.Error(c, http.StatusInternalServerError, err)
		}
		return
	}
	util.Success(c, updated, "Contest updated")
}

func (h *Handler) deleteContest(c *gin.Context) {
	contestID := c.Param("id")
	if err := h.lifecycle.Delete(c.Request.Context(), contestID); err != nil {
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			util.Error(c, http.StatusNotFound, "contest not found")
		case errors.Is(err, database.ErrContestDeletable):
			util.Error(c, http.StatusConflict, err)
		default:
			util.Error(c, http.StatusInternalServerError, err)
		}
		return
	}
	util.Success(c, nil, "Contest deleted")
}

type problemRequest struct {
	ProblemID  string          `json:"problem_id" binding:"required"`
	Points     decimal.Decimal `json:"points"`
	OrderIndex int             `json:"order_index"`
	Label      string          `json:"label"`
}

func (h *Handler) setProblems(c *gin.Context) {
	contestID := c.Param("id")
	var req []problemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.Error(c, http.StatusBadRequest, err)
		return
	}

	problems := make([]models.ContestProblem, len(req))
	for i, p := range req {
		problems[i] = models.ContestProblem{
			ProblemID:  p.ProblemID,
			Points:     p.Points,
			OrderIndex: p.OrderIndex,
			Label:      p.Label,
		}
	}
	if err := database.SetContestProblems(h.db, contestID, problems); err != nil {
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			util.Error(c, http.StatusNotFound, "contest not found")
		case errors.Is(err, database.ErrContestLocked):
			util.Error(c, http.StatusConflict, err)
		default:
			util.Error(c, http.StatusInternalServerError, err)
		}
		return
	}
	util.Success(c, nil, "Problems updated")
}

// listParticipants returns every registered participant, including those who
// never submitted and are therefore absent from the leaderboard.
func (h *Handler) listParticipants(c *gin.Context) {
	contestID := c.Param("id")
	if _, err := database.GetContest(h.db, contestID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			util.Error(c, http.StatusNotFound, "contest not found")
			return
		}
		util.Error(c, http.StatusInternalServerError, err)
		return
	}

	participants, err := database.GetParticipants(h.db, contestID)
	if err != nil {
		util.Error(c, http.StatusInternalServerError, err)
		return
	}
	util.Success(c, participants, "Participants loaded")
}

func (h *Handler) publishContest(c *gin.Context) {
	contestID := c.Param("id")
	if err := h.lifecycle.Publish(c.Request.Context(), contestID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			util.Error(c, http.StatusNotFound, "contest not found")
			return
		}
		util.Error(c, http.StatusConflict, err)
		return
	}
	util.Success(c, nil, "Contest scheduled")
}

func (h *Handler) cancelContest(c *gin.Context) {
	contestID := c.Param("id")
	if err := h.lifecycle.Cancel(c.Request.Context(), contestID); err != nil {
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			util.Error(c, http.StatusNotFound, "contest not found")
		case errors.Is(err, contest.ErrCancelTerminal):
			util.Error(c, http.StatusConflict, err)
		default:
			util.Error(c, http.StatusInternalServerError, err)
		}
		return
	}
	util.Success(c, nil, "Contest cancelled")
}

// endContest forces the end transition ahead of the scheduled job, e.g. when
// a contest must be stopped early.
func (h *Handler) endContest(c *gin.Context) {
	contestID := c.Param("id")
	if err := h.lifecycle.End(c.Request.Context(), contestID); err != nil {
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			util.Error(c, http.StatusNotFound, "contest not found")
		case errors.Is(err, contest.ErrAlreadyEnded):
			util.Error(c, http.StatusConflict, err)
		default:
			util.Error(c, http.StatusInternalServerError, err)
		}
		return
	}
	util.Success(c, nil, "Contest ended")
}

func (h *Handler) judgeAccepted(c *gin.Context) {
	var ev contest.SubmissionAccepted
	if err := c.ShouldBindJSON(&ev); err != nil {
		util.Error(c, http.StatusBadRequest, err)
		return
	}
	if ev.SubmittedAt.IsZero() {
		ev.SubmittedAt = time.Now()
	}

	if err := h.aggregator.HandleSubmissionAccepted(c.Request.Context(), ev); err != nil {
		switch {
		case errors.Is(err, database.ErrNotRegistered),
			errors.Is(err, contest.ErrProblemNotInContest),
			errors.Is(err, contest.ErrContestNotStarted):
			util.Error(c, http.StatusConflict, err)
		default:
			util.Error(c, http.StatusInternalServerError, err)
		}
		return
	}
	util.Success(c, nil, "Submission recorded")
}
