package admin

import (
	"github.com/Diploma-Survivors/sfinx-backend-sub003/internal/api"
	"github.com/Diploma-Survivors/sfinx-backend-sub003/internal/config"
	"github.com/Diploma-Survivors/sfinx-backend-sub003/internal/contest"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// NewAdminRouter creates and configures the admin Gin engine.
func NewAdminRouter(
	cfg *config.Config,
	db *gorm.DB,
	lifecycle *contest.Service,
	aggregator *contest.Aggregator) *gin.Engine {

	r := gin.Default()

	r.Use(api.CORSMiddleware(cfg.CORS))

	h := NewHandler(cfg, db, lifecycle, aggregator)

	v1 := r.Group("/api/v1")
	{
		contests := v1.Group("/contests")
		{
			contests.POST("", h.createContest)
			contests.PUT("/:id", h.updateContest)
			contests.DELETE("/:id", h.deleteContest)
			contests.PUT("/:id/problems", h.setProblems)
			contests.GET("/:id/participants", h.listParticipants)
			contests.POST("/:id/publish", h.publishContest)
			contests.POST("/:id/cancel", h.cancelContest)
			contests.POST("/:id/end", h.endContest)
		}

		// Callback from the judging subsystem when a verdict becomes accepted.
		v1.POST("/judge/accepted", h.judgeAccepted)
	}

	return r
}
