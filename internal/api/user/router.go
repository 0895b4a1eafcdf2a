package user

import (
	"github.com/Diploma-Survivors/sfinx-backend-sub003/internal/api"
	"github.com/Diploma-Survivors/sfinx-backend-sub003/internal/config"
	"github.com/Diploma-Survivors/sfinx-backend-sub003/internal/contest"
	"github.com/Diploma-Survivors/sfinx-backend-sub003/internal/pubsub"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// NewUserRouter creates and configures the user-facing Gin engine.
func NewUserRouter(
	cfg *config.Config,
	db *gorm.DB,
	lifecycle *contest.Service,
	broker *pubsub.Broker) *gin.Engine {

	r := gin.Default()

	r.Use(api.CORSMiddleware(cfg.CORS))

	h := NewHandler(cfg, db, lifecycle, broker)

	v1 := r.Group("/api/v1")
	{
		v1.GET("/contests", h.getAllContests)
		v1.GET("/contests/:id", h.getContest)
		v1.GET("/contests/:id/leaderboard", h.getLeaderboard)
		v1.GET("/contests/:id/ratings", h.getRatingResults)
		v1.GET("/users/:id/statistics", h.getUserStatistics)

		v1.POST("/contests/:id/register", h.register)
		v1.DELETE("/contests/:id/register", h.unregister)

		// Websocket stream of live leaderboard snapshots
		v1.GET("/ws/contests/:id/leaderboard", h.handleLeaderboardWs)
	}

	return r
}
