package user

import (
	"errors"
	"net/http"

	"github.com/Diploma-Survivors/sfinx-backend-sub003/internal/database"
	"github.com/Diploma-Survivors/sfinx-backend-sub003/internal/pubsub"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// handleLeaderboardWs streams leaderboard snapshots for one contest. A new
// connection immediately receives the current standings, then every change
// until the contest ends and the topic is closed.
func (h *Handler) handleLeaderboardWs(c *gin.Context) {
	contestID := c.Param("id")

	if _, err := database.GetContest(h.db, contestID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.String(http.StatusNotFound, "contest not found")
			return
		}
		c.String(http.StatusInternalServerError, "failed to load contest")
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		zap.S().Errorf("failed to upgrade websocket: %v", err)
		return
	}
	defer conn.Close()

	msgs, unsubscribe := h.broker.Subscribe(pubsub.LeaderboardTopic(contestID))
	defer unsubscribe()

	// Drain client reads so close frames are processed.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case msg, ok := <-msgs:
			if !ok {
				// Topic closed: the contest ended or was deleted.
				conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "contest closed"))
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}
