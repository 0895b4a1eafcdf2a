package user

import (
	"github.com/Diploma-Survivors/sfinx-backend-sub003/internal/config"
	"github.com/Diploma-Survivors/sfinx-backend-sub003/internal/contest"
	"github.com/Diploma-Survivors/sfinx-backend-sub003/internal/pubsub"
	"gorm.io/gorm"
)

// Handler holds all dependencies for the user-facing API handlers.
type Handler struct {
	cfg       *config.Config
	db        *gorm.DB
	lifecycle *contest.Service
	broker    *pubsub.Broker
}

// NewHandler creates a new user handler with its dependencies.
func NewHandler(
	cfg *config.Config,
	db *gorm.DB,
	lifecycle *contest.Service,
	broker *pubsub.Broker,
) *Handler {
	return &Handler{
		cfg:       cfg,
		db:        db,
		lifecycle: lifecycle,
		broker:    broker,
	}
}
