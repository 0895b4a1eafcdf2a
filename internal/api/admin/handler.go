package admin

import (
	"github.com/Diploma-Survivors/sfinx-backend-sub003/internal/config"
	"github.com/Diploma-Survivors/sfinx-backend-sub003/internal/contest"
	"gorm.io/gorm"
)

// Handler holds all dependencies for the admin API handlers. The admin engine
// listens on a separate, trusted address; organizer authentication is handled
// in front of it and is not part of this core.
type Handler struct {
	cfg        *config.Config
	db         *gorm.DB
	lifecycle  *contest.Service
	aggregator *contest.Aggregator
}

func NewHandler(
	cfg *config.Config,
	db *gorm.DB,
	lifecycle *contest.Service,
	aggregator *contest.Aggregator,
) *Handler {
	return &Handler{
		cfg:        cfg,
		db:         db,
		lifecycle:  lifecycle,
		aggregator: aggregator,
	}
}
