package interfaces

import (
	"context"

	"github.com/bobmcallan/tickzen/internal/models"
)

// StateService loads state with day rollover and defaults, and saves it with fallback.
type StateService interface {
	Load(ctx context.Context, userID string, profileIDs []string) (*models.PublishingState, error)
	SaveProfile(ctx context.Context, userID, profileID string, state *models.ProfileState) error
	DeleteProfile(ctx context.Context, userID, profileID string) error
}

// TickerResolver decides which tickers a profile processes this run.
// It may mutate the profile state (pending queue, file tracking).
type TickerResolver interface {
	Resolve(ctx context.Context, profile models.ProfileConfig, state *models.ProfileState, override *models.TickerOverride) *models.TickerResolution
}

// StopSignal is the cancellation token polled by a run.
type StopSignal interface {
	StopRequested(profileID string) bool
}

// PublishingService runs the publishing pipeline.
type PublishingService interface {
	Run(ctx context.Context, req models.RunRequest, stop StopSignal) ([]*models.RunResult, error)
}
