// Package orchestrator runs the multi-profile publishing pipeline.
package orchestrator

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/ternarybob/arbor"

	"github.com/bobmcallan/tickzen/internal/common"
	"github.com/bobmcallan/tickzen/internal/interfaces"
	"github.com/bobmcallan/tickzen/internal/models"
	"github.com/bobmcallan/tickzen/internal/services/schedule"
)

// Dependencies are the collaborators of a publishing run.
// Images, Uploader, Progress, Statuses, History and Lease are optional.
type Dependencies struct {
	State     interfaces.StateService
	Tickers   interfaces.TickerResolver
	Content   interfaces.ContentGenerator
	Images    interfaces.ImageGenerator
	Uploader  interfaces.AssetUploader
	Publisher interfaces.Publisher
	Progress  interfaces.ProgressSink
	Statuses  interfaces.StatusRecorder
	History   interfaces.HistoryStore
	Lease     interfaces.RunLease
	Schedule  *schedule.Calculator
}

// Config bounds a run.
type Config struct {
	MaxPostsPerDay int
	PostStatus     string
	ContentTimeout time.Duration
	ImageTimeout   time.Duration
	UploadTimeout  time.Duration
	PublishTimeout time.Duration
	LeaseTTL       time.Duration
}

// ConfigFromCommon maps the publishing section of the app config.
func ConfigFromCommon(c common.PublishingConfig) Config {
	return Config{
		MaxPostsPerDay: c.MaxPostsPerDay,
		PostStatus:     c.PostStatus,
		ContentTimeout: c.GetContentTimeout(),
		ImageTimeout:   c.GetImageTimeout(),
		UploadTimeout:  c.GetUploadTimeout(),
		PublishTimeout: c.GetPublishTimeout(),
		LeaseTTL:       c.GetLeaseTTL(),
	}
}

// Service implements PublishingService
type Service struct {
	deps     Dependencies
	config   Config
	logger   arbor.ILogger
	validate *validator.Validate
	now      func() time.Time
}

var _ interfaces.PublishingService = (*Service)(nil)

// Option configures the service
type Option func(*Service)

// WithClock overrides the time source used for outcome timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// NewService creates a new publishing orchestrator.
func NewService(deps Dependencies, config Config, logger arbor.ILogger, opts ...Option) *Service {
	if config.MaxPostsPerDay <= 0 {
		config.MaxPostsPerDay = common.DefaultMaxPostsPerDay
	}
	if config.PostStatus == "" {
		config.PostStatus = "future"
	}
	if deps.Schedule == nil {
		deps.Schedule = schedule.NewCalculator()
	}

	s := &Service{
		deps:     deps,
		config:   config,
		logger:   logger,
		validate: validator.New(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run publishes for every profile in the request, one profile at a time.
// It returns an error only when publishing state cannot be loaded at all.
func (s *Service) Run(ctx context.Context, req models.RunRequest, stop interfaces.StopSignal) ([]*models.RunResult, error) {
	if req.RunID == "" {
		req.RunID = uuid.New().String()
	}

	profileIDs := make([]string, 0, len(req.Profiles))
	for _, p := range req.Profiles {
		profileIDs = append(profileIDs, p.ProfileID)
	}

	s.logger.Info().Str("run", req.RunID).Str("user", req.UserID).Strs("profiles", profileIDs).Msg("Publishing run started")

	state, err := s.deps.State.Load(ctx, req.UserID, profileIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load publishing state for user %s: %w", req.UserID, err)
	}

	results := make([]*models.RunResult, 0, len(req.Profiles))
	for _, profile := range req.Profiles {
		results = append(results, s.runProfileSafe(ctx, &req, profile, state, stop))
	}

	s.logger.Info().Str("run", req.RunID).Int("profiles", len(results)).Msg("Publishing run finished")
	return results, nil
}

// runProfileSafe keeps a panic in one profile from aborting the others.
func (s *Service) runProfileSafe(ctx context.Context, req *models.RunRequest, profile models.ProfileConfig, state *models.PublishingState, stop interfaces.StopSignal) (result *models.RunResult) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().
				Str("run", req.RunID).
				Str("profile", profile.ProfileID).
				Str("panic", fmt.Sprintf("%v", r)).
				Str("stack", string(debug.Stack())).
				Msg("Profile run panicked")
			result = &models.RunResult{
				RunID:       req.RunID,
				ProfileID:   profile.ProfileID,
				ProfileName: profile.DisplayName(),
				Status:      models.StatusFailedInternal,
				Summary:     fmt.Sprintf("Internal error: %v", r),
				Outcomes:    []models.TickerOutcome{},
				FinishedAt:  s.now(),
			}
		}
	}()
	return s.runProfile(ctx, req, profile, state, stop)
}

// stopRequested treats context cancellation as a stop for every profile.
func stopRequested(ctx context.Context, stop interfaces.StopSignal, profileID string) bool {
	if ctx.Err() != nil {
		return true
	}
	return stop != nil && stop.StopRequested(profileID)
}
