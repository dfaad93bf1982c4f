// Package state loads and saves publishing state with day rollover and a local fallback.
package state

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/bobmcallan/tickzen/internal/interfaces"
	"github.com/bobmcallan/tickzen/internal/models"
)

// Service implements interfaces.StateService over a primary store and an optional fallback.
type Service struct {
	primary  interfaces.StateStore
	fallback interfaces.StateStore
	logger   arbor.ILogger
	now      func() time.Time
}

// Option configures the service
type Option func(*Service)

// WithClock overrides the time source used for rollover detection.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// NewService creates a state service. fallback may be nil.
func NewService(primary, fallback interfaces.StateStore, logger arbor.ILogger, opts ...Option) *Service {
	s := &Service{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Today returns the current UTC calendar date.
func (s *Service) Today() string {
	return s.now().UTC().Format(models.DateLayout)
}

// Load returns state for every requested profile. Missing profiles get defaults and
// profiles last touched on an earlier UTC day are rolled over. It errors only when
// neither store can be read.
func (s *Service) Load(ctx context.Context, userID string, profileIDs []string) (*models.PublishingState, error) {
	profiles, err := s.loadProfiles(ctx, userID, profileIDs)
	if err != nil {
		return nil, err
	}

	today := s.Today()
	state := &models.PublishingState{UserID: userID, Profiles: make(map[string]*models.ProfileState, len(profileIDs))}
	for _, id := range profileIDs {
		st, ok := profiles[id]
		if !ok || st == nil {
			state.Profiles[id] = models.NewProfileState(today)
			continue
		}
		st.Normalize()
		previous := st.LastRunDate
		if st.Rollover(today) {
			s.logger.Info().
				Str("user_id", userID).
				Str("profile_id", id).
				Str("previous_date", previous).
				Str("today", today).
				Msg("Daily counters reset")
		}
		state.Profiles[id] = st
	}
	return state, nil
}

func (s *Service) loadProfiles(ctx context.Context, userID string, profileIDs []string) (map[string]*models.ProfileState, error) {
	profiles, err := s.primary.LoadProfiles(ctx, userID, profileIDs)
	if err == nil {
		return profiles, nil
	}

	s.logger.Error().Err(err).Str("user_id", userID).Msg("Primary state store unavailable, trying local fallback")
	if s.fallback == nil {
		return nil, fmt.Errorf("state store unavailable: %w", err)
	}

	profiles, fbErr := s.fallback.LoadProfiles(ctx, userID, profileIDs)
	if fbErr != nil {
		return nil, fmt.Errorf("state store unavailable (primary: %v): fallback: %w", err, fbErr)
	}
	s.logger.Warn().Str("user_id", userID).Int("profiles", len(profiles)).Msg("Publishing state loaded from local fallback")
	return profiles, nil
}

// SaveProfile writes one profile's state. When the primary write fails the
// fallback is written and an error is still returned so callers can report
// degraded durability.
func (s *Service) SaveProfile(ctx context.Context, userID, profileID string, st *models.ProfileState) error {
	err := s.primary.SaveProfile(ctx, userID, profileID, st)
	if err == nil {
		return nil
	}

	s.logger.Error().Err(err).Str("user_id", userID).Str("profile_id", profileID).Msg("Failed to persist publishing state")
	if s.fallback == nil {
		return fmt.Errorf("state not persisted: %w", err)
	}

	if fbErr := s.fallback.SaveProfile(ctx, userID, profileID, st); fbErr != nil {
		return fmt.Errorf("state not persisted (primary: %v): fallback: %w", err, fbErr)
	}
	return fmt.Errorf("state saved to local fallback only: %w", err)
}

// Save writes every profile of the state, returning the first error.
func (s *Service) Save(ctx context.Context, state *models.PublishingState) error {
	var firstErr error
	for id, st := range state.Profiles {
		if err := s.SaveProfile(ctx, state.UserID, id, st); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// DeleteProfile removes a profile's state from both stores.
func (s *Service) DeleteProfile(ctx context.Context, userID, profileID string) error {
	if err := s.primary.DeleteProfile(ctx, userID, profileID); err != nil {
		return err
	}
	if s.fallback != nil {
		if err := s.fallback.DeleteProfile(ctx, userID, profileID); err != nil {
			s.logger.Warn().Err(err).Str("profile_id", profileID).Msg("Failed to delete fallback state")
		}
	}
	return nil
}

// Compile-time check
var _ interfaces.StateService = (*Service)(nil)
