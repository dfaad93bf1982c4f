package orchestrator

import (
	"context"
	"fmt"

	"github.com/bobmcallan/tickzen/internal/interfaces"
	"github.com/bobmcallan/tickzen/internal/models"
	"github.com/bobmcallan/tickzen/internal/services/schedule"
)

// profileRun is the working set of one profile within a run.
type profileRun struct {
	req       *models.RunRequest
	profile   models.ProfileConfig
	state     *models.ProfileState
	override  *models.TickerOverride
	republish bool
	stop      interfaces.StopSignal
	result    *models.RunResult
	detached  context.Context
}

func (pr *profileRun) profileID() string {
	return pr.profile.ProfileID
}

func (s *Service) runProfile(ctx context.Context, req *models.RunRequest, profile models.ProfileConfig, state *models.PublishingState, stop interfaces.StopSignal) *models.RunResult {
	pr := &profileRun{
		req:     req,
		profile: profile,
		stop:    stop,
		result: &models.RunResult{
			RunID:       req.RunID,
			ProfileID:   profile.ProfileID,
			ProfileName: profile.DisplayName(),
			Outcomes:    []models.TickerOutcome{},
			StartedAt:   s.now(),
		},
		// Collaborator calls and bookkeeping outlive cancellation; ctx is only polled at checkpoints.
		detached: context.WithoutCancel(ctx),
	}
	if o, ok := req.Overrides[profile.ProfileID]; ok {
		pr.override = &o
		pr.republish = o.Republish
	}

	s.logger.Info().Str("run", req.RunID).Str("profile", profile.ProfileID).Msg("Profile started")
	s.emit(pr, "", models.PhaseProfile, models.StageStart, "Profile started", "")

	if stopRequested(ctx, stop, profile.ProfileID) {
		return s.finishProfile(pr, models.StatusHalted, models.HaltedMessage)
	}
	if len(profile.Authors) == 0 {
		return s.finishProfile(pr, models.StatusSkippedNoAuthors, "No authors configured")
	}
	if err := s.validate.Struct(profile); err != nil {
		s.logger.Warn().Str("profile", profile.ProfileID).Err(err).Msg("Profile configuration invalid")
		return s.finishProfile(pr, models.StatusSkippedInvalid, fmt.Sprintf("Invalid profile configuration: %v", err))
	}

	if s.deps.Lease != nil {
		acquired, err := s.deps.Lease.Acquire(ctx, req.UserID, profile.ProfileID, req.RunID, s.config.LeaseTTL)
		switch {
		case err != nil:
			s.logger.Warn().Str("profile", profile.ProfileID).Err(err).Msg("Run lease unavailable, continuing without it")
			pr.warn(fmt.Sprintf("run lease unavailable: %v", err))
		case !acquired:
			return s.finishProfile(pr, models.StatusSkippedInProgress, "Another run is publishing this profile")
		default:
			defer func() {
				if err := s.deps.Lease.Release(pr.detached, req.UserID, profile.ProfileID, req.RunID); err != nil {
					s.logger.Warn().Str("profile", profile.ProfileID).Err(err).Msg("Failed to release run lease")
				}
			}()
		}
	}

	pr.state = s.refreshState(ctx, pr, state)

	canPublish := s.config.MaxPostsPerDay - pr.state.PostsToday
	requested, ok := req.RequestedCounts[profile.ProfileID]
	if !ok {
		requested = profile.DailyTarget
		if requested <= 0 {
			requested = canPublish
		}
	}
	toAttempt := min(requested, canPublish)
	if toAttempt <= 0 {
		msg := fmt.Sprintf("Nothing to publish: requested %d, %d of %d posts already published today",
			requested, pr.state.PostsToday, s.config.MaxPostsPerDay)
		return s.finishProfile(pr, models.StatusSkippedLimit, msg)
	}

	res := s.deps.Tickers.Resolve(ctx, profile, pr.state, pr.override)
	pr.result.Source = res.Source
	for _, w := range res.Warnings {
		pr.warn(w)
	}
	if len(res.Tickers) == 0 {
		s.save(pr, "resolve")
		return s.finishProfile(pr, models.StatusSkippedNoTickers, "No tickers to process")
	}

	s.logger.Info().
		Str("profile", profile.ProfileID).
		Str("source", res.Source).
		Int("tickers", len(res.Tickers)).
		Int("to_attempt", toAttempt).
		Msg("Tickers resolved")

	status := s.tickerLoop(ctx, pr, res, toAttempt)

	s.save(pr, "profile end")
	return s.finishProfile(pr, status, s.summary(pr, status, toAttempt))
}

// refreshState reloads the profile after the lease is held, so writes from a
// run that finished in the meantime are not overwritten.
func (s *Service) refreshState(ctx context.Context, pr *profileRun, all *models.PublishingState) *models.ProfileState {
	today := s.now().UTC().Format(models.DateLayout)
	fresh, err := s.deps.State.Load(ctx, pr.req.UserID, []string{pr.profileID()})
	if err != nil {
		s.logger.Warn().Str("profile", pr.profileID()).Err(err).Msg("State refresh failed, using state loaded at run start")
		pr.warn(fmt.Sprintf("state refresh failed: %v", err))
		st := all.Profile(pr.profileID(), today)
		schedule.ClampAuthorIndex(st, len(pr.profile.Authors))
		return st
	}
	st := fresh.Profile(pr.profileID(), today)
	schedule.ClampAuthorIndex(st, len(pr.profile.Authors))
	if all.Profiles == nil {
		all.Profiles = make(map[string]*models.ProfileState)
	}
	all.Profiles[pr.profileID()] = st
	return st
}

// tickerLoop processes tickers in order and returns the profile status.
func (s *Service) tickerLoop(ctx context.Context, pr *profileRun, res *models.TickerResolution, toAttempt int) string {
	published := 0
	for i, ticker := range res.Tickers {
		if stopRequested(ctx, pr.stop, pr.profileID()) {
			s.record(pr, s.outcome(ticker, models.StatusHalted, models.HaltedMessage))
			pr.result.Halted = true
			return models.StatusHalted
		}
		if published >= toAttempt {
			pr.result.Capped = true
			return models.StatusCapped
		}
		if pr.state.PostsToday >= s.config.MaxPostsPerDay {
			pr.result.Capped = true
			return models.StatusDailyLimit
		}

		out, halted := s.processTickerSafe(ctx, pr, ticker)
		if !halted && res.Source == models.SourceUploadedFile {
			pr.state.LastProcessedTickerIndex = res.StartIndex + i
		}
		s.record(pr, out)

		if halted {
			pr.result.Halted = true
			return models.StatusHalted
		}
		if out.Status == models.StatusScheduled {
			published++
		}
	}
	return models.StatusCompleted
}

func (s *Service) summary(pr *profileRun, status string, toAttempt int) string {
	r := pr.result
	counts := fmt.Sprintf("%d published, %d failed, %d skipped", r.Published, r.Failed, r.Skipped)
	switch status {
	case models.StatusHalted:
		return fmt.Sprintf("%s: %s", models.HaltedMessage, counts)
	case models.StatusCapped:
		return fmt.Sprintf("Run cap of %d reached: %s", toAttempt, counts)
	case models.StatusDailyLimit:
		return fmt.Sprintf("Daily limit of %d reached: %s", s.config.MaxPostsPerDay, counts)
	default:
		return fmt.Sprintf("Completed: %s", counts)
	}
}

func (pr *profileRun) warn(msg string) {
	for _, w := range pr.result.Warnings {
		if w == msg {
			return
		}
	}
	pr.result.Warnings = append(pr.result.Warnings, msg)
}
