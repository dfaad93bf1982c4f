package app

import (
	"fmt"

	"github.com/robfig/cron/v3"
)

// StartScheduler triggers a run for every configured user on the publishing
// cron schedule. An empty schedule leaves runs manual.
func (a *App) StartScheduler() error {
	expr := a.Config.Publishing.Schedule
	if expr == "" {
		a.Logger.Info().Msg("Publishing scheduler disabled, runs are manual")
		return nil
	}
	if a.scheduler != nil {
		return fmt.Errorf("scheduler already running")
	}

	c := cron.New()
	if _, err := c.AddFunc(expr, a.runScheduled); err != nil {
		return fmt.Errorf("invalid publishing schedule %q: %w", expr, err)
	}
	c.Start()
	a.scheduler = c

	a.Logger.Info().Str("schedule", expr).Int("users", len(a.Config.Users)).Msg("Publishing scheduler started")
	return nil
}

// StopScheduler stops the cron and waits for a firing in progress to hand off its runs.
func (a *App) StopScheduler() {
	if a.scheduler == nil {
		return
	}
	ctx := a.scheduler.Stop()
	<-ctx.Done()
	a.scheduler = nil
	a.Logger.Info().Msg("Publishing scheduler stopped")
}

// runScheduled starts one background run per configured user. A user whose
// profiles are still running from the last firing is skipped per profile by the run lease.
func (a *App) runScheduled() {
	if err := a.runCtx.Err(); err != nil {
		return
	}
	for _, u := range a.Config.Users {
		if len(u.Profiles) == 0 {
			continue
		}
		if _, err := a.TriggerRun(RunOptions{UserID: u.ID}); err != nil {
			a.Logger.Error().Err(err).Str("user_id", u.ID).Msg("Scheduled run failed to start")
		}
	}
}

