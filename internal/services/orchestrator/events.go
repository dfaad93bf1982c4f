package orchestrator

import (
	"fmt"
	"strings"

	"github.com/bobmcallan/tickzen/internal/models"
)

func (s *Service) outcome(ticker, status, message string) models.TickerOutcome {
	return models.TickerOutcome{
		Ticker:     ticker,
		Status:     status,
		Message:    message,
		RecordedAt: s.now(),
	}
}

// record applies a terminal ticker outcome: result counters, the day's log,
// one status callback, one progress event and a state save.
func (s *Service) record(pr *profileRun, out models.TickerOutcome) {
	r := pr.result
	r.Outcomes = append(r.Outcomes, out)
	switch {
	case out.Status == models.StatusScheduled:
		r.Published++
	case strings.HasPrefix(out.Status, "Failed"):
		r.Failed++
	case strings.HasPrefix(out.Status, "Skipped"):
		r.Skipped++
	}
	pr.state.ProcessedToday = append(pr.state.ProcessedToday, out)

	if s.deps.Statuses != nil {
		rec := models.StatusRecord{RunID: pr.req.RunID, Outcome: out, UpdatedAt: s.now()}
		if err := s.deps.Statuses.RecordStatus(pr.detached, pr.req.UserID, pr.profileID(), out.Ticker, rec); err != nil {
			s.logger.Warn().Str("profile", pr.profileID()).Str("ticker", out.Ticker).Err(err).Msg("Failed to record ticker status")
		}
	}

	s.emit(pr, out.Ticker, models.PhaseTicker, models.StageDone, outcomeMessage(out), out.Status)

	s.logger.Info().
		Str("profile", pr.profileID()).
		Str("ticker", out.Ticker).
		Str("status", out.Status).
		Str("writer", out.Writer).
		Msg("Ticker finished")

	s.save(pr, out.Ticker)
}

func outcomeMessage(out models.TickerOutcome) string {
	if out.Message == "" {
		return out.Status
	}
	return fmt.Sprintf("%s: %s", out.Status, out.Message)
}

// finishProfile stamps the result, appends it to history and announces it.
func (s *Service) finishProfile(pr *profileRun, status, summary string) *models.RunResult {
	r := pr.result
	r.Status = status
	r.Summary = summary
	r.FinishedAt = s.now()
	if status == models.StatusHalted {
		r.Halted = true
	}

	if s.deps.History != nil && pr.state != nil {
		entry := models.HistoryEntry{
			RunID:      pr.req.RunID,
			UserID:     pr.req.UserID,
			ProfileID:  pr.profileID(),
			Status:     status,
			Summary:    summary,
			Outcomes:   r.Outcomes,
			StartedAt:  r.StartedAt,
			FinishedAt: r.FinishedAt,
		}
		if err := s.deps.History.AppendHistory(pr.detached, entry); err != nil {
			s.logger.Warn().Str("profile", pr.profileID()).Err(err).Msg("Failed to append publish history")
			pr.warn(fmt.Sprintf("history not recorded: %v", err))
		}
	}

	s.emit(pr, "", models.PhaseProfile, models.StageDone, summary, status)
	s.logger.Info().
		Str("run", pr.req.RunID).
		Str("profile", pr.profileID()).
		Str("status", status).
		Int("published", r.Published).
		Int("failed", r.Failed).
		Int("skipped", r.Skipped).
		Msg(summary)
	return r
}

// save persists the profile state. Failures degrade durability but never
// abort the run; the next save point retries.
func (s *Service) save(pr *profileRun, point string) {
	if pr.state == nil {
		return
	}
	if err := s.deps.State.SaveProfile(pr.detached, pr.req.UserID, pr.profileID(), pr.state); err != nil {
		s.logger.Error().Str("profile", pr.profileID()).Str("at", point).Err(err).Msg("State save failed")
		pr.warn(fmt.Sprintf("state persistence degraded: %v", err))
	}
}

// emit notifies the progress sink, or the log when none is configured.
func (s *Service) emit(pr *profileRun, ticker, phase, stage, message, status string) {
	ev := models.ProgressEvent{
		RunID:     pr.req.RunID,
		UserID:    pr.req.UserID,
		ProfileID: pr.profileID(),
		Ticker:    ticker,
		Phase:     phase,
		Stage:     stage,
		Message:   message,
		Status:    status,
		Timestamp: s.now(),
	}
	if s.deps.Progress == nil {
		s.logger.Debug().Str("profile", ev.ProfileID).Str("ticker", ticker).Str("stage", stage).Msg(message)
		return
	}
	s.deps.Progress.Emit(ev)
}
