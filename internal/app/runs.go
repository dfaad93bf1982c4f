package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/bobmcallan/tickzen/internal/models"
	"github.com/bobmcallan/tickzen/internal/services/schedule"
	"github.com/bobmcallan/tickzen/internal/services/tickers"
)

const runDrainTimeout = 30 * time.Second

// Run lifecycle states.
const (
	RunRunning  = "running"
	RunFinished = "finished"
	RunFailed   = "failed"
)

var (
	ErrUnknownUser    = errors.New("unknown user")
	ErrUnknownProfile = errors.New("unknown profile")
	ErrUnknownRun     = errors.New("unknown run")

	ErrInvalidTickerFile = errors.New("invalid ticker file")

	// ErrStorageUnavailable is returned when the app runs on the local state
	// fallback and the requested data lives only in SurrealDB.
	ErrStorageUnavailable = errors.New("storage unavailable")
)

// RunOptions selects what a run publishes. Empty ProfileIDs means every
// profile configured for the user.
type RunOptions struct {
	UserID          string                           `json:"user_id"`
	ProfileIDs      []string                         `json:"profile_ids,omitempty"`
	RequestedCounts map[string]int                   `json:"requested_counts,omitempty"`
	Overrides       map[string]models.TickerOverride `json:"overrides,omitempty"`
}

// RunRecord tracks a run started through the app.
type RunRecord struct {
	RunID      string              `json:"run_id"`
	UserID     string              `json:"user_id"`
	ProfileIDs []string            `json:"profile_ids"`
	Status     string              `json:"status"`
	Error      string              `json:"error,omitempty"`
	Results    []*models.RunResult `json:"results,omitempty"`
	StartedAt  time.Time           `json:"started_at"`
	FinishedAt *time.Time          `json:"finished_at,omitempty"`
}

// buildRunRequest resolves the configured profiles for a run.
func (a *App) buildRunRequest(opts RunOptions) (models.RunRequest, error) {
	user, ok := a.Config.User(opts.UserID)
	if !ok {
		return models.RunRequest{}, fmt.Errorf("%w: %s", ErrUnknownUser, opts.UserID)
	}

	profiles := user.Profiles
	if len(opts.ProfileIDs) > 0 {
		byID := make(map[string]models.ProfileConfig, len(user.Profiles))
		for _, p := range user.Profiles {
			byID[p.ProfileID] = p
		}
		profiles = make([]models.ProfileConfig, 0, len(opts.ProfileIDs))
		for _, id := range opts.ProfileIDs {
			p, ok := byID[id]
			if !ok {
				return models.RunRequest{}, fmt.Errorf("%w: %s", ErrUnknownProfile, id)
			}
			profiles = append(profiles, p)
		}
	}

	return models.RunRequest{
		RunID:           uuid.New().String(),
		UserID:          user.ID,
		Profiles:        profiles,
		RequestedCounts: opts.RequestedCounts,
		Overrides:       opts.Overrides,
	}, nil
}

func profileIDs(profiles []models.ProfileConfig) []string {
	ids := make([]string, len(profiles))
	for i, p := range profiles {
		ids[i] = p.ProfileID
	}
	return ids
}

// TriggerRun starts a run in the background and returns its record.
// Stop requests left over from earlier runs of the same profiles are cleared.
func (a *App) TriggerRun(opts RunOptions) (*RunRecord, error) {
	req, err := a.buildRunRequest(opts)
	if err != nil {
		return nil, err
	}

	ids := profileIDs(req.Profiles)
	a.Stops.Clear(req.UserID, ids...)

	rec := &RunRecord{
		RunID:      req.RunID,
		UserID:     req.UserID,
		ProfileIDs: ids,
		Status:     RunRunning,
		StartedAt:  time.Now(),
	}
	a.runsMu.Lock()
	a.runs[rec.RunID] = rec
	a.runsMu.Unlock()

	a.runsWG.Add(1)
	go func() {
		defer a.runsWG.Done()
		results, err := a.Publishing.Run(a.runCtx, req, a.Stops.ForUser(req.UserID))
		a.finishRun(rec.RunID, results, err)
	}()

	a.Logger.Info().
		Str("run_id", rec.RunID).
		Str("user_id", rec.UserID).
		Strs("profiles", ids).
		Msg("Publishing run started")

	return a.snapshotRun(rec), nil
}

// RunSync runs in the caller's goroutine and returns the per-profile results.
func (a *App) RunSync(ctx context.Context, opts RunOptions) ([]*models.RunResult, error) {
	req, err := a.buildRunRequest(opts)
	if err != nil {
		return nil, err
	}
	a.Stops.Clear(req.UserID, profileIDs(req.Profiles)...)
	return a.Publishing.Run(ctx, req, a.Stops.ForUser(req.UserID))
}

func (a *App) finishRun(runID string, results []*models.RunResult, err error) {
	now := time.Now()

	a.runsMu.Lock()
	rec := a.runs[runID]
	rec.Results = results
	rec.FinishedAt = &now
	rec.Status = RunFinished
	if err != nil {
		rec.Status = RunFailed
		rec.Error = err.Error()
	}
	a.runsMu.Unlock()

	if err != nil {
		a.Logger.Error().Err(err).Str("run_id", runID).Msg("Publishing run failed")
		return
	}
	a.Logger.Info().Str("run_id", runID).Int("profiles", len(results)).Msg("Publishing run finished")
}

// GetRun returns a copy of a run record.
func (a *App) GetRun(runID string) (*RunRecord, error) {
	a.runsMu.Lock()
	defer a.runsMu.Unlock()
	rec, ok := a.runs[runID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownRun, runID)
	}
	cp := *rec
	return &cp, nil
}

func (a *App) snapshotRun(rec *RunRecord) *RunRecord {
	a.runsMu.Lock()
	defer a.runsMu.Unlock()
	cp := *rec
	return &cp
}

// checkProfile verifies the (user, profile) pair is configured.
func (a *App) checkProfile(userID, profileID string) error {
	_, err := a.lookupProfile(userID, profileID)
	return err
}

func (a *App) lookupProfile(userID, profileID string) (*models.ProfileConfig, error) {
	user, ok := a.Config.User(userID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownUser, userID)
	}
	for i := range user.Profiles {
		if user.Profiles[i].ProfileID == profileID {
			return &user.Profiles[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownProfile, profileID)
}

// StopProfile asks the running run of a profile to halt at its next checkpoint.
func (a *App) StopProfile(userID, profileID string) error {
	if err := a.checkProfile(userID, profileID); err != nil {
		return err
	}
	a.Stops.Request(userID, profileID)
	a.Logger.Info().Str("user_id", userID).Str("profile_id", profileID).Msg("Stop requested")
	return nil
}

// ProfileState returns the current publishing state of a profile.
func (a *App) ProfileState(ctx context.Context, userID, profileID string) (*models.ProfileState, error) {
	profile, err := a.lookupProfile(userID, profileID)
	if err != nil {
		return nil, err
	}
	all, err := a.State.Load(ctx, userID, []string{profileID})
	if err != nil {
		return nil, err
	}
	st := all.Profile(profileID, time.Now().UTC().Format(models.DateLayout))
	schedule.ClampAuthorIndex(st, len(profile.Authors))
	return st, nil
}

// ResetProfile deletes the publishing state of a profile.
func (a *App) ResetProfile(ctx context.Context, userID, profileID string) error {
	if err := a.checkProfile(userID, profileID); err != nil {
		return err
	}
	return a.State.DeleteProfile(ctx, userID, profileID)
}

// ProfileStatuses returns the latest recorded status of each ticker of a profile.
func (a *App) ProfileStatuses(ctx context.Context, userID, profileID string) (map[string]models.StatusRecord, error) {
	if err := a.checkProfile(userID, profileID); err != nil {
		return nil, err
	}
	if a.Statuses == nil {
		return nil, fmt.Errorf("%w: ticker statuses", ErrStorageUnavailable)
	}
	return a.Statuses.ListStatuses(ctx, userID, profileID)
}

// ProfileHistory returns the most recent runs of a profile.
func (a *App) ProfileHistory(ctx context.Context, userID, profileID string, limit int) ([]models.HistoryEntry, error) {
	if err := a.checkProfile(userID, profileID); err != nil {
		return nil, err
	}
	if a.History == nil {
		return nil, fmt.Errorf("%w: publish history", ErrStorageUnavailable)
	}
	return a.History.ListHistory(ctx, userID, profileID, limit)
}

// UploadTickerFile validates and stores a ticker file. The returned reference is
// used as a run override; the file is kept until a later run replaces it.
func (a *App) UploadTickerFile(ctx context.Context, name, contentType string, data []byte) (*models.FileRef, int, error) {
	list, err := tickers.ParseTickerFile(name, contentType, data)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrInvalidTickerFile, err)
	}
	if a.Files == nil {
		return nil, 0, fmt.Errorf("%w: ticker file uploads", ErrStorageUnavailable)
	}

	key := uuid.New().String() + "-" + strings.ReplaceAll(strings.ToLower(name), " ", "_")
	if err := a.Files.SaveFile(ctx, models.FileCategoryTickers, key, data, contentType); err != nil {
		return nil, 0, fmt.Errorf("failed to store ticker file: %w", err)
	}

	a.Logger.Info().Str("file", name).Str("key", key).Int("tickers", len(list)).Msg("Ticker file uploaded")
	return &models.FileRef{Key: key, Name: name}, len(list), nil
}
