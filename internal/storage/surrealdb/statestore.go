package surrealdb

import (
	"context"
	"fmt"
	"time"

	"github.com/surrealdb/surrealdb.go"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
	"github.com/ternarybob/arbor"

	"github.com/bobmcallan/tickzen/internal/interfaces"
	"github.com/bobmcallan/tickzen/internal/models"
)

// StateStore keeps one publishing_state record per (user, profile),
// the equivalent of the users/{user}/profiles/{profile} document.
type StateStore struct {
	db     *surrealdb.DB
	logger arbor.ILogger
}

// stateRecord is the stored shape of models.ProfileState. The published
// log is kept as a sorted list.
type stateRecord struct {
	UserID                   string                   `json:"user_id"`
	ProfileID                string                   `json:"profile_id"`
	PendingTickers           []string                 `json:"pending_tickers"`
	FailedTickers            []string                 `json:"failed_tickers"`
	PublishedTickers         []string                 `json:"published_tickers_log"`
	TickerPublishCount       map[string]int           `json:"ticker_publish_count"`
	PostsToday               int                      `json:"posts_today"`
	LastScheduleTime         *time.Time               `json:"last_successful_schedule_time,omitempty"`
	LastAuthorIndex          int                      `json:"last_author_index"`
	LastProcessedTickerIndex int                      `json:"last_processed_ticker_index"`
	UploadedFile             *models.UploadedFileMeta `json:"uploaded_file,omitempty"`
	ProcessedToday           []models.TickerOutcome   `json:"processed_today"`
	LastRunDate              string                   `json:"last_run_date"`
	UpdatedAt                time.Time                `json:"updated_at"`
}

// NewStateStore creates a new StateStore.
func NewStateStore(db *surrealdb.DB, logger arbor.ILogger) *StateStore {
	return &StateStore{db: db, logger: logger}
}

func toStateRecord(userID, profileID string, st *models.ProfileState) stateRecord {
	return stateRecord{
		UserID:                   userID,
		ProfileID:                profileID,
		PendingTickers:           st.PendingTickers,
		FailedTickers:            st.FailedTickers,
		PublishedTickers:         st.PublishedTickersLog.Sorted(),
		TickerPublishCount:       st.TickerPublishCount,
		PostsToday:               st.PostsToday,
		LastScheduleTime:         st.LastSuccessfulScheduleTime,
		LastAuthorIndex:          st.LastAuthorIndex,
		LastProcessedTickerIndex: st.LastProcessedTickerIndex,
		UploadedFile:             st.UploadedFile,
		ProcessedToday:           st.ProcessedToday,
		LastRunDate:              st.LastRunDate,
		UpdatedAt:                time.Now().UTC(),
	}
}

func (r stateRecord) toState() *models.ProfileState {
	st := &models.ProfileState{
		PendingTickers:             r.PendingTickers,
		FailedTickers:              r.FailedTickers,
		PublishedTickersLog:        models.NewTickerSet(r.PublishedTickers...),
		TickerPublishCount:         r.TickerPublishCount,
		PostsToday:                 r.PostsToday,
		LastSuccessfulScheduleTime: r.LastScheduleTime,
		LastAuthorIndex:            r.LastAuthorIndex,
		LastProcessedTickerIndex:   r.LastProcessedTickerIndex,
		UploadedFile:               r.UploadedFile,
		ProcessedToday:             r.ProcessedToday,
		LastRunDate:                r.LastRunDate,
	}
	st.Normalize()
	return st
}

func (s *StateStore) LoadProfiles(ctx context.Context, userID string, profileIDs []string) (map[string]*models.ProfileState, error) {
	sql := "SELECT * FROM publishing_state WHERE user_id = $user AND profile_id IN $profiles"
	vars := map[string]any{"user": userID, "profiles": profileIDs}

	results, err := surrealdb.Query[[]stateRecord](ctx, s.db, sql, vars)
	if err != nil {
		return nil, fmt.Errorf("failed to load publishing state for %s: %w", userID, err)
	}

	out := make(map[string]*models.ProfileState, len(profileIDs))
	if results != nil && len(*results) > 0 {
		for _, rec := range (*results)[0].Result {
			out[rec.ProfileID] = rec.toState()
		}
	}
	return out, nil
}

func (s *StateStore) SaveProfile(ctx context.Context, userID, profileID string, st *models.ProfileState) error {
	sql := "UPSERT $rid CONTENT $state"
	vars := map[string]any{
		"rid":   surrealmodels.NewRecordID(tableState, recordID(userID, profileID)),
		"state": toStateRecord(userID, profileID, st),
	}

	var lastErr error
	for attempt := 1; attempt <= 3; attempt++ {
		if _, err := surrealdb.Query[[]stateRecord](ctx, s.db, sql, vars); err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	return fmt.Errorf("failed to save publishing state %s/%s after retries: %w", userID, profileID, lastErr)
}

// DeleteProfile removes the profile state together with its ticker statuses,
// run history and lease.
func (s *StateStore) DeleteProfile(ctx context.Context, userID, profileID string) error {
	sql := `DELETE $rid;
		DELETE processed_ticker WHERE user_id = $user AND profile_id = $profile;
		DELETE publish_history WHERE user_id = $user AND profile_id = $profile;
		DELETE run_lease WHERE user_id = $user AND profile_id = $profile;`
	vars := map[string]any{
		"rid":     surrealmodels.NewRecordID(tableState, recordID(userID, profileID)),
		"user":    userID,
		"profile": profileID,
	}

	if _, err := surrealdb.Query[any](ctx, s.db, sql, vars); err != nil && !isNotFoundError(err) {
		return fmt.Errorf("failed to delete publishing state %s/%s: %w", userID, profileID, err)
	}
	s.logger.Info().Str("user_id", userID).Str("profile_id", profileID).Msg("Profile publishing state deleted")
	return nil
}

// Compile-time check
var _ interfaces.StateStore = (*StateStore)(nil)
