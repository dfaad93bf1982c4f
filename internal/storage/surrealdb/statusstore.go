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

// StatusStore keeps the latest status per ticker, the equivalent of the
// processedTickers/{ticker} sub-collection.
type StatusStore struct {
	db     *surrealdb.DB
	logger arbor.ILogger
}

type statusRecord struct {
	UserID    string               `json:"user_id"`
	ProfileID string               `json:"profile_id"`
	Ticker    string               `json:"ticker"`
	RunID     string               `json:"run_id"`
	Outcome   models.TickerOutcome `json:"outcome"`
	UpdatedAt time.Time            `json:"updated_at"`
}

// NewStatusStore creates a new StatusStore.
func NewStatusStore(db *surrealdb.DB, logger arbor.ILogger) *StatusStore {
	return &StatusStore{db: db, logger: logger}
}

func (s *StatusStore) RecordStatus(ctx context.Context, userID, profileID, ticker string, record models.StatusRecord) error {
	if record.UpdatedAt.IsZero() {
		record.UpdatedAt = time.Now().UTC()
	}

	sql := "UPSERT $rid CONTENT $status"
	vars := map[string]any{
		"rid": surrealmodels.NewRecordID(tableStatus, recordID(userID, profileID, ticker)),
		"status": statusRecord{
			UserID:    userID,
			ProfileID: profileID,
			Ticker:    ticker,
			RunID:     record.RunID,
			Outcome:   record.Outcome,
			UpdatedAt: record.UpdatedAt,
		},
	}

	if _, err := surrealdb.Query[[]statusRecord](ctx, s.db, sql, vars); err != nil {
		return fmt.Errorf("failed to record status for %s: %w", ticker, err)
	}
	return nil
}

func (s *StatusStore) ListStatuses(ctx context.Context, userID, profileID string) (map[string]models.StatusRecord, error) {
	sql := "SELECT * FROM processed_ticker WHERE user_id = $user AND profile_id = $profile"
	vars := map[string]any{"user": userID, "profile": profileID}

	results, err := surrealdb.Query[[]statusRecord](ctx, s.db, sql, vars)
	if err != nil {
		return nil, fmt.Errorf("failed to list ticker statuses: %w", err)
	}

	out := make(map[string]models.StatusRecord)
	if results != nil && len(*results) > 0 {
		for _, r := range (*results)[0].Result {
			out[r.Ticker] = models.StatusRecord{RunID: r.RunID, Outcome: r.Outcome, UpdatedAt: r.UpdatedAt}
		}
	}
	return out, nil
}

// HistoryStore appends one record per profile run.
type HistoryStore struct {
	db     *surrealdb.DB
	logger arbor.ILogger
}

// NewHistoryStore creates a new HistoryStore.
func NewHistoryStore(db *surrealdb.DB, logger arbor.ILogger) *HistoryStore {
	return &HistoryStore{db: db, logger: logger}
}

func (s *HistoryStore) AppendHistory(ctx context.Context, entry models.HistoryEntry) error {
	if entry.FinishedAt.IsZero() {
		entry.FinishedAt = time.Now().UTC()
	}

	// Keyed by run so a retried append overwrites instead of duplicating.
	sql := "UPSERT $rid CONTENT $entry"
	vars := map[string]any{
		"rid":   surrealmodels.NewRecordID(tableHistory, recordID(entry.UserID, entry.ProfileID, entry.RunID)),
		"entry": entry,
	}

	if _, err := surrealdb.Query[[]models.HistoryEntry](ctx, s.db, sql, vars); err != nil {
		return fmt.Errorf("failed to append publish history: %w", err)
	}
	return nil
}

func (s *HistoryStore) ListHistory(ctx context.Context, userID, profileID string, limit int) ([]models.HistoryEntry, error) {
	if limit <= 0 {
		limit = 20
	}
	sql := fmt.Sprintf("SELECT * FROM publish_history WHERE user_id = $user AND profile_id = $profile ORDER BY finished_at DESC LIMIT %d", limit)
	vars := map[string]any{"user": userID, "profile": profileID}

	results, err := surrealdb.Query[[]models.HistoryEntry](ctx, s.db, sql, vars)
	if err != nil {
		return nil, fmt.Errorf("failed to list publish history: %w", err)
	}

	if results == nil || len(*results) == 0 {
		return []models.HistoryEntry{}, nil
	}
	return (*results)[0].Result, nil
}

// Compile-time checks
var (
	_ interfaces.StatusRecorder = (*StatusStore)(nil)
	_ interfaces.HistoryStore   = (*HistoryStore)(nil)
)
