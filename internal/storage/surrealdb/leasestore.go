package surrealdb

import (
	"context"
	"fmt"
	"time"

	"github.com/surrealdb/surrealdb.go"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
	"github.com/ternarybob/arbor"

	"github.com/bobmcallan/tickzen/internal/interfaces"
)

// LeaseStore implements run leases with expiry on the run_lease table.
type LeaseStore struct {
	db     *surrealdb.DB
	logger arbor.ILogger
}

type leaseRecord struct {
	UserID     string    `json:"user_id"`
	ProfileID  string    `json:"profile_id"`
	Owner      string    `json:"owner"`
	AcquiredAt time.Time `json:"acquired_at"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// NewLeaseStore creates a new LeaseStore.
func NewLeaseStore(db *surrealdb.DB, logger arbor.ILogger) *LeaseStore {
	return &LeaseStore{db: db, logger: logger}
}

func (s *LeaseStore) Acquire(ctx context.Context, userID, profileID, owner string, ttl time.Duration) (bool, error) {
	now := time.Now().UTC()
	rid := surrealmodels.NewRecordID(tableLease, recordID(userID, profileID))

	// CREATE fails when a lease record already exists.
	createVars := map[string]any{
		"rid": rid,
		"lease": leaseRecord{
			UserID:     userID,
			ProfileID:  profileID,
			Owner:      owner,
			AcquiredAt: now,
			ExpiresAt:  now.Add(ttl),
		},
	}
	if _, err := surrealdb.Query[[]leaseRecord](ctx, s.db, "CREATE $rid CONTENT $lease", createVars); err == nil {
		return true, nil
	}

	// Existing record: take it over only when expired or already ours.
	sql := `UPDATE $rid SET owner = $owner, acquired_at = $now, expires_at = $expires
		WHERE owner = $owner OR expires_at < $now`
	vars := map[string]any{
		"rid":     rid,
		"owner":   owner,
		"now":     now,
		"expires": now.Add(ttl),
	}
	results, err := surrealdb.Query[[]leaseRecord](ctx, s.db, sql, vars)
	if err != nil {
		return false, fmt.Errorf("failed to acquire run lease %s/%s: %w", userID, profileID, err)
	}

	acquired := results != nil && len(*results) > 0 && len((*results)[0].Result) > 0
	if !acquired {
		s.logger.Debug().Str("user_id", userID).Str("profile_id", profileID).Msg("Run lease held by another owner")
	}
	return acquired, nil
}

func (s *LeaseStore) Release(ctx context.Context, userID, profileID, owner string) error {
	sql := "DELETE $rid WHERE owner = $owner"
	vars := map[string]any{
		"rid":   surrealmodels.NewRecordID(tableLease, recordID(userID, profileID)),
		"owner": owner,
	}
	if _, err := surrealdb.Query[any](ctx, s.db, sql, vars); err != nil && !isNotFoundError(err) {
		return fmt.Errorf("failed to release run lease %s/%s: %w", userID, profileID, err)
	}
	return nil
}

// Compile-time check
var _ interfaces.RunLease = (*LeaseStore)(nil)
