// Package interfaces defines service contracts for TickZen
package interfaces

import (
	"context"
	"errors"
	"time"

	"github.com/bobmcallan/tickzen/internal/models"
)

// StorageManager coordinates the storage backends
type StorageManager interface {
	StateStore() StateStore
	StatusRecorder() StatusRecorder
	HistoryStore() HistoryStore
	RunLease() RunLease
	FileStore() FileStore

	Close() error
}

// StateStore persists per-(user, profile) publishing state.
// LoadProfiles returns only the profiles that exist in the store.
type StateStore interface {
	LoadProfiles(ctx context.Context, userID string, profileIDs []string) (map[string]*models.ProfileState, error)
	SaveProfile(ctx context.Context, userID, profileID string, state *models.ProfileState) error
	DeleteProfile(ctx context.Context, userID, profileID string) error
}

// StatusRecorder receives the terminal status of every ticker in a run.
type StatusRecorder interface {
	RecordStatus(ctx context.Context, userID, profileID, ticker string, record models.StatusRecord) error
	ListStatuses(ctx context.Context, userID, profileID string) (map[string]models.StatusRecord, error)
}

// HistoryStore keeps the log of profile runs.
type HistoryStore interface {
	AppendHistory(ctx context.Context, entry models.HistoryEntry) error
	ListHistory(ctx context.Context, userID, profileID string, limit int) ([]models.HistoryEntry, error)
}

// RunLease serialises runs for the same (user, profile).
// Acquire returns false when another owner holds an unexpired lease.
type RunLease interface {
	Acquire(ctx context.Context, userID, profileID, owner string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, userID, profileID, owner string) error
}

// FileStore manages uploaded binary files.
// ErrFileNotFound is returned by FileStore.GetFile when no file is stored under the key.
var ErrFileNotFound = errors.New("file not found")

type FileStore interface {
	SaveFile(ctx context.Context, category, key string, data []byte, contentType string) error
	GetFile(ctx context.Context, category, key string) ([]byte, string, error)
	DeleteFile(ctx context.Context, category, key string) error
	HasFile(ctx context.Context, category, key string) (bool, error)
}
