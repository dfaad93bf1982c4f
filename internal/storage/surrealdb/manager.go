// Package surrealdb implements TickZen storage on SurrealDB.
package surrealdb

import (
	"context"
	"fmt"
	"strings"

	"github.com/surrealdb/surrealdb.go"
	"github.com/ternarybob/arbor"

	"github.com/bobmcallan/tickzen/internal/common"
	"github.com/bobmcallan/tickzen/internal/interfaces"
)

// Table names.
const (
	tableState   = "publishing_state"
	tableStatus  = "processed_ticker"
	tableHistory = "publish_history"
	tableLease   = "run_lease"
	tableFiles   = "files"
)

// Manager implements interfaces.StorageManager using SurrealDB.
type Manager struct {
	db     *surrealdb.DB
	logger arbor.ILogger

	stateStore   *StateStore
	statusStore  *StatusStore
	historyStore *HistoryStore
	leaseStore   *LeaseStore
	fileStore    *FileStore
}

// NewManager connects to SurrealDB, defines the tables and builds the stores.
func NewManager(ctx context.Context, logger arbor.ILogger, config *common.Config) (*Manager, error) {
	db, err := surrealdb.New(config.Storage.Address)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to SurrealDB: %w", err)
	}

	if _, err := db.SignIn(ctx, map[string]interface{}{
		"user": config.Storage.Username,
		"pass": config.Storage.Password,
	}); err != nil {
		db.Close(ctx)
		return nil, fmt.Errorf("failed to sign in to SurrealDB: %w", err)
	}

	if err := db.Use(ctx, config.Storage.Namespace, config.Storage.Database); err != nil {
		db.Close(ctx)
		return nil, fmt.Errorf("failed to select namespace/database: %w", err)
	}

	if err := defineTables(ctx, db); err != nil {
		db.Close(ctx)
		return nil, err
	}

	m := &Manager{
		db:           db,
		logger:       logger,
		stateStore:   NewStateStore(db, logger),
		statusStore:  NewStatusStore(db, logger),
		historyStore: NewHistoryStore(db, logger),
		leaseStore:   NewLeaseStore(db, logger),
		fileStore:    NewFileStore(db, logger),
	}

	logger.Info().
		Str("address", config.Storage.Address).
		Str("namespace", config.Storage.Namespace).
		Str("database", config.Storage.Database).
		Msg("SurrealDB storage manager initialized")

	return m, nil
}

// defineTables creates the tables up front; SurrealDB v3 errors when querying a missing table.
func defineTables(ctx context.Context, db *surrealdb.DB) error {
	for _, table := range []string{tableState, tableStatus, tableHistory, tableLease, tableFiles} {
		sql := fmt.Sprintf("DEFINE TABLE IF NOT EXISTS %s SCHEMALESS", table)
		if _, err := surrealdb.Query[any](ctx, db, sql, nil); err != nil {
			return fmt.Errorf("failed to define table %s: %w", table, err)
		}
	}
	return nil
}

func (m *Manager) StateStore() interfaces.StateStore {
	return m.stateStore
}

func (m *Manager) StatusRecorder() interfaces.StatusRecorder {
	return m.statusStore
}

func (m *Manager) HistoryStore() interfaces.HistoryStore {
	return m.historyStore
}

func (m *Manager) RunLease() interfaces.RunLease {
	return m.leaseStore
}

func (m *Manager) FileStore() interfaces.FileStore {
	return m.fileStore
}

func (m *Manager) Close() error {
	m.db.Close(context.Background())
	return nil
}

// recordID builds an array record id, so distinct part tuples never share a record.
func recordID(parts ...string) []any {
	id := make([]any, len(parts))
	for i, p := range parts {
		id[i] = p
	}
	return id
}

func isNotFoundError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "not found") || strings.Contains(msg, "does not exist")
}

// Compile-time check
var _ interfaces.StorageManager = (*Manager)(nil)
