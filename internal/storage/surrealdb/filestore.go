package surrealdb

import (
	"context"
	"encoding/base64"
	"fmt"
	"mime"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/surrealdb/surrealdb.go"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
	"github.com/ternarybob/arbor"

	"github.com/bobmcallan/tickzen/internal/interfaces"
	"github.com/bobmcallan/tickzen/internal/models"
)

// CategoryTickers holds uploaded ticker lists (CSV/XLSX).
const CategoryTickers = models.FileCategoryTickers

// maxEncodedFileBytes is the CBOR document limit; base64 adds about a third.
const maxEncodedFileBytes = 10_000_000

// FileStore keeps uploaded files base64-encoded in the files table.
type FileStore struct {
	db     *surrealdb.DB
	logger arbor.ILogger
}

type fileRecord struct {
	Category    string    `json:"category"`
	Key         string    `json:"key"`
	ContentType string    `json:"content_type"`
	Size        int       `json:"size"`
	Data        string    `json:"data"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// NewFileStore creates a new FileStore.
func NewFileStore(db *surrealdb.DB, logger arbor.ILogger) *FileStore {
	return &FileStore{db: db, logger: logger}
}

// SaveUpload stores an uploaded ticker file under a fresh key.
// The original file name is kept as the key suffix so the format can be detected later.
func (s *FileStore) SaveUpload(ctx context.Context, name string, data []byte) (*models.FileRef, error) {
	base := filepath.Base(name)
	key := uuid.New().String()[:8] + "_" + base

	contentType := mime.TypeByExtension(filepath.Ext(base))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	if err := s.SaveFile(ctx, CategoryTickers, key, data, contentType); err != nil {
		return nil, err
	}
	s.logger.Info().Str("key", key).Int("bytes", len(data)).Msg("Ticker file uploaded")
	return &models.FileRef{Key: key, Name: base}, nil
}

func (s *FileStore) SaveFile(ctx context.Context, category, key string, data []byte, contentType string) error {
	if base64.StdEncoding.EncodedLen(len(data)) > maxEncodedFileBytes {
		return fmt.Errorf("file %s/%s too large for storage: %d bytes", category, key, len(data))
	}

	sql := "UPSERT $rid CONTENT $file"
	vars := map[string]any{
		"rid": surrealmodels.NewRecordID(tableFiles, recordID(category, key)),
		"file": fileRecord{
			Category:    category,
			Key:         key,
			ContentType: contentType,
			Size:        len(data),
			Data:        base64.StdEncoding.EncodeToString(data),
			UpdatedAt:   time.Now().UTC(),
		},
	}

	if _, err := surrealdb.Query[[]fileRecord](ctx, s.db, sql, vars); err != nil {
		return fmt.Errorf("failed to save file %s/%s: %w", category, key, err)
	}
	return nil
}

func (s *FileStore) GetFile(ctx context.Context, category, key string) ([]byte, string, error) {
	record, err := surrealdb.Select[fileRecord](ctx, s.db, surrealmodels.NewRecordID(tableFiles, recordID(category, key)))
	if err != nil {
		if isNotFoundError(err) {
			return nil, "", fmt.Errorf("%w: %s/%s", interfaces.ErrFileNotFound, category, key)
		}
		return nil, "", fmt.Errorf("failed to get file %s/%s: %w", category, key, err)
	}
	if record == nil || record.Key == "" {
		return nil, "", fmt.Errorf("%w: %s/%s", interfaces.ErrFileNotFound, category, key)
	}

	data, err := base64.StdEncoding.DecodeString(record.Data)
	if err != nil {
		return nil, "", fmt.Errorf("failed to decode file %s/%s: %w", category, key, err)
	}
	return data, record.ContentType, nil
}

func (s *FileStore) DeleteFile(ctx context.Context, category, key string) error {
	if _, err := surrealdb.Delete[fileRecord](ctx, s.db, surrealmodels.NewRecordID(tableFiles, recordID(category, key))); err != nil && !isNotFoundError(err) {
		return fmt.Errorf("failed to delete file %s/%s: %w", category, key, err)
	}
	return nil
}

func (s *FileStore) HasFile(ctx context.Context, category, key string) (bool, error) {
	record, err := surrealdb.Select[fileRecord](ctx, s.db, surrealmodels.NewRecordID(tableFiles, recordID(category, key)))
	if err != nil {
		if isNotFoundError(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check file %s/%s: %w", category, key, err)
	}
	return record != nil && record.Key != "", nil
}

// Compile-time check
var _ interfaces.FileStore = (*FileStore)(nil)
