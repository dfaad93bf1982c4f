// Package tickers resolves the ordered ticker list a profile processes in a run.
package tickers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/xuri/excelize/v2"

	"github.com/bobmcallan/tickzen/internal/interfaces"
	"github.com/bobmcallan/tickzen/internal/models"
)

// SheetReader reads the default ticker feed of a profile.
type SheetReader interface {
	ReadTickers(ctx context.Context, src models.SpreadsheetSource) ([]string, error)
}

// WorkbookReader reads tickers from a local XLSX workbook.
type WorkbookReader struct{}

// ReadTickers implements SheetReader
func (WorkbookReader) ReadTickers(ctx context.Context, src models.SpreadsheetSource) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := excelize.OpenFile(src.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook %s: %w", src.Path, err)
	}
	defer f.Close()
	return readSheet(f, src.Sheet)
}

// Resolver chooses tickers by priority: manual entry, then an uploaded file
// (the run's override, then the file persisted in state), then the
// spreadsheet and state queue.
type Resolver struct {
	files  interfaces.FileStore
	sheets SheetReader
	logger arbor.ILogger
	now    func() time.Time
}

var _ interfaces.TickerResolver = (*Resolver)(nil)

// NewResolver creates a Resolver. files and sheets may be nil, which disables
// the corresponding source.
func NewResolver(files interfaces.FileStore, sheets SheetReader, logger arbor.ILogger) *Resolver {
	return &Resolver{
		files:  files,
		sheets: sheets,
		logger: logger,
		now:    time.Now,
	}
}

// Resolve returns the tickers to process. It never fails: unreadable sources
// yield an empty list and a warning. It updates the file tracking and
// pending queue held in state.
func (r *Resolver) Resolve(ctx context.Context, profile models.ProfileConfig, st *models.ProfileState, override *models.TickerOverride) *models.TickerResolution {
	res := &models.TickerResolution{StartIndex: -1}
	republish := override != nil && override.Republish

	if override != nil && len(override.Manual) > 0 {
		if st.UploadedFile != nil {
			r.logger.Info().Str("profile", profile.ProfileID).Str("file", st.UploadedFile.Name).
				Msg("Manual tickers supersede uploaded file tracking")
		}
		st.ClearUploadedFile()
		res.Source = models.SourceManual
		res.Tickers = dedupe(NormalizeList(override.Manual))
		return res
	}

	if override != nil && override.UploadedFile != nil && override.UploadedFile.Key != "" {
		ref := override.UploadedFile
		if st.UploadedFile == nil || st.UploadedFile.Key != ref.Key {
			st.UploadedFile = &models.UploadedFileMeta{
				Key:        ref.Key,
				Name:       ref.Name,
				UploadedAt: r.now().UTC(),
			}
			st.LastProcessedTickerIndex = -1
		}
		r.resolveFile(ctx, profile, st, res)
		return res
	}

	if st.UploadedFile != nil {
		if r.resolveFile(ctx, profile, st, res) != fileFinished {
			return res
		}
		r.logger.Info().Str("profile", profile.ProfileID).Str("file", st.UploadedFile.Name).
			Msg("Uploaded ticker file finished, reverting to default source")
		st.ClearUploadedFile()
		res.Tickers = nil
		res.StartIndex = -1
	}

	r.resolveQueue(ctx, profile, st, republish, res)
	return res
}

type fileResult int

const (
	fileResolved fileResult = iota
	// fileFinished: exhausted, empty, unreadable or deleted. Tracking can be dropped.
	fileFinished
	// fileUnavailable: the store could not be read this time. Tracking is kept for the next run.
	fileUnavailable
)

// resolveFile fills res from the tracked uploaded file, resuming after the
// last processed index.
func (r *Resolver) resolveFile(ctx context.Context, profile models.ProfileConfig, st *models.ProfileState, res *models.TickerResolution) fileResult {
	meta := st.UploadedFile
	res.Source = models.SourceUploadedFile

	if r.files == nil {
		r.warn(profile, res, "no file store configured for uploaded ticker file %s", meta.Name)
		return fileUnavailable
	}

	data, contentType, err := r.files.GetFile(ctx, models.FileCategoryTickers, meta.Key)
	if errors.Is(err, interfaces.ErrFileNotFound) {
		r.warn(profile, res, "uploaded ticker file %s no longer exists", meta.Name)
		return fileFinished
	}
	if err != nil {
		r.warn(profile, res, "uploaded ticker file %s unavailable, will resume next run: %v", meta.Name, err)
		return fileUnavailable
	}

	name := meta.Name
	if name == "" {
		name = meta.Key
	}
	all, err := ParseTickerFile(name, contentType, data)
	if err != nil {
		r.warn(profile, res, "uploaded ticker file %s unreadable: %v", meta.Name, err)
		return fileFinished
	}
	meta.Total = len(all)
	if len(all) == 0 {
		r.warn(profile, res, "uploaded ticker file %s has no tickers", meta.Name)
		return fileFinished
	}

	start := st.LastProcessedTickerIndex + 1
	if start < 0 {
		start = 0
	}
	if start >= len(all) {
		return fileFinished
	}

	res.Tickers = all[start:]
	res.StartIndex = start
	return fileResolved
}

// resolveQueue merges failed, pending and spreadsheet tickers into a new
// pending queue. Published tickers are left out unless republishing.
func (r *Resolver) resolveQueue(ctx context.Context, profile models.ProfileConfig, st *models.ProfileState, republish bool, res *models.TickerResolution) {
	res.Source = models.SourceSpreadsheet

	candidates := make([]string, 0, len(st.FailedTickers)+len(st.PendingTickers))
	candidates = append(candidates, st.FailedTickers...)
	candidates = append(candidates, st.PendingTickers...)

	if r.readsSheet(profile) {
		rows, err := r.sheets.ReadTickers(ctx, profile.Spreadsheet)
		if err != nil {
			r.warn(profile, res, "spreadsheet %s unreadable: %v", profile.Spreadsheet.Path, err)
		} else {
			candidates = append(candidates, rows...)
		}
	}

	merged := make([]string, 0, len(candidates))
	for _, t := range dedupe(NormalizeList(candidates)) {
		if !republish && st.PublishedTickersLog.Has(t) {
			continue
		}
		merged = append(merged, t)
	}

	st.PendingTickers = append([]string{}, merged...)
	st.FailedTickers = []string{}
	res.Tickers = merged
}

func (r *Resolver) readsSheet(profile models.ProfileConfig) bool {
	if r.sheets == nil || profile.Spreadsheet.Path == "" {
		return false
	}
	return profile.TickerSource == "" || profile.TickerSource == models.TickerSourceSpreadsheet
}

func (r *Resolver) warn(profile models.ProfileConfig, res *models.TickerResolution, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	r.logger.Warn().Str("profile", profile.ProfileID).Msg(msg)
	res.Warnings = append(res.Warnings, msg)
}

func dedupe(list []string) []string {
	seen := make(map[string]bool, len(list))
	out := make([]string, 0, len(list))
	for _, t := range list {
		if seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}
