package progress

import (
	"io"

	"github.com/phuslu/log"

	"github.com/bobmcallan/tickzen/internal/interfaces"
	"github.com/bobmcallan/tickzen/internal/models"
)

// LogSink appends progress events to a JSON-lines audit trail.
type LogSink struct {
	logger log.Logger
	closer io.Closer
}

var _ interfaces.ProgressSink = (*LogSink)(nil)

// NewFileSink writes events to a size-rotated file.
func NewFileSink(path string) *LogSink {
	w := &log.FileWriter{
		Filename:     path,
		MaxSize:      50 * 1024 * 1024,
		MaxBackups:   5,
		EnsureFolder: true,
	}
	return &LogSink{
		logger: log.Logger{Level: log.InfoLevel, Writer: w},
		closer: w,
	}
}

// NewWriterSink writes events to w.
func NewWriterSink(w io.Writer) *LogSink {
	return &LogSink{
		logger: log.Logger{Level: log.InfoLevel, Writer: &log.IOWriter{Writer: w}},
	}
}

// Emit implements ProgressSink
func (s *LogSink) Emit(ev models.ProgressEvent) {
	e := s.logger.Info().
		Str("run_id", ev.RunID).
		Str("user_id", ev.UserID).
		Str("profile_id", ev.ProfileID).
		Str("phase", ev.Phase).
		Str("stage", ev.Stage).
		Time("event_time", ev.Timestamp)
	if ev.Ticker != "" {
		e = e.Str("ticker", ev.Ticker)
	}
	if ev.Status != "" {
		e = e.Str("status", ev.Status)
	}
	e.Msg(ev.Message)
}

// Close flushes and closes the underlying file, if any.
func (s *LogSink) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}
