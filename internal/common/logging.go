package common

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/phuslu/log"
	"github.com/ternarybob/arbor"
	arbormodels "github.com/ternarybob/arbor/models"
	"github.com/ternarybob/arbor/writers"
)

// NewLogger creates a console logger at the given level.
func NewLogger(level string) arbor.ILogger {
	return arbor.NewLogger().
		WithConsoleWriter(consoleWriter()).
		WithLevelFromString(level)
}

// NewLoggerFromConfig builds a logger with the outputs named in the logging config.
// Unknown outputs are ignored; a config with no usable output logs to the console.
func NewLoggerFromConfig(cfg LoggingConfig) arbor.ILogger {
	logger := arbor.NewLogger()

	hasConsole := false
	hasFile := false
	for _, output := range cfg.Outputs {
		switch output {
		case "console", "stdout":
			hasConsole = true
		case "file":
			hasFile = true
		}
	}

	if hasFile && cfg.FilePath != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.FilePath), 0755); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to create log directory: %v\n", err)
		} else {
			logger = logger.WithFileWriter(arbormodels.WriterConfiguration{
				Type:       arbormodels.LogWriterTypeFile,
				FileName:   cfg.FilePath,
				TimeFormat: "15:04:05",
				MaxSize:    100 * 1024 * 1024, // 100 MB
				MaxBackups: 3,
				OutputType: arbormodels.OutputFormatLogfmt,
			})
		}
	}

	if hasConsole || !hasFile {
		logger = logger.WithConsoleWriter(consoleWriter())
	}

	return logger.WithLevelFromString(cfg.Level)
}

// NewSilentLogger creates a logger that discards all output. It carries its own
// writer so it stays silent when console or file writers are registered globally.
func NewSilentLogger() arbor.ILogger {
	return arbor.NewLogger().WithWriters([]writers.IWriter{discardWriter{}})
}

type discardWriter struct{}

func (d discardWriter) WithLevel(log.Level) writers.IWriter { return d }
func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }
func (discardWriter) GetFilePath() string { return "" }
func (discardWriter) Close() error { return nil }

func consoleWriter() arbormodels.WriterConfiguration {
	return arbormodels.WriterConfiguration{
		Type:       arbormodels.LogWriterTypeConsole,
		TimeFormat: "15:04:05",
	}
}
