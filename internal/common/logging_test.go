package common

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewSilentLogger_Usable(t *testing.T) {
	logger := NewSilentLogger()
	if logger == nil {
		t.Fatal("NewSilentLogger returned nil")
	}
	logger.Info().Str("ticker", "AAPL").Int("count", 1).Msg("discarded")
	logger.Warn().Err(os.ErrNotExist).Msg("discarded")
}

func TestNewLoggerFromConfig_FileOutputCreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	cfg := LoggingConfig{
		Level:    "debug",
		Outputs:  []string{"file"},
		FilePath: filepath.Join(dir, "tickzen.log"),
	}

	logger := NewLoggerFromConfig(cfg)
	if logger == nil {
		t.Fatal("NewLoggerFromConfig returned nil")
	}
	logger.Info().Msg("started")

	if _, err := os.Stat(dir); err != nil {
		t.Errorf("log directory not created: %v", err)
	}
}

func TestNewSilentLogger_IgnoresGlobalWriters(t *testing.T) {
	path := filepath.Join(t.TempDir(), "global.log")
	NewLoggerFromConfig(LoggingConfig{Level: "debug", Outputs: []string{"file"}, FilePath: path})

	NewSilentLogger().Error().Msg("must not reach the file writer")

	data, _ := os.ReadFile(path)
	if strings.Contains(string(data), "must not reach the file writer") {
		t.Error("silent logger wrote to a globally registered writer")
	}
}
