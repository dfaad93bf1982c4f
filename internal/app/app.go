// Package app wires storage, clients and services into a running TickZen instance.
package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"

	"github.com/bobmcallan/tickzen/internal/clients/eodhd"
	"github.com/bobmcallan/tickzen/internal/clients/gemini"
	"github.com/bobmcallan/tickzen/internal/clients/wordpress"
	"github.com/bobmcallan/tickzen/internal/common"
	"github.com/bobmcallan/tickzen/internal/interfaces"
	"github.com/bobmcallan/tickzen/internal/services/featureimage"
	"github.com/bobmcallan/tickzen/internal/services/orchestrator"
	"github.com/bobmcallan/tickzen/internal/services/progress"
	"github.com/bobmcallan/tickzen/internal/services/schedule"
	"github.com/bobmcallan/tickzen/internal/services/state"
	"github.com/bobmcallan/tickzen/internal/services/tickers"
	"github.com/bobmcallan/tickzen/internal/storage/badger"
	"github.com/bobmcallan/tickzen/internal/storage/surrealdb"
)

// App holds all initialized services, clients, and the MCP server.
// It is the shared core used by the serve and run commands.
type App struct {
	Config     *common.Config
	Logger     arbor.ILogger
	Storage    interfaces.StorageManager
	State      interfaces.StateService
	Files      interfaces.FileStore
	Statuses   interfaces.StatusRecorder
	History    interfaces.HistoryStore
	Publishing interfaces.PublishingService
	Stops      *orchestrator.StopRegistry
	Hub        *progress.Hub
	MCPServer  *server.MCPServer

	StartupTime time.Time

	fallback    *badger.Store
	progressLog *progress.LogSink
	scheduler   *cron.Cron

	runCtx    context.Context
	runCancel context.CancelFunc
	runsWG    sync.WaitGroup
	runsMu    sync.Mutex
	runs      map[string]*RunRecord
}

// getBinaryDir returns the directory containing the executable.
func getBinaryDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	return filepath.Dir(exe)
}

// ResolveConfigPath picks the config file: the given path, TICKZEN_CONFIG,
// tickzen.toml beside the binary, then config/tickzen.toml.
func ResolveConfigPath(configPath string) string {
	if configPath == "" {
		configPath = os.Getenv("TICKZEN_CONFIG")
	}
	if configPath == "" {
		configPath = filepath.Join(getBinaryDir(), "tickzen.toml")
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			configPath = "config/tickzen.toml"
		}
	}
	return configPath
}

// NewApp initializes storage, clients and the publishing pipeline.
func NewApp(configPath string) (*App, error) {
	startupStart := time.Now()

	common.LoadVersionFromFile()

	config, err := common.LoadConfig(ResolveConfigPath(configPath))
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	binDir := getBinaryDir()
	if config.Storage.FallbackPath != "" && !filepath.IsAbs(config.Storage.FallbackPath) {
		config.Storage.FallbackPath = filepath.Join(binDir, config.Storage.FallbackPath)
	}
	if config.Logging.FilePath != "" && !filepath.IsAbs(config.Logging.FilePath) {
		config.Logging.FilePath = filepath.Join(binDir, config.Logging.FilePath)
	}

	logger := common.NewLoggerFromConfig(config.Logging)
	ctx := context.Background()

	var fallbackStore *badger.Store
	var fallback interfaces.StateStore
	if config.Storage.FallbackPath != "" {
		fallbackStore, err = badger.NewStore(logger, config.Storage.FallbackPath)
		if err != nil {
			logger.Warn().Err(err).Msg("Local state fallback unavailable")
		} else {
			fallback = badger.NewStateStore(fallbackStore, logger)
		}
	}

	stores, err := openStorage(ctx, config, logger, fallback)
	if err != nil {
		if fallbackStore != nil {
			fallbackStore.Close()
		}
		return nil, err
	}
	closeStorage := func() {
		if stores.manager != nil {
			stores.manager.Close()
		}
		if fallbackStore != nil {
			fallbackStore.Close()
		}
	}

	eodhdKey, err := common.ResolveAPIKey("eodhd_api_key", config.Clients.EODHD.APIKey)
	if err != nil {
		logger.Warn().Msg("EODHD API key not configured - articles and feature images will lack market data")
	}
	geminiKey, err := common.ResolveAPIKey("gemini_api_key", config.Clients.Gemini.APIKey)
	if err != nil {
		closeStorage()
		return nil, fmt.Errorf("content generation requires a Gemini API key: %w", err)
	}

	var market interfaces.MarketDataClient
	if eodhdKey != "" {
		market = eodhd.NewClient(eodhdKey,
			eodhd.WithBaseURL(config.Clients.EODHD.BaseURL),
			eodhd.WithLogger(logger),
			eodhd.WithRateLimit(config.Clients.EODHD.RateLimit),
			eodhd.WithTimeout(config.Clients.EODHD.GetTimeout()),
		)
	}

	geminiOpts := []gemini.ClientOption{
		gemini.WithLogger(logger),
		gemini.WithModel(config.Clients.Gemini.Model),
		gemini.WithMinWords(config.Clients.Gemini.MinContentWords),
	}
	if market != nil {
		geminiOpts = append(geminiOpts, gemini.WithMarketData(market))
	}
	content, err := gemini.NewClient(ctx, geminiKey, geminiOpts...)
	if err != nil {
		closeStorage()
		return nil, fmt.Errorf("failed to initialize Gemini client: %w", err)
	}

	wp := wordpress.NewClient(
		wordpress.WithLogger(logger),
		wordpress.WithRateLimit(config.Clients.WordPress.RateLimit),
		wordpress.WithTimeout(config.Clients.WordPress.GetTimeout()),
	)

	hub := progress.NewHub(logger)
	go hub.Run()

	var progressLog *progress.LogSink
	if config.Publishing.ProgressLog != "" {
		progressLog = progress.NewFileSink(config.Publishing.ProgressLog)
	}

	deps := orchestrator.Dependencies{
		State:     stores.state,
		Tickers:   tickers.NewResolver(stores.files, tickers.WorkbookReader{}, logger),
		Content:   content,
		Uploader:  wp,
		Publisher: wp,
		Progress:  progress.NewFanout(hub, sinkOrNil(progressLog)),
		Statuses:  stores.statuses,
		History:   stores.history,
		Lease:     stores.lease,
		Schedule:  schedule.NewCalculator(),
	}
	if market != nil {
		deps.Images = featureimage.NewRenderer(market, logger)
	}

	a := newApp(config, logger)
	if stores.manager != nil {
		a.Storage = stores.manager
	}
	a.State = stores.state
	a.Files = stores.files
	a.Statuses = stores.statuses
	a.History = stores.history
	a.Publishing = orchestrator.NewService(deps, orchestrator.ConfigFromCommon(config.Publishing), logger)
	a.Hub = hub
	a.StartupTime = startupStart
	a.fallback = fallbackStore
	a.progressLog = progressLog

	a.registerTools()

	logger.Info().Str("startup", time.Since(startupStart).String()).Msg("App initialized")

	return a, nil
}

// storageSet is the storage wiring chosen at startup. Without SurrealDB only
// state is available, served from the local fallback.
type storageSet struct {
	manager  *surrealdb.Manager
	state    interfaces.StateService
	files    interfaces.FileStore
	statuses interfaces.StatusRecorder
	history  interfaces.HistoryStore
	lease    interfaces.RunLease
}

// openStorage connects to SurrealDB. When it is unreachable and a local
// fallback exists the app starts degraded: publishing state lives in the
// fallback and uploads, statuses, history and leases are disabled.
func openStorage(ctx context.Context, config *common.Config, logger arbor.ILogger, fallback interfaces.StateStore) (*storageSet, error) {
	manager, err := surrealdb.NewManager(ctx, logger, config)
	if err != nil {
		if fallback == nil {
			return nil, fmt.Errorf("failed to initialize storage: %w", err)
		}
		logger.Error().Err(err).Msg("SurrealDB unavailable, starting with local state fallback only")
		return &storageSet{state: state.NewService(fallback, nil, logger)}, nil
	}
	return &storageSet{
		manager:  manager,
		state:    state.NewService(manager.StateStore(), fallback, logger),
		files:    manager.FileStore(),
		statuses: manager.StatusRecorder(),
		history:  manager.HistoryStore(),
		lease:    manager.RunLease(),
	}, nil
}

// newApp builds the run bookkeeping and MCP server shared by NewApp and tests.
func newApp(config *common.Config, logger arbor.ILogger) *App {
	runCtx, runCancel := context.WithCancel(context.Background())
	return &App{
		Config:    config,
		Logger:    logger,
		Stops:     orchestrator.NewStopRegistry(),
		MCPServer: server.NewMCPServer("tickzen", common.Version, server.WithToolCapabilities(true)),
		runCtx:    runCtx,
		runCancel: runCancel,
		runs:      make(map[string]*RunRecord),
	}
}

// sinkOrNil avoids handing NewFanout a typed nil.
func sinkOrNil(s *progress.LogSink) interfaces.ProgressSink {
	if s == nil {
		return nil
	}
	return s
}

// Close releases all resources held by the App.
// Shutdown order: stop the scheduler, halt in-flight runs, close sinks, close storage.
func (a *App) Close() {
	a.StopScheduler()

	if a.runCancel != nil {
		a.runCancel()
	}
	done := make(chan struct{})
	go func() {
		a.runsWG.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(runDrainTimeout):
		a.Logger.Warn().Msg("Publishing runs still in flight at shutdown")
	}

	if a.Hub != nil {
		a.Hub.Stop()
		a.Hub = nil
	}
	if a.progressLog != nil {
		a.progressLog.Close()
		a.progressLog = nil
	}
	if a.Storage != nil {
		a.Storage.Close()
		a.Storage = nil
	}
	if a.fallback != nil {
		a.fallback.Close()
		a.fallback = nil
	}
}
