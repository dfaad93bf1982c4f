// Package server exposes the REST API, progress WebSocket and MCP endpoint.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/ternarybob/arbor"

	"github.com/bobmcallan/tickzen/internal/app"
	"github.com/bobmcallan/tickzen/internal/common"
	"github.com/bobmcallan/tickzen/internal/models"
)

// Backend is the application surface the HTTP handlers drive.
type Backend interface {
	TriggerRun(opts app.RunOptions) (*app.RunRecord, error)
	GetRun(runID string) (*app.RunRecord, error)
	StopProfile(userID, profileID string) error
	ProfileState(ctx context.Context, userID, profileID string) (*models.ProfileState, error)
	ResetProfile(ctx context.Context, userID, profileID string) error
	ProfileStatuses(ctx context.Context, userID, profileID string) (map[string]models.StatusRecord, error)
	ProfileHistory(ctx context.Context, userID, profileID string, limit int) ([]models.HistoryEntry, error)
	UploadTickerFile(ctx context.Context, name, contentType string, data []byte) (*models.FileRef, int, error)
}

var _ Backend = (*app.App)(nil)

// Server wraps the HTTP server and application reference.
type Server struct {
	backend  Backend
	progress http.Handler
	mcp      http.Handler
	server   *http.Server
	logger   arbor.ILogger
}

// NewServer creates the HTTP server for a fully initialized app.
func NewServer(a *app.App) *Server {
	var progress http.Handler
	if a.Hub != nil {
		progress = http.HandlerFunc(a.Hub.ServeWS)
	}
	mcp := mcpserver.NewStreamableHTTPServer(a.MCPServer,
		mcpserver.WithStateLess(true),
	)
	return newServer(a, a.Config.Server, progress, mcp, a.Logger)
}

func newServer(backend Backend, config common.ServerConfig, progress, mcp http.Handler, logger arbor.ILogger) *Server {
	s := &Server{
		backend:  backend,
		progress: progress,
		mcp:      mcp,
		logger:   logger,
	}

	s.server = &http.Server{
		Addr:        fmt.Sprintf("%s:%d", config.Host, config.Port),
		Handler:     s.routes(),
		ReadTimeout: 30 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	return s
}

// Handler returns the HTTP handler for testing.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start starts the HTTP server (blocking).
func (s *Server) Start() error {
	s.logger.Info().
		Str("addr", s.server.Addr).
		Msg("Starting REST API server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
