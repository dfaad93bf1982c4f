package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/bobmcallan/tickzen/internal/common"
)

// routes builds the router. Long-lived endpoints (progress socket, MCP) carry no
// write timeout, so none is set on the server.
func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(recoveryMiddleware(s.logger))
	r.Use(loggingMiddleware(s.logger))
	r.Use(corsMiddleware)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/version", s.handleVersion)

		r.Post("/runs", s.handleRunCreate)
		r.Get("/runs/{runID}", s.handleRunGet)

		r.Post("/tickers/upload", s.handleTickerUpload)

		r.Route("/users/{userID}/profiles/{profileID}", func(r chi.Router) {
			r.Post("/stop", s.handleProfileStop)
			r.Get("/state", s.handleProfileState)
			r.Delete("/state", s.handleProfileReset)
			r.Get("/statuses", s.handleProfileStatuses)
			r.Get("/history", s.handleProfileHistory)
		})

		if s.progress != nil {
			r.Get("/ws/progress", s.progress.ServeHTTP)
		}
	})

	if s.mcp != nil {
		r.Handle("/mcp", s.mcp)
	}

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, common.GetVersionInfo())
}
