package server

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/bobmcallan/tickzen/internal/app"
)

const (
	maxUploadBytes      = 10 << 20
	defaultHistoryLimit = 20
)

// handleRunCreate starts a background run. The run id is returned immediately;
// results are read from GET /api/runs/{runID} or the progress socket.
func (s *Server) handleRunCreate(w http.ResponseWriter, r *http.Request) {
	var opts app.RunOptions
	if !DecodeJSON(w, r, &opts) {
		return
	}
	if opts.UserID == "" {
		WriteError(w, http.StatusBadRequest, "user_id is required")
		return
	}
	for id, n := range opts.RequestedCounts {
		if n < 0 {
			WriteError(w, http.StatusBadRequest, "requested count for "+id+" must not be negative")
			return
		}
	}

	rec, err := s.backend.TriggerRun(opts)
	if err != nil {
		writeAppError(w, err)
		return
	}
	WriteJSON(w, http.StatusAccepted, rec)
}

func (s *Server) handleRunGet(w http.ResponseWriter, r *http.Request) {
	rec, err := s.backend.GetRun(chi.URLParam(r, "runID"))
	if err != nil {
		writeAppError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, rec)
}

func (s *Server) handleProfileStop(w http.ResponseWriter, r *http.Request) {
	userID, profileID := chi.URLParam(r, "userID"), chi.URLParam(r, "profileID")
	if err := s.backend.StopProfile(userID, profileID); err != nil {
		writeAppError(w, err)
		return
	}
	WriteJSON(w, http.StatusAccepted, map[string]string{"status": "stop_requested", "user_id": userID, "profile_id": profileID})
}

func (s *Server) handleProfileState(w http.ResponseWriter, r *http.Request) {
	st, err := s.backend.ProfileState(r.Context(), chi.URLParam(r, "userID"), chi.URLParam(r, "profileID"))
	if err != nil {
		writeAppError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, st)
}

func (s *Server) handleProfileReset(w http.ResponseWriter, r *http.Request) {
	if err := s.backend.ResetProfile(r.Context(), chi.URLParam(r, "userID"), chi.URLParam(r, "profileID")); err != nil {
		writeAppError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleProfileStatuses(w http.ResponseWriter, r *http.Request) {
	statuses, err := s.backend.ProfileStatuses(r.Context(), chi.URLParam(r, "userID"), chi.URLParam(r, "profileID"))
	if err != nil {
		writeAppError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, statuses)
}

func (s *Server) handleProfileHistory(w http.ResponseWriter, r *http.Request) {
	limit := QueryInt(r, "limit", defaultHistoryLimit)
	entries, err := s.backend.ProfileHistory(r.Context(), chi.URLParam(r, "userID"), chi.URLParam(r, "profileID"), limit)
	if err != nil {
		writeAppError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, entries)
}

// handleTickerUpload accepts a multipart "file" field holding a CSV or workbook.
func (s *Server) handleTickerUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		WriteError(w, http.StatusBadRequest, "multipart field 'file' is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "failed to read upload: "+err.Error())
		return
	}

	ref, count, err := s.backend.UploadTickerFile(r.Context(), header.Filename, header.Header.Get("Content-Type"), data)
	if err != nil {
		if errors.Is(err, app.ErrInvalidTickerFile) {
			WriteErrorWithCode(w, http.StatusBadRequest, err.Error(), "invalid_ticker_file")
			return
		}
		writeAppError(w, err)
		return
	}

	WriteJSON(w, http.StatusCreated, map[string]interface{}{
		"file":    ref,
		"tickers": count,
	})
}
