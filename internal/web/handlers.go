package web

import (
	"errors"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/JonMunkholm/cardbook/internal/core"
	"github.com/JonMunkholm/cardbook/internal/export"
	"github.com/JonMunkholm/cardbook/internal/history"
	"github.com/JonMunkholm/cardbook/internal/logging"
)

// maxRunsLimit caps ?limit= on /api/runs.
const maxRunsLimit = 500

// ExportResponse is the JSON body of a successful POST /api/export.
type ExportResponse struct {
	RunID      string `json:"runId"`
	Path       string `json:"path"`
	Records    int    `json:"records"`
	Contacts   int    `json:"contacts"`
	Groups     int    `json:"groups"`
	Rows       int    `json:"rows"`
	Bytes      int    `json:"bytes"`
	DurationMS int64  `json:"durationMs"`
}

// RunsResponse is the JSON body of GET /api/runs.
type RunsResponse struct {
	Runs []history.Run `json:"runs"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handlePhonebook serves the last exported file.
func (s *Server) handlePhonebook(w http.ResponseWriter, r *http.Request) {
	path := s.exporter.Path()
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		msg := core.MsgNotExported
		writeJSON(w, http.StatusNotFound, ErrorResponse{
			Error:   "phonebook not exported yet",
			Message: msg.Message,
			Action:  msg.Action,
			Code:    msg.Code,
		})
		return
	}
	if err != nil {
		respondError(w, r, err)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		respondError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", "attachment; filename="+strconv.Quote(filepath.Base(path)))
	http.ServeContent(w, r, filepath.Base(path), info.ModTime(), f)
}

// handleExport runs an export and reports its result.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	res, err := s.exporter.Export(r.Context(), export.TriggerAPI)
	if err != nil {
		respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, ExportResponse{
		RunID:      res.RunID,
		Path:       res.Path,
		Records:    res.Records,
		Contacts:   res.Contacts,
		Groups:     res.Groups,
		Rows:       res.Rows,
		Bytes:      res.Bytes,
		DurationMS: res.Duration.Milliseconds(),
	})
}

// handleRuns lists recent export runs, newest first.
func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	limit := min(parseIntParam(r, "limit", s.opts.HistoryLimit), maxRunsLimit)

	runs, err := s.recentRuns(r, limit)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, RunsResponse{Runs: runs})
}

// handleStatus renders the status page.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	view := statusView{
		Path:    s.exporter.Path(),
		Limiter: s.exporter.Limiter().Status(),
	}
	if info, err := os.Stat(view.Path); err == nil {
		view.FileSize = info.Size()
		view.FileModified = info.ModTime()
	}

	runs, err := s.recentRuns(r, 10)
	if err != nil {
		logging.FromContext(r.Context()).Warn("load runs for status page", "error", err)
	}
	view.Runs = runs

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := statusPage(view).Render(r.Context(), w); err != nil {
		logging.FromContext(r.Context()).Error("render status page", "error", err)
	}
}

func (s *Server) recentRuns(r *http.Request, limit int) ([]history.Run, error) {
	store := s.exporter.History()
	if store == nil {
		return []history.Run{}, nil
	}
	runs, err := store.Recent(r.Context(), limit)
	if err != nil {
		return nil, err
	}
	if runs == nil {
		runs = []history.Run{}
	}
	return runs, nil
}

// parseIntParam parses a positive integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil || i < 1 {
		return defaultVal
	}
	return i
}

// formatTime renders t for the status page, or "never" for the zero time.
func formatTime(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}
