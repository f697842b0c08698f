// Package export runs the phonebook export: fetch records from the
// directory, transform them into rows, serialize and write the file.
//
// The Service owns the ambient concerns of a run: a run ID carried in every
// log line, a limiter that allows one export at a time, metrics and a
// history entry for every outcome.
package export

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/cardbook/internal/core"
	"github.com/JonMunkholm/cardbook/internal/history"
	"github.com/JonMunkholm/cardbook/internal/logging"
)

// Trigger names what started a run.
type Trigger string

const (
	TriggerCLI      Trigger = "cli"
	TriggerSchedule Trigger = "schedule"
	TriggerAPI      Trigger = "api"
)

const statusBusy = "busy"

// Fetcher downloads the raw records to export.
type Fetcher interface {
	FetchRecords(ctx context.Context) ([]core.RawRecord, error)
}

// Writer stores the serialized phonebook.
type Writer interface {
	Write(ctx context.Context, path, payload string) error
}

// Options configure a Service. Path is required.
type Options struct {
	Path             string        // Phonebook destination
	LineEnding       string        // native, crlf or lf
	ParseConcurrency int           // 0 uses GOMAXPROCS
	MaxWait          time.Duration // How long a trigger waits for a running export

	History history.Store // Nil disables history
	Metrics *Metrics      // Nil disables metrics
}

// Result describes a successful run.
type Result struct {
	RunID    string
	Path     string
	Records  int
	Contacts int
	Groups   int
	Rows     int
	Bytes    int
	Duration time.Duration
}

// Service performs exports.
type Service struct {
	fetcher  Fetcher
	writer   Writer
	pipeline *core.Pipeline
	limiter  *Limiter
	history  history.Store
	metrics  *Metrics
	path     string
	eol      string
	now      func() time.Time
}

// NewService wires a Service from its collaborators.
func NewService(fetcher Fetcher, writer Writer, opts Options) *Service {
	return &Service{
		fetcher:  fetcher,
		writer:   writer,
		pipeline: core.NewPipeline(opts.ParseConcurrency),
		limiter:  NewLimiter(1, opts.MaxWait),
		history:  opts.History,
		metrics:  opts.Metrics,
		path:     opts.Path,
		eol:      core.LineEnding(opts.LineEnding),
		now:      time.Now,
	}
}

// Path returns the phonebook destination.
func (s *Service) Path() string {
	return s.path
}

// Limiter exposes the export limiter for status reporting and shutdown.
func (s *Service) Limiter() *Limiter {
	return s.limiter
}

// History returns the run history store, or nil.
func (s *Service) History() history.Store {
	return s.history
}

// Export runs one export. The destination is written only after the whole
// payload has been built; on any failure it is left untouched.
// Returns core.ErrExportInProgress when another export holds the slot.
func (s *Service) Export(ctx context.Context, trigger Trigger) (Result, error) {
	if err := s.limiter.Acquire(ctx); err != nil {
		if errors.Is(err, core.ErrExportInProgress) {
			s.metrics.busy()
			logging.FromContext(ctx).Warn("export rejected", "trigger", trigger, "reason", err)
		}
		return Result{}, err
	}
	defer s.limiter.Release()

	runID := uuid.NewString()
	ctx = logging.WithRunID(ctx, runID)
	logger := logging.WithFields(ctx, "trigger", trigger)

	started := s.now()
	logger.Info("export started", "path", s.path)

	res, err := s.run(ctx)
	res.RunID = runID
	res.Path = s.path

	finished := s.now()
	res.Duration = finished.Sub(started)

	run := history.Run{
		ID:         runID,
		Status:     history.StatusSuccess,
		Trigger:    string(trigger),
		Path:       s.path,
		Records:    res.Records,
		Contacts:   res.Contacts,
		Groups:     res.Groups,
		Rows:       res.Rows,
		StartedAt:  started,
		FinishedAt: finished,
	}
	if err != nil {
		msg := core.MapError(err)
		run.Status = history.StatusFailed
		run.ErrorCode = msg.Code
		run.Error = err.Error()
		logger.Error("export failed", "error", err, "code", msg.Code, "duration_ms", res.Duration.Milliseconds())
	} else {
		logger.Info("export completed",
			"records", res.Records,
			"contacts", res.Contacts,
			"groups", res.Groups,
			"rows", res.Rows,
			"bytes", res.Bytes,
			"duration_ms", res.Duration.Milliseconds(),
		)
	}

	s.metrics.observe(run)
	s.record(ctx, logger, run)

	if err != nil {
		return Result{}, err
	}
	return res, nil
}

// run sequences fetch, transform, serialize and write.
func (s *Service) run(ctx context.Context) (Result, error) {
	records, err := s.fetcher.FetchRecords(ctx)
	if err != nil {
		return Result{}, err
	}

	tr, err := s.pipeline.Transform(ctx, records)
	res := Result{Records: len(records), Contacts: tr.Contacts, Groups: tr.Groups, Rows: len(tr.Rows)}
	if err != nil {
		return res, err
	}

	payload := core.Serialize(tr.Rows, s.eol)
	res.Bytes = len(payload)

	if err := s.writer.Write(ctx, s.path, payload); err != nil {
		return res, err
	}
	return res, nil
}

// record stores the run. History failures are logged, not returned.
func (s *Service) record(ctx context.Context, logger *slog.Logger, run history.Run) {
	if s.history == nil {
		return
	}
	// A cancelled request still gets its run recorded.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.history.Record(ctx, run); err != nil {
		logger.Warn("record export run failed", "error", err)
	}
}
