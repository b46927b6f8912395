// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pipeline runs one digest: fetch, filter, deduplicate, limit,
// enrich, report. Every stage writes a JSONL checkpoint under the data
// directory so a run can be inspected or resumed.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"github.com/pdiddy/paper-digest/internal/batch"
	"github.com/pdiddy/paper-digest/internal/dedup"
	"github.com/pdiddy/paper-digest/internal/enrich"
	"github.com/pdiddy/paper-digest/internal/feed"
	"github.com/pdiddy/paper-digest/internal/filter"
	"github.com/pdiddy/paper-digest/internal/history"
	"github.com/pdiddy/paper-digest/internal/report"
	"github.com/pdiddy/paper-digest/pkg/types"
)

// LockFile is created in the data directory while a run is in progress.
const LockFile = ".paper-digest.lock"

// ErrLocked is returned when another run holds the data directory.
var ErrLocked = errors.New("another run holds the data directory lock")

// Outcome says how a run ended.
type Outcome int

const (
	// OutcomeCompleted means a report was written.
	OutcomeCompleted Outcome = iota
	// OutcomeAlreadyReported means the day's report existed and force was off.
	OutcomeAlreadyReported
	// OutcomeNoData means the feed produced no records.
	OutcomeNoData
	// OutcomeNothingNew means every relevant record was seen before.
	OutcomeNothingNew
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCompleted:
		return "completed"
	case OutcomeAlreadyReported:
		return "already reported"
	case OutcomeNoData:
		return "no data"
	case OutcomeNothingNew:
		return "nothing new"
	default:
		return "unknown"
	}
}

// Summary reports what a run did.
type Summary struct {
	Date              string
	RunID             string
	Outcome           Outcome
	FetchStatus       feed.Status
	FetchErr          error
	Fetched           int
	Relevant          int
	Unique            int
	DuplicatesRemoved int
	New               int
	Selected          int
	Enrich            enrich.Summary
	ReportPath        string
	Elapsed           time.Duration
}

// Fetcher harvests records for a query.
type Fetcher interface {
	Fetch(ctx context.Context, q feed.Query) feed.FetchResult
}

// Deps are the collaborators of a Controller.
type Deps struct {
	Fetcher  Fetcher
	History  history.Store
	Analyzer enrich.Analyzer

	// Logger receives diagnostics; nil discards them.
	Logger *slog.Logger

	// Progress receives one line per stage; nil discards them.
	Progress io.Writer

	// Now defaults to time.Now.
	Now func() time.Time

	// RunID tags log lines; a UUID is generated when empty.
	RunID string
}

// Controller sequences the stages of a run.
type Controller struct {
	cfg      types.RunConfig
	fetcher  Fetcher
	history  history.Store
	analyzer enrich.Analyzer
	logger   *slog.Logger
	progress io.Writer
	now      func() time.Time
	runID    string
}

// New builds a Controller. cfg is not modified.
func New(cfg types.RunConfig, deps Deps) *Controller {
	c := &Controller{
		cfg:      cfg,
		fetcher:  deps.Fetcher,
		history:  deps.History,
		analyzer: deps.Analyzer,
		logger:   deps.Logger,
		progress: deps.Progress,
		now:      deps.Now,
		runID:    deps.RunID,
	}
	if c.runID == "" {
		c.runID = uuid.NewString()
	}
	if c.logger == nil {
		c.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	c.logger = c.logger.With("run_id", c.runID)
	if c.progress == nil {
		c.progress = io.Discard
	}
	if c.now == nil {
		c.now = time.Now
	}
	if c.cfg.Location == nil {
		c.cfg.Location = time.UTC
	}
	return c
}

// TargetDate returns the configured date, or today in the configured
// location, at midnight.
func (c *Controller) TargetDate() time.Time {
	if !c.cfg.TargetDate.IsZero() {
		y, m, d := c.cfg.TargetDate.Date()
		return time.Date(y, m, d, 0, 0, 0, 0, c.cfg.Location)
	}
	y, m, d := c.now().In(c.cfg.Location).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, c.cfg.Location)
}

// Run executes one digest. Ending early because the report exists, the feed
// was empty, or nothing was new is not an error.
func (c *Controller) Run(ctx context.Context) (Summary, error) {
	start := c.now()
	target := c.TargetDate()
	date := target.Format(types.DateLayout)
	dataDir := c.cfg.DataDir

	sum := Summary{Date: date, RunID: c.runID, ReportPath: batch.ReportPath(dataDir, date)}
	finish := func(o Outcome) (Summary, error) {
		sum.Outcome = o
		sum.Elapsed = c.now().Sub(start)
		c.logger.Info("run finished", "date", date, "outcome", o.String(), "elapsed", sum.Elapsed)
		return sum, nil
	}

	if err := c.cfg.Policy.Validate(); err != nil {
		return sum, err
	}

	if !c.cfg.Force && fileExists(sum.ReportPath) {
		fmt.Fprintf(c.progress, "report %s already exists, skipping\n", sum.ReportPath)
		return finish(OutcomeAlreadyReported)
	}

	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return sum, fmt.Errorf("creating data directory: %w", err)
	}
	lock := flock.New(filepath.Join(dataDir, LockFile))
	locked, err := lock.TryLock()
	if err != nil {
		return sum, fmt.Errorf("acquiring lock: %w", err)
	}
	if !locked {
		return sum, ErrLocked
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			c.logger.Warn("failed to release lock", "error", err)
		}
	}()

	c.logger.Info("run started", "date", date, "force", c.cfg.Force, "data_dir", dataDir)

	// Fetch.
	policy := c.cfg.Policy
	res := c.fetcher.Fetch(ctx, feed.Query{
		Categories:  policy.Categories,
		WindowStart: feed.WindowStart(target, policy.LookbackDays),
	})
	sum.FetchStatus = res.Status
	sum.FetchErr = res.Err
	sum.Fetched = len(res.Records)
	fmt.Fprintf(c.progress, "fetched %d records (%s)\n", sum.Fetched, res.Status)

	if err := ctx.Err(); err != nil {
		return sum, err
	}
	if res.Status != feed.StatusData {
		if res.Status == feed.StatusFetchFailed {
			c.logger.Error("feed unavailable, no records harvested", "error", res.Err)
		} else {
			c.logger.Info("feed returned no records for the window")
		}
		return finish(OutcomeNoData)
	}

	rawPath := batch.Path(dataDir, date, batch.StageRaw)
	if err := batch.Write(rawPath, res.Records); err != nil {
		return sum, err
	}

	// Filter and deduplicate.
	relevant := filter.Filter(res.Records, policy)
	sum.Relevant = len(relevant)

	seen, err := c.history.Load(ctx, target, policy.LookbackDays)
	if err != nil {
		return sum, fmt.Errorf("loading history: %w", err)
	}
	d := dedup.Dedupe(relevant, seen)
	sum.Unique = len(d.Unique)
	sum.DuplicatesRemoved = d.DuplicatesRemoved
	sum.New = len(d.New)
	fmt.Fprintf(c.progress, "relevant %d, unique %d, new %d (history %d ids)\n",
		sum.Relevant, sum.Unique, sum.New, len(seen))

	uniquePath := batch.Path(dataDir, date, batch.StageUnique)
	if err := batch.Write(uniquePath, d.Unique); err != nil {
		return sum, err
	}

	selected := d.New
	if len(selected) == 0 {
		if !c.cfg.Force {
			if err := batch.Remove(rawPath, uniquePath); err != nil {
				c.logger.Warn("failed to remove intermediate files", "error", err)
			}
			fmt.Fprintln(c.progress, "no new records, nothing to do")
			return finish(OutcomeNothingNew)
		}
		c.logger.Info("no new records, forced to reprocess the unique set", "unique", len(d.Unique))
		selected = d.Unique
	}

	selected = filter.Limit(selected, policy.MaxRecordsPerRun)
	sum.Selected = len(selected)
	if err := batch.Write(batch.Path(dataDir, date, batch.StageNewOnly), selected); err != nil {
		return sum, err
	}

	if err := c.history.Append(ctx, date, types.IDs(d.Unique)); err != nil {
		return sum, fmt.Errorf("recording history: %w", err)
	}

	// Enrich.
	enriched, err := c.enrich(ctx, date, selected, &sum)
	if err != nil {
		return sum, err
	}

	// Report.
	if err := report.WriteFile(sum.ReportPath, report.Report{
		Date:        date,
		GeneratedAt: c.now().In(c.cfg.Location),
		Papers:      enriched,
	}); err != nil {
		return sum, err
	}
	if err := report.WriteIndex(dataDir, report.DefaultIndexSize); err != nil {
		c.logger.Warn("failed to update report index", "error", err)
	}
	fmt.Fprintf(c.progress, "report written to %s\n", sum.ReportPath)

	return finish(OutcomeCompleted)
}

func (c *Controller) enrich(ctx context.Context, date string, records []types.Record, sum *Summary) ([]types.EnrichedRecord, error) {
	language := c.cfg.AI.Language
	if language == "" {
		language = enrich.DefaultLanguage
	}
	path := batch.EnrichedPath(c.cfg.DataDir, date, language)

	prior, err := batch.Read[types.EnrichedRecord](path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("reading earlier enrichment: %w", err)
	}
	if c.cfg.Force {
		// Failed analyses get another attempt on a forced run.
		kept := prior[:0]
		for _, p := range prior {
			if !p.Analysis.IsError() {
				kept = append(kept, p)
			}
		}
		if len(kept) < len(prior) {
			c.logger.Info("retrying failed analyses", "count", len(prior)-len(kept))
			prior = kept
			if err := batch.Write(path, prior); err != nil {
				return nil, err
			}
		}
	}
	if len(prior) > 0 {
		c.logger.Info("resuming enrichment", "done", len(prior))
	}

	sink, err := batch.OpenAppender[types.EnrichedRecord](path)
	if err != nil {
		return nil, err
	}

	orch := enrich.NewOrchestrator(c.analyzer, language, c.logger, c.progress)
	enriched, es, runErr := orch.Enrich(ctx, records, prior, sink)
	sum.Enrich = es

	if err := sink.Close(); err != nil && runErr == nil {
		runErr = err
	}
	if runErr != nil {
		return nil, runErr
	}
	return enriched, nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
