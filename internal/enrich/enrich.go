// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package enrich attaches a model-generated analysis to every record. Calls
// are made one record at a time; a failed call yields the error sentinel for
// that record and the batch continues.
package enrich

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/pdiddy/paper-digest/pkg/types"
)

// Backend names accepted by New.
const (
	BackendClaude = "claude"
	BackendOpenAI = "openai"
)

// DefaultLanguage is the analysis language when none is configured.
const DefaultLanguage = "English"

// Analyzer produces a structured analysis of one abstract. Implementations
// return ErrMalformedOutput (wrapped) when the model answer cannot be parsed.
type Analyzer interface {
	Analyze(ctx context.Context, language, abstract string) (types.Analysis, error)
}

// New builds the analyzer selected by cfg.
func New(cfg types.AIConfig, client *http.Client) (Analyzer, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, &types.ConfigError{Field: "ai.api_key", Err: fmt.Errorf("no API key for backend %q", cfg.Backend)}
	}
	switch cfg.Backend {
	case "", BackendClaude:
		return &ClaudeAnalyzer{APIKey: cfg.APIKey, Model: cfg.Model, Client: client, MaxRetries: cfg.MaxRetries}, nil
	case BackendOpenAI:
		return &OpenAIAnalyzer{APIKey: cfg.APIKey, Model: cfg.Model, BaseURL: cfg.BaseURL, Client: client, MaxRetries: cfg.MaxRetries}, nil
	default:
		return nil, &types.ConfigError{
			Field: "ai.backend",
			Err:   fmt.Errorf("unknown backend %q (want %q or %q)", cfg.Backend, BackendClaude, BackendOpenAI),
		}
	}
}

// Outcome is the result of analyzing one record.
type Outcome struct {
	Analysis types.Analysis
	Err      error
}

// OK reports whether the analysis succeeded.
func (o Outcome) OK() bool { return o.Err == nil }

// Record returns the enriched form of r: the analysis on success, the error
// sentinel otherwise.
func (o Outcome) Record(r types.Record) types.EnrichedRecord {
	if o.Err != nil {
		return types.EnrichedRecord{Record: r, Analysis: types.ErrorAnalysis()}
	}
	return types.EnrichedRecord{Record: r, Analysis: o.Analysis}
}

// Sink receives each enriched record as soon as it is produced.
type Sink interface {
	Append(types.EnrichedRecord) error
}

// Summary counts what an Enrich call did.
type Summary struct {
	Analyzed int
	Failed   int
	Resumed  int
}

// Total returns the number of records handled.
func (s Summary) Total() int { return s.Analyzed + s.Failed + s.Resumed }

// Orchestrator runs the analyzer over a batch.
type Orchestrator struct {
	analyzer Analyzer
	language string
	logger   *slog.Logger
	progress io.Writer
}

// NewOrchestrator returns an orchestrator writing in language. Progress
// lines go to w when it is non-nil.
func NewOrchestrator(analyzer Analyzer, language string, logger *slog.Logger, w io.Writer) *Orchestrator {
	if language == "" {
		language = DefaultLanguage
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if w == nil {
		w = io.Discard
	}
	return &Orchestrator{analyzer: analyzer, language: language, logger: logger, progress: w}
}

// Enrich analyzes records in order and returns one EnrichedRecord per
// input record, in input order. Records whose ids appear in prior (earlier
// output of the same run) are reused without a call and not re-emitted.
// Every new result is appended to sink before the next call starts.
//
// Only a sink failure or a cancelled context stops the batch; the records
// finished so far are returned with the error.
func (o *Orchestrator) Enrich(ctx context.Context, records []types.Record, prior []types.EnrichedRecord, sink Sink) ([]types.EnrichedRecord, Summary, error) {
	done := make(map[string]types.EnrichedRecord, len(prior))
	for _, p := range prior {
		done[p.ID] = p
	}

	out := make([]types.EnrichedRecord, 0, len(records))
	var summary Summary

	for i, r := range records {
		if err := ctx.Err(); err != nil {
			return out, summary, err
		}

		if p, ok := done[r.ID]; ok {
			out = append(out, p)
			summary.Resumed++
			continue
		}

		outcome := o.analyze(ctx, r)
		if !outcome.OK() && ctx.Err() != nil {
			// Interrupted, not failed: leave it for the next run.
			return out, summary, ctx.Err()
		}
		er := outcome.Record(r)
		if outcome.OK() {
			summary.Analyzed++
		} else {
			summary.Failed++
			o.logFailure(r.ID, outcome.Err)
		}

		if sink != nil {
			if err := sink.Append(er); err != nil {
				return out, summary, fmt.Errorf("writing enriched record %s: %w", r.ID, err)
			}
		}
		out = append(out, er)
		done[r.ID] = er

		fmt.Fprintf(o.progress, "enriched %d/%d %s\n", i+1, len(records), r.ID)
	}

	o.logger.Info("enrichment finished",
		"analyzed", summary.Analyzed, "failed", summary.Failed, "resumed", summary.Resumed)
	return out, summary, nil
}

// analyze makes one call. A panicking analyzer counts as a failed call.
func (o *Orchestrator) analyze(ctx context.Context, r types.Record) (outcome Outcome) {
	defer func() {
		if p := recover(); p != nil {
			outcome = Outcome{Err: fmt.Errorf("analyzer panicked: %v", p)}
		}
	}()
	a, err := o.analyzer.Analyze(ctx, o.language, r.Abstract)
	if err != nil {
		return Outcome{Err: err}
	}
	return Outcome{Analysis: a}
}

func (o *Orchestrator) logFailure(id string, err error) {
	if errors.Is(err, ErrMalformedOutput) {
		o.logger.Warn("analysis output could not be parsed", "id", id, "error", err)
		return
	}
	o.logger.Warn("analysis call failed", "id", id, "error", err)
}
