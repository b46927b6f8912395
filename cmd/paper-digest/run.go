// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/paper-digest/internal/enrich"
	"github.com/pdiddy/paper-digest/internal/feed"
	"github.com/pdiddy/paper-digest/internal/history"
	"github.com/pdiddy/paper-digest/internal/pipeline"
	"github.com/pdiddy/paper-digest/pkg/types"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Produce the digest for one day",
	Long: `Run fetches the submissions of the last few days for the configured
categories, filters them by the topic policy, removes papers already seen,
caps the batch, analyzes each abstract, and writes data/<date>.md.

A run is skipped when the report for the date already exists, unless --force
is given. Interrupting a run keeps every analysis finished so far; the next
run picks up from there.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadRunConfig(viper.GetViper(), loadedSecrets, logger)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		return runDigest(ctx, cfg, logger, cmd.OutOrStdout(), cmd.ErrOrStderr())
	},
}

func init() {
	runCmd.Flags().String("date", "", "target date (YYYY-MM-DD, default today)")
	runCmd.Flags().Bool("force", false, "reprocess even when nothing is new or the report exists")
	runCmd.Flags().String("topics", "topics.yaml", "topic policy file")
	runCmd.Flags().String("backend", "claude", "analysis backend: claude or openai")
	runCmd.Flags().String("model", "", "model identifier passed to the backend")
	runCmd.Flags().String("language", "", "language of the generated analyses")

	_ = viper.BindPFlag(keyDate, runCmd.Flags().Lookup("date"))
	_ = viper.BindPFlag(keyForce, runCmd.Flags().Lookup("force"))
	_ = viper.BindPFlag(keyTopics, runCmd.Flags().Lookup("topics"))
	_ = viper.BindPFlag(keyAIBackend, runCmd.Flags().Lookup("backend"))
	_ = viper.BindPFlag(keyAIModel, runCmd.Flags().Lookup("model"))
	_ = viper.BindPFlag(keyAILanguage, runCmd.Flags().Lookup("language"))

	rootCmd.AddCommand(runCmd)
}

// runDigest wires the collaborators for cfg and executes one run. The
// summary table goes to out, stage progress to progress.
func runDigest(ctx context.Context, cfg types.RunConfig, logger *slog.Logger, out, progress io.Writer) error {
	analyzer, err := enrich.New(cfg.AI, &http.Client{Timeout: cfg.AI.Timeout})
	if err != nil {
		return err
	}

	runID := uuid.NewString()
	store, err := history.Open(cfg.History, cfg.DataDir, runID)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Warn("closing history store", "error", err)
		}
	}()

	fetcher := feed.NewFetcher(&http.Client{Timeout: cfg.Fetch.Timeout}, cfg.Fetch, logger)

	ctrl := pipeline.New(cfg, pipeline.Deps{
		Fetcher:  fetcher,
		History:  store,
		Analyzer: analyzer,
		Logger:   logger,
		Progress: progress,
		RunID:    runID,
	})

	sum, err := ctrl.Run(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, renderTable(
		[]string{"Step", "Value"},
		summaryRows(sum),
		[]columnAlignment{alignLeft, alignRight},
		isTerminal(out),
	))
	return nil
}

// summaryRows lists what a run did, one row per figure.
func summaryRows(s pipeline.Summary) [][]string {
	rows := [][]string{
		{"Date", s.Date},
		{"Outcome", s.Outcome.String()},
	}
	if s.Outcome == pipeline.OutcomeAlreadyReported {
		return append(rows, []string{"Report", s.ReportPath})
	}

	fetch := s.FetchStatus.String()
	if s.FetchErr != nil {
		fetch += " (" + s.FetchErr.Error() + ")"
	}
	rows = append(rows,
		[]string{"Fetch", fetch},
		[]string{"Fetched", strconv.Itoa(s.Fetched)},
		[]string{"Relevant", strconv.Itoa(s.Relevant)},
		[]string{"Unique", strconv.Itoa(s.Unique)},
		[]string{"Duplicates removed", strconv.Itoa(s.DuplicatesRemoved)},
		[]string{"New", strconv.Itoa(s.New)},
		[]string{"Selected", strconv.Itoa(s.Selected)},
	)
	if s.Outcome == pipeline.OutcomeCompleted {
		rows = append(rows,
			[]string{"Analyzed", strconv.Itoa(s.Enrich.Analyzed)},
			[]string{"Failed", strconv.Itoa(s.Enrich.Failed)},
			[]string{"Resumed", strconv.Itoa(s.Enrich.Resumed)},
			[]string{"Report", s.ReportPath},
		)
	}
	return append(rows, []string{"Elapsed", s.Elapsed.Round(time.Millisecond).String()})
}
