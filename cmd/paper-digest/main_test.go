// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/paper-digest/internal/enrich"
	"github.com/pdiddy/paper-digest/internal/history"
	"github.com/pdiddy/paper-digest/internal/logging"
	"github.com/pdiddy/paper-digest/internal/pipeline"
	"github.com/pdiddy/paper-digest/internal/secrets"
	"github.com/pdiddy/paper-digest/pkg/types"
)

func newTestViper(t *testing.T) *viper.Viper {
	t.Helper()
	v := viper.New()
	setDefaults(v)
	v.Set(keyTopics, filepath.Join(t.TempDir(), "missing.yaml"))
	return v
}

func TestLoadRunConfig_Defaults(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	v := newTestViper(t)

	cfg, err := loadRunConfig(v, nil, logging.Discard())
	require.NoError(t, err)

	assert.True(t, cfg.TargetDate.IsZero())
	assert.False(t, cfg.Force)
	assert.Equal(t, "data", cfg.DataDir)
	assert.Equal(t, time.UTC, cfg.Location)
	assert.Equal(t, []string{"cs.AI", "cs.LG", "cs.CV", "cs.CL"}, cfg.Policy.Categories)
	assert.Equal(t, 50, cfg.Policy.MaxRecordsPerRun)
	assert.Equal(t, 100, cfg.Fetch.PageSize)
	assert.Equal(t, 3, cfg.Fetch.RetryAttempts)
	assert.Equal(t, 5*time.Second, cfg.Fetch.RetryDelay)
	assert.Equal(t, 3*time.Second, cfg.Fetch.PacingDelay)
	assert.Equal(t, enrich.BackendClaude, cfg.AI.Backend)
	assert.Equal(t, enrich.DefaultLanguage, cfg.AI.Language)
	assert.Equal(t, history.BackendFile, cfg.History.Backend)
	assert.Empty(t, cfg.AI.APIKey)
}

func TestLoadRunConfig_Date(t *testing.T) {
	v := newTestViper(t)
	v.Set(keyDate, "2024-03-07")
	v.Set(keyTimezone, "America/New_York")

	cfg, err := loadRunConfig(v, nil, logging.Discard())
	require.NoError(t, err)

	assert.Equal(t, "2024-03-07", cfg.DateString())
	assert.Equal(t, "America/New_York", cfg.TargetDate.Location().String())
}

func TestLoadRunConfig_Errors(t *testing.T) {
	tests := []struct {
		name  string
		setup func(t *testing.T, v *viper.Viper)
		field string
	}{
		{
			name:  "bad date",
			setup: func(t *testing.T, v *viper.Viper) { v.Set(keyDate, "07/03/2024") },
			field: keyDate,
		},
		{
			name:  "unknown timezone",
			setup: func(t *testing.T, v *viper.Viper) { v.Set(keyTimezone, "Mars/Olympus") },
			field: keyTimezone,
		},
		{
			name:  "empty data dir",
			setup: func(t *testing.T, v *viper.Viper) { v.Set(keyDataDir, "") },
			field: keyDataDir,
		},
		{
			name: "unknown policy key",
			setup: func(t *testing.T, v *viper.Viper) {
				path := filepath.Join(t.TempDir(), "topics.yaml")
				require.NoError(t, os.WriteFile(path, []byte("categories: [cs.AI]\nbogus: 1\n"), 0o644))
				v.Set(keyTopics, path)
			},
			field: "topics",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := newTestViper(t)
			tt.setup(t, v)

			_, err := loadRunConfig(v, nil, logging.Discard())
			var cfgErr *types.ConfigError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, tt.field, cfgErr.Field)
			assert.Equal(t, 2, exitCode(err))
		})
	}
}

func TestBindEnv_ShortNames(t *testing.T) {
	t.Setenv("CUSTOM_DATE", "2024-02-01")
	t.Setenv("FORCE_UPDATE", "true")
	t.Setenv("LANGUAGE", "Chinese")
	t.Setenv("MODEL_NAME", "gpt-4o")
	t.Setenv("PAPER_DIGEST_AI_BACKEND", "openai")
	t.Setenv("PAPER_DIGEST_FETCH_PAGE_SIZE", "25")

	v := newTestViper(t)
	bindEnv(v)

	cfg, err := loadRunConfig(v, map[string]string{secrets.OpenAIAPIKey: "sk-file"}, logging.Discard())
	require.NoError(t, err)

	assert.Equal(t, "2024-02-01", cfg.DateString())
	assert.True(t, cfg.Force)
	assert.Equal(t, "Chinese", cfg.AI.Language)
	assert.Equal(t, "gpt-4o", cfg.AI.Model)
	assert.Equal(t, enrich.BackendOpenAI, cfg.AI.Backend)
	assert.Equal(t, "sk-file", cfg.AI.APIKey)
	assert.Equal(t, 25, cfg.Fetch.PageSize)
}

func TestBindEnv_PrefixedNameWins(t *testing.T) {
	t.Setenv("PAPER_DIGEST_DATE", "2024-05-05")
	t.Setenv("CUSTOM_DATE", "2024-02-01")

	v := newTestViper(t)
	bindEnv(v)
	assert.Equal(t, "2024-05-05", v.GetString(keyDate))
}

func TestResolveAPIKey(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "sk-env")
	t.Setenv("OPENAI_API_KEY", "")
	keys := map[string]string{secrets.AnthropicAPIKey: "sk-file"}

	assert.Equal(t, "sk-config", resolveAPIKey("claude", "sk-config", keys))
	assert.Equal(t, "sk-file", resolveAPIKey("claude", "", keys))
	assert.Equal(t, "sk-file", resolveAPIKey("", "", keys))
	assert.Equal(t, "sk-env", resolveAPIKey("claude", "", nil))
	assert.Empty(t, resolveAPIKey("openai", "", keys))
	assert.Empty(t, resolveAPIKey("local", "", keys))
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, 0, exitCode(nil))
	assert.Equal(t, 1, exitCode(errors.New("boom")))
	assert.Equal(t, 2, exitCode(fmt.Errorf("wrapped: %w", &types.ConfigError{Field: "x", Err: errors.New("bad")})))
	assert.Equal(t, 3, exitCode(fmt.Errorf("run: %w", pipeline.ErrLocked)))
}

func TestRunDigest_MissingAPIKey(t *testing.T) {
	cfg := types.RunConfig{DataDir: t.TempDir(), AI: types.AIConfig{Backend: enrich.BackendClaude}}

	var out bytes.Buffer
	err := runDigest(context.Background(), cfg, logging.Discard(), &out, &out)

	var cfgErr *types.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "ai.api_key", cfgErr.Field)
	assert.Empty(t, out.String())
}

func TestRunDigest_AlreadyReported(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "2024-01-01.md"), []byte("# done\n"), 0o644))

	cfg := types.RunConfig{
		TargetDate: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		DataDir:    dir,
		Location:   time.UTC,
		Policy:     types.FilterPolicy{Categories: []string{"cs.AI"}},
		AI:         types.AIConfig{Backend: enrich.BackendClaude, APIKey: "sk-test"},
	}

	var out, progress bytes.Buffer
	require.NoError(t, runDigest(context.Background(), cfg, logging.Discard(), &out, &progress))

	assert.Contains(t, out.String(), "already reported")
	assert.Contains(t, progress.String(), "already exists")
}

func TestSummaryRows(t *testing.T) {
	sum := pipeline.Summary{
		Date:       "2024-01-01",
		Outcome:    pipeline.OutcomeCompleted,
		Fetched:    10,
		Relevant:   6,
		Unique:     5,
		New:        4,
		Selected:   3,
		Enrich:     enrich.Summary{Analyzed: 2, Failed: 1},
		ReportPath: "data/2024-01-01.md",
		Elapsed:    1500 * time.Millisecond,
	}
	rows := summaryRows(sum)

	got := map[string]string{}
	for _, r := range rows {
		got[r[0]] = r[1]
	}
	assert.Equal(t, "completed", got["Outcome"])
	assert.Equal(t, "10", got["Fetched"])
	assert.Equal(t, "3", got["Selected"])
	assert.Equal(t, "1", got["Failed"])
	assert.Equal(t, "data/2024-01-01.md", got["Report"])
	assert.Equal(t, "1.5s", got["Elapsed"])

	short := summaryRows(pipeline.Summary{Date: "2024-01-01", Outcome: pipeline.OutcomeNothingNew})
	for _, r := range short {
		assert.NotEqual(t, "Analyzed", r[0])
	}
}

func TestRenderTable(t *testing.T) {
	out := renderTable([]string{"Batch", "IDs"}, [][]string{{"2024-01-02", "12"}, {"2024-01-01"}}, []columnAlignment{alignLeft, alignRight}, false)

	assert.Contains(t, out, "BATCH")
	assert.Contains(t, out, "2024-01-02")
	assert.Contains(t, out, "12")
	assert.Equal(t, 2, strings.Count(out, "2024-01-0"))
	assert.Empty(t, renderTable(nil, nil, nil, false))
}

func TestListHistory(t *testing.T) {
	ctx := context.Background()
	store := history.NewFileStore(t.TempDir())

	var out bytes.Buffer
	require.NoError(t, listHistory(ctx, store, &out))
	assert.Contains(t, out.String(), "No history recorded")

	require.NoError(t, store.Append(ctx, "2024-01-01", []string{"a", "b"}))
	require.NoError(t, store.Append(ctx, "2024-01-02", []string{"c"}))

	out.Reset()
	require.NoError(t, listHistory(ctx, store, &out))
	text := out.String()
	assert.Less(t, strings.Index(text, "2024-01-02"), strings.Index(text, "2024-01-01"))
	assert.Contains(t, text, "IDS")
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	versionCmd.SetOut(&out)
	versionCmd.Run(versionCmd, nil)
	assert.Equal(t, "paper-digest dev\n", out.String())
}

func TestRootPreRun_LoggerFollowsLogLevel(t *testing.T) {
	prev := logger
	t.Cleanup(func() {
		logger = prev
		viper.Set(keyLogLevel, "info")
		viper.Set(keySecretsDir, secrets.DefaultDir)
	})
	viper.Set(keyLogLevel, "debug")
	viper.Set(keySecretsDir, t.TempDir())

	var stderr bytes.Buffer
	rootCmd.SetErr(&stderr)
	t.Cleanup(func() { rootCmd.SetErr(nil) })

	require.NoError(t, rootCmd.PersistentPreRunE(rootCmd, nil))
	assert.True(t, logger.Enabled(context.Background(), slog.LevelDebug))

	logger.Debug("visible debug line")
	assert.Contains(t, stderr.String(), "debug line")
}
