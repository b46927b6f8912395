// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/spf13/viper"

	"github.com/pdiddy/paper-digest/internal/enrich"
	"github.com/pdiddy/paper-digest/internal/feed"
	"github.com/pdiddy/paper-digest/internal/history"
	"github.com/pdiddy/paper-digest/internal/policy"
	"github.com/pdiddy/paper-digest/internal/secrets"
	"github.com/pdiddy/paper-digest/pkg/types"
)

// Configuration keys. Nested keys map to PAPER_DIGEST_<KEY> with dots
// replaced by underscores.
const (
	keyDate       = "date"
	keyForce      = "force"
	keyDataDir    = "data_dir"
	keyTopics     = "topics"
	keyTimezone   = "timezone"
	keyLogLevel   = "log_level"
	keySecretsDir = "secrets_dir"

	keyFetchBaseURL       = "fetch.base_url"
	keyFetchPageSize      = "fetch.page_size"
	keyFetchMaxResults    = "fetch.max_results"
	keyFetchRetryAttempts = "fetch.retry_attempts"
	keyFetchRetryDelay    = "fetch.retry_delay"
	keyFetchPacingDelay   = "fetch.pacing_delay"
	keyFetchTimeout       = "fetch.timeout"
	keyFetchUserAgent     = "fetch.user_agent"

	keyAIBackend    = "ai.backend"
	keyAIModel      = "ai.model"
	keyAIAPIKey     = "ai.api_key"
	keyAIBaseURL    = "ai.base_url"
	keyAILanguage   = "ai.language"
	keyAIMaxRetries = "ai.max_retries"
	keyAITimeout    = "ai.timeout"

	keyHistoryBackend = "history.backend"
	keyHistoryPath    = "history.path"
)

// apiKeyEnv lists the conventional variables checked last for each backend.
var apiKeyEnv = map[string]string{
	enrich.BackendClaude: "ANTHROPIC_API_KEY",
	enrich.BackendOpenAI: "OPENAI_API_KEY",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(keyDate, "")
	v.SetDefault(keyForce, false)
	v.SetDefault(keyDataDir, "data")
	v.SetDefault(keyTopics, policy.DefaultFile)
	v.SetDefault(keyTimezone, "UTC")
	v.SetDefault(keyLogLevel, "info")
	v.SetDefault(keySecretsDir, secrets.DefaultDir)

	v.SetDefault(keyFetchBaseURL, feed.DefaultBaseURL)
	v.SetDefault(keyFetchPageSize, 100)
	v.SetDefault(keyFetchMaxResults, 100)
	v.SetDefault(keyFetchRetryAttempts, 3)
	v.SetDefault(keyFetchRetryDelay, 5*time.Second)
	v.SetDefault(keyFetchPacingDelay, 3*time.Second)
	v.SetDefault(keyFetchTimeout, 30*time.Second)
	v.SetDefault(keyFetchUserAgent, "paper-digest/"+version)

	v.SetDefault(keyAIBackend, enrich.BackendClaude)
	v.SetDefault(keyAIModel, "")
	v.SetDefault(keyAIAPIKey, "")
	v.SetDefault(keyAIBaseURL, "")
	v.SetDefault(keyAILanguage, enrich.DefaultLanguage)
	v.SetDefault(keyAIMaxRetries, 3)
	v.SetDefault(keyAITimeout, 60*time.Second)

	v.SetDefault(keyHistoryBackend, history.BackendFile)
	v.SetDefault(keyHistoryPath, "")
}

// loadRunConfig assembles the run configuration from v, the loaded secrets
// and the topic policy file. Problems are reported as *types.ConfigError.
func loadRunConfig(v *viper.Viper, keys map[string]string, logger *slog.Logger) (types.RunConfig, error) {
	loc, err := time.LoadLocation(v.GetString(keyTimezone))
	if err != nil {
		return types.RunConfig{}, &types.ConfigError{Field: keyTimezone, Err: err}
	}

	var target time.Time
	if raw := strings.TrimSpace(v.GetString(keyDate)); raw != "" {
		target, err = time.ParseInLocation(types.DateLayout, raw, loc)
		if err != nil {
			return types.RunConfig{}, &types.ConfigError{
				Field: keyDate,
				Err:   fmt.Errorf("%q is not a %s date", raw, types.DateLayout),
			}
		}
	}

	p, err := policy.Load(v.GetString(keyTopics), logger)
	if err != nil {
		return types.RunConfig{}, err
	}

	cfg := types.RunConfig{
		TargetDate: target,
		Force:      v.GetBool(keyForce),
		DataDir:    v.GetString(keyDataDir),
		Location:   loc,
		Policy:     p,
		Fetch: types.FetchConfig{
			HTTPConfig: types.HTTPConfig{
				Timeout:   v.GetDuration(keyFetchTimeout),
				UserAgent: v.GetString(keyFetchUserAgent),
			},
			BaseURL:       v.GetString(keyFetchBaseURL),
			PageSize:      v.GetInt(keyFetchPageSize),
			MaxResults:    v.GetInt(keyFetchMaxResults),
			RetryAttempts: v.GetInt(keyFetchRetryAttempts),
			RetryDelay:    v.GetDuration(keyFetchRetryDelay),
			PacingDelay:   v.GetDuration(keyFetchPacingDelay),
		},
		AI: types.AIConfig{
			Backend:    strings.ToLower(strings.TrimSpace(v.GetString(keyAIBackend))),
			Model:      v.GetString(keyAIModel),
			BaseURL:    v.GetString(keyAIBaseURL),
			Language:   v.GetString(keyAILanguage),
			MaxRetries: v.GetInt(keyAIMaxRetries),
			Timeout:    v.GetDuration(keyAITimeout),
		},
		History: types.HistoryConfig{
			Backend: v.GetString(keyHistoryBackend),
			Path:    v.GetString(keyHistoryPath),
		},
	}
	if cfg.DataDir == "" {
		return types.RunConfig{}, &types.ConfigError{Field: keyDataDir, Err: fmt.Errorf("must not be empty")}
	}
	cfg.AI.APIKey = resolveAPIKey(cfg.AI.Backend, v.GetString(keyAIAPIKey), keys)
	return cfg, nil
}

// resolveAPIKey prefers an explicitly configured key, then the backend's
// secrets file, then its conventional environment variable.
func resolveAPIKey(backend, configured string, keys map[string]string) string {
	if configured != "" {
		return configured
	}
	if backend == "" {
		backend = enrich.BackendClaude
	}
	if name := secrets.KeyFor(backend); name != "" {
		if v, ok := keys[name]; ok {
			return v
		}
	}
	if env, ok := apiKeyEnv[backend]; ok {
		return strings.TrimSpace(os.Getenv(env))
	}
	return ""
}
