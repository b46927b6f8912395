// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"errors"
	"time"
)

// HTTPConfig holds shared HTTP settings used by stages that make network requests.
type HTTPConfig struct {
	// Timeout bounds a single HTTP attempt.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "paper-digest/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent"`
}

// FetchConfig holds settings for harvesting the arXiv feed.
type FetchConfig struct {
	HTTPConfig `yaml:",inline"`

	// BaseURL is the arXiv query endpoint.
	BaseURL string `json:"base_url" yaml:"base_url"`

	// PageSize is the max_results value of a single request (default 100).
	PageSize int `json:"page_size" yaml:"page_size"`

	// MaxResults caps the records collected across pages (default PageSize).
	MaxResults int `json:"max_results" yaml:"max_results"`

	// RetryAttempts is the total number of attempts per page (default 3).
	RetryAttempts int `json:"retry_attempts" yaml:"retry_attempts"`

	// RetryDelay is the fixed wait between attempts (default 5s).
	RetryDelay time.Duration `json:"retry_delay" yaml:"retry_delay"`

	// PacingDelay is the wait after every page request (default 3s).
	PacingDelay time.Duration `json:"pacing_delay" yaml:"pacing_delay"`
}

// AIConfig holds settings for the enrichment model.
type AIConfig struct {
	// Backend selects the analyzer: "claude" or "openai".
	Backend string `json:"backend" yaml:"backend"`

	// Model is the model identifier passed to the backend.
	Model string `json:"model" yaml:"model"`

	// APIKey authenticates against the backend.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`

	// BaseURL overrides the backend endpoint (OpenAI-compatible gateways).
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty"`

	// Language is the target language of the generated analysis.
	Language string `json:"language" yaml:"language"`

	// MaxRetries is the number of transport retries on 429/5xx (default 3).
	MaxRetries int `json:"max_retries" yaml:"max_retries"`

	// Timeout bounds a single model call.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`
}

// HistoryConfig selects where seen ids are stored between runs.
type HistoryConfig struct {
	// Backend is "file" (default) or "sqlite".
	Backend string `json:"backend" yaml:"backend"`

	// Path is the history directory (file) or database file (sqlite).
	// Defaults to a location under the data directory.
	Path string `json:"path" yaml:"path"`
}

// FilterPolicy decides which harvested records are relevant.
type FilterPolicy struct {
	// Categories is the harvest scope, e.g. "cs.AI".
	Categories []string `json:"categories" yaml:"categories"`

	// IncludeKeywords must match (any one) when non-empty.
	IncludeKeywords []string `json:"include_keywords" yaml:"include_keywords"`

	// ExcludeKeywords reject a record when any one matches.
	ExcludeKeywords []string `json:"exclude_keywords" yaml:"exclude_keywords"`

	// RequireCategoryMatch drops records sharing no category with Categories.
	RequireCategoryMatch bool `json:"require_category_match" yaml:"require_category_match"`

	// MaxRecordsPerRun caps the batch handed to enrichment.
	MaxRecordsPerRun int `json:"max_records_per_run" yaml:"max_records_per_run"`

	// LookbackDays sets both the query window and the history window.
	LookbackDays int `json:"lookback_days" yaml:"lookback_days"`
}

// Validate checks the policy invariants.
func (p FilterPolicy) Validate() error {
	if len(p.Categories) == 0 {
		return &ConfigError{Field: "categories", Err: errors.New("at least one category is required")}
	}
	if p.MaxRecordsPerRun < 0 {
		return &ConfigError{Field: "max_papers_per_day", Err: errors.New("must be >= 0")}
	}
	if p.LookbackDays < 0 {
		return &ConfigError{Field: "recent_days", Err: errors.New("must be >= 0")}
	}
	return nil
}

// RunConfig is built once at process start and passed to every component.
type RunConfig struct {
	// TargetDate is the run date (midnight in Location).
	TargetDate time.Time

	// Force reprocesses when nothing is new or a report already exists.
	Force bool

	// DataDir holds batch files and reports.
	DataDir string

	// Location is the timezone used to resolve "today".
	Location *time.Location

	Policy  FilterPolicy
	Fetch   FetchConfig
	AI      AIConfig
	History HistoryConfig
}

// DateString formats the target date as used in file names.
func (c RunConfig) DateString() string {
	return c.TargetDate.Format(DateLayout)
}

// DateLayout is the run-date format used in file names and flags.
const DateLayout = "2006-01-02"
