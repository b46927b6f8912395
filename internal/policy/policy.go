// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package policy loads the topic policy file that scopes a run: which
// categories to harvest, which keywords make a paper relevant, and how many
// papers to keep.
package policy

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/paper-digest/pkg/types"
)

// DefaultFile is the policy file name looked up in the working directory.
const DefaultFile = "topics.yaml"

// File is the on-disk layout of the policy file.
type File struct {
	Categories []string `yaml:"categories"`
	Keywords   struct {
		Include []string `yaml:"include"`
		Exclude []string `yaml:"exclude"`
	} `yaml:"keywords"`
	Limits struct {
		MaxPapersPerDay *int `yaml:"max_papers_per_day"`
	} `yaml:"limits"`
	DateFilter struct {
		RecentDays *int `yaml:"recent_days"`
	} `yaml:"date_filter"`
	RequireCategoryMatch bool `yaml:"require_category_match"`
}

// Default returns the policy used when no file is present.
func Default() types.FilterPolicy {
	return types.FilterPolicy{
		Categories: []string{"cs.AI", "cs.LG", "cs.CV", "cs.CL"},
		IncludeKeywords: []string{
			"transformer", "attention", "deep learning", "neural network", "machine learning",
		},
		MaxRecordsPerRun: 50,
		LookbackDays:     3,
	}
}

// Load reads the policy at path. A missing file yields Default and a
// warning. A file that does not parse, has unknown keys, or fails
// validation is a *types.ConfigError.
func Load(path string, logger *slog.Logger) (types.FilterPolicy, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		logger.Warn("policy file not found, using defaults", "path", path)
		return Default(), nil
	}
	if err != nil {
		return types.FilterPolicy{}, &types.ConfigError{Field: "topics", Err: err}
	}

	p, err := Parse(data)
	if err != nil {
		return types.FilterPolicy{}, err
	}
	logger.Info("policy loaded", "path", path,
		"categories", len(p.Categories), "include", len(p.IncludeKeywords), "exclude", len(p.ExcludeKeywords))
	return p, nil
}

// Parse decodes and validates a policy document. Limits left out of the
// document take their default values.
func Parse(data []byte) (types.FilterPolicy, error) {
	var f File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return types.FilterPolicy{}, &types.ConfigError{Field: "topics", Err: fmt.Errorf("parsing policy: %w", err)}
	}

	def := Default()
	p := types.FilterPolicy{
		Categories:           f.Categories,
		IncludeKeywords:      f.Keywords.Include,
		ExcludeKeywords:      f.Keywords.Exclude,
		RequireCategoryMatch: f.RequireCategoryMatch,
		MaxRecordsPerRun:     def.MaxRecordsPerRun,
		LookbackDays:         def.LookbackDays,
	}
	if f.Limits.MaxPapersPerDay != nil {
		p.MaxRecordsPerRun = *f.Limits.MaxPapersPerDay
	}
	if f.DateFilter.RecentDays != nil {
		p.LookbackDays = *f.DateFilter.RecentDays
	}

	if err := p.Validate(); err != nil {
		return types.FilterPolicy{}, err
	}
	return p, nil
}
