// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package feed harvests paper records from the arXiv query API. A Fetcher
// pages through the Atom feed with bounded retry and a mandatory pacing
// delay after every request; a Parser normalizes each entry into a Record.
package feed

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/pdiddy/paper-digest/internal/httputil"
	"github.com/pdiddy/paper-digest/pkg/types"
)

// DefaultBaseURL is the arXiv query endpoint.
const DefaultBaseURL = "https://export.arxiv.org/api/query"

const (
	defaultPageSize      = 100
	defaultRetryAttempts = 3
	defaultRetryDelay    = 5 * time.Second
	defaultPacingDelay   = 3 * time.Second
	defaultUserAgent     = "paper-digest/0.1"
)

var (
	// ErrEmptyResponse is returned for a 200 response without a body.
	// Upstream truncation shows up this way, so it is retried.
	ErrEmptyResponse = errors.New("empty response body")

	// ErrUpstream is returned when arXiv answers with an error feed.
	ErrUpstream = errors.New("arXiv API error")

	// ErrNoCategories is returned for a query without categories.
	ErrNoCategories = errors.New("query has no categories")
)

// Status classifies the outcome of a Fetch.
type Status int

const (
	// StatusData means at least one record was harvested.
	StatusData Status = iota
	// StatusEmptyUpstream means every request succeeded and returned nothing.
	StatusEmptyUpstream
	// StatusFetchFailed means no record was harvested because a request
	// failed after exhausting its retries.
	StatusFetchFailed
)

func (s Status) String() string {
	switch s {
	case StatusData:
		return "data"
	case StatusEmptyUpstream:
		return "empty"
	case StatusFetchFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// FetchError reports a page that could not be fetched.
type FetchError struct {
	Start    int
	Attempts int
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetching page at offset %d failed after %d attempt(s): %v", e.Start, e.Attempts, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// FetchResult is the outcome of a Fetch. Records is empty unless Status is
// StatusData. Err is set whenever a page failed, including a later page of
// an otherwise successful harvest.
type FetchResult struct {
	Records  []types.Record
	Status   Status
	Err      error
	Pages    int
	Requests int
	Skipped  int
}

// Fetcher queries the arXiv API. It is not safe for concurrent use; the
// pacing contract assumes one caller.
type Fetcher struct {
	client *http.Client
	cfg    types.FetchConfig
	parser Parser
	logger *slog.Logger
	sleep  func(ctx context.Context, d time.Duration) error
}

// Option customizes a Fetcher.
type Option func(*Fetcher)

// WithSleep overrides how retry and pacing waits are performed (useful for tests).
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(f *Fetcher) {
		if sleep != nil {
			f.sleep = sleep
		}
	}
}

// WithNow overrides the clock used for entries without a published date.
func WithNow(now func() time.Time) Option {
	return func(f *Fetcher) {
		f.parser.Now = now
	}
}

// NewFetcher builds a Fetcher. Zero-valued settings in cfg get the
// defaults: 100 results per page, 3 attempts 5s apart, 3s pacing.
func NewFetcher(client *http.Client, cfg types.FetchConfig, logger *slog.Logger, opts ...Option) *Fetcher {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = defaultPageSize
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = cfg.PageSize
	}
	if cfg.RetryAttempts <= 0 {
		cfg.RetryAttempts = defaultRetryAttempts
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = defaultRetryDelay
	}
	if cfg.PacingDelay <= 0 {
		cfg.PacingDelay = defaultPacingDelay
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	f := &Fetcher{
		client: client,
		cfg:    cfg,
		logger: logger,
		sleep:  httputil.SleepContext,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch harvests records matching q, page by page, until MaxResults records
// are collected or a short page arrives. A page that keeps failing ends the
// harvest; records from earlier pages are kept.
func (f *Fetcher) Fetch(ctx context.Context, q Query) FetchResult {
	searchQuery := BuildSearchQuery(q.Categories, q.WindowStart)
	if searchQuery == "" {
		return FetchResult{Status: StatusFetchFailed, Err: ErrNoCategories}
	}

	maxResults := q.MaxResults
	if maxResults <= 0 {
		maxResults = f.cfg.MaxResults
	}

	f.logger.Info("querying arXiv", "query", searchQuery, "max_results", maxResults)

	var res FetchResult
	for start := 0; start < maxResults; {
		size := min(f.cfg.PageSize, maxResults-start)

		p, attempts, err := f.fetchPage(ctx, searchQuery, start, size)
		res.Requests += attempts
		if err != nil {
			res.Err = &FetchError{Start: start, Attempts: attempts, Err: err}
			f.logger.Error("arXiv page failed", "start", start, "attempts", attempts, "error", err)
			break
		}

		res.Pages++
		res.Skipped += p.skipped
		res.Records = append(res.Records, p.records...)

		if p.entries < size {
			break
		}
		start += p.entries
	}

	switch {
	case len(res.Records) > 0:
		res.Status = StatusData
	case res.Err != nil:
		res.Status = StatusFetchFailed
	default:
		res.Status = StatusEmptyUpstream
	}

	f.logger.Info("arXiv harvest finished",
		"status", res.Status.String(), "records", len(res.Records),
		"pages", res.Pages, "requests", res.Requests, "skipped", res.Skipped)
	return res
}

// page is the parsed content of one response.
type page struct {
	records []types.Record
	entries int
	skipped int
}

// fetchPage retrieves one page with the retry policy, then waits the
// pacing delay whatever the outcome.
func (f *Fetcher) fetchPage(ctx context.Context, searchQuery string, start, size int) (page, int, error) {
	defer f.pace(ctx)

	u := f.pageURL(searchQuery, start, size)
	policy := httputil.Policy{
		MaxAttempts: f.cfg.RetryAttempts,
		Delay:       f.cfg.RetryDelay,
		Sleep:       f.sleep,
	}

	var p page
	attempts, err := policy.Do(ctx, func(attempt int) error {
		got, err := f.attempt(ctx, u)
		if err != nil {
			f.logger.Warn("arXiv request failed",
				"attempt", attempt, "max_attempts", f.cfg.RetryAttempts, "error", err)
			return err
		}
		p = got
		return nil
	})
	return p, attempts, err
}

func (f *Fetcher) pace(ctx context.Context) {
	if err := f.sleep(ctx, f.cfg.PacingDelay); err != nil {
		f.logger.Debug("pacing wait interrupted", "error", err)
	}
}

func (f *Fetcher) pageURL(searchQuery string, start, size int) string {
	v := url.Values{}
	v.Set("search_query", searchQuery)
	v.Set("start", strconv.Itoa(start))
	v.Set("max_results", strconv.Itoa(size))
	v.Set("sortBy", "submittedDate")
	v.Set("sortOrder", "descending")
	return f.cfg.BaseURL + "?" + v.Encode()
}

// attempt performs a single request. Errors worth retrying are returned
// as-is; the rest are marked permanent.
func (f *Fetcher) attempt(ctx context.Context, u string) (page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return page{}, httputil.Permanent(fmt.Errorf("creating request: %w", err))
	}
	req.Header.Set("User-Agent", f.cfg.UserAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return page{}, httputil.Permanent(ctx.Err())
		}
		return page{}, fmt.Errorf("arXiv API request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("arXiv API returned HTTP %d", resp.StatusCode)
		if httputil.RetryableStatus(resp.StatusCode) {
			return page{}, err
		}
		return page{}, httputil.Permanent(err)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return page{}, fmt.Errorf("reading arXiv response: %w", err)
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return page{}, ErrEmptyResponse
	}

	parsed, err := newFeedParser().Parse(bytes.NewReader(body))
	if err != nil {
		return page{}, fmt.Errorf("parsing arXiv response: %w", err)
	}
	if msg, ok := upstreamError(parsed); ok {
		return page{}, httputil.Permanent(fmt.Errorf("%w: %s", ErrUpstream, msg))
	}

	p := page{entries: len(parsed.Items)}
	for _, item := range parsed.Items {
		rec, ok := f.parser.Parse(item)
		if !ok {
			p.skipped++
			f.logger.Warn("skipping feed entry without identity", "title", strings.TrimSpace(item.Title))
			continue
		}
		p.records = append(p.records, rec)
	}
	return p, nil
}

// upstreamError detects the arXiv error feed: a single entry titled "Error"
// whose summary carries the message.
func upstreamError(parsed *gofeed.Feed) (string, bool) {
	if len(parsed.Items) != 1 {
		return "", false
	}
	item := parsed.Items[0]
	if strings.TrimSpace(item.Title) != "Error" {
		return "", false
	}
	return normalizeText(item.Description), true
}
