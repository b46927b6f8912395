// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package httputil provides the retry policy and HTTP helpers shared by the
// feed fetcher and the analyzer backends.
package httputil

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"
)

// RetryBaseDelay controls the base duration for exponential backoff in
// DoWithRetry. Tests override this to avoid real sleeps.
var RetryBaseDelay = 2 * time.Second

const defaultMaxRetries = 3

// Policy describes how an operation is retried: how many attempts, how long
// to wait between them, and which errors are worth another attempt.
type Policy struct {
	// MaxAttempts is the total number of attempts, including the first.
	// Values below 1 are treated as 1.
	MaxAttempts int

	// Delay is the wait before the second attempt.
	Delay time.Duration

	// Exponential doubles the wait after every failed attempt.
	Exponential bool

	// Retryable decides whether err warrants another attempt. When nil,
	// every error is retried except those marked with Permanent.
	Retryable func(err error) bool

	// Sleep waits between attempts. When nil, SleepContext is used.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Do calls fn until it succeeds, returns a non-retryable error, or the
// attempts are exhausted. fn receives the 1-based attempt number. Do returns
// the number of attempts made and the last error, with any Permanent
// wrapper removed. A cancelled context during a wait returns ctx.Err().
func (p Policy) Do(ctx context.Context, fn func(attempt int) error) (int, error) {
	maxAttempts := p.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = SleepContext
	}

	var err error
	for attempt := 1; ; attempt++ {
		err = fn(attempt)
		if err == nil {
			return attempt, nil
		}
		if !p.retryable(err) {
			return attempt, unwrapPermanent(err)
		}
		if attempt >= maxAttempts {
			return attempt, unwrapPermanent(err)
		}
		if sleepErr := sleep(ctx, p.backoff(attempt)); sleepErr != nil {
			return attempt, sleepErr
		}
	}
}

func (p Policy) retryable(err error) bool {
	if IsPermanent(err) {
		return false
	}
	if p.Retryable == nil {
		return true
	}
	return p.Retryable(err)
}

// backoff returns the wait after the given failed attempt.
func (p Policy) backoff(attempt int) time.Duration {
	if !p.Exponential {
		return p.Delay
	}
	return p.Delay << (attempt - 1)
}

// SleepContext waits for d or until ctx is done.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err so that Policy.Do stops retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var pe *permanentError
	return errors.As(err, &pe)
}

func unwrapPermanent(err error) error {
	var pe *permanentError
	if errors.As(err, &pe) {
		return pe.err
	}
	return err
}

// RetryableStatus reports whether an HTTP status is worth retrying:
// 429 Too Many Requests and any 5xx.
func RetryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}

var errRetryableStatus = errors.New("retryable HTTP status")

// DoWithRetry executes an HTTP request and retries on 429 and 5xx responses
// with exponential backoff starting at RetryBaseDelay.
//
// When maxRetries is 0 the default (3) is used. On each retried response the
// body is drained and closed before sleeping. Transport errors are returned
// immediately. After exhausting retries the last response is returned so the
// caller can inspect it.
func DoWithRetry(ctx context.Context, client *http.Client, req *http.Request, maxRetries int) (*http.Response, error) {
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}
	attempts := maxRetries + 1

	policy := Policy{
		MaxAttempts: attempts,
		Delay:       RetryBaseDelay,
		Exponential: true,
		Retryable: func(err error) bool {
			return errors.Is(err, errRetryableStatus)
		},
	}

	var resp *http.Response
	_, err := policy.Do(ctx, func(attempt int) error {
		clone := req.Clone(ctx)
		if attempt > 1 && req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return err
			}
			clone.Body = body
		}
		r, err := client.Do(clone)
		if err != nil {
			return err
		}
		if !RetryableStatus(r.StatusCode) || attempt >= attempts {
			resp = r
			return nil
		}
		io.Copy(io.Discard, r.Body)
		r.Body.Close()
		return errRetryableStatus
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}
