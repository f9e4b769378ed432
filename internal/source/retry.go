package source

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"time"

	"tracker/internal/core"
)

// RetryPolicy controls retries of transient load failures. The zero value
// fails fast.
type RetryPolicy struct {
	Retries   int
	BaseDelay time.Duration
	MaxDelay  time.Duration
}

// Retrying re-runs a loader on transient failures.
type Retrying struct {
	next   Loader
	policy RetryPolicy
	logger *slog.Logger
	sleep  func(context.Context, time.Duration) error
}

// NewRetrying wraps next. With policy.Retries == 0 it only forwards.
func NewRetrying(next Loader, policy RetryPolicy, logger *slog.Logger) *Retrying {
	if policy.BaseDelay <= 0 {
		policy.BaseDelay = 500 * time.Millisecond
	}
	if policy.MaxDelay <= 0 {
		policy.MaxDelay = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Retrying{next: next, policy: policy, logger: logger, sleep: sleepContext}
}

func (r *Retrying) Load(ctx context.Context, location string) (core.Workbook, error) {
	var lastErr error
	for attempt := 0; ; attempt++ {
		wb, err := r.next.Load(ctx, location)
		if err == nil {
			return wb, nil
		}
		lastErr = err
		if attempt >= r.policy.Retries || !IsTransient(err) {
			return nil, lastErr
		}
		delay := exponentialBackoff(attempt, r.policy.BaseDelay, r.policy.MaxDelay)
		r.logger.WarnContext(ctx, "Transient load failure, retrying",
			"location", location,
			"attempt", attempt+1,
			"delay", delay,
			"error", err)
		if err := r.sleep(ctx, delay); err != nil {
			return nil, lastErr
		}
	}
}

func (r *Retrying) Describe() string {
	return r.next.Describe()
}

// IsTransient reports whether a load failure may succeed on a later attempt:
// transport errors, HTTP 5xx and 429. Missing files, other HTTP statuses and
// decode errors are permanent.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, fs.ErrNotExist) || errors.Is(err, core.ErrUnsupportedFormat) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode >= http.StatusInternalServerError || se.StatusCode == http.StatusTooManyRequests
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return true
	}
	return errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF)
}

// exponentialBackoff returns base * 2^attempt, capped at limit.
func exponentialBackoff(attempt int, base, limit time.Duration) time.Duration {
	d := base
	for i := 0; i < attempt && d < limit; i++ {
		d *= 2
	}
	if d > limit {
		return limit
	}
	return d
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
