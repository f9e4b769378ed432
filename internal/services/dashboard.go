// Package services ties the source, pipeline and report packages into the
// operations the HTTP server and CLI expose.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"tracker/internal/core"
	"tracker/internal/pipeline"
	"tracker/internal/report"
	"tracker/internal/source"
)

// Query is one user request against the dashboard.
type Query struct {
	// Sheets to combine. Nil selects every eligible sheet.
	Sheets    []string
	Selection pipeline.Selection
	Raw       bool
}

// View is everything a page render or export needs.
type View struct {
	Query     Query
	Location  string
	Available []string
	Sheets    []string
	Combined  core.Table
	Filtered  core.Table
	Options   pipeline.Selection
	Effective pipeline.Selection
	Warnings  []core.Warning
	Managers  []report.Share
	Charts    report.Charts
	Summary   report.Summary
	LoadedAt  time.Time
}

// ErrNotLoaded is reported by Ready before the first load attempt.
var ErrNotLoaded = errors.New("workbook not loaded yet")

// invalidator is implemented by caching loaders.
type invalidator interface {
	Invalidate(location string)
}

// Dashboard runs the load → normalize → combine → filter → report cycle.
type Dashboard struct {
	loader   source.Loader
	location string
	policy   pipeline.SheetPolicy
	timeout  time.Duration
	logger   *slog.Logger
	now      func() time.Time

	mu       sync.RWMutex
	lastErr  error
	lastLoad time.Time
	loaded   bool
}

func NewDashboard(loader source.Loader, location string, policy pipeline.SheetPolicy, timeout time.Duration, logger *slog.Logger) *Dashboard {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Dashboard{
		loader:   loader,
		location: location,
		policy:   policy,
		timeout:  timeout,
		logger:   logger,
		now:      time.Now,
	}
}

// Location returns the workbook location the dashboard reads.
func (d *Dashboard) Location() string {
	return d.location
}

// Backend describes the loader chain.
func (d *Dashboard) Backend() string {
	return d.loader.Describe()
}

// Workbook loads the workbook and returns it with its eligible sheet names.
func (d *Dashboard) Workbook(ctx context.Context) (core.Workbook, []string, error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	start := d.now()
	wb, err := d.loader.Load(ctx, d.location)
	d.record(err)
	if err != nil {
		d.logger.ErrorContext(ctx, "Workbook load failed",
			"location", d.location,
			"backend", d.loader.Describe(),
			"error", err)
		if !errors.Is(err, core.ErrLoadFailed) {
			err = fmt.Errorf("%w: %w", core.ErrLoadFailed, err)
		}
		return nil, nil, fmt.Errorf("load workbook (%s): %w", d.location, err)
	}

	eligible := d.policy.Eligible(wb.SheetNames())
	d.logger.DebugContext(ctx, "Workbook loaded",
		"location", d.location,
		"sheets", len(eligible),
		"duration_ms", d.now().Sub(start).Milliseconds())
	return wb, eligible, nil
}

// View computes the dashboard for q. A load failure returns an error and no
// partial data.
func (d *Dashboard) View(ctx context.Context, q Query) (*View, error) {
	wb, eligible, err := d.Workbook(ctx)
	if err != nil {
		return nil, err
	}

	selected := d.selectSheets(eligible, q.Sheets)
	built := pipeline.Build(wb, selected)
	filtered, filterWarnings := pipeline.Filter(built.Table, q.Selection)

	v := &View{
		Query:     q,
		Location:  d.location,
		Available: eligible,
		Sheets:    selected,
		Combined:  built.Table,
		Filtered:  filtered,
		Options:   pipeline.DefaultSelection(built.Table),
		LoadedAt:  d.lastLoaded(),
	}
	v.Effective = effective(q.Selection, v.Options)
	v.Warnings = append(v.Warnings, built.Warnings...)
	v.Warnings = append(v.Warnings, filterWarnings...)
	v.Warnings = append(v.Warnings, report.MissingColumns(filtered)...)

	managers := report.ManagerCounts(filtered)
	v.Managers = report.ManagerShares(managers)
	v.Charts = report.BuildCharts(filtered)
	v.Summary = report.Summarize(filtered)

	d.logger.DebugContext(ctx, "Dashboard view built",
		"sheets", len(selected),
		"rows", built.Table.Len(),
		"filtered_rows", filtered.Len(),
		"warnings", len(v.Warnings))
	return v, nil
}

// Refresh drops any cached copy of the workbook and loads it again.
func (d *Dashboard) Refresh(ctx context.Context) error {
	if inv, ok := d.loader.(invalidator); ok {
		inv.Invalidate(d.location)
	}
	_, _, err := d.Workbook(ctx)
	return err
}

// Ready reports whether the most recent load succeeded. Before the first
// load the dashboard is not ready.
func (d *Dashboard) Ready() (bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if !d.loaded {
		return false, ErrNotLoaded
	}
	return d.lastErr == nil, d.lastErr
}

func (d *Dashboard) record(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.loaded = true
	d.lastErr = err
	if err == nil {
		d.lastLoad = d.now()
	}
}

func (d *Dashboard) lastLoaded() time.Time {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.lastLoad
}

// selectSheets keeps the requested sheets the policy allows, deduplicated
// and in request order. Nil means every eligible sheet.
func (d *Dashboard) selectSheets(eligible, requested []string) []string {
	if requested == nil {
		return eligible
	}
	out := make([]string, 0, len(requested))
	seen := make(map[string]bool, len(requested))
	for _, name := range requested {
		if seen[name] || !d.policy.Allowed(name) {
			continue
		}
		seen[name] = true
		out = append(out, name)
	}
	return out
}

func effective(sel, options pipeline.Selection) pipeline.Selection {
	pick := func(v, all []string) []string {
		if v == nil {
			return all
		}
		return v
	}
	return pipeline.Selection{
		Status:  pick(sel.Status, options.Status),
		Health:  pick(sel.Health, options.Health),
		Manager: pick(sel.Manager, options.Manager),
	}
}
