package services

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tracker/internal/cache"
	"tracker/internal/core"
	"tracker/internal/pipeline"
	"tracker/internal/source"
	"tracker/internal/source/memory"
)

const location = "Project_Dashboard_Data.xlsx"

func scenarioWorkbook() *core.MemoryWorkbook {
	wb := core.NewMemoryWorkbook()
	header := []string{"Status", "Health", "Project Manager", "Division", "Start Date", "Tasks"}
	wb.AddSheet("May", core.TextRows([][]string{header, {"Active", "Green", "A", "Ops", "2025-05-01", "3"}}))
	wb.AddSheet("June", core.TextRows([][]string{header, {"Closed", "Red", "B", "Eng", "2025-06-01", "5"}}))
	wb.AddSheet("Skill Set", core.TextRows([][]string{{"Name", "Skill"}, {"x", "y"}}))
	wb.AddSheet("Notes", core.TextRows([][]string{{"Comment"}, {"hello"}}))
	return wb
}

func newDashboard(t *testing.T) (*Dashboard, *memory.Store) {
	t.Helper()
	store := memory.New()
	store.Put(location, scenarioWorkbook())
	return NewDashboard(store, location, pipeline.DefaultSheetPolicy(), time.Second, nil), store
}

func TestDashboardViewDefaults(t *testing.T) {
	d, _ := newDashboard(t)

	v, err := d.View(context.Background(), Query{Sheets: []string{"May", "June"}})
	require.NoError(t, err)

	assert.Equal(t, []string{"May", "June", "Notes"}, v.Available, "denied sheets are hidden")
	assert.Equal(t, 2, v.Combined.Len())
	assert.Equal(t, 2, v.Filtered.Len())
	assert.Equal(t, []string{"Active", "Closed"}, v.Options.Status)
	assert.Equal(t, v.Options, v.Effective)
	require.Len(t, v.Charts.Trend.Labels, 2)
	assert.Equal(t, []string{"01 May 2025", "01 Jun 2025"}, v.Charts.Trend.Labels)
	assert.Equal(t, []float64{3, 5}, v.Charts.Trend.Values)
	assert.Empty(t, v.Warnings)
}

func TestDashboardViewFilters(t *testing.T) {
	d, _ := newDashboard(t)

	v, err := d.View(context.Background(), Query{
		Sheets:    []string{"May", "June"},
		Selection: pipeline.Selection{Status: []string{"Active"}},
	})
	require.NoError(t, err)
	require.Equal(t, 1, v.Filtered.Len())
	assert.Equal(t, "May", v.Filtered.Rows[0].Sheet)
	assert.Equal(t, []string{"Active"}, v.Effective.Status)
	require.Len(t, v.Managers, 1)
	assert.Equal(t, "A", v.Managers[0].Label)
}

func TestDashboardSkipsSheetWithoutStartDate(t *testing.T) {
	d, _ := newDashboard(t)

	v, err := d.View(context.Background(), Query{Sheets: []string{"May", "Notes"}})
	require.NoError(t, err)
	assert.Equal(t, 1, v.Combined.Len())

	var skipped int
	for _, w := range v.Warnings {
		if strings.Contains(w.Message, "Notes") {
			skipped++
		}
	}
	assert.Equal(t, 1, skipped)
}

func TestDashboardDefaultSheetsAndDeniedRequest(t *testing.T) {
	d, _ := newDashboard(t)

	v, err := d.View(context.Background(), Query{})
	require.NoError(t, err)
	assert.Equal(t, []string{"May", "June", "Notes"}, v.Sheets)

	v, err = d.View(context.Background(), Query{Sheets: []string{"Skill Set", "June", "June"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"June"}, v.Sheets)
}

func TestDashboardEmptySelections(t *testing.T) {
	d, _ := newDashboard(t)

	v, err := d.View(context.Background(), Query{Sheets: []string{}})
	require.NoError(t, err)
	assert.Equal(t, 0, v.Combined.Len())
	assert.Empty(t, v.Warnings)

	v, err = d.View(context.Background(), Query{Selection: pipeline.Selection{Health: []string{}}})
	require.NoError(t, err)
	assert.Equal(t, 0, v.Filtered.Len())
	assert.Empty(t, v.Charts.Managers.Values)
}

func TestDashboardLoadFailure(t *testing.T) {
	d, store := newDashboard(t)
	store.Fail(location, errors.New("boom"))

	ready, err := d.Ready()
	assert.False(t, ready, "not ready before first load")
	assert.ErrorIs(t, err, ErrNotLoaded)

	v, err := d.View(context.Background(), Query{})
	assert.Nil(t, v)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrLoadFailed)

	ready, readyErr := d.Ready()
	assert.False(t, ready)
	assert.Error(t, readyErr)

	store.Put(location, scenarioWorkbook())
	_, err = d.View(context.Background(), Query{})
	require.NoError(t, err)
	ready, _ = d.Ready()
	assert.True(t, ready)
}

func TestDashboardRefreshInvalidatesCache(t *testing.T) {
	store := memory.New()
	store.Put(location, scenarioWorkbook())
	cached := source.NewCached(store, cache.NewLRUCache[core.Workbook](4, time.Minute), nil)
	d := NewDashboard(cached, location, pipeline.DefaultSheetPolicy(), time.Second, nil)

	ctx := context.Background()
	_, err := d.View(ctx, Query{})
	require.NoError(t, err)
	_, err = d.View(ctx, Query{})
	require.NoError(t, err)
	assert.Equal(t, 1, store.Calls(location))

	require.NoError(t, d.Refresh(ctx))
	assert.Equal(t, 2, store.Calls(location))
}

type fakeAudit struct {
	records []core.ExportRecord
	err     error
}

func (f *fakeAudit) RecordExport(_ context.Context, rec core.ExportRecord) error {
	if f.err != nil {
		return f.err
	}
	f.records = append(f.records, rec)
	return nil
}

func (f *fakeAudit) ListExports(_ context.Context, limit int) ([]core.ExportRecord, error) {
	if limit < len(f.records) {
		return f.records[:limit], nil
	}
	return f.records, nil
}

type fakePublisher struct {
	published []core.ExportRecord
	err       error
}

func (f *fakePublisher) PublishExportCompleted(_ context.Context, rec core.ExportRecord) error {
	f.published = append(f.published, rec)
	return f.err
}

func TestExportServiceRecordsAndPublishes(t *testing.T) {
	d, _ := newDashboard(t)
	v, err := d.View(context.Background(), Query{
		Sheets:    []string{"May", "June"},
		Selection: pipeline.Selection{Status: []string{"Active"}},
	})
	require.NoError(t, err)

	audit := &fakeAudit{}
	pub := &fakePublisher{}
	svc := NewExportService(audit, pub, nil)
	svc.newID = func() string { return "fixed-id" }

	var buf bytes.Buffer
	rec, err := svc.Export(context.Background(), &buf, v, "10.0.0.1")
	require.NoError(t, err)

	assert.Equal(t, "fixed-id", rec.ID)
	assert.Equal(t, 1, rec.Rows)
	assert.Equal(t, []string{"Active"}, rec.Status)
	assert.Nil(t, rec.Health)
	assert.Equal(t, []string{"May", "June"}, rec.Sheets)
	assert.Equal(t, "10.0.0.1", rec.ClientIP)
	require.Len(t, audit.records, 1)
	require.Len(t, pub.published, 1)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[1], "01 May 2025")

	recent, err := svc.Recent(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, recent, 1)
}

func TestExportServiceBestEffortSideEffects(t *testing.T) {
	d, _ := newDashboard(t)
	v, err := d.View(context.Background(), Query{})
	require.NoError(t, err)

	svc := NewExportService(&fakeAudit{err: errors.New("disk full")}, &fakePublisher{err: errors.New("broker down")}, nil)
	var buf bytes.Buffer
	rec, err := svc.Export(context.Background(), &buf, v, "")
	require.NoError(t, err)
	assert.NotEmpty(t, rec.ID)
	assert.NotEmpty(t, buf.String())
}

func TestExportServiceWithoutAudit(t *testing.T) {
	svc := NewExportService(nil, nil, nil)
	assert.False(t, svc.AuditEnabled())

	_, err := svc.Recent(context.Background(), 5)
	assert.ErrorIs(t, err, ErrAuditDisabled)

	rec, err := svc.Export(context.Background(), &bytes.Buffer{}, &View{}, "")
	require.NoError(t, err)
	assert.Equal(t, 0, rec.Rows)
}
