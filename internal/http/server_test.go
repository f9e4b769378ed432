package http

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tracker/internal/core"
	"tracker/internal/log"
	"tracker/internal/pipeline"
	"tracker/internal/services"
	"tracker/internal/source/memory"
)

const testLocation = "Project_Dashboard_Data.xlsx"

type fakeAudit struct {
	records []core.ExportRecord
}

func (f *fakeAudit) RecordExport(_ context.Context, rec core.ExportRecord) error {
	f.records = append([]core.ExportRecord{rec}, f.records...)
	return nil
}

func (f *fakeAudit) ListExports(_ context.Context, limit int) ([]core.ExportRecord, error) {
	if limit < len(f.records) {
		return f.records[:limit], nil
	}
	return f.records, nil
}

func testWorkbook() *core.MemoryWorkbook {
	wb := core.NewMemoryWorkbook()
	header := []string{"Status", "Health", "Project Manager", "Division", "Start Date", "Tasks"}
	wb.AddSheet("May", core.TextRows([][]string{header, {"Active", "Green", "A", "Ops", "2025-05-01", "3"}}))
	wb.AddSheet("June", core.TextRows([][]string{header, {"Closed", "Red", "B", "Eng", "2025-06-01", "5"}}))
	wb.AddSheet("Skill Set", core.TextRows([][]string{{"Name"}, {"x"}}))
	return wb
}

type fixture struct {
	srv   *Server
	store *memory.Store
	audit *fakeAudit
}

func newFixture(t *testing.T, withAudit bool, rate int) *fixture {
	t.Helper()
	store := memory.New()
	store.Put(testLocation, testWorkbook())

	logger := log.New(log.Config{Format: "text", Output: io.Discard})
	dash := services.NewDashboard(store, testLocation, pipeline.DefaultSheetPolicy(), time.Second, logger.Slog())

	f := &fixture{store: store}
	var exports *services.ExportService
	if withAudit {
		f.audit = &fakeAudit{}
		exports = services.NewExportService(f.audit, nil, logger.Slog())
	}
	srv, err := NewServer(Options{Addr: ":0", RateLimitPerMinute: rate, Logger: logger}, dash, exports)
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	f.srv = srv
	return f
}

func (f *fixture) do(method, target string) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	f.srv.Handler.ServeHTTP(rr, httptest.NewRequest(method, target, nil))
	return rr
}

func TestIndexRendersDashboard(t *testing.T) {
	f := newFixture(t, false, 60)

	rr := f.do(http.MethodGet, "/")
	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()

	assert.Contains(t, body, "Project Tracker Dashboard")
	assert.Contains(t, body, `<option value="May" selected>May</option>`)
	assert.NotContains(t, body, "Skill Set", "denied sheets are not offered")
	assert.Contains(t, body, "Download Filtered Data")
	assert.Contains(t, body, "Total Projects")
	assert.Contains(t, body, "Daily Task Volume")
	assert.Contains(t, body, "01 May 2025")
	assert.NotContains(t, body, "Raw Data")
	assert.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "no-store", rr.Header().Get("Cache-Control"))
	assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))
}

func TestIndexRawToggleAndFilters(t *testing.T) {
	f := newFixture(t, false, 60)

	rr := f.do(http.MethodGet, "/?raw=1&status_set=1&status=Active")
	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, "Raw Data")
	assert.Contains(t, body, `<option value="Closed">Closed</option>`)
	assert.Contains(t, body, `<option value="Active" selected>Active</option>`)
	assert.Contains(t, body, "/export.csv?")
}

func TestIndexLoadFailure(t *testing.T) {
	f := newFixture(t, false, 60)
	f.store.Fail(testLocation, errors.New("404 from upstream"))

	rr := f.do(http.MethodGet, "/")
	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, "Failed to load Excel file.")
	assert.NotContains(t, body, "Filtered Data")
	assert.NotContains(t, body, "chart-data")
}

func TestExportCSV(t *testing.T) {
	f := newFixture(t, true, 60)

	rr := f.do(http.MethodGet, "/export.csv?status=Active")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "text/csv; charset=utf-8", rr.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="filtered_projects.csv"`, rr.Header().Get("Content-Disposition"))

	records, err := csv.NewReader(strings.NewReader(rr.Body.String())).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Contains(t, records[0], "Sheet")
	assert.Contains(t, records[1], "May")
	assert.Contains(t, records[1], "01 May 2025")

	require.Len(t, f.audit.records, 1)
	assert.Equal(t, rr.Header().Get("X-Export-ID"), f.audit.records[0].ID)
	assert.Equal(t, []string{"Active"}, f.audit.records[0].Status)

	rr = f.do(http.MethodGet, "/api/exports?limit=5")
	require.Equal(t, http.StatusOK, rr.Code)
	var list []exportJSON
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, 1, list[0].Rows)
}

func TestExportLoadFailure(t *testing.T) {
	f := newFixture(t, false, 60)
	f.store.Fail(testLocation, errors.New("boom"))

	rr := f.do(http.MethodGet, "/export.csv")
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Contains(t, rr.Body.String(), "Failed to load Excel file.")
}

func TestExportsDisabled(t *testing.T) {
	f := newFixture(t, false, 60)
	rr := f.do(http.MethodGet, "/api/exports")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestChartsAPI(t *testing.T) {
	f := newFixture(t, false, 60)

	rr := f.do(http.MethodGet, "/api/charts?sheet=May&sheet=June")
	require.Equal(t, http.StatusOK, rr.Code)

	var resp chartsResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Rows)
	assert.Equal(t, []string{"01 May 2025", "01 Jun 2025"}, resp.Charts.Trend.Labels)
	assert.Equal(t, []float64{3, 5}, resp.Charts.Trend.Values)
	assert.Equal(t, []string{"Green", "Yellow", "Red"}, resp.Charts.Health.Labels)
	assert.Equal(t, []float64{1, 0, 1}, resp.Charts.Health.Values)
	assert.Empty(t, resp.Warnings)
}

func (f *fixture) chartRows(t *testing.T, target string) int {
	t.Helper()
	rr := f.do(http.MethodGet, target)
	require.Equal(t, http.StatusOK, rr.Code)
	var resp chartsResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	return resp.Rows
}

func TestAddingSheetResetsFilters(t *testing.T) {
	f := newFixture(t, false, 60)

	rr := f.do(http.MethodGet, "/?sheets_set=1&sheet=May")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `name="filters_for" value="sheet=May"`)

	// The May form resubmitted with June added and May's filter values.
	stale := "?sheets_set=1&sheet=May&sheet=June" +
		"&status_set=1&status=Active&health_set=1&health=Green&manager_set=1&manager=A" +
		"&filters_for=sheet%3DMay"
	assert.Equal(t, 2, f.chartRows(t, "/api/charts"+stale), "June's rows are not hidden")

	rr = f.do(http.MethodGet, "/"+stale)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `<option value="Closed" selected>Closed</option>`)

	current := stale[:strings.Index(stale, "&filters_for")] + "&filters_for=sheet%3DMay%26sheet%3DJune"
	assert.Equal(t, 1, f.chartRows(t, "/api/charts"+current), "filters built for these sheets apply")
}

func TestMultilineValueSurvivesResubmit(t *testing.T) {
	f := newFixture(t, false, 60)
	wb := core.NewMemoryWorkbook()
	wb.AddSheet("May", core.TextRows([][]string{
		{"Status", "Health", "Project Manager", "Start Date", "Tasks"},
		{"Active", "Green", "Alice\nBob", "2025-05-01", "3"},
	}))
	f.store.Put(testLocation, wb)

	assert.Equal(t, 1, f.chartRows(t, "/api/charts"))

	form := "/api/charts?sheets_set=1&sheet=May&filters_for=sheet%3DMay" +
		"&status_set=1&status=Active&health_set=1&health=Green&manager_set=1"
	assert.Equal(t, 1, f.chartRows(t, form+"&manager=Alice%0ABob"))
	assert.Equal(t, 1, f.chartRows(t, form+"&manager=Alice%0D%0ABob"), "browsers send CRLF")
	assert.Equal(t, 0, f.chartRows(t, form+"&manager=AliceBob"))
}

func TestHealthAndReady(t *testing.T) {
	f := newFixture(t, false, 60)

	assert.Equal(t, http.StatusOK, f.do(http.MethodGet, "/healthz").Code)
	assert.Equal(t, http.StatusOK, f.do(http.MethodGet, "/readyz").Code, "first readyz triggers a load")

	f.store.Fail(testLocation, errors.New("gone"))
	f.do(http.MethodGet, "/")
	rr := f.do(http.MethodGet, "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Contains(t, rr.Body.String(), "not_ready")
}

func TestRefreshIsPostOnlyAndRateLimited(t *testing.T) {
	f := newFixture(t, false, 1)

	assert.Equal(t, http.StatusMethodNotAllowed, f.do(http.MethodGet, "/admin/refresh").Code)

	rr := f.do(http.MethodPost, "/admin/refresh")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "refreshed")

	rr = f.do(http.MethodPost, "/admin/refresh")
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.NotEmpty(t, rr.Header().Get("Retry-After"))
}

func TestStaticAssets(t *testing.T) {
	f := newFixture(t, false, 60)

	for _, path := range []string{"/static/app.css", "/static/charts.js"} {
		rr := f.do(http.MethodGet, path)
		assert.Equal(t, http.StatusOK, rr.Code, path)
		assert.Equal(t, "public, max-age=3600", rr.Header().Get("Cache-Control"))
	}
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, "/static/missing.js").Code)
}

func TestSuspiciousRequestRejected(t *testing.T) {
	f := newFixture(t, false, 60)
	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodGet, "/.env").Code)
}
