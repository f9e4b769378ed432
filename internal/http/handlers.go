package http

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"time"

	"tracker/internal/core"
	"tracker/internal/log"
	"tracker/internal/report"
	"tracker/internal/services"
)

const (
	defaultExportsLimit = 20
	maxExportsLimit     = 200
	readyTimeout        = 10 * time.Second
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse(map[string]string{
		"status": "ok",
		"uptime": time.Since(s.started).Round(time.Second).String(),
	}).Write(w)
}

// handleReady reports whether the workbook can be loaded. Before the first
// request it triggers a load.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ready, err := s.dashboard.Ready()
	if errors.Is(err, services.ErrNotLoaded) {
		ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
		defer cancel()
		_, _, loadErr := s.dashboard.Workbook(ctx)
		ready, err = loadErr == nil, loadErr
	}

	body := map[string]any{
		"status":   "ready",
		"location": s.dashboard.Location(),
	}
	status := http.StatusOK
	if !ready {
		status = http.StatusServiceUnavailable
		body["status"] = "not_ready"
		if err != nil {
			body["error"] = err.Error()
		}
	}
	NewJSONResponse(body).Status(status).Write(w)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := ParseQuery(ctx, r.URL.Query())

	data := errorPage(s.dashboard.Location())
	view, err := s.dashboard.View(ctx, q)
	if err != nil {
		log.NewStructuredLogger(log.FromContext(ctx)).LogError(ctx, "Dashboard load failed", err,
			log.ComponentSource, log.OpLoad, log.NewFields().WithWorkbook(s.dashboard.Backend(), s.dashboard.Location()))
	} else {
		data = newPageData(view)
		log.NewStructuredLogger(log.FromContext(ctx)).LogWorkbookLoaded(ctx,
			s.dashboard.Backend(), view.Location, len(view.Sheets), view.Combined.Len(), len(view.Combined.Columns), len(view.Warnings))
	}

	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, dashboardTemplate, data); err != nil {
		log.FromContext(ctx).ErrorContext(ctx, "Template execution failed",
			log.FieldError, err.Error(), "template", dashboardTemplate)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	view, err := s.dashboard.View(ctx, ParseQuery(ctx, r.URL.Query()))
	if err != nil {
		log.NewStructuredLogger(log.FromContext(ctx)).LogError(ctx, "Export load failed", err,
			log.ComponentExport, log.OpExport, nil)
		http.Error(w, loadFailureText, http.StatusServiceUnavailable)
		return
	}

	var buf bytes.Buffer
	rec, err := s.exports.Export(ctx, &buf, view, s.securityDetector.ExtractClientIP(r))
	if err != nil {
		log.FromContext(ctx).ErrorContext(ctx, "Export failed", log.FieldError, err.Error())
		http.Error(w, "export failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("X-Export-ID", rec.ID)
	NewCSVResponse(report.ExportFilename, buf.Bytes()).Write(w)
}

type chartsResponse struct {
	Sheets   []string       `json:"sheets"`
	Rows     int            `json:"rows"`
	Summary  report.Summary `json:"summary"`
	Charts   report.Charts  `json:"charts"`
	Warnings []string       `json:"warnings"`
}

func (s *Server) handleCharts(w http.ResponseWriter, r *http.Request) {
	view, err := s.dashboard.View(r.Context(), ParseQuery(r.Context(), r.URL.Query()))
	if err != nil {
		NewJSONError(http.StatusServiceUnavailable, loadFailureText).Write(w)
		return
	}
	resp := chartsResponse{
		Sheets:   view.Sheets,
		Rows:     view.Filtered.Len(),
		Summary:  view.Summary,
		Charts:   view.Charts,
		Warnings: warningMessages(view.Warnings),
	}
	NewJSONResponse(resp).Write(w)
}

type exportJSON struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	Location  string    `json:"location"`
	Sheets    []string  `json:"sheets"`
	Status    []string  `json:"status"`
	Health    []string  `json:"health"`
	Manager   []string  `json:"manager"`
	Rows      int       `json:"rows"`
	Columns   int       `json:"columns"`
}

func (s *Server) handleExports(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r.URL.Query().Get("limit"), defaultExportsLimit, maxExportsLimit)
	records, err := s.exports.Recent(r.Context(), limit)
	if errors.Is(err, services.ErrAuditDisabled) {
		NewJSONError(http.StatusNotFound, err.Error()).Write(w)
		return
	}
	if err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "List exports failed",
			log.FieldOperation, log.OpList, log.FieldError, err.Error())
		NewJSONError(http.StatusInternalServerError, "could not list exports").Write(w)
		return
	}
	out := make([]exportJSON, 0, len(records))
	for _, rec := range records {
		out = append(out, toExportJSON(rec))
	}
	NewJSONResponse(out).Write(w)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := s.dashboard.Refresh(ctx); err != nil {
		log.FromContext(ctx).ErrorContext(ctx, "Refresh failed",
			log.FieldOperation, log.OpRefresh, log.FieldError, err.Error())
		NewJSONError(http.StatusServiceUnavailable, loadFailureText).Write(w)
		return
	}
	log.FromContext(ctx).InfoContext(ctx, "Workbook refreshed", log.FieldOperation, log.OpRefresh)
	NewJSONResponse(map[string]string{"status": "refreshed"}).Write(w)
}

func toExportJSON(rec core.ExportRecord) exportJSON {
	return exportJSON{
		ID:        rec.ID,
		CreatedAt: rec.CreatedAt,
		Location:  rec.Location,
		Sheets:    rec.Sheets,
		Status:    rec.Status,
		Health:    rec.Health,
		Manager:   rec.Manager,
		Rows:      rec.Rows,
		Columns:   rec.Columns,
	}
}

func warningMessages(ws []core.Warning) []string {
	out := make([]string, 0, len(ws))
	for _, w := range ws {
		out = append(out, w.Message)
	}
	return out
}
