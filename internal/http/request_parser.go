// Package http serves the dashboard page, the CSV export and the JSON API.
//
// This file turns query strings into dashboard queries.
package http

import (
	"context"
	"net/url"
	"strconv"
	"strings"
	"unicode/utf8"

	"tracker/internal/log"
	"tracker/internal/pipeline"
	"tracker/internal/services"
)

// Query parameter names. A "<name>_set" marker makes an absent parameter
// mean "nothing selected" instead of "default".
const (
	paramSheet      = "sheet"
	paramStatus     = "status"
	paramHealth     = "health"
	paramManager    = "manager"
	paramRaw        = "raw"
	paramFiltersFor = "filters_for"

	markerSheets  = "sheets_set"
	markerStatus  = "status_set"
	markerHealth  = "health_set"
	markerManager = "manager_set"

	maxSelectionValues = 5000
	maxValueBytes      = 4096
)

// ParseQuery extracts the sheet and filter selections from query values.
//
// The dashboard form carries filters_for, the sheet list its filter options
// were built from. When the requested sheets differ, the submitted filter
// values describe a different combined table and every filter falls back to
// its default.
func ParseQuery(ctx context.Context, q url.Values) services.Query {
	p := parser{ctx: ctx, values: q}
	query := services.Query{
		Sheets: p.multi(paramSheet, markerSheets),
		Raw:    parseBool(q.Get(paramRaw)),
	}
	if p.staleFilters(query.Sheets) {
		log.FromContext(ctx).DebugContext(ctx, "Sheet selection changed; filters reset",
			log.FieldSheets, query.Sheets)
		return query
	}
	query.Selection = pipeline.Selection{
		Status:  p.multi(paramStatus, markerStatus),
		Health:  p.multi(paramHealth, markerHealth),
		Manager: p.multi(paramManager, markerManager),
	}
	return query
}

type parser struct {
	ctx    context.Context
	values url.Values
}

// multi returns nil for "default", an empty slice for an explicit empty
// selection, otherwise the deduplicated values in request order. Values are
// read the way cell text is: surrounding space trimmed, the rest verbatim.
func (p parser) multi(key, marker string) []string {
	values, ok := p.values[key]
	if !ok {
		if parseBool(p.values.Get(marker)) {
			return []string{}
		}
		return nil
	}
	out := make([]string, 0, len(values))
	seen := make(map[string]bool, len(values))
	for _, v := range values {
		if !validValue(v) {
			log.FromContext(p.ctx).WarnContext(p.ctx, "Selection value rejected",
				"param", key, "bytes", len(v))
			continue
		}
		v = strings.TrimSpace(normalizeLineBreaks(v))
		if seen[v] {
			continue
		}
		seen[v] = true
		if len(out) == maxSelectionValues {
			log.FromContext(p.ctx).WarnContext(p.ctx, "Selection truncated",
				"param", key, "limit", maxSelectionValues, "received", len(values))
			break
		}
		out = append(out, v)
	}
	return out
}

// staleFilters reports whether the form's filters were built for a sheet
// list other than sheets. Requests without filters_for are never stale.
func (p parser) staleFilters(sheets []string) bool {
	raw, ok := p.values[paramFiltersFor]
	if !ok {
		return false
	}
	built, err := url.ParseQuery(strings.Join(raw, "&"))
	if err != nil || sheets == nil {
		return true
	}
	return !sameSheets(built[paramSheet], sheets)
}

func sameSheets(a, b []string) bool {
	set := make(map[string]bool, len(a))
	for _, s := range a {
		set[s] = true
	}
	other := make(map[string]bool, len(b))
	for _, s := range b {
		if !set[s] {
			return false
		}
		other[s] = true
	}
	return len(other) == len(set)
}

// encodeFiltersFor is the filters_for value for a view over sheets.
func encodeFiltersFor(sheets []string) string {
	return url.Values{paramSheet: sheets}.Encode()
}

func parseBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "on", "yes":
		return true
	}
	return false
}

// parseLimit reads a positive integer limit, clamped to max.
func parseLimit(v string, def, max int) int {
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || n <= 0 {
		return def
	}
	if n > max {
		return max
	}
	return n
}

// EncodeQuery is the inverse of ParseQuery, used for links that must
// reproduce the current view.
func EncodeQuery(q services.Query) url.Values {
	v := url.Values{}
	add := func(key, marker string, values []string) {
		if values == nil {
			return
		}
		v.Set(marker, "1")
		for _, s := range values {
			v.Add(key, s)
		}
	}
	add(paramSheet, markerSheets, q.Sheets)
	add(paramStatus, markerStatus, q.Selection.Status)
	add(paramHealth, markerHealth, q.Selection.Health)
	add(paramManager, markerManager, q.Selection.Manager)
	if q.Raw {
		v.Set(paramRaw, "1")
	}
	return v
}

// validValue accepts any UTF-8 text up to maxValueBytes without NUL bytes.
func validValue(s string) bool {
	return len(s) <= maxValueBytes && utf8.ValidString(s) && !strings.ContainsRune(s, 0)
}

// normalizeLineBreaks undoes the CRLF conversion browsers apply to form
// values. Cell text is compared with LF line breaks.
func normalizeLineBreaks(s string) string {
	return strings.ReplaceAll(s, "\r\n", "\n")
}
