package http

import (
	"html/template"
	"strconv"
	"time"

	"tracker/internal/core"
	"tracker/internal/report"
	"tracker/internal/services"
)

const (
	pageTitle       = "Project Tracker Dashboard"
	loadFailureText = "Failed to load Excel file."
	blankLabel      = "(blank)"
)

// option is one entry of a multi-select.
type option struct {
	Value    string
	Label    string
	Selected bool
}

// tableView is a table flattened to display strings.
type tableView struct {
	Columns []string
	Rows    [][]string
}

// pageData feeds dashboard.html.
type pageData struct {
	Title      string
	Location   string
	Error      string
	Sheets     []option
	FiltersFor string // sheets the filter options were built from
	Status     []option
	Health     []option
	Manager    []option
	Raw        bool
	Warnings   []string
	Summary    report.Summary
	Filtered   tableView
	RawTable   tableView
	Managers   []report.Share
	Charts     report.Charts
	ExportURL  string
	LoadedAt   string
}

func templateFuncs() template.FuncMap {
	return template.FuncMap{
		"blank": blankOr,
		"number": func(f float64) string {
			return strconv.FormatFloat(f, 'f', -1, 64)
		},
		"clampSize": func(n int) int {
			switch {
			case n < 3:
				return 3
			case n > 10:
				return 10
			}
			return n
		},
		"atLeastOne": func(n int) int {
			if n < 1 {
				return 1
			}
			return n
		},
	}
}

func blankOr(s string) string {
	if s == "" {
		return blankLabel
	}
	return s
}

func newPageData(v *services.View) pageData {
	selectedSheets := make(map[string]bool, len(v.Sheets))
	for _, s := range v.Sheets {
		selectedSheets[s] = true
	}
	sheets := make([]option, 0, len(v.Available))
	for _, s := range v.Available {
		sheets = append(sheets, option{Value: s, Label: s, Selected: selectedSheets[s]})
	}

	data := pageData{
		Title:      pageTitle,
		Location:   v.Location,
		Sheets:     sheets,
		FiltersFor: encodeFiltersFor(v.Sheets),
		Status:     options(v.Options.Status, v.Effective.Status),
		Health:     options(v.Options.Health, v.Effective.Health),
		Manager:    options(v.Options.Manager, v.Effective.Manager),
		Raw:        v.Query.Raw,
		Summary:    v.Summary,
		Filtered:   flatten(v.Filtered),
		Managers:   v.Managers,
		Charts:     v.Charts,
		ExportURL:  "/export.csv",
	}
	if v.Query.Raw {
		data.RawTable = flatten(v.Combined)
	}
	for _, w := range v.Warnings {
		data.Warnings = append(data.Warnings, w.Message)
	}
	if enc := EncodeQuery(v.Query).Encode(); enc != "" {
		data.ExportURL += "?" + enc
	}
	if !v.LoadedAt.IsZero() {
		data.LoadedAt = v.LoadedAt.Format(time.DateTime)
	}
	return data
}

// options lists every observed value plus selected values no longer observed.
func options(all, selected []string) []option {
	chosen := make(map[string]bool, len(selected))
	for _, s := range selected {
		chosen[s] = true
	}
	out := make([]option, 0, len(all))
	seen := make(map[string]bool, len(all))
	for _, v := range all {
		seen[v] = true
		out = append(out, option{Value: v, Label: blankOr(v), Selected: chosen[v]})
	}
	for _, s := range selected {
		if !seen[s] {
			seen[s] = true
			out = append(out, option{Value: s, Label: blankOr(s), Selected: true})
		}
	}
	return out
}

func flatten(t core.Table) tableView {
	tv := tableView{Columns: t.Columns, Rows: make([][]string, 0, t.Len())}
	for _, r := range t.Rows {
		row := make([]string, len(t.Columns))
		for i, c := range t.Columns {
			row[i] = r.Text(c)
		}
		tv.Rows = append(tv.Rows, row)
	}
	return tv
}

// errorPage is rendered on load failure. It carries no partial data.
func errorPage(location string) pageData {
	return pageData{
		Title:     pageTitle,
		Location:  location,
		Error:     loadFailureText,
		ExportURL: "/export.csv",
	}
}
