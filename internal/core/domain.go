package core

import (
	"errors"
	"strings"
	"time"
)

// Column names the pipeline reads or writes.
const (
	ColSheet     = "Sheet"
	ColStartDate = "Start Date"
	ColEndDate   = "End Date"
	ColStatus    = "Status"
	ColHealth    = "Health"
	ColManager   = "Project Manager"
	ColDivision  = "Division"
	ColTasks     = "Tasks"
)

// DisplayLayout is the DD Mon YYYY format used for dates at the presentation boundary.
const DisplayLayout = "02 Jan 2006"

type (
	// Date is a calendar date. The zero value is the missing marker.
	Date struct {
		time.Time
	}

	// Row is one normalized spreadsheet row.
	Row struct {
		Sheet  string
		Line   int // 1-based row number in the source sheet
		Start  Date
		End    Date
		Values map[string]Cell
	}

	// Table is an ordered sequence of rows sharing a column list.
	Table struct {
		Columns []string
		Rows    []Row
		// Blank lists header columns dropped because no row has a value.
		Blank []string
	}

	// Warning is a recoverable problem surfaced to the user.
	Warning struct {
		Sheet   string
		Column  string
		Message string
	}
)

var (
	ErrLoadFailed        = errors.New("could not load workbook")
	ErrSheetNotFound     = errors.New("sheet not found")
	ErrColumnNotFound    = errors.New("column not found")
	ErrUnsupportedFormat = errors.New("unsupported workbook format")
)

// MissingDate is the marker for absent or unparseable dates.
var MissingDate = Date{}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar day.
func DateOf(t time.Time) Date {
	if t.IsZero() {
		return MissingDate
	}
	return NewDate(t.Year(), int(t.Month()), t.Day())
}

// IsMissing reports whether d is the missing marker.
func (d Date) IsMissing() bool {
	return d.IsZero()
}

// Display formats the date as DD Mon YYYY, or "" when missing.
func (d Date) Display() string {
	if d.IsMissing() {
		return ""
	}
	return d.Format(DisplayLayout)
}

// Get returns the cell stored under column, including the reserved
// Sheet / Start Date / End Date columns.
func (r Row) Get(column string) (Cell, bool) {
	switch column {
	case ColSheet:
		return TextCell(r.Sheet), true
	case ColStartDate:
		return dateCell(r.Start), true
	case ColEndDate:
		return dateCell(r.End), true
	}
	c, ok := r.Values[column]
	return c, ok
}

// Text returns the display text of column, "" when absent. Line breaks read
// as LF and the normalized date columns render as DD Mon YYYY.
func (r Row) Text(column string) string {
	switch column {
	case ColStartDate:
		return r.Start.Display()
	case ColEndDate:
		return r.End.Display()
	}
	c, _ := r.Get(column)
	return strings.TrimSpace(strings.ReplaceAll(c.String(), "\r\n", "\n"))
}

func dateCell(d Date) Cell {
	if d.IsMissing() {
		return Cell{}
	}
	return DateCell(d.Time)
}

// HasColumn reports whether column survived aggregation.
func (t Table) HasColumn(column string) bool {
	for _, c := range t.Columns {
		if c == column {
			return true
		}
	}
	return false
}

// HasHeader reports whether column appeared in any sheet header, including
// columns dropped for being blank in every row.
func (t Table) HasHeader(column string) bool {
	if t.HasColumn(column) {
		return true
	}
	for _, c := range t.Blank {
		if c == column {
			return true
		}
	}
	return false
}

// Len returns the number of rows.
func (t Table) Len() int {
	return len(t.Rows)
}

func (w Warning) String() string {
	return w.Message
}
