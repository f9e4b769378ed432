package pipeline

import "tracker/internal/core"

// Result is the output of one build of the combined table.
type Result struct {
	Table    core.Table
	Warnings []core.Warning
}

// Combine concatenates sheets in order, preserving row order, and drops
// columns that are empty in every row. Duplicate rows are kept.
func Combine(sheets []SheetData) core.Table {
	var (
		columns []string
		rows    []core.Row
	)
	seen := make(map[string]bool)
	for _, s := range sheets {
		for _, c := range s.Columns {
			if !seen[c] {
				seen[c] = true
				columns = append(columns, c)
			}
		}
		rows = append(rows, s.Rows...)
	}

	kept := make([]string, 0, len(columns))
	var blank []string
	for _, c := range columns {
		if columnEmpty(rows, c) {
			blank = append(blank, c)
			continue
		}
		kept = append(kept, c)
	}
	return core.Table{Columns: kept, Rows: rows, Blank: blank}
}

// Build normalizes the selected sheets of wb and combines them.
func Build(wb core.Workbook, selected []string) Result {
	sheets, warnings := Normalize(wb, selected)
	return Result{Table: Combine(sheets), Warnings: warnings}
}

func columnEmpty(rows []core.Row, column string) bool {
	for _, r := range rows {
		if c, ok := r.Get(column); ok && !c.IsEmpty() {
			return false
		}
	}
	return true
}
