package pipeline

import (
	"fmt"

	"tracker/internal/core"
)

// FilterColumns are the categorical columns the filter engine constrains.
var FilterColumns = []string{core.ColStatus, core.ColHealth, core.ColManager}

// Selection holds the allowed values of each filter dimension. A nil slice
// stands for every observed value; a non-nil empty slice selects nothing.
// Blank cells are selectable as "".
type Selection struct {
	Status  []string
	Health  []string
	Manager []string
}

// Values returns the selection for one of FilterColumns.
func (s Selection) Values(column string) []string {
	switch column {
	case core.ColStatus:
		return s.Status
	case core.ColHealth:
		return s.Health
	case core.ColManager:
		return s.Manager
	}
	return nil
}

// Distinct returns the distinct display values of column in first-seen order.
func Distinct(t core.Table, column string) []string {
	out := []string{}
	seen := make(map[string]bool)
	for _, r := range t.Rows {
		v := r.Text(column)
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}

// DefaultSelection selects every observed value in every dimension.
func DefaultSelection(t core.Table) Selection {
	return Selection{
		Status:  Distinct(t, core.ColStatus),
		Health:  Distinct(t, core.ColHealth),
		Manager: Distinct(t, core.ColManager),
	}
}

// Filter returns the rows whose Status, Health and Project Manager values are
// all members of the corresponding selection. The input table is not
// modified. A column that is missing or blank in every row reads as "" for
// every row; only a column absent from every sheet header is reported.
func Filter(t core.Table, sel Selection) (core.Table, []core.Warning) {
	type dimension struct {
		column  string
		allowed map[string]struct{}
	}
	var (
		dims     []dimension
		warnings []core.Warning
	)
	for _, col := range FilterColumns {
		if t.Len() > 0 && !t.HasHeader(col) {
			warnings = append(warnings, core.Warning{
				Column:  col,
				Message: fmt.Sprintf("Column '%s' not found; every row reads as blank.", col),
			})
		}
		values := sel.Values(col)
		if values == nil {
			continue
		}
		allowed := make(map[string]struct{}, len(values))
		for _, v := range values {
			allowed[v] = struct{}{}
		}
		dims = append(dims, dimension{column: col, allowed: allowed})
	}

	out := core.Table{Columns: t.Columns, Rows: make([]core.Row, 0, len(t.Rows)), Blank: t.Blank}
	for _, r := range t.Rows {
		keep := true
		for _, d := range dims {
			if _, ok := d.allowed[r.Text(d.column)]; !ok {
				keep = false
				break
			}
		}
		if keep {
			out.Rows = append(out.Rows, r)
		}
	}
	return out, warnings
}
