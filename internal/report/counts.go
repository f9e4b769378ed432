// Package report derives tables, chart series and exports from a filtered
// project table.
package report

import (
	"fmt"
	"sort"

	"tracker/internal/core"
)

// Count is the number of rows holding one value of a column.
type Count struct {
	Label string `json:"label"`
	Value int    `json:"value"`
}

// Share is a Count with its fraction of the total, as drawn on the pie chart.
type Share struct {
	Count
	Percent float64 `json:"percent"`
}

// PercentLabel formats the share with one decimal, e.g. "33.3%".
func (s Share) PercentLabel() string {
	return fmt.Sprintf("%.1f%%", s.Percent)
}

// ValueCounts counts the non-blank values of column, most frequent first.
// Ties keep first-seen order.
func ValueCounts(t core.Table, column string) []Count {
	idx := make(map[string]int)
	var counts []Count
	for _, r := range t.Rows {
		v := r.Text(column)
		if v == "" {
			continue
		}
		i, ok := idx[v]
		if !ok {
			i = len(counts)
			idx[v] = i
			counts = append(counts, Count{Label: v})
		}
		counts[i].Value++
	}
	sort.SliceStable(counts, func(a, b int) bool {
		return counts[a].Value > counts[b].Value
	})
	return counts
}

// ManagerCounts is the per-manager project count ("Total Projects").
func ManagerCounts(t core.Table) []Count {
	return ValueCounts(t, core.ColManager)
}

// ManagerShares converts manager counts into pie slices.
func ManagerShares(counts []Count) []Share {
	total := 0
	for _, c := range counts {
		total += c.Value
	}
	shares := make([]Share, len(counts))
	for i, c := range counts {
		shares[i] = Share{Count: c}
		if total > 0 {
			shares[i].Percent = float64(c.Value) * 100 / float64(total)
		}
	}
	return shares
}

// DivisionCounts counts projects per division.
func DivisionCounts(t core.Table) []Count {
	return ValueCounts(t, core.ColDivision)
}

// HealthLevels is the fixed order of the health chart.
var HealthLevels = []string{"Green", "Yellow", "Red"}

// HealthCounts returns Green, Yellow and Red in that order, zero-filled, followed
// by any other observed health values.
func HealthCounts(t core.Table) []Count {
	observed := ValueCounts(t, core.ColHealth)
	byLabel := make(map[string]int, len(observed))
	for _, c := range observed {
		byLabel[c.Label] = c.Value
	}
	out := make([]Count, 0, len(HealthLevels)+len(observed))
	for _, level := range HealthLevels {
		out = append(out, Count{Label: level, Value: byLabel[level]})
		delete(byLabel, level)
	}
	for _, c := range observed {
		if _, other := byLabel[c.Label]; other {
			out = append(out, c)
		}
	}
	return out
}

// MissingColumns reports the chart columns absent from a non-empty table.
func MissingColumns(t core.Table) []core.Warning {
	if t.Len() == 0 {
		return nil
	}
	var warnings []core.Warning
	for _, col := range []string{core.ColManager, core.ColDivision, core.ColHealth, core.ColTasks} {
		if !t.HasHeader(col) {
			warnings = append(warnings, core.Warning{
				Column:  col,
				Message: fmt.Sprintf("Column '%s' not found; its chart is empty.", col),
			})
		}
	}
	return warnings
}
