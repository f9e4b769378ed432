package pipeline

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"

	"tracker/internal/core"
)

// SheetData is one normalized sheet.
type SheetData struct {
	Name    string
	Columns []string
	Rows    []core.Row
}

// NormalizeSheet reads a raw grid into rows tagged with the sheet name and
// with coerced Start/End dates. A grid without a Start Date header returns
// core.ErrColumnNotFound.
func NormalizeSheet(name string, grid [][]core.Cell) (SheetData, error) {
	hdr := firstNonEmptyRow(grid)
	if hdr < 0 {
		return SheetData{}, fmt.Errorf("sheet %q: %w: %s", name, core.ErrColumnNotFound, core.ColStartDate)
	}
	headers := headerNames(grid[hdr], gridWidth(grid[hdr:]))
	if !containsString(headers, core.ColStartDate) {
		return SheetData{}, fmt.Errorf("sheet %q: %w: %s", name, core.ErrColumnNotFound, core.ColStartDate)
	}
	hasEnd := containsString(headers, core.ColEndDate)

	columns := append([]string(nil), headers...)
	if !containsString(columns, core.ColSheet) {
		columns = append(columns, core.ColSheet)
	}
	if !hasEnd {
		columns = append(columns, core.ColEndDate)
	}

	out := SheetData{Name: name, Columns: columns}
	for i := hdr + 1; i < len(grid); i++ {
		cells := grid[i]
		if rowEmpty(cells) {
			continue
		}
		values := make(map[string]core.Cell, len(headers))
		for j, h := range headers {
			if j < len(cells) && !cells[j].IsEmpty() {
				values[h] = cells[j]
			}
		}
		row := core.Row{Sheet: name, Line: i + 1, Values: values}
		row.Start = CoerceDate(values[core.ColStartDate])
		delete(values, core.ColStartDate)
		if hasEnd {
			row.End = CoerceDate(values[core.ColEndDate])
			delete(values, core.ColEndDate)
		}
		delete(values, core.ColSheet)
		out.Rows = append(out.Rows, row)
	}
	return out, nil
}

// Normalize processes the selected sheets in order. Sheets that are absent
// from the workbook or lack a Start Date column are skipped with one warning
// each.
func Normalize(wb core.Workbook, selected []string) ([]SheetData, []core.Warning) {
	var (
		sheets   []SheetData
		warnings []core.Warning
	)
	for _, name := range selected {
		grid, err := wb.Rows(name)
		if err != nil {
			warnings = append(warnings, core.Warning{
				Sheet:   name,
				Message: fmt.Sprintf("Skipping sheet '%s' (not found in workbook).", name),
			})
			continue
		}
		sd, err := NormalizeSheet(name, grid)
		if errors.Is(err, core.ErrColumnNotFound) {
			warnings = append(warnings, core.Warning{
				Sheet:   name,
				Column:  core.ColStartDate,
				Message: fmt.Sprintf("Skipping sheet '%s' (missing '%s').", name, core.ColStartDate),
			})
			continue
		}
		sheets = append(sheets, sd)
	}
	return sheets, warnings
}

func firstNonEmptyRow(grid [][]core.Cell) int {
	for i, r := range grid {
		if !rowEmpty(r) {
			return i
		}
	}
	return -1
}

func rowEmpty(cells []core.Cell) bool {
	for _, c := range cells {
		if !c.IsEmpty() {
			return false
		}
	}
	return true
}

func gridWidth(grid [][]core.Cell) int {
	w := 0
	for _, r := range grid {
		for j := len(r) - 1; j >= w; j-- {
			if !r[j].IsEmpty() {
				w = j + 1
				break
			}
		}
	}
	return w
}

// headerNames trims and NFC-normalizes header cells. Blank headers become
// "Unnamed: N" and repeats get ".1", ".2" suffixes.
func headerNames(cells []core.Cell, width int) []string {
	names := make([]string, width)
	seen := make(map[string]int, width)
	for j := 0; j < width; j++ {
		var s string
		if j < len(cells) {
			s = norm.NFC.String(strings.TrimSpace(cells[j].String()))
		}
		if s == "" {
			s = "Unnamed: " + strconv.Itoa(j)
		}
		if n, dup := seen[s]; dup {
			seen[s] = n + 1
			s = s + "." + strconv.Itoa(n+1)
		} else {
			seen[s] = 0
		}
		names[j] = s
	}
	return names
}
