package workbook

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"tracker/internal/core"
)

// DecodeXLSX reads every sheet of an Office Open XML workbook. Numeric cells
// carrying a date number format become date cells.
func DecodeXLSX(r io.Reader) (*core.MemoryWorkbook, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	defer f.Close()

	date1904 := false
	if props, err := f.GetWorkbookProps(); err == nil && props.Date1904 != nil {
		date1904 = *props.Date1904
	}
	styles := &dateStyles{file: f, byID: make(map[int]bool)}

	wb := core.NewMemoryWorkbook()
	for _, name := range f.GetSheetList() {
		raw, err := f.GetRows(name, excelize.Options{RawCellValue: true})
		if err != nil {
			return nil, fmt.Errorf("read sheet %q: %w", name, err)
		}
		grid := make([][]core.Cell, len(raw))
		for i, row := range raw {
			cells := make([]core.Cell, len(row))
			for j, v := range row {
				cells[j] = decodeXLSXCell(f, styles, date1904, name, j+1, i+1, v)
			}
			grid[i] = cells
		}
		wb.AddSheet(name, grid)
	}
	return wb, nil
}

func decodeXLSXCell(f *excelize.File, styles *dateStyles, date1904 bool, sheet string, col, row int, raw string) core.Cell {
	if strings.TrimSpace(raw) == "" {
		return core.Cell{}
	}
	axis, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return core.TextCell(raw)
	}
	typ, err := f.GetCellType(sheet, axis)
	if err != nil {
		return core.TextCell(raw)
	}
	switch typ {
	case excelize.CellTypeBool:
		return core.BoolCell(raw == "1" || strings.EqualFold(raw, "true"))
	case excelize.CellTypeSharedString, excelize.CellTypeInlineString, excelize.CellTypeError:
		return core.TextCell(raw)
	case excelize.CellTypeDate:
		for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"} {
			if t, err := time.Parse(layout, raw); err == nil {
				return core.DateCell(t)
			}
		}
		return core.TextCell(raw)
	}

	n, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return core.TextCell(raw)
	}
	if styles.isDate(sheet, axis) {
		if t, err := excelize.ExcelDateToTime(n, date1904); err == nil {
			return core.DateCell(t)
		}
	}
	return core.NumberCell(n)
}

// dateStyles memoizes whether a style ID renders as a date.
type dateStyles struct {
	file *excelize.File
	byID map[int]bool
}

func (d *dateStyles) isDate(sheet, axis string) bool {
	id, err := d.file.GetCellStyle(sheet, axis)
	if err != nil || id == 0 {
		return false
	}
	if v, ok := d.byID[id]; ok {
		return v
	}
	v := false
	if st, err := d.file.GetStyle(id); err == nil && st != nil {
		v = isDateFormat(st.NumFmt, st.CustomNumFmt)
	}
	d.byID[id] = v
	return v
}

func isDateFormat(id int, custom *string) bool {
	if custom != nil && *custom != "" {
		return looksLikeDateFormat(*custom)
	}
	switch {
	case id >= 14 && id <= 17, id == 22:
		return true
	case id >= 27 && id <= 36, id >= 50 && id <= 58:
		return true
	}
	return false
}

// looksLikeDateFormat inspects a custom number format code, ignoring quoted
// literals and bracketed sections such as colors or locales.
func looksLikeDateFormat(code string) bool {
	var b strings.Builder
	inQuote, inBracket := false, false
	for _, r := range strings.ToLower(code) {
		switch {
		case r == '"':
			inQuote = !inQuote
		case inQuote:
		case r == '[':
			inBracket = true
		case r == ']':
			inBracket = false
		case inBracket:
		default:
			b.WriteRune(r)
		}
	}
	s := b.String()
	return strings.ContainsAny(s, "dy")
}
