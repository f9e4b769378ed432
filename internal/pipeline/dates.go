package pipeline

import (
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"tracker/internal/core"
)

// Text layouts accepted for date columns. Slash dates are month-first.
var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339,
	"2006/01/02",
	"01/02/2006",
	"1/2/2006",
	"01/02/06",
	"1/2/06",
	"01-02-2006",
	"02 Jan 2006",
	"2 Jan 2006",
	"02-Jan-2006",
	"2-Jan-2006",
	"02-Jan-06",
	"2 January 2006",
	"January 2, 2006",
	"Jan 2, 2006",
	"02.01.2006",
}

// maxExcelSerial is 9999-12-31 in the 1900 date system.
const maxExcelSerial = 2958465

// CoerceDate converts a cell into a calendar date. Values that cannot be
// read as a date become core.MissingDate.
func CoerceDate(c core.Cell) core.Date {
	switch c.Kind {
	case core.CellDate:
		return core.DateOf(c.Time)
	case core.CellNumber:
		return serialDate(c.Number)
	case core.CellText:
		s := strings.TrimSpace(c.Text)
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return core.DateOf(t)
			}
		}
	}
	return core.MissingDate
}

func serialDate(n float64) core.Date {
	if n < 1 || n > maxExcelSerial {
		return core.MissingDate
	}
	t, err := excelize.ExcelDateToTime(n, false)
	if err != nil {
		return core.MissingDate
	}
	return core.DateOf(t)
}
