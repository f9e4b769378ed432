package workbook

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/extrame/xls"

	"tracker/internal/core"
)

// DecodeXLS reads a legacy BIFF8 workbook. The xls reader renders dates as
// text, which the normalizer parses.
func DecodeXLS(r io.ReadSeeker) (*core.MemoryWorkbook, error) {
	book, err := xls.OpenReader(r, "utf-8")
	if err != nil {
		return nil, fmt.Errorf("open xls: %w", err)
	}
	wb := core.NewMemoryWorkbook()
	for i := 0; i < book.NumSheets(); i++ {
		sheet := book.GetSheet(i)
		if sheet == nil {
			continue
		}
		grid := make([][]core.Cell, 0, int(sheet.MaxRow)+1)
		for ri := 0; ri <= int(sheet.MaxRow); ri++ {
			row := sheet.Row(ri)
			if row == nil {
				grid = append(grid, nil)
				continue
			}
			cells := make([]core.Cell, row.LastCol())
			for ci := row.FirstCol(); ci < row.LastCol(); ci++ {
				cells[ci] = xlsCell(row.Col(ci))
			}
			grid = append(grid, cells)
		}
		wb.AddSheet(sheet.Name, grid)
	}
	return wb, nil
}

func xlsCell(v string) core.Cell {
	s := strings.TrimSpace(v)
	if s == "" {
		return core.Cell{}
	}
	if n, err := strconv.ParseFloat(s, 64); err == nil {
		return core.NumberCell(n)
	}
	return core.TextCell(v)
}
