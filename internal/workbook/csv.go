package workbook

import (
	"encoding/csv"
	"fmt"
	"io"
	"path"
	"strings"

	"tracker/internal/core"
)

// DecodeCSV reads a comma-separated file as a single-sheet workbook named
// after the file.
func DecodeCSV(name string, r io.Reader) (*core.MemoryWorkbook, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	if len(records) > 0 && len(records[0]) > 0 {
		records[0][0] = strings.TrimPrefix(records[0][0], "\ufeff")
	}
	wb := core.NewMemoryWorkbook()
	wb.AddSheet(csvSheetName(name), core.TextRows(records))
	return wb, nil
}

func csvSheetName(name string) string {
	base := path.Base(strings.ReplaceAll(name, "\\", "/"))
	base = strings.TrimSuffix(base, path.Ext(base))
	if base == "" || base == "." || base == "/" {
		return "Sheet1"
	}
	return base
}
