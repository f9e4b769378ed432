package report

import (
	"encoding/csv"
	"fmt"
	"io"

	"tracker/internal/core"
)

// ExportFilename is the download name of the filtered CSV.
const ExportFilename = "filtered_projects.csv"

// WriteCSV writes t as UTF-8 CSV with a header of the table columns. Dates
// are written as DD Mon YYYY and missing values as empty fields.
func WriteCSV(w io.Writer, t core.Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Columns); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	record := make([]string, len(t.Columns))
	for i, r := range t.Rows {
		for j, col := range t.Columns {
			record[j] = r.Text(col)
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write csv row %d: %w", i+1, err)
		}
	}
	cw.Flush()
	return cw.Error()
}
