package workbook

import (
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"tracker/internal/core"
)

func buildXLSX(t *testing.T) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	require.NoError(t, f.SetSheetName("Sheet1", "May"))
	require.NoError(t, f.SetSheetRow("May", "A1", &[]any{"Project", "Start Date", "Tasks", "Billable"}))
	require.NoError(t, f.SetSheetRow("May", "A2", &[]any{"Alpha", time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC), 3, true}))

	_, err := f.NewSheet("June")
	require.NoError(t, err)
	require.NoError(t, f.SetSheetRow("June", "A1", &[]any{"Project", "Start Date", "Tasks"}))
	require.NoError(t, f.SetSheetRow("June", "A2", &[]any{"Beta", 45809, 5.5}))
	style, err := f.NewStyle(&excelize.Style{NumFmt: 14})
	require.NoError(t, err)
	require.NoError(t, f.SetCellStyle("June", "B2", "B2", style))

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func TestDecodeXLSX(t *testing.T) {
	wb, err := Decode("Project_Dashboard_Data.xlsx", buildXLSX(t))
	require.NoError(t, err)
	assert.Equal(t, []string{"May", "June"}, wb.SheetNames())

	may, err := wb.Rows("May")
	require.NoError(t, err)
	require.Len(t, may, 2)
	assert.Equal(t, "Project", may[0][0].Text)
	assert.Equal(t, core.CellText, may[1][0].Kind)
	assert.Equal(t, core.CellDate, may[1][1].Kind)
	assert.Equal(t, "2025-05-01", may[1][1].Time.Format("2006-01-02"))
	assert.Equal(t, core.CellNumber, may[1][2].Kind)
	assert.Equal(t, 3.0, may[1][2].Number)
	assert.Equal(t, core.CellBool, may[1][3].Kind)
	assert.True(t, may[1][3].Bool)

	june, err := wb.Rows("June")
	require.NoError(t, err)
	assert.Equal(t, core.CellDate, june[1][1].Kind, "serial with a date format decodes as a date")
	assert.Equal(t, "2025-06-01", june[1][1].Time.Format("2006-01-02"))
	assert.Equal(t, 5.5, june[1][2].Number)
}

func TestDecodeCSV(t *testing.T) {
	data := []byte("\ufeffStatus,Start Date\nActive,2025-05-01\n")
	wb, err := Decode("exports/projects.csv", data)
	require.NoError(t, err)
	assert.Equal(t, []string{"projects"}, wb.SheetNames())

	rows, err := wb.Rows("projects")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Status", rows[0][0].Text)
	assert.Equal(t, "2025-05-01", rows[1][1].Text)
}

// testdata/legacy.xls is a BIFF8 workbook saved by LibreOffice Calc.
func TestDecodeXLS(t *testing.T) {
	data, err := os.ReadFile("testdata/legacy.xls")
	require.NoError(t, err)
	require.Equal(t, FormatXLS, DetectFormat("download", data))

	wb, err := Decode("legacy.xls", data)
	require.NoError(t, err)
	assert.Equal(t, []string{"Test sheet 1", "Test sheet 2", "Sheet3"}, wb.SheetNames())

	rows, err := wb.Rows("Test sheet 1")
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(rows), 3)
	require.Len(t, rows[0], 3)
	assert.Equal(t, []string{"Test1", "Lorem", "Ipsum"}, []string{rows[0][0].Text, rows[0][1].Text, rows[0][2].Text})

	require.Len(t, rows[1], 3)
	assert.Equal(t, "Avocado", rows[1][0].Text)
	assert.Equal(t, core.CellNumber, rows[1][1].Kind)
	assert.Equal(t, 1.0, rows[1][1].Number)
	assert.Equal(t, 2.0, rows[1][2].Number)

	require.Len(t, rows[2], 3)
	assert.True(t, rows[2][0].IsEmpty(), "cells before the first column are blank")
	assert.Equal(t, 3.0, rows[2][1].Number)
	assert.Equal(t, 5.0, rows[2][2].Number)

	second, err := wb.Rows("Test sheet 2")
	require.NoError(t, err)
	require.NotEmpty(t, second)
	assert.Equal(t, "Test2", second[0][0].Text)
}

func TestDetectFormat(t *testing.T) {
	cases := []struct {
		name string
		data []byte
		want Format
	}{
		{"book.xlsx", []byte("PK\x03\x04rest"), FormatXLSX},
		{"download", []byte("PK\x03\x04rest"), FormatXLSX},
		{"book.xls", []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1, 0}, FormatXLS},
		{"data.csv", []byte("a,b\n1,2\n"), FormatCSV},
		{"", []byte("a,b\n"), FormatCSV},
		{"share", []byte("  <!DOCTYPE html><html>"), FormatUnknown},
		{"book.xlsx", []byte("not a zip"), FormatUnknown},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, DetectFormat(tc.name, tc.data), "name=%q", tc.name)
	}
}

func TestDecodeUnsupported(t *testing.T) {
	_, err := Decode("page", []byte("<html></html>"))
	assert.True(t, errors.Is(err, core.ErrUnsupportedFormat))

	_, err = Decode("broken.xlsx", []byte("PK\x03\x04garbage"))
	assert.Error(t, err)
}

func TestLooksLikeDateFormat(t *testing.T) {
	assert.True(t, looksLikeDateFormat("dd mmm yyyy"))
	assert.True(t, looksLikeDateFormat("[$-409]d-mmm-yy;@"))
	assert.False(t, looksLikeDateFormat("#,##0.00"))
	assert.False(t, looksLikeDateFormat(`0.0 "days"`))
	assert.False(t, looksLikeDateFormat("[Red]0.00"))
}
